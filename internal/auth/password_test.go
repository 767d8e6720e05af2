package auth

import (
	"errors"
	"strings"
	"testing"
)

func newTestPasswordService() *PasswordService {
	return NewPasswordServiceWithCost(4)
}

func TestHash_LooksLikeBcrypt(t *testing.T) {
	ps := newTestPasswordService()

	hash, err := ps.Hash("paddy-field-2024")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$2") {
		t.Errorf("Hash() does not look like a bcrypt hash: %q", hash)
	}
}

func TestHash_SaltIsRandom(t *testing.T) {
	ps := newTestPasswordService()

	hash1, _ := ps.Hash("same-password")
	hash2, _ := ps.Hash("same-password")
	if hash1 == hash2 {
		t.Error("Hash() produced identical hashes for the same password")
	}
}

func TestHash_LengthLimit(t *testing.T) {
	ps := newTestPasswordService()

	if _, err := ps.Hash(strings.Repeat("a", MaxPasswordBytes)); err != nil {
		t.Errorf("Hash() rejected a %d-byte password: %v", MaxPasswordBytes, err)
	}
	if _, err := ps.Hash(strings.Repeat("a", MaxPasswordBytes+1)); err == nil {
		t.Error("Hash() should reject passwords over the bcrypt limit")
	}
}

func TestVerify(t *testing.T) {
	ps := newTestPasswordService()
	hash, err := ps.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}

	if err := ps.Verify(hash, "correct horse"); err != nil {
		t.Errorf("Verify() with correct password = %v, want nil", err)
	}
	if err := ps.Verify(hash, "wrong horse"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("Verify() with wrong password = %v, want ErrPasswordMismatch", err)
	}
	if err := ps.Verify(hash, ""); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("Verify() with empty password = %v, want ErrPasswordMismatch", err)
	}
}

func TestVerify_UnusableHash(t *testing.T) {
	ps := newTestPasswordService()

	err := ps.Verify("", "anything")
	if err == nil {
		t.Fatal("Verify() should fail for an empty stored hash")
	}
	if errors.Is(err, ErrPasswordMismatch) {
		t.Error("Verify() should not report a malformed hash as a simple mismatch")
	}
}
