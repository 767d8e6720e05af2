package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStringListScan(t *testing.T) {
	tests := []struct {
		name string
		src  any
		want StringList
	}{
		{"json text", `["cod","kbzpay"]`, StringList{"cod", "kbzpay"}},
		{"bytes from postgres", []byte(`["a"]`), StringList{"a"}},
		{"null column", nil, StringList{}},
		{"empty string", "", StringList{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var l StringList
			require.NoError(t, l.Scan(tt.src))
			assert.Equal(t, tt.want, l)
		})
	}

	var l StringList
	assert.Error(t, l.Scan(42))
	assert.Error(t, l.Scan("not json"))
}

func TestStringListValueNil(t *testing.T) {
	v, err := StringList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)
}

func TestUserPublicHidesContact(t *testing.T) {
	email, phone := "a@b.mm", "0991234567"
	u := User{ID: "u1", Email: &email, Phone: &phone, Name: "Ko Aung"}

	pub := u.Public()
	assert.Nil(t, pub.Email)
	assert.Nil(t, pub.Phone)
	assert.Equal(t, "Ko Aung", pub.Name)
	assert.NotNil(t, u.Email, "original must be untouched")
}
