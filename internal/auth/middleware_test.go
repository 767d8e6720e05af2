package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoIdentity responds 200 with the caller's user id, or "anonymous".
func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := UserIDFromContext(r.Context())
		if !ok {
			id = "anonymous"
		}
		_, _ = w.Write([]byte(id))
	})
}

func TestRequireAuth(t *testing.T) {
	ts := newTestTokenService(t)
	token, err := ts.Generate(farmer)
	require.NoError(t, err)
	expired, err := ts.GenerateWithDuration(farmer, -time.Minute)
	require.NoError(t, err)

	h := RequireAuth(ts)(echoIdentity())

	tests := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
		wantBody   string
	}{
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK, "user-123"},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer "+token) }, http.StatusOK, "user-123"},
		{"cookie fallback", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: TokenCookie, Value: token}) }, http.StatusOK, "user-123"},
		{"no credentials", func(r *http.Request) {}, http.StatusUnauthorized, ""},
		{"basic scheme", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, http.StatusUnauthorized, ""},
		{"expired token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+expired) }, http.StatusUnauthorized, ""},
		{"bad header beats good cookie", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer garbage")
			r.AddCookie(&http.Cookie{Name: TokenCookie, Value: token})
		}, http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
			tt.setup(req)
			rr := httptest.NewRecorder()

			h.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantBody, rr.Body.String())
			} else {
				assert.JSONEq(t, `{"error":"unauthorized","message":"valid authentication required"}`, rr.Body.String())
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	ts := newTestTokenService(t)
	token, _ := ts.Generate(farmer)
	h := OptionalAuth(ts)(echoIdentity())

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "anonymous", rr.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, "user-123", rr.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Authorization", "Bearer nonsense")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "anonymous", rr.Body.String())
}

func TestRequireAdmin(t *testing.T) {
	ts := newTestTokenService(t)
	adminToken, _ := ts.Generate(Identity{UserID: "admin-1", Role: "buyer", IsAdmin: true})
	userToken, _ := ts.Generate(farmer)

	h := RequireAuth(ts)(RequireAdmin(echoIdentity()))

	for _, tc := range []struct {
		token string
		want  int
	}{
		{adminToken, http.StatusOK},
		{userToken, http.StatusForbidden},
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/verifications", nil)
		req.Header.Set("Authorization", "Bearer "+tc.token)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, tc.want, rr.Code)
	}

	// Without RequireAuth in front there is no identity at all.
	rr := httptest.NewRecorder()
	RequireAdmin(echoIdentity()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
