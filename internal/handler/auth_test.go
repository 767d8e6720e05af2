package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/sakif/agrilink/internal/auth"
	"github.com/sakif/agrilink/internal/logging"
	"github.com/sakif/agrilink/internal/repository/sqlstore"
	"github.com/sakif/agrilink/internal/service"
)

// ============================================================================
// Fixtures: a real AuthService over a temp database and a fake Google.
// ============================================================================

func newAuthHandler(t *testing.T, google *auth.OAuthProvider) *AuthHandler {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agrilink.db")
	require.NoError(t, sqlstore.Migrate(sqlstore.DriverSQLite, path))
	db, err := sqlstore.Open(context.Background(), sqlstore.DriverSQLite, path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	tokens, err := auth.NewTokenService("handler-test-secret", time.Hour)
	require.NoError(t, err)
	svc := service.NewAuthService(db, tokens, auth.NewPasswordServiceWithCost(4), logging.Discard())
	return NewAuthHandler(svc, tokens, google, logging.Discard())
}

// fakeGoogle accepts the code "good-code" and reports a verified user.
func fakeGoogle(t *testing.T) *auth.OAuthProvider {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("code") != "good-code" {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"sub":"g-42","email":"thida@example.com","email_verified":true,"name":"Thida"}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return auth.NewOAuthProvider("google", &oauth2.Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8080/auth/google/callback",
		Endpoint:     oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"},
	}, srv.URL+"/userinfo")
}

func tokenCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == auth.TokenCookie {
			return c
		}
	}
	return nil
}

// ============================================================================
// Register and login
// ============================================================================

func TestAuthHandler_RegisterThenLogin(t *testing.T) {
	h := newAuthHandler(t, nil)
	assert.False(t, h.GoogleEnabled())

	rec := httptest.NewRecorder()
	h.HandleRegister(rec, httptest.NewRequest(http.MethodPost, "/api/auth/register", strings.NewReader(
		`{"phone":"09 123 456 789","password":"correct-horse","name":"Aung","userType":"trader"}`)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	c := tokenCookie(rec)
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, 3600, c.MaxAge)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"phone field", `{"phone":"09123456789","password":"correct-horse"}`, http.StatusOK},
		{"identifier field", `{"identifier":"09123456789","password":"correct-horse"}`, http.StatusOK},
		{"wrong password", `{"identifier":"09123456789","password":"wrong-horse"}`, http.StatusUnauthorized},
		{"no identifier", `{"password":"correct-horse"}`, http.StatusBadRequest},
		{"unknown field", `{"username":"aung","password":"correct-horse"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleLogin(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tt.body)))
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

// ============================================================================
// Google sign-in
// ============================================================================

func TestAuthHandler_GoogleLoginSetsState(t *testing.T) {
	h := newAuthHandler(t, fakeGoogle(t))
	require.True(t, h.GoogleEnabled())

	rec := httptest.NewRecorder()
	h.HandleGoogleLogin(rec, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))
	require.Equal(t, http.StatusTemporaryRedirect, rec.Code)

	var state *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == oauthStateCookie {
			state = c
		}
	}
	require.NotNil(t, state)
	assert.True(t, state.HttpOnly)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, state.Value, loc.Query().Get("state"))
}

func TestAuthHandler_GoogleCallback(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		cookie     string
		wantStatus int
		wantKind   string
	}{
		{"no state cookie", "?state=s1&code=good-code", "", http.StatusBadRequest, "validation_error"},
		{"state mismatch", "?state=other&code=good-code", "s1", http.StatusBadRequest, "validation_error"},
		{"consent denied", "?state=s1&error=access_denied", "s1", http.StatusUnauthorized, "unauthorized"},
		{"missing code", "?state=s1", "s1", http.StatusBadRequest, "validation_error"},
		{"bad code", "?state=s1&code=bad-code", "s1", http.StatusBadGateway, "upstream_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAuthHandler(t, fakeGoogle(t))
			req := httptest.NewRequest(http.MethodGet, "/auth/google/callback"+tt.query, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.HandleGoogleCallback(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantKind, body.Error)
			assert.Nil(t, tokenCookie(rec))
		})
	}
}

func TestAuthHandler_GoogleCallbackSignsIn(t *testing.T) {
	h := newAuthHandler(t, fakeGoogle(t))

	signIn := func() string {
		req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=s1&code=good-code", nil)
		req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: "s1"})
		rec := httptest.NewRecorder()
		h.HandleGoogleCallback(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.NotNil(t, tokenCookie(rec))

		var res struct {
			User struct {
				ID       string `json:"id"`
				Name     string `json:"name"`
				UserType string `json:"userType"`
			} `json:"user"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "Thida", res.User.Name)
		assert.Equal(t, "buyer", res.User.UserType)
		return res.User.ID
	}

	first := signIn()
	assert.Equal(t, first, signIn(), "second sign-in reuses the account")
}
