package handler

import (
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/agrilink/internal/auth"
	"github.com/sakif/agrilink/internal/service"
)

const oauthStateCookie = "oauth_state"

// AuthHandler serves password registration and login, the Google sign-in
// round trip and password changes.
type AuthHandler struct {
	svc    *service.AuthService
	tokens *auth.TokenService
	google *auth.OAuthProvider // nil when Google sign-in is not configured
	logger *slog.Logger
}

func NewAuthHandler(svc *service.AuthService, tokens *auth.TokenService, google *auth.OAuthProvider, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, tokens: tokens, google: google, logger: logger}
}

// GoogleEnabled reports whether the /auth/google routes should be mounted.
func (h *AuthHandler) GoogleEnabled() bool {
	return h.google != nil
}

// HandleRegister creates an account.
//
// HTTP: POST /api/auth/register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	res, err := h.svc.Register(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.setTokenCookie(w, res.Token)
	writeJSON(w, http.StatusCreated, res)
}

type loginRequest struct {
	// Identifier is an email address or a phone number.
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Password   string `json:"password"`
}

// HandleLogin exchanges credentials for a token.
//
// HTTP: POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	identifier := req.Identifier
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" {
		identifier = req.Phone
	}

	res, err := h.svc.Login(r.Context(), identifier, req.Password)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.setTokenCookie(w, res.Token)
	writeJSON(w, http.StatusOK, res)
}

// HandleMe returns the signed-in account.
//
// HTTP: GET /api/auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	user, err := h.svc.Me(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// HandleChangePassword replaces the caller's password.
//
// HTTP: POST /api/auth/password
func (h *AuthHandler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := callerID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGoogleLogin sends the browser to Google's consent page.
//
// HTTP: GET /auth/google/login
//
// A random state goes into a short-lived HttpOnly cookie and into the
// redirect; the callback only proceeds when both match, which proves this
// server started the round trip.
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/auth/google",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback finishes Google sign-in and answers like login does.
//
// HTTP: GET /auth/google/callback?code=...&state=...
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || q.Get("state") != stateCookie.Value {
		h.logger.Warn("oauth callback: state mismatch", slog.String("provider", h.google.Name()))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "invalid OAuth state"})
		return
	}
	// single use
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/auth/google", MaxAge: -1})

	if denied := q.Get("error"); denied != "" {
		h.logger.Info("oauth callback: user denied consent", slog.String("error", denied))
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "sign-in was cancelled"})
		return
	}
	code := q.Get("code")
	if code == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation_error", Message: "missing OAuth code", Field: "code"})
		return
	}

	ou, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("oauth callback: exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "upstream_error", Message: "authentication with Google failed"})
		return
	}

	res, err := h.svc.LoginWithOAuth(r.Context(), h.google.Name(), ou)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	h.setTokenCookie(w, res.Token)
	writeJSON(w, http.StatusOK, res)
}

// setTokenCookie lets browser clients skip the Authorization header.
func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.TokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.tokens.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
