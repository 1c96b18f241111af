package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/identra/apiserver/internal/services"
	"github.com/identra/apiserver/types"
)

const (
	accessTokenCookie  = "access_token"
	refreshTokenCookie = "refresh_token"
)

// TokenVerifier checks access tokens presented on requests and exposes
// the token lifetimes used for cookie expiry.
type TokenVerifier interface {
	ParseSubject(tokenString string) (string, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// AuthHandler provides the HTTP surface of the auth flows. Tokens are
// delivered as HttpOnly SameSite=Strict cookies; Secure is set when the
// server runs in production (an explicit constructor argument, never a
// global read).
type AuthHandler struct {
	authService   *services.AuthService
	tokens        TokenVerifier
	secureCookies bool
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService, tokens TokenVerifier, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		tokens:        tokens,
		secureCookies: secureCookies,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, authService *services.AuthService, tokens TokenVerifier, secureCookies bool) {
	handler := NewAuthHandler(authService, tokens, secureCookies)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.With(handler.RequireAuth).Post("/logout", handler.Logout)
	r.With(handler.RequireAuth).Post("/password", handler.ChangePassword)
	r.With(handler.RequireAuth).Get("/me", handler.Me)
}

// RequireAuth enforces access-token authentication and injects the
// subject id into the request context. The token is read from the
// access_token cookie or, failing that, an Authorization bearer header.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenString, err := requestToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		subject, err := h.tokens.ParseSubject(tokenString)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), contextSubjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Register creates a user, sets token cookies, and returns the public view.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, pair, err := h.authService.Register(r.Context(), services.RegisterParams{
		FullName: req.FullName,
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.setTokenCookies(w, pair)
	writeJSON(w, http.StatusCreated, AuthResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Login verifies credentials, sets token cookies, and returns the public view.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, pair, err := h.authService.Login(r.Context(), services.LoginParams{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.setTokenCookies(w, pair)
	writeJSON(w, http.StatusOK, AuthResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

// Logout revokes the session and expires both token cookies.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.authService.Logout(r.Context(), userID); err != nil {
		h.writeServiceError(w, err)
		return
	}

	h.clearTokenCookies(w)
	writeJSON(w, http.StatusOK, struct{}{})
}

// ChangePassword rotates the authenticated user's password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	if err := h.authService.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct{}{})
}

// Me returns the current authenticated user's public view.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.authService.CurrentUser(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

type RegisterRequest struct {
	FullName string `json:"fullname"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

type AuthResponse struct {
	User         types.User `json:"user"`
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
}

func (h *AuthHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad request")
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusConflict, "username or email already exists")
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *AuthHandler) setTokenCookies(w http.ResponseWriter, pair services.TokenPair) {
	http.SetCookie(w, h.tokenCookie(accessTokenCookie, pair.AccessToken, h.tokens.AccessTTL()))
	http.SetCookie(w, h.tokenCookie(refreshTokenCookie, pair.RefreshToken, h.tokens.RefreshTTL()))
}

func (h *AuthHandler) clearTokenCookies(w http.ResponseWriter) {
	http.SetCookie(w, h.tokenCookie(accessTokenCookie, "", -time.Second))
	http.SetCookie(w, h.tokenCookie(refreshTokenCookie, "", -time.Second))
}

func (h *AuthHandler) tokenCookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	}
}

func requestToken(r *http.Request) (string, error) {
	if cookie, err := r.Cookie(accessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}

	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing credentials")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}
