package http

import (
	"encoding/json"
	"net/http"
	"time"

	"chatify/internal/entity"
	"chatify/internal/usecase"

	"go.uber.org/zap"
)

const refreshTokenCookie = "refresh_token"

type AuthHandler struct {
	authUc       usecase.AuthUsecase
	secureCookie bool
	cookieMaxAge time.Duration
	log          *zap.Logger
}

func NewAuthHandler(authUc usecase.AuthUsecase, secureCookie bool, cookieMaxAge time.Duration, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authUc:       authUc,
		secureCookie: secureCookie,
		cookieMaxAge: cookieMaxAge,
		log:          log,
	}
}

// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req entity.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}

	authResponse, err := h.authUc.Register(r.Context(), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	h.setRefreshTokenCookie(w, authResponse.RefreshToken)
	authResponse.RefreshToken = ""
	writeJSON(w, http.StatusCreated, Response{Message: "registration successful", Data: authResponse})
}

// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req entity.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Message: "invalid request body"})
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, Response{Message: "email and password are required"})
		return
	}

	authResponse, err := h.authUc.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	h.setRefreshTokenCookie(w, authResponse.RefreshToken)
	authResponse.RefreshToken = ""
	writeJSON(w, http.StatusOK, Response{Message: "login successful", Data: authResponse})
}

// refreshTokenFrom reads the refresh token cookie, falling back to the body.
func refreshTokenFrom(r *http.Request) string {
	if cookie, err := r.Cookie(refreshTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	var req entity.RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
		return req.RefreshToken
	}
	return ""
}

// POST /auth/refresh
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	refreshToken := refreshTokenFrom(r)
	if refreshToken == "" {
		writeJSON(w, http.StatusBadRequest, Response{Message: "refresh token is required"})
		return
	}

	authResponse, err := h.authUc.RefreshToken(r.Context(), refreshToken)
	if err != nil {
		h.clearRefreshTokenCookie(w)
		writeError(w, r, h.log, err)
		return
	}

	h.setRefreshTokenCookie(w, authResponse.RefreshToken)
	authResponse.RefreshToken = ""
	writeJSON(w, http.StatusOK, Response{Message: "token refreshed", Data: authResponse})
}

// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if refreshToken := refreshTokenFrom(r); refreshToken != "" {
		if err := h.authUc.Logout(r.Context(), refreshToken); err != nil {
			h.log.Warn("logout", zap.Error(err))
		}
	}

	h.clearRefreshTokenCookie(w)
	writeJSON(w, http.StatusOK, Response{Message: "logout successful"})
}

// POST /auth/logout-all
func (h *AuthHandler) LogoutAllDevices(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, Response{Message: "unauthorized"})
		return
	}

	if err := h.authUc.LogoutAllDevices(r.Context(), claims.UserId); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	h.clearRefreshTokenCookie(w)
	writeJSON(w, http.StatusOK, Response{Message: "logged out from all devices"})
}

func (h *AuthHandler) setRefreshTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    token,
		Path:     "/auth",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.cookieMaxAge.Seconds()),
	})
}

func (h *AuthHandler) clearRefreshTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     refreshTokenCookie,
		Value:    "",
		Path:     "/auth",
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
	})
}
