package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jupiterclapton/agora/internal/adapters/primary/auth"
	"github.com/jupiterclapton/agora/internal/core/domain"
	"github.com/jupiterclapton/agora/internal/core/ports"
)

const resetPasswordPath = "/api/v1/auth/reset-password"

func (s *Server) signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.svc.Identity.Register(r.Context(), ports.RegisterCmd{
		Email:     req.Email,
		Password:  req.Password,
		Username:  req.Username,
		FullName:  req.FullName,
		BirthDate: req.BirthDate,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setAuthCookies(w, res.Tokens)
	writeJSON(w, http.StatusCreated, toAuthDTO(res))
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.svc.Identity.Login(r.Context(), ports.LoginCmd{
		Email:    req.Email,
		Password: req.Password,
		IP:       clientIP(r),
		Device:   r.UserAgent(),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setAuthCookies(w, res.Tokens)
	writeJSON(w, http.StatusOK, toAuthDTO(res))
}

// refreshToken lit le jeton dans le cookie, sinon dans le corps JSON.
func (s *Server) refreshToken(w http.ResponseWriter, r *http.Request) {
	var token string
	if c, err := r.Cookie(auth.RefreshCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		var req refreshRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			s.writeError(w, r, badRequest("invalid JSON body"))
			return
		}
		token = req.RefreshToken
	}
	if token == "" {
		s.writeError(w, r, domain.ErrNotLoggedIn)
		return
	}

	res, err := s.svc.Identity.RefreshToken(r.Context(), token)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.setAuthCookies(w, res.Tokens)
	writeJSON(w, http.StatusOK, toAuthDTO(res))
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.svc.Identity.ForgotPassword(r.Context(), req.Email, s.resetBaseURL(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	// Même réponse que le compte existe ou non.
	writeMessage(w, http.StatusOK, "if an account exists for this email, a reset link has been sent")
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.svc.Identity.ResetPassword(r.Context(), chi.URLParam(r, "token"), req.Password); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "password has been reset, please log in")
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.Identity.Logout(r.Context(), *principal(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.clearAuthCookies(w)
	writeMessage(w, http.StatusOK, "logged out")
}

func (s *Server) updatePassword(w http.ResponseWriter, r *http.Request) {
	var req updatePasswordRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.svc.Identity.ChangePassword(r.Context(), principal(r).AccountID, req.CurrentPassword, req.Password); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "password updated")
}

// --- COOKIES ---

func (s *Server) setAuthCookies(w http.ResponseWriter, tokens *domain.TokenPair) {
	http.SetCookie(w, s.cookie(auth.AccessCookie, tokens.AccessToken, tokens.AccessExpiresAt))
	http.SetCookie(w, s.cookie(auth.RefreshCookie, tokens.RefreshToken, tokens.RefreshExpiresAt))
}

func (s *Server) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{auth.AccessCookie, auth.RefreshCookie} {
		c := s.cookie(name, "", time.Unix(0, 0))
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func (s *Server) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

// resetBaseURL : PublicURL si configurée, sinon l'hôte de la requête.
func (s *Server) resetBaseURL(r *http.Request) string {
	if s.opts.PublicURL != "" {
		return strings.TrimRight(s.opts.PublicURL, "/") + resetPasswordPath
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + resetPasswordPath
}

// principal est garanti non nil derrière auth.Middleware.
func principal(r *http.Request) *domain.Principal {
	return auth.ForContext(r.Context())
}
