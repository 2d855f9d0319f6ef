package http

import (
	"errors"
	"net/http"

	"spendwise/internal/core"
	"spendwise/internal/log"
)

type authForm struct {
	Username string
	Next     string
}

func (s *Server) handleRegisterForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register.html", "Register", authForm{})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, r, http.StatusBadRequest, "register.html", "Register", authForm{},
			flash{flashError, "Invalid form submission"})
		return
	}
	username := sanitizeInput(r.PostForm.Get("username"))
	form := authForm{Username: username}

	_, err := s.accounts.Register(r.Context(), username, r.PostForm.Get("password"))
	switch {
	case err == nil:
		s.redirectWithFlash(w, r, "/login", flashSuccess, "Registration successful. Please log in.")
	case errors.Is(err, core.ErrUsernameTaken):
		s.render(w, r, http.StatusConflict, "register.html", "Register", form, flash{flashError, "Username already exists"})
	default:
		if _, ok := core.IsValidation(err); ok {
			s.render(w, r, http.StatusUnprocessableEntity, "register.html", "Register", form, flash{flashError, userMessage(err)})
			return
		}
		s.serverError(w, r, "Registration failed", err)
	}
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "login.html", "Log in", authForm{Next: r.URL.Query().Get("next")})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.render(w, r, http.StatusBadRequest, "login.html", "Log in", authForm{},
			flash{flashError, "Invalid form submission"})
		return
	}
	username := sanitizeInput(r.PostForm.Get("username"))
	next := r.Form.Get("next")
	form := authForm{Username: username, Next: next}

	u, err := s.accounts.Authenticate(r.Context(), username, r.PostForm.Get("password"))
	if errors.Is(err, core.ErrInvalidCredentials) {
		s.logger.WarnContext(r.Context(), "Login failed",
			log.FieldClientIP, s.detector.ExtractClientIP(r), log.FieldOperation, log.OpLogin)
		s.render(w, r, http.StatusUnauthorized, "login.html", "Log in", form,
			flash{flashError, "Invalid username or password"})
		return
	}
	if err != nil {
		s.serverError(w, r, "Login failed", err)
		return
	}

	tok, err := s.accounts.StartSession(r.Context(), u)
	if err != nil {
		s.serverError(w, r, "Failed to start session", err)
		return
	}
	s.setSessionCookie(w, tok)
	s.logger.InfoContext(r.Context(), "User logged in", log.FieldUserID, u.ID, log.FieldOperation, log.OpLogin)
	s.redirectWithFlash(w, r, safeNext(next), flashSuccess, "Logged in successfully.")
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookieName); err == nil {
		if err := s.accounts.EndSession(r.Context(), c.Value); err != nil {
			s.logger.WarnContext(r.Context(), "Failed to delete session", "error", err)
		}
	}
	s.clearSessionCookie(w)
	s.redirectWithFlash(w, r, "/login", flashInfo, "Logged out.")
}
