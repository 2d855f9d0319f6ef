package http

import (
	"errors"
	"net/http"

	"spendwise/internal/core"
)

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "profile.html", "Profile", nil)
}

// handleProfileUpdate dispatches on the form's action field. Every outcome
// redirects back to the profile page with a flash.
func (s *Server) handleProfileUpdate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.redirectWithFlash(w, r, "/profile", flashError, "Invalid form submission")
		return
	}

	switch r.PostForm.Get("action") {
	case "change_username":
		_, err := s.accounts.ChangeUsername(r.Context(), sanitizeInput(r.PostForm.Get("new_username")))
		switch {
		case err == nil:
			s.redirectWithFlash(w, r, "/profile", flashSuccess, "Username updated successfully!")
		case errors.Is(err, core.ErrUsernameTaken):
			s.redirectWithFlash(w, r, "/profile", flashError, "This username is already taken.")
		default:
			s.profileError(w, r, err)
		}

	case "change_password":
		err := s.accounts.ChangePassword(r.Context(), r.PostForm.Get("old_password"), r.PostForm.Get("new_password"))
		if err != nil {
			s.profileError(w, r, err)
			return
		}
		s.redirectWithFlash(w, r, "/profile", flashSuccess, "Password changed successfully!")

	default:
		s.redirectWithFlash(w, r, "/profile", flashError, "Unknown action.")
	}
}

func (s *Server) profileError(w http.ResponseWriter, r *http.Request, err error) {
	if _, ok := core.IsValidation(err); ok {
		s.redirectWithFlash(w, r, "/profile", flashError, userMessage(err))
		return
	}
	s.serverError(w, r, "Profile update failed", err)
}

func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.redirectWithFlash(w, r, "/profile", flashError, "Invalid form submission")
		return
	}

	if err := s.accounts.DeleteAccount(r.Context(), r.PostForm.Get("password")); err != nil {
		s.profileError(w, r, err)
		return
	}

	s.clearSessionCookie(w)
	s.redirectWithFlash(w, r, "/login", flashInfo, "Your account has been permanently deleted.")
}
