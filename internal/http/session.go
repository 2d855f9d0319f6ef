package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/services"
)

const sessionCookieName = "session"

func (s *Server) setSessionCookie(w http.ResponseWriter, tok services.SessionToken) {
	maxAge := int(tok.ExpiresAt.Sub(s.now()).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    tok.Value,
		Path:     "/",
		Expires:  tok.ExpiresAt,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// loadSession resolves the session cookie, if any, and puts the user in the
// request context. Sessions past their half-life get a fresh cookie.
func (s *Server) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookieName)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}

		u, renewed, err := s.accounts.ResolveSession(r.Context(), c.Value)
		switch {
		case errors.Is(err, core.ErrUnauthenticated):
			s.clearSessionCookie(w)
			next.ServeHTTP(w, r)
			return
		case err != nil:
			s.serverError(w, r, "Session lookup failed", err)
			return
		}

		if renewed != nil {
			s.setSessionCookie(w, *renewed)
		}
		ctx := auth.WithUser(r.Context(), u)
		ctx = log.WithLogger(ctx, log.FromContext(ctx).With(log.FieldUserID, u.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireUser sends anonymous visitors to the login page, remembering
// where they were headed.
func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		target := "/login"
		if r.Method == http.MethodGet && r.URL.Path != "/" && r.URL.Path != "/logout" {
			target += "?next=" + url.QueryEscape(r.URL.RequestURI())
		}
		http.Redirect(w, r, target, http.StatusFound)
	})
}

// requireAPIUser answers anonymous API calls with a JSON 401.
func (s *Server) requireAPIUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserFromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		apiError(http.StatusUnauthorized, "authentication required").Write(w)
	})
}

func (s *Server) redirectIfAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.UserFromContext(r.Context()); ok {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limitCredentials(next http.Handler) http.Handler {
	return s.credLimiter.Middleware(s.detector.ExtractClientIP, s.credentialsRateLimited)(next)
}

func (s *Server) credentialsRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r), log.FieldPath, r.URL.Path)
	http.Error(w, "Too many attempts. Please try again later.", http.StatusTooManyRequests)
}

func (s *Server) apiRateLimited(w http.ResponseWriter, r *http.Request) {
	apiError(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
}

// safeNext accepts only same-site absolute paths as a post-login target.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return "/"
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	return next
}
