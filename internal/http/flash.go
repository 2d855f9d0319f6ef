package http

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
)

const flashCookieName = "flash"

// Flash categories, used as CSS classes.
const (
	flashSuccess = "success"
	flashError   = "error"
	flashInfo    = "info"
)

// flash is a one-shot message shown on the next rendered page.
type flash struct {
	Kind    string `json:"k"`
	Message string `json:"m"`
}

// setFlash queues a message for the next page the browser renders.
func setFlash(w http.ResponseWriter, secure bool, kind, message string) {
	raw, err := json.Marshal([]flash{{Kind: kind, Message: message}})
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// popFlashes reads pending messages and clears the cookie.
func popFlashes(w http.ResponseWriter, r *http.Request, secure bool) []flash {
	c, err := r.Cookie(flashCookieName)
	if err != nil || c.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	var out []flash
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

// redirectWithFlash is the post/redirect/get exit used by form handlers.
func (s *Server) redirectWithFlash(w http.ResponseWriter, r *http.Request, to, kind, message string) {
	setFlash(w, s.cfg.SecureCookies, kind, message)
	http.Redirect(w, r, to, http.StatusFound)
}
