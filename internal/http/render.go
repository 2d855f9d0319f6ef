package http

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strconv"

	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/log"
)

const layoutTemplate = "templates/base.html"

var templateFuncs = template.FuncMap{
	"money": func(m core.Money) string { return m.String() },
	"units": func(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) },
}

// parseTemplates builds one template set per page, each layered over the
// shared layout.
func parseTemplates(fsys fs.FS) (map[string]*template.Template, error) {
	layout, err := template.New(path.Base(layoutTemplate)).Funcs(templateFuncs).ParseFS(fsys, layoutTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	pages, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, err
	}
	out := make(map[string]*template.Template, len(pages))
	for _, p := range pages {
		if p == layoutTemplate {
			continue
		}
		t, err := layout.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(fsys, p); err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		out[path.Base(p)] = t
	}
	return out, nil
}

// view is what every page template receives.
type view struct {
	Title   string
	User    *core.User
	Flashes []flash
	Data    any
}

// render executes page into a buffer first so a template error never leaves
// a half-written response. extra messages show alongside queued flashes.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any, extra ...flash) {
	t, ok := s.templates[page]
	if !ok {
		s.logger.ErrorContext(r.Context(), "Unknown template", "template", page)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	v := view{Title: title, Flashes: append(popFlashes(w, r, s.cfg.SecureCookies), extra...), Data: data}
	if u, ok := auth.UserFromContext(r.Context()); ok {
		v.User = &u
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, path.Base(layoutTemplate), v); err != nil {
		s.slog.LogError(r.Context(), "Template execution failed", err, log.ErrorTypeInternal,
			log.ComponentTemplate, log.OpRender, log.NewFields().WithUser(userID(r)))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func userID(r *http.Request) int64 {
	if u, ok := auth.UserFromContext(r.Context()); ok {
		return u.ID
	}
	return 0
}
