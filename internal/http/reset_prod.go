//go:build !dev

package http

import "github.com/go-chi/chi/v5"

func mountResetRoute(chi.Router, *Server) {}
