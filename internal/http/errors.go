package http

import (
	"errors"
	"net/http"

	"spendwise/internal/core"
	"spendwise/internal/log"
)

const genericErrorMessage = "Something went wrong. Please try again."

// errorType classifies err for structured logs.
func errorType(err error) string {
	var pe *core.PersistenceError
	switch {
	case errors.As(err, &pe):
		return log.ErrorTypeDatabase
	case errors.Is(err, core.ErrNotFound):
		return log.ErrorTypeNotFound
	case errors.Is(err, core.ErrForbidden):
		return log.ErrorTypeForbidden
	case errors.Is(err, core.ErrUnauthenticated), errors.Is(err, core.ErrInvalidCredentials):
		return log.ErrorTypeAuth
	case errors.Is(err, core.ErrUsernameTaken):
		return log.ErrorTypeConflict
	}
	if _, ok := core.IsValidation(err); ok {
		return log.ErrorTypeValidation
	}
	return log.ErrorTypeInternal
}

// statusFor maps a service error onto an HTTP status.
func statusFor(err error) int {
	switch errorType(err) {
	case log.ErrorTypeValidation:
		return http.StatusUnprocessableEntity
	case log.ErrorTypeNotFound:
		return http.StatusNotFound
	case log.ErrorTypeForbidden:
		return http.StatusForbidden
	case log.ErrorTypeAuth:
		return http.StatusUnauthorized
	case log.ErrorTypeConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// userMessage is the text safe to show for err.
func userMessage(err error) string {
	if ve, ok := core.IsValidation(err); ok {
		return ve.Msg
	}
	switch {
	case errors.Is(err, core.ErrNotFound):
		return "Not found."
	case errors.Is(err, core.ErrForbidden):
		return "Not allowed!"
	case errors.Is(err, core.ErrUnauthenticated):
		return "Please log in."
	case errors.Is(err, core.ErrInvalidCredentials):
		return "Invalid username or password"
	case errors.Is(err, core.ErrUsernameTaken):
		return "Username already exists"
	}
	return genericErrorMessage
}

// serverError logs err with its cause and answers with a generic 500.
func (s *Server) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.slog.LogError(r.Context(), msg, err, errorType(err), log.ComponentHTTP, r.Method+" "+r.URL.Path,
		log.NewFields().WithUser(userID(r)))
	http.Error(w, genericErrorMessage, http.StatusInternalServerError)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "error.html", "Not found", errorPage{
		Status:  http.StatusNotFound,
		Message: "The page you are looking for does not exist.",
	})
}

type errorPage struct {
	Status  int
	Message string
}
