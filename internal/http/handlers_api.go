package http

import (
	"net/http"

	"spendwise/internal/core"
	"spendwise/internal/log"
)

// handleAPIAdd creates an expense from a JSON body
// {"amount": 12.5 | "12.50", "category": "...", "description": "...", "date": "YYYY-MM-DD"}.
// Unlike the form, the date is required.
func (s *Server) handleAPIAdd(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		apiError(http.StatusBadRequest, err.Error()).Write(w)
		return
	}
	for _, field := range []string{"amount", "category", "date"} {
		if !p.Has(field) {
			apiError(http.StatusBadRequest, "missing field: "+field).Write(w)
			return
		}
	}

	e, err := expenseFieldsFrom(p.Get).toExpense(core.Date{})
	if err == nil {
		e, err = s.expenses.Create(r.Context(), e)
	}
	if err != nil {
		if _, ok := core.IsValidation(err); ok {
			apiError(http.StatusBadRequest, userMessage(err)).Write(w)
			return
		}
		s.slog.LogError(r.Context(), "API add failed", err, errorType(err), log.ComponentHTTP, log.OpCreate,
			log.NewFields().WithUser(userID(r)))
		apiError(statusFor(err), userMessage(err)).Write(w)
		return
	}

	NewAPIResponse().ID(e.ID).Write(w)
}
