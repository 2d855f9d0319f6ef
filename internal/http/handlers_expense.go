package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"spendwise/internal/core"
	"spendwise/internal/log"
)

// DefaultCategories are offered as suggestions on the add form.
var DefaultCategories = []string{"Food", "Travel", "Bills", "Shopping", "Entertainment"}

// bar is one row of a server-rendered bar chart; Width is a percentage of
// the largest value.
type bar struct {
	Label  string
	Amount core.Money
	Width  int
}

// chartData is embedded in the dashboard as JSON for client-side charts.
type chartData struct {
	Categories     []string  `json:"categories"`
	CategoryValues []float64 `json:"cat_values"`
	Months         []string  `json:"months"`
	Totals         []float64 `json:"totals"`
}

type indexPage struct {
	MonthTotal   core.Money
	AllTimeTotal core.Money
	Recent       []core.Expense
	Categories   []bar
	Months       []bar
	Chart        chartData
}

type addPage struct {
	Amount      string
	Category    string
	Description string
	Date        string
	Categories  []string
}

type predictPage struct {
	OK         bool
	Message    string
	Prediction float64
	Slope      float64
	History    []bar
}

func bars(labels []string, amounts []core.Money) []bar {
	var top int64
	for _, a := range amounts {
		if a.Cents > top {
			top = a.Cents
		}
	}
	out := make([]bar, len(labels))
	for i := range labels {
		width := 0
		if top > 0 && amounts[i].Cents > 0 {
			width = int((amounts[i].Cents*100 + top/2) / top)
			if width < 2 {
				width = 2
			}
		}
		out[i] = bar{Label: labels[i], Amount: amounts[i], Width: width}
	}
	return out
}

func seriesBars(series []core.MonthTotal) []bar {
	labels := make([]string, len(series))
	amounts := make([]core.Money, len(series))
	for i, m := range series {
		labels[i], amounts[i] = m.Label, m.Total
	}
	return bars(labels, amounts)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	d, err := s.insights.Dashboard(r.Context(), s.today())
	if err != nil {
		s.serverError(w, r, "Failed to load dashboard", err)
		return
	}

	page := indexPage{
		MonthTotal:   d.Summary.MonthTotal,
		AllTimeTotal: d.Summary.AllTimeTotal,
		Recent:       d.Recent,
		Months:       seriesBars(d.Series),
		Chart: chartData{
			Categories:     []string{},
			CategoryValues: []float64{},
			Months:         []string{},
			Totals:         []float64{},
		},
	}

	catLabels := make([]string, len(d.Categories))
	catAmounts := make([]core.Money, len(d.Categories))
	for i, c := range d.Categories {
		catLabels[i], catAmounts[i] = c.Name, c.Amount
		page.Chart.Categories = append(page.Chart.Categories, c.Name)
		page.Chart.CategoryValues = append(page.Chart.CategoryValues, c.Amount.Units())
	}
	page.Categories = bars(catLabels, catAmounts)
	for _, m := range d.Series {
		page.Chart.Months = append(page.Chart.Months, m.Label)
		page.Chart.Totals = append(page.Chart.Totals, m.Total.Units())
	}

	s.render(w, r, http.StatusOK, "index.html", "Dashboard", page)
}

func (s *Server) handleAddForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "add.html", "Add expense", addPage{
		Date:       s.today().String(),
		Categories: DefaultCategories,
	})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		s.render(w, r, http.StatusBadRequest, "add.html", "Add expense",
			addPage{Date: s.today().String(), Categories: DefaultCategories},
			flash{flashError, "Invalid form submission"})
		return
	}

	fields := expenseFieldsFrom(func(k string) string { return sanitizeInput(r.PostForm.Get(k)) })
	form := addPage{
		Amount:      fields.Amount,
		Category:    fields.Category,
		Description: fields.Description,
		Date:        fields.Date,
		Categories:  DefaultCategories,
	}

	e, err := fields.toExpense(s.today())
	if err == nil {
		e, err = s.expenses.Create(r.Context(), e)
	}
	if err != nil {
		if _, ok := core.IsValidation(err); ok {
			s.render(w, r, http.StatusUnprocessableEntity, "add.html", "Add expense", form,
				flash{flashError, userMessage(err)})
			return
		}
		s.serverError(w, r, "Failed to add expense", err)
		return
	}

	log.FromContext(r.Context()).WithComponent(log.ComponentExpense).DebugContext(r.Context(), "Expense added via form",
		log.NewFields().WithExpense(e.ID, e.Amount.Cents, e.Category).ToSlice()...)
	s.redirectWithFlash(w, r, "/", flashSuccess, "Expense added.")
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(chi.URLParam(r, "id"))
	if !ok {
		s.handleNotFound(w, r)
		return
	}

	err := s.expenses.Delete(r.Context(), id)
	switch {
	case err == nil:
		s.redirectWithFlash(w, r, "/", flashSuccess, "Expense deleted successfully!")
	case errors.Is(err, core.ErrForbidden):
		s.redirectWithFlash(w, r, "/", flashError, "Not allowed!")
	case errors.Is(err, core.ErrNotFound):
		s.handleNotFound(w, r)
	default:
		s.serverError(w, r, "Failed to delete expense", err)
	}
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	f, ok, err := s.insights.Forecast(r.Context())
	if err != nil {
		s.serverError(w, r, "Failed to compute forecast", err)
		return
	}

	page := predictPage{OK: ok, History: seriesBars(f.History)}
	if ok {
		page.Prediction = f.Prediction
		page.Slope = f.Slope
		log.FromContext(r.Context()).WithComponent(log.ComponentInsights).DebugContext(r.Context(), "Forecast computed",
			log.FieldOperation, log.OpForecast, "months", len(f.History), "prediction", f.Prediction)
	} else {
		page.Message = "Not enough historical data (need at least 2 months)."
	}
	s.render(w, r, http.StatusOK, "predict.html", "Forecast", page)
}
