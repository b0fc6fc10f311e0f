package handlers

import (
	"log"
	"net/http"
	"strconv"
	"strings"

	"budget-tracker/internal/ledger"

	"github.com/shopspring/decimal"
)

// summaryWayback is how many months back the summary page reaches.
const summaryWayback = 5

// MonthSummary is one month's row on the summary page.
type MonthSummary struct {
	Month    string
	Expenses string
	Income   string
	Net      string
	Negative bool
}

// SummaryViewModel is the data passed to the summary template.
type SummaryViewModel struct {
	Months []MonthSummary
	Error  string
}

// Summary renders the recent monthly expense and income totals.
func (h *Handlers) Summary(w http.ResponseWriter, r *http.Request) {
	h.renderSummary(w, r, "")
}

func (h *Handlers) renderSummary(w http.ResponseWriter, r *http.Request, msg string) {
	user := GetUserFromContext(r)

	wayback := summaryWayback
	if v, err := strconv.Atoi(r.URL.Query().Get("months")); err == nil && v > 0 && v <= 24 {
		wayback = v
	}

	totals, err := h.totals.GetTotals(user.ID, wayback)
	if err != nil {
		log.Printf("Summary error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	vm := SummaryViewModel{Error: msg}
	for _, t := range totals {
		net := t.Income.Sub(t.Expenses)
		vm.Months = append(vm.Months, MonthSummary{
			Month:    t.Month,
			Expenses: t.Expenses.StringFixed(2),
			Income:   t.Income.StringFixed(2),
			Net:      net.StringFixed(2),
			Negative: net.IsNegative(),
		})
	}
	h.render(w, r, "summary.html", vm)
}

// AddIncome records income against the monthly totals.
func (h *Handlers) AddIncome(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(r.FormValue("amount")))
	if err != nil || amount.IsNegative() {
		h.renderSummary(w, r, ledger.ErrInvalidAmount.Error())
		return
	}

	if err := h.totals.UpdateIncome(user.ID, amount.Round(2), strings.TrimSpace(r.FormValue("date"))); err != nil {
		if ledger.IsValidation(err) {
			h.renderSummary(w, r, err.Error())
			return
		}
		log.Printf("AddIncome error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.redirect(w, r, "/summary")
}
