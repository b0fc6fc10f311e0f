package ledger

import (
	"budget-tracker/internal/models"
	"budget-tracker/internal/storage"

	"github.com/shopspring/decimal"
)

// Totals maintains the per-user monthly expense/income running sums.
type Totals struct {
	db *storage.DB
}

// NewTotals creates a Totals aggregator on top of the record store.
func NewTotals(db *storage.DB) *Totals {
	return &Totals{db: db}
}

// UpdateExpense adds amount to the user's expense total for the month
// of the given date.
func (t *Totals) UpdateExpense(userID int64, amount decimal.Decimal, date string) error {
	month, err := NewMonthKey(date)
	if err != nil {
		return err
	}
	return t.db.WithTx(func(tx *storage.Tx) error {
		return tx.AddToTotals(userID, month.String(), amount, decimal.Zero)
	})
}

// UpdateIncome adds amount to the user's income total for the month of
// the given date.
func (t *Totals) UpdateIncome(userID int64, amount decimal.Decimal, date string) error {
	month, err := NewMonthKey(date)
	if err != nil {
		return err
	}
	return t.db.WithTx(func(tx *storage.Tx) error {
		return tx.AddToTotals(userID, month.String(), decimal.Zero, amount)
	})
}

// GetTotals returns the user's existing totals rows for the wayback
// most recent months, in original insertion order. Months without
// activity have no row and are simply absent.
func (t *Totals) GetTotals(userID int64, wayback int) ([]models.MonthlyTotal, error) {
	current, err := NewMonthKey("today")
	if err != nil {
		return nil, err
	}
	months := make([]string, 0, wayback)
	for i := range wayback {
		months = append(months, current.Subtract(i).String())
	}

	var totals []models.MonthlyTotal
	err = t.db.WithTx(func(tx *storage.Tx) error {
		var err error
		totals, err = tx.ListTotals(userID, months)
		return err
	})
	return totals, err
}
