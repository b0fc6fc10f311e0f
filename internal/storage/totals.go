package storage

import (
	"database/sql"
	"errors"
	"strings"

	"budget-tracker/internal/models"

	"github.com/shopspring/decimal"
)

// AddToTotals adds the deltas to the user's totals row for the month,
// creating the row lazily on first posting.
func (tx *Tx) AddToTotals(userID int64, month string, expenses, income decimal.Decimal) error {
	var t models.MonthlyTotal
	row := tx.tx.QueryRow(
		"SELECT id, expenses, income FROM totals WHERE user_id = ? AND month = ?",
		userID, month,
	)
	err := row.Scan(&t.ID, &t.Expenses, &t.Income)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = tx.tx.Exec(
			"INSERT INTO totals (user_id, month, expenses, income) VALUES (?, ?, ?, ?)",
			userID, month, expenses, income,
		)
		return err
	}
	if err != nil {
		return err
	}
	_, err = tx.tx.Exec(
		"UPDATE totals SET expenses = ?, income = ? WHERE id = ?",
		t.Expenses.Add(expenses), t.Income.Add(income), t.ID,
	)
	return err
}

// ListTotals returns the user's totals rows for the given months, in
// original insertion order. Months with no row are simply absent.
func (tx *Tx) ListTotals(userID int64, months []string) ([]models.MonthlyTotal, error) {
	if len(months) == 0 {
		return nil, nil
	}
	args := []any{userID}
	for _, m := range months {
		args = append(args, m)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(months)), ", ")

	rows, err := tx.tx.Query(
		"SELECT id, user_id, month, expenses, income FROM totals WHERE user_id = ? AND month IN ("+placeholders+") ORDER BY id ASC",
		args...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var totals []models.MonthlyTotal
	for rows.Next() {
		var t models.MonthlyTotal
		if err := rows.Scan(&t.ID, &t.UserID, &t.Month, &t.Expenses, &t.Income); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}
