package storage

import (
	"budget-tracker/internal/models"

	"github.com/shopspring/decimal"
)

// AddLoan creates a loan record: toUserID owes amount to fromUserID.
func (tx *Tx) AddLoan(fromUserID, toUserID int64, date string, accountID int64, description string, amount decimal.Decimal) (int64, error) {
	result, err := tx.tx.Exec(
		"INSERT INTO loans (from_user_id, to_user_id, date, account_id, description, amount) VALUES (?, ?, ?, ?, ?, ?)",
		fromUserID, toUserID, date, accountID, description, amount,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetLoan retrieves a loan by id.
func (tx *Tx) GetLoan(loanID int64) (*models.Loan, error) {
	row := tx.tx.QueryRow(
		"SELECT id, from_user_id, to_user_id, date, account_id, description, amount FROM loans WHERE id = ?",
		loanID,
	)

	var l models.Loan
	if err := row.Scan(&l.ID, &l.FromUserID, &l.ToUserID, &l.Date, &l.AccountID, &l.Description, &l.Amount); err != nil {
		return nil, err
	}
	return &l, nil
}

// EditLoan overwrites a loan's mutable fields in place, preserving its
// identity across edits.
func (tx *Tx) EditLoan(l *models.Loan) error {
	_, err := tx.tx.Exec(
		"UPDATE loans SET to_user_id = ?, date = ?, account_id = ?, description = ?, amount = ? WHERE id = ?",
		l.ToUserID, l.Date, l.AccountID, l.Description, l.Amount, l.ID,
	)
	return err
}

// DeleteLoan removes a loan record. Callers unlink any expense links
// referencing it as part of the same transaction.
func (tx *Tx) DeleteLoan(loanID int64) error {
	_, err := tx.tx.Exec("DELETE FROM loans WHERE id = ?", loanID)
	return err
}
