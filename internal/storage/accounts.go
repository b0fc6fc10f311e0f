package storage

import (
	"database/sql"
	"errors"

	"budget-tracker/internal/models"

	"github.com/shopspring/decimal"
)

// CreateAccount inserts a new account and returns its id.
func (tx *Tx) CreateAccount(userID int64, name, slug string, typ models.AccountType, balance decimal.Decimal) (int64, error) {
	result, err := tx.tx.Exec(
		"INSERT INTO accounts (user_id, name, slug, type, balance) VALUES (?, ?, ?, ?, ?)",
		userID, name, slug, typ, balance,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetAccount retrieves one of the user's accounts by id.
func (tx *Tx) GetAccount(userID, accountID int64) (*models.Account, error) {
	row := tx.tx.QueryRow(
		"SELECT id, user_id, name, slug, type, balance FROM accounts WHERE id = ? AND user_id = ?",
		accountID, userID,
	)

	var a models.Account
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Slug, &a.Type, &a.Balance); err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAccountBySlug retrieves one of the user's accounts by slug.
func (tx *Tx) GetAccountBySlug(userID int64, slug string) (*models.Account, error) {
	row := tx.tx.QueryRow(
		"SELECT id, user_id, name, slug, type, balance FROM accounts WHERE slug = ? AND user_id = ?",
		slug, userID,
	)

	var a models.Account
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Slug, &a.Type, &a.Balance); err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAccounts returns all accounts of a user.
func (tx *Tx) ListAccounts(userID int64) ([]models.Account, error) {
	rows, err := tx.tx.Query(
		"SELECT id, user_id, name, slug, type, balance FROM accounts WHERE user_id = ? ORDER BY id",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var a models.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Slug, &a.Type, &a.Balance); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ModifyUserBalance adds a signed delta to one of the user's account
// balances. The read and write happen inside the enclosing transaction.
// Returns sql.ErrNoRows when the account does not belong to the user.
func (tx *Tx) ModifyUserBalance(userID, accountID int64, delta decimal.Decimal) error {
	account, err := tx.GetAccount(userID, accountID)
	if err != nil {
		return err
	}
	_, err = tx.tx.Exec(
		"UPDATE accounts SET balance = ? WHERE id = ?",
		account.Balance.Add(delta), accountID,
	)
	return err
}

// GetLoanBalance returns the amount owed between userID and
// otherUserID as recorded on userID's side. Zero when no row exists.
func (tx *Tx) GetLoanBalance(userID, otherUserID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.tx.QueryRow(
		"SELECT balance FROM loan_balances WHERE user_id = ? AND other_user_id = ?",
		userID, otherUserID,
	).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	return balance, nil
}

// ModifyLoanBalance adds a signed delta to the loan balance userID
// tracks against otherUserID, creating the row on first use.
func (tx *Tx) ModifyLoanBalance(userID, otherUserID int64, delta decimal.Decimal) error {
	balance, err := tx.GetLoanBalance(userID, otherUserID)
	if err != nil {
		return err
	}
	_, err = tx.tx.Exec(`
		INSERT INTO loan_balances (user_id, other_user_id, balance) VALUES (?, ?, ?)
		ON CONFLICT (user_id, other_user_id) DO UPDATE SET balance = excluded.balance
	`, userID, otherUserID, balance.Add(delta))
	return err
}

// CreateTransfer inserts a transfer row and returns its id. Balances
// are posted separately by the caller.
func (tx *Tx) CreateTransfer(userID int64, date string, fromAccountID, toAccountID int64, amount decimal.Decimal) (int64, error) {
	result, err := tx.tx.Exec(
		"INSERT INTO transfers (user_id, date, from_account_id, to_account_id, amount) VALUES (?, ?, ?, ?, ?)",
		userID, date, fromAccountID, toAccountID, amount,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetTransfer retrieves one of the user's transfers by id.
func (tx *Tx) GetTransfer(userID, transferID int64) (*models.Transfer, error) {
	row := tx.tx.QueryRow(
		"SELECT id, user_id, date, from_account_id, to_account_id, amount FROM transfers WHERE id = ? AND user_id = ?",
		transferID, userID,
	)

	var t models.Transfer
	if err := row.Scan(&t.ID, &t.UserID, &t.Date, &t.FromAccountID, &t.ToAccountID, &t.Amount); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpdateTransfer overwrites a transfer's mutable fields.
func (tx *Tx) UpdateTransfer(t *models.Transfer) error {
	_, err := tx.tx.Exec(
		"UPDATE transfers SET date = ?, from_account_id = ?, to_account_id = ?, amount = ? WHERE id = ?",
		t.Date, t.FromAccountID, t.ToAccountID, t.Amount, t.ID,
	)
	return err
}

// TransferFilter narrows ListTransfers. Zero values mean no filter.
type TransferFilter struct {
	AccountID int64
	DateFrom  string
	DateTo    string
}

// ListTransfers returns the user's transfers, newest first.
func (tx *Tx) ListTransfers(userID int64, f TransferFilter) ([]models.Transfer, error) {
	query := "SELECT id, user_id, date, from_account_id, to_account_id, amount FROM transfers WHERE user_id = ?"
	args := []any{userID}
	if f.AccountID != 0 {
		query += " AND (from_account_id = ? OR to_account_id = ?)"
		args = append(args, f.AccountID, f.AccountID)
	}
	if f.DateFrom != "" {
		query += " AND date >= ?"
		args = append(args, f.DateFrom)
	}
	if f.DateTo != "" {
		query += " AND date <= ?"
		args = append(args, f.DateTo)
	}
	query += " ORDER BY date DESC, id DESC"

	rows, err := tx.tx.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []models.Transfer
	for rows.Next() {
		var t models.Transfer
		if err := rows.Scan(&t.ID, &t.UserID, &t.Date, &t.FromAccountID, &t.ToAccountID, &t.Amount); err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}
