package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"budget-tracker/internal/models"
	"budget-tracker/internal/storage"

	"github.com/shopspring/decimal"
)

// Accounts manages a user's accounts and the transfers between them.
// Transfers follow the same reverse-then-reapply pattern as expense
// postings and run inside a single transaction.
type Accounts struct {
	db *storage.DB
}

// NewAccounts creates an Accounts service on top of the record store.
func NewAccounts(db *storage.DB) *Accounts {
	return &Accounts{db: db}
}

// AddAccount creates an account with an optional opening balance. The
// slug derived from the name must be unique per user.
func (a *Accounts) AddAccount(userID int64, name string, typ models.AccountType, balance string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, ErrInvalidName
	}
	if typ != models.AccountAsset && typ != models.AccountLiability {
		return 0, ErrInvalidAccountType
	}
	if strings.TrimSpace(balance) == "" {
		balance = "0"
	}
	opening, err := decimal.NewFromString(strings.TrimSpace(balance))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, balance)
	}
	slug := Slugify(name)

	var accountID int64
	err = a.db.WithTx(func(tx *storage.Tx) error {
		_, err := tx.GetAccountBySlug(userID, slug)
		if err == nil {
			return ErrAccountExists
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		accountID, err = tx.CreateAccount(userID, name, slug, typ, opening.Round(2))
		return err
	})
	return accountID, err
}

// TransferRequest is the input for adding or editing a transfer.
type TransferRequest struct {
	Date          string
	FromAccountID int64
	ToAccountID   int64
	Amount        string
}

func (a *Accounts) validateTransfer(tx *storage.Tx, userID int64, req TransferRequest) (decimal.Decimal, error) {
	if req.FromAccountID == req.ToAccountID {
		return decimal.Zero, ErrSameAccount
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, req.Amount)
	}
	if _, err := time.Parse(dateLayout, req.Date); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidDate, req.Date)
	}
	for _, accountID := range []int64{req.FromAccountID, req.ToAccountID} {
		if _, err := tx.GetAccount(userID, accountID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return decimal.Zero, ErrInvalidAccount
			}
			return decimal.Zero, err
		}
	}
	return amount.Round(2), nil
}

// AddTransfer moves money between two of the user's accounts.
func (a *Accounts) AddTransfer(userID int64, req TransferRequest) (int64, error) {
	var transferID int64
	err := a.db.WithTx(func(tx *storage.Tx) error {
		amount, err := a.validateTransfer(tx, userID, req)
		if err != nil {
			return err
		}
		transferID, err = tx.CreateTransfer(userID, req.Date, req.FromAccountID, req.ToAccountID, amount)
		if err != nil {
			return err
		}
		if err := tx.ModifyUserBalance(userID, req.FromAccountID, amount.Neg()); err != nil {
			return err
		}
		return tx.ModifyUserBalance(userID, req.ToAccountID, amount)
	})
	return transferID, err
}

// EditTransfer rewrites a transfer, restoring the old postings before
// applying the new ones.
func (a *Accounts) EditTransfer(userID, transferID int64, req TransferRequest) error {
	return a.db.WithTx(func(tx *storage.Tx) error {
		old, err := tx.GetTransfer(userID, transferID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		amount, err := a.validateTransfer(tx, userID, req)
		if err != nil {
			return err
		}

		if err := tx.ModifyUserBalance(userID, old.FromAccountID, old.Amount); err != nil {
			return err
		}
		if err := tx.ModifyUserBalance(userID, old.ToAccountID, old.Amount.Neg()); err != nil {
			return err
		}
		if err := tx.ModifyUserBalance(userID, req.FromAccountID, amount.Neg()); err != nil {
			return err
		}
		if err := tx.ModifyUserBalance(userID, req.ToAccountID, amount); err != nil {
			return err
		}

		return tx.UpdateTransfer(&models.Transfer{
			ID:            transferID,
			UserID:        userID,
			Date:          req.Date,
			FromAccountID: req.FromAccountID,
			ToAccountID:   req.ToAccountID,
			Amount:        amount,
		})
	})
}
