package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User represents a user account. Private users opt out of bidirectional
// mirroring: expenses shared with them never touch their own books.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Private      bool      `json:"private"`
	CreatedAt    time.Time `json:"created_at"`
}

// Session represents a user session.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AccountType distinguishes what a balance means for net worth.
type AccountType string

const (
	AccountAsset     AccountType = "asset"
	AccountLiability AccountType = "liability"
)

// Account is a balance-bearing account owned by one user. The balance is
// only ever changed by signed increments, never set directly.
type Account struct {
	ID      int64           `json:"id"`
	UserID  int64           `json:"user_id"`
	Name    string          `json:"name"`
	Slug    string          `json:"slug"`
	Type    AccountType     `json:"type"`
	Balance decimal.Decimal `json:"balance"`
}

// ExpenseCategory is a per-user expense category. The slug is unique per
// user; uniqueness is checked before insert, not by the store.
type ExpenseCategory struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	Name   string `json:"name"`
	Slug   string `json:"slug"`
}

// Expense is a single expense of a user. A shared expense carries only
// the payer's retained share; the loaned share lives on the linked Loan.
// Mirror expenses created for a counterparty have no category or
// funding account, hence the pointers.
type Expense struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Date        string          `json:"date"` // YYYY-MM-DD
	CategoryID  *int64          `json:"category_id,omitempty"`
	AccountID   *int64          `json:"account_id,omitempty"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// Loan records that ToUserID owes Amount to FromUserID. The amount is
// mutated in place on edits; the loan keeps its identity.
type Loan struct {
	ID          int64           `json:"id"`
	FromUserID  int64           `json:"from_user_id"`
	ToUserID    int64           `json:"to_user_id"`
	Date        string          `json:"date"`
	AccountID   int64           `json:"account_id"` // context only, not a posting target
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// ExpenseLoan links one expense to the loan that funds its shared part.
// Both sides of a shared expense get their own link row; the borrower's
// row records the lender as SharedWithID.
type ExpenseLoan struct {
	ID           int64           `json:"id"`
	ExpenseID    int64           `json:"expense_id"`
	LoanID       int64           `json:"loan_id"`
	SharedWithID int64           `json:"shared_with_id"`
	Percentage   decimal.Decimal `json:"percentage"`
}

// Transfer moves money between two accounts of the same user.
type Transfer struct {
	ID            int64           `json:"id"`
	UserID        int64           `json:"user_id"`
	Date          string          `json:"date"`
	FromAccountID int64           `json:"from_account_id"`
	ToAccountID   int64           `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
}

// MonthlyTotal holds the running expense/income sums of a user for one
// month, keyed by a "YYYY-MM" string. Rows are created lazily on first
// posting and never deleted.
type MonthlyTotal struct {
	ID       int64           `json:"id"`
	UserID   int64           `json:"user_id"`
	Month    string          `json:"month"`
	Expenses decimal.Decimal `json:"expenses"`
	Income   decimal.Decimal `json:"income"`
}
