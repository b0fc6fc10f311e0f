package storage

import (
	"database/sql"

	"budget-tracker/internal/models"

	"github.com/shopspring/decimal"
)

// CreateCategory inserts an expense category and returns its id.
func (tx *Tx) CreateCategory(userID int64, name, slug string) (int64, error) {
	result, err := tx.tx.Exec(
		"INSERT INTO expense_categories (user_id, name, slug) VALUES (?, ?, ?)",
		userID, name, slug,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetCategory retrieves one of the user's categories by id.
func (tx *Tx) GetCategory(userID, categoryID int64) (*models.ExpenseCategory, error) {
	row := tx.tx.QueryRow(
		"SELECT id, user_id, name, slug FROM expense_categories WHERE id = ? AND user_id = ?",
		categoryID, userID,
	)

	var c models.ExpenseCategory
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Slug); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCategoryBySlug retrieves one of the user's categories by slug.
func (tx *Tx) GetCategoryBySlug(userID int64, slug string) (*models.ExpenseCategory, error) {
	row := tx.tx.QueryRow(
		"SELECT id, user_id, name, slug FROM expense_categories WHERE slug = ? AND user_id = ?",
		slug, userID,
	)

	var c models.ExpenseCategory
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Slug); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCategories returns all categories of a user.
func (tx *Tx) ListCategories(userID int64) ([]models.ExpenseCategory, error) {
	rows, err := tx.tx.Query(
		"SELECT id, user_id, name, slug FROM expense_categories WHERE user_id = ? ORDER BY name",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var categories []models.ExpenseCategory
	for rows.Next() {
		var c models.ExpenseCategory
		if err := rows.Scan(&c.ID, &c.UserID, &c.Name, &c.Slug); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// CreateExpense inserts a new expense and returns its id. Mirror
// expenses created for a counterparty pass nil category and account.
func (tx *Tx) CreateExpense(userID int64, date string, categoryID, accountID *int64, description string, amount decimal.Decimal) (int64, error) {
	result, err := tx.tx.Exec(
		"INSERT INTO expenses (user_id, date, category_id, account_id, description, amount) VALUES (?, ?, ?, ?, ?, ?)",
		userID, date, nullID(categoryID), nullID(accountID), description, amount,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetExpense retrieves one of the user's expenses by id.
func (tx *Tx) GetExpense(userID, expenseID int64) (*models.Expense, error) {
	row := tx.tx.QueryRow(
		"SELECT id, user_id, date, category_id, account_id, description, amount FROM expenses WHERE id = ? AND user_id = ?",
		expenseID, userID,
	)
	return scanExpense(row)
}

// UpdateExpense overwrites an expense's mutable fields.
func (tx *Tx) UpdateExpense(e *models.Expense) error {
	_, err := tx.tx.Exec(
		"UPDATE expenses SET date = ?, category_id = ?, account_id = ?, description = ?, amount = ? WHERE id = ?",
		e.Date, nullID(e.CategoryID), nullID(e.AccountID), e.Description, e.Amount, e.ID,
	)
	return err
}

// DeleteExpense removes an expense row.
func (tx *Tx) DeleteExpense(expenseID int64) error {
	_, err := tx.tx.Exec("DELETE FROM expenses WHERE id = ?", expenseID)
	return err
}

// ExpenseFilter narrows ListExpenses. Zero values mean no filter.
type ExpenseFilter struct {
	CategoryID int64
	DateFrom   string
	DateTo     string
}

// ListExpenses returns the user's expenses, newest first.
func (tx *Tx) ListExpenses(userID int64, f ExpenseFilter) ([]models.Expense, error) {
	query := "SELECT id, user_id, date, category_id, account_id, description, amount FROM expenses WHERE user_id = ?"
	args := []any{userID}
	if f.CategoryID != 0 {
		query += " AND category_id = ?"
		args = append(args, f.CategoryID)
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

	var expenses []models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

// ExpenseDetail is the denormalized read the reconciliation engine
// branches on: the expense row plus its loan link, if any.
type ExpenseDetail struct {
	Expense      models.Expense
	Shared       bool
	LoanID       int64
	SharedWithID int64
	Percentage   decimal.Decimal
}

const expenseDetailQuery = `
	SELECT e.id, e.user_id, e.date, e.category_id, e.account_id, e.description, e.amount,
	       l.loan_id, l.shared_with_id, l.percentage
	FROM expenses e
	LEFT JOIN expense_loans l ON l.expense_id = e.id
	WHERE e.user_id = ?`

// GetExpenseDetail returns the expense together with its sharing state.
func (tx *Tx) GetExpenseDetail(userID, expenseID int64) (*ExpenseDetail, error) {
	row := tx.tx.QueryRow(expenseDetailQuery+" AND e.id = ?", userID, expenseID)
	return scanExpenseDetail(row)
}

// GetExpenseDetailByLoan returns the user's expense linked to the given
// loan; for a counterparty this finds the mirror expense.
func (tx *Tx) GetExpenseDetailByLoan(userID, loanID int64) (*ExpenseDetail, error) {
	row := tx.tx.QueryRow(expenseDetailQuery+" AND l.loan_id = ?", userID, loanID)
	return scanExpenseDetail(row)
}

// LinkToLoan records that an expense is backed by a loan, with the
// percentage the expense owner retained and the counterparty for this
// specific row.
func (tx *Tx) LinkToLoan(expenseID, loanID, sharedWithID int64, percentage decimal.Decimal) error {
	_, err := tx.tx.Exec(
		"INSERT INTO expense_loans (expense_id, loan_id, shared_with_id, percentage) VALUES (?, ?, ?, ?)",
		expenseID, loanID, sharedWithID, percentage,
	)
	return err
}

// UnlinkLoan removes every link row referencing the loan.
func (tx *Tx) UnlinkLoan(loanID int64) error {
	_, err := tx.tx.Exec("DELETE FROM expense_loans WHERE loan_id = ?", loanID)
	return err
}

// ModifyLoanLinkPercentage rewrites the split on every link row of the loan.
func (tx *Tx) ModifyLoanLinkPercentage(loanID int64, percentage decimal.Decimal) error {
	_, err := tx.tx.Exec("UPDATE expense_loans SET percentage = ? WHERE loan_id = ?", percentage, loanID)
	return err
}

type scannable interface {
	Scan(dest ...any) error
}

func scanExpense(row scannable) (*models.Expense, error) {
	var e models.Expense
	var categoryID, accountID sql.NullInt64
	if err := row.Scan(&e.ID, &e.UserID, &e.Date, &categoryID, &accountID, &e.Description, &e.Amount); err != nil {
		return nil, err
	}
	e.CategoryID = idPtr(categoryID)
	e.AccountID = idPtr(accountID)
	return &e, nil
}

func scanExpenseDetail(row scannable) (*ExpenseDetail, error) {
	var d ExpenseDetail
	var categoryID, accountID, loanID, sharedWithID sql.NullInt64
	var percentage sql.NullString
	err := row.Scan(&d.Expense.ID, &d.Expense.UserID, &d.Expense.Date, &categoryID, &accountID,
		&d.Expense.Description, &d.Expense.Amount, &loanID, &sharedWithID, &percentage)
	if err != nil {
		return nil, err
	}
	d.Expense.CategoryID = idPtr(categoryID)
	d.Expense.AccountID = idPtr(accountID)
	if loanID.Valid {
		d.Shared = true
		d.LoanID = loanID.Int64
		d.SharedWithID = sharedWithID.Int64
		d.Percentage, err = decimal.NewFromString(percentage.String)
		if err != nil {
			return nil, err
		}
	}
	return &d, nil
}

func nullID(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func idPtr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
