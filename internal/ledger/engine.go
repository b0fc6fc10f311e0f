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

var hundred = decimal.NewFromInt(100)

// splitAmount divides a total into the retained and loaned shares for a
// percentage split. The loaned share is the exact complement of the
// rounded retained share, so the two always sum to the total.
func splitAmount(total, split decimal.Decimal) (retained, loaned decimal.Decimal) {
	retained = total.Mul(split).DivRound(hundred, 2)
	loaned = total.Sub(retained)
	return retained, loaned
}

// ShareRequest declares the split of a shared expense: the counterparty
// and the percentage of the total the payer keeps.
type ShareRequest struct {
	WithUserID int64
	Split      string
}

// ExpenseRequest is the input for adding or editing an expense. Share
// is nil for a plain expense. The whole request is validated before any
// mutation begins.
type ExpenseRequest struct {
	Date        string
	CategoryID  int64
	AccountID   int64
	Description string
	Amount      string
	Share       *ShareRequest
}

// expenseInput is an ExpenseRequest after validation.
type expenseInput struct {
	date        string
	categoryID  int64
	accountID   int64
	description string
	amount      decimal.Decimal
	shared      bool
	split       decimal.Decimal
	withUserID  int64
	withPrivate bool
}

// Engine applies expense mutations to the ledger, keeping account
// balances, pairwise loan balances, loan records and expense-loan links
// consistent with each other. Every operation validates its full input
// first and then runs as a single transaction: it either commits
// completely or leaves the ledger untouched.
type Engine struct {
	db *storage.DB
}

// NewEngine creates an Engine on top of the record store.
func NewEngine(db *storage.DB) *Engine {
	return &Engine{db: db}
}

func (e *Engine) validate(tx *storage.Tx, userID int64, req ExpenseRequest) (*expenseInput, error) {
	in := &expenseInput{
		date:        strings.TrimSpace(req.Date),
		categoryID:  req.CategoryID,
		accountID:   req.AccountID,
		description: strings.TrimSpace(req.Description),
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || amount.IsNegative() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, req.Amount)
	}
	in.amount = amount.Round(2)

	if _, err := time.Parse(dateLayout, in.date); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, req.Date)
	}
	if in.description == "" {
		return nil, ErrInvalidDescription
	}
	if _, err := tx.GetAccount(userID, req.AccountID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidAccount
		}
		return nil, err
	}
	if _, err := tx.GetCategory(userID, req.CategoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCategory
		}
		return nil, err
	}

	if req.Share == nil {
		return in, nil
	}
	in.shared = true
	in.withUserID = req.Share.WithUserID

	split, err := decimal.NewFromString(strings.TrimSpace(req.Share.Split))
	if err != nil || !split.IsPositive() || split.GreaterThan(hundred) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPercentage, req.Share.Split)
	}
	in.split = split

	connected, err := tx.IsConnection(userID, in.withUserID)
	if err != nil {
		return nil, err
	}
	if !connected {
		return nil, ErrInvalidCounterparty
	}
	in.withPrivate, err = tx.IsPrivate(in.withUserID)
	return in, err
}

// AddExpense records a new expense and returns its id. A shared request
// also creates the loan, the counterparty's mirror expense and the loan
// links, and moves both users' loan balances.
func (e *Engine) AddExpense(userID int64, req ExpenseRequest) (int64, error) {
	var expenseID int64
	err := e.db.WithTx(func(tx *storage.Tx) error {
		in, err := e.validate(tx, userID, req)
		if err != nil {
			return err
		}

		if !in.shared {
			expenseID, err = tx.CreateExpense(userID, in.date, &in.categoryID, &in.accountID, in.description, in.amount)
			if err != nil {
				return err
			}
			return tx.ModifyUserBalance(userID, in.accountID, in.amount.Neg())
		}

		retained, loaned := splitAmount(in.amount, in.split)

		loanID, err := tx.AddLoan(userID, in.withUserID, in.date, in.accountID, in.description, loaned)
		if err != nil {
			return err
		}
		expenseID, err = tx.CreateExpense(userID, in.date, &in.categoryID, &in.accountID, in.description, retained)
		if err != nil {
			return err
		}
		if err := e.mirrorOut(tx, userID, loanID, in, loaned); err != nil {
			return err
		}
		if err := tx.ModifyLoanBalance(userID, in.withUserID, loaned); err != nil {
			return err
		}
		if err := tx.LinkToLoan(expenseID, loanID, in.withUserID, in.split); err != nil {
			return err
		}
		return tx.ModifyUserBalance(userID, in.accountID, in.amount.Neg())
	})
	return expenseID, err
}

// EditExpense reapplies an expense with new values, reconciling every
// record the sharing state touches. The transition between the old and
// new sharing state decides the mutation sequence.
func (e *Engine) EditExpense(userID, expenseID int64, req ExpenseRequest) error {
	return e.db.WithTx(func(tx *storage.Tx) error {
		detail, err := tx.GetExpenseDetail(userID, expenseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		in, err := e.validate(tx, userID, req)
		if err != nil {
			return err
		}

		loan, err := e.linkedLoan(tx, userID, detail)
		if err != nil {
			return err
		}

		same := detail.Shared && in.shared && detail.SharedWithID == in.withUserID
		switch classify(detail.Shared, in.shared, same, in.withPrivate) {
		case editPlain:
			return e.editPlain(tx, userID, detail, in)
		case shareNew:
			return e.shareOut(tx, userID, detail, in, detail.Expense.Amount)
		case unshare:
			return e.unshare(tx, userID, detail, loan, in)
		case resplitSame:
			return e.resplit(tx, userID, detail, loan, in, false)
		case resplitSamePrivate:
			return e.resplit(tx, userID, detail, loan, in, true)
		default: // shareElsewhere
			if err := e.settle(tx, userID, detail, loan); err != nil {
				return err
			}
			return e.shareOut(tx, userID, detail, in, detail.Expense.Amount.Add(loan.Amount))
		}
	})
}

// DeleteExpense removes an expense, reversing its posting. A shared
// expense is settled first so no loan is left behind.
func (e *Engine) DeleteExpense(userID, expenseID int64) error {
	return e.db.WithTx(func(tx *storage.Tx) error {
		detail, err := tx.GetExpenseDetail(userID, expenseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		loan, err := e.linkedLoan(tx, userID, detail)
		if err != nil {
			return err
		}

		reverse := detail.Expense.Amount
		if detail.Shared {
			if err := e.settle(tx, userID, detail, loan); err != nil {
				return err
			}
			reverse = reverse.Add(loan.Amount)
		}
		if detail.Expense.AccountID != nil {
			if err := tx.ModifyUserBalance(userID, *detail.Expense.AccountID, reverse); err != nil {
				return err
			}
		}
		return tx.DeleteExpense(expenseID)
	})
}

// linkedLoan loads the loan behind a shared expense. A dangling link is
// a consistency failure; an expense somebody else shared with the user
// may not be edited from this side.
func (e *Engine) linkedLoan(tx *storage.Tx, userID int64, d *storage.ExpenseDetail) (*models.Loan, error) {
	if !d.Shared {
		return nil, nil
	}
	loan, err := tx.GetLoan(d.LoanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: loan %d missing for expense %d", ErrInconsistent, d.LoanID, d.Expense.ID)
		}
		return nil, err
	}
	if loan.FromUserID != userID {
		return nil, ErrSharedByOther
	}
	return loan, nil
}

// editPlain rewrites an unshared expense: reverse the old posting on
// the old funding account, post the new amount on the new one.
func (e *Engine) editPlain(tx *storage.Tx, userID int64, d *storage.ExpenseDetail, in *expenseInput) error {
	if err := tx.ModifyUserBalance(userID, *d.Expense.AccountID, d.Expense.Amount); err != nil {
		return err
	}
	if err := tx.ModifyUserBalance(userID, in.accountID, in.amount.Neg()); err != nil {
		return err
	}
	return tx.UpdateExpense(&models.Expense{
		ID:          d.Expense.ID,
		UserID:      userID,
		Date:        in.date,
		CategoryID:  &in.categoryID,
		AccountID:   &in.accountID,
		Description: in.description,
		Amount:      in.amount,
	})
}

// shareOut turns the expense into a shared one: new loan, mirror
// records for a non-private counterparty, loan balances and links.
// reverse is whatever was previously posted on the old funding account.
func (e *Engine) shareOut(tx *storage.Tx, userID int64, d *storage.ExpenseDetail, in *expenseInput, reverse decimal.Decimal) error {
	retained, loaned := splitAmount(in.amount, in.split)

	loanID, err := tx.AddLoan(userID, in.withUserID, in.date, in.accountID, in.description, loaned)
	if err != nil {
		return err
	}
	if err := tx.ModifyUserBalance(userID, *d.Expense.AccountID, reverse); err != nil {
		return err
	}
	if err := tx.ModifyUserBalance(userID, in.accountID, in.amount.Neg()); err != nil {
		return err
	}
	if err := tx.UpdateExpense(&models.Expense{
		ID:          d.Expense.ID,
		UserID:      userID,
		Date:        in.date,
		CategoryID:  &in.categoryID,
		AccountID:   &in.accountID,
		Description: in.description,
		Amount:      retained,
	}); err != nil {
		return err
	}
	if err := e.mirrorOut(tx, userID, loanID, in, loaned); err != nil {
		return err
	}
	if err := tx.ModifyLoanBalance(userID, in.withUserID, loaned); err != nil {
		return err
	}
	return tx.LinkToLoan(d.Expense.ID, loanID, in.withUserID, in.split)
}

// mirrorOut creates the counterparty's side of a new shared expense:
// the mirror expense, their loan balance and their link row. Private
// counterparties get none of it.
func (e *Engine) mirrorOut(tx *storage.Tx, userID, loanID int64, in *expenseInput, loaned decimal.Decimal) error {
	if in.withPrivate {
		return nil
	}
	mirrorID, err := tx.CreateExpense(in.withUserID, in.date, nil, nil, in.description, loaned)
	if err != nil {
		return err
	}
	if err := tx.ModifyLoanBalance(in.withUserID, userID, loaned.Neg()); err != nil {
		return err
	}
	return tx.LinkToLoan(mirrorID, loanID, userID, in.split)
}

// settle reverses everything the shared state posted against the old
// counterparty: both loan balances, the mirror expense, the link rows
// and the loan record itself. Funding-account postings are left to the
// caller.
func (e *Engine) settle(tx *storage.Tx, userID int64, d *storage.ExpenseDetail, loan *models.Loan) error {
	if err := tx.ModifyLoanBalance(userID, d.SharedWithID, loan.Amount.Neg()); err != nil {
		return err
	}
	private, err := tx.IsPrivate(d.SharedWithID)
	if err != nil {
		return err
	}
	if !private {
		mirror, err := tx.GetExpenseDetailByLoan(d.SharedWithID, d.LoanID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: mirror expense missing for loan %d", ErrInconsistent, d.LoanID)
			}
			return err
		}
		if err := tx.DeleteExpense(mirror.Expense.ID); err != nil {
			return err
		}
		if err := tx.ModifyLoanBalance(d.SharedWithID, userID, loan.Amount); err != nil {
			return err
		}
	}
	if err := tx.UnlinkLoan(d.LoanID); err != nil {
		return err
	}
	return tx.DeleteLoan(d.LoanID)
}

// unshare reverts a shared expense to a plain one: settle the pair,
// then reverse the full old posting (retained plus loaned) and post the
// new amount.
func (e *Engine) unshare(tx *storage.Tx, userID int64, d *storage.ExpenseDetail, loan *models.Loan, in *expenseInput) error {
	oldTotal := d.Expense.Amount.Add(loan.Amount)
	if err := e.settle(tx, userID, d, loan); err != nil {
		return err
	}
	if err := tx.ModifyUserBalance(userID, *d.Expense.AccountID, oldTotal); err != nil {
		return err
	}
	if err := tx.ModifyUserBalance(userID, in.accountID, in.amount.Neg()); err != nil {
		return err
	}
	return tx.UpdateExpense(&models.Expense{
		ID:          d.Expense.ID,
		UserID:      userID,
		Date:        in.date,
		CategoryID:  &in.categoryID,
		AccountID:   &in.accountID,
		Description: in.description,
		Amount:      in.amount,
	})
}

// resplit reapplies a shared expense against the same counterparty: the
// loan is edited in place and both loan balances move by the symmetric
// delta between the old and new loaned shares, so an unchanged edit
// nets to zero everywhere.
func (e *Engine) resplit(tx *storage.Tx, userID int64, d *storage.ExpenseDetail, loan *models.Loan, in *expenseInput, private bool) error {
	oldLoaned := loan.Amount
	retained, loaned := splitAmount(in.amount, in.split)

	if err := tx.EditLoan(&models.Loan{
		ID:          loan.ID,
		FromUserID:  userID,
		ToUserID:    in.withUserID,
		Date:        in.date,
		AccountID:   in.accountID,
		Description: in.description,
		Amount:      loaned,
	}); err != nil {
		return err
	}
	if err := tx.ModifyLoanBalance(userID, in.withUserID, loaned.Sub(oldLoaned)); err != nil {
		return err
	}
	if err := tx.ModifyUserBalance(userID, *d.Expense.AccountID, d.Expense.Amount.Add(oldLoaned)); err != nil {
		return err
	}
	if err := tx.ModifyUserBalance(userID, in.accountID, in.amount.Neg()); err != nil {
		return err
	}

	if !private {
		mirror, err := tx.GetExpenseDetailByLoan(in.withUserID, loan.ID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: mirror expense missing for loan %d", ErrInconsistent, loan.ID)
			}
			return err
		}
		mirrorRow := mirror.Expense
		mirrorRow.Date = in.date
		mirrorRow.Description = in.description
		mirrorRow.Amount = loaned
		if err := tx.UpdateExpense(&mirrorRow); err != nil {
			return err
		}
		if err := tx.ModifyLoanBalance(in.withUserID, userID, oldLoaned.Sub(loaned)); err != nil {
			return err
		}
	}

	if err := tx.ModifyLoanLinkPercentage(loan.ID, in.split); err != nil {
		return err
	}
	return tx.UpdateExpense(&models.Expense{
		ID:          d.Expense.ID,
		UserID:      userID,
		Date:        in.date,
		CategoryID:  &in.categoryID,
		AccountID:   &in.accountID,
		Description: in.description,
		Amount:      retained,
	})
}

// AddCategory creates an expense category after checking the slug is
// not already taken by the user.
func (e *Engine) AddCategory(userID int64, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, ErrInvalidName
	}
	slug := Slugify(name)

	var categoryID int64
	err := e.db.WithTx(func(tx *storage.Tx) error {
		_, err := tx.GetCategoryBySlug(userID, slug)
		if err == nil {
			return ErrCategoryExists
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		categoryID, err = tx.CreateCategory(userID, name, slug)
		return err
	})
	return categoryID, err
}
