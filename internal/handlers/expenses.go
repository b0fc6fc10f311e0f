package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"budget-tracker/internal/ledger"
	"budget-tracker/internal/models"
	"budget-tracker/internal/storage"

	"github.com/shopspring/decimal"
)

// ExpenseItem represents an expense in the list view.
type ExpenseItem struct {
	ID          int64
	Date        string
	Description string
	Amount      string
	Category    string
	Mirror      bool
}

// ExpenseListViewModel is the data passed to the expense list template.
type ExpenseListViewModel struct {
	Items      []ExpenseItem
	Total      string
	Categories []models.ExpenseCategory
	Category   string
	DateFrom   string
	DateTo     string
}

// ExpenseFormViewModel is the data passed to the expense form template.
type ExpenseFormViewModel struct {
	IsEdit      bool
	ID          int64
	Date        string
	Amount      string
	Description string
	CategoryID  int64
	AccountID   int64
	Shared      bool
	SharedWith  int64
	Split       string
	Categories  []models.ExpenseCategory
	Accounts    []models.Account
	Connections []models.User
	Error       string
}

// ListExpenses renders the user's expenses, optionally filtered by
// category slug and date range.
func (h *Handlers) ListExpenses(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	filter := storage.ExpenseFilter{
		DateFrom: r.URL.Query().Get("from"),
		DateTo:   r.URL.Query().Get("to"),
	}
	categorySlug := r.URL.Query().Get("category")

	vm := ExpenseListViewModel{
		Category: categorySlug,
		DateFrom: filter.DateFrom,
		DateTo:   filter.DateTo,
	}
	err := h.db.WithTx(func(tx *storage.Tx) error {
		var err error
		vm.Categories, err = tx.ListCategories(user.ID)
		if err != nil {
			return err
		}
		if categorySlug != "" {
			category, err := tx.GetCategoryBySlug(user.ID, categorySlug)
			if err != nil {
				// Unknown slug filters everything out
				filter.CategoryID = -1
			} else {
				filter.CategoryID = category.ID
			}
		}

		expenses, err := tx.ListExpenses(user.ID, filter)
		if err != nil {
			return err
		}

		names := make(map[int64]string, len(vm.Categories))
		for _, c := range vm.Categories {
			names[c.ID] = c.Name
		}

		total := decimal.Zero
		for _, e := range expenses {
			item := ExpenseItem{
				ID:          e.ID,
				Date:        e.Date,
				Description: e.Description,
				Amount:      e.Amount.StringFixed(2),
				// Mirror expenses arrive from a connection and carry no
				// category or funding account of their own.
				Mirror: e.CategoryID == nil,
			}
			if e.CategoryID != nil {
				item.Category = names[*e.CategoryID]
			}
			total = total.Add(e.Amount)
			vm.Items = append(vm.Items, item)
		}
		vm.Total = total.StringFixed(2)
		return nil
	})
	if err != nil {
		log.Printf("ListExpenses error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	h.render(w, r, "expenses.html", vm)
}

// formChoices loads the selects an expense form needs.
func (h *Handlers) formChoices(userID int64, vm *ExpenseFormViewModel) error {
	return h.db.WithTx(func(tx *storage.Tx) error {
		var err error
		if vm.Categories, err = tx.ListCategories(userID); err != nil {
			return err
		}
		if vm.Accounts, err = tx.ListAccounts(userID); err != nil {
			return err
		}
		vm.Connections, err = tx.GetConnections(userID)
		return err
	})
}

// CreateExpenseForm renders the form to create a new expense.
func (h *Handlers) CreateExpenseForm(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	vm := ExpenseFormViewModel{Split: "50"}
	if err := h.formChoices(user.ID, &vm); err != nil {
		log.Printf("CreateExpenseForm error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "expense_form.html", vm)
}

// EditExpenseForm renders the form to edit an existing expense.
func (h *Handlers) EditExpenseForm(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)

	vm := ExpenseFormViewModel{IsEdit: true, ID: id}
	err := h.db.WithTx(func(tx *storage.Tx) error {
		detail, err := tx.GetExpenseDetail(user.ID, id)
		if err != nil {
			return err
		}
		vm.Date = detail.Expense.Date
		vm.Description = detail.Expense.Description
		vm.Amount = detail.Expense.Amount.StringFixed(2)
		if detail.Expense.CategoryID != nil {
			vm.CategoryID = *detail.Expense.CategoryID
		}
		if detail.Expense.AccountID != nil {
			vm.AccountID = *detail.Expense.AccountID
		}
		if detail.Shared {
			loan, err := tx.GetLoan(detail.LoanID)
			if err != nil {
				return err
			}
			if loan.FromUserID != user.ID {
				// Shared with us by somebody else, nothing to edit here
				return ledger.ErrSharedByOther
			}
			vm.Shared = true
			vm.SharedWith = detail.SharedWithID
			vm.Split = detail.Percentage.String()
			// The form shows the full declared amount
			vm.Amount = detail.Expense.Amount.Add(loan.Amount).StringFixed(2)
		}
		return nil
	})
	if err != nil {
		h.redirect(w, r, "/expenses")
		return
	}

	if err := h.formChoices(user.ID, &vm); err != nil {
		log.Printf("EditExpenseForm error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "expense_form.html", vm)
}

func parseExpenseForm(r *http.Request) (ledger.ExpenseRequest, error) {
	if err := r.ParseForm(); err != nil {
		return ledger.ExpenseRequest{}, err
	}
	categoryID, _ := strconv.ParseInt(r.FormValue("category"), 10, 64)
	accountID, _ := strconv.ParseInt(r.FormValue("deduct_from"), 10, 64)

	req := ledger.ExpenseRequest{
		Date:        r.FormValue("date"),
		CategoryID:  categoryID,
		AccountID:   accountID,
		Description: r.FormValue("description"),
		Amount:      r.FormValue("amount"),
	}
	if r.FormValue("is_shared") != "" {
		withUserID, _ := strconv.ParseInt(r.FormValue("user"), 10, 64)
		req.Share = &ledger.ShareRequest{
			WithUserID: withUserID,
			Split:      r.FormValue("split"),
		}
	}
	return req, nil
}

// rerenderExpenseForm shows the form again with the submitted values
// and a validation message.
func (h *Handlers) rerenderExpenseForm(w http.ResponseWriter, r *http.Request, userID, id int64, req ledger.ExpenseRequest, msg string) {
	vm := ExpenseFormViewModel{
		IsEdit:      id != 0,
		ID:          id,
		Date:        req.Date,
		Amount:      req.Amount,
		Description: req.Description,
		CategoryID:  req.CategoryID,
		AccountID:   req.AccountID,
		Split:       "50",
		Error:       msg,
	}
	if req.Share != nil {
		vm.Shared = true
		vm.SharedWith = req.Share.WithUserID
		vm.Split = req.Share.Split
	}
	if err := h.formChoices(userID, &vm); err != nil {
		log.Printf("expense form error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "expense_form.html", vm)
}

// CreateExpense handles the creation of a new expense.
func (h *Handlers) CreateExpense(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	req, err := parseExpenseForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := h.engine.AddExpense(user.ID, req); err != nil {
		if ledger.IsValidation(err) {
			h.rerenderExpenseForm(w, r, user.ID, 0, req, err.Error())
			return
		}
		log.Printf("CreateExpense error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// The monthly total counts the full declared amount, shared or not
	if amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount)); err == nil {
		if err := h.totals.UpdateExpense(user.ID, amount.Round(2), strings.TrimSpace(req.Date)); err != nil {
			log.Printf("totals update error: %v", err)
		}
	}

	h.redirect(w, r, "/expenses")
}

// UpdateExpense handles the update of an existing expense.
func (h *Handlers) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)

	req, err := parseExpenseForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.engine.EditExpense(user.ID, id, req); err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			h.redirect(w, r, "/expenses")
		case ledger.IsValidation(err):
			h.rerenderExpenseForm(w, r, user.ID, id, req, err.Error())
		default:
			log.Printf("UpdateExpense error: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	h.redirect(w, r, "/expenses")
}

// DeleteExpense removes an expense and its sharing records.
func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)

	if err := h.engine.DeleteExpense(user.ID, id); err != nil {
		if !errors.Is(err, ledger.ErrNotFound) && !ledger.IsValidation(err) {
			log.Printf("DeleteExpense error: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	}
	h.redirect(w, r, "/expenses")
}

// CategoriesViewModel is the data passed to the categories template.
type CategoriesViewModel struct {
	Categories []models.ExpenseCategory
	Error      string
}

// ListCategoriesPage renders the user's categories with the add form.
func (h *Handlers) ListCategoriesPage(w http.ResponseWriter, r *http.Request) {
	h.renderCategories(w, r, "")
}

// CreateCategory adds a new expense category.
func (h *Handlers) CreateCategory(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := h.engine.AddCategory(user.ID, r.FormValue("name")); err != nil {
		if ledger.IsValidation(err) {
			h.renderCategories(w, r, err.Error())
			return
		}
		log.Printf("CreateCategory error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.redirect(w, r, "/categories")
}

func (h *Handlers) renderCategories(w http.ResponseWriter, r *http.Request, msg string) {
	user := GetUserFromContext(r)
	vm := CategoriesViewModel{Error: msg}
	err := h.db.WithTx(func(tx *storage.Tx) error {
		var err error
		vm.Categories, err = tx.ListCategories(user.ID)
		return err
	})
	if err != nil {
		log.Printf("ListCategories error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "categories.html", vm)
}
