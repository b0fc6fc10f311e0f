package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"budget-tracker/internal/ledger"
	"budget-tracker/internal/models"
	"budget-tracker/internal/storage"
)

// AccountItem represents an account in the list view.
type AccountItem struct {
	ID      int64
	Name    string
	Type    models.AccountType
	Balance string
}

// DebtItem is one pairwise loan balance: positive means the connection
// owes the user money.
type DebtItem struct {
	Username string
	Balance  string
	Negative bool
}

// AccountsViewModel is the data passed to the accounts template.
type AccountsViewModel struct {
	Accounts []AccountItem
	Debts    []DebtItem
	Error    string
}

// ListAccountsPage renders the user's accounts, their balances and the
// standing loan balances against each connection.
func (h *Handlers) ListAccountsPage(w http.ResponseWriter, r *http.Request) {
	h.renderAccounts(w, r, "")
}

func (h *Handlers) renderAccounts(w http.ResponseWriter, r *http.Request, msg string) {
	user := GetUserFromContext(r)
	vm := AccountsViewModel{Error: msg}
	err := h.db.WithTx(func(tx *storage.Tx) error {
		accounts, err := tx.ListAccounts(user.ID)
		if err != nil {
			return err
		}
		for _, a := range accounts {
			vm.Accounts = append(vm.Accounts, AccountItem{
				ID:      a.ID,
				Name:    a.Name,
				Type:    a.Type,
				Balance: a.Balance.StringFixed(2),
			})
		}

		connections, err := tx.GetConnections(user.ID)
		if err != nil {
			return err
		}
		for _, c := range connections {
			balance, err := tx.GetLoanBalance(user.ID, c.ID)
			if err != nil {
				return err
			}
			if balance.IsZero() {
				continue
			}
			vm.Debts = append(vm.Debts, DebtItem{
				Username: c.Username,
				Balance:  balance.Abs().StringFixed(2),
				Negative: balance.IsNegative(),
			})
		}
		return nil
	})
	if err != nil {
		log.Printf("ListAccounts error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "accounts.html", vm)
}

// CreateAccount adds a new account with an opening balance.
func (h *Handlers) CreateAccount(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	typ := models.AccountType(r.FormValue("type"))
	balance := r.FormValue("balance")
	if balance == "" {
		balance = "0"
	}

	if _, err := h.accounts.AddAccount(user.ID, r.FormValue("name"), typ, balance); err != nil {
		if ledger.IsValidation(err) {
			h.renderAccounts(w, r, err.Error())
			return
		}
		log.Printf("CreateAccount error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.redirect(w, r, "/accounts")
}

// TransferItem represents a transfer in the list view.
type TransferItem struct {
	ID     int64
	Date   string
	From   string
	To     string
	Amount string
}

// TransfersViewModel is the data passed to the transfers template.
type TransfersViewModel struct {
	Transfers []TransferItem
	Accounts  []models.Account
}

// TransferFormViewModel is the data passed to the transfer form template.
type TransferFormViewModel struct {
	IsEdit        bool
	ID            int64
	Date          string
	FromAccountID int64
	ToAccountID   int64
	Amount        string
	Accounts      []models.Account
	Error         string
}

// ListTransfersPage renders the user's transfers between accounts.
func (h *Handlers) ListTransfersPage(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)

	filter := storage.TransferFilter{
		DateFrom: r.URL.Query().Get("from"),
		DateTo:   r.URL.Query().Get("to"),
	}

	vm := TransfersViewModel{}
	err := h.db.WithTx(func(tx *storage.Tx) error {
		accounts, err := tx.ListAccounts(user.ID)
		if err != nil {
			return err
		}
		vm.Accounts = accounts

		names := make(map[int64]string, len(accounts))
		for _, a := range accounts {
			names[a.ID] = a.Name
		}

		transfers, err := tx.ListTransfers(user.ID, filter)
		if err != nil {
			return err
		}
		for _, t := range transfers {
			vm.Transfers = append(vm.Transfers, TransferItem{
				ID:     t.ID,
				Date:   t.Date,
				From:   names[t.FromAccountID],
				To:     names[t.ToAccountID],
				Amount: t.Amount.StringFixed(2),
			})
		}
		return nil
	})
	if err != nil {
		log.Printf("ListTransfers error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "transfers.html", vm)
}

// CreateTransferForm renders the form to move money between accounts.
func (h *Handlers) CreateTransferForm(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	vm := TransferFormViewModel{}
	if err := h.transferChoices(user.ID, &vm); err != nil {
		log.Printf("CreateTransferForm error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "transfer_form.html", vm)
}

// EditTransferForm renders the form to edit an existing transfer.
func (h *Handlers) EditTransferForm(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)

	vm := TransferFormViewModel{IsEdit: true, ID: id}
	err := h.db.WithTx(func(tx *storage.Tx) error {
		transfer, err := tx.GetTransfer(user.ID, id)
		if err != nil {
			return err
		}
		vm.Date = transfer.Date
		vm.FromAccountID = transfer.FromAccountID
		vm.ToAccountID = transfer.ToAccountID
		vm.Amount = transfer.Amount.StringFixed(2)
		return nil
	})
	if err != nil {
		h.redirect(w, r, "/transfers")
		return
	}

	if err := h.transferChoices(user.ID, &vm); err != nil {
		log.Printf("EditTransferForm error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "transfer_form.html", vm)
}

func (h *Handlers) transferChoices(userID int64, vm *TransferFormViewModel) error {
	return h.db.WithTx(func(tx *storage.Tx) error {
		var err error
		vm.Accounts, err = tx.ListAccounts(userID)
		return err
	})
}

func parseTransferForm(r *http.Request) (ledger.TransferRequest, error) {
	if err := r.ParseForm(); err != nil {
		return ledger.TransferRequest{}, err
	}
	fromID, _ := strconv.ParseInt(r.FormValue("account_from"), 10, 64)
	toID, _ := strconv.ParseInt(r.FormValue("account_to"), 10, 64)
	return ledger.TransferRequest{
		Date:          r.FormValue("date"),
		FromAccountID: fromID,
		ToAccountID:   toID,
		Amount:        r.FormValue("amount"),
	}, nil
}

func (h *Handlers) rerenderTransferForm(w http.ResponseWriter, r *http.Request, userID, id int64, req ledger.TransferRequest, msg string) {
	vm := TransferFormViewModel{
		IsEdit:        id != 0,
		ID:            id,
		Date:          req.Date,
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
		Error:         msg,
	}
	if err := h.transferChoices(userID, &vm); err != nil {
		log.Printf("transfer form error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.render(w, r, "transfer_form.html", vm)
}

// CreateTransfer moves money between two of the user's accounts.
func (h *Handlers) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	req, err := parseTransferForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := h.accounts.AddTransfer(user.ID, req); err != nil {
		if ledger.IsValidation(err) {
			h.rerenderTransferForm(w, r, user.ID, 0, req, err.Error())
			return
		}
		log.Printf("CreateTransfer error: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.redirect(w, r, "/transfers")
}

// UpdateTransfer reapplies an existing transfer with new values.
func (h *Handlers) UpdateTransfer(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r)
	id, _ := strconv.ParseInt(r.PathValue("id"), 10, 64)

	req, err := parseTransferForm(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.accounts.EditTransfer(user.ID, id, req); err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			h.redirect(w, r, "/transfers")
		case ledger.IsValidation(err):
			h.rerenderTransferForm(w, r, user.ID, id, req, err.Error())
		default:
			log.Printf("UpdateTransfer error: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}
	h.redirect(w, r, "/transfers")
}
