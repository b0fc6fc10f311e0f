package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"budget-tracker/internal/auth"
	"budget-tracker/internal/handlers"
	"budget-tracker/internal/storage"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "budget.db"
	}
	secureCookie := os.Getenv("SECURE_COOKIE") == "true"

	db, err := storage.NewDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := bootstrapAdmin(db); err != nil {
		log.Fatalf("Failed to bootstrap admin user: %v", err)
	}

	// Expired sessions pile up otherwise
	go func() {
		for range time.Tick(time.Hour) {
			if err := db.CleanExpiredSessions(); err != nil {
				log.Printf("Session cleanup error: %v", err)
			}
		}
	}()

	h := handlers.NewHandlers(db, "web/templates", secureCookie)
	mux := setupRouter(h, "web/static")

	log.Printf("Listening on :%s (db %s)", port, dbPath)
	if err := http.ListenAndServe(":"+port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// bootstrapAdmin creates the initial user from ADMIN_USER/ADMIN_PASSWORD
// when the database has no users yet.
func bootstrapAdmin(db *storage.DB) error {
	username := os.Getenv("ADMIN_USER")
	password := os.Getenv("ADMIN_PASSWORD")
	if username == "" || password == "" {
		return nil
	}

	count, err := db.UserCount()
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	user, err := db.CreateUser(username, hash, false)
	if err != nil {
		return err
	}
	log.Printf("Created admin user %s (ID %d)", user.Username, user.ID)
	return nil
}

func setupRouter(h *handlers.Handlers, staticDir string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(staticDir))))
	mux.HandleFunc("GET /login", h.LoginForm)
	mux.HandleFunc("POST /login", h.Login)
	mux.HandleFunc("GET /logout", h.Logout)

	protected := http.NewServeMux()
	protected.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/expenses", http.StatusFound)
	})

	protected.HandleFunc("GET /expenses", h.ListExpenses)
	protected.HandleFunc("GET /expenses/new", h.CreateExpenseForm)
	protected.HandleFunc("POST /expenses", h.CreateExpense)
	protected.HandleFunc("GET /expenses/{id}/edit", h.EditExpenseForm)
	protected.HandleFunc("POST /expenses/{id}", h.UpdateExpense)
	protected.HandleFunc("POST /expenses/{id}/delete", h.DeleteExpense)

	protected.HandleFunc("GET /categories", h.ListCategoriesPage)
	protected.HandleFunc("POST /categories", h.CreateCategory)

	protected.HandleFunc("GET /accounts", h.ListAccountsPage)
	protected.HandleFunc("POST /accounts", h.CreateAccount)

	protected.HandleFunc("GET /transfers", h.ListTransfersPage)
	protected.HandleFunc("GET /transfers/new", h.CreateTransferForm)
	protected.HandleFunc("POST /transfers", h.CreateTransfer)
	protected.HandleFunc("GET /transfers/{id}/edit", h.EditTransferForm)
	protected.HandleFunc("POST /transfers/{id}", h.UpdateTransfer)

	protected.HandleFunc("GET /summary", h.Summary)
	protected.HandleFunc("POST /income", h.AddIncome)

	mux.Handle("/", h.AuthMiddleware(protected))
	return mux
}
