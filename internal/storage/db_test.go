package storage

import (
	"testing"
	"time"

	"budget-tracker/internal/auth"
	"budget-tracker/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// DBTestSuite provides a test suite for record operations
type DBTestSuite struct {
	suite.Suite
	db   *DB
	user *models.User
}

// SetupTest runs before each test
func (suite *DBTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db

	password, err := auth.HashPassword("testpass")
	require.NoError(suite.T(), err, "failed to hash password")

	user, err := suite.db.CreateUser("testuser", password, false)
	require.NoError(suite.T(), err, "failed to create test user")
	suite.user = user
}

// TearDownTest runs after each test
func (suite *DBTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *DBTestSuite) withTx(fn func(tx *Tx) error) {
	require.NoError(suite.T(), suite.db.WithTx(fn))
}

func (suite *DBTestSuite) TestCreateAndGetUser() {
	user, err := suite.db.GetUserByUsername("testuser")
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), suite.user.ID, user.ID)
	assert.False(suite.T(), user.Private)

	byID, err := suite.db.GetUserByID(user.ID)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "testuser", byID.Username)

	count, err := suite.db.UserCount()
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), 1, count)
}

func (suite *DBTestSuite) TestConnections() {
	other, err := suite.db.CreateUser("friend", suite.user.PasswordHash, true)
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), suite.db.AddConnection(suite.user.ID, other.ID))
	// Adding the same connection twice is a no-op
	require.NoError(suite.T(), suite.db.AddConnection(suite.user.ID, other.ID))

	suite.withTx(func(tx *Tx) error {
		// Connections are symmetric
		connected, err := tx.IsConnection(suite.user.ID, other.ID)
		require.NoError(suite.T(), err)
		assert.True(suite.T(), connected)

		connected, err = tx.IsConnection(other.ID, suite.user.ID)
		require.NoError(suite.T(), err)
		assert.True(suite.T(), connected)

		connected, err = tx.IsConnection(suite.user.ID, 9999)
		require.NoError(suite.T(), err)
		assert.False(suite.T(), connected)

		private, err := tx.IsPrivate(other.ID)
		require.NoError(suite.T(), err)
		assert.True(suite.T(), private)

		users, err := tx.GetConnections(suite.user.ID)
		require.NoError(suite.T(), err)
		if assert.Len(suite.T(), users, 1) {
			assert.Equal(suite.T(), "friend", users[0].Username)
		}
		return nil
	})
}

func (suite *DBTestSuite) TestAccountBalances() {
	suite.withTx(func(tx *Tx) error {
		id, err := tx.CreateAccount(suite.user.ID, "Checking", "checking", models.AccountAsset, decimal.RequireFromString("100.00"))
		require.NoError(suite.T(), err)

		require.NoError(suite.T(), tx.ModifyUserBalance(suite.user.ID, id, decimal.RequireFromString("-25.50")))
		require.NoError(suite.T(), tx.ModifyUserBalance(suite.user.ID, id, decimal.RequireFromString("10.00")))

		account, err := tx.GetAccount(suite.user.ID, id)
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), "84.50", account.Balance.StringFixed(2))

		bySlug, err := tx.GetAccountBySlug(suite.user.ID, "checking")
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), id, bySlug.ID)

		// Another user's account is out of reach
		err = tx.ModifyUserBalance(9999, id, decimal.RequireFromString("1.00"))
		assert.Error(suite.T(), err)
		return nil
	})
}

func (suite *DBTestSuite) TestLoanBalanceUpsert() {
	other, err := suite.db.CreateUser("friend", suite.user.PasswordHash, false)
	require.NoError(suite.T(), err)

	suite.withTx(func(tx *Tx) error {
		// Absent pair reads as zero
		balance, err := tx.GetLoanBalance(suite.user.ID, other.ID)
		require.NoError(suite.T(), err)
		assert.True(suite.T(), balance.IsZero())

		require.NoError(suite.T(), tx.ModifyLoanBalance(suite.user.ID, other.ID, decimal.RequireFromString("60.00")))
		require.NoError(suite.T(), tx.ModifyLoanBalance(suite.user.ID, other.ID, decimal.RequireFromString("-20.00")))

		balance, err = tx.GetLoanBalance(suite.user.ID, other.ID)
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), "40.00", balance.StringFixed(2))

		// Each direction is its own row
		balance, err = tx.GetLoanBalance(other.ID, suite.user.ID)
		require.NoError(suite.T(), err)
		assert.True(suite.T(), balance.IsZero())
		return nil
	})
}

func (suite *DBTestSuite) TestExpenseFilters() {
	suite.withTx(func(tx *Tx) error {
		food, err := tx.CreateCategory(suite.user.ID, "Food", "food")
		require.NoError(suite.T(), err)
		travel, err := tx.CreateCategory(suite.user.ID, "Travel", "travel")
		require.NoError(suite.T(), err)

		rows := []struct {
			date        string
			categoryID  int64
			description string
			amount      string
		}{
			{"2024-03-01", food, "Groceries", "42.00"},
			{"2024-03-10", travel, "Train", "18.50"},
			{"2024-04-02", food, "Dinner", "30.00"},
		}
		for _, r := range rows {
			amount := decimal.RequireFromString(r.amount)
			_, err := tx.CreateExpense(suite.user.ID, r.date, &r.categoryID, nil, r.description, amount)
			require.NoError(suite.T(), err, "failed to create expense: %s", r.description)
		}

		all, err := tx.ListExpenses(suite.user.ID, ExpenseFilter{})
		require.NoError(suite.T(), err)
		// Newest first
		if assert.Len(suite.T(), all, 3) {
			assert.Equal(suite.T(), "Dinner", all[0].Description)
		}

		byCategory, err := tx.ListExpenses(suite.user.ID, ExpenseFilter{CategoryID: food})
		require.NoError(suite.T(), err)
		assert.Len(suite.T(), byCategory, 2)

		march, err := tx.ListExpenses(suite.user.ID, ExpenseFilter{DateFrom: "2024-03-01", DateTo: "2024-03-31"})
		require.NoError(suite.T(), err)
		assert.Len(suite.T(), march, 2)
		return nil
	})
}

func (suite *DBTestSuite) TestExpenseDetailJoinsLoanLink() {
	other, err := suite.db.CreateUser("friend", suite.user.PasswordHash, false)
	require.NoError(suite.T(), err)

	suite.withTx(func(tx *Tx) error {
		accountID, err := tx.CreateAccount(suite.user.ID, "Checking", "checking", models.AccountAsset, decimal.Zero)
		require.NoError(suite.T(), err)

		expenseID, err := tx.CreateExpense(suite.user.ID, "2024-03-15", nil, &accountID, "Dinner", decimal.RequireFromString("40.00"))
		require.NoError(suite.T(), err)

		plain, err := tx.GetExpenseDetail(suite.user.ID, expenseID)
		require.NoError(suite.T(), err)
		assert.False(suite.T(), plain.Shared)

		loanID, err := tx.AddLoan(suite.user.ID, other.ID, "2024-03-15", accountID, "Dinner", decimal.RequireFromString("60.00"))
		require.NoError(suite.T(), err)
		require.NoError(suite.T(), tx.LinkToLoan(expenseID, loanID, other.ID, decimal.RequireFromString("40")))

		shared, err := tx.GetExpenseDetail(suite.user.ID, expenseID)
		require.NoError(suite.T(), err)
		assert.True(suite.T(), shared.Shared)
		assert.Equal(suite.T(), loanID, shared.LoanID)
		assert.Equal(suite.T(), other.ID, shared.SharedWithID)
		assert.Equal(suite.T(), "40", shared.Percentage.String())

		byLoan, err := tx.GetExpenseDetailByLoan(suite.user.ID, loanID)
		require.NoError(suite.T(), err)
		assert.Equal(suite.T(), expenseID, byLoan.Expense.ID)

		require.NoError(suite.T(), tx.UnlinkLoan(loanID))
		unlinked, err := tx.GetExpenseDetail(suite.user.ID, expenseID)
		require.NoError(suite.T(), err)
		assert.False(suite.T(), unlinked.Shared)
		return nil
	})
}

func (suite *DBTestSuite) TestTotalsUpsert() {
	suite.withTx(func(tx *Tx) error {
		require.NoError(suite.T(), tx.AddToTotals(suite.user.ID, "2024-03", decimal.RequireFromString("40.00"), decimal.Zero))
		require.NoError(suite.T(), tx.AddToTotals(suite.user.ID, "2024-03", decimal.RequireFromString("10.00"), decimal.RequireFromString("1500.00")))
		require.NoError(suite.T(), tx.AddToTotals(suite.user.ID, "2024-04", decimal.RequireFromString("5.00"), decimal.Zero))

		rows, err := tx.ListTotals(suite.user.ID, []string{"2024-03", "2024-04", "2024-05"})
		require.NoError(suite.T(), err)
		require.Len(suite.T(), rows, 2)
		assert.Equal(suite.T(), "2024-03", rows[0].Month)
		assert.Equal(suite.T(), "50.00", rows[0].Expenses.StringFixed(2))
		assert.Equal(suite.T(), "1500.00", rows[0].Income.StringFixed(2))
		assert.Equal(suite.T(), "5.00", rows[1].Expenses.StringFixed(2))

		none, err := tx.ListTotals(suite.user.ID, []string{"2020-01"})
		require.NoError(suite.T(), err)
		assert.Empty(suite.T(), none)
		return nil
	})
}

func (suite *DBTestSuite) TestWithTxRollsBack() {
	boom := assert.AnError
	err := suite.db.WithTx(func(tx *Tx) error {
		_, err := tx.CreateCategory(suite.user.ID, "Food", "food")
		require.NoError(suite.T(), err)
		return boom
	})
	assert.ErrorIs(suite.T(), err, boom)

	suite.withTx(func(tx *Tx) error {
		categories, err := tx.ListCategories(suite.user.ID)
		require.NoError(suite.T(), err)
		assert.Empty(suite.T(), categories, "rolled back insert must not be visible")
		return nil
	})
}

// SessionTestSuite provides a test suite for session operations
type SessionTestSuite struct {
	suite.Suite
	db   *DB
	user *models.User
}

// SetupTest runs before each test
func (suite *SessionTestSuite) SetupTest() {
	db, err := NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db

	password, err := auth.HashPassword("testpass")
	require.NoError(suite.T(), err, "failed to hash password")

	user, err := suite.db.CreateUser("testuser", password, false)
	require.NoError(suite.T(), err, "failed to create test user")
	suite.user = user
}

// TearDownTest runs after each test
func (suite *SessionTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *SessionTestSuite) TestCreateAndValidateSession() {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	err = suite.db.CreateSession(token, suite.user.ID, expiresAt)
	require.NoError(suite.T(), err)

	// Validate the session
	sessionUser, err := suite.db.ValidateSession(token)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "testuser", sessionUser.Username)
}

func (suite *SessionTestSuite) TestValidateSessionWithInfo() {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	err = suite.db.CreateSession(token, suite.user.ID, expiresAt)
	require.NoError(suite.T(), err)

	// Get session info
	info, err := suite.db.ValidateSessionWithInfo(token)
	require.NoError(suite.T(), err)
	assert.Equal(suite.T(), "testuser", info.User.Username)

	// Check that last_activity is recent
	timeSinceActivity := time.Since(info.LastActivity)
	assert.Less(suite.T(), timeSinceActivity, 5*time.Second, "LastActivity should be recent")
}

func (suite *SessionTestSuite) TestRenewSession() {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	originalExpiry := time.Now().Add(30 * 24 * time.Hour)
	err = suite.db.CreateSession(token, suite.user.ID, originalExpiry)
	require.NoError(suite.T(), err)

	// Wait a moment to ensure timestamps differ
	time.Sleep(10 * time.Millisecond)

	// Get original session info
	originalInfo, err := suite.db.ValidateSessionWithInfo(token)
	require.NoError(suite.T(), err)

	// Renew the session
	newExpiry := time.Now().Add(60 * 24 * time.Hour)
	err = suite.db.RenewSession(token, newExpiry)
	require.NoError(suite.T(), err)

	// Get updated session info
	updatedInfo, err := suite.db.ValidateSessionWithInfo(token)
	require.NoError(suite.T(), err)

	// Verify last_activity was updated
	assert.True(suite.T(), updatedInfo.LastActivity.After(originalInfo.LastActivity),
		"LastActivity should be updated after renewal")

	// Verify expires_at was updated
	assert.True(suite.T(), updatedInfo.ExpiresAt.After(originalInfo.ExpiresAt),
		"ExpiresAt should be extended after renewal")
}

func (suite *SessionTestSuite) TestDeleteSession() {
	token, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	err = suite.db.CreateSession(token, suite.user.ID, expiresAt)
	require.NoError(suite.T(), err)

	// Verify session exists
	_, err = suite.db.ValidateSession(token)
	require.NoError(suite.T(), err, "session should exist before deletion")

	// Delete session
	err = suite.db.DeleteSession(token)
	require.NoError(suite.T(), err)

	// Verify session is gone
	_, err = suite.db.ValidateSession(token)
	assert.Error(suite.T(), err, "expected error after deleting session")
}

func (suite *SessionTestSuite) TestCleanExpiredSessions() {
	expired, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)
	live, err := auth.GenerateSessionToken()
	require.NoError(suite.T(), err)

	require.NoError(suite.T(), suite.db.CreateSession(expired, suite.user.ID, time.Now().Add(-time.Hour)))
	require.NoError(suite.T(), suite.db.CreateSession(live, suite.user.ID, time.Now().Add(time.Hour)))

	require.NoError(suite.T(), suite.db.CleanExpiredSessions())

	_, err = suite.db.ValidateSession(expired)
	assert.Error(suite.T(), err, "expired session should be gone")
	_, err = suite.db.ValidateSession(live)
	assert.NoError(suite.T(), err)
}

// Test suite runners
func TestDBSuite(t *testing.T) {
	suite.Run(t, new(DBTestSuite))
}

func TestSessionSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}
