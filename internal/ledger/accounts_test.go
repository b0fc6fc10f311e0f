package ledger

import (
	"testing"

	"budget-tracker/internal/auth"
	"budget-tracker/internal/models"
	"budget-tracker/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type AccountsTestSuite struct {
	suite.Suite
	db       *storage.DB
	accounts *Accounts
	user     int64
}

func (suite *AccountsTestSuite) SetupTest() {
	db, err := storage.NewDB(":memory:")
	require.NoError(suite.T(), err, "failed to create test database")
	suite.db = db
	suite.accounts = NewAccounts(db)

	hash, err := auth.HashPassword("testpass")
	require.NoError(suite.T(), err)
	user, err := db.CreateUser("alice", hash, false)
	require.NoError(suite.T(), err)
	suite.user = user.ID
}

func (suite *AccountsTestSuite) TearDownTest() {
	if suite.db != nil {
		suite.db.Close()
	}
}

func (suite *AccountsTestSuite) getAccount(accountID int64) *models.Account {
	var out *models.Account
	err := suite.db.WithTx(func(tx *storage.Tx) error {
		var err error
		out, err = tx.GetAccount(suite.user, accountID)
		return err
	})
	require.NoError(suite.T(), err)
	return out
}

func (suite *AccountsTestSuite) TestAddAccount() {
	id, err := suite.accounts.AddAccount(suite.user, "Credit Card", models.AccountLiability, "-250.00")
	require.NoError(suite.T(), err)

	account := suite.getAccount(id)
	assert.Equal(suite.T(), "Credit Card", account.Name)
	assert.Equal(suite.T(), "credit-card", account.Slug)
	assert.Equal(suite.T(), models.AccountLiability, account.Type)
	assert.Equal(suite.T(), "-250.00", account.Balance.StringFixed(2))
}

func (suite *AccountsTestSuite) TestAddAccountValidation() {
	_, err := suite.accounts.AddAccount(suite.user, "  ", models.AccountAsset, "0")
	assert.ErrorIs(suite.T(), err, ErrInvalidName)

	_, err = suite.accounts.AddAccount(suite.user, "Wallet", "hedge-fund", "0")
	assert.ErrorIs(suite.T(), err, ErrInvalidAccountType)

	_, err = suite.accounts.AddAccount(suite.user, "Wallet", models.AccountAsset, "much")
	assert.ErrorIs(suite.T(), err, ErrInvalidAmount)

	_, err = suite.accounts.AddAccount(suite.user, "Wallet", models.AccountAsset, "0")
	require.NoError(suite.T(), err)
	_, err = suite.accounts.AddAccount(suite.user, " wallet ", models.AccountAsset, "0")
	assert.ErrorIs(suite.T(), err, ErrAccountExists, "slugs are unique per user")
}

func (suite *AccountsTestSuite) TestAddTransfer() {
	checking, err := suite.accounts.AddAccount(suite.user, "Checking", models.AccountAsset, "500.00")
	require.NoError(suite.T(), err)
	savings, err := suite.accounts.AddAccount(suite.user, "Savings", models.AccountAsset, "0")
	require.NoError(suite.T(), err)

	_, err = suite.accounts.AddTransfer(suite.user, TransferRequest{
		Date:          "2024-03-15",
		FromAccountID: checking,
		ToAccountID:   savings,
		Amount:        "120.00",
	})
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "380.00", suite.getAccount(checking).Balance.StringFixed(2))
	assert.Equal(suite.T(), "120.00", suite.getAccount(savings).Balance.StringFixed(2))
}

func (suite *AccountsTestSuite) TestAddTransferValidation() {
	checking, err := suite.accounts.AddAccount(suite.user, "Checking", models.AccountAsset, "500.00")
	require.NoError(suite.T(), err)

	_, err = suite.accounts.AddTransfer(suite.user, TransferRequest{
		Date:          "2024-03-15",
		FromAccountID: checking,
		ToAccountID:   checking,
		Amount:        "50.00",
	})
	assert.ErrorIs(suite.T(), err, ErrSameAccount)

	_, err = suite.accounts.AddTransfer(suite.user, TransferRequest{
		Date:          "2024-03-15",
		FromAccountID: checking,
		ToAccountID:   9999,
		Amount:        "50.00",
	})
	assert.ErrorIs(suite.T(), err, ErrInvalidAccount)

	// Failed requests leave balances alone.
	assert.Equal(suite.T(), "500.00", suite.getAccount(checking).Balance.StringFixed(2))
}

func (suite *AccountsTestSuite) TestEditTransfer() {
	checking, err := suite.accounts.AddAccount(suite.user, "Checking", models.AccountAsset, "500.00")
	require.NoError(suite.T(), err)
	savings, err := suite.accounts.AddAccount(suite.user, "Savings", models.AccountAsset, "0")
	require.NoError(suite.T(), err)
	wallet, err := suite.accounts.AddAccount(suite.user, "Wallet", models.AccountAsset, "0")
	require.NoError(suite.T(), err)

	id, err := suite.accounts.AddTransfer(suite.user, TransferRequest{
		Date:          "2024-03-15",
		FromAccountID: checking,
		ToAccountID:   savings,
		Amount:        "120.00",
	})
	require.NoError(suite.T(), err)

	// Redirect the transfer to another target with a new amount: the old
	// postings are reversed before the new ones are applied.
	err = suite.accounts.EditTransfer(suite.user, id, TransferRequest{
		Date:          "2024-03-16",
		FromAccountID: checking,
		ToAccountID:   wallet,
		Amount:        "80.00",
	})
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), "420.00", suite.getAccount(checking).Balance.StringFixed(2))
	assert.Equal(suite.T(), "0.00", suite.getAccount(savings).Balance.StringFixed(2))
	assert.Equal(suite.T(), "80.00", suite.getAccount(wallet).Balance.StringFixed(2))

	err = suite.accounts.EditTransfer(suite.user, 9999, TransferRequest{
		Date:          "2024-03-16",
		FromAccountID: checking,
		ToAccountID:   wallet,
		Amount:        "10.00",
	})
	assert.ErrorIs(suite.T(), err, ErrNotFound)
}

func TestAccountsSuite(t *testing.T) {
	suite.Run(t, new(AccountsTestSuite))
}
