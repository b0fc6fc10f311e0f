package ledger

import "errors"

// Validation sentinels carry the message shown to the user. The first
// failing check wins; later checks are not run.
var (
	ErrInvalidAmount       = errors.New("not a valid amount")
	ErrInvalidDate         = errors.New("not a valid date")
	ErrInvalidAccount      = errors.New("not a valid account")
	ErrInvalidCategory     = errors.New("not a valid category")
	ErrInvalidPercentage   = errors.New("not a valid % split")
	ErrInvalidCounterparty = errors.New("not a valid user to share with")
	ErrInvalidName         = errors.New("you need to provide a name")
	ErrInvalidDescription  = errors.New("you need to provide a description")
	ErrInvalidAccountType  = errors.New("the account needs to either be an asset or a liability")
	ErrAccountExists       = errors.New("you already have an account under that name")
	ErrCategoryExists      = errors.New("you already have a category under that name")
	ErrSameAccount         = errors.New("source and target accounts cannot be the same")
	ErrSharedByOther       = errors.New("this expense was shared with you and can only be changed by its owner")
)

// ErrNotFound means the requested record does not exist or does not
// belong to the requesting user. Handlers redirect rather than error.
var ErrNotFound = errors.New("record not found")

// ErrInconsistent means a linked record the ledger relies on is
// missing. The operation fails and the transaction rolls back; nothing
// is skipped silently.
var ErrInconsistent = errors.New("inconsistent ledger state")

var validationErrs = []error{
	ErrInvalidAmount,
	ErrInvalidDate,
	ErrInvalidAccount,
	ErrInvalidCategory,
	ErrInvalidPercentage,
	ErrInvalidCounterparty,
	ErrInvalidName,
	ErrInvalidDescription,
	ErrInvalidAccountType,
	ErrAccountExists,
	ErrCategoryExists,
	ErrSameAccount,
	ErrSharedByOther,
}

// IsValidation reports whether err is a user-input failure whose
// message is safe to show on the form.
func IsValidation(err error) bool {
	for _, v := range validationErrs {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
