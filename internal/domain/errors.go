package domain

import (
	"errors"
	"fmt"
)

// ErrorKind is the coarse failure taxonomy exposed to callers. All
// Validation/NotFound/PolicyViolation failures are raised before any
// mutation; a Persistence failure mid-unit means the whole unit was
// rolled back.
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindNotFound        ErrorKind = "not_found"
	KindPolicyViolation ErrorKind = "policy_violation"
	KindPersistence     ErrorKind = "persistence"
)

// ErrorCode identifies the specific failure within a kind.
type ErrorCode string

const (
	CodeNoFundingAccount       ErrorCode = "no_funding_account"
	CodeInsufficientFunds      ErrorCode = "insufficient_funds"
	CodeRecipientNotFound      ErrorCode = "recipient_not_found"
	CodeSelfTransferNotAllowed ErrorCode = "self_transfer_not_allowed"
	CodeRecipientHasNoAccount  ErrorCode = "recipient_has_no_account"
	CodeBillNotFound           ErrorCode = "bill_not_found"
	CodeNoAccountAvailable     ErrorCode = "no_account_available"
	CodeRewardsAccountNotFound ErrorCode = "rewards_account_not_found"
	CodeInsufficientPoints     ErrorCode = "insufficient_points"
	CodeAccountNotFound        ErrorCode = "account_not_found"
	CodeUserNotFound           ErrorCode = "user_not_found"
	CodeNonPositiveAmount      ErrorCode = "non_positive_amount"
	CodeBadDirection           ErrorCode = "bad_direction"
	CodeStoreFailure           ErrorCode = "store_failure"
)

// Error is the engine's failure value: a kind for transport mapping, a
// code for programmatic handling and a human-readable reason.
type Error struct {
	Kind    ErrorKind
	Code    ErrorCode
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches on code so callers can compare against the sentinel
// constructors, e.g. errors.Is(err, domain.ErrInsufficientFunds()).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

func newErr(kind ErrorKind, code ErrorCode, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func ErrNoFundingAccount() *Error {
	return newErr(KindNotFound, CodeNoFundingAccount, "no active account found to send money from")
}

func ErrInsufficientFunds() *Error {
	return newErr(KindPolicyViolation, CodeInsufficientFunds, "insufficient funds")
}

func ErrRecipientNotFound(email string) *Error {
	return newErr(KindNotFound, CodeRecipientNotFound, "recipient %s not found", email)
}

func ErrSelfTransferNotAllowed() *Error {
	return newErr(KindPolicyViolation, CodeSelfTransferNotAllowed, "cannot send money to yourself")
}

func ErrRecipientHasNoAccount() *Error {
	return newErr(KindPolicyViolation, CodeRecipientHasNoAccount, "recipient has no active bank account")
}

func ErrBillNotFound(id int64) *Error {
	return newErr(KindNotFound, CodeBillNotFound, "bill %d not found", id)
}

func ErrNoAccountAvailable() *Error {
	return newErr(KindPolicyViolation, CodeNoAccountAvailable, "no account available to pay from")
}

func ErrRewardsAccountNotFound() *Error {
	return newErr(KindNotFound, CodeRewardsAccountNotFound, "rewards account not found")
}

func ErrInsufficientPoints() *Error {
	return newErr(KindPolicyViolation, CodeInsufficientPoints, "insufficient points balance")
}

func ErrAccountNotFound(id int64) *Error {
	return newErr(KindNotFound, CodeAccountNotFound, "account %d not found", id)
}

func ErrUserNotFound(id int64) *Error {
	return newErr(KindNotFound, CodeUserNotFound, "user %d not found", id)
}

func ErrNonPositiveAmount() *Error {
	return newErr(KindValidation, CodeNonPositiveAmount, "amount must be positive")
}

func ErrBadDirection(d Direction) *Error {
	return newErr(KindValidation, CodeBadDirection, "unknown direction %q", d)
}

// WrapStore tags a storage-layer failure. The atomic unit it occurred
// in has already been rolled back by the time callers see this.
func WrapStore(op string, err error) *Error {
	return &Error{
		Kind:    KindPersistence,
		Code:    CodeStoreFailure,
		Message: op,
		cause:   err,
	}
}

// KindOf extracts the taxonomy kind from any error chain; unknown
// errors are treated as persistence failures.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindPersistence
}
