package ledger

import (
	"context"
	"time"

	"github.com/finexbank/ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Reader is the read side of the ledger store. Lookups that miss
// return (nil, nil) rather than an error; the engine turns misses into
// taxonomy errors.
type Reader interface {
	UserByID(ctx context.Context, id int64) (*domain.User, error)
	UserByEmail(ctx context.Context, email string) (*domain.User, error)

	AccountByID(ctx context.Context, id int64) (*domain.Account, error)
	// AccountsByUser returns the user's accounts in creation order.
	AccountsByUser(ctx context.Context, userID int64) ([]*domain.Account, error)

	// TransactionsByUser returns entries across all of the user's
	// accounts, newest first.
	TransactionsByUser(ctx context.Context, userID int64) ([]*domain.Transaction, error)
	TransactionsByAccount(ctx context.Context, accountID int64) ([]*domain.Transaction, error)

	BillByID(ctx context.Context, billID, userID int64) (*domain.Bill, error)
	BillsByUser(ctx context.Context, userID int64) ([]*domain.Bill, error)
	// AutoPayCandidates returns upcoming bills across all users that
	// have auto-pay enabled and a configured time-of-day.
	AutoPayCandidates(ctx context.Context) ([]*domain.Bill, error)

	RewardByUser(ctx context.Context, userID int64) (*domain.RewardLedger, error)
	RedeemedByUser(ctx context.Context, userID int64) ([]*domain.RedeemedReward, error)
	AlertsByUser(ctx context.Context, userID int64) ([]*domain.Alert, error)
}

// Tx is one atomic unit. Every method observes the unit's own writes;
// if the function passed to WithinTx returns an error, none of them
// survive.
//
// The *ForUpdate methods acquire exclusive row access held until the
// unit ends. Balances and points are only ever written against a row
// fetched this way, which is what serializes concurrent writers to the
// same account (§ concurrency model).
type Tx interface {
	Reader

	AccountForUpdate(ctx context.Context, id int64) (*domain.Account, error)
	BillForUpdate(ctx context.Context, billID, userID int64) (*domain.Bill, error)
	RewardForUpdate(ctx context.Context, userID int64) (*domain.RewardLedger, error)

	InsertUser(ctx context.Context, u *domain.User) error
	InsertAccount(ctx context.Context, a *domain.Account) error
	InsertTransaction(ctx context.Context, t *domain.Transaction) error
	InsertBill(ctx context.Context, b *domain.Bill) error
	InsertRedeemedReward(ctx context.Context, r *domain.RedeemedReward) error
	InsertAlert(ctx context.Context, a *domain.Alert) error
	CreateReward(ctx context.Context, r *domain.RewardLedger) error

	SetAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error
	SetBillStatus(ctx context.Context, billID int64, status domain.BillStatus) error
	SetRewardPoints(ctx context.Context, userID int64, points int64, at time.Time) error
	UpdateBill(ctx context.Context, b *domain.Bill) error
	UpdateAccount(ctx context.Context, a *domain.Account) error

	// DeleteAccount cascades to the account's transactions. Both
	// deletes report whether a row was actually removed.
	DeleteBill(ctx context.Context, billID, userID int64) (bool, error)
	DeleteAccount(ctx context.Context, accountID, userID int64) (bool, error)
}

// Store is the durable ledger storage contract. WithinTx runs fn as a
// single atomic unit: all writes commit together or roll back together.
type Store interface {
	Reader

	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
