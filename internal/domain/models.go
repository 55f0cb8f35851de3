package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountKind classifies an account. Net-worth style rollups treat
// credit_card and loan balances as liabilities, but the ledger itself
// does not care: a balance is just a signed decimal.
type AccountKind string

const (
	AccountSavings    AccountKind = "savings"
	AccountChecking   AccountKind = "checking"
	AccountCreditCard AccountKind = "credit_card"
	AccountLoan       AccountKind = "loan"
	AccountInvestment AccountKind = "investment"
)

// Direction tells whether a posting adds to or subtracts from a balance.
// It is stored alongside the signed amount and must agree with its sign.
type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

// BillStatus is the bill lifecycle state. upcoming -> overdue is a lazy,
// read-triggered transition; paid is terminal.
type BillStatus string

const (
	BillUpcoming BillStatus = "upcoming"
	BillPaid     BillStatus = "paid"
	BillOverdue  BillStatus = "overdue"
)

// AlertType labels informational alerts surfaced to the user.
type AlertType string

const (
	AlertLowBalance     AlertType = "low_balance"
	AlertBillDue        AlertType = "bill_due"
	AlertBudgetExceeded AlertType = "budget_exceeded"
	AlertRewardRedeemed AlertType = "reward_redeemed"
	AlertGeneral        AlertType = "general"
)

// User is the owner of accounts, bills and reward state. Authentication
// is handled by an external collaborator; the engine only needs identity
// and the email used for transfer resolution.
type User struct {
	ID        int64
	Name      string
	Email     string
	CreatedAt time.Time
}

// Account holds an authoritative local balance. Balances are stored at
// minor-unit precision (NUMERIC(12,2)); the account layer itself allows
// overdraft; insufficient-funds policy lives in the operations that
// debit it.
type Account struct {
	ID            int64
	UserID        int64
	BankName      string
	Kind          AccountKind
	MaskedAccount string
	Balance       decimal.Decimal
	Currency      string
	PIN           string // optional 4-digit PIN, empty when unset
	CreatedAt     time.Time
}

// Transaction is one immutable ledger entry. Amount is signed: negative
// for debit, positive for credit, always matching Direction. Rows are
// created only by the posting primitive, never directly by handlers.
type Transaction struct {
	ID          int64
	AccountID   int64
	Description string
	Category    string
	Amount      decimal.Decimal
	Currency    string
	Direction   Direction
	Merchant    string
	PostedAt    time.Time
}

// Bill is a payable obligation. AutoPayTime is a local "HH:MM" string;
// a malformed value disables auto-pay for that bill without failing the
// sweep.
type Bill struct {
	ID          int64
	UserID      int64
	BillerName  string
	DueDate     time.Time // date-only semantics
	AmountDue   decimal.Decimal
	Status      BillStatus
	AutoPay     bool
	AutoPayTime string
	CreatedAt   time.Time
}

// RewardLedger is the single per-user points row, created lazily on
// first access. Points never go negative.
type RewardLedger struct {
	ID          int64
	UserID      int64
	ProgramName string
	Points      int64
	UpdatedAt   time.Time
}

// RedeemedReward records a non-cash redemption. Immutable once created.
type RedeemedReward struct {
	ID         int64
	UserID     int64
	ItemName   string
	Code       string
	RedeemedAt time.Time
	ExpiresAt  time.Time
}

// Alert is an informational record; losing one never invalidates the
// ledger.
type Alert struct {
	ID        int64
	UserID    int64
	Type      AlertType
	Message   string
	CreatedAt time.Time
}

// RedemptionKind selects the redemption branch.
type RedemptionKind string

const (
	RedeemCashback RedemptionKind = "cashback"
	RedeemGiftcard RedemptionKind = "giftcard"
)
