package ledger

import (
	"context"
	"time"

	"github.com/finexbank/ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// PostEntry is the only code path that changes an account balance. It
// adjusts the balance by the given magnitude (credit adds, debit
// subtracts) and inserts the matching signed Transaction inside the
// same atomic unit, so one never exists without the other.
//
// acct must have been fetched with AccountForUpdate in the same unit;
// the updated balance is written back onto the struct so later calls in
// the unit see it. Overdraft is not checked here: sufficient-funds
// policy belongs to the operations, which enforce it on the locked row
// before posting.
func PostEntry(ctx context.Context, tx Tx, acct *domain.Account, amount decimal.Decimal, dir domain.Direction, description, category, merchant string, at time.Time) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrNonPositiveAmount()
	}

	var signed decimal.Decimal
	switch dir {
	case domain.Credit:
		signed = amount
	case domain.Debit:
		signed = amount.Neg()
	default:
		return nil, domain.ErrBadDirection(dir)
	}

	newBalance := acct.Balance.Add(signed)
	if err := tx.SetAccountBalance(ctx, acct.ID, newBalance); err != nil {
		return nil, domain.WrapStore("PostEntry: update balance", err)
	}

	entry := &domain.Transaction{
		AccountID:   acct.ID,
		Description: description,
		Category:    category,
		Amount:      signed,
		Currency:    acct.Currency,
		Direction:   dir,
		Merchant:    merchant,
		PostedAt:    at,
	}
	if err := tx.InsertTransaction(ctx, entry); err != nil {
		return nil, domain.WrapStore("PostEntry: insert transaction", err)
	}

	acct.Balance = newBalance
	return entry, nil
}
