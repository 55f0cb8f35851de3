package ledger

import (
	"context"
	"fmt"

	"github.com/finexbank/ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Transfer moves amount from the sender's funding account to the
// recipient's fallback account. The debit and credit postings commit
// together or not at all; the sender-side Transaction is returned.
//
// The sufficient-funds check runs twice: once for early rejection and
// again on the locked sender row, so a racing debit between the
// pre-check and the posting cannot overdraw past policy.
func (e *Engine) Transfer(ctx context.Context, senderID int64, recipientEmail string, amount decimal.Decimal) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.ErrNonPositiveAmount()
	}

	var senderEntry *domain.Transaction
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		sender, err := tx.UserByID(ctx, senderID)
		if err != nil {
			return domain.WrapStore("Transfer: load sender", err)
		}
		if sender == nil {
			return domain.ErrUserNotFound(senderID)
		}

		senderAccounts, err := tx.AccountsByUser(ctx, senderID)
		if err != nil {
			return domain.WrapStore("Transfer: list sender accounts", err)
		}
		funding := e.funding(senderAccounts)
		if funding == nil {
			return domain.ErrNoFundingAccount()
		}
		if funding.Balance.LessThan(amount) {
			return domain.ErrInsufficientFunds()
		}

		recipient, err := tx.UserByEmail(ctx, recipientEmail)
		if err != nil {
			return domain.WrapStore("Transfer: resolve recipient", err)
		}
		if recipient == nil {
			return domain.ErrRecipientNotFound(recipientEmail)
		}
		if recipient.ID == senderID {
			return domain.ErrSelfTransferNotAllowed()
		}

		recipientAccounts, err := tx.AccountsByUser(ctx, recipient.ID)
		if err != nil {
			return domain.WrapStore("Transfer: list recipient accounts", err)
		}
		target := e.fallback(recipientAccounts)
		if target == nil {
			return domain.ErrRecipientHasNoAccount()
		}

		// Lock both rows in id order so two opposing transfers
		// cannot deadlock, then re-validate funds on the locked row.
		from, to, err := lockAccountPair(ctx, tx, funding.ID, target.ID)
		if err != nil {
			return err
		}
		if from.Balance.LessThan(amount) {
			return domain.ErrInsufficientFunds()
		}

		now := e.now()
		senderEntry, err = PostEntry(ctx, tx, from, amount, domain.Debit,
			fmt.Sprintf("Transfer to %s", recipient.Name), "Transfer", recipient.Name, now)
		if err != nil {
			return err
		}
		_, err = PostEntry(ctx, tx, to, amount, domain.Credit,
			fmt.Sprintf("Received from %s", sender.Name), "Transfer", sender.Name, now)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Int64("sender_id", senderID).
		Str("recipient", recipientEmail).
		Str("amount", amount.StringFixed(2)).
		Msg("transfer posted")
	return senderEntry, nil
}

// lockAccountPair acquires both account rows for update in ascending
// id order and returns them as (first, second) matching the argument
// order.
func lockAccountPair(ctx context.Context, tx Tx, firstID, secondID int64) (*domain.Account, *domain.Account, error) {
	lo, hi := firstID, secondID
	if lo > hi {
		lo, hi = hi, lo
	}

	locked := make(map[int64]*domain.Account, 2)
	for _, id := range []int64{lo, hi} {
		a, err := tx.AccountForUpdate(ctx, id)
		if err != nil {
			return nil, nil, domain.WrapStore("lockAccountPair", err)
		}
		if a == nil {
			return nil, nil, domain.ErrAccountNotFound(id)
		}
		locked[id] = a
	}
	return locked[firstID], locked[secondID], nil
}
