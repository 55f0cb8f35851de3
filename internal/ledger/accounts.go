package ledger

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/finexbank/ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Seed values for the account every new user starts with.
var (
	seedBankName = "Finex Bank"
	seedBalance  = decimal.RequireFromString("1000.00")
	seedCurrency = "USD"
)

// CreateUser enrolls a user and seeds their first checking account in
// the same atomic unit, so a user never exists without an account to
// transact from.
func (e *Engine) CreateUser(ctx context.Context, name, email string) (*domain.User, *domain.Account, error) {
	user := &domain.User{Name: name, Email: email, CreatedAt: e.now()}
	account := &domain.Account{
		BankName:      seedBankName,
		Kind:          domain.AccountChecking,
		MaskedAccount: fmt.Sprintf("%04d", rand.Intn(10000)),
		Balance:       seedBalance,
		Currency:      seedCurrency,
		CreatedAt:     e.now(),
	}

	err := e.store.WithinTx(ctx, func(tx Tx) error {
		if err := tx.InsertUser(ctx, user); err != nil {
			return domain.WrapStore("CreateUser", err)
		}
		account.UserID = user.ID
		if err := tx.InsertAccount(ctx, account); err != nil {
			return domain.WrapStore("CreateUser: seed account", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return user, account, nil
}

// CreateAccount links an additional account for the user. The opening
// balance is caller-supplied: these are authoritative local balances,
// not mirrors of an external bank.
func (e *Engine) CreateAccount(ctx context.Context, userID int64, bankName string, kind domain.AccountKind, masked string, balance decimal.Decimal, currency, pin string) (*domain.Account, error) {
	account := &domain.Account{
		UserID:        userID,
		BankName:      bankName,
		Kind:          kind,
		MaskedAccount: masked,
		Balance:       balance,
		Currency:      currency,
		PIN:           pin,
		CreatedAt:     e.now(),
	}
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		user, err := tx.UserByID(ctx, userID)
		if err != nil {
			return domain.WrapStore("CreateAccount: load user", err)
		}
		if user == nil {
			return domain.ErrUserNotFound(userID)
		}
		if err := tx.InsertAccount(ctx, account); err != nil {
			return domain.WrapStore("CreateAccount", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// UpdateAccount applies a partial update to an account the user owns.
func (e *Engine) UpdateAccount(ctx context.Context, userID, accountID int64, update domain.AccountUpdate) (*domain.Account, error) {
	var updated *domain.Account
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		account, err := tx.AccountForUpdate(ctx, accountID)
		if err != nil {
			return domain.WrapStore("UpdateAccount: load account", err)
		}
		if account == nil || account.UserID != userID {
			return domain.ErrAccountNotFound(accountID)
		}
		update.Apply(account)
		if err := tx.UpdateAccount(ctx, account); err != nil {
			return domain.WrapStore("UpdateAccount", err)
		}
		updated = account
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteAccount removes an account the user owns along with all of its
// transactions (the account owns its ledger entries).
func (e *Engine) DeleteAccount(ctx context.Context, userID, accountID int64) error {
	return e.store.WithinTx(ctx, func(tx Tx) error {
		ok, err := tx.DeleteAccount(ctx, accountID, userID)
		if err != nil {
			return domain.WrapStore("DeleteAccount", err)
		}
		if !ok {
			return domain.ErrAccountNotFound(accountID)
		}
		return nil
	})
}

// Accounts lists the user's accounts in creation order.
func (e *Engine) Accounts(ctx context.Context, userID int64) ([]*domain.Account, error) {
	accounts, err := e.store.AccountsByUser(ctx, userID)
	if err != nil {
		return nil, domain.WrapStore("Accounts", err)
	}
	return accounts, nil
}

// AccountSummary aggregates balances for display: net worth is the
// plain sum, assets the positive balances, liabilities the negative
// ones.
type AccountSummary struct {
	NetWorth    decimal.Decimal `json:"net_worth"`
	Assets      decimal.Decimal `json:"assets"`
	Liabilities decimal.Decimal `json:"liabilities"`
}

// SummarizeAccounts computes the balance rollup for a user.
func (e *Engine) SummarizeAccounts(ctx context.Context, userID int64) (*AccountSummary, error) {
	accounts, err := e.Accounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	s := &AccountSummary{NetWorth: decimal.Zero, Assets: decimal.Zero, Liabilities: decimal.Zero}
	for _, a := range accounts {
		s.NetWorth = s.NetWorth.Add(a.Balance)
		if a.Balance.IsPositive() {
			s.Assets = s.Assets.Add(a.Balance)
		} else if a.Balance.IsNegative() {
			s.Liabilities = s.Liabilities.Add(a.Balance)
		}
	}
	return s, nil
}

// VerifyPIN checks the 4-digit PIN on an account the user owns.
func (e *Engine) VerifyPIN(ctx context.Context, userID, accountID int64, pin string) (bool, error) {
	account, err := e.store.AccountByID(ctx, accountID)
	if err != nil {
		return false, domain.WrapStore("VerifyPIN", err)
	}
	if account == nil || account.UserID != userID {
		return false, domain.ErrAccountNotFound(accountID)
	}
	return account.PIN != "" && account.PIN == pin, nil
}

// Transactions returns the user's full transaction history across all
// accounts, newest first.
func (e *Engine) Transactions(ctx context.Context, userID int64) ([]*domain.Transaction, error) {
	entries, err := e.store.TransactionsByUser(ctx, userID)
	if err != nil {
		return nil, domain.WrapStore("Transactions", err)
	}
	return entries, nil
}

// Alerts returns the user's informational alerts, newest first.
func (e *Engine) Alerts(ctx context.Context, userID int64) ([]*domain.Alert, error) {
	alerts, err := e.store.AlertsByUser(ctx, userID)
	if err != nil {
		return nil, domain.WrapStore("Alerts", err)
	}
	return alerts, nil
}
