package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/finexbank/ledger/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const accountColumns = `id, user_id, bank_name, account_type, masked_account, balance, currency, COALESCE(pin, ''), created_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(&a.ID, &a.UserID, &a.BankName, &a.Kind, &a.MaskedAccount, &a.Balance, &a.Currency, &a.PIN, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanAccount: %w", err)
	}
	return &a, nil
}

func (r reads) AccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	return scanAccount(r.q.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE id = $1
	`, id))
}

func (r reads) AccountsByUser(ctx context.Context, userID int64) ([]*domain.Account, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+accountColumns+` FROM accounts
		WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("AccountsByUser: %w", err)
	}
	defer rows.Close()

	var out []*domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AccountForUpdate locks the account row for the rest of the unit.
func (t *pgTx) AccountForUpdate(ctx context.Context, id int64) (*domain.Account, error) {
	return scanAccount(t.tx.QueryRow(ctx, `
		SELECT `+accountColumns+` FROM accounts WHERE id = $1
		FOR UPDATE
	`, id))
}

func (t *pgTx) InsertAccount(ctx context.Context, a *domain.Account) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO accounts(user_id, bank_name, account_type, masked_account, balance, currency, pin, created_at)
		VALUES($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
		RETURNING id
	`, a.UserID, a.BankName, a.Kind, a.MaskedAccount, a.Balance, a.Currency, a.PIN, a.CreatedAt).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("InsertAccount: %w", err)
	}
	return nil
}

func (t *pgTx) SetAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE accounts SET balance = $2 WHERE id = $1
	`, accountID, balance)
	if err != nil {
		return fmt.Errorf("SetAccountBalance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("SetAccountBalance: account %d vanished", accountID)
	}
	return nil
}

func (t *pgTx) UpdateAccount(ctx context.Context, a *domain.Account) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE accounts SET bank_name = $2, pin = NULLIF($3, '') WHERE id = $1
	`, a.ID, a.BankName, a.PIN)
	if err != nil {
		return fmt.Errorf("UpdateAccount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("UpdateAccount: account %d vanished", a.ID)
	}
	return nil
}

// DeleteAccount relies on ON DELETE CASCADE for the account's
// transactions.
func (t *pgTx) DeleteAccount(ctx context.Context, accountID, userID int64) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		DELETE FROM accounts WHERE id = $1 AND user_id = $2
	`, accountID, userID)
	if err != nil {
		return false, fmt.Errorf("DeleteAccount: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
