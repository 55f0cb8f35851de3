package postgres

import (
	"context"
	"fmt"

	"github.com/finexbank/ledger/internal/domain"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, account_id, description, category, amount, currency, txn_type, merchant, txn_date`

func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	defer rows.Close()
	var out []*domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Description, &t.Category, &t.Amount, &t.Currency, &t.Direction, &t.Merchant, &t.PostedAt); err != nil {
			return nil, fmt.Errorf("scanTransactions: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (r reads) TransactionsByUser(ctx context.Context, userID int64) ([]*domain.Transaction, error) {
	rows, err := r.q.Query(ctx, `
		SELECT t.id, t.account_id, t.description, t.category, t.amount, t.currency, t.txn_type, t.merchant, t.txn_date
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE a.user_id = $1
		ORDER BY t.txn_date DESC, t.id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("TransactionsByUser: %w", err)
	}
	return scanTransactions(rows)
}

func (r reads) TransactionsByAccount(ctx context.Context, accountID int64) ([]*domain.Transaction, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE account_id = $1
		ORDER BY txn_date DESC, id DESC
	`, accountID)
	if err != nil {
		return nil, fmt.Errorf("TransactionsByAccount: %w", err)
	}
	return scanTransactions(rows)
}

// InsertTransaction appends one immutable ledger entry. There is no
// update or delete path: entries disappear only when their account is
// deleted, via the cascade.
func (t *pgTx) InsertTransaction(ctx context.Context, tr *domain.Transaction) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO transactions(account_id, description, category, amount, currency, txn_type, merchant, txn_date)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, tr.AccountID, tr.Description, tr.Category, tr.Amount, tr.Currency, tr.Direction, tr.Merchant, tr.PostedAt).Scan(&tr.ID)
	if err != nil {
		return fmt.Errorf("InsertTransaction: %w", err)
	}
	return nil
}
