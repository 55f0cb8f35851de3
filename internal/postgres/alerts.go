package postgres

import (
	"context"
	"fmt"

	"github.com/finexbank/ledger/internal/domain"
)

func (r reads) AlertsByUser(ctx context.Context, userID int64) ([]*domain.Alert, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, user_id, type, message, created_at
		FROM alerts
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("AlertsByUser: %w", err)
	}
	defer rows.Close()

	var out []*domain.Alert
	for rows.Next() {
		var a domain.Alert
		if err := rows.Scan(&a.ID, &a.UserID, &a.Type, &a.Message, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("AlertsByUser: scan: %w", err)
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertAlert(ctx context.Context, a *domain.Alert) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO alerts(user_id, type, message, created_at)
		VALUES($1, $2, $3, $4)
		RETURNING id
	`, a.UserID, a.Type, a.Message, a.CreatedAt).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("InsertAlert: %w", err)
	}
	return nil
}
