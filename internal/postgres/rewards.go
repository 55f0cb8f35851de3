package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/finexbank/ledger/internal/domain"
	"github.com/jackc/pgx/v5"
)

func scanReward(row pgx.Row) (*domain.RewardLedger, error) {
	var r domain.RewardLedger
	err := row.Scan(&r.ID, &r.UserID, &r.ProgramName, &r.Points, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanReward: %w", err)
	}
	return &r, nil
}

func (r reads) RewardByUser(ctx context.Context, userID int64) (*domain.RewardLedger, error) {
	return scanReward(r.q.QueryRow(ctx, `
		SELECT id, user_id, program_name, points_balance, last_updated
		FROM rewards WHERE user_id = $1
	`, userID))
}

func (t *pgTx) RewardForUpdate(ctx context.Context, userID int64) (*domain.RewardLedger, error) {
	return scanReward(t.tx.QueryRow(ctx, `
		SELECT id, user_id, program_name, points_balance, last_updated
		FROM rewards WHERE user_id = $1
		FOR UPDATE
	`, userID))
}

func (t *pgTx) CreateReward(ctx context.Context, r *domain.RewardLedger) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO rewards(user_id, program_name, points_balance, last_updated)
		VALUES($1, $2, $3, $4)
		RETURNING id
	`, r.UserID, r.ProgramName, r.Points, r.UpdatedAt).Scan(&r.ID)
	if err != nil {
		return fmt.Errorf("CreateReward: %w", err)
	}
	return nil
}

// SetRewardPoints writes an absolute balance computed against the
// locked row; the points_balance >= 0 check backstops the engine's
// policy check.
func (t *pgTx) SetRewardPoints(ctx context.Context, userID int64, points int64, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE rewards SET points_balance = $2, last_updated = $3 WHERE user_id = $1
	`, userID, points, at)
	if err != nil {
		return fmt.Errorf("SetRewardPoints: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("SetRewardPoints: no reward row for user %d", userID)
	}
	return nil
}

func (r reads) RedeemedByUser(ctx context.Context, userID int64) ([]*domain.RedeemedReward, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, user_id, item_name, code, redeemed_at, expiry_date
		FROM redeemed_rewards
		WHERE user_id = $1
		ORDER BY redeemed_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("RedeemedByUser: %w", err)
	}
	defer rows.Close()

	var out []*domain.RedeemedReward
	for rows.Next() {
		var rr domain.RedeemedReward
		if err := rows.Scan(&rr.ID, &rr.UserID, &rr.ItemName, &rr.Code, &rr.RedeemedAt, &rr.ExpiresAt); err != nil {
			return nil, fmt.Errorf("RedeemedByUser: scan: %w", err)
		}
		out = append(out, &rr)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertRedeemedReward(ctx context.Context, rr *domain.RedeemedReward) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO redeemed_rewards(user_id, item_name, code, redeemed_at, expiry_date)
		VALUES($1, $2, $3, $4, $5)
		RETURNING id
	`, rr.UserID, rr.ItemName, rr.Code, rr.RedeemedAt, rr.ExpiresAt).Scan(&rr.ID)
	if err != nil {
		return fmt.Errorf("InsertRedeemedReward: %w", err)
	}
	return nil
}
