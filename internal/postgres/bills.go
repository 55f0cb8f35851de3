package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/finexbank/ledger/internal/domain"
	"github.com/jackc/pgx/v5"
)

const billColumns = `id, user_id, biller_name, due_date, amount_due, status, auto_pay, COALESCE(auto_pay_time, ''), created_at`

func scanBill(row pgx.Row) (*domain.Bill, error) {
	var b domain.Bill
	err := row.Scan(&b.ID, &b.UserID, &b.BillerName, &b.DueDate, &b.AmountDue, &b.Status, &b.AutoPay, &b.AutoPayTime, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanBill: %w", err)
	}
	return &b, nil
}

func scanBills(rows pgx.Rows) ([]*domain.Bill, error) {
	defer rows.Close()
	var out []*domain.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r reads) BillByID(ctx context.Context, billID, userID int64) (*domain.Bill, error) {
	return scanBill(r.q.QueryRow(ctx, `
		SELECT `+billColumns+` FROM bills WHERE id = $1 AND user_id = $2
	`, billID, userID))
}

func (r reads) BillsByUser(ctx context.Context, userID int64) ([]*domain.Bill, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+billColumns+` FROM bills
		WHERE user_id = $1
		ORDER BY id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("BillsByUser: %w", err)
	}
	return scanBills(rows)
}

func (r reads) AutoPayCandidates(ctx context.Context) ([]*domain.Bill, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+billColumns+` FROM bills
		WHERE status = 'upcoming' AND auto_pay AND auto_pay_time IS NOT NULL AND auto_pay_time <> ''
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("AutoPayCandidates: %w", err)
	}
	return scanBills(rows)
}

// BillForUpdate locks the bill row so a sweep and a direct payment of
// the same bill serialize; whichever loses the race sees status=paid
// and no-ops.
func (t *pgTx) BillForUpdate(ctx context.Context, billID, userID int64) (*domain.Bill, error) {
	return scanBill(t.tx.QueryRow(ctx, `
		SELECT `+billColumns+` FROM bills WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, billID, userID))
}

func (t *pgTx) InsertBill(ctx context.Context, b *domain.Bill) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO bills(user_id, biller_name, due_date, amount_due, status, auto_pay, auto_pay_time, created_at)
		VALUES($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)
		RETURNING id
	`, b.UserID, b.BillerName, b.DueDate, b.AmountDue, b.Status, b.AutoPay, b.AutoPayTime, b.CreatedAt).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("InsertBill: %w", err)
	}
	return nil
}

func (t *pgTx) SetBillStatus(ctx context.Context, billID int64, status domain.BillStatus) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE bills SET status = $2 WHERE id = $1
	`, billID, status)
	if err != nil {
		return fmt.Errorf("SetBillStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("SetBillStatus: bill %d vanished", billID)
	}
	return nil
}

func (t *pgTx) UpdateBill(ctx context.Context, b *domain.Bill) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE bills
		SET biller_name = $2, due_date = $3, amount_due = $4, auto_pay = $5, auto_pay_time = NULLIF($6, '')
		WHERE id = $1
	`, b.ID, b.BillerName, b.DueDate, b.AmountDue, b.AutoPay, b.AutoPayTime)
	if err != nil {
		return fmt.Errorf("UpdateBill: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("UpdateBill: bill %d vanished", b.ID)
	}
	return nil
}

func (t *pgTx) DeleteBill(ctx context.Context, billID, userID int64) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		DELETE FROM bills WHERE id = $1 AND user_id = $2
	`, billID, userID)
	if err != nil {
		return false, fmt.Errorf("DeleteBill: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
