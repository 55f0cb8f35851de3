package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/finexbank/ledger/internal/domain"
	"github.com/jackc/pgx/v5"
)

func (r reads) UserByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.scanUser(ctx, `
		SELECT id, name, email, created_at
		FROM users WHERE id = $1
	`, id)
}

func (r reads) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.scanUser(ctx, `
		SELECT id, name, email, created_at
		FROM users WHERE email = $1
	`, email)
}

func (r reads) scanUser(ctx context.Context, sql string, arg any) (*domain.User, error) {
	var u domain.User
	err := r.q.QueryRow(ctx, sql, arg).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanUser: %w", err)
	}
	return &u, nil
}

func (t *pgTx) InsertUser(ctx context.Context, u *domain.User) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO users(name, email, created_at)
		VALUES($1, $2, $3)
		RETURNING id
	`, u.Name, u.Email, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("InsertUser: %w", err)
	}
	return nil
}
