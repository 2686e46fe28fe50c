package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/party-admin-service/internal/domain"
)

// ConfirmationTokenRepository manages email confirmation token persistence.
type ConfirmationTokenRepository interface {
	Create(ctx context.Context, token *domain.ConfirmationToken) error
	GetByToken(ctx context.Context, token string) (*domain.ConfirmationToken, error)
	Delete(ctx context.Context, token string) error
	DeleteByUser(ctx context.Context, userID string) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) error
}

type confirmationTokenRepository struct {
	pool *pgxpool.Pool
}

// NewConfirmationTokenRepository constructs repository.
func NewConfirmationTokenRepository(pool *pgxpool.Pool) ConfirmationTokenRepository {
	return &confirmationTokenRepository{pool: pool}
}

func (r *confirmationTokenRepository) Create(ctx context.Context, token *domain.ConfirmationToken) error {
	const query = `
        INSERT INTO confirmation_tokens (token, user_id, email)
        VALUES ($1,$2,$3)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		token.Token,
		token.UserID,
		token.Email,
	).Scan(&token.CreatedAt)
}

func (r *confirmationTokenRepository) GetByToken(ctx context.Context, tokenStr string) (*domain.ConfirmationToken, error) {
	const query = `
        SELECT token, user_id, email, created_at
        FROM confirmation_tokens WHERE token=$1`
	var token domain.ConfirmationToken
	if err := r.pool.QueryRow(ctx, query, tokenStr).Scan(
		&token.Token,
		&token.UserID,
		&token.Email,
		&token.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *confirmationTokenRepository) Delete(ctx context.Context, tokenStr string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM confirmation_tokens WHERE token=$1`, tokenStr)
	return err
}

func (r *confirmationTokenRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM confirmation_tokens WHERE user_id=$1`, userID)
	return err
}

func (r *confirmationTokenRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM confirmation_tokens WHERE created_at < $1`, cutoff)
	return err
}
