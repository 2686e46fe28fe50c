package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/party-admin-service/internal/domain"
)

// PushSubscriptionRepository manages push subscription persistence.
type PushSubscriptionRepository interface {
	Upsert(ctx context.Context, sub *domain.PushSubscription) error
	DeleteByEndpoint(ctx context.Context, endpoint string) error
	List(ctx context.Context) ([]domain.PushSubscription, error)
}

type pushSubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewPushSubscriptionRepository constructs repository.
func NewPushSubscriptionRepository(pool *pgxpool.Pool) PushSubscriptionRepository {
	return &pushSubscriptionRepository{pool: pool}
}

func (r *pushSubscriptionRepository) Upsert(ctx context.Context, sub *domain.PushSubscription) error {
	const query = `
        INSERT INTO push_subscriptions (id, endpoint, p256dh, auth)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (endpoint) DO UPDATE SET p256dh=EXCLUDED.p256dh, auth=EXCLUDED.auth
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		sub.ID,
		sub.Endpoint,
		sub.P256dh,
		sub.Auth,
	).Scan(&sub.ID, &sub.CreatedAt)
}

func (r *pushSubscriptionRepository) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM push_subscriptions WHERE endpoint=$1`, endpoint)
	return err
}

func (r *pushSubscriptionRepository) List(ctx context.Context) ([]domain.PushSubscription, error) {
	const query = `SELECT id, endpoint, p256dh, auth, created_at FROM push_subscriptions ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.PushSubscription
	for rows.Next() {
		var sub domain.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, sub)
	}
	return result, rows.Err()
}
