package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/party-admin-service/internal/domain"
)

// AuditFilter narrows audit log queries. Nil fields are ignored. EndDate is
// inclusive and treated as end-of-day by the service layer.
type AuditFilter struct {
	UserID    *string
	Action    *domain.AuditAction
	StartDate *time.Time
	EndDate   *time.Time
}

// AuditRepository stores audit entries. Append-only: entries are never
// updated or individually deleted.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditEntry) error
	List(ctx context.Context, filter AuditFilter) ([]domain.AuditEntry, error)
}

type auditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository builds repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepository{pool: pool}
}

func (r *auditRepository) Create(ctx context.Context, entry *domain.AuditEntry) error {
	changes, err := json.Marshal(entry.Changes)
	if err != nil {
		return err
	}

	const query = `
        INSERT INTO audit_entries (id, user_id, user_email, user_name, action, changed_by, changed_by_name, changes)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING timestamp`
	return r.pool.QueryRow(ctx, query,
		entry.ID,
		entry.UserID,
		entry.UserEmail,
		entry.UserName,
		entry.Action,
		entry.ChangedBy,
		entry.ChangedByName,
		changes,
	).Scan(&entry.Timestamp)
}

func (r *auditRepository) List(ctx context.Context, filter AuditFilter) ([]domain.AuditEntry, error) {
	query := `
        SELECT id, user_id, user_email, user_name, action, changed_by, changed_by_name, changes, timestamp
        FROM audit_entries WHERE 1=1`
	args := []any{}

	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		query += ` AND user_id=$` + strconv.Itoa(len(args))
	}
	if filter.Action != nil {
		args = append(args, *filter.Action)
		query += ` AND action=$` + strconv.Itoa(len(args))
	}
	if filter.StartDate != nil {
		args = append(args, *filter.StartDate)
		query += ` AND timestamp >= $` + strconv.Itoa(len(args))
	}
	if filter.EndDate != nil {
		args = append(args, *filter.EndDate)
		query += ` AND timestamp <= $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY timestamp DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		var changes []byte
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.UserEmail,
			&entry.UserName,
			&entry.Action,
			&entry.ChangedBy,
			&entry.ChangedByName,
			&changes,
			&entry.Timestamp,
		); err != nil {
			return nil, err
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &entry.Changes); err != nil {
				return nil, err
			}
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

