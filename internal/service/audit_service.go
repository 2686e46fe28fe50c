package service

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/party-admin-service/internal/domain"
	"github.com/spec-kit/party-admin-service/internal/repository"

	apperrors "github.com/spec-kit/party-admin-service/pkg/util"
)

const defaultHistoryLimit = 100

// AuditService records administrative mutations and answers history queries.
type AuditService struct {
	entries repository.AuditRepository
	users   repository.UserRepository
	logger  *zap.Logger
	now     func() time.Time
}

// NewAuditService builds the service.
func NewAuditService(entries repository.AuditRepository, users repository.UserRepository, logger *zap.Logger) *AuditService {
	return &AuditService{entries: entries, users: users, logger: logger, now: time.Now}
}

// Record appends an entry with a server-generated id and timestamp. Entries
// are immutable once written.
func (s *AuditService) Record(ctx context.Context, entry *domain.AuditEntry) {
	entry.ID = uuid.NewString()
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	if err := s.entries.Create(ctx, entry); err != nil {
		s.logger.Error("failed to record audit entry",
			zap.Error(err),
			zap.String("user_id", entry.UserID),
			zap.String("action", string(entry.Action)))
	}
}

// AuditQuery describes history filters and pagination.
type AuditQuery struct {
	UserID    string
	Action    string
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// UserInfo is the resolved display info of an actor or target.
type UserInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// EnrichedEntry is an audit entry with resolved actor/target info.
type EnrichedEntry struct {
	domain.AuditEntry
	ChangedByInfo  *UserInfo `json:"changedByInfo"`
	TargetUserInfo UserInfo  `json:"targetUserInfo"`
}

// ActorActivity counts mutations per non-system actor.
type ActorActivity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// AuditStats aggregates counts over the filtered (pre-pagination) set.
type AuditStats struct {
	Total            int                        `json:"total"`
	Today            int                        `json:"today"`
	ThisWeek         int                        `json:"thisWeek"`
	ByAction         map[domain.AuditAction]int `json:"byAction"`
	MostActiveActors []ActorActivity            `json:"mostActiveUsers"`
}

// Pagination reports the slice returned by a query.
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// AuditPage is the full history query result.
type AuditPage struct {
	Entries    []EnrichedEntry `json:"history"`
	Stats      AuditStats      `json:"stats"`
	Pagination Pagination      `json:"pagination"`
}

// Query returns filtered entries newest-first with aggregate stats computed
// before pagination.
func (s *AuditService) Query(ctx context.Context, q AuditQuery) (*AuditPage, error) {
	filter := repository.AuditFilter{}
	if q.UserID != "" {
		filter.UserID = &q.UserID
	}
	if q.Action != "" {
		action := domain.AuditAction(q.Action)
		switch action {
		case domain.AuditActionCreate, domain.AuditActionUpdate, domain.AuditActionDelete:
			filter.Action = &action
		default:
			return nil, apperrors.NewValidationError("unknown action", nil)
		}
	}
	if q.StartDate != nil {
		filter.StartDate = q.StartDate
	}
	if q.EndDate != nil {
		// Inclusive end date: extend to end of day.
		end := time.Date(q.EndDate.Year(), q.EndDate.Month(), q.EndDate.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), q.EndDate.Location())
		filter.EndDate = &end
	}

	entries, err := s.entries.List(ctx, filter)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	byID := make(map[string]domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	stats := s.computeStats(entries, byID)

	limit := q.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	page := paginate(entries, offset, limit)

	enriched := make([]EnrichedEntry, 0, len(page))
	for _, entry := range page {
		enriched = append(enriched, enrich(entry, byID))
	}

	return &AuditPage{
		Entries: enriched,
		Stats:   stats,
		Pagination: Pagination{
			Total:   len(entries),
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+limit < len(entries),
		},
	}, nil
}

func (s *AuditService) computeStats(entries []domain.AuditEntry, byID map[string]domain.User) AuditStats {
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekAgo := today.AddDate(0, 0, -7)

	stats := AuditStats{
		Total: len(entries),
		ByAction: map[domain.AuditAction]int{
			domain.AuditActionCreate: 0,
			domain.AuditActionUpdate: 0,
			domain.AuditActionDelete: 0,
		},
		MostActiveActors: []ActorActivity{},
	}

	counts := map[string]int{}
	for _, entry := range entries {
		if !entry.Timestamp.Before(today) {
			stats.Today++
		}
		if !entry.Timestamp.Before(weekAgo) {
			stats.ThisWeek++
		}
		stats.ByAction[entry.Action]++
		if entry.ChangedBy != "" && entry.ChangedBy != domain.SystemActor {
			counts[entry.ChangedBy]++
		}
	}

	for actorID, count := range counts {
		name := "Unknown"
		if actor, ok := byID[actorID]; ok {
			name = actor.Name
		}
		stats.MostActiveActors = append(stats.MostActiveActors, ActorActivity{ID: actorID, Name: name, Count: count})
	}
	sort.Slice(stats.MostActiveActors, func(i, j int) bool {
		if stats.MostActiveActors[i].Count != stats.MostActiveActors[j].Count {
			return stats.MostActiveActors[i].Count > stats.MostActiveActors[j].Count
		}
		return stats.MostActiveActors[i].ID < stats.MostActiveActors[j].ID
	})
	if len(stats.MostActiveActors) > 10 {
		stats.MostActiveActors = stats.MostActiveActors[:10]
	}

	return stats
}

func enrich(entry domain.AuditEntry, byID map[string]domain.User) EnrichedEntry {
	enriched := EnrichedEntry{AuditEntry: entry}

	if entry.ChangedBy != "" && entry.ChangedBy != domain.SystemActor {
		if actor, ok := byID[entry.ChangedBy]; ok {
			enriched.ChangedByInfo = &UserInfo{ID: actor.ID, Name: actor.Name, Email: actor.Email}
		}
	}

	if target, ok := byID[entry.UserID]; ok {
		enriched.TargetUserInfo = UserInfo{ID: target.ID, Name: target.Name, Email: target.Email}
	} else {
		// Target removed; fall back to the snapshot taken when the entry was written.
		enriched.TargetUserInfo = UserInfo{ID: entry.UserID, Name: entry.UserName, Email: entry.UserEmail}
	}
	return enriched
}

func paginate(entries []domain.AuditEntry, offset, limit int) []domain.AuditEntry {
	if offset >= len(entries) {
		return nil
	}
	end := offset + limit
	if end > len(entries) {
		end = len(entries)
	}
	return entries[offset:end]
}
