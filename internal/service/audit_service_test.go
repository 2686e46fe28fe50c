package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/party-admin-service/internal/domain"

	apperrors "github.com/spec-kit/party-admin-service/pkg/util"
)

func newAuditFixture(t *testing.T) (*AuditService, *fakeUserRepo, *fakeAuditRepo) {
	t.Helper()
	users := newFakeUserRepo()
	audits := newFakeAuditRepo()
	svc := NewAuditService(audits, users, zap.NewNop())
	return svc, users, audits
}

func recordAt(svc *AuditService, entry domain.AuditEntry, at time.Time) {
	entry.Timestamp = at
	svc.Record(context.Background(), &entry)
}

func TestRecordAssignsIDAndTimestamp(t *testing.T) {
	svc, _, audits := newAuditFixture(t)

	entry := &domain.AuditEntry{
		UserID:    "u1",
		Action:    domain.AuditActionCreate,
		ChangedBy: "admin-1",
	}
	svc.Record(context.Background(), entry)

	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())

	audits.mu.Lock()
	defer audits.mu.Unlock()
	require.Len(t, audits.entries, 1)
}

func TestQueryFiltersByActionAndDate(t *testing.T) {
	svc, _, _ := newAuditFixture(t)
	now := time.Now()

	recordAt(svc, domain.AuditEntry{UserID: "u1", Action: domain.AuditActionCreate, ChangedBy: "a"}, now.AddDate(0, 0, -10))
	recordAt(svc, domain.AuditEntry{UserID: "u1", Action: domain.AuditActionDelete, ChangedBy: "a"}, now.AddDate(0, 0, -2))
	recordAt(svc, domain.AuditEntry{UserID: "u2", Action: domain.AuditActionDelete, ChangedBy: "a"}, now.AddDate(0, 0, -20))

	start := now.AddDate(0, 0, -5)
	end := now
	page, err := svc.Query(context.Background(), AuditQuery{
		Action:    "delete",
		StartDate: &start,
		EndDate:   &end,
	})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "u1", page.Entries[0].UserID)
}

func TestQueryRejectsUnknownAction(t *testing.T) {
	svc, _, _ := newAuditFixture(t)

	_, err := svc.Query(context.Background(), AuditQuery{Action: "promote"})
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, 400, domainErr.HTTPStatus)
}

func TestQueryNewestFirstWithPagination(t *testing.T) {
	svc, _, _ := newAuditFixture(t)
	now := time.Now()

	for i := 0; i < 5; i++ {
		recordAt(svc, domain.AuditEntry{UserID: "u1", Action: domain.AuditActionUpdate, ChangedBy: "a"}, now.Add(-time.Duration(i)*time.Hour))
	}

	page, err := svc.Query(context.Background(), AuditQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)

	require.Len(t, page.Entries, 2)
	assert.True(t, page.Entries[0].Timestamp.After(page.Entries[1].Timestamp))
	assert.Equal(t, 5, page.Pagination.Total)
	assert.True(t, page.Pagination.HasMore)
}

func TestQueryStats(t *testing.T) {
	svc, users, _ := newAuditFixture(t)
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, &domain.User{ID: "admin-1", Name: "Root", Email: "root@example.com"}))

	fixed := time.Date(2026, 8, 30, 15, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	recordAt(svc, domain.AuditEntry{UserID: "u1", Action: domain.AuditActionCreate, ChangedBy: "admin-1"}, fixed.Add(-time.Hour))
	recordAt(svc, domain.AuditEntry{UserID: "u1", Action: domain.AuditActionUpdate, ChangedBy: "admin-1"}, fixed.AddDate(0, 0, -3))
	recordAt(svc, domain.AuditEntry{UserID: "u2", Action: domain.AuditActionDelete, ChangedBy: domain.SystemActor}, fixed.AddDate(0, 0, -30))
	recordAt(svc, domain.AuditEntry{UserID: "u3", Action: domain.AuditActionCreate, ChangedBy: "ghost"}, fixed.AddDate(0, 0, -1))

	page, err := svc.Query(ctx, AuditQuery{})
	require.NoError(t, err)

	stats := page.Stats
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 1, stats.Today)
	assert.Equal(t, 3, stats.ThisWeek)
	assert.Equal(t, 2, stats.ByAction[domain.AuditActionCreate])
	assert.Equal(t, 1, stats.ByAction[domain.AuditActionUpdate])
	assert.Equal(t, 1, stats.ByAction[domain.AuditActionDelete])

	// System entries never count toward actor activity; unknown actors keep
	// their id with a placeholder name.
	require.Len(t, stats.MostActiveActors, 2)
	assert.Equal(t, "admin-1", stats.MostActiveActors[0].ID)
	assert.Equal(t, "Root", stats.MostActiveActors[0].Name)
	assert.Equal(t, 2, stats.MostActiveActors[0].Count)
	assert.Equal(t, "Unknown", stats.MostActiveActors[1].Name)
}

func TestQueryEnrichesWithSnapshotFallback(t *testing.T) {
	svc, users, _ := newAuditFixture(t)
	ctx := context.Background()

	require.NoError(t, users.Create(ctx, &domain.User{ID: "admin-1", Name: "Root", Email: "root@example.com"}))

	recordAt(svc, domain.AuditEntry{
		UserID:    "deleted-user",
		UserEmail: "gone@example.com",
		UserName:  "Gone",
		Action:    domain.AuditActionDelete,
		ChangedBy: "admin-1",
	}, time.Now())

	page, err := svc.Query(ctx, AuditQuery{})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)

	entry := page.Entries[0]
	require.NotNil(t, entry.ChangedByInfo)
	assert.Equal(t, "Root", entry.ChangedByInfo.Name)
	// Target no longer exists: the stored snapshot fills in.
	assert.Equal(t, "Gone", entry.TargetUserInfo.Name)
	assert.Equal(t, "gone@example.com", entry.TargetUserInfo.Email)
}
