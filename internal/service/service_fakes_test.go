package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/party-admin-service/internal/config"
	"github.com/spec-kit/party-admin-service/internal/domain"
	"github.com/spec-kit/party-admin-service/internal/mailer"
	"github.com/spec-kit/party-admin-service/internal/repository"
)

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]domain.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return pgx.ErrNoRows
	}
	user.UpdatedAt = time.Now()
	f.users[user.ID] = *user
	return nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &user, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			u := user
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) GetByResetToken(_ context.Context, token string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.ResetToken != nil && *user.ResetToken == token {
			u := user
			return &u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) List(_ context.Context) ([]domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.User, 0, len(f.users))
	for _, user := range f.users {
		out = append(out, user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// fakeTokenRepo is an in-memory ConfirmationTokenRepository.
type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]domain.ConfirmationToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string]domain.ConfirmationToken)}
}

func (f *fakeTokenRepo) Create(_ context.Context, token *domain.ConfirmationToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	f.tokens[token.Token] = *token
	return nil
}

func (f *fakeTokenRepo) GetByToken(_ context.Context, tokenStr string) (*domain.ConfirmationToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token, ok := f.tokens[tokenStr]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &token, nil
}

func (f *fakeTokenRepo) Delete(_ context.Context, tokenStr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, tokenStr)
	return nil
}

func (f *fakeTokenRepo) DeleteByUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, token := range f.tokens {
		if token.UserID == userID {
			delete(f.tokens, key)
		}
	}
	return nil
}

func (f *fakeTokenRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, token := range f.tokens {
		if token.CreatedAt.Before(cutoff) {
			delete(f.tokens, key)
		}
	}
	return nil
}

func (f *fakeTokenRepo) forUser(userID string) []domain.ConfirmationToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ConfirmationToken
	for _, token := range f.tokens {
		if token.UserID == userID {
			out = append(out, token)
		}
	}
	return out
}

// fakeAuditRepo is an in-memory AuditRepository.
type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{}
}

func (f *fakeAuditRepo) Create(_ context.Context, entry *domain.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditRepo) List(_ context.Context, filter repository.AuditFilter) ([]domain.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.AuditEntry
	for _, entry := range f.entries {
		if filter.UserID != nil && entry.UserID != *filter.UserID {
			continue
		}
		if filter.Action != nil && entry.Action != *filter.Action {
			continue
		}
		if filter.StartDate != nil && entry.Timestamp.Before(*filter.StartDate) {
			continue
		}
		if filter.EndDate != nil && entry.Timestamp.After(*filter.EndDate) {
			continue
		}
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// fakeSubsRepo is an in-memory PushSubscriptionRepository.
type fakeSubsRepo struct {
	mu   sync.Mutex
	subs map[string]domain.PushSubscription
}

func newFakeSubsRepo() *fakeSubsRepo {
	return &fakeSubsRepo{subs: make(map[string]domain.PushSubscription)}
}

func (f *fakeSubsRepo) Upsert(_ context.Context, sub *domain.PushSubscription) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.subs[sub.Endpoint]; ok {
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
	} else if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now()
	}
	f.subs[sub.Endpoint] = *sub
	return nil
}

func (f *fakeSubsRepo) DeleteByEndpoint(_ context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, endpoint)
	return nil
}

func (f *fakeSubsRepo) List(_ context.Context) ([]domain.PushSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.PushSubscription, 0, len(f.subs))
	for _, sub := range f.subs {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out, nil
}

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:               "test-secret",
			SessionTTLDays:          7,
			ConfirmationTTLHours:    24,
			PasswordResetTTLMinutes: 60,
			BcryptCost:              4,
		},
	}
}

func testMailer() mailer.Mailer {
	return mailer.NewHTTPMailer(config.MailerConfig{}, zap.NewNop())
}
