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

func newAuthFixture(t *testing.T) (*AuthService, *fakeUserRepo, *fakeTokenRepo, *fakeAuditRepo) {
	t.Helper()
	users := newFakeUserRepo()
	tokens := newFakeTokenRepo()
	audits := newFakeAuditRepo()
	audit := NewAuditService(audits, users, zap.NewNop())

	svc := NewAuthService(testConfig(), AuthDependencies{
		UserRepo:  users,
		TokenRepo: tokens,
		Audit:     audit,
		Mailer:    testMailer(),
		Logger:    zap.NewNop(),
	})
	return svc, users, tokens, audits
}

func TestRegisterCreatesPendingAccount(t *testing.T) {
	svc, _, tokens, audits := newAuthFixture(t)

	user, err := svc.Register(context.Background(), "Ana", "Ana@Example.com", "secret1")
	require.NoError(t, err)

	assert.Equal(t, "ana@example.com", user.Email)
	assert.False(t, user.EmailConfirmed)
	assert.False(t, user.IsAdmin)
	assert.Equal(t, domain.SystemActor, user.CreatedBy)

	require.Len(t, tokens.forUser(user.ID), 1)

	audits.mu.Lock()
	defer audits.mu.Unlock()
	require.Len(t, audits.entries, 1)
	assert.Equal(t, domain.AuditActionCreate, audits.entries[0].Action)
	assert.Equal(t, domain.SystemActor, audits.entries[0].ChangedBy)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _, _ := newAuthFixture(t)
	ctx := context.Background()

	cases := []struct {
		name     string
		userName string
		email    string
		password string
	}{
		{"missing name", "", "a@b.co", "secret1"},
		{"bad email", "Ana", "not-an-email", "secret1"},
		{"short password", "Ana", "a@b.co", "abc"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.userName, tc.email, tc.password)
			require.Error(t, err)
			var domainErr *apperrors.DomainError
			require.ErrorAs(t, err, &domainErr)
			assert.Equal(t, 400, domainErr.HTTPStatus)
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Ana", "ana@example.com", "secret1")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "Other", "ANA@example.com", "secret2")
	require.Error(t, err)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "CONFLICT", domainErr.Code)
	assert.Equal(t, 400, domainErr.HTTPStatus)
}

func TestConfirmEmailFlow(t *testing.T) {
	svc, users, tokens, _ := newAuthFixture(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Ana", "ana@example.com", "secret1")
	require.NoError(t, err)
	issued := tokens.forUser(user.ID)
	require.Len(t, issued, 1)

	require.NoError(t, svc.ConfirmEmail(ctx, issued[0].Token))

	confirmed, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, confirmed.EmailConfirmed)

	// Single use: the same token fails the second time.
	err = svc.ConfirmEmail(ctx, issued[0].Token)
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, 401, domainErr.HTTPStatus)
}

func TestConfirmEmailExpiredTokenPurged(t *testing.T) {
	svc, _, tokens, _ := newAuthFixture(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Ana", "ana@example.com", "secret1")
	require.NoError(t, err)
	issued := tokens.forUser(user.ID)
	require.Len(t, issued, 1)

	// Age the token beyond the 24h window.
	tokens.mu.Lock()
	old := tokens.tokens[issued[0].Token]
	old.CreatedAt = time.Now().Add(-25 * time.Hour)
	tokens.tokens[issued[0].Token] = old
	tokens.mu.Unlock()

	err = svc.ConfirmEmail(ctx, issued[0].Token)
	require.Error(t, err)
	assert.Empty(t, tokens.forUser(user.ID))
}

func TestLoginIndistinguishableFailures(t *testing.T) {
	svc, _, tokens, _ := newAuthFixture(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Ana", "ana@example.com", "secret1")
	require.NoError(t, err)
	issued := tokens.forUser(user.ID)
	require.NoError(t, svc.ConfirmEmail(ctx, issued[0].Token))

	_, _, _, unknownErr := svc.Login(ctx, "nobody@example.com", "secret1")
	_, _, _, wrongErr := svc.Login(ctx, "ana@example.com", "wrong-password")

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
}

func TestLoginRequiresConfirmedEmail(t *testing.T) {
	svc, _, _, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "Ana", "ana@example.com", "secret1")
	require.NoError(t, err)

	_, _, _, err = svc.Login(ctx, "ana@example.com", "secret1")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "EMAIL_NOT_CONFIRMED", domainErr.Code)
	assert.Equal(t, 403, domainErr.HTTPStatus)
}

func TestLoginIssuesParsableToken(t *testing.T) {
	svc, _, tokens, _ := newAuthFixture(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Ana", "ana@example.com", "secret1")
	require.NoError(t, err)
	issued := tokens.forUser(user.ID)
	require.NoError(t, svc.ConfirmEmail(ctx, issued[0].Token))

	_, tokenStr, exp, err := svc.Login(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), exp, time.Minute)

	claims, err := svc.TokenManager().ParseToken(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "ana@example.com", claims.Email)
	assert.False(t, claims.IsAdmin)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, users, tokens, _ := newAuthFixture(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Ana", "ana@example.com", "secret1")
	require.NoError(t, err)
	issued := tokens.forUser(user.ID)
	require.NoError(t, svc.ConfirmEmail(ctx, issued[0].Token))

	require.NoError(t, svc.ForgotPassword(ctx, "ana@example.com"))

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.ResetToken)

	require.NoError(t, svc.ResetPassword(ctx, *stored.ResetToken, "newsecret"))

	_, _, _, err = svc.Login(ctx, "ana@example.com", "newsecret")
	require.NoError(t, err)
	_, _, _, err = svc.Login(ctx, "ana@example.com", "secret1")
	require.Error(t, err)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	svc, users, _, _ := newAuthFixture(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Ana", "ana@example.com", "secret1")
	require.NoError(t, err)
	require.NoError(t, svc.ForgotPassword(ctx, "ana@example.com"))

	stored, err := users.GetByID(ctx, user.ID)
	require.NoError(t, err)
	expired := time.Now().Add(-time.Minute)
	stored.ResetExpires = &expired
	require.NoError(t, users.Update(ctx, stored))

	err = svc.ResetPassword(ctx, *stored.ResetToken, "newsecret")
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_TOKEN", domainErr.Code)
}
