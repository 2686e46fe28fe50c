package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/party-admin-service/internal/auth"
	"github.com/spec-kit/party-admin-service/internal/config"
	"github.com/spec-kit/party-admin-service/internal/domain"
	"github.com/spec-kit/party-admin-service/internal/events"
	"github.com/spec-kit/party-admin-service/internal/mailer"
	"github.com/spec-kit/party-admin-service/internal/repository"
	"go.uber.org/zap"

	apperrors "github.com/spec-kit/party-admin-service/pkg/util"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const minPasswordLength = 6

// AuthService coordinates registration, confirmation and login flows.
type AuthService struct {
	users           repository.UserRepository
	tokens          repository.ConfirmationTokenRepository
	audit           *AuditService
	tokenMgr        *auth.TokenManager
	mail            mailer.Mailer
	dispatcher      events.Dispatcher
	logger          *zap.Logger
	bcryptCost      int
	confirmationTTL time.Duration
	resetTTL        time.Duration
	now             func() time.Time
}

// AuthDependencies encapsulates requirements for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	TokenRepo  repository.ConfirmationTokenRepository
	Audit      *AuditService
	Mailer     mailer.Mailer
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:           deps.UserRepo,
		tokens:          deps.TokenRepo,
		audit:           deps.Audit,
		tokenMgr:        auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL()),
		mail:            deps.Mailer,
		dispatcher:      deps.Dispatcher,
		logger:          deps.Logger,
		bcryptCost:      cfg.Auth.BcryptCost,
		confirmationTTL: cfg.Auth.ConfirmationTTL(),
		resetTTL:        cfg.Auth.ResetTTL(),
		now:             time.Now,
	}
}

// Register creates a pending account and dispatches a confirmation email.
// Mail failure is logged but never fails the registration.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)

	if name == "" || email == "" || password == "" {
		return nil, apperrors.NewValidationError("name, email and password are required", nil)
	}
	if !emailPattern.MatchString(email) {
		return nil, apperrors.NewValidationError("invalid email", nil)
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.NewValidationError("password must be at least 6 characters", nil)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if err != pgx.ErrNoRows {
		return nil, apperrors.NewInternalError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		ID:             uuid.NewString(),
		Name:           name,
		Email:          email,
		PasswordHash:   hash,
		IsAdmin:        false,
		EmailConfirmed: false,
		CreatedBy:      domain.SystemActor,
		UpdatedBy:      domain.SystemActor,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.audit.Record(ctx, &domain.AuditEntry{
		UserID:        user.ID,
		UserEmail:     user.Email,
		UserName:      user.Name,
		Action:        domain.AuditActionCreate,
		ChangedBy:     domain.SystemActor,
		ChangedByName: domain.SystemActor,
		Changes: map[string]domain.FieldChange{
			"name":    {Old: nil, New: user.Name},
			"email":   {Old: nil, New: user.Email},
			"isAdmin": {Old: nil, New: user.IsAdmin},
		},
	})

	if err := issueConfirmation(ctx, s.tokens, s.mail, s.logger, user); err != nil {
		s.logger.Error("failed to issue confirmation token", zap.Error(err), zap.String("user_id", user.ID))
	}

	s.publish(ctx, events.Event{
		Type:   events.EventUserRegistered,
		UserID: user.ID,
		Actor:  domain.SystemActor,
		Payload: events.UserRegisteredPayload{
			Name:  user.Name,
			Email: user.Email,
		},
	})

	return user, nil
}

// issueConfirmation replaces any pending token for the user with a fresh one
// and dispatches the confirmation mail. Mail failure is logged only.
func issueConfirmation(ctx context.Context, tokens repository.ConfirmationTokenRepository, mail mailer.Mailer, logger *zap.Logger, user *domain.User) error {
	if err := tokens.DeleteByUser(ctx, user.ID); err != nil {
		return err
	}

	token := &domain.ConfirmationToken{
		Token:  generateSecret(),
		UserID: user.ID,
		Email:  user.Email,
	}
	if err := tokens.Create(ctx, token); err != nil {
		return err
	}

	if err := mail.SendConfirmation(ctx, user.Email, user.Name, token.Token); err != nil {
		logger.Error("failed to send confirmation email", zap.Error(err), zap.String("email", user.Email))
	}
	return nil
}

// ConfirmEmail consumes a confirmation token. Expired tokens are purged
// lazily on each attempt; a token is usable exactly once.
func (s *AuthService) ConfirmEmail(ctx context.Context, tokenStr string) error {
	if tokenStr == "" {
		return apperrors.NewValidationError("token is required", nil)
	}

	cutoff := s.now().Add(-s.confirmationTTL)
	if err := s.tokens.DeleteOlderThan(ctx, cutoff); err != nil {
		return apperrors.NewInternalError(err)
	}

	token, err := s.tokens.GetByToken(ctx, tokenStr)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewInvalidToken("invalid or expired token")
		}
		return apperrors.NewInternalError(err)
	}

	user, err := s.users.GetByID(ctx, token.UserID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewInvalidToken("invalid or expired token")
		}
		return apperrors.NewInternalError(err)
	}

	user.EmailConfirmed = true
	user.UpdatedBy = domain.SystemActor
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.NewInternalError(err)
	}

	if err := s.tokens.Delete(ctx, token.Token); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// Login authenticates credentials and issues a session token. Unknown email
// and wrong password fail with the same error.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	email = normalizeEmail(email)

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, "", time.Time{}, apperrors.NewInvalidCredentials()
		}
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewInvalidCredentials()
	}
	if !user.EmailConfirmed {
		return nil, "", time.Time{}, apperrors.NewEmailNotConfirmed()
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Email, user.Name, user.IsAdmin)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return user, token, exp, nil
}

// Me returns the caller's current account record.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}
	return user, nil
}

// ForgotPassword stores a short-lived reset token on the account and mails
// the reset link. Mail failure is logged only.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperrors.NewValidationError("email is required", nil)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("user", nil)
		}
		return apperrors.NewInternalError(err)
	}

	token := generateSecret()
	expires := s.now().Add(s.resetTTL)
	user.ResetToken = &token
	user.ResetExpires = &expires
	user.UpdatedBy = domain.SystemActor
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.NewInternalError(err)
	}

	if err := s.mail.SendPasswordReset(ctx, user.Email, user.Name, token); err != nil {
		s.logger.Error("failed to send reset email", zap.Error(err), zap.String("email", user.Email))
	}
	return nil
}

// ResetPassword consumes a reset token and sets a new password.
func (s *AuthService) ResetPassword(ctx context.Context, tokenStr, newPassword string) error {
	if tokenStr == "" {
		return apperrors.NewValidationError("token is required", nil)
	}
	if len(newPassword) < minPasswordLength {
		return apperrors.NewValidationError("password must be at least 6 characters", nil)
	}

	user, err := s.users.GetByResetToken(ctx, tokenStr)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewInvalidToken("invalid or expired token")
		}
		return apperrors.NewInternalError(err)
	}
	if user.ResetExpires == nil || s.now().After(*user.ResetExpires) {
		return apperrors.NewInvalidToken("invalid or expired token")
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	user.PasswordHash = hash
	user.ResetToken = nil
	user.ResetExpires = nil
	user.UpdatedBy = domain.SystemActor
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = s.now()
	_ = s.dispatcher.Publish(ctx, event)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// generateSecret returns a 256-bit random hex token.
func generateSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return uuid.NewString()
	}
	return hex.EncodeToString(buf)
}
