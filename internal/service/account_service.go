package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/party-admin-service/internal/auth"
	"github.com/spec-kit/party-admin-service/internal/config"
	"github.com/spec-kit/party-admin-service/internal/domain"
	"github.com/spec-kit/party-admin-service/internal/events"
	"github.com/spec-kit/party-admin-service/internal/mailer"
	"github.com/spec-kit/party-admin-service/internal/repository"

	apperrors "github.com/spec-kit/party-admin-service/pkg/util"
)

// Actor identifies the administrator performing a mutation.
type Actor struct {
	ID   string
	Name string
}

// AccountService manages user records on behalf of administrators and the
// self-service profile endpoints. Every net mutation produces exactly one
// audit entry listing only the fields that actually changed.
type AccountService struct {
	users      repository.UserRepository
	tokens     repository.ConfirmationTokenRepository
	audit      *AuditService
	mail       mailer.Mailer
	dispatcher events.Dispatcher
	logger     *zap.Logger
	bcryptCost int
}

// AccountDependencies bundles requirements for the account service.
type AccountDependencies struct {
	UserRepo   repository.UserRepository
	TokenRepo  repository.ConfirmationTokenRepository
	Audit      *AuditService
	Mailer     mailer.Mailer
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAccountService builds the service.
func NewAccountService(cfg config.Config, deps AccountDependencies) *AccountService {
	return &AccountService{
		users:      deps.UserRepo,
		tokens:     deps.TokenRepo,
		audit:      deps.Audit,
		mail:       deps.Mailer,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		bcryptCost: cfg.Auth.BcryptCost,
	}
}

// CreateUserInput describes an admin-created account.
type CreateUserInput struct {
	Name                  string
	Email                 string
	Password              string
	IsAdmin               bool
	SkipEmailConfirmation bool
}

// CreateUserResult carries the created user plus the generated password when
// the admin did not supply one.
type CreateUserResult struct {
	User              *domain.User
	GeneratedPassword string
}

// UpdateUserInput describes a partial admin update. Nil fields are untouched.
type UpdateUserInput struct {
	Name           *string
	Email          *string
	IsAdmin        *bool
	EmailConfirmed *bool
}

// ListUsers returns all user records.
func (s *AccountService) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return users, nil
}

// CreateUser adds an account on behalf of an administrator.
func (s *AccountService) CreateUser(ctx context.Context, actor Actor, input CreateUserInput) (*CreateUserResult, error) {
	name := strings.TrimSpace(input.Name)
	email := normalizeEmail(input.Email)

	if name == "" || email == "" {
		return nil, apperrors.NewValidationError("name and email are required", nil)
	}
	if !emailPattern.MatchString(email) {
		return nil, apperrors.NewValidationError("invalid email", nil)
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", nil)
	} else if err != pgx.ErrNoRows {
		return nil, apperrors.NewInternalError(err)
	}

	password := input.Password
	generated := ""
	if password == "" {
		generated = generateSecret()[:12]
		password = generated
	} else if len(password) < minPasswordLength {
		return nil, apperrors.NewValidationError("password must be at least 6 characters", nil)
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
		IsAdmin:        input.IsAdmin,
		EmailConfirmed: input.SkipEmailConfirmation,
		CreatedBy:      actor.ID,
		UpdatedBy:      actor.ID,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.audit.Record(ctx, &domain.AuditEntry{
		UserID:        user.ID,
		UserEmail:     user.Email,
		UserName:      user.Name,
		Action:        domain.AuditActionCreate,
		ChangedBy:     actor.ID,
		ChangedByName: actor.Name,
		Changes: map[string]domain.FieldChange{
			"name":    {Old: nil, New: user.Name},
			"email":   {Old: nil, New: user.Email},
			"isAdmin": {Old: nil, New: user.IsAdmin},
		},
	})

	if !input.SkipEmailConfirmation {
		if err := issueConfirmation(ctx, s.tokens, s.mail, s.logger, user); err != nil {
			s.logger.Error("failed to issue confirmation token", zap.Error(err), zap.String("user_id", user.ID))
		}
	}

	s.publish(ctx, events.Event{
		Type:   events.EventUserCreated,
		UserID: user.ID,
		Actor:  actor.ID,
		Payload: events.UserMutatedPayload{
			Action: domain.AuditActionCreate,
			Email:  user.Email,
		},
	})

	return &CreateUserResult{User: user, GeneratedPassword: generated}, nil
}

// UpdateUser applies a partial update, auditing only fields that actually
// changed. A request that changes nothing writes no audit entry.
func (s *AccountService) UpdateUser(ctx context.Context, actor Actor, id string, input UpdateUserInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}

	changes := map[string]domain.FieldChange{}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name != "" && name != user.Name {
			changes["name"] = domain.FieldChange{Old: user.Name, New: name}
			user.Name = name
		}
	}

	if input.Email != nil {
		email := normalizeEmail(*input.Email)
		if !emailPattern.MatchString(email) {
			return nil, apperrors.NewValidationError("invalid email", nil)
		}
		if existing, err := s.users.GetByEmail(ctx, email); err == nil {
			if existing.ID != id {
				return nil, apperrors.NewConflict("email already in use", nil)
			}
		} else if err != pgx.ErrNoRows {
			return nil, apperrors.NewInternalError(err)
		}
		if email != user.Email {
			changes["email"] = domain.FieldChange{Old: user.Email, New: email}
			user.Email = email
		}
	}

	if input.IsAdmin != nil {
		if id == actor.ID && !*input.IsAdmin {
			return nil, apperrors.NewValidationError("cannot remove your own admin privileges", nil)
		}
		if user.IsAdmin != *input.IsAdmin {
			changes["isAdmin"] = domain.FieldChange{Old: user.IsAdmin, New: *input.IsAdmin}
			user.IsAdmin = *input.IsAdmin
		}
	}

	if input.EmailConfirmed != nil && user.EmailConfirmed != *input.EmailConfirmed {
		changes["emailConfirmed"] = domain.FieldChange{Old: user.EmailConfirmed, New: *input.EmailConfirmed}
		user.EmailConfirmed = *input.EmailConfirmed
	}

	if len(changes) == 0 {
		return user, nil
	}

	user.UpdatedBy = actor.ID
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.audit.Record(ctx, &domain.AuditEntry{
		UserID:        user.ID,
		UserEmail:     user.Email,
		UserName:      user.Name,
		Action:        domain.AuditActionUpdate,
		ChangedBy:     actor.ID,
		ChangedByName: actor.Name,
		Changes:       changes,
	})

	s.publish(ctx, events.Event{
		Type:   events.EventUserUpdated,
		UserID: user.ID,
		Actor:  actor.ID,
		Payload: events.UserMutatedPayload{
			Action:  domain.AuditActionUpdate,
			Email:   user.Email,
			Changes: changes,
		},
	})

	return user, nil
}

// DeleteUser removes an account and its pending confirmation tokens. The
// target's audit entries survive to preserve history.
func (s *AccountService) DeleteUser(ctx context.Context, actor Actor, id string) error {
	if id == actor.ID {
		return apperrors.NewValidationError("cannot delete your own account", nil)
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("user", nil)
		}
		return apperrors.NewInternalError(err)
	}

	s.audit.Record(ctx, &domain.AuditEntry{
		UserID:        user.ID,
		UserEmail:     user.Email,
		UserName:      user.Name,
		Action:        domain.AuditActionDelete,
		ChangedBy:     actor.ID,
		ChangedByName: actor.Name,
		Changes: map[string]domain.FieldChange{
			"deleted": {Old: false, New: true},
		},
	})

	if err := s.users.Delete(ctx, id); err != nil {
		return apperrors.NewInternalError(err)
	}
	if err := s.tokens.DeleteByUser(ctx, id); err != nil {
		s.logger.Error("failed to delete confirmation tokens", zap.Error(err), zap.String("user_id", id))
	}

	s.publish(ctx, events.Event{
		Type:   events.EventUserDeleted,
		UserID: user.ID,
		Actor:  actor.ID,
		Payload: events.UserMutatedPayload{
			Action: domain.AuditActionDelete,
			Email:  user.Email,
		},
	})

	return nil
}

// Profile is a user record with its creator/updater resolved.
type Profile struct {
	User          domain.User
	CreatedByInfo *UserInfo
	UpdatedByInfo *UserInfo
}

// ProfileUpdateInput describes a self-service profile edit.
type ProfileUpdateInput struct {
	Name     *string
	Phone    *string
	PhotoURL *string
}

// GetProfile returns the caller's record plus resolved audit references.
func (s *AccountService) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}

	profile := &Profile{User: *user}
	profile.CreatedByInfo = s.resolveUser(ctx, user.CreatedBy)
	profile.UpdatedByInfo = s.resolveUser(ctx, user.UpdatedBy)
	return profile, nil
}

// UpdateProfile applies a self-service edit, auditing changed fields.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, input ProfileUpdateInput) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.NewNotFound("user", nil)
		}
		return nil, apperrors.NewInternalError(err)
	}

	changes := map[string]domain.FieldChange{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name != "" && name != user.Name {
			changes["name"] = domain.FieldChange{Old: user.Name, New: name}
			user.Name = name
		}
	}
	if input.Phone != nil && *input.Phone != user.Phone {
		changes["phone"] = domain.FieldChange{Old: user.Phone, New: *input.Phone}
		user.Phone = *input.Phone
	}
	if input.PhotoURL != nil && *input.PhotoURL != user.PhotoURL {
		changes["photoUrl"] = domain.FieldChange{Old: user.PhotoURL, New: *input.PhotoURL}
		user.PhotoURL = *input.PhotoURL
	}

	if len(changes) == 0 {
		return user, nil
	}

	user.UpdatedBy = userID
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	s.audit.Record(ctx, &domain.AuditEntry{
		UserID:        user.ID,
		UserEmail:     user.Email,
		UserName:      user.Name,
		Action:        domain.AuditActionUpdate,
		ChangedBy:     userID,
		ChangedByName: user.Name,
		Changes:       changes,
	})

	return user, nil
}

// ChangePassword verifies the current password before storing a new hash.
func (s *AccountService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return apperrors.NewValidationError("password must be at least 6 characters", nil)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return apperrors.NewNotFound("user", nil)
		}
		return apperrors.NewInternalError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewValidationError("current password is incorrect", nil)
	}

	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	user.PasswordHash = hash
	user.UpdatedBy = userID
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.NewInternalError(err)
	}
	return nil
}

func (s *AccountService) resolveUser(ctx context.Context, id string) *UserInfo {
	if id == "" || id == domain.SystemActor {
		return nil
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil
	}
	return &UserInfo{ID: user.ID, Name: user.Name, Email: user.Email}
}

func (s *AccountService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	event.ID = uuid.NewString()
	if event.Timestamp.IsZero() {
		event.Timestamp = s.audit.now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}
