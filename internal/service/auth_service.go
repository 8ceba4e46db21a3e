package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/contacts-service/internal/auth"
	"github.com/spec-kit/contacts-service/internal/cache"
	"github.com/spec-kit/contacts-service/internal/config"
	"github.com/spec-kit/contacts-service/internal/domain"
	"github.com/spec-kit/contacts-service/internal/events"
	"github.com/spec-kit/contacts-service/internal/repository"
	apperrors "github.com/spec-kit/contacts-service/pkg/util/errorutil"
)

// User facing messages. Clients display these verbatim.
const (
	MsgEmailTaken          = "Користувач з таким email вже існує"
	MsgUsernameTaken       = "Користувач з таким іменем вже існує"
	MsgBadCredentials      = "Неправильний логін або пароль"
	MsgEmailNotConfirmed   = "Електронна адреса не підтверджена"
	MsgInvalidEmailToken   = "Невірний токен для перевірки електронної пошти"
	MsgVerificationError   = "Verification error"
	MsgAlreadyConfirmed    = "Ваша електронна пошта вже підтверджена"
	MsgEmailConfirmed      = "Електронну пошту підтверджено"
	MsgCheckEmail          = "Перевірте свою електронну пошту для підтвердження"
	MsgResetLinkSent       = "If that email exists, a reset link has been sent."
	MsgPasswordReset       = "Password successfully reset."
	MsgInvalidResetToken   = "Invalid or expired token"
	MsgAdminRoleNotAllowed = "Self-registration as admin is not allowed"
)

// AuthService drives the account lifecycle: registration, login, email
// confirmation and password reset.
type AuthService struct {
	users          repository.UserRepository
	hasher         *auth.Hasher
	tokens         *auth.TokenManager
	cache          cache.IdentityCache
	dispatcher     events.Dispatcher
	logger         *zap.Logger
	allowAdminRole bool
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Hasher     *auth.Hasher
	Tokens     *auth.TokenManager
	Cache      cache.IdentityCache
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:          deps.UserRepo,
		hasher:         deps.Hasher,
		tokens:         deps.Tokens,
		cache:          deps.Cache,
		dispatcher:     deps.Dispatcher,
		logger:         logger,
		allowAdminRole: cfg.Auth.AllowAdminRegistration,
	}
}

// RegisterInput is the registration payload.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
	// BaseURL is the public API origin the confirmation link points at.
	BaseURL string
}

// Register creates an unconfirmed account and queues the confirmation email.
// Email uniqueness is checked before username uniqueness.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	role, err := domain.ParseRole(in.Role)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": in.Role})
	}
	if role == domain.RoleAdmin && !s.allowAdminRole {
		return nil, apperrors.NewForbidden(MsgAdminRoleNotAllowed)
	}

	email := strings.TrimSpace(in.Email)
	username := strings.TrimSpace(in.Username)

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict(MsgEmailTaken, nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, apperrors.NewConflict(MsgUsernameTaken, nil)
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		AvatarURL:    GravatarURL(email),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.NewConflict(MsgEmailTaken, nil)
		}
		return nil, err
	}

	s.publish(ctx, events.NewEvent(events.EventConfirmationEmailRequested, events.ConfirmationEmailPayload{
		Email:    user.Email,
		Username: user.Username,
		BaseURL:  in.BaseURL,
	}))
	return user, nil
}

// Login verifies credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NewUnauthorized(MsgBadCredentials)
		}
		return "", err
	}

	ok, err := s.hasher.Verify(ctx, password, user.PasswordHash)
	if err != nil {
		if !errors.Is(err, auth.ErrMalformedHash) {
			return "", err
		}
		s.logger.Error("stored password hash is malformed", zap.String("user_id", user.ID))
	}
	if !ok {
		return "", apperrors.NewUnauthorized(MsgBadCredentials)
	}
	if !user.Confirmed {
		return "", apperrors.NewUnauthorized(MsgEmailNotConfirmed)
	}

	token, _, err := s.tokens.IssueAccessToken(user.Username, 0)
	return token, err
}

// ConfirmEmail redeems an email-confirmation token. Redeeming it twice is
// a success both times.
func (s *AuthService) ConfirmEmail(ctx context.Context, token string) (string, error) {
	email, err := s.tokens.SubjectFor(token, domain.TokenPurposeEmailConfirmation)
	if err != nil {
		return "", apperrors.NewBadRequest(MsgInvalidEmailToken)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NewBadRequest(MsgVerificationError)
		}
		return "", err
	}
	if user.Confirmed {
		return MsgAlreadyConfirmed, nil
	}

	if err := s.users.MarkConfirmed(ctx, user.ID); err != nil {
		return "", err
	}
	s.invalidate(ctx, user.Username)
	return MsgEmailConfirmed, nil
}

// RequestConfirmationEmail re-sends the confirmation link to unconfirmed
// accounts. The reply never reveals whether the address is registered.
func (s *AuthService) RequestConfirmationEmail(ctx context.Context, email, baseURL string) (string, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return MsgCheckEmail, nil
	case err != nil:
		return "", err
	}
	if !user.Confirmed {
		s.publish(ctx, events.NewEvent(events.EventConfirmationEmailRequested, events.ConfirmationEmailPayload{
			Email:    user.Email,
			Username: user.Username,
			BaseURL:  baseURL,
		}))
	}
	return MsgCheckEmail, nil
}

// ForgotPassword mails a reset link when the address is registered. The
// reply is identical either way.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return MsgResetLinkSent, nil
	case err != nil:
		return "", err
	}

	token, _, err := s.tokens.IssueResetToken(user.Email)
	if err != nil {
		return "", err
	}
	s.publish(ctx, events.NewEvent(events.EventPasswordResetRequested, events.PasswordResetPayload{
		Email:    user.Email,
		Username: user.Username,
		Token:    token,
	}))
	return MsgResetLinkSent, nil
}

// ResetPassword redeems a reset token and stores the new password hash.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	email, err := s.tokens.SubjectFor(token, domain.TokenPurposePasswordReset)
	if err != nil {
		return "", apperrors.NewUnauthorized(MsgInvalidResetToken)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", apperrors.NewUnauthorized(MsgInvalidResetToken)
		}
		return "", err
	}

	hash, err := s.hasher.Hash(ctx, newPassword)
	if err != nil {
		return "", err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return "", err
	}
	s.invalidate(ctx, user.Username)
	return MsgPasswordReset, nil
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event dropped", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

func (s *AuthService) invalidate(ctx context.Context, username string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, username); err != nil {
		s.logger.Warn("identity cache invalidation failed", zap.String("username", username), zap.Error(err))
	}
}
