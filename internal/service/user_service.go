package service

import (
	"context"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/spec-kit/contacts-service/internal/cache"
	"github.com/spec-kit/contacts-service/internal/domain"
	"github.com/spec-kit/contacts-service/internal/repository"
	"github.com/spec-kit/contacts-service/internal/storage"
	apperrors "github.com/spec-kit/contacts-service/pkg/util/errorutil"
)

// UserService serves profile operations for the authenticated caller.
type UserService struct {
	users   repository.UserRepository
	avatars storage.AvatarUploader
	cache   cache.IdentityCache
	logger  *zap.Logger
}

// NewUserService constructs the service. avatars may be nil when no bucket
// is configured; uploads then fail with storage.ErrNotConfigured.
func NewUserService(users repository.UserRepository, avatars storage.AvatarUploader, identityCache cache.IdentityCache, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, avatars: avatars, cache: identityCache, logger: logger}
}

// AvatarUpload describes an uploaded image.
type AvatarUpload struct {
	Body        io.Reader
	Size        int64
	ContentType string
}

// UpdateAvatar stores the image, persists its URL and drops the cached
// snapshot so the next request sees the new avatar.
func (s *UserService) UpdateAvatar(ctx context.Context, user *domain.User, upload AvatarUpload) (*domain.User, error) {
	if s.avatars == nil {
		return nil, &apperrors.DomainError{
			Code:       "STORAGE_UNAVAILABLE",
			Message:    "avatar storage is not configured",
			HTTPStatus: http.StatusServiceUnavailable,
			Err:        storage.ErrNotConfigured,
		}
	}

	url, err := s.avatars.UploadAvatar(ctx, user.Username, upload.Body, upload.Size, upload.ContentType)
	if err != nil {
		return nil, err
	}

	updated, err := s.users.UpdateAvatar(ctx, user.ID, url)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, user.Username); err != nil {
			s.logger.Warn("identity cache invalidation failed", zap.String("username", user.Username), zap.Error(err))
		}
	}
	updated.PasswordHash = ""
	return updated, nil
}
