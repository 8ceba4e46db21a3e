package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/contacts-service/internal/cache"
	"github.com/spec-kit/contacts-service/internal/domain"
	"github.com/spec-kit/contacts-service/internal/observability"
)

// ErrUnauthenticated is the only failure Resolve reports to callers.
var ErrUnauthenticated = errors.New("could not validate credentials")

// UserLookup is the store read the resolver falls back to on a cache miss.
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
}

// ResolverOptions bounds the time spent on each collaborator.
type ResolverOptions struct {
	CacheTimeout time.Duration
	StoreTimeout time.Duration
}

// IdentityResolver turns an access token into the caller's identity,
// reading through the identity cache.
type IdentityResolver struct {
	tokens  *TokenManager
	cache   cache.IdentityCache
	users   UserLookup
	logger  *zap.Logger
	metrics *observability.Metrics
	opts    ResolverOptions
}

// NewIdentityResolver wires the resolver. identityCache may be nil, in which
// case every call goes to the store.
func NewIdentityResolver(
	tokens *TokenManager,
	identityCache cache.IdentityCache,
	users UserLookup,
	logger *zap.Logger,
	metrics *observability.Metrics,
	opts ResolverOptions,
) *IdentityResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdentityResolver{
		tokens:  tokens,
		cache:   identityCache,
		users:   users,
		logger:  logger,
		metrics: metrics,
		opts:    opts,
	}
}

// Resolve returns a complete identity or ErrUnauthenticated. The returned
// user never carries a password hash.
func (r *IdentityResolver) Resolve(ctx context.Context, token string) (*domain.User, error) {
	username, err := r.tokens.SubjectFor(token, domain.TokenPurposeAccess)
	if err != nil {
		r.logger.Debug("access token rejected", zap.Bool("expired", errors.Is(err, ErrExpiredToken)), zap.Error(err))
		return nil, ErrUnauthenticated
	}

	if user := r.fromCache(ctx, username); user != nil {
		return user, nil
	}

	storeCtx, cancel := withOptionalTimeout(ctx, r.opts.StoreTimeout)
	user, err := r.users.GetByUsername(storeCtx, username)
	cancel()
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.logger.Error("identity lookup failed", zap.String("username", username), zap.Error(err))
		}
		return nil, ErrUnauthenticated
	}

	identity := *user
	identity.PasswordHash = ""
	r.populate(ctx, &identity)
	return &identity, nil
}

func (r *IdentityResolver) fromCache(ctx context.Context, username string) *domain.User {
	if r.cache == nil {
		return nil
	}
	cacheCtx, cancel := withOptionalTimeout(ctx, r.opts.CacheTimeout)
	defer cancel()

	user, ok, err := r.cache.Get(cacheCtx, username)
	switch {
	case err != nil:
		r.metrics.RecordCacheLookup(observability.CacheError)
		r.logger.Warn("identity cache read failed", zap.String("username", username), zap.Error(err))
		return nil
	case !ok:
		r.metrics.RecordCacheLookup(observability.CacheMiss)
		return nil
	default:
		r.metrics.RecordCacheLookup(observability.CacheHit)
		return user
	}
}

func (r *IdentityResolver) populate(ctx context.Context, user *domain.User) {
	if r.cache == nil {
		return
	}
	cacheCtx, cancel := withOptionalTimeout(ctx, r.opts.CacheTimeout)
	defer cancel()
	if err := r.cache.Put(cacheCtx, user); err != nil {
		r.logger.Warn("identity cache write failed", zap.String("username", user.Username), zap.Error(err))
	}
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
