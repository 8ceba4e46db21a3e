package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/contacts-service/internal/api/http"
	"github.com/spec-kit/contacts-service/internal/api/http/handlers"
	"github.com/spec-kit/contacts-service/internal/auth"
	"github.com/spec-kit/contacts-service/internal/cache"
	"github.com/spec-kit/contacts-service/internal/config"
	"github.com/spec-kit/contacts-service/internal/events"
	"github.com/spec-kit/contacts-service/internal/mail"
	"github.com/spec-kit/contacts-service/internal/observability"
	"github.com/spec-kit/contacts-service/internal/persistence"
	"github.com/spec-kit/contacts-service/internal/repository"
	"github.com/spec-kit/contacts-service/internal/service"
	"github.com/spec-kit/contacts-service/internal/storage"
	"github.com/spec-kit/contacts-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("invalid redis configuration", zap.Error(err))
	}
	defer redis.Close()

	var identityCache cache.IdentityCache
	switch cfg.Cache.Backend {
	case config.CacheBackendMemory:
		identityCache = cache.NewMemoryIdentityCache(cfg.Cache.MemorySize, cfg.Cache.UserTTL())
	default:
		identityCache = cache.NewRedisIdentityCache(redis.Client, cfg.Cache.UserTTL())
	}

	tokens, err := auth.NewTokenManager(auth.TokenConfig{
		Secret:    cfg.Auth.JWTSecret,
		Algorithm: cfg.Auth.JWTAlgorithm,
		AccessTTL: cfg.Auth.AccessTokenTTL(),
		EmailTTL:  cfg.Auth.EmailTokenTTL(),
		ResetTTL:  cfg.Auth.ResetTokenTTL(),
	})
	if err != nil {
		logger.Fatal("failed to init token manager", zap.Error(err))
	}
	hasher := auth.NewHasher(cfg.Auth.BcryptCost, cfg.Auth.HashWorkers)

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	contactRepo := repository.NewContactRepository(pool)

	resolver := auth.NewIdentityResolver(tokens, identityCache, userRepo, logger, metrics, auth.ResolverOptions{
		CacheTimeout: cfg.Cache.OpTimeout(),
		StoreTimeout: cfg.Cache.StoreTimeout(),
	})
	authMiddleware := auth.NewAuthMiddleware(resolver)

	dispatcher := events.NewAsyncDispatcher(cfg.Mail.QueueSize, logger)

	renderer, err := mail.NewRenderer()
	if err != nil {
		logger.Fatal("failed to parse mail templates", zap.Error(err))
	}
	var sender mail.Sender
	if cfg.Mail.Host != "" {
		sender = mail.NewSMTPSender(cfg.Mail)
	} else {
		logger.Warn("MAIL_SERVER not set, outgoing mail is logged only")
		sender = mail.NewLogSender(logger)
	}

	var avatars storage.AvatarUploader
	if store, err := storage.NewS3AvatarStore(ctx, cfg.Storage, logger); err != nil {
		logger.Warn("avatar storage disabled", zap.Error(err))
	} else {
		avatars = store
	}

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:   userRepo,
		Hasher:     hasher,
		Tokens:     tokens,
		Cache:      identityCache,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	userService := service.NewUserService(userRepo, avatars, identityCache, logger)
	contactService := service.NewContactService(contactRepo)
	notificationService := service.NewNotificationService(dispatcher, tokens, renderer, sender, logger, metrics, service.NotificationConfig{
		FrontendURL: cfg.App.FrontendURL,
	})

	worker.StartNotificationWorker(dispatcher, notificationService, cfg.Mail.Workers)

	app := httptransport.NewApp(cfg.App.Name, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:            handlers.NewAuthHandler(authService, cfg.App.PublicURL),
		Users:           handlers.NewUsersHandler(userService),
		Contacts:        handlers.NewContactsHandler(contactService),
		AuthMiddleware:  authMiddleware,
		MeRateLimit:     httptransport.NewRateLimiter(redis.Client, "users_me", cfg.RateLimit.MePerMinute, time.Minute, logger, metrics),
		AvatarAdminOnly: cfg.Auth.AvatarAdminOnly,
		Metrics:         metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer drainCancel()
	if err := dispatcher.Close(drainCtx); err != nil {
		logger.Warn("mail queue not drained", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
