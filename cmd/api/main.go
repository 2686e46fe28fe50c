package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/party-admin-service/internal/api/http"
	"github.com/spec-kit/party-admin-service/internal/api/http/handlers"
	"github.com/spec-kit/party-admin-service/internal/auth"
	"github.com/spec-kit/party-admin-service/internal/cache"
	"github.com/spec-kit/party-admin-service/internal/config"
	"github.com/spec-kit/party-admin-service/internal/events"
	"github.com/spec-kit/party-admin-service/internal/mailer"
	"github.com/spec-kit/party-admin-service/internal/observability"
	"github.com/spec-kit/party-admin-service/internal/persistence"
	"github.com/spec-kit/party-admin-service/internal/repository"
	"github.com/spec-kit/party-admin-service/internal/service"
	"github.com/spec-kit/party-admin-service/internal/worker"
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

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	mail := mailer.NewHTTPMailer(cfg.Mailer, logger)

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	tokenRepo := repository.NewConfirmationTokenRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	pushRepo := repository.NewPushSubscriptionRepository(pool)

	auditService := service.NewAuditService(auditRepo, userRepo, logger)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:   userRepo,
		TokenRepo:  tokenRepo,
		Audit:      auditService,
		Mailer:     mail,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	accountService := service.NewAccountService(*cfg, service.AccountDependencies{
		UserRepo:   userRepo,
		TokenRepo:  tokenRepo,
		Audit:      auditService,
		Mailer:     mail,
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	limiter := service.NewRateLimiter(cfg.Push.RateLimitMax, cfg.Push.RateLimitWindow())
	deliverer := service.NewHTTPPushDeliverer(&http.Client{Timeout: cfg.Push.DeliveryTimeout()})
	pushService := service.NewPushService(pushRepo, deliverer, limiter, logger)

	notificationService := service.NewNotificationService(dispatcher, pushService, logger)
	worker.StartNotificationWorker(notificationService)

	cacheManager := cache.NewManager(cache.Options{
		Store:          cache.NewRedisStore(redis.Client),
		Fetcher:        cache.NewHTTPFetcher(cfg.Assets.UpstreamURL, nil),
		Version:        cfg.Assets.Version,
		Manifest:       cfg.Assets.Manifest,
		BypassPrefixes: []string{cfg.Assets.APIPrefix, "/health"},
		ReloadDelay:    cfg.Assets.ReloadDelay(),
		Dispatcher:     dispatcher,
		Logger:         logger,
	})
	if cfg.Assets.InstallOnStart && cfg.Assets.UpstreamURL != "" {
		if err := cacheManager.Install(ctx); err != nil {
			logger.Error("asset cache install failed", zap.Error(err))
		} else if err := cacheManager.Activate(ctx); err != nil {
			logger.Error("asset cache activation failed", zap.Error(err))
		}
	}

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager())

	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: cfg.App.Env == "production",
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Users:          handlers.NewUsersHandler(accountService),
		History:        handlers.NewHistoryHandler(auditService),
		Profile:        handlers.NewProfileHandler(accountService),
		Push:           handlers.NewPushHandler(pushService),
		Assets:         handlers.NewAssetsHandler(cacheManager),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
	cacheManager.WaitUntilIdle()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
