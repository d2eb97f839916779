package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/visionops/ticket-service/internal/api/http"
	"github.com/visionops/ticket-service/internal/api/http/handlers"
	"github.com/visionops/ticket-service/internal/auth"
	"github.com/visionops/ticket-service/internal/config"
	"github.com/visionops/ticket-service/internal/events"
	"github.com/visionops/ticket-service/internal/locking"
	"github.com/visionops/ticket-service/internal/observability"
	"github.com/visionops/ticket-service/internal/persistence"
	"github.com/visionops/ticket-service/internal/repository"
	"github.com/visionops/ticket-service/internal/service"
	"github.com/visionops/ticket-service/internal/worker"
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

	var (
		ticketRepo  repository.TicketRepository
		commentRepo repository.CommentRepository
		historyRepo repository.HistoryRepository
	)
	if pool := pg.PoolHandle(); pool != nil {
		ticketRepo = repository.NewTicketRepository(pool)
		commentRepo = repository.NewCommentRepository(pool)
		historyRepo = repository.NewHistoryRepository(pool)
	} else {
		logger.Warn("running with in-memory ticket store; data will not survive restarts")
		store := repository.NewMemoryStore()
		ticketRepo = store
		commentRepo = store
		historyRepo = store.HistoryRepo()
	}

	dispatcher := events.NewInMemoryDispatcher()
	dedupe := service.NewAlertDedupe(redis.Client, cfg.Store.DedupeTTL(), logger)

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  ticketRepo,
		CommentRepo: commentRepo,
		HistoryRepo: historyRepo,
		Locks:       locking.NewKeyedMutex(cfg.Store.LockWait()),
		Dedupe:      dedupe,
		Dispatcher:  dispatcher,
	})
	statsService := service.NewStatsService(ticketRepo, nil)

	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokenManager)
	providerAuth := auth.NewProviderAuth(cfg.Auth.ProviderKeys)

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{DisableStartupMessage: cfg.App.Env == "production"})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Stats:          handlers.NewStatsHandler(statsService),
		AuthMiddleware: authMiddleware,
		ProviderAuth:   providerAuth,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
