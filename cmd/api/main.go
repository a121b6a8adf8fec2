package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/unionhall/triage-service/internal/ai"
	httptransport "github.com/unionhall/triage-service/internal/api/http"
	"github.com/unionhall/triage-service/internal/api/http/handlers"
	"github.com/unionhall/triage-service/internal/audit"
	"github.com/unionhall/triage-service/internal/auth"
	"github.com/unionhall/triage-service/internal/config"
	"github.com/unionhall/triage-service/internal/events"
	"github.com/unionhall/triage-service/internal/observability"
	"github.com/unionhall/triage-service/internal/persistence"
	"github.com/unionhall/triage-service/internal/repository"
	"github.com/unionhall/triage-service/internal/service"
	"github.com/unionhall/triage-service/internal/triage"
	"github.com/unionhall/triage-service/internal/worker"
	"github.com/unionhall/triage-service/pkg/util"
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

	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redis.Close()

	var (
		ticketRepo  repository.TicketRepository
		taskRepo    repository.ProponentTaskRepository
		auditRepo   repository.AuditRepository
		accountRepo repository.AccountRepository
	)
	if pool := pg.PoolHandle(); pool != nil {
		ticketRepo = repository.NewTicketRepository(pool)
		taskRepo = repository.NewProponentTaskRepository(pool)
		auditRepo = repository.NewAuditRepository(pool)
		accountRepo = repository.NewAccountRepository(pool)
	} else {
		ticketRepo = repository.NewMemoryTicketRepository()
		taskRepo = repository.NewMemoryProponentTaskRepository()
		auditRepo = repository.NewMemoryAuditRepository()
		accountRepo = repository.NewMemoryAccountRepository()
	}

	metrics := observability.NewMetrics()
	locks := util.NewKeyedMutex()
	dispatcher := events.NewInMemoryDispatcher(logger)

	trail := audit.NewTrail(auditRepo, ticketRepo, auth.NewOriginalTextAuthorizer(), logger)
	router := triage.NewRouter(ticketRepo, trail, cfg.Triage, locks, logger)

	triageService := service.NewTriageService(service.TriageDependencies{
		TicketRepo: ticketRepo,
		Trail:      trail,
		Router:     router,
		Dispatcher: dispatcher,
		Locks:      locks,
		Logger:     logger,
	})
	proponentService := service.NewProponentService(service.ProponentDependencies{
		TaskRepo:   taskRepo,
		TicketRepo: ticketRepo,
		Trail:      trail,
		Dispatcher: dispatcher,
		Locks:      locks,
		Logger:     logger,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService := service.NewAuthService(accountRepo, tokens, cfg.Auth, logger)
	if err := authService.EnsureBootstrapAdmin(ctx); err != nil {
		logger.Fatal("failed to seed bootstrap admin", zap.Error(err))
	}

	notifications := service.NewNotificationService(dispatcher, metrics, logger)
	notifications.RegisterHandlers()

	if cfg.Model.APIKey != "" {
		model, err := ai.NewClient(cfg.Model)
		if err != nil {
			logger.Fatal("failed to init model client", zap.Error(err))
		}
		worker.NewTriageWorker(triageService, model, metrics, logger).Register(dispatcher)
	} else {
		logger.Warn("MODEL_API_KEY not provided; tickets stay PENDING until routed manually")
	}

	cache := persistence.NewRedactedViewCache(redis, cfg.Redis.ViewCacheTTLSec)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(triageService, trail, cache, logger),
		Tasks:          handlers.NewTasksHandler(proponentService, triageService),
		Audit:          handlers.NewAuditHandler(trail),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
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
