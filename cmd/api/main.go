package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-service/internal/api/http"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/authz"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/lifecycle"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	"github.com/spec-kit/helpdesk-service/internal/ticketnumber"
	"github.com/spec-kit/helpdesk-service/internal/worker"
)

type repositories struct {
	tickets  repository.TicketRepository
	comments repository.CommentRepository
	history  repository.TicketHistoryRepository
	users    repository.UserRepository
	policy   authz.PolicyLoader
}

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

	if cfg.Postgres.RunMigrations && pg.Configured() {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	rdb := persistence.NewRedis(cfg.Redis, logger)
	defer rdb.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	repos := buildRepositories(pg, cfg.Policy.Source)

	engine := authz.NewEngine(authz.DefaultPolicy())
	reloader := worker.NewPolicyReloader(engine, repos.policy, metrics, logger)
	if err := reloader.ReloadOnce(ctx); err != nil {
		logger.Fatal("failed to load permission policy", zap.Error(err))
	}

	loc, err := cfg.Ticket.Location()
	if err != nil {
		logger.Fatal("invalid ticket timezone", zap.Error(err))
	}

	var sequence ticketnumber.SequenceSource
	if strings.EqualFold(cfg.Ticket.NumberAllocator, config.AllocatorRedis) {
		if !rdb.Configured() {
			logger.Fatal("TICKET_NUMBER_ALLOCATOR=redis requires REDIS_ADDR")
		}
		sequence = persistence.NewRedisSequence(rdb.Client)
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	var publisher redis.Cmdable
	if rdb.Configured() {
		publisher = rdb.Client
	}
	notificationService := service.NewNotificationService(dispatcher, publisher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	if strings.EqualFold(cfg.Policy.Source, config.PolicySourcePostgres) && rdb.Configured() {
		stop := worker.StartPolicyWorker(ctx, rdb.Client, cfg.Policy.InvalidationChannel, reloader)
		defer stop()
	}

	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  repos.tickets,
		CommentRepo: repos.comments,
		HistoryRepo: repos.history,
		UserRepo:    repos.users,
		Dispatcher:  dispatcher,
		Engine:      engine,
		Machine:     lifecycle.New(lifecycle.Options{AllowReopen: cfg.Ticket.AllowReopen}),
		SLA:         sla.DefaultPolicyTable(),
		Numbers:     ticketnumber.NewGenerator(loc),
		Sequence:    sequence,
		MaxAttempts: cfg.Ticket.CreateMaxAttempts,
		Metrics:     metrics,
		Logger:      logger.Named("tickets"),
	})

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo: repos.users,
		Engine:   engine,
		Logger:   logger.Named("auth"),
	})
	if err := authService.EnsureAdmin(ctx, cfg.Auth.BootstrapAdminEmail, cfg.Auth.BootstrapAdminPassword); err != nil {
		logger.Fatal("failed to bootstrap admin", zap.Error(err))
	}
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), repos.users)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, rdb),
		Users:          handlers.NewUsersHandler(authService),
		Tickets:        handlers.NewTicketsHandler(ticketService, nil),
		Authz:          handlers.NewAuthzHandler(ticketService),
		Metrics:        handlers.Metrics(registry),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func buildRepositories(pg *persistence.Postgres, policySource string) repositories {
	if !pg.Configured() {
		store := memory.NewStore()
		return repositories{
			tickets:  store.Tickets(),
			comments: store.Comments(),
			history:  store.History(),
			users:    store.Users(),
			policy:   authz.StaticLoader{Policy: authz.DefaultPolicy()},
		}
	}
	pool := pg.PoolHandle()
	repos := repositories{
		tickets:  repository.NewTicketRepository(pool),
		comments: repository.NewCommentRepository(pool),
		history:  repository.NewTicketHistoryRepository(pool),
		users:    repository.NewUserRepository(pool),
		policy:   authz.StaticLoader{Policy: authz.DefaultPolicy()},
	}
	if strings.EqualFold(policySource, config.PolicySourcePostgres) {
		repos.policy = repository.NewPolicyRepository(pool)
	}
	return repos
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
