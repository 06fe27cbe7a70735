package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"clubhub/internal/audit"
	"clubhub/internal/caching"
	"clubhub/internal/config"
	"clubhub/internal/handlers"
	"clubhub/internal/jobs"
	"clubhub/internal/logging"
	"clubhub/internal/middleware"
	"clubhub/internal/notify"
	"clubhub/internal/repositories"
	"clubhub/internal/security"
	"clubhub/internal/services"
	"clubhub/pkg/database"
)

const version = "1.0.0"

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.App.LogLevel, cfg.App.Env)
	if err != nil {
		log.Fatalf("Failed to initialise logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg); err != nil {
		zap.L().Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessions, err := security.NewSessionIssuer(security.SessionConfig{
		SigningKey: cfg.JWT.Secret,
		TTL:        cfg.JWT.TTL,
		Issuer:     cfg.JWT.Issuer,
	})
	if err != nil {
		return err
	}

	if cfg.Database.Migrate {
		if err := database.MigrateUp(cfg.Database.SystemURL); err != nil {
			return err
		}
		zap.L().Info("database migrations applied")
	}

	appPool, systemPool, err := openPools(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer database.ClosePool(appPool)
	defer database.ClosePool(systemPool)

	tenantExec := database.NewTenantExecutor(appPool, cfg.Database.StatementTimeout)
	systemExec := database.NewSystemExecutor(systemPool, cfg.Database.StatementTimeout)

	userRepo := repositories.NewUserRepo(systemExec)
	clubRepo := repositories.NewClubRepo(systemExec, tenantExec)
	memberRepo := repositories.NewMemberRepo(tenantExec)
	auditLogRepo := repositories.NewAuditLogsRepo(systemExec, tenantExec)

	redisClient, err := caching.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return err
	}
	defer redisClient.Close()
	limiter := caching.NewRedisRateLimiter(redisClient)

	auditWriter, closeWriter := newAuditWriter(cfg.Audit, auditLogRepo)
	defer closeWriter()
	sink := audit.NewAsyncSink(auditWriter, cfg.Audit.Buffer, 5*time.Second)

	notifier := newNotifier(cfg)
	dispatcher, worker, closeDispatcher := newDispatcher(cfg, redisClient, notifier)
	defer closeDispatcher()

	links, err := notify.NewLinkBuilder(cfg.App.BaseURL)
	if err != nil {
		return err
	}
	hasher := security.NewTokenHasher(cfg.Tokens.BcryptCost)

	authSvc := services.NewAuthService(userRepo, hasher, sessions, limiter, sink, services.LoginLimit{
		Attempts: cfg.RateLimit.LoginAttempts,
		Window:   cfg.RateLimit.LoginWindow,
	})
	credentialSvc, err := services.NewCredentialService(userRepo, clubRepo, hasher, sessions, dispatcher, links, sink, limiter,
		services.CredentialConfig{
			TTLs: services.TokenTTLs{
				Invite:      cfg.Tokens.InviteTTL,
				Verify:      cfg.Tokens.VerifyTTL,
				SetPassword: cfg.Tokens.SetPasswordTTL,
				Reset:       cfg.Tokens.ResetTTL,
			},
			AllowedTiers:  cfg.AllowedTiers,
			ResetRequests: cfg.RateLimit.ResetRequests,
			ResetWindow:   cfg.RateLimit.ResetWindow,
		})
	if err != nil {
		return err
	}
	userSvc := services.NewUserService(memberRepo, sink)
	clubSvc := services.NewClubService(clubRepo, sink)
	auditLogsSvc := services.NewAuditLogsService(auditLogRepo)

	sweeper, err := jobs.NewScheduler(userRepo, cfg.TokenSweep, time.Minute)
	if err != nil {
		return err
	}

	router := &handlers.Router{
		Auth:   handlers.NewAuthHandlers(authSvc, credentialSvc),
		Users:  handlers.NewUserHandlers(userSvc, credentialSvc),
		Clubs:  handlers.NewClubHandlers(clubSvc),
		Audit:  handlers.NewAuditLogsHandlers(auditLogsSvc),
		Health: handlers.NewHealthHandlers(map[string]handlers.Pinger{"database": appPool, "redis": limiter}, 2*time.Second, version),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLogger())
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORS())
	e.Use(echoMiddleware.RemoveTrailingSlash())

	router.RegisterHealth(e)
	versionMiddleware := middleware.NewVersionMiddleware()
	e.GET("/versions", versionMiddleware.ListVersions)
	v1 := versionMiddleware.VersionRoute(e, versionMiddleware.GetCurrentVersion())
	router.Register(v1, middleware.ResolveIdentity(sessions, userRepo), middleware.AuditDenied(sink))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.L().Info("clubhub server starting", zap.String("version", version), zap.Int("port", cfg.App.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if worker != nil {
		if err := worker.Start(); err != nil {
			return fmt.Errorf("failed to start notification worker: %w", err)
		}
		defer worker.Stop()
	}
	sweeper.Start()

	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		if stopErr := sweeper.Stop(); stopErr != nil {
			zap.L().Warn("failed to stop token sweeper", zap.Error(stopErr))
		}
		if closeErr := sink.Close(shutdownCtx); closeErr != nil {
			zap.L().Warn("audit sink did not drain", zap.Error(closeErr), zap.Int64("dropped", sink.Dropped()))
		}
		return err
	})

	return g.Wait()
}

// openPools opens the tenant pool and the system pool. The tenant pool must
// connect as a role the row level security policies apply to; the system
// pool connects as the table owner and is never handed to tenant-scoped code.
func openPools(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, *pgxpool.Pool, error) {
	appPool, err := database.NewPool(ctx, database.PoolConfig{
		URL:             cfg.URL,
		MaxConns:        cfg.MaxConns,
		ConnectTimeout:  cfg.AcquireTimeout,
		ApplicationName: "clubhub",
	})
	if err != nil {
		return nil, nil, err
	}
	if err := database.VerifyTenantRole(ctx, appPool); err != nil {
		database.ClosePool(appPool)
		return nil, nil, err
	}

	systemPool, err := database.NewPool(ctx, database.PoolConfig{
		URL:             cfg.SystemURL,
		MaxConns:        cfg.MaxConns,
		ConnectTimeout:  cfg.AcquireTimeout,
		ApplicationName: "clubhub-system",
	})
	if err != nil {
		database.ClosePool(appPool)
		return nil, nil, err
	}
	return appPool, systemPool, nil
}

func newAuditWriter(cfg config.AuditConfig, repo repositories.AuditLogsRepository) (audit.Writer, func()) {
	switch cfg.Backend {
	case "amqp":
		w := audit.NewAMQPWriter(cfg.AMQPURL)
		return w, func() {
			if err := w.Close(); err != nil {
				zap.L().Warn("failed to close audit publisher", zap.Error(err))
			}
		}
	case "log":
		return audit.LogWriter{}, func() {}
	default:
		return audit.NewPostgresWriter(repo), func() {}
	}
}

func newNotifier(cfg *config.Config) notify.Notifier {
	if cfg.Notify.Mode == "log" || cfg.SMTP.Host == "" {
		return notify.NewLogNotifier(cfg.IsDevelopment())
	}
	return notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	})
}

// newDispatcher wires the queue in asynq mode, where this process also runs
// the consuming worker. The other modes deliver from a bounded goroutine pool.
func newDispatcher(cfg *config.Config, client *redis.Client, notifier notify.Notifier) (notify.Dispatcher, *notify.Worker, func()) {
	if cfg.Notify.Mode != "asynq" {
		d := notify.NewInlineDispatcher(notifier, int64(cfg.Notify.Concurrency), cfg.Notify.MaxRetry+1, time.Second, cfg.Notify.Timeout)
		return d, nil, d.Wait
	}

	opts := client.Options()
	redisOpt := asynq.RedisClientOpt{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}
	if strings.HasPrefix(opts.Network, "unix") {
		redisOpt.Network = opts.Network
	}
	queue := asynq.NewClient(redisOpt)
	worker := notify.NewWorker(notify.WorkerConfig{Redis: redisOpt, Concurrency: cfg.Notify.Concurrency}, notify.NewTaskHandler(notifier))
	return notify.NewAsynqDispatcher(queue, cfg.Notify.MaxRetry, cfg.Notify.Timeout), worker, func() {
		if err := queue.Close(); err != nil {
			zap.L().Warn("failed to close notification queue client", zap.Error(err))
		}
	}
}
