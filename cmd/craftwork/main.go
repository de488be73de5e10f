// Command craftwork runs the Craftwork CRM API server.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/craftwork-crm/craftwork/pkg/api"
	"github.com/craftwork-crm/craftwork/pkg/audit"
	"github.com/craftwork-crm/craftwork/pkg/auth"
	"github.com/craftwork-crm/craftwork/pkg/config"
	"github.com/craftwork-crm/craftwork/pkg/observability"
	"github.com/craftwork-crm/craftwork/pkg/orgs"
	"github.com/craftwork-crm/craftwork/pkg/sessions"
	"github.com/craftwork-crm/craftwork/pkg/storage/postgres"
	"github.com/craftwork-crm/craftwork/pkg/tenantctx"
	"github.com/craftwork-crm/craftwork/pkg/users"
)

func main() {
	if err := run(); err != nil {
		observability.NewLogger(observability.ErrorLevel, os.Stderr).WithError(err).Error("server exited")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Infof("starting craftwork %s", cfg.Observability.ServiceVersion)

	// Background context for long-running helpers, cancelled on shutdown.
	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	db, err := postgres.Connect(postgres.Config{
		URL:         cfg.Database.URL,
		MaxConns:    cfg.Database.MaxOpenConns,
		MinConns:    cfg.Database.MaxIdleConns,
		MaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	logger.Info("connected to postgres")

	if err := postgres.RunMigrations(bgCtx, db, logger); err != nil {
		return err
	}

	var metrics *observability.Metrics
	registry := prometheus.NewRegistry()
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}
	postgres.StartStatsReporter(bgCtx, db, metrics, logger, 0)

	redisClient, err := sessions.NewRedisClient(sessions.Config{
		URL:      cfg.Redis.URL,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err != nil {
		return err
	}
	defer redisClient.Close()
	logger.Info("connected to redis")

	sessionStore := sessions.NewStore(redisClient, cfg.Session.TTL)

	dbAudit, err := audit.NewDBLogger(db)
	if err != nil {
		return err
	}
	var auditLogger audit.Logger = dbAudit
	if cfg.Audit.FileDir != "" {
		fileAudit, err := audit.NewFileLogger(audit.FileLoggerConfig{
			BasePath: cfg.Audit.FileDir,
			Rotate:   true,
		})
		if err != nil {
			return err
		}
		auditLogger = audit.NewMultiLogger(dbAudit, fileAudit)
		logger.Infof("audit file sink enabled at %s", cfg.Audit.FileDir)
	}
	defer auditLogger.Close()

	hasher := auth.NewPasswordHasher(auth.DefaultBcryptCost)
	userService := users.NewPostgresService(db, hasher, auditLogger, logger)
	orgService := orgs.NewPostgresService(db, auditLogger, logger)

	orgCache := tenantctx.NewOrgCache(cfg.Cache.OrgSnapshotSize, cfg.Cache.OrgSnapshotTTL, orgService.GetOrganization, metrics)
	resolver := tenantctx.NewResolver(orgService, orgCache, metrics, logger)
	switcher := tenantctx.NewSwitcher(orgService, userService, orgCache, auditLogger, metrics, logger)

	tracerProvider, err := observability.InitTracing(bgCtx, observability.TracingConfig{
		Enabled:        cfg.Observability.TracingEnabled,
		Endpoint:       cfg.Observability.TracingEndpoint,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		Insecure:       cfg.Observability.TracingInsecure,
	}, logger)
	if err != nil {
		return err
	}

	server := api.NewServer(api.Dependencies{
		Users:       userService,
		Orgs:        orgService,
		Sessions:    sessionStore,
		Resolver:    resolver,
		Switcher:    switcher,
		Audit:       auditLogger,
		AuditSearch: dbAudit,
		Metrics:     metrics,
		Logger:      logger,
		Tracing:     tracerProvider != nil,
	})

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port so probes bypass the API middleware.
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if metrics != nil {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownTracing(ctx, tracerProvider, logger)
	})
	shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
		cancelBg()
		return nil
	})

	errCh := make(chan error, 2)
	go func() {
		logger.Infof("health server listening on %s", healthServer.Addr)
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		logger.Infof("api server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	shutdownErr := make(chan error, 1)
	go func() {
		shutdownErr <- shutdown.WaitForShutdown()
	}()

	select {
	case err := <-errCh:
		return err
	case err := <-shutdownErr:
		return err
	}
}
