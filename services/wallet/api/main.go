package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/robfig/cron/v3"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/brewgator/fixpet/internal/auth"
	"github.com/brewgator/fixpet/internal/config"
	"github.com/brewgator/fixpet/internal/db"
	"github.com/brewgator/fixpet/internal/integrations"
	"github.com/brewgator/fixpet/internal/logging"
	"github.com/brewgator/fixpet/internal/metrics"
	"github.com/brewgator/fixpet/internal/ratelimit"
	"github.com/brewgator/fixpet/internal/summary"
)

const shutdownTimeout = 15 * time.Second

func main() {
	var (
		envFile   = flag.String("env", ".env", "Path to an optional dotenv file")
		host      = flag.String("host", "", "Host to serve on (overrides HOST)")
		port      = flag.String("port", "", "Port to serve on (overrides PORT)")
		dbPath    = flag.String("db", "", "Database DSN or SQLite path (overrides DATABASE_URL)")
		mockMode  = flag.Bool("mock", false, "Use in-memory mocks for every third-party service")
		scheduler = flag.Bool("scheduler", false, "Run the daily summary and price update in-process")
	)
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DatabaseURL = *dbPath
	}
	if *mockMode {
		cfg.MockMode = true
	}
	if *scheduler {
		cfg.EnableScheduler = true
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	warnings, err := cfg.Validate()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	for _, w := range warnings {
		logger.Warn("⚠️  " + w)
	}

	database, err := db.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	server, err := buildServer(cfg, database, logger)
	if err != nil {
		logger.Fatal("failed to build server", zap.Error(err))
	}

	server.limiter.Start()
	defer server.limiter.Stop()

	if cfg.EnableScheduler {
		jobs, err := server.startScheduler()
		if err != nil {
			logger.Fatal("failed to start scheduler", zap.Error(err))
		}
		defer func() { <-jobs.Stop().Done() }()
	}

	if os.Getenv("ALLOWED_ORIGINS") == "" {
		logger.Warn("⚠️  Using default localhost CORS origins. Set ALLOWED_ORIGINS for production!")
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Origins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Cron-Secret"},
		AllowCredentials: true,
	})

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           c.Handler(server.router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info(fmt.Sprintf("🚀 FixPet wallet API starting on http://%s", cfg.Addr()),
		zap.String("db_driver", cfg.DBDriver),
		zap.Bool("mock_mode", cfg.MockMode),
		zap.Bool("scheduler", cfg.EnableScheduler),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
		}
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", zap.Error(err))
		}
	}

	server.background.Wait()
}

// buildServer wires the store, integrations and jobs into a Server with
// its routes registered.
func buildServer(cfg *config.Config, database *db.Database, logger *zap.Logger) (*Server, error) {
	set, err := integrations.Build(cfg, logger)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	job := summary.NewJob(database, set.Node, set.Mailer, set.Probes, summary.Config{
		From:            cfg.EmailFrom,
		Recipients:      cfg.Recipients(),
		SystemProfileID: cfg.SystemProfileID,
	}, logger.Named("summary"), summary.WithRecorder(m))

	s := &Server{
		cfg:         cfg,
		db:          database,
		router:      mux.NewRouter(),
		logger:      logger,
		metrics:     m,
		limiter:     ratelimit.New(),
		verifier:    auth.NewVerifier(cfg.JWTSecret),
		cron:        auth.NewCronAuthorizer(cfg.CronSecret),
		admins:      cfg.Admins(),
		node:        set.Node,
		fixes:       set.Fixes,
		mailer:      set.Mailer,
		prices:      set.Prices,
		priceSource: set.PriceSource,
		summary:     job,
		mocks:       set.Mocks,
	}
	s.setupRoutes()
	return s, nil
}

// startScheduler runs the daily summary and price update on their cron
// schedules (UTC).
func (s *Server) startScheduler() (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))

	if _, err := c.AddFunc(s.cfg.SummarySchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := s.summary.Run(ctx); err != nil {
			s.logger.Error("scheduled daily summary failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid SUMMARY_SCHEDULE %q: %w", s.cfg.SummarySchedule, err)
	}

	if _, err := c.AddFunc(s.cfg.PriceSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.recordBitcoinPrice(ctx); err != nil {
			s.logger.Error("scheduled price update failed", zap.Error(err))
		}
	}); err != nil {
		return nil, fmt.Errorf("invalid PRICE_SCHEDULE %q: %w", s.cfg.PriceSchedule, err)
	}

	c.Start()
	s.logger.Info("⏰ Scheduler started",
		zap.String("summary", s.cfg.SummarySchedule),
		zap.String("price", s.cfg.PriceSchedule),
	)
	return c, nil
}
