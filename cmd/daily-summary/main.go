package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/brewgator/fixpet/internal/config"
	"github.com/brewgator/fixpet/internal/db"
	"github.com/brewgator/fixpet/internal/integrations"
	"github.com/brewgator/fixpet/internal/logging"
	"github.com/brewgator/fixpet/internal/summary"
)

const minInterval = time.Minute

type Runner struct {
	job     *summary.Job
	dryRun  bool
	out     io.Writer
	timeout time.Duration
}

func main() {
	var (
		envFile  = flag.String("env", ".env", "Path to an optional dotenv file")
		dbPath   = flag.String("db", "", "Database DSN or SQLite path (overrides DATABASE_URL)")
		mockMode = flag.Bool("mock", false, "Use in-memory mocks for the node and mailer")
		dryRun   = flag.Bool("dry-run", false, "Print the rendered HTML instead of sending it")
		oneshot  = flag.Bool("oneshot", true, "Run once and exit")
		interval = flag.Duration("interval", 24*time.Hour, "Interval between runs when not oneshot")
	)
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *dbPath != "" {
		cfg.DatabaseURL = *dbPath
	}
	if *mockMode {
		cfg.MockMode = true
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if !*oneshot {
		if err := validateInterval(*interval); err != nil {
			logger.Fatal("invalid interval", zap.Error(err))
		}
	}

	database, err := db.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	runner, err := newRunner(cfg, database, logger, *dryRun, os.Stdout)
	if err != nil {
		logger.Fatal("failed to build summary job", zap.Error(err))
	}

	if *oneshot {
		if err := runner.runOnce(context.Background()); err != nil {
			logger.Fatal("daily summary failed", zap.Error(err))
		}
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	logger.Info(fmt.Sprintf("📬 Sending the daily summary every %v", *interval))

	if err := runner.runOnce(context.Background()); err != nil {
		logger.Error("initial daily summary failed", zap.Error(err))
	}

	for {
		select {
		case <-ticker.C:
			if err := runner.runOnce(context.Background()); err != nil {
				logger.Error("daily summary failed", zap.Error(err))
			}
		case <-sigChan:
			logger.Info("received shutdown signal, exiting")
			return
		}
	}
}

func validateInterval(d time.Duration) error {
	if d < minInterval {
		return fmt.Errorf("interval %v is shorter than %v", d, minInterval)
	}
	return nil
}

func newRunner(cfg *config.Config, database *db.Database, logger *zap.Logger, dryRun bool, out io.Writer) (*Runner, error) {
	set, err := integrations.Build(cfg, logger)
	if err != nil {
		return nil, err
	}

	job := summary.NewJob(database, set.Node, set.Mailer, set.Probes, summary.Config{
		From:            cfg.EmailFrom,
		Recipients:      cfg.Recipients(),
		SystemProfileID: cfg.SystemProfileID,
	}, logger.Named("summary"))

	return &Runner{job: job, dryRun: dryRun, out: out, timeout: 2 * time.Minute}, nil
}

func (r *Runner) runOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if r.dryRun {
		result, err := r.job.Prepare(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "Subject: %s\n\n%s\n", result.Subject, result.HTML)
		return nil
	}

	result, err := r.job.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "✅ Daily summary sent: %s (audit %s)\n", result.MessageID, result.Data.Audit.Status)
	return nil
}
