package summary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/brewgator/fixpet/internal/db"
	"github.com/brewgator/fixpet/internal/lnd"
	"github.com/brewgator/fixpet/internal/resend"
)

// ErrNotConfigured indicates the job lacks a store, a mailer or recipients.
var ErrNotConfigured = errors.New("daily summary is not configured")

// Store is the data the job reads.
type Store interface {
	LedgerReader
	SumProfileBalances(ctx context.Context, excludeID string) (int64, error)
	TransactionStatsSince(ctx context.Context, txType string, since time.Time) (db.TransactionStats, error)
	PostsCreatedSince(ctx context.Context, since time.Time) (db.PostStats, error)
	PostsCompletedSince(ctx context.Context, since time.Time) (db.PostStats, error)
	ActiveUsersSince(ctx context.Context, since time.Time) (int64, error)
}

// Recorder receives the outcome of each run.
type Recorder interface {
	RecordSummaryRun(outcome string)
	RecordSummaryData(discrepancies int, nodeTotal, appTotal int64)
}

// Config holds the job's addressing and identity settings.
type Config struct {
	From            string
	Recipients      []string
	SystemProfileID string
	ProbeTimeout    time.Duration
}

// Job gathers the daily summary and emails it.
type Job struct {
	store    Store
	node     lnd.BalanceSource
	mailer   resend.Sender
	probes   Probes
	cfg      Config
	logger   *zap.Logger
	recorder Recorder
	now      func() time.Time
}

// Option configures a Job.
type Option func(*Job)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(j *Job) { j.now = now }
}

// WithRecorder reports each run's outcome to r.
func WithRecorder(r Recorder) Option {
	return func(j *Job) { j.recorder = r }
}

// NewJob creates a job. node may be nil, in which case the node balance is
// reported as unavailable.
func NewJob(store Store, node lnd.BalanceSource, mailer resend.Sender, probes Probes, cfg Config, logger *zap.Logger, opts ...Option) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &Job{
		store:  store,
		node:   node,
		mailer: mailer,
		probes: probes,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *Job) configured() error {
	switch {
	case j.store == nil:
		return fmt.Errorf("%w: no database", ErrNotConfigured)
	case j.mailer == nil:
		return fmt.Errorf("%w: no email sender", ErrNotConfigured)
	case len(j.cfg.Recipients) == 0:
		return fmt.Errorf("%w: no recipients", ErrNotConfigured)
	}
	return nil
}

// Collect gathers every section. Failures in one section are logged and
// replaced by zero values so the others still report.
func (j *Job) Collect(ctx context.Context) *Data {
	now := j.now().UTC()
	data := &Data{GeneratedAt: now}

	data.NodeBalance, data.NodeBalanceError = j.nodeBalance(ctx)
	data.Last24Hours = j.last24Hours(ctx, now.Add(-24*time.Hour))
	data.Audit = RunAudit(ctx, j.store, j.cfg.SystemProfileID)
	if data.Audit.Status == AuditError {
		j.logger.Error("balance audit failed", zap.String("error", data.Audit.Error))
	}

	total, err := j.store.SumProfileBalances(ctx, j.cfg.SystemProfileID)
	if err != nil {
		j.logger.Warn("failed to sum app balances", zap.Error(err))
	}
	data.AppTotalBalance = total

	data.APIHealth = CheckHealth(ctx, j.probes, j.cfg.ProbeTimeout)
	return data
}

func (j *Job) nodeBalance(ctx context.Context) (lnd.BalanceSnapshot, string) {
	if j.node == nil {
		return lnd.ZeroSnapshot(), "lightning node not configured"
	}
	snap, err := lnd.AggregateBalance(ctx, j.node)
	if err != nil {
		j.logger.Warn("node balance unavailable, using zero snapshot", zap.Error(err))
		return lnd.ZeroSnapshot(), err.Error()
	}
	return *snap, ""
}

func (j *Job) last24Hours(ctx context.Context, since time.Time) Last24Hours {
	var out Last24Hours
	var err error

	if out.Deposits, err = j.store.TransactionStatsSince(ctx, db.TxTypeDeposit, since); err != nil {
		j.logger.Warn("deposit metrics unavailable", zap.Error(err))
		out.Deposits = db.TransactionStats{}
	}
	if out.Withdrawals, err = j.store.TransactionStatsSince(ctx, db.TxTypeWithdrawal, since); err != nil {
		j.logger.Warn("withdrawal metrics unavailable", zap.Error(err))
		out.Withdrawals = db.TransactionStats{}
	}
	if out.PostsCreated, err = j.store.PostsCreatedSince(ctx, since); err != nil {
		j.logger.Warn("created post metrics unavailable", zap.Error(err))
		out.PostsCreated = db.PostStats{}
	}
	if out.PostsCompleted, err = j.store.PostsCompletedSince(ctx, since); err != nil {
		j.logger.Warn("completed post metrics unavailable", zap.Error(err))
		out.PostsCompleted = db.PostStats{}
	}
	if out.ActiveUsers, err = j.store.ActiveUsersSince(ctx, since); err != nil {
		j.logger.Warn("active user metrics unavailable", zap.Error(err))
		out.ActiveUsers = 0
	}
	return out
}

// Prepare collects and renders without sending.
func (j *Job) Prepare(ctx context.Context) (*Result, error) {
	if j.store == nil {
		return nil, fmt.Errorf("%w: no database", ErrNotConfigured)
	}

	data := j.Collect(ctx)
	html, err := RenderHTML(data)
	if err != nil {
		return nil, err
	}
	return &Result{Subject: Subject(data), HTML: html, Data: data}, nil
}

// Run collects, renders and sends the summary. Only configuration, render
// and send failures are returned.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	if err := j.configured(); err != nil {
		j.record("not_configured", nil)
		return nil, err
	}

	result, err := j.Prepare(ctx)
	if err != nil {
		j.record("render_failed", nil)
		return nil, err
	}

	id, err := j.mailer.Send(ctx, resend.Email{
		From:    j.cfg.From,
		To:      j.cfg.Recipients,
		Subject: result.Subject,
		HTML:    result.HTML,
	})
	if err != nil {
		j.record("send_failed", result.Data)
		return nil, fmt.Errorf("failed to send daily summary: %w", err)
	}
	result.MessageID = id

	j.logger.Info("daily summary sent",
		zap.String("message_id", id),
		zap.String("audit_status", result.Data.Audit.Status),
		zap.Int("discrepancies", result.Data.Audit.UsersWithDiscrepancies),
	)
	j.record("sent", result.Data)
	return result, nil
}

func (j *Job) record(outcome string, data *Data) {
	if j.recorder == nil {
		return
	}
	j.recorder.RecordSummaryRun(outcome)
	if data != nil {
		j.recorder.RecordSummaryData(data.Audit.UsersWithDiscrepancies, lnd.Value(data.NodeBalance.TotalBalance), data.AppTotalBalance)
	}
}
