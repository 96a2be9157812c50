package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/brewgator/fixpet/internal/config"
	"github.com/brewgator/fixpet/internal/db"
	"github.com/brewgator/fixpet/pkg/testutils"
)

func TestValidateInterval(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		valid    bool
	}{
		{"Valid 5 minutes", 5 * time.Minute, true},
		{"Valid 1 day", 24 * time.Hour, true},
		{"Too short", 30 * time.Second, false},
		{"Zero duration", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateInterval(tt.interval)
			if (err == nil) != tt.valid {
				t.Errorf("Expected validity %v for interval %v, got %v", tt.valid, tt.interval, err)
			}
		})
	}
}

func setupRunner(t *testing.T, cfg *config.Config, dryRun bool) (*Runner, *bytes.Buffer) {
	t.Helper()
	database, err := db.NewDatabase(testutils.CreateTestDBPath(t))
	testutils.AssertNoError(t, err)
	t.Cleanup(func() { database.Close() })

	var out bytes.Buffer
	runner, err := newRunner(cfg, database, zap.NewNop(), dryRun, &out)
	testutils.AssertNoError(t, err)
	return runner, &out
}

func TestRunOnceSendsInMockMode(t *testing.T) {
	runner, out := setupRunner(t, &config.Config{
		MockMode:         true,
		EmailFrom:        "FixPet <noreply@fixpet.app>",
		SummaryRecipient: "ops@fixpet.app",
	}, false)

	testutils.AssertNoError(t, runner.runOnce(context.Background()))

	if !strings.Contains(out.String(), "Daily summary sent: mock_") {
		t.Errorf("unexpected output %q", out.String())
	}
	if !strings.Contains(out.String(), "(audit passed)") {
		t.Errorf("empty ledger should pass the audit, got %q", out.String())
	}
}

func TestRunOnceDryRun(t *testing.T) {
	// Dry runs render without recipients or a mailer
	runner, out := setupRunner(t, &config.Config{}, true)

	testutils.AssertNoError(t, runner.runOnce(context.Background()))

	got := out.String()
	if !strings.HasPrefix(got, "Subject: ") {
		t.Errorf("expected subject line first, got %q", got)
	}
	if !strings.Contains(got, "lightning node not configured") {
		t.Error("expected the missing node to be reported")
	}
}

func TestRunOnceNotConfigured(t *testing.T) {
	runner, _ := setupRunner(t, &config.Config{MockMode: true}, false)
	testutils.AssertError(t, runner.runOnce(context.Background()), "no recipients")
}
