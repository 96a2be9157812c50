// Package integrations builds the third-party clients the service talks to,
// or their in-memory stand-ins in mock mode.
package integrations

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"go.uber.org/zap"

	"github.com/brewgator/fixpet/internal/config"
	"github.com/brewgator/fixpet/internal/groq"
	"github.com/brewgator/fixpet/internal/lnd"
	"github.com/brewgator/fixpet/internal/mock"
	"github.com/brewgator/fixpet/internal/pricefeed"
	"github.com/brewgator/fixpet/internal/resend"
	"github.com/brewgator/fixpet/internal/summary"
)

// Mocks are the in-memory services behind mock mode.
type Mocks struct {
	Invoices      *mock.InvoiceStore
	Verifications *mock.VerificationStore
	Mailer        *mock.Mailer
	Prices        *mock.PriceStore
	Node          *mock.Node
}

// Reset clears every mock store and restores default node balances.
func (m *Mocks) Reset() {
	m.Invoices.Reset()
	m.Verifications.Reset()
	m.Mailer.Reset()
	m.Prices.Reset()
	m.Node.Reset()
}

// Set is the resolved group of integrations. A nil field means the
// integration is not configured.
type Set struct {
	Node        lnd.Node
	Fixes       groq.Verifier
	Mailer      resend.Sender
	Prices      pricefeed.Source
	PriceSource string
	Probes      summary.Probes

	// Mocks is non-nil in mock mode.
	Mocks *Mocks
}

// Build resolves integrations from cfg.
func Build(cfg *config.Config, logger *zap.Logger) (*Set, error) {
	if cfg.MockMode {
		return buildMocks(cfg, logger)
	}

	set := &Set{}

	if cfg.LNDRestURL != "" && cfg.LNDMacaroon != "" {
		client := lnd.NewClient(cfg.LNDRestURL, cfg.LNDMacaroon, cfg.LNDTLSSkipVerify)
		set.Node = client
		set.Probes.Lightning = client
		if cfg.LNDTLSSkipVerify {
			logger.Warn("⚠️  TLS verification disabled for the Lightning node")
		}
	} else {
		logger.Warn("⚠️  Lightning node not configured")
	}

	if cfg.GroqAPIKey != "" {
		client := groq.NewClient(cfg.GroqAPIKey, cfg.GroqModel)
		set.Fixes = client
		set.Probes.Groq = client
	}

	if cfg.ResendAPIKey != "" {
		client := resend.NewClient(cfg.ResendAPIKey)
		set.Mailer = client
		set.Probes.Resend = client
	}

	feed := pricefeed.NewClient(cfg.PriceFeedURL)
	set.Prices = feed
	set.PriceSource = feed.Name()

	return set, nil
}

func buildMocks(cfg *config.Config, logger *zap.Logger) (*Set, error) {
	params, err := NetworkParams(cfg.Network)
	if err != nil {
		return nil, err
	}

	invoices := mock.NewInvoiceStore(
		mock.WithAutoSettle(cfg.MockAutoSettle),
		mock.WithScheduler(mock.NewTimerScheduler()),
		mock.WithNetwork(params),
	)
	node, err := mock.NewNode(invoices)
	if err != nil {
		return nil, err
	}

	m := &Mocks{
		Invoices:      invoices,
		Verifications: mock.NewVerificationStore(),
		Mailer:        mock.NewMailer(),
		Prices:        mock.NewPriceStore(nil),
		Node:          node,
	}

	logger.Info("🧪 Mock mode: Lightning, Groq, Resend and the price feed are in-memory",
		zap.Duration("auto_settle", cfg.MockAutoSettle),
		zap.String("network", params.Name),
	)

	return &Set{
		Node:        node,
		Fixes:       m.Verifications,
		Mailer:      m.Mailer,
		Prices:      m.Prices,
		PriceSource: m.Prices.Name(),
		Probes: summary.Probes{
			Lightning: node,
			Groq:      m.Verifications,
			Resend:    m.Mailer,
		},
		Mocks: m,
	}, nil
}

// NetworkParams maps a network name onto chain parameters.
func NetworkParams(name string) (*chaincfg.Params, error) {
	switch name {
	case "", "mainnet":
		return &chaincfg.MainNetParams, nil
	case "testnet":
		return &chaincfg.TestNet3Params, nil
	case "signet":
		return &chaincfg.SigNetParams, nil
	case "regtest":
		return &chaincfg.RegressionNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", name)
	}
}
