package integrations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/brewgator/fixpet/internal/config"
	"github.com/brewgator/fixpet/internal/lnd"
	"github.com/brewgator/fixpet/internal/summary"
)

func TestBuildMockMode(t *testing.T) {
	cfg := &config.Config{MockMode: true, Network: "testnet", MockAutoSettle: time.Minute}

	set, err := Build(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, set.Mocks)
	assert.Equal(t, "mock", set.PriceSource)

	added, err := set.Node.AddInvoice(context.Background(), 1000, "test")
	require.NoError(t, err)
	assert.Contains(t, added.PaymentRequest, "lntb")
	assert.Len(t, set.Mocks.Invoices.ListInvoices(), 1)

	health := summary.CheckHealth(context.Background(), set.Probes, time.Second)
	assert.Equal(t, summary.APIHealth{
		Lightning: summary.HealthOnline,
		Groq:      summary.HealthOnline,
		Resend:    summary.HealthOnline,
	}, health)

	set.Mocks.Node.SetBalances("1", "2", "3")
	set.Mocks.Reset()
	assert.Empty(t, set.Mocks.Invoices.ListInvoices())
	snap, err := lnd.AggregateBalance(context.Background(), set.Node)
	require.NoError(t, err)
	assert.Equal(t, int64(2000000), lnd.Value(snap.TotalBalance))
}

func TestBuildUnconfigured(t *testing.T) {
	set, err := Build(&config.Config{}, zap.NewNop())
	require.NoError(t, err)

	assert.Nil(t, set.Mocks)
	assert.Nil(t, set.Node)
	assert.Nil(t, set.Fixes)
	assert.Nil(t, set.Mailer)
	assert.Nil(t, set.Probes.Lightning)
	assert.NotNil(t, set.Prices)
	assert.Equal(t, "coingecko", set.PriceSource)
}

func TestBuildConfigured(t *testing.T) {
	cfg := &config.Config{
		LNDRestURL:   "https://127.0.0.1:8080",
		LNDMacaroon:  "0201",
		GroqAPIKey:   "gsk_test",
		ResendAPIKey: "re_test",
	}

	set, err := Build(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.NotNil(t, set.Node)
	assert.NotNil(t, set.Fixes)
	assert.NotNil(t, set.Mailer)
	assert.NotNil(t, set.Probes.Lightning)
	assert.NotNil(t, set.Probes.Groq)
	assert.NotNil(t, set.Probes.Resend)
}

func TestNetworkParams(t *testing.T) {
	tests := map[string]string{
		"":        "mainnet",
		"mainnet": "mainnet",
		"testnet": "testnet3",
		"signet":  "signet",
		"regtest": "regtest",
	}
	for in, want := range tests {
		params, err := NetworkParams(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, params.Name)
	}

	_, err := NetworkParams("dogecoin")
	assert.Error(t, err)
}
