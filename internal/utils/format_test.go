package utils

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/brewgator/fixpet/pkg/testutils"
)

func TestFormatSats(t *testing.T) {
	tests := []struct {
		amount int64
		want   string
	}{
		{0, "0 sats"},
		{999, "999 sats"},
		{1000, "1,000 sats"},
		{1500000, "1,500,000 sats"},
		{-500, "-500 sats"},
		{-123456, "-123,456 sats"},
		{9007199254740991, "9,007,199,254,740,991 sats"},
	}

	for _, tt := range tests {
		testutils.AssertEqual(t, FormatSats(tt.amount), tt.want)
	}

	testutils.AssertEqual(t, FormatSignedSats(500), "+500 sats")
	testutils.AssertEqual(t, FormatSignedSats(-500), "-500 sats")
	testutils.AssertEqual(t, FormatSignedSats(0), "0 sats")
}

func TestFormatBTC(t *testing.T) {
	testutils.AssertEqual(t, FormatBTC(150000000), "1.5 BTC")
	testutils.AssertEqual(t, FormatBTC(1500), "0.000015 BTC")
}

func TestFormatUSD(t *testing.T) {
	testutils.AssertEqual(t, FormatUSD(decimal.RequireFromString("65000.5")), "$65,000.50")
	testutils.AssertEqual(t, FormatUSD(decimal.RequireFromString("12")), "$12.00")
	testutils.AssertEqual(t, FormatUSD(decimal.RequireFromString("-1234.567")), "-$1,234.57")
}

func TestSatsToUSD(t *testing.T) {
	got := SatsToUSD(100000, decimal.NewFromInt(60000))
	if !got.Equal(decimal.NewFromInt(60)) {
		t.Errorf("SatsToUSD = %s, want 60", got)
	}
}

func TestSecretPrefix(t *testing.T) {
	testutils.AssertEqual(t, SecretPrefix(""), "")
	testutils.AssertEqual(t, SecretPrefix("abc"), "***")
	testutils.AssertEqual(t, SecretPrefix("re_123456"), "re_1...")
}

func TestValidators(t *testing.T) {
	testutils.AssertEqual(t, ValidatePairingCode("PET-1234"), true)
	testutils.AssertEqual(t, ValidatePairingCode("no spaces"), false)
	testutils.AssertEqual(t, ValidatePairingCode("abc"), false)

	testutils.AssertEqual(t, ValidateUsername("alice_01"), true)
	testutils.AssertEqual(t, ValidateUsername("a"), false)
	testutils.AssertEqual(t, ValidateUsername("bad name"), false)
}
