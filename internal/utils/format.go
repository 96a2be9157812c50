package utils

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/shopspring/decimal"
)

// FormatSats formats a satoshi amount with thousands separators, e.g. "1,500 sats"
func FormatSats(amount int64) string {
	return groupThousands(strconv.FormatInt(amount, 10)) + " sats"
}

// FormatSignedSats is FormatSats with an explicit "+" on positive amounts
func FormatSignedSats(amount int64) string {
	if amount > 0 {
		return "+" + FormatSats(amount)
	}
	return FormatSats(amount)
}

// FormatBTC formats a satoshi amount in BTC, e.g. "0.015 BTC"
func FormatBTC(amount int64) string {
	return btcutil.Amount(amount).String()
}

// FormatUSD formats a dollar value with two decimals and separators, e.g. "$65,000.50"
func FormatUSD(v decimal.Decimal) string {
	s := v.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")
	out := "$" + groupThousands(whole) + "." + frac
	if v.IsNegative() {
		return "-" + out
	}
	return out
}

// SatsToUSD converts sats at a per-BTC price, rounded to cents
func SatsToUSD(sats int64, btcPrice decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(sats).Mul(btcPrice).Div(decimal.NewFromInt(btcutil.SatoshiPerBitcoin)).Round(2)
}

// SecretPrefix returns the first four characters of a configured secret, or
// an empty string when unset
func SecretPrefix(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + "..."
}

var (
	pairingCodePattern = regexp.MustCompile(`^[A-Za-z0-9-]{4,32}$`)
	usernamePattern    = regexp.MustCompile(`^[A-Za-z0-9_.]{2,32}$`)
)

// ValidatePairingCode checks the shape of a device pairing code
func ValidatePairingCode(code string) bool {
	return pairingCodePattern.MatchString(code)
}

// ValidateUsername checks the shape of a wallet username
func ValidateUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

func groupThousands(digits string) string {
	sign := ""
	if strings.HasPrefix(digits, "-") {
		sign, digits = "-", digits[1:]
	}
	if len(digits) <= 3 {
		return sign + digits
	}

	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return sign + b.String()
}
