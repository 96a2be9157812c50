package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config holds the runtime configuration for the API and the summary CLI.
type Config struct {
	Host        string `env:"HOST,default=127.0.0.1"`
	Port        string `env:"PORT,default=8090"`
	Environment string `env:"ENVIRONMENT,default=development"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	DBDriver    string `env:"DB_DRIVER,default=sqlite3"`
	DatabaseURL string `env:"DATABASE_URL,default=data/fixpet.db"`

	MockMode       bool          `env:"MOCK_MODE,default=false"`
	MockAutoSettle time.Duration `env:"MOCK_AUTO_SETTLE,default=0s"`
	Network        string        `env:"LIGHTNING_NETWORK,default=mainnet"`

	CronSecret      string `env:"CRON_SECRET"`
	JWTSecret       string `env:"SUPABASE_JWT_SECRET"`
	AdminEmails     string `env:"ADMIN_EMAILS"`
	SystemProfileID string `env:"SYSTEM_PROFILE_ID"`

	LNDRestURL       string `env:"LND_REST_URL"`
	LNDMacaroon      string `env:"LND_ADMIN_MACAROON"`
	LNDTLSSkipVerify bool   `env:"LND_TLS_SKIP_VERIFY,default=false"`

	GroqAPIKey string `env:"GROQ_API_KEY"`
	GroqModel  string `env:"GROQ_MODEL,default=meta-llama/llama-4-scout-17b-16e-instruct"`

	ResendAPIKey     string `env:"RESEND_API_KEY"`
	EmailFrom        string `env:"EMAIL_FROM,default=Fixpet <noreply@fixpet.app>"`
	SummaryRecipient string `env:"SUMMARY_RECIPIENT"`

	GoogleMapsAPIKey string `env:"GOOGLE_MAPS_API_KEY"`
	PriceFeedURL     string `env:"PRICE_FEED_URL"`
	AllowedOrigins   string `env:"ALLOWED_ORIGINS"`

	EnableScheduler bool   `env:"ENABLE_SCHEDULER,default=false"`
	SummarySchedule string `env:"SUMMARY_SCHEDULE,default=0 9 * * *"`
	PriceSchedule   string `env:"PRICE_SCHEDULE,default=*/30 * * * *"`
}

// Load reads an optional dotenv file and decodes the environment into a
// Config. A missing dotenv file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env (%s): %w", envFile, err)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	return &cfg, nil
}

// Validate checks settings that would make the service unusable. It returns
// warnings for integrations that are simply not configured.
func (c *Config) Validate() ([]string, error) {
	switch c.DBDriver {
	case "sqlite3", "postgres":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (want sqlite3 or postgres)", c.DBDriver)
	}
	switch c.Network {
	case "", "mainnet", "testnet", "signet", "regtest":
	default:
		return nil, fmt.Errorf("unsupported LIGHTNING_NETWORK %q", c.Network)
	}
	if c.MockAutoSettle < 0 {
		return nil, fmt.Errorf("MOCK_AUTO_SETTLE must not be negative")
	}

	if c.MockMode {
		return nil, nil
	}

	var warnings []string
	if c.LNDRestURL == "" || c.LNDMacaroon == "" {
		warnings = append(warnings, "Lightning node not configured (LND_REST_URL / LND_ADMIN_MACAROON)")
	}
	if c.GroqAPIKey == "" {
		warnings = append(warnings, "GROQ_API_KEY not set, fix verification will fail")
	}
	if c.ResendAPIKey == "" {
		warnings = append(warnings, "RESEND_API_KEY not set, emails will not be sent")
	}
	if c.JWTSecret == "" {
		warnings = append(warnings, "SUPABASE_JWT_SECRET not set, user routes will reject every request")
	}
	if c.CronSecret == "" {
		warnings = append(warnings, "CRON_SECRET not set, cron and admin routes are unauthenticated")
	}
	return warnings, nil
}

// Admins returns the normalized admin email allow-list.
func (c *Config) Admins() []string {
	return splitList(c.AdminEmails)
}

// Recipients returns the daily summary recipients.
func (c *Config) Recipients() []string {
	return splitList(c.SummaryRecipient)
}

// Origins returns the CORS origins, defaulting to localhost.
func (c *Config) Origins() []string {
	if origins := splitList(c.AllowedOrigins); len(origins) > 0 {
		return origins
	}
	return []string{
		fmt.Sprintf("http://localhost:%s", c.Port),
		fmt.Sprintf("http://127.0.0.1:%s", c.Port),
	}
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
