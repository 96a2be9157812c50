package main

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/brewgator/fixpet/internal/db"
	"github.com/brewgator/fixpet/internal/lnd"
	"github.com/brewgator/fixpet/internal/summary"
	"github.com/brewgator/fixpet/internal/utils"
)

type nodeBalanceResponse struct {
	Success bool `json:"success"`
	lnd.BalanceSnapshot
}

// handleNodeBalance handles GET /api/admin/node-balance. A channel balance
// failure is a 500; an on-chain failure is reported as 0.
func (s *Server) handleNodeBalance(w http.ResponseWriter, r *http.Request) {
	if s.node == nil {
		s.writeError(w, http.StatusInternalServerError, "Lightning node not configured")
		return
	}

	snap, err := lnd.AggregateBalance(r.Context(), s.node)
	if err != nil {
		var fetchErr *lnd.FetchError
		if errors.As(err, &fetchErr) {
			s.logger.Error("node balance fetch failed", zap.String("endpoint", fetchErr.Endpoint), zap.Error(fetchErr.Err))
			s.writeUpstreamError(w, "Failed to fetch channel balance", fetchErr.Err)
			return
		}
		s.logger.Error("node balance aggregation failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.writeJSON(w, nodeBalanceResponse{Success: true, BalanceSnapshot: *snap})
}

// handleDailySummary handles GET and POST /api/admin/daily-summary
func (s *Server) handleDailySummary(w http.ResponseWriter, r *http.Request) {
	result, err := s.summary.Run(r.Context())
	if err != nil {
		if errors.Is(err, summary.ErrNotConfigured) {
			s.logger.Error("daily summary not configured", zap.Error(err))
			s.writeUpstreamError(w, "Daily summary is not configured", err)
			return
		}
		s.logger.Error("daily summary failed", zap.Error(err))
		s.writeUpstreamError(w, "Failed to send daily summary", err)
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"success":   true,
		"messageId": result.MessageID,
	})
}

type envVar struct {
	Set    bool   `json:"set"`
	Prefix string `json:"prefix,omitempty"`
}

// handleCheckEnv handles GET /api/admin/check-env. Secrets are reported by
// presence and a short prefix only.
func (s *Server) handleCheckEnv(w http.ResponseWriter, r *http.Request) {
	secret := func(v string) envVar { return envVar{Set: v != "", Prefix: utils.SecretPrefix(v)} }
	plain := func(v string) envVar { return envVar{Set: v != ""} }

	s.writeJSON(w, map[string]interface{}{
		"success":     true,
		"environment": s.cfg.Environment,
		"mockMode":    s.cfg.MockMode,
		"database":    s.cfg.DBDriver,
		"variables": map[string]envVar{
			"SUPABASE_JWT_SECRET": secret(s.cfg.JWTSecret),
			"CRON_SECRET":         secret(s.cfg.CronSecret),
			"LND_REST_URL":        plain(s.cfg.LNDRestURL),
			"LND_ADMIN_MACAROON":  secret(s.cfg.LNDMacaroon),
			"GROQ_API_KEY":        secret(s.cfg.GroqAPIKey),
			"RESEND_API_KEY":      secret(s.cfg.ResendAPIKey),
			"GOOGLE_MAPS_API_KEY": secret(s.cfg.GoogleMapsAPIKey),
			"SUMMARY_RECIPIENT":   plain(s.cfg.SummaryRecipient),
			"ADMIN_EMAILS":        plain(s.cfg.AdminEmails),
			"SYSTEM_PROFILE_ID":   plain(s.cfg.SystemProfileID),
		},
	})
}

// handleUpdateBitcoinPrice handles GET /api/cron/update-bitcoin-price
func (s *Server) handleUpdateBitcoinPrice(w http.ResponseWriter, r *http.Request) {
	price, err := s.recordBitcoinPrice(r.Context())
	if err != nil {
		s.logger.Error("bitcoin price update failed", zap.Error(err))
		s.writeUpstreamError(w, "Failed to update bitcoin price", err)
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"success": true,
		"price":   price,
	})
}

// recordBitcoinPrice fetches the current quote and stores it. Negative
// quotes are stored unchanged.
func (s *Server) recordBitcoinPrice(ctx context.Context) (*db.BitcoinPrice, error) {
	if s.prices == nil {
		return nil, errors.New("price feed not configured")
	}
	quote, err := s.prices.CurrentPrice(ctx)
	if err != nil {
		return nil, err
	}
	price, err := s.db.InsertBitcoinPrice(ctx, quote, s.priceSource)
	if err != nil {
		return nil, err
	}
	s.logger.Info("bitcoin price recorded", zap.String("price", price.Price.String()), zap.String("source", price.Source))
	return price, nil
}
