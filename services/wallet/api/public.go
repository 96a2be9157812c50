package main

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/brewgator/fixpet/internal/groq"
	"github.com/brewgator/fixpet/internal/resend"
	"github.com/brewgator/fixpet/internal/utils"
)

// notificationTimeout bounds each fire-and-forget email.
const notificationTimeout = 15 * time.Second

type verifyFixRequest struct {
	BeforeImage string `json:"beforeImage"`
	AfterImage  string `json:"afterImage"`
	Description string `json:"description"`
	Title       string `json:"title"`
}

// handleVerifyFix handles POST /api/verify-fix
func (s *Server) handleVerifyFix(w http.ResponseWriter, r *http.Request) {
	var req verifyFixRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if fields := missing("beforeImage", req.BeforeImage, "afterImage", req.AfterImage, "description", req.Description); fields != nil {
		s.writeMissingFields(w, fields)
		return
	}
	if s.fixes == nil {
		s.writeError(w, http.StatusInternalServerError, "Verification service not configured")
		return
	}

	verdict, err := s.fixes.VerifyFix(r.Context(), groq.FixRequest{
		BeforeImage: req.BeforeImage,
		AfterImage:  req.AfterImage,
		Description: req.Description,
		Title:       req.Title,
	})
	if err != nil {
		s.logger.Error("fix verification failed", zap.Error(err))
		s.writeUpstreamError(w, "Failed to verify fix", err)
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"success":    true,
		"confidence": verdict.Confidence,
		"reasoning":  verdict.Reasoning,
	})
}

type transferNotificationRequest struct {
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
	Amount     int64  `json:"amount"`
}

// handleTransferNotification handles POST /api/email/transfer-notification.
// Emails go out after the response and their failures are only logged.
func (s *Server) handleTransferNotification(w http.ResponseWriter, r *http.Request) {
	var req transferNotificationRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	fields := missing("fromUserId", req.FromUserID, "toUserId", req.ToUserID)
	if req.Amount == 0 {
		fields = append(fields, "amount")
	}
	if fields != nil {
		s.writeMissingFields(w, fields)
		return
	}

	s.notifyTransfer(req.FromUserID, req.ToUserID, req.Amount)
	s.writeJSON(w, APIResponse{Success: true})
}

// notifyTransfer emails both parties of a transfer in the background.
func (s *Server) notifyTransfer(fromID, toID string, amount int64) {
	if s.mailer == nil {
		s.logger.Debug("no email sender, skipping transfer notification")
		return
	}
	s.goBackground("transfer-notification", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), notificationTimeout)
		defer cancel()

		sender, err := s.db.GetProfile(ctx, fromID)
		if err != nil {
			return fmt.Errorf("sender %s: %w", fromID, err)
		}
		recipient, err := s.db.GetProfile(ctx, toID)
		if err != nil {
			return fmt.Errorf("recipient %s: %w", toID, err)
		}

		amountText := utils.FormatSats(amount)
		emails := []resend.Email{
			{
				From:    s.cfg.EmailFrom,
				To:      []string{sender.Email},
				Subject: fmt.Sprintf("You sent %s to %s", amountText, recipient.Username),
				HTML: fmt.Sprintf("<p>You sent <strong>%s</strong> to <strong>%s</strong>.</p><p>Your balance is now %s.</p>",
					html.EscapeString(amountText), html.EscapeString(recipient.Username), html.EscapeString(utils.FormatSats(sender.Balance))),
			},
			{
				From:    s.cfg.EmailFrom,
				To:      []string{recipient.Email},
				Subject: fmt.Sprintf("You received %s from %s", amountText, sender.Username),
				HTML: fmt.Sprintf("<p><strong>%s</strong> sent you <strong>%s</strong>.</p><p>Your balance is now %s.</p>",
					html.EscapeString(sender.Username), html.EscapeString(amountText), html.EscapeString(utils.FormatSats(recipient.Balance))),
			},
		}

		var firstErr error
		for _, email := range emails {
			if _, err := s.mailer.Send(ctx, email); err != nil {
				s.logger.Warn("transfer notification not sent", zap.Strings("to", email.To), zap.Error(err))
				if firstErr == nil {
					firstErr = err
				}
			}
		}
		return firstErr
	})
}

var callbackPattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$.]{0,63}$`)

// handleMaps handles GET /api/maps. It returns a script that loads the
// Maps SDK, or one that flags the SDK as unavailable when no key is set.
func (s *Server) handleMaps(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")

	if s.cfg.GoogleMapsAPIKey == "" {
		s.logger.Warn("maps requested without GOOGLE_MAPS_API_KEY")
		fmt.Fprint(w, "console.warn(\"Google Maps is not configured\");\nwindow.googleMapsUnavailable = true;\n"+
			"window.dispatchEvent(new Event(\"google-maps-unavailable\"));\n")
		return
	}

	q := url.Values{}
	q.Set("key", s.cfg.GoogleMapsAPIKey)
	q.Set("libraries", "places")
	q.Set("loading", "async")
	if cb := r.URL.Query().Get("callback"); callbackPattern.MatchString(cb) {
		q.Set("callback", cb)
	}
	src, _ := json.Marshal("https://maps.googleapis.com/maps/api/js?" + q.Encode())

	fmt.Fprintf(w, "(function () {\n"+
		"  if (window.google && window.google.maps) { return; }\n"+
		"  var script = document.createElement(\"script\");\n"+
		"  script.src = %s;\n"+
		"  script.async = true;\n"+
		"  script.defer = true;\n"+
		"  document.head.appendChild(script);\n"+
		"})();\n", src)
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	database := "ok"
	if err := s.db.Ping(r.Context()); err != nil {
		s.logger.Warn("database ping failed", zap.Error(err))
		status = "degraded"
		database = "error"
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":    status,
			"database":  database,
			"mockMode":  s.mocks != nil,
			"timestamp": time.Now().UTC(),
		},
	})
}
