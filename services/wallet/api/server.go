package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/brewgator/fixpet/internal/auth"
	"github.com/brewgator/fixpet/internal/config"
	"github.com/brewgator/fixpet/internal/db"
	"github.com/brewgator/fixpet/internal/groq"
	"github.com/brewgator/fixpet/internal/integrations"
	"github.com/brewgator/fixpet/internal/lnd"
	"github.com/brewgator/fixpet/internal/metrics"
	"github.com/brewgator/fixpet/internal/pricefeed"
	"github.com/brewgator/fixpet/internal/ratelimit"
	"github.com/brewgator/fixpet/internal/resend"
	"github.com/brewgator/fixpet/internal/summary"
)

// maxBodyBytes bounds JSON request bodies. Fix verification carries two
// data-URL images, so it is generous.
const maxBodyBytes = 20 << 20

type Server struct {
	cfg     *config.Config
	db      *db.Database
	router  *mux.Router
	logger  *zap.Logger
	metrics *metrics.Metrics
	limiter *ratelimit.Limiter

	verifier *auth.Verifier
	cron     *auth.CronAuthorizer
	admins   []string

	node        lnd.Node
	fixes       groq.Verifier
	mailer      resend.Sender
	prices      pricefeed.Source
	priceSource string
	summary     *summary.Job
	mocks       *integrations.Mocks

	// background tracks fire-and-forget work such as notification emails.
	background sync.WaitGroup
}

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details string      `json:"details,omitempty"`
	Fields  []string    `json:"fields,omitempty"`
}

func (s *Server) setupRoutes() {
	s.router.Use(s.recoverer, s.metrics.Middleware)

	api := s.router.PathPrefix("/api").Subrouter()

	// Devices
	api.Handle("/device/list", s.requireUser(http.HandlerFunc(s.handleListDevices))).Methods("GET")
	api.Handle("/device/config", s.limit("device-config", ratelimit.DeviceConfig)(http.HandlerFunc(s.handleDeviceConfig))).Methods("GET")
	api.Handle("/device/register", s.requireUser(http.HandlerFunc(s.handleRegisterDevice))).Methods("POST")
	api.Handle("/device/{id}", s.requireUser(http.HandlerFunc(s.handleDeleteDevice))).Methods("DELETE")

	// Admin and scheduled jobs
	api.Handle("/admin/node-balance", s.requireAdmin(http.HandlerFunc(s.handleNodeBalance))).Methods("GET")
	api.Handle("/admin/daily-summary", s.requireCron(http.HandlerFunc(s.handleDailySummary))).Methods("GET", "POST")
	api.Handle("/admin/check-env", s.requireAdmin(http.HandlerFunc(s.handleCheckEnv))).Methods("GET")
	api.Handle("/cron/update-bitcoin-price", s.requireCron(http.HandlerFunc(s.handleUpdateBitcoinPrice))).Methods("GET")

	// Fix verification, notifications and maps
	api.Handle("/verify-fix", s.limit("verify-fix", ratelimit.VerifyFix)(http.HandlerFunc(s.handleVerifyFix))).Methods("POST")
	api.HandleFunc("/email/transfer-notification", s.handleTransferNotification).Methods("POST")
	api.HandleFunc("/maps", s.handleMaps).Methods("GET")

	// Wallet
	walletWrite := s.limit("wallet", ratelimit.WalletWrite)
	api.Handle("/wallet/balance", s.requireUser(http.HandlerFunc(s.handleWalletBalance))).Methods("GET")
	api.Handle("/wallet/deposit", s.requireUser(walletWrite(http.HandlerFunc(s.handleCreateDeposit)))).Methods("POST")
	api.Handle("/wallet/deposit/{rHash}", s.requireUser(http.HandlerFunc(s.handleDepositStatus))).Methods("GET")
	api.Handle("/wallet/transfer", s.requireUser(walletWrite(http.HandlerFunc(s.handleTransfer)))).Methods("POST")

	// Posts
	api.Handle("/posts", s.requireUser(walletWrite(http.HandlerFunc(s.handleCreatePost)))).Methods("POST")
	api.Handle("/posts/{id}/complete", s.requireUser(walletWrite(http.HandlerFunc(s.handleCompletePost)))).Methods("POST")

	// Mock services
	mockAPI := api.PathPrefix("/mock").Subrouter()
	mockAPI.Use(s.requireMockMode)
	mockAPI.HandleFunc("/invoices", s.handleMockInvoices).Methods("GET")
	mockAPI.HandleFunc("/invoices/{hash}/settle", s.handleMockSettleInvoice).Methods("POST")
	mockAPI.HandleFunc("/verifications", s.handleMockVerifications).Methods("GET")
	mockAPI.HandleFunc("/verifications/{id}", s.handleMockVerification).Methods("GET")
	mockAPI.HandleFunc("/emails", s.handleMockEmails).Methods("GET")
	mockAPI.HandleFunc("/price", s.handleMockSetPrice).Methods("POST")
	mockAPI.HandleFunc("/node-balance", s.handleMockSetNodeBalance).Methods("POST")
	mockAPI.HandleFunc("/reset", s.handleMockReset).Methods("POST")

	// Health check
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
}

// Middleware

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic in handler",
					zap.Any("panic", rec),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
				)
				s.writeError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) currentUser(r *http.Request) *auth.User {
	token := auth.TokenFromRequest(r)
	if token == "" {
		return nil
	}
	user, err := s.verifier.Verify(token)
	if err != nil {
		s.logger.Debug("rejected access token", zap.Error(err))
		return nil
	}
	return user
}

func (s *Server) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := s.currentUser(r)
		if user == nil {
			s.writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
	})
}

// requireAdmin accepts the cron secret or a signed-in admin. Without a cron
// secret configured the check is off.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cron.Enabled() || s.cron.Matches(auth.BearerToken(r)) || s.cron.Matches(r.Header.Get("X-Cron-Secret")) {
			next.ServeHTTP(w, r)
			return
		}

		user := s.currentUser(r)
		if user == nil {
			s.writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if !auth.IsAdmin(user, s.admins) {
			s.logger.Warn("non-admin user on admin route", zap.String("user_id", user.ID), zap.String("path", r.URL.Path))
			s.writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), user)))
	})
}

func (s *Server) requireCron(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.cron.Authorize(r) {
			s.writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireMockMode(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.mocks == nil {
			s.writeError(w, http.StatusNotFound, "Mock mode is disabled")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) limit(scope string, cfg ratelimit.Config) func(http.Handler) http.Handler {
	return s.limiter.Middleware(scope, cfg, rateKey, func(r *http.Request) {
		route := metrics.RouteName(r)
		s.metrics.RateLimited(route)
		s.logger.Warn("rate limit exceeded", zap.String("route", route), zap.String("client", ratelimit.ClientIP(r)))
	})
}

// rateKey counts signed-in users by id and everyone else by client IP.
func rateKey(r *http.Request) string {
	if user := auth.UserFromContext(r.Context()); user != nil {
		return "user:" + user.ID
	}
	return "ip:" + ratelimit.ClientIP(r)
}

// Responses

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	s.writeJSONStatus(w, http.StatusOK, data)
}

func (s *Server) writeJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", zap.Int("status", status), zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSONStatus(w, status, APIResponse{Success: false, Error: message})
}

// writeUpstreamError reports a failed dependency with its message as details.
func (s *Server) writeUpstreamError(w http.ResponseWriter, message string, err error) {
	s.writeJSONStatus(w, http.StatusInternalServerError, APIResponse{
		Success: false,
		Error:   message,
		Details: err.Error(),
	})
}

func (s *Server) writeMissingFields(w http.ResponseWriter, fields []string) {
	s.writeJSONStatus(w, http.StatusBadRequest, APIResponse{
		Success: false,
		Error:   "Missing required fields: " + strings.Join(fields, ", "),
		Fields:  fields,
	})
}

// decodeJSON reads a JSON body into v, writing a 400 on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid JSON request body")
		return false
	}
	return true
}

// missing returns the names whose values are blank, in order.
func missing(fields ...string) []string {
	var out []string
	for i := 0; i+1 < len(fields); i += 2 {
		if strings.TrimSpace(fields[i+1]) == "" {
			out = append(out, fields[i])
		}
	}
	return out
}

// writeDBError maps store sentinels onto HTTP statuses.
func (s *Server) writeDBError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, db.ErrInsufficientBalance):
		s.writeError(w, http.StatusBadRequest, "Insufficient balance")
	case errors.Is(err, db.ErrInvalidAmount):
		s.writeError(w, http.StatusBadRequest, "Amount must be positive")
	case errors.Is(err, db.ErrPairingCodeTaken):
		s.writeError(w, http.StatusConflict, "Pairing code is already registered")
	case errors.Is(err, db.ErrNotPostOwner):
		s.writeError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, db.ErrPostNotOpen):
		s.writeError(w, http.StatusConflict, "Post is not open")
	default:
		s.logger.Error(op+" failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// goBackground runs fn after the response, logging rather than returning
// its failure.
func (s *Server) goBackground(name string, fn func() error) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic in background task", zap.String("task", name), zap.Any("panic", rec))
			}
		}()
		if err := fn(); err != nil {
			s.logger.Warn("background task failed", zap.String("task", name), zap.Error(err))
		}
	}()
}
