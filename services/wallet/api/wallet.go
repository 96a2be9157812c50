package main

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/brewgator/fixpet/internal/auth"
	"github.com/brewgator/fixpet/internal/db"
	"github.com/brewgator/fixpet/internal/utils"
)

// handleWalletBalance handles GET /api/wallet/balance
func (s *Server) handleWalletBalance(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	profile, err := s.db.GetProfile(r.Context(), user.ID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		s.writeDBError(w, "get profile", err)
		return
	}

	s.writeJSON(w, map[string]interface{}{
		"success":   true,
		"balance":   profile.Balance,
		"formatted": utils.FormatSats(profile.Balance),
		"btc":       utils.FormatBTC(profile.Balance),
	})
}

type depositRequest struct {
	Amount int64  `json:"amount"`
	Memo   string `json:"memo"`
}

// handleCreateDeposit handles POST /api/wallet/deposit. It creates a node
// invoice and records a pending deposit against it.
func (s *Server) handleCreateDeposit(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var req depositRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		s.writeError(w, http.StatusBadRequest, "Amount must be positive")
		return
	}
	if s.node == nil {
		s.writeError(w, http.StatusInternalServerError, "Lightning node not configured")
		return
	}
	if req.Memo == "" {
		req.Memo = "FixPet deposit"
	}

	invoice, err := s.node.AddInvoice(r.Context(), req.Amount, req.Memo)
	if err != nil {
		s.logger.Error("failed to create invoice", zap.String("user_id", user.ID), zap.Error(err))
		s.writeUpstreamError(w, "Failed to create invoice", err)
		return
	}
	rHash, err := invoice.HexHash()
	if err != nil {
		s.writeUpstreamError(w, "Failed to create invoice", err)
		return
	}

	deposit, err := s.db.CreatePendingDeposit(r.Context(), user.ID, req.Amount, rHash, invoice.PaymentRequest, req.Memo)
	if err != nil {
		s.writeDBError(w, "create deposit", err)
		return
	}

	s.writeJSONStatus(w, http.StatusCreated, map[string]interface{}{
		"success":        true,
		"rHash":          deposit.RHash,
		"paymentRequest": deposit.PaymentRequest,
		"amount":         deposit.Amount,
		"status":         deposit.Status,
	})
}

// handleDepositStatus handles GET /api/wallet/deposit/{rHash}. A settled
// invoice completes the deposit; the balance is credited only once.
func (s *Server) handleDepositStatus(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())
	rHash := strings.ToLower(mux.Vars(r)["rHash"])

	deposit, err := s.db.GetTransactionByRHash(r.Context(), rHash)
	if err != nil || deposit.UserID != user.ID {
		if err == nil || errors.Is(err, db.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Deposit not found")
			return
		}
		s.writeDBError(w, "get deposit", err)
		return
	}

	credited := false
	if deposit.Status == db.TxStatusPending {
		if s.node == nil {
			s.writeError(w, http.StatusInternalServerError, "Lightning node not configured")
			return
		}
		invoice, err := s.node.LookupInvoice(r.Context(), rHash)
		if err != nil {
			s.logger.Error("failed to look up invoice", zap.String("r_hash", rHash), zap.Error(err))
			s.writeUpstreamError(w, "Failed to check invoice", err)
			return
		}
		if invoice.Settled || invoice.State == "SETTLED" {
			deposit, credited, err = s.db.CompleteDeposit(r.Context(), rHash)
			if err != nil {
				s.writeDBError(w, "complete deposit", err)
				return
			}
			if credited {
				s.logger.Info("deposit credited", zap.String("user_id", user.ID), zap.Int64("amount", deposit.Amount))
			}
		}
	}

	s.writeJSON(w, map[string]interface{}{
		"success":  true,
		"status":   deposit.Status,
		"settled":  deposit.Status == db.TxStatusCompleted,
		"credited": credited,
		"amount":   deposit.Amount,
	})
}

type transferRequest struct {
	ToUsername string `json:"toUsername"`
	Amount     int64  `json:"amount"`
	Memo       string `json:"memo"`
}

// handleTransfer handles POST /api/wallet/transfer. Both parties are
// emailed after the response.
func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	user := auth.UserFromContext(r.Context())

	var req transferRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if fields := missing("toUsername", req.ToUsername); fields != nil {
		s.writeMissingFields(w, fields)
		return
	}
	if req.Amount <= 0 {
		s.writeError(w, http.StatusBadRequest, "Amount must be positive")
		return
	}

	recipient, err := s.db.GetProfileByUsername(r.Context(), strings.TrimSpace(req.ToUsername))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "Recipient not found")
			return
		}
		s.writeDBError(w, "get recipient", err)
		return
	}
	if recipient.ID == user.ID {
		s.writeError(w, http.StatusBadRequest, "Cannot transfer to yourself")
		return
	}

	result, err := s.db.Transfer(r.Context(), user.ID, recipient.ID, req.Amount, req.Memo)
	if err != nil {
		s.writeDBError(w, "transfer", err)
		return
	}

	s.notifyTransfer(user.ID, recipient.ID, req.Amount)

	s.writeJSON(w, map[string]interface{}{
		"success":  true,
		"transfer": result,
	})
}
