package main

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

// handleMockInvoices handles GET /api/mock/invoices
func (s *Server) handleMockInvoices(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{Success: true, Data: s.mocks.Invoices.ListInvoices()})
}

// handleMockSettleInvoice handles POST /api/mock/invoices/{hash}/settle.
// hash may be hex or base64.
func (s *Server) handleMockSettleInvoice(w http.ResponseWriter, r *http.Request) {
	inv, ok := s.mocks.Invoices.SettleInvoice(mux.Vars(r)["hash"])
	if !ok {
		s.writeError(w, http.StatusNotFound, "Invoice not found")
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: inv})
}

// handleMockVerifications handles GET /api/mock/verifications
func (s *Server) handleMockVerifications(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{Success: true, Data: s.mocks.Verifications.List()})
}

// handleMockVerification handles GET /api/mock/verifications/{id}
func (s *Server) handleMockVerification(w http.ResponseWriter, r *http.Request) {
	v, ok := s.mocks.Verifications.Get(mux.Vars(r)["id"])
	if !ok {
		s.writeError(w, http.StatusNotFound, "Verification not found")
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: v})
}

// handleMockEmails handles GET /api/mock/emails
func (s *Server) handleMockEmails(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{Success: true, Data: s.mocks.Mailer.List()})
}

type mockPriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

// handleMockSetPrice handles POST /api/mock/price
func (s *Server) handleMockSetPrice(w http.ResponseWriter, r *http.Request) {
	var req mockPriceRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	s.mocks.Prices.SetBasePrice(req.Price)
	s.writeJSON(w, APIResponse{Success: true, Data: map[string]string{"basePrice": s.mocks.Prices.BasePrice().String()}})
}

type mockNodeBalanceRequest struct {
	Channel     string `json:"channel_balance"`
	Pending     string `json:"pending_balance"`
	Onchain     string `json:"onchain_balance"`
	ChannelFail string `json:"channel_error"`
	WalletFail  string `json:"wallet_error"`
}

// handleMockSetNodeBalance handles POST /api/mock/node-balance. Values are
// raw strings so malformed node output can be simulated; the *_error fields
// make the matching endpoint fail.
func (s *Server) handleMockSetNodeBalance(w http.ResponseWriter, r *http.Request) {
	var req mockNodeBalanceRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	s.mocks.Node.SetBalances(req.Channel, req.Pending, req.Onchain)
	s.mocks.Node.FailChannelBalance(failure(req.ChannelFail))
	s.mocks.Node.FailWalletBalance(failure(req.WalletFail))
	s.writeJSON(w, APIResponse{Success: true})
}

func failure(msg string) error {
	if msg == "" {
		return nil
	}
	return errors.New(msg)
}

// handleMockReset handles POST /api/mock/reset
func (s *Server) handleMockReset(w http.ResponseWriter, r *http.Request) {
	s.mocks.Reset()
	s.writeJSON(w, APIResponse{Success: true})
}
