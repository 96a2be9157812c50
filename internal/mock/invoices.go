package mock

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/chaincfg"
)

// Invoice is a fake Lightning invoice.
type Invoice struct {
	RHash          string     `json:"r_hash"`
	RHashBase64    string     `json:"r_hash_base64"`
	PaymentRequest string     `json:"payment_request"`
	Value          int64      `json:"value"`
	Memo           string     `json:"memo"`
	CreatedAt      time.Time  `json:"created_at"`
	Settled        bool       `json:"settled"`
	SettledAt      *time.Time `json:"settled_at,omitempty"`
	Preimage       string     `json:"preimage"`
	AddIndex       uint64     `json:"add_index"`
}

// InvoiceStore keeps fake invoices keyed by hex payment hash. Invoices are
// only removed by Reset.
type InvoiceStore struct {
	mu        sync.RWMutex
	invoices  map[string]*Invoice
	nextIndex uint64

	autoSettle time.Duration
	scheduler  Scheduler
	now        func() time.Time
	network    *chaincfg.Params
}

// InvoiceOption configures an InvoiceStore.
type InvoiceOption func(*InvoiceStore)

// WithAutoSettle settles each new invoice after d. Zero disables it.
func WithAutoSettle(d time.Duration) InvoiceOption {
	return func(s *InvoiceStore) { s.autoSettle = d }
}

// WithScheduler replaces the wall-clock scheduler used for auto-settlement.
func WithScheduler(sched Scheduler) InvoiceOption {
	return func(s *InvoiceStore) { s.scheduler = sched }
}

// WithInvoiceClock replaces time.Now.
func WithInvoiceClock(now func() time.Time) InvoiceOption {
	return func(s *InvoiceStore) { s.now = now }
}

// WithNetwork selects the chain whose invoice prefix is used (lnbc, lntb, ...).
func WithNetwork(params *chaincfg.Params) InvoiceOption {
	return func(s *InvoiceStore) { s.network = params }
}

// NewInvoiceStore creates an empty store on mainnet without auto-settlement.
func NewInvoiceStore(opts ...InvoiceOption) *InvoiceStore {
	s := &InvoiceStore{
		invoices: make(map[string]*Invoice),
		now:      time.Now,
		network:  &chaincfg.MainNetParams,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.scheduler == nil {
		s.scheduler = NewTimerScheduler()
	}
	return s
}

// CreateInvoice stores a new unsettled invoice for value satoshis.
func (s *InvoiceStore) CreateInvoice(value int64, memo string) (*Invoice, error) {
	preimage := make([]byte, 32)
	if _, err := rand.Read(preimage); err != nil {
		return nil, fmt.Errorf("failed to generate preimage: %w", err)
	}
	hash := sha256.Sum256(preimage)
	now := s.now().UTC()

	payReq, err := encodePaymentRequest(s.network, value, now, hash[:])
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.nextIndex++
	inv := &Invoice{
		RHash:          hex.EncodeToString(hash[:]),
		RHashBase64:    base64.StdEncoding.EncodeToString(hash[:]),
		PaymentRequest: payReq,
		Value:          value,
		Memo:           memo,
		CreatedAt:      now,
		Preimage:       hex.EncodeToString(preimage),
		AddIndex:       s.nextIndex,
	}
	s.invoices[inv.RHash] = inv
	out := *inv
	s.mu.Unlock()

	if s.autoSettle > 0 {
		rHash := inv.RHash
		s.scheduler.Schedule(rHash, s.autoSettle, func() {
			s.SettleInvoice(rHash)
		})
	}
	return &out, nil
}

// GetInvoice looks an invoice up by hex or base64 payment hash.
func (s *InvoiceStore) GetInvoice(hash string) (*Invoice, bool) {
	key, ok := normalizeHash(hash)
	if !ok {
		return nil, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.invoices[key]
	if !ok {
		return nil, false
	}
	out := *inv
	return &out, true
}

// SettleInvoice marks an invoice paid. Settling twice keeps the first
// settlement time. It reports false for unknown invoices.
func (s *InvoiceStore) SettleInvoice(hash string) (*Invoice, bool) {
	key, ok := normalizeHash(hash)
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	inv, ok := s.invoices[key]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	if !inv.Settled {
		at := s.now().UTC()
		inv.Settled = true
		inv.SettledAt = &at
	}
	out := *inv
	s.mu.Unlock()

	s.scheduler.Cancel(key)
	return &out, true
}

// ListInvoices returns every invoice in creation order.
func (s *InvoiceStore) ListInvoices() []Invoice {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Invoice, 0, len(s.invoices))
	for _, inv := range s.invoices {
		out = append(out, *inv)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddIndex < out[j].AddIndex })
	return out
}

// Reset drops every invoice and cancels pending auto-settlements.
func (s *InvoiceStore) Reset() {
	s.mu.Lock()
	keys := make([]string, 0, len(s.invoices))
	for k := range s.invoices {
		keys = append(keys, k)
	}
	s.invoices = make(map[string]*Invoice)
	s.nextIndex = 0
	s.mu.Unlock()

	for _, k := range keys {
		s.scheduler.Cancel(k)
	}
}

// HexToBase64 converts a hex payment hash to standard base64.
func HexToBase64(h string) (string, error) {
	raw, err := hex.DecodeString(h)
	if err != nil {
		return "", fmt.Errorf("invalid hex: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Base64ToHex converts a standard or URL-safe base64 payment hash to hex.
func Base64ToHex(b string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(b)
	if err != nil {
		raw, err = base64.URLEncoding.DecodeString(b)
		if err != nil {
			return "", fmt.Errorf("invalid base64: %w", err)
		}
	}
	return hex.EncodeToString(raw), nil
}

func normalizeHash(hash string) (string, bool) {
	if len(hash) == 64 {
		if _, err := hex.DecodeString(hash); err == nil {
			return strings.ToLower(hash), true
		}
	}
	h, err := Base64ToHex(hash)
	if err != nil {
		return "", false
	}
	return h, true
}

// encodePaymentRequest builds a bech32 string shaped like a BOLT11 invoice:
// amount in the prefix, a 35-bit timestamp and the payment hash tagged field.
// It carries no signature and will not decode as a real invoice.
func encodePaymentRequest(params *chaincfg.Params, value int64, ts time.Time, hash []byte) (string, error) {
	hrp := "ln" + params.Bech32HRPSegwit
	if value > 0 {
		// One satoshi is ten nano-bitcoin.
		hrp += strconv.FormatInt(value*10, 10) + "n"
	}

	data := make([]byte, 0, 7+3+52)
	unix := uint64(ts.Unix())
	for i := 6; i >= 0; i-- {
		data = append(data, byte((unix>>(uint(i)*5))&31))
	}

	hashGroups, err := bech32.ConvertBits(hash, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to convert payment hash: %w", err)
	}
	// Tag p (1) with a 10-bit length of 52 groups.
	data = append(data, 1, byte(len(hashGroups)>>5), byte(len(hashGroups)&31))
	data = append(data, hashGroups...)

	encoded, err := bech32.Encode(hrp, data)
	if err != nil {
		return "", fmt.Errorf("failed to encode payment request: %w", err)
	}
	return encoded, nil
}
