package mock

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	// DefaultBasePrice is the starting USD price of one bitcoin.
	DefaultBasePrice = decimal.NewFromInt(65000)
	// DefaultJitterPct bounds how far a quote strays from the base price.
	DefaultJitterPct = decimal.NewFromInt(2)
)

// PriceStore returns bitcoin quotes jittered around a base price.
type PriceStore struct {
	mu     sync.Mutex
	base   decimal.Decimal
	jitter decimal.Decimal
	rng    *rand.Rand
}

// NewPriceStore creates a store with DefaultBasePrice. A nil rng gets a
// randomly seeded one.
func NewPriceStore(rng *rand.Rand) *PriceStore {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &PriceStore{
		base:   DefaultBasePrice,
		jitter: DefaultJitterPct,
		rng:    rng,
	}
}

// Name identifies the source when prices are stored.
func (s *PriceStore) Name() string { return "mock" }

// CurrentPrice returns base * (1 ± jitter%), rounded to cents.
func (s *PriceStore) CurrentPrice(ctx context.Context) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// offset is uniform in [-1, 1)
	offset := decimal.NewFromFloat(s.rng.Float64()*2 - 1)
	factor := decimal.NewFromInt(1).Add(offset.Mul(s.jitter).Div(decimal.NewFromInt(100)))
	return s.base.Mul(factor).Round(2), nil
}

// SetBasePrice moves the center of the quotes. Negative values are accepted.
func (s *PriceStore) SetBasePrice(price decimal.Decimal) {
	s.mu.Lock()
	s.base = price
	s.mu.Unlock()
}

// BasePrice returns the current center.
func (s *PriceStore) BasePrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.base
}

// SetJitter changes the jitter bound, in percent.
func (s *PriceStore) SetJitter(pct decimal.Decimal) {
	s.mu.Lock()
	s.jitter = pct
	s.mu.Unlock()
}

// Reset restores the defaults.
func (s *PriceStore) Reset() {
	s.mu.Lock()
	s.base = DefaultBasePrice
	s.jitter = DefaultJitterPct
	s.mu.Unlock()
}
