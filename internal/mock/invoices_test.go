package mock

import (
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, autoSettle time.Duration) (*InvoiceStore, *ManualScheduler) {
	t.Helper()
	sched := NewManualScheduler(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	store := NewInvoiceStore(
		WithAutoSettle(autoSettle),
		WithScheduler(sched),
		WithInvoiceClock(sched.Now),
	)
	return store, sched
}

func TestCreateInvoice(t *testing.T) {
	store, _ := newTestStore(t, 0)

	inv, err := store.CreateInvoice(2500, "coffee")
	require.NoError(t, err)

	assert.Len(t, inv.RHash, 64)
	assert.Len(t, inv.Preimage, 64)
	assert.Equal(t, int64(2500), inv.Value)
	assert.Equal(t, "coffee", inv.Memo)
	assert.False(t, inv.Settled)
	assert.Nil(t, inv.SettledAt)
	assert.Equal(t, uint64(1), inv.AddIndex)
	assert.True(t, strings.HasPrefix(inv.PaymentRequest, "lnbc25000n1"), inv.PaymentRequest)

	b64, err := HexToBase64(inv.RHash)
	require.NoError(t, err)
	assert.Equal(t, inv.RHashBase64, b64)

	second, err := store.CreateInvoice(1, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.AddIndex)
	assert.NotEqual(t, inv.RHash, second.RHash)
}

func TestCreateInvoiceTestnetPrefix(t *testing.T) {
	store := NewInvoiceStore(WithNetwork(&chaincfg.TestNet3Params))
	inv, err := store.CreateInvoice(0, "any amount")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(inv.PaymentRequest, "lntb1"), inv.PaymentRequest)
}

func TestGetInvoiceByHexAndBase64(t *testing.T) {
	store, _ := newTestStore(t, 0)
	inv, err := store.CreateInvoice(100, "lookup")
	require.NoError(t, err)

	byHex, ok := store.GetInvoice(inv.RHash)
	require.True(t, ok)
	assert.Equal(t, inv.RHash, byHex.RHash)

	byUpperHex, ok := store.GetInvoice(strings.ToUpper(inv.RHash))
	require.True(t, ok)
	assert.Equal(t, inv.RHash, byUpperHex.RHash)

	byB64, ok := store.GetInvoice(inv.RHashBase64)
	require.True(t, ok)
	assert.Equal(t, inv.RHash, byB64.RHash)

	_, ok = store.GetInvoice("not-a-hash!")
	assert.False(t, ok)
	_, ok = store.GetInvoice(strings.Repeat("0", 64))
	assert.False(t, ok)
}

func TestSettleInvoiceIsIdempotent(t *testing.T) {
	store, sched := newTestStore(t, 0)
	inv, err := store.CreateInvoice(100, "")
	require.NoError(t, err)

	first, ok := store.SettleInvoice(inv.RHash)
	require.True(t, ok)
	require.True(t, first.Settled)
	require.NotNil(t, first.SettledAt)

	sched.Advance(time.Minute)
	second, ok := store.SettleInvoice(inv.RHashBase64)
	require.True(t, ok)
	assert.Equal(t, *first.SettledAt, *second.SettledAt)

	_, ok = store.SettleInvoice(strings.Repeat("a", 64))
	assert.False(t, ok)
}

func TestAutoSettle(t *testing.T) {
	store, sched := newTestStore(t, 5*time.Second)
	inv, err := store.CreateInvoice(100, "")
	require.NoError(t, err)
	assert.Equal(t, 1, sched.Pending())

	assert.Equal(t, 0, sched.Advance(4*time.Second))
	got, _ := store.GetInvoice(inv.RHash)
	assert.False(t, got.Settled)

	assert.Equal(t, 1, sched.Advance(time.Second))
	got, _ = store.GetInvoice(inv.RHash)
	assert.True(t, got.Settled)
	assert.Equal(t, sched.Now(), *got.SettledAt)
}

func TestManualSettleCancelsAutoSettle(t *testing.T) {
	store, sched := newTestStore(t, 5*time.Second)
	inv, err := store.CreateInvoice(100, "")
	require.NoError(t, err)

	_, ok := store.SettleInvoice(inv.RHash)
	require.True(t, ok)
	assert.Equal(t, 0, sched.Pending())
}

func TestResetCancelsPending(t *testing.T) {
	store, sched := newTestStore(t, 5*time.Second)
	for i := 0; i < 3; i++ {
		_, err := store.CreateInvoice(int64(i+1), "")
		require.NoError(t, err)
	}
	assert.Len(t, store.ListInvoices(), 3)

	store.Reset()
	assert.Empty(t, store.ListInvoices())
	assert.Equal(t, 0, sched.Pending())

	inv, err := store.CreateInvoice(1, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), inv.AddIndex)
}

func TestListInvoicesOrder(t *testing.T) {
	store, _ := newTestStore(t, 0)
	var hashes []string
	for i := 0; i < 5; i++ {
		inv, err := store.CreateInvoice(int64(i), "")
		require.NoError(t, err)
		hashes = append(hashes, inv.RHash)
	}

	list := store.ListInvoices()
	require.Len(t, list, 5)
	for i, inv := range list {
		assert.Equal(t, hashes[i], inv.RHash)
	}
}

func TestBase64ToHexURLEncoding(t *testing.T) {
	raw := strings.Repeat("ff", 32)
	std, err := HexToBase64(raw)
	require.NoError(t, err)
	url := strings.NewReplacer("+", "-", "/", "_").Replace(std)

	h, err := Base64ToHex(url)
	require.NoError(t, err)
	assert.Equal(t, raw, h)

	_, err = Base64ToHex("%%%")
	assert.Error(t, err)
}
