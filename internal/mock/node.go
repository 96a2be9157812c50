package mock

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/brewgator/fixpet/internal/lnd"
)

// Node is an in-memory lnd.Node. Invoices live in an InvoiceStore; balances
// are whatever was last set, as raw strings so malformed values can be
// simulated.
type Node struct {
	invoices *InvoiceStore
	pubkey   string

	mu         sync.Mutex
	channel    lnd.ChannelBalance
	wallet     lnd.WalletBalance
	channelErr error
	walletErr  error
}

// NewNode creates a node with a fresh identity key and a plausible balance.
func NewNode(invoices *InvoiceStore) (*Node, error) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate node key: %w", err)
	}
	n := &Node{
		invoices: invoices,
		pubkey:   hex.EncodeToString(key.PubKey().SerializeCompressed()),
	}
	n.Reset()
	return n, nil
}

// Reset restores the default balances and clears injected failures.
func (n *Node) Reset() {
	n.SetBalances("1500000", "0", "500000")
	n.FailChannelBalance(nil)
	n.FailWalletBalance(nil)
}

// Name identifies the service in health reports.
func (n *Node) Name() string { return "lightning" }

// Ping always succeeds.
func (n *Node) Ping(ctx context.Context) error { return nil }

// SetBalances replaces the reported balances.
func (n *Node) SetBalances(channel, pending, onchain string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channel = lnd.ChannelBalance{Balance: channel, PendingOpenBalance: pending}
	n.wallet = lnd.WalletBalance{ConfirmedBalance: onchain, UnconfirmedBalance: "0", TotalBalance: onchain}
}

// FailChannelBalance makes ChannelBalance return err (nil clears it).
func (n *Node) FailChannelBalance(err error) {
	n.mu.Lock()
	n.channelErr = err
	n.mu.Unlock()
}

// FailWalletBalance makes WalletBalance return err (nil clears it).
func (n *Node) FailWalletBalance(err error) {
	n.mu.Lock()
	n.walletErr = err
	n.mu.Unlock()
}

// GetInfo implements lnd.Node.
func (n *Node) GetInfo(ctx context.Context) (*lnd.NodeInfo, error) {
	return &lnd.NodeInfo{
		IdentityPubkey:    n.pubkey,
		Alias:             "fixpet-mock",
		NumActiveChannels: 3,
		SyncedToChain:     true,
	}, nil
}

// ChannelBalance implements lnd.Node.
func (n *Node) ChannelBalance(ctx context.Context) (*lnd.ChannelBalance, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.channelErr != nil {
		return nil, n.channelErr
	}
	out := n.channel
	return &out, nil
}

// WalletBalance implements lnd.Node.
func (n *Node) WalletBalance(ctx context.Context) (*lnd.WalletBalance, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.walletErr != nil {
		return nil, n.walletErr
	}
	out := n.wallet
	return &out, nil
}

// AddInvoice implements lnd.Node.
func (n *Node) AddInvoice(ctx context.Context, value int64, memo string) (*lnd.AddInvoiceResponse, error) {
	inv, err := n.invoices.CreateInvoice(value, memo)
	if err != nil {
		return nil, err
	}
	return &lnd.AddInvoiceResponse{
		RHash:          inv.RHashBase64,
		PaymentRequest: inv.PaymentRequest,
		AddIndex:       strconv.FormatUint(inv.AddIndex, 10),
	}, nil
}

// LookupInvoice implements lnd.Node.
func (n *Node) LookupInvoice(ctx context.Context, rHashHex string) (*lnd.Invoice, error) {
	inv, ok := n.invoices.GetInvoice(rHashHex)
	if !ok {
		return nil, &lnd.APIError{StatusCode: 404, Body: `{"message":"unable to locate invoice"}`}
	}

	out := &lnd.Invoice{
		Memo:           inv.Memo,
		RHash:          inv.RHashBase64,
		Value:          strconv.FormatInt(inv.Value, 10),
		Settled:        inv.Settled,
		State:          "OPEN",
		CreationDate:   strconv.FormatInt(inv.CreatedAt.Unix(), 10),
		PaymentRequest: inv.PaymentRequest,
		AmtPaidSat:     "0",
	}
	if inv.Settled {
		out.State = "SETTLED"
		out.AmtPaidSat = out.Value
		if inv.SettledAt != nil {
			out.SettleDate = strconv.FormatInt(inv.SettledAt.Unix(), 10)
		}
	}
	return out, nil
}
