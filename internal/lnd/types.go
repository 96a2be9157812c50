package lnd

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Node is the subset of the node REST API the service depends on. The REST
// client and the in-memory mock node both implement it.
type Node interface {
	GetInfo(ctx context.Context) (*NodeInfo, error)
	ChannelBalance(ctx context.Context) (*ChannelBalance, error)
	WalletBalance(ctx context.Context) (*WalletBalance, error)
	AddInvoice(ctx context.Context, value int64, memo string) (*AddInvoiceResponse, error)
	LookupInvoice(ctx context.Context, rHashHex string) (*Invoice, error)
}

// NodeInfo represents the response from /v1/getinfo
type NodeInfo struct {
	IdentityPubkey    string `json:"identity_pubkey"`
	Alias             string `json:"alias"`
	NumActiveChannels int    `json:"num_active_channels"`
	BlockHeight       int64  `json:"block_height"`
	SyncedToChain     bool   `json:"synced_to_chain"`
}

// ChannelBalance represents the response from /v1/balance/channels.
// Amounts are kept as the raw strings the node sends.
type ChannelBalance struct {
	Balance            string `json:"balance"`
	PendingOpenBalance string `json:"pending_open_balance"`
}

// WalletBalance represents the response from /v1/balance/blockchain
type WalletBalance struct {
	TotalBalance       string `json:"total_balance"`
	ConfirmedBalance   string `json:"confirmed_balance"`
	UnconfirmedBalance string `json:"unconfirmed_balance"`
}

// AddInvoiceResponse represents the response from POST /v1/invoices.
// RHash is base64 encoded, as the REST gateway returns bytes fields.
type AddInvoiceResponse struct {
	RHash          string `json:"r_hash"`
	PaymentRequest string `json:"payment_request"`
	AddIndex       string `json:"add_index"`
}

// HexHash decodes RHash into the hex form LookupInvoice takes.
func (r *AddInvoiceResponse) HexHash() (string, error) {
	raw, err := base64.StdEncoding.DecodeString(r.RHash)
	if err != nil {
		if raw, err = base64.URLEncoding.DecodeString(r.RHash); err != nil {
			return "", fmt.Errorf("invalid r_hash %q: %w", r.RHash, err)
		}
	}
	return hex.EncodeToString(raw), nil
}

// Invoice represents the response from /v1/invoice/{r_hash_str}
type Invoice struct {
	Memo           string `json:"memo"`
	RHash          string `json:"r_hash"`
	Value          string `json:"value"`
	Settled        bool   `json:"settled"`
	State          string `json:"state"`
	CreationDate   string `json:"creation_date"`
	SettleDate     string `json:"settle_date"`
	PaymentRequest string `json:"payment_request"`
	AmtPaidSat     string `json:"amt_paid_sat"`
}
