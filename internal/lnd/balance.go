package lnd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInternal marks an unexpected failure while aggregating balances, as
// opposed to a failed upstream call.
var ErrInternal = errors.New("internal error while aggregating node balance")

// BalanceSource is what AggregateBalance needs from a node.
type BalanceSource interface {
	ChannelBalance(ctx context.Context) (*ChannelBalance, error)
	WalletBalance(ctx context.Context) (*WalletBalance, error)
}

// BalanceSnapshot is the node's balance in satoshis. A nil field means the
// node reported a value that is not a number; a nil component makes the total
// nil as well.
type BalanceSnapshot struct {
	ChannelBalance *int64 `json:"channel_balance"`
	PendingBalance *int64 `json:"pending_balance"`
	OnchainBalance *int64 `json:"onchain_balance"`
	TotalBalance   *int64 `json:"total_balance"`
}

// ZeroSnapshot returns a snapshot with every field set to 0.
func ZeroSnapshot() BalanceSnapshot {
	return BalanceSnapshot{
		ChannelBalance: sats(0),
		PendingBalance: sats(0),
		OnchainBalance: sats(0),
		TotalBalance:   sats(0),
	}
}

// Value returns the field or 0 when it is nil.
func Value(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

// FetchError is a failed channel balance call. It aborts aggregation.
type FetchError struct {
	Endpoint string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s: %v", e.Endpoint, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// AggregateBalance sums channel, pending-open and confirmed on-chain balances.
//
// A channel balance failure is returned as *FetchError and the wallet balance
// is never requested. A wallet balance failure counts as 0 on-chain. Panics
// are recovered and reported as ErrInternal.
func AggregateBalance(ctx context.Context, src BalanceSource) (snap *BalanceSnapshot, err error) {
	defer func() {
		if r := recover(); r != nil {
			snap = nil
			err = fmt.Errorf("%w: %v", ErrInternal, r)
		}
	}()

	channel, err := src.ChannelBalance(ctx)
	if err != nil {
		return nil, &FetchError{Endpoint: "channel balance", Err: err}
	}
	if channel == nil {
		return nil, fmt.Errorf("%w: empty channel balance response", ErrInternal)
	}

	onchain := sats(0)
	if wallet, werr := src.WalletBalance(ctx); werr == nil && wallet != nil {
		onchain = ParseSats(wallet.ConfirmedBalance)
	}

	result := &BalanceSnapshot{
		ChannelBalance: ParseSats(channel.Balance),
		PendingBalance: ParseSats(channel.PendingOpenBalance),
		OnchainBalance: onchain,
	}
	if result.ChannelBalance != nil && result.PendingBalance != nil && result.OnchainBalance != nil {
		result.TotalBalance = sats(*result.ChannelBalance + *result.PendingBalance + *result.OnchainBalance)
	}
	return result, nil
}

// ParseSats reads the leading integer of s, ignoring leading whitespace and
// anything after the digits ("12abc" is 12, "1.5" is 1). It returns nil when
// s does not start with a number or the value does not fit in int64.
func ParseSats(s string) *int64 {
	s = strings.TrimLeft(s, " \t\n\r\f\v")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	digitsStart := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digitsStart {
		return nil
	}

	v, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return nil
	}
	return &v
}

func sats(v int64) *int64 { return &v }
