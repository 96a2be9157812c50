package db

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types
const (
	TxTypeDeposit    = "deposit"
	TxTypeWithdrawal = "withdrawal"
	TxTypeInternal   = "internal"
)

// Transaction statuses
const (
	TxStatusPending   = "pending"
	TxStatusCompleted = "completed"
	TxStatusFailed    = "failed"
)

// Post statuses
const (
	PostStatusOpen      = "open"
	PostStatusCompleted = "completed"
)

// Profile is a wallet holder. Balance is in satoshis.
type Profile struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Username  string    `json:"username" db:"username"`
	Balance   int64     `json:"balance" db:"balance"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Transaction is a ledger row. Deposit and withdrawal amounts are stored
// positive; internal amounts carry their sign.
type Transaction struct {
	ID             string     `json:"id" db:"id"`
	UserID         string     `json:"user_id" db:"user_id"`
	Type           string     `json:"type" db:"type"`
	Amount         int64      `json:"amount" db:"amount"`
	Status         string     `json:"status" db:"status"`
	RHash          string     `json:"r_hash,omitempty" db:"r_hash"`
	PaymentRequest string     `json:"payment_request,omitempty" db:"payment_request"`
	Memo           string     `json:"memo" db:"memo"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// SignedAmount is the transaction's effect on the holder's balance.
func (t Transaction) SignedAmount() int64 {
	if t.Type == TxTypeWithdrawal {
		return -t.Amount
	}
	return t.Amount
}

// Device is a pet device paired with a user.
type Device struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	PairingCode string     `json:"pairing_code" db:"pairing_code"`
	PetName     string     `json:"pet_name" db:"pet_name"`
	PetType     string     `json:"pet_type" db:"pet_type"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	LastSeenAt  *time.Time `json:"last_seen_at,omitempty" db:"last_seen_at"`
}

// ConnectedAccount lets PrimaryUserID act on behalf of ConnectedUserID.
type ConnectedAccount struct {
	ID              string    `json:"id" db:"id"`
	PrimaryUserID   string    `json:"primary_user_id" db:"primary_user_id"`
	ConnectedUserID string    `json:"connected_user_id" db:"connected_user_id"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Post is a reported problem with a sats reward held in escrow.
type Post struct {
	ID          string     `json:"id" db:"id"`
	UserID      string     `json:"user_id" db:"user_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Reward      int64      `json:"reward" db:"reward"`
	Status      string     `json:"status" db:"status"`
	FixedBy     string     `json:"fixed_by,omitempty" db:"fixed_by"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// BitcoinPrice is a stored USD quote.
type BitcoinPrice struct {
	ID        string          `json:"id" db:"id"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Source    string          `json:"source" db:"source"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// TransactionStats aggregates completed transactions of one type.
type TransactionStats struct {
	Count int64 `json:"count" db:"count"`
	Total int64 `json:"total" db:"total"`
}

// PostStats aggregates posts and their rewards.
type PostStats struct {
	Count   int64 `json:"count" db:"count"`
	Rewards int64 `json:"rewards" db:"rewards"`
}

// TransferResult is both ledger rows written by Transfer.
type TransferResult struct {
	Sender    *Transaction `json:"sender"`
	Recipient *Transaction `json:"recipient"`
}
