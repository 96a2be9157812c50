package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")
	// ErrInsufficientBalance indicates a debit larger than the profile balance
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrPairingCodeTaken indicates the pairing code already belongs to a device
	ErrPairingCodeTaken = errors.New("pairing code already in use")
	// ErrPostNotOpen indicates the post was already completed
	ErrPostNotOpen = errors.New("post is not open")
	// ErrNotPostOwner indicates someone other than the author tried to complete a post
	ErrNotPostOwner = errors.New("only the post owner can complete it")
	// ErrInvalidAmount indicates a non-positive amount where sats must move
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Supported drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

type Database struct {
	conn *sqlx.DB
	now  func() time.Time
}

// NewDatabase opens a SQLite database file and initializes tables
func NewDatabase(dbPath string) (*Database, error) {
	return Open(DriverSQLite, dbPath)
}

// Open connects with the given driver and initializes tables
func Open(driver, dsn string) (*Database, error) {
	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// SQLite allows one writer; a single connection avoids "database is locked".
		conn.SetMaxOpenConns(1)
	}

	db := &Database{conn: conn, now: time.Now}
	if err := db.initTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	return db, nil
}

// NewFromDB wraps an existing connection without touching the schema.
func NewFromDB(conn *sql.DB, driver string) *Database {
	return &Database{conn: sqlx.NewDb(conn, driver), now: time.Now}
}

// SetClock replaces time.Now for created/completed timestamps.
func (db *Database) SetClock(now func() time.Time) {
	db.now = now
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.conn.Close()
}

// Ping checks the connection.
func (db *Database) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *Database) timestamp() time.Time {
	return db.now().UTC()
}

// initTables creates all required tables
func (db *Database) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			username TEXT UNIQUE NOT NULL,
			balance BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		);`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			type TEXT NOT NULL,
			amount BIGINT NOT NULL,
			status TEXT NOT NULL,
			r_hash TEXT NOT NULL DEFAULT '',
			payment_request TEXT NOT NULL DEFAULT '',
			memo TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP NULL
		);`,

		`CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_r_hash ON transactions(r_hash);`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at);`,

		`CREATE TABLE IF NOT EXISTS devices (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			pairing_code TEXT UNIQUE NOT NULL,
			pet_name TEXT NOT NULL DEFAULT '',
			pet_type TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			last_seen_at TIMESTAMP NULL
		);`,

		`CREATE INDEX IF NOT EXISTS idx_devices_user_id ON devices(user_id);`,

		`CREATE TABLE IF NOT EXISTS connected_accounts (
			id TEXT PRIMARY KEY,
			primary_user_id TEXT NOT NULL,
			connected_user_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			UNIQUE(primary_user_id, connected_user_id)
		);`,

		`CREATE TABLE IF NOT EXISTS posts (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			reward BIGINT NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			fixed_by TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP NULL
		);`,

		`CREATE INDEX IF NOT EXISTS idx_posts_created_at ON posts(created_at);`,

		`CREATE TABLE IF NOT EXISTS bitcoin_prices (
			id TEXT PRIMARY KEY,
			price NUMERIC NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		);`,

		`CREATE INDEX IF NOT EXISTS idx_bitcoin_prices_created_at ON bitcoin_prices(created_at);`,
	}

	for _, query := range queries {
		if _, err := db.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query %q: %w", query, err)
		}
	}

	return nil
}

// withTx runs fn inside a transaction, rolling back on error.
func (db *Database) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// Profiles

// InsertProfile stores a profile, assigning an ID and creation time when unset
func (db *Database) InsertProfile(ctx context.Context, p *Profile) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = db.timestamp()
	}

	query := db.conn.Rebind(`INSERT INTO profiles (id, email, username, balance, created_at) VALUES (?, ?, ?, ?, ?)`)
	if _, err := db.conn.ExecContext(ctx, query, p.ID, p.Email, p.Username, p.Balance, p.CreatedAt); err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// GetProfile returns a profile by ID
func (db *Database) GetProfile(ctx context.Context, id string) (*Profile, error) {
	var p Profile
	query := db.conn.Rebind(`SELECT id, email, username, balance, created_at FROM profiles WHERE id = ?`)
	if err := db.conn.GetContext(ctx, &p, query, id); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// GetProfileByUsername returns a profile by username, case-insensitively
func (db *Database) GetProfileByUsername(ctx context.Context, username string) (*Profile, error) {
	var p Profile
	query := db.conn.Rebind(`SELECT id, email, username, balance, created_at FROM profiles WHERE LOWER(username) = ?`)
	if err := db.conn.GetContext(ctx, &p, query, strings.ToLower(username)); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// ListProfiles returns every profile ordered by creation time
func (db *Database) ListProfiles(ctx context.Context) ([]Profile, error) {
	profiles := []Profile{}
	query := `SELECT id, email, username, balance, created_at FROM profiles ORDER BY created_at, id`
	if err := db.conn.SelectContext(ctx, &profiles, query); err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	return profiles, nil
}

// SumProfileBalances totals every balance except excludeID's
func (db *Database) SumProfileBalances(ctx context.Context, excludeID string) (int64, error) {
	var total int64
	query := db.conn.Rebind(`SELECT COALESCE(SUM(balance), 0) FROM profiles WHERE id <> ?`)
	if err := db.conn.GetContext(ctx, &total, query, excludeID); err != nil {
		return 0, fmt.Errorf("failed to sum balances: %w", err)
	}
	return total, nil
}

// Transactions

const transactionColumns = `id, user_id, type, amount, status, r_hash, payment_request, memo, created_at, completed_at`

func insertTransaction(ctx context.Context, ext sqlx.ExtContext, tx *Transaction) error {
	query := ext.Rebind(`INSERT INTO transactions (` + transactionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := ext.ExecContext(ctx, query,
		tx.ID, tx.UserID, tx.Type, tx.Amount, tx.Status,
		tx.RHash, tx.PaymentRequest, tx.Memo, tx.CreatedAt, tx.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func (db *Database) newTransaction(userID, txType string, amount int64, status, memo string) *Transaction {
	now := db.timestamp()
	tx := &Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      txType,
		Amount:    amount,
		Status:    status,
		Memo:      memo,
		CreatedAt: now,
	}
	if status == TxStatusCompleted {
		tx.CompletedAt = &now
	}
	return tx
}

// InsertTransaction stores a ledger row as-is, without touching balances
func (db *Database) InsertTransaction(ctx context.Context, tx *Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = db.timestamp()
	}
	return insertTransaction(ctx, db.conn, tx)
}

// GetCompletedTransactions returns a user's completed transactions, oldest first
func (db *Database) GetCompletedTransactions(ctx context.Context, userID string) ([]Transaction, error) {
	txs := []Transaction{}
	query := db.conn.Rebind(`SELECT ` + transactionColumns + ` FROM transactions
		WHERE user_id = ? AND status = ? ORDER BY created_at, id`)
	if err := db.conn.SelectContext(ctx, &txs, query, userID, TxStatusCompleted); err != nil {
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	return txs, nil
}

// GetTransactionByRHash returns the deposit row for a payment hash
func (db *Database) GetTransactionByRHash(ctx context.Context, rHash string) (*Transaction, error) {
	var tx Transaction
	query := db.conn.Rebind(`SELECT ` + transactionColumns + ` FROM transactions WHERE r_hash = ? AND type = ?`)
	if err := db.conn.GetContext(ctx, &tx, query, strings.ToLower(rHash), TxTypeDeposit); err != nil {
		return nil, notFound(err)
	}
	return &tx, nil
}

// CreatePendingDeposit records an unpaid Lightning invoice for userID
func (db *Database) CreatePendingDeposit(ctx context.Context, userID string, amount int64, rHash, paymentRequest, memo string) (*Transaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	tx := db.newTransaction(userID, TxTypeDeposit, amount, TxStatusPending, memo)
	tx.RHash = strings.ToLower(rHash)
	tx.PaymentRequest = paymentRequest
	if err := insertTransaction(ctx, db.conn, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// CompleteDeposit marks a pending deposit completed and credits the
// profile in one transaction. credited is false when the deposit had
// already been completed.
func (db *Database) CompleteDeposit(ctx context.Context, rHash string) (deposit *Transaction, credited bool, err error) {
	err = db.withTx(ctx, func(tx *sqlx.Tx) error {
		var row Transaction
		query := tx.Rebind(`SELECT ` + transactionColumns + ` FROM transactions WHERE r_hash = ? AND type = ?`)
		if err := tx.GetContext(ctx, &row, query, strings.ToLower(rHash), TxTypeDeposit); err != nil {
			return notFound(err)
		}
		deposit = &row
		if row.Status == TxStatusCompleted {
			return nil
		}

		now := db.timestamp()
		update := tx.Rebind(`UPDATE transactions SET status = ?, completed_at = ? WHERE id = ? AND status = ?`)
		res, err := tx.ExecContext(ctx, update, TxStatusCompleted, now, row.ID, TxStatusPending)
		if err != nil {
			return fmt.Errorf("failed to complete deposit: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil
		}
		if err := adjustBalance(ctx, tx, row.UserID, row.Amount); err != nil {
			return err
		}

		row.Status = TxStatusCompleted
		row.CompletedAt = &now
		credited = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return deposit, credited, nil
}

func adjustBalance(ctx context.Context, tx *sqlx.Tx, userID string, delta int64) error {
	query := tx.Rebind(`UPDATE profiles SET balance = balance + ? WHERE id = ?`)
	res, err := tx.ExecContext(ctx, query, delta, userID)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func debitBalance(ctx context.Context, tx *sqlx.Tx, userID string, amount int64) error {
	query := tx.Rebind(`UPDATE profiles SET balance = balance - ? WHERE id = ? AND balance >= ?`)
	res, err := tx.ExecContext(ctx, query, amount, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var exists int
	check := tx.Rebind(`SELECT COUNT(*) FROM profiles WHERE id = ?`)
	if err := tx.GetContext(ctx, &exists, check, userID); err != nil {
		return fmt.Errorf("failed to check profile: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	return ErrInsufficientBalance
}

// Transfer moves amount sats between two profiles and writes a signed
// internal row for each side.
func (db *Database) Transfer(ctx context.Context, fromID, toID string, amount int64, memo string) (*TransferResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	result := &TransferResult{
		Sender:    db.newTransaction(fromID, TxTypeInternal, -amount, TxStatusCompleted, memo),
		Recipient: db.newTransaction(toID, TxTypeInternal, amount, TxStatusCompleted, memo),
	}

	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := debitBalance(ctx, tx, fromID, amount); err != nil {
			return err
		}
		if err := adjustBalance(ctx, tx, toID, amount); err != nil {
			return err
		}
		if err := insertTransaction(ctx, tx, result.Sender); err != nil {
			return err
		}
		return insertTransaction(ctx, tx, result.Recipient)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TransactionStatsSince counts and sums completed transactions of txType
// created at or after since
func (db *Database) TransactionStatsSince(ctx context.Context, txType string, since time.Time) (TransactionStats, error) {
	var stats TransactionStats
	query := db.conn.Rebind(`SELECT COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total
		FROM transactions WHERE type = ? AND status = ? AND created_at >= ?`)
	if err := db.conn.GetContext(ctx, &stats, query, txType, TxStatusCompleted, since.UTC()); err != nil {
		return TransactionStats{}, fmt.Errorf("failed to get %s stats: %w", txType, err)
	}
	return stats, nil
}

// ActiveUsersSince counts distinct users with a transaction at or after since
func (db *Database) ActiveUsersSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	query := db.conn.Rebind(`SELECT COUNT(DISTINCT user_id) FROM transactions WHERE created_at >= ?`)
	if err := db.conn.GetContext(ctx, &n, query, since.UTC()); err != nil {
		return 0, fmt.Errorf("failed to count active users: %w", err)
	}
	return n, nil
}

// Devices

const deviceColumns = `id, user_id, pairing_code, pet_name, pet_type, created_at, last_seen_at`

// RegisterDevice pairs a device with its user
func (db *Database) RegisterDevice(ctx context.Context, d *Device) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = db.timestamp()
	}

	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		var taken int
		check := tx.Rebind(`SELECT COUNT(*) FROM devices WHERE pairing_code = ?`)
		if err := tx.GetContext(ctx, &taken, check, d.PairingCode); err != nil {
			return fmt.Errorf("failed to check pairing code: %w", err)
		}
		if taken > 0 {
			return ErrPairingCodeTaken
		}

		query := tx.Rebind(`INSERT INTO devices (` + deviceColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if _, err := tx.ExecContext(ctx, query, d.ID, d.UserID, d.PairingCode, d.PetName, d.PetType, d.CreatedAt, d.LastSeenAt); err != nil {
			return fmt.Errorf("failed to insert device: %w", err)
		}
		return nil
	})
}

// ListDevices returns a user's devices, newest first
func (db *Database) ListDevices(ctx context.Context, userID string) ([]Device, error) {
	devices := []Device{}
	query := db.conn.Rebind(`SELECT ` + deviceColumns + ` FROM devices WHERE user_id = ? ORDER BY created_at DESC, id`)
	if err := db.conn.SelectContext(ctx, &devices, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	return devices, nil
}

// GetDeviceByPairingCode returns the device holding code
func (db *Database) GetDeviceByPairingCode(ctx context.Context, code string) (*Device, error) {
	var d Device
	query := db.conn.Rebind(`SELECT ` + deviceColumns + ` FROM devices WHERE pairing_code = ?`)
	if err := db.conn.GetContext(ctx, &d, query, code); err != nil {
		return nil, notFound(err)
	}
	return &d, nil
}

// TouchDevice records that a device polled at the current time
func (db *Database) TouchDevice(ctx context.Context, id string) (time.Time, error) {
	now := db.timestamp()
	query := db.conn.Rebind(`UPDATE devices SET last_seen_at = ? WHERE id = ?`)
	res, err := db.conn.ExecContext(ctx, query, now, id)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to touch device: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return time.Time{}, ErrNotFound
	}
	return now, nil
}

// DeleteDevice unpairs a device owned by userID
func (db *Database) DeleteDevice(ctx context.Context, id, userID string) error {
	query := db.conn.Rebind(`DELETE FROM devices WHERE id = ? AND user_id = ?`)
	res, err := db.conn.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Connected accounts

// ConnectAccount lets primaryID act as connectedID. Connecting twice is a no-op.
func (db *Database) ConnectAccount(ctx context.Context, primaryID, connectedID string) error {
	connected, err := db.IsConnected(ctx, primaryID, connectedID)
	if err != nil {
		return err
	}
	if connected {
		return nil
	}

	query := db.conn.Rebind(`INSERT INTO connected_accounts (id, primary_user_id, connected_user_id, created_at) VALUES (?, ?, ?, ?)`)
	if _, err := db.conn.ExecContext(ctx, query, uuid.NewString(), primaryID, connectedID, db.timestamp()); err != nil {
		return fmt.Errorf("failed to connect account: %w", err)
	}
	return nil
}

// IsConnected reports whether primaryID may act as connectedID
func (db *Database) IsConnected(ctx context.Context, primaryID, connectedID string) (bool, error) {
	var n int
	query := db.conn.Rebind(`SELECT COUNT(*) FROM connected_accounts WHERE primary_user_id = ? AND connected_user_id = ?`)
	if err := db.conn.GetContext(ctx, &n, query, primaryID, connectedID); err != nil {
		return false, fmt.Errorf("failed to check connected account: %w", err)
	}
	return n > 0, nil
}

// ListConnectedAccounts returns the accounts primaryID may act as
func (db *Database) ListConnectedAccounts(ctx context.Context, primaryID string) ([]ConnectedAccount, error) {
	accounts := []ConnectedAccount{}
	query := db.conn.Rebind(`SELECT id, primary_user_id, connected_user_id, created_at
		FROM connected_accounts WHERE primary_user_id = ? ORDER BY created_at`)
	if err := db.conn.SelectContext(ctx, &accounts, query, primaryID); err != nil {
		return nil, fmt.Errorf("failed to list connected accounts: %w", err)
	}
	return accounts, nil
}

// Posts

const postColumns = `id, user_id, title, description, reward, status, fixed_by, created_at, completed_at`

// CreatePost stores an open post and moves its reward out of the author's
// balance into escrow
func (db *Database) CreatePost(ctx context.Context, p *Post) error {
	if p.Reward < 0 {
		return ErrInvalidAmount
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = db.timestamp()
	p.Status = PostStatusOpen

	return db.withTx(ctx, func(tx *sqlx.Tx) error {
		if p.Reward > 0 {
			if err := debitBalance(ctx, tx, p.UserID, p.Reward); err != nil {
				return err
			}
			escrow := db.newTransaction(p.UserID, TxTypeInternal, -p.Reward, TxStatusCompleted, "Reward escrow: "+p.Title)
			if err := insertTransaction(ctx, tx, escrow); err != nil {
				return err
			}
		}

		query := tx.Rebind(`INSERT INTO posts (` + postColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if _, err := tx.ExecContext(ctx, query, p.ID, p.UserID, p.Title, p.Description, p.Reward, p.Status, p.FixedBy, p.CreatedAt, p.CompletedAt); err != nil {
			return fmt.Errorf("failed to insert post: %w", err)
		}
		return nil
	})
}

// GetPost returns a post by ID
func (db *Database) GetPost(ctx context.Context, id string) (*Post, error) {
	var p Post
	query := db.conn.Rebind(`SELECT ` + postColumns + ` FROM posts WHERE id = ?`)
	if err := db.conn.GetContext(ctx, &p, query, id); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}

// CompletePost closes an open post and pays its reward to fixerID
func (db *Database) CompletePost(ctx context.Context, postID, ownerID, fixerID string) (*Post, error) {
	var post Post
	err := db.withTx(ctx, func(tx *sqlx.Tx) error {
		query := tx.Rebind(`SELECT ` + postColumns + ` FROM posts WHERE id = ?`)
		if err := tx.GetContext(ctx, &post, query, postID); err != nil {
			return notFound(err)
		}
		if post.UserID != ownerID {
			return ErrNotPostOwner
		}
		if post.Status != PostStatusOpen {
			return ErrPostNotOpen
		}

		if post.Reward > 0 {
			if err := adjustBalance(ctx, tx, fixerID, post.Reward); err != nil {
				return err
			}
			payout := db.newTransaction(fixerID, TxTypeInternal, post.Reward, TxStatusCompleted, "Reward: "+post.Title)
			if err := insertTransaction(ctx, tx, payout); err != nil {
				return err
			}
		}

		now := db.timestamp()
		update := tx.Rebind(`UPDATE posts SET status = ?, fixed_by = ?, completed_at = ? WHERE id = ?`)
		if _, err := tx.ExecContext(ctx, update, PostStatusCompleted, fixerID, now, postID); err != nil {
			return fmt.Errorf("failed to complete post: %w", err)
		}
		post.Status = PostStatusCompleted
		post.FixedBy = fixerID
		post.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// PostsCreatedSince counts posts created at or after since
func (db *Database) PostsCreatedSince(ctx context.Context, since time.Time) (PostStats, error) {
	var stats PostStats
	query := db.conn.Rebind(`SELECT COUNT(*) AS count, COALESCE(SUM(reward), 0) AS rewards FROM posts WHERE created_at >= ?`)
	if err := db.conn.GetContext(ctx, &stats, query, since.UTC()); err != nil {
		return PostStats{}, fmt.Errorf("failed to get created post stats: %w", err)
	}
	return stats, nil
}

// PostsCompletedSince counts posts completed at or after since
func (db *Database) PostsCompletedSince(ctx context.Context, since time.Time) (PostStats, error) {
	var stats PostStats
	query := db.conn.Rebind(`SELECT COUNT(*) AS count, COALESCE(SUM(reward), 0) AS rewards
		FROM posts WHERE status = ? AND completed_at >= ?`)
	if err := db.conn.GetContext(ctx, &stats, query, PostStatusCompleted, since.UTC()); err != nil {
		return PostStats{}, fmt.Errorf("failed to get completed post stats: %w", err)
	}
	return stats, nil
}

// Bitcoin prices

// InsertBitcoinPrice stores a quote. Negative prices are stored as given.
func (db *Database) InsertBitcoinPrice(ctx context.Context, price decimal.Decimal, source string) (*BitcoinPrice, error) {
	p := &BitcoinPrice{
		ID:        uuid.NewString(),
		Price:     price,
		Source:    source,
		CreatedAt: db.timestamp(),
	}
	query := db.conn.Rebind(`INSERT INTO bitcoin_prices (id, price, source, created_at) VALUES (?, ?, ?, ?)`)
	if _, err := db.conn.ExecContext(ctx, query, p.ID, p.Price, p.Source, p.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert bitcoin price: %w", err)
	}
	return p, nil
}

// GetLatestBitcoinPrice returns the most recent quote
func (db *Database) GetLatestBitcoinPrice(ctx context.Context) (*BitcoinPrice, error) {
	var p BitcoinPrice
	query := `SELECT id, price, source, created_at FROM bitcoin_prices ORDER BY created_at DESC LIMIT 1`
	if err := db.conn.GetContext(ctx, &p, query); err != nil {
		return nil, notFound(err)
	}
	return &p, nil
}
