package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"

	"github.com/brewgator/fixpet/pkg/testutils"
)

func createTestDB(t *testing.T) *Database {
	t.Helper()
	dbPath := testutils.CreateTestDBPath(t)
	db, err := NewDatabase(dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedProfile(t *testing.T, db *Database, username string, balance int64) *Profile {
	t.Helper()
	p := &Profile{Email: username + "@example.com", Username: username, Balance: balance}
	if err := db.InsertProfile(context.Background(), p); err != nil {
		t.Fatalf("Failed to insert profile %s: %v", username, err)
	}
	return p
}

func TestNewDatabase(t *testing.T) {
	db := createTestDB(t)

	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Expected database to be reachable: %v", err)
	}
}

func TestProfiles(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()

	alice := seedProfile(t, db, "alice", 1000)
	bob := seedProfile(t, db, "Bob", 250)
	system := seedProfile(t, db, "system", 1_000_000)

	got, err := db.GetProfile(ctx, alice.ID)
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, got.Username, "alice")
	testutils.AssertEqual(t, got.Balance, int64(1000))

	byName, err := db.GetProfileByUsername(ctx, "bob")
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, byName.ID, bob.ID)

	_, err = db.GetProfile(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	profiles, err := db.ListProfiles(ctx)
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, len(profiles), 3)

	total, err := db.SumProfileBalances(ctx, system.ID)
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, total, int64(1250))
}

func TestDepositLifecycle(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()
	alice := seedProfile(t, db, "alice", 0)

	rHash := "AB" + strings.Repeat("0", 62)
	dep, err := db.CreatePendingDeposit(ctx, alice.ID, 5000, rHash, "lnbc50u1...", "top up")
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, dep.Status, TxStatusPending)

	found, err := db.GetTransactionByRHash(ctx, rHash)
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, found.ID, dep.ID)

	completed, credited, err := db.CompleteDeposit(ctx, rHash)
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, credited, true)
	testutils.AssertEqual(t, completed.Status, TxStatusCompleted)

	// A second completion must not credit again.
	_, credited, err = db.CompleteDeposit(ctx, rHash)
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, credited, false)

	profile, err := db.GetProfile(ctx, alice.ID)
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, profile.Balance, int64(5000))

	txs, err := db.GetCompletedTransactions(ctx, alice.ID)
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, len(txs), 1)
	testutils.AssertEqual(t, txs[0].SignedAmount(), int64(5000))

	_, _, err = db.CompleteDeposit(ctx, "ff")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	_, err = db.CreatePendingDeposit(ctx, alice.ID, 0, "00", "", "")
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("Expected ErrInvalidAmount, got %v", err)
	}
}

func TestTransfer(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()
	alice := seedProfile(t, db, "alice", 1000)
	bob := seedProfile(t, db, "bob", 0)

	result, err := db.Transfer(ctx, alice.ID, bob.ID, 400, "lunch")
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, result.Sender.Amount, int64(-400))
	testutils.AssertEqual(t, result.Recipient.Amount, int64(400))

	a, _ := db.GetProfile(ctx, alice.ID)
	b, _ := db.GetProfile(ctx, bob.ID)
	testutils.AssertEqual(t, a.Balance, int64(600))
	testutils.AssertEqual(t, b.Balance, int64(400))

	_, err = db.Transfer(ctx, alice.ID, bob.ID, 601, "too much")
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("Expected ErrInsufficientBalance, got %v", err)
	}

	_, err = db.Transfer(ctx, alice.ID, "ghost", 10, "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	// Failed transfers leave balances untouched.
	a, _ = db.GetProfile(ctx, alice.ID)
	testutils.AssertEqual(t, a.Balance, int64(600))
}

func TestTransactionStatsSince(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()
	alice := seedProfile(t, db, "alice", 0)
	bob := seedProfile(t, db, "bob", 0)

	now := time.Now().UTC()
	rows := []*Transaction{
		{UserID: alice.ID, Type: TxTypeDeposit, Amount: 1000, Status: TxStatusCompleted, CreatedAt: now.Add(-2 * time.Hour)},
		{UserID: bob.ID, Type: TxTypeDeposit, Amount: 500, Status: TxStatusCompleted, CreatedAt: now.Add(-1 * time.Hour)},
		{UserID: bob.ID, Type: TxTypeDeposit, Amount: 700, Status: TxStatusPending, CreatedAt: now.Add(-1 * time.Hour)},
		{UserID: alice.ID, Type: TxTypeWithdrawal, Amount: 300, Status: TxStatusCompleted, CreatedAt: now.Add(-3 * time.Hour)},
		{UserID: alice.ID, Type: TxTypeDeposit, Amount: 9999, Status: TxStatusCompleted, CreatedAt: now.Add(-48 * time.Hour)},
	}
	for _, row := range rows {
		testutils.AssertNoError(t, db.InsertTransaction(ctx, row))
	}

	since := now.Add(-24 * time.Hour)
	deposits, err := db.TransactionStatsSince(ctx, TxTypeDeposit, since)
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, deposits.Count, int64(2))
	testutils.AssertEqual(t, deposits.Total, int64(1500))

	withdrawals, err := db.TransactionStatsSince(ctx, TxTypeWithdrawal, since)
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, withdrawals.Count, int64(1))
	testutils.AssertEqual(t, withdrawals.Total, int64(300))

	active, err := db.ActiveUsersSince(ctx, since)
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, active, int64(2))
}

func TestDevices(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()
	alice := seedProfile(t, db, "alice", 0)

	devices, err := db.ListDevices(ctx, alice.ID)
	testutils.AssertNoError(t, err)
	if devices == nil || len(devices) != 0 {
		t.Fatalf("Expected empty non-nil slice, got %#v", devices)
	}

	dev := &Device{UserID: alice.ID, PairingCode: "PET-1234", PetName: "Rex", PetType: "dog"}
	testutils.AssertNoError(t, db.RegisterDevice(ctx, dev))

	err = db.RegisterDevice(ctx, &Device{UserID: alice.ID, PairingCode: "PET-1234"})
	if !errors.Is(err, ErrPairingCodeTaken) {
		t.Fatalf("Expected ErrPairingCodeTaken, got %v", err)
	}

	byCode, err := db.GetDeviceByPairingCode(ctx, "PET-1234")
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, byCode.ID, dev.ID)
	if byCode.LastSeenAt != nil {
		t.Error("Expected a fresh device to have no last_seen_at")
	}

	_, err = db.TouchDevice(ctx, dev.ID)
	testutils.AssertNoError(t, err)
	byCode, _ = db.GetDeviceByPairingCode(ctx, "PET-1234")
	if byCode.LastSeenAt == nil {
		t.Error("Expected last_seen_at after touch")
	}

	err = db.DeleteDevice(ctx, dev.ID, "someone-else")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound deleting another user's device, got %v", err)
	}
	testutils.AssertNoError(t, db.DeleteDevice(ctx, dev.ID, alice.ID))

	devices, err = db.ListDevices(ctx, alice.ID)
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, len(devices), 0)
}

func TestConnectedAccounts(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()

	testutils.AssertNoError(t, db.ConnectAccount(ctx, "parent", "child"))
	testutils.AssertNoError(t, db.ConnectAccount(ctx, "parent", "child"))

	ok, err := db.IsConnected(ctx, "parent", "child")
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, ok, true)

	ok, err = db.IsConnected(ctx, "child", "parent")
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, ok, false)

	accounts, err := db.ListConnectedAccounts(ctx, "parent")
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, len(accounts), 1)
}

func TestPostEscrow(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()
	owner := seedProfile(t, db, "owner", 1000)
	fixer := seedProfile(t, db, "fixer", 0)

	post := &Post{UserID: owner.ID, Title: "Broken gate", Reward: 300}
	testutils.AssertNoError(t, db.CreatePost(ctx, post))
	testutils.AssertEqual(t, post.Status, PostStatusOpen)

	o, _ := db.GetProfile(ctx, owner.ID)
	testutils.AssertEqual(t, o.Balance, int64(700))

	_, err := db.CompletePost(ctx, post.ID, fixer.ID, fixer.ID)
	if !errors.Is(err, ErrNotPostOwner) {
		t.Fatalf("Expected ErrNotPostOwner, got %v", err)
	}

	done, err := db.CompletePost(ctx, post.ID, owner.ID, fixer.ID)
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, done.Status, PostStatusCompleted)
	testutils.AssertEqual(t, done.FixedBy, fixer.ID)

	f, _ := db.GetProfile(ctx, fixer.ID)
	testutils.AssertEqual(t, f.Balance, int64(300))

	_, err = db.CompletePost(ctx, post.ID, owner.ID, fixer.ID)
	if !errors.Is(err, ErrPostNotOpen) {
		t.Fatalf("Expected ErrPostNotOpen, got %v", err)
	}

	err = db.CreatePost(ctx, &Post{UserID: fixer.ID, Title: "Too rich", Reward: 301})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("Expected ErrInsufficientBalance, got %v", err)
	}

	since := time.Now().Add(-time.Hour)
	created, err := db.PostsCreatedSince(ctx, since)
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, created.Count, int64(1))
	testutils.AssertEqual(t, created.Rewards, int64(300))

	completed, err := db.PostsCompletedSince(ctx, since)
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, completed.Count, int64(1))

	// Ledger rows must reproduce both balances.
	for _, p := range []*Profile{owner, fixer} {
		txs, err := db.GetCompletedTransactions(ctx, p.ID)
		testutils.AssertNoError(t, err)
		sum := p.Balance
		for _, tx := range txs {
			sum += tx.SignedAmount()
		}
		current, _ := db.GetProfile(ctx, p.ID)
		testutils.AssertEqual(t, sum, current.Balance)
	}
}

func TestBitcoinPrices(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()

	_, err := db.GetLatestBitcoinPrice(ctx)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound on empty table, got %v", err)
	}

	clock := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	db.SetClock(func() time.Time { return clock })
	_, err = db.InsertBitcoinPrice(ctx, decimal.RequireFromString("64000.25"), "coingecko")
	testutils.AssertNoError(t, err)

	clock = clock.Add(time.Minute)
	_, err = db.InsertBitcoinPrice(ctx, decimal.RequireFromString("-1.5"), "mock")
	testutils.AssertNoError(t, err)

	latest, err := db.GetLatestBitcoinPrice(ctx)
	testutils.AssertNoError(t, err)
	if !latest.Price.Equal(decimal.RequireFromString("-1.5")) {
		t.Errorf("latest price = %s, want -1.5", latest.Price)
	}
	testutils.AssertEqual(t, latest.Source, "mock")
}

func TestListProfilesQueryError(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer conn.Close()

	mock.ExpectQuery("SELECT id, email, username, balance, created_at FROM profiles").
		WillReturnError(errors.New("connection reset"))

	db := NewFromDB(conn, DriverSQLite)
	_, err = db.ListProfiles(context.Background())
	testutils.AssertError(t, err, "connection reset")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTransferRollsBackOnInsertFailure(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer conn.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE profiles SET balance = balance -").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE profiles SET balance = balance \\+").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO transactions").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	db := NewFromDB(conn, DriverSQLite)
	_, err = db.Transfer(context.Background(), "a", "b", 10, "")
	testutils.AssertError(t, err, "disk full")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresPlaceholders(t *testing.T) {
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer conn.Close()

	mock.ExpectQuery(`WHERE id = \$1`).
		WithArgs("abc").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "username", "balance", "created_at"}).
			AddRow("abc", "a@example.com", "a", 42, time.Now()))

	db := NewFromDB(conn, DriverPostgres)
	p, err := db.GetProfile(context.Background(), "abc")
	testutils.AssertNoError(t, err)
	testutils.AssertEqual(t, p.Balance, int64(42))
}
