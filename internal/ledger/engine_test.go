package ledger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/finexbank/ledger/internal/categorizer"
	"github.com/finexbank/ledger/internal/domain"
	"github.com/finexbank/ledger/internal/ledger"
	"github.com/finexbank/ledger/internal/ledger/inmemory"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// testClock is the fixed "now" every test engine runs at.
var testClock = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, store ledger.Store, opts ...ledger.Option) *ledger.Engine {
	t.Helper()
	opts = append([]ledger.Option{ledger.WithClock(func() time.Time { return testClock })}, opts...)
	return ledger.NewEngine(store, categorizer.NewDefault(), zerolog.Nop(), opts...)
}

// seedUser inserts a user with one account per given balance, bypassing
// the engine so fixtures do not depend on the operations under test.
func seedUser(t *testing.T, store ledger.Store, name, email string, balances ...string) (*domain.User, []*domain.Account) {
	t.Helper()
	ctx := context.Background()
	user := &domain.User{Name: name, Email: email, CreatedAt: testClock}
	var accounts []*domain.Account
	err := store.WithinTx(ctx, func(tx ledger.Tx) error {
		if err := tx.InsertUser(ctx, user); err != nil {
			return err
		}
		for _, b := range balances {
			a := &domain.Account{
				UserID:    user.ID,
				BankName:  "Finex Bank",
				Kind:      domain.AccountChecking,
				Balance:   decimal.RequireFromString(b),
				Currency:  "USD",
				CreatedAt: testClock,
			}
			if err := tx.InsertAccount(ctx, a); err != nil {
				return err
			}
			accounts = append(accounts, a)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seedUser: %v", err)
	}
	return user, accounts
}

func seedBill(t *testing.T, store ledger.Store, userID int64, biller string, due time.Time, amount string, autoPay bool, autoPayTime string) *domain.Bill {
	t.Helper()
	ctx := context.Background()
	bill := &domain.Bill{
		UserID:      userID,
		BillerName:  biller,
		DueDate:     due,
		AmountDue:   decimal.RequireFromString(amount),
		Status:      domain.BillUpcoming,
		AutoPay:     autoPay,
		AutoPayTime: autoPayTime,
		CreatedAt:   testClock,
	}
	err := store.WithinTx(ctx, func(tx ledger.Tx) error {
		return tx.InsertBill(ctx, bill)
	})
	if err != nil {
		t.Fatalf("seedBill: %v", err)
	}
	return bill
}

func seedReward(t *testing.T, store ledger.Store, userID, points int64) {
	t.Helper()
	ctx := context.Background()
	err := store.WithinTx(ctx, func(tx ledger.Tx) error {
		return tx.CreateReward(ctx, &domain.RewardLedger{
			UserID:      userID,
			ProgramName: ledger.RewardProgramName,
			Points:      points,
			UpdatedAt:   testClock,
		})
	})
	if err != nil {
		t.Fatalf("seedReward: %v", err)
	}
}

func mustBalance(t *testing.T, store ledger.Store, accountID int64) decimal.Decimal {
	t.Helper()
	a, err := store.AccountByID(context.Background(), accountID)
	if err != nil {
		t.Fatalf("AccountByID: %v", err)
	}
	if a == nil {
		t.Fatalf("account %d not found", accountID)
	}
	return a.Balance
}

func assertDecimal(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Errorf("got %s, want %s", got.StringFixed(2), want)
	}
}

// faultStore wraps a real store and fails the nth InsertTransaction,
// simulating a mid-unit persistence failure.
type faultStore struct {
	ledger.Store
	insertCalls  int
	failOnInsert int // 1-based call number to fail, 0 disables
}

func (s *faultStore) WithinTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	return s.Store.WithinTx(ctx, func(tx ledger.Tx) error {
		return fn(&faultTx{Tx: tx, s: s})
	})
}

type faultTx struct {
	ledger.Tx
	s *faultStore
}

func (t *faultTx) InsertTransaction(ctx context.Context, tr *domain.Transaction) error {
	t.s.insertCalls++
	if t.s.failOnInsert > 0 && t.s.insertCalls == t.s.failOnInsert {
		return errors.New("injected insert failure")
	}
	return t.Tx.InsertTransaction(ctx, tr)
}

func TestTransferMovesMoney(t *testing.T) {
	store := inmemory.NewStore()
	e := newTestEngine(t, store)
	ctx := context.Background()

	sender, senderAccts := seedUser(t, store, "Alice", "alice@example.com", "1000.00")
	recipient, recipientAccts := seedUser(t, store, "Bob", "bob@example.com", "200.00")

	entry, err := e.Transfer(ctx, sender.ID, "bob@example.com", decimal.RequireFromString("150.00"))
	if err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	assertDecimal(t, mustBalance(t, store, senderAccts[0].ID), "850.00")
	assertDecimal(t, mustBalance(t, store, recipientAccts[0].ID), "350.00")

	if entry.Direction != domain.Debit {
		t.Errorf("sender entry direction = %s, want debit", entry.Direction)
	}
	assertDecimal(t, entry.Amount, "-150.00")
	if entry.Description != "Transfer to Bob" {
		t.Errorf("description = %q, want %q", entry.Description, "Transfer to Bob")
	}
	if entry.Category != "Transfer" || entry.Merchant != "Bob" {
		t.Errorf("category/merchant = %q/%q, want Transfer/Bob", entry.Category, entry.Merchant)
	}

	recEntries, err := store.TransactionsByAccount(ctx, recipientAccts[0].ID)
	if err != nil {
		t.Fatalf("TransactionsByAccount: %v", err)
	}
	if len(recEntries) != 1 {
		t.Fatalf("recipient entries = %d, want 1", len(recEntries))
	}
	assertDecimal(t, recEntries[0].Amount, "150.00")
	if recEntries[0].Description != "Received from Alice" {
		t.Errorf("recipient description = %q, want %q", recEntries[0].Description, "Received from Alice")
	}
	if recEntries[0].Merchant != "Alice" {
		t.Errorf("recipient merchant = %q, want Alice", recEntries[0].Merchant)
	}

	// Paired postings sum to zero.
	sum := entry.Amount.Add(recEntries[0].Amount)
	if !sum.IsZero() {
		t.Errorf("posting pair sums to %s, want 0", sum)
	}
	_ = recipient
}

func TestTransferPicksHighestBalanceAccount(t *testing.T) {
	store := inmemory.NewStore()
	e := newTestEngine(t, store)
	ctx := context.Background()

	sender, senderAccts := seedUser(t, store, "Alice", "alice@example.com", "50.00", "900.00", "300.00")
	seedUser(t, store, "Bob", "bob@example.com", "0.00")

	if _, err := e.Transfer(ctx, sender.ID, "bob@example.com", decimal.RequireFromString("100.00")); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	assertDecimal(t, mustBalance(t, store, senderAccts[0].ID), "50.00")
	assertDecimal(t, mustBalance(t, store, senderAccts[1].ID), "800.00")
	assertDecimal(t, mustBalance(t, store, senderAccts[2].ID), "300.00")
}

func TestTransferInsufficientFunds(t *testing.T) {
	store := inmemory.NewStore()
	e := newTestEngine(t, store)
	ctx := context.Background()

	sender, senderAccts := seedUser(t, store, "Alice", "alice@example.com", "149.99")
	_, recipientAccts := seedUser(t, store, "Bob", "bob@example.com", "200.00")

	_, err := e.Transfer(ctx, sender.ID, "bob@example.com", decimal.RequireFromString("150.00"))
	if !errors.Is(err, domain.ErrInsufficientFunds()) {
		t.Fatalf("err = %v, want insufficient_funds", err)
	}

	// Rejection leaves no trace.
	assertDecimal(t, mustBalance(t, store, senderAccts[0].ID), "149.99")
	assertDecimal(t, mustBalance(t, store, recipientAccts[0].ID), "200.00")
	entries, _ := store.TransactionsByUser(ctx, sender.ID)
	if len(entries) != 0 {
		t.Errorf("sender has %d entries after rejected transfer, want 0", len(entries))
	}
}

func TestTransferRejections(t *testing.T) {
	store := inmemory.NewStore()
	e := newTestEngine(t, store)
	ctx := context.Background()

	sender, _ := seedUser(t, store, "Alice", "alice@example.com", "1000.00")
	seedUser(t, store, "Carol", "carol@example.com") // no accounts
	amount := decimal.RequireFromString("10.00")

	tests := []struct {
		name      string
		recipient string
		amount    decimal.Decimal
		want      error
	}{
		{"self transfer", "alice@example.com", amount, domain.ErrSelfTransferNotAllowed()},
		{"unknown recipient", "nobody@example.com", amount, domain.ErrRecipientNotFound("nobody@example.com")},
		{"recipient without account", "carol@example.com", amount, domain.ErrRecipientHasNoAccount()},
		{"zero amount", "carol@example.com", decimal.Zero, domain.ErrNonPositiveAmount()},
		{"negative amount", "carol@example.com", decimal.RequireFromString("-5.00"), domain.ErrNonPositiveAmount()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Transfer(ctx, sender.ID, tt.recipient, tt.amount)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTransferSenderWithoutAccount(t *testing.T) {
	store := inmemory.NewStore()
	e := newTestEngine(t, store)
	ctx := context.Background()

	sender, _ := seedUser(t, store, "Alice", "alice@example.com")
	seedUser(t, store, "Bob", "bob@example.com", "200.00")

	_, err := e.Transfer(ctx, sender.ID, "bob@example.com", decimal.RequireFromString("10.00"))
	if !errors.Is(err, domain.ErrNoFundingAccount()) {
		t.Fatalf("err = %v, want no_funding_account", err)
	}
}

func TestTransferRollsBackWhenCreditFails(t *testing.T) {
	inner := inmemory.NewStore()
	// Fail the second posting: the debit has already been applied
	// inside the unit when the credit insert blows up.
	store := &faultStore{Store: inner, failOnInsert: 2}
	e := newTestEngine(t, store)
	ctx := context.Background()

	sender, senderAccts := seedUser(t, store, "Alice", "alice@example.com", "1000.00")
	_, recipientAccts := seedUser(t, store, "Bob", "bob@example.com", "200.00")

	_, err := e.Transfer(ctx, sender.ID, "bob@example.com", decimal.RequireFromString("150.00"))
	if err == nil {
		t.Fatal("Transfer succeeded despite injected failure")
	}
	if domain.KindOf(err) != domain.KindPersistence {
		t.Errorf("kind = %s, want persistence", domain.KindOf(err))
	}

	// Neither side of the pair survives.
	assertDecimal(t, mustBalance(t, store, senderAccts[0].ID), "1000.00")
	assertDecimal(t, mustBalance(t, store, recipientAccts[0].ID), "200.00")
	entries, _ := inner.TransactionsByAccount(ctx, senderAccts[0].ID)
	if len(entries) != 0 {
		t.Errorf("debit leaked: %d entries, want 0", len(entries))
	}
}

func TestHighestBalancePolicy(t *testing.T) {
	a := &domain.Account{ID: 1, Balance: decimal.RequireFromString("100.00")}
	b := &domain.Account{ID: 2, Balance: decimal.RequireFromString("300.00")}
	c := &domain.Account{ID: 3, Balance: decimal.RequireFromString("300.00")}

	if got := ledger.HighestBalance(nil); got != nil {
		t.Errorf("empty slice: got %+v, want nil", got)
	}
	if got := ledger.HighestBalance([]*domain.Account{a, b, c}); got != b {
		t.Errorf("got account %d, want 2 (ties keep the earlier account)", got.ID)
	}
}

func TestFirstCreatedPolicy(t *testing.T) {
	a := &domain.Account{ID: 1}
	b := &domain.Account{ID: 2}

	if got := ledger.FirstCreated(nil); got != nil {
		t.Errorf("empty slice: got %+v, want nil", got)
	}
	if got := ledger.FirstCreated([]*domain.Account{a, b}); got != a {
		t.Errorf("got account %d, want 1", got.ID)
	}
}
