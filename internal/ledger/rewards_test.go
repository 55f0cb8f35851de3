package ledger_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/finexbank/ledger/internal/domain"
	"github.com/finexbank/ledger/internal/ledger"
	"github.com/finexbank/ledger/internal/ledger/inmemory"
	"github.com/shopspring/decimal"
)

func TestRedeemCashbackUsesValueEmbeddedInName(t *testing.T) {
	store := inmemory.NewStore()
	e := newTestEngine(t, store)
	ctx := context.Background()

	user, accts := seedUser(t, store, "Alice", "alice@example.com", "500.00")
	seedReward(t, store, user.ID, 10000)

	result, err := e.RedeemReward(ctx, user.ID, "cb-1", "Account Credit Rs. 1,000", 10000, domain.RedeemCashback)
	if err != nil {
		t.Fatalf("RedeemReward: %v", err)
	}
	if result.NewPointsBalance != 0 {
		t.Errorf("new balance = %d, want 0", result.NewPointsBalance)
	}
	if result.CashbackEntry == nil {
		t.Fatal("no cashback entry posted")
	}
	// The embedded Rs. value wins over cost at the fixed rate.
	assertDecimal(t, result.CashbackEntry.Amount, "1000.00")
	if result.CashbackEntry.Direction != domain.Credit {
		t.Errorf("direction = %s, want credit", result.CashbackEntry.Direction)
	}
	if result.CashbackEntry.Category != "Income" || result.CashbackEntry.Merchant != "Finex Rewards" {
		t.Errorf("category/merchant = %q/%q", result.CashbackEntry.Category, result.CashbackEntry.Merchant)
	}
	assertDecimal(t, mustBalance(t, store, accts[0].ID), "1500.00")

	reward, _ := store.RewardByUser(ctx, user.ID)
	if reward.Points != 0 {
		t.Errorf("stored points = %d, want 0", reward.Points)
	}
}

func TestRedeemCashbackFallsBackToFixedRate(t *testing.T) {
	store := inmemory.NewStore()
	e := newTestEngine(t, store)
	ctx := context.Background()

	user, accts := seedUser(t, store, "Alice", "alice@example.com", "100.00")
	seedReward(t, store, user.ID, 800)

	result, err := e.RedeemReward(ctx, user.ID, "cb-2", "Statement Credit", 500, domain.RedeemCashback)
	if err != nil {
		t.Fatalf("RedeemReward: %v", err)
	}
	// 500 points at 0.10 per point.
	assertDecimal(t, result.CashbackEntry.Amount, "50")
	assertDecimal(t, mustBalance(t, store, accts[0].ID), "150.00")
	if result.NewPointsBalance != 300 {
		t.Errorf("new balance = %d, want 300", result.NewPointsBalance)
	}
}

func TestRedeemGiftcardIssuesCodedItem(t *testing.T) {
	store := inmemory.NewStore()
	e := newTestEngine(t, store)
	ctx := context.Background()

	user, accts := seedUser(t, store, "Alice", "alice@example.com", "100.00")
	seedReward(t, store, user.ID, 2000)

	result, err := e.RedeemReward(ctx, user.ID, "gc-1", "Amazon Gift Card Rs. 500", 1500, domain.RedeemGiftcard)
	if err != nil {
		t.Fatalf("RedeemReward: %v", err)
	}
	if result.CashbackEntry != nil {
		t.Errorf("giftcard redemption posted a ledger entry: %+v", result.CashbackEntry)
	}
	if result.Redeemed == nil {
		t.Fatal("no redeemed item recorded")
	}
	code := result.Redeemed.Code
	if !strings.HasPrefix(code, "CODE-") || len(code) != len("CODE-")+8 {
		t.Errorf("code = %q, want CODE- plus 8 hex chars", code)
	}
	if code != strings.ToUpper(code) {
		t.Errorf("code %q is not upper-case", code)
	}
	if want := testClock.Add(7 * 24 * time.Hour); !result.Redeemed.ExpiresAt.Equal(want) {
		t.Errorf("expires at %v, want %v", result.Redeemed.ExpiresAt, want)
	}
	// No balance movement on gift items.
	assertDecimal(t, mustBalance(t, store, accts[0].ID), "100.00")

	items, _ := store.RedeemedByUser(ctx, user.ID)
	if len(items) != 1 || items[0].ItemName != "Amazon Gift Card Rs. 500" {
		t.Errorf("redeemed list = %+v", items)
	}
}

func TestRedeemInsufficientPoints(t *testing.T) {
	store := inmemory.NewStore()
	e := newTestEngine(t, store)
	ctx := context.Background()

	user, _ := seedUser(t, store, "Alice", "alice@example.com", "100.00")
	seedReward(t, store, user.ID, 100)

	_, err := e.RedeemReward(ctx, user.ID, "cb-1", "Statement Credit", 500, domain.RedeemCashback)
	if !errors.Is(err, domain.ErrInsufficientPoints()) {
		t.Fatalf("err = %v, want insufficient_points", err)
	}
	reward, _ := store.RewardByUser(ctx, user.ID)
	if reward.Points != 100 {
		t.Errorf("points = %d after rejected redemption, want 100", reward.Points)
	}
}

func TestRedeemWithoutRewardRow(t *testing.T) {
	store := inmemory.NewStore()
	e := newTestEngine(t, store)

	user, _ := seedUser(t, store, "Alice", "alice@example.com", "100.00")
	_, err := e.RedeemReward(context.Background(), user.ID, "cb-1", "Statement Credit", 100, domain.RedeemCashback)
	if !errors.Is(err, domain.ErrRewardsAccountNotFound()) {
		t.Fatalf("err = %v, want rewards_account_not_found", err)
	}
}

func TestRedeemRejectsNonPositiveCost(t *testing.T) {
	store := inmemory.NewStore()
	e := newTestEngine(t, store)

	user, _ := seedUser(t, store, "Alice", "alice@example.com", "100.00")
	seedReward(t, store, user.ID, 100)
	_, err := e.RedeemReward(context.Background(), user.ID, "cb-1", "Statement Credit", 0, domain.RedeemCashback)
	if !errors.Is(err, domain.ErrNonPositiveAmount()) {
		t.Fatalf("err = %v, want non_positive_amount", err)
	}
}

func TestRedeemEmitsAlertAndNotification(t *testing.T) {
	store := inmemory.NewStore()
	notifier := &captureNotifier{}
	e := newTestEngine(t, store, ledger.WithNotifier(notifier))
	ctx := context.Background()

	user, _ := seedUser(t, store, "Alice", "alice@example.com", "100.00")
	seedReward(t, store, user.ID, 1000)

	if _, err := e.RedeemReward(ctx, user.ID, "cb-1", "Statement Credit", 500, domain.RedeemCashback); err != nil {
		t.Fatalf("RedeemReward: %v", err)
	}

	alerts, _ := store.AlertsByUser(ctx, user.ID)
	if len(alerts) != 1 || alerts[0].Type != domain.AlertRewardRedeemed {
		t.Fatalf("alerts = %+v, want one reward_redeemed", alerts)
	}
	if !strings.Contains(alerts[0].Message, "Statement Credit") {
		t.Errorf("alert message = %q", alerts[0].Message)
	}
	if notifier.email != "alice@example.com" {
		t.Errorf("notification sent to %q, want alice@example.com", notifier.email)
	}
}

func TestRedeemSucceedsWhenNotifierFails(t *testing.T) {
	store := inmemory.NewStore()
	notifier := &captureNotifier{err: errors.New("relay down")}
	e := newTestEngine(t, store, ledger.WithNotifier(notifier))
	ctx := context.Background()

	user, _ := seedUser(t, store, "Alice", "alice@example.com", "100.00")
	seedReward(t, store, user.ID, 1000)

	result, err := e.RedeemReward(ctx, user.ID, "cb-1", "Statement Credit", 500, domain.RedeemCashback)
	if err != nil {
		t.Fatalf("RedeemReward: %v", err)
	}
	if result.NewPointsBalance != 500 {
		t.Errorf("new balance = %d, want 500", result.NewPointsBalance)
	}
}

func TestRedeemRollsBackOnPostingFailure(t *testing.T) {
	inner := inmemory.NewStore()
	store := &faultStore{Store: inner, failOnInsert: 1}
	e := newTestEngine(t, store)
	ctx := context.Background()

	user, accts := seedUser(t, store, "Alice", "alice@example.com", "100.00")
	seedReward(t, store, user.ID, 1000)

	if _, err := e.RedeemReward(ctx, user.ID, "cb-1", "Statement Credit", 500, domain.RedeemCashback); err == nil {
		t.Fatal("RedeemReward succeeded despite injected failure")
	}

	// Point deduction and credit roll back together, and no alert fires
	// for a redemption that never happened.
	reward, _ := inner.RewardByUser(ctx, user.ID)
	if reward.Points != 1000 {
		t.Errorf("points = %d, want 1000", reward.Points)
	}
	assertDecimal(t, mustBalance(t, store, accts[0].ID), "100.00")
	alerts, _ := inner.AlertsByUser(ctx, user.ID)
	if len(alerts) != 0 {
		t.Errorf("alerts = %+v, want none", alerts)
	}
}

func TestRewardBalanceLazyCreate(t *testing.T) {
	store := inmemory.NewStore()
	e := newTestEngine(t, store)
	ctx := context.Background()

	user, _ := seedUser(t, store, "Alice", "alice@example.com", "100.00")

	reward, err := e.RewardBalance(ctx, user.ID)
	if err != nil {
		t.Fatalf("RewardBalance: %v", err)
	}
	if reward.Points != 0 || reward.ProgramName != ledger.RewardProgramName {
		t.Errorf("reward = %+v", reward)
	}
	// The row is persisted, later reads agree.
	stored, _ := store.RewardByUser(ctx, user.ID)
	if stored == nil || stored.ID != reward.ID {
		t.Errorf("stored reward = %+v", stored)
	}
}

func TestExchangeRateQuoteStaysNearFixedRate(t *testing.T) {
	e := newTestEngine(t, inmemory.NewStore())

	for i := 0; i < 50; i++ {
		q := e.ExchangeRateQuote()
		if q.Currency != "INR" {
			t.Fatalf("currency = %q, want INR", q.Currency)
		}
		diff := q.Rate.Sub(ledger.FixedExchangeRate).Abs()
		if diff.GreaterThan(decimal.RequireFromString("0.011")) {
			t.Fatalf("rate %s drifted more than 0.011 from fixed rate", q.Rate)
		}
		if !q.Timestamp.Equal(testClock) {
			t.Fatalf("timestamp = %v, want test clock", q.Timestamp)
		}
	}
}

// captureNotifier records the last notification and optionally fails.
type captureNotifier struct {
	email   string
	subject string
	err     error
}

func (n *captureNotifier) Notify(ctx context.Context, email, subject, body string) error {
	n.email = email
	n.subject = subject
	return n.err
}
