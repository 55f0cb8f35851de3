package ledger

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	"github.com/finexbank/ledger/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FixedExchangeRate is the rate that governs cashback crediting when
// no explicit value is embedded in the item name: 1 point = 0.10
// currency units. The fluctuating rate returned by ExchangeRateQuote
// is display-only and never used to credit.
var FixedExchangeRate = decimal.RequireFromString("0.10")

// currencyInName extracts values like "Rs. 1,000" embedded in reward
// item names.
var currencyInName = regexp.MustCompile(`Rs\.\s*([\d,]+)`)

// RedemptionResult reports the outcome of a redemption. Exactly one of
// CashbackEntry / Redeemed is set depending on the kind.
type RedemptionResult struct {
	NewPointsBalance int64
	CashbackEntry    *domain.Transaction
	Redeemed         *domain.RedeemedReward
}

// RedeemReward converts points into either a cash credit or a coded
// gift item. Point deduction and any posting commit as one atomic
// unit; the reward_redeemed alert and the notification are fired after
// commit and are allowed to fail.
func (e *Engine) RedeemReward(ctx context.Context, userID int64, itemID, itemName string, costPoints int64, kind domain.RedemptionKind) (*RedemptionResult, error) {
	if costPoints <= 0 {
		return nil, domain.ErrNonPositiveAmount()
	}

	result := &RedemptionResult{}
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		reward, err := tx.RewardForUpdate(ctx, userID)
		if err != nil {
			return domain.WrapStore("RedeemReward: load reward", err)
		}
		if reward == nil {
			return domain.ErrRewardsAccountNotFound()
		}
		if reward.Points < costPoints {
			return domain.ErrInsufficientPoints()
		}

		now := e.now()
		result.NewPointsBalance = reward.Points - costPoints
		if err := tx.SetRewardPoints(ctx, userID, result.NewPointsBalance, now); err != nil {
			return domain.WrapStore("RedeemReward: deduct points", err)
		}

		if kind == domain.RedeemCashback {
			return e.creditCashback(ctx, tx, userID, itemName, costPoints, now, result)
		}
		return e.issueGiftItem(ctx, tx, userID, itemName, now, result)
	})
	if err != nil {
		return nil, err
	}

	e.emitRedemptionAlert(ctx, userID, itemName, costPoints, result.NewPointsBalance)
	return result, nil
}

// creditCashback posts the cash credit to the user's highest-balance
// account. The credit amount is the value embedded in the item name
// when present, else costPoints at the fixed exchange rate.
func (e *Engine) creditCashback(ctx context.Context, tx Tx, userID int64, itemName string, costPoints int64, now time.Time, result *RedemptionResult) error {
	accounts, err := tx.AccountsByUser(ctx, userID)
	if err != nil {
		return domain.WrapStore("creditCashback: list accounts", err)
	}
	target := e.funding(accounts)
	if target == nil {
		return domain.ErrNoAccountAvailable()
	}

	locked, err := tx.AccountForUpdate(ctx, target.ID)
	if err != nil {
		return domain.WrapStore("creditCashback: lock account", err)
	}
	if locked == nil {
		return domain.ErrAccountNotFound(target.ID)
	}

	amount := parseEmbeddedValue(itemName)
	if amount.IsZero() {
		amount = decimal.NewFromInt(costPoints).Mul(FixedExchangeRate)
	}

	entry, err := PostEntry(ctx, tx, locked, amount, domain.Credit,
		fmt.Sprintf("Reward Redemption: %s", itemName), "Income", "Finex Rewards", now)
	if err != nil {
		return err
	}
	result.CashbackEntry = entry
	return nil
}

// issueGiftItem records a coded redemption expiring in 7 days. No
// balance is touched.
func (e *Engine) issueGiftItem(ctx context.Context, tx Tx, userID int64, itemName string, now time.Time, result *RedemptionResult) error {
	item := &domain.RedeemedReward{
		UserID:     userID,
		ItemName:   itemName,
		Code:       newRedemptionCode(),
		RedeemedAt: now,
		ExpiresAt:  now.Add(7 * 24 * time.Hour),
	}
	if err := tx.InsertRedeemedReward(ctx, item); err != nil {
		return domain.WrapStore("issueGiftItem", err)
	}
	result.Redeemed = item
	return nil
}

// emitRedemptionAlert writes the informational alert and pings the
// notifier. Both are best-effort: the redemption has already committed
// and a failure here only gets logged.
func (e *Engine) emitRedemptionAlert(ctx context.Context, userID int64, itemName string, costPoints, newBalance int64) {
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		return tx.InsertAlert(ctx, &domain.Alert{
			UserID:    userID,
			Type:      domain.AlertRewardRedeemed,
			Message:   fmt.Sprintf("You successfully redeemed %s for %d points!", itemName, costPoints),
			CreatedAt: e.now(),
		})
	})
	if err != nil {
		e.log.Warn().Err(err).Int64("user_id", userID).Msg("redemption alert not recorded")
	}

	if e.notifier == nil {
		return
	}
	user, err := e.store.UserByID(ctx, userID)
	if err != nil || user == nil {
		e.log.Warn().Err(err).Int64("user_id", userID).Msg("redemption notification skipped: user lookup failed")
		return
	}
	body := fmt.Sprintf("You have successfully redeemed %s.\nPoints used: %d\nRemaining balance: %d\n",
		itemName, costPoints, newBalance)
	if err := e.notifier.Notify(ctx, user.Email, "Reward Redemption Successful", body); err != nil {
		e.log.Warn().Err(err).Str("email", user.Email).Msg("redemption notification failed")
	}
}

// parseEmbeddedValue pulls a currency value like "Rs. 1,000" out of an
// item name, returning zero when none is present.
func parseEmbeddedValue(itemName string) decimal.Decimal {
	m := currencyInName.FindStringSubmatch(itemName)
	if m == nil {
		return decimal.Zero
	}
	value, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return decimal.Zero
	}
	return value
}

// newRedemptionCode generates an opaque code like CODE-9F3A01BC.
func newRedemptionCode() string {
	hex := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "CODE-" + strings.ToUpper(hex[:8])
}

// RewardBalance returns the user's reward row, creating a zero-point
// row on first access.
func (e *Engine) RewardBalance(ctx context.Context, userID int64) (*domain.RewardLedger, error) {
	var reward *domain.RewardLedger
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		reward, err = tx.RewardForUpdate(ctx, userID)
		if err != nil {
			return domain.WrapStore("RewardBalance", err)
		}
		if reward != nil {
			return nil
		}
		reward = &domain.RewardLedger{
			UserID:      userID,
			ProgramName: RewardProgramName,
			Points:      0,
			UpdatedAt:   e.now(),
		}
		if err := tx.CreateReward(ctx, reward); err != nil {
			return domain.WrapStore("RewardBalance: create", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reward, nil
}

// RedeemedRewards lists the user's redeemed items, newest first.
func (e *Engine) RedeemedRewards(ctx context.Context, userID int64) ([]*domain.RedeemedReward, error) {
	items, err := e.store.RedeemedByUser(ctx, userID)
	if err != nil {
		return nil, domain.WrapStore("RedeemedRewards", err)
	}
	return items, nil
}

// RateQuote is a display-only points-to-currency quote.
type RateQuote struct {
	Rate      decimal.Decimal `json:"rate"`
	Currency  string          `json:"currency"`
	Timestamp time.Time       `json:"timestamp"`
}

// ExchangeRateQuote simulates a mildly fluctuating market rate around
// the fixed rate. It exists for dashboards only; crediting always uses
// FixedExchangeRate.
func (e *Engine) ExchangeRateQuote() RateQuote {
	fluctuation := decimal.NewFromFloat((rand.Float64() - 0.5) * 0.02)
	return RateQuote{
		Rate:      FixedExchangeRate.Add(fluctuation).Round(3),
		Currency:  "INR",
		Timestamp: e.now(),
	}
}
