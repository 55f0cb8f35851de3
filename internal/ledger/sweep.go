package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/finexbank/ledger/internal/domain"
)

// AutoPaySweep pays every upcoming auto-pay bill whose due date has
// arrived and whose configured time-of-day has passed. Each bill is
// paid in its own atomic unit via PayBill, so one failing bill never
// poisons the rest; bills with a malformed "HH:MM" are skipped. The
// upcoming-only candidate filter plus PayBill's paid no-op make the
// sweep idempotent across repeated invocations.
func (e *Engine) AutoPaySweep(ctx context.Context, now time.Time) ([]*domain.Bill, error) {
	candidates, err := e.store.AutoPayCandidates(ctx)
	if err != nil {
		return nil, domain.WrapStore("AutoPaySweep: scan candidates", err)
	}

	today := dateOnly(now)
	var paid []*domain.Bill
	for _, bill := range candidates {
		payAt, err := time.Parse("15:04", bill.AutoPayTime)
		if err != nil {
			e.log.Warn().
				Int64("bill_id", bill.ID).
				Str("auto_pay_time", bill.AutoPayTime).
				Msg("skipping bill with malformed auto-pay time")
			continue
		}
		if dateOnly(bill.DueDate).After(today) {
			continue
		}
		if !timeOfDayReached(now, payAt) {
			continue
		}

		result, err := e.PayBill(ctx, bill.UserID, bill.ID, nil)
		if err != nil {
			// A bill the engine cannot pay (say, the user deleted
			// their last account) stays due; the sweep moves on.
			e.log.Error().Err(err).
				Int64("bill_id", bill.ID).
				Int64("user_id", bill.UserID).
				Msg("auto-pay failed for bill")
			if isStoreFailure(err) {
				return paid, err
			}
			continue
		}
		paid = append(paid, result)
	}

	e.log.Info().Int("paid", len(paid)).Int("candidates", len(candidates)).Msg("auto-pay sweep complete")
	return paid, nil
}

// timeOfDayReached reports whether now's wall-clock time is at or past
// the configured pay time.
func timeOfDayReached(now, payAt time.Time) bool {
	nowMinutes := now.Hour()*60 + now.Minute()
	payMinutes := payAt.Hour()*60 + payAt.Minute()
	return nowMinutes >= payMinutes
}

func isStoreFailure(err error) bool {
	var e *domain.Error
	return errors.As(err, &e) && e.Kind == domain.KindPersistence
}
