package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/finexbank/ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// pointsPerUnit: one reward point for every 10 currency units paid.
var pointsDivisor = decimal.NewFromInt(10)

// RewardProgramName is the program a lazily-created reward row joins.
const RewardProgramName = "Gold Rewards"

// PayBill marks a bill paid, posts the debit and accrues reward points
// as one atomic unit. Paying an already-paid bill is an idempotent
// no-op returning the bill unchanged.
//
// accountID optionally names the paying account; it is used only when
// it belongs to the user, otherwise the fallback policy picks one. With
// no account at all the operation fails with NoAccountAvailable and the
// bill stays unpaid; marking it paid without a posting would silently
// lose the ledger entry.
func (e *Engine) PayBill(ctx context.Context, userID, billID int64, accountID *int64) (*domain.Bill, error) {
	var paid *domain.Bill
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		// The bill row lock is what makes a sweep racing a direct
		// payment pay at most once.
		bill, err := tx.BillForUpdate(ctx, billID, userID)
		if err != nil {
			return domain.WrapStore("PayBill: load bill", err)
		}
		if bill == nil {
			return domain.ErrBillNotFound(billID)
		}
		if bill.Status == domain.BillPaid {
			paid = bill
			return nil
		}

		account, err := e.selectPayingAccount(ctx, tx, userID, accountID)
		if err != nil {
			return err
		}

		locked, err := tx.AccountForUpdate(ctx, account.ID)
		if err != nil {
			return domain.WrapStore("PayBill: lock account", err)
		}
		if locked == nil {
			return domain.ErrAccountNotFound(account.ID)
		}

		if err := tx.SetBillStatus(ctx, bill.ID, domain.BillPaid); err != nil {
			return domain.WrapStore("PayBill: mark paid", err)
		}

		now := e.now()
		category := e.cat.Categorize(bill.BillerName)
		_, err = PostEntry(ctx, tx, locked, bill.AmountDue, domain.Debit,
			fmt.Sprintf("Bill Payment: %s", bill.BillerName), category, bill.BillerName, now)
		if err != nil {
			return err
		}

		if err := e.accruePoints(ctx, tx, userID, bill.AmountDue, now); err != nil {
			return err
		}

		bill.Status = domain.BillPaid
		paid = bill
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Int64("user_id", userID).
		Int64("bill_id", billID).
		Str("status", string(paid.Status)).
		Msg("bill payment processed")
	return paid, nil
}

// selectPayingAccount resolves the account a bill is paid from: the
// explicitly requested one when the user owns it, else the fallback
// policy's pick.
func (e *Engine) selectPayingAccount(ctx context.Context, tx Tx, userID int64, accountID *int64) (*domain.Account, error) {
	if accountID != nil {
		a, err := tx.AccountByID(ctx, *accountID)
		if err != nil {
			return nil, domain.WrapStore("selectPayingAccount", err)
		}
		if a != nil && a.UserID == userID {
			return a, nil
		}
	}

	accounts, err := tx.AccountsByUser(ctx, userID)
	if err != nil {
		return nil, domain.WrapStore("selectPayingAccount: list accounts", err)
	}
	a := e.fallback(accounts)
	if a == nil {
		return nil, domain.ErrNoAccountAvailable()
	}
	return a, nil
}

// accruePoints awards floor(amount/10) points, creating the reward row
// on first accrual. Zero-point amounts write nothing.
func (e *Engine) accruePoints(ctx context.Context, tx Tx, userID int64, amount decimal.Decimal, at time.Time) error {
	earned := amount.Div(pointsDivisor).Floor().IntPart()
	if earned <= 0 {
		return nil
	}

	reward, err := tx.RewardForUpdate(ctx, userID)
	if err != nil {
		return domain.WrapStore("accruePoints: load reward", err)
	}
	if reward == nil {
		reward = &domain.RewardLedger{
			UserID:      userID,
			ProgramName: RewardProgramName,
			Points:      0,
			UpdatedAt:   at,
		}
		if err := tx.CreateReward(ctx, reward); err != nil {
			return domain.WrapStore("accruePoints: create reward", err)
		}
	}
	if err := tx.SetRewardPoints(ctx, userID, reward.Points+earned, at); err != nil {
		return domain.WrapStore("accruePoints: update points", err)
	}
	return nil
}

// ListBills returns the user's bills, lazily flipping upcoming bills
// whose due date has passed to overdue. The flip is persisted so later
// readers agree.
func (e *Engine) ListBills(ctx context.Context, userID int64) ([]*domain.Bill, error) {
	var bills []*domain.Bill
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		bills, err = tx.BillsByUser(ctx, userID)
		if err != nil {
			return domain.WrapStore("ListBills", err)
		}
		today := dateOnly(e.now())
		for _, b := range bills {
			if b.Status == domain.BillUpcoming && dateOnly(b.DueDate).Before(today) {
				if err := tx.SetBillStatus(ctx, b.ID, domain.BillOverdue); err != nil {
					return domain.WrapStore("ListBills: mark overdue", err)
				}
				b.Status = domain.BillOverdue
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bills, nil
}

// BillSummary aggregates bill counts and due amounts for display.
type BillSummary struct {
	ActiveCount   int             `json:"active_count"`
	DueAmount     decimal.Decimal `json:"due_amount"`
	UpcomingCount int             `json:"upcoming_count"`
	OverdueAmount decimal.Decimal `json:"overdue_amount"`
	OverdueCount  int             `json:"overdue_count"`
	PaidCount     int             `json:"paid_count"`
}

// SummarizeBills computes display totals over the user's bills, after
// the same lazy overdue transition ListBills applies.
func (e *Engine) SummarizeBills(ctx context.Context, userID int64) (*BillSummary, error) {
	bills, err := e.ListBills(ctx, userID)
	if err != nil {
		return nil, err
	}

	s := &BillSummary{DueAmount: decimal.Zero, OverdueAmount: decimal.Zero}
	for _, b := range bills {
		switch b.Status {
		case domain.BillUpcoming:
			s.ActiveCount++
			s.UpcomingCount++
			s.DueAmount = s.DueAmount.Add(b.AmountDue)
		case domain.BillOverdue:
			s.ActiveCount++
			s.OverdueCount++
			s.OverdueAmount = s.OverdueAmount.Add(b.AmountDue)
		case domain.BillPaid:
			s.PaidCount++
		}
	}
	return s, nil
}

// CreateBill registers a new upcoming bill for the user.
func (e *Engine) CreateBill(ctx context.Context, userID int64, billerName string, dueDate time.Time, amountDue decimal.Decimal, autoPay bool, autoPayTime string) (*domain.Bill, error) {
	if !amountDue.IsPositive() {
		return nil, domain.ErrNonPositiveAmount()
	}

	bill := &domain.Bill{
		UserID:      userID,
		BillerName:  billerName,
		DueDate:     dateOnly(dueDate),
		AmountDue:   amountDue,
		Status:      domain.BillUpcoming,
		AutoPay:     autoPay,
		AutoPayTime: autoPayTime,
		CreatedAt:   e.now(),
	}
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		if err := tx.InsertBill(ctx, bill); err != nil {
			return domain.WrapStore("CreateBill", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bill, nil
}

// UpdateBill applies a partial update (e.g. toggling auto-pay) to a
// bill the user owns.
func (e *Engine) UpdateBill(ctx context.Context, userID, billID int64, update domain.BillUpdate) (*domain.Bill, error) {
	var updated *domain.Bill
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		bill, err := tx.BillForUpdate(ctx, billID, userID)
		if err != nil {
			return domain.WrapStore("UpdateBill: load bill", err)
		}
		if bill == nil {
			return domain.ErrBillNotFound(billID)
		}
		update.Apply(bill)
		if err := tx.UpdateBill(ctx, bill); err != nil {
			return domain.WrapStore("UpdateBill", err)
		}
		updated = bill
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteBill removes a bill the user owns.
func (e *Engine) DeleteBill(ctx context.Context, userID, billID int64) error {
	return e.store.WithinTx(ctx, func(tx Tx) error {
		ok, err := tx.DeleteBill(ctx, billID, userID)
		if err != nil {
			return domain.WrapStore("DeleteBill", err)
		}
		if !ok {
			return domain.ErrBillNotFound(billID)
		}
		return nil
	})
}

// dateOnly truncates a timestamp to its calendar date, keeping date
// comparisons free of time-of-day noise.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
