package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillUpdate enumerates the mutable fields of a Bill. A nil field is
// left unchanged; a non-nil field is set to the pointed-to value.
// Status is deliberately absent: it moves only through payment or the
// lazy overdue transition.
type BillUpdate struct {
	BillerName  *string
	DueDate     *time.Time
	AmountDue   *decimal.Decimal
	AutoPay     *bool
	AutoPayTime *string // "HH:MM"; set to empty string to clear
}

// AccountUpdate enumerates the mutable fields of an Account. Balance is
// deliberately absent: it changes only through postings.
type AccountUpdate struct {
	BankName *string
	PIN      *string // set to empty string to clear
}

// Apply copies the set fields onto b.
func (u BillUpdate) Apply(b *Bill) {
	if u.BillerName != nil {
		b.BillerName = *u.BillerName
	}
	if u.DueDate != nil {
		b.DueDate = *u.DueDate
	}
	if u.AmountDue != nil {
		b.AmountDue = *u.AmountDue
	}
	if u.AutoPay != nil {
		b.AutoPay = *u.AutoPay
	}
	if u.AutoPayTime != nil {
		b.AutoPayTime = *u.AutoPayTime
	}
}

// Apply copies the set fields onto a.
func (u AccountUpdate) Apply(a *Account) {
	if u.BankName != nil {
		a.BankName = *u.BankName
	}
	if u.PIN != nil {
		a.PIN = *u.PIN
	}
}
