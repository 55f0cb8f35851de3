package ledger

import "github.com/finexbank/ledger/internal/domain"

// AccountPolicy picks one account from a user's accounts, or nil when
// the slice is empty. The selection heuristics are named policies so
// operations can be tested against them and deployments can swap them.
type AccountPolicy func(accounts []*domain.Account) *domain.Account

// HighestBalance is the funding-account policy: prefer the account
// with the most money. Ties keep the earlier account.
func HighestBalance(accounts []*domain.Account) *domain.Account {
	var best *domain.Account
	for _, a := range accounts {
		if best == nil || a.Balance.GreaterThan(best.Balance) {
			best = a
		}
	}
	return best
}

// FirstCreated is the fallback policy: the oldest account, matching
// the store's creation-order listing.
func FirstCreated(accounts []*domain.Account) *domain.Account {
	if len(accounts) == 0 {
		return nil
	}
	return accounts[0]
}
