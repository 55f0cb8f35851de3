// Package inmemory is a Store implementation backed by process memory.
// It exists for tests and single-node experiments; deployments use the
// Postgres store. Atomic units are emulated by holding a global mutex
// and restoring a snapshot of all tables when the unit fails, which
// gives the same all-or-nothing and serialized-writer behavior the
// engine relies on.
package inmemory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/finexbank/ledger/internal/domain"
	"github.com/finexbank/ledger/internal/ledger"
	"github.com/shopspring/decimal"
)

// Store holds all tables in maps keyed by id. Entities are stored by
// value; accessors hand out copies so callers cannot mutate state
// outside an atomic unit.
type Store struct {
	mu sync.Mutex

	seq          int64
	users        map[int64]domain.User
	accounts     map[int64]domain.Account
	transactions map[int64]domain.Transaction
	bills        map[int64]domain.Bill
	rewards      map[int64]domain.RewardLedger // keyed by user id
	redeemed     map[int64]domain.RedeemedReward
	alerts       map[int64]domain.Alert
}

var (
	_ ledger.Store = (*Store)(nil)
	_ ledger.Tx    = (*memTx)(nil)
)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		users:        make(map[int64]domain.User),
		accounts:     make(map[int64]domain.Account),
		transactions: make(map[int64]domain.Transaction),
		bills:        make(map[int64]domain.Bill),
		rewards:      make(map[int64]domain.RewardLedger),
		redeemed:     make(map[int64]domain.RedeemedReward),
		alerts:       make(map[int64]domain.Alert),
	}
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

type snapshot struct {
	seq          int64
	users        map[int64]domain.User
	accounts     map[int64]domain.Account
	transactions map[int64]domain.Transaction
	bills        map[int64]domain.Bill
	rewards      map[int64]domain.RewardLedger
	redeemed     map[int64]domain.RedeemedReward
	alerts       map[int64]domain.Alert
}

func copyTable[V any](m map[int64]V) map[int64]V {
	out := make(map[int64]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Store) snapshot() snapshot {
	return snapshot{
		seq:          s.seq,
		users:        copyTable(s.users),
		accounts:     copyTable(s.accounts),
		transactions: copyTable(s.transactions),
		bills:        copyTable(s.bills),
		rewards:      copyTable(s.rewards),
		redeemed:     copyTable(s.redeemed),
		alerts:       copyTable(s.alerts),
	}
}

func (s *Store) restore(snap snapshot) {
	s.seq = snap.seq
	s.users = snap.users
	s.accounts = snap.accounts
	s.transactions = snap.transactions
	s.bills = snap.bills
	s.rewards = snap.rewards
	s.redeemed = snap.redeemed
	s.alerts = snap.alerts
}

// WithinTx implements ledger.Store. The mutex is held for the whole
// unit, so concurrent units are fully serialized; an error restores
// the pre-unit snapshot.
func (s *Store) WithinTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snap := s.snapshot()
	if err := fn(&memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// Reader methods on Store lock and delegate to the unlocked helpers
// shared with memTx.

func (s *Store) UserByID(ctx context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userByID(id), nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userByEmail(email), nil
}

func (s *Store) AccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountByID(id), nil
}

func (s *Store) AccountsByUser(ctx context.Context, userID int64) ([]*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accountsByUser(userID), nil
}

func (s *Store) TransactionsByUser(ctx context.Context, userID int64) ([]*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactionsByUser(userID), nil
}

func (s *Store) TransactionsByAccount(ctx context.Context, accountID int64) ([]*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transactionsByAccount(accountID), nil
}

func (s *Store) BillByID(ctx context.Context, billID, userID int64) (*domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.billByID(billID, userID), nil
}

func (s *Store) BillsByUser(ctx context.Context, userID int64) ([]*domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.billsByUser(userID), nil
}

func (s *Store) AutoPayCandidates(ctx context.Context) ([]*domain.Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoPayCandidates(), nil
}

func (s *Store) RewardByUser(ctx context.Context, userID int64) (*domain.RewardLedger, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rewardByUser(userID), nil
}

func (s *Store) RedeemedByUser(ctx context.Context, userID int64) ([]*domain.RedeemedReward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redeemedByUser(userID), nil
}

func (s *Store) AlertsByUser(ctx context.Context, userID int64) ([]*domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alertsByUser(userID), nil
}

// unlocked helpers

func (s *Store) userByID(id int64) *domain.User {
	if u, ok := s.users[id]; ok {
		return &u
	}
	return nil
}

func (s *Store) userByEmail(email string) *domain.User {
	for _, u := range s.users {
		if u.Email == email {
			u := u
			return &u
		}
	}
	return nil
}

func (s *Store) accountByID(id int64) *domain.Account {
	if a, ok := s.accounts[id]; ok {
		return &a
	}
	return nil
}

func (s *Store) accountsByUser(userID int64) []*domain.Account {
	var out []*domain.Account
	for _, a := range s.accounts {
		if a.UserID == userID {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) transactionsByUser(userID int64) []*domain.Transaction {
	owned := make(map[int64]bool)
	for _, a := range s.accounts {
		if a.UserID == userID {
			owned[a.ID] = true
		}
	}
	var out []*domain.Transaction
	for _, t := range s.transactions {
		if owned[t.AccountID] {
			t := t
			out = append(out, &t)
		}
	}
	sortEntriesDesc(out)
	return out
}

func (s *Store) transactionsByAccount(accountID int64) []*domain.Transaction {
	var out []*domain.Transaction
	for _, t := range s.transactions {
		if t.AccountID == accountID {
			t := t
			out = append(out, &t)
		}
	}
	sortEntriesDesc(out)
	return out
}

func sortEntriesDesc(entries []*domain.Transaction) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].PostedAt.Equal(entries[j].PostedAt) {
			return entries[i].PostedAt.After(entries[j].PostedAt)
		}
		return entries[i].ID > entries[j].ID
	})
}

func (s *Store) billByID(billID, userID int64) *domain.Bill {
	if b, ok := s.bills[billID]; ok && b.UserID == userID {
		return &b
	}
	return nil
}

func (s *Store) billsByUser(userID int64) []*domain.Bill {
	var out []*domain.Bill
	for _, b := range s.bills {
		if b.UserID == userID {
			b := b
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) autoPayCandidates() []*domain.Bill {
	var out []*domain.Bill
	for _, b := range s.bills {
		if b.Status == domain.BillUpcoming && b.AutoPay && b.AutoPayTime != "" {
			b := b
			out = append(out, &b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) rewardByUser(userID int64) *domain.RewardLedger {
	if r, ok := s.rewards[userID]; ok {
		return &r
	}
	return nil
}

func (s *Store) redeemedByUser(userID int64) []*domain.RedeemedReward {
	var out []*domain.RedeemedReward
	for _, r := range s.redeemed {
		if r.UserID == userID {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].RedeemedAt.Equal(out[j].RedeemedAt) {
			return out[i].RedeemedAt.After(out[j].RedeemedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (s *Store) alertsByUser(userID int64) []*domain.Alert {
	var out []*domain.Alert
	for _, a := range s.alerts {
		if a.UserID == userID {
			a := a
			out = append(out, &a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// memTx implements ledger.Tx against the live tables. The Store mutex
// is already held by WithinTx; locking again would deadlock, so all
// access goes through the unlocked helpers.
type memTx struct {
	s *Store
}

func (t *memTx) UserByID(ctx context.Context, id int64) (*domain.User, error) {
	return t.s.userByID(id), nil
}

func (t *memTx) UserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return t.s.userByEmail(email), nil
}

func (t *memTx) AccountByID(ctx context.Context, id int64) (*domain.Account, error) {
	return t.s.accountByID(id), nil
}

func (t *memTx) AccountsByUser(ctx context.Context, userID int64) ([]*domain.Account, error) {
	return t.s.accountsByUser(userID), nil
}

func (t *memTx) TransactionsByUser(ctx context.Context, userID int64) ([]*domain.Transaction, error) {
	return t.s.transactionsByUser(userID), nil
}

func (t *memTx) TransactionsByAccount(ctx context.Context, accountID int64) ([]*domain.Transaction, error) {
	return t.s.transactionsByAccount(accountID), nil
}

func (t *memTx) BillByID(ctx context.Context, billID, userID int64) (*domain.Bill, error) {
	return t.s.billByID(billID, userID), nil
}

func (t *memTx) BillsByUser(ctx context.Context, userID int64) ([]*domain.Bill, error) {
	return t.s.billsByUser(userID), nil
}

func (t *memTx) AutoPayCandidates(ctx context.Context) ([]*domain.Bill, error) {
	return t.s.autoPayCandidates(), nil
}

func (t *memTx) RewardByUser(ctx context.Context, userID int64) (*domain.RewardLedger, error) {
	return t.s.rewardByUser(userID), nil
}

func (t *memTx) RedeemedByUser(ctx context.Context, userID int64) ([]*domain.RedeemedReward, error) {
	return t.s.redeemedByUser(userID), nil
}

func (t *memTx) AlertsByUser(ctx context.Context, userID int64) ([]*domain.Alert, error) {
	return t.s.alertsByUser(userID), nil
}

// The global mutex already gives every unit exclusive access, so the
// *ForUpdate variants reduce to plain reads here.

func (t *memTx) AccountForUpdate(ctx context.Context, id int64) (*domain.Account, error) {
	return t.s.accountByID(id), nil
}

func (t *memTx) BillForUpdate(ctx context.Context, billID, userID int64) (*domain.Bill, error) {
	return t.s.billByID(billID, userID), nil
}

func (t *memTx) RewardForUpdate(ctx context.Context, userID int64) (*domain.RewardLedger, error) {
	return t.s.rewardByUser(userID), nil
}

func (t *memTx) InsertUser(ctx context.Context, u *domain.User) error {
	u.ID = t.s.nextID()
	t.s.users[u.ID] = *u
	return nil
}

func (t *memTx) InsertAccount(ctx context.Context, a *domain.Account) error {
	a.ID = t.s.nextID()
	t.s.accounts[a.ID] = *a
	return nil
}

func (t *memTx) InsertTransaction(ctx context.Context, tr *domain.Transaction) error {
	tr.ID = t.s.nextID()
	t.s.transactions[tr.ID] = *tr
	return nil
}

func (t *memTx) InsertBill(ctx context.Context, b *domain.Bill) error {
	b.ID = t.s.nextID()
	t.s.bills[b.ID] = *b
	return nil
}

func (t *memTx) InsertRedeemedReward(ctx context.Context, r *domain.RedeemedReward) error {
	r.ID = t.s.nextID()
	t.s.redeemed[r.ID] = *r
	return nil
}

func (t *memTx) InsertAlert(ctx context.Context, a *domain.Alert) error {
	a.ID = t.s.nextID()
	t.s.alerts[a.ID] = *a
	return nil
}

func (t *memTx) CreateReward(ctx context.Context, r *domain.RewardLedger) error {
	r.ID = t.s.nextID()
	t.s.rewards[r.UserID] = *r
	return nil
}

func (t *memTx) SetAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	a, ok := t.s.accounts[accountID]
	if !ok {
		return errNoRow("account", accountID)
	}
	a.Balance = balance
	t.s.accounts[accountID] = a
	return nil
}

func (t *memTx) SetBillStatus(ctx context.Context, billID int64, status domain.BillStatus) error {
	b, ok := t.s.bills[billID]
	if !ok {
		return errNoRow("bill", billID)
	}
	b.Status = status
	t.s.bills[billID] = b
	return nil
}

func (t *memTx) SetRewardPoints(ctx context.Context, userID int64, points int64, at time.Time) error {
	r, ok := t.s.rewards[userID]
	if !ok {
		return errNoRow("reward", userID)
	}
	r.Points = points
	r.UpdatedAt = at
	t.s.rewards[userID] = r
	return nil
}

func (t *memTx) UpdateBill(ctx context.Context, b *domain.Bill) error {
	if _, ok := t.s.bills[b.ID]; !ok {
		return errNoRow("bill", b.ID)
	}
	t.s.bills[b.ID] = *b
	return nil
}

func (t *memTx) UpdateAccount(ctx context.Context, a *domain.Account) error {
	cur, ok := t.s.accounts[a.ID]
	if !ok {
		return errNoRow("account", a.ID)
	}
	cur.BankName = a.BankName
	cur.PIN = a.PIN
	t.s.accounts[a.ID] = cur
	return nil
}

func (t *memTx) DeleteBill(ctx context.Context, billID, userID int64) (bool, error) {
	b, ok := t.s.bills[billID]
	if !ok || b.UserID != userID {
		return false, nil
	}
	delete(t.s.bills, billID)
	return true, nil
}

func (t *memTx) DeleteAccount(ctx context.Context, accountID, userID int64) (bool, error) {
	a, ok := t.s.accounts[accountID]
	if !ok || a.UserID != userID {
		return false, nil
	}
	delete(t.s.accounts, accountID)
	for id, tr := range t.s.transactions {
		if tr.AccountID == accountID {
			delete(t.s.transactions, id)
		}
	}
	return true, nil
}

type notFoundError struct {
	table string
	id    int64
}

func (e notFoundError) Error() string {
	return e.table + ": no row with the given id"
}

func errNoRow(table string, id int64) error {
	return notFoundError{table: table, id: id}
}
