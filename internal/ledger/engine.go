package ledger

import (
	"context"
	"time"

	"github.com/finexbank/ledger/internal/categorizer"
	"github.com/rs/zerolog"
)

// Notifier delivers best-effort user notifications. Failures are
// logged and never roll back the mutation they follow; implementations
// live in internal/notify.
type Notifier interface {
	Notify(ctx context.Context, email, subject, body string) error
}

// Engine orchestrates every balance-affecting operation. All financial
// mutations go through Store.WithinTx and the PostEntry primitive, so
// each operation either fully applies or leaves the ledger untouched.
type Engine struct {
	store    Store
	cat      *categorizer.Categorizer
	notifier Notifier
	log      zerolog.Logger

	// Named account-selection policies (swappable via options).
	funding  AccountPolicy
	fallback AccountPolicy

	// now is injectable for tests.
	now func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithNotifier sets the best-effort notifier. Without one, redemption
// notifications are skipped.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithClock overrides the engine's time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithFundingPolicy overrides the funding-account selection policy.
func WithFundingPolicy(p AccountPolicy) Option {
	return func(e *Engine) { e.funding = p }
}

// WithFallbackPolicy overrides the fallback account selection policy.
func WithFallbackPolicy(p AccountPolicy) Option {
	return func(e *Engine) { e.fallback = p }
}

// NewEngine creates an Engine over the given store.
func NewEngine(store Store, cat *categorizer.Categorizer, log zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		cat:      cat,
		log:      log,
		funding:  HighestBalance,
		fallback: FirstCreated,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
