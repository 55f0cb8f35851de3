package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type recordingSender struct {
	mu       sync.Mutex
	emails   []string
	failures int // fail the first n deliveries
	done     chan struct{}
}

func (s *recordingSender) Notify(ctx context.Context, email, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("relay unavailable")
	}
	s.emails = append(s.emails, email)
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	return nil
}

func TestQueueDeliversAsynchronously(t *testing.T) {
	sender := &recordingSender{done: make(chan struct{})}
	done := sender.done
	q := NewQueue(10, sender, zerolog.Nop())

	ctx := context.Background()
	if err := q.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer q.Stop(ctx)

	if err := q.Notify(ctx, "alice@example.com", "Hello", "body"); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery never happened")
	}

	sender.mu.Lock()
	defer sender.mu.Unlock()
	if len(sender.emails) != 1 || sender.emails[0] != "alice@example.com" {
		t.Errorf("delivered = %v", sender.emails)
	}
}

func TestQueueRetriesFailedDelivery(t *testing.T) {
	sender := &recordingSender{failures: 1, done: make(chan struct{})}
	done := sender.done
	q := NewQueue(10, sender, zerolog.Nop())

	ctx := context.Background()
	if err := q.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer q.Stop(ctx)

	if err := q.Notify(ctx, "alice@example.com", "Hello", "body"); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	// First attempt fails; the backoff redelivery should land.
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("retry never delivered")
	}
}

func TestQueueRejectsAfterStop(t *testing.T) {
	q := NewQueue(1, &recordingSender{}, zerolog.Nop())
	ctx := context.Background()
	if err := q.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := q.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := q.Notify(ctx, "alice@example.com", "Hello", "body"); err == nil {
		t.Fatal("Notify succeeded on closed queue")
	}
	// Repeat Stop is a no-op.
	if err := q.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}
