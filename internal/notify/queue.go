package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sender is the synchronous delivery half a Queue drives.
type Sender interface {
	Notify(ctx context.Context, email, subject, body string) error
}

type message struct {
	email   string
	subject string
	body    string
	retries int
}

// Queue decouples notification delivery from the request path using a
// buffered channel and a small worker pool. It is safe for concurrent
// use and suitable for single-instance deployments; a multi-instance
// deployment would hand messages to a real broker instead.
//
// Queue itself implements the engine's notifier interface: Notify
// enqueues and returns immediately.
type Queue struct {
	sender    Sender
	log       zerolog.Logger
	msgChan   chan message
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	closed    bool
}

const queueWorkers = 2

// maxDeliveryRetries bounds redelivery of a failing message.
const maxDeliveryRetries = 3

// NewQueue creates a queue in front of sender. bufferSize determines
// how many messages can be pending before Notify blocks.
func NewQueue(bufferSize int, sender Sender, log zerolog.Logger) *Queue {
	return &Queue{
		sender:    sender,
		log:       log,
		msgChan:   make(chan message, bufferSize),
		closeChan: make(chan struct{}),
	}
}

// Notify enqueues a message for asynchronous delivery.
func (q *Queue) Notify(ctx context.Context, email, subject, body string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("Notify: queue is closed")
	}

	select {
	case q.msgChan <- message{email: email, subject: subject, body: body}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("Notify: queue is closed")
	}
}

// Start launches the delivery workers. It returns immediately; workers
// run until ctx is cancelled or Stop is called.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("Start: queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < queueWorkers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case msg := <-q.msgChan:
			q.deliver(ctx, msg)
		}
	}
}

// deliver attempts one delivery and re-enqueues with linear backoff on
// failure, dropping the message once retries are exhausted.
func (q *Queue) deliver(ctx context.Context, msg message) {
	err := q.sender.Notify(ctx, msg.email, msg.subject, msg.body)
	if err == nil {
		return
	}

	if msg.retries >= maxDeliveryRetries {
		q.log.Warn().Err(err).
			Str("email", msg.email).
			Str("subject", msg.subject).
			Msg("notification dropped after retries")
		return
	}

	msg.retries++
	backoff := time.Duration(msg.retries) * time.Second
	time.AfterFunc(backoff, func() {
		q.mu.RLock()
		defer q.mu.RUnlock()
		if q.closed {
			return
		}
		select {
		case q.msgChan <- msg:
		default:
			q.log.Warn().Str("email", msg.email).Msg("notification dropped: queue full")
		}
	})
}

// Stop closes the queue and waits for in-flight deliveries to finish
// or ctx to expire.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
