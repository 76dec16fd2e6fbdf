// Package notify delivers best-effort notifications when a new
// characteristic is synthesized.
//
// Delivery is fire-and-forget behind an explicit bounded queue: the
// caller enqueues and moves on, a single worker retries with backoff,
// and a notification that exhausts its attempts is dead-lettered to the
// log. Delivery failure never reaches the caller.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mindmirror/mindmirror/internal/trait"
)

// Notification announces one newly synthesized characteristic.
type Notification struct {
	UserID        uuid.UUID
	Kind          trait.Kind
	EvidenceCount int
}

// Notifier delivers one notification. Implementations talk to the
// external channel (bot API, webhook); the dispatcher owns retries.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Func adapts a function to the Notifier interface.
type Func func(ctx context.Context, n Notification) error

// Notify calls f.
func (f Func) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Config holds dispatcher settings. The zero value is usable.
type Config struct {
	// QueueSize bounds the pending queue. Default 64.
	QueueSize int
	// MaxAttempts per notification. Default 3.
	MaxAttempts int
	// RetryInterval is the initial backoff between attempts. Default 1s.
	RetryInterval time.Duration
	// SendTimeout bounds one delivery attempt. Default 10s.
	SendTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = time.Second
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	return c
}

// Dispatcher owns the notification queue and its worker goroutine.
//
// Dispatcher is safe for concurrent use by multiple goroutines.
type Dispatcher struct {
	notifier Notifier
	cfg      Config
	logger   *slog.Logger

	queue chan Notification
	done  chan struct{}
	wg    sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewDispatcher creates a dispatcher and starts its worker.
func NewDispatcher(notifier Notifier, cfg Config, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		logger:   logger,
		queue:    make(chan Notification, cfg.withDefaults().QueueSize),
		done:     make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Enqueue submits a notification without blocking. When the queue is
// full the notification is dropped and dead-lettered to the log;
// notifications are best-effort by contract.
//
// The mutex is held across the send so a notification cannot land in
// the queue after Close has started its final drain; every drop is
// dead-lettered, never silent.
func (d *Dispatcher) Enqueue(n Notification) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.deadLetter(n, "dispatcher closed")
		return
	}
	select {
	case d.queue <- n:
		d.mu.Unlock()
	default:
		d.mu.Unlock()
		d.deadLetter(n, "queue full")
	}
}

// Close stops the worker after draining already-queued notifications.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	close(d.done)
	d.wg.Wait()
}

// run is the worker loop.
func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case n := <-d.queue:
			d.deliver(n)
		case <-d.done:
			// Drain what is already queued, then stop.
			for {
				select {
				case n := <-d.queue:
					d.deliver(n)
				default:
					return
				}
			}
		}
	}
}

// deliver attempts one notification with bounded retries.
func (d *Dispatcher) deliver(n Notification) {
	delay := d.cfg.RetryInterval
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
		err := d.notifier.Notify(ctx, n)
		cancel()

		if err == nil {
			d.logger.Debug("notification delivered",
				"user_id", n.UserID,
				"kind", n.Kind,
				"attempts", attempt,
			)
			return
		}

		d.logger.Warn("notification attempt failed",
			"user_id", n.UserID,
			"kind", n.Kind,
			"attempt", attempt,
			"error", err,
		)

		if attempt < d.cfg.MaxAttempts {
			select {
			case <-time.After(delay):
			case <-d.done:
				// Shutting down: one final immediate attempt budget only.
			}
			delay *= 2
		}
	}

	d.deadLetter(n, "attempts exhausted")
}

// deadLetter logs a permanently failed notification.
func (d *Dispatcher) deadLetter(n Notification, reason string) {
	d.logger.Error("notification dead-lettered",
		"user_id", n.UserID,
		"kind", n.Kind,
		"evidence_count", n.EvidenceCount,
		"reason", reason,
	)
}
