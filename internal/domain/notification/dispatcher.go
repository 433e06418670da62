package notification

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/your-org/marketplace-api/internal/config"
	"golang.org/x/sync/errgroup"
)

// Stats is a snapshot of dispatcher counters
type Stats struct {
	Enqueued  int64 `json:"enqueued"`
	Delivered int64 `json:"delivered"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
}

// Dispatcher queues notifications and delivers them from a fixed pool of
// workers. Enqueueing never blocks: when the queue is full the event is
// dropped and logged.
type Dispatcher struct {
	sink        Sink
	recipients  RecipientResolver
	logger      *logrus.Logger
	workers     int
	sendTimeout time.Duration

	queue  chan event
	mu     sync.RWMutex
	closed bool

	group  *errgroup.Group
	cancel context.CancelFunc

	enqueued  atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewDispatcher creates a dispatcher; call Start to begin delivering
func NewDispatcher(sink Sink, recipients RecipientResolver, logger *logrus.Logger, cfg config.NotificationConfig) *Dispatcher {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize < 1 {
		queueSize = 1
	}

	return &Dispatcher{
		sink:        sink,
		recipients:  recipients,
		logger:      logger,
		workers:     workers,
		sendTimeout: cfg.SendTimeout,
		queue:       make(chan event, queueSize),
	}
}

// Start launches the worker pool. Workers exit when the queue is closed by
// Shutdown or when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)
	d.group = group
	d.cancel = cancel

	for i := 0; i < d.workers; i++ {
		worker := i
		group.Go(func() error {
			d.run(ctx, worker)
			return nil
		})
	}

	d.logger.WithField("workers", d.workers).Info("Notification dispatcher started")
}

// Shutdown stops accepting events, drains what is queued and waits for the
// workers. If ctx expires first, in-flight deliveries are cancelled.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	if d.group == nil {
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- d.group.Wait() }()

	select {
	case err := <-done:
		d.cancel()
		return err
	case <-ctx.Done():
		d.cancel()
		<-done
		d.dropRemaining()
		return fmt.Errorf("notification drain interrupted: %w", ctx.Err())
	}
}

// dropRemaining discards what the stopped workers left in the closed queue
func (d *Dispatcher) dropRemaining() {
	left := 0
	for ev := range d.queue {
		left++
		d.dropped.Add(1)
		d.logEvent(ev).Warn("Notification dropped: shutdown deadline exceeded")
	}
	if left > 0 {
		d.logger.WithField("dropped", left).Warn("Notification queue abandoned at shutdown")
	}
}

// Stats returns the current counters
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Enqueued:  d.enqueued.Load(),
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}

// NotifyOrderConfirmed queues an order confirmation for the order owner
func (d *Dispatcher) NotifyOrderConfirmed(userID uint, order OrderSummary) {
	d.enqueue(event{kind: KindOrderConfirmed, userID: userID, order: order})
}

// NotifyOrderStatusChanged queues a status change notice for the order owner
func (d *Dispatcher) NotifyOrderStatusChanged(userID uint, order OrderSummary) {
	d.enqueue(event{kind: KindOrderStatusChanged, userID: userID, order: order})
}

// NotifyWelcome queues the activation email for a new account
func (d *Dispatcher) NotifyWelcome(userID uint, activationURL string) {
	d.enqueue(event{kind: KindWelcome, userID: userID, link: activationURL})
}

// NotifyPasswordReset queues a password reset link
func (d *Dispatcher) NotifyPasswordReset(userID uint, resetURL string) {
	d.enqueue(event{kind: KindPasswordReset, userID: userID, link: resetURL})
}

func (d *Dispatcher) enqueue(ev event) {
	ev.enqueuedAt = time.Now()

	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.dropped.Add(1)
		d.logEvent(ev).Warn("Notification dropped: dispatcher closed")
		return
	}

	select {
	case d.queue <- ev:
		d.enqueued.Add(1)
	default:
		d.dropped.Add(1)
		d.logEvent(ev).Warn("Notification dropped: queue full")
	}
}

func (d *Dispatcher) run(ctx context.Context, worker int) {
	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(ctx, worker, ev)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, worker int, ev event) {
	entry := d.logEvent(ev).WithField("worker", worker)

	defer func() {
		if r := recover(); r != nil {
			d.failed.Add(1)
			entry.WithField("panic", r).Error("Notification sink panicked")
		}
	}()

	if d.sendTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
	}

	to, err := d.recipients.ResolveRecipient(ctx, ev.userID)
	if err != nil {
		d.failed.Add(1)
		entry.WithError(err).Error("Failed to resolve notification recipient")
		return
	}

	switch ev.kind {
	case KindOrderConfirmed:
		err = d.sink.NotifyOrderConfirmed(ctx, to, ev.order)
	case KindOrderStatusChanged:
		err = d.sink.NotifyOrderStatusChanged(ctx, to, ev.order)
	case KindWelcome:
		err = d.sink.NotifyWelcome(ctx, to, ev.link)
	case KindPasswordReset:
		err = d.sink.NotifyPasswordReset(ctx, to, ev.link)
	default:
		err = fmt.Errorf("unknown notification kind %q", ev.kind)
	}

	if err != nil {
		d.failed.Add(1)
		entry.WithError(err).Error("Notification delivery failed")
		return
	}

	d.delivered.Add(1)
	entry.WithField("latency", time.Since(ev.enqueuedAt).String()).Debug("Notification delivered")
}

func (d *Dispatcher) logEvent(ev event) *logrus.Entry {
	fields := logrus.Fields{
		"kind":    ev.kind,
		"user_id": ev.userID,
	}
	if ev.order.OrderID != 0 {
		fields["order_id"] = ev.order.OrderID
		fields["order_number"] = ev.order.OrderNumber
	}
	return d.logger.WithFields(fields)
}
