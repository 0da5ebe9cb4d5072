package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Dispatcher queues events on a bounded channel drained by one worker.
// A full queue drops the event with a warning.
type Dispatcher struct {
	notifier Notifier
	queue    chan Event
	timeout  time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(notifier Notifier, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		notifier: notifier,
		queue:    make(chan Event, queueSize),
		timeout:  5 * time.Second,
	}
}

func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.run()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event Event) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.notifier.Notify(ctx, event); err != nil {
		log.Warn().Err(err).
			Str("event", event.Name).
			Str("user_id", event.UserID).
			Str("order_id", event.OrderID).
			Msg("notification delivery failed")
	}
}

func (d *Dispatcher) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		log.Warn().Str("event", event.Name).Msg("dispatcher closed, dropping notification")
		return
	}

	select {
	case d.queue <- event:
	default:
		log.Warn().Str("event", event.Name).Str("user_id", event.UserID).Msg("notification queue full, dropping event")
	}
}

// Close stops accepting events and waits for the queue to drain or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return d.notifier.Close()
}
