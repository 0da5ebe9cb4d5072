package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrPaymentCancelled = errors.New("payment cancelled by user")
	ErrPaymentInFlight  = errors.New("payment already in progress for this order")
)

// SubmitFunc receives the completion verbatim, normally by posting it to the
// verification endpoint.
type SubmitFunc func(ctx context.Context, completion Completion) error

type Collector struct {
	loader *Loader

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func NewCollector(loader *Loader) *Collector {
	return &Collector{
		loader:   loader,
		inFlight: make(map[string]struct{}),
	}
}

// Pay opens the widget for checkout and submits the completion. The order
// stays untouched on dismissal and the same intent can be paid again.
func (c *Collector) Pay(ctx context.Context, checkout Checkout, submit SubmitFunc) error {
	if !c.begin(checkout.OrderID) {
		return ErrPaymentInFlight
	}
	defer c.end(checkout.OrderID)

	widget, err := c.loader.Ensure(ctx)
	if err != nil {
		return err
	}

	completion, err := widget.Open(ctx, checkout)
	if errors.Is(err, ErrDismissed) {
		return ErrPaymentCancelled
	}
	if err != nil {
		return fmt.Errorf("checkout widget: %w", err)
	}

	return submit(ctx, *completion)
}

func (c *Collector) begin(orderID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[orderID]; busy {
		return false
	}
	c.inFlight[orderID] = struct{}{}
	return true
}

func (c *Collector) end(orderID string) {
	c.mu.Lock()
	delete(c.inFlight, orderID)
	c.mu.Unlock()
}
