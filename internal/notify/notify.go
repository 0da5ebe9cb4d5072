// Package notify delivers fire-and-forget domain events to an external
// collaborator. Delivery never blocks or fails the mutation that produced it.
package notify

import (
	"context"
	"time"
)

const (
	EventCartItemAdded       = "cart.item_added"
	EventCartQuantityChanged = "cart.quantity_changed"
	EventCartItemRemoved     = "cart.item_removed"
	EventCartCleared         = "cart.cleared"
	EventOrderConfirmed      = "order.confirmed"
	EventOrderFailed         = "order.failed"
	EventOrderCancelled      = "order.cancelled"
)

type Event struct {
	Name      string    `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id,omitempty"`
	Size      int       `json:"size,omitempty"`
	Quantity  int       `json:"quantity"`
	OrderID   string    `json:"order_id,omitempty"`
	Amount    int64     `json:"amount,omitempty"`
	Currency  string    `json:"currency,omitempty"`
}

// Notifier performs one delivery attempt.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
	Close() error
}

// Publisher is what services depend on: enqueue and move on.
type Publisher interface {
	Publish(event Event)
}

type noopNotifier struct{}

func NewNoopNotifier() Notifier {
	return noopNotifier{}
}

func (noopNotifier) Notify(context.Context, Event) error { return nil }

func (noopNotifier) Close() error { return nil }
