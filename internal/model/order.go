package model

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderConfirmed OrderStatus = "confirmed"
	OrderFailed    OrderStatus = "failed"
	OrderCancelled OrderStatus = "cancelled"
)

var allowedTransitions = map[OrderStatus]map[OrderStatus]bool{
	OrderPending: {
		OrderConfirmed: true,
		OrderFailed:    true,
		OrderCancelled: true,
	},
	// a later attempt may still succeed after a failed one
	OrderFailed: {
		OrderConfirmed: true,
		OrderCancelled: true,
	},
	OrderConfirmed: {},
	OrderCancelled: {},
}

func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderConfirmed || s == OrderCancelled
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return allowedTransitions[s][next]
}

// SourcesFor returns every status from which next is reachable.
func SourcesFor(next OrderStatus) []OrderStatus {
	var from []OrderStatus
	for _, s := range []OrderStatus{OrderPending, OrderFailed, OrderConfirmed, OrderCancelled} {
		if s.CanTransitionTo(next) {
			from = append(from, s)
		}
	}
	return from
}
