package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"

	"storefront-checkout/internal/model"
)

var ErrBreakerOpen = errors.New("gateway circuit breaker open")

type BreakerSettings struct {
	MaxFailures uint32
	OpenTimeout time.Duration
}

type breakingGatewayClient struct {
	next GatewayClient
	cb   *gobreaker.CircuitBreaker[*model.GatewayOrder]
}

// NewBreakingGatewayClient trips after MaxFailures consecutive failures and
// rejects calls without touching the network until OpenTimeout elapses.
func NewBreakingGatewayClient(next GatewayClient, settings BreakerSettings) GatewayClient {
	maxFailures := settings.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	cb := gobreaker.NewCircuitBreaker[*model.GatewayOrder](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			// a cancelled caller says nothing about gateway health
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})

	return &breakingGatewayClient{next: next, cb: cb}
}

func (c *breakingGatewayClient) CreateOrder(ctx context.Context, req *model.GatewayCreateOrderRequest) (*model.GatewayOrder, error) {
	order, err := c.cb.Execute(func() (*model.GatewayOrder, error) {
		return c.next.CreateOrder(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %w", ErrBreakerOpen, err)
	}
	return order, err
}
