package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"storefront-checkout/internal/model"
)

type CheckoutResult struct {
	Order  *model.Order
	Intent *Intent
}

type CheckoutService interface {
	// Checkout snapshots the cart, materializes the order, opens the payment
	// intent and only then removes the ordered lines from the cart. When the gateway is unavailable
	// the result still carries the pending order so the client can retry the
	// intent for it.
	Checkout(ctx context.Context, userID string, input CheckoutInput) (*CheckoutResult, error)
}

type checkoutServiceImpl struct {
	cartService    CartService
	orderService   OrderService
	paymentService PaymentService
}

func NewCheckoutService(cartService CartService, orderService OrderService, paymentService PaymentService) CheckoutService {
	return &checkoutServiceImpl{
		cartService:    cartService,
		orderService:   orderService,
		paymentService: paymentService,
	}
}

func (s *checkoutServiceImpl) Checkout(ctx context.Context, userID string, input CheckoutInput) (*CheckoutResult, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	snapshot, err := s.cartService.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(snapshot) == 0 {
		return nil, ErrEmptyCart
	}

	order, err := s.orderService.Materialize(ctx, userID, snapshot, input)
	if err != nil {
		return nil, err
	}

	intent, err := s.paymentService.CreateIntent(ctx, userID, order.ID)
	if err != nil {
		return &CheckoutResult{Order: order}, err
	}

	if _, err := s.cartService.RemoveOrdered(ctx, userID, snapshot); err != nil {
		// the order is already payable; a stale cart is only cosmetic
		log.Warn().Err(err).Str("user_id", userID).Str("order_id", order.ID).Msg("remove ordered lines after checkout failed")
	}

	return &CheckoutResult{Order: order, Intent: intent}, nil
}
