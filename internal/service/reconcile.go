package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"storefront-checkout/internal/model"
	"storefront-checkout/internal/notify"
	"storefront-checkout/internal/repository"
)

type confirmation struct {
	order            *model.Order
	alreadyConfirmed bool
}

// confirmOrder is shared by signature verification and the provider webhook.
// The conditional update decides the single winner; only the winner publishes.
func confirmOrder(
	ctx context.Context,
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	attemptRepo repository.PaymentAttemptRepository,
	publisher notify.Publisher,
	orderID, gatewayOrderID, gatewayPaymentID string,
) (*confirmation, error) {
	var changed bool
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		changed, err = orderRepo.MarkConfirmed(ctx, tx, orderID, gatewayOrderID, gatewayPaymentID)
		if err != nil {
			return fmt.Errorf("mark order confirmed: %w", err)
		}
		if !changed {
			return nil
		}
		if err := attemptRepo.MarkPaid(ctx, tx, gatewayOrderID, gatewayPaymentID); err != nil {
			return fmt.Errorf("mark attempt paid: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order, err := orderRepo.FindByID(ctx, nil, orderID)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}

	logger := log.With().
		Str("order_id", orderID).
		Str("gateway_order_id", gatewayOrderID).
		Str("gateway_payment_id", gatewayPaymentID).
		Logger()

	if changed {
		logger.Info().Msg("order confirmed")
		publisher.Publish(notify.Event{
			Name:     notify.EventOrderConfirmed,
			UserID:   order.UserID,
			OrderID:  order.ID,
			Amount:   order.Total,
			Currency: order.Currency,
		})
		return &confirmation{order: order}, nil
	}

	switch {
	case order.Status == model.OrderConfirmed && order.GatewayPaymentID == gatewayPaymentID:
		logger.Debug().Msg("order already confirmed by this payment")
		return &confirmation{order: order, alreadyConfirmed: true}, nil
	case order.Status == model.OrderConfirmed:
		logger.Error().
			Str("confirmed_payment_id", order.GatewayPaymentID).
			Msg("second payment for confirmed order, needs refund review")
		return nil, ErrAlreadyConfirmed
	case order.Status == model.OrderCancelled:
		logger.Error().Msg("valid payment for cancelled order, needs refund review")
		return nil, fmt.Errorf("confirm cancelled order: %w", ErrInvalidTransition)
	default:
		return nil, fmt.Errorf("confirm %s order: %w", order.Status, ErrInvalidTransition)
	}
}

// failAttempt marks an open attempt failed and moves a pending order to failed.
// It reports whether the order status changed.
func failAttempt(
	ctx context.Context,
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	attemptRepo repository.PaymentAttemptRepository,
	publisher notify.Publisher,
	attempt *model.PaymentAttempt,
	userID, reason string,
) (bool, error) {
	var changed bool
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := attemptRepo.MarkFailed(ctx, tx, attempt.GatewayOrderID, reason); err != nil {
			return fmt.Errorf("mark attempt failed: %w", err)
		}

		var err error
		changed, err = orderRepo.Transition(ctx, tx, attempt.OrderID, model.OrderFailed, map[string]interface{}{
			"failure_reason": reason,
		})
		if err != nil {
			return fmt.Errorf("mark order failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if changed {
		log.Info().
			Str("order_id", attempt.OrderID).
			Str("gateway_order_id", attempt.GatewayOrderID).
			Str("reason", reason).
			Msg("payment failed")
		publisher.Publish(notify.Event{Name: notify.EventOrderFailed, UserID: userID, OrderID: attempt.OrderID})
	}

	return changed, nil
}
