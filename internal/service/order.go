package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"storefront-checkout/internal/model"
	"storefront-checkout/internal/notify"
	"storefront-checkout/internal/repository"
	"storefront-checkout/internal/validation"
)

type CheckoutInput struct {
	Shipping              model.Address
	BillingSameAsShipping bool
	Billing               model.Address
}

type OrderService interface {
	Materialize(ctx context.Context, userID string, lines []SnapshotLine, input CheckoutInput) (*model.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (*model.Order, error)
	ListOrders(ctx context.Context, userID string) ([]*model.Order, error)
	Cancel(ctx context.Context, userID, orderID string) (*model.Order, error)
	ReportPaymentFailure(ctx context.Context, userID, orderID, gatewayOrderID, reason string) (*model.Order, error)
}

type orderServiceImpl struct {
	db          *gorm.DB
	orderRepo   repository.OrderRepository
	attemptRepo repository.PaymentAttemptRepository
	publisher   notify.Publisher
	taxRate     decimal.Decimal
	currency    string
}

func NewOrderService(
	db *gorm.DB,
	orderRepo repository.OrderRepository,
	attemptRepo repository.PaymentAttemptRepository,
	publisher notify.Publisher,
	taxRate decimal.Decimal,
	currency string,
) OrderService {
	return &orderServiceImpl{
		db:          db,
		orderRepo:   orderRepo,
		attemptRepo: attemptRepo,
		publisher:   publisher,
		taxRate:     taxRate,
		currency:    currency,
	}
}

// ValidateCheckoutInput collects every address field error. Billing is only
// checked when it differs from shipping.
func ValidateCheckoutInput(input CheckoutInput) error {
	fields := map[string]string{}
	for k, v := range validation.Address(input.Shipping, "") {
		fields[k] = v
	}
	if !input.BillingSameAsShipping {
		for k, v := range validation.Address(input.Billing, "billing.") {
			fields[k] = v
		}
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Materialize writes a pending order and its lines in one transaction. The
// cart is left as is.
func (s *orderServiceImpl) Materialize(ctx context.Context, userID string, lines []SnapshotLine, input CheckoutInput) (*model.Order, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	if err := ValidateCheckoutInput(input); err != nil {
		return nil, err
	}

	orderID := uuid.NewString()
	orderLines := make([]*model.OrderLine, 0, len(lines))
	var subtotal int64
	for _, l := range lines {
		if l.Quantity < 1 {
			return nil, validationError("quantity", "must be at least 1")
		}
		if l.Currency != "" && l.Currency != s.currency {
			return nil, validationError("currency", fmt.Sprintf("product %s is not sold in %s", l.ProductID, s.currency))
		}
		subtotal += l.UnitPrice * int64(l.Quantity)
		orderLines = append(orderLines, &model.OrderLine{
			ID:          uuid.NewString(),
			OrderID:     orderID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Size:        l.Size,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
		})
	}

	totals := ComputeTotals(subtotal, s.taxRate)
	order := &model.Order{
		ID:                    orderID,
		UserID:                userID,
		Subtotal:              totals.Subtotal,
		Tax:                   totals.Tax,
		Total:                 totals.Total,
		Currency:              s.currency,
		Status:                model.OrderPending,
		Shipping:              validation.Normalize(input.Shipping),
		BillingSameAsShipping: input.BillingSameAsShipping,
	}
	if !input.BillingSameAsShipping {
		order.Billing = validation.Normalize(input.Billing)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("store order in db: %w", err)
		}
		if err := s.orderRepo.CreateOrderLines(ctx, tx, orderLines); err != nil {
			return fmt.Errorf("store order lines in db: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order.Lines = make([]model.OrderLine, 0, len(orderLines))
	for _, l := range orderLines {
		order.Lines = append(order.Lines, *l)
	}

	log.Info().
		Str("order_id", order.ID).
		Str("user_id", userID).
		Int64("total", order.Total).
		Int("lines", len(orderLines)).
		Msg("order created")

	return order, nil
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, userID, orderID string) (*model.Order, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	return findOwnedOrder(ctx, s.orderRepo, userID, orderID)
}

func (s *orderServiceImpl) ListOrders(ctx context.Context, userID string) ([]*model.Order, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	orders, err := s.orderRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// Cancel is idempotent for an already cancelled order.
func (s *orderServiceImpl) Cancel(ctx context.Context, userID, orderID string) (*model.Order, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	if _, err := findOwnedOrder(ctx, s.orderRepo, userID, orderID); err != nil {
		return nil, err
	}

	changed, err := s.orderRepo.Transition(ctx, nil, orderID, model.OrderCancelled, map[string]interface{}{
		"cancelled_at": time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("cancel order: %w", err)
	}

	order, err := s.orderRepo.FindByID(ctx, nil, orderID)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}

	if !changed && order.Status != model.OrderCancelled {
		return nil, fmt.Errorf("cancel %s order: %w", order.Status, ErrInvalidTransition)
	}
	if changed {
		log.Info().Str("order_id", orderID).Str("user_id", userID).Msg("order cancelled")
		s.publisher.Publish(notify.Event{Name: notify.EventOrderCancelled, UserID: userID, OrderID: orderID})
	}

	return order, nil
}

// ReportPaymentFailure records a provider-reported failure for one attempt.
// A late report against a confirmed or cancelled order leaves it untouched.
func (s *orderServiceImpl) ReportPaymentFailure(ctx context.Context, userID, orderID, gatewayOrderID, reason string) (*model.Order, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	if _, err := findOwnedOrder(ctx, s.orderRepo, userID, orderID); err != nil {
		return nil, err
	}

	attempt, err := s.attemptRepo.FindByGatewayOrderID(ctx, gatewayOrderID)
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && attempt.OrderID != orderID) {
		return nil, fmt.Errorf("payment attempt %s: %w", gatewayOrderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find payment attempt: %w", err)
	}

	if reason == "" {
		reason = "payment failed"
	}
	if _, err := failAttempt(ctx, s.db, s.orderRepo, s.attemptRepo, s.publisher, attempt, userID, reason); err != nil {
		return nil, err
	}

	order, err := s.orderRepo.FindByID(ctx, nil, orderID)
	if err != nil {
		return nil, fmt.Errorf("reload order: %w", err)
	}
	return order, nil
}

func findOwnedOrder(ctx context.Context, orderRepo repository.OrderRepository, userID, orderID string) (*model.Order, error) {
	order, err := orderRepo.FindByIDForUser(ctx, userID, orderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return order, nil
}
