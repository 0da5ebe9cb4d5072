package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"storefront-checkout/internal/client"
	"storefront-checkout/internal/config"
	"storefront-checkout/internal/guard"
	"storefront-checkout/internal/model"
	"storefront-checkout/internal/notify"
	"storefront-checkout/internal/repository"
	"storefront-checkout/internal/signature"
)

const (
	HeaderWebhookSignature = "X-Gateway-Signature"
	HeaderWebhookEventID   = "X-Gateway-Event-Id"
)

// Intent holds what the browser needs to open the checkout widget.
type Intent struct {
	OrderID           string
	GatewayOrderID    string
	Amount            int64
	Currency          string
	KeyID             string
	CheckoutScriptURL string
	Reused            bool
}

type VerifyInput struct {
	OrderID          string
	GatewayOrderID   string
	GatewayPaymentID string
	GatewaySignature string
}

type VerifyResult struct {
	Order            *model.Order
	AlreadyConfirmed bool
}

type PublicConfig struct {
	KeyID             string
	Currency          string
	CheckoutScriptURL string
}

type PaymentService interface {
	CreateIntent(ctx context.Context, userID, orderID string) (*Intent, error)
	Verify(ctx context.Context, userID string, in VerifyInput) (*VerifyResult, error)
	HandleWebhook(ctx context.Context, headers http.Header, body []byte) error
	PublicConfig() PublicConfig
}

type paymentServiceImpl struct {
	db               *gorm.DB
	gatewayClient    client.GatewayClient
	gatewayCfg       config.Gateway
	orderRepo        repository.OrderRepository
	attemptRepo      repository.PaymentAttemptRepository
	webhookEventRepo repository.WebhookEventRepository
	verifyGuard      guard.Guard
	publisher        notify.Publisher
}

func NewPaymentService(
	db *gorm.DB,
	gatewayClient client.GatewayClient,
	gatewayCfg *config.Gateway,
	orderRepo repository.OrderRepository,
	attemptRepo repository.PaymentAttemptRepository,
	webhookEventRepo repository.WebhookEventRepository,
	verifyGuard guard.Guard,
	publisher notify.Publisher,
) PaymentService {
	return &paymentServiceImpl{
		db:               db,
		gatewayClient:    gatewayClient,
		gatewayCfg:       *gatewayCfg,
		orderRepo:        orderRepo,
		attemptRepo:      attemptRepo,
		webhookEventRepo: webhookEventRepo,
		verifyGuard:      verifyGuard,
		publisher:        publisher,
	}
}

func (s *paymentServiceImpl) PublicConfig() PublicConfig {
	return PublicConfig{
		KeyID:             s.gatewayCfg.KeyID,
		Currency:          s.gatewayCfg.Currency,
		CheckoutScriptURL: s.gatewayCfg.CheckoutScriptURL,
	}
}

// CreateIntent opens a gateway payment intent for the order total. An open
// intent on a pending order is reused instead of creating another.
func (s *paymentServiceImpl) CreateIntent(ctx context.Context, userID, orderID string) (*Intent, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	order, err := findOwnedOrder(ctx, s.orderRepo, userID, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case model.OrderConfirmed:
		return nil, ErrAlreadyConfirmed
	case model.OrderCancelled:
		return nil, fmt.Errorf("pay cancelled order: %w", ErrInvalidTransition)
	}

	latest, err := s.attemptRepo.FindLatestByOrder(ctx, order.ID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find latest payment attempt: %w", err)
	}
	if err == nil && order.Status == model.OrderPending &&
		latest.Status == model.AttemptCreated && latest.Amount == order.Total {
		return s.intentFor(order, latest.GatewayOrderID, true), nil
	}

	gwOrder, err := s.gatewayClient.CreateOrder(ctx, &model.GatewayCreateOrderRequest{
		Amount:   order.Total,
		Currency: order.Currency,
		Receipt:  order.ID,
		Notes: model.GatewayNotes{
			"order_id": order.ID,
			"user_id":  order.UserID,
		},
	})
	if err != nil {
		log.Error().Err(err).Str("order_id", order.ID).Msg("gateway create order failed")
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := s.attemptRepo.Create(ctx, tx, &model.PaymentAttempt{
			OrderID:        order.ID,
			GatewayOrderID: gwOrder.ID,
			Amount:         gwOrder.Amount,
			Currency:       strings.ToUpper(gwOrder.Currency),
			Status:         model.AttemptCreated,
		})
		if err != nil {
			return fmt.Errorf("store payment attempt: %w", err)
		}
		return s.orderRepo.SetGatewayOrderID(ctx, tx, order.ID, gwOrder.ID)
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// order left the payable states while the gateway call was in flight
		return nil, fmt.Errorf("record payment intent: %w", ErrInvalidTransition)
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("order_id", order.ID).
		Str("gateway_order_id", gwOrder.ID).
		Int64("amount", gwOrder.Amount).
		Msg("payment intent created")

	return s.intentFor(order, gwOrder.ID, false), nil
}

func (s *paymentServiceImpl) intentFor(order *model.Order, gatewayOrderID string, reused bool) *Intent {
	return &Intent{
		OrderID:           order.ID,
		GatewayOrderID:    gatewayOrderID,
		Amount:            order.Total,
		Currency:          order.Currency,
		KeyID:             s.gatewayCfg.KeyID,
		CheckoutScriptURL: s.gatewayCfg.CheckoutScriptURL,
		Reused:            reused,
	}
}

// Verify is the only caller-driven path to confirmed. Every signature
// problem is reported as ErrInvalidSignature; the detail stays in the log.
func (s *paymentServiceImpl) Verify(ctx context.Context, userID string, in VerifyInput) (*VerifyResult, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}

	logger := log.With().
		Str("user_id", userID).
		Str("order_id", in.OrderID).
		Str("gateway_order_id", in.GatewayOrderID).
		Str("gateway_payment_id", in.GatewayPaymentID).
		Logger()

	if in.OrderID == "" || in.GatewayOrderID == "" || in.GatewayPaymentID == "" || in.GatewaySignature == "" {
		logger.Warn().Msg("verification rejected: missing fields")
		return nil, ErrInvalidSignature
	}

	order, err := findOwnedOrder(ctx, s.orderRepo, userID, in.OrderID)
	if err != nil {
		return nil, err
	}

	if s.verifyGuard != nil {
		release, err := s.verifyGuard.Acquire(ctx, order.ID)
		switch {
		case errors.Is(err, guard.ErrHeld):
			return nil, ErrVerificationInProgress
		case err != nil:
			logger.Warn().Err(err).Msg("verification guard unavailable, continuing without it")
		default:
			defer release()
		}
	}

	if !signature.VerifyPayment([]byte(s.gatewayCfg.KeySecret), in.GatewayOrderID, in.GatewayPaymentID, in.GatewaySignature) {
		logger.Error().Str("order_status", order.Status.String()).Msg("verification rejected: signature mismatch")
		return nil, ErrInvalidSignature
	}

	attempt, err := s.attemptRepo.FindByGatewayOrderID(ctx, in.GatewayOrderID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find payment attempt: %w", err)
	}
	if err != nil || attempt.OrderID != order.ID {
		logger.Error().Msg("verification rejected: gateway order does not belong to this order")
		return nil, ErrInvalidSignature
	}

	c, err := confirmOrder(ctx, s.db, s.orderRepo, s.attemptRepo, s.publisher, order.ID, in.GatewayOrderID, in.GatewayPaymentID)
	if err != nil {
		return nil, err
	}

	return &VerifyResult{Order: c.order, AlreadyConfirmed: c.alreadyConfirmed}, nil
}

// HandleWebhook reconciles provider-pushed payment events. Business conflicts
// are logged and acknowledged; only infrastructure errors ask for redelivery.
func (s *paymentServiceImpl) HandleWebhook(ctx context.Context, headers http.Header, body []byte) error {
	if !signature.Verify([]byte(s.gatewayCfg.WebhookSecret), body, headers.Get(HeaderWebhookSignature)) {
		log.Warn().Int("body_bytes", len(body)).Msg("webhook rejected: signature mismatch")
		return ErrInvalidSignature
	}

	var event model.GatewayWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return validationError("body", "malformed webhook payload")
	}

	eventID := headers.Get(HeaderWebhookEventID)
	if eventID == "" {
		eventID = event.Event + ":" + event.Payload.Payment.Entity.ID + ":" + event.Payload.Order.Entity.ID
	}

	seen, err := s.webhookEventRepo.Exists(ctx, eventID)
	if err != nil {
		return fmt.Errorf("check webhook event: %w", err)
	}
	if seen {
		log.Debug().Str("event_id", eventID).Msg("duplicate webhook event")
		return nil
	}

	switch event.Event {
	case model.EventPaymentCaptured, model.EventOrderPaid:
		err = s.handlePaymentCaptured(ctx, &event)
	case model.EventPaymentFailed:
		err = s.handlePaymentFailed(ctx, &event)
	default:
		log.Debug().Str("event", event.Event).Msg("ignoring webhook event")
	}
	if err != nil {
		return err
	}

	if _, err := s.webhookEventRepo.MarkProcessed(ctx, nil, eventID, event.Event); err != nil {
		return fmt.Errorf("mark webhook event processed: %w", err)
	}
	return nil
}

func (s *paymentServiceImpl) attemptForEvent(ctx context.Context, event *model.GatewayWebhookEvent) (*model.PaymentAttempt, error) {
	gatewayOrderID := event.Payload.Payment.Entity.OrderID
	if gatewayOrderID == "" {
		gatewayOrderID = event.Payload.Order.Entity.ID
	}
	if gatewayOrderID == "" {
		log.Warn().Str("event", event.Event).Msg("webhook without gateway order id")
		return nil, nil
	}

	attempt, err := s.attemptRepo.FindByGatewayOrderID(ctx, gatewayOrderID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warn().Str("gateway_order_id", gatewayOrderID).Msg("webhook for unknown payment attempt")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find payment attempt: %w", err)
	}
	return attempt, nil
}

func (s *paymentServiceImpl) handlePaymentCaptured(ctx context.Context, event *model.GatewayWebhookEvent) error {
	attempt, err := s.attemptForEvent(ctx, event)
	if err != nil || attempt == nil {
		return err
	}

	order, err := s.orderRepo.FindByID(ctx, nil, attempt.OrderID)
	if err != nil {
		return fmt.Errorf("find order: %w", err)
	}

	payment := event.Payload.Payment.Entity
	amount, currency := payment.Amount, payment.Currency
	if amount == 0 {
		amount, currency = event.Payload.Order.Entity.Amount, event.Payload.Order.Entity.Currency
	}

	logger := log.With().
		Str("order_id", order.ID).
		Str("gateway_order_id", attempt.GatewayOrderID).
		Str("gateway_payment_id", payment.ID).
		Logger()

	if payment.ID == "" {
		logger.Error().Msg("captured webhook without payment id, not confirming")
		return nil
	}
	if amount != order.Total || !strings.EqualFold(currency, order.Currency) {
		logger.Error().
			Int64("captured", amount).
			Int64("expected", order.Total).
			Str("currency", currency).
			Msg("captured amount does not match order total, not confirming")
		return nil
	}

	_, err = confirmOrder(ctx, s.db, s.orderRepo, s.attemptRepo, s.publisher, order.ID, attempt.GatewayOrderID, payment.ID)
	if errors.Is(err, ErrAlreadyConfirmed) || errors.Is(err, ErrInvalidTransition) {
		// logged for manual review inside confirmOrder
		return nil
	}
	return err
}

func (s *paymentServiceImpl) handlePaymentFailed(ctx context.Context, event *model.GatewayWebhookEvent) error {
	attempt, err := s.attemptForEvent(ctx, event)
	if err != nil || attempt == nil {
		return err
	}

	order, err := s.orderRepo.FindByID(ctx, nil, attempt.OrderID)
	if err != nil {
		return fmt.Errorf("find order: %w", err)
	}

	reason := event.Payload.Payment.Entity.ErrorDescription
	if reason == "" {
		reason = "payment failed"
	}

	_, err = failAttempt(ctx, s.db, s.orderRepo, s.attemptRepo, s.publisher, attempt, order.UserID, reason)
	return err
}
