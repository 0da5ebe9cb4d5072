package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
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
	testKeySecret     = "test_key_secret"
	testWebhookSecret = "test_webhook_secret"
	testUser          = "user-1"
	testProduct       = "runner-x"
)

type fakeGateway struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeGateway) CreateOrder(_ context.Context, req *model.GatewayCreateOrderRequest) (*model.GatewayOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &model.GatewayOrder{
		ID:       fmt.Sprintf("order_gw_%d", f.calls),
		Amount:   req.Amount,
		Currency: req.Currency,
		Status:   "created",
		Receipt:  req.Receipt,
	}, nil
}

func (f *fakeGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordingPublisher) Publish(e notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *recordingPublisher) count(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Name == name {
			n++
		}
	}
	return n
}

func (p *recordingPublisher) last() notify.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

// recordingGuard remembers every key it was asked to acquire.
type recordingGuard struct {
	guard.Guard
	mu   sync.Mutex
	keys []string
}

func (g *recordingGuard) Acquire(ctx context.Context, key string) (func(), error) {
	g.mu.Lock()
	g.keys = append(g.keys, key)
	g.mu.Unlock()
	return g.Guard.Acquire(ctx, key)
}

func (g *recordingGuard) acquired() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.keys...)
}

type testEnv struct {
	db        *gorm.DB
	gateway   *fakeGateway
	publisher *recordingPublisher
	guard     *recordingGuard

	orderRepo   repository.OrderRepository
	attemptRepo repository.PaymentAttemptRepository

	carts    CartService
	orders   OrderService
	payments PaymentService
	checkout CheckoutService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := client.InitDBClient("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	require.NoError(t, err)
	require.NoError(t, db.Create(&model.Product{ID: testProduct, Name: "Runner X", Brand: "Acme", Price: 1000, Currency: "INR", Active: true}).Error)
	require.NoError(t, db.Create(&model.Product{ID: "trail-y", Name: "Trail Y", Brand: "Acme", Price: 2500, Currency: "INR", Active: true}).Error)

	env := &testEnv{
		db:          db,
		gateway:     &fakeGateway{},
		publisher:   &recordingPublisher{},
		guard:       &recordingGuard{Guard: guard.NewLocalGuard()},
		orderRepo:   repository.NewOrderRepository(db),
		attemptRepo: repository.NewPaymentAttemptRepository(db),
	}

	rate := decimal.RequireFromString("0.18")
	gatewayCfg := &config.Gateway{
		KeyID:             "rzp_test_key",
		KeySecret:         testKeySecret,
		WebhookSecret:     testWebhookSecret,
		Currency:          "INR",
		CheckoutScriptURL: "https://checkout.example/v1/checkout.js",
	}

	env.carts = NewCartService(repository.NewProductRepository(db), repository.NewCartRepository(db), env.publisher, rate, "INR")
	env.orders = NewOrderService(db, env.orderRepo, env.attemptRepo, env.publisher, rate, "INR")
	env.payments = NewPaymentService(db, env.gateway, gatewayCfg, env.orderRepo, env.attemptRepo,
		repository.NewWebhookEventRepository(db), env.guard, env.publisher)
	env.checkout = NewCheckoutService(env.carts, env.orders, env.payments)

	return env
}

func validShipping() model.Address {
	return model.Address{
		Name:       "Asha Rao",
		Phone:      "98765 43210",
		Email:      "asha@example.in",
		Street:     "12 MG Road",
		City:       "Bengaluru",
		State:      "Karnataka",
		PostalCode: "560001",
	}
}

func validInput() CheckoutInput {
	return CheckoutInput{Shipping: validShipping(), BillingSameAsShipping: true}
}

// checkedOutOrder runs Scenario A's checkout: one line, size 9, qty 2, price 1000.
func (e *testEnv) checkedOutOrder(t *testing.T) *CheckoutResult {
	t.Helper()
	ctx := context.Background()

	_, err := e.carts.AddLine(ctx, testUser, testProduct, 9, 2)
	require.NoError(t, err)

	res, err := e.checkout.Checkout(ctx, testUser, validInput())
	require.NoError(t, err)
	return res
}

func (e *testEnv) reload(t *testing.T, orderID string) *model.Order {
	t.Helper()
	order, err := e.orderRepo.FindByID(context.Background(), nil, orderID)
	require.NoError(t, err)
	return order
}

func validVerifyInput(orderID, gatewayOrderID, paymentID string) VerifyInput {
	return VerifyInput{
		OrderID:          orderID,
		GatewayOrderID:   gatewayOrderID,
		GatewayPaymentID: paymentID,
		GatewaySignature: signature.SignPayment([]byte(testKeySecret), gatewayOrderID, paymentID),
	}
}
