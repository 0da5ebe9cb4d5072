package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-checkout/internal/model"
	"storefront-checkout/internal/notify"
	"storefront-checkout/internal/signature"
)

func TestVerify_ForgedSignatureLeavesOrderPending(t *testing.T) {
	env := newTestEnv(t)
	res := env.checkedOutOrder(t)

	in := validVerifyInput(res.Order.ID, res.Intent.GatewayOrderID, "pay_1")
	in.GatewaySignature = strings.Repeat("ab", 32)

	_, err := env.payments.Verify(context.Background(), testUser, in)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	order := env.reload(t, res.Order.ID)
	assert.Equal(t, model.OrderPending, order.Status)
	assert.Empty(t, order.GatewayPaymentID)
	assert.Zero(t, env.publisher.count(notify.EventOrderConfirmed))
}

func TestVerify_ConfirmsExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	res := env.checkedOutOrder(t)
	ctx := context.Background()
	in := validVerifyInput(res.Order.ID, res.Intent.GatewayOrderID, "pay_1")

	first, err := env.payments.Verify(ctx, testUser, in)
	require.NoError(t, err)
	assert.False(t, first.AlreadyConfirmed)
	assert.Equal(t, model.OrderConfirmed, first.Order.Status)

	second, err := env.payments.Verify(ctx, testUser, in)
	require.NoError(t, err)
	assert.True(t, second.AlreadyConfirmed)
	assert.Equal(t, "pay_1", second.Order.GatewayPaymentID)

	assert.Equal(t, 1, env.publisher.count(notify.EventOrderConfirmed))
	assert.Equal(t, int64(2360), env.reload(t, res.Order.ID).Total)

	attempt, err := env.attemptRepo.FindByGatewayOrderID(ctx, res.Intent.GatewayOrderID)
	require.NoError(t, err)
	assert.Equal(t, model.AttemptPaid, attempt.Status)
	assert.Equal(t, "pay_1", attempt.GatewayPaymentID)
}

func TestVerify_ConflictingPaymentAfterConfirm(t *testing.T) {
	env := newTestEnv(t)
	res := env.checkedOutOrder(t)
	ctx := context.Background()

	_, err := env.payments.Verify(ctx, testUser, validVerifyInput(res.Order.ID, res.Intent.GatewayOrderID, "pay_1"))
	require.NoError(t, err)

	_, err = env.payments.Verify(ctx, testUser, validVerifyInput(res.Order.ID, res.Intent.GatewayOrderID, "pay_2"))
	assert.ErrorIs(t, err, ErrAlreadyConfirmed)
	assert.Equal(t, "pay_1", env.reload(t, res.Order.ID).GatewayPaymentID)
}

func TestVerify_ConfirmedOrderNeverMovesBack(t *testing.T) {
	env := newTestEnv(t)
	res := env.checkedOutOrder(t)
	ctx := context.Background()

	_, err := env.payments.Verify(ctx, testUser, validVerifyInput(res.Order.ID, res.Intent.GatewayOrderID, "pay_1"))
	require.NoError(t, err)

	_, err = env.orders.Cancel(ctx, testUser, res.Order.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = env.orders.ReportPaymentFailure(ctx, testUser, res.Order.ID, res.Intent.GatewayOrderID, "late failure")
	require.NoError(t, err)

	_, err = env.payments.CreateIntent(ctx, testUser, res.Order.ID)
	assert.ErrorIs(t, err, ErrAlreadyConfirmed)

	assert.Equal(t, model.OrderConfirmed, env.reload(t, res.Order.ID).Status)
}

func TestVerify_SignatureForAnotherOrderIsRejected(t *testing.T) {
	env := newTestEnv(t)
	a := env.checkedOutOrder(t)
	b := env.checkedOutOrder(t)
	require.NotEqual(t, a.Order.ID, b.Order.ID)

	// genuine signature for A's gateway order, presented against order B
	_, err := env.payments.Verify(context.Background(), testUser, validVerifyInput(b.Order.ID, a.Intent.GatewayOrderID, "pay_a"))
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, model.OrderPending, env.reload(t, b.Order.ID).Status)
	assert.Equal(t, model.OrderPending, env.reload(t, a.Order.ID).Status)
}

func TestVerify_Rejects(t *testing.T) {
	env := newTestEnv(t)
	res := env.checkedOutOrder(t)
	ctx := context.Background()
	in := validVerifyInput(res.Order.ID, res.Intent.GatewayOrderID, "pay_1")

	_, err := env.payments.Verify(ctx, "", in)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = env.payments.Verify(ctx, "intruder", in)
	assert.ErrorIs(t, err, ErrNotFound)

	missing := in
	missing.GatewayPaymentID = ""
	_, err = env.payments.Verify(ctx, testUser, missing)
	assert.ErrorIs(t, err, ErrInvalidSignature)

	unknown := validVerifyInput("no-such-order", res.Intent.GatewayOrderID, "pay_1")
	_, err = env.payments.Verify(ctx, testUser, unknown)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerify_CancelledOrderFailsClosed(t *testing.T) {
	env := newTestEnv(t)
	res := env.checkedOutOrder(t)
	ctx := context.Background()

	_, err := env.orders.Cancel(ctx, testUser, res.Order.ID)
	require.NoError(t, err)

	_, err = env.payments.Verify(ctx, testUser, validVerifyInput(res.Order.ID, res.Intent.GatewayOrderID, "pay_1"))
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, model.OrderCancelled, env.reload(t, res.Order.ID).Status)
}

func TestVerify_InProgressGuard(t *testing.T) {
	env := newTestEnv(t)
	res := env.checkedOutOrder(t)
	ctx := context.Background()

	release, err := env.guard.Acquire(ctx, res.Order.ID)
	require.NoError(t, err)

	_, err = env.payments.Verify(ctx, testUser, validVerifyInput(res.Order.ID, res.Intent.GatewayOrderID, "pay_1"))
	assert.ErrorIs(t, err, ErrVerificationInProgress)

	release()
	_, err = env.payments.Verify(ctx, testUser, validVerifyInput(res.Order.ID, res.Intent.GatewayOrderID, "pay_1"))
	assert.NoError(t, err)
}

func TestVerify_ForeignOrderNeverTakesGuard(t *testing.T) {
	env := newTestEnv(t)
	res := env.checkedOutOrder(t)
	ctx := context.Background()

	_, err := env.payments.Verify(ctx, "intruder", validVerifyInput(res.Order.ID, res.Intent.GatewayOrderID, "pay_1"))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, env.guard.acquired())

	_, err = env.payments.Verify(ctx, testUser, validVerifyInput(res.Order.ID, res.Intent.GatewayOrderID, "pay_1"))
	require.NoError(t, err)
	assert.Equal(t, []string{res.Order.ID}, env.guard.acquired())
}

func TestCreateIntent_ReusesOpenAttempt(t *testing.T) {
	env := newTestEnv(t)
	res := env.checkedOutOrder(t)
	require.Equal(t, 1, env.gateway.callCount())

	intent, err := env.payments.CreateIntent(context.Background(), testUser, res.Order.ID)
	require.NoError(t, err)
	assert.True(t, intent.Reused)
	assert.Equal(t, res.Intent.GatewayOrderID, intent.GatewayOrderID)
	assert.Equal(t, 1, env.gateway.callCount())
	assert.Equal(t, "rzp_test_key", intent.KeyID)
}

func TestCheckout_GatewayDownKeepsOrderPendingAndCart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.gateway.err = errors.New("connection refused")

	_, err := env.carts.AddLine(ctx, testUser, testProduct, 9, 2)
	require.NoError(t, err)

	res, err := env.checkout.Checkout(ctx, testUser, validInput())
	require.ErrorIs(t, err, ErrGatewayUnavailable)
	require.NotNil(t, res)
	require.NotNil(t, res.Order)
	assert.Nil(t, res.Intent)

	order := env.reload(t, res.Order.ID)
	assert.Equal(t, model.OrderPending, order.Status)
	assert.Empty(t, order.GatewayOrderID)

	view, err := env.carts.GetCart(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 2, view.TotalItems)

	// gateway recovers: the same order gets its intent
	env.gateway.err = nil
	intent, err := env.payments.CreateIntent(ctx, testUser, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Order.ID, intent.OrderID)
	assert.Equal(t, intent.GatewayOrderID, env.reload(t, res.Order.ID).GatewayOrderID)
}

func TestPublicConfig_NoSecrets(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.payments.PublicConfig()

	assert.Equal(t, "rzp_test_key", cfg.KeyID)
	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), testKeySecret)
	assert.NotContains(t, string(raw), testWebhookSecret)
}

func webhookBody(t *testing.T, event string, payment model.GatewayPayment) []byte {
	t.Helper()
	body, err := json.Marshal(model.GatewayWebhookEvent{
		Entity: "event",
		Event:  event,
		Payload: model.GatewayWebhookPayload{
			Payment: model.GatewayPaymentEntity{Entity: payment},
		},
	})
	require.NoError(t, err)
	return body
}

func signedHeaders(body []byte, eventID string) http.Header {
	h := http.Header{}
	h.Set(HeaderWebhookSignature, signature.Sign([]byte(testWebhookSecret), body))
	h.Set(HeaderWebhookEventID, eventID)
	return h
}

func TestHandleWebhook_CapturedConfirmsOnce(t *testing.T) {
	env := newTestEnv(t)
	res := env.checkedOutOrder(t)
	ctx := context.Background()

	body := webhookBody(t, model.EventPaymentCaptured, model.GatewayPayment{
		ID: "pay_wh", OrderID: res.Intent.GatewayOrderID, Amount: 2360, Currency: "INR", Status: "captured",
	})

	require.NoError(t, env.payments.HandleWebhook(ctx, signedHeaders(body, "evt_1"), body))
	require.NoError(t, env.payments.HandleWebhook(ctx, signedHeaders(body, "evt_1"), body))

	order := env.reload(t, res.Order.ID)
	assert.Equal(t, model.OrderConfirmed, order.Status)
	assert.Equal(t, "pay_wh", order.GatewayPaymentID)
	assert.Equal(t, 1, env.publisher.count(notify.EventOrderConfirmed))

	// the browser's verify call arriving after the webhook is an idempotent success
	result, err := env.payments.Verify(ctx, testUser, validVerifyInput(res.Order.ID, res.Intent.GatewayOrderID, "pay_wh"))
	require.NoError(t, err)
	assert.True(t, result.AlreadyConfirmed)
}

func TestHandleWebhook_AmountMismatchDoesNotConfirm(t *testing.T) {
	env := newTestEnv(t)
	res := env.checkedOutOrder(t)

	body := webhookBody(t, model.EventPaymentCaptured, model.GatewayPayment{
		ID: "pay_wh", OrderID: res.Intent.GatewayOrderID, Amount: 100, Currency: "INR",
	})

	require.NoError(t, env.payments.HandleWebhook(context.Background(), signedHeaders(body, "evt_2"), body))
	assert.Equal(t, model.OrderPending, env.reload(t, res.Order.ID).Status)
}

func TestHandleWebhook_PaymentFailed(t *testing.T) {
	env := newTestEnv(t)
	res := env.checkedOutOrder(t)

	body := webhookBody(t, model.EventPaymentFailed, model.GatewayPayment{
		ID: "pay_x", OrderID: res.Intent.GatewayOrderID, Amount: 2360, Currency: "INR", ErrorDescription: "bank declined",
	})

	require.NoError(t, env.payments.HandleWebhook(context.Background(), signedHeaders(body, "evt_3"), body))

	order := env.reload(t, res.Order.ID)
	assert.Equal(t, model.OrderFailed, order.Status)
	assert.Equal(t, "bank declined", order.FailureReason)
}

func TestHandleWebhook_BadSignature(t *testing.T) {
	env := newTestEnv(t)
	res := env.checkedOutOrder(t)

	body := webhookBody(t, model.EventPaymentCaptured, model.GatewayPayment{
		ID: "pay_wh", OrderID: res.Intent.GatewayOrderID, Amount: 2360, Currency: "INR",
	})
	h := signedHeaders(body, "evt_4")
	h.Set(HeaderWebhookSignature, signature.Sign([]byte("wrong secret"), body))

	err := env.payments.HandleWebhook(context.Background(), h, body)
	assert.ErrorIs(t, err, ErrInvalidSignature)
	assert.Equal(t, model.OrderPending, env.reload(t, res.Order.ID).Status)
}

func TestHandleWebhook_UnknownEventAcknowledged(t *testing.T) {
	env := newTestEnv(t)
	body := []byte(`{"entity":"event","event":"refund.created","payload":{}}`)

	assert.NoError(t, env.payments.HandleWebhook(context.Background(), signedHeaders(body, "evt_5"), body))
}
