package handler

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"storefront-checkout/internal/dto"
	"storefront-checkout/internal/middleware"
	"storefront-checkout/internal/service"
)

const maxWebhookBody = 1 << 20

type PaymentHandler struct {
	paymentService service.PaymentService
}

func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// PublicConfig exposes the key id only; secrets never leave the server.
func (h *PaymentHandler) PublicConfig(c echo.Context) error {
	cfg := h.paymentService.PublicConfig()
	return c.JSON(http.StatusOK, dto.PaymentConfigResponse{
		KeyID:             cfg.KeyID,
		Currency:          cfg.Currency,
		CheckoutScriptURL: cfg.CheckoutScriptURL,
	})
}

func (h *PaymentHandler) CreateIntent(c echo.Context) error {
	intent, err := h.paymentService.CreateIntent(c.Request().Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, dto.ToPaymentIntentResponse(intent))
}

func (h *PaymentHandler) Verify(c echo.Context) error {
	var req dto.VerifyPaymentRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(verificationFailedMessage)
	}

	result, err := h.paymentService.Verify(c.Request().Context(), middleware.UserID(c), service.VerifyInput{
		OrderID:          req.OrderID,
		GatewayOrderID:   req.GatewayOrderID,
		GatewayPaymentID: req.GatewayPaymentID,
		GatewaySignature: req.GatewaySignature,
	})
	if err != nil {
		return toHTTPError(c, err)
	}

	return c.JSON(http.StatusOK, dto.VerifyPaymentResponse{
		OrderID:          result.Order.ID,
		Status:           result.Order.Status.String(),
		AlreadyConfirmed: result.AlreadyConfirmed,
	})
}

// Webhook needs the raw body, since the signature covers the exact bytes sent.
func (h *PaymentHandler) Webhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBody))
	if err != nil {
		return badRequest("invalid body")
	}

	if err := h.paymentService.HandleWebhook(c.Request().Context(), c.Request().Header, body); err != nil {
		return toHTTPError(c, err)
	}

	return c.NoContent(http.StatusOK)
}
