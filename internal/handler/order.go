package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"storefront-checkout/internal/dto"
	"storefront-checkout/internal/middleware"
	"storefront-checkout/internal/service"
)

type OrderHandler struct {
	checkoutService service.CheckoutService
	orderService    service.OrderService
}

func NewOrderHandler(checkoutService service.CheckoutService, orderService service.OrderService) *OrderHandler {
	return &OrderHandler{
		checkoutService: checkoutService,
		orderService:    orderService,
	}
}

func (h *OrderHandler) Checkout(c echo.Context) error {
	var req dto.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}

	result, err := h.checkoutService.Checkout(c.Request().Context(), middleware.UserID(c), service.CheckoutInput{
		Shipping:              req.Shipping,
		BillingSameAsShipping: req.BillingSameAsShipping,
		Billing:               req.Billing,
	})
	if errors.Is(err, service.ErrGatewayUnavailable) && result != nil && result.Order != nil {
		// the order exists; the client retries the intent for it
		return c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error:   "payment gateway unavailable, please retry",
			OrderID: result.Order.ID,
		})
	}
	if err != nil {
		return toHTTPError(c, err)
	}

	return c.JSON(http.StatusCreated, dto.CheckoutResponse{
		Order:   dto.ToOrderResponse(result.Order),
		Payment: dto.ToPaymentIntentResponse(result.Intent),
	})
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	orders, err := h.orderService.ListOrders(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, dto.ToOrderListResponse(orders))
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	order, err := h.orderService.GetOrder(c.Request().Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, dto.ToOrderResponse(order))
}

func (h *OrderHandler) Cancel(c echo.Context) error {
	order, err := h.orderService.Cancel(c.Request().Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, dto.ToOrderResponse(order))
}

func (h *OrderHandler) ReportPaymentFailure(c echo.Context) error {
	var req dto.PaymentFailedRequest
	if err := c.Bind(&req); err != nil || req.GatewayOrderID == "" {
		return badRequest("gateway_order_id is required")
	}

	order, err := h.orderService.ReportPaymentFailure(c.Request().Context(), middleware.UserID(c), c.Param("id"), req.GatewayOrderID, req.Reason)
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, dto.ToOrderResponse(order))
}
