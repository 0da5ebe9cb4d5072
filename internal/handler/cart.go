package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"storefront-checkout/internal/dto"
	"storefront-checkout/internal/middleware"
	"storefront-checkout/internal/service"
)

type CartHandler struct {
	cartService service.CartService
}

func NewCartHandler(cartService service.CartService) *CartHandler {
	return &CartHandler{
		cartService: cartService,
	}
}

func (h *CartHandler) GetCart(c echo.Context) error {
	view, err := h.cartService.GetCart(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, dto.ToCartResponse(view))
}

func (h *CartHandler) AddLine(c echo.Context) error {
	var req dto.AddCartLineRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid req body")
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	view, err := h.cartService.AddLine(c.Request().Context(), middleware.UserID(c), req.ProductID, req.Size, req.Quantity)
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, dto.ToCartResponse(view))
}

func (h *CartHandler) SetQuantity(c echo.Context) error {
	var req dto.SetQuantityRequest
	if err := c.Bind(&req); err != nil || req.Quantity == nil {
		return badRequest("quantity is required")
	}

	view, err := h.cartService.SetQuantity(c.Request().Context(), middleware.UserID(c), c.Param("id"), *req.Quantity)
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, dto.ToCartResponse(view))
}

func (h *CartHandler) RemoveLine(c echo.Context) error {
	view, err := h.cartService.RemoveLine(c.Request().Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, dto.ToCartResponse(view))
}

func (h *CartHandler) Clear(c echo.Context) error {
	view, err := h.cartService.Clear(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, dto.ToCartResponse(view))
}
