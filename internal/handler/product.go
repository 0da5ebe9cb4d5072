package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"storefront-checkout/internal/dto"
	"storefront-checkout/internal/service"
)

type ProductHandler struct {
	catalogService service.CatalogService
}

func NewProductHandler(catalogService service.CatalogService) *ProductHandler {
	return &ProductHandler{
		catalogService: catalogService,
	}
}

func (h *ProductHandler) ListProducts(c echo.Context) error {
	products, err := h.catalogService.ListProducts(c.Request().Context())
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, dto.ToProductListResponse(products))
}
