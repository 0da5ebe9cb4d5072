package dto

import (
	"time"

	"storefront-checkout/internal/model"
	"storefront-checkout/internal/service"
)

// Amounts are minor units (paise); *_display fields are for rendering only.

type AddCartLineRequest struct {
	ProductID string `json:"product_id"`
	Size      int    `json:"size"`
	Quantity  int    `json:"quantity"`
}

type SetQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

type CartLineResponse struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Brand       string `json:"brand"`
	Size        int    `json:"size"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	LineTotal   int64  `json:"line_total"`
}

type CartResponse struct {
	Lines             []CartLineResponse `json:"lines"`
	TotalItems        int                `json:"total_items"`
	TotalPrice        int64              `json:"total_price"`
	TotalPriceDisplay string             `json:"total_price_display"`
	TaxEstimate       string             `json:"tax_estimate"`
	Currency          string             `json:"currency"`
}

type CheckoutRequest struct {
	Shipping              model.Address `json:"shipping"`
	BillingSameAsShipping bool          `json:"billing_same_as_shipping"`
	Billing               model.Address `json:"billing"`
}

type OrderLineResponse struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Size        int    `json:"size"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	LineTotal   int64  `json:"line_total"`
}

type OrderResponse struct {
	ID                    string              `json:"id"`
	Status                string              `json:"status"`
	Subtotal              int64               `json:"subtotal"`
	Tax                   int64               `json:"tax"`
	Total                 int64               `json:"total"`
	TotalDisplay          string              `json:"total_display"`
	Currency              string              `json:"currency"`
	Shipping              model.Address       `json:"shipping"`
	BillingSameAsShipping bool                `json:"billing_same_as_shipping"`
	Billing               model.Address       `json:"billing"`
	GatewayOrderID        string              `json:"gateway_order_id,omitempty"`
	GatewayPaymentID      string              `json:"gateway_payment_id,omitempty"`
	FailureReason         string              `json:"failure_reason,omitempty"`
	ConfirmedAt           *time.Time          `json:"confirmed_at,omitempty"`
	CancelledAt           *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
	Lines                 []OrderLineResponse `json:"lines"`
}

type PaymentIntentResponse struct {
	OrderID           string `json:"order_id"`
	GatewayOrderID    string `json:"gateway_order_id"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	KeyID             string `json:"key_id"`
	CheckoutScriptURL string `json:"checkout_script_url"`
	Reused            bool   `json:"reused"`
}

type CheckoutResponse struct {
	Order   OrderResponse          `json:"order"`
	Payment *PaymentIntentResponse `json:"payment,omitempty"`
}

type PaymentFailedRequest struct {
	GatewayOrderID string `json:"gateway_order_id"`
	Reason         string `json:"reason"`
}

type VerifyPaymentRequest struct {
	OrderID          string `json:"order_id"`
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	GatewaySignature string `json:"gateway_signature"`
}

type VerifyPaymentResponse struct {
	OrderID          string `json:"order_id"`
	Status           string `json:"status"`
	AlreadyConfirmed bool   `json:"already_confirmed"`
}

type PaymentConfigResponse struct {
	KeyID             string `json:"key_id"`
	Currency          string `json:"currency"`
	CheckoutScriptURL string `json:"checkout_script_url"`
}

type ErrorResponse struct {
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
	OrderID string            `json:"order_id,omitempty"`
}

func ToCartResponse(view *service.CartView) CartResponse {
	lines := make([]CartLineResponse, 0, len(view.Lines))
	for _, l := range view.Lines {
		lines = append(lines, CartLineResponse{
			ID:          l.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Brand:       l.Brand,
			Size:        l.Size,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			LineTotal:   l.LineTotal,
		})
	}
	return CartResponse{
		Lines:             lines,
		TotalItems:        view.TotalItems,
		TotalPrice:        view.TotalPrice,
		TotalPriceDisplay: service.MajorUnits(view.TotalPrice),
		TaxEstimate:       view.TaxEstimate.String(),
		Currency:          view.Currency,
	}
}

func ToOrderResponse(order *model.Order) OrderResponse {
	lines := make([]OrderLineResponse, 0, len(order.Lines))
	for _, l := range order.Lines {
		lines = append(lines, OrderLineResponse{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Size:        l.Size,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			LineTotal:   l.LineTotal(),
		})
	}
	return OrderResponse{
		ID:                    order.ID,
		Status:                order.Status.String(),
		Subtotal:              order.Subtotal,
		Tax:                   order.Tax,
		Total:                 order.Total,
		TotalDisplay:          service.MajorUnits(order.Total),
		Currency:              order.Currency,
		Shipping:              order.Shipping,
		BillingSameAsShipping: order.BillingSameAsShipping,
		Billing:               order.BillingAddress(),
		GatewayOrderID:        order.GatewayOrderID,
		GatewayPaymentID:      order.GatewayPaymentID,
		FailureReason:         order.FailureReason,
		ConfirmedAt:           order.ConfirmedAt,
		CancelledAt:           order.CancelledAt,
		CreatedAt:             order.CreatedAt,
		Lines:                 lines,
	}
}

func ToOrderListResponse(orders []*model.Order) []OrderResponse {
	out := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, ToOrderResponse(o))
	}
	return out
}

func ToPaymentIntentResponse(intent *service.Intent) *PaymentIntentResponse {
	if intent == nil {
		return nil
	}
	return &PaymentIntentResponse{
		OrderID:           intent.OrderID,
		GatewayOrderID:    intent.GatewayOrderID,
		Amount:            intent.Amount,
		Currency:          intent.Currency,
		KeyID:             intent.KeyID,
		CheckoutScriptURL: intent.CheckoutScriptURL,
		Reused:            intent.Reused,
	}
}

type ProductResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Brand        string `json:"brand"`
	Price        int64  `json:"price"`
	PriceDisplay string `json:"price_display"`
	Currency     string `json:"currency"`
}

func ToProductListResponse(products []*model.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, ProductResponse{
			ID:           p.ID,
			Name:         p.Name,
			Brand:        p.Brand,
			Price:        p.Price,
			PriceDisplay: service.MajorUnits(p.Price),
			Currency:     p.Currency,
		})
	}
	return out
}
