package model

import "time"

type Product struct {
	ID       string `gorm:"primaryKey;size:64;not null"` // product sku
	Name     string `gorm:"size:128;not null"`
	Brand    string `gorm:"size:64;index;not null"`
	Price    int64  `gorm:"not null"` // minor units
	Currency string `gorm:"size:8;not null"`
	Active   bool   `gorm:"not null"`
}

type CartLine struct {
	ID        string `gorm:"primaryKey;size:36;not null"`
	UserID    string `gorm:"size:64;not null;uniqueIndex:idx_cart_line_user_product_size"`
	ProductID string `gorm:"size:64;not null;uniqueIndex:idx_cart_line_user_product_size"`
	Size      int    `gorm:"not null;uniqueIndex:idx_cart_line_user_product_size"`
	Quantity  int    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Address struct {
	Name       string `json:"name" gorm:"size:128"`
	Phone      string `json:"phone" gorm:"size:32"`
	Email      string `json:"email" gorm:"size:255"`
	Street     string `json:"street" gorm:"size:255"`
	City       string `json:"city" gorm:"size:128"`
	State      string `json:"state" gorm:"size:128"`
	PostalCode string `json:"postal_code" gorm:"size:16"`
}

type Order struct {
	ID       string      `gorm:"primaryKey;size:36;not null"`
	UserID   string      `gorm:"size:64;index;not null"`
	Subtotal int64       `gorm:"not null"`
	Tax      int64       `gorm:"not null"`
	Total    int64       `gorm:"not null"` // fixed at creation
	Currency string      `gorm:"size:8;not null"`
	Status   OrderStatus `gorm:"size:16;index;not null"`

	Shipping              Address `gorm:"embedded;embeddedPrefix:shipping_"`
	BillingSameAsShipping bool    `gorm:"not null"`
	Billing               Address `gorm:"embedded;embeddedPrefix:billing_"` // empty when BillingSameAsShipping

	GatewayOrderID   string `gorm:"size:64;index"` // latest attempt's payment intent
	GatewayPaymentID string `gorm:"size:64"`
	FailureReason    string `gorm:"size:255"`

	ConfirmedAt *time.Time
	CancelledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Lines []OrderLine `gorm:"foreignKey:OrderID"`
}

// BillingAddress returns the address to bill, falling back to shipping.
func (o *Order) BillingAddress() Address {
	if o.BillingSameAsShipping {
		return o.Shipping
	}
	return o.Billing
}

type OrderLine struct {
	ID          string `gorm:"primaryKey;size:36;not null"`
	OrderID     string `gorm:"size:36;index;not null"`
	ProductID   string `gorm:"size:64;not null"`
	ProductName string `gorm:"size:128"`
	Size        int    `gorm:"not null"`
	Quantity    int    `gorm:"not null"`
	UnitPrice   int64  `gorm:"not null"` // price captured at order time
	CreatedAt   time.Time
}

func (l OrderLine) LineTotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

type PaymentAttemptStatus string

const (
	AttemptCreated PaymentAttemptStatus = "created"
	AttemptPaid    PaymentAttemptStatus = "paid"
	AttemptFailed  PaymentAttemptStatus = "failed"
)

type PaymentAttempt struct {
	ID               uint                 `gorm:"primaryKey"`
	OrderID          string               `gorm:"size:36;index;not null"`
	GatewayOrderID   string               `gorm:"size:64;uniqueIndex;not null"`
	Amount           int64                `gorm:"not null"`
	Currency         string               `gorm:"size:8;not null"`
	Status           PaymentAttemptStatus `gorm:"size:16;not null"`
	GatewayPaymentID string               `gorm:"size:64"`
	FailureReason    string               `gorm:"size:255"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}

// AllModels lists every table the service migrates.
func AllModels() []any {
	return []any{
		&Product{},
		&CartLine{},
		&Order{},
		&OrderLine{},
		&PaymentAttempt{},
		&WebhookEvent{},
	}
}
