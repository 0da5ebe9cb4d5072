package model

// Payment gateway wire types.

type GatewayNotes map[string]string

type GatewayCreateOrderRequest struct {
	Amount   int64        `json:"amount"`
	Currency string       `json:"currency"`
	Receipt  string       `json:"receipt"`
	Notes    GatewayNotes `json:"notes,omitempty"`
}

type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	Receipt  string `json:"receipt"`
}

type GatewayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

type GatewayPayment struct {
	ID               string       `json:"id"`
	OrderID          string       `json:"order_id"`
	Amount           int64        `json:"amount"`
	Currency         string       `json:"currency"`
	Status           string       `json:"status"`
	ErrorDescription string       `json:"error_description"`
	Notes            GatewayNotes `json:"notes"`
}

type GatewayPaymentEntity struct {
	Entity GatewayPayment `json:"entity"`
}

type GatewayOrderEntity struct {
	Entity GatewayOrder `json:"entity"`
}

type GatewayWebhookPayload struct {
	Payment GatewayPaymentEntity `json:"payment"`
	Order   GatewayOrderEntity   `json:"order"`
}

type GatewayWebhookEvent struct {
	Entity    string                `json:"entity"`
	Event     string                `json:"event"`
	CreatedAt int64                 `json:"created_at"`
	Payload   GatewayWebhookPayload `json:"payload"`
}

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventOrderPaid       = "order.paid"
)
