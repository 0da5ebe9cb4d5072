package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"storefront-checkout/internal/signature"
)

// SandboxOutcome decides how the sandbox widget answers one checkout.
type SandboxOutcome int

const (
	SandboxPay SandboxOutcome = iota
	SandboxDismiss
	SandboxFail
)

// NewSandboxWidgetFactory returns a factory for a widget that plays the
// provider locally, signing completions with keySecret. Sandbox use only.
func NewSandboxWidgetFactory(keySecret string, decide func(Checkout) SandboxOutcome) WidgetFactory {
	return func(script []byte) (Widget, error) {
		if keySecret == "" {
			return nil, errors.New("sandbox widget needs the key secret")
		}
		if decide == nil {
			decide = func(Checkout) SandboxOutcome { return SandboxPay }
		}
		return &sandboxWidget{secret: []byte(keySecret), decide: decide}, nil
	}
}

type sandboxWidget struct {
	secret []byte
	decide func(Checkout) SandboxOutcome
}

func (w *sandboxWidget) Open(ctx context.Context, checkout Checkout) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if checkout.GatewayOrderID == "" {
		return nil, errors.New("checkout has no gateway order id")
	}

	switch w.decide(checkout) {
	case SandboxDismiss:
		return nil, ErrDismissed
	case SandboxFail:
		return nil, fmt.Errorf("sandbox declined payment for %s", checkout.GatewayOrderID)
	}

	paymentID := "pay_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:14]
	return &Completion{
		GatewayOrderID:   checkout.GatewayOrderID,
		GatewayPaymentID: paymentID,
		GatewaySignature: signature.SignPayment(w.secret, checkout.GatewayOrderID, paymentID),
	}, nil
}
