// Package signature computes and checks the gateway's HMAC-SHA256 signatures.
//
// Comparisons always go through hmac.Equal so the time taken does not depend on
// how many leading bytes of a forged signature happen to be correct.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// PaymentMessage is the message the gateway signs when a checkout completes.
func PaymentMessage(gatewayOrderID, gatewayPaymentID string) string {
	return gatewayOrderID + "|" + gatewayPaymentID
}

// SignPayment returns the lowercase hex signature for a checkout completion.
func SignPayment(secret []byte, gatewayOrderID, gatewayPaymentID string) string {
	return Sign(secret, []byte(PaymentMessage(gatewayOrderID, gatewayPaymentID)))
}

// VerifyPayment reports whether sig is the gateway's signature for the pair.
func VerifyPayment(secret []byte, gatewayOrderID, gatewayPaymentID, sig string) bool {
	return Verify(secret, []byte(PaymentMessage(gatewayOrderID, gatewayPaymentID)), sig)
}

func Sign(secret, message []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether sig is the hex HMAC-SHA256 of message under secret.
// An empty secret never verifies.
func Verify(secret, message []byte, sig string) bool {
	if len(secret) == 0 {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(sig))
	if err != nil || len(got) != sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return hmac.Equal(mac.Sum(nil), got)
}
