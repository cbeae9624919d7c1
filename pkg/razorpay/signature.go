package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignPayload computes the HMAC-SHA256 digest Razorpay sends back after a
// successful payment: hex(HMAC(secret, "<gatewayOrderID>|<gatewayPaymentID>")).
func SignPayload(secret, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature recomputes the callback digest and compares it in constant
// time against the signature the caller supplied.
func VerifySignature(secret, gatewayOrderID, gatewayPaymentID, signature string) bool {
	expected := SignPayload(secret, gatewayOrderID, gatewayPaymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
