package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifyPaymentSignature checks the signature a client submits after checkout:
// HMAC-SHA256(keySecret, orderID + "|" + paymentID) hex-encoded.
func VerifyPaymentSignature(orderID, paymentID, signature, secret string) bool {
	return verify([]byte(orderID+"|"+paymentID), signature, secret)
}

// VerifyWebhookSignature checks the X-Razorpay-Signature header against the
// raw webhook body using the separate webhook secret.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	return verify(body, signature, secret)
}

func verify(message []byte, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
