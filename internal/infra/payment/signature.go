package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"studio-credit-ledger/internal/domain/ports/adapter"
)

// VerifyCheckoutSignature checks the signature the gateway hands to the client
// after checkout: HMAC-SHA256 over "orderID|paymentID" keyed with the API
// secret, hex encoded. Comparison is constant-time.
func VerifyCheckoutSignature(secret, orderID, paymentID, signature string) bool {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks the signature header of a webhook delivery:
// HMAC-SHA256 over the exact raw request body keyed with the webhook secret,
// which is distinct from the API secret.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	expected := hex.EncodeToString(h.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Compile-time check
var _ adapter.SignatureVerifier = (*HMACVerifier)(nil)

// HMACVerifier implements adapter.SignatureVerifier with the two shared
// secrets from config.
type HMACVerifier struct {
	apiSecret     string
	webhookSecret string
}

func NewHMACVerifier(apiSecret, webhookSecret string) *HMACVerifier {
	return &HMACVerifier{apiSecret: apiSecret, webhookSecret: webhookSecret}
}

func (v *HMACVerifier) VerifyCheckout(orderID, paymentID, signature string) bool {
	return VerifyCheckoutSignature(v.apiSecret, orderID, paymentID, signature)
}

func (v *HMACVerifier) VerifyWebhook(body []byte, signature string) bool {
	return VerifyWebhookSignature(v.webhookSecret, body, signature)
}
