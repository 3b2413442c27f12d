package adapter

// SignatureVerifier checks the two gateway signature schemes: the checkout
// signature handed to the client (keyed with the API secret) and the webhook
// signature over the raw delivery body (keyed with the webhook secret).
type SignatureVerifier interface {
	VerifyCheckout(orderID, paymentID, signature string) bool
	VerifyWebhook(body []byte, signature string) bool
}
