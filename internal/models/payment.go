package models

// Query key under which the confirmation page receives the client secret.
const ClientSecretParam = "clientSecret"

// Page that confirms the payment, relative to the prices page.
const ConfirmationPage = "subscribe.html"

const (
	StatusPaymentSucceeded = "Success! You can redirect to another page."
	paymentFailedPrefix    = "Payment failed: "
)

// StatusPaymentFailed formats the status line shown when the provider rejects a confirmation.
func StatusPaymentFailed(message string) string {
	return paymentFailedPrefix + message
}

// CheckoutState tracks a single confirmation attempt.
type CheckoutState string

const (
	CheckoutIdle       CheckoutState = "idle"
	CheckoutSubmitting CheckoutState = "submitting"
	CheckoutSucceeded  CheckoutState = "succeeded"
	CheckoutFailed     CheckoutState = "failed"
)

type CheckoutStatus struct {
	State    CheckoutState `json:"state"`
	Messages []string      `json:"messages"`
}

func (s CheckoutState) String() string {
	return string(s)
}

func (s CheckoutState) Done() bool {
	return s == CheckoutSucceeded || s == CheckoutFailed
}
