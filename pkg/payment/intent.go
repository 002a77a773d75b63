package payment

import (
	"github.com/stripe/stripe-go/v74"
)

const (
	StatusCanceled              = "canceled"
	StatusProcessing            = "processing"
	StatusRequiresAction        = "requires_action"
	StatusRequiresCapture       = "requires_capture"
	StatusRequiresConfirmation  = "requires_confirmation"
	StatusRequiresPaymentMethod = "requires_payment_method"
	StatusSucceeded             = "succeeded"
)

// Intent is the part of a payment intent the checkout cares about.
type Intent struct {
	ID     string
	Status string
}

func NewPaymentIntent(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:     pi.ID,
		Status: string(pi.Status),
	}
}

func (i *Intent) IsSucceeded() bool {
	return i.Status == StatusSucceeded
}

func (i *Intent) IsProcessing() bool {
	return i.Status == StatusProcessing
}

// RequiresAction is true when the customer must complete an extra step such as 3D Secure.
func (i *Intent) RequiresAction() bool {
	return i.Status == StatusRequiresAction
}

func newConfirmError(e *stripe.Error) *ConfirmError {
	return &ConfirmError{
		Message:     e.Msg,
		Code:        string(e.Code),
		Type:        string(e.Type),
		DeclineCode: string(e.DeclineCode),
	}
}
