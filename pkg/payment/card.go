package payment

// FieldReader reads named inputs from the page hosting a card element.
type FieldReader interface {
	Field(id string) string
}

// CardElement is a handle to a hosted card input. The widget tokenizes the card
// and publishes only the token in its mount field; raw card data never reaches Go code.
type CardElement struct {
	mountID string
	fields  FieldReader
}

func (c *CardElement) MountID() string {
	return c.mountID
}

// WithFields returns the same element reading from fields, typically one submitted form.
func (c *CardElement) WithFields(fields FieldReader) *CardElement {
	return &CardElement{mountID: c.mountID, fields: fields}
}

// Token is the card token the widget published, empty until the card is complete.
func (c *CardElement) Token() string {
	if c.fields == nil {
		return ""
	}
	return c.fields.Field(c.mountID)
}

type BillingDetails struct {
	Name  string
	Email string
}

// ConfirmResult mirrors the provider's confirmation result: exactly one of
// Error and PaymentIntent is set.
type ConfirmResult struct {
	Error         *ConfirmError
	PaymentIntent *Intent
}

type ConfirmError struct {
	Message     string
	Code        string
	Type        string
	DeclineCode string
}

func (e *ConfirmError) Error() string {
	return e.Message
}
