package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"go.uber.org/zap"
)

var (
	ErrMissingClientSecret = errors.New("missing client secret")
	ErrMissingCard         = errors.New("card details are incomplete")
)

// StripeService confirms payment intents the way Stripe.js does from a page:
// authenticated with the publishable key and the intent's client secret.
type StripeService struct {
	publishableKey string
	api            *client.API
	logger         *zap.SugaredLogger
}

type Options struct {
	// APIURL overrides the Stripe API base, e.g. a local stripe-mock.
	APIURL     string
	HTTPClient *http.Client
	Logger     *zap.SugaredLogger
}

func NewStripeService(publishableKey string, opts Options) *StripeService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	cfg := &stripe.BackendConfig{
		LeveledLogger:     logger,
		MaxNetworkRetries: stripe.Int64(0),
	}
	if opts.APIURL != "" {
		cfg.URL = stripe.String(opts.APIURL)
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, cfg)

	return &StripeService{
		publishableKey: publishableKey,
		api: client.New(publishableKey, &stripe.Backends{
			API:     backend,
			Connect: backend,
			Uploads: backend,
		}),
		logger: logger,
	}
}

func (s *StripeService) PublishableKey() string {
	return s.publishableKey
}

// MountCard binds a hosted card element to the page field at mountID.
func (s *StripeService) MountCard(mountID string, fields FieldReader) *CardElement {
	return &CardElement{mountID: mountID, fields: fields}
}

// ConfirmCardPayment confirms the payment intent behind clientSecret with the card
// collected by card. Errors reported by Stripe are returned in the result; the error
// return is reserved for requests that could not be made at all.
func (s *StripeService) ConfirmCardPayment(ctx context.Context, clientSecret string, card *CardElement, billing BillingDetails) (*ConfirmResult, error) {
	intentID, err := IntentIDFromClientSecret(clientSecret)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, ErrMissingCard
	}
	token := card.Token()
	if token == "" {
		return nil, ErrMissingCard
	}

	params := &stripe.PaymentIntentConfirmParams{}
	params.Context = ctx
	params.AddExtra("client_secret", clientSecret)
	params.AddExtra("payment_method_data[type]", "card")
	params.AddExtra("payment_method_data[card][token]", token)
	if billing.Name != "" {
		params.AddExtra("payment_method_data[billing_details][name]", billing.Name)
	}
	if billing.Email != "" {
		params.AddExtra("payment_method_data[billing_details][email]", billing.Email)
	}

	pi, err := s.api.PaymentIntents.Confirm(intentID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			s.logger.Infow("payment confirmation declined",
				"payment_intent", intentID,
				"code", stripeErr.Code,
				"type", stripeErr.Type,
			)
			return &ConfirmResult{Error: newConfirmError(stripeErr)}, nil
		}
		s.logger.Errorw("payment confirmation failed", "payment_intent", intentID, "error", err)
		return &ConfirmResult{Error: &ConfirmError{Message: err.Error()}}, nil
	}

	intent := NewPaymentIntent(pi)
	s.logger.Infow("payment confirmed", "payment_intent", intent.ID, "status", intent.Status)
	return &ConfirmResult{PaymentIntent: intent}, nil
}

// IntentIDFromClientSecret extracts the payment intent id from "pi_xxx_secret_yyy".
func IntentIDFromClientSecret(clientSecret string) (string, error) {
	if clientSecret == "" {
		return "", ErrMissingClientSecret
	}
	id, _, ok := strings.Cut(clientSecret, "_secret_")
	if !ok || id == "" {
		return "", fmt.Errorf("malformed client secret %q", redact(clientSecret))
	}
	return id, nil
}

func redact(secret string) string {
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:8] + "***"
}
