package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/sefazor/subscription-checkout/internal/models"
	"github.com/sefazor/subscription-checkout/internal/page"
	"github.com/sefazor/subscription-checkout/pkg/payment"
)

const (
	CardMountID = "card-element"
	NameField   = "name"
	EmailField  = "email"
)

// CardPaymentProvider mounts hosted card inputs and confirms card payments.
type CardPaymentProvider interface {
	MountCard(mountID string, fields payment.FieldReader) *payment.CardElement
	ConfirmCardPayment(ctx context.Context, clientSecret string, card *payment.CardElement, billing payment.BillingDetails) (*payment.ConfirmResult, error)
}

type PaymentService struct {
	provider CardPaymentProvider
	logger   *zap.SugaredLogger
}

func NewPaymentService(provider CardPaymentProvider, logger *zap.SugaredLogger) *PaymentService {
	return &PaymentService{
		provider: provider,
		logger:   logger,
	}
}

// Load runs the page-load step of the confirmation page: the client secret is read
// from the URL once and a card element is mounted. The returned Checkout belongs to
// that page and is used for every submission from it.
func (s *PaymentService) Load(p page.Page) (*Checkout, error) {
	secret := p.Location().Query().Get(models.ClientSecretParam)
	if secret == "" {
		return nil, payment.ErrMissingClientSecret
	}
	return &Checkout{
		page:         p,
		provider:     s.provider,
		logger:       s.logger,
		clientSecret: secret,
		card:         s.provider.MountCard(CardMountID, p),
		state:        models.CheckoutIdle,
	}, nil
}

// Checkout is the confirmation handle of one loaded page.
type Checkout struct {
	page         page.Page
	provider     CardPaymentProvider
	logger       *zap.SugaredLogger
	clientSecret string
	card         *payment.CardElement

	mu       sync.Mutex
	state    models.CheckoutState
	inFlight int
}

func (c *Checkout) ClientSecret() string {
	return c.clientSecret
}

func (c *Checkout) Card() *payment.CardElement {
	return c.card
}

// State is the state of the most recently finished submission, or submitting
// while any submission is in flight.
func (c *Checkout) State() models.CheckoutState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Submit confirms the payment with the card and billing name currently on the page
// and appends exactly one status message. Overlapping submissions are not deduplicated;
// each runs to completion independently.
func (c *Checkout) Submit(ctx context.Context) models.CheckoutState {
	return c.SubmitForm(ctx, c.page)
}

// SubmitForm is Submit with the card token and billing details taken from form, the
// fields of one submission. Concurrent submissions never see each other's inputs.
func (c *Checkout) SubmitForm(ctx context.Context, form payment.FieldReader) models.CheckoutState {
	c.begin()

	billing := payment.BillingDetails{
		Name:  form.Field(NameField),
		Email: form.Field(EmailField),
	}
	card := c.card.WithFields(form)

	res, err := c.provider.ConfirmCardPayment(ctx, c.clientSecret, card, billing)
	switch {
	case err != nil:
		c.logger.Warnw("payment confirmation not sent", "error", err)
		c.page.AppendStatus(models.StatusPaymentFailed(err.Error()))
		return c.finish(models.CheckoutFailed)
	case res == nil:
		c.page.AppendStatus(models.StatusPaymentFailed("no result from payment provider"))
		return c.finish(models.CheckoutFailed)
	case res.Error != nil:
		c.page.AppendStatus(models.StatusPaymentFailed(res.Error.Message))
		return c.finish(models.CheckoutFailed)
	}

	if res.PaymentIntent != nil && !res.PaymentIntent.IsSucceeded() {
		c.logger.Infow("payment confirmed with pending status",
			"payment_intent", res.PaymentIntent.ID,
			"status", res.PaymentIntent.Status,
		)
	}
	c.page.AppendStatus(models.StatusPaymentSucceeded)
	return c.finish(models.CheckoutSucceeded)
}

func (c *Checkout) begin() {
	c.mu.Lock()
	c.inFlight++
	c.state = models.CheckoutSubmitting
	c.mu.Unlock()
}

func (c *Checkout) finish(s models.CheckoutState) models.CheckoutState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--
	if c.inFlight == 0 {
		c.state = s
	}
	return s
}
