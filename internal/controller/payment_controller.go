package controller

import (
	"context"

	"github.com/sefazor/subscription-checkout/internal/models"
	"github.com/sefazor/subscription-checkout/internal/page"
	"github.com/sefazor/subscription-checkout/internal/service"
)

type PaymentController struct {
	paymentService *service.PaymentService
}

func NewPaymentController(paymentService *service.PaymentService) *PaymentController {
	return &PaymentController{
		paymentService: paymentService,
	}
}

func (c *PaymentController) LoadCheckout(p page.Page) (*service.Checkout, error) {
	return c.paymentService.Load(p)
}

func (c *PaymentController) SubmitCheckout(ctx context.Context, checkout *service.Checkout, form page.Fields) models.CheckoutState {
	return checkout.SubmitForm(ctx, form)
}
