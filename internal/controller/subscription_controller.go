package controller

import (
	"context"

	"github.com/sefazor/subscription-checkout/internal/models"
	"github.com/sefazor/subscription-checkout/internal/page"
	"github.com/sefazor/subscription-checkout/internal/service"
)

type SubscriptionController struct {
	subscriptionService *service.SubscriptionService
}

func NewSubscriptionController(subscriptionService *service.SubscriptionService) *SubscriptionController {
	return &SubscriptionController{
		subscriptionService: subscriptionService,
	}
}

func (c *SubscriptionController) CreateSubscription(ctx context.Context, p page.Page, orgID string, pricing models.Pricing) (*models.SubscriptionResult, error) {
	return c.subscriptionService.Create(ctx, p, orgID, pricing)
}
