package models

// PricingMode selects which request body shape the prices page sends.
type PricingMode string

const (
	PricingByProduct PricingMode = "product"
	PricingByYears   PricingMode = "years"
)

// Pricing is either a product id or a subscription length in years, never both.
type Pricing struct {
	ProductID string
	Years     int
}

func ProductPricing(productID string) Pricing {
	return Pricing{ProductID: productID}
}

func YearsPricing(years int) Pricing {
	return Pricing{Years: years}
}

func (p Pricing) Mode() PricingMode {
	if p.ProductID != "" {
		return PricingByProduct
	}
	return PricingByYears
}

// CreateSubscriptionRequest is the body posted to the subscription backend.
type CreateSubscriptionRequest struct {
	OrgID     string `json:"org_id" validate:"required"`
	ProductID string `json:"product_id,omitempty" validate:"required_without=Years,excluded_with=Years"`
	Years     int    `json:"years,omitempty" validate:"required_without=ProductID,excluded_with=ProductID,gte=0"`
}

func NewCreateSubscriptionRequest(orgID string, pricing Pricing) CreateSubscriptionRequest {
	return CreateSubscriptionRequest{
		OrgID:     orgID,
		ProductID: pricing.ProductID,
		Years:     pricing.Years,
	}
}

// CreateSubscriptionResponse is what the backend answers. Only ClientSecret is used here;
// the secret is opaque and passed through untouched.
type CreateSubscriptionResponse struct {
	OrgID         string `json:"org_id,omitempty"`
	ClientSecret  string `json:"client_secret"`
	Status        string `json:"status,omitempty"`
	Years         int    `json:"years,omitempty"`
	PriceAmount   uint64 `json:"price_amount,omitempty"`
	PriceCurrency string `json:"price_currency,omitempty"`
}

// SubscriptionResult is the outcome of a successful initiation.
type SubscriptionResult struct {
	ClientSecret string `json:"client_secret"`
	RedirectURL  string `json:"redirect_url"`
}
