package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/sefazor/subscription-checkout/internal/models"
	"github.com/sefazor/subscription-checkout/internal/page"
	"github.com/sefazor/subscription-checkout/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	ErrInvalidPricing = errors.New("invalid subscription pricing")
	ErrNoClientSecret = errors.New("subscription response has no client_secret")
)

// Id of the page input holding the bearer token for the subscription backend.
const AuthTokenField = "authToken"

// SubscriptionService starts a subscription on the backend and forwards the page
// to the payment confirmation step.
type SubscriptionService struct {
	endpoint   string
	httpClient *http.Client
	validator  *utils.Validator
	logger     *zap.SugaredLogger
}

type SubscriptionOptions struct {
	HTTPClient *http.Client
	// InsecureTLS accepts self-signed certificates, for a backend on localhost.
	InsecureTLS bool
}

func NewSubscriptionService(endpoint string, validator *utils.Validator, logger *zap.SugaredLogger, opts SubscriptionOptions) *SubscriptionService {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
		if opts.InsecureTLS {
			httpClient.Transport = &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			}
		}
	}
	return &SubscriptionService{
		endpoint:   endpoint,
		httpClient: httpClient,
		validator:  validator,
		logger:     logger,
	}
}

// Create posts the subscription request once. On success the page is sent to the
// confirmation page carrying the client secret. On any failure the error is logged,
// returned, and the page stays where it is.
func (s *SubscriptionService) Create(ctx context.Context, p page.Page, orgID string, pricing models.Pricing) (*models.SubscriptionResult, error) {
	res, err := s.create(ctx, p, orgID, pricing)
	if err != nil {
		s.logger.Errorw("subscription request failed",
			"org_id", orgID,
			"pricing", pricing.Mode(),
			"error", err,
		)
		return nil, err
	}
	return res, nil
}

func (s *SubscriptionService) create(ctx context.Context, p page.Page, orgID string, pricing models.Pricing) (*models.SubscriptionResult, error) {
	req := models.NewCreateSubscriptionRequest(orgID, pricing)
	if err := s.validator.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPricing, err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode subscription request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build subscription request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.Field(AuthTokenField))
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post subscription request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read subscription response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("subscription backend returned %s: %s", resp.Status, truncate(raw, 256))
	}

	var out models.CreateSubscriptionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode subscription response: %w", err)
	}
	if out.ClientSecret == "" {
		return nil, ErrNoClientSecret
	}

	target := ConfirmationURL(p.Location(), out.ClientSecret)
	if err := p.Navigate(target); err != nil {
		return nil, fmt.Errorf("navigate to %s: %w", models.ConfirmationPage, err)
	}

	s.logger.Infow("subscription created", "org_id", orgID, "pricing", pricing.Mode(), "status", out.Status)
	return &models.SubscriptionResult{
		ClientSecret: out.ClientSecret,
		RedirectURL:  target,
	}, nil
}

// ConfirmationURL keeps the current query untouched, in order, and appends the secret.
// An existing clientSecret parameter is never replaced.
func ConfirmationURL(current *url.URL, clientSecret string) string {
	query := ""
	if current != nil {
		query = current.RawQuery
	}
	if query != "" {
		query += "&"
	}
	query += models.ClientSecretParam + "=" + url.QueryEscape(clientSecret)
	return models.ConfirmationPage + "?" + query
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
