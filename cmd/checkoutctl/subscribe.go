package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sefazor/subscription-checkout/internal/config"
	"github.com/sefazor/subscription-checkout/internal/models"
	"github.com/sefazor/subscription-checkout/internal/page"
	"github.com/sefazor/subscription-checkout/internal/service"
	"github.com/sefazor/subscription-checkout/pkg/logging"
	"github.com/sefazor/subscription-checkout/pkg/utils"
)

func subscribeCmd() *cobra.Command {
	var (
		orgID     string
		productID string
		years     int
		token     string
		pageURL   string
	)
	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Start a subscription and print the confirmation page URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (productID == "") == (years == 0) {
				return errors.New("exactly one of --product and --years is required")
			}
			pricing := models.YearsPricing(years)
			if productID != "" {
				pricing = models.ProductPricing(productID)
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.Log.Level, "console")
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			p, err := page.NewMemoryPage(pageURL, map[string]string{service.AuthTokenField: token})
			if err != nil {
				return fmt.Errorf("invalid --page-url: %w", err)
			}

			svc := service.NewSubscriptionService(cfg.Checkout.BackendURL, utils.NewValidator(), logger,
				service.SubscriptionOptions{InsecureTLS: cfg.Checkout.InsecureTLS})
			if _, err := svc.Create(cmd.Context(), p, orgID, pricing); err != nil {
				return err
			}

			for _, u := range p.Navigations() {
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "", "organization id")
	cmd.Flags().StringVar(&productID, "product", "", "product id")
	cmd.Flags().IntVar(&years, "years", 0, "subscription length in years")
	cmd.Flags().StringVar(&token, "token", "", "bearer token for the subscription backend")
	cmd.Flags().StringVar(&pageURL, "page-url", "http://localhost:8080/prices.html", "URL of the page the request is made from")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}
