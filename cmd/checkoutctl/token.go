package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sefazor/subscription-checkout/internal/config"
	"github.com/sefazor/subscription-checkout/pkg/jwt"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint or inspect bearer tokens for the subscription backend",
	}
	cmd.AddCommand(tokenMintCmd(), tokenVerifyCmd())
	return cmd
}

func tokenMintCmd() *cobra.Command {
	var (
		subject string
		email   string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Sign a token with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := jwtSecret()
			if err != nil {
				return err
			}
			tok, err := jwt.GenerateToken(secret, subject, email, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "token subject (user id)")
	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", jwt.TokenExpiry, "token lifetime")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}

func tokenVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify [token]",
		Short: "Check a token against JWT_SECRET",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := jwtSecret()
			if err != nil {
				return err
			}
			claims, err := jwt.ValidateToken(secret, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "subject: %s\nemail:   %s\nexpires: %s\n",
				claims.Subject, claims.Email, claims.ExpiresAt.Time.Format(time.RFC3339))
			return nil
		},
	}
}

func jwtSecret() ([]byte, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return []byte(cfg.JWTSecret), nil
}
