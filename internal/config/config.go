package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Log  Log
	HTTP HTTPServer

	Checkout Checkout `envPrefix:"CHECKOUT_"`
	Stripe   Stripe   `envPrefix:"STRIPE_"`

	JWTSecret string `env:"JWT_SECRET"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host             string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port             string `env:"HTTP_PORT" envDefault:"8080"`
	CORSAllowOrigins string `env:"CORS_ALLOW_ORIGINS" envDefault:"http://localhost:8080"`
	RateLimitMax     int    `env:"RATE_LIMIT_MAX" envDefault:"20"`
}

type Checkout struct {
	// Subscription backend endpoint the prices page posts to.
	BackendURL  string        `env:"BACKEND_URL" envDefault:"https://localhost:7891/v1/ms/subscription/create"`
	InsecureTLS bool          `env:"INSECURE_TLS" envDefault:"false"`
	PricingMode string        `env:"PRICING_MODE" envDefault:"product" validate:"pricing_mode"`
	ProductID   string        `env:"PRODUCT_ID" envDefault:"prod_K2OpdTIt5JQxoW"`
	SessionTTL  time.Duration `env:"SESSION_TTL" envDefault:"30m"`
	// Absolute base used for QR handoff links; empty means derive from the request.
	PublicURL string `env:"PUBLIC_URL"`
}

type Stripe struct {
	PublishableKey string `env:"PUBLISHABLE_KEY" validate:"stripe_publishable_key"`
	// Overrides the Stripe API base, used against stripe-mock.
	APIURL string `env:"API_URL"`
}

func (c *Config) Addr() string {
	return c.HTTP.Host + ":" + c.HTTP.Port
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
