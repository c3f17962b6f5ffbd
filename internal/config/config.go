package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
)

// Config is the single configuration struct for the service, parsed
// from the environment once at startup. Operations never read the
// environment directly; everything flows through here.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`

	CheckoutSuccessURL string `env:"CHECKOUT_SUCCESS_URL"`

	SMTPHost  string `env:"SMTP_HOST"`
	SMTPPort  string `env:"SMTP_PORT"`
	SMTPUser  string `env:"SMTP_USER"`
	SMTPPass  string `env:"SMTP_PASS"`
	EmailFrom string `env:"EMAIL_FROM" envDefault:"support@parcelpoint.app"`

	SentryDSN string `env:"SENTRY_DSN"`
}

// New loads and validates the configuration. Validation collects every
// problem before failing so a misconfigured deployment reports all
// missing keys at once instead of one per restart.
func New() (*Config, error) {
	// The .env file is optional outside local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	var result *multierror.Error

	if c.DatabaseURL == "" {
		result = multierror.Append(result, errors.New("DATABASE_URL is required"))
	}
	if c.RedisURL == "" {
		result = multierror.Append(result, errors.New("REDIS_URL is required"))
	}
	if c.StripeSecretKey == "" {
		result = multierror.Append(result, errors.New("STRIPE_SECRET_KEY is required"))
	} else if !strings.HasPrefix(c.StripeSecretKey, "sk_") && !strings.HasPrefix(c.StripeSecretKey, "rk_") {
		result = multierror.Append(result, errors.New("STRIPE_SECRET_KEY does not look like a secret key"))
	}
	if c.StripeWebhookSecret == "" {
		result = multierror.Append(result, errors.New("STRIPE_WEBHOOK_SECRET is required"))
	}
	if c.CheckoutSuccessURL == "" {
		result = multierror.Append(result, errors.New("CHECKOUT_SUCCESS_URL is required"))
	} else if !strings.HasPrefix(c.CheckoutSuccessURL, "http") {
		result = multierror.Append(result, errors.New("CHECKOUT_SUCCESS_URL must be an absolute URL"))
	}

	// SMTP is optional, but a partial SMTP config is a mistake.
	smtpSet := c.SMTPHost != "" || c.SMTPPort != "" || c.SMTPUser != "" || c.SMTPPass != ""
	smtpComplete := c.SMTPHost != "" && c.SMTPPort != "" && c.SMTPUser != "" && c.SMTPPass != ""
	if smtpSet && !smtpComplete {
		result = multierror.Append(result, errors.New("SMTP_HOST, SMTP_PORT, SMTP_USER and SMTP_PASS must be set together"))
	}

	return result.ErrorOrNil()
}

// EmailEnabled reports whether the optional SMTP group is configured.
func (c *Config) EmailEnabled() bool {
	return c.SMTPHost != "" && c.SMTPPort != "" && c.SMTPUser != "" && c.SMTPPass != ""
}
