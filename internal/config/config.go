package config

import (
	"errors"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/shopspring/decimal"
)

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	DatabaseURL string `env:"DATABASE_URL" envDefault:"sqlite://storefront.db"`
	RedisURL    string `env:"REDIS_URL"`

	Auth     Auth     `envPrefix:"AUTH_"`
	Gateway  Gateway  `envPrefix:"GATEWAY_"`
	Checkout Checkout `envPrefix:"CHECKOUT_"`
	Notify   Notify   `envPrefix:"NOTIFY_"`
}

type Auth struct {
	JWTSecret string `env:"JWT_SECRET"`
}

type Gateway struct {
	BaseApiURL        string        `env:"BASE_API_URL" envDefault:"https://api.razorpay.com"`
	KeyID             string        `env:"KEY_ID"`
	KeySecret         string        `env:"KEY_SECRET"`
	WebhookSecret     string        `env:"WEBHOOK_SECRET"`
	Currency          string        `env:"CURRENCY" envDefault:"INR"`
	CheckoutScriptURL string        `env:"CHECKOUT_SCRIPT_URL" envDefault:"https://checkout.razorpay.com/v1/checkout.js"`
	Timeout           time.Duration `env:"TIMEOUT" envDefault:"15s"`

	BreakerMaxFailures uint32        `env:"BREAKER_MAX_FAILURES" envDefault:"5"`
	BreakerOpenTimeout time.Duration `env:"BREAKER_OPEN_TIMEOUT" envDefault:"30s"`
}

type Checkout struct {
	TaxRate decimal.Decimal `env:"TAX_RATE" envDefault:"0.18"`
}

type Notify struct {
	Driver       string   `env:"DRIVER" envDefault:"none"` // none, webhook, kafka
	WebhookURL   string   `env:"WEBHOOK_URL"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"storefront-cart-events"`
	QueueSize    int      `env:"QUEUE_SIZE" envDefault:"256"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

// Load parses the process environment into a Config and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("AUTH_JWT_SECRET is required"))
	}
	if c.Gateway.KeyID == "" {
		errs = append(errs, errors.New("GATEWAY_KEY_ID is required"))
	}
	if c.Gateway.KeySecret == "" {
		errs = append(errs, errors.New("GATEWAY_KEY_SECRET is required"))
	}
	if c.Checkout.TaxRate.IsNegative() {
		errs = append(errs, errors.New("CHECKOUT_TAX_RATE must not be negative"))
	}
	switch c.Notify.Driver {
	case "none":
	case "webhook":
		if c.Notify.WebhookURL == "" {
			errs = append(errs, errors.New("NOTIFY_WEBHOOK_URL is required for the webhook driver"))
		}
	case "kafka":
		if len(c.Notify.KafkaBrokers) == 0 {
			errs = append(errs, errors.New("NOTIFY_KAFKA_BROKERS is required for the kafka driver"))
		}
	default:
		errs = append(errs, errors.New("NOTIFY_DRIVER must be one of none, webhook, kafka"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Environment.Name == "production"
}
