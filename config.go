// harvestbasket/config.go

package main

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/norun9/harvestbasket/cartstore"
	"github.com/norun9/harvestbasket/checkout"
)

type config struct {
	Port       string `env:"PORT" default:"8080" help:"HTTP listen port."`
	HealthPort string `env:"HEALTH_PORT" default:"7070" help:"gRPC health check listen port."`
	LogLevel   string `env:"LOG_LEVEL" enum:"debug,info,warn,error" default:"info" help:"Minimum log level."`

	BackendURL     string `env:"BACKEND_URL" required:"" help:"Base URL of the managed backend (REST and functions)."`
	BackendAnonKey string `env:"BACKEND_ANON_KEY" help:"Anonymous API key sent to the managed backend."`

	CartBackend    string `env:"CART_BACKEND" enum:"memory,sqlite,redis" default:"sqlite" help:"Where carts are persisted."`
	CartSQLitePath string `env:"CART_SQLITE_PATH" default:"carts.db" help:"SQLite database file for the sqlite cart backend."`
	RedisAddr      string `env:"REDIS_ADDR" help:"Redis address or URL for the redis cart backend."`
	CartNamespace  string `env:"CART_NAMESPACE" help:"Prefix of persisted cart keys (harvest-basket-cart when empty)."`
	MaxSessions    int    `env:"CART_MAX_SESSIONS" default:"10000" help:"Carts kept in memory before the least recently used is evicted."`

	Currency          string          `env:"CURRENCY" default:"inr" help:"Currency of every order."`
	DeliveryThreshold decimal.Decimal `env:"DELIVERY_THRESHOLD" default:"999" help:"Subtotal from which delivery is free."`
	DeliveryFee       decimal.Decimal `env:"DELIVERY_FEE" default:"50" help:"Delivery fee below the threshold."`

	EnableTracing bool   `env:"ENABLE_TRACING" default:"true" negatable:"" help:"Export traces over OTLP."`
	OTLPEndpoint  string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317" help:"OTLP gRPC collector endpoint."`
}

// Validate is called by kong after parsing.
func (c *config) Validate() error {
	if c.CartBackend == "redis" && c.RedisAddr == "" {
		return errors.New("REDIS_ADDR is required when CART_BACKEND=redis")
	}
	if c.MaxSessions < 1 {
		return errors.Errorf("CART_MAX_SESSIONS must be positive, got %d", c.MaxSessions)
	}
	if c.DeliveryThreshold.IsNegative() || c.DeliveryFee.IsNegative() {
		return errors.New("delivery threshold and fee must not be negative")
	}
	return nil
}

func (c *config) logLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

func (c *config) deliveryPolicy() checkout.DeliveryPolicy {
	return checkout.DeliveryPolicy{Threshold: c.DeliveryThreshold, Fee: c.DeliveryFee}
}

func (c *config) cartBackend(log logrus.FieldLogger) (cartstore.Backend, error) {
	switch c.CartBackend {
	case "memory":
		return cartstore.NewLocalBackend(), nil
	case "redis":
		return cartstore.NewRedisBackend(c.RedisAddr, log), nil
	case "sqlite":
		return cartstore.NewSQLiteBackend(c.CartSQLitePath)
	default:
		return nil, errors.Errorf("unknown cart backend %q", c.CartBackend)
	}
}
