// Package config loads server and storefront settings from the environment
// (and optional config file) through viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Local stores for the storefront's persisted state.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
)

// Server configures the order backend.
type Server struct {
	Port      string
	DBDriver  string
	DSN       string
	JWTSecret string
	TokenTTL  time.Duration

	// AdminRegistrationKey lets the first admin register. Empty means only
	// signed-in admins can add accounts.
	AdminRegistrationKey string

	RazorpayKeyID     string
	RazorpayKeySecret string
	RazorpaySandbox   bool

	// RabbitMQURL is optional; without it events stay in process.
	RabbitMQURL   string
	RabbitMQQueue string

	StreamBuffer    int
	StreamHeartbeat time.Duration
}

// Client configures the storefront checkout.
type Client struct {
	APIURL    string
	Timeout   time.Duration
	RetryBase time.Duration
	Attempts  int

	Store          string
	StorePath      string
	RedisAddr      string
	RedisNamespace string
	RedisTTL       time.Duration

	// GatewaySecret signs sandbox checkout payments; it must match the
	// backend's Razorpay key secret.
	GatewaySecret string
	// GatewayBehavior selects the sandbox checkout outcome: pay, dismiss
	// or decline.
	GatewayBehavior string
	// GatewayDisabled simulates a checkout script that fails to load.
	GatewayDisabled bool
}

// New returns a viper instance with every default set and environment
// variables bound.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DB_DRIVER", DriverSQLite)
	v.SetDefault("DATABASE_URL", "ecostore.db")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_TTL", "24h")
	v.SetDefault("ADMIN_REGISTRATION_KEY", "")
	v.SetDefault("RAZORPAY_KEY_ID", "rzp_test_ecostore")
	v.SetDefault("RAZORPAY_KEY_SECRET", "")
	v.SetDefault("RAZORPAY_SANDBOX", true)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("RABBITMQ_QUEUE", "order_events")
	v.SetDefault("STREAM_BUFFER", 32)
	v.SetDefault("STREAM_HEARTBEAT", "15s")

	v.SetDefault("CHECKOUT_API_URL", "http://localhost:8080")
	v.SetDefault("CHECKOUT_TIMEOUT", "15s")
	v.SetDefault("CHECKOUT_RETRY_BASE", "500ms")
	v.SetDefault("CHECKOUT_ATTEMPTS", 3)
	v.SetDefault("CHECKOUT_STORE", StoreSQLite)
	v.SetDefault("CHECKOUT_STORE_PATH", "checkout-state.db")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_NAMESPACE", "ecostore:checkout")
	v.SetDefault("REDIS_TTL", "0s")
	v.SetDefault("CHECKOUT_GATEWAY", "pay")
	v.SetDefault("CHECKOUT_GATEWAY_DISABLED", false)
}

// LoadServer reads the backend settings from v.
func LoadServer(v *viper.Viper) (Server, error) {
	cfg := Server{
		Port:              v.GetString("APP_PORT"),
		DBDriver:          strings.ToLower(v.GetString("DB_DRIVER")),
		DSN:               v.GetString("DATABASE_URL"),
		JWTSecret:         v.GetString("JWT_SECRET"),
		TokenTTL:          v.GetDuration("JWT_TTL"),
		RazorpayKeyID:     v.GetString("RAZORPAY_KEY_ID"),
		RazorpayKeySecret: v.GetString("RAZORPAY_KEY_SECRET"),
		RazorpaySandbox:   v.GetBool("RAZORPAY_SANDBOX"),
		RabbitMQURL:       v.GetString("RABBITMQ_URL"),
		RabbitMQQueue:     v.GetString("RABBITMQ_QUEUE"),
		StreamBuffer:      v.GetInt("STREAM_BUFFER"),
		StreamHeartbeat:   v.GetDuration("STREAM_HEARTBEAT"),

		AdminRegistrationKey: v.GetString("ADMIN_REGISTRATION_KEY"),
	}
	return cfg, cfg.Validate()
}

// Validate reports every missing or invalid backend setting.
func (c Server) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("APP_PORT is required"))
	}
	switch c.DBDriver {
	case DriverSQLite, DriverPostgres:
		if c.DSN == "" {
			errs = append(errs, fmt.Errorf("DATABASE_URL is required for the %s driver", c.DBDriver))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER must be one of sqlite, postgres, memory, got %q", c.DBDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.RazorpayKeyID == "" || c.RazorpayKeySecret == "" {
		errs = append(errs, errors.New("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required"))
	}
	if c.StreamBuffer <= 0 {
		errs = append(errs, errors.New("STREAM_BUFFER must be positive"))
	}
	return errors.Join(errs...)
}

// LoadClient reads the storefront settings from v.
func LoadClient(v *viper.Viper) (Client, error) {
	cfg := Client{
		APIURL:          v.GetString("CHECKOUT_API_URL"),
		Timeout:         v.GetDuration("CHECKOUT_TIMEOUT"),
		RetryBase:       v.GetDuration("CHECKOUT_RETRY_BASE"),
		Attempts:        v.GetInt("CHECKOUT_ATTEMPTS"),
		Store:           strings.ToLower(v.GetString("CHECKOUT_STORE")),
		StorePath:       v.GetString("CHECKOUT_STORE_PATH"),
		RedisAddr:       v.GetString("REDIS_ADDR"),
		RedisNamespace:  v.GetString("REDIS_NAMESPACE"),
		RedisTTL:        v.GetDuration("REDIS_TTL"),
		GatewaySecret:   v.GetString("RAZORPAY_KEY_SECRET"),
		GatewayBehavior: strings.ToLower(v.GetString("CHECKOUT_GATEWAY")),
		GatewayDisabled: v.GetBool("CHECKOUT_GATEWAY_DISABLED"),
	}
	return cfg, cfg.Validate()
}

// Validate reports every missing or invalid storefront setting.
func (c Client) Validate() error {
	var errs []error
	if !strings.HasPrefix(c.APIURL, "http://") && !strings.HasPrefix(c.APIURL, "https://") {
		errs = append(errs, fmt.Errorf("CHECKOUT_API_URL must be an http(s) URL, got %q", c.APIURL))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("CHECKOUT_TIMEOUT must be positive"))
	}
	if c.Attempts < 1 {
		errs = append(errs, errors.New("CHECKOUT_ATTEMPTS must be at least 1"))
	}
	switch c.Store {
	case StoreMemory:
	case StoreSQLite:
		if c.StorePath == "" {
			errs = append(errs, errors.New("CHECKOUT_STORE_PATH is required for the sqlite store"))
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis store"))
		}
	default:
		errs = append(errs, fmt.Errorf("CHECKOUT_STORE must be one of memory, sqlite, redis, got %q", c.Store))
	}
	switch c.GatewayBehavior {
	case "pay", "dismiss", "decline":
	default:
		errs = append(errs, fmt.Errorf("CHECKOUT_GATEWAY must be one of pay, dismiss, decline, got %q", c.GatewayBehavior))
	}
	return errors.Join(errs...)
}
