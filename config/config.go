package config

import (
	"fmt"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	DatabaseName      string `mapstructure:"DATABASE_NAME"`
	StoreDriver       string `mapstructure:"STORE_DRIVER"`
	Env               string `mapstructure:"ENV"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Payment gateway.
	StripeKey            string        `mapstructure:"STRIPE_KEY"`
	StripeWebhookSecret  string        `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	SandboxGatewaySecret string        `mapstructure:"SANDBOX_GATEWAY_SECRET"`
	Currency             string        `mapstructure:"CURRENCY"`
	GatewayTimeout       time.Duration `mapstructure:"GATEWAY_TIMEOUT"`

	// Booking lifecycle windows.
	PaymentWindow      time.Duration `mapstructure:"PAYMENT_WINDOW"`
	ProviderEditWindow time.Duration `mapstructure:"PROVIDER_EDIT_WINDOW"`
	RefundStaleAfter   time.Duration `mapstructure:"REFUND_STALE_AFTER"`
	SweepInterval      time.Duration `mapstructure:"SWEEP_INTERVAL"`
	SweepBatchSize     int           `mapstructure:"SWEEP_BATCH_SIZE"`
	CategoryCacheTTL   time.Duration `mapstructure:"CATEGORY_CACHE_TTL"`

	// Lifecycle events.
	RabbitURL      string `mapstructure:"RABBIT_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`

	FirebaseCredentialsFile string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`
	FirebaseProjectID       string `mapstructure:"FIREBASE_PROJECT_ID"`
	OTLPEndpoint            string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	CatalogFile             string `mapstructure:"CATALOG_FILE"`
}

var AppConfig Config

func LoadConfig() {
	// A local .env is optional; real environment variables win.
	_ = godotenv.Load()

	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	for key, value := range defaults() {
		viper.SetDefault(key, value)
	}

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := AppConfig.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
}

func defaults() map[string]any {
	return map[string]any{
		"APP_PORT":                    "8080",
		"ENV":                         "development",
		"LOG_LEVEL":                   "info",
		"MAX_REQUESTS_PER_MIN":        200,
		"DATABASE_URL":                "mongodb://localhost:27017",
		"DATABASE_NAME":               "fieldhand",
		"STORE_DRIVER":                "mongo",
		"REDIS_ADDR":                  "localhost:6379",
		"REDIS_PASSWORD":              "",
		"REDIS_CACHE_DB":              0,
		"REDIS_QUEUE_DB":              3,
		"STRIPE_KEY":                  "",
		"STRIPE_WEBHOOK_SECRET":       "",
		"SANDBOX_GATEWAY_SECRET":      "sandbox-secret",
		"CURRENCY":                    "inr",
		"GATEWAY_TIMEOUT":             "10s",
		"PAYMENT_WINDOW":              "24h",
		"REFUND_STALE_AFTER":          "15m",
		"PROVIDER_EDIT_WINDOW":        "12h",
		"SWEEP_INTERVAL":              "1m",
		"SWEEP_BATCH_SIZE":            200,
		"CATEGORY_CACHE_TTL":          "10m",
		"RABBIT_URL":                  "",
		"EVENTS_EXCHANGE":             "booking.events",
		"FIREBASE_CREDENTIALS_FILE":   "",
		"FIREBASE_PROJECT_ID":         "",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "",
		"CATALOG_FILE":                "",
	}
}

// Validate rejects settings the lifecycle engine cannot honour.
func (c Config) Validate() error {
	if c.PaymentWindow <= 0 {
		return fmt.Errorf("PAYMENT_WINDOW must be positive, got %s", c.PaymentWindow)
	}
	if c.ProviderEditWindow <= 0 {
		return fmt.Errorf("PROVIDER_EDIT_WINDOW must be positive, got %s", c.ProviderEditWindow)
	}
	// The authoritative expiry sweep must run at least once per minute.
	if c.SweepInterval <= 0 || c.SweepInterval > time.Minute {
		return fmt.Errorf("SWEEP_INTERVAL must be in (0, 1m], got %s", c.SweepInterval)
	}
	if c.SweepBatchSize <= 0 {
		return fmt.Errorf("SWEEP_BATCH_SIZE must be positive, got %d", c.SweepBatchSize)
	}
	if c.StoreDriver != "mongo" && c.StoreDriver != "memory" {
		return fmt.Errorf("STORE_DRIVER must be mongo or memory, got %q", c.StoreDriver)
	}
	if c.Env == "production" && c.StripeKey == "" {
		return fmt.Errorf("STRIPE_KEY is required in production")
	}
	if c.Env == "production" && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	return nil
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
