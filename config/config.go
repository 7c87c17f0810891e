package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"investor/database"
)

const (
	MpesaSandboxURL    = "https://sandbox.safaricom.co.ke"
	MpesaProductionURL = "https://api.safaricom.co.ke"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string
	DatabaseName string

	// HTTP server
	HTTPPort string
	BaseURL  string // Public URL the gateway calls back on

	// M-Pesa configuration
	MpesaConsumerKey    string
	MpesaConsumerSecret string
	MpesaShortcode      string
	MpesaPasskey        string
	MpesaEnvironment    string // "sandbox" or "production"
	MpesaBaseURL        string
	MpesaCallbackURL    string
	MpesaTimeout        time.Duration

	// Plan table, empty means built-in defaults
	PlansFile string

	// Workers
	AccrualInterval      time.Duration
	AccrualConcurrency   int
	AccrualRecordTimeout time.Duration
	ReconcileInterval    time.Duration
	PendingPollAfter     time.Duration
	PendingExpiry        time.Duration

	// NATS configuration
	NATSEnabled bool
	NATSServers string // NATS server addresses (comma-separated)

	// OpenTelemetry
	OTelEnabled        bool
	OTelExporterType   string // "console", "otlp" or "none"
	OTelEndpoint       string
	OTelServiceName    string
	OTelExportInterval time.Duration

	LogLevel string

	// Environment
	Environment string // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// CallbackURL is where the gateway posts payment outcomes
func (c *Config) CallbackURL() string {
	if c.MpesaCallbackURL != "" {
		return c.MpesaCallbackURL
	}
	return strings.TrimRight(c.BaseURL, "/") + "/api/mpesa/callback"
}

// IsProduction reports whether payments hit the live gateway
func (c *Config) IsProduction() bool {
	return c.MpesaEnvironment == "production"
}

// load loads configuration from environment variables
func load() (*Config, error) {
	var errs []string

	config := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabaseName: os.Getenv("DATABASE_NAME"),

		HTTPPort: getEnvWithDefault("HTTP_PORT", "8080"),
		BaseURL:  os.Getenv("BASE_URL"),

		MpesaConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
		MpesaConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
		MpesaShortcode:      os.Getenv("MPESA_SHORTCODE"),
		MpesaPasskey:        os.Getenv("MPESA_PASSKEY"),
		MpesaEnvironment:    getEnvWithDefault("MPESA_ENVIRONMENT", "sandbox"),
		MpesaBaseURL:        os.Getenv("MPESA_BASE_URL"),
		MpesaCallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
		MpesaTimeout:        getDuration("MPESA_TIMEOUT", 15*time.Second, &errs),

		PlansFile: os.Getenv("PLANS_FILE"),

		AccrualInterval:      getDuration("ACCRUAL_INTERVAL", time.Minute, &errs),
		AccrualConcurrency:   getInt("ACCRUAL_CONCURRENCY", 8, &errs),
		AccrualRecordTimeout: getDuration("ACCRUAL_RECORD_TIMEOUT", 10*time.Second, &errs),
		ReconcileInterval:    getDuration("RECONCILE_INTERVAL", time.Minute, &errs),
		PendingPollAfter:     getDuration("PENDING_POLL_AFTER", 2*time.Minute, &errs),
		PendingExpiry:        getDuration("PENDING_EXPIRY", 30*time.Minute, &errs),

		NATSEnabled: os.Getenv("NATS_ENABLED") == "true",
		NATSServers: getEnvWithDefault("NATS_SERVERS", "nats://nats:4222"),

		OTelEnabled:        os.Getenv("OTEL_ENABLED") == "true",
		OTelExporterType:   getEnvWithDefault("OTEL_EXPORTER_TYPE", "console"),
		OTelEndpoint:       getEnvWithDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnvWithDefault("OTEL_SERVICE_NAME", "investor"),
		OTelExportInterval: time.Duration(getInt("OTEL_EXPORT_INTERVAL_MILLIS", 60000, &errs)) * time.Millisecond,

		LogLevel: getEnvWithDefault("LOG_LEVEL", "info"),

		Environment: os.Getenv("ENVIRONMENT"),
	}

	if config.MpesaBaseURL == "" {
		config.MpesaBaseURL = MpesaSandboxURL
		if config.IsProduction() {
			config.MpesaBaseURL = MpesaProductionURL
		}
	}

	// Set default environment if not specified
	if config.Environment == "" {
		config.Environment = "development"
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}

	if config.Environment != "test" {
		if err := config.validate(); err != nil {
			return nil, err
		}
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.MpesaConsumerKey == "" || c.MpesaConsumerSecret == "" {
		return fmt.Errorf("MPESA_CONSUMER_KEY and MPESA_CONSUMER_SECRET are required")
	}
	if c.MpesaShortcode == "" || c.MpesaPasskey == "" {
		return fmt.Errorf("MPESA_SHORTCODE and MPESA_PASSKEY are required")
	}
	if c.MpesaCallbackURL == "" && c.BaseURL == "" {
		return fmt.Errorf("BASE_URL or MPESA_CALLBACK_URL is required")
	}
	if c.MpesaEnvironment != "sandbox" && c.MpesaEnvironment != "production" {
		return fmt.Errorf("MPESA_ENVIRONMENT must be sandbox or production, got %q", c.MpesaEnvironment)
	}
	if c.AccrualConcurrency <= 0 {
		return fmt.Errorf("ACCRUAL_CONCURRENCY must be positive")
	}
	if c.PendingExpiry <= c.PendingPollAfter {
		return fmt.Errorf("PENDING_EXPIRY must be longer than PENDING_POLL_AFTER")
	}
	return nil
}

// getEnvWithDefault returns the environment variable value or a default if not set
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration, errs *[]string) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s must be a positive duration, got %q", key, value))
		return defaultValue
	}
	return d
}

func getInt(key string, defaultValue int, errs *[]string) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s must be an integer, got %q", key, value))
		return defaultValue
	}
	return n
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a minimal config suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		Environment:          "test",
		HTTPPort:             "8080",
		BaseURL:              "http://localhost:8080",
		MpesaShortcode:       "174379",
		MpesaEnvironment:     "sandbox",
		MpesaBaseURL:         MpesaSandboxURL,
		MpesaTimeout:         15 * time.Second,
		AccrualInterval:      time.Minute,
		AccrualConcurrency:   8,
		AccrualRecordTimeout: 10 * time.Second,
		ReconcileInterval:    time.Minute,
		PendingPollAfter:     2 * time.Minute,
		PendingExpiry:        30 * time.Minute,
		OTelExporterType:     "none",
		OTelServiceName:      "investor",
		OTelExportInterval:   time.Minute,
		LogLevel:             "info",
	}
}
