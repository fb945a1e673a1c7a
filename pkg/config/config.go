package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingCredential is returned by Validate when a required secret is unset.
var ErrMissingCredential = errors.New("missing required credential")

// Config holds the application configuration.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	LogFile    string `mapstructure:"LOG_FILE"`
	OutputDir  string `mapstructure:"OUTPUT_DIR"`

	AutoTraderURL        string `mapstructure:"AUTOTRADER_URL"`
	PistonHeadsURL       string `mapstructure:"PISTONHEADS_URL"`
	MaxListingsPerSource int    `mapstructure:"MAX_LISTINGS_PER_SOURCE"`
	MaxImages            int    `mapstructure:"MAX_IMAGES"`

	Postcode       string `mapstructure:"POSTCODE"`
	ValuationURL   string `mapstructure:"VALUATION_URL"`
	ValuationEmail string `mapstructure:"VALUATION_EMAIL"`

	OCRAPIKey            string `mapstructure:"OCR_API_KEY"`
	OCREndpoint          string `mapstructure:"OCR_ENDPOINT"`
	OCRMaxAttempts       int    `mapstructure:"OCR_MAX_ATTEMPTS"`
	OCRRetryDelayMS      int    `mapstructure:"OCR_RETRY_DELAY_MS"`
	OCRRequestsPerMinute int    `mapstructure:"OCR_REQUESTS_PER_MINUTE"`

	ImageDelayMS            int  `mapstructure:"IMAGE_DELAY_MS"`
	ListingDelayMS          int  `mapstructure:"LISTING_DELAY_MS"`
	PageLoadTimeoutSeconds  int  `mapstructure:"PAGE_LOAD_TIMEOUT_SECONDS"`
	ValuationTimeoutSeconds int  `mapstructure:"VALUATION_TIMEOUT_SECONDS"`
	Headless                bool `mapstructure:"HEADLESS"`
	PublishTimeoutSeconds   int  `mapstructure:"PUBLISH_TIMEOUT_SECONDS"`

	PostgresURL   string `mapstructure:"POSTGRES_URL"`
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`
	CacheTTLHours int    `mapstructure:"CACHE_TTL_HOURS"`

	SMTPHost           string `mapstructure:"SMTP_HOST"`
	SMTPPort           int    `mapstructure:"SMTP_PORT"`
	SenderEmail        string `mapstructure:"SENDER_EMAIL"`
	SenderPassword     string `mapstructure:"SENDER_PASSWORD"`
	RecipientEmail     string `mapstructure:"RECIPIENT_EMAIL"`
	SMTPTimeoutSeconds int    `mapstructure:"SMTP_TIMEOUT_SECONDS"`
}

// Default searches for high-mileage cars near the default postcode.
const (
	DefaultAutoTraderURL = "https://www.autotrader.co.uk/car-search?advertising-location=at_cars&channel=cars" +
		"&homeDeliveryAdverts=include&maximum-mileage=150000&minimum-mileage=100000&postcode=M329AU&radius=50" +
		"&sort=relevance&year-to=2026"
	DefaultPistonHeadsURL = "https://www.pistonheads.com/buy/search?distance=60&mileage=100000&mileage=175000" +
		"&postcode=M32%209AU&price=8000&price=15000&sort-order=Date&year=2010&year=2022"
)

var defaults = map[string]any{
	"SERVER_PORT": "8080",
	"LOG_LEVEL":   "info",
	"LOG_FILE":    "car_valuation_bot.log",
	"OUTPUT_DIR":  "output",

	"AUTOTRADER_URL":          DefaultAutoTraderURL,
	"PISTONHEADS_URL":         DefaultPistonHeadsURL,
	"MAX_LISTINGS_PER_SOURCE": 15,
	"MAX_IMAGES":              4,

	"POSTCODE":        "M32 9AU",
	"VALUATION_URL":   "https://www.webuyanycar.com/",
	"VALUATION_EMAIL": "test@example.com",

	"OCR_ENDPOINT":            "https://api.ocr.space/parse/image",
	"OCR_MAX_ATTEMPTS":        3,
	"OCR_RETRY_DELAY_MS":      1000,
	"OCR_REQUESTS_PER_MINUTE": 60,

	"IMAGE_DELAY_MS":            500,
	"LISTING_DELAY_MS":          1000,
	"PAGE_LOAD_TIMEOUT_SECONDS": 30,
	"VALUATION_TIMEOUT_SECONDS": 90,
	"HEADLESS":                  true,
	"PUBLISH_TIMEOUT_SECONDS":   300,

	"REDIS_DB":        0,
	"CACHE_TTL_HOURS": 48,

	"SMTP_HOST":            "smtp.gmail.com",
	"SMTP_PORT":            587,
	"SMTP_TIMEOUT_SECONDS": 30,
}

// Load reads configuration from an optional .env file and environment variables.
func Load() (*Config, error) {
	return load(".env")
}

func load(envFile string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()

	// A missing .env is fine; production config comes from the environment.
	_ = v.ReadInConfig()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{"OCR_API_KEY", "POSTGRES_URL", "REDIS_ADDR", "REDIS_PASSWORD",
		"SENDER_EMAIL", "SENDER_PASSWORD", "RECIPIENT_EMAIL"} {
		v.SetDefault(key, "")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings that must be present before any scraping starts.
func (c *Config) Validate() error {
	if c.OCRAPIKey == "" {
		return fmt.Errorf("%w: OCR_API_KEY", ErrMissingCredential)
	}
	if c.MaxListingsPerSource <= 0 {
		return fmt.Errorf("MAX_LISTINGS_PER_SOURCE must be positive, got %d", c.MaxListingsPerSource)
	}
	if c.OCRMaxAttempts <= 0 {
		return fmt.Errorf("OCR_MAX_ATTEMPTS must be positive, got %d", c.OCRMaxAttempts)
	}
	return nil
}

// EmailEnabled reports whether all SMTP credentials are configured.
func (c *Config) EmailEnabled() bool {
	return c.SenderEmail != "" && c.SenderPassword != "" && c.RecipientEmail != ""
}

func (c *Config) OCRRetryDelay() time.Duration {
	return time.Duration(c.OCRRetryDelayMS) * time.Millisecond
}

func (c *Config) ImageDelay() time.Duration {
	return time.Duration(c.ImageDelayMS) * time.Millisecond
}

func (c *Config) ListingDelay() time.Duration {
	return time.Duration(c.ListingDelayMS) * time.Millisecond
}

func (c *Config) PageLoadTimeout() time.Duration {
	return time.Duration(c.PageLoadTimeoutSeconds) * time.Second
}

func (c *Config) ValuationTimeout() time.Duration {
	return time.Duration(c.ValuationTimeoutSeconds) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLHours) * time.Hour
}

func (c *Config) PublishTimeout() time.Duration {
	return time.Duration(c.PublishTimeoutSeconds) * time.Second
}

func (c *Config) SMTPTimeout() time.Duration {
	return time.Duration(c.SMTPTimeoutSeconds) * time.Second
}
