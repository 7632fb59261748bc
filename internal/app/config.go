package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/romeosyl08-png/resto/internal/domain/loyalty"
	"github.com/romeosyl08-png/resto/internal/domain/window"
)

// Config holds the complete application configuration, loadable from
// environment variables (RESTO_ prefix), flags, or YAML config files.
type Config struct {
	Addr           string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL    string `usage:"PostgreSQL connection URL (RESTO_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	RedisURL       string `default:"redis://localhost:6379/0" usage:"Redis URL for cart sessions (RESTO_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	Session        SessionConfig
	Window         WindowConfig
	Cart           CartConfig
	Loyalty        LoyaltyConfig
	Promotion      PromotionConfig
	Staff          StaffConfig
	RateLimit      RateLimitConfig
	PromoRateLimit PromoRateLimitConfig
	Graceful       GracefulConfig
}

// SessionConfig controls the cart session cookie.
type SessionConfig struct {
	CookieName string        `default:"resto_session" usage:"Session cookie name"`
	Secure     bool          `default:"true" usage:"Mark the session cookie Secure"`
	TTL        time.Duration `default:"168h" usage:"Cart session lifetime"`
}

// WindowConfig is the daily ordering window.
type WindowConfig struct {
	Open     string `default:"18:00" usage:"Time ordering opens (HH:MM)"`
	Cutoff   string `default:"09:30" usage:"Time ordering closes the next morning (HH:MM)"`
	Timezone string `default:"UTC" usage:"IANA time zone of the window"`
}

// Policy parses the window into a window.Policy.
func (c WindowConfig) Policy() (window.Policy, error) {
	open, err := window.ParseClock(c.Open)
	if err != nil {
		return window.Policy{}, errors.Wrap(err, "open")
	}
	cutoff, err := window.ParseClock(c.Cutoff)
	if err != nil {
		return window.Policy{}, errors.Wrap(err, "cutoff")
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return window.Policy{}, errors.Wrap(err, "timezone")
	}
	return window.NewPolicy(open, cutoff, loc), nil
}

// CartConfig bounds cart contents.
type CartConfig struct {
	MaxQty int `default:"20" usage:"Maximum quantity of one cart line"`
}

// LoyaltyConfig is the stamp program.
type LoyaltyConfig struct {
	StampsTarget int           `default:"8" usage:"Purchases of one tier that earn a voucher"`
	VoucherTTL   time.Duration `default:"720h" usage:"Voucher lifetime"`
	Tiers        []int64       `default:"500,1000,1500" usage:"Variant prices in minor units that earn stamps"`
}

func (c LoyaltyConfig) engine() loyalty.Config {
	return loyalty.Config{
		StampsTarget: c.StampsTarget,
		VoucherTTL:   c.VoucherTTL,
		Tiers:        c.Tiers,
	}
}

// PromotionConfig controls promotion segments.
type PromotionConfig struct {
	InactiveDays int `default:"30" usage:"Days without a delivered order before a customer counts as inactive"`
}

// StaffConfig holds staff API credentials.
type StaffConfig struct {
	APIKeyPepper string   `usage:"HMAC pepper for staff key hashing (RESTO_STAFF_API_KEY_PEPPER)" flag:"api-key-pepper"`
	KeyHashes    []string `usage:"Hex HMAC-SHA256 hashes of accepted staff keys"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// PromoRateLimitConfig throttles promotion code attempts per session.
type PromoRateLimitConfig struct {
	Max    int           `default:"5" usage:"Max promotion code attempts per window"`
	Window time.Duration `default:"1m" usage:"Promotion code attempt window"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from a .env file, environment variables and
// YAML config files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	// A missing .env file is fine.
	_ = godotenv.Load()

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "RESTO",
		Files:     []string{"config.yaml", "/etc/resto/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set RESTO_DATABASE_URL or DATABASE_URL")
	}
	if _, err := cfg.Window.Policy(); err != nil {
		return nil, errors.Wrap(err, "window")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables that
// use standard names like DATABASE_URL and PORT to the RESTO_-prefixed
// configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if v := os.Getenv("REDIS_URL"); v != "" && os.Getenv("RESTO_REDIS_URL") == "" {
		c.RedisURL = v
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
