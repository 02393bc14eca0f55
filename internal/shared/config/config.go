package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Stripe   StripeConfig   `mapstructure:"stripe"`
	Referral ReferralConfig `mapstructure:"referral"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowOrigins    []string      `mapstructure:"allow_origins"`
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the database connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig holds configuration for verifying identity tokens and admin calls.
type AuthConfig struct {
	JWTSecret  string `mapstructure:"jwt_secret"`
	JWTIssuer  string `mapstructure:"jwt_issuer"`
	AdminToken string `mapstructure:"admin_token"`
}

// PlanConfig describes one purchasable plan.
type PlanConfig struct {
	PriceID  string `mapstructure:"price_id"`
	Amount   int64  `mapstructure:"amount"` // In cents
	Interval string `mapstructure:"interval"`
}

// StripeConfig holds billing provider configuration.
type StripeConfig struct {
	SecretKey        string                `mapstructure:"secret_key"`
	WebhookSecret    string                `mapstructure:"webhook_secret"`
	Currency         string                `mapstructure:"currency"`
	Plans            map[string]PlanConfig `mapstructure:"plans"`
	TrialDays        int                   `mapstructure:"trial_days"`
	FreeTrialDays    int                   `mapstructure:"free_trial_days"`
	RequestTimeout   time.Duration         `mapstructure:"request_timeout"`
	FailureThreshold uint32                `mapstructure:"failure_threshold"`
	CircuitTimeout   time.Duration         `mapstructure:"circuit_timeout"`
}

// ReferralConfig holds referral code configuration.
type ReferralConfig struct {
	ValidateRateLimit  int           `mapstructure:"validate_rate_limit"`
	ValidateRateWindow time.Duration `mapstructure:"validate_rate_window"`
	SeedFile           string        `mapstructure:"seed_file"`
}

// StorageConfig holds object storage configuration for the webhook archive.
type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
}

// Enabled reports whether an archive bucket is configured.
func (c *StorageConfig) Enabled() bool {
	return c.Bucket != ""
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/flox")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults and env
	}

	v.SetEnvPrefix("FLOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applySecretEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applySecretEnv overrides sensitive values from dedicated environment variables.
func applySecretEnv(cfg *Config) {
	if secret := os.Getenv("FLOX_JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if token := os.Getenv("FLOX_ADMIN_TOKEN"); token != "" {
		cfg.Auth.AdminToken = token
	}
	if password := os.Getenv("FLOX_DB_PASSWORD"); password != "" {
		cfg.Database.Password = password
	}
	if password := os.Getenv("FLOX_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if key := os.Getenv("FLOX_STRIPE_SECRET_KEY"); key != "" {
		cfg.Stripe.SecretKey = key
	}
	if secret := os.Getenv("FLOX_STRIPE_WEBHOOK_SECRET"); secret != "" {
		cfg.Stripe.WebhookSecret = secret
	}
	if key := os.Getenv("FLOX_STORAGE_SECRET_KEY"); key != "" {
		cfg.Storage.SecretAccessKey = key
	}
}

// Validate checks settings the server cannot start without.
func (c *Config) Validate() error {
	for _, name := range []string{"monthly", "yearly"} {
		plan, ok := c.Stripe.Plans[name]
		if !ok || plan.PriceID == "" {
			return fmt.Errorf("config: stripe.plans.%s.price_id is required", name)
		}
	}
	if c.Stripe.TrialDays < 0 || c.Stripe.FreeTrialDays < 0 {
		return fmt.Errorf("config: trial days must not be negative")
	}
	return nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.allow_origins", []string{"*"})

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.database", "flox")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	// Redis defaults
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)

	// Auth defaults
	v.SetDefault("auth.jwt_issuer", "")

	// Stripe defaults
	v.SetDefault("stripe.currency", "usd")
	v.SetDefault("stripe.plans.monthly.price_id", "price_monthly_default")
	v.SetDefault("stripe.plans.monthly.amount", 700)
	v.SetDefault("stripe.plans.monthly.interval", "month")
	v.SetDefault("stripe.plans.yearly.price_id", "price_yearly_default")
	v.SetDefault("stripe.plans.yearly.amount", 6900)
	v.SetDefault("stripe.plans.yearly.interval", "year")
	v.SetDefault("stripe.trial_days", 7)
	v.SetDefault("stripe.free_trial_days", 365)
	v.SetDefault("stripe.request_timeout", 20*time.Second)
	v.SetDefault("stripe.failure_threshold", 5)
	v.SetDefault("stripe.circuit_timeout", 60*time.Second)

	// Referral defaults
	v.SetDefault("referral.validate_rate_limit", 20)
	v.SetDefault("referral.validate_rate_window", time.Minute)
	v.SetDefault("referral.seed_file", "configs/referral_codes.yaml")

	// Storage defaults
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.prefix", "webhooks/stripe")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
