package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flexprice/freemium/internal/types"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Configuration struct {
	Deployment DeploymentConfig `mapstructure:"deployment" validate:"required"`
	Logging    LoggingConfig    `mapstructure:"logging" validate:"required"`
	Postgres   PostgresConfig   `mapstructure:"postgres" validate:"required"`
	Billing    BillingConfig    `mapstructure:"billing" validate:"required"`
	Stripe     StripeConfig     `mapstructure:"stripe"`
	Email      EmailConfig      `mapstructure:"email"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Sentry     SentryConfig     `mapstructure:"sentry"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Temporal   TemporalConfig   `mapstructure:"temporal"`
}

type DeploymentConfig struct {
	Mode types.RunMode `mapstructure:"mode" validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `mapstructure:"level" validate:"required"`
}

type PostgresConfig struct {
	Host                   string `mapstructure:"host" validate:"required"`
	Port                   int    `mapstructure:"port" validate:"required"`
	User                   string `mapstructure:"user" validate:"required"`
	Password               string `mapstructure:"password"`
	DBName                 string `mapstructure:"dbname" validate:"required"`
	SSLMode                string `mapstructure:"sslmode" validate:"required"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" default:"10"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" default:"5"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" default:"60"`
}

// BillingConfig replaces the process-wide billing settings. It is handed to the
// subscription and billing services at construction.
type BillingConfig struct {
	// ExpiredPlanID is the plan a subscription is moved to by Expire. It must be free.
	ExpiredPlanID string `mapstructure:"expired_plan_id" validate:"required"`
	DaysTrial     int    `mapstructure:"days_trial" validate:"min=0"`
	DaysGrace     int    `mapstructure:"days_grace" validate:"min=0"`
	// AdminReportRecipients receive the summary after every run. Empty disables the report.
	AdminReportRecipients []string `mapstructure:"admin_report_recipients" validate:"dive,email"`
	// Schedule is a cron spec for cmd/server, e.g. "0 3 * * *"
	Schedule string `mapstructure:"schedule" validate:"required"`
	// CheckpointLookback rewinds the transaction checkpoint on fetch. Replayed
	// transactions are filtered out by the processed ledger.
	CheckpointLookback time.Duration `mapstructure:"checkpoint_lookback"`
}

type StripeConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	SecretKey string  `mapstructure:"secret_key" validate:"required_if=Enabled true"`
	Currency  string  `mapstructure:"currency" default:"usd"`
	RateLimit float64 `mapstructure:"rate_limit" default:"20"`
	RateBurst int     `mapstructure:"rate_burst" default:"5"`
	// MaxRetries applies to the retrying http client and to transaction fetches
	MaxRetries int `mapstructure:"max_retries" default:"3"`
}

type EmailConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	APIKey      string `mapstructure:"api_key" validate:"required_if=Enabled true"`
	FromAddress string `mapstructure:"from_address" validate:"required_if=Enabled true"`
	ReplyTo     string `mapstructure:"reply_to"`
}

type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Topic   string `mapstructure:"topic" default:"lifecycle_events"`
	// Endpoint receives every lifecycle event as a JSON POST
	Endpoint string            `mapstructure:"endpoint" validate:"required_if=Enabled true"`
	Headers  map[string]string `mapstructure:"headers"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate" default:"1.0"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl" default:"5m"`
}

// TemporalConfig moves the billing schedule onto a Temporal cron workflow
// when Enabled. Otherwise cmd/server runs the in-process scheduler.
type TemporalConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Address   string `mapstructure:"address" validate:"required_if=Enabled true"`
	Namespace string `mapstructure:"namespace" default:"default"`
	TaskQueue string `mapstructure:"task_queue" default:"billing"`
	APIKey    string `mapstructure:"api_key"`
	TLS       bool   `mapstructure:"tls"`
}

func NewConfig() (*Configuration, error) {
	// .env is optional and only used in local development
	_ = godotenv.Load()

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/freemium")

	v.SetEnvPrefix("FREEMIUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	} else {
		fmt.Printf("Using config file: %s\n", v.ConfigFileUsed())
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts or other non-web applications
func GetDefaultConfig() *Configuration {
	return &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
		Billing: BillingConfig{
			ExpiredPlanID: "plan_free",
			DaysTrial:     30,
			DaysGrace:     3,
			Schedule:      "0 3 * * *",
		},
		Cache: CacheConfig{Enabled: true, TTL: 5 * time.Minute},
	}
}

func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"user=%s password=%s dbname=%s host=%s port=%d sslmode=%s",
		c.User,
		c.Password,
		c.DBName,
		c.Host,
		c.Port,
		c.SSLMode,
	)
}
