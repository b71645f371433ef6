package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Email    EmailConfig    `mapstructure:"email"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Sweep    SweepConfig    `mapstructure:"sweep"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
}

type ServerConfig struct {
	Port           int           `mapstructure:"port" envconfig:"SERVER_PORT"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout" envconfig:"SERVER_READ_TIMEOUT"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" envconfig:"SERVER_WRITE_TIMEOUT"`
	MetricsEnabled bool          `mapstructure:"metrics_enabled" envconfig:"SERVER_METRICS_ENABLED"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" envconfig:"DB_HOST"`
	Port     int    `mapstructure:"port" envconfig:"DB_PORT"`
	User     string `mapstructure:"user" envconfig:"DB_USER"`
	Password string `mapstructure:"password" envconfig:"DB_PASSWORD"`
	Name     string `mapstructure:"name" envconfig:"DB_NAME"`
	SSLMode  string `mapstructure:"sslmode" envconfig:"DB_SSLMODE"`
}

// URL renders the connection string in URL form, as the migrator wants it.
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

// JWTConfig covers verification of tokens issued by the auth platform.
// The service never mints tokens itself.
type JWTConfig struct {
	Secret string `mapstructure:"secret" envconfig:"JWT_SECRET"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url" envconfig:"REDIS_URL"`
	MaxRetries   int           `mapstructure:"max_retries" envconfig:"REDIS_MAX_RETRIES"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff" envconfig:"REDIS_RETRY_BACKOFF"`
	PoolSize     int           `mapstructure:"pool_size" envconfig:"REDIS_POOL_SIZE"`
	MinIdleConns int           `mapstructure:"min_idle_conns" envconfig:"REDIS_MIN_IDLE_CONNS"`
}

type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled" envconfig:"EMAIL_ENABLED"`
	Host     string `mapstructure:"host" envconfig:"SMTP_HOST"`
	Port     int    `mapstructure:"port" envconfig:"SMTP_PORT"`
	Username string `mapstructure:"username" envconfig:"SMTP_USERNAME"`
	Password string `mapstructure:"password" envconfig:"SMTP_PASSWORD"`
	From     string `mapstructure:"from" envconfig:"SMTP_FROM"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled" envconfig:"RATE_LIMIT_ENABLED"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" envconfig:"RATE_LIMIT_RPS"`
	Burst             int     `mapstructure:"burst" envconfig:"RATE_LIMIT_BURST"`
}

type SweepConfig struct {
	DisappearingInterval time.Duration `mapstructure:"disappearing_interval" envconfig:"SWEEP_DISAPPEARING_INTERVAL"`
	UnlockInterval       time.Duration `mapstructure:"unlock_interval" envconfig:"SWEEP_UNLOCK_INTERVAL"`
	PremiumInterval      time.Duration `mapstructure:"premium_interval" envconfig:"SWEEP_PREMIUM_INTERVAL"`
	UnlockSoonWindow     time.Duration `mapstructure:"unlock_soon_window" envconfig:"SWEEP_UNLOCK_SOON_WINDOW"`
	WarningWindow        time.Duration `mapstructure:"warning_window" envconfig:"SWEEP_WARNING_WINDOW"`
}

type DispatchConfig struct {
	BatchSize     int           `mapstructure:"batch_size" envconfig:"DISPATCH_BATCH_SIZE"`
	PollInterval  time.Duration `mapstructure:"poll_interval" envconfig:"DISPATCH_POLL_INTERVAL"`
	RetryAttempts int           `mapstructure:"retry_attempts" envconfig:"DISPATCH_RETRY_ATTEMPTS"`
	RetryDelay    time.Duration `mapstructure:"retry_delay" envconfig:"DISPATCH_RETRY_DELAY"`
}

// LoadConfig reads config.yaml (if present) and then applies environment
// overrides, so containers can run without a config file at all.
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/app")
	viper.AddConfigPath("/app/config")

	config := defaults()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		if err := viper.Unmarshal(config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	if err := envconfig.Process("openon", config); err != nil {
		return nil, fmt.Errorf("failed to apply env overrides: %w", err)
	}

	return config, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   10 * time.Second,
			MetricsEnabled: true,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			User:    "openon",
			Name:    "openon",
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			URL:          "redis://localhost:6379/0",
			MaxRetries:   3,
			RetryBackoff: 100 * time.Millisecond,
			PoolSize:     10,
			MinIdleConns: 2,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerSecond: 50,
			Burst:             100,
		},
		Sweep: SweepConfig{
			DisappearingInterval: time.Minute,
			UnlockInterval:       time.Hour,
			PremiumInterval:      24 * time.Hour,
			UnlockSoonWindow:     24 * time.Hour,
			WarningWindow:        5 * time.Minute,
		},
		Dispatch: DispatchConfig{
			BatchSize:     100,
			PollInterval:  5 * time.Second,
			RetryAttempts: 3,
			RetryDelay:    5 * time.Second,
		},
	}
}
