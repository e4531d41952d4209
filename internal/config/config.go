package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/irfndi/crossover-go/internal/models"
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	LogLevel    string           `mapstructure:"log_level"`
	Server      ServerConfig     `mapstructure:"server"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Redis       RedisConfig      `mapstructure:"redis"`
	CCXT        CCXTConfig       `mapstructure:"ccxt"`
	MarketData  MarketDataConfig `mapstructure:"market_data"`
	Strategy    StrategyConfig   `mapstructure:"strategy"`
	Telegram    TelegramConfig   `mapstructure:"telegram"`
	Security    SecurityConfig   `mapstructure:"security"`
	Telemetry   TelemetryConfig  `mapstructure:"telemetry"`

	// Warnings are advisory messages about unusual but runnable settings.
	Warnings []string `mapstructure:"-"`
}

type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	DatabaseURL     string        `mapstructure:"database_url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CCXTConfig struct {
	ServiceURL string `mapstructure:"service_url"`
	Timeout    int    `mapstructure:"timeout"`
}

// MarketDataConfig selects the default series a backtest runs on.
type MarketDataConfig struct {
	Exchange     string        `mapstructure:"exchange"`
	Symbol       string        `mapstructure:"symbol"`
	Timeframe    string        `mapstructure:"timeframe"`
	LookbackDays int           `mapstructure:"lookback_days"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

// StrategyConfig holds the default crossover parameters.
type StrategyConfig struct {
	ShortWindow    int     `mapstructure:"short_window"`
	LongWindow     int     `mapstructure:"long_window"`
	InitialBalance float64 `mapstructure:"initial_balance"`
}

type TelegramConfig struct {
	BotToken string `mapstructure:"bot_token" json:"-"`
	ChatID   int64  `mapstructure:"chat_id"`
}

type SecurityConfig struct {
	JWTSecret  string `mapstructure:"jwt_secret" json:"-" yaml:"-"`
	JWTExpiry  string `mapstructure:"jwt_expiry"`
	APIKeyHash string `mapstructure:"api_key_hash" json:"-" yaml:"-"`
	BcryptCost int    `mapstructure:"bcrypt_cost"`
}

type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceVersion string `mapstructure:"service_version"`
	ExportLogs     bool   `mapstructure:"export_logs"`
}

// StrategyParams returns the configured defaults as engine parameters.
func (c *Config) StrategyParams() models.StrategyParams {
	return models.StrategyParams{
		ShortWindow:    c.Strategy.ShortWindow,
		LongWindow:     c.Strategy.LongWindow,
		InitialBalance: c.Strategy.InitialBalance,
	}
}

// JWTExpiryDuration parses Security.JWTExpiry, falling back to 24h.
func (c *Config) JWTExpiryDuration() time.Duration {
	d, err := time.ParseDuration(c.Security.JWTExpiry)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// Load reads configuration from an optional .env file, configs/config.yaml and
// the environment, in increasing order of precedence.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.BindEnv("security.jwt_secret", "JWT_SECRET"); err != nil {
		return nil, fmt.Errorf("failed to bind JWT_SECRET environment variable: %w", err)
	}
	if err := viper.BindEnv("telegram.bot_token", "TELEGRAM_BOT_TOKEN"); err != nil {
		return nil, fmt.Errorf("failed to bind TELEGRAM_BOT_TOKEN environment variable: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c.Environment != "development" && c.Environment != "test" && c.Security.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required in non-development environments")
	}

	if c.Security.JWTExpiry != "" {
		if _, err := time.ParseDuration(c.Security.JWTExpiry); err != nil {
			return fmt.Errorf("invalid JWT expiry duration: %w", err)
		}
	}

	if c.Security.BcryptCost < bcrypt.MinCost || c.Security.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d, got %d",
			bcrypt.MinCost, bcrypt.MaxCost, c.Security.BcryptCost)
	}

	if c.Security.APIKeyHash != "" {
		if _, err := bcrypt.Cost([]byte(c.Security.APIKeyHash)); err != nil {
			return fmt.Errorf("security.api_key_hash is not a bcrypt hash: %w", err)
		}
	}

	if c.MarketData.LookbackDays < 1 {
		return fmt.Errorf("market_data.lookback_days must be at least 1, got %d", c.MarketData.LookbackDays)
	}
	if c.MarketData.CacheTTL < 0 {
		return fmt.Errorf("market_data.cache_ttl must not be negative, got %s", c.MarketData.CacheTTL)
	}

	warnings, err := c.StrategyParams().Validate()
	if err != nil {
		return fmt.Errorf("invalid strategy defaults: %w", err)
	}
	c.Warnings = warnings

	return nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	viper.SetDefault("database.enabled", true)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "crossover")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.database_url", "")
	viper.SetDefault("database.max_conns", 10)
	viper.SetDefault("database.min_conns", 1)
	viper.SetDefault("database.conn_max_lifetime", "30m")
	viper.SetDefault("database.conn_max_idle_time", "5m")

	viper.SetDefault("redis.enabled", true)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("ccxt.service_url", "http://localhost:3001")
	viper.SetDefault("ccxt.timeout", 30)

	viper.SetDefault("market_data.exchange", "binance")
	viper.SetDefault("market_data.symbol", "BTC/USDT")
	viper.SetDefault("market_data.timeframe", "1d")
	viper.SetDefault("market_data.lookback_days", 365)
	viper.SetDefault("market_data.cache_ttl", "5m")

	viper.SetDefault("strategy.short_window", models.DefaultShortWindow)
	viper.SetDefault("strategy.long_window", models.DefaultLongWindow)
	viper.SetDefault("strategy.initial_balance", models.DefaultInitialBalance)

	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.chat_id", 0)

	viper.SetDefault("security.jwt_secret", "")
	viper.SetDefault("security.jwt_expiry", "24h")
	viper.SetDefault("security.api_key_hash", "")
	viper.SetDefault("security.bcrypt_cost", 12)

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.otlp_endpoint", "")
	viper.SetDefault("telemetry.service_name", "crossover-go")
	viper.SetDefault("telemetry.service_version", "1.0.0")
	viper.SetDefault("telemetry.export_logs", false)
}
