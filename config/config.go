package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Storage drivers.
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // debug, release, test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type StorageConfig struct {
	Driver string `mapstructure:"driver"` // postgres, memory
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LockTimeout     time.Duration `mapstructure:"lock_timeout"` // row lock wait bound, 0 = unbounded
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Host      string        `mapstructure:"host"`
	Port      int           `mapstructure:"port"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	PoolSize  int           `mapstructure:"pool_size"`
	OpTimeout time.Duration `mapstructure:"op_timeout"` // per-command bound; the DB marker is the fallback
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	Expiry time.Duration `mapstructure:"expiry"`
	Issuer string        `mapstructure:"issuer"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// LedgerConfig holds the money rules of the wallet ledger.
// Decimal values are kept as strings so they survive YAML and env round-trips exactly.
type LedgerConfig struct {
	Currency              string        `mapstructure:"currency"`
	Precision             int32         `mapstructure:"precision"`
	DefaultCommissionRate string        `mapstructure:"default_commission_rate"`
	CommissionRateKey     string        `mapstructure:"commission_rate_key"`
	MinWithdrawal         string        `mapstructure:"min_withdrawal"`
	SettlementCacheTTL    time.Duration `mapstructure:"settlement_cache_ttl"`
}

// CommissionRate parses the configured fallback commission rate.
func (l LedgerConfig) CommissionRate() (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(l.DefaultCommissionRate)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing ledger.default_commission_rate: %w", err)
	}
	if rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, fmt.Errorf("ledger.default_commission_rate %s outside [0, 1]", rate)
	}
	if !rate.Equal(rate.Round(6)) {
		return decimal.Zero, fmt.Errorf("ledger.default_commission_rate %s has more than 6 decimal places", rate)
	}
	return rate, nil
}

// MinWithdrawalAmount parses the configured minimum withdrawal (0 disables the check).
func (l LedgerConfig) MinWithdrawalAmount() (decimal.Decimal, error) {
	if l.MinWithdrawal == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(l.MinWithdrawal)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing ledger.min_withdrawal: %w", err)
	}
	return v, nil
}

type RateLimitConfig struct {
	Enabled              bool  `mapstructure:"enabled"`
	WithdrawalsPerMinute int64 `mapstructure:"withdrawals_per_minute"`
	SettlementsPerMinute int64 `mapstructure:"settlements_per_minute"`
	AdminPerMinute       int64 `mapstructure:"admin_per_minute"`
	ReadsPerMinute       int64 `mapstructure:"reads_per_minute"`
}

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}
	if len(c.Ledger.Currency) != 3 {
		return fmt.Errorf("ledger.currency must be a 3-letter code, got %q", c.Ledger.Currency)
	}
	if c.Ledger.Precision < 0 || c.Ledger.Precision > 4 {
		return fmt.Errorf("ledger.precision must be within [0, 4], got %d", c.Ledger.Precision)
	}
	if _, err := c.Ledger.CommissionRate(); err != nil {
		return err
	}
	if _, err := c.Ledger.MinWithdrawalAmount(); err != nil {
		return err
	}
	if c.RateLimit.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("ratelimit.enabled requires redis.enabled")
	}
	return nil
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: LEDGER_.
// Nested keys use underscore: LEDGER_DATABASE_HOST, LEDGER_LEDGER_CURRENCY, etc.
// A .env file in the working directory, if present, is loaded into the environment first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("storage.driver", StorageDriverPostgres)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "marketplace_ledger")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("database.lock_timeout", "5s")
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.op_timeout", "500ms")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiry", "1h")
	v.SetDefault("jwt.issuer", "marketplace-ledger")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("ledger.currency", "USD")
	v.SetDefault("ledger.precision", 2)
	v.SetDefault("ledger.default_commission_rate", "0.10")
	v.SetDefault("ledger.commission_rate_key", "ledger:commission_rate")
	v.SetDefault("ledger.min_withdrawal", "0")
	v.SetDefault("ledger.settlement_cache_ttl", "24h")
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.withdrawals_per_minute", 10)
	v.SetDefault("ratelimit.settlements_per_minute", 600)
	v.SetDefault("ratelimit.admin_per_minute", 60)
	v.SetDefault("ratelimit.reads_per_minute", 120)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}
