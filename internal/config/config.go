// Package config defines all configuration for the risk gateway. Config
// is loaded from a YAML file (default: configs/config.yaml) with
// GATEWAY_* environment variables overriding individual fields, the way
// a deployment would pin secrets and per-environment listen addresses
// without touching the checked-in YAML.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Risk        RiskConfig        `mapstructure:"risk"`
	MarketData  MarketDataConfig  `mapstructure:"market_data"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Admin       AdminConfig       `mapstructure:"admin"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig holds listen and CORS settings for the session API.
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RiskConfig selects which plugins run and in what order. Plugins not
// named in Enabled never run — SurveillanceCheck in particular is
// opt-in. DefaultMaxMessagesPerSecond, DefaultMaxPositionValue and
// SurveillanceWindow are loaded (and the first is validated) but are not
// passed to any plugin: MessageThrottling falls back to RiskSettings'
// own default of 100, CreditLimit denies a session with no
// MaxPositionValue, and SurveillanceCheck uses a fixed 60s window.
type RiskConfig struct {
	Enabled []string `mapstructure:"enabled"`

	DefaultMaxMessagesPerSecond int           `mapstructure:"default_max_messages_per_second"`
	DefaultMaxPositionValue     float64       `mapstructure:"default_max_position_value"`
	SurveillanceWindow          time.Duration `mapstructure:"surveillance_window"`
}

// MarketDataConfig points at the last-trade price source the CreditLimit
// and NotionalLimit plugins mark positions against.
type MarketDataConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	APIKey     string        `mapstructure:"api_key"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RetryCount int           `mapstructure:"retry_count"`
}

// PersistenceConfig controls the audit-log and snapshot autosave.
type PersistenceConfig struct {
	DataDir            string        `mapstructure:"data_dir"`
	Enabled            bool          `mapstructure:"enabled"`
	AuditRetentionDays int           `mapstructure:"audit_retention_days"`
	SnapshotInterval   time.Duration `mapstructure:"snapshot_interval"`
}

// AdminConfig secures the ops surface (halt/resume/audit/pipeline stats).
type AdminConfig struct {
	JWTSecret  string         `mapstructure:"jwt_secret"`
	TokenTTL   time.Duration  `mapstructure:"token_ttl"`
	BcryptCost int            `mapstructure:"bcrypt_cost"`
	Operators  []OperatorSeed `mapstructure:"operators"`
}

// OperatorSeed is one entry of the checked-in operator directory: a
// plaintext password here only ever exists in config at rest, hashed
// with bcrypt the moment it's loaded into auth.OperatorDirectory.
type OperatorSeed struct {
	OperatorID string `mapstructure:"operator_id"`
	Password   string `mapstructure:"password"`
	Role       string `mapstructure:"role"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Load reads config from a YAML file with env var overrides. Sensitive
// fields also accept direct GATEWAY_ADMIN_JWT_SECRET /
// GATEWAY_MARKET_DATA_API_KEY env vars so a secret never has to sit in
// the checked-in YAML.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("GATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if secret := v.GetString("admin_jwt_secret"); secret != "" {
		cfg.Admin.JWTSecret = secret
	}
	if key := v.GetString("market_data_api_key"); key != "" {
		cfg.MarketData.APIKey = key
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("risk.enabled", []string{"MessageThrottling", "TradingMode", "CreditLimit", "NotionalLimit", "Margin"})
	v.SetDefault("risk.default_max_messages_per_second", 50)
	v.SetDefault("risk.default_max_position_value", 250000.0)
	v.SetDefault("risk.surveillance_window", 60*time.Second)

	v.SetDefault("market_data.base_url", "https://api.polygon.io")
	v.SetDefault("market_data.timeout", 5*time.Second)
	v.SetDefault("market_data.retry_count", 3)

	v.SetDefault("persistence.data_dir", "./data")
	v.SetDefault("persistence.enabled", true)
	v.SetDefault("persistence.audit_retention_days", 1825)
	v.SetDefault("persistence.snapshot_interval", 30*time.Second)

	v.SetDefault("admin.token_ttl", 24*time.Hour)
	v.SetDefault("admin.bcrypt_cost", 12)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", true)
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if len(c.Risk.Enabled) == 0 {
		return fmt.Errorf("risk.enabled must name at least one plugin")
	}
	if c.Risk.DefaultMaxMessagesPerSecond <= 0 {
		return fmt.Errorf("risk.default_max_messages_per_second must be > 0")
	}
	if c.MarketData.BaseURL == "" {
		return fmt.Errorf("market_data.base_url is required")
	}
	if c.Admin.JWTSecret == "" {
		return fmt.Errorf("admin.jwt_secret is required (set GATEWAY_ADMIN_JWT_SECRET)")
	}
	if len(c.Admin.Operators) == 0 {
		return fmt.Errorf("admin.operators must seed at least one operator")
	}
	return nil
}
