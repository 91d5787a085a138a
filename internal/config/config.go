// Package config loads service configuration from flags, environment and an
// optional YAML file via viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Xanaaash/MiMind-sub000/internal/engine"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. MIMIND_HTTP_PORT.
const EnvPrefix = "MIMIND"

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Config is the full service configuration.
type Config struct {
	HTTPPort           string                `mapstructure:"http_port" validate:"required,numeric"`
	GRPCPort           string                `mapstructure:"grpc_port" validate:"required,numeric"`
	LogLevel           string                `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	PostgresDSN        string                `mapstructure:"postgres_dsn"`
	ClickHouseDSN      string                `mapstructure:"clickhouse_dsn"`
	NATSURL            string                `mapstructure:"nats_url" validate:"omitempty,url"`
	NATSToken          string                `mapstructure:"nats_token"`
	OpsSubject         string                `mapstructure:"ops_subject" validate:"required"`
	LegalPolicyEnabled bool                  `mapstructure:"legal_policy_enabled"`
	DefaultLocale      string                `mapstructure:"default_locale"`
	HotlinesFile       string                `mapstructure:"hotlines_file"`
	LexiconFile        string                `mapstructure:"lexicon_file"`
	RedHold            time.Duration         `mapstructure:"red_hold"`
	Messages           engine.PolicyMessages `mapstructure:"messages"`
	Auth               AuthConfig            `mapstructure:"auth"`
}

// AuthConfig controls service-key authentication of the /v1 API.
type AuthConfig struct {
	Disabled   bool          `mapstructure:"disabled"`
	APIKeyHash string        `mapstructure:"api_key_hash"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// SetDefaults registers every key with its default so AutomaticEnv can see it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("http_port", "8080")
	v.SetDefault("grpc_port", "9090")
	v.SetDefault("log_level", "info")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("clickhouse_dsn", "")
	v.SetDefault("nats_url", "")
	v.SetDefault("nats_token", "")
	v.SetDefault("ops_subject", "mimind.safety.ops_alert")
	v.SetDefault("legal_policy_enabled", false)
	v.SetDefault("default_locale", "en-US")
	v.SetDefault("hotlines_file", "")
	v.SetDefault("lexicon_file", "")
	v.SetDefault("red_hold", 10*time.Minute)
	v.SetDefault("messages.monitor", "")
	v.SetDefault("messages.safety_pause", "")
	v.SetDefault("messages.crisis_stop", "")
	v.SetDefault("messages.extreme_emergency", "")
	v.SetDefault("auth.disabled", false)
	v.SetDefault("auth.api_key_hash", "")
	v.SetDefault("auth.cache_ttl", 30*time.Second)
}

// New returns a viper instance wired for MIMIND_* environment variables,
// with defaults set.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// ReadFile merges a YAML config file into v.
func ReadFile(v *viper.Viper, path string) error {
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("ReadFile: %w", err)
	}
	return nil
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DefaultLocale == "" {
		c.DefaultLocale = "en-US"
	}
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.RedHold < 0 {
		return fmt.Errorf("red_hold must not be negative, got %s", c.RedHold)
	}
	if c.Auth.CacheTTL < 0 {
		return fmt.Errorf("auth.cache_ttl must not be negative, got %s", c.Auth.CacheTTL)
	}
	return nil
}
