package app

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":3000"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"60s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"60s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	AirtableBaseURL string `envconfig:"AIRTABLE_BASE_URL" default:"https://api.airtable.com/v0"`
	AirtableToken   string `envconfig:"AIRTABLE_TOKEN" required:"true"`
	AirtableBaseID  string `envconfig:"AIRTABLE_BASE_ID" required:"true"`

	TemplateBaseURL  string        `envconfig:"TEMPLATE_BASE_URL" default:"https://github.com/isadoravv/templater/raw/refs/heads/main/templates"`
	TemplateCacheTTL time.Duration `envconfig:"TEMPLATE_CACHE_TTL" default:"10m"`

	// RedisAddr enables the template cache and the background worker
	// queue; empty disables both.
	RedisAddr string `envconfig:"REDIS_ADDR"`

	// PGDSN enables the generation history; empty disables it.
	PGDSN string `envconfig:"PG_DSN"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.AirtableToken == "" {
		return nil, errors.New("airtable token must be provided")
	}
	if cfg.AirtableBaseID == "" {
		return nil, errors.New("airtable base id must be provided")
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}
