package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	ErrMissingAPIKey   = errors.New("gemini api key is not configured")
	ErrTimeoutTooLong  = errors.New("gemini timeout must be shorter than the platform deadline")
	ErrInvalidHTTPPort = errors.New("invalid http port")
)

// Load reads config.yaml from the usual locations and overlays the
// environment. A missing file is not an error.
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	v.AddConfigPath("/app/configs")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFile reads configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow common env vars without APP_ prefix for serverless deploys
	v.BindEnv("http.port", "HTTP_PORT", "PORT", "APP_HTTP_PORT")
	v.BindEnv("gemini.api_key", "GEMINI_API_KEY", "APP_GEMINI_API_KEY")
	v.BindEnv("cache.redis_url", "REDIS_URL", "APP_CACHE_REDIS_URL")
	v.BindEnv("vault.address", "VAULT_ADDR", "APP_VAULT_ADDRESS")
	v.BindEnv("vault.token", "VAULT_TOKEN", "APP_VAULT_TOKEN")
	v.BindEnv("skills.gemini.skill_id", "ALEXA_SKILL_ID", "APP_SKILLS_GEMINI_SKILL_ID")
	v.BindEnv("app.environment", "APP_ENVIRONMENT")
	v.BindEnv("logging.level", "LOG_LEVEL")

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "alexa-gemini-skill")
	v.SetDefault("app.version", "v1.0.0")
	v.SetDefault("app.environment", "production")

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.body_limit", 256*1024)

	v.SetDefault("gemini.model", "gemini-1.5-flash")
	v.SetDefault("gemini.temperature", 0.7)
	v.SetDefault("gemini.max_output_tokens", 256)
	v.SetDefault("gemini.timeout", 7500*time.Millisecond)
	v.SetDefault("gemini.system_instruction",
		"You are a voice assistant. Answer in at most three short, plain sentences "+
			"suitable for being read aloud. Do not use markdown, lists, code or emoji.")

	v.SetDefault("skills.gemini.invocation_name", "gemini")
	v.SetDefault("skills.gemini.max_speech_length", 6000)

	v.SetDefault("vault.secret_path", "secret/data/gemini")
	v.SetDefault("vault.secret_key", "api_key")

	v.SetDefault("cache.answer_ttl", time.Hour)
	v.SetDefault("cache.cleanup_interval", time.Minute)

	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.max_requests", 3)
	v.SetDefault("circuit_breaker.interval", time.Minute)
	v.SetDefault("circuit_breaker.timeout", 30*time.Second)
	v.SetDefault("circuit_breaker.min_requests", 3)
	v.SetDefault("circuit_breaker.failure_threshold", 0.6)

	v.SetDefault("opentelemetry.service_name", "alexa-gemini-skill")
	v.SetDefault("opentelemetry.jaeger.endpoint", "http://jaeger:14268/api/traces")

	v.SetDefault("prometheus.enabled", true)
	v.SetDefault("prometheus.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings the server cannot start without. The API
// key may be absent when it is going to be read from Vault.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidHTTPPort, c.HTTP.Port)
	}
	if c.Gemini.APIKey == "" && !c.Vault.Enabled {
		return ErrMissingAPIKey
	}
	if c.Gemini.Timeout <= 0 || c.Gemini.Timeout >= PlatformDeadline {
		return fmt.Errorf("%w: %s", ErrTimeoutTooLong, c.Gemini.Timeout)
	}
	return nil
}
