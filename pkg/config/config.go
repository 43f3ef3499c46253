package config

import "time"

// PlatformDeadline is the end-to-end response deadline the voice platform
// enforces on a skill endpoint.
const PlatformDeadline = 10 * time.Second

type Config struct {
	App            AppConfig            `mapstructure:"app"`
	HTTP           HTTPConfig           `mapstructure:"http"`
	Gemini         GeminiConfig         `mapstructure:"gemini"`
	Skills         SkillsConfig         `mapstructure:"skills"`
	Vault          VaultConfig          `mapstructure:"vault"`
	Cache          CacheConfig          `mapstructure:"cache"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	OpenTelemetry  OpenTelemetryConfig  `mapstructure:"opentelemetry"`
	Prometheus     PrometheusConfig     `mapstructure:"prometheus"`
	Logging        LoggingConfig        `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`
}

type GeminiConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	Model             string        `mapstructure:"model"`
	SystemInstruction string        `mapstructure:"system_instruction"`
	Temperature       float32       `mapstructure:"temperature"`
	MaxOutputTokens   int32         `mapstructure:"max_output_tokens"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type SkillsConfig struct {
	Gemini SkillConfig `mapstructure:"gemini"`
}

// SkillConfig holds the platform-side identity of one skill. The invocation
// name is informational; the dispatcher never enforces it.
type SkillConfig struct {
	InvocationName  string `mapstructure:"invocation_name"`
	SkillID         string `mapstructure:"skill_id"`
	MaxSpeechLength int    `mapstructure:"max_speech_length"`
}

type VaultConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Address    string `mapstructure:"address"`
	Token      string `mapstructure:"token"`
	SecretPath string `mapstructure:"secret_path"`
	SecretKey  string `mapstructure:"secret_key"`
}

type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	RedisURL        string        `mapstructure:"redis_url"`
	AnswerTTL       time.Duration `mapstructure:"answer_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MinRequests      uint32        `mapstructure:"min_requests"`
	FailureThreshold float64       `mapstructure:"failure_threshold"`
}

type OpenTelemetryConfig struct {
	Enabled     bool         `mapstructure:"enabled"`
	Jaeger      JaegerConfig `mapstructure:"jaeger"`
	ServiceName string       `mapstructure:"service_name"`
}

type JaegerConfig struct {
	Endpoint string `mapstructure:"endpoint"`
}

type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
