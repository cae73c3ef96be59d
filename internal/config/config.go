// Package config provides the bootstrap configuration schema and loader for
// the Lernobot mediation server.
//
// Bootstrap configuration seeds the provider registry on first-time setup
// only; once a provider has a registry record, the registry is authoritative
// and the corresponding config key is ignored (and cleared from the in-memory
// snapshot).
package config

import "time"

// LogLevel controls log verbosity for the server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure, typically loaded from a YAML
// file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Providers ProvidersConfig `yaml:"providers"`
	Security  SecurityConfig  `yaml:"security"`
	Engine    EngineConfig    `yaml:"engine"`
	OCR       OCRConfig       `yaml:"ocr"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address the JSON API listens on. Empty selects
	// ":8080".
	ListenAddr string `yaml:"listen_addr"`

	// MetricsAddr is the TCP address the Prometheus /metrics endpoint
	// listens on (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// StorageConfig selects the durable store.
type StorageConfig struct {
	// PostgresDSN is the connection string for the PostgreSQL store. Empty
	// selects the in-memory store (single-process, non-durable).
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ProvidersConfig carries first-time-setup API keys per provider family and
// the local inference endpoint. Keys here are consulted only for provider
// names absent from the registry.
type ProvidersConfig struct {
	// OpenAIKey seeds the "openai" provider.
	OpenAIKey string `yaml:"openai_api_key"`

	// AnthropicKey seeds the "anthropic" provider.
	AnthropicKey string `yaml:"anthropic_api_key"`

	// CohereKey seeds the "cohere" provider.
	CohereKey string `yaml:"cohere_api_key"`

	// GoogleKey seeds the Google family; it fans out to one registry record
	// per family model ("google-<model>").
	GoogleKey string `yaml:"google_api_key"`

	// OpenAIModel overrides the default OpenAI model.
	OpenAIModel string `yaml:"openai_model"`

	// AnthropicModel overrides the default Anthropic model.
	AnthropicModel string `yaml:"anthropic_model"`

	// CohereModel overrides the default Cohere model.
	CohereModel string `yaml:"cohere_model"`

	// OllamaBaseURL points at a local Ollama server for model discovery.
	// Empty uses the standard local endpoint.
	OllamaBaseURL string `yaml:"ollama_base_url"`

	// UseSecretManager, when true, indicates keys are injected into this
	// config from a cloud secret manager by the deployment layer rather
	// than written in the file. It only affects logging; resolution happens
	// outside the process.
	UseSecretManager bool `yaml:"use_secret_manager"`
}

// SecurityConfig holds the credential encryption settings.
type SecurityConfig struct {
	// EncryptionKey is the symmetric key material for credential storage.
	// Empty permits plain-text storage, which is logged as insecure.
	EncryptionKey string `yaml:"encryption_key"`
}

// EngineConfig tunes the mediation engine.
type EngineConfig struct {
	// DefaultProvider names the provider preferred as dispatch default when
	// it is active. Empty lets the registry elect one.
	DefaultProvider string `yaml:"default_provider"`

	// SessionLockStripes bounds the keyed session-lock pool. Zero selects
	// the built-in default.
	SessionLockStripes int `yaml:"session_lock_stripes"`

	// InactivityWindow is how long a struggling learner may stay quiet
	// before a teacher notification is emitted. Zero selects 5 minutes.
	InactivityWindow time.Duration `yaml:"inactivity_window"`
}

// OCRConfig points at the OCR sidecar used for image fallback.
type OCRConfig struct {
	// Endpoint is the base URL of the OCR service. Empty disables OCR
	// fallback (vision-capable providers are then the only image path).
	Endpoint string `yaml:"endpoint"`
}
