// Package config provides the configuration schema and loader for the Socra
// storytelling server.
package config

// LogLevel controls log verbosity for the Socra server.
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

// Config is the root configuration structure for Socra.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Story     StoryConfig     `yaml:"story"`
	Cache     CacheConfig     `yaml:"cache"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Personas  []PersonaConfig `yaml:"personas"`
}

// ServerConfig holds network and logging settings for the Socra server.
type ServerConfig struct {
	// MetricsAddr is the TCP address the metrics/health endpoint listens on
	// (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// ProvidersConfig declares the external providers for each pipeline stage.
type ProvidersConfig struct {
	// LLM is the streaming language model provider.
	LLM ProviderEntry `yaml:"llm"`

	// TTS is the primary speech synthesis provider.
	TTS ProviderEntry `yaml:"tts"`

	// TTSFallback is the secondary synthesis provider used on auth or
	// rate-limit failures of the primary. Optional.
	TTSFallback ProviderEntry `yaml:"tts_fallback"`

	// Image is the illustration generation provider.
	Image ProviderEntry `yaml:"image"`
}

// ProviderEntry is the common configuration block shared by all provider
// types.
type ProviderEntry struct {
	// Name selects the provider implementation (e.g., "openai", "elevenlabs").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider
	// (e.g., "gpt-4o-mini", "eleven_turbo_v2_5").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by
	// the standard fields above (e.g., "style_prefix" for image providers).
	Options map[string]string `yaml:"options"`
}

// StoryConfig holds turn-level tunables for the storytelling session.
type StoryConfig struct {
	// VoiceID is the default synthesis voice.
	VoiceID string `yaml:"voice_id"`

	// SystemPrompt is the default persona system prompt.
	SystemPrompt string `yaml:"system_prompt"`

	// Greeting, when set, is spoken once at startup through the cached
	// non-streaming synthesis path.
	Greeting string `yaml:"greeting"`

	// SummaryTimeoutMillis bounds the illustration summarisation race.
	// 0 means the built-in default of 1000.
	SummaryTimeoutMillis int `yaml:"summary_timeout_ms"`
}

// CacheConfig bounds the on-disk image cache.
type CacheConfig struct {
	// Dir is the cache directory. Created on first write.
	Dir string `yaml:"dir"`

	// MaxEntries is the file-count bound; the oldest entry is evicted
	// before a write that would exceed it. 0 means the default of 10.
	MaxEntries int `yaml:"max_entries"`
}

// PlaybackConfig selects the external audio player.
type PlaybackConfig struct {
	// Command is the shell-style player command line; the audio file path
	// is appended as the final argument.
	Command string `yaml:"command"`
}

// PersonaConfig describes one selectable storyteller persona.
type PersonaConfig struct {
	// Name is the persona's unique identifier.
	Name string `yaml:"name"`

	// SystemPrompt replaces the session system prompt when the persona is
	// activated.
	SystemPrompt string `yaml:"system_prompt"`

	// VoiceID is the synthesis voice used while the persona is active.
	VoiceID string `yaml:"voice_id"`
}
