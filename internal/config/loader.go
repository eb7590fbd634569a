package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":          {"openai"},
	"tts":          {"elevenlabs", "openai"},
	"tts_fallback": {"openai", "elevenlabs"},
	"image":        {"runware"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation: warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("tts_fallback", cfg.Providers.TTSFallback.Name)
	validateProviderName("image", cfg.Providers.Image.Name)

	// Required providers
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm is required"))
	} else if cfg.Providers.LLM.APIKey == "" {
		errs = append(errs, errors.New("providers.llm.api_key is required"))
	}
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts is required"))
	} else if cfg.Providers.TTS.APIKey == "" {
		errs = append(errs, errors.New("providers.tts.api_key is required"))
	}
	if cfg.Providers.TTSFallback.Name != "" && cfg.Providers.TTSFallback.APIKey == "" {
		errs = append(errs, errors.New("providers.tts_fallback.api_key is required when a fallback provider is configured"))
	}

	// Provider availability warnings
	if cfg.Providers.TTSFallback.Name == "" {
		slog.Warn("no fallback TTS provider configured; auth and rate-limit failures will surface directly")
	}
	if cfg.Providers.Image.Name == "" {
		slog.Warn("no image provider configured; stories will have no illustrations")
	} else if cfg.Providers.Image.APIKey == "" {
		errs = append(errs, errors.New("providers.image.api_key is required when an image provider is configured"))
	}

	// Story
	if cfg.Story.VoiceID == "" && cfg.Providers.TTS.Name != "" {
		errs = append(errs, errors.New("story.voice_id is required"))
	}
	if cfg.Story.SummaryTimeoutMillis < 0 {
		errs = append(errs, fmt.Errorf("story.summary_timeout_ms %d must not be negative", cfg.Story.SummaryTimeoutMillis))
	}

	// Cache
	if cfg.Cache.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("cache.max_entries %d must not be negative", cfg.Cache.MaxEntries))
	}
	if cfg.Providers.Image.Name != "" && cfg.Cache.Dir == "" {
		slog.Warn("cache.dir is empty; image cache will use the working directory default")
	}

	// Playback
	if cfg.Playback.Command == "" {
		errs = append(errs, errors.New("playback.command is required"))
	}

	// Persona duplicate name detection
	personaNamesSeen := make(map[string]int, len(cfg.Personas))
	for i, p := range cfg.Personas {
		prefix := fmt.Sprintf("personas[%d]", i)
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := personaNamesSeen[p.Name]; ok {
				errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of personas[%d]", prefix, p.Name, prev))
			}
			personaNamesSeen[p.Name] = i
		}
		if p.SystemPrompt == "" {
			errs = append(errs, fmt.Errorf("%s.system_prompt is required", prefix))
		}
		if p.VoiceID == "" {
			slog.Warn("persona has no voice_id; the default story voice will be used", "persona", p.Name)
		}
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
