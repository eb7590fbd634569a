// Package tts provides the synthesis gateway that front-ends the concrete
// speech providers.
//
// The gateway calls a primary provider first and falls back to a secondary
// provider exactly once when the primary fails with an auth or rate-limit
// error. Other failures are returned to the caller untouched. Non-streaming
// results are memoized in a bounded cache keyed by exact text, so repeated
// utterances such as greetings skip the network entirely.
package tts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/tadams048/socra/internal/observe"
	ttsprov "github.com/tadams048/socra/pkg/provider/tts"
)

const (
	// defaultFallbackVoice is the secondary provider voice used on fallback.
	defaultFallbackVoice = "alloy"

	// defaultFallbackSpeed compensates for the secondary voice's slower
	// pacing on the streaming path.
	defaultFallbackSpeed = 1.1

	// defaultCacheSize bounds the non-streaming memo cache.
	defaultCacheSize = 64
)

// Option is a functional option for configuring the Gateway.
type Option func(*Gateway)

// WithFallbackVoice overrides the fixed voice used for secondary-provider
// calls.
func WithFallbackVoice(voice string) Option {
	return func(g *Gateway) {
		g.fallbackVoice = voice
	}
}

// WithCacheSize sets the memo cache capacity. Values < 1 disable caching.
func WithCacheSize(n int) Option {
	return func(g *Gateway) {
		g.cacheSize = n
	}
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(g *Gateway) {
		g.log = log
	}
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// Gateway routes synthesis requests to a primary provider with a single
// secondary fallback. Safe for concurrent use.
type Gateway struct {
	primary   ttsprov.Synthesizer
	secondary ttsprov.Synthesizer

	fallbackVoice string
	cacheSize     int

	cache   *lru.Cache[string, []byte]
	log     *slog.Logger
	metrics *observe.Metrics
}

// NewGateway creates a Gateway over the given providers. secondary may be nil
// when no fallback is configured; auth and rate-limit errors then surface
// directly.
func NewGateway(primary, secondary ttsprov.Synthesizer, opts ...Option) (*Gateway, error) {
	if primary == nil {
		return nil, errors.New("tts: primary synthesizer must not be nil")
	}
	g := &Gateway{
		primary:       primary,
		secondary:     secondary,
		fallbackVoice: defaultFallbackVoice,
		cacheSize:     defaultCacheSize,
	}
	for _, o := range opts {
		o(g)
	}
	if g.log == nil {
		g.log = slog.Default()
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	if g.cacheSize > 0 {
		c, err := lru.New[string, []byte](g.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("tts: create cache: %w", err)
		}
		g.cache = c
	}
	return g, nil
}

// Synthesize converts text to audio bytes using voiceID on the primary
// provider. On [ttsprov.ErrUnauthorized] or [ttsprov.ErrRateLimited] it makes
// exactly one fallback call to the secondary provider with the fixed fallback
// voice; other errors are returned as-is. Non-streaming results are cached by
// exact text.
func (g *Gateway) Synthesize(ctx context.Context, text, voiceID string, streaming bool) ([]byte, error) {
	if !streaming && g.cache != nil {
		if audio, ok := g.cache.Get(text); ok {
			g.metrics.TTSCacheHits.Add(ctx, 1)
			g.log.Debug("tts cache hit", "chars", len(text))
			return audio, nil
		}
	}

	start := time.Now()
	audio, err := g.primary.Synthesize(ctx, ttsprov.Request{
		Text:      text,
		VoiceID:   voiceID,
		Streaming: streaming,
	})
	g.metrics.TTSDuration.Record(ctx, time.Since(start).Seconds())

	if err != nil {
		trigger, ok := fallbackTrigger(err)
		if !ok || g.secondary == nil {
			g.metrics.RecordProviderError(ctx, "primary", "tts")
			return nil, err
		}

		g.metrics.TTSFallbacks.Add(ctx, 1,
			metric.WithAttributes(attribute.String("trigger", trigger)))
		g.log.Warn("primary tts failed, using fallback",
			"trigger", trigger, "voice", g.fallbackVoice)

		req := ttsprov.Request{
			Text:      text,
			VoiceID:   g.fallbackVoice,
			Streaming: streaming,
		}
		if streaming {
			req.Speed = defaultFallbackSpeed
		}
		audio, err = g.secondary.Synthesize(ctx, req)
		if err != nil {
			g.metrics.RecordProviderError(ctx, "secondary", "tts")
			return nil, fmt.Errorf("tts: fallback synthesis: %w", err)
		}
	}

	if !streaming && g.cache != nil {
		g.cache.Add(text, audio)
	}
	return audio, nil
}

// fallbackTrigger reports whether err warrants the secondary-provider
// fallback and names the trigger for metrics.
func fallbackTrigger(err error) (string, bool) {
	switch {
	case errors.Is(err, ttsprov.ErrUnauthorized):
		return "unauthorized", true
	case errors.Is(err, ttsprov.ErrRateLimited):
		return "rate_limited", true
	default:
		return "", false
	}
}

// CleanText strips markdown control characters that read badly when spoken.
func CleanText(text string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '*', '_', '#', '>':
			return -1
		}
		return r
	}, text)
}
