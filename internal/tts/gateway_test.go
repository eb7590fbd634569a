package tts

import (
	"context"
	"errors"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/tadams048/socra/internal/observe"
	ttsprov "github.com/tadams048/socra/pkg/provider/tts"
	"github.com/tadams048/socra/pkg/provider/tts/mock"
)

func newTestGateway(t *testing.T, primary, secondary ttsprov.Synthesizer, opts ...Option) *Gateway {
	t.Helper()
	mp := sdkmetric.NewMeterProvider()
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	g, err := NewGateway(primary, secondary, append(opts, WithMetrics(m))...)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	return g
}

func TestSynthesize_PrimarySuccess(t *testing.T) {
	primary := &mock.Synthesizer{Audio: []byte("primary-audio")}
	secondary := &mock.Synthesizer{Audio: []byte("secondary-audio")}
	g := newTestGateway(t, primary, secondary)

	audio, err := g.Synthesize(context.Background(), "Hello there.", "rachel", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(audio) != "primary-audio" {
		t.Fatalf("audio = %q, want primary-audio", audio)
	}
	if secondary.CallCount() != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.CallCount())
	}
	if got := primary.Calls[0].Req.VoiceID; got != "rachel" {
		t.Fatalf("primary voice = %q, want rachel", got)
	}
}

func TestSynthesize_FallbackOnUnauthorized(t *testing.T) {
	primary := &mock.Synthesizer{Err: ttsprov.ErrUnauthorized}
	secondary := &mock.Synthesizer{Audio: []byte("fallback-audio")}
	g := newTestGateway(t, primary, secondary)

	audio, err := g.Synthesize(context.Background(), "Hi.", "rachel", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(audio) != "fallback-audio" {
		t.Fatalf("audio = %q, want fallback-audio", audio)
	}
	if primary.CallCount() != 1 || secondary.CallCount() != 1 {
		t.Fatalf("calls = %d/%d, want exactly one each", primary.CallCount(), secondary.CallCount())
	}

	req := secondary.Calls[0].Req
	if req.VoiceID != "alloy" {
		t.Fatalf("fallback voice = %q, want alloy", req.VoiceID)
	}
	if req.Speed != 1.1 {
		t.Fatalf("fallback streaming speed = %v, want 1.1", req.Speed)
	}
}

func TestSynthesize_FallbackOnRateLimited(t *testing.T) {
	primary := &mock.Synthesizer{Err: ttsprov.ErrRateLimited}
	secondary := &mock.Synthesizer{Audio: []byte("fallback-audio")}
	g := newTestGateway(t, primary, secondary)

	if _, err := g.Synthesize(context.Background(), "Hi.", "rachel", false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secondary.CallCount() != 1 {
		t.Fatalf("secondary called %d times, want 1", secondary.CallCount())
	}
	// Non-streaming fallback keeps the provider's default pacing.
	if got := secondary.Calls[0].Req.Speed; got != 0 {
		t.Fatalf("non-streaming fallback speed = %v, want 0", got)
	}
}

func TestSynthesize_NoFallbackOnServerError(t *testing.T) {
	srvErr := &ttsprov.ServerError{Status: 500, Body: "boom"}
	primary := &mock.Synthesizer{Err: srvErr}
	secondary := &mock.Synthesizer{Audio: []byte("fallback-audio")}
	g := newTestGateway(t, primary, secondary)

	_, err := g.Synthesize(context.Background(), "Hi.", "rachel", false)
	var got *ttsprov.ServerError
	if !errors.As(err, &got) || got.Status != 500 {
		t.Fatalf("err = %v, want ServerError with status 500", err)
	}
	if secondary.CallCount() != 0 {
		t.Fatalf("secondary called %d times, want 0", secondary.CallCount())
	}
}

func TestSynthesize_FallbackNeverRetries(t *testing.T) {
	primary := &mock.Synthesizer{Err: ttsprov.ErrRateLimited}
	secondary := &mock.Synthesizer{Err: ttsprov.ErrEmptyResponse}
	g := newTestGateway(t, primary, secondary)

	if _, err := g.Synthesize(context.Background(), "Hi.", "rachel", false); err == nil {
		t.Fatal("expected error when both providers fail")
	}
	if primary.CallCount() != 1 || secondary.CallCount() != 1 {
		t.Fatalf("calls = %d/%d, want exactly one each", primary.CallCount(), secondary.CallCount())
	}
}

func TestSynthesize_NonStreamingCached(t *testing.T) {
	primary := &mock.Synthesizer{Audio: []byte("cached-audio")}
	g := newTestGateway(t, primary, nil)

	for i := 0; i < 3; i++ {
		audio, err := g.Synthesize(context.Background(), "Welcome back!", "rachel", false)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if string(audio) != "cached-audio" {
			t.Fatalf("call %d: audio = %q", i, audio)
		}
	}
	if primary.CallCount() != 1 {
		t.Fatalf("primary called %d times, want 1 (cache should serve repeats)", primary.CallCount())
	}
}

func TestSynthesize_StreamingBypassesCache(t *testing.T) {
	primary := &mock.Synthesizer{Audio: []byte("audio")}
	g := newTestGateway(t, primary, nil)

	for i := 0; i < 3; i++ {
		if _, err := g.Synthesize(context.Background(), "Same sentence.", "rachel", true); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}
	if primary.CallCount() != 3 {
		t.Fatalf("primary called %d times, want 3 (streaming must not memoize)", primary.CallCount())
	}
}

func TestSynthesize_FailuresNotCached(t *testing.T) {
	primary := &mock.Synthesizer{Errs: []error{ttsprov.ErrEmptyResponse, nil}, Audio: []byte("audio")}
	g := newTestGateway(t, primary, nil)

	if _, err := g.Synthesize(context.Background(), "Hi there.", "rachel", false); err == nil {
		t.Fatal("expected first call to fail")
	}
	audio, err := g.Synthesize(context.Background(), "Hi there.", "rachel", false)
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if string(audio) != "audio" {
		t.Fatalf("audio = %q, want audio", audio)
	}
}

func TestNewGateway_NilPrimary(t *testing.T) {
	if _, err := NewGateway(nil, nil); err == nil {
		t.Fatal("expected error for nil primary")
	}
}

func TestCleanText(t *testing.T) {
	got := CleanText("**Once** upon_a_time # > the end")
	if want := "Once uponatime   the end"; got != want {
		t.Fatalf("CleanText = %q, want %q", got, want)
	}
}
