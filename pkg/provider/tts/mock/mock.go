// Package mock provides a test double for the tts.Synthesizer interface.
//
// Use Synthesizer to feed controlled audio bytes to consumers and to verify
// which text, voice, and flags were passed to the backend.
//
// Example:
//
//	s := &mock.Synthesizer{Audio: []byte("mp3-bytes")}
//	data, _ := s.Synthesize(ctx, tts.Request{Text: "Hello."})
package mock

import (
	"context"
	"sync"

	"github.com/tadams048/socra/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	// Ctx is the context passed to Synthesize.
	Ctx context.Context
	// Req is the request passed to Synthesize.
	Req tts.Request
}

// Synthesizer is a mock implementation of tts.Synthesizer.
type Synthesizer struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Audio is the byte payload returned on success.
	Audio []byte

	// Err, if non-nil, is returned instead of Audio.
	Err error

	// Errs, if non-empty, supplies per-call errors: call i returns Errs[i]
	// (nil meaning success with Audio). Calls beyond the slice fall back to
	// Err/Audio. Takes precedence over Err.
	Errs []error

	// SynthesizeFn, if set, replaces the canned behaviour entirely.
	SynthesizeFn func(ctx context.Context, req tts.Request) ([]byte, error)

	// --- Call records ---

	// Calls records every call to Synthesize in order.
	Calls []SynthesizeCall
}

// Synthesize records the call and returns the configured response.
func (s *Synthesizer) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	s.mu.Lock()
	n := len(s.Calls)
	s.Calls = append(s.Calls, SynthesizeCall{Ctx: ctx, Req: req})
	fn := s.SynthesizeFn
	var err error
	if n < len(s.Errs) {
		err = s.Errs[n]
	} else {
		err = s.Err
	}
	audio := make([]byte, len(s.Audio))
	copy(audio, s.Audio)
	s.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	return audio, nil
}

// CallCount returns the number of recorded Synthesize calls. Thread-safe.
func (s *Synthesizer) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (s *Synthesizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Calls = nil
}

// Ensure Synthesizer implements tts.Synthesizer at compile time.
var _ tts.Synthesizer = (*Synthesizer)(nil)
