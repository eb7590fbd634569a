// Package tts defines the Synthesizer interface for Text-to-Speech backends.
//
// A TTS backend wraps a speech synthesis HTTP API (e.g., ElevenLabs, OpenAI
// speech) and returns whole-utterance audio bytes for a single sentence.
// Response validation is part of the contract: implementations must map
// 401 to [ErrUnauthorized], 429 to [ErrRateLimited], any other non-200 to
// [*ServerError], and an empty audio payload to [ErrEmptyResponse].
//
// Implementations must be safe for concurrent use; the orchestration layer
// dispatches one synthesis call per sentence without an explicit cap.
package tts

import "context"

// Synthesizer is the abstraction over any TTS backend.
type Synthesizer interface {
	// Synthesize converts req.Text into audio bytes. It blocks until the full
	// payload is available or ctx is cancelled.
	//
	// The returned slice is owned by the caller. Errors follow the taxonomy in
	// this package; transport failures are returned wrapped and unmapped.
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}
