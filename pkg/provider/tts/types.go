package tts

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure modes every TTS backend must map its HTTP
// responses onto. Callers use errors.Is to branch on them.
var (
	// ErrUnauthorized indicates a 401: bad, expired, or out-of-credit key.
	ErrUnauthorized = errors.New("tts: unauthorized")

	// ErrRateLimited indicates a 429 from the provider.
	ErrRateLimited = errors.New("tts: rate limited")

	// ErrEmptyResponse indicates the provider returned zero audio bytes,
	// regardless of HTTP status.
	ErrEmptyResponse = errors.New("tts: empty response")
)

// ServerError is returned for any non-200 response that is not a 401 or 429.
// It carries the raw status and body text for diagnostics.
type ServerError struct {
	// Status is the HTTP status code of the failed response.
	Status int

	// Body is the response body text, useful for provider error envelopes.
	Body string
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return fmt.Sprintf("tts: server error %d: %s", e.Status, e.Body)
}

// Request describes one synthesis call.
type Request struct {
	// Text is the sentence or utterance to synthesise. Must be non-empty.
	Text string

	// VoiceID selects the provider-specific voice. Empty means the provider's
	// default voice.
	VoiceID string

	// Streaming requests the provider's low-latency streaming endpoint where
	// one exists. The full audio payload is still returned as a single byte
	// slice; the flag only affects which endpoint is used.
	Streaming bool

	// Speed adjusts the speaking rate. Zero means provider default. Providers
	// without a rate control ignore it.
	Speed float64
}
