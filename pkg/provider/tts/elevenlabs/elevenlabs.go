// Package elevenlabs provides an ElevenLabs-backed TTS synthesizer using the
// non-realtime HTTP endpoints. It implements the tts.Synthesizer interface.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tadams048/socra/pkg/provider/tts"
)

const (
	defaultBaseURL   = "https://api.elevenlabs.io/v1/text-to-speech"
	defaultModel     = "eleven_turbo_v2_5"
	defaultOutputFmt = "mp3_44100_128"

	defaultStability       = 0.6
	defaultSimilarityBoost = 0.85
)

// Option is a functional option for configuring the ElevenLabs Provider.
type Option func(*Provider)

// WithBaseURL overrides the default API base URL. Used by tests to point the
// provider at a local server.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// WithModel sets the ElevenLabs model ID (e.g., "eleven_turbo_v2_5").
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithHTTPClient replaces the HTTP client used for all requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements tts.Synthesizer backed by the ElevenLabs HTTP API.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Provider)(nil)

// New creates a new ElevenLabs Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// synthesisBody is the JSON payload for POST /v1/text-to-speech/{voice}.
type synthesisBody struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
	OutputFormat  string        `json:"output_format"`
}

// voiceSettings mirrors the ElevenLabs voice_settings object.
type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize implements tts.Synthesizer. Streaming requests hit the /stream
// suffix of the voice endpoint; both variants return the full audio payload.
// Speed is ignored; ElevenLabs has no request-level rate control.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	if req.Text == "" {
		return nil, errors.New("elevenlabs: text must not be empty")
	}
	if req.VoiceID == "" {
		return nil, errors.New("elevenlabs: voice ID must not be empty")
	}

	url := fmt.Sprintf("%s/%s", p.baseURL, req.VoiceID)
	if req.Streaming {
		url += "/stream"
	}

	body, err := json.Marshal(synthesisBody{
		Text:    req.Text,
		ModelID: p.model,
		VoiceSettings: voiceSettings{
			Stability:       defaultStability,
			SimilarityBoost: defaultSimilarityBoost,
		},
		OutputFormat: defaultOutputFmt,
	})
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("xi-api-key", p.apiKey)
	if req.Streaming {
		httpReq.Header.Set("Accept", "audio/mpeg")
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: request: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read body: %w", err)
	}
	if err := validateStatus(resp.StatusCode, audio); err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, tts.ErrEmptyResponse
	}
	return audio, nil
}

// validateStatus maps HTTP status codes onto the tts error taxonomy.
func validateStatus(status int, body []byte) error {
	switch status {
	case http.StatusOK:
		return nil
	case http.StatusUnauthorized:
		return tts.ErrUnauthorized
	case http.StatusTooManyRequests:
		return tts.ErrRateLimited
	default:
		return &tts.ServerError{Status: status, Body: string(body)}
	}
}
