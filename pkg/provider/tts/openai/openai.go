// Package openai provides an OpenAI speech-backed TTS synthesizer. It is used
// as the fallback backend when the primary provider reports an auth or quota
// failure.
package openai

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
	defaultBaseURL = "https://api.openai.com/v1/audio/speech"
	defaultModel   = "tts-1"
	defaultVoice   = "alloy"
)

// Option is a functional option for configuring the OpenAI Provider.
type Option func(*Provider)

// WithBaseURL overrides the default speech endpoint URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// WithModel sets the speech model (e.g., "tts-1", "tts-1-hd").
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

// Provider implements tts.Synthesizer backed by POST /v1/audio/speech.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// Compile-time interface assertion.
var _ tts.Synthesizer = (*Provider)(nil)

// New creates a new OpenAI speech Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai tts: apiKey must not be empty")
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

// speechBody is the JSON payload for the speech endpoint.
type speechBody struct {
	Model  string   `json:"model"`
	Input  string   `json:"input"`
	Voice  string   `json:"voice"`
	Format string   `json:"response_format"`
	Speed  *float64 `json:"speed,omitempty"`
}

// Synthesize implements tts.Synthesizer. An empty VoiceID selects the "alloy"
// default. The Streaming flag has no dedicated endpoint here; the response is
// consumed in full either way.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) ([]byte, error) {
	if req.Text == "" {
		return nil, errors.New("openai tts: text must not be empty")
	}

	voice := req.VoiceID
	if voice == "" {
		voice = defaultVoice
	}
	payload := speechBody{
		Model:  p.model,
		Input:  req.Text,
		Voice:  voice,
		Format: "mp3",
	}
	if req.Speed > 0 {
		payload.Speed = &req.Speed
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("openai tts: marshal body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai tts: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai tts: request: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai tts: read body: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized:
		return nil, tts.ErrUnauthorized
	case http.StatusTooManyRequests:
		return nil, tts.ErrRateLimited
	default:
		return nil, &tts.ServerError{Status: resp.StatusCode, Body: string(audio)}
	}

	if len(audio) == 0 {
		return nil, tts.ErrEmptyResponse
	}
	return audio, nil
}
