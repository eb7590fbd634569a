// Package runware provides an image generation provider backed by the
// Runware.ai task API. It implements the imagegen.Provider interface.
package runware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tadams048/socra/pkg/provider/imagegen"
)

const (
	defaultBaseURL = "https://api.runware.ai/v1"
	defaultModel   = "runware:100@1"

	defaultSteps  = 4
	defaultWidth  = 512
	defaultHeight = 512

	requestTimeout = 10 * time.Second
)

// Option is a functional option for configuring the Runware Provider.
type Option func(*Provider)

// WithBaseURL overrides the default Runware endpoint URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		p.baseURL = url
	}
}

// WithModel sets the Runware model identifier.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithStylePrefix sets a fixed instruction prepended to every prompt
// (art style, safety framing).
func WithStylePrefix(prefix string) Option {
	return func(p *Provider) {
		p.stylePrefix = prefix
	}
}

// WithHTTPClient replaces the HTTP client used for all requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements imagegen.Provider backed by the Runware task API.
type Provider struct {
	apiKey      string
	baseURL     string
	model       string
	stylePrefix string
	httpClient  *http.Client
}

// Compile-time interface assertion.
var _ imagegen.Provider = (*Provider)(nil)

// New creates a new Runware Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("runware: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// inferenceTask is one entry of the JSON task array sent to Runware.
type inferenceTask struct {
	TaskType       string `json:"taskType"`
	TaskUUID       string `json:"taskUUID"`
	PositivePrompt string `json:"positivePrompt"`
	Model          string `json:"model"`
	Steps          int    `json:"steps"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	NumberResults  int    `json:"numberResults"`
	OutputType     string `json:"outputType"`
	OutputFormat   string `json:"outputFormat"`
}

// taskResponse is the top-level success envelope.
type taskResponse struct {
	Data []struct {
		ImageURL string `json:"imageURL"`
	} `json:"data"`
}

// errorResponse is the JSON error envelope: {"errors":[{"message":"..."}]}.
type errorResponse struct {
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Generate implements imagegen.Provider. It submits a single imageInference
// task requesting one 512x512 PNG by URL and returns the image URL.
func (p *Provider) Generate(ctx context.Context, prompt string) (string, error) {
	positive := prompt
	if p.stylePrefix != "" {
		positive = p.stylePrefix + " " + prompt
	}

	tasks := []inferenceTask{{
		TaskType:       "imageInference",
		TaskUUID:       strings.ToLower(uuid.NewString()),
		PositivePrompt: positive,
		Model:          p.model,
		Steps:          defaultSteps,
		Width:          defaultWidth,
		Height:         defaultHeight,
		NumberResults:  1,
		OutputType:     "URL",
		OutputFormat:   "PNG",
	}}
	body, err := json.Marshal(tasks)
	if err != nil {
		return "", fmt.Errorf("runware: marshal tasks: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("runware: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("runware: request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("runware: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("runware: %s", errorMessage(respBody, resp.StatusCode))
	}

	var tr taskResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return "", fmt.Errorf("runware: decode response: %w", err)
	}
	if len(tr.Data) == 0 || tr.Data[0].ImageURL == "" {
		return "", errors.New("runware: malformed response: no image URL")
	}
	return tr.Data[0].ImageURL, nil
}

// errorMessage extracts the first message from the Runware error envelope,
// falling back to a generic status description.
func errorMessage(body []byte, status int) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && len(er.Errors) > 0 && er.Errors[0].Message != "" {
		return er.Errors[0].Message
	}
	return fmt.Sprintf("unexpected status %d", status)
}
