// Package mock provides a test double for the imagegen.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/tadams048/socra/pkg/provider/imagegen"
)

// GenerateCall records a single invocation of Generate.
type GenerateCall struct {
	// Ctx is the context passed to Generate.
	Ctx context.Context
	// Prompt is the prompt passed to Generate.
	Prompt string
}

// Provider is a mock implementation of imagegen.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// URL is the image URL returned on success.
	URL string

	// Err, if non-nil, is returned instead of URL.
	Err error

	// GenerateFn, if set, replaces the canned behaviour entirely. Useful for
	// per-call results and for blocking until released in concurrency tests.
	GenerateFn func(ctx context.Context, prompt string) (string, error)

	// --- Call records ---

	// Calls records every call to Generate in order.
	Calls []GenerateCall
}

// Generate records the call and returns the configured response.
func (p *Provider) Generate(ctx context.Context, prompt string) (string, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, GenerateCall{Ctx: ctx, Prompt: prompt})
	fn := p.GenerateFn
	url, err := p.URL, p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt)
	}
	return url, err
}

// CallCount returns the number of recorded Generate calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Prompts returns the prompts of all recorded calls in order. Thread-safe.
func (p *Provider) Prompts() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.Calls))
	for i, c := range p.Calls {
		out[i] = c.Prompt
	}
	return out
}

// Ensure Provider implements imagegen.Provider at compile time.
var _ imagegen.Provider = (*Provider)(nil)
