// Package imagegen defines the Provider interface for image generation
// backends.
//
// A provider accepts a text prompt and returns the URL of one generated image.
// Validation of the resulting resource (content type, magic bytes) is the
// caller's responsibility; providers only guarantee a well-formed URL on
// success.
//
// Implementations must be safe for concurrent use; the image queue runs up to
// two generations in parallel.
package imagegen

import "context"

// Provider is the abstraction over any image generation backend.
type Provider interface {
	// Generate submits prompt and returns the URL of the generated image.
	// It blocks until the backend responds or ctx is cancelled.
	Generate(ctx context.Context, prompt string) (string, error)
}
