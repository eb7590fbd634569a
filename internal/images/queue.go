// Package images runs rate-limited story illustration generation.
//
// Requests enter a bounded backlog and are dispatched to the provider with a
// concurrency cap. Failed generations are retried once and then replaced by a
// single fixed kid-safe prompt. Validated images land in a bounded on-disk
// cache and are appended to the current story's image list; results arriving
// after the story has been superseded are discarded.
package images

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tadams048/socra/internal/observe"
	"github.com/tadams048/socra/pkg/provider/imagegen"
)

const (
	// maxImages caps appended images per story.
	maxImages = 10

	// maxPendingGens caps the backlog.
	maxPendingGens = 4

	// maxConcurrentGens caps in-flight generations.
	maxConcurrentGens = 2

	// minPromptLen guards against degenerate prompts; shorter prompts are
	// dropped silently.
	minPromptLen = 30

	// primaryAttempts is how many times the content-derived prompt is tried
	// before the fallback prompt.
	primaryAttempts = 2

	// fallbackPrompt is the fixed pre-approved prompt used when both primary
	// attempts fail. It gets no retry of its own.
	fallbackPrompt = "IMPORTANT PIXAR ANIMATION ART STYLE. IMPORTANT KID FRIENDLY. A cheerful airplane flying in a bright blue sky."

	// attemptTimeout bounds one generation attempt including the validation
	// fetch.
	attemptTimeout = 30 * time.Second
)

// pngMagic is the PNG file signature prefix.
var pngMagic = []byte{0x89, 'P', 'N', 'G'}

// Image is one validated illustration appended to a story.
type Image struct {
	// SentenceIndex ties the image to a sentence ordinal; consumers show the
	// most recent image at or before the current sentence.
	SentenceIndex int
	// URL is the provider's remote image URL.
	URL string
	// LocalPath is the cached copy on disk.
	LocalPath string
	// StoryID identifies the story the image belongs to.
	StoryID string
}

// pendingRequest is one backlog entry awaiting a generation slot.
type pendingRequest struct {
	prompt        string
	sentenceIndex int
}

// Option is a functional option for configuring the Queue.
type Option func(*Queue)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(q *Queue) {
		q.log = log
	}
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(q *Queue) {
		q.metrics = m
	}
}

// WithHTTPClient replaces the HTTP client used for validation fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(q *Queue) {
		q.fetch = c
	}
}

// Queue admits, dispatches, and validates image generation work for the
// current story. Safe for concurrent use.
type Queue struct {
	provider imagegen.Provider
	cache    *diskCache
	fetch    *http.Client
	log      *slog.Logger
	metrics  *observe.Metrics

	mu         sync.Mutex
	storyID    string
	backlog    []pendingRequest
	active     int
	images     []Image
	imageCount int

	wg sync.WaitGroup
}

// NewQueue creates a Queue generating through provider, caching results under
// cacheDir with at most cacheEntries files.
func NewQueue(provider imagegen.Provider, cacheDir string, cacheEntries int, opts ...Option) *Queue {
	q := &Queue{
		provider: provider,
		cache:    newDiskCache(cacheDir, cacheEntries),
		fetch:    &http.Client{Timeout: attemptTimeout},
	}
	for _, o := range opts {
		o(q)
	}
	if q.log == nil {
		q.log = slog.Default()
	}
	if q.metrics == nil {
		q.metrics = observe.DefaultMetrics()
	}
	return q
}

// Enqueue admits a generation request for the current story. Requests are
// dropped silently when the story already has its maximum number of images,
// the backlog is full, or the prompt is too short.
func (q *Queue) Enqueue(prompt string, sentenceIndex int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	switch {
	case q.imageCount >= maxImages:
		q.metrics.RecordImageDrop(context.Background(), "max_images")
		return
	case len(q.backlog) >= maxPendingGens:
		q.metrics.RecordImageDrop(context.Background(), "backlog_full")
		return
	case len(prompt) <= minPromptLen:
		q.metrics.RecordImageDrop(context.Background(), "short_prompt")
		return
	}

	q.backlog = append(q.backlog, pendingRequest{prompt: prompt, sentenceIndex: sentenceIndex})
	q.dispatchLocked()
}

// ResetForNewStory discards the backlog and image list and rebinds all
// subsequent completions to storyID. In-flight generations keep running but
// their results are discarded on arrival.
func (q *Queue) ResetForNewStory(storyID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.storyID = storyID
	q.backlog = nil
	q.images = nil
	q.imageCount = 0
}

// Images returns a snapshot of the current story's appended images.
func (q *Queue) Images() []Image {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Image, len(q.images))
	copy(out, q.images)
	return out
}

// ImageCount returns the number of images appended to the current story.
func (q *Queue) ImageCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.imageCount
}

// BacklogLen returns the current backlog size.
func (q *Queue) BacklogLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.backlog)
}

// Wait blocks until all dispatched generations have settled.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// dispatchLocked starts workers while slots and backlog allow. Caller holds
// q.mu.
func (q *Queue) dispatchLocked() {
	for q.active < maxConcurrentGens && len(q.backlog) > 0 {
		req := q.backlog[0]
		q.backlog = q.backlog[1:]
		q.active++
		q.metrics.ActiveGenerations.Add(context.Background(), 1)
		q.wg.Add(1)
		go q.generate(req, q.storyID)
	}
}

// generate runs the full per-request algorithm for one backlog entry, then
// frees its slot and dispatches the next.
func (q *Queue) generate(req pendingRequest, storyID string) {
	defer func() {
		q.mu.Lock()
		q.active--
		q.metrics.ActiveGenerations.Add(context.Background(), -1)
		q.dispatchLocked()
		q.mu.Unlock()
		q.wg.Done()
	}()

	url, data, err := q.attemptWithRetry(req.prompt, primaryAttempts)
	if err != nil {
		q.log.Warn("image generation exhausted, using fallback prompt",
			"sentence_index", req.sentenceIndex, "error", err)
		url, data, err = q.attemptWithRetry(fallbackPrompt, 1)
		if err != nil {
			q.log.Error("fallback image generation failed",
				"sentence_index", req.sentenceIndex, "error", err)
			return
		}
	}

	localPath, err := q.cache.Put(data)
	if err != nil {
		q.log.Error("cache image", "error", err)
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.storyID != storyID {
		q.log.Debug("discarding image for superseded story",
			"story_id", storyID, "current", q.storyID)
		return
	}
	q.images = append(q.images, Image{
		SentenceIndex: req.sentenceIndex,
		URL:           url,
		LocalPath:     localPath,
		StoryID:       storyID,
	})
	q.imageCount++
}

// attemptWithRetry runs up to attempts generation attempts for prompt and
// returns the validated image.
func (q *Queue) attemptWithRetry(prompt string, attempts int) (url string, data []byte, err error) {
	for i := 0; i < attempts; i++ {
		url, data, err = q.attempt(prompt)
		if err == nil {
			return url, data, nil
		}
		q.metrics.RecordProviderError(context.Background(), "imagegen", "generate")
		q.log.Warn("image generation attempt failed", "attempt", i+1, "error", err)
	}
	return "", nil, err
}

// attempt runs one generation and validation round trip.
func (q *Queue) attempt(prompt string) (string, []byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), attemptTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		q.metrics.ImageGenDuration.Record(ctx, time.Since(start).Seconds())
	}()

	url, err := q.provider.Generate(ctx, prompt)
	if err != nil {
		return "", nil, err
	}
	if !strings.HasSuffix(strings.ToLower(url), ".png") {
		return "", nil, fmt.Errorf("images: unexpected resource type: %s", url)
	}

	data, err := q.download(ctx, url)
	if err != nil {
		return "", nil, err
	}
	return url, data, nil
}

// download fetches url and validates the payload is a PNG.
func (q *Queue) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("images: build fetch request: %w", err)
	}
	resp, err := q.fetch.Do(req)
	if err != nil {
		return nil, fmt.Errorf("images: fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("images: fetch image: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("images: read image: %w", err)
	}
	if !bytes.HasPrefix(data, pngMagic) {
		return nil, fmt.Errorf("images: payload is not a PNG")
	}
	return data, nil
}
