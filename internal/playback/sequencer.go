// Package playback owns sequential audio output.
//
// The Sequencer accepts audio chunks in arrival order and plays them back to
// back through a single worker, so sentences are heard in the order they were
// enqueued no matter how playback timing varies. Each chunk is persisted to a
// temporary file for the Player collaborator and removed after playing.
package playback

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/tadams048/socra/internal/observe"
)

// chunk is one queued audio payload with its completion signal.
type chunk struct {
	data []byte
	done chan struct{}
}

// Option is a functional option for configuring the Sequencer.
type Option func(*Sequencer)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(s *Sequencer) {
		s.log = log
	}
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Sequencer) {
		s.metrics = m
	}
}

// WithTempDir sets the directory for temporary audio files. Defaults to the
// OS temp dir.
func WithTempDir(dir string) Option {
	return func(s *Sequencer) {
		s.tempDir = dir
	}
}

// Sequencer plays enqueued audio chunks strictly in FIFO order through one
// worker goroutine. Safe for concurrent use.
type Sequencer struct {
	player  Player
	log     *slog.Logger
	metrics *observe.Metrics
	tempDir string

	mu         sync.Mutex
	cond       *sync.Cond
	queue      []*chunk
	playing    bool
	cancelPlay context.CancelFunc
	waiters    []chan struct{}
	closed     bool
}

// NewSequencer creates a Sequencer over player and starts its worker.
func NewSequencer(player Player, opts ...Option) *Sequencer {
	s := &Sequencer{player: player}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	s.cond = sync.NewCond(&s.mu)
	go s.run()
	return s
}

// Enqueue adds data to the playback queue and returns a channel that is
// closed after the chunk finishes playing. The channel never closes when the
// chunk is discarded by [Sequencer.Stop] or [Sequencer.Reset], or when
// playback fails; callers needing liveness must apply their own timeout.
func (s *Sequencer) Enqueue(data []byte) <-chan struct{} {
	c := &chunk{data: data, done: make(chan struct{})}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.log.Warn("enqueue on closed sequencer, chunk dropped")
		return c.done
	}
	s.queue = append(s.queue, c)
	s.metrics.QueuedChunks.Add(context.Background(), 1)
	s.cond.Signal()
	s.mu.Unlock()
	return c.done
}

// Stop immediately halts the currently playing chunk and discards all queued
// chunks without completing them. The sequencer stays usable for later
// enqueues.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	s.discardQueueLocked()
	if s.cancelPlay != nil {
		s.cancelPlay()
	}
	if !s.playing {
		s.notifyIdleLocked()
	}
	s.mu.Unlock()
}

// Reset discards queued chunks without affecting the chunk currently
// playing. Weaker than [Sequencer.Stop].
func (s *Sequencer) Reset() {
	s.mu.Lock()
	s.discardQueueLocked()
	if !s.playing {
		s.notifyIdleLocked()
	}
	s.mu.Unlock()
}

// Drain blocks until the queue is empty and nothing is playing, or ctx is
// cancelled.
func (s *Sequencer) Drain(ctx context.Context) error {
	s.mu.Lock()
	if len(s.queue) == 0 && !s.playing {
		s.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	s.waiters = append(s.waiters, ch)
	s.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops playback, discards the queue, and terminates the worker. The
// sequencer must not be used afterwards.
func (s *Sequencer) Close() {
	s.mu.Lock()
	s.closed = true
	s.discardQueueLocked()
	if s.cancelPlay != nil {
		s.cancelPlay()
	}
	if !s.playing {
		s.notifyIdleLocked()
	}
	s.cond.Signal()
	s.mu.Unlock()
}

// discardQueueLocked drops all queued chunks. Their completion channels are
// never closed. Caller holds s.mu.
func (s *Sequencer) discardQueueLocked() {
	if n := len(s.queue); n > 0 {
		s.metrics.QueuedChunks.Add(context.Background(), -int64(n))
		s.queue = nil
	}
}

// notifyIdleLocked releases all Drain waiters. Caller holds s.mu.
func (s *Sequencer) notifyIdleLocked() {
	for _, ch := range s.waiters {
		close(ch)
	}
	s.waiters = nil
}

// run is the single playback worker.
func (s *Sequencer) run() {
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if s.closed {
			s.mu.Unlock()
			return
		}
		c := s.queue[0]
		s.queue = s.queue[1:]
		s.metrics.QueuedChunks.Add(context.Background(), -1)
		s.playing = true
		ctx, cancel := context.WithCancel(context.Background())
		s.cancelPlay = cancel
		s.mu.Unlock()

		ok := s.playChunk(ctx, c.data)
		cancel()

		s.mu.Lock()
		s.cancelPlay = nil
		s.playing = false
		if len(s.queue) == 0 {
			s.notifyIdleLocked()
		}
		s.mu.Unlock()

		if ok {
			close(c.done)
		}
	}
}

// playChunk writes data to a temporary file, plays it, and cleans up. It
// reports whether playback completed. Player faults are logged, never
// surfaced.
func (s *Sequencer) playChunk(ctx context.Context, data []byte) bool {
	f, err := os.CreateTemp(s.tempDir, "socra-audio-*.mp3")
	if err != nil {
		s.log.Error("create temp audio file", "error", err)
		return false
	}
	path := f.Name()
	defer os.Remove(path)

	if _, err := f.Write(data); err != nil {
		f.Close()
		s.log.Error("write temp audio file", "path", path, "error", err)
		return false
	}
	if err := f.Close(); err != nil {
		s.log.Error("close temp audio file", "path", path, "error", err)
		return false
	}

	start := time.Now()
	if err := s.player.Play(ctx, path); err != nil {
		s.log.Warn("playback failed", "path", path, "error", err)
		return false
	}
	s.metrics.PlaybackDuration.Record(ctx, time.Since(start).Seconds())
	return true
}
