// Package conversation owns one storytelling turn end to end.
//
// The Coordinator streams a language model reply, segments it into
// sentences, synthesizes each sentence concurrently while enqueueing the
// audio strictly in sentence order, extracts one illustration prompt per
// turn, and settles only after all audio has played. It also owns story
// identity: superseding a turn invalidates the previous turn's in-flight
// work.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tadams048/socra/internal/observe"
	"github.com/tadams048/socra/internal/segment"
	"github.com/tadams048/socra/internal/tts"
	"github.com/tadams048/socra/pkg/audio"
	"github.com/tadams048/socra/pkg/provider/llm"
	"github.com/tadams048/socra/pkg/provider/stt"
)

// State is the coordinator's per-turn state machine position.
type State string

const (
	StateIdle            State = "idle"
	StateStreaming       State = "streaming"
	StateDraining        State = "draining"
	StateImageExtraction State = "image_extraction"
	StateSettled         State = "settled"
)

const (
	// defaultSummaryTimeout is how long the summarisation race may run
	// before the first-words fallback wins.
	defaultSummaryTimeout = time.Second

	// fallbackPromptWords is how many leading reply words form the fallback
	// illustration prompt.
	fallbackPromptWords = 30

	// postRecordDelay separates the end of microphone capture from the
	// start of playback.
	postRecordDelay = 100 * time.Millisecond
)

// ErrTurnInProgress is returned by Submit while a previous turn is still
// running.
var ErrTurnInProgress = errors.New("conversation: turn already in progress")

// SpeechGateway is the synthesis dependency, satisfied by [tts.Gateway].
type SpeechGateway interface {
	Synthesize(ctx context.Context, text, voiceID string, streaming bool) ([]byte, error)
}

// AudioSequencer is the playback dependency, satisfied by
// [playback.Sequencer].
type AudioSequencer interface {
	Enqueue(data []byte) <-chan struct{}
	Stop()
	Reset()
	Drain(ctx context.Context) error
}

// ImageQueue is the illustration dependency, satisfied by [images.Queue].
type ImageQueue interface {
	Enqueue(prompt string, sentenceIndex int)
	ResetForNewStory(storyID string)
}

// Option is a functional option for configuring the Coordinator.
type Option func(*Coordinator)

// WithSystemPrompt sets the persona system prompt.
func WithSystemPrompt(prompt string) Option {
	return func(c *Coordinator) {
		c.systemPrompt = prompt
	}
}

// WithVoice sets the primary synthesis voice.
func WithVoice(voiceID string) Option {
	return func(c *Coordinator) {
		c.voiceID = voiceID
	}
}

// WithSummaryTimeout overrides the summarisation race timeout.
func WithSummaryTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		c.summaryTimeout = d
	}
}

// WithRecorder sets the speech-to-text collaborator used by the listen flow.
func WithRecorder(r stt.Recorder) Option {
	return func(c *Coordinator) {
		c.recorder = r
	}
}

// WithAudioSession sets the platform audio session collaborator.
func WithAudioSession(s audio.Session) Option {
	return func(c *Coordinator) {
		c.session = s
	}
}

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(c *Coordinator) {
		c.log = log
	}
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// Coordinator drives one conversation turn at a time. Safe for concurrent
// use; Submit itself is serialized.
type Coordinator struct {
	llm     llm.Provider
	speech  SpeechGateway
	seq     AudioSequencer
	images  ImageQueue
	log     *slog.Logger
	metrics *observe.Metrics

	recorder stt.Recorder
	session  audio.Session

	summaryTimeout time.Duration

	mu            sync.Mutex
	state         State
	systemPrompt  string
	voiceID       string
	messages      []llm.Message
	storyID       string
	sentenceIndex int
	agentMessage  string
	errorMessage  string
	cancelTurn    context.CancelFunc
}

// synthResult carries one sentence's synthesis outcome to the ordered
// enqueuer.
type synthResult struct {
	audio []byte
	err   error
}

// New creates a Coordinator over its collaborators.
func New(provider llm.Provider, speech SpeechGateway, seq AudioSequencer, imgs ImageQueue, opts ...Option) (*Coordinator, error) {
	if provider == nil || speech == nil || seq == nil || imgs == nil {
		return nil, errors.New("conversation: all collaborators must be non-nil")
	}
	c := &Coordinator{
		llm:            provider,
		speech:         speech,
		seq:            seq,
		images:         imgs,
		state:          StateIdle,
		summaryTimeout: defaultSummaryTimeout,
		session:        audio.NopSession{},
	}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	return c, nil
}

// Submit runs one full turn for userText and blocks until the turn settles,
// the stream fails, or the turn is stopped. Sentence audio is enqueued in
// segmentation order even though synthesis calls complete out of order.
func (c *Coordinator) Submit(ctx context.Context, userText string) error {
	turnCtx, err := c.beginTurn(ctx, userText)
	if err != nil {
		return err
	}

	reply, streamErr := c.streamAndSpeak(turnCtx)

	if streamErr != nil {
		c.failTurn(streamErr)
		return streamErr
	}
	if turnCtx.Err() != nil {
		// Stopped mid-turn; state was already reset by Stop.
		return nil
	}

	c.setState(StateImageExtraction)
	prompt := c.extractImagePrompt(turnCtx, reply)
	c.images.Enqueue(prompt, 0)

	if err := c.seq.Drain(turnCtx); err != nil {
		if turnCtx.Err() != nil {
			return nil
		}
		return fmt.Errorf("conversation: wait for playback: %w", err)
	}

	c.settleTurn(reply)
	return nil
}

// Speak synthesizes and plays text outside a story turn, using the cached
// non-streaming path so repeated greetings skip the network.
func (c *Coordinator) Speak(ctx context.Context, text string) error {
	c.mu.Lock()
	voice := c.voiceID
	c.mu.Unlock()

	data, err := c.speech.Synthesize(ctx, tts.CleanText(text), voice, false)
	if err != nil {
		return fmt.Errorf("conversation: speak: %w", err)
	}
	c.seq.Enqueue(data)
	return nil
}

// StartListening acquires the platform audio session and begins capturing an
// utterance.
func (c *Coordinator) StartListening(ctx context.Context) error {
	if c.recorder == nil {
		return errors.New("conversation: no recorder configured")
	}
	if err := c.session.Activate(ctx); err != nil {
		return fmt.Errorf("conversation: activate audio session: %w", err)
	}
	if err := c.recorder.StartRecording(ctx); err != nil {
		c.setError(err.Error())
		return fmt.Errorf("conversation: start recording: %w", err)
	}
	return nil
}

// StopListeningAndSubmit ends the capture started by StartListening,
// releases the audio session, and submits the transcript as a new turn.
func (c *Coordinator) StopListeningAndSubmit(ctx context.Context) error {
	if c.recorder == nil {
		return errors.New("conversation: no recorder configured")
	}
	text, err := c.recorder.StopRecording(ctx)
	if derr := c.session.Deactivate(ctx); derr != nil {
		c.log.Warn("deactivate audio session", "error", derr)
	}
	if err != nil {
		c.setError(err.Error())
		return fmt.Errorf("conversation: stop recording: %w", err)
	}

	// Let the microphone settle before playback begins.
	time.Sleep(postRecordDelay)
	return c.Submit(ctx, text)
}

// Stop halts the current turn: playback stops, pending sentence dispatch is
// abandoned, and the image queue is rebound to a fresh story so in-flight
// generations are discarded on arrival.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.cancelTurn != nil {
		c.cancelTurn()
		c.cancelTurn = nil
	}
	c.storyID = uuid.NewString()
	newStory := c.storyID
	c.state = StateIdle
	c.mu.Unlock()

	c.seq.Stop()
	c.images.ResetForNewStory(newStory)
}

// SetPersona replaces the active persona: the system prompt for all
// subsequent turns and the synthesis voice.
func (c *Coordinator) SetPersona(name, systemPrompt, voiceID string) {
	c.mu.Lock()
	c.systemPrompt = systemPrompt
	c.voiceID = voiceID
	c.mu.Unlock()
	c.log.Info("persona changed", "persona", name, "voice", voiceID)
}

// State returns the current turn state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// StoryID returns the current story identifier.
func (c *Coordinator) StoryID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.storyID
}

// CurrentSentenceIndex returns the number of sentences emitted so far in the
// current turn.
func (c *Coordinator) CurrentSentenceIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sentenceIndex
}

// AgentMessage returns the last settled assistant reply.
func (c *Coordinator) AgentMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.agentMessage
}

// ErrorMessage returns the current user-visible error message, empty when
// none.
func (c *Coordinator) ErrorMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errorMessage
}

// Messages returns a snapshot of the conversation history.
func (c *Coordinator) Messages() []llm.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]llm.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// beginTurn transitions Idle/Settled to Streaming and resets story state.
func (c *Coordinator) beginTurn(ctx context.Context, userText string) (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateStreaming || c.state == StateDraining || c.state == StateImageExtraction {
		return nil, ErrTurnInProgress
	}

	c.messages = append(c.messages, llm.Message{Role: "user", Content: userText})
	c.state = StateStreaming
	c.storyID = uuid.NewString()
	c.sentenceIndex = 0
	c.errorMessage = ""

	turnCtx, cancel := context.WithCancel(ctx)
	c.cancelTurn = cancel

	c.images.ResetForNewStory(c.storyID)
	c.log.Info("turn started", "story_id", c.storyID)
	return turnCtx, nil
}

// streamAndSpeak consumes the reply token stream, dispatching synthesis per
// sentence while a single enqueuer preserves playback order. It returns the
// full reply text.
func (c *Coordinator) streamAndSpeak(ctx context.Context) (string, error) {
	c.mu.Lock()
	req := llm.CompletionRequest{
		Messages:     append([]llm.Message(nil), c.messages...),
		SystemPrompt: c.systemPrompt,
	}
	voice := c.voiceID
	c.mu.Unlock()

	start := time.Now()
	stream, err := c.llm.StreamCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("conversation: open stream: %w", err)
	}

	// Each sentence gets a one-slot result channel pushed to the enqueuer
	// in segmentation order; the enqueuer blocks on the oldest sentence, so
	// audio enters the sequencer strictly in order regardless of which
	// synthesis call finishes first.
	results := make(chan chan synthResult, 64)
	enqueuerDone := make(chan struct{})
	go func() {
		defer close(enqueuerDone)
		for rc := range results {
			res := <-rc
			if res.err != nil {
				c.log.Warn("sentence synthesis failed, skipping", "error", res.err)
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			c.seq.Enqueue(res.audio)
		}
	}()

	var g errgroup.Group
	dispatch := func(sent segment.Sentence) {
		c.mu.Lock()
		c.sentenceIndex = sent.Ordinal + 1
		c.mu.Unlock()

		rc := make(chan synthResult, 1)
		results <- rc
		g.Go(func() error {
			data, err := c.speech.Synthesize(ctx, tts.CleanText(sent.Text), voice, true)
			rc <- synthResult{audio: data, err: err}
			return nil
		})
	}

	seg := segment.New()
	var reply []byte
	var streamErr error
	for chunk := range stream {
		if chunk.FinishReason == "error" {
			streamErr = fmt.Errorf("conversation: stream: %s", chunk.Text)
			break
		}
		reply = append(reply, chunk.Text...)
		for _, sent := range seg.Feed(chunk.Text) {
			dispatch(sent)
		}
	}
	c.metrics.LLMStreamDuration.Record(ctx, time.Since(start).Seconds())

	if streamErr == nil && ctx.Err() == nil {
		c.setState(StateDraining)
		if sent, ok := seg.Flush(); ok {
			dispatch(sent)
		}
	}

	_ = g.Wait()
	close(results)
	<-enqueuerDone

	return string(reply), streamErr
}

// settleTurn appends the assistant reply and marks the turn settled.
func (c *Coordinator) settleTurn(reply string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, llm.Message{Role: "assistant", Content: reply})
	c.agentMessage = reply
	c.state = StateSettled
	c.cancelTurn = nil
	c.log.Info("turn settled", "story_id", c.storyID, "sentences", c.sentenceIndex)
}

// failTurn records a user-visible error and returns to idle.
func (c *Coordinator) failTurn(err error) {
	c.seq.Stop()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorMessage = err.Error()
	c.state = StateIdle
	c.cancelTurn = nil
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Coordinator) setError(msg string) {
	c.mu.Lock()
	c.errorMessage = msg
	c.mu.Unlock()
}
