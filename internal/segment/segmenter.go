// Package segment turns a stream of text tokens into complete sentences.
//
// Language model replies arrive as incremental token deltas. The Segmenter
// accumulates them and emits a sentence as soon as a token carries
// sentence-terminal punctuation, so downstream speech synthesis can start
// while the reply is still streaming.
package segment

import "strings"

// Sentence is one completed sentence extracted from a token stream.
type Sentence struct {
	// Text is the sentence content, trimmed of surrounding whitespace.
	Text string
	// Ordinal is the zero-based position of the sentence within the
	// stream. Strictly increasing; it defines playback order.
	Ordinal int
}

// Segmenter accumulates streamed tokens into sentences. It is pure and
// synchronous with no internal locking; callers feed it from a single
// goroutine.
//
// A token containing any of '.', '!' or '?' completes the current sentence.
// Sentences are never split mid-word because emission only happens on token
// boundaries. Buffer growth is unbounded for pathological punctuation-free
// input.
type Segmenter struct {
	buf     strings.Builder
	ordinal int
}

// New returns an empty Segmenter.
func New() *Segmenter {
	return &Segmenter{}
}

// Feed appends token to the internal buffer and returns any sentences
// completed by it. The returned slice is nil when the token carries no
// terminal punctuation.
func (s *Segmenter) Feed(token string) []Sentence {
	s.buf.WriteString(token)
	if !strings.ContainsAny(token, ".!?") {
		return nil
	}
	return s.emit()
}

// Flush drains any trailing partial text as a final sentence. It returns
// false when the buffer holds nothing but whitespace.
func (s *Segmenter) Flush() (Sentence, bool) {
	out := s.emit()
	if len(out) == 0 {
		return Sentence{}, false
	}
	return out[0], true
}

func (s *Segmenter) emit() []Sentence {
	text := strings.TrimSpace(s.buf.String())
	s.buf.Reset()
	if text == "" {
		return nil
	}
	sent := Sentence{Text: text, Ordinal: s.ordinal}
	s.ordinal++
	return []Sentence{sent}
}
