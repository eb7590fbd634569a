package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/tadams048/socra/pkg/provider/llm"
)

// summarySystemPrompt instructs the model to compress a reply into one
// illustration prompt.
const summarySystemPrompt = "You turn a children's story passage into a single short image " +
	"description. Respond with one vivid, kid-friendly sentence describing the main visual " +
	"scene. No preamble, no quotes."

// extractImagePrompt races a summarisation call against the summary timeout
// and returns whichever prompt wins. The loser is cancelled and its result
// discarded; the fallback is the first words of the reply.
func (c *Coordinator) extractImagePrompt(ctx context.Context, reply string) string {
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		start := time.Now()
		resp, err := c.llm.Complete(sctx, llm.CompletionRequest{
			SystemPrompt: summarySystemPrompt,
			Messages:     []llm.Message{{Role: "user", Content: reply}},
		})
		c.metrics.SummaryDuration.Record(sctx, time.Since(start).Seconds())
		if err != nil {
			ch <- result{err: err}
			return
		}
		ch <- result{text: resp.Content}
	}()

	timer := time.NewTimer(c.summaryTimeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		if r.err == nil {
			if text := strings.TrimSpace(r.text); text != "" {
				return text
			}
		} else {
			c.log.Warn("summary extraction failed, using first words", "error", r.err)
		}
	case <-timer.C:
		c.log.Debug("summary extraction timed out, using first words")
	case <-ctx.Done():
	}

	c.metrics.SummaryFallbacks.Add(ctx, 1)
	return firstWords(reply, fallbackPromptWords)
}

// firstWords returns the first n whitespace-separated words of s.
func firstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}
