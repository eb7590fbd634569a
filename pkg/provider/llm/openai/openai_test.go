package openai

import (
	"testing"

	"github.com/tadams048/socra/pkg/provider/llm"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "gpt-4o-mini"); err == nil {
		t.Fatal("expected error for empty api key")
	}
	if _, err := New("sk-test", ""); err == nil {
		t.Fatal("expected error for empty model")
	}
	if _, err := New("sk-test", "gpt-4o-mini"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBuildParams_SystemPromptFirst(t *testing.T) {
	p, _ := New("sk-test", "gpt-4o-mini")
	params := p.buildParams(llm.CompletionRequest{
		SystemPrompt: "You are a storyteller.",
		Messages: []llm.Message{
			{Role: "user", Content: "Tell me a story"},
			{Role: "assistant", Content: "Once upon a time..."},
		},
	})

	if got := len(params.Messages); got != 3 {
		t.Fatalf("got %d messages, want 3", got)
	}
	if params.Messages[0].OfSystem == nil {
		t.Fatal("messages[0] is not a system message")
	}
	if params.Messages[1].OfUser == nil {
		t.Fatal("messages[1] is not a user message")
	}
	if params.Messages[2].OfAssistant == nil {
		t.Fatal("messages[2] is not an assistant message")
	}
}

func TestBuildParams_OptionalFields(t *testing.T) {
	p, _ := New("sk-test", "gpt-4o-mini")

	params := p.buildParams(llm.CompletionRequest{
		Messages: []llm.Message{{Role: "user", Content: "hi"}},
	})
	if params.Temperature.Valid() {
		t.Fatal("temperature set, want unset")
	}
	if params.MaxCompletionTokens.Valid() {
		t.Fatal("max tokens set, want unset")
	}

	params = p.buildParams(llm.CompletionRequest{
		Messages:    []llm.Message{{Role: "user", Content: "hi"}},
		Temperature: 0.3,
		MaxTokens:   128,
	})
	if !params.Temperature.Valid() || params.Temperature.Value != 0.3 {
		t.Fatalf("temperature = %v, want 0.3", params.Temperature)
	}
	if !params.MaxCompletionTokens.Valid() || params.MaxCompletionTokens.Value != 128 {
		t.Fatalf("max tokens = %v, want 128", params.MaxCompletionTokens)
	}
}
