package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tadams048/socra/pkg/provider/tts"
)

func TestSynthesize_Success(t *testing.T) {
	var gotBody speechBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("Authorization = %q, want Bearer sk-test", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte("fallback-audio"))
	}))
	defer srv.Close()

	p, err := New("sk-test", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	audio, err := p.Synthesize(context.Background(), tts.Request{Text: "It jumps!", Speed: 1.1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(audio) != "fallback-audio" {
		t.Fatalf("audio = %q, want fallback-audio", string(audio))
	}
	if gotBody.Voice != defaultVoice {
		t.Fatalf("voice = %q, want %q", gotBody.Voice, defaultVoice)
	}
	if gotBody.Model != defaultModel {
		t.Fatalf("model = %q, want %q", gotBody.Model, defaultModel)
	}
	if gotBody.Speed == nil || *gotBody.Speed != 1.1 {
		t.Fatalf("speed = %v, want 1.1", gotBody.Speed)
	}
}

func TestSynthesize_NoSpeedOmitsField(t *testing.T) {
	var raw map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte("audio"))
	}))
	defer srv.Close()

	p, _ := New("sk-test", WithBaseURL(srv.URL))
	if _, err := p.Synthesize(context.Background(), tts.Request{Text: "Hi."}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := raw["speed"]; ok {
		t.Fatal("speed field present, want omitted")
	}
}

func TestSynthesize_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, tts.ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, tts.ErrRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p, _ := New("k", WithBaseURL(srv.URL))
			_, err := p.Synthesize(context.Background(), tts.Request{Text: "Hi."})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSynthesize_EmptyPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL))
	_, err := p.Synthesize(context.Background(), tts.Request{Text: "Hi."})
	if !errors.Is(err, tts.ErrEmptyResponse) {
		t.Fatalf("err = %v, want ErrEmptyResponse", err)
	}
}
