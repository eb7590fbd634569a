package runware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenerate_Success(t *testing.T) {
	var gotTasks []inferenceTask
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer rw-key" {
			t.Errorf("Authorization = %q, want Bearer rw-key", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotTasks); err != nil {
			t.Errorf("decode tasks: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"imageURL": "https://cdn.example.com/img.png"}},
		})
	}))
	defer srv.Close()

	p, err := New("rw-key", WithBaseURL(srv.URL), WithStylePrefix("KID FRIENDLY."))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	url, err := p.Generate(context.Background(), "a fox jumping over a log")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if url != "https://cdn.example.com/img.png" {
		t.Fatalf("url = %q, want https://cdn.example.com/img.png", url)
	}

	if len(gotTasks) != 1 {
		t.Fatalf("got %d tasks, want 1", len(gotTasks))
	}
	task := gotTasks[0]
	if task.TaskType != "imageInference" {
		t.Fatalf("taskType = %q, want imageInference", task.TaskType)
	}
	if !strings.HasPrefix(task.PositivePrompt, "KID FRIENDLY. ") {
		t.Fatalf("prompt %q missing style prefix", task.PositivePrompt)
	}
	if task.OutputFormat != "PNG" || task.NumberResults != 1 {
		t.Fatalf("task = %+v, want PNG output with one result", task)
	}
	if task.TaskUUID == "" || task.TaskUUID != strings.ToLower(task.TaskUUID) {
		t.Fatalf("taskUUID = %q, want non-empty lowercase", task.TaskUUID)
	}
}

func TestGenerate_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"errors":[{"message":"invalid model"}]}`))
	}))
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL))
	_, err := p.Generate(context.Background(), "anything")
	if err == nil || !strings.Contains(err.Error(), "invalid model") {
		t.Fatalf("err = %v, want message from error envelope", err)
	}
}

func TestGenerate_MalformedEnvelopeFallsBackToStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL))
	_, err := p.Generate(context.Background(), "anything")
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("err = %v, want status fallback", err)
	}
}

func TestGenerate_MissingImageURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	p, _ := New("k", WithBaseURL(srv.URL))
	if _, err := p.Generate(context.Background(), "anything"); err == nil {
		t.Fatal("expected error for empty data array")
	}
}

func TestNew_EmptyKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty api key")
	}
}
