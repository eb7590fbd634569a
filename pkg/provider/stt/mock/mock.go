// Package mock provides a test double for the stt.Recorder interface.
package mock

import (
	"context"
	"errors"
	"sync"

	"github.com/tadams048/socra/pkg/provider/stt"
)

// Recorder is a mock implementation of stt.Recorder. It enforces the
// start/stop pairing so tests catch double-start and stop-without-start bugs.
type Recorder struct {
	mu        sync.Mutex
	recording bool

	// Transcript is returned by StopRecording on success.
	Transcript string

	// StartErr, if non-nil, is returned by StartRecording.
	StartErr error

	// StopErr, if non-nil, is returned by StopRecording.
	StopErr error

	// StartCalls counts calls to StartRecording.
	StartCalls int

	// StopCalls counts calls to StopRecording.
	StopCalls int
}

// StartRecording records the call and flips the recording state.
func (r *Recorder) StartRecording(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StartCalls++
	if r.StartErr != nil {
		return r.StartErr
	}
	if r.recording {
		return errors.New("mock: recording already in progress")
	}
	r.recording = true
	return nil
}

// StopRecording records the call and returns the configured transcript.
func (r *Recorder) StopRecording(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.StopCalls++
	if r.StopErr != nil {
		return "", r.StopErr
	}
	if !r.recording {
		return "", errors.New("mock: no recording in progress")
	}
	r.recording = false
	return r.Transcript, nil
}

// Recording reports whether a recording is currently in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

var _ stt.Recorder = (*Recorder)(nil)
