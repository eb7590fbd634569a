// Package mock provides a test double for the audio.Session interface.
package mock

import (
	"context"
	"sync"

	"github.com/tadams048/socra/pkg/audio"
)

// Session is a mock implementation of audio.Session that records activation
// ordering.
type Session struct {
	mu sync.Mutex

	// ActivateErr, if non-nil, is returned by Activate.
	ActivateErr error

	// DeactivateErr, if non-nil, is returned by Deactivate.
	DeactivateErr error

	// Events records "activate" and "deactivate" in call order.
	Events []string
}

// Activate implements audio.Session.
func (s *Session) Activate(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, "activate")
	return s.ActivateErr
}

// Deactivate implements audio.Session.
func (s *Session) Deactivate(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, "deactivate")
	return s.DeactivateErr
}

// EventLog returns a copy of the recorded events. Thread-safe.
func (s *Session) EventLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Events))
	copy(out, s.Events)
	return out
}

var _ audio.Session = (*Session)(nil)
