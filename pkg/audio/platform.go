// Package audio defines the platform audio session abstraction.
//
// Some platforms require explicit session configuration before the
// microphone or speaker can be used, and release afterwards. The Session
// interface lets the conversation layer bracket recording with those calls
// without knowing which platform it runs on.
package audio

import "context"

// Session is the platform audio session collaborator. Activate is called
// before recording starts and Deactivate after it stops.
type Session interface {
	// Activate configures the platform audio session for capture and
	// playback.
	Activate(ctx context.Context) error

	// Deactivate releases the platform audio session.
	Deactivate(ctx context.Context) error
}

// NopSession is a Session that does nothing. It serves platforms that need
// no explicit session management.
type NopSession struct{}

// Activate implements Session.
func (NopSession) Activate(context.Context) error { return nil }

// Deactivate implements Session.
func (NopSession) Deactivate(context.Context) error { return nil }

var _ Session = NopSession{}
