// Package stt defines the Recorder interface for speech capture backends.
//
// A recorder owns the microphone for the duration of one utterance: callers
// start a recording, let the user speak, then stop it and receive the
// transcribed text. Implementations coordinate with the platform audio
// session themselves where the OS requires it.
package stt

import "context"

// Recorder captures one spoken utterance at a time and transcribes it.
type Recorder interface {
	// StartRecording begins capturing audio. It returns an error if a
	// recording is already in progress or the microphone is unavailable.
	StartRecording(ctx context.Context) error

	// StopRecording ends the capture started by StartRecording and returns
	// the transcribed text. Transcription may block while a backend
	// processes the audio, so the context deadline applies.
	StopRecording(ctx context.Context) (string, error)
}
