// Package stt defines the Provider interface for speech-to-text backends.
//
// A provider turns one bounded buffer of 16-bit PCM audio into text. There
// is no streaming or partial-result surface: the caller captures a fixed
// window and asks for a single transcript.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrNoSpeech is returned (possibly wrapped) when the backend processed the
// audio successfully but recognised no words.
var ErrNoSpeech = errors.New("stt: no speech detected")

// Audio is the input to [Provider.Transcribe].
type Audio struct {
	// PCM is signed 16-bit little-endian audio.
	PCM []byte

	// SampleRate in Hz, e.g. 16000.
	SampleRate int

	// Channels is normally 1.
	Channels int

	// Language is a BCP-47 tag such as "en-IN". Empty lets the backend
	// detect the language if it can.
	Language string
}

// Transcript is the result of [Provider.Transcribe].
type Transcript struct {
	// Text is the recognised utterance.
	Text string

	// Confidence in [0, 1], or 0 when the backend does not report one.
	Confidence float64

	// Language is the language the backend used or detected.
	Language string
}

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe recognises the speech in a. It returns ErrNoSpeech when the
	// audio contains no recognisable words; any other error means the
	// backend could not be reached or rejected the request.
	Transcribe(ctx context.Context, a Audio) (Transcript, error)
}
