// Package tts defines the Provider interface for text-to-speech backends.
//
// A provider turns one complete response text into one [audio.Clip]. The
// caller owns the returned clip and must release it. When Synthesize fails
// after part of the audio was produced it may return the partial clip
// together with the error; callers release it on that path too.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/MrWong99/krishi/pkg/audio"
)

// Voice selects how the text is spoken.
type Voice struct {
	// ID is a provider-specific voice or speaker identifier. Providers that
	// have a single voice per language ignore it.
	ID string

	// Language is a language code such as "en" or "hi".
	Language string

	// Speed multiplies the natural speaking rate. Zero or 1 means normal.
	Speed float64
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text as speech.
	Synthesize(ctx context.Context, text string, voice Voice) (*audio.Clip, error)
}
