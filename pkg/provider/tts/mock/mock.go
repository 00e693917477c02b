// Package mock provides a test double for the tts.Provider interface.
//
// Every clip the mock hands out is tracked so tests can check that the
// caller released it:
//
//	p := &mock.Provider{}
//	clip, _ := p.Synthesize(ctx, "namaste", tts.Voice{})
//	clip.Release()
//	p.Outstanding() // 0
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/krishi/pkg/audio"
	"github.com/MrWong99/krishi/pkg/provider/tts"
)

// SynthesizeCall records a single invocation of Provider.Synthesize.
type SynthesizeCall struct {
	Ctx   context.Context
	Text  string
	Voice tts.Voice
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// Err, if non-nil, is returned by Synthesize.
	Err error

	// PartialOnError makes Synthesize return a clip alongside Err, the way
	// a streaming backend does when the connection drops mid-utterance.
	PartialOnError bool

	// Calls records every invocation in order.
	Calls []SynthesizeCall

	issued   int
	released int
}

var _ tts.Provider = (*Provider)(nil)

// Synthesize implements tts.Provider. The returned clip holds the text as
// its payload so tests can identify which response it belongs to.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) (*audio.Clip, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, SynthesizeCall{Ctx: ctx, Text: text, Voice: voice})

	if p.Err != nil && !p.PartialOnError {
		return nil, p.Err
	}
	clip := audio.NewClip(audio.EncodingPCM, []byte(text), 16000, 1)
	p.issued++
	clip.OnRelease(func() {
		p.mu.Lock()
		p.released++
		p.mu.Unlock()
	})
	return clip, p.Err
}

// CallCount returns the number of Synthesize calls.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Calls)
}

// Issued returns how many clips Synthesize has returned.
func (p *Provider) Issued() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.issued
}

// Outstanding returns how many issued clips have not been released yet.
func (p *Provider) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.issued - p.released
}
