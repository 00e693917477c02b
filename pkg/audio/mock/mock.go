// Package mock provides in-memory implementations of [audio.Recorder] and
// [audio.Player] for unit tests.
//
// Both mocks are safe for concurrent use and record every call so tests can
// assert on counts and arguments.
//
//	rec := &mock.Recorder{Clip: audio.NewClip(audio.EncodingPCM, pcm, 16000, 1)}
//	player := &mock.Player{}
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/krishi/pkg/audio"
)

// ─── Recorder ─────────────────────────────────────────────────────────────────

// RecordCall records a single invocation of [Recorder.Record].
type RecordCall struct {
	Duration   time.Duration
	SampleRate int
}

// Recorder is a mock implementation of [audio.Recorder].
type Recorder struct {
	mu sync.Mutex

	// Clip is returned by Record. When nil a silent clip of the requested
	// length is synthesised.
	Clip *audio.Clip

	// Err, if non-nil, is returned by Record instead of a clip.
	Err error

	// Block, if non-nil, makes Record wait until it is closed or ctx ends.
	Block chan struct{}

	// Calls records every invocation in order.
	Calls []RecordCall
}

var _ audio.Recorder = (*Recorder)(nil)

// Record implements [audio.Recorder].
func (r *Recorder) Record(ctx context.Context, d time.Duration, sampleRate int) (*audio.Clip, error) {
	r.mu.Lock()
	r.Calls = append(r.Calls, RecordCall{Duration: d, SampleRate: sampleRate})
	block, clip, err := r.Block, r.Clip, r.Err
	r.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if clip != nil {
		return clip, nil
	}
	n := int(d.Seconds() * float64(sampleRate))
	return audio.NewClip(audio.EncodingPCM, make([]byte, n*2), sampleRate, 1), nil
}

// CallCount returns the number of Record calls.
func (r *Recorder) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}

// ─── Player ───────────────────────────────────────────────────────────────────

// Player is a mock implementation of [audio.Player].
type Player struct {
	mu sync.Mutex

	// Err, if non-nil, is returned by Play.
	Err error

	// Delay is slept (respecting ctx) before Play returns.
	Delay time.Duration

	// Block, if non-nil, makes Play wait until it is closed or ctx ends.
	Block chan struct{}

	// Started, if non-nil, receives one value each time Play begins.
	Started chan struct{}

	// Played records every clip passed to Play, in order.
	Played []*audio.Clip

	active    int
	maxActive int
}

var _ audio.Player = (*Player)(nil)

// Play implements [audio.Player].
func (p *Player) Play(ctx context.Context, c *audio.Clip) error {
	p.mu.Lock()
	p.Played = append(p.Played, c)
	p.active++
	if p.active > p.maxActive {
		p.maxActive = p.active
	}
	block, delay, err, started := p.Block, p.Delay, p.Err, p.Started
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.active--
		p.mu.Unlock()
	}()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// PlayCount returns the number of Play calls.
func (p *Player) PlayCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Played)
}

// MaxConcurrent returns the highest number of overlapping Play calls seen.
func (p *Player) MaxConcurrent() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxActive
}
