package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/krishi/internal/observe"
	"github.com/MrWong99/krishi/pkg/audio"
	"github.com/MrWong99/krishi/pkg/provider/tts"
)

// DefaultTTSLanguage is the synthesis language. English gives the most
// natural reading of Hinglish text.
const DefaultTTSLanguage = "en"

// PlaybackState reports whether any answer is currently being played.
type PlaybackState int32

const (
	PlaybackIdle PlaybackState = iota
	PlaybackPlaying
)

func (s PlaybackState) String() string {
	if s == PlaybackPlaying {
		return "playing"
	}
	return "idle"
}

// PlaybackPolicy decides what happens when an answer arrives while another
// one is still playing.
type PlaybackPolicy string

const (
	// PolicySerialize plays one clip at a time. At most one further text
	// waits; a newer text replaces an older waiting one.
	PolicySerialize PlaybackPolicy = "serialize"

	// PolicyOverlap starts every render immediately, so answers may play
	// over each other.
	PolicyOverlap PlaybackPolicy = "overlap"
)

// ParsePlaybackPolicy accepts "serialize", "overlap" or "" (serialize).
func ParsePlaybackPolicy(s string) (PlaybackPolicy, error) {
	switch p := PlaybackPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicySerialize, nil
	case PolicySerialize, PolicyOverlap:
		return p, nil
	}
	return "", fmt.Errorf("advisor: unknown playback policy %q", s)
}

// RenderResult describes the end of one render. Err is nil on success and
// an *Error of kind [KindSynthesisFailed] or [KindPlaybackFailed] otherwise.
// Dropped is set when a pending text was replaced before it started.
type RenderResult struct {
	Text    string
	Err     error
	Dropped bool
}

// Renderer turns answers into speech in the background.
type Renderer struct {
	tts          tts.Provider
	player       audio.Player
	voice        tts.Voice
	policy       PlaybackPolicy
	provider     string
	synthTimeout time.Duration
	onDone       func(RenderResult)
	metrics      *observe.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	playing atomic.Int32

	mu      sync.Mutex
	closed  bool
	running bool
	pending *string
	wg      sync.WaitGroup
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithVoice sets the synthesis voice. The default speaks [DefaultTTSLanguage].
func WithVoice(v tts.Voice) RendererOption {
	return func(r *Renderer) { r.voice = v }
}

// WithPlaybackPolicy selects serialize (default) or overlap.
func WithPlaybackPolicy(p PlaybackPolicy) RendererOption {
	return func(r *Renderer) { r.policy = p }
}

// WithTTSProviderName labels metrics and logs. Default "tts".
func WithTTSProviderName(name string) RendererOption {
	return func(r *Renderer) { r.provider = name }
}

// WithSynthesisTimeout bounds each synthesis call. Zero means no bound.
func WithSynthesisTimeout(d time.Duration) RendererOption {
	return func(r *Renderer) { r.synthTimeout = d }
}

// WithRenderHook registers fn to be called after each render finishes or
// is dropped. It runs on the render goroutine, or on the caller's goroutine
// for a dropped text.
func WithRenderHook(fn func(RenderResult)) RendererOption {
	return func(r *Renderer) { r.onDone = fn }
}

// WithRendererMetrics sets the metrics sink.
func WithRendererMetrics(m *observe.Metrics) RendererOption {
	return func(r *Renderer) { r.metrics = m }
}

// NewRenderer returns a Renderer that synthesizes with p and plays with
// player.
func NewRenderer(p tts.Provider, player audio.Player, opts ...RendererOption) *Renderer {
	r := &Renderer{
		tts:      p,
		player:   player,
		voice:    tts.Voice{Language: DefaultTTSLanguage},
		policy:   PolicySerialize,
		provider: "tts",
	}
	for _, o := range opts {
		o(r)
	}
	if r.policy == "" {
		r.policy = PolicySerialize
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	return r
}

// Policy returns the active playback policy.
func (r *Renderer) Policy() PlaybackPolicy { return r.policy }

// State returns [PlaybackPlaying] while any clip is being played.
func (r *Renderer) State() PlaybackState {
	if r.playing.Load() > 0 {
		return PlaybackPlaying
	}
	return PlaybackIdle
}

// RenderAsync schedules text for synthesis and playback and returns
// immediately. Blank text and calls after Close are ignored.
func (r *Renderer) RenderAsync(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		slog.Debug("renderer closed, dropping text", "chars", len(text))
		return
	}

	if r.policy == PolicyOverlap {
		r.wg.Add(1)
		r.mu.Unlock()
		go func() {
			defer r.wg.Done()
			r.render(text)
		}()
		return
	}

	if !r.running {
		r.running = true
		r.wg.Add(1)
		r.mu.Unlock()
		go r.worker(text)
		return
	}
	dropped := r.pending
	r.pending = &text
	r.mu.Unlock()

	if dropped != nil {
		slog.Info("newer answer replaces pending playback", "dropped_chars", len(*dropped))
		r.drop(*dropped)
	}
}

func (r *Renderer) drop(text string) {
	if r.onDone != nil {
		r.onDone(RenderResult{Text: text, Dropped: true})
	}
}

// worker drains the single pending slot until it is empty.
func (r *Renderer) worker(text string) {
	defer r.wg.Done()
	for {
		r.render(text)

		r.mu.Lock()
		if r.pending == nil {
			r.running = false
			r.mu.Unlock()
			return
		}
		text = *r.pending
		r.pending = nil
		r.mu.Unlock()
	}
}

// render synthesizes and plays one text. The clip is released on every
// path, including a failed synthesis that still produced partial audio.
func (r *Renderer) render(text string) {
	res := RenderResult{Text: text}
	defer func() {
		if r.onDone != nil {
			r.onDone(res)
		}
	}()

	sctx := r.ctx
	if r.synthTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(r.ctx, r.synthTimeout)
		defer cancel()
	}

	start := time.Now()
	clip, err := r.tts.Synthesize(sctx, text, r.voice)
	r.metrics.RecordProviderCall(r.ctx, r.metrics.TTSDuration, r.provider, "tts", time.Since(start), err)
	if err == nil && (clip == nil || len(clip.Data) == 0) {
		err = fmt.Errorf("%s returned no audio", r.provider)
	}
	if err != nil {
		clip.Release()
		res.Err = newError(KindSynthesisFailed, err)
		slog.Warn("speech synthesis failed", "provider", r.provider, "kind", KindSynthesisFailed, "err", err)
		return
	}
	defer clip.Release()

	r.playing.Add(1)
	r.metrics.PlaybackActive.Add(r.ctx, 1)
	start = time.Now()
	err = r.player.Play(r.ctx, clip)
	r.metrics.PlaybackDuration.Record(r.ctx, time.Since(start).Seconds())
	r.metrics.PlaybackActive.Add(r.ctx, -1)
	r.playing.Add(-1)

	if err != nil {
		res.Err = newError(KindPlaybackFailed, err)
		slog.Warn("playback failed", "kind", KindPlaybackFailed, "err", err)
	}
}

// Wait blocks until every scheduled render, including a pending one, has
// finished.
func (r *Renderer) Wait() {
	r.wg.Wait()
}

// Close stops accepting renders, discards a pending text and waits for the
// clip in progress to finish playing.
func (r *Renderer) Close() {
	r.mu.Lock()
	r.closed = true
	dropped := r.pending
	r.pending = nil
	r.mu.Unlock()
	if dropped != nil {
		r.drop(*dropped)
	}
	r.wg.Wait()
	r.cancel()
}

// Shutdown is Close bounded by ctx. When ctx ends first, playback in
// progress is interrupted and Shutdown returns ctx.Err() once the render
// goroutines have exited.
func (r *Renderer) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.Close()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}
