package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/MrWong99/krishi/internal/observe"
	"github.com/MrWong99/krishi/internal/resilience"
	"github.com/MrWong99/krishi/pkg/audio"
	"github.com/MrWong99/krishi/pkg/provider/stt"
)

// Capture defaults.
const (
	DefaultCaptureDuration = 5 * time.Second
	DefaultSampleRate      = 16000
	DefaultSTTLanguage     = "en-IN"
)

// Transcriber records one bounded window of microphone audio and turns it
// into text.
type Transcriber struct {
	rec      audio.Recorder
	stt      stt.Provider
	provider string
	language string
	timeout  time.Duration
	breaker  *resilience.Breaker
	metrics  *observe.Metrics
}

// TranscriberOption configures a Transcriber.
type TranscriberOption func(*Transcriber)

// WithSTTLanguage sets the recognition locale. Default "en-IN".
func WithSTTLanguage(lang string) TranscriberOption {
	return func(t *Transcriber) { t.language = lang }
}

// WithSTTProviderName labels metrics and logs. Default "stt".
func WithSTTProviderName(name string) TranscriberOption {
	return func(t *Transcriber) { t.provider = name }
}

// WithSTTTimeout bounds the recognition call. Zero means no bound.
func WithSTTTimeout(d time.Duration) TranscriberOption {
	return func(t *Transcriber) { t.timeout = d }
}

// WithSTTBreaker guards the recognition call with b.
func WithSTTBreaker(b *resilience.Breaker) TranscriberOption {
	return func(t *Transcriber) { t.breaker = b }
}

// WithTranscriberMetrics sets the metrics sink.
func WithTranscriberMetrics(m *observe.Metrics) TranscriberOption {
	return func(t *Transcriber) { t.metrics = m }
}

// NewTranscriber returns a Transcriber that captures with rec and
// recognises with p.
func NewTranscriber(rec audio.Recorder, p stt.Provider, opts ...TranscriberOption) *Transcriber {
	t := &Transcriber{
		rec:      rec,
		stt:      p,
		provider: "stt",
		language: DefaultSTTLanguage,
	}
	for _, o := range opts {
		o(t)
	}
	if t.metrics == nil {
		t.metrics = observe.DefaultMetrics()
	}
	return t
}

// CaptureAndTranscribe records d of audio at sampleRate and returns the
// recognised text. Every failure is an *Error of kind
// [KindCaptureFailed], [KindNoSpeechDetected] or [KindServiceUnavailable].
// The captured clip is released before returning.
func (t *Transcriber) CaptureAndTranscribe(ctx context.Context, d time.Duration, sampleRate int) (string, error) {
	if d <= 0 {
		d = DefaultCaptureDuration
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}

	start := time.Now()
	clip, err := t.rec.Record(ctx, d, sampleRate)
	t.metrics.CaptureDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		clip.Release()
		return "", newError(KindCaptureFailed, err)
	}
	defer clip.Release()

	pcm, f, err := audio.ToPCM(clip)
	if err != nil {
		return "", newError(KindCaptureFailed, err)
	}
	if len(pcm) == 0 {
		return "", newError(KindCaptureFailed, errors.New("recorder returned no audio"))
	}
	in := stt.Audio{PCM: pcm, SampleRate: f.SampleRate, Channels: f.Channels, Language: t.language}

	var (
		tr       stt.Transcript
		noSpeech bool
	)
	call := func(ctx context.Context) error {
		if t.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, t.timeout)
			defer cancel()
		}
		start := time.Now()
		var err error
		tr, err = t.stt.Transcribe(ctx, in)
		if errors.Is(err, stt.ErrNoSpeech) {
			// Silence is an answer, not a backend fault.
			noSpeech, err = true, nil
		}
		t.metrics.RecordProviderCall(ctx, t.metrics.STTDuration, t.provider, "stt", time.Since(start), err)
		return err
	}
	if t.breaker != nil {
		err = t.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}

	switch {
	case err != nil:
		slog.Warn("speech recognition failed", "provider", t.provider, "err", err)
		return "", newError(KindServiceUnavailable, fmt.Errorf("%s: %w", t.provider, err))
	case noSpeech:
		return "", newError(KindNoSpeechDetected, stt.ErrNoSpeech)
	}

	text := strings.TrimSpace(tr.Text)
	if text == "" {
		return "", newError(KindNoSpeechDetected, nil)
	}
	slog.Debug("transcribed utterance", "provider", t.provider, "chars", len(text), "confidence", tr.Confidence)
	return text, nil
}
