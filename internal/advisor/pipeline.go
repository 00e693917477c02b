// Package advisor is the turn-taking core of Krishi Sahayak.
//
// A [Pipeline] admits one question at a time, typed or spoken. Spoken
// questions go through a [Transcriber]. The question is answered by a
// [Generator], committed to the [History] as a [Turn], and handed to a
// [Renderer] that speaks it in the background. Collaborator failures never
// abort a turn: they become fixed farmer-readable messages recorded in the
// turn, or log lines for audio failures.
package advisor

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/krishi/internal/observe"
)

// ErrBusy is returned when a submission arrives while another turn is in
// progress. Nothing is recorded for the rejected submission.
var ErrBusy = errors.New("advisor: a question is already being handled")

// ErrEmptyInput is returned by [Pipeline.SubmitText] for blank text.
var ErrEmptyInput = errors.New("advisor: question is empty")

// State is the conversation state. Rendering runs detached and is reported
// separately by [Pipeline.PlaybackState].
type State int32

const (
	StateIdle State = iota
	StateAwaitingInput
	StateProcessing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingInput:
		return "awaiting_input"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}

// Source says how a question entered the pipeline.
type Source string

const (
	SourceVoice  Source = "voice"
	SourceText   Source = "text"
	SourcePreset Source = "preset"
)

// Turn is one committed question and answer. Failure is empty on success.
// A failed transcription leaves Utterance empty and carries the fallback
// message as Response.
type Turn struct {
	ID        uuid.UUID `json:"id"`
	Utterance string    `json:"utterance"`
	Response  string    `json:"response"`
	Source    Source    `json:"source"`
	Failure   Kind      `json:"failure,omitempty"`
	At        time.Time `json:"at"`
}

// Listener captures and transcribes one spoken question.
type Listener interface {
	CaptureAndTranscribe(ctx context.Context, d time.Duration, sampleRate int) (string, error)
}

// Responder answers one question. It must always return usable text, even
// together with an error.
type Responder interface {
	Generate(ctx context.Context, utterance string) (string, error)
}

// Speaker renders answers in the background.
type Speaker interface {
	RenderAsync(text string)
	State() PlaybackState
}

var (
	_ Listener  = (*Transcriber)(nil)
	_ Responder = (*Generator)(nil)
	_ Speaker   = (*Renderer)(nil)
)

// Pipeline runs conversation turns. It is safe for concurrent use; at most
// one turn runs at a time.
type Pipeline struct {
	listener   Listener
	responder  Responder
	speaker    Speaker
	history    *History
	capture    time.Duration
	sampleRate int
	metrics    *observe.Metrics
	now        func() time.Time

	state atomic.Int32
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithCapture sets the voice capture window and sample rate. Defaults to
// 5 s at 16 kHz.
func WithCapture(d time.Duration, sampleRate int) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.capture = d
		}
		if sampleRate > 0 {
			p.sampleRate = sampleRate
		}
	}
}

// WithPipelineMetrics sets the metrics sink.
func WithPipelineMetrics(m *observe.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// NewPipeline wires the collaborators. listener may be nil for a text-only
// setup, in which case SubmitVoice fails every turn with
// [KindCaptureFailed].
func NewPipeline(listener Listener, responder Responder, speaker Speaker, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		listener:   listener,
		responder:  responder,
		speaker:    speaker,
		history:    &History{},
		capture:    DefaultCaptureDuration,
		sampleRate: DefaultSampleRate,
		now:        time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = observe.DefaultMetrics()
	}
	return p
}

// State returns the current conversation state.
func (p *Pipeline) State() State { return State(p.state.Load()) }

// PlaybackState reports whether an answer is currently being played.
func (p *Pipeline) PlaybackState() PlaybackState {
	if p.speaker == nil {
		return PlaybackIdle
	}
	return p.speaker.State()
}

// History returns a copy of the committed turns in order.
func (p *Pipeline) History() []Turn { return p.history.Snapshot() }

// Clear empties the history. It is safe to call at any time and repeatedly.
func (p *Pipeline) Clear() {
	p.history.Clear()
	slog.Info("conversation history cleared")
}

// admit moves Idle to AwaitingInput or reports ErrBusy.
func (p *Pipeline) admit(ctx context.Context, source Source) error {
	if !p.state.CompareAndSwap(int32(StateIdle), int32(StateAwaitingInput)) {
		p.metrics.RejectedRequests.Add(ctx, 1)
		slog.Info("submission rejected, turn in progress", "source", source, "state", p.State())
		return ErrBusy
	}
	return nil
}

func (p *Pipeline) release() { p.state.Store(int32(StateIdle)) }

// SubmitText answers a typed or preset question. source defaults to
// [SourceText]. Generator failures are recorded in the returned Turn, not
// returned as errors; the only errors are [ErrEmptyInput] and [ErrBusy].
func (p *Pipeline) SubmitText(ctx context.Context, text string, source Source) (Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Turn{}, ErrEmptyInput
	}
	if source == "" {
		source = SourceText
	}
	if err := p.admit(ctx, source); err != nil {
		return Turn{}, err
	}
	defer p.release()

	ctx, span := observe.StartSpan(ctx, "advisor.turn", trace.WithAttributes(attribute.String("source", string(source))))
	defer span.End()

	return p.answer(ctx, span, text, source), nil
}

// SubmitVoice captures a spoken question and answers it. A capture or
// recognition failure commits a Turn with an empty utterance and the
// matching fallback message without calling the Generator or the
// Renderer. The only error is [ErrBusy].
func (p *Pipeline) SubmitVoice(ctx context.Context) (Turn, error) {
	if err := p.admit(ctx, SourceVoice); err != nil {
		return Turn{}, err
	}
	defer p.release()

	ctx, span := observe.StartSpan(ctx, "advisor.turn", trace.WithAttributes(attribute.String("source", string(SourceVoice))))
	defer span.End()

	var (
		utterance string
		err       error
	)
	if p.listener == nil {
		err = newError(KindCaptureFailed, errors.New("no recorder configured"))
	} else {
		utterance, err = p.listener.CaptureAndTranscribe(ctx, p.capture, p.sampleRate)
	}
	if err != nil {
		kind := KindOf(err)
		if kind == "" {
			kind = KindServiceUnavailable
		}
		span.RecordError(err)
		t := p.commit(ctx, span, Turn{Response: kind.Message(), Source: SourceVoice, Failure: kind})
		slog.Info("voice turn ended without a question", "turn_id", t.ID, "kind", kind, "err", err)
		return t, nil
	}
	return p.answer(ctx, span, utterance, SourceVoice), nil
}

// answer runs the Processing stage for a known utterance.
func (p *Pipeline) answer(ctx context.Context, span trace.Span, utterance string, source Source) Turn {
	p.state.Store(int32(StateProcessing))

	response, err := p.responder.Generate(ctx, utterance)
	t := Turn{Utterance: utterance, Response: response, Source: source}
	if err != nil {
		t.Failure = KindOf(err)
		if t.Failure == "" {
			t.Failure = KindBackendUnavailable
		}
		if t.Response == "" {
			t.Response = MsgBackendUnavailable
		}
		span.RecordError(err)
	}
	t = p.commit(ctx, span, t)

	if p.speaker != nil {
		p.speaker.RenderAsync(t.Response)
	}
	return t
}

// commit stamps and appends t. It is the only writer of the history.
func (p *Pipeline) commit(ctx context.Context, span trace.Span, t Turn) Turn {
	t.ID = uuid.New()
	t.At = p.now()
	n := p.history.append(t)

	outcome := "ok"
	if t.Failure != "" {
		outcome = string(t.Failure)
	}
	p.metrics.RecordTurn(ctx, string(t.Source), outcome)
	span.SetAttributes(
		attribute.String("turn_id", t.ID.String()),
		attribute.String("outcome", outcome),
	)
	slog.Info("turn committed", "turn_id", t.ID, "source", t.Source, "outcome", outcome, "history_len", n)
	return t
}
