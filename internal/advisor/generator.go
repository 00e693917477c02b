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
	"github.com/MrWong99/krishi/pkg/provider/llm"
)

// DefaultRequestTimeout bounds one language model call.
const DefaultRequestTimeout = 60 * time.Second

var errEmptyResponse = errors.New("empty response from language model")

// Generator answers one question with a single language model call.
type Generator struct {
	llm         llm.Provider
	composer    *Composer
	provider    string
	timeout     time.Duration
	temperature float64
	maxTokens   int
	breaker     *resilience.Breaker
	metrics     *observe.Metrics
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithComposer replaces the default-persona Composer.
func WithComposer(c *Composer) GeneratorOption {
	return func(g *Generator) { g.composer = c }
}

// WithLLMProviderName labels metrics and logs. Default "llm".
func WithLLMProviderName(name string) GeneratorOption {
	return func(g *Generator) { g.provider = name }
}

// WithRequestTimeout bounds each backend call. Zero disables the bound.
func WithRequestTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) { g.timeout = d }
}

// WithSampling sets temperature and the output token cap. Zero values
// leave the backend defaults in place.
func WithSampling(temperature float64, maxTokens int) GeneratorOption {
	return func(g *Generator) {
		g.temperature = temperature
		g.maxTokens = maxTokens
	}
}

// WithLLMBreaker guards backend calls with b. An open breaker fails the
// turn immediately with [KindBackendUnavailable].
func WithLLMBreaker(b *resilience.Breaker) GeneratorOption {
	return func(g *Generator) { g.breaker = b }
}

// WithGeneratorMetrics sets the metrics sink.
func WithGeneratorMetrics(m *observe.Metrics) GeneratorOption {
	return func(g *Generator) { g.metrics = m }
}

// NewGenerator returns a Generator backed by p.
func NewGenerator(p llm.Provider, opts ...GeneratorOption) *Generator {
	g := &Generator{
		llm:      p,
		provider: "llm",
		timeout:  DefaultRequestTimeout,
	}
	for _, o := range opts {
		o(g)
	}
	if g.composer == nil {
		g.composer = NewComposer("")
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	return g
}

// Generate returns the answer to utterance.
//
// A blank utterance yields [MsgNotHeard] without calling the backend. Any
// backend failure yields [MsgBackendUnavailable] together with an *Error
// of kind [KindBackendUnavailable]; the returned text is never empty.
// There is exactly one backend attempt per call.
func (g *Generator) Generate(ctx context.Context, utterance string) (string, error) {
	if strings.TrimSpace(utterance) == "" {
		return MsgNotHeard, nil
	}

	req := llm.CompletionRequest{
		Prompt:      g.composer.Compose(utterance),
		Temperature: g.temperature,
		MaxTokens:   g.maxTokens,
	}

	var answer string
	call := func(ctx context.Context) error {
		if g.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		start := time.Now()
		resp, err := g.llm.Complete(ctx, req)
		if err == nil && (resp == nil || strings.TrimSpace(resp.Content) == "") {
			err = errEmptyResponse
		}
		g.metrics.RecordProviderCall(ctx, g.metrics.LLMDuration, g.provider, "llm", time.Since(start), err)
		if err != nil {
			return err
		}
		answer = strings.TrimSpace(resp.Content)
		slog.Debug("llm answered", "provider", g.provider,
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens,
			"elapsed", time.Since(start))
		return nil
	}

	var err error
	if g.breaker != nil {
		err = g.breaker.Execute(ctx, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		slog.Warn("response generation failed", "provider", g.provider, "kind", KindBackendUnavailable, "err", err)
		return MsgBackendUnavailable, newError(KindBackendUnavailable, fmt.Errorf("%s: %w", g.provider, err))
	}
	return answer, nil
}
