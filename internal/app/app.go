// Package app wires the Krishi Sahayak subsystems into a running application.
//
// The App struct owns the full lifecycle: New builds the advisor pipeline
// and its surfaces, Run serves the HTTP API, the console, and any extra
// services until the context ends, and Shutdown tears everything down in
// order.
//
// Providers are constructed by main.go through the config registry. Tests
// pass mocks in [Providers] and use the functional options below for the
// rest.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/krishi/internal/advisor"
	"github.com/MrWong99/krishi/internal/config"
	"github.com/MrWong99/krishi/internal/console"
	"github.com/MrWong99/krishi/internal/health"
	"github.com/MrWong99/krishi/internal/observe"
	"github.com/MrWong99/krishi/internal/resilience"
	"github.com/MrWong99/krishi/internal/web"
	"github.com/MrWong99/krishi/pkg/audio"
	"github.com/MrWong99/krishi/pkg/provider/llm"
	"github.com/MrWong99/krishi/pkg/provider/stt"
	"github.com/MrWong99/krishi/pkg/provider/tts"
)

// serverDrainTimeout bounds how long Run waits for in-flight HTTP requests
// after its context ends.
const serverDrainTimeout = 5 * time.Second

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	LLM      llm.Provider
	STT      stt.Provider
	TTS      tts.Provider
	Recorder audio.Recorder
	Player   audio.Player
}

// service is an extra long-running task started by Run.
type service struct {
	name string
	run  func(ctx context.Context) error
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers

	metrics        *observe.Metrics
	metricsHandler http.Handler
	level          *slog.LevelVar
	stdin          io.Reader
	stdout         io.Writer

	presets    *advisor.PresetStore
	llmBreaker *resilience.Breaker
	sttBreaker *resilience.Breaker
	renderer   *advisor.Renderer
	pipeline   *advisor.Pipeline

	handler  http.Handler
	listener net.Listener
	server   *http.Server
	console  *console.Console

	mu       sync.Mutex
	services []service

	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithMetrics sets the metric instruments. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithLogLevel lets config reloads change the level of the process logger.
func WithLogLevel(v *slog.LevelVar) Option {
	return func(a *App) { a.level = v }
}

// WithConsoleIO overrides stdin/stdout for the console.
func WithConsoleIO(in io.Reader, out io.Writer) Option {
	return func(a *App) { a.stdin, a.stdout = in, out }
}

// WithListener serves the HTTP API on ln instead of listening on
// cfg.Server.ListenAddr.
func WithListener(ln net.Listener) Option {
	return func(a *App) { a.listener = ln }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. An LLM provider is
// required. Without STT and a recorder voice questions fail with a capture
// error; without TTS and a player answers are not spoken.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.LLM == nil {
		return nil, errors.New("app: an LLM provider is required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	a.presets = advisor.NewPresetStore(cfg.Presets)

	// ── 1. Breakers ──────────────────────────────────────────────────────
	a.llmBreaker = a.newBreaker("llm")
	if providers.STT != nil {
		a.sttBreaker = a.newBreaker("stt")
	}

	// ── 2. Pipeline stages ──────────────────────────────────────────────
	listener, err := a.initListener()
	if err != nil {
		return nil, fmt.Errorf("app: init transcriber: %w", err)
	}
	responder := a.initGenerator()
	speaker, err := a.initRenderer()
	if err != nil {
		return nil, fmt.Errorf("app: init renderer: %w", err)
	}

	// ── 3. Pipeline ─────────────────────────────────────────────────────
	a.pipeline = advisor.NewPipeline(listener, responder, speaker,
		advisor.WithCapture(cfg.Advisor.CaptureDuration(), cfg.Advisor.SampleRate),
		advisor.WithPipelineMetrics(a.metrics),
	)

	// ── 4. Surfaces ─────────────────────────────────────────────────────
	a.handler = a.buildHandler()
	if cfg.Server.HTTPEnabled() {
		if err := a.initServer(ctx); err != nil {
			return nil, fmt.Errorf("app: init http: %w", err)
		}
	}
	if cfg.Server.Console {
		a.console = console.New(a.pipeline, a.presets, a.stdin, a.stdout)
	}

	slog.Info("advisor ready",
		"voice_input", listener != nil,
		"voice_output", speaker != nil,
		"http", a.server != nil,
		"console", a.console != nil,
	)
	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) newBreaker(name string) *resilience.Breaker {
	bc := a.cfg.Advisor.Breaker
	return resilience.New(resilience.Config{
		Name:         name,
		MaxFailures:  bc.MaxFailures,
		ResetTimeout: bc.ResetTimeout,
		OnStateChange: func(name string, from, to resilience.State) {
			a.metrics.RecordBreakerTransition(context.Background(), name, to.String())
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from, "to", to)
		},
	})
}

// initListener returns nil when voice input is not configured.
func (a *App) initListener() (advisor.Listener, error) {
	p := a.providers
	if p.STT == nil {
		return nil, nil
	}
	if p.Recorder == nil {
		return nil, errors.New("an STT provider is configured without a recorder")
	}
	return advisor.NewTranscriber(p.Recorder, p.STT,
		advisor.WithSTTLanguage(a.cfg.Advisor.STTLanguage),
		advisor.WithSTTProviderName(a.cfg.Providers.STT.Name),
		advisor.WithSTTTimeout(a.cfg.Advisor.STTTimeout),
		advisor.WithSTTBreaker(a.sttBreaker),
		advisor.WithTranscriberMetrics(a.metrics),
	), nil
}

func (a *App) initGenerator() advisor.Responder {
	ac := a.cfg.Advisor
	return advisor.NewGenerator(a.providers.LLM,
		advisor.WithComposer(advisor.NewComposer(ac.Persona)),
		advisor.WithLLMProviderName(a.cfg.Providers.LLM.Name),
		advisor.WithRequestTimeout(ac.RequestTimeout),
		advisor.WithSampling(ac.Temperature, ac.MaxTokens),
		advisor.WithLLMBreaker(a.llmBreaker),
		advisor.WithGeneratorMetrics(a.metrics),
	)
}

// initRenderer returns a nil Speaker when voice output is not configured.
func (a *App) initRenderer() (advisor.Speaker, error) {
	p := a.providers
	if p.TTS == nil || p.Player == nil {
		slog.Warn("voice output disabled", "tts", p.TTS != nil, "player", p.Player != nil)
		return nil, nil
	}
	ac := a.cfg.Advisor
	policy, err := advisor.ParsePlaybackPolicy(ac.PlaybackPolicy)
	if err != nil {
		return nil, err
	}
	a.renderer = advisor.NewRenderer(p.TTS, p.Player,
		advisor.WithVoice(tts.Voice{ID: ac.Voice.ID, Language: ac.TTSLanguage, Speed: ac.Voice.Speed}),
		advisor.WithPlaybackPolicy(policy),
		advisor.WithTTSProviderName(a.cfg.Providers.TTS.Name),
		advisor.WithSynthesisTimeout(ac.SynthesisTimeout),
		advisor.WithRendererMetrics(a.metrics),
	)
	return a.renderer, nil
}

func (a *App) buildHandler() http.Handler {
	checkers := []health.Checker{health.BreakerChecker(a.llmBreaker)}
	if a.sttBreaker != nil {
		checkers = append(checkers, health.BreakerChecker(a.sttBreaker))
	}

	mux := http.NewServeMux()
	web.New(a.pipeline, a.presets).Register(mux)
	health.New(checkers...).Register(mux)
	if a.metricsHandler != nil {
		mux.Handle("GET /metrics", a.metricsHandler)
	}
	return observe.Middleware(a.metrics)(mux)
}

func (a *App) initServer(ctx context.Context) error {
	if a.listener == nil {
		var lc net.ListenConfig
		ln, err := lc.Listen(ctx, "tcp", a.cfg.Server.ListenAddr)
		if err != nil {
			return err
		}
		a.listener = ln
	}
	a.server = &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Pipeline returns the advisor pipeline.
func (a *App) Pipeline() *advisor.Pipeline { return a.pipeline }

// Handler returns the full HTTP handler, including health and metrics.
func (a *App) Handler() http.Handler { return a.handler }

// Addr returns the HTTP listen address, or nil when HTTP is disabled.
func (a *App) Addr() net.Addr {
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Presets returns the live preset store.
func (a *App) Presets() *advisor.PresetStore { return a.presets }

// AddService registers fn to run alongside the HTTP server and console.
// It must be called before Run. fn should return nil when ctx ends.
func (a *App) AddService(name string, fn func(ctx context.Context) error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.services = append(a.services, service{name: name, run: fn})
}

// OnConfigChange applies the hot-reloadable part of a config change. Its
// signature matches the [config.NewWatcher] callback.
func (a *App) OnConfigChange(_, _ *config.Config, d config.ConfigDiff) {
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.Level())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.PresetsChanged {
		a.presets.Set(d.NewPresets)
		slog.Info("preset questions reloaded", "categories", len(a.presets.Get()))
	}
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves until ctx is done, the console user quits, or a service fails.
// It returns nil on a clean stop.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	// Keeps Run alive for a pipeline driven only through the accessors.
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if a.server != nil {
		g.Go(func() error {
			slog.Info("http api listening", "addr", a.listener.Addr().String())
			if err := a.server.Serve(a.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("app: http: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			drainCtx, drainCancel := context.WithTimeout(context.WithoutCancel(gctx), serverDrainTimeout)
			defer drainCancel()
			if err := a.server.Shutdown(drainCtx); err != nil {
				slog.Warn("http shutdown", "err", err)
			}
			return nil
		})
	}

	if a.console != nil {
		g.Go(func() error {
			defer cancel()
			return a.console.Run(gctx)
		})
	}

	a.mu.Lock()
	services := append([]service(nil), a.services...)
	a.mu.Unlock()
	for _, s := range services {
		g.Go(func() error {
			if err := s.run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("app: %s: %w", s.name, err)
			}
			return nil
		})
	}

	return g.Wait()
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the HTTP server and waits for in-flight playback. When ctx
// expires first, playback is interrupted and the context error is returned.
// Calls after the first are no-ops.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")

		if a.server != nil {
			if err := a.server.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("http: %w", err))
			}
		}
		// Serve closes the listener itself; this covers an App that never ran.
		if a.listener != nil {
			_ = a.listener.Close()
		}

		if a.renderer != nil {
			if err := a.renderer.Shutdown(ctx); err != nil {
				slog.Warn("playback interrupted by shutdown deadline")
				errs = append(errs, fmt.Errorf("renderer: %w", err))
			}
		}

		slog.Info("shutdown complete", "turns", len(a.pipeline.History()))
	})
	return errors.Join(errs...)
}
