package console_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/MrWong99/krishi/internal/advisor"
	"github.com/MrWong99/krishi/internal/console"
	audiomock "github.com/MrWong99/krishi/pkg/audio/mock"
	"github.com/MrWong99/krishi/pkg/provider/llm"
	llmmock "github.com/MrWong99/krishi/pkg/provider/llm/mock"
	"github.com/MrWong99/krishi/pkg/provider/stt"
	sttmock "github.com/MrWong99/krishi/pkg/provider/stt/mock"
)

type harness struct {
	lm       *llmmock.Provider
	sttp     *sttmock.Provider
	pipeline *advisor.Pipeline
	out      *bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		lm:   &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "Neem oil ka spray karo."}},
		sttp: &sttmock.Provider{Result: stt.Transcript{Text: "Mere tomato plants me problem hai"}},
		out:  &bytes.Buffer{},
	}
	h.pipeline = advisor.NewPipeline(
		advisor.NewTranscriber(&audiomock.Recorder{}, h.sttp),
		advisor.NewGenerator(h.lm),
		nil,
		advisor.WithCapture(100*time.Millisecond, 16000),
	)
	return h
}

func (h *harness) run(t *testing.T, input string) string {
	t.Helper()
	c := console.New(h.pipeline, nil, strings.NewReader(input), h.out)
	if err := c.Run(t.Context()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	return h.out.String()
}

func TestConsole_TextQuestion(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	out := h.run(t, "Monsoon me kya crop lagaun\n")

	if !strings.Contains(out, "🤖 Assistant: Neem oil ka spray karo.") {
		t.Errorf("answer missing from output:\n%s", out)
	}
	hist := h.pipeline.History()
	if len(hist) != 1 || hist[0].Utterance != "Monsoon me kya crop lagaun" || hist[0].Source != advisor.SourceText {
		t.Errorf("history = %+v", hist)
	}
}

func TestConsole_PresetNumber(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	out := h.run(t, "5\n0\n99\n")

	hist := h.pipeline.History()
	if len(hist) != 1 {
		t.Fatalf("history len = %d, want 1 (out-of-range numbers are not asked)", len(hist))
	}
	if hist[0].Utterance != "Wheat ke liye konsa fertilizer best hai?" || hist[0].Source != advisor.SourcePreset {
		t.Errorf("turn = %+v", hist[0])
	}
	if strings.Count(out, "Question number 1 se 20 ke beech") != 2 {
		t.Errorf("expected two range messages:\n%s", out)
	}
}

func TestConsole_Speak(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	out := h.run(t, "/speak\n")

	if !strings.Contains(out, "👤 You: Mere tomato plants me problem hai") {
		t.Errorf("transcript missing:\n%s", out)
	}
	if h.sttp.CallCount() != 1 || h.lm.CallCount() != 1 {
		t.Errorf("stt calls = %d, llm calls = %d", h.sttp.CallCount(), h.lm.CallCount())
	}
}

func TestConsole_SpeakNoSpeech(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.sttp.Err = stt.ErrNoSpeech
	out := h.run(t, "/speak\n/history\n")

	if !strings.Contains(out, advisor.MsgNoSpeechDetected) {
		t.Errorf("fallback message missing:\n%s", out)
	}
	if !strings.Contains(out, "(awaaz samajh nahi aayi)") {
		t.Errorf("history should mark the empty utterance:\n%s", out)
	}
	if h.lm.CallCount() != 0 {
		t.Errorf("LLM called %d times for unheard speech", h.lm.CallCount())
	}
}

func TestConsole_HistoryAndClear(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	out := h.run(t, "/history\npehla sawal\n/history\n/clear\n/clear\n/history\n")

	if strings.Count(out, "Abhi tak koi baat nahi hui.") != 2 {
		t.Errorf("expected empty-history notice before and after clear:\n%s", out)
	}
	if !strings.Contains(out, "👤 You: pehla sawal\n🤖 Assistant: Neem oil ka spray karo.\n---") {
		t.Errorf("history entry missing:\n%s", out)
	}
	if strings.Count(out, "Chat clear ho gaya.") != 2 {
		t.Errorf("clear should be repeatable:\n%s", out)
	}
	if len(h.pipeline.History()) != 0 {
		t.Error("history not cleared")
	}
}

func TestConsole_HelpPresetsState(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	out := h.run(t, "/help\n/presets\n/state\n/bogus\n")

	for _, want := range []string{
		"Kaise use kare:",
		"Wheat ke liye best fertilizer konsa hai",
		"Crop Diseases:",
		" 1. Mere wheat ki leaves pe yellow spots aa gaye hai, kya karu?",
		"20. Onion cultivation ka right method kya hai?",
		"state: idle, playback: idle",
		`Unknown command "/bogus"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConsole_QuitStopsReading(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	out := h.run(t, "/quit\nnever asked\n")

	if !strings.Contains(out, "Dhanyavaad!") {
		t.Errorf("goodbye missing:\n%s", out)
	}
	if h.lm.CallCount() != 0 {
		t.Error("input after /quit was processed")
	}
}

func TestConsole_BackendFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.lm.CompleteResponse = nil
	h.lm.CompleteErr = errors.New("quota exceeded")
	out := h.run(t, "Rabi crop kab sow karni chahiye?\n")

	if !strings.Contains(out, advisor.MsgBackendUnavailable) {
		t.Errorf("apology missing:\n%s", out)
	}
}

func TestConsole_ContextCancel(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	// A reader that never returns stands in for an idle terminal.
	pr := blockingReader{done: make(chan struct{})}
	defer close(pr.done)

	ctx, cancel := context.WithCancel(t.Context())
	errc := make(chan error, 1)
	go func() { errc <- console.New(h.pipeline, nil, pr, &bytes.Buffer{}).Run(ctx) }()

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

type blockingReader struct{ done chan struct{} }

func (r blockingReader) Read([]byte) (int, error) {
	<-r.done
	return 0, errors.New("closed")
}
