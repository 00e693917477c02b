package advisor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/krishi/internal/resilience"
	"github.com/MrWong99/krishi/pkg/provider/llm"
	llmmock "github.com/MrWong99/krishi/pkg/provider/llm/mock"
)

func TestGenerate_BlankUtterance(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", " ", "\t\n  "} {
		p := &llmmock.Provider{}
		got, err := NewGenerator(p).Generate(t.Context(), in)
		if err != nil {
			t.Errorf("Generate(%q) err = %v", in, err)
		}
		if got != MsgNotHeard {
			t.Errorf("Generate(%q) = %q, want %q", in, got, MsgNotHeard)
		}
		if p.CallCount() != 0 {
			t.Errorf("Generate(%q) called the backend %d times", in, p.CallCount())
		}
	}
}

func TestGenerate_Success(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{
		Content: "\nBhai, wheat me propiconazole spray karo.\n",
	}}
	c := NewComposer("")
	g := NewGenerator(p, WithComposer(c), WithSampling(0.4, 512))

	q := "Mere wheat ki leaves pe yellow spots aa gaye hai, kya karu?"
	got, err := g.Generate(t.Context(), q)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != "Bhai, wheat me propiconazole spray karo." {
		t.Errorf("answer = %q", got)
	}
	if p.CallCount() != 1 {
		t.Fatalf("backend calls = %d, want 1", p.CallCount())
	}
	req := p.CompleteCalls[0].Req
	if req.Prompt != c.Compose(q) {
		t.Errorf("prompt = %q, want composed prompt", req.Prompt)
	}
	if req.Temperature != 0.4 || req.MaxTokens != 512 {
		t.Errorf("sampling = %v/%d", req.Temperature, req.MaxTokens)
	}
}

func TestGenerate_BackendFailures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		p    *llmmock.Provider
	}{
		{"error", &llmmock.Provider{CompleteErr: errors.New("401 invalid api key")}},
		{"nil response", &llmmock.Provider{}},
		{"empty content", &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "  "}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := NewGenerator(tt.p).Generate(t.Context(), "Organic manure kaise banaye?")
			if got != MsgBackendUnavailable {
				t.Errorf("answer = %q, want apology", got)
			}
			if KindOf(err) != KindBackendUnavailable {
				t.Errorf("err = %v, want BackendUnavailable", err)
			}
			if tt.p.CallCount() != 1 {
				t.Errorf("backend calls = %d, want exactly 1", tt.p.CallCount())
			}
		})
	}
}

func TestGenerate_Timeout(t *testing.T) {
	t.Parallel()
	p := &llmmock.Provider{CompleteFunc: func(ctx context.Context, _ llm.CompletionRequest) (*llm.CompletionResponse, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	got, err := NewGenerator(p, WithRequestTimeout(10*time.Millisecond)).Generate(t.Context(), "Drought me konsi crop grow kare?")
	if got != MsgBackendUnavailable || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("got %q, %v", got, err)
	}
}

func TestGenerate_BreakerShortCircuits(t *testing.T) {
	t.Parallel()
	b := resilience.New(resilience.Config{Name: "llm", MaxFailures: 2, ResetTimeout: time.Hour})
	p := &llmmock.Provider{CompleteErr: errors.New("quota exceeded")}
	g := NewGenerator(p, WithLLMBreaker(b))

	for range 2 {
		_, _ = g.Generate(t.Context(), "Cow ka milk kam ho raha hai, kya kare?")
	}
	got, err := g.Generate(t.Context(), "Cow ka milk kam ho raha hai, kya kare?")
	if got != MsgBackendUnavailable || !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Errorf("got %q, %v", got, err)
	}
	if p.CallCount() != 2 {
		t.Errorf("backend calls = %d, open breaker must not call", p.CallCount())
	}
}

func TestGenerate_NeverEmpty(t *testing.T) {
	t.Parallel()
	inputs := append(DefaultPresets().Flat(), "", " ", "x")
	outcomes := []*llmmock.Provider{
		{CompleteResponse: &llm.CompletionResponse{Content: "Jawab"}},
		{CompleteErr: errors.New("boom")},
		{CompleteResponse: &llm.CompletionResponse{}},
	}
	for _, p := range outcomes {
		g := NewGenerator(p)
		for _, in := range inputs {
			got, err := g.Generate(t.Context(), in)
			if got == "" {
				t.Fatalf("Generate(%q) returned empty text (err %v)", in, err)
			}
			if err != nil && got != MsgBackendUnavailable {
				t.Fatalf("failure text = %q, want apology", got)
			}
		}
	}
}
