package gtranslate

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/MrWong99/krishi/pkg/audio"
	"github.com/MrWong99/krishi/pkg/provider/tts"
)

func TestSplitText(t *testing.T) {
	t.Parallel()

	if got := splitText("   ", 200); len(got) != 0 {
		t.Errorf("blank text = %q", got)
	}
	if got := splitText("Bhai, urea do baar dalo.", 200); len(got) != 1 {
		t.Errorf("short text = %q", got)
	}

	long := strings.Repeat("Paani subah do. ", 30)
	chunks := splitText(long, 200)
	if len(chunks) < 3 {
		t.Fatalf("got %d chunks, want at least 3", len(chunks))
	}
	for _, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 200 {
			t.Errorf("chunk has %d runes", n)
		}
		if !strings.HasSuffix(c, ".") {
			t.Errorf("chunk %q should end at a sentence boundary", c)
		}
	}

	word := strings.Repeat("a", 450)
	if got := splitText(word, 200); len(got) != 3 || len(got[0]) != 200 {
		t.Errorf("unbroken word split into %d chunks", len(got))
	}
}

func TestSynthesize(t *testing.T) {
	t.Parallel()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		if r.URL.Path != "/translate_tts" || q.Get("client") != "tw-ob" || q.Get("tl") != "en" {
			t.Errorf("unexpected request %s", r.URL)
		}
		if q.Get("q") == "" {
			t.Error("missing q parameter")
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte{0xff, 0xf3})
	}))
	defer srv.Close()

	p := New(WithBaseURL(srv.URL))
	text := strings.Repeat("Neem oil spray karo. ", 15)
	clip, err := p.Synthesize(t.Context(), text, tts.Voice{})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	defer clip.Release()

	n := int(calls.Load())
	if n < 2 {
		t.Errorf("calls = %d, want one per chunk", n)
	}
	if clip.Encoding != audio.EncodingMP3 || len(clip.Data) != 2*n {
		t.Errorf("clip = %s, %d bytes", clip.Encoding, len(clip.Data))
	}
}

func TestSynthesize_PartialOnLaterFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("idx") != "0" {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
			return
		}
		w.Write([]byte{0xff, 0xf3, 0x00})
	}))
	defer srv.Close()

	p := New(WithBaseURL(srv.URL))
	clip, err := p.Synthesize(t.Context(), strings.Repeat("Khad dalo. ", 30), tts.Voice{Language: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}
	if clip == nil || len(clip.Data) != 3 {
		t.Fatalf("want partial clip with first chunk, got %+v", clip)
	}
	clip.Release()
}

func TestSynthesize_Empty(t *testing.T) {
	t.Parallel()
	if _, err := New().Synthesize(t.Context(), " ", tts.Voice{}); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestNew_TLD(t *testing.T) {
	t.Parallel()
	if p := New(WithTLD("co.in")); p.baseURL != "https://translate.google.co.in" {
		t.Errorf("baseURL = %q", p.baseURL)
	}
}
