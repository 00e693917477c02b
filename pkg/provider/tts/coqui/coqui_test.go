package coqui

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrWong99/krishi/pkg/audio"
	"github.com/MrWong99/krishi/pkg/provider/tts"
)

func TestNew(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Error("expected error for empty server URL")
	}
	if _, err := New("http://x", WithAPIMode("grpc")); err == nil {
		t.Error("expected error for unknown api mode")
	}
}

func TestSynthesize_Standard(t *testing.T) {
	t.Parallel()
	wav := audio.EncodeWAV([]byte{1, 0, 2, 0}, 22050, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != apiTTSEndpoint {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("text") != "Namaste kisan bhai" || q.Get("language_id") != "hi" || q.Get("speaker_id") != "p225" {
			t.Errorf("query = %v", q)
		}
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(wav)
	}))
	defer srv.Close()

	p, _ := New(srv.URL + "/")
	clip, err := p.Synthesize(t.Context(), "Namaste kisan bhai", tts.Voice{ID: "p225", Language: "hi"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	defer clip.Release()
	if clip.Encoding != audio.EncodingWAV || clip.SampleRate != 22050 || clip.Channels != 1 {
		t.Errorf("clip = %s %v", clip.Encoding, clip.Format())
	}
}

func TestSynthesize_XTTS(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != xttsEndpoint {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		var body xttsRequest
		json.NewDecoder(r.Body).Decode(&body)
		if body.Language != "en" || body.SpeakerWav != "farmer" {
			t.Errorf("body = %+v", body)
		}
		w.Write(audio.EncodeWAV([]byte{0, 0}, 24000, 1))
	}))
	defer srv.Close()

	p, _ := New(srv.URL, WithAPIMode(APIModeXTTS))
	clip, err := p.Synthesize(t.Context(), "hello", tts.Voice{ID: "farmer"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	clip.Release()
}

func TestSynthesize_Errors(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("text") == "bad-wav" {
			w.Write([]byte("not a wav"))
			return
		}
		http.Error(w, "oops", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, _ := New(srv.URL)
	for _, text := range []string{"", "server-error", "bad-wav"} {
		if clip, err := p.Synthesize(t.Context(), text, tts.Voice{}); err == nil {
			clip.Release()
			t.Errorf("%q: expected error", text)
		}
	}
}
