package whisper

import (
	"errors"
	"os"
	"testing"

	"github.com/MrWong99/krishi/pkg/provider/stt"
)

func TestNewNative_EmptyPath(t *testing.T) {
	if _, err := NewNative(""); err == nil {
		t.Fatal("expected error for empty model path")
	}
}

// TestNative_Silence needs a real ggml model; set WHISPER_MODEL_PATH to run it.
func TestNative_Silence(t *testing.T) {
	path := os.Getenv("WHISPER_MODEL_PATH")
	if path == "" {
		t.Skip("WHISPER_MODEL_PATH not set; skipping native whisper test")
	}
	p, err := NewNative(path)
	if err != nil {
		t.Fatalf("NewNative: %v", err)
	}
	defer p.Close()

	_, err = p.Transcribe(t.Context(), stt.Audio{PCM: make([]byte, 32000), SampleRate: 16000, Channels: 1})
	if !errors.Is(err, stt.ErrNoSpeech) {
		t.Errorf("err = %v, want ErrNoSpeech", err)
	}
}
