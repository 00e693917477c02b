// Package whisper provides speech-to-text backed by whisper.cpp.
//
// [Provider] talks to a running whisper-server over its REST API
// (POST /inference). [NativeProvider] links whisper.cpp directly through
// its CGO bindings and needs no server.
//
//	p, err := whisper.New("http://localhost:8080", whisper.WithModel("small"))
//	tr, err := p.Transcribe(ctx, stt.Audio{PCM: pcm, SampleRate: 16000, Channels: 1, Language: "en-IN"})
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/krishi/pkg/audio"
	"github.com/MrWong99/krishi/pkg/provider/stt"
)

const (
	defaultLanguage   = "en"
	defaultSampleRate = 16000
	defaultTimeout    = 30 * time.Second

	// silenceRMS is the energy (16-bit PCM units) below which a capture
	// is treated as silence and not sent to the server at all.
	silenceRMS = 300.0
)

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithModel sets the model identifier forwarded to the server (e.g.
// "base.en", "small"). Empty uses whichever model the server was started
// with.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the fallback language used when [stt.Audio.Language]
// is empty. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithHTTPClient replaces the default HTTP client (30 s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.httpClient = c }
}

// WithSilenceGate enables or disables the pre-send energy check. When
// enabled (the default) near-silent captures return [stt.ErrNoSpeech]
// without contacting the server.
func WithSilenceGate(enabled bool) Option {
	return func(p *Provider) { p.silenceGate = enabled }
}

// Provider implements stt.Provider on top of a whisper.cpp HTTP server.
type Provider struct {
	serverURL   string
	model       string
	language    string
	silenceGate bool
	httpClient  *http.Client
}

// New creates a Provider for the whisper.cpp server at serverURL
// (e.g. "http://localhost:8080").
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:   strings.TrimRight(serverURL, "/"),
		language:    defaultLanguage,
		silenceGate: true,
		httpClient:  &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, a stt.Audio) (stt.Transcript, error) {
	if len(a.PCM) < 2 {
		return stt.Transcript{}, stt.ErrNoSpeech
	}
	if p.silenceGate && audio.RMS(a.PCM) < silenceRMS {
		return stt.Transcript{}, stt.ErrNoSpeech
	}
	sr, ch := a.SampleRate, a.Channels
	if sr <= 0 {
		sr = defaultSampleRate
	}
	if ch <= 0 {
		ch = 1
	}
	lang := a.Language
	if lang == "" {
		lang = p.language
	}
	lang = whisperLanguage(lang)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(audio.EncodeWAV(a.PCM, sr, ch)); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: write wav data: %w", err)
	}
	fields := [][2]string{{"language", lang}, {"model", p.model}, {"response_format", "json"}}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return stt.Transcript{}, fmt.Errorf("whisper: write %s field: %w", f[0], err)
		}
	}
	if err := mw.Close(); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", &body)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return stt.Transcript{}, fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	text := cleanTranscript(result.Text)
	if text == "" {
		return stt.Transcript{}, stt.ErrNoSpeech
	}
	return stt.Transcript{Text: text, Language: lang}, nil
}

// nonSpeechMarkers are the placeholders whisper emits for silent or
// unintelligible audio.
var nonSpeechMarkers = []string{"[BLANK_AUDIO]", "[SILENCE]", "[MUSIC]", "(silence)", "[NO_SPEECH]"}

// cleanTranscript trims whisper output and strips its non-speech markers.
func cleanTranscript(s string) string {
	for _, m := range nonSpeechMarkers {
		s = strings.ReplaceAll(s, m, "")
	}
	return strings.Join(strings.Fields(s), " ")
}
