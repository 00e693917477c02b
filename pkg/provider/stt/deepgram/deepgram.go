// Package deepgram provides a Deepgram-backed STT provider. A captured clip
// is streamed over the live WebSocket API and the final results are joined
// into one transcript.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/coder/websocket"

	"github.com/MrWong99/krishi/pkg/provider/stt"
)

const (
	deepgramEndpoint  = "wss://api.deepgram.com/v1/listen"
	defaultModel      = "nova-3"
	defaultLanguage   = "en-IN"
	defaultSampleRate = 16000

	// chunkBytes is the size of each binary frame sent to Deepgram
	// (250 ms of 16 kHz mono).
	chunkBytes = 8000
)

var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Deepgram Provider.
type Option func(*Provider)

// WithModel sets the Deepgram model to use (e.g., "nova-3", "nova-2").
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithLanguage sets the fallback language used when [stt.Audio.Language]
// is empty.
func WithLanguage(language string) Option {
	return func(p *Provider) { p.language = language }
}

// WithEndpoint overrides the WebSocket endpoint. Used by tests and for
// self-hosted Deepgram deployments.
func WithEndpoint(endpoint string) Option {
	return func(p *Provider) { p.endpoint = endpoint }
}

// Provider implements stt.Provider backed by the Deepgram streaming API.
type Provider struct {
	apiKey   string
	model    string
	language string
	endpoint string
}

// New creates a new Deepgram Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:   apiKey,
		model:    defaultModel,
		language: defaultLanguage,
		endpoint: deepgramEndpoint,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Transcribe implements stt.Provider. It opens one WebSocket session,
// sends the whole clip followed by CloseStream and collects every final
// result until Deepgram closes the stream.
func (p *Provider) Transcribe(ctx context.Context, a stt.Audio) (stt.Transcript, error) {
	if len(a.PCM) == 0 {
		return stt.Transcript{}, stt.ErrNoSpeech
	}
	wsURL, err := p.buildURL(a)
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: build URL: %w", err)
	}

	headers := http.Header{}
	headers.Set("Authorization", "Token "+p.apiKey)
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPHeader: headers})
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("deepgram: dial: %w", err)
	}
	defer conn.CloseNow()

	writeErr := make(chan error, 1)
	go func() {
		for off := 0; off < len(a.PCM); off += chunkBytes {
			end := min(off+chunkBytes, len(a.PCM))
			if err := conn.Write(ctx, websocket.MessageBinary, a.PCM[off:end]); err != nil {
				writeErr <- err
				return
			}
		}
		writeErr <- conn.Write(ctx, websocket.MessageText, []byte(`{"type":"CloseStream"}`))
	}()

	var (
		parts   []string
		confSum float64
	)
	for {
		_, msg, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				break
			}
			if len(parts) > 0 && ctx.Err() == nil {
				// Stream closed after results were delivered.
				break
			}
			return stt.Transcript{}, fmt.Errorf("deepgram: read: %w", err)
		}
		res, ok := parseDeepgramResponse(msg)
		if !ok {
			continue
		}
		if res.metadata {
			break
		}
		if res.isFinal && res.text != "" {
			parts = append(parts, res.text)
			confSum += res.confidence
		}
	}
	if err := <-writeErr; err != nil && len(parts) == 0 {
		return stt.Transcript{}, fmt.Errorf("deepgram: write: %w", err)
	}
	conn.Close(websocket.StatusNormalClosure, "")

	if len(parts) == 0 {
		return stt.Transcript{}, stt.ErrNoSpeech
	}
	return stt.Transcript{
		Text:       strings.Join(parts, " "),
		Confidence: confSum / float64(len(parts)),
		Language:   p.lang(a),
	}, nil
}

func (p *Provider) lang(a stt.Audio) string {
	if a.Language != "" {
		return a.Language
	}
	return p.language
}

// buildURL constructs the streaming endpoint URL for the given audio.
func (p *Provider) buildURL(a stt.Audio) (string, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return "", err
	}
	sr := a.SampleRate
	if sr <= 0 {
		sr = defaultSampleRate
	}
	ch := a.Channels
	if ch <= 0 {
		ch = 1
	}

	q := u.Query()
	q.Set("model", p.model)
	q.Set("language", p.lang(a))
	q.Set("punctuate", "true")
	q.Set("interim_results", "false")
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(sr))
	q.Set("channels", strconv.Itoa(ch))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ---- wire format ----

type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type result struct {
	text       string
	confidence float64
	isFinal    bool
	metadata   bool // the terminal Metadata message that follows CloseStream
}

// parseDeepgramResponse returns ok=false for messages that carry nothing
// of interest (SpeechStarted, UtteranceEnd, malformed JSON).
func parseDeepgramResponse(data []byte) (result, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return result{}, false
	}
	switch resp.Type {
	case "Metadata":
		return result{metadata: true}, true
	case "Results":
	default:
		return result{}, false
	}
	if len(resp.Channel.Alternatives) == 0 {
		return result{}, false
	}
	alt := resp.Channel.Alternatives[0]
	return result{
		text:       strings.TrimSpace(alt.Transcript),
		confidence: alt.Confidence,
		isFinal:    resp.IsFinal,
	}, true
}
