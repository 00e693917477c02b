// Package gtranslate implements tts.Provider on the public Google Translate
// speech endpoint, the same one the gTTS tool uses.
//
// The endpoint accepts at most 200 characters per request, so longer text
// is split on sentence and word boundaries and the returned MP3 segments
// are concatenated. MPEG frames are self-delimiting, so the joined stream
// decodes and plays as a single file.
package gtranslate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/MrWong99/krishi/pkg/audio"
	"github.com/MrWong99/krishi/pkg/provider/tts"
)

const (
	defaultBaseURL  = "https://translate.google.com"
	defaultLanguage = "en"
	defaultTimeout  = 20 * time.Second

	// maxChunk is the per-request character limit of the endpoint.
	maxChunk = 200

	userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

var _ tts.Provider = (*Provider)(nil)

// Provider synthesizes speech through translate_tts.
type Provider struct {
	baseURL  string
	language string
	tld      string
	client   *http.Client
}

// Option configures a Provider.
type Option func(*Provider)

// WithBaseURL overrides the endpoint host. Used in tests.
func WithBaseURL(u string) Option {
	return func(p *Provider) { p.baseURL = strings.TrimRight(u, "/") }
}

// WithLanguage sets the language used when the voice does not name one.
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// WithTLD selects a regional host ("co.in" gives an Indian English accent).
// Ignored when WithBaseURL is set.
func WithTLD(tld string) Option {
	return func(p *Provider) { p.tld = tld }
}

// New returns a Provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		language: defaultLanguage,
		client:   &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	if p.baseURL == "" {
		p.baseURL = defaultBaseURL
		if p.tld != "" {
			p.baseURL = "https://translate.google." + p.tld
		}
	}
	return p
}

// Synthesize implements tts.Provider. It returns an MP3 clip. If a later
// chunk fails the audio of the chunks already fetched is returned with the
// error.
func (p *Provider) Synthesize(ctx context.Context, text string, voice tts.Voice) (*audio.Clip, error) {
	chunks := splitText(text, maxChunk)
	if len(chunks) == 0 {
		return nil, errors.New("gtranslate: text must not be empty")
	}
	lang := voice.Language
	if lang == "" {
		lang = p.language
	}

	var out []byte
	for i, chunk := range chunks {
		data, err := p.fetch(ctx, chunk, lang, i, len(chunks), voice.Speed)
		if err != nil {
			err = fmt.Errorf("gtranslate: chunk %d/%d: %w", i+1, len(chunks), err)
			if len(out) > 0 {
				return audio.NewClip(audio.EncodingMP3, out, 0, 0), err
			}
			return nil, err
		}
		out = append(out, data...)
	}
	return audio.NewClip(audio.EncodingMP3, out, 0, 0), nil
}

func (p *Provider) fetch(ctx context.Context, text, lang string, idx, total int, speed float64) ([]byte, error) {
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("client", "tw-ob")
	q.Set("tl", lang)
	q.Set("q", text)
	q.Set("total", fmt.Sprint(total))
	q.Set("idx", fmt.Sprint(idx))
	q.Set("textlen", fmt.Sprint(utf8.RuneCountInString(text)))
	if speed > 0 && speed < 1 {
		q.Set("ttsspeed", "0.24")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/translate_tts?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Referer", p.baseURL+"/")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty audio response")
	}
	return data, nil
}

// splitText breaks text into pieces of at most limit runes. It prefers to
// cut after sentence punctuation, then at whitespace, and only splits a
// word when it alone exceeds the limit.
func splitText(text string, limit int) []string {
	var chunks []string
	rest := []rune(strings.TrimSpace(text))
	for len(rest) > 0 {
		if len(rest) <= limit {
			chunks = append(chunks, string(rest))
			break
		}
		cut := -1
		for i := limit - 1; i > 0; i-- {
			if isSentenceEnd(rest[i]) {
				cut = i + 1
				break
			}
		}
		if cut < 0 {
			for i := limit; i > 0; i-- {
				if unicode.IsSpace(rest[i]) {
					cut = i
					break
				}
			}
		}
		if cut < 0 {
			cut = limit
		}
		if c := strings.TrimSpace(string(rest[:cut])); c != "" {
			chunks = append(chunks, c)
		}
		rest = []rune(strings.TrimSpace(string(rest[cut:])))
	}
	return chunks
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', ';', ':', '।', '\n':
		return true
	}
	return false
}
