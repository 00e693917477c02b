// Package audio holds the audio clip type shared by the recorder, the speech
// providers and the player, together with WAV/MP3 codecs and PCM conversion
// helpers.
//
// A [Clip] is the only handle to synthesized or captured audio. Whoever
// receives a clip owns it and must call [Clip.Release] exactly when it is no
// longer needed; Release is idempotent so every exit path may call it.
package audio

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Encoding identifies how the bytes in [Clip.Data] are laid out.
type Encoding string

const (
	// EncodingPCM is raw signed 16-bit little-endian PCM.
	EncodingPCM Encoding = "pcm"

	// EncodingWAV is a RIFF/WAVE container around 16-bit PCM.
	EncodingWAV Encoding = "wav"

	// EncodingMP3 is an MPEG-1/2 layer III stream.
	EncodingMP3 Encoding = "mp3"
)

// ext returns the file extension used when the clip is spilled to disk.
func (e Encoding) ext() string {
	switch e {
	case EncodingMP3:
		return ".mp3"
	case EncodingWAV, EncodingPCM:
		return ".wav"
	}
	return ".bin"
}

// Format describes the sample rate and channel count of PCM audio.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns e.g. "16000Hz mono".
func (f Format) String() string {
	ch := "mono"
	switch {
	case f.Channels == 2:
		ch = "stereo"
	case f.Channels > 2:
		ch = fmt.Sprintf("%dch", f.Channels)
	}
	return fmt.Sprintf("%dHz %s", f.SampleRate, ch)
}

// Clip is a single captured or synthesized audio clip.
//
// SampleRate and Channels are authoritative for PCM and WAV clips. For MP3
// clips they are zero until the stream is decoded.
type Clip struct {
	Encoding   Encoding
	Data       []byte
	SampleRate int
	Channels   int

	mu        sync.Mutex
	path      string
	released  bool
	onRelease []func()
}

// NewClip returns a clip wrapping data.
func NewClip(enc Encoding, data []byte, sampleRate, channels int) *Clip {
	return &Clip{Encoding: enc, Data: data, SampleRate: sampleRate, Channels: channels}
}

// Format returns the clip's PCM format.
func (c *Clip) Format() Format {
	return Format{SampleRate: c.SampleRate, Channels: c.Channels}
}

// Duration returns the playback length of a PCM or WAV clip. MP3 clips
// report zero because their length is unknown without decoding.
func (c *Clip) Duration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.SampleRate <= 0 || c.Channels <= 0 {
		return 0
	}
	n := len(c.Data)
	switch c.Encoding {
	case EncodingWAV:
		info, err := ParseWAV(c.Data)
		if err != nil {
			return 0
		}
		n -= info.DataOffset
	case EncodingMP3:
		return 0
	}
	samples := n / (2 * c.Channels)
	return time.Duration(samples) * time.Second / time.Duration(c.SampleRate)
}

// File writes the clip to a temporary file in dir (or the OS temp dir when
// dir is empty) and returns its path. PCM clips are wrapped in a WAV header.
// Repeated calls return the same path. The file is removed by [Clip.Release].
func (c *Clip) File(dir string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return "", fmt.Errorf("audio: clip already released")
	}
	if c.path != "" {
		return c.path, nil
	}
	f, err := os.CreateTemp(dir, "krishi-*"+c.Encoding.ext())
	if err != nil {
		return "", fmt.Errorf("audio: create temp file: %w", err)
	}
	data := c.Data
	if c.Encoding == EncodingPCM {
		data = EncodeWAV(c.Data, c.SampleRate, c.Channels)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("audio: write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("audio: close temp file: %w", err)
	}
	c.path = f.Name()
	return c.path, nil
}

// OnRelease registers fn to run once when the clip is released. If the clip
// has already been released fn runs immediately.
func (c *Clip) OnRelease(fn func()) {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		fn()
		return
	}
	c.onRelease = append(c.onRelease, fn)
	c.mu.Unlock()
}

// Release drops the clip's buffer, removes any temp file created by
// [Clip.File] and runs the registered release hooks. Safe to call more than
// once and on a nil clip.
func (c *Clip) Release() {
	if c == nil {
		return
	}
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	path := c.path
	hooks := c.onRelease
	c.path = ""
	c.onRelease = nil
	c.Data = nil
	c.mu.Unlock()

	if path != "" {
		os.Remove(path)
	}
	for _, fn := range hooks {
		fn()
	}
}

// Released reports whether [Clip.Release] has been called.
func (c *Clip) Released() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.released
}
