package whisper

import (
	"encoding/binary"
	"strings"
)

// toFloat32Mono converts 16-bit little-endian PCM to float32 samples in
// [-1, 1], averaging channels when there is more than one. A trailing
// partial frame is ignored.
func toFloat32Mono(pcm []byte, channels int) []float32 {
	if channels < 1 {
		channels = 1
	}
	frames := len(pcm) / (2 * channels)
	out := make([]float32, frames)
	for i := range frames {
		var sum float32
		for ch := range channels {
			idx := (i*channels + ch) * 2
			sum += float32(int16(binary.LittleEndian.Uint16(pcm[idx:idx+2]))) / 32768.0
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// whisperLanguage reduces a BCP-47 tag to the bare ISO-639-1 code whisper
// understands ("en-IN" becomes "en"). "auto" and "" are passed through.
func whisperLanguage(tag string) string {
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}
