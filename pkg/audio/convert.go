package audio

import (
	"fmt"
	"log/slog"
	"math"
)

// ToPCM decodes c into raw 16-bit PCM regardless of its encoding.
func ToPCM(c *Clip) ([]byte, Format, error) {
	switch c.Encoding {
	case EncodingPCM:
		return c.Data, c.Format(), nil
	case EncodingWAV:
		return DecodeWAV(c.Data)
	case EncodingMP3:
		return DecodeMP3(c.Data)
	}
	return nil, Format{}, fmt.Errorf("audio: unsupported encoding %q", c.Encoding)
}

// ToWAV returns a new WAV clip with the same audio as c. The caller owns
// the returned clip; c is left untouched.
func ToWAV(c *Clip) (*Clip, error) {
	if c.Encoding == EncodingWAV {
		return NewClip(EncodingWAV, c.Data, c.SampleRate, c.Channels), nil
	}
	pcm, f, err := ToPCM(c)
	if err != nil {
		return nil, err
	}
	return NewClip(EncodingWAV, EncodeWAV(pcm, f.SampleRate, f.Channels), f.SampleRate, f.Channels), nil
}

// Convert resamples and remixes 16-bit PCM from one format to another.
// Resampling runs on mono data where possible so stereo input headed for a
// mono target is down-mixed first.
func Convert(pcm []byte, from, to Format) []byte {
	if len(pcm)%2 != 0 {
		slog.Warn("audio: odd byte count in PCM data, truncating", "bytes", len(pcm))
		pcm = pcm[:len(pcm)-1]
	}
	if from == to {
		return pcm
	}
	if from.Channels == 2 && to.Channels == 1 {
		pcm = StereoToMono(pcm)
		from.Channels = 1
	}
	if from.SampleRate != to.SampleRate {
		if from.Channels == 1 {
			pcm = ResampleMono16(pcm, from.SampleRate, to.SampleRate)
		} else {
			pcm = MonoToStereo(ResampleMono16(StereoToMono(pcm), from.SampleRate, to.SampleRate))
			from.Channels = 2
		}
	}
	if from.Channels == 1 && to.Channels == 2 {
		pcm = MonoToStereo(pcm)
	}
	return pcm
}

// MonoToStereo duplicates each int16 sample into an L+R pair.
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		j := i * 2
		out[j], out[j+1] = pcm[i], pcm[i+1]
		out[j+2], out[j+3] = pcm[i], pcm[i+1]
	}
	return out
}

// StereoToMono averages L and R of each 4-byte frame.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(int16(pcm[i*4]) | int16(pcm[i*4+1])<<8)
		r := int32(int16(pcm[i*4+2]) | int16(pcm[i*4+3])<<8)
		avg := (l + r) / 2
		out[i*2] = byte(avg)
		out[i*2+1] = byte(avg >> 8)
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using
// linear interpolation. Invalid rates return the input unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(pcm) < 2 {
		return pcm
	}
	srcN := len(pcm) / 2
	dstN := int(int64(srcN) * int64(dstRate) / int64(srcRate))
	if dstN == 0 {
		return nil
	}

	sample := func(i int) int16 { return int16(pcm[i*2]) | int16(pcm[i*2+1])<<8 }
	out := make([]byte, dstN*2)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range dstN {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		s0 := sample(idx)
		s1 := s0
		if idx+1 < srcN {
			s1 = sample(idx + 1)
		}
		v := int16(float64(s0)*(1-frac) + float64(s1)*frac)
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// RMS returns the root-mean-square energy of 16-bit PCM in sample units
// (0–32767). Buffers shorter than one sample return 0.
func RMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		s := float64(int16(pcm[i*2]) | int16(pcm[i*2+1])<<8)
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
