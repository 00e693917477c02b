package audio

import (
	"context"
	"time"
)

// Recorder captures a bounded window of microphone audio.
//
// Implementations must return within roughly d of being called. The
// returned clip is mono 16-bit PCM at sampleRate and is owned by the caller.
type Recorder interface {
	Record(ctx context.Context, d time.Duration, sampleRate int) (*Clip, error)
}

// Player plays a clip on the local output device. Play blocks until the
// clip has finished playing or playback fails. It does not release the
// clip; ownership stays with the caller.
type Player interface {
	Play(ctx context.Context, c *Clip) error
}
