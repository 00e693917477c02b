// Package device implements [audio.Recorder] and [audio.Player] on top of
// the command-line audio tools commonly installed on desktop systems
// (sox, ALSA, PulseAudio, afplay, ffplay).
//
// Raw PCM is exchanged with the capture tool over stdout so no temporary
// file is needed while recording. Playback writes the clip to a temporary
// file that is removed when the clip is released.
package device

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/MrWong99/krishi/pkg/audio"
)

// ErrNoTool is returned when none of the candidate capture or playback
// programs can be found on PATH.
var ErrNoTool = errors.New("device: no suitable audio tool found on PATH")

// captureGrace is added to the capture window before the recorder process
// is killed.
const captureGrace = 3 * time.Second

// recorderTools lists capture programs in order of preference.
var recorderTools = []string{"rec", "arecord", "ffmpeg"}

// lookPath is replaced in tests.
var lookPath = exec.LookPath

// Recorder captures microphone audio by running an external program.
type Recorder struct {
	program string
	device  string
}

var _ audio.Recorder = (*Recorder)(nil)

// RecorderOption is a functional option for [NewRecorder].
type RecorderOption func(*Recorder)

// WithRecorderProgram forces a specific capture program instead of probing
// PATH. It must be one of "rec", "arecord" or "ffmpeg".
func WithRecorderProgram(name string) RecorderOption {
	return func(r *Recorder) { r.program = name }
}

// WithInputDevice selects a capture device by the tool's own naming
// (e.g. "hw:1,0" for arecord, "default" for ffmpeg/pulse).
func WithInputDevice(dev string) RecorderOption {
	return func(r *Recorder) { r.device = dev }
}

// NewRecorder returns a Recorder. If no program is forced, the first of
// rec, arecord and ffmpeg found on PATH is used.
func NewRecorder(opts ...RecorderOption) (*Recorder, error) {
	r := &Recorder{}
	for _, o := range opts {
		o(r)
	}
	if r.program == "" {
		for _, name := range recorderTools {
			if _, err := lookPath(name); err == nil {
				r.program = name
				break
			}
		}
	}
	if r.program == "" {
		return nil, fmt.Errorf("%w (tried %s)", ErrNoTool, strings.Join(recorderTools, ", "))
	}
	if _, err := recordArgs(r.program, r.device, time.Second, 16000); err != nil {
		return nil, err
	}
	return r, nil
}

// Program returns the capture program in use.
func (r *Recorder) Program() string { return r.program }

// Record implements [audio.Recorder]. It captures exactly d of mono 16-bit
// PCM at sampleRate.
func (r *Recorder) Record(ctx context.Context, d time.Duration, sampleRate int) (*audio.Clip, error) {
	if d <= 0 {
		return nil, fmt.Errorf("device: capture duration must be positive, got %s", d)
	}
	args, err := recordArgs(r.program, r.device, d, sampleRate)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d+captureGrace)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, r.program, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("device: %s: %w: %s", r.program, err, msg)
		}
		return nil, fmt.Errorf("device: %s: %w", r.program, err)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("device: %s produced no audio", r.program)
	}
	return audio.NewClip(audio.EncodingPCM, stdout.Bytes(), sampleRate, 1), nil
}

// recordArgs builds the command line for program to write d of raw mono
// s16le PCM at rate to stdout.
func recordArgs(program, dev string, d time.Duration, rate int) ([]string, error) {
	secs := strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
	sr := strconv.Itoa(rate)
	switch program {
	case "rec":
		args := []string{"-q"}
		if dev != "" {
			args = append(args, "-t", "alsa", dev)
		}
		return append(args,
			"-t", "raw", "-r", sr, "-c", "1", "-b", "16", "-e", "signed-integer", "-",
			"trim", "0", secs,
		), nil
	case "arecord":
		args := []string{"-q", "-f", "S16_LE", "-r", sr, "-c", "1", "-t", "raw", "-d", strconv.Itoa(int(d.Round(time.Second).Seconds()))}
		if dev != "" {
			args = append(args, "-D", dev)
		}
		return append(args, "-"), nil
	case "ffmpeg":
		if dev == "" {
			dev = "default"
		}
		return []string{
			"-hide_banner", "-loglevel", "error",
			"-f", "pulse", "-i", dev,
			"-t", secs, "-ac", "1", "-ar", sr, "-f", "s16le", "-",
		}, nil
	}
	return nil, fmt.Errorf("device: unsupported capture program %q", program)
}
