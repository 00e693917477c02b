package advisor

import (
	"errors"
	"fmt"
)

// Kind classifies a collaborator failure.
type Kind string

const (
	// KindCaptureFailed means the microphone or its driver failed.
	KindCaptureFailed Kind = "capture_failed"

	// KindNoSpeechDetected means the recogniser understood no words.
	KindNoSpeechDetected Kind = "no_speech_detected"

	// KindServiceUnavailable means the speech-to-text backend failed.
	KindServiceUnavailable Kind = "service_unavailable"

	// KindBackendUnavailable means the language model could not answer.
	KindBackendUnavailable Kind = "backend_unavailable"

	// KindSynthesisFailed means the answer could not be turned into speech.
	KindSynthesisFailed Kind = "synthesis_failed"

	// KindPlaybackFailed means the synthesized answer could not be played.
	KindPlaybackFailed Kind = "playback_failed"
)

// Fixed farmer-facing messages.
const (
	MsgNotHeard           = "Maine aapki baat nahi suni. Please dobara kahiye."
	MsgBackendUnavailable = "Sorry, mujhe AI service se connect karne me problem ho rahi hai."
	MsgNoSpeechDetected   = "Sorry, main aapki baat samajh nahi paya."
	MsgServiceUnavailable = "Speech Recognition service me problem hai. Thodi der baad dobara try karo."
	MsgCaptureFailed      = "Audio recording me problem hai. Apna microphone check karo."
	MsgSynthesisFailed    = "Jawab ko awaaz me nahi badal paya."
	MsgPlaybackFailed     = "Jawab ki awaaz play nahi ho payi."
)

var messages = map[Kind]string{
	KindCaptureFailed:      MsgCaptureFailed,
	KindNoSpeechDetected:   MsgNoSpeechDetected,
	KindServiceUnavailable: MsgServiceUnavailable,
	KindBackendUnavailable: MsgBackendUnavailable,
	KindSynthesisFailed:    MsgSynthesisFailed,
	KindPlaybackFailed:     MsgPlaybackFailed,
}

// Message returns the fixed message for k, or "" for an unknown kind.
func (k Kind) Message() string { return messages[k] }

// Error is a classified collaborator failure. Message is always the fixed
// text for Kind; Err is the underlying cause and may be nil.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Message: kind.Message(), Err: err}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("advisor: %s", e.Kind)
	}
	return fmt.Sprintf("advisor: %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
