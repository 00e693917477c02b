package advisor

import (
	"errors"
	"fmt"
	"testing"
)

func TestKind_MessagesDistinct(t *testing.T) {
	t.Parallel()
	seen := map[string]Kind{}
	for _, k := range []Kind{
		KindCaptureFailed, KindNoSpeechDetected, KindServiceUnavailable,
		KindBackendUnavailable, KindSynthesisFailed, KindPlaybackFailed,
	} {
		msg := k.Message()
		if msg == "" {
			t.Errorf("%s has no message", k)
		}
		if other, dup := seen[msg]; dup {
			t.Errorf("%s and %s share message %q", k, other, msg)
		}
		seen[msg] = k
	}
	if Kind("bogus").Message() != "" {
		t.Error("unknown kind should have no message")
	}
}

func TestError_WrapAndMatch(t *testing.T) {
	t.Parallel()
	cause := errors.New("quota exceeded")
	err := fmt.Errorf("turn: %w", newError(KindBackendUnavailable, cause))

	var ae *Error
	if !errors.As(err, &ae) {
		t.Fatal("errors.As failed")
	}
	if ae.Message != MsgBackendUnavailable {
		t.Errorf("Message = %q", ae.Message)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable through Unwrap")
	}
	if KindOf(err) != KindBackendUnavailable {
		t.Errorf("KindOf = %q", KindOf(err))
	}
	if KindOf(cause) != "" || KindOf(nil) != "" {
		t.Error("KindOf should be empty for unclassified errors")
	}
	if got := newError(KindNoSpeechDetected, nil).Error(); got != "advisor: no_speech_detected" {
		t.Errorf("Error() = %q", got)
	}
}
