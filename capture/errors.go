package capture

import "errors"

// Common errors for capture.
var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrUnsupported      = errors.New("speech recognition not supported")
	ErrNoSpeech         = errors.New("no speech detected")
	ErrAborted          = errors.New("recognition aborted")
	ErrClosed           = errors.New("capture closed")
)

// IsTransient reports whether a recognizer error ends a session normally.
func IsTransient(err error) bool {
	return errors.Is(err, ErrNoSpeech) || errors.Is(err, ErrAborted)
}
