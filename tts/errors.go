package tts

import "errors"

// Common errors for speech output.
var (
	// Engine errors
	ErrEngineNotAvailable = errors.New("speech engine is not available")
	ErrSynthesisFailed    = errors.New("speech synthesis failed")
	ErrVoiceNotFound      = errors.New("requested voice not found")

	// Clip errors
	ErrEmptyClip          = errors.New("audio clip is empty")
	ErrInvalidAudioFormat = errors.New("invalid audio format")
	ErrPlayerClosed       = errors.New("audio player is closed")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ErrorSeverity represents the severity of an error.
type ErrorSeverity int

const (
	// SeverityWarning is for failures that playback recovers from.
	SeverityWarning ErrorSeverity = iota
	// SeverityError is for failures that end the current playback run.
	SeverityError
)

// Error describes a speech output failure together with where it happened.
type Error struct {
	Err       error         // The underlying error
	Component string        // Component that generated the error
	Action    string        // Action being performed when error occurred
	Severity  ErrorSeverity // Severity of the error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Component + ": " + e.Action + ": unknown error"
	}
	return e.Component + ": " + e.Action + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a new speech output error.
func NewError(err error, component, action string) *Error {
	return &Error{
		Err:       err,
		Component: component,
		Action:    action,
		Severity:  SeverityError,
	}
}

// WithSeverity sets the error severity.
func (e *Error) WithSeverity(severity ErrorSeverity) *Error {
	e.Severity = severity
	return e
}

// IsRecoverable reports whether playback may continue after err.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Severity == SeverityWarning
	}
	switch {
	case errors.Is(err, ErrEngineNotAvailable),
		errors.Is(err, ErrPlayerClosed),
		errors.Is(err, ErrInvalidConfig):
		return false
	}
	return true
}
