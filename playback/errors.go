package playback

import "errors"

// Common errors for playback.
var (
	ErrInvalidSettings = errors.New("invalid playback settings")
	ErrBusClosed       = errors.New("event bus is closed")
)
