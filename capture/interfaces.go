// Package capture records microphone audio and runs continuous speech
// recognition in discrete caller-visible sessions.
package capture

import "context"

// Microphone acquires an input stream. Implementations return an error
// wrapping ErrPermissionDenied when access is refused.
type Microphone interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is an acquired microphone input. It stays open across many
// recordings until closed.
type Stream interface {
	// Active reports whether the stream can still produce audio.
	Active() bool

	// NewRecorder creates a recorder fed by this stream.
	NewRecorder() (Recorder, error)

	// Close releases the device.
	Close() error
}

// Recorder encodes audio from a stream. Each encoded chunk is handed to the
// callback given to Start; all chunks are delivered before Stop returns.
type Recorder interface {
	Start(onChunk func([]byte)) error
	Stop() error
	MimeType() string
}

// Blob is one encoded recording.
type Blob struct {
	Data     []byte
	MimeType string
}

// Result is one segment of a recognizer's result list.
type Result struct {
	Transcript string
	Final      bool
}

// RecognizerEvents receives callbacks from a running recognizer. Results
// carries the full result list of the current run, interim segments included.
type RecognizerEvents struct {
	Results func([]Result)
	Error   func(error)
	End     func()
}

// Recognizer is a continuous speech recognizer. A run lasts from Start until
// End is delivered; the recognizer may end a run on its own. Events are
// delivered from the recognizer's goroutine, never from inside Start or Stop.
type Recognizer interface {
	Start(lang string, events RecognizerEvents) error
	Stop()
	Close() error
}

// RecognizerFactory creates the recognizer on first use. It returns an error
// wrapping ErrUnsupported when no recognizer is available.
type RecognizerFactory func() (Recognizer, error)
