package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// recording buffers the chunks of one recorder.
type recording struct {
	mu     sync.Mutex
	chunks [][]byte
}

func (r *recording) add(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	c := make([]byte, len(chunk))
	copy(c, chunk)
	r.mu.Lock()
	r.chunks = append(r.chunks, c)
	r.mu.Unlock()
}

func (r *recording) bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.chunks {
		n += len(c)
	}
	out := make([]byte, 0, n)
	for _, c := range r.chunks {
		out = append(out, c...)
	}
	return out
}

// Resource owns the microphone stream and the recorder. The stream is kept
// between recordings so the user is asked for access only once.
type Resource struct {
	mic Microphone
	log *log.Logger

	mu       sync.Mutex
	stream   Stream
	recorder Recorder
	current  *recording
	closed   bool
}

// NewResource creates a resource that opens mic on first use.
func NewResource(mic Microphone, logger *log.Logger) *Resource {
	if logger == nil {
		logger = log.Default()
	}
	return &Resource{mic: mic, log: logger}
}

// StartRecording starts a fresh recorder, opening the stream when none is
// held or the held one went inactive.
func (r *Resource) StartRecording(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.mic == nil {
		return fmt.Errorf("%w: no microphone", ErrUnsupported)
	}

	if r.stream == nil || !r.stream.Active() {
		if r.stream != nil {
			_ = r.stream.Close()
			r.stream = nil
		}
		stream, err := r.mic.Open(ctx)
		if err != nil {
			if errors.Is(err, ErrPermissionDenied) {
				return err
			}
			return fmt.Errorf("open microphone: %w", err)
		}
		r.stream = stream
		r.log.Debug("microphone stream acquired")
	}

	if r.recorder != nil {
		if err := r.recorder.Stop(); err != nil {
			r.log.Debug("stale recorder stop failed", "err", err)
		}
		r.recorder = nil
	}

	rec, err := r.stream.NewRecorder()
	if err != nil {
		return fmt.Errorf("create recorder: %w", err)
	}
	buf := &recording{}
	if err := rec.Start(buf.add); err != nil {
		return fmt.Errorf("start recorder: %w", err)
	}
	r.recorder = rec
	r.current = buf
	return nil
}

// StopRecording stops the active recorder and returns what it captured. It
// returns a nil blob when nothing was recording. The stream stays open.
func (r *Resource) StopRecording() (*Blob, error) {
	r.mu.Lock()
	rec, buf := r.recorder, r.current
	r.recorder, r.current = nil, nil
	r.mu.Unlock()

	if rec == nil {
		return nil, nil
	}
	if err := rec.Stop(); err != nil {
		return nil, fmt.Errorf("stop recorder: %w", err)
	}
	return &Blob{Data: buf.bytes(), MimeType: rec.MimeType()}, nil
}

// Recording reports whether a recorder is active.
func (r *Resource) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recorder != nil
}

// Invalidate releases the stream. The next recording opens a new one.
func (r *Resource) Invalidate() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.releaseLocked()
}

// Close releases the stream and refuses further recordings.
func (r *Resource) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return r.releaseLocked()
}

func (r *Resource) releaseLocked() error {
	if r.recorder != nil {
		_ = r.recorder.Stop()
		r.recorder, r.current = nil, nil
	}
	if r.stream == nil {
		return nil
	}
	err := r.stream.Close()
	r.stream = nil
	r.log.Debug("microphone stream released")
	return err
}
