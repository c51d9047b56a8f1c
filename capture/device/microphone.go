// Package device provides the PortAudio microphone used for recordings.
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"

	"github.com/dgnsrekt/lingoloop/capture"
	"github.com/dgnsrekt/lingoloop/tts/audio"
)

const (
	// Channels is the recording channel count (mono).
	Channels = 1
	// FramesPerBuffer is the PortAudio read size.
	FramesPerBuffer = 1024
)

// Microphone opens the default PortAudio input device. It implements
// capture.Microphone. All callers share one device stream; it stops when
// the last handle is closed.
type Microphone struct {
	sampleRate int
	log        *log.Logger

	once    sync.Once
	initErr error
	inited  bool

	mu     sync.Mutex
	shared *input
	open   func() (*input, error)
}

// NewMicrophone creates a microphone recording at sampleRate.
func NewMicrophone(sampleRate int, logger *log.Logger) *Microphone {
	if logger == nil {
		logger = log.Default()
	}
	m := &Microphone{sampleRate: sampleRate, log: logger}
	m.open = m.openDevice
	return m
}

// Open returns a handle on the shared input stream, starting the device
// when no active stream is held.
func (m *Microphone) Open(ctx context.Context) (capture.Stream, error) {
	s, err := m.OpenStream(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// OpenStream is Open returning the concrete stream, for consumers that tap
// raw PCM.
func (m *Microphone) OpenStream(ctx context.Context) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shared == nil || !m.shared.isActive() {
		in, err := m.open()
		if err != nil {
			return nil, err
		}
		m.shared = in
	}
	m.shared.refs++
	return &Stream{in: m.shared, mic: m}, nil
}

// Terminate releases PortAudio if it was initialized. Call once at exit.
func (m *Microphone) Terminate() error {
	m.once.Do(func() {})
	if !m.inited {
		return nil
	}
	return portaudio.Terminate()
}

func (m *Microphone) openDevice() (*input, error) {
	m.once.Do(func() {
		m.initErr = portaudio.Initialize()
		m.inited = m.initErr == nil
	})
	if m.initErr != nil {
		return nil, fmt.Errorf("%w: portaudio: %v", capture.ErrUnsupported, m.initErr)
	}

	in := newInput(audio.Format{SampleRate: m.sampleRate, Channels: Channels}, m.log)
	buffer := make([]int16, FramesPerBuffer*Channels)
	stream, err := portaudio.OpenDefaultStream(Channels, 0, float64(m.sampleRate), FramesPerBuffer, buffer)
	if err != nil {
		return nil, openError(err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, openError(err)
	}

	done := make(chan struct{})
	in.stop = func() error {
		<-done
		if err := stream.Stop(); err != nil {
			m.log.Debug("stop input stream", "err", err)
		}
		return stream.Close()
	}
	go in.readLoop(stream, buffer, done)
	m.log.Debug("microphone opened", "rate", m.sampleRate)
	return in, nil
}

// release drops one handle on in and stops the device with the last one.
func (m *Microphone) release(in *input) error {
	m.mu.Lock()
	in.refs--
	if in.refs > 0 {
		m.mu.Unlock()
		return nil
	}
	if m.shared == in {
		m.shared = nil
	}
	m.mu.Unlock()

	m.log.Debug("microphone closed")
	return in.shutdown()
}

// openError maps device refusals to ErrPermissionDenied.
func openError(err error) error {
	var paErr portaudio.Error
	if errors.As(err, &paErr) {
		switch paErr {
		case portaudio.DeviceUnavailable, portaudio.InvalidDevice:
			return fmt.Errorf("%w: %v", capture.ErrPermissionDenied, err)
		}
	}
	return fmt.Errorf("open input stream: %w", err)
}

// input is the running device stream. Frames are fanned out to every tap,
// in the order they were read.
type input struct {
	format audio.Format
	log    *log.Logger
	stop   func() error

	// refs counts open handles; guarded by Microphone.mu.
	refs int

	mu     sync.Mutex
	active bool
	taps   map[int]func([]byte)
	nextID int
}

func newInput(format audio.Format, logger *log.Logger) *input {
	return &input{
		format: format,
		log:    logger,
		active: true,
		taps:   make(map[int]func([]byte)),
	}
}

func (in *input) isActive() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.active
}

func (in *input) shutdown() error {
	in.mu.Lock()
	in.active = false
	in.mu.Unlock()
	if in.stop == nil {
		return nil
	}
	return in.stop()
}

func (in *input) readLoop(stream *portaudio.Stream, buffer []int16, done chan struct{}) {
	defer close(done)
	for in.isActive() {
		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				continue
			}
			in.log.Warn("microphone read failed", "err", err)
			in.mu.Lock()
			in.active = false
			in.mu.Unlock()
			return
		}

		pcm := make([]byte, len(buffer)*2)
		for i, v := range buffer {
			pcm[2*i] = byte(v)
			pcm[2*i+1] = byte(v >> 8)
		}
		in.publish(pcm)
	}
}

func (in *input) publish(pcm []byte) {
	in.mu.Lock()
	taps := make([]func([]byte), 0, len(in.taps))
	for _, fn := range in.taps {
		taps = append(taps, fn)
	}
	in.mu.Unlock()
	for _, fn := range taps {
		fn(pcm)
	}
}

func (in *input) tap(fn func([]byte)) (untap func()) {
	in.mu.Lock()
	id := in.nextID
	in.nextID++
	in.taps[id] = fn
	in.mu.Unlock()

	return func() {
		in.mu.Lock()
		delete(in.taps, id)
		in.mu.Unlock()
	}
}

// Stream is one handle on the shared input stream.
type Stream struct {
	in  *input
	mic *Microphone

	mu     sync.Mutex
	closed bool
}

// Active reports whether the handle is open and the device still reading.
func (s *Stream) Active() bool {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	return !closed && s.in.isActive()
}

// NewRecorder returns a WAV recorder fed by this stream.
func (s *Stream) NewRecorder() (capture.Recorder, error) {
	if !s.Active() {
		return nil, capture.ErrClosed
	}
	return &Recorder{stream: s}, nil
}

// Close releases the handle. The device stops when no handle remains.
func (s *Stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.mic.release(s.in)
}

// Tap calls fn with every PCM block read until the returned func is called.
func (s *Stream) Tap(fn func(pcm []byte)) (untap func()) {
	return s.in.tap(fn)
}

// Format returns the PCM format of the stream.
func (s *Stream) Format() audio.Format { return s.in.format }

// Recorder collects PCM while started and emits a single WAV chunk on Stop.
type Recorder struct {
	stream *Stream
	untap  func()

	mu      sync.Mutex
	pcm     []byte
	onChunk func([]byte)
	started bool
}

// Start begins collecting audio.
func (r *Recorder) Start(onChunk func([]byte)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return nil
	}
	r.started = true
	r.onChunk = onChunk
	r.pcm = r.pcm[:0]
	r.untap = r.stream.Tap(r.write)
	return nil
}

// Stop detaches from the stream and delivers the encoded recording.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = false
	untap := r.untap
	pcm, onChunk := r.pcm, r.onChunk
	r.pcm, r.onChunk, r.untap = nil, nil, nil
	r.mu.Unlock()

	untap()

	if onChunk != nil {
		onChunk(audio.EncodeWAV(pcm, r.stream.Format()))
	}
	return nil
}

// MimeType returns the blob type.
func (r *Recorder) MimeType() string { return "audio/wav" }

func (r *Recorder) write(pcm []byte) {
	r.mu.Lock()
	if r.started {
		r.pcm = append(r.pcm, pcm...)
	}
	r.mu.Unlock()
}
