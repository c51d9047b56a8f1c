package capture_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dgnsrekt/lingoloop/capture"
)

// fakeMic implements capture.Microphone for testing.
type fakeMic struct {
	mu      sync.Mutex
	opens   int
	openErr error
	streams []*fakeStream
}

func (m *fakeMic) Open(ctx context.Context) (capture.Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opens++
	st := &fakeStream{active: true}
	m.streams = append(m.streams, st)
	return st, nil
}

type fakeStream struct {
	mu     sync.Mutex
	active bool
	closed bool
	n      int
}

func (s *fakeStream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active && !s.closed
}

func (s *fakeStream) NewRecorder() (capture.Recorder, error) {
	s.mu.Lock()
	s.n++
	n := s.n
	s.mu.Unlock()
	return &fakeRecorder{take: n}, nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// fakeRecorder emits one chunk on start and one on stop.
type fakeRecorder struct {
	take    int
	onChunk func([]byte)
}

func (r *fakeRecorder) Start(onChunk func([]byte)) error {
	r.onChunk = onChunk
	onChunk([]byte(fmt.Sprintf("take%d-", r.take)))
	return nil
}

func (r *fakeRecorder) Stop() error {
	r.onChunk([]byte("end"))
	return nil
}

func (r *fakeRecorder) MimeType() string { return "audio/wav" }

func TestResourceReusesStream(t *testing.T) {
	mic := &fakeMic{}
	res := capture.NewResource(mic, nil)
	defer res.Close()

	for i := 1; i <= 3; i++ {
		if err := res.StartRecording(context.Background()); err != nil {
			t.Fatalf("StartRecording() error = %v", err)
		}
		blob, err := res.StopRecording()
		if err != nil {
			t.Fatalf("StopRecording() error = %v", err)
		}
		want := fmt.Sprintf("take%d-end", i)
		if blob == nil || string(blob.Data) != want {
			t.Errorf("recording %d = %v, want %q", i, blob, want)
		}
		if blob != nil && blob.MimeType != "audio/wav" {
			t.Errorf("MimeType = %q", blob.MimeType)
		}
	}
	if mic.opens != 1 {
		t.Errorf("microphone opened %d times, want 1", mic.opens)
	}
}

func TestResourceReopensInactiveStream(t *testing.T) {
	mic := &fakeMic{}
	res := capture.NewResource(mic, nil)
	defer res.Close()

	_ = res.StartRecording(context.Background())
	_, _ = res.StopRecording()
	mic.streams[0].mu.Lock()
	mic.streams[0].active = false
	mic.streams[0].mu.Unlock()

	if err := res.StartRecording(context.Background()); err != nil {
		t.Fatalf("StartRecording() error = %v", err)
	}
	if mic.opens != 2 {
		t.Errorf("microphone opened %d times, want 2", mic.opens)
	}
	if !mic.streams[0].closed {
		t.Error("inactive stream was not released")
	}
}

func TestResourcePermissionDenied(t *testing.T) {
	mic := &fakeMic{openErr: fmt.Errorf("device: %w", capture.ErrPermissionDenied)}
	res := capture.NewResource(mic, nil)

	err := res.StartRecording(context.Background())
	if !errors.Is(err, capture.ErrPermissionDenied) {
		t.Fatalf("StartRecording() error = %v, want ErrPermissionDenied", err)
	}
	if res.Recording() {
		t.Error("resource left recording after permission denial")
	}
}

func TestResourceStopWithoutRecording(t *testing.T) {
	res := capture.NewResource(&fakeMic{}, nil)
	blob, err := res.StopRecording()
	if blob != nil || err != nil {
		t.Errorf("StopRecording() = %v, %v, want nil, nil", blob, err)
	}
}

func TestResourceInvalidate(t *testing.T) {
	mic := &fakeMic{}
	res := capture.NewResource(mic, nil)

	_ = res.StartRecording(context.Background())
	if err := res.Invalidate(); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if res.Recording() {
		t.Error("Invalidate() left a recorder running")
	}
	_ = res.StartRecording(context.Background())
	if mic.opens != 2 {
		t.Errorf("microphone opened %d times, want 2", mic.opens)
	}

	_ = res.Close()
	if err := res.StartRecording(context.Background()); !errors.Is(err, capture.ErrClosed) {
		t.Errorf("StartRecording() after Close error = %v, want ErrClosed", err)
	}
}
