package capture_test

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/dgnsrekt/lingoloop/capture"
)

// fakeRecognizer records runs; tests drive its events directly.
type fakeRecognizer struct {
	mu       sync.Mutex
	starts   int
	stops    int
	langs    []string
	events   capture.RecognizerEvents
	closed   bool
	startErr error
}

func (r *fakeRecognizer) Start(lang string, events capture.RecognizerEvents) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.starts++
	if r.startErr != nil {
		return r.startErr
	}
	r.langs = append(r.langs, lang)
	r.events = events
	return nil
}

func (r *fakeRecognizer) failStart(err error) {
	r.mu.Lock()
	r.startErr = err
	r.mu.Unlock()
}

func (r *fakeRecognizer) Stop() {
	r.mu.Lock()
	r.stops++
	r.mu.Unlock()
}

func (r *fakeRecognizer) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return nil
}

func (r *fakeRecognizer) current() capture.RecognizerEvents {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events
}

func (r *fakeRecognizer) startCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}

type sessionLog struct {
	mu      sync.Mutex
	results []string
	finals  []bool
	ends    int
	blobs   []*capture.Blob
}

func (l *sessionLog) onResult(transcript string, final bool) {
	l.mu.Lock()
	l.results = append(l.results, transcript)
	l.finals = append(l.finals, final)
	l.mu.Unlock()
}

func (l *sessionLog) onEnd(blob *capture.Blob) {
	l.mu.Lock()
	l.ends++
	l.blobs = append(l.blobs, blob)
	l.mu.Unlock()
}

func newTestSession(t *testing.T) (*capture.Session, *fakeRecognizer, *fakeMic) {
	t.Helper()
	mic := &fakeMic{}
	rec := &fakeRecognizer{}
	factory := func() (capture.Recognizer, error) { return rec, nil }
	s := capture.NewSession(capture.NewResource(mic, nil), factory)
	t.Cleanup(func() { _ = s.Close() })
	return s, rec, mic
}

func TestSessionWindowsResultsAfterFinal(t *testing.T) {
	s, rec, _ := newTestSession(t)

	first := &sessionLog{}
	if err := s.Start(context.Background(), "zh-CN", first.onResult, first.onEnd); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	rec.current().Results([]capture.Result{{Transcript: "你好", Final: false}})
	rec.current().Results([]capture.Result{{Transcript: "你好世界", Final: true}})

	if s.Active() {
		t.Fatal("final result should end the session")
	}
	if first.ends != 1 {
		t.Fatalf("first session ended %d times, want 1", first.ends)
	}
	if got := first.results[len(first.results)-1]; got != "你好世界" || !first.finals[len(first.finals)-1] {
		t.Errorf("final result = %q", got)
	}

	second := &sessionLog{}
	if err := s.Start(context.Background(), "zh-CN", second.onResult, second.onEnd); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if rec.startCount() != 1 {
		t.Errorf("recognizer started %d times, want 1 (reused while running)", rec.startCount())
	}

	rec.current().Results([]capture.Result{
		{Transcript: "你好世界", Final: true},
		{Transcript: "谢谢", Final: false},
	})
	if len(second.results) != 1 || second.results[0] != "谢谢" {
		t.Errorf("second session results = %q, want only new text", second.results)
	}
}

func TestSessionStopExcludesDeliveredInterim(t *testing.T) {
	s, rec, _ := newTestSession(t)

	first := &sessionLog{}
	_ = s.Start(context.Background(), "en-US", first.onResult, first.onEnd)
	rec.current().Results([]capture.Result{{Transcript: "hello"}})
	s.Stop()
	s.Stop()

	if first.ends != 1 {
		t.Errorf("onEnd called %d times, want 1", first.ends)
	}
	if first.blobs[0] == nil || string(first.blobs[0].Data) != "take1-end" {
		t.Errorf("blob = %v", first.blobs[0])
	}

	second := &sessionLog{}
	_ = s.Start(context.Background(), "en-US", second.onResult, second.onEnd)
	rec.current().Results([]capture.Result{{Transcript: "hello"}, {Transcript: "again"}})
	if len(second.results) != 1 || second.results[0] != "again" {
		t.Errorf("second session results = %q, want [again]", second.results)
	}
}

func TestSessionRestartsOnEnd(t *testing.T) {
	s, rec, _ := newTestSession(t)

	log := &sessionLog{}
	_ = s.Start(context.Background(), "fr-FR", log.onResult, log.onEnd)
	rec.current().Results([]capture.Result{{Transcript: "bonjour", Final: false}})

	rec.current().End()
	if rec.startCount() != 2 {
		t.Fatalf("recognizer started %d times, want restart", rec.startCount())
	}
	if !s.Active() {
		t.Error("natural end should not end the session")
	}

	rec.current().Results([]capture.Result{{Transcript: "merci", Final: false}})
	if got := log.results[len(log.results)-1]; got != "merci" {
		t.Errorf("result after restart = %q, want merci", got)
	}
}

func TestSessionNoRestartWhenInactive(t *testing.T) {
	s, rec, _ := newTestSession(t)

	log := &sessionLog{}
	_ = s.Start(context.Background(), "en-US", log.onResult, log.onEnd)
	s.Stop()
	rec.current().End()

	if rec.startCount() != 1 {
		t.Errorf("recognizer restarted %d times while idle", rec.startCount()-1)
	}

	_ = s.Start(context.Background(), "en-GB", log.onResult, log.onEnd)
	if rec.startCount() != 2 || rec.langs[1] != "en-GB" {
		t.Errorf("recognizer runs = %v, want a new run in en-GB", rec.langs)
	}
}

func TestSessionTransientErrorStops(t *testing.T) {
	for _, reason := range []error{capture.ErrNoSpeech, capture.ErrAborted} {
		t.Run(reason.Error(), func(t *testing.T) {
			s, rec, _ := newTestSession(t)
			log := &sessionLog{}
			_ = s.Start(context.Background(), "en-US", log.onResult, log.onEnd)

			rec.current().Error(fmt.Errorf("recognizer: %w", reason))
			if s.Active() || log.ends != 1 {
				t.Errorf("active=%v ends=%d, want stopped with one end", s.Active(), log.ends)
			}
		})
	}
}

func TestSessionOtherErrorIgnored(t *testing.T) {
	s, rec, _ := newTestSession(t)
	log := &sessionLog{}
	_ = s.Start(context.Background(), "en-US", log.onResult, log.onEnd)

	rec.current().Error(errors.New("network glitch"))
	if !s.Active() || log.ends != 0 {
		t.Error("non-transient error should leave the session running")
	}
}

func TestSessionPermissionDenied(t *testing.T) {
	mic := &fakeMic{openErr: capture.ErrPermissionDenied}
	rec := &fakeRecognizer{}
	s := capture.NewSession(capture.NewResource(mic, nil), func() (capture.Recognizer, error) { return rec, nil })
	defer s.Close()

	err := s.Start(context.Background(), "en-US", nil, nil)
	if !errors.Is(err, capture.ErrPermissionDenied) {
		t.Fatalf("Start() error = %v, want ErrPermissionDenied", err)
	}
	if s.Active() || rec.startCount() != 0 {
		t.Error("recognition activated without a recording")
	}
}

func TestSessionUnsupported(t *testing.T) {
	factory := func() (capture.Recognizer, error) {
		return nil, fmt.Errorf("vosk: %w", capture.ErrUnsupported)
	}
	s := capture.NewSession(capture.NewResource(&fakeMic{}, nil), factory)

	err := s.Start(context.Background(), "en-US", nil, nil)
	if !errors.Is(err, capture.ErrUnsupported) {
		t.Errorf("Start() error = %v, want ErrUnsupported", err)
	}

	none := capture.NewSession(nil, nil)
	if err := none.Start(context.Background(), "en-US", nil, nil); !errors.Is(err, capture.ErrUnsupported) {
		t.Errorf("Start() without factory error = %v, want ErrUnsupported", err)
	}
}

func TestSessionCloseReleasesRecognizer(t *testing.T) {
	mic := &fakeMic{}
	rec := &fakeRecognizer{}
	s := capture.NewSession(capture.NewResource(mic, nil), func() (capture.Recognizer, error) { return rec, nil })

	log := &sessionLog{}
	_ = s.Start(context.Background(), "en-US", log.onResult, log.onEnd)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !rec.closed || rec.stops != 1 || log.ends != 1 {
		t.Errorf("closed=%v stops=%d ends=%d", rec.closed, rec.stops, log.ends)
	}
}

func TestSessionWindowEdgeCases(t *testing.T) {
	type step struct {
		start   bool
		stop    bool
		results []capture.Result
	}
	results := func(list ...capture.Result) step { return step{results: list} }
	start := step{start: true}
	stop := step{stop: true}

	tests := []struct {
		name       string
		steps      []step
		wantText   []string
		wantFinals []bool
		wantEnds   int
		wantActive bool
	}{
		{
			name: "shorter list after stop",
			steps: []step{
				start,
				results(capture.Result{Transcript: "done", Final: true}, capture.Result{Transcript: "noi"}),
				start,
				results(capture.Result{Transcript: "done", Final: true}, capture.Result{Transcript: "hel"}),
				stop,
				start,
				results(capture.Result{Transcript: "done", Final: true}),
			},
			wantActive: true,
		},
		{
			name: "shorter list then new final",
			steps: []step{
				start,
				results(capture.Result{Transcript: "done", Final: true}, capture.Result{Transcript: "hel"}),
				stop,
				start,
				results(capture.Result{Transcript: "done", Final: true}),
				results(capture.Result{Transcript: "done", Final: true}, capture.Result{Transcript: "bye", Final: true}),
			},
			wantText:   []string{"bye"},
			wantFinals: []bool{true},
			wantEnds:   1,
		},
		{
			name: "dropped partial then final",
			steps: []step{
				start,
				results(capture.Result{Transcript: "hel"}),
				stop,
				results(),
				start,
				results(capture.Result{Transcript: "world", Final: true}),
			},
			wantText:   []string{"world"},
			wantFinals: []bool{true},
			wantEnds:   1,
		},
		{
			name: "delivered interim finalized unchanged",
			steps: []step{
				start,
				results(capture.Result{Transcript: "hel"}),
				stop,
				start,
				results(capture.Result{Transcript: "hel"}, capture.Result{Transcript: "lo"}),
				results(capture.Result{Transcript: "hel", Final: true}, capture.Result{Transcript: "lo", Final: true}),
			},
			wantText:   []string{"lo", "lo"},
			wantFinals: []bool{false, true},
			wantEnds:   1,
		},
		{
			name: "delivered interim revised",
			steps: []step{
				start,
				results(capture.Result{Transcript: "hel"}),
				stop,
				start,
				results(capture.Result{Transcript: "help"}),
			},
			wantText:   []string{"help"},
			wantFinals: []bool{false},
			wantActive: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, rec, _ := newTestSession(t)

			var last *sessionLog
			for _, st := range tt.steps {
				switch {
				case st.start:
					last = &sessionLog{}
					if err := s.Start(context.Background(), "en-US", last.onResult, last.onEnd); err != nil {
						t.Fatalf("Start() error = %v", err)
					}
				case st.stop:
					s.Stop()
				default:
					rec.current().Results(st.results)
				}
			}

			if !reflect.DeepEqual(last.results, tt.wantText) || !reflect.DeepEqual(last.finals, tt.wantFinals) {
				t.Errorf("last session results = %q finals = %v, want %q %v", last.results, last.finals, tt.wantText, tt.wantFinals)
			}
			if last.ends != tt.wantEnds {
				t.Errorf("last session ended %d times, want %d", last.ends, tt.wantEnds)
			}
			if s.Active() != tt.wantActive {
				t.Errorf("Active() = %v, want %v", s.Active(), tt.wantActive)
			}
		})
	}
}

func TestSessionStartReplacesActive(t *testing.T) {
	s, rec, mic := newTestSession(t)

	first := &sessionLog{}
	_ = s.Start(context.Background(), "en-US", first.onResult, first.onEnd)
	rec.current().Results([]capture.Result{{Transcript: "hel"}})

	second := &sessionLog{}
	if err := s.Start(context.Background(), "en-US", second.onResult, second.onEnd); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if rec.startCount() != 1 {
		t.Errorf("recognizer started %d times, want 1", rec.startCount())
	}

	rec.current().Results([]capture.Result{{Transcript: "hel"}, {Transcript: "there", Final: true}})

	if len(first.results) != 1 || first.ends != 0 {
		t.Errorf("replaced session results=%q ends=%d, want no further callbacks", first.results, first.ends)
	}
	if !reflect.DeepEqual(second.results, []string{"there"}) || second.ends != 1 {
		t.Errorf("second session results=%q ends=%d", second.results, second.ends)
	}
	if second.blobs[0] == nil || string(second.blobs[0].Data) != "take2-end" {
		t.Errorf("second blob = %v, want the second recording", second.blobs[0])
	}
	if mic.opens != 1 {
		t.Errorf("microphone opened %d times, want 1", mic.opens)
	}
}

func TestSessionRecognizerStartFails(t *testing.T) {
	mic := &fakeMic{}
	rec := &fakeRecognizer{}
	rec.failStart(errors.New("device busy"))
	res := capture.NewResource(mic, nil)
	s := capture.NewSession(res, func() (capture.Recognizer, error) { return rec, nil })
	defer s.Close()

	log := &sessionLog{}
	err := s.Start(context.Background(), "en-US", log.onResult, log.onEnd)
	if err == nil || err.Error() != "start recognizer: device busy" {
		t.Fatalf("Start() error = %v, want the recognizer failure", err)
	}
	if s.Active() || res.Recording() || log.ends != 0 {
		t.Errorf("active=%v recording=%v ends=%d, want nothing left running", s.Active(), res.Recording(), log.ends)
	}

	rec.failStart(nil)
	if err := s.Start(context.Background(), "en-US", log.onResult, log.onEnd); err != nil {
		t.Fatalf("Start() after recovery error = %v", err)
	}
	if !s.Active() || !res.Recording() {
		t.Error("session should run once the recognizer starts")
	}
}

func TestSessionRestartFailureEndsSession(t *testing.T) {
	s, rec, _ := newTestSession(t)

	log := &sessionLog{}
	_ = s.Start(context.Background(), "en-US", log.onResult, log.onEnd)
	events := rec.current()
	rec.failStart(errors.New("device busy"))
	events.End()

	if s.Active() || log.ends != 1 {
		t.Errorf("active=%v ends=%d, want the session ended once", s.Active(), log.ends)
	}
}
