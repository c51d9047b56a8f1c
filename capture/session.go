package capture

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// ResultFunc receives the transcript of the current session.
type ResultFunc func(transcript string, final bool)

// EndFunc receives the recording of a finished session. blob may be nil.
type EndFunc func(blob *Blob)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithRestartLimit bounds how often the recognizer is restarted after it
// ends on its own.
func WithRestartLimit(every time.Duration, burst int) SessionOption {
	return func(s *Session) {
		s.limiter = rate.NewLimiter(rate.Every(every), burst)
	}
}

// WithSessionLogger sets the logger.
func WithSessionLogger(l *log.Logger) SessionOption {
	return func(s *Session) {
		s.log = l
	}
}

// Session layers start/stop recognition sessions over one long-lived
// recognizer. The recognizer may keep running, and be restarted, across
// sessions; results already delivered to an earlier session are never
// reported again.
type Session struct {
	resource *Resource
	factory  RecognizerFactory
	limiter  *rate.Limiter
	log      *log.Logger

	mu      sync.Mutex
	rec     Recognizer
	lang    string
	active  bool
	running bool
	run     uint64

	// history is the cumulative result list over all recognizer runs;
	// runStart is where the current run's list begins. cursor only grows
	// and only past finalized segments.
	history  []Result
	runStart int
	cursor   int

	// shown holds the interim slots delivered to the current session;
	// excluded holds those delivered to earlier sessions. A slot stays
	// excluded while its transcript is unchanged.
	shown    map[int]string
	excluded map[int]string

	onResult ResultFunc
	onEnd    EndFunc
}

// NewSession creates a session that records through resource and creates
// its recognizer with factory on first use.
func NewSession(resource *Resource, factory RecognizerFactory, opts ...SessionOption) *Session {
	s := &Session{
		resource: resource,
		factory:  factory,
		limiter:  rate.NewLimiter(rate.Every(time.Second), 3),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = log.Default()
	}
	return s
}

// Start begins a session in lang. Recording starts alongside recognition;
// when recording or the recognizer cannot start the session is not
// activated. Starting over an active session replaces its callbacks; the
// earlier session's recording is discarded and its end callback never runs.
func (s *Session) Start(ctx context.Context, lang string, onResult ResultFunc, onEnd EndFunc) error {
	s.mu.Lock()
	if s.rec == nil {
		if s.factory == nil {
			s.mu.Unlock()
			return ErrUnsupported
		}
		rec, err := s.factory()
		if err != nil {
			s.mu.Unlock()
			return fmt.Errorf("create recognizer: %w", err)
		}
		s.rec = rec
	}
	s.lang = lang
	if s.active {
		s.log.Debug("recognition session replaced")
		s.active = false
		s.retireLocked()
		s.onResult, s.onEnd = nil, nil
	}
	s.mu.Unlock()

	if s.resource != nil {
		if err := s.resource.StartRecording(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.active = true
	s.onResult = onResult
	s.onEnd = onEnd
	if !s.running {
		if err := s.startLocked(); err != nil {
			s.active = false
			s.onResult, s.onEnd = nil, nil
			s.mu.Unlock()
			if s.resource != nil {
				if _, serr := s.resource.StopRecording(); serr != nil {
					s.log.Debug("stop recording failed", "err", serr)
				}
			}
			return fmt.Errorf("start recognizer: %w", err)
		}
	}
	s.log.Debug("recognition session started", "lang", lang, "cursor", s.cursor)
	s.mu.Unlock()
	return nil
}

// Active reports whether a session is in progress.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Stop ends the session and hands the recording to its end callback. The
// recognizer itself keeps running for the next session.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	s.retireLocked()
	onEnd := s.onEnd
	s.onResult, s.onEnd = nil, nil
	s.mu.Unlock()

	var blob *Blob
	if s.resource != nil {
		b, err := s.resource.StopRecording()
		if err != nil {
			s.log.Warn("stop recording failed", "err", err)
		}
		blob = b
	}
	if onEnd != nil {
		onEnd(blob)
	}
}

// Close ends any session and releases the recognizer.
func (s *Session) Close() error {
	s.Stop()

	s.mu.Lock()
	rec := s.rec
	s.rec = nil
	s.running = false
	s.run++
	s.mu.Unlock()

	if rec == nil {
		return nil
	}
	rec.Stop()
	return rec.Close()
}

// retireLocked closes the window of the current session: finalized
// segments at the cursor are consumed and delivered interim slots are
// excluded from later sessions.
func (s *Session) retireLocked() {
	for i, text := range s.shown {
		if s.excluded == nil {
			s.excluded = make(map[int]string)
		}
		s.excluded[i] = text
	}
	s.shown = nil
	s.advanceLocked()
}

// advanceLocked moves the cursor past finalized segments that were
// already delivered.
func (s *Session) advanceLocked() {
	for s.cursor < len(s.history) {
		r := s.history[s.cursor]
		text, ok := s.excluded[s.cursor]
		if !r.Final || !ok || text != r.Transcript {
			return
		}
		delete(s.excluded, s.cursor)
		s.cursor++
	}
}

// forgetLocked drops slot bookkeeping at or above n.
func (s *Session) forgetLocked(n int) {
	for i := range s.excluded {
		if i >= n {
			delete(s.excluded, i)
		}
	}
	for i := range s.shown {
		if i >= n {
			delete(s.shown, i)
		}
	}
}

func (s *Session) startLocked() error {
	// Interim segments of a finished run are never finalized.
	keep := len(s.history)
	for keep > s.cursor && !s.history[keep-1].Final {
		keep--
	}
	s.history = s.history[:keep]
	s.runStart = keep
	s.forgetLocked(keep)

	s.run++
	run := s.run
	events := RecognizerEvents{
		Results: func(list []Result) { s.handleResults(run, list) },
		Error:   func(err error) { s.handleError(run, err) },
		End:     func() { s.handleEnd(run) },
	}
	if err := s.rec.Start(s.lang, events); err != nil {
		s.log.Error("recognizer start failed", "err", err)
		s.running = false
		return err
	}
	s.running = true
	return nil
}

func (s *Session) handleResults(run uint64, list []Result) {
	s.mu.Lock()
	if run != s.run {
		s.mu.Unlock()
		return
	}
	s.history = append(s.history[:s.runStart], list...)
	s.forgetLocked(len(s.history))
	s.advanceLocked()
	if !s.active {
		s.mu.Unlock()
		return
	}

	var parts []string
	final, fresh := false, false
	for i := s.cursor; i < len(s.history); i++ {
		r := s.history[i]
		if text, ok := s.excluded[i]; ok {
			if text == r.Transcript {
				continue
			}
			delete(s.excluded, i)
		}
		if t := strings.TrimSpace(r.Transcript); t != "" {
			parts = append(parts, t)
		}
		if s.shown == nil {
			s.shown = make(map[int]string)
		}
		s.shown[i] = r.Transcript
		final, fresh = r.Final, true
	}
	if !fresh {
		s.mu.Unlock()
		return
	}
	if final {
		s.cursor = len(s.history)
		s.shown, s.excluded = nil, nil
	}
	onResult := s.onResult
	s.mu.Unlock()

	if onResult != nil {
		onResult(strings.Join(parts, " "), final)
	}
	if final {
		s.Stop()
	}
}

func (s *Session) handleError(run uint64, err error) {
	s.mu.Lock()
	stale := run != s.run
	s.mu.Unlock()
	if stale {
		return
	}

	if IsTransient(err) {
		s.log.Debug("recognizer ended session", "reason", err)
		s.Stop()
		return
	}
	s.log.Warn("recognizer error", "err", err)
}

func (s *Session) handleEnd(run uint64) {
	s.mu.Lock()
	if run != s.run {
		s.mu.Unlock()
		return
	}
	s.running = false
	if !s.active || s.rec == nil {
		s.mu.Unlock()
		return
	}

	delay := s.limiter.Reserve().Delay()
	if delay > 0 {
		s.log.Debug("recognizer ended, restart throttled", "delay", delay)
		time.AfterFunc(delay, func() { s.restart(run) })
		s.mu.Unlock()
		return
	}
	s.log.Debug("recognizer ended, restarting")
	err := s.startLocked()
	s.mu.Unlock()
	if err != nil {
		s.Stop()
	}
}

// restart runs a throttled restart unless the session moved on meanwhile.
func (s *Session) restart(run uint64) {
	s.mu.Lock()
	if run != s.run || !s.active || s.running || s.rec == nil {
		s.mu.Unlock()
		return
	}
	err := s.startLocked()
	s.mu.Unlock()
	if err != nil {
		s.Stop()
	}
}
