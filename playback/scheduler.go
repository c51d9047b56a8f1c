package playback

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Output produces the sound for a sentence. *tts.Speaker implements it.
type Output interface {
	// Say synthesizes text. Synthesis failures are swallowed; only
	// cancellation is returned.
	Say(ctx context.Context, text, lang string, rate float64, preferredVoice string) error

	// PlayClip plays a pre-recorded clip and returns any playback failure.
	PlayClip(ctx context.Context, clip []byte) error

	// Cancel silences any synthesis or clip immediately.
	Cancel()
}

// Option configures the scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Scheduler) {
		s.log = l
	}
}

// WithBus publishes events on an existing bus instead of a private one.
func WithBus(b *Bus) Option {
	return func(s *Scheduler) {
		s.bus = b
	}
}

// WithNativeGap sets the silence between target and native renderings.
func WithNativeGap(d time.Duration) Option {
	return func(s *Scheduler) {
		s.nativeGap = d
	}
}

// Scheduler owns playback state and runs the repeat/advance/loop algorithm.
//
// Every run started by Play, or by navigation while playing, is stamped with
// a new generation. A run only touches state or publishes events while its
// generation is current and playback is on, so Stop, Pause and navigation
// invalidate in-flight work without waiting for it.
type Scheduler struct {
	out       Output
	bus       *Bus
	ownBus    bool
	log       *log.Logger
	nativeGap time.Duration

	mu       sync.Mutex
	sequence []Sentence
	index    int
	repeat   int
	playing  bool
	paused   bool
	settings Settings
	gen      uint64
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler that speaks through out.
func NewScheduler(out Output, opts ...Option) *Scheduler {
	s := &Scheduler{
		out:       out,
		nativeGap: NativeGap,
		settings:  DefaultSettings(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = log.Default()
	}
	if s.bus == nil {
		s.bus = NewBus(s.log)
		s.ownBus = true
	}
	return s
}

// Bus returns the bus events are published on.
func (s *Scheduler) Bus() *Bus { return s.bus }

// Subscribe registers a listener for scheduler events.
func (s *Scheduler) Subscribe(l Listener) string { return s.bus.Subscribe(l) }

// Unsubscribe removes a listener registered with Subscribe.
func (s *Scheduler) Unsubscribe(id string) { s.bus.Unsubscribe(id) }

// LoadPlaylist replaces the sequence and rewinds to its first sentence. It
// does not start playback; a run in progress is stopped.
func (s *Scheduler) LoadPlaylist(sequence []Sentence) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasPlaying := s.playing
	s.invalidateLocked()
	s.sequence = append([]Sentence(nil), sequence...)
	s.index = 0
	s.repeat = 0
	s.paused = false

	if wasPlaying {
		s.playing = false
		s.publishLocked(PlaybackStateChange{})
		s.out.Cancel()
	}
	s.log.Debug("playlist loaded", "sentences", len(sequence))
}

// SetPlaybackSettings replaces the playback settings. A run in progress
// picks them up at its next sentence.
func (s *Scheduler) SetPlaybackSettings(settings Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.settings = settings
	if s.repeat >= settings.RepeatCount {
		s.repeat = 0
	}
	s.mu.Unlock()
	return nil
}

// Settings returns the current playback settings.
func (s *Scheduler) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// State returns a snapshot of the playback state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Sequence: append([]Sentence(nil), s.sequence...),
		Index:    s.index,
		Repeat:   s.repeat,
		Playing:  s.playing,
		Paused:   s.paused,
		Loop:     s.settings.Loop,
	}
}

// Play starts or resumes playback from the current sentence and repeat.
// It does nothing when no playlist is loaded and leaves a running
// playback undisturbed.
func (s *Scheduler) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sequence) == 0 {
		return
	}
	wasPlaying := s.playing
	s.playing = true
	s.paused = false
	s.publishLocked(PlaybackStateChange{IsPlaying: true})
	if wasPlaying {
		return
	}
	s.startRunLocked()
}

// Pause stops sound immediately but keeps the position. It does nothing
// unless playing.
func (s *Scheduler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playing {
		return
	}
	s.paused = true
	s.playing = false
	s.invalidateLocked()
	s.publishLocked(PlaybackStateChange{IsPaused: true})
	s.out.Cancel()
}

// Stop ends playback and resets the repeat counter.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Next moves to the following sentence, wrapping to the first.
func (s *Scheduler) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sequence) == 0 {
		return
	}
	s.jumpLocked((s.index + 1) % len(s.sequence))
}

// Previous moves to the preceding sentence, wrapping to the last.
func (s *Scheduler) Previous() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sequence) == 0 {
		return
	}
	i := s.index - 1
	if s.index == 0 {
		i = len(s.sequence) - 1
	}
	s.jumpLocked(i)
}

// JumpToSentence moves to sentence i. Out of range indexes are ignored.
func (s *Scheduler) JumpToSentence(i int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.sequence) {
		return
	}
	s.jumpLocked(i)
}

// Close stops playback, waits for the run goroutine to exit and shuts down
// the scheduler's own bus.
func (s *Scheduler) Close() {
	s.Stop()
	s.wg.Wait()
	if s.ownBus {
		s.bus.Close()
	}
}

func (s *Scheduler) jumpLocked(i int) {
	s.repeat = 0
	s.index = i
	s.publishLocked(SentenceChange{Index: i, Sentence: s.sequence[i]})
	if s.playing {
		s.out.Cancel()
		s.startRunLocked()
	}
}

func (s *Scheduler) stopLocked() {
	s.playing = false
	s.paused = false
	s.repeat = 0
	s.invalidateLocked()
	s.publishLocked(PlaybackStateChange{})
	s.out.Cancel()
}

// invalidateLocked retires the current generation.
func (s *Scheduler) invalidateLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Scheduler) startRunLocked() {
	s.invalidateLocked()
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	gen := s.gen

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.run(ctx, gen)
	}()
}

func (s *Scheduler) publishLocked(e Event) {
	if err := s.bus.Publish(e); err != nil {
		s.log.Debug("event dropped", "name", e.eventName(), "err", err)
	}
}

// validLocked reports whether the run stamped with gen may continue.
func (s *Scheduler) validLocked(gen uint64) bool {
	return s.playing && s.gen == gen && len(s.sequence) > 0
}

func (s *Scheduler) valid(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.validLocked(gen)
}

// run is the advance loop for one generation. It exits silently as soon as
// the generation is retired.
func (s *Scheduler) run(ctx context.Context, gen uint64) {
	for {
		s.mu.Lock()
		if !s.validLocked(gen) {
			s.mu.Unlock()
			return
		}
		index, repeat := s.index, s.repeat
		sentence := s.sequence[index]
		settings := s.settings
		s.publishLocked(SentenceChange{Index: index, Sentence: sentence, Repeat: repeat})
		s.mu.Unlock()

		if !s.speak(ctx, gen, index, sentence, settings) {
			return
		}

		s.mu.Lock()
		if !s.validLocked(gen) {
			s.mu.Unlock()
			return
		}
		s.repeat++
		if s.repeat >= settings.RepeatCount {
			s.repeat = 0
			s.index++
			if s.index >= len(s.sequence) {
				s.index = 0
				if !settings.Loop {
					s.log.Info("playlist finished")
					s.stopLocked()
					s.publishLocked(PlaybackComplete{})
					s.mu.Unlock()
					return
				}
			}
		}
		s.mu.Unlock()

		if !s.sleep(ctx, gen, settings.PauseDuration) {
			return
		}
	}
}

// speak produces one repetition of a sentence, and its native rendering
// when enabled. It returns false when the run must end.
func (s *Scheduler) speak(ctx context.Context, gen uint64, index int, sentence Sentence, settings Settings) bool {
	if len(sentence.CustomAudio) > 0 {
		err := s.out.PlayClip(ctx, sentence.CustomAudio)
		if !s.valid(gen) {
			return false
		}
		if err != nil {
			s.log.Error("clip playback failed, stopping", "index", index, "err", err)
			s.mu.Lock()
			if s.validLocked(gen) {
				s.stopLocked()
			}
			s.mu.Unlock()
			return false
		}
	} else {
		_ = s.out.Say(ctx, sentence.TargetText, sentence.TargetLang, settings.SpeechRate, settings.PreferredVoice)
		if !s.valid(gen) {
			return false
		}
	}

	if settings.SpeakNative && sentence.HasNative() {
		if !s.sleep(ctx, gen, s.nativeGap) {
			return false
		}
		_ = s.out.Say(ctx, sentence.NativeText, sentence.NativeLang, settings.SpeechRate, "")
		if !s.valid(gen) {
			return false
		}
	}
	return true
}

// sleep waits for d unless the run is cancelled first. It reports whether
// the run is still valid afterwards.
func (s *Scheduler) sleep(ctx context.Context, gen uint64, d time.Duration) bool {
	if d > 0 {
		t := time.NewTimer(d)
		select {
		case <-ctx.Done():
			t.Stop()
			return false
		case <-t.C:
		}
	}
	return s.valid(gen)
}
