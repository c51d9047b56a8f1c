// Package engine is the command surface of lingoloop. It ties the playback
// scheduler, the sleep timer and speech capture together behind one type.
package engine

import (
	"context"
	"errors"
	"io"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/lingoloop/capture"
	"github.com/dgnsrekt/lingoloop/playback"
	"github.com/dgnsrekt/lingoloop/tts"
)

// Deps are the platform capabilities the engine drives. Nil Microphone or
// Recognizers make the matching capture commands report
// capture.ErrUnsupported.
type Deps struct {
	Output      playback.Output
	Catalog     *tts.VoiceCatalog
	Microphone  capture.Microphone
	Recognizers capture.RecognizerFactory
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	logger    *log.Logger
	scheduler []playback.Option
	timer     []playback.TimerOption
	session   []capture.SessionOption
	closers   []io.Closer
}

// WithLogger sets the logger shared by all components.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSchedulerOptions passes options to the playback scheduler.
func WithSchedulerOptions(opts ...playback.Option) Option {
	return func(o *options) { o.scheduler = append(o.scheduler, opts...) }
}

// WithTimerOptions passes options to the sleep timer.
func WithTimerOptions(opts ...playback.TimerOption) Option {
	return func(o *options) { o.timer = append(o.timer, opts...) }
}

// WithSessionOptions passes options to the recognition session.
func WithSessionOptions(opts ...capture.SessionOption) Option {
	return func(o *options) { o.session = append(o.session, opts...) }
}

// WithClosers registers resources released by Close after the engine's own
// components, in reverse order.
func WithClosers(c ...io.Closer) Option {
	return func(o *options) { o.closers = append(o.closers, c...) }
}

// Engine exposes every playback and capture command.
type Engine struct {
	scheduler *playback.Scheduler
	timer     *playback.SleepTimer
	resource  *capture.Resource
	session   *capture.Session
	catalog   *tts.VoiceCatalog
	closers   []io.Closer
	log       *log.Logger
}

// New wires the components around deps.
func New(deps Deps, opts ...Option) *Engine {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = log.Default()
	}

	scheduler := playback.NewScheduler(deps.Output,
		append([]playback.Option{playback.WithLogger(o.logger.WithPrefix("playback"))}, o.scheduler...)...)
	timer := playback.NewSleepTimer(scheduler, scheduler.Bus(),
		append([]playback.TimerOption{playback.WithTimerLogger(o.logger.WithPrefix("timer"))}, o.timer...)...)

	resource := capture.NewResource(deps.Microphone, o.logger.WithPrefix("capture"))
	session := capture.NewSession(resource, deps.Recognizers,
		append([]capture.SessionOption{capture.WithSessionLogger(o.logger.WithPrefix("recognition"))}, o.session...)...)

	catalog := deps.Catalog
	if catalog == nil {
		catalog = tts.NewVoiceCatalog(nil)
	}

	return &Engine{
		scheduler: scheduler,
		timer:     timer,
		resource:  resource,
		session:   session,
		catalog:   catalog,
		closers:   o.closers,
		log:       o.logger,
	}
}

// Playback

// LoadPlaylist replaces the sentence sequence.
func (e *Engine) LoadPlaylist(sentences []playback.Sentence) { e.scheduler.LoadPlaylist(sentences) }

// SetPlaybackSettings replaces the playback settings.
func (e *Engine) SetPlaybackSettings(s playback.Settings) error {
	return e.scheduler.SetPlaybackSettings(s)
}

// Settings returns the playback settings.
func (e *Engine) Settings() playback.Settings { return e.scheduler.Settings() }

// State returns a snapshot of the playback position.
func (e *Engine) State() playback.State { return e.scheduler.State() }

// Play starts or resumes playback.
func (e *Engine) Play() { e.scheduler.Play() }

// Pause pauses playback, keeping the position.
func (e *Engine) Pause() { e.scheduler.Pause() }

// Stop stops playback.
func (e *Engine) Stop() { e.scheduler.Stop() }

// Next moves to the following sentence.
func (e *Engine) Next() { e.scheduler.Next() }

// Previous moves to the preceding sentence.
func (e *Engine) Previous() { e.scheduler.Previous() }

// JumpToSentence moves to sentence i.
func (e *Engine) JumpToSentence(i int) { e.scheduler.JumpToSentence(i) }

// Subscribe registers a listener for playback events.
func (e *Engine) Subscribe(l playback.Listener) string { return e.scheduler.Subscribe(l) }

// Unsubscribe removes a listener.
func (e *Engine) Unsubscribe(id string) { e.scheduler.Unsubscribe(id) }

// Voices returns the currently installed voices.
func (e *Engine) Voices() []tts.Voice { return e.catalog.Voices() }

// Catalog returns the voice catalog.
func (e *Engine) Catalog() *tts.VoiceCatalog { return e.catalog }

// Sleep timer

// SetSleepTimer stops playback after minutes. Non-positive minutes clear it.
func (e *Engine) SetSleepTimer(minutes int) { e.timer.Arm(minutes) }

// ClearSleepTimer cancels a pending sleep timer.
func (e *Engine) ClearSleepTimer() { e.timer.Disarm() }

// SleepTimerRemaining returns the whole minutes left, rounded up, or 0.
func (e *Engine) SleepTimerRemaining() int { return e.timer.RemainingMinutes() }

// Capture

// StartRecording begins recording from the microphone.
func (e *Engine) StartRecording(ctx context.Context) error { return e.resource.StartRecording(ctx) }

// StopRecording ends the recording. The blob is nil when nothing was
// recording.
func (e *Engine) StopRecording() (*capture.Blob, error) { return e.resource.StopRecording() }

// StartSpeechRecognition starts a recognition session in lang.
func (e *Engine) StartSpeechRecognition(ctx context.Context, lang string, onResult capture.ResultFunc, onEnd capture.EndFunc) error {
	return e.session.Start(ctx, lang, onResult, onEnd)
}

// StopSpeechRecognition ends the current recognition session.
func (e *Engine) StopSpeechRecognition() { e.session.Stop() }

// Recognizing reports whether a recognition session is active.
func (e *Engine) Recognizing() bool { return e.session.Active() }

// Close stops everything and releases the platform resources.
func (e *Engine) Close() error {
	e.timer.Disarm()
	var errs []error
	if err := e.session.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.resource.Close(); err != nil {
		errs = append(errs, err)
	}
	e.scheduler.Close()
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
