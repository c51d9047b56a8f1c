// Package mock provides a silent speech engine for demos and tests.
package mock

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dgnsrekt/lingoloop/tts"
)

// Engine implements tts.Synthesizer and tts.VoiceProvider without producing
// sound. An utterance lasts as long as it would take to read aloud at the
// configured words per minute.
type Engine struct {
	wpm    int
	voices []tts.Voice

	mu       sync.Mutex
	cancel   context.CancelFunc
	delay    time.Duration // Overrides the estimated duration when > 0
	failure  error
	spoken   []tts.Utterance
	canceled int
}

// New creates a mock engine from its configuration.
func New(config tts.MockConfig) *Engine {
	e := &Engine{wpm: config.WordsPerMinute}
	if e.wpm <= 0 {
		e.wpm = tts.DefaultMockConfig().WordsPerMinute
	}
	for i, lang := range config.Voices {
		e.voices = append(e.voices, tts.Voice{
			Name:         "Mock " + lang,
			Language:     lang,
			LocalService: i%2 == 0,
		})
	}
	return e
}

// Voices returns the configured mock voices.
func (e *Engine) Voices() []tts.Voice {
	return append([]tts.Voice(nil), e.voices...)
}

// Speak waits out the utterance's duration. A pending utterance is cancelled
// first.
func (e *Engine) Speak(ctx context.Context, u tts.Utterance) error {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.spoken = append(e.spoken, u)
	failure := e.failure
	d := e.delay
	if d <= 0 {
		d = e.Duration(u.Text, u.Rate)
	}
	e.mu.Unlock()
	defer cancel()

	if failure != nil {
		return failure
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Cancel stops the pending utterance.
func (e *Engine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
		e.canceled++
	}
}

// Duration estimates how long text takes to say at rate. Text without spaces
// is counted as one word per two characters, which suits CJK scripts.
func (e *Engine) Duration(text string, rate float64) time.Duration {
	if rate <= 0 {
		rate = 1
	}
	words := len(strings.Fields(text))
	if words <= 1 {
		words = max(1, utf8.RuneCountInString(strings.TrimSpace(text))/2)
	}
	minutes := float64(words) / float64(e.wpm) / rate
	return time.Duration(minutes * float64(time.Minute))
}

// Test control methods

// SetDelay fixes every utterance to d.
func (e *Engine) SetDelay(d time.Duration) {
	e.mu.Lock()
	e.delay = d
	e.mu.Unlock()
}

// SetFailure makes every Speak fail with err; nil restores normal operation.
func (e *Engine) SetFailure(err error) {
	e.mu.Lock()
	e.failure = err
	e.mu.Unlock()
}

// Spoken returns the utterances received so far.
func (e *Engine) Spoken() []tts.Utterance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]tts.Utterance(nil), e.spoken...)
}

// Canceled returns how many pending utterances Cancel interrupted.
func (e *Engine) Canceled() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canceled
}
