// Package engines combines speech engines.
package engines

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/lingoloop/tts"
)

// Fallback wraps a primary synthesizer with a secondary one that takes over
// once the primary has failed maxFailures times in a row, or at once when the
// failure is not recoverable. Cancellation is never counted as a failure.
type Fallback struct {
	primary     tts.Synthesizer
	secondary   tts.Synthesizer
	maxFailures int
	log         *log.Logger

	mu            sync.Mutex
	failures      int
	usingFallback bool
}

// NewFallback creates a fallback synthesizer.
func NewFallback(primary, secondary tts.Synthesizer, maxFailures int, logger *log.Logger) *Fallback {
	if maxFailures < 1 {
		maxFailures = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Fallback{
		primary:     primary,
		secondary:   secondary,
		maxFailures: maxFailures,
		log:         logger,
	}
}

// Speak speaks with the active engine. The utterance that trips the switch
// is retried on the secondary engine.
func (f *Fallback) Speak(ctx context.Context, u tts.Utterance) error {
	if f.UsingFallback() {
		return f.secondary.Speak(ctx, u)
	}

	err := f.primary.Speak(ctx, u)
	if err == nil || ctx.Err() != nil {
		f.mu.Lock()
		if err == nil && f.failures > 0 {
			f.log.Info("primary engine recovered", "failures", f.failures)
			f.failures = 0
		}
		f.mu.Unlock()
		return err
	}

	f.mu.Lock()
	f.failures++
	f.log.Warn("primary engine failed", "attempt", f.failures, "max", f.maxFailures, "err", err)
	if f.failures < f.maxFailures && tts.IsRecoverable(err) {
		f.mu.Unlock()
		return err
	}
	f.usingFallback = true
	f.mu.Unlock()

	f.log.Warn("switching to fallback engine")
	return f.secondary.Speak(ctx, u)
}

// Cancel cancels both engines.
func (f *Fallback) Cancel() {
	f.primary.Cancel()
	f.secondary.Cancel()
}

// UsingFallback reports whether the secondary engine is active.
func (f *Fallback) UsingFallback() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usingFallback
}

// Reset returns to the primary engine.
func (f *Fallback) Reset() {
	f.mu.Lock()
	f.failures = 0
	f.usingFallback = false
	f.mu.Unlock()
}
