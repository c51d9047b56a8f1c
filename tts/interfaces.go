package tts

import (
	"context"
)

// Synthesizer is the platform speech engine. There is one instance per
// process; every Speak call cancels whatever utterance is still pending
// before issuing its own, so speech never overlaps.
type Synthesizer interface {
	// Speak synthesizes and plays the utterance, blocking until it has been
	// fully spoken, cancelled, or has failed.
	Speak(ctx context.Context, u Utterance) error

	// Cancel stops any in-flight utterance immediately. It must not block
	// and must be safe to call when nothing is speaking.
	Cancel()
}

// VoiceProvider exposes the voices currently installed on the platform.
// The list may change at any time; callers re-read it instead of caching.
type VoiceProvider interface {
	Voices() []Voice
}

// ClipPlayer plays pre-recorded audio clips.
type ClipPlayer interface {
	// Play plays the encoded clip and blocks until it ends. A decode or
	// device error is returned as-is; cancellation returns ctx.Err().
	Play(ctx context.Context, clip []byte) error

	// Stop halts the current clip. Non-blocking, idempotent.
	Stop()
}

// Utterance is a single synthesis request.
type Utterance struct {
	Text     string  // Text to speak
	Language string  // BCP 47 language tag (e.g. "en-US")
	Rate     float64 // Speech rate multiplier (1.0 = normal)
	Voice    *Voice  // Concrete voice, nil for the platform default
}

// Voice represents a synthesis voice offered by the platform.
type Voice struct {
	Name         string // Unique voice name
	Language     string // Language tag (e.g. "en-GB")
	LocalService bool   // Synthesized on-device rather than remotely
}
