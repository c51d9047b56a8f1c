// Package playback drives repeated, looping playback of bilingual sentence
// pairs and publishes its progress as events.
package playback

import (
	"fmt"
	"time"

	"github.com/dgnsrekt/lingoloop/tts"
)

// NativeGap is the silence between a sentence and its native rendering.
const NativeGap = 300 * time.Millisecond

// Sentence is one target/native pair. It is treated as immutable once
// handed to the scheduler.
type Sentence struct {
	TargetText  string
	NativeText  string
	TargetLang  string
	NativeLang  string
	CustomAudio []byte // Pre-recorded clip overriding synthesis, if any
}

// HasNative reports whether the native rendering can be spoken.
func (s Sentence) HasNative() bool {
	return s.NativeText != "" && s.NativeLang != ""
}

// Settings controls how a playlist is played.
type Settings struct {
	RepeatCount    int           // Times each sentence is played, at least 1
	PauseDuration  time.Duration // Silence between repetitions and sentences
	SpeechRate     float64       // Synthesis rate multiplier, > 0
	PreferredVoice string        // Voice name for target text, empty for auto
	SpeakNative    bool          // Speak the native text after the target
	Loop           bool          // Wrap to the first sentence after the last
}

// DefaultSettings returns the settings a new scheduler starts with.
func DefaultSettings() Settings {
	return Settings{
		RepeatCount:   2,
		PauseDuration: time.Second,
		SpeechRate:    1.0,
		Loop:          true,
	}
}

// SettingsFromConfig builds settings from the configured playback defaults.
func SettingsFromConfig(c tts.PlaybackConfig) Settings {
	return Settings{
		RepeatCount:    c.RepeatCount,
		PauseDuration:  c.Pause,
		SpeechRate:     c.SpeechRate,
		PreferredVoice: c.PreferredVoice,
		SpeakNative:    c.SpeakNative,
		Loop:           c.Loop,
	}
}

// Validate checks the settings.
func (s Settings) Validate() error {
	if s.RepeatCount < 1 {
		return fmt.Errorf("%w: repeat count must be at least 1, got %d", ErrInvalidSettings, s.RepeatCount)
	}
	if s.PauseDuration < 0 {
		return fmt.Errorf("%w: pause cannot be negative, got %v", ErrInvalidSettings, s.PauseDuration)
	}
	if s.SpeechRate <= 0 {
		return fmt.Errorf("%w: speech rate must be positive, got %f", ErrInvalidSettings, s.SpeechRate)
	}
	return nil
}

// State is a snapshot of the scheduler's playback position.
type State struct {
	Sequence []Sentence
	Index    int  // Current sentence, valid when Sequence is non-empty
	Repeat   int  // Repetitions of the current sentence already played
	Playing  bool // A playback run is active
	Paused   bool // Paused by the user, position preserved
	Loop     bool // Wraps at the end instead of completing
}

// Current returns the sentence at the current index.
func (s State) Current() (Sentence, bool) {
	if s.Index < 0 || s.Index >= len(s.Sequence) {
		return Sentence{}, false
	}
	return s.Sequence[s.Index], true
}

// String returns a short description of the state.
func (s State) String() string {
	switch {
	case s.Playing:
		return "playing"
	case s.Paused:
		return "paused"
	default:
		return "stopped"
	}
}
