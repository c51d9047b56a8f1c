package tts

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
)

// Speaker turns sentences into sound. It wraps a single synthesis call or a
// single clip playback as one blocking unit of work.
type Speaker struct {
	synth   Synthesizer
	clips   ClipPlayer
	catalog *VoiceCatalog
	log     *log.Logger
}

// NewSpeaker creates a speaker. clips may be nil when no clip playback is
// available; sentences with clips then fail as unplayable.
func NewSpeaker(synth Synthesizer, clips ClipPlayer, catalog *VoiceCatalog, logger *log.Logger) *Speaker {
	if logger == nil {
		logger = log.Default()
	}
	if catalog == nil {
		catalog = NewVoiceCatalog(nil)
	}
	return &Speaker{
		synth:   synth,
		clips:   clips,
		catalog: catalog,
		log:     logger,
	}
}

// Catalog returns the voice catalog used for voice selection.
func (s *Speaker) Catalog() *VoiceCatalog { return s.catalog }

// Say synthesizes text in lang. When preferred names an installed voice it
// is used, otherwise a voice is picked for the language.
//
// Synthesis failures are logged and swallowed: Say returns nil so callers
// carry on as if the utterance finished. Only cancellation is reported.
func (s *Speaker) Say(ctx context.Context, text, lang string, rate float64, preferred string) error {
	if text == "" {
		return nil
	}
	if s.synth == nil {
		s.log.Warn("no synthesizer configured, skipping utterance", "lang", lang)
		return nil
	}
	if rate <= 0 {
		rate = 1.0
	}

	u := Utterance{Text: text, Language: lang, Rate: rate}
	if v, ok := s.catalog.Resolve(lang, preferred); ok {
		u.Voice = &v
	}

	start := time.Now()
	err := s.synth.Speak(ctx, u)
	switch {
	case err == nil:
		s.log.Debug("utterance finished", "lang", lang, "took", time.Since(start).Round(time.Millisecond))
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	default:
		s.log.Warn("synthesis failed, continuing", "lang", lang, "err", err)
		return nil
	}
}

// PlayClip plays a pre-recorded clip. Unlike Say, a failure is returned to
// the caller wrapped in *Error.
func (s *Speaker) PlayClip(ctx context.Context, clip []byte) error {
	if s.clips == nil {
		return NewError(ErrEngineNotAvailable, "speaker", "play clip")
	}
	if len(clip) == 0 {
		return NewError(ErrEmptyClip, "speaker", "play clip")
	}
	if err := s.clips.Play(ctx, clip); err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			return err
		}
		return NewError(err, "speaker", "play clip")
	}
	return nil
}

// Cancel stops synthesis and clip playback immediately.
func (s *Speaker) Cancel() {
	if s.synth != nil {
		s.synth.Cancel()
	}
	if s.clips != nil {
		s.clips.Stop()
	}
}
