package engine

import (
	"github.com/dgnsrekt/lingoloop/playback"
	"github.com/dgnsrekt/lingoloop/tts"
)

// Requester accepts utterances for background synthesis.
// *piper.Prefetcher implements it.
type Requester interface {
	Request(u tts.Utterance) (bool, error)
}

// prefetchNext returns a listener that, when a sentence starts, asks r to
// synthesize the target text of the sentence after it.
func prefetchNext(e *Engine, r Requester) playback.Listener {
	return playback.ListenerFunc(func(ev playback.Event) {
		sc, ok := ev.(playback.SentenceChange)
		if !ok || sc.Repeat != 0 {
			return
		}
		st := e.State()
		if len(st.Sequence) < 2 {
			return
		}
		next := (sc.Index + 1) % len(st.Sequence)
		if next == 0 && !st.Loop {
			return
		}
		s := st.Sequence[next]
		if len(s.CustomAudio) > 0 {
			return
		}

		settings := e.Settings()
		u := tts.Utterance{Text: s.TargetText, Language: s.TargetLang, Rate: settings.SpeechRate}
		if v, ok := e.catalog.Resolve(s.TargetLang, settings.PreferredVoice); ok {
			u.Voice = &v
		}
		if _, err := r.Request(u); err != nil {
			e.log.Debug("prefetch request", "err", err)
		}
	})
}
