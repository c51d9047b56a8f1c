package engine

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/lingoloop/capture"
	"github.com/dgnsrekt/lingoloop/capture/device"
	"github.com/dgnsrekt/lingoloop/capture/vosk"
	"github.com/dgnsrekt/lingoloop/internal/cache"
	"github.com/dgnsrekt/lingoloop/playback"
	"github.com/dgnsrekt/lingoloop/tts"
	"github.com/dgnsrekt/lingoloop/tts/audio"
	"github.com/dgnsrekt/lingoloop/tts/engines"
	"github.com/dgnsrekt/lingoloop/tts/engines/mock"
	"github.com/dgnsrekt/lingoloop/tts/engines/piper"
)

// maxPiperFailures is how many piper failures in a row switch speech to
// the mock engine.
const maxPiperFailures = 3

// prefetchLookahead bounds the sentences queued for background synthesis.
const prefetchLookahead = 2

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Open builds an engine on the real platform from configuration. cacheDir
// is used when the configuration names no cache directory.
func Open(cfg tts.Config, cacheDir string, logger *log.Logger, opts ...Option) (*Engine, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var closers []io.Closer
	fail := func(err error) (*Engine, error) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
		return nil, err
	}

	// Clip playback is optional: without an audio device sentences with
	// clips fail and synthesized speech is only available from mock.
	var player *audio.Player
	pc := audio.DefaultPlayerConfig()
	pc.Volume = cfg.Volume
	if p, err := audio.NewPlayer(pc, logger.WithPrefix("audio")); err != nil {
		logger.Warn("audio output unavailable", "err", err)
	} else {
		player = p
		closers = append(closers, p)
	}

	var prefetcher *piper.Prefetcher
	mockEngine := mock.New(cfg.Mock)
	var (
		synth  tts.Synthesizer   = mockEngine
		voices tts.VoiceProvider = mockEngine
	)

	if cfg.Engine == "piper" {
		if player == nil {
			return fail(fmt.Errorf("%w: piper needs an audio device", tts.ErrEngineNotAvailable))
		}
		dir, err := piper.OpenVoiceDir(cfg.Piper.VoicesDir, logger.WithPrefix("piper"))
		if err != nil {
			return fail(fmt.Errorf("piper voices: %w", err))
		}
		closers = append(closers, dir)

		cc := cache.DefaultConfig()
		cc.DiskCapacity = int64(cfg.Cache.MaxSizeMB) * 1024 * 1024
		cc.CompressionLevel = cfg.Cache.CompressionLevel
		cc.Dir = cfg.Cache.Dir
		if cc.Dir == "" && cacheDir != "" {
			cc.Dir = filepath.Join(cacheDir, "audio")
		}
		audioCache, err := cache.Open(cc, logger.WithPrefix("cache"))
		if err != nil {
			return fail(err)
		}
		closers = append(closers, audioCache)

		pe := piper.New(cfg.Piper, dir, player, audioCache, logger.WithPrefix("piper"))
		prefetcher = piper.NewPrefetcher(pe, prefetchLookahead, logger.WithPrefix("prefetch"))
		closers = append(closers, prefetcher)
		synth = engines.NewFallback(pe, mockEngine, maxPiperFailures, logger.WithPrefix("tts"))
		voices = dir
	}

	catalog := tts.NewVoiceCatalog(voices)
	var clips tts.ClipPlayer
	if player != nil {
		clips = player
	}
	speaker := tts.NewSpeaker(synth, clips, catalog, logger.WithPrefix("speaker"))

	mic := device.NewMicrophone(cfg.Capture.SampleRate, logger.WithPrefix("mic"))
	closers = append(closers, closerFunc(mic.Terminate))

	var recognizers capture.RecognizerFactory
	if cfg.Capture.Recognizer == "vosk" {
		recognizers = vosk.Factory(cfg.Capture.VoskModel, mic, logger.WithPrefix("vosk"))
	}

	e := New(Deps{
		Output:      speaker,
		Catalog:     catalog,
		Microphone:  mic,
		Recognizers: recognizers,
	}, append([]Option{WithLogger(logger), WithClosers(closers...)}, opts...)...)

	if err := e.SetPlaybackSettings(playback.SettingsFromConfig(cfg.Playback)); err != nil {
		_ = e.Close()
		return nil, err
	}
	if prefetcher != nil {
		e.Subscribe(prefetchNext(e, prefetcher))
	}
	return e, nil
}
