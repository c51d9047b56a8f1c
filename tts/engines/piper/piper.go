// Package piper synthesizes speech with the Piper command line tool.
package piper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/lingoloop/internal/cache"
	"github.com/dgnsrekt/lingoloop/tts"
	"github.com/dgnsrekt/lingoloop/tts/audio"
)

const (
	maxTextSize  = 5000
	maxAudioSize = 10 * 1024 * 1024
)

// PCMPlayer plays raw PCM. *audio.Player implements it.
type PCMPlayer interface {
	PlayPCM(ctx context.Context, pcm []byte, format audio.Format) error
	Stop()
}

// Engine runs one piper process per utterance and plays the result. It
// implements tts.Synthesizer.
type Engine struct {
	binary  string
	timeout time.Duration
	voices  *VoiceDir
	player  PCMPlayer
	cache   *cache.AudioCache // optional
	log     *log.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a piper engine. audioCache may be nil.
func New(config tts.PiperConfig, voices *VoiceDir, player PCMPlayer, audioCache *cache.AudioCache, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	return &Engine{
		binary:  config.Binary,
		timeout: config.Timeout,
		voices:  voices,
		player:  player,
		cache:   audioCache,
		log:     logger,
	}
}

// Speak renders the utterance and blocks while it plays. A pending
// utterance is cancelled first.
func (e *Engine) Speak(ctx context.Context, u tts.Utterance) error {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()
	defer cancel()

	if strings.TrimSpace(u.Text) == "" {
		return nil
	}
	if len(u.Text) > maxTextSize {
		return fmt.Errorf("%w: text too long: %d characters (max %d)", tts.ErrSynthesisFailed, len(u.Text), maxTextSize)
	}

	model, err := e.model(u)
	if err != nil {
		return err
	}
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	format := audio.Format{SampleRate: e.voices.SampleRate(model), Channels: 1}

	key := cache.Key{Text: u.Text, Language: u.Language, Voice: filepath.Base(model), Rate: rate}
	pcm, ok := e.cachedPCM(key)
	if !ok {
		pcm, err = e.synthesize(ctx, model, u.Text, rate)
		if err != nil {
			return err
		}
		if e.cache != nil {
			if err := e.cache.Put(key, pcm); err != nil {
				e.log.Debug("cache put", "err", err)
			}
		}
	}
	return e.player.PlayPCM(ctx, pcm, format)
}

// Cancel stops the pending utterance, killing piper or silencing playback.
func (e *Engine) Cancel() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	e.player.Stop()
}

// Check verifies that the piper binary runs.
func (e *Engine) Check(ctx context.Context) error {
	path, err := exec.LookPath(e.binary)
	if err != nil {
		return fmt.Errorf("%w: piper not found: %v", tts.ErrEngineNotAvailable, err)
	}
	if err := exec.CommandContext(ctx, path, "--version").Run(); err != nil {
		return fmt.Errorf("%w: cannot execute piper: %v", tts.ErrEngineNotAvailable, err)
	}
	return nil
}

// model picks the model for an utterance: the requested voice when it is a
// piper voice, otherwise the first voice for the language.
func (e *Engine) model(u tts.Utterance) (string, error) {
	if u.Voice != nil {
		if p, ok := e.voices.ModelPath(u.Voice.Name); ok {
			return p, nil
		}
	}
	v, ok := tts.NewVoiceCatalog(e.voices).Resolve(u.Language, "")
	if ok {
		if p, ok := e.voices.ModelPath(v.Name); ok {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: no piper voice for %q", tts.ErrVoiceNotFound, u.Language)
}

func (e *Engine) cachedPCM(key cache.Key) ([]byte, bool) {
	if e.cache == nil {
		return nil, false
	}
	return e.cache.Get(key)
}

// synthesize runs piper with the text on stdin and returns raw PCM.
func (e *Engine) synthesize(ctx context.Context, model, text string, rate float64) ([]byte, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	// Piper's length scale is the inverse of speed.
	args := []string{
		"--model", model,
		"--output-raw",
		"--length-scale", fmt.Sprintf("%.2f", 1.0/rate),
	}
	cmd := exec.CommandContext(ctx, e.binary, args...)
	cmd.Stdin = strings.NewReader(text + "\n")
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = 100 * time.Millisecond

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: timeout after %v", tts.ErrSynthesisFailed, e.timeout)
			}
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: piper: %v, stderr: %s", tts.ErrSynthesisFailed, err, strings.TrimSpace(stderr.String()))
	}

	pcm := stdout.Bytes()
	switch {
	case len(pcm) == 0:
		return nil, fmt.Errorf("%w: piper produced no audio, stderr: %s", tts.ErrSynthesisFailed, strings.TrimSpace(stderr.String()))
	case len(pcm) > maxAudioSize:
		return nil, fmt.Errorf("%w: piper output too large: %d bytes", tts.ErrSynthesisFailed, len(pcm))
	}
	e.log.Debug("piper synthesized", "bytes", len(pcm), "took", time.Since(start).Round(time.Millisecond))
	return pcm, nil
}

// Warm synthesizes an utterance into the cache without playing it. It is a
// no-op when the engine has no cache or the audio is already cached.
func (e *Engine) Warm(ctx context.Context, u tts.Utterance) error {
	if e.cache == nil || strings.TrimSpace(u.Text) == "" || len(u.Text) > maxTextSize {
		return nil
	}
	model, err := e.model(u)
	if err != nil {
		return err
	}
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	key := cache.Key{Text: u.Text, Language: u.Language, Voice: filepath.Base(model), Rate: rate}
	if _, ok := e.cache.Get(key); ok {
		return nil
	}
	pcm, err := e.synthesize(ctx, model, u.Text, rate)
	if err != nil {
		return err
	}
	return e.cache.Put(key, pcm)
}
