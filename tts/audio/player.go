// Package audio plays synthesized speech and recorded clips through the
// system audio device.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"github.com/dgnsrekt/lingoloop/tts"
)

// PlayerConfig contains configuration for the audio player.
type PlayerConfig struct {
	SampleRate int           // Device rate; clips are converted to it
	Channels   int           // 1 = mono, 2 = stereo
	BufferSize time.Duration // Device buffer length
	Volume     float64       // 0.0 to 2.0
}

// DefaultPlayerConfig returns the default player configuration. Piper voices
// render at 22050 Hz mono.
func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{
		SampleRate: 22050,
		Channels:   1,
		BufferSize: 100 * time.Millisecond,
		Volume:     1.0,
	}
}

// Player plays one clip at a time through oto. It implements tts.ClipPlayer.
type Player struct {
	context *oto.Context
	format  Format
	volume  float64
	log     *log.Logger

	mu     sync.Mutex
	active *oto.Player
	data   []byte // Keeps the playing PCM reachable until playback ends
	closed bool
}

// NewPlayer initializes the audio device. Only one oto context can exist per
// process, so create a single Player and share it.
func NewPlayer(config PlayerConfig, logger *log.Logger) (*Player, error) {
	if logger == nil {
		logger = log.Default()
	}
	if config.Channels != 1 && config.Channels != 2 {
		return nil, fmt.Errorf("%w: channels must be 1 or 2, got %d", tts.ErrInvalidConfig, config.Channels)
	}
	if config.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate must be positive", tts.ErrInvalidConfig)
	}

	op := &oto.NewContextOptions{
		SampleRate:   config.SampleRate,
		ChannelCount: config.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   config.BufferSize,
	}
	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, tts.NewError(fmt.Errorf("create oto context: %w", err), "audio", "init")
	}
	<-readyChan

	logger.Debug("audio player initialized", "rate", config.SampleRate, "channels", config.Channels)
	return &Player{
		context: ctx,
		format:  Format{SampleRate: config.SampleRate, Channels: config.Channels},
		volume:  config.Volume,
		log:     logger,
	}, nil
}

// Format returns the device format.
func (p *Player) Format() Format { return p.format }

// Play decodes a WAV clip and plays it, blocking until it finishes, Stop is
// called or ctx is done.
func (p *Player) Play(ctx context.Context, clip []byte) error {
	pcm, format, err := DecodeWAV(clip)
	if err != nil {
		return err
	}
	return p.PlayPCM(ctx, pcm, format)
}

// PlayPCM plays raw 16-bit PCM in the given format, blocking like Play.
func (p *Player) PlayPCM(ctx context.Context, pcm []byte, format Format) error {
	if len(pcm) == 0 {
		return tts.ErrEmptyClip
	}
	pcm = Convert(pcm, format, p.format)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return tts.ErrPlayerClosed
	}
	p.stopLocked()
	player := p.context.NewPlayer(bytes.NewReader(pcm))
	player.SetVolume(p.volume)
	p.active = player
	p.data = pcm
	p.mu.Unlock()

	player.Play()
	p.log.Debug("playing", "bytes", len(pcm))

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			p.release(player)
			return ctx.Err()
		case <-ticker.C:
		}
	}
	p.release(player)
	return nil
}

// Stop interrupts the clip in progress. It never blocks.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Close stops playback and refuses further clips.
func (p *Player) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.closed = true
	return nil
}

func (p *Player) stopLocked() {
	if p.active != nil {
		p.active.Pause()
		p.log.Debug("playback interrupted")
	}
}

// release closes player unless a newer clip replaced it.
func (p *Player) release(player *oto.Player) {
	p.mu.Lock()
	if p.active == player {
		p.active.Pause()
		p.active = nil
		p.data = nil
	}
	p.mu.Unlock()
	if err := player.Close(); err != nil && !errors.Is(err, context.Canceled) {
		p.log.Debug("close player", "err", err)
	}
}
