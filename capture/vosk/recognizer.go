//go:build vosk

// Package vosk runs continuous offline recognition with a Vosk model.
package vosk

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	voskapi "github.com/alphacep/vosk-api/go"
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/lingoloop/capture"
	"github.com/dgnsrekt/lingoloop/capture/device"
)

// Available reports whether this build includes Vosk.
const Available = true

// Limits of one recognizer run. A run ends on its own after MaxRun, and with
// ErrNoSpeech when nothing was heard for SilenceTimeout.
var (
	MaxRun         = time.Minute
	SilenceTimeout = 8 * time.Second
)

type voskResult struct {
	Text    string `json:"text"`
	Partial string `json:"partial"`
}

// Recognizer implements capture.Recognizer on a Vosk model. It taps the
// microphone's shared input stream, the same one recordings use.
type Recognizer struct {
	model *voskapi.VoskModel
	mic   *device.Microphone
	log   *log.Logger

	mu     sync.Mutex
	stream *device.Stream
	cancel context.CancelFunc
	done   chan struct{}
}

// New loads the model at modelPath.
func New(modelPath string, mic *device.Microphone, logger *log.Logger) (*Recognizer, error) {
	if logger == nil {
		logger = log.Default()
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("%w: vosk model %s: %v", capture.ErrUnsupported, modelPath, err)
	}
	model, err := voskapi.NewModel(modelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: load vosk model: %v", capture.ErrUnsupported, err)
	}
	return &Recognizer{model: model, mic: mic, log: logger}, nil
}

// Factory returns a capture.RecognizerFactory that loads the model lazily.
func Factory(modelPath string, mic *device.Microphone, logger *log.Logger) capture.RecognizerFactory {
	return func() (capture.Recognizer, error) {
		return New(modelPath, mic, logger)
	}
}

// Start begins a run. The language is fixed by the model; lang is logged only.
func (r *Recognizer) Start(lang string, events capture.RecognizerEvents) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.model == nil {
		return capture.ErrClosed
	}
	if r.cancel != nil {
		return nil
	}
	if r.stream == nil || !r.stream.Active() {
		stream, err := r.mic.OpenStream(context.Background())
		if err != nil {
			return err
		}
		r.stream = stream
	}

	rec, err := voskapi.NewRecognizer(r.model, float64(r.stream.Format().SampleRate))
	if err != nil {
		return fmt.Errorf("create vosk recognizer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})

	frames := make(chan []byte, 64)
	untap := r.stream.Tap(func(pcm []byte) {
		select {
		case frames <- pcm:
		default:
			r.log.Debug("vosk dropped audio block")
		}
	})

	r.log.Debug("vosk run started", "lang", lang)
	go r.run(ctx, rec, frames, untap, events, r.done)
	return nil
}

func (r *Recognizer) run(ctx context.Context, rec *voskapi.VoskRecognizer, frames <-chan []byte,
	untap func(), events capture.RecognizerEvents, done chan struct{}) {
	defer close(done)
	defer rec.Free()
	defer untap()

	var (
		results []capture.Result
		partial string
	)
	deadline := time.NewTimer(MaxRun)
	defer deadline.Stop()
	silence := time.NewTimer(SilenceTimeout)
	defer silence.Stop()

	emit := func() {
		list := append([]capture.Result(nil), results...)
		if partial != "" {
			list = append(list, capture.Result{Transcript: partial})
		}
		if events.Results != nil {
			events.Results(list)
		}
	}
	end := func(err error) {
		r.mu.Lock()
		if r.done == done {
			r.cancel = nil
		}
		r.mu.Unlock()
		if err != nil && events.Error != nil {
			events.Error(err)
		}
		if events.End != nil {
			events.End()
		}
	}

	for {
		select {
		case <-ctx.Done():
			end(nil)
			return
		case <-deadline.C:
			end(nil)
			return
		case <-silence.C:
			if len(results) == 0 && partial == "" {
				end(capture.ErrNoSpeech)
				return
			}
		case pcm := <-frames:
			var res voskResult
			if rec.AcceptWaveform(pcm) != 0 {
				if err := json.Unmarshal([]byte(rec.Result()), &res); err != nil {
					r.log.Warn("vosk result", "err", err)
					continue
				}
				partial = ""
				if text := strings.TrimSpace(res.Text); text != "" {
					results = append(results, capture.Result{Transcript: text, Final: true})
					emit()
				}
				continue
			}
			if err := json.Unmarshal([]byte(rec.PartialResult()), &res); err != nil {
				continue
			}
			if p := strings.TrimSpace(res.Partial); p != partial {
				partial = p
				if !silence.Stop() {
					select {
					case <-silence.C:
					default:
					}
				}
				silence.Reset(SilenceTimeout)
				emit()
			}
		}
	}
}

// Stop ends the current run. End is still delivered.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Close stops any run and frees the model and stream.
func (r *Recognizer) Close() error {
	r.Stop()

	r.mu.Lock()
	done := r.done
	stream := r.stream
	model := r.model
	r.stream, r.model = nil, nil
	r.mu.Unlock()

	if done != nil {
		<-done
	}
	if model != nil {
		model.Free()
	}
	if stream != nil {
		return stream.Close()
	}
	return nil
}
