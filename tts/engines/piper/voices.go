package piper

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"github.com/dgnsrekt/lingoloop/tts"
)

// DefaultSampleRate is used when a model has no readable config.
const DefaultSampleRate = 22050

// VoiceFromModel derives a voice from a model file name such as
// "en_US-lessac-medium.onnx". It returns false for other files.
func VoiceFromModel(path string) (tts.Voice, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".onnx") {
		return tts.Voice{}, false
	}
	name := strings.TrimSuffix(base, ".onnx")
	locale, _, ok := strings.Cut(name, "-")
	if !ok || locale == "" {
		return tts.Voice{}, false
	}
	return tts.Voice{
		Name:         name,
		Language:     strings.ReplaceAll(locale, "_", "-"),
		LocalService: true,
	}, true
}

// modelConfig is the part of a model's .onnx.json we read.
type modelConfig struct {
	Audio struct {
		SampleRate int `json:"sample_rate"`
	} `json:"audio"`
}

// VoiceDir lists the models in a directory and keeps the list current while
// files are added or removed. It implements tts.VoiceProvider.
type VoiceDir struct {
	dir string
	log *log.Logger

	mu     sync.RWMutex
	voices []tts.Voice
	paths  map[string]string // Voice name to model path

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// OpenVoiceDir scans dir and starts watching it.
func OpenVoiceDir(dir string, logger *log.Logger) (*VoiceDir, error) {
	if logger == nil {
		logger = log.Default()
	}
	d := &VoiceDir{dir: dir, log: logger, done: make(chan struct{})}
	if err := d.Refresh(); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, err
	}
	d.watcher = w
	go d.watch()
	return d, nil
}

// Voices returns the installed voices sorted by name.
func (d *VoiceDir) Voices() []tts.Voice {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]tts.Voice(nil), d.voices...)
}

// ModelPath returns the model file for a voice name.
func (d *VoiceDir) ModelPath(name string) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.paths[name]
	return p, ok
}

// SampleRate reads the output rate from the model's JSON config.
func (d *VoiceDir) SampleRate(modelPath string) int {
	data, err := os.ReadFile(modelPath + ".json")
	if err != nil {
		return DefaultSampleRate
	}
	var c modelConfig
	if err := json.Unmarshal(data, &c); err != nil || c.Audio.SampleRate <= 0 {
		return DefaultSampleRate
	}
	return c.Audio.SampleRate
}

// Refresh rescans the directory.
func (d *VoiceDir) Refresh() error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return err
	}

	var voices []tts.Voice
	paths := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if v, ok := VoiceFromModel(e.Name()); ok {
			voices = append(voices, v)
			paths[v.Name] = filepath.Join(d.dir, e.Name())
		}
	}
	sort.Slice(voices, func(i, j int) bool { return voices[i].Name < voices[j].Name })

	d.mu.Lock()
	d.voices, d.paths = voices, paths
	d.mu.Unlock()
	d.log.Debug("piper voices scanned", "dir", d.dir, "count", len(voices))
	return nil
}

// Close stops watching.
func (d *VoiceDir) Close() error {
	if d.watcher == nil {
		return nil
	}
	err := d.watcher.Close()
	<-d.done
	return err
}

func (d *VoiceDir) watch() {
	defer close(d.done)
	for {
		select {
		case ev, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(ev.Name, ".onnx") {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				if err := d.Refresh(); err != nil {
					d.log.Warn("rescan piper voices", "err", err)
				}
			}
		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			if !errors.Is(err, fsnotify.ErrEventOverflow) {
				d.log.Warn("voice dir watcher", "err", err)
				continue
			}
			_ = d.Refresh()
		}
	}
}
