package piper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgnsrekt/lingoloop/internal/cache"
	"github.com/dgnsrekt/lingoloop/tts"
	"github.com/dgnsrekt/lingoloop/tts/audio"
)

func TestVoiceFromModel(t *testing.T) {
	tests := []struct {
		file string
		want tts.Voice
		ok   bool
	}{
		{"en_US-lessac-medium.onnx", tts.Voice{Name: "en_US-lessac-medium", Language: "en-US", LocalService: true}, true},
		{"/voices/zh_CN-huayan-x_low.onnx", tts.Voice{Name: "zh_CN-huayan-x_low", Language: "zh-CN", LocalService: true}, true},
		{"en_US-lessac-medium.onnx.json", tts.Voice{}, false},
		{"README.md", tts.Voice{}, false},
		{"model.onnx", tts.Voice{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			got, ok := VoiceFromModel(tt.file)
			if ok != tt.ok || got != tt.want {
				t.Errorf("VoiceFromModel(%q) = %+v, %v; want %+v, %v", tt.file, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func touch(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestVoiceDirScan(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "fr_FR-siwis-medium.onnx"), "")
	touch(t, filepath.Join(dir, "en_US-lessac-medium.onnx"), "")
	touch(t, filepath.Join(dir, "en_US-lessac-medium.onnx.json"), `{"audio":{"sample_rate":16000}}`)
	touch(t, filepath.Join(dir, "notes.txt"), "")

	d, err := OpenVoiceDir(dir, nil)
	if err != nil {
		t.Fatalf("OpenVoiceDir() error = %v", err)
	}
	defer d.Close()

	voices := d.Voices()
	if len(voices) != 2 || voices[0].Name != "en_US-lessac-medium" || voices[1].Language != "fr-FR" {
		t.Fatalf("Voices() = %+v", voices)
	}

	en, _ := d.ModelPath("en_US-lessac-medium")
	if got := d.SampleRate(en); got != 16000 {
		t.Errorf("SampleRate() = %d, want 16000", got)
	}
	fr, _ := d.ModelPath("fr_FR-siwis-medium")
	if got := d.SampleRate(fr); got != DefaultSampleRate {
		t.Errorf("SampleRate() without config = %d, want %d", got, DefaultSampleRate)
	}
}

func TestVoiceDirWatchesNewModels(t *testing.T) {
	dir := t.TempDir()
	d, err := OpenVoiceDir(dir, nil)
	if err != nil {
		t.Fatalf("OpenVoiceDir() error = %v", err)
	}
	defer d.Close()

	touch(t, filepath.Join(dir, "de_DE-thorsten-high.onnx"), "")

	deadline := time.Now().Add(2 * time.Second)
	for len(d.Voices()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("new model was not picked up")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if _, ok := d.ModelPath("de_DE-thorsten-high"); !ok {
		t.Error("ModelPath() missing for new model")
	}
}

func TestOpenVoiceDirMissing(t *testing.T) {
	if _, err := OpenVoiceDir(filepath.Join(t.TempDir(), "nope"), nil); err == nil {
		t.Error("OpenVoiceDir() on missing dir succeeded")
	}
}

type fakePlayer struct {
	mu      sync.Mutex
	played  [][]byte
	formats []audio.Format
	stops   int
}

func (p *fakePlayer) PlayPCM(ctx context.Context, pcm []byte, format audio.Format) error {
	p.mu.Lock()
	p.played = append(p.played, pcm)
	p.formats = append(p.formats, format)
	p.mu.Unlock()
	return ctx.Err()
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	p.stops++
	p.mu.Unlock()
}

// fakePiper writes a shell script standing in for the piper binary.
func fakePiper(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "piper")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestEngine(t *testing.T, script string, c *cache.AudioCache) (*Engine, *fakePlayer) {
	t.Helper()
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "en_US-lessac-medium.onnx"), "")
	voices, err := OpenVoiceDir(dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { voices.Close() })

	player := &fakePlayer{}
	config := tts.PiperConfig{Binary: fakePiper(t, script), VoicesDir: dir, Timeout: 5 * time.Second}
	return New(config, voices, player, c, nil), player
}

func TestSpeakRunsPiper(t *testing.T) {
	e, player := newTestEngine(t, `cat >/dev/null; printf '%s ' "$@"`, nil)

	err := e.Speak(context.Background(), tts.Utterance{Text: "hello", Language: "en-US", Rate: 2})
	if err != nil {
		t.Fatalf("Speak() error = %v", err)
	}
	if len(player.played) != 1 {
		t.Fatalf("played %d clips, want 1", len(player.played))
	}
	args := string(player.played[0])
	for _, want := range []string{"--model", "en_US-lessac-medium.onnx", "--output-raw", "--length-scale 0.50"} {
		if !strings.Contains(args, want) {
			t.Errorf("piper args %q missing %q", args, want)
		}
	}
	if player.formats[0] != (audio.Format{SampleRate: DefaultSampleRate, Channels: 1}) {
		t.Errorf("format = %+v", player.formats[0])
	}
}

func TestSpeakUsesCache(t *testing.T) {
	config := cache.DefaultConfig()
	config.Dir = t.TempDir()
	c, err := cache.Open(config, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	counter := filepath.Join(t.TempDir(), "runs")
	e, player := newTestEngine(t, `cat >/dev/null; echo run >> `+counter+`; printf pcm`, c)

	u := tts.Utterance{Text: "again", Language: "en-US", Rate: 1}
	for i := 0; i < 2; i++ {
		if err := e.Speak(context.Background(), u); err != nil {
			t.Fatalf("Speak() #%d error = %v", i, err)
		}
	}
	runs, _ := os.ReadFile(counter)
	if string(runs) != "run\n" {
		t.Errorf("piper ran %q, want once", runs)
	}
	if len(player.played) != 2 || string(player.played[1]) != "pcm" {
		t.Errorf("played = %q", player.played)
	}
}

func TestSpeakErrors(t *testing.T) {
	t.Run("no voice for language", func(t *testing.T) {
		e, _ := newTestEngine(t, `printf pcm`, nil)
		err := e.Speak(context.Background(), tts.Utterance{Text: "bonjour", Language: "fr-FR"})
		if !errors.Is(err, tts.ErrVoiceNotFound) {
			t.Errorf("Speak() error = %v, want ErrVoiceNotFound", err)
		}
	})
	t.Run("piper fails", func(t *testing.T) {
		e, _ := newTestEngine(t, `echo broken >&2; exit 1`, nil)
		err := e.Speak(context.Background(), tts.Utterance{Text: "hello", Language: "en"})
		if !errors.Is(err, tts.ErrSynthesisFailed) {
			t.Errorf("Speak() error = %v, want ErrSynthesisFailed", err)
		}
	})
	t.Run("no output", func(t *testing.T) {
		e, _ := newTestEngine(t, `cat >/dev/null`, nil)
		err := e.Speak(context.Background(), tts.Utterance{Text: "hello", Language: "en"})
		if !errors.Is(err, tts.ErrSynthesisFailed) {
			t.Errorf("Speak() error = %v, want ErrSynthesisFailed", err)
		}
	})
	t.Run("empty text", func(t *testing.T) {
		e, player := newTestEngine(t, `printf pcm`, nil)
		if err := e.Speak(context.Background(), tts.Utterance{Text: "  "}); err != nil {
			t.Errorf("Speak() error = %v", err)
		}
		if len(player.played) != 0 {
			t.Error("empty text was played")
		}
	})
}

func TestCancelKillsPiper(t *testing.T) {
	e, player := newTestEngine(t, `exec sleep 10`, nil)

	errc := make(chan error, 1)
	go func() {
		errc <- e.Speak(context.Background(), tts.Utterance{Text: "slow", Language: "en-US"})
	}()
	time.Sleep(100 * time.Millisecond)
	e.Cancel()

	select {
	case err := <-errc:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Speak() error = %v, want context.Canceled", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Cancel() did not stop piper")
	}
	if player.stops != 1 {
		t.Errorf("player stopped %d times, want 1", player.stops)
	}
}
