package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/dgnsrekt/lingoloop/playback"
	"github.com/dgnsrekt/lingoloop/playlist"
	"github.com/dgnsrekt/lingoloop/tts"
	"github.com/dgnsrekt/lingoloop/tts/engines/mock"
)

func TestApplyPlaybackFlags(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.IntP("repeat", "r", 0, "")
	flags.Duration("pause", 0, "")
	flags.Float64("rate", 0, "")
	flags.String("voice", "", "")
	flags.BoolP("native", "n", false, "")
	flags.Bool("loop", true, "")

	if err := flags.Parse([]string{"--repeat", "4", "--pause", "250ms", "--loop=false"}); err != nil {
		t.Fatal(err)
	}

	s := playback.Settings{RepeatCount: 1, PauseDuration: time.Second, SpeechRate: 0.8, SpeakNative: true, Loop: true}
	applyPlaybackFlags(flags, &s)

	want := playback.Settings{RepeatCount: 4, PauseDuration: 250 * time.Millisecond, SpeechRate: 0.8, SpeakNative: true}
	if s != want {
		t.Errorf("settings = %+v, want %+v", s, want)
	}
}

func TestPrintVoices(t *testing.T) {
	catalog := tts.NewVoiceCatalog(mock.New(tts.MockConfig{WordsPerMinute: 150, Voices: []string{"en-US", "zh-CN"}}))

	var b bytes.Buffer
	if err := printVoices(&b, catalog, "", ""); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	for _, want := range []string{"Mock en-US", "Mock zh-CN", "local", "online"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	b.Reset()
	if err := printVoices(&b, catalog, "zh", ""); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), "▶") {
		t.Errorf("picked voice not marked:\n%s", b.String())
	}

	if err := printVoices(&b, catalog, "fr-FR", ""); !errors.Is(err, tts.ErrVoiceNotFound) {
		t.Errorf("printVoices() error = %v, want ErrVoiceNotFound", err)
	}
}

func TestCheckRecognizerDisabled(t *testing.T) {
	cfg := tts.DefaultConfig()
	got, err := checkRecognizer(cfg)
	if err != nil || got != "disabled" {
		t.Errorf("checkRecognizer() = %q, %v", got, err)
	}
}

func TestListPlaylists(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"lesson.yaml":  "name: Travel\nsentences:\n  - targetText: Where is the station?\n    nativeText: 车站在哪里？\n",
		"words.txt":    "cat\n猫\ndog\n狗\n",
		"article.md":   "# Notes\n\nOne sentence here.\n",
		"config.yaml":  "engine: mock\n",
		"picture.png":  "not a playlist",
		"sub/more.yml": "sentences:\n  - targetText: Good night.\n",
	}
	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var b bytes.Buffer
	if err := listPlaylists(&b, dir, true); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	for _, want := range []string{"Travel", "1 sentences", "words", "2 sentences", "article", filepath.Join("sub", "more.yml")} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	for _, unwanted := range []string{"config.yaml", "picture.png"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("output lists %q:\n%s", unwanted, out)
		}
	}

	b.Reset()
	if err := listPlaylists(&b, t.TempDir(), true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(b.String(), "No playlists found.") {
		t.Errorf("empty dir output = %q", b.String())
	}
}

func TestPlaylistHeader(t *testing.T) {
	pl := &playlist.Playlist{
		Name:        "Travel",
		Description: "Phrases for **train stations**.",
		Sentences:   []playback.Sentence{{TargetText: "Where is the station?"}},
	}
	got, err := playlistHeader(pl)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Travel", "1 sentences", "train stations"} {
		if !strings.Contains(got, want) {
			t.Errorf("header missing %q:\n%s", want, got)
		}
	}

	pl.Description = ""
	got, err = playlistHeader(pl)
	if err != nil || strings.Count(got, "\n") != 2 {
		t.Errorf("header without description = %q, %v", got, err)
	}
}
