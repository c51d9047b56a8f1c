// Package playlist reads sentence lists from disk for the scheduler.
//
// YAML playlists carry metadata, settings and sentences. JSON playlist
// exports are valid YAML and load the same way. Plain text playlists
// alternate target and native lines. Markdown articles are split into
// target-only sentences.
package playlist

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/lingoloop/playback"
)

// Playlist errors.
var (
	ErrInvalidFormat = errors.New("invalid playlist format")
	ErrNoSentences   = errors.New("playlist has no sentences")
)

// Default languages for text playlists that do not name any.
const (
	DefaultTargetLang = "en-US"
	DefaultNativeLang = "zh-CN"
)

// Playlist is a loaded sentence list.
type Playlist struct {
	Name        string
	Icon        string
	Description string
	TargetLang  string
	NativeLang  string
	Sentences   []playback.Sentence

	settings fileSettings
}

// Settings returns the playlist's settings layered over defaults.
func (p *Playlist) Settings(defaults playback.Settings) playback.Settings {
	s := defaults
	f := p.settings
	if f.RepeatCount != nil {
		s.RepeatCount = *f.RepeatCount
	}
	if f.PauseDuration != nil {
		s.PauseDuration = time.Duration(*f.PauseDuration * float64(time.Second))
	}
	if f.SpeechRate != nil {
		s.SpeechRate = *f.SpeechRate
	}
	if f.PreferredVoice != nil {
		s.PreferredVoice = *f.PreferredVoice
	}
	if f.SpeakNative != nil {
		s.SpeakNative = *f.SpeakNative
	}
	if f.Loop != nil {
		s.Loop = *f.Loop
	}
	return s
}

// fileSettings mirrors Settings with optional fields. Pause is in seconds.
type fileSettings struct {
	RepeatCount    *int     `yaml:"repeatCount"`
	PauseDuration  *float64 `yaml:"pauseDuration"`
	SpeechRate     *float64 `yaml:"speechRate"`
	PreferredVoice *string  `yaml:"preferredVoice"`
	SpeakNative    *bool    `yaml:"speakNative"`
	Loop           *bool    `yaml:"loop"`
}

type fileSentence struct {
	TargetText  string `yaml:"targetText"`
	NativeText  string `yaml:"nativeText"`
	TargetLang  string `yaml:"targetLang"`
	NativeLang  string `yaml:"nativeLang"`
	CustomAudio string `yaml:"customAudio"` // Base64 or data: URL
	AudioFile   string `yaml:"audioFile"`   // Relative to the playlist file
	Order       *int   `yaml:"order"`
}

type file struct {
	Version     int    `yaml:"version"`
	Name        string `yaml:"name"`
	Icon        string `yaml:"icon"`
	Description string `yaml:"description"`
	TargetLang  string `yaml:"targetLang"`
	NativeLang  string `yaml:"nativeLang"`

	// Exports nest the metadata.
	Playlist *struct {
		Name       string `yaml:"name"`
		TargetLang string `yaml:"targetLang"`
		NativeLang string `yaml:"nativeLang"`
	} `yaml:"playlist"`

	Settings  fileSettings   `yaml:"settings"`
	Sentences []fileSentence `yaml:"sentences"`
}

// Load reads a playlist file, choosing the format by extension. Text files
// use the default languages.
func Load(path string) (*Playlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".text":
		return ParseText(bytes.NewReader(data), name, DefaultTargetLang, DefaultNativeLang)
	case ".md", ".markdown":
		return ParseMarkdown(string(data), name, DefaultTargetLang)
	default:
		p, err := Parse(data, filepath.Dir(path))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if p.Name == "" {
			p.Name = name
		}
		return p, nil
	}
}

// Parse decodes a YAML or JSON playlist. dir resolves audioFile entries.
func Parse(data []byte, dir string) (*Playlist, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}

	p := &Playlist{
		Name:        f.Name,
		Icon:        f.Icon,
		Description: f.Description,
		TargetLang:  f.TargetLang,
		NativeLang:  f.NativeLang,
		settings:    f.Settings,
	}
	if f.Playlist != nil {
		p.Name = firstNonEmpty(p.Name, f.Playlist.Name)
		p.TargetLang = firstNonEmpty(p.TargetLang, f.Playlist.TargetLang)
		p.NativeLang = firstNonEmpty(p.NativeLang, f.Playlist.NativeLang)
	}

	// Sentences without an order keep their file position.
	entries := f.Sentences
	keys := make(map[*fileSentence]int, len(entries))
	for i := range entries {
		keys[&entries[i]] = orderOf(entries[i], i)
	}
	ordered := make([]*fileSentence, len(entries))
	for i := range entries {
		ordered[i] = &entries[i]
	}
	sort.SliceStable(ordered, func(i, j int) bool { return keys[ordered[i]] < keys[ordered[j]] })

	for i, e := range ordered {
		if strings.TrimSpace(e.TargetText) == "" {
			return nil, fmt.Errorf("%w: sentence %d has no target text", ErrInvalidFormat, i+1)
		}
		s := playback.Sentence{
			TargetText: e.TargetText,
			NativeText: e.NativeText,
			TargetLang: firstNonEmpty(e.TargetLang, p.TargetLang),
			NativeLang: firstNonEmpty(e.NativeLang, p.NativeLang),
		}
		clip, err := loadAudio(*e, dir)
		if err != nil {
			return nil, fmt.Errorf("sentence %d: %w", i+1, err)
		}
		s.CustomAudio = clip
		p.Sentences = append(p.Sentences, s)
	}
	if len(p.Sentences) == 0 {
		return nil, ErrNoSentences
	}
	if err := p.Settings(playback.DefaultSettings()).Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ParseText reads alternating target and native lines. Blank lines are
// ignored; an odd number of lines is an error.
func ParseText(r io.Reader, name, targetLang, nativeLang string) (*Playlist, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrNoSentences
	}
	if len(lines)%2 != 0 {
		return nil, fmt.Errorf("%w: each sentence needs a target and a native line, got %d lines", ErrInvalidFormat, len(lines))
	}

	p := &Playlist{Name: name, TargetLang: targetLang, NativeLang: nativeLang}
	for i := 0; i < len(lines); i += 2 {
		p.Sentences = append(p.Sentences, playback.Sentence{
			TargetText: lines[i],
			NativeText: lines[i+1],
			TargetLang: targetLang,
			NativeLang: nativeLang,
		})
	}
	return p, nil
}

// WriteText writes sentences in the text format.
func WriteText(w io.Writer, sentences []playback.Sentence) error {
	bw := bufio.NewWriter(w)
	for _, s := range sentences {
		if _, err := fmt.Fprintf(bw, "%s\n%s\n", s.TargetText, s.NativeText); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func loadAudio(e fileSentence, dir string) ([]byte, error) {
	switch {
	case e.AudioFile != "":
		path := e.AudioFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		return os.ReadFile(path)
	case e.CustomAudio != "":
		data := e.CustomAudio
		if strings.HasPrefix(data, "data:") {
			_, payload, ok := strings.Cut(data, ",")
			if !ok {
				return nil, fmt.Errorf("%w: malformed data URL", ErrInvalidFormat)
			}
			data = payload
		}
		clip, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("%w: custom audio: %v", ErrInvalidFormat, err)
		}
		return clip, nil
	}
	return nil, nil
}

func orderOf(e fileSentence, i int) int {
	if e.Order != nil {
		return *e.Order
	}
	return i
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
