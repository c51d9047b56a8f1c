package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/lingoloop/capture/device"
	"github.com/dgnsrekt/lingoloop/capture/vosk"
	"github.com/dgnsrekt/lingoloop/internal/cache"
	"github.com/dgnsrekt/lingoloop/tts"
	"github.com/dgnsrekt/lingoloop/tts/engines/mock"
	"github.com/dgnsrekt/lingoloop/tts/engines/piper"
)

var voicesLang string

var voicesCmd = &cobra.Command{
	Use:     "voices",
	Short:   "List the voices of the configured engine",
	Long:    paragraph(fmt.Sprintf("\n%s the installed voices. With --lang, the voice a sentence in that language would use is marked.", keyword("List"))),
	Example: paragraph("lingoloop voices\nlingoloop voices --lang zh-CN\nlingoloop voices -e piper"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		cfg, err := tts.LoadConfigFromViper()
		if err != nil {
			return err
		}
		provider, closer, err := voiceProvider(cfg)
		if err != nil {
			return err
		}
		defer closer() //nolint:errcheck
		return printVoices(os.Stdout, tts.NewVoiceCatalog(provider), voicesLang, cfg.Playback.PreferredVoice)
	},
}

var checkCmd = &cobra.Command{
	Use:     "check",
	Short:   "Check that speech output and capture work",
	Long:    paragraph(fmt.Sprintf("\n%s the speech engine, its voices, the audio cache and the microphone.", keyword("Check"))),
	Example: paragraph("lingoloop check\nlingoloop check -e piper"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := tts.LoadConfigFromViper()
		if err != nil {
			return err
		}
		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()
		return runChecks(ctx, os.Stdout, cfg)
	},
}

func init() {
	voicesCmd.Flags().StringVarP(&voicesLang, "lang", "l", "", "mark the voice picked for this language")
}

// voiceProvider opens the voice source of the configured engine.
func voiceProvider(cfg tts.Config) (tts.VoiceProvider, func() error, error) {
	if cfg.Engine != "piper" {
		return mock.New(cfg.Mock), func() error { return nil }, nil
	}
	dir, err := piper.OpenVoiceDir(cfg.Piper.VoicesDir, log.Default())
	if err != nil {
		return nil, nil, fmt.Errorf("piper voices: %w", err)
	}
	return dir, dir.Close, nil
}

func printVoices(w io.Writer, catalog *tts.VoiceCatalog, lang, preferred string) error {
	voices := catalog.Voices()
	if len(voices) == 0 {
		_, err := fmt.Fprintln(w, "No voices installed.")
		return err
	}

	var picked tts.Voice
	if lang != "" {
		v, ok := catalog.Resolve(lang, preferred)
		if !ok {
			return fmt.Errorf("%w: no voice for %q", tts.ErrVoiceNotFound, lang)
		}
		picked = v
	}

	for _, v := range voices {
		marker := " "
		name := v.Name
		if lang != "" && v == picked {
			marker = keyword("▶")
			name = keyword(name)
		}
		where := "online"
		if v.LocalService {
			where = "local"
		}
		if _, err := fmt.Fprintf(w, "%s %-32s %-8s %s\n", marker, name, v.Language, faint(where)); err != nil {
			return err
		}
	}
	return nil
}

// check is one line of the check report.
type check struct {
	name string
	run  func(ctx context.Context) (string, error)
}

func runChecks(ctx context.Context, w io.Writer, cfg tts.Config) error {
	checks := []check{
		{"engine", func(ctx context.Context) (string, error) { return checkEngine(ctx, cfg) }},
		{"voices", func(context.Context) (string, error) { return checkVoices(cfg) }},
		{"cache", func(context.Context) (string, error) { return checkCache(cfg) }},
		{"microphone", func(ctx context.Context) (string, error) { return checkMicrophone(ctx, cfg) }},
		{"recognizer", func(context.Context) (string, error) { return checkRecognizer(cfg) }},
	}

	var errs []error
	for _, c := range checks {
		detail, err := c.run(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
			fmt.Fprintf(w, "%s %-11s %s\n", failed("✗"), c.name, failed(err.Error())) //nolint:errcheck
			continue
		}
		fmt.Fprintf(w, "%s %-11s %s\n", keyword("✓"), c.name, faint(detail)) //nolint:errcheck
	}
	return errors.Join(errs...)
}

func checkEngine(ctx context.Context, cfg tts.Config) (string, error) {
	if cfg.Engine != "piper" {
		return "mock (silent)", nil
	}
	if err := piper.New(cfg.Piper, nil, nil, nil, log.Default()).Check(ctx); err != nil {
		return "", err
	}
	return "piper at " + cfg.Piper.Binary, nil
}

func checkVoices(cfg tts.Config) (string, error) {
	provider, closer, err := voiceProvider(cfg)
	if err != nil {
		return "", err
	}
	defer closer() //nolint:errcheck

	voices := provider.Voices()
	if len(voices) == 0 {
		return "", tts.ErrVoiceNotFound
	}
	langs := map[string]bool{}
	var list []string
	for _, v := range voices {
		base := tts.BaseLanguage(v.Language)
		if !langs[base] {
			langs[base] = true
			list = append(list, base)
		}
	}
	return fmt.Sprintf("%d voices (%s)", len(voices), strings.Join(list, ", ")), nil
}

func checkCache(cfg tts.Config) (string, error) {
	dir := cfg.Cache.Dir
	if dir == "" {
		d, err := gap.NewScope(gap.User, "lingoloop").CacheDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(d, "audio")
	}
	c := cache.DefaultConfig()
	c.Dir = dir
	c.DiskCapacity = int64(cfg.Cache.MaxSizeMB) * 1024 * 1024
	c.CompressionLevel = cfg.Cache.CompressionLevel
	ac, err := cache.Open(c, log.Default())
	if err != nil {
		return "", err
	}
	defer ac.Close() //nolint:errcheck
	return fmt.Sprintf("%s: %s", dir, ac.Stats(cache.LevelDisk)), nil
}

func checkMicrophone(ctx context.Context, cfg tts.Config) (string, error) {
	mic := device.NewMicrophone(cfg.Capture.SampleRate, log.Default())
	defer mic.Terminate() //nolint:errcheck

	s, err := mic.OpenStream(ctx)
	if err != nil {
		return "", err
	}
	if err := s.Close(); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d Hz mono", s.Format().SampleRate), nil
}

func checkRecognizer(cfg tts.Config) (string, error) {
	switch {
	case cfg.Capture.Recognizer == "none":
		return "disabled", nil
	case !vosk.Available:
		return "", errors.New("built without vosk (rebuild with -tags vosk)")
	}
	if _, err := os.Stat(cfg.Capture.VoskModel); err != nil {
		return "", fmt.Errorf("vosk model: %w", err)
	}
	return "vosk model " + cfg.Capture.VoskModel, nil
}
