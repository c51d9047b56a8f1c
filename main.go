// Package main provides the entry point for the lingoloop CLI application.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/dgnsrekt/lingoloop/engine"
	"github.com/dgnsrekt/lingoloop/internal/notify"
	"github.com/dgnsrekt/lingoloop/playback"
	"github.com/dgnsrekt/lingoloop/playlist"
	"github.com/dgnsrekt/lingoloop/tts"
	"github.com/dgnsrekt/lingoloop/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	debug      bool
	headless   bool
	sleepAfter int
	startAt    int
	closeLog   = func() error { return nil }

	rootCmd = &cobra.Command{
		Use:   "lingoloop PLAYLIST",
		Short: "Loop bilingual sentences until they stick",
		Long: paragraph(
			fmt.Sprintf("\nPlay a playlist of sentence pairs aloud, %s.", keyword("again and again")),
		),
		Example: paragraph("lingoloop lessons/greetings.yaml\nlingoloop --repeat 3 --native lessons/export.txt"),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.ExactArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return []string{"yaml", "yml", "json", "txt"}, cobra.ShellCompDirectiveFilterFileExt
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

func validateOptions(cmd *cobra.Command) error {
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("unable to read config file: %w", err)
		}
	}

	debug = viper.GetBool("debug")
	if debug {
		closer, err := logToFile()
		if err != nil {
			return err
		}
		closeLog = closer
	}

	if sleepAfter < 0 {
		return fmt.Errorf("--sleep must not be negative, got %d", sleepAfter)
	}
	if startAt < 0 {
		return fmt.Errorf("--start must not be negative, got %d", startAt)
	}

	// The TUI needs a terminal on both ends.
	if !term.IsTerminal(int(os.Stdout.Fd())) || !term.IsTerminal(int(os.Stdin.Fd())) { //nolint:gosec
		headless = true
	}
	log.Debug("options validated", "command", cmd.Name(), "headless", headless)
	return nil
}

func execute(cmd *cobra.Command, args []string) error {
	cfg, err := tts.LoadConfigFromViper()
	if err != nil {
		return err
	}

	pl, err := playlist.Load(args[0])
	if err != nil {
		return err
	}

	cacheDir, err := gap.NewScope(gap.User, "lingoloop").CacheDir()
	if err != nil {
		log.Warn("no cache directory, caching in memory only", "err", err)
		cacheDir = ""
	}

	eng, err := engine.Open(cfg, cacheDir, log.Default())
	if err != nil {
		return fmt.Errorf("unable to start engine: %w", err)
	}
	defer func() {
		if err := eng.Close(); err != nil {
			log.Warn("shutdown", "err", err)
		}
	}()

	eng.LoadPlaylist(pl.Sentences)
	settings := pl.Settings(eng.Settings())
	applyPlaybackFlags(cmd.Flags(), &settings)
	if err := eng.SetPlaybackSettings(settings); err != nil {
		return fmt.Errorf("playlist %s: %w", pl.Name, err)
	}
	if startAt > 0 {
		eng.JumpToSentence(startAt - 1)
	}
	if sleepAfter > 0 {
		eng.SetSleepTimer(sleepAfter)
	}

	if cfg.Notify {
		id := eng.Subscribe(notify.New(pl.Name, log.Default()))
		defer eng.Unsubscribe(id)
	}

	if headless {
		return runHeadless(eng, pl)
	}
	return runTUI(eng, pl, cfg)
}

// applyPlaybackFlags lets flags given on the command line override the
// playlist's own settings.
func applyPlaybackFlags(flags *pflag.FlagSet, s *playback.Settings) {
	if flags.Changed("repeat") {
		s.RepeatCount, _ = flags.GetInt("repeat")
	}
	if flags.Changed("pause") {
		s.PauseDuration, _ = flags.GetDuration("pause")
	}
	if flags.Changed("rate") {
		s.SpeechRate, _ = flags.GetFloat64("rate")
	}
	if flags.Changed("voice") {
		s.PreferredVoice, _ = flags.GetString("voice")
	}
	if flags.Changed("native") {
		s.SpeakNative, _ = flags.GetBool("native")
	}
	if flags.Changed("loop") {
		s.Loop, _ = flags.GetBool("loop")
	}
}

// runHeadless plays the playlist, printing each sentence as it starts, until
// playback completes, the sleep timer fires or the process is interrupted.
func runHeadless(eng *engine.Engine, pl *playlist.Playlist) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan string, 1)
	var once sync.Once
	finish := func(reason string) { once.Do(func() { done <- reason }) }

	header, err := playlistHeader(pl)
	if err != nil {
		return err
	}
	fmt.Print(header)

	total := len(pl.Sentences)
	id := eng.Subscribe(playback.ListenerFunc(func(e playback.Event) {
		switch e := e.(type) {
		case playback.SentenceChange:
			if e.Repeat > 0 {
				return
			}
			fmt.Printf("%s %s\n", faint(fmt.Sprintf("[%d/%d]", e.Index+1, total)), e.Sentence.TargetText)
			if e.Sentence.NativeText != "" {
				fmt.Println("      " + faint(e.Sentence.NativeText))
			}
		case playback.PlaybackComplete:
			finish("complete")
		case playback.SleepTimerExpired:
			finish("sleep timer")
		}
	}))
	defer eng.Unsubscribe(id)

	start := time.Now()
	eng.Play()
	select {
	case <-ctx.Done():
		eng.Stop()
		log.Debug("interrupted")
	case reason := <-done:
		log.Debug("playback finished", "reason", reason, "took", time.Since(start).Round(time.Second))
	}
	return nil
}

// playlistHeader returns the playlist name followed by its description.
// Descriptions are markdown.
func playlistHeader(pl *playlist.Playlist) (string, error) {
	header := keyword(pl.Name) + faint(fmt.Sprintf(" · %d sentences", len(pl.Sentences))) + "\n"
	if strings.TrimSpace(pl.Description) == "" {
		return header + "\n", nil
	}
	desc, err := glamour.Render(pl.Description, "notty")
	if err != nil {
		return "", fmt.Errorf("rendering description: %w", err)
	}
	return header + desc, nil
}

func runTUI(eng *engine.Engine, pl *playlist.Playlist, cfg tts.Config) error {
	// Read environment to get display preferences
	config, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	config.Title = pl.Name
	config.Recognition = cfg.Capture.Recognizer != "none"

	if _, err := ui.NewProgram(config, eng, pl.Sentences).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	closeLog = closer
	if err := rootCmd.Execute(); err != nil {
		_ = closeLog()
		os.Exit(1)
	}
	_ = closeLog()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	tts.SetDefaults()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "write a debug log to the cache directory")
	rootCmd.PersistentFlags().StringP("engine", "e", "", "speech engine (mock or piper)")
	rootCmd.Flags().IntP("repeat", "r", 0, "times each sentence is played")
	rootCmd.Flags().Duration("pause", 0, "silence between repetitions")
	rootCmd.Flags().Float64("rate", 0, "speech rate multiplier")
	rootCmd.Flags().String("voice", "", "preferred voice name for the target language")
	rootCmd.Flags().BoolP("native", "n", false, "speak the native rendering after each sentence")
	rootCmd.Flags().Bool("loop", true, "start over after the last sentence")
	rootCmd.Flags().IntVarP(&sleepAfter, "sleep", "s", 0, "stop playback after this many minutes")
	rootCmd.Flags().IntVar(&startAt, "start", 0, "start at this sentence (1-based)")
	rootCmd.Flags().BoolVar(&headless, "headless", false, "print sentences instead of running the TUI")
	rootCmd.Flags().Bool("notify", false, "desktop notification when playback stops on its own")

	// Config bindings. Flags only count as set when given on the command
	// line, so they override the config file without masking it.
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("engine", rootCmd.PersistentFlags().Lookup("engine"))
	_ = viper.BindPFlag("notify", rootCmd.Flags().Lookup("notify"))
	_ = viper.BindPFlag("playback.repeat_count", rootCmd.Flags().Lookup("repeat"))
	_ = viper.BindPFlag("playback.pause", rootCmd.Flags().Lookup("pause"))
	_ = viper.BindPFlag("playback.speech_rate", rootCmd.Flags().Lookup("rate"))
	_ = viper.BindPFlag("playback.preferred_voice", rootCmd.Flags().Lookup("voice"))
	_ = viper.BindPFlag("playback.speak_native", rootCmd.Flags().Lookup("native"))
	_ = viper.BindPFlag("playback.loop", rootCmd.Flags().Lookup("loop"))

	rootCmd.AddCommand(configCmd, voicesCmd, checkCmd, listCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "lingoloop")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not load find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "lingoloop")}, dirs...)
	}

	if c := os.Getenv("LINGOLOOP_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("lingoloop")
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	configFile = filepath.Join(dirs[0], "lingoloop.yml")
	defer func() { configFile = "" }()
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
		return
	}
	viper.SetConfigFile(configFile)
	if err := viper.ReadInConfig(); err != nil {
		log.Warn("Could not parse default configuration", "err", err)
	}
}
