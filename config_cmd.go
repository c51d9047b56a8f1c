package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/charmbracelet/x/editor"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const defaultConfig = `# speech engine: mock or piper
engine: "mock"
# output volume (0.0 to 2.0)
volume: 1.0
# desktop notification when the sleep timer fires or the playlist ends
notify: false

# defaults for playlists that carry no settings of their own
playback:
  # times each sentence is played
  repeat_count: 2
  # silence between repetitions and sentences
  pause: "1s"
  # speech rate multiplier (0 to 4.0]
  speech_rate: 1.0
  # voice name for the target language, empty picks one
  preferred_voice: ""
  # speak the native rendering after each sentence
  speak_native: false
  # start over after the last sentence
  loop: true

# microphone and speech recognition
capture:
  # recognizer: none or vosk (needs a build with -tags vosk)
  recognizer: "none"
  # vosk_model: "/path/to/vosk-model-small-en-us"
  sample_rate: 16000

# synthesized audio cache
cache:
  # dir: "/path/to/cache"
  # disk cache size in MB
  max_size: 100
  # zstd level, 0 disables compression
  compression_level: 3

# piper engine
piper:
  binary: "piper"
  # directory holding *.onnx voice models
  # voices_dir: "/usr/share/piper/voices"
  timeout: "30s"

# mock engine, silent, for demos
mock:
  words_per_minute: 150
  voices: ["en-US", "en-GB", "zh-CN", "fr-FR"]
`

var configCmd = &cobra.Command{
	Use:     "config",
	Hidden:  false,
	Short:   "Edit the lingoloop config file",
	Long:    paragraph(fmt.Sprintf("\n%s the lingoloop config file. We’ll use EDITOR to determine which editor to use. If the config file doesn't exist, it will be created.", keyword("Edit"))),
	Example: paragraph("lingoloop config\nlingoloop config --config path/to/config.yml"),
	Args:    cobra.NoArgs,
	RunE: func(*cobra.Command, []string) error {
		if err := ensureConfigFile(); err != nil {
			return err
		}

		c, err := editor.Cmd("lingoloop", configFile)
		if err != nil {
			return fmt.Errorf("unable to set config file: %w", err)
		}
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		if err := c.Run(); err != nil {
			return fmt.Errorf("unable to run command: %w", err)
		}

		fmt.Println("Wrote config file to:", configFile)
		return nil
	},
}

func ensureConfigFile() error {
	if configFile == "" {
		configFile = viper.GetViper().ConfigFileUsed()
		if err := os.MkdirAll(filepath.Dir(configFile), 0o755); err != nil { //nolint:gosec
			return fmt.Errorf("could not write configuration file: %w", err)
		}
	}

	if ext := path.Ext(configFile); ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("'%s' is not a supported configuration type: use '%s' or '%s'", ext, ".yaml", ".yml")
	}

	if _, err := os.Stat(configFile); errors.Is(err, fs.ErrNotExist) {
		// File doesn't exist yet, create all necessary directories and
		// write the default config file
		if err := os.MkdirAll(filepath.Dir(configFile), 0o700); err != nil {
			return fmt.Errorf("unable create directory: %w", err)
		}

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("unable to create config file: %w", err)
		}
		defer func() { _ = f.Close() }()

		if _, err := f.WriteString(defaultConfig); err != nil {
			return fmt.Errorf("unable to write config file: %w", err)
		}
	} else if err != nil { // some other error occurred
		return fmt.Errorf("unable to stat config file: %w", err)
	}
	return nil
}
