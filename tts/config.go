package tts

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Config contains all speech configuration options.
type Config struct {
	// Global settings
	Engine string  `yaml:"engine" env:"LINGOLOOP_ENGINE"`
	Volume float64 `yaml:"volume" env:"LINGOLOOP_VOLUME"`
	Notify bool    `yaml:"notify" env:"LINGOLOOP_NOTIFY"`

	// Playback defaults applied when a playlist carries no settings
	Playback PlaybackConfig `yaml:"playback"`

	// Speech capture
	Capture CaptureConfig `yaml:"capture"`

	// Synthesized audio cache
	Cache CacheConfig `yaml:"cache"`

	// Engine-specific configurations
	Piper PiperConfig `yaml:"piper"`
	Mock  MockConfig  `yaml:"mock"`
}

// PlaybackConfig holds default playlist settings.
type PlaybackConfig struct {
	RepeatCount    int           `yaml:"repeat_count" env:"LINGOLOOP_REPEAT_COUNT"`
	Pause          time.Duration `yaml:"pause" env:"LINGOLOOP_PAUSE"`
	SpeechRate     float64       `yaml:"speech_rate" env:"LINGOLOOP_SPEECH_RATE"`
	PreferredVoice string        `yaml:"preferred_voice" env:"LINGOLOOP_PREFERRED_VOICE"`
	SpeakNative    bool          `yaml:"speak_native" env:"LINGOLOOP_SPEAK_NATIVE"`
	Loop           bool          `yaml:"loop" env:"LINGOLOOP_LOOP"`
}

// CaptureConfig holds microphone and recognizer settings.
type CaptureConfig struct {
	Recognizer string `yaml:"recognizer" env:"LINGOLOOP_RECOGNIZER"`
	VoskModel  string `yaml:"vosk_model" env:"LINGOLOOP_VOSK_MODEL"`
	SampleRate int    `yaml:"sample_rate" env:"LINGOLOOP_CAPTURE_SAMPLE_RATE"`
}

// CacheConfig holds synthesized audio cache settings.
type CacheConfig struct {
	Dir              string `yaml:"dir" env:"LINGOLOOP_CACHE_DIR"`
	MaxSizeMB        int    `yaml:"max_size" env:"LINGOLOOP_CACHE_MAX_SIZE"`
	CompressionLevel int    `yaml:"compression_level" env:"LINGOLOOP_CACHE_COMPRESSION"`
}

// PiperConfig contains Piper engine specific settings.
type PiperConfig struct {
	Binary    string        `yaml:"binary" env:"LINGOLOOP_PIPER_BINARY"`
	VoicesDir string        `yaml:"voices_dir" env:"LINGOLOOP_PIPER_VOICES_DIR"`
	Timeout   time.Duration `yaml:"timeout" env:"LINGOLOOP_PIPER_TIMEOUT"`
}

// MockConfig contains Mock engine settings for testing and demos.
type MockConfig struct {
	WordsPerMinute int      `yaml:"words_per_minute" env:"LINGOLOOP_MOCK_WORDS_PER_MINUTE"`
	Voices         []string `yaml:"voices" env:"LINGOLOOP_MOCK_VOICES" envSeparator:","`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Engine: "mock",
		Volume: 1.0,

		Playback: PlaybackConfig{
			RepeatCount: 2,
			Pause:       time.Second,
			SpeechRate:  1.0,
			Loop:        true,
		},
		Capture: CaptureConfig{
			Recognizer: "none",
			SampleRate: 16000,
		},
		Cache: CacheConfig{
			MaxSizeMB:        100,
			CompressionLevel: 3,
		},

		Piper: DefaultPiperConfig(),
		Mock:  DefaultMockConfig(),
	}
}

// DefaultPiperConfig returns default Piper configuration.
func DefaultPiperConfig() PiperConfig {
	cfg := PiperConfig{
		Binary:  "piper",
		Timeout: 30 * time.Second,
	}

	// Try to detect common Piper installation paths
	if runtime.GOOS == "linux" {
		cfg.VoicesDir = filepath.Join("/usr", "share", "piper", "voices")
	} else if runtime.GOOS == "darwin" {
		cfg.VoicesDir = filepath.Join("/usr", "local", "share", "piper", "voices")
	}

	return cfg
}

// DefaultMockConfig returns default Mock configuration.
func DefaultMockConfig() MockConfig {
	return MockConfig{
		WordsPerMinute: 150,
		Voices:         []string{"en-US", "en-GB", "zh-CN", "fr-FR"},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	validEngines := []string{"mock", "piper"}
	if !oneOf(&c.Engine, validEngines) {
		return fmt.Errorf("%w: engine '%s' must be one of %v", ErrInvalidConfig, c.Engine, validEngines)
	}

	if c.Volume < 0.0 || c.Volume > 2.0 {
		return fmt.Errorf("%w: volume must be between 0.0 and 2.0, got %f", ErrInvalidConfig, c.Volume)
	}

	if err := c.Playback.Validate(); err != nil {
		return fmt.Errorf("playback config: %w", err)
	}
	if err := c.Capture.Validate(); err != nil {
		return fmt.Errorf("capture config: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache config: %w", err)
	}

	switch c.Engine {
	case "piper":
		if err := c.Piper.Validate(); err != nil {
			return fmt.Errorf("piper config: %w", err)
		}
	case "mock":
		if err := c.Mock.Validate(); err != nil {
			return fmt.Errorf("mock config: %w", err)
		}
	}

	return nil
}

// Validate checks the playback defaults.
func (c *PlaybackConfig) Validate() error {
	if c.RepeatCount < 1 {
		return fmt.Errorf("%w: repeat_count must be at least 1, got %d", ErrInvalidConfig, c.RepeatCount)
	}
	if c.Pause < 0 {
		return fmt.Errorf("%w: pause cannot be negative, got %v", ErrInvalidConfig, c.Pause)
	}
	if c.SpeechRate <= 0 || c.SpeechRate > 4.0 {
		return fmt.Errorf("%w: speech_rate must be in (0, 4.0], got %f", ErrInvalidConfig, c.SpeechRate)
	}
	return nil
}

// Validate checks the capture settings.
func (c *CaptureConfig) Validate() error {
	validRecognizers := []string{"none", "vosk"}
	if !oneOf(&c.Recognizer, validRecognizers) {
		return fmt.Errorf("%w: recognizer '%s' must be one of %v", ErrInvalidConfig, c.Recognizer, validRecognizers)
	}
	if c.Recognizer == "vosk" && c.VoskModel == "" {
		return fmt.Errorf("%w: vosk_model is required for the vosk recognizer", ErrInvalidConfig)
	}
	if c.SampleRate != 8000 && c.SampleRate != 16000 && c.SampleRate != 44100 && c.SampleRate != 48000 {
		return fmt.Errorf("%w: unsupported capture sample rate %d", ErrInvalidConfig, c.SampleRate)
	}
	return nil
}

// Validate checks the cache settings.
func (c *CacheConfig) Validate() error {
	if c.MaxSizeMB < 1 || c.MaxSizeMB > 10000 {
		return fmt.Errorf("%w: cache max_size must be between 1 and 10000 MB, got %d", ErrInvalidConfig, c.MaxSizeMB)
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 4 {
		return fmt.Errorf("%w: compression_level must be between 0 and 4, got %d", ErrInvalidConfig, c.CompressionLevel)
	}
	return nil
}

// Validate checks if the Piper configuration is valid.
func (c *PiperConfig) Validate() error {
	if c.Binary == "" {
		return fmt.Errorf("%w: piper binary path cannot be empty", ErrInvalidConfig)
	}
	if c.VoicesDir == "" {
		return fmt.Errorf("%w: piper voices_dir cannot be empty", ErrInvalidConfig)
	}
	if c.Timeout < time.Second {
		return fmt.Errorf("%w: timeout must be at least 1 second, got %v", ErrInvalidConfig, c.Timeout)
	}
	return nil
}

// Validate checks if the Mock configuration is valid.
func (c *MockConfig) Validate() error {
	if c.WordsPerMinute < 50 || c.WordsPerMinute > 500 {
		return fmt.Errorf("%w: words_per_minute must be between 50 and 500, got %d", ErrInvalidConfig, c.WordsPerMinute)
	}
	return nil
}

// oneOf normalizes *s to lowercase when it case-insensitively matches one of
// the valid values.
func oneOf(s *string, valid []string) bool {
	for _, v := range valid {
		if strings.EqualFold(*s, v) {
			*s = v
			return true
		}
	}
	return false
}
