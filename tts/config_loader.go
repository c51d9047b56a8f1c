package tts

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// LoadConfigFromViper loads the configuration from Viper, then applies
// LINGOLOOP_* environment overrides on top.
func LoadConfigFromViper() (Config, error) {
	cfg := DefaultConfig()

	if viper.IsSet("engine") {
		cfg.Engine = viper.GetString("engine")
	}
	if viper.IsSet("volume") {
		cfg.Volume = viper.GetFloat64("volume")
	}
	if viper.IsSet("notify") {
		cfg.Notify = viper.GetBool("notify")
	}

	cfg.Playback = loadPlaybackConfig(cfg.Playback)
	cfg.Capture = loadCaptureConfig(cfg.Capture)
	cfg.Cache = loadCacheConfig(cfg.Cache)
	cfg.Piper = loadPiperConfig()
	cfg.Mock = loadMockConfig()

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}
	if err := expandPaths(&cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadPlaybackConfig(cfg PlaybackConfig) PlaybackConfig {
	if viper.IsSet("playback.repeat_count") {
		cfg.RepeatCount = viper.GetInt("playback.repeat_count")
	}
	if viper.IsSet("playback.pause") {
		cfg.Pause = parseDuration("playback.pause", cfg.Pause)
	}
	if viper.IsSet("playback.speech_rate") {
		cfg.SpeechRate = viper.GetFloat64("playback.speech_rate")
	}
	if viper.IsSet("playback.preferred_voice") {
		cfg.PreferredVoice = viper.GetString("playback.preferred_voice")
	}
	if viper.IsSet("playback.speak_native") {
		cfg.SpeakNative = viper.GetBool("playback.speak_native")
	}
	if viper.IsSet("playback.loop") {
		cfg.Loop = viper.GetBool("playback.loop")
	}
	return cfg
}

func loadCaptureConfig(cfg CaptureConfig) CaptureConfig {
	if viper.IsSet("capture.recognizer") {
		cfg.Recognizer = viper.GetString("capture.recognizer")
	}
	if viper.IsSet("capture.vosk_model") {
		cfg.VoskModel = viper.GetString("capture.vosk_model")
	}
	if viper.IsSet("capture.sample_rate") {
		cfg.SampleRate = viper.GetInt("capture.sample_rate")
	}
	return cfg
}

func loadCacheConfig(cfg CacheConfig) CacheConfig {
	if viper.IsSet("cache.dir") {
		cfg.Dir = viper.GetString("cache.dir")
	}
	if viper.IsSet("cache.max_size") {
		cfg.MaxSizeMB = viper.GetInt("cache.max_size")
	}
	if viper.IsSet("cache.compression_level") {
		cfg.CompressionLevel = viper.GetInt("cache.compression_level")
	}
	return cfg
}

// loadPiperConfig loads Piper-specific configuration from Viper.
func loadPiperConfig() PiperConfig {
	cfg := DefaultPiperConfig()

	if viper.IsSet("piper.binary") {
		cfg.Binary = viper.GetString("piper.binary")
	}
	if viper.IsSet("piper.voices_dir") {
		cfg.VoicesDir = viper.GetString("piper.voices_dir")
	}
	if viper.IsSet("piper.timeout") {
		cfg.Timeout = parseDuration("piper.timeout", cfg.Timeout)
	}

	return cfg
}

// loadMockConfig loads Mock-specific configuration from Viper.
func loadMockConfig() MockConfig {
	cfg := DefaultMockConfig()

	if viper.IsSet("mock.words_per_minute") {
		cfg.WordsPerMinute = viper.GetInt("mock.words_per_minute")
	}
	if viper.IsSet("mock.voices") {
		cfg.Voices = viper.GetStringSlice("mock.voices")
	}

	return cfg
}

// expandPaths resolves a leading ~ in every configured path.
func expandPaths(cfg *Config) error {
	for _, p := range []*string{&cfg.Capture.VoskModel, &cfg.Cache.Dir, &cfg.Piper.Binary, &cfg.Piper.VoicesDir} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

func parseDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(viper.GetString(key)); err == nil {
		return d
	}
	return fallback
}

// SetDefaults sets default values in Viper for the configuration.
func SetDefaults() {
	defaults := DefaultConfig()

	viper.SetDefault("engine", defaults.Engine)
	viper.SetDefault("volume", defaults.Volume)
	viper.SetDefault("notify", defaults.Notify)

	// Playback defaults
	viper.SetDefault("playback.repeat_count", defaults.Playback.RepeatCount)
	viper.SetDefault("playback.pause", defaults.Playback.Pause.String())
	viper.SetDefault("playback.speech_rate", defaults.Playback.SpeechRate)
	viper.SetDefault("playback.speak_native", defaults.Playback.SpeakNative)
	viper.SetDefault("playback.loop", defaults.Playback.Loop)

	// Capture defaults
	viper.SetDefault("capture.recognizer", defaults.Capture.Recognizer)
	viper.SetDefault("capture.sample_rate", defaults.Capture.SampleRate)

	// Cache defaults
	viper.SetDefault("cache.max_size", defaults.Cache.MaxSizeMB)
	viper.SetDefault("cache.compression_level", defaults.Cache.CompressionLevel)

	// Piper defaults
	viper.SetDefault("piper.binary", defaults.Piper.Binary)
	viper.SetDefault("piper.voices_dir", defaults.Piper.VoicesDir)
	viper.SetDefault("piper.timeout", defaults.Piper.Timeout.String())

	// Mock defaults
	viper.SetDefault("mock.words_per_minute", defaults.Mock.WordsPerMinute)
	viper.SetDefault("mock.voices", defaults.Mock.Voices)
}
