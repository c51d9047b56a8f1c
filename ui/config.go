package ui

// Config contains TUI-specific configuration.
type Config struct {
	// Playlist name shown in the header
	Title string

	// Speech recognition is configured, enabling speaking practice
	Recognition bool

	// Sleep timer presets cycled by the timer key, in minutes
	SleepPresets []int `env:"LINGOLOOP_SLEEP_PRESETS" envSeparator:"," envDefault:"5,15,30,60"`

	// Show the native rendering under every sentence, not only the current one
	ShowAllNative bool `env:"LINGOLOOP_SHOW_ALL_NATIVE"`

	EnableMouse bool `env:"LINGOLOOP_ENABLE_MOUSE"`
}
