// Package notify shows desktop notifications when playback stops on its own.
package notify

import (
	"github.com/charmbracelet/log"
	"github.com/gen2brain/beeep"

	"github.com/dgnsrekt/lingoloop/playback"
)

const appName = "lingoloop"

// Notifier turns scheduler events into desktop notifications. It implements
// playback.Listener.
type Notifier struct {
	playlist string
	send     func(title, message string) error
	log      *log.Logger
}

// New returns a Notifier for the named playlist.
func New(playlist string, logger *log.Logger) *Notifier {
	if logger == nil {
		logger = log.Default()
	}
	return &Notifier{
		playlist: playlist,
		send:     func(title, message string) error { return beeep.Notify(title, message, "") },
		log:      logger,
	}
}

// HandleEvent implements playback.Listener.
func (n *Notifier) HandleEvent(e playback.Event) {
	switch e.(type) {
	case playback.SleepTimerExpired:
		n.notify("Sleep timer", "Stopped "+n.playlist+".")
	case playback.PlaybackComplete:
		n.notify("Playlist complete", "Finished "+n.playlist+".")
	}
}

func (n *Notifier) notify(title, message string) {
	if err := n.send(appName+": "+title, message); err != nil {
		n.log.Debug("notification failed", "title", title, "error", err)
	}
}
