package notify

import (
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/lingoloop/playback"
)

func TestNotifierEvents(t *testing.T) {
	testCases := []struct {
		name    string
		event   playback.Event
		title   string
		message string
	}{
		{"sleep timer", playback.SleepTimerExpired{}, "lingoloop: Sleep timer", "Stopped Travel."},
		{"complete", playback.PlaybackComplete{}, "lingoloop: Playlist complete", "Finished Travel."},
		{"sentence change", playback.SentenceChange{Index: 1}, "", ""},
		{"state change", playback.PlaybackStateChange{IsPlaying: true}, "", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var title, message string
			n := New("Travel", nil)
			n.send = func(ti, msg string) error {
				title, message = ti, msg
				return nil
			}

			n.HandleEvent(tc.event)
			if title != tc.title || message != tc.message {
				t.Errorf("notified %q / %q, want %q / %q", title, message, tc.title, tc.message)
			}
		})
	}
}

func TestNotifierIgnoresSendErrors(t *testing.T) {
	n := New("Travel", log.New(io.Discard))
	calls := 0
	n.send = func(string, string) error {
		calls++
		return errors.New("no notification daemon")
	}
	n.HandleEvent(playback.PlaybackComplete{})
	n.HandleEvent(playback.PlaybackComplete{})
	if calls != 2 {
		t.Errorf("send called %d times, want 2", calls)
	}
}
