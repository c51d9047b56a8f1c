package playback_test

import (
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/lingoloop/playback"
)

func TestBusDeliversInOrder(t *testing.T) {
	bus := playback.NewBus(nil)
	defer bus.Close()

	rec := &recorder{}
	bus.Subscribe(rec)

	for i := 0; i < 50; i++ {
		if err := bus.Publish(playback.SentenceChange{Index: i}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	waitFor(t, "delivery", func() bool { return len(rec.snapshot()) == 50 })

	for i, idx := range rec.sentenceIndexes() {
		if idx != i {
			t.Fatalf("event %d has index %d", i, idx)
		}
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := playback.NewBus(nil)
	defer bus.Close()

	kept, dropped := &recorder{}, &recorder{}
	bus.Subscribe(kept)
	id := bus.Subscribe(dropped)
	bus.Unsubscribe(id)
	bus.Unsubscribe("unknown")

	_ = bus.Publish(playback.PlaybackComplete{})
	waitFor(t, "delivery", func() bool { return len(kept.snapshot()) == 1 })
	if n := len(dropped.snapshot()); n != 0 {
		t.Errorf("unsubscribed listener got %d events", n)
	}
}

func TestBusListenerMayReenter(t *testing.T) {
	out := &fakeOutput{}
	s := playback.NewScheduler(out)
	defer s.Close()
	s.LoadPlaylist(sentences(3))

	done := make(chan struct{})
	s.Subscribe(playback.ListenerFunc(func(e playback.Event) {
		if sc, ok := e.(playback.SentenceChange); ok && sc.Index == 1 {
			// Reading state from a listener must not deadlock.
			_ = s.State()
			close(done)
		}
	}))

	s.Next()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not run")
	}
}

func TestBusClosed(t *testing.T) {
	bus := playback.NewBus(nil)
	bus.Close()
	bus.Close()

	if err := bus.Publish(playback.PlaybackComplete{}); !errors.Is(err, playback.ErrBusClosed) {
		t.Errorf("Publish() after Close error = %v, want ErrBusClosed", err)
	}
}

func TestEventName(t *testing.T) {
	tests := []struct {
		event playback.Event
		want  string
	}{
		{playback.SentenceChange{}, "sentenceChange"},
		{playback.PlaybackStateChange{}, "playbackStateChange"},
		{playback.PlaybackComplete{}, "playbackComplete"},
		{playback.SleepTimerExpired{}, "sleepTimerExpired"},
	}
	for _, tt := range tests {
		if got := playback.EventName(tt.event); got != tt.want {
			t.Errorf("EventName(%T) = %q, want %q", tt.event, got, tt.want)
		}
	}
}
