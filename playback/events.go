package playback

import (
	"sync"

	"github.com/charmbracelet/log"
	"github.com/rs/xid"
)

// Event is a notification published by the scheduler.
type Event interface {
	eventName() string
}

// SentenceChange is published before any audio of a sentence starts, and
// when the user navigates to a sentence.
type SentenceChange struct {
	Index    int
	Sentence Sentence
	Repeat   int
}

// PlaybackStateChange is published whenever play, pause or stop changes
// the playing flags.
type PlaybackStateChange struct {
	IsPlaying bool
	IsPaused  bool
}

// PlaybackComplete is published when a non-looping run reaches the end.
type PlaybackComplete struct{}

// SleepTimerExpired is published after the sleep timer stopped playback.
type SleepTimerExpired struct{}

func (SentenceChange) eventName() string      { return "sentenceChange" }
func (PlaybackStateChange) eventName() string { return "playbackStateChange" }
func (PlaybackComplete) eventName() string    { return "playbackComplete" }
func (SleepTimerExpired) eventName() string   { return "sleepTimerExpired" }

// EventName returns the wire name of an event.
func EventName(e Event) string { return e.eventName() }

// Listener receives published events.
type Listener interface {
	HandleEvent(Event)
}

// ListenerFunc adapts a function to the Listener interface.
type ListenerFunc func(Event)

// HandleEvent calls f(e).
func (f ListenerFunc) HandleEvent(e Event) { f(e) }

type subscription struct {
	id       string
	listener Listener
}

// Bus delivers events to listeners in publish order on its own goroutine.
// Publish never blocks and never calls listeners, so it is safe to publish
// while holding a lock that listeners may also take.
type Bus struct {
	log *log.Logger

	mu     sync.Mutex
	subs   []subscription
	queue  []Event
	notify chan struct{}
	done   chan struct{}
	closed bool
}

// NewBus creates a bus and starts its delivery goroutine.
func NewBus(logger *log.Logger) *Bus {
	if logger == nil {
		logger = log.Default()
	}
	b := &Bus{
		log:    logger,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go b.deliverLoop()
	return b
}

// Subscribe registers l and returns an id for Unsubscribe.
func (b *Bus) Subscribe(l Listener) string {
	id := xid.New().String()
	b.mu.Lock()
	b.subs = append(b.subs, subscription{id: id, listener: l})
	b.mu.Unlock()
	return id
}

// Unsubscribe removes a listener. Unknown ids are ignored.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish queues e for delivery.
func (b *Bus) Publish(e Event) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	b.queue = append(b.queue, e)
	b.mu.Unlock()

	select {
	case b.notify <- struct{}{}:
	default: // already signaled
	}
	return nil
}

// Close stops delivery. Events still queued are dropped.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.queue = nil
	b.mu.Unlock()
	close(b.done)
}

func (b *Bus) deliverLoop() {
	for {
		select {
		case <-b.done:
			return
		case <-b.notify:
			b.drain()
		}
	}
}

// drain delivers everything queued so far, one event at a time.
func (b *Bus) drain() {
	for {
		b.mu.Lock()
		if b.closed || len(b.queue) == 0 {
			b.mu.Unlock()
			return
		}
		e := b.queue[0]
		b.queue = b.queue[1:]
		subs := make([]subscription, len(b.subs))
		copy(subs, b.subs)
		b.mu.Unlock()

		b.log.Debug("event", "name", e.eventName(), "listeners", len(subs))
		for _, s := range subs {
			s.listener.HandleEvent(e)
		}
	}
}
