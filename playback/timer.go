package playback

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// Stopper is what the sleep timer stops when it fires.
type Stopper interface {
	Stop()
}

// Publisher accepts events. *Bus implements it.
type Publisher interface {
	Publish(Event) error
}

// TimerOption configures a SleepTimer.
type TimerOption func(*SleepTimer)

// WithTimerUnit sets the length of one timer "minute". Tests shorten it.
func WithTimerUnit(d time.Duration) TimerOption {
	return func(t *SleepTimer) {
		t.unit = d
	}
}

// WithTimerLogger sets the logger.
func WithTimerLogger(l *log.Logger) TimerOption {
	return func(t *SleepTimer) {
		t.log = l
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) TimerOption {
	return func(t *SleepTimer) {
		t.now = now
	}
}

// SleepTimer is a one-shot countdown that stops playback and publishes
// SleepTimerExpired when it runs out.
type SleepTimer struct {
	target Stopper
	events Publisher
	unit   time.Duration
	now    func() time.Time
	log    *log.Logger

	mu    sync.Mutex
	end   time.Time
	timer *time.Timer
	seq   uint64
}

// NewSleepTimer creates a disarmed timer.
func NewSleepTimer(target Stopper, events Publisher, opts ...TimerOption) *SleepTimer {
	t := &SleepTimer{
		target: target,
		events: events,
		unit:   time.Minute,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.log == nil {
		t.log = log.Default()
	}
	return t
}

// Arm replaces any pending countdown with one of the given minutes. Zero or
// negative minutes only disarm.
func (t *SleepTimer) Arm(minutes int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.disarmLocked()
	if minutes <= 0 {
		return
	}

	d := time.Duration(minutes) * t.unit
	t.end = t.now().Add(d)
	seq := t.seq
	t.timer = time.AfterFunc(d, func() { t.fire(seq) })
	t.log.Info("sleep timer armed", "minutes", minutes)
}

// Disarm cancels a pending countdown. It is safe to call when unarmed.
func (t *SleepTimer) Disarm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disarmLocked()
}

// Armed reports whether a countdown is pending.
func (t *SleepTimer) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

// RemainingMinutes returns the whole minutes left, rounded up, or 0 when
// unarmed.
func (t *SleepTimer) RemainingMinutes() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer == nil {
		return 0
	}
	left := t.end.Sub(t.now())
	if left <= 0 {
		return 0
	}
	return int((left + t.unit - 1) / t.unit)
}

func (t *SleepTimer) disarmLocked() {
	t.seq++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.end = time.Time{}
}

// fire runs on the timer goroutine. A callback from a countdown that was
// replaced or disarmed after it started is ignored.
func (t *SleepTimer) fire(seq uint64) {
	t.mu.Lock()
	if seq != t.seq || t.timer == nil {
		t.mu.Unlock()
		return
	}
	t.timer = nil
	t.end = time.Time{}
	t.seq++
	t.mu.Unlock()

	t.log.Info("sleep timer expired, stopping playback")
	t.target.Stop()
	if err := t.events.Publish(SleepTimerExpired{}); err != nil {
		t.log.Debug("sleep timer event dropped", "err", err)
	}
}
