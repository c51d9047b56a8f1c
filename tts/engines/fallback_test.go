package engines

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/lingoloop/tts"
	"github.com/dgnsrekt/lingoloop/tts/engines/mock"
)

// TestFallbackEngine tests the fallback mechanism
func TestFallbackEngine(t *testing.T) {
	// Primary always fails
	primary := mock.New(tts.DefaultMockConfig())
	primary.SetFailure(errors.New("primary engine failure"))

	secondary := mock.New(tts.DefaultMockConfig())
	secondary.SetDelay(time.Millisecond)

	engine := NewFallback(primary, secondary, 2, nil)
	ctx := context.Background()

	// First attempt fails (count = 1)
	if err := engine.Speak(ctx, tts.Utterance{Text: "test 1"}); err == nil {
		t.Error("Expected first attempt to fail")
	}
	if engine.UsingFallback() {
		t.Error("switched after one failure")
	}

	// Second attempt switches and succeeds on the secondary
	if err := engine.Speak(ctx, tts.Utterance{Text: "test 2"}); err != nil {
		t.Errorf("Expected second attempt to succeed with fallback: %v", err)
	}
	if !engine.UsingFallback() {
		t.Error("Expected to be using fallback")
	}

	// Subsequent calls go straight to the secondary
	if err := engine.Speak(ctx, tts.Utterance{Text: "test 3"}); err != nil {
		t.Errorf("Expected subsequent calls to use fallback: %v", err)
	}
	if got := len(primary.Spoken()); got != 2 {
		t.Errorf("primary spoke %d times, want 2", got)
	}
	if got := len(secondary.Spoken()); got != 2 {
		t.Errorf("secondary spoke %d times, want 2", got)
	}

	engine.Reset()
	if engine.UsingFallback() {
		t.Error("Reset() kept fallback active")
	}
}

func TestFallbackIgnoresCancellation(t *testing.T) {
	primary := mock.New(tts.DefaultMockConfig())
	primary.SetDelay(time.Hour)
	secondary := mock.New(tts.DefaultMockConfig())

	engine := NewFallback(primary, secondary, 1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := engine.Speak(ctx, tts.Utterance{Text: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Speak() error = %v, want context.Canceled", err)
	}
	if engine.UsingFallback() {
		t.Error("cancellation counted as failure")
	}
}

func TestFallbackRecovers(t *testing.T) {
	primary := mock.New(tts.DefaultMockConfig())
	primary.SetFailure(tts.ErrSynthesisFailed)
	engine := NewFallback(primary, mock.New(tts.DefaultMockConfig()), 3, nil)
	ctx := context.Background()

	_ = engine.Speak(ctx, tts.Utterance{Text: "a"})
	_ = engine.Speak(ctx, tts.Utterance{Text: "b"})
	primary.SetFailure(nil)
	primary.SetDelay(time.Millisecond)
	if err := engine.Speak(ctx, tts.Utterance{Text: "c"}); err != nil {
		t.Fatal(err)
	}

	// Counter was reset, so two more failures do not switch
	primary.SetFailure(tts.ErrSynthesisFailed)
	_ = engine.Speak(ctx, tts.Utterance{Text: "d"})
	_ = engine.Speak(ctx, tts.Utterance{Text: "e"})
	if engine.UsingFallback() {
		t.Error("failure counter was not reset by success")
	}
}

func TestFallbackSwitchesOnUnrecoverable(t *testing.T) {
	primary := mock.New(tts.DefaultMockConfig())
	primary.SetFailure(tts.ErrEngineNotAvailable)
	secondary := mock.New(tts.DefaultMockConfig())
	secondary.SetDelay(time.Millisecond)

	engine := NewFallback(primary, secondary, 3, nil)
	if err := engine.Speak(context.Background(), tts.Utterance{Text: "x"}); err != nil {
		t.Fatalf("Speak() error = %v, want secondary to speak", err)
	}
	if !engine.UsingFallback() {
		t.Error("missing engine did not switch immediately")
	}
}
