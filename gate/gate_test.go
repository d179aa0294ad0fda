package gate

import (
	"context"
	"testing"
	"time"

	appconfig "signalflow/config"
)

func testGate(min, max time.Duration) (*Gate, *time.Time) {
	g := New(appconfig.GateConfig{IntervalMin: min, IntervalMax: max})
	now := time.Now()
	g.now = func() time.Time { return now }
	return g, &now
}

func TestFirstCallerPassesImmediately(t *testing.T) {
	g, _ := testGate(90*time.Second, 240*time.Second)
	if wait := g.reserve(); wait != 0 {
		t.Fatalf("first reserve() = %v, want 0", wait)
	}
}

func TestSubsequentCallersAreSpacedOut(t *testing.T) {
	g, _ := testGate(90*time.Second, 240*time.Second)

	g.reserve()
	w1 := g.reserve()
	if w1 < 90*time.Second || w1 >= 240*time.Second {
		t.Fatalf("second reserve() = %v, want within [90s, 240s)", w1)
	}

	w2 := g.reserve()
	if w2 < w1+90*time.Second {
		t.Fatalf("third reserve() = %v, want at least %v", w2, w1+90*time.Second)
	}
}

func TestElapsedTimeReducesWait(t *testing.T) {
	g, now := testGate(90*time.Second, 91*time.Second)

	g.reserve()
	*now = now.Add(2 * time.Hour)
	if wait := g.reserve(); wait != 0 {
		t.Fatalf("reserve() after idle period = %v, want 0", wait)
	}
}

func TestAwaitSlotHonorsContext(t *testing.T) {
	g, _ := testGate(time.Hour, 2*time.Hour)

	if err := g.AwaitSlot(context.Background()); err != nil {
		t.Fatalf("first AwaitSlot: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := g.AwaitSlot(ctx)
	if err == nil {
		t.Fatal("expected context error for the second caller")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("AwaitSlot did not return promptly on cancellation")
	}
}
