// ABOUTME: Tests for the drift corrector
// ABOUTME: Classification thresholds, probe pairing, corrections, reverts
package player

import (
	"math"
	"testing"
	"time"
)

func TestClassifyThresholds(t *testing.T) {
	cases := []struct {
		drift float64
		want  State
	}{
		{0.0, StateConverged},
		{0.05, StateConverged},
		{-0.09, StateConverged},
		{0.1, StateSlightlyDrifted},
		{0.3, StateSlightlyDrifted},
		{-0.49, StateSlightlyDrifted},
		{0.5, StateDiverged},
		{0.7, StateDiverged},
		{-2.0, StateDiverged},
	}

	for _, tc := range cases {
		if got := Classify(tc.drift); got != tc.want {
			t.Errorf("Classify(%f) = %v, want %v", tc.drift, got, tc.want)
		}
	}
}

func TestSlewRate(t *testing.T) {
	if got := SlewRate(0.3); math.Abs(got-1.06) > 1e-9 {
		t.Errorf("SlewRate(0.3) = %f, want 1.06", got)
	}
	if got := SlewRate(-0.3); math.Abs(got-0.94) > 1e-9 {
		t.Errorf("SlewRate(-0.3) = %f, want 0.94", got)
	}
}

func newTestCorrector(t *testing.T) (*Corrector, *Clock, *fakeNow, chan float64) {
	t.Helper()

	deck, fn := newTestClock()
	probes := make(chan float64, 16)
	c := NewCorrector(deck, func(pos float64) { probes <- pos })
	return c, deck, fn, probes
}

func TestConvergedLeavesPlaybackAlone(t *testing.T) {
	c, deck, fn, _ := newTestCorrector(t)

	deck.Play()
	fn.advance(10 * time.Second)

	c.sendProbe()
	c.HandlePong(10.0, 10.05)

	if got := c.State(); got != StateConverged {
		t.Errorf("expected converged, got %v", got)
	}
	if rate := deck.Rate(); rate != 1.0 {
		t.Errorf("converged drift must not touch the rate, got %f", rate)
	}
	if pos := deck.Position(); pos != 10.0 {
		t.Errorf("converged drift must not seek, got %f", pos)
	}
}

func TestSlightDriftSlewsRate(t *testing.T) {
	c, deck, fn, _ := newTestCorrector(t)
	c.SlewWindow = 20 * time.Millisecond

	deck.Play()
	fn.advance(10 * time.Second)

	c.sendProbe()
	c.HandlePong(10.0, 10.3)

	if got := c.State(); got != StateSlightlyDrifted {
		t.Errorf("expected slightly-drifted, got %v", got)
	}
	if rate := deck.Rate(); math.Abs(rate-1.06) > 1e-9 {
		t.Errorf("expected slew rate 1.06, got %f", rate)
	}

	// The bias is temporary; after the window the rate is restored
	deadline := time.After(time.Second)
	for deck.Rate() != 1.0 {
		select {
		case <-deadline:
			t.Fatal("rate never restored after slew window")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestDivergedHardSeeksToHost(t *testing.T) {
	c, deck, fn, _ := newTestCorrector(t)

	deck.Play()
	fn.advance(10 * time.Second)

	c.sendProbe()
	c.HandlePong(10.0, 10.7)

	if got := c.State(); got != StateDiverged {
		t.Errorf("expected diverged, got %v", got)
	}
	if pos := deck.Position(); pos != 10.7 {
		t.Errorf("expected hard seek to 10.7, got %f", pos)
	}
	if rate := deck.Rate(); rate != 1.0 {
		t.Errorf("hard seek must not touch the rate, got %f", rate)
	}

	// The seek we caused is consumed, not treated as a manual action
	ev := <-deck.Events() // play transition
	if ev.Kind != KindPlay {
		t.Fatalf("expected play event first, got %s", ev.Kind)
	}
	ev = <-deck.Events()
	if ev.Kind != KindSeek {
		t.Fatalf("expected seek event, got %s", ev.Kind)
	}
	c.handleLocalEvent(ev)
	if pos := deck.Position(); pos != 10.7 {
		t.Errorf("self-caused seek must not trigger a revert, got %f", pos)
	}
}

func TestPongPairingIgnoresOtherGuests(t *testing.T) {
	c, deck, fn, _ := newTestCorrector(t)

	deck.Play()
	fn.advance(10 * time.Second)
	c.sendProbe()

	// Another guest's reply: wrong echoed position. No correction, but
	// the host position cache still updates.
	c.HandlePong(3.0, 25.0)
	if pos := deck.Position(); pos != 10.0 {
		t.Errorf("other guest's pong must not correct us, got %f", pos)
	}
	if host := c.LastHostState(); host.Position != 25.0 {
		t.Errorf("expected cached host position 25.0, got %f", host.Position)
	}

	// Our own reply still pairs afterwards
	c.HandlePong(10.0, 10.7)
	if pos := deck.Position(); pos != 10.7 {
		t.Errorf("expected hard seek to 10.7, got %f", pos)
	}
}

func TestPongWithoutOutstandingProbeIgnored(t *testing.T) {
	c, deck, fn, _ := newTestCorrector(t)

	deck.Play()
	fn.advance(10 * time.Second)

	// No probe sent; even a matching position must not correct
	c.HandlePong(10.0, 30.0)
	if pos := deck.Position(); pos != 10.0 {
		t.Errorf("unsolicited pong must not correct, got %f", pos)
	}
}

func TestApplyHostEventDrivesDeck(t *testing.T) {
	c, deck, _, _ := newTestCorrector(t)

	c.ApplyHostEvent(KindPlay, 5.0)
	if !deck.Playing() {
		t.Error("expected deck playing after host play")
	}
	host := c.LastHostState()
	if !host.Playing || host.Position != 5.0 {
		t.Errorf("expected host state {true 5.0}, got %+v", host)
	}

	c.ApplyHostEvent(KindSeek, 30.0)
	if pos := deck.Position(); pos != 30.0 {
		t.Errorf("expected position 30.0 after host seek, got %f", pos)
	}

	c.ApplyHostEvent(KindPause, 30.0)
	if deck.Playing() {
		t.Error("expected deck paused after host pause")
	}

	// Every transition above was host-caused; none may trigger a revert
	for i := 0; i < 3; i++ {
		ev := <-deck.Events()
		c.handleLocalEvent(ev)
	}
	if pos := deck.Position(); pos != 30.0 {
		t.Errorf("host-caused events must not revert, got %f", pos)
	}
	if deck.Playing() {
		t.Error("host-caused events must not revert pause")
	}
}

func TestManualSeekRevertedToHostState(t *testing.T) {
	c, deck, _, _ := newTestCorrector(t)

	// Host has us paused at 100; deck starts paused so no event fires
	c.ApplyHostEvent(KindSeek, 100.0)
	ev := <-deck.Events() // host-caused seek, consumed through the guard
	c.handleLocalEvent(ev)

	// A manual seek away from the host position is reverted
	deck.SeekTo(50.0)
	ev = <-deck.Events()
	c.handleLocalEvent(ev)

	if pos := deck.Position(); pos != 100.0 {
		t.Errorf("expected revert to 100.0, got %f", pos)
	}

	// The revert's own seek passes through the guard without recursing
	ev = <-deck.Events()
	c.handleLocalEvent(ev)
	if pos := deck.Position(); pos != 100.0 {
		t.Errorf("revert must not cascade, got %f", pos)
	}
}

func TestManualPauseRevertedWhenHostPlaying(t *testing.T) {
	c, deck, _, _ := newTestCorrector(t)

	c.ApplyHostEvent(KindPlay, 0)
	ev := <-deck.Events()
	c.handleLocalEvent(ev) // host-caused play, consumed

	deck.Pause()
	ev = <-deck.Events()
	c.handleLocalEvent(ev)

	if !deck.Playing() {
		t.Error("expected manual pause reverted while host is playing")
	}
}

func TestProbeLoopRunsAndStops(t *testing.T) {
	c, deck, _, probes := newTestCorrector(t)
	c.Interval = 10 * time.Millisecond

	deck.Play()
	<-deck.Events()

	c.Start()
	defer c.Stop()

	select {
	case <-probes:
	case <-time.After(time.Second):
		t.Fatal("probe never fired")
	}

	c.Stop()

	// Drain anything in flight, then confirm silence
	for {
		select {
		case <-probes:
			continue
		case <-time.After(50 * time.Millisecond):
		}
		break
	}
	select {
	case <-probes:
		t.Error("probe fired after Stop")
	case <-time.After(30 * time.Millisecond):
	}
}
