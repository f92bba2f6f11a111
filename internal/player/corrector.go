// ABOUTME: Guest-side drift measurement and correction state machine
// ABOUTME: Classifies probe results and applies rate slews or hard resyncs
package player

import (
	"context"
	"log"
	"math"
	"sync"
	"time"
)

// State classifies how far a guest has drifted from the host
type State int

const (
	StateConverged State = iota
	StateSlightlyDrifted
	StateDiverged
)

func (s State) String() string {
	switch s {
	case StateConverged:
		return "converged"
	case StateSlightlyDrifted:
		return "slightly-drifted"
	case StateDiverged:
		return "diverged"
	default:
		return "unknown"
	}
}

const (
	// DefaultProbeInterval is how often a guest measures drift
	DefaultProbeInterval = 5 * time.Second

	// DefaultSlewWindow is how long a soft rate bias is held before the
	// rate is restored to 1
	DefaultSlewWindow = 2 * time.Second

	// convergedThreshold under this magnitude, leave playback alone
	convergedThreshold = 0.1

	// divergedThreshold at or past this magnitude, jump-cut to the host
	divergedThreshold = 0.5

	// revertTolerance bounds how far a manual action may move the deck
	// before the host state is restored
	revertTolerance = 0.1
)

// Classify maps a measured drift (host position minus guest position)
// to a state. Pure function of the drift magnitude.
func Classify(drift float64) State {
	mag := math.Abs(drift)
	switch {
	case mag < convergedThreshold:
		return StateConverged
	case mag < divergedThreshold:
		return StateSlightlyDrifted
	default:
		return StateDiverged
	}
}

// SlewRate is the temporary playback rate that walks a slight drift out
// over the slew window without a visible jump
func SlewRate(drift float64) float64 {
	return 1 + drift/5
}

// PlaybackState is the last host-authoritative state a guest has seen
type PlaybackState struct {
	Playing  bool
	Position float64
}

// Corrector keeps one guest's deck converged on the host. It owns the
// probe timer, consumes the deck's transition feed to keep manual
// control advisory, and applies corrections from probe replies.
type Corrector struct {
	deck  Player
	probe func(position float64)

	// OnUpdate, if set before Start, is invoked after each completed
	// probe cycle with the new state and measured drift
	OnUpdate func(state State, drift float64)

	// Interval and SlewWindow default to the protocol values; tests
	// shorten them
	Interval   time.Duration
	SlewWindow time.Duration

	mu               sync.Mutex
	state            State
	lastDrift        float64
	lastHost         PlaybackState
	lastProbe        float64
	probeOutstanding bool

	// suppress counts deck transitions the corrector itself is about to
	// cause; those must not be treated as manual actions or the revert
	// would feed back into itself
	suppress int

	slewTimer *time.Timer

	ctx    context.Context
	cancel context.CancelFunc
}

// NewCorrector creates a corrector for a deck. probe is called with the
// current local position each cycle and is expected to emit a sync/ping.
func NewCorrector(deck Player, probe func(position float64)) *Corrector {
	return &Corrector{
		deck:       deck,
		probe:      probe,
		Interval:   DefaultProbeInterval,
		SlewWindow: DefaultSlewWindow,
	}
}

// Start launches the probe timer and the local-event watcher. Stop must
// be called when the guest leaves the room so probes do not leak into a
// room it no longer belongs to.
func (c *Corrector) Start() {
	c.ctx, c.cancel = context.WithCancel(context.Background())
	go c.run()
}

func (c *Corrector) run() {
	ticker := time.NewTicker(c.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sendProbe()

		case ev := <-c.deck.Events():
			c.handleLocalEvent(ev)

		case <-c.ctx.Done():
			return
		}
	}
}

// Stop cancels probing and clears any in-flight slew
func (c *Corrector) Stop() {
	if c.cancel != nil {
		c.cancel()
	}

	c.mu.Lock()
	if c.slewTimer != nil {
		c.slewTimer.Stop()
		c.slewTimer = nil
	}
	c.mu.Unlock()

	c.deck.SetRate(1.0)
}

// sendProbe records the outstanding probe position and emits it
func (c *Corrector) sendProbe() {
	pos := c.deck.Position()

	c.mu.Lock()
	c.lastProbe = pos
	c.probeOutstanding = true
	c.mu.Unlock()

	c.probe(pos)
}

// HandlePong processes a probe reply. Replies are broadcast to the whole
// room; the guest position in the payload identifies whose probe this
// answers. Other guests' replies still update the cached host position.
func (c *Corrector) HandlePong(guestPosition, hostPosition float64) {
	c.mu.Lock()
	c.lastHost.Position = hostPosition
	mine := c.probeOutstanding && guestPosition == c.lastProbe
	if mine {
		c.probeOutstanding = false
	}
	c.mu.Unlock()

	if !mine {
		return
	}

	drift := hostPosition - c.deck.Position()
	state := Classify(drift)

	c.mu.Lock()
	c.state = state
	c.lastDrift = drift
	c.mu.Unlock()

	switch state {
	case StateConverged:
		// In tolerance; a pending slew reset runs to completion

	case StateSlightlyDrifted:
		c.applySlew(drift)

	case StateDiverged:
		log.Printf("Drift %.3fs diverged, resyncing to host position %.3f", drift, hostPosition)
		c.hardResync(hostPosition)
	}

	if c.OnUpdate != nil {
		c.OnUpdate(state, drift)
	}
}

// applySlew biases the playback rate for the slew window, then restores
// it. A fresh measurement restarts the window.
func (c *Corrector) applySlew(drift float64) {
	c.deck.SetRate(SlewRate(drift))

	c.mu.Lock()
	if c.slewTimer != nil {
		c.slewTimer.Stop()
	}
	c.slewTimer = time.AfterFunc(c.SlewWindow, func() {
		c.deck.SetRate(1.0)
	})
	c.mu.Unlock()
}

// hardResync jump-cuts to the host position. The seek the deck fires
// because of this is ours, so it is suppressed from revert handling.
func (c *Corrector) hardResync(hostPosition float64) {
	c.mu.Lock()
	c.suppress++
	c.mu.Unlock()

	c.deck.SeekTo(hostPosition)
}

// ApplyHostEvent applies a host-originated transport event to the deck
// and records it as the authoritative state
func (c *Corrector) ApplyHostEvent(kind string, position float64) {
	c.mu.Lock()
	switch kind {
	case KindPlay:
		c.lastHost = PlaybackState{Playing: true, Position: position}
		if !c.deck.Playing() {
			c.suppress++
		}
	case KindPause:
		c.lastHost = PlaybackState{Playing: false, Position: position}
		if c.deck.Playing() {
			c.suppress++
		}
	case KindSeek:
		c.lastHost.Position = position
		c.suppress++
	default:
		c.mu.Unlock()
		log.Printf("Unknown transport kind: %s", kind)
		return
	}
	c.mu.Unlock()

	switch kind {
	case KindPlay:
		c.deck.Play()
	case KindPause:
		c.deck.Pause()
	case KindSeek:
		c.deck.SeekTo(position)
	}
}

// handleLocalEvent keeps manual control advisory: a transition with no
// host instruction behind it is reverted to the last host state, within
// tolerance. Self-caused transitions are consumed via the suppress
// counter so the revert cannot recurse.
func (c *Corrector) handleLocalEvent(ev TransportEvent) {
	c.mu.Lock()
	if c.suppress > 0 {
		c.suppress--
		c.mu.Unlock()
		return
	}
	host := c.lastHost
	c.mu.Unlock()

	if math.Abs(c.deck.Position()-host.Position) > revertTolerance {
		c.mu.Lock()
		c.suppress++
		c.mu.Unlock()
		c.deck.SeekTo(host.Position)
	}

	if host.Playing && !c.deck.Playing() {
		c.mu.Lock()
		c.suppress++
		c.mu.Unlock()
		c.deck.Play()
	} else if !host.Playing && c.deck.Playing() {
		c.mu.Lock()
		c.suppress++
		c.mu.Unlock()
		c.deck.Pause()
	}
}

// State returns the current drift classification
func (c *Corrector) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastDrift returns the most recent drift measurement
func (c *Corrector) LastDrift() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastDrift
}

// LastHostState returns the cached host-authoritative state
func (c *Corrector) LastHostState() PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHost
}
