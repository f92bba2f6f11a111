// ABOUTME: Media element contract and the simulated playback deck
// ABOUTME: The deck advances a position with a steerable rate, like a player
package player

import (
	"sync"
	"time"
)

// Transport event kinds, matching the wire protocol
const (
	KindPlay  = "play"
	KindPause = "pause"
	KindSeek  = "seek"
)

// TransportEvent is a user-visible playback transition
type TransportEvent struct {
	Kind     string
	Position float64
}

// Player is the contract the sync core holds against the local media
// element. The presentation layer implements it for a real player; Clock
// implements it in-process for the client binary and tests.
type Player interface {
	Play()
	Pause()
	SeekTo(position float64)
	Position() float64
	Playing() bool
	SetRate(rate float64)
	Rate() float64

	// Events delivers every play/pause/seek transition the element
	// fires, whoever caused it
	Events() <-chan TransportEvent
}

// Clock is a simulated playback deck: position advances in real time,
// scaled by the playback rate, while playing. It fires transport events
// on transitions the way a media element does.
type Clock struct {
	mu       sync.Mutex
	position float64
	rate     float64
	playing  bool
	lastTick time.Time

	events chan TransportEvent

	now func() time.Time // swappable for tests
}

// NewClock creates a paused deck at position zero, rate 1
func NewClock() *Clock {
	return &Clock{
		rate:   1.0,
		events: make(chan TransportEvent, 16),
		now:    time.Now,
	}
}

// settle advances the position to the present. Caller holds the lock.
func (c *Clock) settle() {
	if !c.playing {
		return
	}
	n := c.now()
	c.position += c.rate * n.Sub(c.lastTick).Seconds()
	c.lastTick = n
}

// Play starts playback. Fires an event only on an actual transition.
func (c *Clock) Play() {
	c.mu.Lock()
	if c.playing {
		c.mu.Unlock()
		return
	}
	c.playing = true
	c.lastTick = c.now()
	pos := c.position
	c.mu.Unlock()

	c.emit(TransportEvent{Kind: KindPlay, Position: pos})
}

// Pause stops playback. Fires an event only on an actual transition.
func (c *Clock) Pause() {
	c.mu.Lock()
	if !c.playing {
		c.mu.Unlock()
		return
	}
	c.settle()
	c.playing = false
	pos := c.position
	c.mu.Unlock()

	c.emit(TransportEvent{Kind: KindPause, Position: pos})
}

// SeekTo jumps to a position. Always fires a seek event.
func (c *Clock) SeekTo(position float64) {
	c.mu.Lock()
	c.settle()
	c.position = position
	c.lastTick = c.now()
	c.mu.Unlock()

	c.emit(TransportEvent{Kind: KindSeek, Position: position})
}

// Position returns the current playback position in seconds
func (c *Clock) Position() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settle()
	return c.position
}

// Playing reports whether the deck is running
func (c *Clock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// SetRate changes the playback rate. Not a transport transition, so no
// event fires.
func (c *Clock) SetRate(rate float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settle()
	c.rate = rate
}

// Rate returns the current playback rate
func (c *Clock) Rate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// Events returns the transition feed
func (c *Clock) Events() <-chan TransportEvent {
	return c.events
}

// emit is non-blocking; a consumer that falls behind loses transitions
// rather than stalling the deck
func (c *Clock) emit(ev TransportEvent) {
	select {
	case c.events <- ev:
	default:
	}
}
