// ABOUTME: In-memory room registry: creation, membership, host policy
// ABOUTME: Sole owner of room state; all mutation goes through its lock
package relay

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/CineSync/cinesync-go/internal/roomcode"
)

var (
	// ErrRoomNotFound means the room code does not exist
	ErrRoomNotFound = errors.New("room not found")

	// ErrFingerprintMismatch means the caller's file differs from the
	// one the room was created around
	ErrFingerprintMismatch = errors.New("fingerprint mismatch")
)

// Room is one watch-party scope. The member set doubles as the broadcast
// scope, so the size a notification reports can never drift from the set
// of connections that actually receive it.
type Room struct {
	Code        string
	Fingerprint string
	Created     time.Time

	host       string // Conn ID; empty while the host seat is vacant
	members    map[string]*Conn
	emptySince time.Time // zero while occupied
}

// RoomInfo is a read-only snapshot for status displays
type RoomInfo struct {
	Code     string
	HostName string
	Members  int
}

// Departure describes one room a disconnecting connection was removed
// from. Remaining and Count are captured after the removal, so the
// notification built from them reflects the connection's absence.
type Departure struct {
	Code      string
	Count     int
	Remaining []*Conn
}

// Registry owns the room table. A single lock serializes all mutation;
// at the room counts this relay targets that is simpler and just as
// correct as a lock per room.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	now func() time.Time // swappable for tests
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		now:   time.Now,
	}
}

// Create makes a new room with the caller as host and sole member, and
// returns its code. Regenerates on the (practically unreachable) case of
// a code collision with a live room.
func (r *Registry) Create(fingerprint string, c *Conn) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var code string
	for {
		code = roomcode.Generate()
		if _, exists := r.rooms[code]; !exists {
			break
		}
	}

	r.rooms[code] = &Room{
		Code:        code,
		Fingerprint: fingerprint,
		Created:     r.now(),
		host:        c.ID,
		members:     map[string]*Conn{c.ID: c},
	}

	return code
}

// Join admits the caller into a room if the fingerprint matches.
//
// Host policy: an existing live host is never displaced by a joiner; the
// joiner is promoted to host only when the seat is vacant (the previous
// host left or disconnected). This keeps a known room code from being a
// path to hijacking playback authority, while a room abandoned by its
// host regains one as soon as somebody joins.
func (r *Registry) Join(code, fingerprint string, c *Conn) error {
	code = roomcode.Canonicalize(code)

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		return ErrRoomNotFound
	}
	if room.Fingerprint != fingerprint {
		return ErrFingerprintMismatch
	}

	room.members[c.ID] = c
	room.emptySince = time.Time{}
	if room.host == "" {
		room.host = c.ID
		log.Printf("Room %s: host seat vacant, promoting %s", code, c.ID)
	}

	return nil
}

// Leave removes the caller from a room. The host seat is vacated, not
// reassigned; a later joiner may claim it. Unknown rooms and non-members
// are a no-op.
func (r *Registry) Leave(code string, c *Conn) bool {
	code = roomcode.Canonicalize(code)

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[code]
	if !ok {
		return false
	}
	if _, member := room.members[c.ID]; !member {
		return false
	}

	r.removeLocked(room, c)
	return true
}

// Disconnect removes the connection from every room it belongs to and
// returns one Departure per room. Counts are computed after removal, so
// callers broadcasting them never report the leaving connection.
func (r *Registry) Disconnect(c *Conn) []Departure {
	r.mu.Lock()
	defer r.mu.Unlock()

	var departures []Departure
	for _, room := range r.rooms {
		if _, member := room.members[c.ID]; !member {
			continue
		}

		r.removeLocked(room, c)

		dep := Departure{Code: room.Code, Count: len(room.members)}
		for _, m := range room.members {
			dep.Remaining = append(dep.Remaining, m)
		}
		departures = append(departures, dep)
	}

	return departures
}

// removeLocked drops a member and maintains the host/empty invariants.
// Caller holds the write lock.
func (r *Registry) removeLocked(room *Room, c *Conn) {
	delete(room.members, c.ID)
	if room.host == c.ID {
		room.host = ""
	}
	if len(room.members) == 0 {
		room.emptySince = r.now()
	}
}

// Size returns the live member count, read from the broadcast scope
// itself rather than a separately maintained counter.
func (r *Registry) Size(code string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomcode.Canonicalize(code)]
	if !ok {
		return 0
	}
	return len(room.members)
}

// Host resolves the room's current host connection. ok is false when the
// room does not exist or the host seat is vacant.
func (r *Registry) Host(code string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomcode.Canonicalize(code)]
	if !ok || room.host == "" {
		return nil, false
	}
	host, ok := room.members[room.host]
	return host, ok
}

// Members returns a snapshot of the room's broadcast scope
func (r *Registry) Members(code string) []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[roomcode.Canonicalize(code)]
	if !ok {
		return nil
	}

	members := make([]*Conn, 0, len(room.members))
	for _, m := range room.members {
		members = append(members, m)
	}
	return members
}

// Snapshot lists all rooms for status displays
func (r *Registry) Snapshot() []RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]RoomInfo, 0, len(r.rooms))
	for _, room := range r.rooms {
		info := RoomInfo{Code: room.Code, Members: len(room.members)}
		if host, ok := room.members[room.host]; ok {
			info.HostName = host.Name
		}
		infos = append(infos, info)
	}
	return infos
}

// RunJanitor evicts rooms that have sat empty longer than ttl. Rooms are
// never evicted while occupied; the original system kept empty rooms
// forever, this bounds that.
func (r *Registry) RunJanitor(ctx context.Context, ttl time.Duration) {
	interval := ttl / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := r.evictEmpty(ttl); evicted > 0 {
				log.Printf("Janitor evicted %d empty room(s)", evicted)
			}
		}
	}
}

// evictEmpty removes rooms empty for at least ttl, returning how many
func (r *Registry) evictEmpty(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-ttl)
	evicted := 0
	for code, room := range r.rooms {
		if len(room.members) == 0 && !room.emptySince.IsZero() && room.emptySince.Before(cutoff) {
			delete(r.rooms, code)
			evicted++
		}
	}
	return evicted
}
