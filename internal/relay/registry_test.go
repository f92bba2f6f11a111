// ABOUTME: Tests for the room registry
// ABOUTME: Membership counts, fingerprint gating, host policy, eviction
package relay

import (
	"testing"
	"time"
)

func testConn(id string) *Conn {
	return newConn(id, id, nil)
}

func TestCreateThenJoinSameFingerprint(t *testing.T) {
	r := NewRegistry()
	host := testConn("host")
	guest := testConn("guest")

	code := r.Create("abc", host)
	if len(code) != 6 {
		t.Fatalf("expected 6-char code, got %q", code)
	}
	if r.Size(code) != 1 {
		t.Errorf("expected size 1 after create, got %d", r.Size(code))
	}

	if err := r.Join(code, "abc", guest); err != nil {
		t.Fatalf("join with matching fingerprint failed: %v", err)
	}
	if r.Size(code) != 2 {
		t.Errorf("expected size 2 after join, got %d", r.Size(code))
	}
}

func TestJoinFingerprintMismatch(t *testing.T) {
	r := NewRegistry()
	code := r.Create("abc", testConn("host"))

	err := r.Join(code, "xyz", testConn("guest"))
	if err != ErrFingerprintMismatch {
		t.Errorf("expected ErrFingerprintMismatch, got %v", err)
	}
	if r.Size(code) != 1 {
		t.Errorf("failed join must not change membership, size=%d", r.Size(code))
	}
}

func TestJoinUnknownRoom(t *testing.T) {
	r := NewRegistry()

	if err := r.Join("NOPE42", "abc", testConn("guest")); err != ErrRoomNotFound {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
	// fingerprint is irrelevant for unknown codes
	if err := r.Join("NOPE42", "", testConn("guest")); err != ErrRoomNotFound {
		t.Errorf("expected ErrRoomNotFound regardless of fingerprint, got %v", err)
	}
}

func TestJoinIsCaseInsensitive(t *testing.T) {
	r := NewRegistry()
	host := testConn("host")
	code := r.Create("abc", host)

	lower := " " + string([]byte{code[0] | 0x20}) + code[1:] + " "
	if err := r.Join(lower, "abc", testConn("guest")); err != nil {
		t.Errorf("join with case/space variant %q failed: %v", lower, err)
	}
}

func TestHostPreservedWhileAlive(t *testing.T) {
	r := NewRegistry()
	host := testConn("host")
	guest := testConn("guest")

	code := r.Create("abc", host)
	if err := r.Join(code, "abc", guest); err != nil {
		t.Fatal(err)
	}

	h, ok := r.Host(code)
	if !ok || h.ID != "host" {
		t.Errorf("joiner must not displace a live host, host=%v", h)
	}
}

func TestVacantHostSeatPromotion(t *testing.T) {
	r := NewRegistry()
	host := testConn("host")
	guest := testConn("guest")
	late := testConn("late")

	code := r.Create("abc", host)
	if err := r.Join(code, "abc", guest); err != nil {
		t.Fatal(err)
	}

	// Host disconnects: seat vacant, guest not auto-promoted
	r.Disconnect(host)
	if _, ok := r.Host(code); ok {
		t.Error("expected vacant host seat after host disconnect")
	}

	// Next joiner claims the seat
	if err := r.Join(code, "abc", late); err != nil {
		t.Fatal(err)
	}
	h, ok := r.Host(code)
	if !ok || h.ID != "late" {
		t.Errorf("expected late joiner promoted to host, got %v", h)
	}
}

func TestHostAlwaysMember(t *testing.T) {
	r := NewRegistry()
	host := testConn("host")
	code := r.Create("abc", host)

	r.Leave(code, host)

	// A vacated seat must never resolve to a non-member
	if h, ok := r.Host(code); ok {
		t.Errorf("host resolved to non-member %s", h.ID)
	}
}

func TestDisconnectCountsReflectAbsence(t *testing.T) {
	r := NewRegistry()
	a := testConn("a")
	b := testConn("b")
	c := testConn("c")

	// a belongs to two rooms, b and c to one each
	code1 := r.Create("f1", a)
	code2 := r.Create("f2", a)
	if err := r.Join(code1, "f1", b); err != nil {
		t.Fatal(err)
	}
	if err := r.Join(code2, "f2", c); err != nil {
		t.Fatal(err)
	}

	departures := r.Disconnect(a)
	if len(departures) != 2 {
		t.Fatalf("expected 2 departures (one per room), got %d", len(departures))
	}

	for _, dep := range departures {
		if dep.Count != 1 {
			t.Errorf("room %s: expected post-removal count 1, got %d", dep.Code, dep.Count)
		}
		if len(dep.Remaining) != dep.Count {
			t.Errorf("room %s: remaining set (%d) disagrees with count (%d)",
				dep.Code, len(dep.Remaining), dep.Count)
		}
		for _, m := range dep.Remaining {
			if m.ID == "a" {
				t.Errorf("room %s: departed connection still in remaining set", dep.Code)
			}
		}
	}

	if r.Size(code1) != 1 || r.Size(code2) != 1 {
		t.Errorf("expected both rooms at size 1, got %d and %d", r.Size(code1), r.Size(code2))
	}
}

func TestDisconnectNonMemberNoop(t *testing.T) {
	r := NewRegistry()
	r.Create("abc", testConn("host"))

	if deps := r.Disconnect(testConn("stranger")); len(deps) != 0 {
		t.Errorf("expected no departures for a stranger, got %d", len(deps))
	}
}

func TestSizeMatchesBroadcastScope(t *testing.T) {
	r := NewRegistry()
	host := testConn("host")
	code := r.Create("abc", host)

	guests := []*Conn{testConn("g1"), testConn("g2"), testConn("g3")}
	for _, g := range guests {
		if err := r.Join(code, "abc", g); err != nil {
			t.Fatal(err)
		}
	}
	r.Leave(code, guests[1])
	r.Disconnect(guests[2])

	if got := r.Size(code); got != len(r.Members(code)) {
		t.Errorf("Size (%d) drifted from member snapshot (%d)", got, len(r.Members(code)))
	}
	if r.Size(code) != 2 {
		t.Errorf("expected size 2 after leave+disconnect, got %d", r.Size(code))
	}
}

func TestEvictEmptyRooms(t *testing.T) {
	r := NewRegistry()
	host := testConn("host")
	occupied := testConn("other")

	code := r.Create("abc", host)
	keep := r.Create("def", occupied)

	r.Leave(code, host)

	// Pretend the empty room has aged past the TTL
	r.now = func() time.Time { return time.Now().Add(time.Hour) }

	if evicted := r.evictEmpty(5 * time.Minute); evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if err := r.Join(code, "abc", testConn("guest")); err != ErrRoomNotFound {
		t.Errorf("expected evicted room to be gone, got %v", err)
	}
	if r.Size(keep) != 1 {
		t.Error("occupied room must survive eviction")
	}
}

func TestEmptyRoomSurvivesUntilTTL(t *testing.T) {
	r := NewRegistry()
	host := testConn("host")
	code := r.Create("abc", host)
	r.Leave(code, host)

	if evicted := r.evictEmpty(5 * time.Minute); evicted != 0 {
		t.Fatalf("room evicted before TTL elapsed")
	}

	// Rejoining an empty (not yet evicted) room works and claims the seat
	if err := r.Join(code, "abc", testConn("returning")); err != nil {
		t.Errorf("rejoin of empty room failed: %v", err)
	}
	if h, ok := r.Host(code); !ok || h.ID != "returning" {
		t.Error("expected returning member to claim the host seat")
	}
}
