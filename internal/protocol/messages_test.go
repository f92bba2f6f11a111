// ABOUTME: Tests for protocol message encoding
// ABOUTME: Verifies envelope framing and payload field names on the wire
package protocol

import (
	"encoding/json"
	"testing"
)

func TestEnvelopeOmitsEmptyRequestID(t *testing.T) {
	msg := Message{
		Type:    TypeSyncEvent,
		Payload: SyncEvent{RoomID: "ABC123", Kind: KindPlay, Position: 12.5},
	}

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if _, ok := raw["request_id"]; ok {
		t.Error("pushed events should not carry a request_id")
	}
	if raw["type"] != TypeSyncEvent {
		t.Errorf("expected type %s, got %v", TypeSyncEvent, raw["type"])
	}
}

func TestSyncEventFieldsSurviveReframing(t *testing.T) {
	// The relay decodes a sync event and rebroadcasts it; the payload
	// fields must come out unmodified.
	in := `{"type":"sync/event","payload":{"room_id":"XY12AB","kind":"seek","position":91.25}}`

	var msg Message
	if err := json.Unmarshal([]byte(in), &msg); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	payload, err := json.Marshal(msg.Payload)
	if err != nil {
		t.Fatalf("payload marshal failed: %v", err)
	}

	var ev SyncEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		t.Fatalf("payload unmarshal failed: %v", err)
	}

	if ev.RoomID != "XY12AB" || ev.Kind != KindSeek || ev.Position != 91.25 {
		t.Errorf("payload changed in reframing: %+v", ev)
	}
}

func TestJoinResultErrorCodes(t *testing.T) {
	res := RoomJoinResult{Error: ErrCodeFingerprintMismatch}
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{"error":"fingerprint_mismatch"}` {
		t.Errorf("unexpected encoding: %s", data)
	}

	ok := RoomJoinResult{}
	data, err = json.Marshal(ok)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(data) != `{}` {
		t.Errorf("success result should encode empty, got %s", data)
	}
}
