// ABOUTME: CineSync wire message type definitions
// ABOUTME: Defines the envelope and payload structs for all relay events
package protocol

// Message is the top-level wrapper for all protocol messages.
// RequestID is set on request/response pairs and echoed on the response;
// pushed events leave it empty.
type Message struct {
	Type      string      `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
}

// Message types exchanged between client and relay
const (
	TypeClientHello = "client/hello"
	TypeServerHello = "server/hello"
	TypeServerError = "server/error"

	TypeRoomCreate = "room/create"
	TypeRoomJoin   = "room/join"
	TypeRoomLeave  = "room/leave"
	TypeRoomPeers  = "room/peers"
	TypePeerUpdate = "peer/update"

	TypeSyncEvent = "sync/event"
	TypeSyncPing  = "sync/ping"
	TypeSyncPong  = "sync/pong"
)

// Transport event kinds carried by sync/event
const (
	KindPlay  = "play"
	KindPause = "pause"
	KindSeek  = "seek"
)

// Error codes surfaced to clients
const (
	ErrCodeNotFound            = "not_found"
	ErrCodeFingerprintMismatch = "fingerprint_mismatch"
	ErrCodeDuplicateClientID   = "duplicate_client_id"
)

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID string `json:"client_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
	Product  string `json:"product,omitempty"`
}

// ServerHello is the relay's response to client/hello
type ServerHello struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// ServerError reports a request or connection level failure
type ServerError struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// RoomCreate asks the relay to create a room gated by a content fingerprint
type RoomCreate struct {
	Fingerprint string `json:"fingerprint"`
}

// RoomCreated is the response to room/create
type RoomCreated struct {
	RoomID string `json:"room_id"`
}

// RoomJoin asks to join an existing room. The fingerprint must match the
// one the room was created with.
type RoomJoin struct {
	RoomID      string `json:"room_id"`
	Fingerprint string `json:"fingerprint"`
}

// RoomJoinResult is the response to room/join. Error is empty on success.
type RoomJoinResult struct {
	Error string `json:"error,omitempty"`
}

// RoomLeave removes the sender from a room. No response.
type RoomLeave struct {
	RoomID string `json:"room_id"`
}

// RoomPeers requests the current member count of a room
type RoomPeers struct {
	RoomID string `json:"room_id"`
}

// PeerUpdate carries the member count of a room. Sent as the response to
// room/peers and pushed to every member whenever membership changes.
type PeerUpdate struct {
	RoomID string `json:"room_id"`
	Count  int    `json:"count"`
}

// SyncEvent is a host-originated transport event, rebroadcast verbatim to
// the whole room (sender included)
type SyncEvent struct {
	RoomID   string  `json:"room_id"`
	Kind     string  `json:"kind"` // play, pause, seek
	Position float64 `json:"position"`
}

// SyncPing is a guest drift probe, routed to the room's host only
type SyncPing struct {
	RoomID        string  `json:"room_id"`
	GuestPosition float64 `json:"guest_position"`
}

// SyncPong is the host's reply to a probe, broadcast to the whole room.
// GuestPosition echoes the probe so the asking guest can pair it; the
// relay tracks nothing.
type SyncPong struct {
	RoomID        string  `json:"room_id"`
	GuestPosition float64 `json:"guest_position"`
	HostPosition  float64 `json:"host_position"`
}
