// ABOUTME: WebSocket client for the CineSync relay protocol
// ABOUTME: Handles connection, handshake, requests, and event routing
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/CineSync/cinesync-go/internal/protocol"
	"github.com/CineSync/cinesync-go/internal/version"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	// ErrChannelUnavailable means the relay connection is not
	// established; callers must defer the action, not drop it
	ErrChannelUnavailable = errors.New("relay channel unavailable")

	// ErrRoomNotFound mirrors the relay's not_found code
	ErrRoomNotFound = errors.New("room not found")

	// ErrFingerprintMismatch mirrors the relay's fingerprint_mismatch
	// code: the two parties' files differ
	ErrFingerprintMismatch = errors.New("fingerprint mismatch")
)

const requestTimeout = 5 * time.Second

// Config holds client configuration
type Config struct {
	RelayAddr string
	ClientID  string
	Name      string
}

// Client is a connection channel to the relay
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex

	// Pushed event channels
	PeerUpdates chan protocol.PeerUpdate
	SyncEvents  chan protocol.SyncEvent
	SyncPings   chan protocol.SyncPing
	SyncPongs   chan protocol.SyncPong

	// In-flight requests by request id
	pending   map[string]chan protocol.Message
	pendingMu sync.Mutex

	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a relay client
func NewClient(config Config) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:      config,
		PeerUpdates: make(chan protocol.PeerUpdate, 10),
		SyncEvents:  make(chan protocol.SyncEvent, 10),
		SyncPings:   make(chan protocol.SyncPing, 10),
		SyncPongs:   make(chan protocol.SyncPong, 10),
		pending:     make(map[string]chan protocol.Message),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Connect establishes the channel and performs the hello handshake
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.RelayAddr, Path: "/cinesync"}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

// helloMessage identifies this client to the relay
func (c *Client) helloMessage() protocol.Message {
	return protocol.Message{
		Type: protocol.TypeClientHello,
		Payload: protocol.ClientHello{
			ClientID: c.config.ClientID,
			Name:     c.config.Name,
			Version:  1,
			Product:  fmt.Sprintf("%s/%s", version.Product, version.Version),
		},
	}
}

// handshake sends client/hello and waits for server/hello
func (c *Client) handshake() error {
	if err := c.sendJSON(c.helloMessage()); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse server/hello: %w", err)
	}
	if msg.Type == protocol.TypeServerError {
		var se protocol.ServerError
		decodePayload(msg.Payload, &se)
		return fmt.Errorf("relay rejected connection: %s", se.Code)
	}
	if msg.Type != protocol.TypeServerHello {
		return fmt.Errorf("expected server/hello, got %s", msg.Type)
	}

	log.Printf("Handshake complete with relay")
	return nil
}

// CreateRoom asks the relay for a fresh room gated by the fingerprint.
// The caller becomes host and sole member.
func (c *Client) CreateRoom(fingerprint string) (string, error) {
	resp, err := c.request(protocol.TypeRoomCreate, protocol.RoomCreate{Fingerprint: fingerprint})
	if err != nil {
		return "", err
	}

	var created protocol.RoomCreated
	if err := decodePayload(resp.Payload, &created); err != nil {
		return "", fmt.Errorf("bad create response: %w", err)
	}
	return created.RoomID, nil
}

// JoinRoom joins an existing room. Returns ErrRoomNotFound or
// ErrFingerprintMismatch verbatim for the user to act on.
func (c *Client) JoinRoom(roomID, fingerprint string) error {
	resp, err := c.request(protocol.TypeRoomJoin, protocol.RoomJoin{RoomID: roomID, Fingerprint: fingerprint})
	if err != nil {
		return err
	}

	var result protocol.RoomJoinResult
	if err := decodePayload(resp.Payload, &result); err != nil {
		return fmt.Errorf("bad join response: %w", err)
	}

	switch result.Error {
	case "":
		return nil
	case protocol.ErrCodeNotFound:
		return ErrRoomNotFound
	case protocol.ErrCodeFingerprintMismatch:
		return ErrFingerprintMismatch
	default:
		return fmt.Errorf("join failed: %s", result.Error)
	}
}

// LeaveRoom leaves a room. Fire-and-forget; the relay broadcasts the new
// count to whoever remains.
func (c *Client) LeaveRoom(roomID string) error {
	return c.send(protocol.TypeRoomLeave, protocol.RoomLeave{RoomID: roomID})
}

// PeerCount pulls the current member count, for clients that missed a
// pushed update
func (c *Client) PeerCount(roomID string) (int, error) {
	resp, err := c.request(protocol.TypeRoomPeers, protocol.RoomPeers{RoomID: roomID})
	if err != nil {
		return 0, err
	}

	var pu protocol.PeerUpdate
	if err := decodePayload(resp.Payload, &pu); err != nil {
		return 0, fmt.Errorf("bad peers response: %w", err)
	}
	return pu.Count, nil
}

// SendSyncEvent emits a transport event into the room (host duty)
func (c *Client) SendSyncEvent(roomID, kind string, position float64) error {
	return c.send(protocol.TypeSyncEvent, protocol.SyncEvent{RoomID: roomID, Kind: kind, Position: position})
}

// SendSyncPing emits a drift probe toward the host (guest duty)
func (c *Client) SendSyncPing(roomID string, guestPosition float64) error {
	return c.send(protocol.TypeSyncPing, protocol.SyncPing{RoomID: roomID, GuestPosition: guestPosition})
}

// SendSyncPong answers a probe with the host's position (host duty)
func (c *Client) SendSyncPong(roomID string, guestPosition, hostPosition float64) error {
	return c.send(protocol.TypeSyncPong, protocol.SyncPong{
		RoomID:        roomID,
		GuestPosition: guestPosition,
		HostPosition:  hostPosition,
	})
}

// request sends a message with a request id and waits for the echo
func (c *Client) request(msgType string, payload interface{}) (protocol.Message, error) {
	reqID := uuid.New().String()
	respChan := make(chan protocol.Message, 1)

	c.pendingMu.Lock()
	c.pending[reqID] = respChan
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, reqID)
		c.pendingMu.Unlock()
	}()

	msg := protocol.Message{Type: msgType, RequestID: reqID, Payload: payload}
	if err := c.sendJSON(msg); err != nil {
		return protocol.Message{}, err
	}

	select {
	case resp := <-respChan:
		return resp, nil
	case <-time.After(requestTimeout):
		return protocol.Message{}, fmt.Errorf("request %s timed out", msgType)
	case <-c.ctx.Done():
		return protocol.Message{}, ErrChannelUnavailable
	}
}

// send pushes a fire-and-forget event
func (c *Client) send(msgType string, payload interface{}) error {
	return c.sendJSON(protocol.Message{Type: msgType, Payload: payload})
}

func (c *Client) sendJSON(msg protocol.Message) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.connected {
		return ErrChannelUnavailable
	}
	return c.conn.WriteJSON(msg)
}

// readMessages reads and routes incoming frames
func (c *Client) readMessages() {
	defer c.Close()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			log.Printf("Read error: %v", err)
			return
		}

		if msg.RequestID != "" {
			c.resolvePending(msg)
			continue
		}

		c.routeEvent(msg)
	}
}

// resolvePending delivers a response to its waiting request
func (c *Client) resolvePending(msg protocol.Message) {
	c.pendingMu.Lock()
	respChan, ok := c.pending[msg.RequestID]
	c.pendingMu.Unlock()

	if !ok {
		// Request already timed out; late responses are dropped
		return
	}

	select {
	case respChan <- msg:
	default:
	}
}

// routeEvent dispatches pushed events onto the typed channels. Sends
// never block: a consumer that is not draining a channel (a host sees
// its own sync/event and sync/pong rebroadcasts) loses events rather
// than stalling the read loop for everything else.
func (c *Client) routeEvent(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypePeerUpdate:
		var pu protocol.PeerUpdate
		if decodePayload(msg.Payload, &pu) == nil {
			select {
			case c.PeerUpdates <- pu:
			default:
				log.Printf("Dropping peer update: consumer behind")
			}
		}

	case protocol.TypeSyncEvent:
		var ev protocol.SyncEvent
		if decodePayload(msg.Payload, &ev) == nil {
			select {
			case c.SyncEvents <- ev:
			default:
				log.Printf("Dropping sync event: consumer behind")
			}
		}

	case protocol.TypeSyncPing:
		var ping protocol.SyncPing
		if decodePayload(msg.Payload, &ping) == nil {
			select {
			case c.SyncPings <- ping:
			default:
				log.Printf("Dropping sync ping: consumer behind")
			}
		}

	case protocol.TypeSyncPong:
		var pong protocol.SyncPong
		if decodePayload(msg.Payload, &pong) == nil {
			select {
			case c.SyncPongs <- pong:
			default:
				log.Printf("Dropping sync pong: consumer behind")
			}
		}

	case protocol.TypeServerError:
		var se protocol.ServerError
		decodePayload(msg.Payload, &se)
		log.Printf("Relay error: %s %s", se.Code, se.Message)

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// Close tears the channel down
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		log.Printf("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func decodePayload(payload interface{}, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
