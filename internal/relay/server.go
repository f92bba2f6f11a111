// ABOUTME: Relay server: WebSocket endpoint, event routing, broadcasts
// ABOUTME: Couples the room registry to connection channels
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/CineSync/cinesync-go/internal/discovery"
	"github.com/CineSync/cinesync-go/internal/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ProtocolVersion is sent in the hello handshake
const ProtocolVersion = 1

// Config holds relay server configuration
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool
	Debug      bool
	UseTUI     bool

	// EmptyRoomTTL bounds how long a room may sit with zero members
	// before the janitor evicts it
	EmptyRoomTTL time.Duration

	// HostOnlyTransport makes the relay drop sync/event frames from
	// anyone but the room's current host. Off by default: the protocol's
	// stance is that suppressing guest transport emission is the client's
	// contract, and the relay forwards blindly.
	HostOnlyTransport bool
}

// Server is the CineSync relay
type Server struct {
	config   Config
	serverID string

	upgrader websocket.Upgrader

	httpServer *http.Server
	mux        *http.ServeMux

	registry *Registry

	// Connected channels by ID
	conns   map[string]*Conn
	connsMu sync.RWMutex

	mdnsManager *discovery.Manager

	tui       *RelayTUI
	startTime time.Time

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	cancelBg   context.CancelFunc
	wg         sync.WaitGroup
}

// New creates a relay server instance
func New(config Config) *Server {
	if config.EmptyRoomTTL <= 0 {
		config.EmptyRoomTTL = 5 * time.Minute
	}

	return &Server{
		config:   config,
		serverID: uuid.New().String(),
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// Desktop clients send no Origin header; the relay is
				// meant for trusted deployments, so browser origins are
				// accepted too
				return true
			},
		},
		registry:  NewRegistry(),
		conns:     make(map[string]*Conn),
		startTime: time.Now(),
		stopChan:  make(chan struct{}),
	}
}

// Start runs the relay until Stop is called or the listener fails
func (s *Server) Start() error {
	if s.config.UseTUI {
		s.tui = NewRelayTUI(s.config.Name, s.config.Port)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.tui.Start()
		}()
		time.Sleep(100 * time.Millisecond)
	}

	log.Printf("Relay starting: %s (ID: %s)", s.config.Name, s.serverID)

	bgCtx, cancel := context.WithCancel(context.Background())
	s.cancelBg = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.registry.RunJanitor(bgCtx, s.config.EmptyRoomTTL)
	}()

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			RelayMode:   true,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	s.mux.HandleFunc("/cinesync", s.handleWebSocket)

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("WebSocket relay listening on %s", addr)

	s.httpServer = &http.Server{Addr: addr, Handler: s.mux}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var tuiQuitChan <-chan struct{}
	if s.tui != nil {
		tuiQuitChan = s.tui.QuitChan()
	}

	var serverErr error
	select {
	case <-s.stopChan:
		log.Printf("Relay shutting down...")
	case <-tuiQuitChan:
		log.Printf("TUI quit requested, shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.tui != nil {
		s.tui.Stop()
	}
	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}
	cancel()

	ctx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.wg.Wait()
	log.Printf("Relay stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the relay
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// handleWebSocket upgrades and hands off to the connection loop
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	if s.config.Debug {
		log.Printf("[DEBUG] New WebSocket connection from %s", r.RemoteAddr)
	}

	s.handleConnection(sock)
}

// handleConnection manages one client channel for its lifetime
func (s *Server) handleConnection(sock *websocket.Conn) {
	defer sock.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		log.Printf("Rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	// First frame must be client/hello
	_, data, err := sock.ReadMessage()
	if err != nil {
		log.Printf("Error reading hello: %v", err)
		return
	}

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}
	if msg.Type != protocol.TypeClientHello {
		log.Printf("Expected %s, got %s", protocol.TypeClientHello, msg.Type)
		return
	}

	var hello protocol.ClientHello
	if err := decodePayload(msg.Payload, &hello); err != nil {
		log.Printf("Error unmarshaling client hello: %v", err)
		return
	}
	if hello.ClientID == "" || hello.Name == "" {
		log.Printf("Client hello missing id or name")
		return
	}

	conn := newConn(hello.ClientID, hello.Name, sock)

	s.connsMu.Lock()
	if existing, exists := s.conns[conn.ID]; exists {
		s.connsMu.Unlock()
		log.Printf("Client ID %s already connected (name: %s), rejecting duplicate", conn.ID, existing.Name)
		errMsg := protocol.Message{
			Type: protocol.TypeServerError,
			Payload: protocol.ServerError{
				Code:    protocol.ErrCodeDuplicateClientID,
				Message: "client ID already connected",
			},
		}
		sock.WriteJSON(errMsg)
		return
	}
	s.conns[conn.ID] = conn
	s.connsMu.Unlock()

	log.Printf("Client connected: %s (ID: %s)", conn.Name, conn.ID)
	s.updateTUI()

	defer func() {
		s.connsMu.Lock()
		delete(s.conns, conn.ID)
		s.connsMu.Unlock()

		// Remove from every room first, then notify with counts that
		// already reflect the absence
		for _, dep := range s.registry.Disconnect(conn) {
			s.notifyDeparture(dep)
		}

		conn.closeSend()
		log.Printf("Client disconnected: %s", conn.Name)
		s.updateTUI()
	}()

	serverHello := protocol.ServerHello{
		ServerID: s.serverID,
		Name:     s.config.Name,
		Version:  ProtocolVersion,
	}
	if err := conn.send(protocol.Message{Type: protocol.TypeServerHello, Payload: serverHello}); err != nil {
		log.Printf("Error queueing server hello: %v", err)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		conn.writeLoop()
	}()

	for {
		_, data, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
		s.handleMessage(conn, data)
	}
}

// handleMessage routes one inbound frame. Malformed frames and unknown
// rooms degrade to a logged no-op; nothing here may take down the relay.
func (s *Server) handleMessage(conn *Conn, data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message from %s: %v", conn.ID, err)
		return
	}

	switch msg.Type {
	case protocol.TypeRoomCreate:
		s.handleRoomCreate(conn, msg)
	case protocol.TypeRoomJoin:
		s.handleRoomJoin(conn, msg)
	case protocol.TypeRoomLeave:
		s.handleRoomLeave(conn, msg)
	case protocol.TypeRoomPeers:
		s.handleRoomPeers(conn, msg)
	case protocol.TypeSyncEvent:
		s.handleSyncEvent(conn, msg)
	case protocol.TypeSyncPing:
		s.handleSyncPing(conn, msg)
	case protocol.TypeSyncPong:
		s.handleSyncPong(conn, msg)
	default:
		log.Printf("Unknown message type from %s: %s", conn.ID, msg.Type)
	}
}

func (s *Server) handleRoomCreate(conn *Conn, msg protocol.Message) {
	var req protocol.RoomCreate
	if err := decodePayload(msg.Payload, &req); err != nil {
		log.Printf("Bad room/create payload: %v", err)
		return
	}

	code := s.registry.Create(req.Fingerprint, conn)
	log.Printf("Room %s created by %s", code, conn.Name)

	s.reply(conn, msg, protocol.RoomCreated{RoomID: code})
	s.broadcastPeerCount(code)
	s.updateTUI()
}

func (s *Server) handleRoomJoin(conn *Conn, msg protocol.Message) {
	var req protocol.RoomJoin
	if err := decodePayload(msg.Payload, &req); err != nil {
		log.Printf("Bad room/join payload: %v", err)
		return
	}

	result := protocol.RoomJoinResult{}
	switch err := s.registry.Join(req.RoomID, req.Fingerprint, conn); err {
	case nil:
		log.Printf("Room %s: %s joined", req.RoomID, conn.Name)
	case ErrRoomNotFound:
		result.Error = protocol.ErrCodeNotFound
	case ErrFingerprintMismatch:
		result.Error = protocol.ErrCodeFingerprintMismatch
	default:
		log.Printf("Room %s: join failed: %v", req.RoomID, err)
		result.Error = protocol.ErrCodeNotFound
	}

	s.reply(conn, msg, result)
	if result.Error == "" {
		s.broadcastPeerCount(req.RoomID)
		s.updateTUI()
	}
}

func (s *Server) handleRoomLeave(conn *Conn, msg protocol.Message) {
	var req protocol.RoomLeave
	if err := decodePayload(msg.Payload, &req); err != nil {
		log.Printf("Bad room/leave payload: %v", err)
		return
	}

	if s.registry.Leave(req.RoomID, conn) {
		log.Printf("Room %s: %s left", req.RoomID, conn.Name)
		s.broadcastPeerCount(req.RoomID)
		s.updateTUI()
	}
}

func (s *Server) handleRoomPeers(conn *Conn, msg protocol.Message) {
	var req protocol.RoomPeers
	if err := decodePayload(msg.Payload, &req); err != nil {
		log.Printf("Bad room/peers payload: %v", err)
		return
	}

	s.reply(conn, msg, protocol.PeerUpdate{
		RoomID: req.RoomID,
		Count:  s.registry.Size(req.RoomID),
	})
}

// handleSyncEvent fans a transport event out to the whole room, sender
// included, with the payload untouched. Who may drive transport is the
// client contract; the relay only optionally enforces it.
func (s *Server) handleSyncEvent(conn *Conn, msg protocol.Message) {
	var ev protocol.SyncEvent
	if err := decodePayload(msg.Payload, &ev); err != nil {
		log.Printf("Bad sync/event payload: %v", err)
		return
	}

	if s.config.HostOnlyTransport {
		host, ok := s.registry.Host(ev.RoomID)
		if !ok || host.ID != conn.ID {
			if s.config.Debug {
				log.Printf("[DEBUG] Dropping transport event from non-host %s in %s", conn.ID, ev.RoomID)
			}
			return
		}
	}

	s.broadcast(ev.RoomID, protocol.Message{Type: protocol.TypeSyncEvent, Payload: ev})
}

// handleSyncPing routes a drift probe to the room's current host only
func (s *Server) handleSyncPing(conn *Conn, msg protocol.Message) {
	var ping protocol.SyncPing
	if err := decodePayload(msg.Payload, &ping); err != nil {
		log.Printf("Bad sync/ping payload: %v", err)
		return
	}

	host, ok := s.registry.Host(ping.RoomID)
	if !ok {
		// No resolvable host: drop, the guest's next probe self-heals
		return
	}

	if err := host.send(protocol.Message{Type: protocol.TypeSyncPing, Payload: ping}); err != nil {
		log.Printf("Dropping ping for %s: %v", ping.RoomID, err)
	}
}

// handleSyncPong broadcasts the host's reply to the whole room; which
// guest asked travels in the payload, the relay tracks nothing
func (s *Server) handleSyncPong(conn *Conn, msg protocol.Message) {
	var pong protocol.SyncPong
	if err := decodePayload(msg.Payload, &pong); err != nil {
		log.Printf("Bad sync/pong payload: %v", err)
		return
	}

	s.broadcast(pong.RoomID, protocol.Message{Type: protocol.TypeSyncPong, Payload: pong})
}

// broadcastPeerCount pushes the current member count to every member.
// Safe to call redundantly; it reports state, it does not toggle any.
func (s *Server) broadcastPeerCount(code string) {
	members := s.registry.Members(code)
	update := protocol.Message{
		Type:    protocol.TypePeerUpdate,
		Payload: protocol.PeerUpdate{RoomID: code, Count: len(members)},
	}
	for _, m := range members {
		if err := m.send(update); err != nil {
			log.Printf("Dropping peer update for %s: %v", m.ID, err)
		}
	}
}

// notifyDeparture pushes the post-removal count captured by the registry
func (s *Server) notifyDeparture(dep Departure) {
	update := protocol.Message{
		Type:    protocol.TypePeerUpdate,
		Payload: protocol.PeerUpdate{RoomID: dep.Code, Count: dep.Count},
	}
	for _, m := range dep.Remaining {
		if err := m.send(update); err != nil {
			log.Printf("Dropping peer update for %s: %v", m.ID, err)
		}
	}
}

// broadcast sends a message to every member of a room
func (s *Server) broadcast(code string, msg protocol.Message) {
	for _, m := range s.registry.Members(code) {
		if err := m.send(msg); err != nil {
			log.Printf("Dropping broadcast for %s: %v", m.ID, err)
		}
	}
}

// reply sends a response echoing the request id
func (s *Server) reply(conn *Conn, req protocol.Message, payload interface{}) {
	msg := protocol.Message{
		Type:      req.Type,
		RequestID: req.RequestID,
		Payload:   payload,
	}
	if err := conn.send(msg); err != nil {
		log.Printf("Error queueing reply to %s: %v", conn.ID, err)
	}
}

// updateTUI refreshes the relay TUI if one is attached
func (s *Server) updateTUI() {
	if s.tui == nil {
		return
	}

	s.connsMu.RLock()
	clients := len(s.conns)
	s.connsMu.RUnlock()

	s.tui.Update(RelayStatus{
		Name:    s.config.Name,
		Port:    s.config.Port,
		Uptime:  time.Since(s.startTime),
		Clients: clients,
		Rooms:   s.registry.Snapshot(),
	})
}

// decodePayload re-marshals an envelope payload into a concrete struct
func decodePayload(payload interface{}, out interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}
