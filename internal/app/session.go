// ABOUTME: Main viewer session orchestration
// ABOUTME: Wires connection, deck, drift correction, discovery, and UI
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/CineSync/cinesync-go/internal/client"
	"github.com/CineSync/cinesync-go/internal/discovery"
	"github.com/CineSync/cinesync-go/internal/media"
	"github.com/CineSync/cinesync-go/internal/player"
	"github.com/CineSync/cinesync-go/internal/roomcode"
	"github.com/CineSync/cinesync-go/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
)

// Roles within a room
const (
	RoleHost  = "host"
	RoleGuest = "guest"
)

// Config holds session configuration
type Config struct {
	RelayAddr string // empty means discover via mDNS
	FilePath  string
	JoinCode  string // empty means create a room and host it
	Name      string
	UseTUI    bool
}

// Session is one viewer's participation in a watch party
type Session struct {
	config      Config
	client      *client.Client
	deck        player.Player
	corrector   *player.Corrector
	discovery   *discovery.Manager
	tuiProg     *tea.Program
	control     *ui.Control
	fingerprint string
	fileName    string
	roomCode    string
	role        string
	ctx         context.Context
	cancel      context.CancelFunc
}

// New creates a session around a simulated deck
func New(config Config) *Session {
	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		config: config,
		deck:   player.NewClock(),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start fingerprints the file, finds a relay, and enters a room. Blocks
// until the session ends.
func (s *Session) Start() error {
	fingerprint, err := media.ComputeFingerprint(s.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to fingerprint %s: %w", s.config.FilePath, err)
	}
	s.fingerprint = fingerprint

	meta, err := media.Stat(s.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", s.config.FilePath, err)
	}
	s.fileName = meta.Name
	log.Printf("Media: %s (%d bytes, fingerprint %s)", meta.Name, meta.Size, fingerprint[:12])

	if s.config.UseTUI {
		s.control = ui.NewControl()
		tuiProg, err := ui.Run(s.control)
		if err != nil {
			return fmt.Errorf("failed to start TUI: %w", err)
		}
		s.tuiProg = tuiProg

		go s.tuiProg.Run()
		go s.handleControl()
	}

	if s.config.RelayAddr == "" {
		s.discovery = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        0,
		})
		s.discovery.Browse()

		go s.handleDiscovery()
	} else {
		if err := s.connect(s.config.RelayAddr); err != nil {
			return fmt.Errorf("connection failed: %w", err)
		}
	}

	<-s.ctx.Done()

	return nil
}

// handleDiscovery connects to the first reachable relay found
func (s *Session) handleDiscovery() {
	for {
		select {
		case relay := <-s.discovery.Relays():
			addr := fmt.Sprintf("%s:%d", relay.Host, relay.Port)
			log.Printf("Attempting connection to %s", addr)

			if err := s.connect(addr); err != nil {
				log.Printf("Connection failed: %v", err)
				continue
			}
			return

		case <-s.ctx.Done():
			return
		}
	}
}

// connect establishes the relay channel and enters the room
func (s *Session) connect(relayAddr string) error {
	s.client = client.NewClient(client.Config{
		RelayAddr: relayAddr,
		ClientID:  uuid.New().String(),
		Name:      s.config.Name,
	})

	if err := s.client.Connect(); err != nil {
		return err
	}

	log.Printf("Connected to relay: %s", relayAddr)
	s.pushStatus(ui.StatusMsg{Connected: boolPtr(true), RelayName: relayAddr, FileName: s.fileName})

	if s.config.JoinCode != "" {
		code := roomcode.Canonicalize(s.config.JoinCode)
		if err := s.client.JoinRoom(code, s.fingerprint); err != nil {
			return fmt.Errorf("failed to join %s: %w", code, err)
		}
		s.roomCode = code
		s.role = RoleGuest
		log.Printf("Joined room %s as guest", code)
	} else {
		code, err := s.client.CreateRoom(s.fingerprint)
		if err != nil {
			return fmt.Errorf("failed to create room: %w", err)
		}
		s.roomCode = code
		s.role = RoleHost
		log.Printf("Created room %s, share this code", code)
	}

	s.pushStatus(ui.StatusMsg{RoomCode: s.roomCode, Role: s.role})

	go s.handlePeerUpdates()
	go s.positionLoop()

	switch s.role {
	case RoleHost:
		go s.runHost()
	case RoleGuest:
		s.startCorrector()
		go s.runGuest()
	}

	return nil
}

// runHost relays deck transitions into the room and answers drift
// probes. The relay fans the host's own sync/event and sync/pong frames
// back to it; those are drained and discarded here so the client's read
// loop never backs up onto them.
func (s *Session) runHost() {
	for {
		select {
		case ev := <-s.deck.Events():
			if err := s.client.SendSyncEvent(s.roomCode, ev.Kind, ev.Position); err != nil {
				log.Printf("Failed to send %s: %v", ev.Kind, err)
			}

		case ping := <-s.client.SyncPings:
			if err := s.client.SendSyncPong(s.roomCode, ping.GuestPosition, s.deck.Position()); err != nil {
				log.Printf("Failed to answer probe: %v", err)
			}

		case <-s.client.SyncEvents:
			// Our own transport event, echoed back

		case <-s.client.SyncPongs:
			// Our own probe answer, echoed back

		case <-s.ctx.Done():
			return
		}
	}
}

// startCorrector attaches the drift corrector to the deck
func (s *Session) startCorrector() {
	s.corrector = player.NewCorrector(s.deck, func(pos float64) {
		if err := s.client.SendSyncPing(s.roomCode, pos); err != nil {
			log.Printf("Failed to send probe: %v", err)
		}
	})
	s.corrector.OnUpdate = func(state player.State, drift float64) {
		s.pushStatus(ui.StatusMsg{DriftState: state.String(), Drift: drift})
	}
	s.corrector.Start()
}

// runGuest applies host transport events and feeds probe replies to the
// corrector
func (s *Session) runGuest() {
	for {
		select {
		case ev := <-s.client.SyncEvents:
			log.Printf("Host %s at %.2f", ev.Kind, ev.Position)
			s.corrector.ApplyHostEvent(ev.Kind, ev.Position)

		case pong := <-s.client.SyncPongs:
			s.corrector.HandlePong(pong.GuestPosition, pong.HostPosition)

		case <-s.ctx.Done():
			return
		}
	}
}

// handlePeerUpdates tracks room membership
func (s *Session) handlePeerUpdates() {
	for {
		select {
		case pu := <-s.client.PeerUpdates:
			log.Printf("Room %s now has %d viewer(s)", pu.RoomID, pu.Count)
			s.pushStatus(ui.StatusMsg{PeerCount: intPtr(pu.Count)})

		case <-s.ctx.Done():
			return
		}
	}
}

// handleControl applies keyboard transport intents to the deck. For the
// host these become room-wide events via runHost; for a guest the
// corrector treats them as advisory and reverts them.
func (s *Session) handleControl() {
	for {
		select {
		case msg := <-s.control.Transport:
			switch msg.Action {
			case ui.ActionToggle:
				if s.deck.Playing() {
					s.deck.Pause()
				} else {
					s.deck.Play()
				}
			case ui.ActionSeek:
				target := s.deck.Position() + msg.Offset
				if target < 0 {
					target = 0
				}
				s.deck.SeekTo(target)
			}

		case <-s.control.Quit:
			s.Stop()
			return

		case <-s.ctx.Done():
			return
		}
	}
}

// positionLoop refreshes the UI playback readout
func (s *Session) positionLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.pushStatus(ui.StatusMsg{
				Playing:  boolPtr(s.deck.Playing()),
				Position: floatPtr(s.deck.Position()),
			})

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) pushStatus(msg ui.StatusMsg) {
	if s.tuiProg != nil {
		s.tuiProg.Send(msg)
	}
}

// Deck exposes the local playback deck
func (s *Session) Deck() player.Player {
	return s.deck
}

// RoomCode returns the room this session is in, if any
func (s *Session) RoomCode() string {
	return s.roomCode
}

// Role returns host or guest, once in a room
func (s *Session) Role() string {
	return s.role
}

// Stop leaves the room and tears the session down
func (s *Session) Stop() {
	if s.corrector != nil {
		s.corrector.Stop()
	}

	if s.client != nil {
		if s.roomCode != "" {
			s.client.LeaveRoom(s.roomCode)
		}
		s.client.Close()
	}

	if s.discovery != nil {
		s.discovery.Stop()
	}

	if s.tuiProg != nil {
		s.tuiProg.Quit()
	}

	s.cancel()
}

func boolPtr(b bool) *bool        { return &b }
func intPtr(i int) *int           { return &i }
func floatPtr(f float64) *float64 { return &f }
