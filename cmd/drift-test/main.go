// ABOUTME: Test app to verify drift correction end to end
// ABOUTME: Runs a host and a deliberately offset guest against a live relay
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/CineSync/cinesync-go/internal/client"
	"github.com/CineSync/cinesync-go/internal/player"
	"github.com/google/uuid"
)

var (
	relayAddr = flag.String("relay", "localhost:4000", "Relay address")
	offset    = flag.Float64("offset", 1.5, "Initial guest offset in seconds")
	rounds    = flag.Int("rounds", 10, "Probe rounds before giving up")
)

const fingerprint = "drift-test-fingerprint"

func main() {
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	fmt.Println("=== Drift Correction Test ===")
	fmt.Println("This test will:")
	fmt.Println("1. Connect a host and create a room")
	fmt.Println("2. Connect a guest offset behind the host")
	fmt.Println("3. Run drift probes until the guest converges")
	fmt.Println()

	// Host side
	host := client.NewClient(client.Config{
		RelayAddr: *relayAddr,
		ClientID:  uuid.New().String(),
		Name:      "drift-test-host",
	})
	if err := host.Connect(); err != nil {
		log.Fatalf("Host connect failed: %v", err)
	}
	defer host.Close()

	roomCode, err := host.CreateRoom(fingerprint)
	if err != nil {
		log.Fatalf("Create room failed: %v", err)
	}
	fmt.Printf("Host created room %s\n", roomCode)

	hostDeck := player.NewClock()
	hostDeck.Play()

	go func() {
		for ping := range host.SyncPings {
			host.SendSyncPong(roomCode, ping.GuestPosition, hostDeck.Position())
		}
	}()

	// Let the host run ahead, then start the guest behind
	time.Sleep(time.Duration(*offset * float64(time.Second)))

	guest := client.NewClient(client.Config{
		RelayAddr: *relayAddr,
		ClientID:  uuid.New().String(),
		Name:      "drift-test-guest",
	})
	if err := guest.Connect(); err != nil {
		log.Fatalf("Guest connect failed: %v", err)
	}
	defer guest.Close()

	if err := guest.JoinRoom(roomCode, fingerprint); err != nil {
		log.Fatalf("Join failed: %v", err)
	}
	fmt.Printf("Guest joined %.1fs behind the host\n", *offset)

	guestDeck := player.NewClock()
	guestDeck.Play()

	done := make(chan bool, 1)
	converged := 0

	corrector := player.NewCorrector(guestDeck, func(pos float64) {
		guest.SendSyncPing(roomCode, pos)
	})
	corrector.Interval = 1 * time.Second
	corrector.SlewWindow = 500 * time.Millisecond
	corrector.OnUpdate = func(state player.State, drift float64) {
		fmt.Printf("  drift %+.3fs  state %s\n", drift, state)

		// Two consecutive converged probes means we are locked on
		if state == player.StateConverged {
			converged++
			if converged >= 2 {
				done <- true
			}
		} else {
			converged = 0
		}
	}
	corrector.Start()
	defer corrector.Stop()

	go func() {
		for pong := range guest.SyncPongs {
			corrector.HandlePong(pong.GuestPosition, pong.HostPosition)
		}
	}()

	select {
	case <-done:
		fmt.Printf("\nConverged: host %.3f, guest %.3f\n", hostDeck.Position(), guestDeck.Position())
		log.Printf("Test complete")
	case <-time.After(time.Duration(*rounds) * 2 * time.Second):
		log.Fatalf("Guest never converged after %d rounds", *rounds)
	}
}
