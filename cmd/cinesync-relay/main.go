// ABOUTME: Entry point for the CineSync relay
// ABOUTME: Parses CLI flags, loads config, and starts the relay server
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/CineSync/cinesync-go/internal/config"
	"github.com/CineSync/cinesync-go/internal/relay"
	"github.com/CineSync/cinesync-go/internal/version"
)

var (
	configPath = flag.String("config", "", "Config file path (default: search for cinesync-relay.yaml)")
	port       = flag.Int("port", 0, "WebSocket relay port (overrides config)")
	name       = flag.String("name", "", "Relay friendly name (default: hostname-cinesync-relay)")
	logFile    = flag.String("log-file", "", "Log file path (overrides config)")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	noMDNS     = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	// Flags override config
	if *port != 0 {
		cfg.Port = *port
	}
	if *name != "" {
		cfg.Name = *name
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}
	if *debug {
		cfg.Debug = true
	}
	if *noMDNS {
		cfg.EnableMDNS = false
	}

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		multiWriter := io.MultiWriter(os.Stdout, f)
		log.SetOutput(multiWriter)
	}

	// Determine relay name
	relayName := cfg.Name
	if relayName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		relayName = fmt.Sprintf("%s-cinesync-relay", hostname)
	}

	log.Printf("Starting %s Relay v%s: %s on port %d", version.Product, version.Version, relayName, cfg.Port)
	if cfg.Debug {
		log.Printf("Debug logging enabled")
	}
	log.Printf("Logging to: %s", cfg.LogFile)
	log.Printf("Press Ctrl-C to stop")

	srv := relay.New(relay.Config{
		Port:              cfg.Port,
		Name:              relayName,
		EnableMDNS:        cfg.EnableMDNS,
		Debug:             cfg.Debug,
		UseTUI:            useTUI,
		EmptyRoomTTL:      cfg.EmptyRoomTTL,
		HostOnlyTransport: cfg.HostOnlyTransport,
	})

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("\nReceived %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Relay error: %v", err)
	}

	log.Printf("Relay stopped")
}
