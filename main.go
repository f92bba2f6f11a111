// ABOUTME: Entry point for the CineSync viewer
// ABOUTME: Parses CLI flags and starts a watch party session
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/CineSync/cinesync-go/internal/app"
	"github.com/CineSync/cinesync-go/internal/version"
)

var (
	relayAddr = flag.String("relay", "", "Manual relay address (skip mDNS)")
	filePath  = flag.String("file", "", "Media file to watch (required)")
	joinCode  = flag.String("join", "", "Room code to join (default: create a room and host)")
	name      = flag.String("name", "", "Viewer friendly name (default: hostname-cinesync)")
	logFile   = flag.String("log-file", "cinesync.log", "Log file path")
	noTUI     = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
)

func main() {
	flag.Parse()

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "A media file is required: cinesync -file movie.mkv [-join CODE]")
		flag.Usage()
		os.Exit(1)
	}

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		multiWriter := io.MultiWriter(os.Stdout, f)
		log.SetOutput(multiWriter)
	}

	// Determine viewer name
	viewerName := *name
	if viewerName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		viewerName = fmt.Sprintf("%s-cinesync", hostname)
	}

	if !useTUI {
		log.Printf("Starting %s viewer v%s: %s", version.Product, version.Version, viewerName)
		log.Printf("TUI disabled - logging to file for debugging")
	}

	session := app.New(app.Config{
		RelayAddr: *relayAddr,
		FilePath:  *filePath,
		JoinCode:  *joinCode,
		Name:      viewerName,
		UseTUI:    useTUI,
	})

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Printf("Shutdown signal received")
		session.Stop()
	}()

	if err := session.Start(); err != nil {
		log.Fatalf("Session error: %v", err)
	}

	log.Printf("Viewer stopped")
}
