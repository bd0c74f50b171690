package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tyrowin/roomchat/internal/discovery"
	"github.com/Tyrowin/roomchat/internal/server"
	"github.com/Tyrowin/roomchat/internal/store"
)

func main() {
	fmt.Println("Starting RoomChat relay...")

	// Load and apply configuration
	config, err := server.NewConfigFromEnv()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	server.SetConfig(config)

	// Open the message log
	messages, err := store.OpenSQLite(config.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open message store: %v", err)
	}
	defer func() {
		if err := messages.Close(); err != nil {
			log.Printf("Error closing message store: %v", err)
		}
	}()

	// Wire up the hub and message pipelines
	hub := server.NewHub()
	ingest := server.NewIngestPipeline(hub, messages, config.IngestConcurrency)
	history := server.NewHistoryService(messages, config.HistoryTimeout)
	server.StartHub(hub)

	// Best-effort registration with service discovery; failure is non-fatal.
	if config.Discovery.RegistryURL != "" {
		go registerService(config.Discovery)
	}

	// Setup routes and start the HTTP server
	router := server.SetupRoutes(hub, ingest, history)
	httpServer := server.CreateServer(config.Port, router)

	go func() {
		if err := server.StartServer(httpServer); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	if err := server.ShutdownServer(httpServer, 15*time.Second); err != nil {
		log.Printf("HTTP shutdown did not complete cleanly: %v", err)
	}
	if err := hub.Shutdown(10 * time.Second); err != nil {
		log.Printf("Hub shutdown did not complete cleanly: %v", err)
	}

	log.Println("Server stopped")
}

func registerService(cfg server.DiscoveryConfig) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := discovery.NewClient(cfg.RegistryURL)
	if err := client.Register(ctx, cfg.ServiceName, cfg.ServiceURL); err != nil {
		log.Printf("Failed to register service: %v", err)
		return
	}
	log.Printf("Registered %s with service discovery at %s", cfg.ServiceName, cfg.RegistryURL)
}
