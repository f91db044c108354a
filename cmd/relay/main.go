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

	"github.com/MalooBell/App-Intervention-ENEO/internal/config"
	"github.com/MalooBell/App-Intervention-ENEO/internal/relay"
)

func main() {
	cfg := config.Load()

	log.Printf("Starting chat relay...")
	log.Printf("Port: %d", cfg.RelayPort)

	server := relay.NewServer(cfg)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.RelayPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start relay: %v", err)
		}
	}()

	log.Printf("Relay started on port %d", cfg.RelayPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down relay...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown relay gracefully: %v", err)
	}

	log.Println("Relay stopped")
}
