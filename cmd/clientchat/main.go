// Package main is the customer-side chat console: start or resume a
// complaint conversation and exchange messages with the support team live.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"

	"github.com/MalooBell/App-Intervention-ENEO/internal/backend"
	"github.com/MalooBell/App-Intervention-ENEO/internal/cache"
	"github.com/MalooBell/App-Intervention-ENEO/internal/config"
	"github.com/MalooBell/App-Intervention-ENEO/internal/conn"
	"github.com/MalooBell/App-Intervention-ENEO/internal/domain"
	"github.com/MalooBell/App-Intervention-ENEO/internal/session"
)

func main() {
	cfg := config.Load()

	sessionFlag := flag.String("session", "", "Session id to resume (empty starts a new conversation)")
	descFlag := flag.String("description", "", "Complaint description for a new conversation")
	flag.Parse()

	log.SetFlags(log.Ltime)

	sessionID := *sessionFlag
	isNew := sessionID == ""
	if isNew {
		sessionID = uuid.New().String()
	}

	api := backend.NewClient(cfg.APIBaseURL)

	localCache, err := cache.Open(cfg.CachePath)
	if err != nil {
		log.Printf("Local cache unavailable: %v", err)
	} else {
		defer localCache.Close()
	}

	ctrl := session.New(session.Options{
		History: api,
		Cache:   localCache,
		Sender:  domain.SenderClient,
		OnState: func(state domain.SessionState) {
			fmt.Printf("\n[%s]\n", state)
		},
		OnMessage: func(msg domain.Message) {
			printMessage(msg)
		},
	})

	mgr := conn.NewManager(conn.Options{
		BaseURL:     cfg.WSBaseURL,
		DialTimeout: cfg.DialTimeout,
		Reconnect: conn.Reconnect{
			Enabled:     cfg.ReconnectEnabled,
			MaxAttempts: cfg.ReconnectMax,
			BaseWait:    cfg.ReconnectBaseWait,
			MaxWait:     cfg.ReconnectMaxWait,
		},
		OnMessage: ctrl.HandleMessage,
		OnStatus:  ctrl.HandleStatus,
	})
	ctrl.SetTransport(mgr)
	defer ctrl.Deselect()

	ctx := context.Background()

	if isNew {
		if err := api.CreateComplaint(ctx, &backend.ComplaintRequest{
			SessionID:   sessionID,
			Description: *descFlag,
		}); err != nil {
			log.Printf("Could not register complaint (continuing): %v", err)
		}
		fmt.Printf("New conversation: %s\n", sessionID)
	} else {
		fmt.Printf("Resuming conversation: %s\n", sessionID)
	}

	if err := ctrl.Select(ctx, sessionID); err != nil {
		log.Fatalf("Failed to join conversation: %v", err)
	}

	for _, msg := range ctrl.Store().Messages() {
		printMessage(msg)
	}

	fmt.Println("\nType a message and press Enter to send.")
	fmt.Println("Commands: /reconnect, /quit")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	go func() {
		<-interrupt
		ctrl.Deselect()
		os.Exit(0)
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch input {
		case "/quit":
			fmt.Println("Bye!")
			return
		case "/reconnect":
			if err := ctrl.Reconnect(ctx); err != nil {
				log.Printf("Reconnect failed: %v", err)
			}
			continue
		}

		if _, err := ctrl.Send(ctx, input); err != nil {
			// The optimistic copy stays in the list, marked failed.
			log.Printf("Send error: %v", err)
		}
	}
}

func printMessage(msg domain.Message) {
	tag := "client"
	if msg.Sender == domain.SenderAdmin {
		tag = "admin"
	}
	suffix := ""
	switch msg.Status {
	case domain.MessagePending:
		suffix = " (sending…)"
	case domain.MessageFailed:
		suffix = " (failed)"
	}
	fmt.Printf("[%s %s] %s%s\n", msg.Timestamp.Format("15:04"), tag, msg.Content, suffix)
}
