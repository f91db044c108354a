// Package main is the admin-side chat console: pick a conversation, watch it
// live, and answer customers. Outgoing messages go through the REST send
// path while the transport channel delivers the live feed.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/MalooBell/App-Intervention-ENEO/internal/backend"
	"github.com/MalooBell/App-Intervention-ENEO/internal/config"
	"github.com/MalooBell/App-Intervention-ENEO/internal/conn"
	"github.com/MalooBell/App-Intervention-ENEO/internal/domain"
	"github.com/MalooBell/App-Intervention-ENEO/internal/session"
)

func main() {
	cfg := config.Load()

	sessionFlag := flag.String("session", "", "Session id of the conversation to open")
	flag.Parse()

	log.SetFlags(log.Ltime)

	if *sessionFlag == "" {
		log.Fatalf("A session id is required: -session <id>")
	}

	api := backend.NewClient(cfg.APIBaseURL)

	ctrl := session.New(session.Options{
		History:  api,
		RESTSend: api,
		Sender:   domain.SenderAdmin,
		OnState: func(state domain.SessionState) {
			fmt.Printf("\n[%s]\n", state)
		},
		OnMessage: func(msg domain.Message) {
			tag := "client"
			if msg.Sender == domain.SenderAdmin {
				tag = "you"
			}
			fmt.Printf("[%s %s] %s\n", msg.Timestamp.Format("15:04"), tag, msg.Content)
		},
	})

	mgr := conn.NewManager(conn.Options{
		BaseURL:     cfg.WSBaseURL,
		DialTimeout: cfg.DialTimeout,
		OnMessage:   ctrl.HandleMessage,
		OnStatus:    ctrl.HandleStatus,
	})
	ctrl.SetTransport(mgr)
	defer ctrl.Deselect()

	ctx := context.Background()

	if err := ctrl.Select(ctx, *sessionFlag); err != nil {
		log.Fatalf("Failed to open conversation: %v", err)
	}

	fmt.Printf("Conversation %s, %d message(s) of history.\n", *sessionFlag, ctrl.Store().Len())
	fmt.Println("Type a reply and press Enter. Commands: /switch <id>, /reconnect, /quit")

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

		switch {
		case input == "/quit":
			fmt.Println("Bye!")
			return
		case input == "/reconnect":
			if err := ctrl.Reconnect(ctx); err != nil {
				log.Printf("Reconnect failed: %v", err)
			}
			continue
		case strings.HasPrefix(input, "/switch "):
			next := strings.TrimSpace(strings.TrimPrefix(input, "/switch "))
			if err := ctrl.Select(ctx, next); err != nil {
				log.Printf("Switch failed: %v", err)
			} else {
				fmt.Printf("Now on conversation %s\n", next)
			}
			continue
		}

		if _, err := ctrl.Send(ctx, input); err != nil {
			log.Printf("Send error: %v", err)
		}
	}
}
