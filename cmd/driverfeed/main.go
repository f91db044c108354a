// Package main is the driver-side offer console. Offers arrive from the
// demo simulator; available ones can be accepted or ignored, assigned ones
// count down to an automatic start.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/MalooBell/App-Intervention-ENEO/internal/domain"
	"github.com/MalooBell/App-Intervention-ENEO/internal/offers"
)

func main() {
	interval := flag.Duration("interval", 3*time.Second, "Delay between simulated offers")
	flag.Parse()

	log.SetFlags(log.Ltime)

	feed := offers.New(time.Second, func(offer domain.Offer, action offers.Action) {
		switch action {
		case offers.ActionAccepted:
			fmt.Printf("\n✔ Trip accepted: %s → %s (%d FCFA)\n", offer.From, offer.To, offer.Fare)
		case offers.ActionIgnored:
			fmt.Printf("\n✘ Offer ignored: %s → %s\n", offer.From, offer.To)
		case offers.ActionAutoStart:
			fmt.Printf("\n▶ Assigned trip auto-started: %s → %s\n", offer.From, offer.To)
		}
	})
	defer feed.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go offers.Simulate(ctx, feed, *interval)

	// Redraw the visible offer once per second so the countdown is live.
	go func() {
		var lastID string
		var lastRemain int
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				offer, remain := feed.Visible()
				if offer == nil {
					lastID = ""
					continue
				}
				if offer.ID != lastID {
					printOffer(offer)
				}
				if offer.Kind == domain.OfferAssigned && remain != lastRemain {
					fmt.Printf("  auto-start in %02d:%02d\n", remain/60, remain%60)
				}
				lastID = offer.ID
				lastRemain = remain
			}
		}
	}()

	fmt.Println("Waiting for offers. Commands: accept, ignore, status, quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if !scanner.Scan() {
			return
		}
		input := strings.TrimSpace(scanner.Text())

		offer, _ := feed.Visible()

		switch input {
		case "quit":
			fmt.Println("Bye!")
			return
		case "status":
			if offer == nil {
				fmt.Printf("No visible offer, %d pending.\n", feed.Pending())
			} else {
				printOffer(offer)
			}
		case "accept":
			if offer == nil {
				fmt.Println("Nothing to accept.")
				continue
			}
			if err := feed.Accept(offer.ID); err != nil {
				log.Printf("Accept failed: %v", err)
			}
		case "ignore":
			if offer == nil {
				fmt.Println("Nothing to ignore.")
				continue
			}
			if err := feed.Ignore(offer.ID); err != nil {
				log.Printf("Ignore failed: %v", err)
			}
		}
	}
}

func printOffer(offer *domain.Offer) {
	kind := "available"
	if offer.Kind == domain.OfferAssigned {
		kind = fmt.Sprintf("ASSIGNED by %s", offer.AssignedBy)
	}
	fmt.Printf("\n— Offer %s (%s)\n", offer.ID, kind)
	fmt.Printf("  %s → %s (%s, %s)\n", offer.From, offer.To, offer.Distance, offer.EstimatedTime)
	fmt.Printf("  %s ⭐ %.1f — %d FCFA\n", offer.Client.Name, offer.Client.Rating, offer.Fare)
}
