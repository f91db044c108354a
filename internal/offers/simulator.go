package offers

import (
	"context"
	"time"

	"github.com/MalooBell/App-Intervention-ENEO/internal/domain"
)

// DemoOffers is the fixed schedule the simulator replays. It stands in for
// the real dispatch feed during development; only the feed semantics, not
// this content, are contractual.
var DemoOffers = []domain.Offer{
	{
		ID:            "client-1",
		Kind:          domain.OfferAvailable,
		From:          "Marché Central",
		To:            "Aéroport de Douala",
		Distance:      "12.5 km",
		EstimatedTime: "25 min",
		Fare:          2500,
		Client:        domain.ClientInfo{Name: "Jean Kamdem", Rating: 4.8},
	},
	{
		ID:            "client-2",
		Kind:          domain.OfferAvailable,
		From:          "Université de Douala",
		To:            "Centre-ville",
		Distance:      "8.2 km",
		EstimatedTime: "18 min",
		Fare:          1800,
		Client:        domain.ClientInfo{Name: "Marie Nkomo", Rating: 5.0},
	},
	{
		ID:            "admin-1",
		Kind:          domain.OfferAssigned,
		From:          "Hôpital Général",
		To:            "Bassa",
		Distance:      "18.7 km",
		EstimatedTime: "35 min",
		Fare:          3200,
		Client:        domain.ClientInfo{Name: "Paul Fotso", Rating: 4.5},
		AssignedBy:    "Administration",
		Countdown:     30,
	},
}

// Simulate pushes the demo offers into the feed one per interval, stamping
// arrival time, until the schedule is exhausted or ctx is cancelled.
func Simulate(ctx context.Context, feed *Feed, interval time.Duration) {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for _, offer := range DemoOffers {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			offer.Timestamp = time.Now()
			feed.Push(offer)
		}
	}
}
