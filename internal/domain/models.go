package domain

import "time"

// Session identifies one conversation thread between a customer and the
// support team. The id is opaque: generated client-side (uuid) when a user
// opens a new conversation, or reused as-is when resuming one issued earlier.
type Session struct {
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a single chat message within a session.
type Message struct {
	ID        string        `json:"id"`
	SessionID string        `json:"session_id"`
	Content   string        `json:"content"`
	Sender    Sender        `json:"sender"`
	Timestamp time.Time     `json:"timestamp"`
	Status    MessageStatus `json:"status,omitempty"`
}

// ClientInfo identifies the customer attached to a trip offer.
type ClientInfo struct {
	Name   string  `json:"name"`
	Rating float64 `json:"rating"`
}

// Offer is a proposed trip presented to a driver. Available offers are
// freely dismissible; assigned offers carry a countdown and auto-start when
// it reaches zero.
type Offer struct {
	ID            string     `json:"id"`
	Kind          OfferKind  `json:"type"`
	From          string     `json:"from"`
	To            string     `json:"to"`
	Distance      string     `json:"distance"`
	EstimatedTime string     `json:"estimated_time"`
	Fare          int        `json:"fare"`
	Client        ClientInfo `json:"client"`
	AssignedBy    string     `json:"assigned_by,omitempty"`
	Countdown     int        `json:"countdown,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
}
