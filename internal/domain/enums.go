// Package domain defines the core data model shared by the chat clients.
package domain

// Sender identifies which of the two parties authored a message.
type Sender string

const (
	SenderClient Sender = "client"
	SenderAdmin  Sender = "admin"
)

// MessageStatus tracks reconciliation of an optimistic local message with
// its server echo.
type MessageStatus string

const (
	MessagePending   MessageStatus = "pending"
	MessageConfirmed MessageStatus = "confirmed"
	MessageFailed    MessageStatus = "failed"
)

// ConnStatus is the state of a transport connection.
type ConnStatus string

const (
	ConnDisconnected ConnStatus = "disconnected"
	ConnConnecting   ConnStatus = "connecting"
	ConnConnected    ConnStatus = "connected"
	ConnError        ConnStatus = "error"
)

// SessionState is the state of one on-screen conversation.
type SessionState string

const (
	SessionIdle           SessionState = "idle"
	SessionLoadingHistory SessionState = "loading_history"
	SessionConnecting     SessionState = "connecting"
	SessionLive           SessionState = "live"
	SessionDisconnected   SessionState = "disconnected"
	SessionError          SessionState = "error"
)

// OfferKind distinguishes freely dismissible offers from admin-assigned
// ones that auto-start.
type OfferKind string

const (
	OfferAvailable OfferKind = "available"
	OfferAssigned  OfferKind = "assigned"
)
