// Package store holds the ordered message list for one active session. It is
// the single source of truth the conversation view renders from.
package store

import (
	"sync"

	"github.com/MalooBell/App-Intervention-ENEO/internal/domain"
)

// Store is an append-only, ordered message list scoped to one session.
// Messages append in call order and are never reordered. A server echo
// carrying a known message id confirms the pending optimistic entry instead
// of appending a duplicate.
type Store struct {
	mu        sync.Mutex
	sessionID string
	messages  []domain.Message
	byID      map[string]int
}

// New creates an empty store bound to a session id.
func New(sessionID string) *Store {
	return &Store{
		sessionID: sessionID,
		byID:      make(map[string]int),
	}
}

// SessionID returns the session this store belongs to.
func (s *Store) SessionID() string {
	return s.sessionID
}

// Append inserts a message at the tail. Inbound messages for a different
// session are discarded: only the active session's messages live here.
// An id already present confirms the existing entry (it keeps its position)
// rather than appending again. Returns whether the list grew.
func (s *Store) Append(msg domain.Message) bool {
	if msg.SessionID != "" && msg.SessionID != s.sessionID {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.byID[msg.ID]; ok && msg.ID != "" {
		if s.messages[i].Status == domain.MessagePending {
			s.messages[i].Status = domain.MessageConfirmed
			s.messages[i].Timestamp = msg.Timestamp
		}
		return false
	}

	s.messages = append(s.messages, msg)
	if msg.ID != "" {
		s.byID[msg.ID] = len(s.messages) - 1
	}
	return true
}

// ReplaceAll hydrates the list from fetched history. Pending optimistic
// messages already in the store are kept, re-appended after the history, so
// a fetch racing a local send cannot silently drop the send.
func (s *Store) ReplaceAll(messages []domain.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pending []domain.Message
	for _, m := range s.messages {
		if m.Status == domain.MessagePending {
			pending = append(pending, m)
		}
	}

	s.messages = nil
	s.byID = make(map[string]int)
	for _, m := range messages {
		if m.SessionID != "" && m.SessionID != s.sessionID {
			continue
		}
		s.messages = append(s.messages, m)
		if m.ID != "" {
			s.byID[m.ID] = len(s.messages) - 1
		}
	}
	for _, m := range pending {
		if _, ok := s.byID[m.ID]; ok && m.ID != "" {
			continue
		}
		s.messages = append(s.messages, m)
		if m.ID != "" {
			s.byID[m.ID] = len(s.messages) - 1
		}
	}
}

// MarkFailed flips a message to the failed status after a rejected send.
// The message stays visible; nothing is retracted.
func (s *Store) MarkFailed(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.byID[id]; ok {
		s.messages[i].Status = domain.MessageFailed
	}
}

// Messages returns a copy of the current list in order.
func (s *Store) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}
