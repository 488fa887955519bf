// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"log/slog"
	"sync"

	"github.com/bureau-foundation/parley/lib/ref"
	"github.com/bureau-foundation/parley/messaging"
)

// StoreConfig configures a Store.
type StoreConfig struct {
	// Logger for store activity. Defaults to slog.Default().
	Logger *slog.Logger
}

// Store owns every Message the client knows about, keyed by room and
// event ID, plus the per-user read receipt map. All methods are safe
// for concurrent use.
type Store struct {
	logger *slog.Logger

	mu       sync.Mutex
	rooms    map[ref.RoomID]map[string]*Message
	receipts map[ref.UserID]string
}

// NewStore creates an empty store.
func NewStore(config StoreConfig) *Store {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		logger:   logger,
		rooms:    make(map[ref.RoomID]map[string]*Message),
		receipts: make(map[ref.UserID]string),
	}
}

// MessageByID returns the message stored under (roomID, eventID),
// creating it from the given event if absent. An existing entry is
// returned as-is: the raw event and pending flag of the first creation
// win, so repeated lookups always yield the same *Message. An empty
// eventID creates nothing and returns nil.
func (s *Store) MessageByID(eventID string, roomID ref.RoomID, raw messaging.Event, pending bool) *Message {
	if eventID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room := s.rooms[roomID]
	if room == nil {
		room = make(map[string]*Message)
		s.rooms[roomID] = room
	}
	if existing, ok := room[eventID]; ok {
		return existing
	}
	created := newMessage(eventID, roomID, raw, pending)
	room[eventID] = created
	return created
}

// existing returns the stored message or nil, without creating one.
func (s *Store) existing(roomID ref.RoomID, eventID string) *Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[roomID][eventID]
}

// UpdateMessage re-derives the displayed state of one message. Unknown
// rooms and event IDs are a no-op.
func (s *Store) UpdateMessage(eventID string, roomID ref.RoomID) {
	if target := s.existing(roomID, eventID); target != nil {
		target.Update()
	}
}

// UpdateRoomMessages re-derives the displayed state of every message
// in the room. An unknown room is a no-op.
func (s *Store) UpdateRoomMessages(roomID ref.RoomID) {
	s.mu.Lock()
	room := s.rooms[roomID]
	targets := make([]*Message, 0, len(room))
	for _, message := range room {
		targets = append(targets, message)
	}
	s.mu.Unlock()

	for _, target := range targets {
		target.Update()
	}
}

// CleanupRoomMessages removes every entry in the room whose event ID
// is not in keep. This is the only way messages leave the store. An
// unknown room is a no-op.
func (s *Store) CleanupRoomMessages(roomID ref.RoomID, keep []string) {
	keepSet := make(map[string]struct{}, len(keep))
	for _, eventID := range keep {
		keepSet[eventID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	room := s.rooms[roomID]
	if room == nil {
		return
	}
	for eventID := range room {
		if _, ok := keepSet[eventID]; !ok {
			delete(room, eventID)
		}
	}
}

// RoomMessages returns a snapshot of every message currently stored
// for the room, in no particular order.
func (s *Store) RoomMessages(roomID ref.RoomID) []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := s.rooms[roomID]
	snapshot := make([]*Message, 0, len(room))
	for _, message := range room {
		snapshot = append(snapshot, message)
	}
	return snapshot
}

// MessageByRelationID finds the message that a relation event targets
// by scanning the room's reaction state for the relation's event ID.
// When several entries somehow carry the same reaction event, an
// arbitrary one of them is returned. Returns nil if nothing matches.
func (s *Store) MessageByRelationID(eventID string, roomID ref.RoomID) *Message {
	s.mu.Lock()
	room := s.rooms[roomID]
	candidates := make([]*Message, 0, len(room))
	for _, message := range room {
		candidates = append(candidates, message)
	}
	s.mu.Unlock()

	for _, candidate := range candidates {
		if candidate.hasReactionEvent(eventID) {
			return candidate
		}
	}
	return nil
}

// SetReceipt records the newest event the user has read. Last write
// wins; no history is kept.
func (s *Store) SetReceipt(userID ref.UserID, eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts[userID] = eventID
}

// Receipt returns the event ID of the user's latest read receipt.
func (s *Store) Receipt(userID ref.UserID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	eventID, ok := s.receipts[userID]
	return eventID, ok
}
