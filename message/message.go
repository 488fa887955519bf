// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"sync"

	"github.com/bureau-foundation/parley/lib/ref"
	"github.com/bureau-foundation/parley/messaging"
)

// Status describes the delivery state of a locally originated message.
type Status int

const (
	// StatusSent is the resting state: the event has been accepted by
	// the homeserver (or arrived from it in the first place).
	StatusSent Status = iota

	// StatusUploading marks a media message whose payload is still
	// being uploaded to the content repository.
	StatusUploading

	// StatusNotUploaded marks a media message whose upload failed. No
	// room event was sent for it.
	StatusNotUploaded
)

func (s Status) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusUploading:
		return "uploading"
	case StatusNotUploaded:
		return "not_uploaded"
	default:
		return "unknown"
	}
}

// Reactions maps a sender's user ID to that sender's reaction events,
// keyed by the reaction key (the emoji). Snapshots handed to
// subscribers are deep copies and safe to retain.
type Reactions map[string]map[string]messaging.Event

// Message is a single timeline entry. Instances are created and owned
// by a Store; all accessors are safe for concurrent use.
//
// The event ID is a plain string rather than a ref.EventID because
// locally originated messages carry a client-side placeholder ID until
// the homeserver assigns a real one.
type Message struct {
	eventID string
	roomID  ref.RoomID
	raw     messaging.Event
	pending bool

	mu            sync.Mutex
	status        Status
	sender        ref.UserID
	timestamp     int64 // milliseconds since epoch
	msgType       string
	body          string
	formattedBody string

	// Edit overlay: when an m.replace relation has been applied, the
	// replacement text wins over whatever the raw event says. Update()
	// re-derives from raw and then re-applies the overlay, so the edit
	// survives refreshes.
	edited        bool
	editBody      string
	editFormatted string

	reactions   Reactions
	subscribers map[int]chan Reactions
	nextSubID   int
}

func newMessage(eventID string, roomID ref.RoomID, raw messaging.Event, pending bool) *Message {
	m := &Message{
		eventID:     eventID,
		roomID:      roomID,
		raw:         raw,
		pending:     pending,
		reactions:   make(Reactions),
		subscribers: make(map[int]chan Reactions),
	}
	m.deriveLocked()
	return m
}

// EventID returns the ID this message is stored under.
func (m *Message) EventID() string { return m.eventID }

// RoomID returns the room this message belongs to.
func (m *Message) RoomID() ref.RoomID { return m.roomID }

// Raw returns the originating event as it arrived from the server.
func (m *Message) Raw() messaging.Event { return m.raw }

// Pending reports whether this message originated locally and has not
// yet been confirmed by the homeserver.
func (m *Message) Pending() bool { return m.pending }

// Sender returns the user who sent the message.
func (m *Message) Sender() ref.UserID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sender
}

// Timestamp returns the origin server timestamp in milliseconds.
func (m *Message) Timestamp() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timestamp
}

// MsgType returns the m.room.message msgtype ("m.text", "m.image", ...).
func (m *Message) MsgType() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.msgType
}

// Body returns the plain-text body, with any applied edit folded in.
func (m *Message) Body() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.body
}

// FormattedBody returns the HTML body, or "" for plain messages.
func (m *Message) FormattedBody() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.formattedBody
}

// Status returns the delivery state.
func (m *Message) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// SetStatus records a delivery state transition.
func (m *Message) SetStatus(status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// Update re-derives the displayed state from the raw event. An edit
// overlay applied via ApplyEdit is preserved.
func (m *Message) Update() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deriveLocked()
}

func (m *Message) deriveLocked() {
	m.sender = m.raw.Sender
	m.timestamp = m.raw.OriginServerTS

	if content := m.raw.Content; content != nil {
		m.msgType, _ = content["msgtype"].(string)
		m.body, _ = content["body"].(string)
		m.formattedBody, _ = content["formatted_body"].(string)
	} else {
		m.msgType = ""
		m.body = ""
		m.formattedBody = ""
	}

	if m.edited {
		m.body = m.editBody
		m.formattedBody = m.editFormatted
	}
}

// ApplyEdit replaces the displayed body with the m.new_content of an
// m.replace relation. The raw event is left untouched.
func (m *Message) ApplyEdit(newBody, newFormatted string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edited = true
	m.editBody = newBody
	m.editFormatted = newFormatted
	m.body = newBody
	m.formattedBody = newFormatted
}

// AddReaction records a reaction event from sender under the given key
// and pushes a snapshot to subscribers. A second reaction with the same
// sender and key replaces the first.
func (m *Message) AddReaction(sender ref.UserID, key string, event messaging.Event) {
	m.mu.Lock()
	senderKey := sender.String()
	if m.reactions[senderKey] == nil {
		m.reactions[senderKey] = make(map[string]messaging.Event)
	}
	m.reactions[senderKey][key] = event
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.publish(snapshot)
}

// RemoveReaction deletes the reaction whose event ID matches and
// pushes a snapshot to subscribers. It reports whether a reaction was
// actually removed; an unknown ID is a no-op.
func (m *Message) RemoveReaction(eventID string) bool {
	m.mu.Lock()
	removed := false
	for senderKey, byKey := range m.reactions {
		for key, event := range byKey {
			if event.EventID.String() == eventID {
				delete(byKey, key)
				removed = true
			}
		}
		if len(byKey) == 0 {
			delete(m.reactions, senderKey)
		}
	}
	var snapshot Reactions
	if removed {
		snapshot = m.snapshotLocked()
	}
	m.mu.Unlock()

	if removed {
		m.publish(snapshot)
	}
	return removed
}

// ReactionSnapshot returns a deep copy of the current reaction state.
func (m *Message) ReactionSnapshot() Reactions {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// hasReactionEvent reports whether any recorded reaction carries the
// given event ID. Used by the store's relation resolver.
func (m *Message) hasReactionEvent(eventID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, byKey := range m.reactions {
		for _, event := range byKey {
			if event.EventID.String() == eventID {
				return true
			}
		}
	}
	return false
}

func (m *Message) snapshotLocked() Reactions {
	snapshot := make(Reactions, len(m.reactions))
	for senderKey, byKey := range m.reactions {
		copied := make(map[string]messaging.Event, len(byKey))
		for key, event := range byKey {
			copied[key] = event
		}
		snapshot[senderKey] = copied
	}
	return snapshot
}

// SubscribeReactions returns a channel that receives reaction
// snapshots and a cancel function that must be called when the
// subscriber is done. The channel is buffered with capacity one and
// never blocks the message: a subscriber that falls behind sees only
// the latest snapshot, not every intermediate state.
func (m *Message) SubscribeReactions() (<-chan Reactions, func()) {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	channel := make(chan Reactions, 1)
	m.subscribers[id] = channel
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		delete(m.subscribers, id)
		m.mu.Unlock()
	}
	return channel, cancel
}

func (m *Message) publish(snapshot Reactions) {
	m.mu.Lock()
	channels := make([]chan Reactions, 0, len(m.subscribers))
	for _, channel := range m.subscribers {
		channels = append(channels, channel)
	}
	m.mu.Unlock()

	for _, channel := range channels {
		// Replace a stale buffered snapshot rather than blocking.
		select {
		case channel <- snapshot:
		default:
			select {
			case <-channel:
			default:
			}
			select {
			case channel <- snapshot:
			default:
			}
		}
	}
}
