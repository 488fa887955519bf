// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

// EventType identifies a Matrix state or timeline event type, such as
// "m.room.message" or "m.reaction".
//
// EventType is a named string type, not a struct wrapper: event types
// are opaque identifiers that need no parsing or validation. The type
// exists purely for compile-time safety — preventing accidental use of
// a state key or message body where an event type is expected.
type EventType string

// Event types the message layer handles.
const (
	EventTypeRoomMessage EventType = "m.room.message"
	EventTypeReaction    EventType = "m.reaction"
	EventTypeRedaction   EventType = "m.room.redaction"
	EventTypeReceipt     EventType = "m.receipt"
)

// String returns the event type string (e.g., "m.room.message").
func (t EventType) String() string { return string(t) }
