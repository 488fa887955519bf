// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"log/slog"

	"github.com/bureau-foundation/parley/lib/ref"
	"github.com/bureau-foundation/parley/messaging"
)

const relTypeAnnotation = "m.annotation"

// Ingestor feeds a Store from /sync responses: room messages become
// store entries, reactions and edits land on their targets, redactions
// remove reactions, and read receipts update the receipt map.
type Ingestor struct {
	store  *Store
	logger *slog.Logger
}

// NewIngestor creates an Ingestor writing into store.
func NewIngestor(store *Store, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{store: store, logger: logger}
}

// ApplySync walks the joined rooms of a sync response and applies
// every timeline and ephemeral event it understands. Unknown event
// types and relations targeting unknown messages are skipped.
func (ing *Ingestor) ApplySync(response *messaging.SyncResponse) {
	for roomID, joined := range response.Rooms.Join {
		for _, event := range joined.Timeline.Events {
			ing.applyTimelineEvent(roomID, event)
		}
		for _, event := range joined.Ephemeral.Events {
			if event.Type == ref.EventTypeReceipt {
				ing.applyReceipt(event)
			}
		}
	}
}

func (ing *Ingestor) applyTimelineEvent(roomID ref.RoomID, event messaging.Event) {
	switch event.Type {
	case ref.EventTypeRoomMessage:
		ing.applyRoomMessage(roomID, event)
	case ref.EventTypeReaction:
		ing.applyReaction(roomID, event)
	case ref.EventTypeRedaction:
		ing.applyRedaction(roomID, event)
	default:
		ing.logger.Debug("skipping event type",
			"room_id", roomID,
			"type", event.Type,
			"event_id", event.EventID)
	}
}

func (ing *Ingestor) applyRoomMessage(roomID ref.RoomID, event messaging.Event) {
	// An m.replace relation edits an earlier message instead of
	// creating a new one.
	if relation := relatesTo(event); relation != nil && relation.relType == relTypeReplace {
		target := ing.store.existing(roomID, relation.eventID)
		if target == nil {
			ing.logger.Debug("edit for unknown message",
				"room_id", roomID,
				"target", relation.eventID)
			return
		}
		newContent, _ := event.Content["m.new_content"].(map[string]any)
		if newContent == nil {
			return
		}
		body, _ := newContent["body"].(string)
		formatted, _ := newContent["formatted_body"].(string)
		target.ApplyEdit(body, formatted)
		return
	}

	ing.store.MessageByID(event.EventID.String(), roomID, event, false)
}

func (ing *Ingestor) applyReaction(roomID ref.RoomID, event messaging.Event) {
	relation := relatesTo(event)
	if relation == nil || relation.relType != relTypeAnnotation {
		return
	}
	target := ing.store.existing(roomID, relation.eventID)
	if target == nil {
		ing.logger.Debug("reaction for unknown message",
			"room_id", roomID,
			"target", relation.eventID)
		return
	}
	target.AddReaction(event.Sender, relation.key, event)
}

func (ing *Ingestor) applyRedaction(roomID ref.RoomID, event messaging.Event) {
	if event.Redacts.IsZero() {
		return
	}
	redacted := event.Redacts.String()
	target := ing.store.MessageByRelationID(redacted, roomID)
	if target == nil {
		return
	}
	target.RemoveReaction(redacted)
}

// applyReceipt records the m.read section of an m.receipt ephemeral
// event: one receipt per user, last write wins.
func (ing *Ingestor) applyReceipt(event messaging.Event) {
	for eventID, perType := range event.Content {
		byType, ok := perType.(map[string]any)
		if !ok {
			continue
		}
		readers, ok := byType["m.read"].(map[string]any)
		if !ok {
			continue
		}
		for rawUserID := range readers {
			userID, err := ref.ParseUserID(rawUserID)
			if err != nil {
				ing.logger.Debug("receipt from invalid user ID",
					"user_id", rawUserID,
					"error", err)
				continue
			}
			ing.store.SetReceipt(userID, eventID)
		}
	}
}

// parsed m.relates_to block of an event's content.
type relation struct {
	relType string
	eventID string
	key     string
}

func relatesTo(event messaging.Event) *relation {
	block, ok := event.Content["m.relates_to"].(map[string]any)
	if !ok {
		return nil
	}
	parsed := &relation{}
	parsed.relType, _ = block["rel_type"].(string)
	parsed.eventID, _ = block["event_id"].(string)
	parsed.key, _ = block["key"].(string)
	if parsed.eventID == "" {
		return nil
	}
	return parsed
}
