// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/parley/lib/ref"
)

// SyncFilter narrows what a RoomWatcher receives from /sync. The
// watched room is always part of the filter; callers only describe
// which of its events they care about.
//
// A nil *SyncFilter delivers everything from the room: state,
// timeline, and ephemeral events.
type SyncFilter struct {
	// TimelineTypes restricts timeline events to these Matrix event
	// types ("m.room.message", "m.reaction", ...). Empty means all
	// timeline types.
	TimelineTypes []string `json:"timeline_types,omitempty"`

	// TimelineLimit caps timeline events per /sync response. Zero
	// leaves the server default in place.
	TimelineLimit int `json:"timeline_limit,omitempty"`

	// ExcludeState drops state events entirely, leaving only the
	// timeline events selected by TimelineTypes.
	ExcludeState bool `json:"exclude_state,omitempty"`
}

// buildInlineFilter renders the /sync filter as inline JSON, scoped to
// roomID. Presence and account data are always filtered out: a watcher
// only cares about room activity.
func buildInlineFilter(roomID ref.RoomID, filter *SyncFilter) string {
	roomFilter := map[string]any{
		"rooms": []string{roomID.String()},
	}

	if filter != nil {
		if len(filter.TimelineTypes) > 0 {
			timeline := map[string]any{"types": filter.TimelineTypes}
			if filter.TimelineLimit > 0 {
				timeline["limit"] = filter.TimelineLimit
			}
			roomFilter["timeline"] = timeline
		} else if filter.TimelineLimit > 0 {
			roomFilter["timeline"] = map[string]any{"limit": filter.TimelineLimit}
		}

		if filter.ExcludeState {
			roomFilter["state"] = map[string]any{"types": []string{}}
		}
	}

	top := map[string]any{
		"room":         roomFilter,
		"presence":     map[string]any{"types": []string{}},
		"account_data": map[string]any{"types": []string{}},
	}

	data, _ := json.Marshal(top)
	return string(data)
}

// RoomWatcher observes one room's slice of the /sync stream from a
// fixed starting position. parley-send uses it to confirm delivery:
// watch the room, send, then wait for the homeserver to echo the
// assigned event ID back through /sync. Create the watcher BEFORE
// triggering the action whose event you expect, or the event can land
// in the gap before the first long-poll.
//
// Waiting is Matrix long-polling: the homeserver holds the /sync
// request open until something happens in the room. The watcher never
// sleeps or polls on a client-side interval.
//
// A RoomWatcher is single-goroutine. To watch from several goroutines,
// give each its own watcher on the same Session; Session.Sync carries
// the since token as a query parameter, so independent watchers never
// interfere.
type RoomWatcher struct {
	session   Session
	roomID    ref.RoomID
	filter    string  // inline JSON /sync filter, fixed at creation
	nextBatch string  // position in the /sync stream
	pending   []Event // delivered by /sync, not yet claimed by a predicate
}

// WatchRoom captures the current /sync position for roomID. Events
// older than this call are never delivered.
//
// The capture is a timeout=0 /sync: it returns the current next_batch
// token without waiting for activity. Pass a nil filter to receive
// every event type from the room.
func WatchRoom(ctx context.Context, session Session, roomID ref.RoomID, filter *SyncFilter) (*RoomWatcher, error) {
	if roomID.IsZero() {
		return nil, fmt.Errorf("messaging: WatchRoom requires a non-zero room ID")
	}
	inlineFilter := buildInlineFilter(roomID, filter)
	response, err := session.Sync(ctx, SyncOptions{
		SetTimeout: true,
		Timeout:    0,
		Filter:     inlineFilter,
	})
	if err != nil {
		return nil, fmt.Errorf("messaging: initial sync for room watch: %w", err)
	}
	return &RoomWatcher{
		session:   session,
		roomID:    roomID,
		filter:    inlineFilter,
		nextBatch: response.NextBatch,
	}, nil
}

// maxSyncRetries bounds consecutive /sync failures before WaitForEvent
// gives up and returns the last error.
const maxSyncRetries = 5

// longPollTimeout is the server-side hold time in milliseconds for a
// normal /sync long-poll. 30 seconds follows the client-server spec
// recommendation.
const longPollTimeout = 30000

// retryTimeout is the server-side timeout in milliseconds for a /sync
// issued right after a failure. Kept short so the round-trip itself
// paces the retries; there is no client-side sleep.
const retryTimeout = 1000

// takePending removes and returns the first buffered event matching
// the predicate.
func (w *RoomWatcher) takePending(predicate func(Event) bool) (Event, bool) {
	for i, event := range w.pending {
		if predicate(event) {
			w.pending = append(w.pending[:i], w.pending[i+1:]...)
			return event, true
		}
	}
	return Event{}, false
}

// WaitForEvent blocks until an event matching the predicate arrives in
// the watched room. A /sync batch can carry several matching events;
// unclaimed ones stay buffered, and later WaitForEvent calls drain the
// buffer before touching the network again.
//
// Bounded by ctx. Transient /sync errors are retried up to
// maxSyncRetries times; idle HTTP connections are dropped between
// attempts when the Session supports it, since a reset or EOF usually
// means a poisoned pooled connection.
func (w *RoomWatcher) WaitForEvent(ctx context.Context, predicate func(Event) bool) (Event, error) {
	var syncRetries int

	if event, ok := w.takePending(predicate); ok {
		return event, nil
	}

	for {
		// After a failure, ask the server for a quick answer instead
		// of a full long-poll hold, so the retry budget is spent in
		// seconds rather than minutes.
		syncTimeout := longPollTimeout
		if syncRetries > 0 {
			syncTimeout = retryTimeout
		}
		response, err := w.session.Sync(ctx, SyncOptions{
			Since:      w.nextBatch,
			SetTimeout: true,
			Timeout:    syncTimeout,
			Filter:     w.filter,
		})
		if err != nil {
			if ctx.Err() != nil {
				return Event{}, fmt.Errorf("context cancelled waiting for event in room %s: %w", w.roomID, ctx.Err())
			}
			syncRetries++
			if closer, ok := w.session.(interface{ CloseIdleConnections() }); ok {
				closer.CloseIdleConnections()
			}
			if syncRetries > maxSyncRetries {
				return Event{}, fmt.Errorf("sync failed %d consecutive times waiting for event in room %s: %w",
					syncRetries, w.roomID, err)
			}
			slog.Debug("room watcher sync error, retrying",
				"room_id", w.roomID,
				"attempt", syncRetries,
				"max_attempts", maxSyncRetries,
				"error", err,
			)
			continue
		}
		syncRetries = 0
		w.nextBatch = response.NextBatch

		joined, ok := response.Rooms.Join[w.roomID]
		if !ok {
			// The long-poll woke up for activity elsewhere (the filter
			// scopes the response, not the wake-up). Nothing for this
			// room; poll again from the new position.
			continue
		}

		if len(joined.State.Events) == 0 && len(joined.Timeline.Events) == 0 {
			continue
		}

		// The server delivers state before timeline; keep that order
		// in the buffer.
		w.pending = append(w.pending, joined.State.Events...)
		w.pending = append(w.pending, joined.Timeline.Events...)

		if event, ok := w.takePending(predicate); ok {
			return event, nil
		}
	}
}

// SyncPosition returns the watcher's current /sync stream token.
func (w *RoomWatcher) SyncPosition() string {
	return w.nextBatch
}

// RoomID returns the room being watched.
func (w *RoomWatcher) RoomID() ref.RoomID {
	return w.roomID
}
