// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/bureau-foundation/parley/lib/ref"
)

// scriptedSession returns canned /sync responses in order. Only the
// methods the watcher touches are implemented; the rest fail the test.
type scriptedSession struct {
	t         *testing.T
	responses []syncResult
	calls     int
	idleDrops int
}

type syncResult struct {
	response *SyncResponse
	err      error
}

func (s *scriptedSession) Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error) {
	if s.calls >= len(s.responses) {
		s.t.Fatalf("unexpected Sync call %d", s.calls+1)
	}
	result := s.responses[s.calls]
	s.calls++
	return result.response, result.err
}

func (s *scriptedSession) CloseIdleConnections() {
	s.idleDrops++
}

func (s *scriptedSession) UserID() ref.UserID { return ref.UserID{} }
func (s *scriptedSession) Close() error       { return nil }
func (s *scriptedSession) WhoAmI(ctx context.Context) (ref.UserID, error) {
	s.t.Fatal("unexpected WhoAmI call")
	return ref.UserID{}, nil
}
func (s *scriptedSession) SendMessage(ctx context.Context, roomID ref.RoomID, content MessageContent) (ref.EventID, error) {
	s.t.Fatal("unexpected SendMessage call")
	return ref.EventID{}, nil
}
func (s *scriptedSession) SendEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, content any) (ref.EventID, error) {
	s.t.Fatal("unexpected SendEvent call")
	return ref.EventID{}, nil
}
func (s *scriptedSession) RedactEvent(ctx context.Context, roomID ref.RoomID, eventID ref.EventID, reason string) (ref.EventID, error) {
	s.t.Fatal("unexpected RedactEvent call")
	return ref.EventID{}, nil
}
func (s *scriptedSession) UploadMedia(ctx context.Context, contentType string, body io.Reader) (string, error) {
	s.t.Fatal("unexpected UploadMedia call")
	return "", nil
}
func (s *scriptedSession) RoomMessages(ctx context.Context, roomID ref.RoomID, options RoomMessagesOptions) (*RoomMessagesResponse, error) {
	s.t.Fatal("unexpected RoomMessages call")
	return nil, nil
}
func (s *scriptedSession) ResolveAlias(ctx context.Context, alias ref.RoomAlias) (ref.RoomID, error) {
	s.t.Fatal("unexpected ResolveAlias call")
	return ref.RoomID{}, nil
}
func (s *scriptedSession) JoinRoom(ctx context.Context, roomID ref.RoomID) (ref.RoomID, error) {
	s.t.Fatal("unexpected JoinRoom call")
	return ref.RoomID{}, nil
}
func (s *scriptedSession) JoinedRooms(ctx context.Context) ([]ref.RoomID, error) {
	s.t.Fatal("unexpected JoinedRooms call")
	return nil, nil
}
func (s *scriptedSession) GetDisplayName(ctx context.Context, userID ref.UserID) (string, error) {
	s.t.Fatal("unexpected GetDisplayName call")
	return "", nil
}

var _ Session = (*scriptedSession)(nil)

func watchedRoom(t *testing.T) ref.RoomID {
	t.Helper()
	return ref.MustParseRoomID("!watched:test.local")
}

func timelineResponse(batch string, roomID ref.RoomID, events ...Event) *SyncResponse {
	return &SyncResponse{
		NextBatch: batch,
		Rooms: RoomsSection{
			Join: map[ref.RoomID]JoinedRoom{
				roomID: {Timeline: TimelineSection{Events: events}},
			},
		},
	}
}

func messageEvent(eventID, body string) Event {
	return Event{
		EventID: ref.MustParseEventID(eventID),
		Type:    ref.EventTypeRoomMessage,
		Sender:  ref.MustParseUserID("@alice:test.local"),
		Content: map[string]any{"msgtype": "m.text", "body": body},
	}
}

func TestWaitForEvent(t *testing.T) {
	roomID := watchedRoom(t)
	session := &scriptedSession{t: t, responses: []syncResult{
		// Initial checkpoint sync performed by WatchRoom.
		{response: &SyncResponse{NextBatch: "b1"}},
		// A batch with activity in other rooms only.
		{response: &SyncResponse{NextBatch: "b2"}},
		// The batch carrying the expected event.
		{response: timelineResponse("b3", roomID, messageEvent("$wanted", "hello"))},
	}}

	watcher, err := WatchRoom(context.Background(), session, roomID, nil)
	if err != nil {
		t.Fatalf("WatchRoom failed: %v", err)
	}

	event, err := watcher.WaitForEvent(context.Background(), func(event Event) bool {
		return event.Content["body"] == "hello"
	})
	if err != nil {
		t.Fatalf("WaitForEvent failed: %v", err)
	}
	if event.EventID.String() != "$wanted" {
		t.Errorf("unexpected event: %s", event.EventID)
	}
	if watcher.SyncPosition() != "b3" {
		t.Errorf("unexpected sync position: %q", watcher.SyncPosition())
	}
}

func TestWaitForEvent_ConfirmsDeliveryByEventID(t *testing.T) {
	// The parley-send --confirm flow: capture the sync position, send,
	// then wait for the homeserver to echo the assigned event ID. The
	// echo batch carries unrelated traffic too; only the ID match wins.
	roomID := watchedRoom(t)
	sentID := ref.MustParseEventID("$sent")
	session := &scriptedSession{t: t, responses: []syncResult{
		{response: &SyncResponse{NextBatch: "b1"}},
		{response: timelineResponse("b2", roomID,
			messageEvent("$other", "unrelated chatter"),
			messageEvent("$sent", "the sent message"))},
	}}

	watcher, err := WatchRoom(context.Background(), session, roomID, &SyncFilter{
		TimelineTypes: []string{ref.EventTypeRoomMessage.String()},
		ExcludeState:  true,
	})
	if err != nil {
		t.Fatalf("WatchRoom failed: %v", err)
	}

	echoed, err := watcher.WaitForEvent(context.Background(), func(event Event) bool {
		return event.EventID == sentID
	})
	if err != nil {
		t.Fatalf("WaitForEvent failed: %v", err)
	}
	if echoed.EventID != sentID {
		t.Errorf("confirmed the wrong event: %s", echoed.EventID)
	}
}

func TestWaitForEvent_PendingBufferSurvivesAcrossCalls(t *testing.T) {
	roomID := watchedRoom(t)
	session := &scriptedSession{t: t, responses: []syncResult{
		{response: &SyncResponse{NextBatch: "b1"}},
		// One batch delivers two matching events; the second call must
		// find the buffered one without another sync.
		{response: timelineResponse("b2", roomID,
			messageEvent("$first", "x"),
			messageEvent("$second", "x"))},
	}}

	watcher, err := WatchRoom(context.Background(), session, roomID, nil)
	if err != nil {
		t.Fatalf("WatchRoom failed: %v", err)
	}

	isText := func(event Event) bool { return event.Content["body"] == "x" }

	first, err := watcher.WaitForEvent(context.Background(), isText)
	if err != nil {
		t.Fatalf("first WaitForEvent failed: %v", err)
	}
	second, err := watcher.WaitForEvent(context.Background(), isText)
	if err != nil {
		t.Fatalf("second WaitForEvent failed: %v", err)
	}

	if first.EventID.String() != "$first" || second.EventID.String() != "$second" {
		t.Errorf("events out of order: %s, %s", first.EventID, second.EventID)
	}
	if session.calls != 2 {
		t.Errorf("expected 2 sync calls, got %d", session.calls)
	}
}

func TestWaitForEvent_RetriesThenGivesUp(t *testing.T) {
	roomID := watchedRoom(t)
	syncErr := errors.New("connection reset")

	responses := []syncResult{{response: &SyncResponse{NextBatch: "b1"}}}
	for i := 0; i < maxSyncRetries+1; i++ {
		responses = append(responses, syncResult{err: syncErr})
	}
	session := &scriptedSession{t: t, responses: responses}

	watcher, err := WatchRoom(context.Background(), session, roomID, nil)
	if err != nil {
		t.Fatalf("WatchRoom failed: %v", err)
	}

	_, err = watcher.WaitForEvent(context.Background(), func(Event) bool { return true })
	if !errors.Is(err, syncErr) {
		t.Fatalf("expected the sync error, got %v", err)
	}
	if session.idleDrops != maxSyncRetries+1 {
		t.Errorf("expected idle connections dropped on every failure, got %d", session.idleDrops)
	}
}

func TestBuildInlineFilter(t *testing.T) {
	roomID := watchedRoom(t)

	filter := buildInlineFilter(roomID, &SyncFilter{
		TimelineTypes: []string{"m.room.message"},
		TimelineLimit: 10,
		ExcludeState:  true,
	})

	var parsed map[string]any
	if err := json.Unmarshal([]byte(filter), &parsed); err != nil {
		t.Fatalf("filter is not valid JSON: %v", err)
	}
	room, ok := parsed["room"].(map[string]any)
	if !ok {
		t.Fatalf("missing room section: %s", filter)
	}
	rooms, ok := room["rooms"].([]any)
	if !ok || len(rooms) != 1 || rooms[0] != roomID.String() {
		t.Errorf("filter not scoped to the watched room: %s", filter)
	}
	timeline, ok := room["timeline"].(map[string]any)
	if !ok {
		t.Fatalf("missing timeline restriction: %s", filter)
	}
	if timeline["limit"] != float64(10) {
		t.Errorf("unexpected timeline limit: %v", timeline["limit"])
	}
}
