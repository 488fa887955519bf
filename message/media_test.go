// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSendMedia_UploadsThenSends(t *testing.T) {
	session := &fakeSession{uploadURI: "mxc://test.local/uploaded"}
	composer := newTestComposer(t, session)

	store := newTestStore(t)
	local := store.MessageByID("~!room:test.local:image", testRoom, textEvent("$x", testAlice, "", 1), true)

	waitForSend(t, composer.SendMedia(context.Background(), testRoom, Image{
		Data:     []byte("png-bytes"),
		FileName: "cat.png",
		MimeType: "image/png",
		Width:    10,
		Height:   20,
		Size:     9,
	}, local))

	if len(session.uploads) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(session.uploads))
	}
	if session.uploads[0].contentType != "image/png" {
		t.Errorf("unexpected upload content type: %q", session.uploads[0].contentType)
	}
	if string(session.uploads[0].data) != "png-bytes" {
		t.Errorf("unexpected upload payload: %q", session.uploads[0].data)
	}

	sends := session.sentMessages()
	if len(sends) != 1 {
		t.Fatalf("expected 1 send, got %d", len(sends))
	}
	if sends[0].content.URL != "mxc://test.local/uploaded" {
		t.Errorf("upload URI was not substituted: %q", sends[0].content.URL)
	}
	if local.Status() != StatusSent {
		t.Errorf("unexpected status: %s", local.Status())
	}
}

func TestSendMedia_UploadFailureSendsNothing(t *testing.T) {
	session := &fakeSession{uploadErr: errors.New("disk full")}
	composer := newTestComposer(t, session)

	store := newTestStore(t)
	local := store.MessageByID("~!room:test.local:video", testRoom, textEvent("$x", testAlice, "", 1), true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := composer.SendMedia(ctx, testRoom, Video{
		Data:     []byte("mp4-bytes"),
		FileName: "clip.mp4",
		MimeType: "video/mp4",
	}, local).Wait(ctx)

	var uploadErr *UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("expected *UploadError, got %T: %v", err, err)
	}
	if uploadErr.Code != UploadErrorCode {
		t.Errorf("unexpected code: %q", uploadErr.Code)
	}
	if len(session.sentMessages()) != 0 {
		t.Error("no event may be sent after a failed upload")
	}
	if local.Status() != StatusNotUploaded {
		t.Errorf("unexpected status: %s", local.Status())
	}
}

func TestSendMedia_EmptyContentURIIsFailure(t *testing.T) {
	// An upload that "succeeds" without returning a content URI is as
	// useless as a failed one.
	session := &fakeSession{uploadURI: ""}
	composer := newTestComposer(t, session)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := composer.SendMedia(ctx, testRoom, Image{
		Data:     []byte("png-bytes"),
		MimeType: "image/png",
	}, nil).Wait(ctx)

	var uploadErr *UploadError
	if !errors.As(err, &uploadErr) {
		t.Fatalf("expected *UploadError, got %T: %v", err, err)
	}
	if len(session.sentMessages()) != 0 {
		t.Error("no event may be sent without a content URI")
	}
}

func TestSendMedia_RejectsNonMediaContent(t *testing.T) {
	session := &fakeSession{uploadURI: "mxc://test.local/x"}
	composer := newTestComposer(t, session)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := composer.SendMedia(ctx, testRoom, Text{Body: "not media"}, nil).Wait(ctx)
	if err == nil {
		t.Fatal("expected error for non-media content")
	}
	if len(session.uploads) != 0 {
		t.Error("nothing should have been uploaded")
	}
}
