// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"bytes"
	"context"
	"fmt"

	"github.com/bureau-foundation/parley/lib/ref"
)

// UploadErrorCode marks a media message whose content never reached
// the content repository.
const UploadErrorCode = "CONTENT_NOT_UPLOADED"

// UploadError reports a failed media upload. No room event is sent
// when the upload fails; the error is the only artifact.
type UploadError struct {
	Code string
	Err  error
}

func (e *UploadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("message: upload failed (%s): %v", e.Code, e.Err)
	}
	return fmt.Sprintf("message: upload failed (%s)", e.Code)
}

func (e *UploadError) Unwrap() error { return e.Err }

// SendMedia uploads the payload of an Image or Video and, on success,
// sends the message with the returned mxc URI substituted in. A failed
// upload (transport error or empty content URI) sends nothing and
// resolves the handle with an *UploadError.
//
// When local is non-nil it tracks the delivery state of the message
// being sent: StatusUploading while the upload runs, StatusNotUploaded
// on failure, StatusSent once the room event is accepted.
func (c *Composer) SendMedia(ctx context.Context, roomID ref.RoomID, content Content, local *Message) *SendHandle {
	handle := newSendHandle()
	go c.sendMedia(ctx, roomID, content, local, handle)
	return handle
}

func (c *Composer) sendMedia(ctx context.Context, roomID ref.RoomID, content Content, local *Message, handle *SendHandle) {
	var data []byte
	var mimeType string

	switch v := content.(type) {
	case Image:
		data, mimeType = v.Data, v.MimeType
	case Video:
		data, mimeType = v.Data, v.MimeType
	default:
		err := fmt.Errorf("message: %T is not a media kind", content)
		c.logger.Warn("media send refused", "room_id", roomID, "error", err)
		handle.finish(ref.EventID{}, err)
		return
	}

	if local != nil {
		local.SetStatus(StatusUploading)
	}

	contentURI, err := c.session.UploadMedia(ctx, mimeType, bytes.NewReader(data))
	if err != nil || contentURI == "" {
		uploadErr := &UploadError{Code: UploadErrorCode, Err: err}
		c.logger.Error("media upload failed",
			"room_id", roomID,
			"mime_type", mimeType,
			"error", uploadErr)
		if local != nil {
			local.SetStatus(StatusNotUploaded)
		}
		handle.finish(ref.EventID{}, uploadErr)
		return
	}

	switch v := content.(type) {
	case Image:
		v.URL = contentURI
		content = v
	case Video:
		v.URL = contentURI
		content = v
	}

	c.send(ctx, roomID, content, handle)
	if local != nil {
		if _, err := handle.Wait(ctx); err == nil {
			local.SetStatus(StatusSent)
		}
	}
}
