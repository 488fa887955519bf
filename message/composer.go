// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bureau-foundation/parley/lib/ref"
	"github.com/bureau-foundation/parley/messaging"
)

const (
	msgTypeText  = "m.text"
	msgTypeImage = "m.image"
	msgTypeVideo = "m.video"
	msgTypeFile  = "m.file"

	relTypeReplace = "m.replace"
)

// ComposerConfig configures a Composer.
type ComposerConfig struct {
	// Session used to send events and upload media. Required.
	Session messaging.Session

	// Renderer for markdown in Text bodies. Defaults to the goldmark
	// renderer.
	Renderer Renderer

	// DisableMarkdown sends Text bodies verbatim without markdown
	// detection.
	DisableMarkdown bool

	// Logger for send outcomes. Defaults to slog.Default().
	Logger *slog.Logger
}

// Composer turns Content variants into Matrix room events. Sends are
// fire-and-forget: failures are logged and reported only through the
// returned SendHandle, never panic a caller.
type Composer struct {
	session         messaging.Session
	renderer        Renderer
	disableMarkdown bool
	logger          *slog.Logger
}

// NewComposer creates a Composer for the given session.
func NewComposer(config ComposerConfig) (*Composer, error) {
	if config.Session == nil {
		return nil, fmt.Errorf("message: composer requires a session")
	}
	renderer := config.Renderer
	if renderer == nil {
		renderer = NewGoldmarkRenderer()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{
		session:         config.Session,
		renderer:        renderer,
		disableMarkdown: config.DisableMarkdown,
		logger:          logger,
	}, nil
}

// SendHandle tracks one in-flight send. Callers that care about the
// outcome call Wait; callers that don't can drop the handle.
type SendHandle struct {
	done    chan struct{}
	eventID ref.EventID
	err     error
}

func newSendHandle() *SendHandle {
	return &SendHandle{done: make(chan struct{})}
}

func (h *SendHandle) finish(eventID ref.EventID, err error) {
	h.eventID = eventID
	h.err = err
	close(h.done)
}

// Wait blocks until the send completes or ctx expires, and returns
// the event ID the homeserver assigned.
func (h *SendHandle) Wait(ctx context.Context) (ref.EventID, error) {
	select {
	case <-h.done:
		return h.eventID, h.err
	case <-ctx.Done():
		return ref.EventID{}, ctx.Err()
	}
}

// Send composes the payload for content and sends it to roomID in the
// background. Composition and transport failures are logged with room
// and kind context and surface only through the handle.
func (c *Composer) Send(ctx context.Context, roomID ref.RoomID, content Content) *SendHandle {
	handle := newSendHandle()
	go c.send(ctx, roomID, content, handle)
	return handle
}

func (c *Composer) send(ctx context.Context, roomID ref.RoomID, content Content, handle *SendHandle) {
	payload, err := c.compose(content)
	if err != nil {
		c.logger.Warn("message composition failed",
			"room_id", roomID,
			"kind", fmt.Sprintf("%T", content),
			"error", err)
		handle.finish(ref.EventID{}, err)
		return
	}

	eventID, err := c.session.SendMessage(ctx, roomID, payload)
	if err != nil {
		c.logger.Error("message send failed",
			"room_id", roomID,
			"kind", fmt.Sprintf("%T", content),
			"error", err)
		handle.finish(ref.EventID{}, err)
		return
	}
	handle.finish(eventID, nil)
}

// compose builds the m.room.message content for a variant.
func (c *Composer) compose(content Content) (messaging.MessageContent, error) {
	switch v := content.(type) {
	case Text:
		return c.composeText(v)

	case Image:
		return messaging.MessageContent{
			MsgType: msgTypeImage,
			Body:    v.FileName,
			URL:     v.URL,
			Info: &messaging.MediaInfo{
				Width:    v.Width,
				Height:   v.Height,
				MimeType: v.MimeType,
				Size:     v.Size,
			},
		}, nil

	case Video:
		return messaging.MessageContent{
			MsgType: msgTypeVideo,
			Body:    v.FileName,
			URL:     v.URL,
			// The info block is required by clients even when nothing
			// about the video is known yet.
			Info: &messaging.MediaInfo{},
		}, nil

	case File:
		return messaging.MessageContent{
			MsgType: msgTypeFile,
			Body:    v.Name,
			URL:     v.URL,
			Info: &messaging.MediaInfo{
				MimeType: v.MimeType,
				Size:     v.Size,
				Name:     v.Name,
			},
		}, nil

	case Edit:
		target, err := ref.ParseEventID(v.Target)
		if err != nil {
			return messaging.MessageContent{}, fmt.Errorf("message: edit target: %w", err)
		}
		return messaging.MessageContent{
			MsgType: msgTypeText,
			Body:    "* " + v.Body,
			NewContent: &messaging.NewContent{
				MsgType: msgTypeText,
				Body:    v.Body,
			},
			RelatesTo: &messaging.RelatesTo{
				RelType: relTypeReplace,
				EventID: target,
			},
		}, nil

	case Reply:
		if v.Related == nil {
			return messaging.MessageContent{}, fmt.Errorf("message: reply requires a related message")
		}
		target, err := ref.ParseEventID(v.Related.EventID())
		if err != nil {
			return messaging.MessageContent{}, fmt.Errorf("message: reply target: %w", err)
		}
		plain, formatted := buildReplyBodies(v.Related, v.Body)
		return messaging.MessageContent{
			MsgType:       msgTypeText,
			Body:          plain,
			Format:        messaging.FormatHTML,
			FormattedBody: formatted,
			RelatesTo: &messaging.RelatesTo{
				InReplyTo: &messaging.InReplyTo{EventID: target},
			},
		}, nil

	default:
		return messaging.MessageContent{}, fmt.Errorf("message: unsendable content kind %T", content)
	}
}

func (c *Composer) composeText(text Text) (messaging.MessageContent, error) {
	plain := messaging.MessageContent{
		MsgType: msgTypeText,
		Body:    text.Body,
	}
	if c.disableMarkdown {
		return plain, nil
	}

	html, err := c.renderer.Render(text.Body)
	if err != nil {
		return messaging.MessageContent{}, err
	}
	// A body with no markdown constructs renders to itself in a single
	// paragraph; sending a formatted copy would be pure noise.
	if renderedEqualsPlain(html, text.Body) {
		return plain, nil
	}

	plain.Format = messaging.FormatHTML
	plain.FormattedBody = strings.TrimRight(html, "\n")
	return plain, nil
}
