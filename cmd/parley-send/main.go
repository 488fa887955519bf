// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// parley-send sends a single message to a Matrix room and prints the
// event ID the homeserver assigned. It exists to exercise the message
// layer end to end from a shell: text with markdown detection, media
// files with upload sequencing, edits, and reply quotes.
package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/parley/lib/config"
	"github.com/bureau-foundation/parley/lib/ref"
	"github.com/bureau-foundation/parley/lib/secret"
	"github.com/bureau-foundation/parley/message"
	"github.com/bureau-foundation/parley/messaging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	var room string
	var text string
	var filePath string
	var replyTo string
	var editTarget string
	var confirm bool
	var timeout time.Duration
	var verbose bool

	flagSet := pflag.NewFlagSet("parley-send", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to the YAML config file (default: $PARLEY_CONFIG)")
	flagSet.StringVar(&room, "room", "", "room ID (!...) or alias (#...) to send to")
	flagSet.StringVar(&text, "text", "", "message text (markdown is detected automatically)")
	flagSet.StringVar(&filePath, "file", "", "path to a media file to upload and send")
	flagSet.StringVar(&replyTo, "reply-to", "", "event ID to quote in a reply (with --text)")
	flagSet.StringVar(&editTarget, "edit", "", "event ID of a previous message to replace (with --text)")
	flagSet.BoolVar(&confirm, "confirm", false, "wait until the sent event echoes back on /sync")
	flagSet.DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline for the send")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "log requests to stderr")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if room == "" {
		return fmt.Errorf("--room is required")
	}
	if text == "" && filePath == "" {
		return fmt.Errorf("one of --text or --file is required")
	}
	if replyTo != "" && editTarget != "" {
		return fmt.Errorf("--reply-to and --edit are mutually exclusive")
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	token, err := secret.ReadFromPath(cfg.Account.AccessTokenFile)
	if err != nil {
		return fmt.Errorf("reading access token: %w", err)
	}
	defer token.Close()

	userID, err := ref.ParseUserID(cfg.Account.UserID)
	if err != nil {
		return fmt.Errorf("config user_id: %w", err)
	}

	client, err := messaging.NewClient(messaging.ClientConfig{
		HomeserverURL: cfg.Homeserver.URL,
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	session, err := client.SessionFromToken(userID, token.String())
	if err != nil {
		return err
	}
	defer session.Close()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	roomID, err := resolveRoom(ctx, session, room)
	if err != nil {
		return err
	}

	composer, err := message.NewComposer(message.ComposerConfig{
		Session:         session,
		DisableMarkdown: cfg.Send.DisableMarkdown,
		Logger:          logger,
	})
	if err != nil {
		return err
	}

	// The watcher must capture its /sync position before the send, or
	// the echoed event can land in the gap and never be delivered.
	var watcher *messaging.RoomWatcher
	if confirm {
		watcher, err = messaging.WatchRoom(ctx, session, roomID, &messaging.SyncFilter{
			TimelineTypes: []string{ref.EventTypeRoomMessage.String()},
			ExcludeState:  true,
		})
		if err != nil {
			return fmt.Errorf("watching %s: %w", roomID, err)
		}
	}

	var handle *message.SendHandle
	switch {
	case filePath != "":
		handle, err = sendFile(ctx, composer, session, roomID, filePath, cfg.Upload.MaxBytes)
		if err != nil {
			return err
		}
	case editTarget != "":
		handle = composer.Send(ctx, roomID, message.Edit{Body: text, Target: editTarget})
	case replyTo != "":
		handle, err = sendReply(ctx, composer, session, roomID, replyTo, text)
		if err != nil {
			return err
		}
	default:
		handle = composer.Send(ctx, roomID, message.Text{Body: text})
	}

	eventID, err := handle.Wait(ctx)
	if err != nil {
		return err
	}
	fmt.Println(eventID)

	if watcher != nil {
		echoed, err := watcher.WaitForEvent(ctx, func(event messaging.Event) bool {
			return event.EventID == eventID
		})
		if err != nil {
			return fmt.Errorf("confirming delivery of %s: %w", eventID, err)
		}
		fmt.Fprintf(os.Stderr, "confirmed: %s (origin_server_ts=%d)\n", echoed.EventID, echoed.OriginServerTS)
	}
	return nil
}

// resolveRoom turns a room ID or alias into a room ID, resolving
// aliases through the homeserver directory.
func resolveRoom(ctx context.Context, session messaging.Session, room string) (ref.RoomID, error) {
	if strings.HasPrefix(room, "#") {
		alias, err := ref.ParseRoomAlias(room)
		if err != nil {
			return ref.RoomID{}, err
		}
		return session.ResolveAlias(ctx, alias)
	}
	return ref.ParseRoomID(room)
}

// sendFile sends a local file as the appropriate media kind: images
// and videos go through the upload-then-send coordinator, everything
// else is uploaded and sent as m.file.
func sendFile(ctx context.Context, composer *message.Composer, session messaging.Session, roomID ref.RoomID, path string, maxBytes int64) (*message.SendHandle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%s is %d bytes, above the configured upload limit of %d", path, len(data), maxBytes)
	}

	name := filepath.Base(path)
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return composer.SendMedia(ctx, roomID, message.Image{
			Data:     data,
			FileName: name,
			MimeType: mimeType,
			Size:     int64(len(data)),
		}, nil), nil

	case strings.HasPrefix(mimeType, "video/"):
		return composer.SendMedia(ctx, roomID, message.Video{
			Data:     data,
			FileName: name,
			MimeType: mimeType,
		}, nil), nil

	default:
		contentURI, err := session.UploadMedia(ctx, mimeType, bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("uploading %s: %w", path, err)
		}
		return composer.Send(ctx, roomID, message.File{
			URL:      contentURI,
			Name:     name,
			MimeType: mimeType,
			Size:     int64(len(data)),
		}), nil
	}
}

// sendReply fetches the quoted event from the room history so the
// reply fallback can be built from its actual content.
func sendReply(ctx context.Context, composer *message.Composer, session messaging.Session, roomID ref.RoomID, replyTo, text string) (*message.SendHandle, error) {
	targetID, err := ref.ParseEventID(replyTo)
	if err != nil {
		return nil, fmt.Errorf("--reply-to: %w", err)
	}

	response, err := session.RoomMessages(ctx, roomID, messaging.RoomMessagesOptions{Limit: 100})
	if err != nil {
		return nil, fmt.Errorf("fetching room history: %w", err)
	}

	store := message.NewStore(message.StoreConfig{})
	for _, event := range response.Chunk {
		if event.Type == ref.EventTypeRoomMessage && event.EventID == targetID {
			related := store.MessageByID(event.EventID.String(), roomID, event, false)
			return composer.Send(ctx, roomID, message.Reply{Related: related, Body: text}), nil
		}
	}
	return nil, fmt.Errorf("event %s not found in recent room history", targetID)
}
