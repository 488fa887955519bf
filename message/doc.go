// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package message is the in-memory message layer for a Matrix room
// timeline. It holds the canonical Message entity for every event the
// client knows about, keyed by room and event ID, and keeps that state
// consistent as relations arrive: reactions accumulate on their target,
// edits replace the displayed body, redactions remove reactions,
// receipts track the newest event each user has read.
//
// The Store is the single owner of message identity: two lookups for
// the same (room, event) pair return the same *Message, so view layers
// can hold pointers across sync batches. Messages removed by
// CleanupRoomMessages are forgotten entirely.
//
// Outbound traffic goes through the Composer, which turns a Content
// variant (Text, Image, Video, File, Edit, Reply) into the
// corresponding m.room.message payload: markdown is rendered with
// goldmark and the formatted body is attached only when rendering
// actually changed the text, reply quotes are rebuilt from the related
// message with matrix.to pills, and media is uploaded before the send
// is issued. A failed upload produces an UploadError and no event ever
// reaches the homeserver.
//
// The Ingestor feeds the Store from /sync responses.
package message
