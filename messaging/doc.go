// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the Matrix client-server API for parley's
// message layer.
//
// The package provides two core types. [Client] is an unauthenticated
// Matrix client that handles login, returning authenticated sessions.
// Client holds the homeserver URL and HTTP transport, shared across all
// sessions derived from it.
//
// [DirectSession] wraps a Client with an access token for authenticated
// operations: sending room messages and arbitrary events, redactions,
// media upload, paginated room history, incremental sync with
// long-polling, room joins, and profile lookups. [Session] is the
// interface the message layer consumes, so tests can substitute a fake
// transport.
//
// Sessions are lightweight (a pointer to the parent Client plus an
// access token in mmap-backed secret.Buffer memory). The access token
// is locked against swap and excluded from core dumps; callers must
// call Session.Close to release the protected memory.
//
// All API errors are returned as [*MatrixError] with the standard
// Matrix error code (M_FORBIDDEN, M_NOT_FOUND, etc.) and HTTP status
// code. [IsMatrixError] tests for a specific error code. Request URLs
// are built by string concatenation rather than url.URL to avoid
// double-encoding of path segments that contain URL-encoded characters.
//
// [RoomWatcher] captures a position in the /sync stream for one room
// and long-polls for events matching a predicate; parley-send uses it
// to confirm that a sent event echoed back from the homeserver. The
// message layer's ingestor (package message) consumes full
// [SyncResponse] values to keep the in-memory store current.
package messaging
