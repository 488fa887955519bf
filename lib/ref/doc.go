// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides strongly typed, immutable references for Matrix
// identifiers: event IDs, room IDs, room aliases, and user IDs.
//
// Raw identifier strings arrive from the homeserver (send responses,
// /sync payloads, pagination chunks) and from user input (CLI flags,
// config files). They are parsed into ref types at the boundary; all
// code past the boundary works with validated values and never has to
// re-check sigils or ':server' suffixes.
//
// All constructors validate their inputs and return errors for invalid
// identifiers. Once constructed, a ref is immutable. The zero value of
// every type is "unset" — use IsZero to check rather than comparing to
// an empty string.
//
// JSON marshaling uses the canonical Matrix string form via
// encoding.TextMarshaler, so ref types can appear directly in wire
// structs and map keys.
package ref
