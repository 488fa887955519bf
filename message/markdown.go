// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"fmt"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Renderer turns markdown source into HTML for the formatted_body of
// outgoing messages.
type Renderer interface {
	Render(markdown string) (string, error)
}

// goldmarkInstance is initialized once and reused. The configuration
// (extensions, options) never changes and the goldmark Markdown is
// safe to share — Convert creates per-call state internally.
var (
	goldmarkInstance goldmark.Markdown
	goldmarkOnce     sync.Once
)

func getGoldmark() goldmark.Markdown {
	goldmarkOnce.Do(func() {
		goldmarkInstance = goldmark.New(
			goldmark.WithExtensions(extension.GFM),
		)
	})
	return goldmarkInstance
}

type goldmarkRenderer struct{}

// NewGoldmarkRenderer returns the goldmark-backed Renderer used by
// default. GFM extensions (tables, strikethrough, autolinks) are
// enabled.
func NewGoldmarkRenderer() Renderer {
	return goldmarkRenderer{}
}

func (goldmarkRenderer) Render(markdown string) (string, error) {
	var buffer strings.Builder
	if err := getGoldmark().Convert([]byte(markdown), &buffer); err != nil {
		return "", fmt.Errorf("message: markdown rendering failed: %w", err)
	}
	return buffer.String(), nil
}

// renderedEqualsPlain reports whether the rendered HTML is just the
// plain text wrapped in a single paragraph, meaning the source used no
// markdown constructs at all. Renderers terminate the paragraph with a
// newline, so the comparison trims trailing newlines first.
func renderedEqualsPlain(html, plain string) bool {
	return strings.TrimRight(html, "\n") == "<p>"+plain+"</p>"
}
