// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package message

// Content is the closed set of things the Composer can send. Each
// variant carries exactly the fields its payload needs; the Composer
// dispatches on the concrete type. The set is sealed — implementations
// outside this package are not possible.
type Content interface {
	isContent()
}

// Text is a plain or markdown text message. Markdown is detected at
// send time: if rendering changes the text, the HTML goes out as the
// formatted body.
type Text struct {
	Body string
}

// Image is an m.image message. Data is uploaded to the content
// repository first; URL is filled in from the upload (callers sending
// an already-uploaded image may set URL directly and leave Data nil).
type Image struct {
	Data     []byte
	FileName string
	MimeType string
	Width    int
	Height   int
	Size     int64
	URL      string
}

// Video is an m.video message. Like Image, Data is uploaded before
// the send.
type Video struct {
	Data     []byte
	FileName string
	MimeType string
	URL      string
}

// File is an m.file message referencing already-uploaded content.
type File struct {
	URL      string
	Name     string
	MimeType string
	Size     int64
}

// Edit replaces the body of a previously sent message via an
// m.replace relation. Target is the event ID of the message being
// edited.
type Edit struct {
	Body   string
	Target string
}

// Reply quotes Related and adds Body as the new text. The quote
// fallback is rebuilt from Related's formatted body.
type Reply struct {
	Related *Message
	Body    string
}

func (Text) isContent()  {}
func (Image) isContent() {}
func (Video) isContent() {}
func (File) isContent()  {}
func (Edit) isContent()  {}
func (Reply) isContent() {}
