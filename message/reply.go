// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package message

import (
	"fmt"
	"strings"
)

const mxReplyClose = "</mx-reply>"

// stripReplyFallback removes the quoted-reply prefix from a formatted
// body by truncating through the last closing mx-reply tag. Replying
// to a reply must quote only the message itself, not its accumulated
// quote chain. Bodies without an mx-reply block pass through
// unchanged.
func stripReplyFallback(formattedBody string) string {
	index := strings.LastIndex(formattedBody, mxReplyClose)
	if index < 0 {
		return formattedBody
	}
	return formattedBody[index+len(mxReplyClose):]
}

// buildReplyBodies constructs the plain and formatted bodies of a
// reply to related with newText appended. The formatted body carries
// the standard mx-reply blockquote with matrix.to links to the quoted
// event and its sender.
func buildReplyBodies(related *Message, newText string) (plain, formatted string) {
	quoted := related.FormattedBody()
	if quoted == "" {
		quoted = related.Body()
	}
	quoted = stripReplyFallback(quoted)

	sender := related.Sender().String()
	plain = fmt.Sprintf("> <%s> %s\n\n%s", sender, quoted, newText)
	formatted = fmt.Sprintf(
		`<mx-reply><blockquote><a href="https://matrix.to/#/%s/%s">In reply to</a><a href="https://matrix.to/#/%s">%s</a><br />%s</blockquote></mx-reply>%s`,
		related.RoomID(), related.EventID(), sender, sender, quoted, newText,
	)
	return plain, formatted
}
