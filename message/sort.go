// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package message

import "sort"

// SortByLastSent returns the messages ordered newest first by origin
// server timestamp. The input slice is not modified; messages with
// equal timestamps keep their input order.
func SortByLastSent(messages []*Message) []*Message {
	sorted := make([]*Message, len(messages))
	copy(sorted, messages)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp() > sorted[j].Timestamp()
	})
	return sorted
}
