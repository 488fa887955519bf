// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package message

import "testing"

func TestSortByLastSent(t *testing.T) {
	store := newTestStore(t)
	// Two messages share a timestamp; the tie must keep input order.
	a := store.MessageByID("$a", testRoom, textEvent("$a", testAlice, "a", 5), false)
	b := store.MessageByID("$b", testRoom, textEvent("$b", testAlice, "b", 9), false)
	c := store.MessageByID("$c", testRoom, textEvent("$c", testAlice, "c", 9), false)
	d := store.MessageByID("$d", testRoom, textEvent("$d", testAlice, "d", 2), false)

	input := []*Message{a, b, c, d}
	sorted := SortByLastSent(input)

	want := []*Message{b, c, a, d}
	for index, message := range want {
		if sorted[index] != message {
			t.Errorf("position %d: want %s, got %s", index, message.EventID(), sorted[index].EventID())
		}
	}

	// The input slice is untouched.
	if input[0] != a || input[1] != b || input[2] != c || input[3] != d {
		t.Error("input slice was mutated")
	}
}

func TestSortByLastSent_Empty(t *testing.T) {
	sorted := SortByLastSent(nil)
	if len(sorted) != 0 {
		t.Errorf("expected empty result, got %d", len(sorted))
	}
}
