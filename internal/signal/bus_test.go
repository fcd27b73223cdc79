/*
Copyright (C) 2026 Quietloom Collective

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package signal

import "testing"

func TestPublishDeliversInRegistrationOrder(t *testing.T) {
	bus := NewBus()

	var order []string
	bus.SubscribePlayback(func(Playback) { order = append(order, "first") })
	bus.SubscribePlayback(func(Playback) { order = append(order, "second") })
	bus.SubscribePlayback(func(Playback) { order = append(order, "third") })

	bus.PublishPlayback(Playback{Action: ActionStart, SlideID: "s1", RowID: "r1"})

	want := []string{"first", "second", "third"}
	if len(order) != len(want) {
		t.Fatalf("delivered to %d subscribers, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("delivery[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()

	count := 0
	unsub := bus.SubscribePlayback(func(Playback) { count++ })

	bus.PublishPlayback(Playback{Action: ActionPause, RowID: "r1"})
	unsub()
	bus.PublishPlayback(Playback{Action: ActionPause, RowID: "r1"})

	if count != 1 {
		t.Fatalf("handler ran %d times, want 1", count)
	}
}

func TestPublishFromWithinHandler(t *testing.T) {
	bus := NewBus()

	var endedSeen []TrackEnded
	bus.SubscribeEnded(func(ev TrackEnded) { endedSeen = append(endedSeen, ev) })

	// A unit that reports completion while reacting to a start signal.
	bus.SubscribePlayback(func(sig Playback) {
		if sig.Action == ActionStart {
			bus.PublishEnded(TrackEnded{SlideID: sig.SlideID, RowID: sig.RowID})
		}
	})

	bus.PublishPlayback(Playback{Action: ActionStart, SlideID: "s1", RowID: "r1"})

	if len(endedSeen) != 1 || endedSeen[0].SlideID != "s1" || endedSeen[0].RowID != "r1" {
		t.Fatalf("unexpected ended events: %+v", endedSeen)
	}
}

func TestEndedSubscribersAreIndependent(t *testing.T) {
	bus := NewBus()

	var a, b int
	bus.SubscribeEnded(func(TrackEnded) { a++ })
	unsub := bus.SubscribeEnded(func(TrackEnded) { b++ })
	unsub()

	bus.PublishEnded(TrackEnded{SlideID: "s1", RowID: "r1"})

	if a != 1 || b != 0 {
		t.Fatalf("a = %d, b = %d; want 1, 0", a, b)
	}
}
