package eventbus

import (
	"testing"
	"time"
)

func recvOne(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return Event{}
	}
}

func TestSubscribeFiltersByType(t *testing.T) {
	t.Parallel()
	b := New()
	reports, stop := b.Subscribe(4, EventTickReport)
	defer stop()
	all, stopAll := b.Subscribe(4)
	defer stopAll()

	b.Publish(Event{Type: EventRegionFailed, Data: "eu-west-1"})
	b.Publish(Event{Type: EventTickReport, Data: "summary"})

	if ev := recvOne(t, reports); ev.Type != EventTickReport {
		t.Fatalf("filtered subscriber got %q, want %q", ev.Type, EventTickReport)
	}
	if ev := recvOne(t, all); ev.Type != EventRegionFailed {
		t.Fatalf("unfiltered subscriber got %q first, want %q", ev.Type, EventRegionFailed)
	}
}

func TestPublishDropsOldestWhenFull(t *testing.T) {
	t.Parallel()
	b := New()
	ch, stop := b.Subscribe(1)
	defer stop()

	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"})
	b.Publish(Event{Type: "c"})

	if ev := recvOne(t, ch); ev.Type != "c" {
		t.Fatalf("got %q, want the newest event to survive", ev.Type)
	}
}

func TestStopClosesChannel(t *testing.T) {
	t.Parallel()
	b := New()
	ch, stop := b.Subscribe(1)
	stop()
	stop() // idempotent

	if _, ok := <-ch; ok {
		t.Fatal("channel still open after stop")
	}
	// Publishing after stop must not panic or deliver.
	b.Publish(Event{Type: "a"})
}

func TestPublishStampsTime(t *testing.T) {
	t.Parallel()
	b := New()
	ch, stop := b.Subscribe(1)
	defer stop()

	b.Publish(Event{Type: "a"})
	if ev := recvOne(t, ch); ev.Time.IsZero() {
		t.Fatal("event time not stamped")
	}
}
