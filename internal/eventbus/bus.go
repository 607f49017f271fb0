// Package eventbus decouples the tick pipeline from its observers: the tick
// publishes what happened, consumers (systemd status, tooling) decide what to
// surface. Purely in-memory, no background goroutines.
package eventbus

import (
	"sync"
	"time"
)

// Well-known event types.
const (
	// EventTickReport carries a report.Report after a tick completes.
	EventTickReport = "tick.report"
	// EventRegionFailed carries a report.RegionFailure as soon as a region
	// is skipped, before the tick finishes.
	EventRegionFailed = "region.failed"
	// EventConfigReloaded signals that a new config snapshot was applied.
	EventConfigReloaded = "config.reloaded"
)

// Event is a lightweight, in-memory signal.
//
// Publish never blocks: a subscriber that stops draining loses its oldest
// buffered events, never the publisher's time.
type Event struct {
	Type string
	Time time.Time
	Data any
}

type Bus interface {
	// Publish delivers e to every subscriber interested in its type.
	Publish(e Event)
	// Subscribe registers interest in the given event types; no types means
	// everything. The returned stop func detaches and closes the channel.
	Subscribe(buffer int, types ...string) (ch <-chan Event, stop func())
}

// New returns an in-memory fanout bus.
func New() Bus {
	return &memBus{subs: map[uint64]*subscriber{}}
}

type subscriber struct {
	ch    chan Event
	types map[string]struct{}
}

func (s *subscriber) wants(t string) bool {
	if len(s.types) == 0 {
		return true
	}
	_, ok := s.types[t]
	return ok
}

type memBus struct {
	mu   sync.Mutex
	seq  uint64
	subs map[uint64]*subscriber
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	// Sends are non-blocking, so holding the lock across delivery is cheap
	// and lets stop() close channels without racing a send.
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if !s.wants(e.Type) {
			continue
		}
		select {
		case s.ch <- e:
		default:
			// Full buffer: drop the oldest so the newest still lands.
			select {
			case <-s.ch:
			default:
			}
			select {
			case s.ch <- e:
			default:
			}
		}
	}
}

func (b *memBus) Subscribe(buffer int, types ...string) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	s := &subscriber{ch: make(chan Event, buffer)}
	if len(types) > 0 {
		s.types = make(map[string]struct{}, len(types))
		for _, t := range types {
			s.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	b.seq++
	id := b.seq
	b.subs[id] = s
	b.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(s.ch)
			b.mu.Unlock()
		})
	}
	return s.ch, stop
}
