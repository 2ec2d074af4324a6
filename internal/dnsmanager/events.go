package dnsmanager

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// EventMgr fans out events to subscribers. Slow subscribers lose events
// instead of blocking the sender.
type EventMgr[T any] struct {
	name   string
	logger *zerolog.Logger

	lock sync.Mutex
	subs []*EventSubscription[T]
}

// EventSubscription is a subscription to an event.
type EventSubscription[T any] struct {
	name     string
	events   chan T
	canceled atomic.Bool
}

func newEventMgr[T any](name string, logger *zerolog.Logger) *EventMgr[T] {
	return &EventMgr[T]{name: name, logger: logger}
}

// Subscribe subscribes to events, buffering up to chanSize of them.
func (em *EventMgr[T]) Subscribe(subscriberName string, chanSize int) *EventSubscription[T] {
	em.lock.Lock()
	defer em.lock.Unlock()

	es := &EventSubscription[T]{
		name:   subscriberName,
		events: make(chan T, chanSize),
	}
	em.subs = append(em.subs, es)
	return es
}

// Submit submits a new event.
func (em *EventMgr[T]) Submit(event T) {
	em.lock.Lock()
	defer em.lock.Unlock()

	var anyCanceled bool
	for _, sub := range em.subs {
		if sub.canceled.Load() {
			anyCanceled = true
			continue
		}
		select {
		case sub.events <- event:
		default:
			em.logger.Warn().Str("event", em.name).Str("subscriber", sub.name).Msg("event subscription channel overflow")
		}
	}
	if anyCanceled {
		em.subs = slices.DeleteFunc(em.subs, func(es *EventSubscription[T]) bool {
			return es.canceled.Load()
		})
	}
}

// Events returns a read channel for the events.
func (es *EventSubscription[T]) Events() <-chan T {
	return es.events
}

// Cancel cancels the subscription.
// The events channel is not closed, but will not receive new events.
func (es *EventSubscription[T]) Cancel() {
	es.canceled.Store(true)
}
