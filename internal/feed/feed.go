// Package feed implements the in-process change feed: every successful todo
// mutation is published here and fanned out to all live subscriptions of the
// owning user.
//
// The broker is intentionally fire-and-forget. Events are transient
// notifications, not a durable log: a subscriber that falls behind loses
// events rather than back-pressuring the writer, and a session that missed
// events converges again on its next full list load. This matches the
// collaborator contract - ordering across sources is not guaranteed and the
// reconciler's merge tolerates duplicates and gaps.
package feed

import (
	"log/slog"
	"sync"

	"github.com/rafid/todohub/internal/model"
)

// subscriberBuffer is the per-subscription channel capacity. A browser tab
// consuming an SSE stream drains far faster than a single user mutates
// todos, so a small buffer only has to absorb bursts.
const subscriberBuffer = 16

type subscriber struct {
	userID string
	ch     chan model.ChangeEvent
}

// Broker fans ChangeEvents out to per-user subscriptions.
//
// Publish never blocks: a subscriber whose buffer is full has the event
// dropped (and logged). That keeps a stuck SSE connection from stalling the
// request that performed the mutation.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{} // userID → live subscriptions
	logger *slog.Logger
}

// NewBroker creates an empty broker.
func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		subs:   make(map[string]map[*subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe registers a new subscription for the given user and returns the
// event channel plus a cancel function.
//
// The cancel function MUST be called on every exit path of the consuming
// session - it closes the channel and releases the broker slot. Calling it
// more than once is safe.
func (b *Broker) Subscribe(userID string) (<-chan model.ChangeEvent, func()) {
	sub := &subscriber{
		userID: userID,
		ch:     make(chan model.ChangeEvent, subscriberBuffer),
	}

	b.mu.Lock()
	set, ok := b.subs[userID]
	if !ok {
		set = make(map[*subscriber]struct{})
		b.subs[userID] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			if set, ok := b.subs[userID]; ok {
				delete(set, sub)
				if len(set) == 0 {
					delete(b.subs, userID)
				}
			}
			b.mu.Unlock()
			close(sub.ch)
		})
	}

	return sub.ch, cancel
}

// Publish delivers the event to every live subscription of userID. Sessions
// of other users never see it - the feed is scoped by owner, mirroring the
// row-level filter of the external feed it stands in for.
func (b *Broker) Publish(userID string, ev model.ChangeEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[userID] {
		select {
		case sub.ch <- ev:
		default:
			// Slow consumer: drop rather than block the publisher.
			b.logger.Warn("feed: dropping event for slow subscriber",
				slog.String("userID", userID),
				slog.String("kind", string(ev.Kind)),
			)
		}
	}
}

// SubscriberCount reports the number of live subscriptions for a user.
// Used by tests and the metrics gauge.
func (b *Broker) SubscriberCount(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[userID])
}
