package statscache

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sink receives live snapshot updates for one machine. Push must not block;
// implementations back it with a buffered channel or similar and return an
// error when delivery is impossible. A failing sink never affects other
// sinks or the ingest that triggered the push.
type Sink interface {
	Push(stats json.RawMessage) error
}

// Subscription is the handle returned by Subscribe. Unsubscribe with it is
// idempotent and safe after the machine's entry was removed.
type Subscription struct {
	entry *entry
	sink  Sink
}

type entry struct {
	mu        sync.Mutex
	stats     json.RawMessage
	updatedAt time.Time
	listeners map[*Subscription]struct{}
}

// Cache holds the latest known snapshot per machine and the set of live
// subscribers to notify on every update. It is the single shared mutable
// resource between the ingestion path and the streaming connections; all
// methods are safe for concurrent use. Entries live for the process lifetime
// and are only removed when the owning machine is deleted.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	logger  zerolog.Logger
}

func New(logger zerolog.Logger) *Cache {
	return &Cache{
		entries: make(map[string]*entry),
		logger:  logger,
	}
}

// getOrCreate returns the entry for machineID, lazily creating it. Both the
// first ingest and the first subscribe may create the entry.
func (c *Cache) getOrCreate(machineID string) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[machineID]
	if e == nil {
		e = &entry{listeners: make(map[*Subscription]struct{})}
		c.entries[machineID] = e
	}
	return e
}

// Upsert stores the new snapshot for machineID and synchronously pushes it
// to every registered listener. The returned timestamp is the entry's new
// updatedAt. Delivery failures are logged per listener and do not stop the
// notification round.
//
// Mutation and notification happen under the per-machine lock, so deliveries
// to any one listener arrive in upsert order and a subscriber registered via
// SubscribeWithSnapshot either observes this value directly or is part of
// this notification round, never neither.
func (c *Cache) Upsert(machineID string, stats json.RawMessage) time.Time {
	e := c.getOrCreate(machineID)

	e.mu.Lock()
	defer e.mu.Unlock()

	e.stats = stats
	e.updatedAt = time.Now()

	for sub := range e.listeners {
		if err := sub.sink.Push(stats); err != nil {
			c.logger.Debug().Str("machine", machineID).Err(err).Msg("listener push failed")
		}
	}
	return e.updatedAt
}

// Get returns the cached snapshot and its timestamp, or ok=false when no
// snapshot has been ingested since process start. An entry created by a
// subscriber but never fed by an ingest also reports ok=false.
func (c *Cache) Get(machineID string) (json.RawMessage, time.Time, bool) {
	c.mu.RLock()
	e := c.entries[machineID]
	c.mu.RUnlock()
	if e == nil {
		return nil, time.Time{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stats == nil {
		return nil, time.Time{}, false
	}
	return e.stats, e.updatedAt, true
}

// Subscribe registers sink for machineID's updates, creating the entry if
// needed.
func (c *Cache) Subscribe(machineID string, sink Sink) *Subscription {
	sub, _, _, _ := c.SubscribeWithSnapshot(machineID, sink)
	return sub
}

// SubscribeWithSnapshot registers sink and returns the current snapshot in
// one critical section. Callers that need an initial value use this instead
// of Get-then-Subscribe so no update can slip between the read and the
// registration.
func (c *Cache) SubscribeWithSnapshot(machineID string, sink Sink) (*Subscription, json.RawMessage, time.Time, bool) {
	e := c.getOrCreate(machineID)

	e.mu.Lock()
	defer e.mu.Unlock()

	sub := &Subscription{entry: e, sink: sink}
	e.listeners[sub] = struct{}{}
	if e.stats == nil {
		return sub, nil, time.Time{}, false
	}
	return sub, e.stats, e.updatedAt, true
}

// Unsubscribe removes the subscription. Calling it twice, or after Remove
// dropped the whole entry, is a no-op.
func (c *Cache) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	sub.entry.mu.Lock()
	delete(sub.entry.listeners, sub)
	sub.entry.mu.Unlock()
}

// Remove deletes the machine's entry and drops every listener registration;
// listeners receive no further notifications. Called when the machine record
// is deleted.
func (c *Cache) Remove(machineID string) {
	c.mu.Lock()
	e := c.entries[machineID]
	delete(c.entries, machineID)
	c.mu.Unlock()
	if e == nil {
		return
	}

	e.mu.Lock()
	for sub := range e.listeners {
		delete(e.listeners, sub)
	}
	e.mu.Unlock()
}

// ListenerCount reports the number of live subscriptions for machineID.
func (c *Cache) ListenerCount(machineID string) int {
	c.mu.RLock()
	e := c.entries[machineID]
	c.mu.RUnlock()
	if e == nil {
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}
