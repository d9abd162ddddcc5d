// ABOUTME: TTL cache that drops duplicate inbound activities
// ABOUTME: Channels redeliver on slow webhook responses, so every turn checks here first

package dedupe

import (
	"container/list"
	"sync"
	"time"

	"github.com/hiredesk/gateway/internal/activity"
)

// entry pairs a key's arrival time with its position in the eviction order
type entry struct {
	at   time.Time
	elem *list.Element
}

// Cache remembers recently processed activity keys for a TTL window, bounded
// by a maximum size with oldest-first eviction. Safe for concurrent turns.
type Cache struct {
	mu     sync.Mutex
	seen   map[string]*entry
	order  *list.List
	ttl    time.Duration
	max    int
	done   chan struct{}
	closed bool
}

// New creates an activity dedupe cache. A background goroutine sweeps
// expired entries once a minute until Close.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:  make(map[string]*entry),
		order: list.New(),
		ttl:   ttl,
		max:   maxSize,
		done:  make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Key derives the dedupe key for an inbound activity. Activity ids are only
// unique per channel, so the channel is part of the key.
func Key(act *activity.Activity) string {
	return act.ChannelID + "|" + act.Conversation.ID + "|" + act.ID
}

// Seen atomically records the key and reports whether it was already present
// and unexpired. The check and the mark are one critical section, so two
// concurrent deliveries of the same activity cannot both pass.
func (c *Cache) Seen(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.seen[key]; ok && time.Since(e.at) < c.ttl {
		return true
	}
	c.mark(key)
	return false
}

// mark records a key, evicting the oldest entry at capacity. Caller holds mu.
func (c *Cache) mark(key string) {
	now := time.Now()
	if e, ok := c.seen[key]; ok {
		e.at = now
		c.order.MoveToBack(e.elem)
		return
	}

	if len(c.seen) >= c.max {
		if front := c.order.Front(); front != nil {
			k, _ := front.Value.(string)
			c.order.Remove(front)
			delete(c.seen, k)
		}
	}
	c.seen[key] = &entry{at: now, elem: c.order.PushBack(key)}
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.seen {
		if now.Sub(e.at) > c.ttl {
			c.order.Remove(e.elem)
			delete(c.seen, key)
		}
	}
}

// Close stops the sweep goroutine. Safe to call more than once.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
