// Package invalidation implements the process-local "credential invalidated"
// signal. The API layer raises it when the remote API rejects a credential; the
// session machine subscribes once and tears the session down.
//
// The channel carries no payload and does not cross process boundaries: two
// independently started instances sharing durable storage do not see each
// other's signals.
package invalidation

import (
	"slices"
	"sync"
)

// Channel is a typed publish/subscribe signal with no payload.
// The zero value is ready to use.
type Channel struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func()
	raised uint64
}

// New returns an empty Channel.
func New() *Channel {
	return &Channel{}
}

// Subscribe registers fn to run on every Raise and returns a function that
// removes the subscription. Calling the returned function more than once is
// harmless.
func (c *Channel) Subscribe(fn func()) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.subs == nil {
		c.subs = make(map[int]func())
	}
	id := c.nextID
	c.nextID++
	c.subs[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Raise notifies every subscriber synchronously, in subscription order.
// Subscribers run outside the channel lock so they may Subscribe or Raise.
func (c *Channel) Raise() {
	c.mu.Lock()
	c.raised++
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	fns := make([]func(), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, c.subs[id])
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Subscribers returns the current subscriber count.
func (c *Channel) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

// Raised returns how many times the signal has fired.
func (c *Channel) Raised() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.raised
}
