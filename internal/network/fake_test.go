package network

import (
	"time"

	"bftledger/internal/types"
)

type recorder struct {
	id       int
	received []types.Message
}

func (r *recorder) ID() int                   { return r.id }
func (r *recorder) Receive(msg types.Message) { r.received = append(r.received, msg) }

type queuedEvent struct {
	delay time.Duration
	fn    func()
}

type fakeClock struct {
	events []queuedEvent
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) {
	c.events = append(c.events, queuedEvent{delay: d, fn: fn})
}

func (c *fakeClock) flush() {
	for len(c.events) > 0 {
		ev := c.events[0]
		c.events = c.events[1:]
		ev.fn()
	}
}
