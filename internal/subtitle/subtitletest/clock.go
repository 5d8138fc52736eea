// Package subtitletest provides a manually driven subtitle.Clock.
package subtitletest

import (
	"sync"
	"time"

	"github.com/tiroq/lectern/internal/subtitle"
)

// Clock is a subtitle.Clock whose time moves only through Advance. Ticks are
// delivered synchronously: Advance returns once every due tick has been
// received or its ticker stopped.
type Clock struct {
	mu      sync.Mutex
	cond    *sync.Cond
	now     time.Duration
	tickers []*ticker
	created int
}

// New returns a manual clock at zero.
func New() *Clock {
	c := &Clock{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// NewTicker implements subtitle.Clock.
func (c *Clock) NewTicker(d time.Duration) subtitle.Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &ticker{
		period: d,
		next:   c.now + d,
		ch:     make(chan time.Time),
		stop:   make(chan struct{}),
	}
	c.tickers = append(c.tickers, t)
	c.created++
	c.cond.Broadcast()
	return t
}

// BlockUntil waits until at least n tickers have been created.
func (c *Clock) BlockUntil(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.created < n {
		c.cond.Wait()
	}
}

// Advance moves time forward by d, firing due ticks in order.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due *ticker
		for _, t := range c.tickers {
			if t.stopped() {
				continue
			}
			if t.next <= target && (due == nil || t.next < due.next) {
				due = t
			}
		}
		if due == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		at := due.next
		c.now = at
		due.next += due.period
		c.mu.Unlock()

		select {
		case due.ch <- time.Unix(0, 0).Add(at):
		case <-due.stop:
		}
	}
}

// Elapsed returns the manual time.
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

type ticker struct {
	period time.Duration
	next   time.Duration
	ch     chan time.Time
	stop   chan struct{}
	once   sync.Once
}

func (t *ticker) C() <-chan time.Time { return t.ch }

func (t *ticker) Stop() {
	t.once.Do(func() { close(t.stop) })
}

func (t *ticker) stopped() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}
