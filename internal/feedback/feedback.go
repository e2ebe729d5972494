// Package feedback serializes outbound coaching messages for one session.
// A single worker announces one message at a time; duplicate messages
// arriving within the debounce interval are dropped so the user is not
// nagged with the same cue every tick.
package feedback

import (
	"log/slog"
	"sync"
	"time"
)

// Announcer delivers one message to the user (speech, UI push, …).
// Announce must fully deliver before returning; failures are logged by the
// channel and never stop the worker.
type Announcer interface {
	Announce(msg string) error
}

// Channel is a thread-safe, non-blocking feedback queue with a single
// consumer. Create one per session and Close it on teardown.
type Channel struct {
	announcer Announcer
	debounce  time.Duration
	log       *slog.Logger

	mu     sync.Mutex
	last   string
	lastAt time.Time
	closed bool

	queue chan string
	wg    sync.WaitGroup
}

// New starts the channel's worker goroutine. debounce is the window within
// which an identical repeated message is dropped.
func New(a Announcer, debounce time.Duration, log *slog.Logger) *Channel {
	c := &Channel{
		announcer: a,
		debounce:  debounce,
		log:       log,
		queue:     make(chan string, 16),
	}
	c.wg.Add(1)
	go c.run()
	return c
}

// Enqueue queues a message for announcement. It never blocks: duplicates
// inside the debounce window are dropped, as are messages arriving while
// the queue is full or after Close. Returns whether the message was
// accepted.
func (c *Channel) Enqueue(msg string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	now := time.Now()
	if msg == c.last && now.Sub(c.lastAt) < c.debounce {
		return false
	}

	select {
	case c.queue <- msg:
		c.last = msg
		c.lastAt = now
		return true
	default:
		if c.log != nil {
			c.log.Warn("feedback queue full, dropping message")
		}
		return false
	}
}

// Close stops accepting messages, drains the queue, and waits for the
// worker to finish.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.queue)
	c.mu.Unlock()
	c.wg.Wait()
}

// run is the single consumer: one announcement completes before the next
// begins, never interleaved.
func (c *Channel) run() {
	defer c.wg.Done()
	for msg := range c.queue {
		if err := c.announcer.Announce(msg); err != nil && c.log != nil {
			c.log.Warn("announcement failed", "error", err)
		}
	}
}
