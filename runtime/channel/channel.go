// Package channel implements Seq's unbounded MPMC channels: multiple
// strands may send and receive concurrently, every send succeeds
// immediately (no backpressure, spec.md §5), and close is broadcast to
// every strand still blocked on a receive.
//
// Messages cross strands by value copy, never by shared reference: a
// payload sent from strand A's arena is deep-copied into strand B's
// arena at the moment it is sent. This is the copy-on-send
// resolution of the inter-strand arena lifetime question (DESIGN.md):
// it lets each strand's arena be reclaimed independently the moment
// that strand finishes, without a channel ever needing to pin a
// foreign arena alive on the sender's behalf.
package channel

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/seq-lang/seq/internal/invariant"
	"github.com/seq-lang/seq/internal/seqlog"
	"github.com/seq-lang/seq/runtime/arena"
)

var logger = seqlog.New("chan")

// ErrClosed is returned by Receive once a channel has been closed and
// drained of every message sent before the close (ReceiveSafe reports
// the same condition through its closed result).
var ErrClosed = errors.New("channel: closed")

// Message pairs an arena value ref with the tag describing how to
// reinterpret it once copied into the receiver's arena. Scalar
// payloads (ints, floats, bools, symbols) need no arena copy at all —
// only ArenaKind payloads do.
type Message struct {
	IsArenaRef bool
	ArenaKind  arena.Kind
	ArenaRef   arena.Ref
	Scalar     interface{}
}

type waiter struct {
	ready chan struct{}
}

// Channel is an unbounded, closeable, multi-producer multi-consumer
// FIFO queue of Messages. It holds no arena of its own: each Send is
// given both the sender's and the receiver's arena.
type Channel struct {
	mu      sync.Mutex
	queue   []Message
	closed  bool
	waiters []*waiter
}

// New creates an empty, open channel.
func New() *Channel {
	return &Channel{}
}

// Send enqueues a message, deep-copying any arena-resident payload out
// of srcArena so the sender's arena can be reclaimed independently of
// whether or when a receiver claims this message. Send never blocks —
// channels are unbounded — and always succeeds unless the channel has
// already been closed, which is a programmer error (spec.md: sending
// on a closed channel is a fatal process error).
func (c *Channel) Send(srcArena, dstArena *arena.Arena, msg Message) {
	out := msg
	if msg.IsArenaRef {
		out.ArenaRef = arena.DeepCopyInto(dstArena, srcArena, msg.ArenaRef)
	}

	c.mu.Lock()
	invariant.Precondition(!c.closed, "channel.Send: send on a closed channel")
	c.queue = append(c.queue, out)
	w := c.popWaiterLocked()
	depth := len(c.queue)
	c.mu.Unlock()

	logger.Debug("send", slog.Int("queue_depth", depth), slog.Bool("woke_waiter", w != nil))
	if w != nil {
		close(w.ready)
	}
}

// Receive blocks the calling goroutine until a message is available or
// the channel is closed and drained, returning ErrClosed in the latter
// case.
func (c *Channel) Receive() (Message, error) {
	for {
		c.mu.Lock()
		if len(c.queue) > 0 {
			msg := c.queue[0]
			c.queue = c.queue[1:]
			c.mu.Unlock()
			return msg, nil
		}
		if c.closed {
			c.mu.Unlock()
			return Message{}, ErrClosed
		}
		w := &waiter{ready: make(chan struct{})}
		c.waiters = append(c.waiters, w)
		c.mu.Unlock()

		<-w.ready
	}
}

// ReceiveSafe is the non-blocking counterpart backing the surface
// `chan.receive-safe` builtin: it returns ok=false immediately if no
// message is queued and the channel is still open, rather than
// blocking.
func (c *Channel) ReceiveSafe() (msg Message, ok bool, closed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) > 0 {
		msg = c.queue[0]
		c.queue = c.queue[1:]
		return msg, true, false
	}
	return Message{}, false, c.closed
}

// Close marks the channel closed and wakes every strand blocked in
// Receive so they observe ErrClosed once the queue (as of the moment
// of close) is drained.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	logger.Debug("close", slog.Int("woken_waiters", len(waiters)))
	for _, w := range waiters {
		close(w.ready)
	}
}

// popWaiterLocked removes and returns the oldest waiter, if any. Caller
// holds c.mu.
func (c *Channel) popWaiterLocked() *waiter {
	if len(c.waiters) == 0 {
		return nil
	}
	w := c.waiters[0]
	c.waiters = c.waiters[1:]
	return w
}
