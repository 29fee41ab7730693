package events

import (
	"sync"
)

// Sink receives events synchronously with the scheduler's progression.
// Implementations must be cheap: the scheduler calls Send inline and a slow
// sink stalls the whole build. Send reports whether the event was accepted;
// a closed sink rejects everything and the scheduler treats further emissions
// as discarded.
type Sink interface {
	Send(ev Envelope) bool
	Close()
}

// ChannelSink is a bounded in-memory queue between the scheduler and the
// stream endpoint. The endpoint drains C into the HTTP response; if the
// response writer blocks, the queue fills and Send backpressures the
// scheduler, which is acceptable because emissions are cheap.
//
// Close marks the sink closed; subsequent Sends are dropped (this is how
// emissions from still-running pipelines are discarded once the client
// disconnects) and blocked Sends unblock. Events already buffered remain
// readable from C.
type ChannelSink struct {
	C chan Envelope

	done      chan struct{}
	closeOnce sync.Once
}

// DefaultSinkBuffer is the default queue capacity. A full tree of depth 5
// with fanout 5 emits on the order of a few thousand events; 256 is plenty
// for a client that keeps reading.
const DefaultSinkBuffer = 256

// NewChannelSink creates a ChannelSink with the given buffer size.
// A non-positive size falls back to DefaultSinkBuffer.
func NewChannelSink(size int) *ChannelSink {
	if size <= 0 {
		size = DefaultSinkBuffer
	}
	return &ChannelSink{
		C:    make(chan Envelope, size),
		done: make(chan struct{}),
	}
}

// Send enqueues an event, blocking while the queue is full. Returns false if
// the sink was closed before the event could be accepted.
func (s *ChannelSink) Send(ev Envelope) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.C <- ev:
		return true
	case <-s.done:
		return false
	}
}

// Close marks the sink closed. Safe to call more than once. C itself is
// never closed so late Sends cannot panic; readers should select on Done.
func (s *ChannelSink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Done returns a channel closed when the sink is closed.
func (s *ChannelSink) Done() <-chan struct{} {
	return s.done
}

// CollectorSink records every event in order. Test helper.
type CollectorSink struct {
	mu     sync.Mutex
	events []Envelope
	closed bool
}

// NewCollectorSink creates an empty CollectorSink.
func NewCollectorSink() *CollectorSink {
	return &CollectorSink{}
}

// Send appends the event to the in-memory log.
func (s *CollectorSink) Send(ev Envelope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.events = append(s.events, ev)
	return true
}

// Close marks the sink closed.
func (s *CollectorSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

// Events returns a copy of the recorded event log.
func (s *CollectorSink) Events() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Envelope, len(s.events))
	copy(out, s.events)
	return out
}
