// Package mock provides scripted sources and recording sinks for tests.
package mock

import (
	"slices"
	"sync"

	"github.com/ugparu/goflow/buffer"
	"github.com/ugparu/goflow/element"
	"github.com/ugparu/goflow/utils/pool"
)

// Source emits one scripted chunk per Poll and StreamClose after the last one.
type Source struct {
	*element.Base
	pool pool.Pool

	mu     sync.Mutex
	chunks [][]byte
	closed bool
}

// NewSource returns a source emitting chunks in order. A nil pool wraps the chunks
// directly.
func NewSource(id string, p pool.Pool, chunks ...[]byte) *Source {
	s := &Source{pool: p, chunks: chunks}
	s.Base = element.NewBase(id, s, element.WithInputs())
	return s
}

// NewFakeSource returns a source emitting n buffers of size bytes, each filled with
// its own index.
func NewFakeSource(id string, p pool.Pool, n, size int) *Source {
	chunks := make([][]byte, n)
	for i := range chunks {
		chunks[i] = make([]byte, size)
		for j := range chunks[i] {
			chunks[i][j] = byte(i)
		}
	}
	return NewSource(id, p, chunks...)
}

func (s *Source) next() (*buffer.Buffer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.chunks) == 0 {
		if s.closed {
			return nil, false
		}
		s.closed = true
		return nil, true
	}
	chunk := s.chunks[0]
	s.chunks = s.chunks[1:]
	if s.pool == nil {
		return buffer.Wrap(slices.Clone(chunk)), false
	}
	buf := buffer.NewWithHeader(s.pool, len(chunk))
	copy(buf.Bytes(), chunk)
	return buf, false
}

// Poll emits the next chunk, or StreamClose once the chunks are exhausted.
func (s *Source) Poll(bool) {
	buf, closing := s.next()
	switch {
	case buf != nil:
		s.PushDataToAllOuts(buf)
	case closing:
		s.HandleEvent(element.StreamClose, element.Out)
	}
}

// Run pushes every chunk downstream and then closes the stream.
func (s *Source) Run() {
	for {
		buf, closing := s.next()
		if buf == nil {
			if closing {
				s.HandleEvent(element.StreamClose, element.Out)
			}
			return
		}
		s.PushDataToAllOuts(buf)
	}
}

// Sink records the bytes and events it receives and releases every buffer.
type Sink struct {
	*element.Base

	mu     sync.Mutex
	data   [][]byte
	seqs   []int
	events []element.Event
	closed chan struct{}
	once   sync.Once
}

// NewSink returns a sink with a single STDIN pad.
func NewSink(id string) *Sink {
	s := &Sink{closed: make(chan struct{})}
	s.Base = element.NewBase(id, s, element.WithOutputs())
	return s
}

func (s *Sink) HandleData(buf *buffer.Buffer, _ *element.Link) {
	s.mu.Lock()
	s.data = append(s.data, slices.Clone(buf.Bytes()))
	if seq, ok := buf.Seq(); ok {
		s.seqs = append(s.seqs, seq)
	}
	s.mu.Unlock()
	buf.Unref()
}

func (s *Sink) HandleEvent(event element.Event, dir element.Direction) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	if event == element.StreamClose {
		s.once.Do(func() { close(s.closed) })
	}
	s.Base.HandleEvent(event, dir)
}

// Data returns copies of the received buffers in arrival order.
func (s *Sink) Data() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.data)
}

// Bytes returns everything received, concatenated.
func (s *Sink) Bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Concat(s.data...)
}

// Seqs returns the sequence numbers stamped on the received buffers.
func (s *Sink) Seqs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.seqs)
}

// Events returns the received events in order.
func (s *Sink) Events() []element.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

// Count returns how many times event was received.
func (s *Sink) Count(event element.Event) int {
	n := 0
	for _, e := range s.Events() {
		if e == event {
			n++
		}
	}
	return n
}

// Closed is closed when the first StreamClose arrives.
func (s *Sink) Closed() <-chan struct{} {
	return s.closed
}
