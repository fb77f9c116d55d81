// Package reader provides the source element that injects raw bytes read from an
// io.Reader, typically a network connection, into a pipeline.
package reader

import (
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ugparu/goflow/buffer"
	"github.com/ugparu/goflow/element"
	"github.com/ugparu/goflow/utils/logger"
	"github.com/ugparu/goflow/utils/pool"
)

// Constants for configuring the source.
const (
	DefaultChunkSize   = 4 * 1024
	DefaultPollTimeout = 100 * time.Millisecond
)

type deadliner interface {
	SetReadDeadline(t time.Time) error
}

// Source reads one chunk per Poll into a pooled buffer with header room and pushes it
// to its outputs. End of input or a read error closes the stream downstream.
type Source struct {
	*element.Base
	r         io.Reader
	pool      pool.Pool
	chunkSize int
	timeout   time.Duration

	closed    atomic.Bool
	stopping  atomic.Bool
	closeOnce sync.Once
}

// Option configures a Source.
type Option func(*Source)

// WithChunkSize sets the most bytes a single Poll reads.
func WithChunkSize(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithPollTimeout sets how long a non-blocking Poll waits for input on readers that
// support read deadlines.
func WithPollTimeout(d time.Duration) Option {
	return func(s *Source) {
		s.timeout = d
	}
}

// New returns a source over r with a single STDOUT pad. A nil pool allocates fresh
// storage for every chunk.
func New(id string, r io.Reader, p pool.Pool, opts ...Option) *Source {
	s := &Source{
		r:         r,
		pool:      p,
		chunkSize: DefaultChunkSize,
		timeout:   DefaultPollTimeout,
	}
	s.Base = element.NewBase(id, s, element.WithInputs())
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Poll reads the next chunk. Without block, readers with deadlines give up after the
// poll timeout.
func (s *Source) Poll(block bool) {
	if s.closed.Load() {
		return
	}
	if s.stopping.Load() {
		s.finish()
		return
	}
	s.setDeadline(block)

	buf := buffer.NewWithHeader(s.pool, s.chunkSize)
	n, err := s.r.Read(buf.Bytes())
	if n > 0 {
		buf.Truncate(n)
		logger.Tracef(s, "Read %s", buf)
		s.PushDataToAllOuts(buf)
	} else {
		buf.Unref()
	}

	switch {
	case err == nil:
	case errors.Is(err, os.ErrDeadlineExceeded):
		logger.Trace(s, "Poll timed out")
	case errors.Is(err, io.EOF):
		logger.Debug(s, "End of input")
		s.finish()
	default:
		if !s.stopping.Load() {
			logger.Warningf(s, "Read error: %s", err.Error())
		}
		s.finish()
	}
}

func (s *Source) setDeadline(block bool) {
	d, ok := s.r.(deadliner)
	if !ok {
		return
	}
	deadline := time.Time{}
	if !block {
		deadline = time.Now().Add(s.timeout)
	}
	if err := d.SetReadDeadline(deadline); err != nil {
		logger.Debugf(s, "Failed to set read deadline: %s", err.Error())
	}
}

func (s *Source) finish() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.HandleEvent(element.StreamClose, element.Out)
}

// Run reads and pushes chunks until the input ends or the stream is closed.
func (s *Source) Run() {
	for !s.closed.Load() {
		s.Poll(true)
	}
}

// Closed reports whether the source stopped reading.
func (s *Source) Closed() bool {
	return s.closed.Load()
}

// OnClose closes the underlying reader once, which also unblocks a pending Read.
func (s *Source) OnClose() {
	s.stopping.Store(true)
	s.closeOnce.Do(func() {
		c, ok := s.r.(io.Closer)
		if !ok {
			return
		}
		if err := c.Close(); err != nil {
			logger.Debugf(s, "Close: %s", err.Error())
		}
	})
}
