// Package writer provides sink elements that take buffers out of a pipeline.
package writer

import (
	"io"
	"sync"

	"github.com/ugparu/goflow/buffer"
	"github.com/ugparu/goflow/element"
	"github.com/ugparu/goflow/utils/logger"
)

// Sink writes every buffer it receives to an io.Writer. A failed write closes the
// stream upstream.
type Sink struct {
	*element.Base
	w io.Writer

	mu        sync.Mutex
	written   int64
	failed    bool
	closeOnce sync.Once
}

// New returns a sink with a single STDIN pad.
func New(id string, w io.Writer) *Sink {
	s := &Sink{w: w}
	s.Base = element.NewBase(id, s, element.WithOutputs())
	return s
}

func (s *Sink) HandleData(buf *buffer.Buffer, _ *element.Link) {
	defer buf.Unref()

	s.mu.Lock()
	if s.failed {
		s.mu.Unlock()
		return
	}
	n, err := s.w.Write(buf.Bytes())
	s.written += int64(n)
	if err != nil {
		s.failed = true
	}
	s.mu.Unlock()

	if err != nil {
		logger.Warningf(s, "Write error: %s", err.Error())
		s.HandleEvent(element.StreamClose, element.In)
	}
}

// Written returns the number of bytes written so far.
func (s *Sink) Written() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// OnClose closes the writer once if it is an io.Closer.
func (s *Sink) OnClose() {
	s.closeOnce.Do(func() {
		c, ok := s.w.(io.Closer)
		if !ok {
			return
		}
		if err := c.Close(); err != nil {
			logger.Warningf(s, "Close: %s", err.Error())
		}
	})
}
