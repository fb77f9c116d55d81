// Package queue provides the element that hands data from one goroutine to another.
//
// Everything upstream of a Queue runs on the caller of HandleData; everything
// downstream runs on whoever polls it, normally a pipeline main loop.
package queue

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"

	"github.com/ugparu/goflow/buffer"
	"github.com/ugparu/goflow/element"
	"github.com/ugparu/goflow/metric"
	"github.com/ugparu/goflow/utils/lifecycle"
	"github.com/ugparu/goflow/utils/logger"
)

// DefaultPollTimeout bounds a non-blocking Poll so a consumer notices shutdown.
const DefaultPollTimeout = 100 * time.Millisecond

var errClosed = errors.New("queue closed")

// Queue is an unbounded FIFO of buffers between a producer and a consumer goroutine.
type Queue struct {
	*element.Base
	lc lifecycle.Manager[*Queue]

	timeout time.Duration
	metrics *metric.QueueMetrics

	mu      sync.Mutex
	fifo    *queue.Queue
	notify  chan struct{}
	done    chan struct{}
	closing atomic.Bool
}

// Option configures a Queue.
type Option func(*Queue)

// WithPollTimeout sets how long a non-blocking Poll waits for data.
func WithPollTimeout(d time.Duration) Option {
	return func(q *Queue) {
		q.timeout = d
	}
}

// WithMetrics reports depth and dropped buffers to m.
func WithMetrics(m *metric.QueueMetrics) Option {
	return func(q *Queue) {
		q.metrics = m
	}
}

// New returns an open queue with STDIN and STDOUT pads.
func New(id string, opts ...Option) *Queue {
	q := &Queue{
		timeout: DefaultPollTimeout,
		fifo:    queue.New(),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	q.Base = element.NewBase(id, q)
	q.lc = lifecycle.NewDefaultManager(q)
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// HandleData enqueues buf. A closed queue releases buf and tells upstream to stop.
func (q *Queue) HandleData(buf *buffer.Buffer, _ *element.Link) {
	q.mu.Lock()
	if q.fifo == nil {
		q.mu.Unlock()
		logger.Warningf(q, "Closed, dropping %s", buf)
		buf.Unref()
		q.SendEventToAllPads(element.StreamClose, element.In)
		return
	}
	q.fifo.Add(buf)
	depth := q.fifo.Length()
	q.mu.Unlock()

	q.metrics.RecordDepth(q.ID(), depth)
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *Queue) take(block bool) (*buffer.Buffer, error) {
	var timeout <-chan time.Time
	if !block {
		timer := time.NewTimer(q.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		q.mu.Lock()
		if q.fifo == nil {
			q.mu.Unlock()
			return nil, errClosed
		}
		if q.fifo.Length() > 0 {
			buf := q.fifo.Peek().(*buffer.Buffer)
			q.fifo.Remove()
			depth := q.fifo.Length()
			q.mu.Unlock()
			q.metrics.RecordDepth(q.ID(), depth)
			return buf, nil
		}
		q.mu.Unlock()

		select {
		case <-q.notify:
		case <-q.done:
			return nil, errClosed
		case <-timeout:
			return nil, nil
		}
	}
}

// Poll takes the next buffer and pushes it to the outputs. With block set it waits
// until data arrives or the queue closes; otherwise it gives up after the poll
// timeout. A closed queue sends StreamClose downstream.
func (q *Queue) Poll(block bool) {
	buf, err := q.take(block)
	if err != nil {
		logger.Debugf(q, "Poll: %s", err)
		q.shutdown(element.Out)
		return
	}
	if buf != nil {
		q.PushDataToAllOuts(buf)
	}
}

// HandleEvent stops pull-mode switches, which cannot cross a goroutine boundary, and
// turns StreamClose into a shutdown of the queue.
func (q *Queue) HandleEvent(event element.Event, dir element.Direction) {
	switch event {
	case element.LinkSwitchToPullMode:
		logger.Debug(q, "Not passing pull mode switch across the queue")
	case element.StreamClose:
		q.shutdown(dir)
	default:
		q.Base.HandleEvent(event, dir)
	}
}

func (q *Queue) shutdown(dir element.Direction) {
	if !q.closing.CompareAndSwap(false, true) {
		return
	}
	q.lc.Close()
	q.Base.HandleEvent(element.StreamClose, dir)
}

// Close shuts the queue down and sends StreamClose downstream. Queued buffers are
// released.
func (q *Queue) Close() {
	q.shutdown(element.Out)
}

// Closed reports whether the queue was shut down.
func (q *Queue) Closed() bool {
	return q.lc.Closed()
}

// Len returns the number of queued buffers.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.fifo == nil {
		return 0
	}
	return q.fifo.Length()
}

func (q *Queue) Close_() { //nolint:revive // required by lifecycle.Instance interface
	q.mu.Lock()
	fifo := q.fifo
	q.fifo = nil
	q.mu.Unlock()
	close(q.done)

	dropped := 0
	for fifo.Length() > 0 {
		fifo.Peek().(*buffer.Buffer).Unref()
		fifo.Remove()
		dropped++
	}
	if dropped > 0 {
		logger.Warningf(q, "Released %d queued buffers", dropped)
	}
	q.metrics.RecordDropped(q.ID(), dropped)
	q.metrics.RecordDepth(q.ID(), 0)
}
