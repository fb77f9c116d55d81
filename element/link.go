package element

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ugparu/goflow/buffer"
	"github.com/ugparu/goflow/metric"
	"github.com/ugparu/goflow/utils/logger"
)

// Link connects one output pad to one input pad. In push mode SendData delivers to the
// sink synchronously; in pull mode data waits on the link until Pull takes it.
//
// A link holds at most one pending buffer: data the sink pushed back, merged with data
// that arrived after it. The pending buffer is handed to the sink again once it holds
// the number of bytes the sink asked for.
type Link struct {
	id      string
	metrics *metric.LinkMetrics

	mu        sync.Mutex
	source    Element
	sourcePad string
	sink      Element
	sinkPad   string
	pending   *buffer.Buffer
	expected  int
	hold      bool
	delivered int
	paused    bool
	pullMode  bool
	seq       int
	startOnce sync.Once
	startCh   chan struct{}
	closedIn  atomic.Bool
	closedOut atomic.Bool
}

// LinkOption configures a Link.
type LinkOption func(*Link)

// WithLinkMetrics reports deliveries to m under the link id.
func WithLinkMetrics(m *metric.LinkMetrics) LinkOption {
	return func(l *Link) {
		l.metrics = m
	}
}

// NewLink returns an unbound link. Bind it with SetLink on both elements.
func NewLink(id string, opts ...LinkOption) *Link {
	l := &Link{
		id:      id,
		startCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LinkID formats the conventional id of the link from source:sourcePad to sink:sinkPad.
func LinkID(source, sourcePad, sink, sinkPad string) string {
	return fmt.Sprintf("%s >%s | %s< %s", source, sourcePad, sinkPad, sink)
}

func (l *Link) ID() string {
	return l.id
}

func (l *Link) String() string {
	return l.id
}

func (l *Link) bind(e Element, pad string, dir Direction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if dir == Out {
		l.source, l.sourcePad = e, pad
		return
	}
	l.sink, l.sinkPad = e, pad
}

// Source returns the element whose output pad the link is bound to.
func (l *Link) Source() Element {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.source
}

// Sink returns the element whose input pad the link is bound to.
func (l *Link) Sink() Element {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sink
}

func (l *Link) SourcePad() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sourcePad
}

func (l *Link) SinkPad() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sinkPad
}

// merge returns head followed by tail, consuming both. tail grows backwards into its
// header room when it can; otherwise both are copied into new storage.
func merge(head, tail *buffer.Buffer) *buffer.Buffer {
	if tail.IsSoleOwner() && tail.HeaderRoom() >= head.Len() {
		tail.Prepend(head.Bytes())
		tail.RewindCursor()
		head.Unref()
		return tail
	}
	joined := head.Join(tail)
	head.Unref()
	tail.Unref()
	return joined
}

// SendData appends buf to the pending data and delivers to the sink for as long as the
// pending data satisfies it. The link takes ownership of buf.
func (l *Link) SendData(buf *buffer.Buffer) {
	if l.IsClosed() {
		logger.Warningf(l, "Link closed, dropping %s", buf)
		buf.Unref()
		return
	}

	l.mu.Lock()
	if l.pending != nil {
		buf = merge(l.pending, buf)
	}
	buf.PutMetadata(buffer.MetaSequence, l.seq)
	l.seq++
	l.pending = buf
	l.hold = false
	l.mu.Unlock()

	l.deliver()
}

func (l *Link) deliver() {
	for {
		l.mu.Lock()
		if l.paused || l.pullMode || l.sink == nil {
			l.mu.Unlock()
			return
		}
		buf := l.takeLocked()
		sink := l.sink
		l.mu.Unlock()

		if buf == nil {
			return
		}
		l.handOver(sink, buf)
	}
}

// takeLocked removes and returns the pending buffer when it satisfies the sink.
func (l *Link) takeLocked() *buffer.Buffer {
	buf := l.pending
	if buf == nil || l.hold || buf.Len() < l.expected {
		return nil
	}
	l.pending = nil
	l.expected = 0
	l.delivered = buf.Len()
	return buf
}

func (l *Link) handOver(sink Element, buf *buffer.Buffer) {
	l.metrics.RecordDelivery(l.id, buf.Len())
	logger.Tracef(l, "Delivering %s", buf)
	sink.HandleData(buf, l)
}

// PushBack returns data the sink could not use yet. It is handed over again once at
// least fullPacketLength bytes are pending; 0 means as soon as anything changes. A
// buffer pushed back whole waits for more data before the next delivery.
func (l *Link) PushBack(buf *buffer.Buffer, fullPacketLength int) {
	if l.IsClosed() {
		buf.Unref()
		return
	}
	buf.RewindCursor()

	l.mu.Lock()
	defer l.mu.Unlock()
	hold := buf.Len() >= l.delivered
	if l.pending != nil {
		buf = merge(buf, l.pending)
	}
	l.pending = buf
	l.expected = fullPacketLength
	l.hold = hold
	logger.Tracef(l, "Pushed back %s, waiting for %d bytes", buf, fullPacketLength)
}

// Pending returns the number of bytes waiting on the link.
func (l *Link) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pending == nil {
		return 0
	}
	return l.pending.Len()
}

// Pull returns pending data that satisfies the sink or polls the source for more,
// blocking inside the source when block is set. It returns nil when nothing is ready
// or the link is closed.
func (l *Link) Pull(block bool) *buffer.Buffer {
	l.mu.Lock()
	if buf := l.takeLocked(); buf != nil {
		l.mu.Unlock()
		return buf
	}
	source := l.source
	l.paused = true
	l.mu.Unlock()

	if source != nil && !l.IsClosed() {
		source.Poll(block)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.paused = false
	return l.takeLocked()
}

// PumpOnce pulls once and hands what arrived to the sink. It reports whether
// anything was delivered.
func (l *Link) PumpOnce(block bool) bool {
	buf := l.Pull(block)
	if buf == nil {
		return false
	}
	sink := l.Sink()
	if sink == nil {
		buf.Unref()
		return false
	}
	l.handOver(sink, buf)
	return true
}

// SendEvent passes event to the sink when dir is Out and to the source when dir is In.
// A link forwards StreamClose once per direction and drops its pending data on the
// first one.
func (l *Link) SendEvent(event Event, dir Direction) {
	switch event {
	case StreamStart:
		l.startOnce.Do(func() { close(l.startCh) })
	case StreamClose:
		closed := &l.closedOut
		if dir == In {
			closed = &l.closedIn
		}
		if !closed.CompareAndSwap(false, true) {
			return
		}
		l.releasePending()
	case LinkSwitchToPullMode:
		if dir == In {
			l.mu.Lock()
			l.pullMode = true
			l.mu.Unlock()
		}
	}

	logger.Debugf(l, "Event %s %s", event, dir)
	l.mu.Lock()
	target := l.sink
	if dir == In {
		target = l.source
	}
	l.mu.Unlock()
	if target != nil {
		target.HandleEvent(event, dir)
	}
}

func (l *Link) releasePending() {
	l.mu.Lock()
	buf := l.pending
	l.pending = nil
	l.mu.Unlock()
	if buf != nil {
		logger.Debugf(l, "Releasing pending %s", buf)
		buf.Unref()
	}
}

// Started is closed once StreamStart has crossed the link.
func (l *Link) Started() <-chan struct{} {
	return l.startCh
}

// IsClosed reports whether StreamClose has crossed the link in either direction.
func (l *Link) IsClosed() bool {
	return l.closedIn.Load() || l.closedOut.Load()
}

// PullMode reports whether the link was switched to pull mode.
func (l *Link) PullMode() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pullMode
}

// Drop unbinds the link from both elements. A link with pending data cannot be dropped.
func (l *Link) Drop() error {
	l.mu.Lock()
	if l.pending != nil {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s holds %d bytes", ErrLinkBusy, l.id, l.pending.Len())
	}
	source, sourcePad, sink, sinkPad := l.source, l.sourcePad, l.sink, l.sinkPad
	l.source, l.sink = nil, nil
	l.mu.Unlock()

	if source != nil {
		source.DropLink(sourcePad, Out)
	}
	if sink != nil {
		sink.DropLink(sinkPad, In)
	}
	logger.Debug(l, "Dropped")
	return nil
}
