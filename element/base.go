package element

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ugparu/goflow/buffer"
	"github.com/ugparu/goflow/utils/logger"
)

type padKey struct {
	dir  Direction
	name string
}

// Base implements Element with pass-through behavior. Concrete elements embed *Base,
// override the methods they need, and hand themselves to NewBase so that Poll and
// incoming links dispatch to the overriding methods.
type Base struct {
	id   string
	self Element

	mu       sync.RWMutex
	pads     map[Direction]map[string]*Link
	optional map[padKey]struct{}
	dynamic  bool
}

// Option configures the pads of a Base.
type Option func(*Base)

// WithInputs replaces the default STDIN input with the given required pads.
func WithInputs(names ...string) Option {
	return func(b *Base) {
		b.pads[In] = make(map[string]*Link, len(names))
		for _, name := range names {
			b.pads[In][name] = nil
		}
	}
}

// WithOutputs replaces the default STDOUT output with the given required pads.
func WithOutputs(names ...string) Option {
	return func(b *Base) {
		b.pads[Out] = make(map[string]*Link, len(names))
		for _, name := range names {
			b.pads[Out][name] = nil
		}
	}
}

// WithOptionalPads declares pads that may be linked but are not checked by Validate.
func WithOptionalPads(dir Direction, names ...string) Option {
	return func(b *Base) {
		for _, name := range names {
			b.optional[padKey{dir, name}] = struct{}{}
		}
	}
}

// WithDynamicPads lets any pad name be linked; pads are created on first use.
func WithDynamicPads() Option {
	return func(b *Base) {
		b.dynamic = true
	}
}

// NewBase returns a Base with required STDIN and STDOUT pads unless options say
// otherwise. self is the element embedding the Base; nil means the Base itself.
func NewBase(id string, self Element, opts ...Option) *Base {
	b := &Base{
		id: id,
		pads: map[Direction]map[string]*Link{
			In:  {StdIn: nil},
			Out: {StdOut: nil},
		},
		optional: make(map[padKey]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if self == nil {
		self = b
	}
	b.self = self
	return b
}

func (b *Base) ID() string {
	return b.id
}

func (b *Base) String() string {
	return b.id
}

func (b *Base) SetLink(pad string, link *Link, dir Direction) error {
	b.mu.Lock()
	cur, declared := b.pads[dir][pad]
	_, optional := b.optional[padKey{dir, pad}]
	switch {
	case !declared && !optional && !b.dynamic:
		b.mu.Unlock()
		return fmt.Errorf("%w: element %s has no %s pad %q for link %s", ErrPadNotFound, b.id, dir, pad, link)
	case cur != nil:
		b.mu.Unlock()
		return fmt.Errorf("%w: %s pad %q of element %s is bound to %s, cannot bind %s",
			ErrPadLinked, dir, pad, b.id, cur, link)
	}
	b.pads[dir][pad] = link
	b.mu.Unlock()

	link.bind(b.self, pad, dir)
	logger.Debugf(b, "Bound %s pad %s to %s", dir, pad, link)
	return nil
}

func (b *Base) DropLink(pad string, dir Direction) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pads[dir][pad]; !ok {
		return
	}
	_, optional := b.optional[padKey{dir, pad}]
	if optional || b.dynamic {
		delete(b.pads[dir], pad)
		return
	}
	b.pads[dir][pad] = nil
}

func (b *Base) ReplaceLink(existing, replacement *Link) error {
	b.mu.Lock()
	for _, dir := range []Direction{In, Out} {
		for pad, link := range b.pads[dir] {
			if link != existing {
				continue
			}
			b.pads[dir][pad] = replacement
			b.mu.Unlock()
			replacement.bind(b.self, pad, dir)
			logger.Debugf(b, "Replaced %s with %s on %s pad %s", existing, replacement, dir, pad)
			return nil
		}
	}
	b.mu.Unlock()
	return fmt.Errorf("%w: element %s is not bound to %s", ErrPadNotFound, b.id, existing)
}

func (b *Base) PadLink(pad string, dir Direction) *Link {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pads[dir][pad]
}

func (b *Base) Pads(dir Direction) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.pads[dir]))
	for name := range b.pads[dir] {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Links returns the links bound in dir, ordered by pad name.
func (b *Base) Links(dir Direction) []*Link {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.pads[dir]))
	for name, link := range b.pads[dir] {
		if link != nil {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	links := make([]*Link, len(names))
	for i, name := range names {
		links[i] = b.pads[dir][name]
	}
	return links
}

// Poll pulls every bound input once and handles what arrives.
func (b *Base) Poll(block bool) {
	for _, link := range b.Links(In) {
		if buf := link.Pull(block); buf != nil {
			b.self.HandleData(buf, link)
		}
	}
}

// HandleData forwards buf unchanged to every output.
func (b *Base) HandleData(buf *buffer.Buffer, _ *Link) {
	b.PushDataToAllOuts(buf)
}

// PushDataToAllOuts delivers buf to every bound output. Every destination after the
// first gets its own view over the same storage, so each consumer owns exactly one
// reference and the storage is recycled when the last of them lets go.
func (b *Base) PushDataToAllOuts(buf *buffer.Buffer) {
	links := b.Links(Out)
	if len(links) == 0 {
		logger.Warningf(b, "No outputs, dropping %s", buf)
		buf.Unref()
		return
	}

	views := make([]*buffer.Buffer, len(links))
	views[0] = buf
	for i := 1; i < len(views); i++ {
		views[i] = buf.Slice(0, buf.Len(), true)
	}
	for i, link := range links {
		logger.Tracef(b, "Pushing %s to %s", views[i], link)
		link.SendData(views[i])
	}
}

// PushDataToPad delivers buf to the named output pad. Pushing to a pad that is not
// bound is a wiring bug and panics.
func (b *Base) PushDataToPad(pad string, buf *buffer.Buffer) {
	link := b.PadLink(pad, Out)
	if link == nil {
		buf.Unref()
		panic(fmt.Errorf("%w: element %s output pad %q", ErrPadUnbound, b.id, pad))
	}
	logger.Tracef(b, "Pushing %s to %s", buf, link)
	link.SendData(buf)
}

// HandleEvent runs the OnStart/OnClose hooks of the element and passes the event on
// to every pad in dir.
func (b *Base) HandleEvent(event Event, dir Direction) {
	logger.Debugf(b, "Event %s %s", event, dir)
	switch event {
	case StreamStart:
		if s, ok := b.self.(Starter); ok {
			s.OnStart()
		}
	case StreamClose:
		if c, ok := b.self.(Closer); ok {
			c.OnClose()
		}
	}
	b.SendEventToAllPads(event, dir)
}

// SendEventToAllPads sends event over every link bound in dir.
func (b *Base) SendEventToAllPads(event Event, dir Direction) {
	for _, link := range b.Links(dir) {
		link.SendEvent(event, dir)
	}
}

// Validate fails on the first required pad without a link.
func (b *Base) Validate() error {
	for _, dir := range []Direction{In, Out} {
		for _, pad := range b.Pads(dir) {
			if b.PadLink(pad, dir) == nil {
				return fmt.Errorf("%w: %s pad %q of element %s", ErrPadUnbound, dir, pad, b.id)
			}
		}
	}
	return nil
}
