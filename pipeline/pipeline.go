// Package pipeline assembles elements into a named graph, wires them with a small
// textual grammar and drives the graph from main loops.
package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/rs/xid"

	"github.com/ugparu/goflow/buffer"
	"github.com/ugparu/goflow/element"
	"github.com/ugparu/goflow/metric"
	"github.com/ugparu/goflow/utils/lifecycle"
	"github.com/ugparu/goflow/utils/logger"
)

// Ids of the boundary elements every pipeline has.
const (
	InID  = "IN"
	OutID = "OUT"
)

var (
	ErrDuplicateElement   = errors.New("duplicate element")
	ErrUnknownElement     = errors.New("unknown element")
	ErrUnbalancedBoundary = errors.New("unbalanced boundary pads")
	ErrWiring             = errors.New("malformed wiring")
)

// Pipeline is a graph of named elements with IN and OUT boundary elements standing for
// its own pads, so a pipeline can be used as an element of another pipeline.
type Pipeline struct {
	id          string
	linkMetrics *metric.LinkMetrics

	mu       sync.RWMutex
	elements map[string]element.Element
	order    []string
	in, out  *boundary

	loopsMu sync.Mutex
	loops   []*mainLoop
	closed  bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLinkMetrics reports deliveries over every link the pipeline creates.
func WithLinkMetrics(m *metric.LinkMetrics) Option {
	return func(p *Pipeline) {
		p.linkMetrics = m
	}
}

// New returns an empty pipeline. An empty id is replaced by a generated one.
func New(id string, opts ...Option) *Pipeline {
	if id == "" {
		id = xid.New().String()
	}
	p := &Pipeline{
		id:       id,
		elements: make(map[string]element.Element),
		in:       newBoundary(InID),
		out:      newBoundary(OutID),
	}
	p.elements[InID] = p.in
	p.elements[OutID] = p.out
	p.order = []string{InID, OutID}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) ID() string {
	return p.id
}

func (p *Pipeline) String() string {
	return p.id
}

// Add registers elements under their ids.
func (p *Pipeline) Add(elements ...element.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range elements {
		if _, ok := p.elements[e.ID()]; ok {
			return fmt.Errorf("%w: %s in pipeline %s", ErrDuplicateElement, e.ID(), p.id)
		}
		p.elements[e.ID()] = e
		p.order = append(p.order, e.ID())
		logger.Debugf(p, "Added %s", e)
	}
	return nil
}

// Get returns the element with the given id; IN and OUT are the boundary elements.
func (p *Pipeline) Get(id string) (element.Element, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.elements[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s in pipeline %s", ErrUnknownElement, id, p.id)
	}
	return e, nil
}

// Elements returns element ids in the order they were added, boundaries first.
func (p *Pipeline) Elements() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Clone(p.order)
}

func (p *Pipeline) children() []element.Element {
	p.mu.RLock()
	defer p.mu.RUnlock()
	children := make([]element.Element, 0, len(p.order))
	for _, id := range p.order {
		children = append(children, p.elements[id])
	}
	return children
}

// Link chains the elements named by wiring tokens, linking the output pad of each to
// the input pad of the next. All tokens are parsed and resolved before any link is made.
func (p *Pipeline) Link(tokens ...string) error {
	endpoints, err := ParseWiring(tokens...)
	if err != nil {
		return err
	}
	resolved := make([]element.Element, len(endpoints))
	for i, ep := range endpoints {
		if resolved[i], err = p.Get(ep.Element); err != nil {
			return fmt.Errorf("%w: %w", ErrWiring, err)
		}
	}

	for i := 0; i+1 < len(endpoints); i++ {
		from, to := endpoints[i], endpoints[i+1]
		id := element.LinkID(from.Element, from.OutPad, to.Element, to.InPad)
		link := element.NewLink(id, element.WithLinkMetrics(p.linkMetrics))
		if err = resolved[i].SetLink(from.OutPad, link, element.Out); err != nil {
			return err
		}
		if err = resolved[i+1].SetLink(to.InPad, link, element.In); err != nil {
			resolved[i].DropLink(from.OutPad, element.Out)
			return err
		}
	}
	return nil
}

// AddAndLink registers elements and chains them in the given order.
func (p *Pipeline) AddAndLink(elements ...element.Element) error {
	if err := p.Add(elements...); err != nil {
		return err
	}
	ids := make([]string, len(elements))
	for i, e := range elements {
		ids[i] = e.ID()
	}
	return p.Link(ids...)
}

// Validate validates every element and checks that each boundary with pads has pads
// in both directions.
func (p *Pipeline) Validate() error {
	for _, e := range p.children() {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("pipeline %s: %w", p.id, err)
		}
	}
	for _, b := range []*boundary{p.in, p.out} {
		ins, outs := b.Pads(element.In), b.Pads(element.Out)
		if (len(ins) > 0 || len(outs) > 0) && (len(ins) == 0 || len(outs) == 0) {
			return fmt.Errorf("%w: pipeline %s: %s has inputs %v and outputs %v",
				ErrUnbalancedBoundary, p.id, b.ID(), ins, outs)
		}
	}
	return nil
}

// Element implementation: the pipeline's input pads are the input pads of IN and its
// output pads are the output pads of OUT.

func (p *Pipeline) boundaryFor(dir element.Direction) *boundary {
	if dir == element.In {
		return p.in
	}
	return p.out
}

func (p *Pipeline) SetLink(pad string, link *element.Link, dir element.Direction) error {
	return p.boundaryFor(dir).SetLink(pad, link, dir)
}

func (p *Pipeline) DropLink(pad string, dir element.Direction) {
	p.boundaryFor(dir).DropLink(pad, dir)
}

func (p *Pipeline) ReplaceLink(existing, replacement *element.Link) error {
	if err := p.in.ReplaceLink(existing, replacement); err == nil {
		return nil
	}
	return p.out.ReplaceLink(existing, replacement)
}

func (p *Pipeline) PadLink(pad string, dir element.Direction) *element.Link {
	return p.boundaryFor(dir).PadLink(pad, dir)
}

func (p *Pipeline) Pads(dir element.Direction) []string {
	return p.boundaryFor(dir).Pads(dir)
}

// Poll pulls through the OUT boundary.
func (p *Pipeline) Poll(block bool) {
	p.out.Poll(block)
}

// HandleData injects buf at the IN boundary.
func (p *Pipeline) HandleData(buf *buffer.Buffer, link *element.Link) {
	p.in.HandleData(buf, link)
}

// HandleEvent passes downstream events into the graph through IN and upstream events
// through OUT.
func (p *Pipeline) HandleEvent(event element.Event, dir element.Direction) {
	if dir == element.Out {
		p.in.HandleEvent(event, dir)
		return
	}
	p.out.HandleEvent(event, dir)
}

// Start sends StreamStart downstream from every element without inputs.
func (p *Pipeline) Start() {
	for _, e := range p.children() {
		if e == p.out || len(e.Pads(element.In)) > 0 {
			continue
		}
		e.HandleEvent(element.StreamStart, element.Out)
	}
}

func (p *Pipeline) findLink(elementID, pad string) (*element.Link, error) {
	e, err := p.Get(elementID)
	if err != nil {
		return nil, err
	}
	if link := e.PadLink(pad, element.Out); link != nil {
		return link, nil
	}
	if link := e.PadLink(pad, element.In); link != nil {
		return link, nil
	}
	return nil, fmt.Errorf("%w: %s has no linked pad %q", element.ErrPadNotFound, elementID, pad)
}

// RunMainLoop drives the link on the named pad of the named element by pulling it
// until the stream closes. Unless waitForStartEvent is set the pipeline is started
// first; otherwise the loop waits until StreamStart crosses the link. With
// separateThread the loop runs on its own goroutine and RunMainLoop returns at once;
// Wait collects the outcome.
func (p *Pipeline) RunMainLoop(elementID, pad string, separateThread, waitForStartEvent bool) error {
	if err := p.Validate(); err != nil {
		return err
	}
	link, err := p.findLink(elementID, pad)
	if err != nil {
		return err
	}

	loop := newMainLoop(link, waitForStartEvent)
	if separateThread {
		loop.manager = lifecycle.NewAsyncManager(loop)
	}
	p.loopsMu.Lock()
	if p.closed {
		p.loopsMu.Unlock()
		return &lifecycle.StartedAfterCloseError{}
	}
	p.loops = append(p.loops, loop)
	p.loopsMu.Unlock()

	if !waitForStartEvent {
		p.Start()
	}

	if separateThread {
		return loop.manager.Start(func(*mainLoop) error { return nil })
	}
	logger.Debugf(p, "Running %s", link)
	return loop.run()
}

// Wait blocks until every background main loop ends and returns their errors.
func (p *Pipeline) Wait() error {
	p.loopsMu.Lock()
	loops := slices.Clone(p.loops)
	p.loopsMu.Unlock()

	var errs []error
	for _, loop := range loops {
		if loop.manager == nil {
			continue
		}
		<-loop.manager.Done()
		errs = append(errs, loop.manager.Err())
	}
	return errors.Join(errs...)
}

// Close sends StreamClose both ways over every link driven by a main loop and waits
// for background loops to end.
func (p *Pipeline) Close() {
	p.loopsMu.Lock()
	if p.closed {
		p.loopsMu.Unlock()
		return
	}
	p.closed = true
	loops := slices.Clone(p.loops)
	p.loopsMu.Unlock()

	logger.Debug(p, "Closing")
	for _, loop := range loops {
		loop.abort()
	}
	for _, loop := range loops {
		if loop.manager != nil {
			loop.manager.Close()
		}
	}
}
