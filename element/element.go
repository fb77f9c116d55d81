// Package element defines the processing nodes of a pipeline, the pads they expose and
// the links that connect an output pad of one element to an input pad of another.
package element

import (
	"errors"

	"github.com/ugparu/goflow/buffer"
)

// Default pad names.
const (
	StdIn  = "STDIN"
	StdOut = "STDOUT"
)

var (
	ErrPadNotFound = errors.New("pad not found")
	ErrPadLinked   = errors.New("pad already linked")
	ErrPadUnbound  = errors.New("pad not linked")
	ErrLinkBusy    = errors.New("link has pending data")
)

// Direction tells which way along the topology an event or a pad points.
// In points upstream, towards sources; Out points downstream, towards sinks.
type Direction int

const (
	In Direction = iota
	Out
)

func (d Direction) String() string {
	if d == In {
		return "IN"
	}
	return "OUT"
}

// Event is a control event travelling along the topology independently of data.
type Event int

const (
	StreamStart Event = iota
	StreamClose
	// LinkSwitchToPullMode is sent upstream by a main loop that drives its link by pulling.
	LinkSwitchToPullMode
)

func (e Event) String() string {
	switch e {
	case StreamStart:
		return "STREAM_START"
	case StreamClose:
		return "STREAM_CLOSE"
	case LinkSwitchToPullMode:
		return "LINK_SWITCH_TO_PULL_MODE"
	default:
		return "UNKNOWN"
	}
}

// Element is a processing node with named input and output pads.
type Element interface {
	ID() string

	// SetLink binds link to the named pad. The pad must exist and be free.
	SetLink(pad string, link *Link, dir Direction) error
	// DropLink unbinds the named pad. The link itself is left alone.
	DropLink(pad string, dir Direction)
	// ReplaceLink rebinds the pad currently bound to existing.
	ReplaceLink(existing, replacement *Link) error
	// PadLink returns the link bound to the named pad, or nil.
	PadLink(pad string, dir Direction) *Link
	// Pads lists pad names in dir, sorted.
	Pads(dir Direction) []string

	// Poll asks the element to produce data on its outputs, pulling its inputs.
	Poll(block bool)
	// HandleData receives buf from link. The element owns buf afterwards.
	HandleData(buf *buffer.Buffer, link *Link)
	HandleEvent(event Event, dir Direction)

	Validate() error
	String() string
}

// Starter is implemented by elements that act on StreamStart.
type Starter interface {
	OnStart()
}

// Closer is implemented by elements that release resources on StreamClose.
type Closer interface {
	OnClose()
}
