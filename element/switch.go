package element

import (
	"sync/atomic"

	"github.com/ugparu/goflow/buffer"
	"github.com/ugparu/goflow/utils/logger"
)

// OneTimeOut is the optional output pad a OneTimeSwitch sends its replies through.
const OneTimeOut = "OTOUT"

// OneTimeHandler consumes data while the switch is on. It may reply through
// sw.PushDataToPad(OneTimeOut, ...) and calls sw.SwitchOff once it is done.
type OneTimeHandler func(sw *OneTimeSwitch, buf *buffer.Buffer, link *Link)

// OneTimeSwitch handles the first part of a stream itself, a handshake for example,
// and then takes itself out of the graph. Until it is switched off it holds back
// StreamStart from the elements after it, so a main loop waiting for the start event
// begins only after the handshake is over.
type OneTimeSwitch struct {
	*Base
	handle   OneTimeHandler
	onStart  func(sw *OneTimeSwitch)
	switched atomic.Bool
}

// NewOneTimeSwitch returns a switch passing data to handle. onStart, if not nil, runs
// when StreamStart reaches the switch, typically to send the first handshake message.
func NewOneTimeSwitch(id string, handle OneTimeHandler, onStart func(sw *OneTimeSwitch)) *OneTimeSwitch {
	sw := &OneTimeSwitch{handle: handle, onStart: onStart}
	sw.Base = NewBase(id, sw, WithOptionalPads(Out, OneTimeOut))
	return sw
}

func (sw *OneTimeSwitch) HandleData(buf *buffer.Buffer, link *Link) {
	if sw.switched.Load() {
		logger.Warningf(sw, "Switched off, dropping %s", buf)
		buf.Unref()
		return
	}
	sw.handle(sw, buf, link)
}

func (sw *OneTimeSwitch) HandleEvent(event Event, dir Direction) {
	if event == StreamStart && dir == Out && !sw.switched.Load() {
		logger.Debug(sw, "Holding stream start until switched off")
		if sw.onStart != nil {
			sw.onStart(sw)
		}
		if link := sw.PadLink(OneTimeOut, Out); link != nil {
			link.SendEvent(StreamStart, Out)
		}
		return
	}
	sw.Base.HandleEvent(event, dir)
}

// SwitchOff removes the switch from the graph: its input link is re-pointed at the
// element after it and StreamStart is sent downstream over that link.
func (sw *OneTimeSwitch) SwitchOff() error {
	if !sw.switched.CompareAndSwap(false, true) {
		return nil
	}
	in := sw.PadLink(StdIn, In)
	out := sw.PadLink(StdOut, Out)
	if in == nil || out == nil {
		return sw.Validate()
	}

	next, pad := out.Sink(), out.SinkPad()
	sw.DropLink(StdIn, In)
	if err := out.Drop(); err != nil {
		return err
	}
	if err := next.SetLink(pad, in, In); err != nil {
		return err
	}
	logger.Debugf(sw, "Switched off, %s now feeds %s", in, next)

	in.SendEvent(StreamStart, Out)
	return nil
}
