package pipeline

import (
	"github.com/ugparu/goflow/buffer"
	"github.com/ugparu/goflow/element"
)

// boundary is the IN or OUT port element of a pipeline. Its pads are created as they
// are linked. Data arriving on a pad goes out on the pad of the same name when there
// is one, and to every output otherwise.
type boundary struct {
	*element.Base
}

func newBoundary(id string) *boundary {
	b := &boundary{}
	b.Base = element.NewBase(id, b, element.WithInputs(), element.WithOutputs(), element.WithDynamicPads())
	return b
}

func (b *boundary) HandleData(buf *buffer.Buffer, link *element.Link) {
	if link != nil {
		pad := link.SinkPad()
		if b.PadLink(pad, element.Out) != nil {
			b.PushDataToPad(pad, buf)
			return
		}
	}
	b.PushDataToAllOuts(buf)
}
