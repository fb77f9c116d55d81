package writer

import (
	"encoding/hex"
	"fmt"
	"io"
	"sync"

	"github.com/ugparu/goflow/buffer"
	"github.com/ugparu/goflow/element"
)

// Dumper writes a hex dump of every buffer it receives, headed by the link it came
// over and its sequence number. It is meant for debugging.
type Dumper struct {
	*element.Base
	w io.Writer

	mu    sync.Mutex
	count int
}

// NewDumper returns a dumper with a single STDIN pad.
func NewDumper(id string, w io.Writer) *Dumper {
	d := &Dumper{w: w}
	d.Base = element.NewBase(id, d, element.WithOutputs())
	return d
}

func (d *Dumper) HandleData(buf *buffer.Buffer, link *element.Link) {
	defer buf.Unref()

	seq := "-"
	if n, ok := buf.Seq(); ok {
		seq = fmt.Sprint(n)
	}
	from := "-"
	if link != nil {
		from = link.ID()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.count++
	fmt.Fprintf(d.w, "[%s] seq=%s len=%d\n%s", from, seq, buf.Len(), hex.Dump(buf.Bytes()))
}

// Count returns the number of buffers dumped.
func (d *Dumper) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}
