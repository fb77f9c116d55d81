package element_test

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/ugparu/goflow/buffer"
	"github.com/ugparu/goflow/element"
	"github.com/ugparu/goflow/internal/mock"
	"github.com/ugparu/goflow/utils/logger"
)

func TestMain(m *testing.M) {
	logger.Init(logrus.FatalLevel)
	os.Exit(m.Run())
}

func connect(t *testing.T, src element.Element, srcPad string, dst element.Element, dstPad string) *element.Link {
	t.Helper()
	l := element.NewLink(element.LinkID(src.ID(), srcPad, dst.ID(), dstPad))
	require.NoError(t, src.SetLink(srcPad, l, element.Out))
	require.NoError(t, dst.SetLink(dstPad, l, element.In))
	return l
}

// framer emits fixed-size records out of a byte stream.
type framer struct {
	*element.Base
	size int
}

func newFramer(id string, size int) *framer {
	f := &framer{size: size}
	f.Base = element.NewBase(id, f)
	return f
}

func (f *framer) HandleData(buf *buffer.Buffer, link *element.Link) {
	if !buf.Cap(f.size, f.size, link, false) {
		return
	}
	f.PushDataToAllOuts(buf)
}

// holder keeps every buffer it receives until told to release them.
type holder struct {
	*element.Base
	bufs []*buffer.Buffer
}

func newHolder(id string) *holder {
	h := &holder{}
	h.Base = element.NewBase(id, h, element.WithOutputs())
	return h
}

func (h *holder) HandleData(buf *buffer.Buffer, _ *element.Link) {
	h.bufs = append(h.bufs, buf)
}

func (h *holder) release() {
	for _, buf := range h.bufs {
		buf.Unref()
	}
	h.bufs = nil
}

func TestSetLinkErrors(t *testing.T) {
	t.Parallel()

	a := element.NewBase("a", nil)
	b := element.NewBase("b", nil)
	first := connect(t, a, element.StdOut, b, element.StdIn)

	err := a.SetLink("nope", element.NewLink("x"), element.Out)
	require.ErrorIs(t, err, element.ErrPadNotFound)
	require.ErrorContains(t, err, `"nope"`)

	second := element.NewLink("second")
	err = b.SetLink(element.StdIn, second, element.In)
	require.ErrorIs(t, err, element.ErrPadLinked)
	require.ErrorContains(t, err, first.ID())
	require.ErrorContains(t, err, second.ID())

	require.Same(t, first, b.PadLink(element.StdIn, element.In))
	require.Same(t, a, first.Source())
	require.Same(t, b, first.Sink())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	a := element.NewBase("a", nil)
	err := a.Validate()
	require.ErrorIs(t, err, element.ErrPadUnbound)
	require.ErrorContains(t, err, "STDIN")

	src := mock.NewSource("src", nil)
	sink := mock.NewSink("sink")
	require.Error(t, src.Validate())
	connect(t, src, element.StdOut, sink, element.StdIn)
	require.NoError(t, src.Validate())
	require.NoError(t, sink.Validate())
}

func TestOptionalAndDynamicPads(t *testing.T) {
	t.Parallel()

	opt := element.NewBase("opt", nil, element.WithOptionalPads(element.Out, "extra"))
	require.NoError(t, opt.SetLink("extra", element.NewLink("l"), element.Out))
	require.Equal(t, []string{element.StdOut, "extra"}, opt.Pads(element.Out))
	opt.DropLink("extra", element.Out)
	require.Equal(t, []string{element.StdOut}, opt.Pads(element.Out))

	dyn := element.NewBase("dyn", nil, element.WithInputs(), element.WithOutputs(), element.WithDynamicPads())
	require.NoError(t, dyn.Validate())
	require.NoError(t, dyn.SetLink("any", element.NewLink("l"), element.In))
	require.Equal(t, []string{"any"}, dyn.Pads(element.In))
	require.Empty(t, dyn.Pads(element.Out))
}

func TestReplaceLink(t *testing.T) {
	t.Parallel()

	a := element.NewBase("a", nil)
	b := element.NewBase("b", nil)
	old := connect(t, a, element.StdOut, b, element.StdIn)

	replacement := element.NewLink("replacement")
	require.NoError(t, b.ReplaceLink(old, replacement))
	require.Same(t, replacement, b.PadLink(element.StdIn, element.In))
	require.Same(t, b, replacement.Sink())
	require.Equal(t, element.StdIn, replacement.SinkPad())

	require.ErrorIs(t, b.ReplaceLink(old, replacement), element.ErrPadNotFound)
}

func TestPassThroughStampsSequence(t *testing.T) {
	t.Parallel()

	src := mock.NewFakeSource("src", nil, 3, 2)
	mid := element.NewBase("mid", nil)
	sink := mock.NewSink("sink")
	connect(t, src, element.StdOut, mid, element.StdIn)
	connect(t, mid, element.StdOut, sink, element.StdIn)

	src.Run()
	require.Equal(t, [][]byte{{0, 0}, {1, 1}, {2, 2}}, sink.Data())
	require.Equal(t, []int{0, 1, 2}, sink.Seqs())
	require.Equal(t, 1, sink.Count(element.StreamClose))
}

func TestFanOutRecyclesOnce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		order []int
	}{
		{name: "forward", order: []int{0, 1, 2}},
		{name: "backward", order: []int{2, 1, 0}},
		{name: "middle_first", order: []int{1, 0, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := mock.NewPool()
			src := mock.NewFakeSource("src", p, 2, 8)
			tee := element.NewBase("tee", nil, element.WithOutputs("a", "b", "c"))
			connect(t, src, element.StdOut, tee, element.StdIn)
			holders := []*holder{newHolder("a"), newHolder("b"), newHolder("c")}
			for i, h := range holders {
				connect(t, tee, []string{"a", "b", "c"}[i], h, element.StdIn)
			}

			src.Poll(false)
			src.Poll(false)
			require.Equal(t, 2, p.Allocated())

			for i, idx := range tt.order {
				require.Zero(t, p.Recycled(), "recycled before consumer %d released", i)
				require.Len(t, holders[idx].bufs, 2)
				holders[idx].release()
			}
			require.Equal(t, 2, p.Recycled())
			require.False(t, p.DoubleRecycled())
		})
	}
}

func TestNoOutputsReleases(t *testing.T) {
	t.Parallel()

	p := mock.NewPool()
	src := mock.NewFakeSource("src", p, 1, 4)
	end := element.NewBase("end", nil, element.WithOutputs())
	connect(t, src, element.StdOut, end, element.StdIn)

	src.Poll(false)
	require.Equal(t, 1, p.Recycled())
}

func TestPushDataToUnboundPadPanics(t *testing.T) {
	t.Parallel()

	b := element.NewBase("b", nil)
	require.Panics(t, func() { b.PushDataToPad("missing", buffer.Wrap([]byte{1})) })
}

func TestPushBackReassembly(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		chunk   int
		records [][]byte
		pending int
	}{
		{
			name:    "three_byte_chunks",
			chunk:   3,
			records: [][]byte{{0, 0, 0, 1, 1}},
			pending: 4,
		},
		{
			name:    "four_byte_chunks",
			chunk:   4,
			records: [][]byte{{0, 0, 0, 0, 1}, {1, 1, 1, 2, 2}},
			pending: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := mock.NewPool()
			src := mock.NewFakeSource("src", p, 3, tt.chunk)
			f := newFramer("framer", 5)
			sink := mock.NewSink("sink")
			in := connect(t, src, element.StdOut, f, element.StdIn)
			connect(t, f, element.StdOut, sink, element.StdIn)

			for range 3 {
				src.Poll(false)
			}
			require.Equal(t, tt.records, sink.Data())
			require.Equal(t, tt.pending, in.Pending())

			src.Poll(false)
			require.Equal(t, 1, sink.Count(element.StreamClose))
			require.Zero(t, in.Pending())
			require.Equal(t, p.Allocated(), p.Recycled())
			require.False(t, p.DoubleRecycled())
		})
	}
}

func TestSplitOversizedChunk(t *testing.T) {
	t.Parallel()

	src := mock.NewSource("src", nil, []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})
	f := newFramer("framer", 5)
	sink := mock.NewSink("sink")
	in := connect(t, src, element.StdOut, f, element.StdIn)
	connect(t, f, element.StdOut, sink, element.StdIn)

	src.Poll(false)
	require.Equal(t, [][]byte{{1, 2, 3, 4, 5}, {6, 7, 8, 9, 10}}, sink.Data())
	require.Equal(t, 2, in.Pending())
}

func TestPullMode(t *testing.T) {
	t.Parallel()

	src := mock.NewFakeSource("src", nil, 2, 3)
	sink := mock.NewSink("sink")
	l := connect(t, src, element.StdOut, sink, element.StdIn)

	l.SendEvent(element.LinkSwitchToPullMode, element.In)
	require.True(t, l.PullMode())

	// Data pushed in pull mode waits on the link.
	l.SendData(buffer.Wrap([]byte{9}))
	require.Empty(t, sink.Data())
	require.Equal(t, 1, l.Pending())

	require.True(t, l.PumpOnce(true))
	require.True(t, l.PumpOnce(true))
	require.True(t, l.PumpOnce(true))
	require.Equal(t, [][]byte{{9}, {0, 0, 0}, {1, 1, 1}}, sink.Data())

	require.False(t, l.PumpOnce(true))
	require.True(t, l.IsClosed())
	require.Equal(t, 1, sink.Count(element.StreamClose))
	require.Nil(t, l.Pull(true))
}

func TestEvents(t *testing.T) {
	t.Parallel()

	src := mock.NewSource("src", nil)
	sink := mock.NewSink("sink")
	l := connect(t, src, element.StdOut, sink, element.StdIn)

	select {
	case <-l.Started():
		t.Fatal("started before StreamStart")
	default:
	}
	l.SendEvent(element.StreamStart, element.Out)
	<-l.Started()

	l.SendData(buffer.Wrap([]byte{1}))
	l.PushBack(buffer.Wrap([]byte{2}), 10)
	require.Equal(t, 1, l.Pending())

	l.SendEvent(element.StreamClose, element.Out)
	l.SendEvent(element.StreamClose, element.Out)
	require.Equal(t, []element.Event{element.StreamStart, element.StreamClose}, sink.Events())
	require.Zero(t, l.Pending())

	// Data after close is dropped.
	l.SendData(buffer.Wrap([]byte{3}))
	require.Equal(t, [][]byte{{1}}, sink.Data())
}

func TestDrop(t *testing.T) {
	t.Parallel()

	a := element.NewBase("a", nil)
	b := element.NewBase("b", nil, element.WithOutputs())
	l := connect(t, a, element.StdOut, b, element.StdIn)

	l.PushBack(buffer.Wrap([]byte{1, 2}), 4)
	require.ErrorIs(t, l.Drop(), element.ErrLinkBusy)

	l.SendEvent(element.StreamClose, element.Out)
	require.NoError(t, l.Drop())
	require.Nil(t, a.PadLink(element.StdOut, element.Out))
	require.Nil(t, b.PadLink(element.StdIn, element.In))
	require.Nil(t, l.Source())
}

func TestHooks(t *testing.T) {
	t.Parallel()

	h := &hooked{}
	h.Base = element.NewBase("hooked", h, element.WithInputs(), element.WithOutputs())
	h.HandleEvent(element.StreamStart, element.Out)
	h.HandleEvent(element.StreamClose, element.Out)
	require.Equal(t, []string{"start", "close"}, h.calls)
}

type hooked struct {
	*element.Base
	calls []string
}

func (h *hooked) OnStart() { h.calls = append(h.calls, "start") }
func (h *hooked) OnClose() { h.calls = append(h.calls, "close") }
