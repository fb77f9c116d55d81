package buffer

import (
	"encoding/binary"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ugparu/goflow/utils/pool"
)

// countingPool records recycle calls per allocation.
type countingPool struct {
	mu        sync.Mutex
	allocated int
	recycled  map[*byte]int
}

func newCountingPool() *countingPool {
	return &countingPool{recycled: make(map[*byte]int)}
}

func (p *countingPool) Allocate(minSize int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allocated++
	return make([]byte, minSize+1)
}

func (p *countingPool) Recycle(storage []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.recycled[&storage[0]]++
}

func (p *countingPool) recycles() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.recycled {
		n += c
	}
	return n
}

func TestNewFromPool(t *testing.T) {
	t.Parallel()

	p := newCountingPool()
	b := New(p, 10)
	require.Equal(t, 10, b.Len())
	require.Zero(t, b.Cursor())
	require.Zero(t, b.HeaderRoom())
	require.True(t, b.IsSoleOwner())

	h := NewWithHeader(p, 10)
	require.Equal(t, 10, h.Len())
	require.Equal(t, HeaderMargin, h.HeaderRoom())

	b.Unref()
	h.Unref()
	require.Equal(t, 2, p.recycles())
}

func TestNewWithoutPool(t *testing.T) {
	t.Parallel()

	b := New(nil, 4)
	require.Equal(t, 4, b.Len())
	b.WriteUint32BE(0xdeadbeef)
	b.Unref()

	h := NewWithHeader(nil, 3)
	require.Equal(t, 3, h.Len())
	require.Equal(t, HeaderMargin, h.HeaderRoom())
	h.Prepend([]byte{9})
	require.Equal(t, 4, h.Len())
	h.Unref()
	require.Contains(t, h.String(), "released")
}

func TestWrapRecyclesNothing(t *testing.T) {
	t.Parallel()

	b := Wrap([]byte{1, 2, 3})
	require.Equal(t, []byte{1, 2, 3}, b.Bytes())
	b.Unref()
	require.Contains(t, b.String(), "released")
}

func TestSliceSharesStorage(t *testing.T) {
	t.Parallel()

	b := Wrap([]byte{0, 1, 2, 3, 4, 5, 6, 7})
	left := b.Slice(0, 6, false)
	right := b.Slice(4, 4, false)

	require.Equal(t, []byte{0, 1, 2, 3, 4, 5}, left.Bytes())
	require.Equal(t, []byte{4, 5, 6, 7}, right.Bytes())

	// Mutation through one view shows through the other.
	left.Bytes()[4] = 0xaa
	require.Equal(t, byte(0xaa), right.Bytes()[0])

	// Cursors are independent.
	left.Skip(3)
	require.Equal(t, 3, left.Cursor())
	require.Zero(t, right.Cursor())
	require.Zero(t, b.Cursor())
}

func TestSliceOutOfBounds(t *testing.T) {
	t.Parallel()

	b := Wrap(make([]byte, 4))
	require.PanicsWithError(t, "buffer: slice [2:+3]: 1 bytes short (offset=0 length=4 cursor=0)", func() {
		b.Slice(2, 3, false)
	})
	require.Panics(t, func() { b.Slice(-1, 1, false) })
}

func TestStorageRecycledByLastView(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		order []int
	}{
		{name: "parent_first", order: []int{0, 1, 2}},
		{name: "parent_last", order: []int{1, 2, 0}},
		{name: "middle", order: []int{1, 0, 2}},
	}
	for _, tt := range tests {
		p := newCountingPool()
		parent := New(p, 16)
		views := []*Buffer{parent, parent.Slice(0, 8, false), parent.Slice(8, 8, false)}
		for i, idx := range tt.order {
			require.Zero(t, p.recycles(), "%s: recycled before last release at step %d", tt.name, i)
			views[idx].Unref()
		}
		require.Equal(t, 1, p.recycles(), tt.name)
	}
}

func TestRefUnref(t *testing.T) {
	t.Parallel()

	p := newCountingPool()
	b := New(p, 4)
	b.Ref()
	require.False(t, b.IsSoleOwner())
	b.Unref()
	require.True(t, b.IsSoleOwner())
	b.Unref()
	require.Equal(t, 1, p.recycles())

	require.PanicsWithError(t, "buffer released: buffer unreferenced 1 times too often", func() { b.Unref() })
}

func TestSoleOwnerRequiredForWrites(t *testing.T) {
	t.Parallel()

	b := Wrap(make([]byte, 4))
	s := b.Slice(0, 2, false)
	require.False(t, b.IsSoleOwner())
	require.False(t, s.IsSoleOwner())

	var err error
	func() {
		defer Recover(&err)
		b.WriteUint8(1)
	}()
	require.ErrorIs(t, err, ErrShared)

	s.Unref()
	require.True(t, b.IsSoleOwner())
	b.WriteUint8(1)
	require.Equal(t, byte(1), b.Bytes()[0])
}

func TestUseAfterRelease(t *testing.T) {
	t.Parallel()

	b := Wrap([]byte{1})
	b.Unref()

	var err error
	func() {
		defer Recover(&err)
		b.ReadUint8()
	}()
	require.ErrorIs(t, err, ErrReleased)
}

func TestRecoverPassesForeignPanics(t *testing.T) {
	t.Parallel()

	require.PanicsWithValue(t, "other", func() {
		var err error
		defer Recover(&err)
		panic("other")
	})
}

func TestCursorAndTruncate(t *testing.T) {
	t.Parallel()

	b := Wrap([]byte{1, 2, 3, 4, 5})
	b.SetCursor(3)
	require.Equal(t, 2, b.Remaining())
	require.Equal(t, []byte{4, 5}, b.RemainingBytes())

	b.Truncate(2)
	require.Equal(t, 2, b.Cursor())
	require.Equal(t, []byte{1, 2}, b.Bytes())

	b.RewindCursor()
	b.Skip(1)
	b.TrimAtCursor()
	require.Equal(t, []byte{1}, b.Bytes())

	var err error
	func() {
		defer Recover(&err)
		b.SetCursor(5)
	}()
	require.ErrorIs(t, err, ErrBounds)
}

func TestMetadata(t *testing.T) {
	t.Parallel()

	b := Wrap(make([]byte, 4))
	b.PutMetadata(MetaSequence, 7)
	b.Order = binary.LittleEndian

	seq, ok := b.Seq()
	require.True(t, ok)
	require.Equal(t, 7, seq)
	require.Contains(t, b.String(), "seq=7")

	withMeta := b.Slice(0, 2, true)
	withoutMeta := b.Slice(0, 2, false)
	require.Equal(t, 7, withMeta.Metadata(MetaSequence))
	require.Nil(t, withoutMeta.Metadata(MetaSequence))
	require.Equal(t, binary.LittleEndian, withoutMeta.Order)
}

func TestSizedPoolIntegration(t *testing.T) {
	t.Parallel()

	p := pool.New()
	b := NewWithHeader(p, 100)
	s := b.Slice(10, 10, false)
	b.Unref()
	require.Equal(t, int64(1), p.Stats().InUse)
	s.Unref()
	require.Zero(t, p.Stats().InUse)
}

func TestDump(t *testing.T) {
	t.Parallel()

	b := Wrap([]byte("AB"))
	require.Contains(t, b.Dump(), "41 42")
}
