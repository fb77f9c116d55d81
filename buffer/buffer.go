// Package buffer provides pooled, sliceable, reference-counted byte windows with a
// read/write cursor and the primitive codecs protocol decoders are written with.
//
// Every allocation of storage is owned by one shared cell counting the Buffer views
// alive over it. Slice creates another view over the same cell; the storage goes back
// to its pool when the last view is released, whichever view that is.
package buffer

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/ugparu/goflow/utils/pool"
)

const (
	// HeaderMargin is the room reserved in front of buffers created with NewWithHeader.
	HeaderMargin = 128

	// MetaSequence is the metadata key links stamp with the delivery sequence number.
	MetaSequence = "seq"
)

// storage is the shared ownership cell of one allocation.
type storage struct {
	data []byte
	refs atomic.Int32
	pool pool.Pool
}

func newStorage(data []byte, p pool.Pool) *storage {
	s := &storage{data: data, pool: p}
	s.refs.Store(1)
	return s
}

func (s *storage) retain() {
	s.refs.Add(1)
}

func (s *storage) release() {
	switch n := s.refs.Add(-1); {
	case n == 0:
		if s.pool != nil {
			s.pool.Recycle(s.data)
		}
		s.data = nil
	case n < 0:
		panic(fmt.Errorf("%w: storage released %d times too often", ErrReleased, -n))
	}
}

// Buffer is a window [offset, offset+length) into shared storage with a cursor
// relative to the window start.
type Buffer struct {
	store  *storage
	offset int
	length int
	cursor int
	refs   atomic.Int32

	// Order is the byte order used by ReadUint and WriteUint. Nil means big-endian.
	Order binary.ByteOrder

	meta map[string]any
}

func newView(s *storage, offset, length int) *Buffer {
	b := &Buffer{store: s, offset: offset, length: length}
	b.refs.Store(1)
	return b
}

func allocate(p pool.Pool, size int) *storage {
	if p == nil {
		return newStorage(make([]byte, size), nil)
	}
	return newStorage(p.Allocate(size), p)
}

// New returns a buffer of minLength bytes backed by storage from p. A nil pool
// allocates fresh storage that is left to the garbage collector.
func New(p pool.Pool, minLength int) *Buffer {
	return newView(allocate(p, minLength), 0, minLength)
}

// NewWithHeader is like New but reserves HeaderMargin bytes in front of the window so
// Prepend can grow the buffer backwards without copying the payload.
func NewWithHeader(p pool.Pool, minLength int) *Buffer {
	return newView(allocate(p, minLength+HeaderMargin), HeaderMargin, minLength)
}

// Wrap returns a buffer over externally supplied bytes. Releasing it recycles nothing.
func Wrap(data []byte) *Buffer {
	return newView(newStorage(data, nil), 0, len(data))
}

func (b *Buffer) alive() {
	if b.store == nil {
		panic(fmt.Errorf("%w: %p", ErrReleased, b))
	}
}

// Len returns the window length.
func (b *Buffer) Len() int {
	return b.length
}

// Cursor returns the cursor position relative to the window start.
func (b *Buffer) Cursor() int {
	return b.cursor
}

// SetCursor moves the cursor to pos.
func (b *Buffer) SetCursor(pos int) {
	b.alive()
	if pos < 0 || pos > b.length {
		panic(b.boundsError("set cursor", pos-b.cursor))
	}
	b.cursor = pos
}

// RewindCursor moves the cursor back to the window start.
func (b *Buffer) RewindCursor() {
	b.cursor = 0
}

// Remaining returns the number of bytes between the cursor and the window end.
func (b *Buffer) Remaining() int {
	return b.length - b.cursor
}

// HeaderRoom returns how many bytes Prepend can still grow backwards.
func (b *Buffer) HeaderRoom() int {
	return b.offset
}

// Bytes returns the window. The slice aliases pooled storage and is valid only while
// the buffer is referenced.
func (b *Buffer) Bytes() []byte {
	b.alive()
	return b.store.data[b.offset : b.offset+b.length]
}

// RemainingBytes returns the window from the cursor on.
func (b *Buffer) RemainingBytes() []byte {
	b.alive()
	return b.store.data[b.offset+b.cursor : b.offset+b.length]
}

// Truncate shrinks the window to n bytes, clamping the cursor.
func (b *Buffer) Truncate(n int) {
	b.alive()
	if n < 0 || n > b.length {
		panic(b.boundsError("truncate", n-b.length))
	}
	b.length = n
	if b.cursor > n {
		b.cursor = n
	}
}

// TrimAtCursor shrinks the window to the bytes written or read so far.
func (b *Buffer) TrimAtCursor() {
	b.length = b.cursor
}

// Ref adds an owner to this view.
func (b *Buffer) Ref() {
	b.alive()
	b.refs.Add(1)
}

// Unref drops an owner. When the view loses its last owner it releases its hold on the
// shared storage; the storage is recycled once no view holds it.
func (b *Buffer) Unref() {
	switch n := b.refs.Add(-1); {
	case n == 0:
		s := b.store
		b.store = nil
		if s != nil {
			s.release()
		}
	case n < 0:
		panic(fmt.Errorf("%w: buffer unreferenced %d times too often", ErrReleased, -n))
	}
}

// IsSoleOwner reports whether this view holds the only reference to its storage, the
// condition for mutating it.
func (b *Buffer) IsSoleOwner() bool {
	return b.store != nil && b.refs.Load() == 1 && b.store.refs.Load() == 1
}

// Slice returns a new view of length bytes starting at offset within this window. It
// shares storage with b and has its own cursor and reference count.
func (b *Buffer) Slice(offset, length int, copyMetadata bool) *Buffer {
	b.alive()
	if offset < 0 || length < 0 || offset+length > b.length {
		panic(&BoundsError{
			Op:     fmt.Sprintf("slice [%d:+%d]", offset, length),
			Need:   offset + length - b.length,
			Offset: b.offset,
			Length: b.length,
			Cursor: b.cursor,
		})
	}

	b.store.retain()
	s := newView(b.store, b.offset+offset, length)
	s.Order = b.Order
	if copyMetadata {
		s.CopyMetadata(b)
	}
	return s
}

// PutMetadata attaches a value to the buffer.
func (b *Buffer) PutMetadata(key string, value any) {
	if b.meta == nil {
		b.meta = make(map[string]any)
	}
	b.meta[key] = value
}

// Metadata returns the value stored under key, or nil.
func (b *Buffer) Metadata(key string) any {
	return b.meta[key]
}

// CopyMetadata copies all metadata of src into b.
func (b *Buffer) CopyMetadata(src *Buffer) {
	for k, v := range src.meta {
		b.PutMetadata(k, v)
	}
}

// Seq returns the sequence number stamped by the link that delivered the buffer.
func (b *Buffer) Seq() (int, bool) {
	seq, ok := b.meta[MetaSequence].(int)
	return seq, ok
}

func (b *Buffer) order() binary.ByteOrder {
	if b.Order == nil {
		return binary.BigEndian
	}
	return b.Order
}

func (b *Buffer) String() string {
	sb := strings.Builder{}
	fmt.Fprintf(&sb, "Buffer{offset=%d length=%d cursor=%d", b.offset, b.length, b.cursor)
	if seq, ok := b.Seq(); ok {
		fmt.Fprintf(&sb, " seq=%d", seq)
	}
	if b.store == nil {
		sb.WriteString(" released")
	}
	sb.WriteString("}")
	return sb.String()
}

// Dump returns a hex dump of the window.
func (b *Buffer) Dump() string {
	return hex.Dump(b.Bytes())
}
