package buffer

import "fmt"

// PushBacker takes data a consumer cannot use yet. fullPacketLength is how many bytes
// must accumulate before the consumer is worth calling again, 0 when unknown.
type PushBacker interface {
	PushBack(buf *Buffer, fullPacketLength int)
}

// Cap constrains the buffer to between minLength and maxLength available bytes,
// counted from the cursor when fromCursor is set and from the window start otherwise.
//
// With fewer than minLength bytes the whole buffer is pushed back to link, tagged with
// the length it must reach, and Cap returns false: the caller should return and wait
// for more data. With more than maxLength bytes the excess tail is split off into its
// own view and pushed back, and the window is truncated. A negative maxLength means
// no upper bound.
func (b *Buffer) Cap(minLength, maxLength int, link PushBacker, fromCursor bool) bool {
	b.alive()

	start := 0
	if fromCursor {
		start = b.cursor
	}
	available := b.length - start

	if available < minLength {
		link.PushBack(b, start+minLength)
		return false
	}

	if maxLength >= 0 && available > maxLength {
		cut := start + maxLength
		tail := b.Slice(cut, b.length-cut, true)
		b.Truncate(cut)
		link.PushBack(tail, 0)
	}
	return true
}

// Prepend copies p in front of the window, growing it into the reserved header room.
// The cursor keeps pointing at the same byte.
func (b *Buffer) Prepend(p []byte) {
	b.alive()
	if !b.IsSoleOwner() {
		panic(fmt.Errorf("%w: prepend on %s", ErrShared, b))
	}
	if len(p) > b.offset {
		panic(b.boundsError("prepend", len(p)-b.offset))
	}
	b.offset -= len(p)
	b.length += len(p)
	b.cursor += len(p)
	copy(b.store.data[b.offset:], p)
}

// Join returns a new buffer holding the window of b followed by the window of other,
// in freshly allocated storage with header room. Metadata and byte order come from b.
// Neither operand is released.
func (b *Buffer) Join(other *Buffer) *Buffer {
	b.alive()
	other.alive()

	total := b.length + other.length
	var joined *Buffer
	switch {
	case b.store.pool != nil:
		joined = NewWithHeader(b.store.pool, total)
	case other.store.pool != nil:
		joined = NewWithHeader(other.store.pool, total)
	default:
		joined = Wrap(make([]byte, total))
	}

	n := copy(joined.Bytes(), b.Bytes())
	copy(joined.Bytes()[n:], other.Bytes())
	joined.Order = b.Order
	joined.CopyMetadata(b)
	return joined
}
