package buffer

import "fmt"

// Unlimited is returned by ReadBERLength for the indefinite form, whose content runs
// until a 0x00 0x00 terminator.
const Unlimited = -1

const (
	maxPrefixedUint16 = 0x7fff
	maxPrefixedInt16  = 0x3fff
	maxPrefixedUint32 = 0x3fffffff
	maxBERLengthBytes = 4
)

// ReadVarUint reads a little-endian base-128 unsigned integer: seven bits per byte,
// the high bit set on every byte but the last.
func (b *Buffer) ReadVarUint() uint64 {
	var v uint64
	for shift := 0; ; shift += 7 {
		if shift >= 64 {
			panic(fmt.Errorf("%w: varint longer than 64 bits at %s", ErrMalformed, b))
		}
		c := b.ReadUint8()
		v |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return v
		}
	}
}

// ReadVarInt reads a signed base-128 integer; bit 6 of the last byte is the sign.
func (b *Buffer) ReadVarInt() int64 {
	var v int64
	for shift := 0; ; {
		if shift >= 64 {
			panic(fmt.Errorf("%w: varint longer than 64 bits at %s", ErrMalformed, b))
		}
		c := b.ReadUint8()
		v |= int64(c&0x7f) << shift
		shift += 7
		if c&0x80 == 0 {
			if shift < 64 && c&0x40 != 0 {
				v |= -1 << shift
			}
			return v
		}
	}
}

func (b *Buffer) WriteVarUint(v uint64) {
	for v >= 0x80 {
		b.WriteUint8(byte(v) | 0x80)
		v >>= 7
	}
	b.WriteUint8(byte(v))
}

func (b *Buffer) WriteVarInt(v int64) {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			b.WriteUint8(c)
			return
		}
		b.WriteUint8(c | 0x80)
	}
}

// VarUintSize returns the encoded size of v in bytes.
func VarUintSize(v uint64) int {
	n := 1
	for v >= 0x80 {
		v >>= 7
		n++
	}
	return n
}

// ReadPrefixedUint16 reads a 15-bit value stored in one or two bytes; the top bit of
// the first byte says whether a second byte follows.
func (b *Buffer) ReadPrefixedUint16() uint16 {
	c := b.ReadUint8()
	v := uint16(c & 0x7f)
	if c&0x80 != 0 {
		v = v<<8 | uint16(b.ReadUint8())
	}
	return v
}

func (b *Buffer) WritePrefixedUint16(v uint16) {
	switch {
	case v <= 0x7f:
		b.WriteUint8(byte(v))
	case v <= maxPrefixedUint16:
		b.WriteUint8(byte(v>>8) | 0x80)
		b.WriteUint8(byte(v))
	default:
		panic(fmt.Errorf("%w: %d does not fit a prefixed uint16", ErrMalformed, v))
	}
}

// ReadPrefixedInt16 reads a sign-magnitude 14-bit value stored in one or two bytes:
// the top bit of the first byte says whether a second byte follows, the next bit is
// the sign.
func (b *Buffer) ReadPrefixedInt16() int16 {
	c := b.ReadUint8()
	v := int16(c & 0x3f)
	if c&0x80 != 0 {
		v = v<<8 | int16(b.ReadUint8())
	}
	if c&0x40 != 0 {
		v = -v
	}
	return v
}

func (b *Buffer) WritePrefixedInt16(v int16) {
	if v < -maxPrefixedInt16 {
		panic(fmt.Errorf("%w: %d does not fit a prefixed int16", ErrMalformed, v))
	}
	var sign byte
	if v < 0 {
		sign = 0x40
		v = -v
	}
	switch {
	case v <= 0x3f:
		b.WriteUint8(byte(v) | sign)
	case v <= maxPrefixedInt16:
		b.WriteUint8(byte(v>>8) | sign | 0x80)
		b.WriteUint8(byte(v))
	default:
		panic(fmt.Errorf("%w: %d does not fit a prefixed int16", ErrMalformed, v))
	}
}

// ReadPrefixedUint32 reads a 30-bit value stored in one to four bytes; the top two
// bits of the first byte hold the count of bytes that follow, big-endian.
func (b *Buffer) ReadPrefixedUint32() uint32 {
	c := b.ReadUint8()
	v := uint32(c & 0x3f)
	for i := c >> 6; i > 0; i-- {
		v = v<<8 | uint32(b.ReadUint8())
	}
	return v
}

func (b *Buffer) WritePrefixedUint32(v uint32) {
	var extra int
	switch {
	case v <= 0x3f:
		extra = 0
	case v <= 0x3fff:
		extra = 1
	case v <= 0x3fffff:
		extra = 2
	case v <= maxPrefixedUint32:
		extra = 3
	default:
		panic(fmt.Errorf("%w: %d does not fit a prefixed uint32", ErrMalformed, v))
	}
	b.WriteUint8(byte(extra)<<6 | byte(v>>(8*extra)))
	for i := extra - 1; i >= 0; i-- {
		b.WriteUint8(byte(v >> (8 * i)))
	}
}

// ReadBERLength reads a BER length. Short form is one byte up to 0x7f. Long form
// sets the top bit and keeps the count of big-endian length bytes in the low seven
// bits; a count of zero is the indefinite form, reported as Unlimited.
func (b *Buffer) ReadBERLength() int {
	c := b.ReadUint8()
	if c&0x80 == 0 {
		return int(c)
	}
	n := int(c & 0x7f)
	if n == 0 {
		return Unlimited
	}
	if n > maxBERLengthBytes {
		panic(fmt.Errorf("%w: BER length of %d bytes at %s", ErrMalformed, n, b))
	}
	return int(b.ReadUintN(n))
}

// ReadUintN reads an n-byte big-endian unsigned integer regardless of Order.
func (b *Buffer) ReadUintN(n int) uint64 {
	var v uint64
	for _, c := range b.next("read uint", n) {
		v = v<<8 | uint64(c)
	}
	return v
}

// WriteBERLength writes length in the shortest BER form; Unlimited writes the
// indefinite form.
func (b *Buffer) WriteBERLength(length int) {
	switch {
	case length == Unlimited:
		b.WriteUint8(0x80)
	case length < 0:
		panic(fmt.Errorf("%w: negative BER length %d", ErrMalformed, length))
	case length <= 0x7f:
		b.WriteUint8(byte(length))
	default:
		n := BERLengthSize(length) - 1
		b.WriteUint8(0x80 | byte(n))
		for i := n - 1; i >= 0; i-- {
			b.WriteUint8(byte(length >> (8 * i)))
		}
	}
}

// BERLengthSize returns how many bytes WriteBERLength uses for length.
func BERLengthSize(length int) int {
	if length <= 0x7f {
		return 1
	}
	n := 1
	for v := length; v > 0; v >>= 8 {
		n++
	}
	return n
}
