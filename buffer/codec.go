package buffer

import (
	"encoding/binary"
	"fmt"
)

// next returns the n bytes at the cursor and advances past them.
func (b *Buffer) next(op string, n int) []byte {
	b.alive()
	if n < 0 || b.cursor+n > b.length {
		panic(b.boundsError(op, b.cursor+n-b.length))
	}
	p := b.offset + b.cursor
	b.cursor += n
	return b.store.data[p : p+n]
}

// room returns n writable bytes at the cursor and advances past them.
func (b *Buffer) room(op string, n int) []byte {
	b.alive()
	if !b.IsSoleOwner() {
		panic(fmt.Errorf("%w: %s on %s", ErrShared, op, b))
	}
	return b.next(op, n)
}

// Skip advances the cursor by n bytes.
func (b *Buffer) Skip(n int) {
	b.next("skip", n)
}

// PeekUint8 returns the byte at the cursor without consuming it.
func (b *Buffer) PeekUint8() uint8 {
	v := b.next("peek uint8", 1)[0]
	b.cursor--
	return v
}

func (b *Buffer) ReadUint8() uint8 { return b.next("read uint8", 1)[0] }
func (b *Buffer) ReadInt8() int8   { return int8(b.next("read int8", 1)[0]) }

func (b *Buffer) ReadUint16BE() uint16 { return binary.BigEndian.Uint16(b.next("read uint16", 2)) }
func (b *Buffer) ReadUint16LE() uint16 { return binary.LittleEndian.Uint16(b.next("read uint16", 2)) }
func (b *Buffer) ReadInt16BE() int16   { return int16(b.ReadUint16BE()) }
func (b *Buffer) ReadInt16LE() int16   { return int16(b.ReadUint16LE()) }

func (b *Buffer) ReadUint32BE() uint32 { return binary.BigEndian.Uint32(b.next("read uint32", 4)) }
func (b *Buffer) ReadUint32LE() uint32 { return binary.LittleEndian.Uint32(b.next("read uint32", 4)) }
func (b *Buffer) ReadInt32BE() int32   { return int32(b.ReadUint32BE()) }
func (b *Buffer) ReadInt32LE() int32   { return int32(b.ReadUint32LE()) }

func (b *Buffer) ReadUint64BE() uint64 { return binary.BigEndian.Uint64(b.next("read uint64", 8)) }
func (b *Buffer) ReadUint64LE() uint64 { return binary.LittleEndian.Uint64(b.next("read uint64", 8)) }
func (b *Buffer) ReadInt64BE() int64   { return int64(b.ReadUint64BE()) }
func (b *Buffer) ReadInt64LE() int64   { return int64(b.ReadUint64LE()) }

// ReadUint reads an n-byte (1..8) unsigned integer in the buffer's byte order.
func (b *Buffer) ReadUint(n int) uint64 {
	if n < 1 || n > 8 {
		panic(fmt.Errorf("%w: integer width %d", ErrMalformed, n))
	}
	raw := b.next("read uint", n)
	var v uint64
	if b.order() == binary.LittleEndian {
		for i := n - 1; i >= 0; i-- {
			v = v<<8 | uint64(raw[i])
		}
		return v
	}
	for i := 0; i < n; i++ {
		v = v<<8 | uint64(raw[i])
	}
	return v
}

func (b *Buffer) WriteUint8(v uint8) { b.room("write uint8", 1)[0] = v }
func (b *Buffer) WriteInt8(v int8)   { b.room("write int8", 1)[0] = byte(v) }

func (b *Buffer) WriteUint16BE(v uint16) { binary.BigEndian.PutUint16(b.room("write uint16", 2), v) }
func (b *Buffer) WriteUint16LE(v uint16) { binary.LittleEndian.PutUint16(b.room("write uint16", 2), v) }
func (b *Buffer) WriteInt16BE(v int16)   { b.WriteUint16BE(uint16(v)) }
func (b *Buffer) WriteInt16LE(v int16)   { b.WriteUint16LE(uint16(v)) }

func (b *Buffer) WriteUint32BE(v uint32) { binary.BigEndian.PutUint32(b.room("write uint32", 4), v) }
func (b *Buffer) WriteUint32LE(v uint32) { binary.LittleEndian.PutUint32(b.room("write uint32", 4), v) }
func (b *Buffer) WriteInt32BE(v int32)   { b.WriteUint32BE(uint32(v)) }
func (b *Buffer) WriteInt32LE(v int32)   { b.WriteUint32LE(uint32(v)) }

func (b *Buffer) WriteUint64BE(v uint64) { binary.BigEndian.PutUint64(b.room("write uint64", 8), v) }
func (b *Buffer) WriteUint64LE(v uint64) { binary.LittleEndian.PutUint64(b.room("write uint64", 8), v) }
func (b *Buffer) WriteInt64BE(v int64)   { b.WriteUint64BE(uint64(v)) }
func (b *Buffer) WriteInt64LE(v int64)   { b.WriteUint64LE(uint64(v)) }

// WriteUint writes the low n bytes (1..8) of v in the buffer's byte order.
func (b *Buffer) WriteUint(v uint64, n int) {
	if n < 1 || n > 8 {
		panic(fmt.Errorf("%w: integer width %d", ErrMalformed, n))
	}
	raw := b.room("write uint", n)
	if b.order() == binary.LittleEndian {
		for i := 0; i < n; i++ {
			raw[i] = byte(v >> (8 * i))
		}
		return
	}
	for i := n - 1; i >= 0; i-- {
		raw[i] = byte(v)
		v >>= 8
	}
}

// ReadBytes returns the next n bytes as a zero-copy view and advances past them.
// The view must be released by the caller.
func (b *Buffer) ReadBytes(n int) *Buffer {
	start := b.cursor
	b.next("read bytes", n)
	return b.Slice(start, n, false)
}

// CopyBytes returns a copy of the next n bytes and advances past them.
func (b *Buffer) CopyBytes(n int) []byte {
	out := make([]byte, n)
	copy(out, b.next("copy bytes", n))
	return out
}

// WriteBytes copies p at the cursor.
func (b *Buffer) WriteBytes(p []byte) {
	copy(b.room("write bytes", len(p)), p)
}

// WriteBuffer copies the window of src at the cursor.
func (b *Buffer) WriteBuffer(src *Buffer) {
	b.WriteBytes(src.Bytes())
}
