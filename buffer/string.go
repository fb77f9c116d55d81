package buffer

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// Character encodings commonly met on the wire.
var (
	UTF8    encoding.Encoding = unicode.UTF8
	UTF16LE encoding.Encoding = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	Latin1  encoding.Encoding = charmap.ISO8859_1
)

func decode(raw []byte, enc encoding.Encoding) string {
	if enc == nil {
		return string(raw)
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		panic(fmt.Errorf("%w: %w", ErrMalformed, err))
	}
	return string(out)
}

func encode(s string, enc encoding.Encoding) []byte {
	if enc == nil {
		return []byte(s)
	}
	out, err := enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		panic(fmt.Errorf("%w: %w", ErrMalformed, err))
	}
	return out
}

// ReadString reads n bytes and decodes them with enc. A nil enc keeps the bytes as is.
func (b *Buffer) ReadString(n int, enc encoding.Encoding) string {
	return decode(b.next("read string", n), enc)
}

// ReadCString reads a string of 8-bit units up to a NUL byte and consumes the NUL.
func (b *Buffer) ReadCString(enc encoding.Encoding) string {
	rest := b.RemainingBytes()
	for i, c := range rest {
		if c == 0 {
			s := decode(rest[:i], enc)
			b.cursor += i + 1
			return s
		}
	}
	panic(b.boundsError("read NUL-terminated string", 1))
}

// ReadWideCString reads a string of 16-bit units up to a 0x0000 unit and consumes the
// terminator. A nil enc means UTF-16LE.
func (b *Buffer) ReadWideCString(enc encoding.Encoding) string {
	if enc == nil {
		enc = UTF16LE
	}
	rest := b.RemainingBytes()
	for i := 0; i+1 < len(rest); i += 2 {
		if rest[i] == 0 && rest[i+1] == 0 {
			s := decode(rest[:i], enc)
			b.cursor += i + 2
			return s
		}
	}
	panic(b.boundsError("read NUL-terminated wide string", 2))
}

// WriteString encodes s with enc and writes it without a terminator.
func (b *Buffer) WriteString(s string, enc encoding.Encoding) {
	b.WriteBytes(encode(s, enc))
}

// WriteCString writes s followed by a NUL byte.
func (b *Buffer) WriteCString(s string, enc encoding.Encoding) {
	b.WriteBytes(encode(s, enc))
	b.WriteUint8(0)
}

// WriteWideCString writes s in 16-bit units followed by 0x0000. A nil enc means UTF-16LE.
func (b *Buffer) WriteWideCString(s string, enc encoding.Encoding) {
	if enc == nil {
		enc = UTF16LE
	}
	b.WriteBytes(encode(s, enc))
	b.WriteUint16LE(0)
}
