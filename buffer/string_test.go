package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding"
)

func TestStringEncodings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		enc  encoding.Encoding
		s    string
		wire []byte
	}{
		{"raw", nil, "abc", []byte("abc")},
		{"utf8", UTF8, "héllo", []byte("héllo")},
		{"utf16le", UTF16LE, "hi", []byte{'h', 0, 'i', 0}},
		{"latin1", Latin1, "café", []byte{'c', 'a', 'f', 0xe9}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			b := Wrap(make([]byte, len(tt.wire)))
			b.WriteString(tt.s, tt.enc)
			require.Equal(t, tt.wire, b.Bytes())
			b.RewindCursor()
			require.Equal(t, tt.s, b.ReadString(len(tt.wire), tt.enc))
			require.Equal(t, len(tt.wire), b.Cursor())
		})
	}
}

func TestCString(t *testing.T) {
	t.Parallel()

	b := Wrap(make([]byte, 8))
	b.WriteCString("abc", Latin1)
	b.WriteCString("", nil)
	require.Equal(t, 5, b.Cursor())

	b.RewindCursor()
	require.Equal(t, "abc", b.ReadCString(Latin1))
	require.Equal(t, 4, b.Cursor())
	require.Equal(t, "", b.ReadCString(nil))
	require.Equal(t, 5, b.Cursor())

	unterminated := Wrap([]byte("abc"))
	var err error
	func() {
		defer Recover(&err)
		unterminated.ReadCString(nil)
	}()
	require.ErrorIs(t, err, ErrBounds)
	require.Zero(t, unterminated.Cursor())
}

func TestWideCString(t *testing.T) {
	t.Parallel()

	b := Wrap(make([]byte, 8))
	b.WriteWideCString("ok", nil)
	require.Equal(t, []byte{'o', 0, 'k', 0, 0, 0}, b.Bytes()[:6])
	require.Equal(t, 6, b.Cursor())

	b.RewindCursor()
	require.Equal(t, "ok", b.ReadWideCString(nil))
	require.Equal(t, 6, b.Cursor())
}
