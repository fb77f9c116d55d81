package buffer

import (
	"errors"
	"fmt"
)

var (
	// ErrBounds marks reads, writes and slices past the window.
	ErrBounds = errors.New("buffer out of bounds")
	// ErrReleased marks use of a buffer after its last reference was dropped.
	ErrReleased = errors.New("buffer released")
	// ErrShared marks an attempt to mutate storage the buffer does not own alone.
	ErrShared = errors.New("buffer is not sole owner")
	// ErrMalformed marks encoded values that cannot be decoded.
	ErrMalformed = errors.New("malformed encoding")
)

// BoundsError describes an access that does not fit the buffer window.
type BoundsError struct {
	Op     string
	Need   int
	Offset int
	Length int
	Cursor int
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("buffer: %s: %d bytes short (offset=%d length=%d cursor=%d)",
		e.Op, e.Need, e.Offset, e.Length, e.Cursor)
}

func (e *BoundsError) Unwrap() error {
	return ErrBounds
}

func (b *Buffer) boundsError(op string, need int) *BoundsError {
	return &BoundsError{Op: op, Need: need, Offset: b.offset, Length: b.length, Cursor: b.cursor}
}

// Recover converts a buffer fault raised in the calling function into *err. Panics
// that are not buffer faults keep propagating. Use it deferred:
//
//	defer buffer.Recover(&err)
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if e, ok := r.(error); ok && isFault(e) {
		*err = e
		return
	}
	panic(r)
}

func isFault(err error) bool {
	return errors.Is(err, ErrBounds) ||
		errors.Is(err, ErrReleased) ||
		errors.Is(err, ErrShared) ||
		errors.Is(err, ErrMalformed)
}
