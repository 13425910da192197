// Package buffer implements the input buffer described in spec.md §3: a
// growable byte array that records every character ever read from the
// program's input, so that tokens and AST nodes can carry [start,end)
// spans into it instead of owning their own copies of the source text.
package buffer

import (
	"bufio"
	"io"

	"github.com/pkg/errors"
)

// Buffer accumulates bytes read from an underlying reader. Once a byte has
// been stored at index i, it remains stable for the life of the Buffer —
// callers may hold onto [start,end) spans indefinitely.
type Buffer struct {
	r    *bufio.Reader
	data []byte
	eof  bool
}

// New wraps r in a Buffer. Nothing is read until the first call to
// ReadByteAt that needs a byte not yet buffered.
func New(r io.Reader) *Buffer {
	return &Buffer{r: bufio.NewReader(r)}
}

// Len returns the number of bytes currently stored.
func (b *Buffer) Len() int {
	return len(b.data)
}

// fillTo ensures at least n bytes are buffered, reading from the
// underlying reader as needed. It is not an error to ask for more bytes
// than the input contains; b.eof records that EOF was seen.
func (b *Buffer) fillTo(n int) error {
	for len(b.data) < n && !b.eof {
		c, err := b.r.ReadByte()
		if err == io.EOF {
			b.eof = true
			break
		}
		if err != nil {
			return errors.Wrap(err, "buffer: reading input")
		}
		b.data = append(b.data, c)
	}
	return nil
}

// ReadByteAt returns the byte at index i, reading input up to that index
// first if it is not yet buffered, or reports io.EOF if the input ends
// before i. It is used by the lexer's character cursor.
func (b *Buffer) ReadByteAt(i int) (byte, error) {
	if err := b.fillTo(i + 1); err != nil {
		return 0, err
	}
	if i >= len(b.data) {
		return 0, io.EOF
	}
	return b.data[i], nil
}

// Slice returns the bytes in the half-open range [start,end). Both bounds
// must already have been read (i.e. lie within an already-buffered span);
// callers never slice ahead of the lexer's cursor.
func (b *Buffer) Slice(start, end int) []byte {
	if start < 0 {
		start = 0
	}
	if end > len(b.data) {
		end = len(b.data)
	}
	if start >= end {
		return nil
	}
	return b.data[start:end]
}

// String is a convenience wrapper around Slice for diagnostic messages
// and identifier extraction.
func (b *Buffer) String(start, end int) string {
	return string(b.Slice(start, end))
}

// Equal reports whether the two spans denote byte-identical substrings,
// used by name resolution to compare an identifier reference against a
// scope-stack entry without allocating (spec.md §3, "Scope stack").
func (b *Buffer) Equal(aStart, aEnd, bStart, bEnd int) bool {
	if aEnd-aStart != bEnd-bStart {
		return false
	}
	as, bs := b.Slice(aStart, aEnd), b.Slice(bStart, bEnd)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
