package buffer

import (
	"io"
	"strings"
	"testing"
)

func TestSliceAndByteAt(t *testing.T) {
	b := New(strings.NewReader("hello world"))

	for i := 0; i < len("hello"); i++ {
		if _, err := b.ReadByteAt(i); err != nil {
			t.Fatalf("ReadByteAt(%d): %v", i, err)
		}
	}

	if got := b.String(0, 5); got != "hello" {
		t.Errorf("String(0,5) = %q, want %q", got, "hello")
	}
}

func TestReadByteAtPastEOF(t *testing.T) {
	b := New(strings.NewReader("hi"))
	if _, err := b.ReadByteAt(0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := b.ReadByteAt(50); err != io.EOF {
		t.Fatalf("expected io.EOF, got %v", err)
	}
}

func TestBufferNeverShrinks(t *testing.T) {
	b := New(strings.NewReader("abcdef"))
	for i := 0; i < 6; i++ {
		if _, err := b.ReadByteAt(i); err != nil {
			t.Fatalf("ReadByteAt(%d): %v", i, err)
		}
	}
	before := b.String(0, 6)
	// A later read far past the end shouldn't affect previously stored bytes.
	_, _ = b.ReadByteAt(100)
	after := b.String(0, 6)
	if before != after {
		t.Errorf("buffer contents changed: %q -> %q", before, after)
	}
}

func TestEqual(t *testing.T) {
	b := New(strings.NewReader("foo foo bar"))
	for i := 0; i < len("foo foo bar"); i++ {
		if _, err := b.ReadByteAt(i); err != nil {
			t.Fatalf("ReadByteAt(%d): %v", i, err)
		}
	}
	if !b.Equal(0, 3, 4, 7) {
		t.Errorf("expected the two 'foo' spans to compare equal")
	}
	if b.Equal(0, 3, 8, 11) {
		t.Errorf("did not expect 'foo' to equal 'bar'")
	}
}
