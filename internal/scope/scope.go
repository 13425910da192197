// Package scope implements the name-resolution stack the contextual
// analyzer pushes and pops as it walks into and out of blocks and
// function bodies (spec.md §4.3). It is adapted from the teacher's
// stack package: same push/pop-to-depth shape, but keyed on buffer spans
// rather than strings, and without the mutex the original carried —
// analysis is a single synchronous walk over one AST, so nothing here is
// ever touched from two goroutines at once.
package scope

import (
	"github.com/aidanundheim/smlc/internal/ast"
	"github.com/aidanundheim/smlc/internal/buffer"
)

// entry binds one identifier's source span to the declaration node that
// introduced it.
type entry struct {
	nameStart, nameEnd int
	def                *ast.Node
}

// Stack is a scope stack: each Push adds one binding at the current
// (innermost) depth, and PopTo discards every binding pushed since a
// previously recorded depth, restoring all shadowed names.
type Stack struct {
	buf     *buffer.Buffer
	entries []entry
}

// New creates an empty Stack resolving names against buf.
func New(buf *buffer.Buffer) *Stack {
	return &Stack{buf: buf}
}

// Push binds [nameStart, nameEnd) to def, shadowing any existing binding
// of the same name until the binding is popped.
func (s *Stack) Push(nameStart, nameEnd int, def *ast.Node) {
	s.entries = append(s.entries, entry{nameStart, nameEnd, def})
}

// Depth returns the number of bindings currently on the stack, suitable
// for passing to a later PopTo to unwind back to this point.
func (s *Stack) Depth() int {
	return len(s.entries)
}

// PopTo discards every binding pushed since depth was recorded by Depth.
func (s *Stack) PopTo(depth int) {
	s.entries = s.entries[:depth]
}

// Lookup searches bindings innermost-first (most-recently-pushed first)
// for one whose name spans the same source text as [nameStart, nameEnd),
// returning its declaration node. ok is false if no binding matches.
func (s *Stack) Lookup(nameStart, nameEnd int) (def *ast.Node, ok bool) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if s.buf.Equal(e.nameStart, e.nameEnd, nameStart, nameEnd) {
			return e.def, true
		}
	}
	return nil, false
}
