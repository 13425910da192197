// Package compiler wires the pipeline stages — lexer, parser, contextual
// analyzer, code generator — into the three-function public surface the
// teacher's own compiler package exposes: New, SetDebug, Compile.
package compiler

import (
	"io"
	"strings"

	"github.com/aidanundheim/smlc/internal/buffer"
	"github.com/aidanundheim/smlc/internal/codegen"
	"github.com/aidanundheim/smlc/internal/diag"
	"github.com/aidanundheim/smlc/internal/lexer"
	"github.com/aidanundheim/smlc/internal/parser"
	"github.com/aidanundheim/smlc/internal/sema"
)

// Compiler holds one compile's input and options. Diagnostics are
// reported through the sink it's given; errors returned from Compile
// are always a *diag.FatalError already logged by whichever stage
// produced it.
type Compiler struct {
	buf   *buffer.Buffer
	diag  *diag.Sink
	debug bool
}

// New creates a Compiler reading the whole program from r, reporting
// diagnostics to sink.
func New(r io.Reader, sink *diag.Sink) *Compiler {
	return &Compiler{buf: buffer.New(r), diag: sink}
}

// NewFromString is a convenience constructor over an in-memory program,
// used by tests and any caller that already has the source as a string.
func NewFromString(src string, sink *diag.Sink) *Compiler {
	return New(strings.NewReader(src), sink)
}

// SetDebug toggles the code generator's per-statement annotation
// comments (spec.md's -debug mode, carried into SPEC_FULL.md §2.3/§4).
func (c *Compiler) SetDebug(debug bool) {
	c.debug = debug
}

// Compile runs the full pipeline and returns the generated assembly
// text. A fatal diagnostic from any stage aborts the remaining stages
// and is returned as-is; soft diagnostics are logged by the stage that
// raised them and do not stop compilation.
func (c *Compiler) Compile() (string, error) {
	l := lexer.New(c.buf, c.diag)
	p := parser.New(l, c.diag)
	prog, err := p.ParseProgram()
	if err != nil {
		return "", err
	}

	a := sema.New(c.buf, c.diag)
	if err := a.Analyze(prog); err != nil {
		return "", err
	}

	g := codegen.New(c.buf, c.diag, c.debug)
	return g.Generate(prog)
}
