package sema

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aidanundheim/smlc/internal/ast"
	"github.com/aidanundheim/smlc/internal/buffer"
	"github.com/aidanundheim/smlc/internal/diag"
	"github.com/aidanundheim/smlc/internal/lexer"
	"github.com/aidanundheim/smlc/internal/parser"
)

func analyze(t *testing.T, src string) (*ast.Node, *buffer.Buffer, *bytes.Buffer, error) {
	t.Helper()
	var stderr bytes.Buffer
	buf := buffer.New(strings.NewReader(src))
	sink := diag.New(&stderr)
	l := lexer.New(buf, sink)
	p := parser.New(l, sink)
	prog, err := p.ParseProgram()
	if err != nil {
		t.Fatalf("parse error: %v (stderr=%q)", err, stderr.String())
	}
	a := New(buf, sink)
	err = a.Analyze(prog)
	return prog, buf, &stderr, err
}

func TestForwardReferenceToFunction(t *testing.T) {
	src := "func void main() { helper() }\nfunc void helper() { return }\n"
	_, _, stderr, err := analyze(t, src)
	if err != nil {
		t.Fatalf("unexpected fatal error: %v (stderr=%q)", err, stderr.String())
	}
}

func TestUnresolvedIdentifierIsFatal(t *testing.T) {
	src := "func void main() { x = 1 }\n"
	_, _, stderr, err := analyze(t, src)
	if err == nil {
		t.Fatal("expected a fatal error for an unresolved identifier")
	}
	if !strings.Contains(stderr.String(), "Could not find definition of `x`") {
		t.Errorf("diagnostic = %q", stderr.String())
	}
}

func TestInnermostShadowsOuter(t *testing.T) {
	src := "func void main() { var x = 1\n { var x = 2\n x = 3 } x = 4 }\n"
	prog, _, _, err := analyze(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body := prog.Child(0).Child(0).Child(2).Child(0) // COMMAND
	var outerVar, innerVar *ast.Node
	for _, s := range body.Children {
		inner := s.Child(0)
		if inner.Kind == ast.VAR_DECL {
			outerVar = inner
		}
		if inner.Kind == ast.COMMAND {
			for _, s2 := range inner.Children {
				if s2.Child(0).Kind == ast.VAR_DECL {
					innerVar = s2.Child(0)
				}
			}
		}
	}
	if outerVar == nil || innerVar == nil {
		t.Fatal("failed to locate both var decls in the fixture")
	}
	if outerVar.FrameIndex == innerVar.FrameIndex && outerVar == innerVar {
		t.Fatalf("outer and inner var decls should be distinct nodes")
	}

	// the final `x = 4` (outside the block) must resolve to the outer var
	last := body.Children[len(body.Children)-1]
	assign := last.Child(0)
	if assign.Kind != ast.DIRECT_ASSIGN {
		t.Fatalf("expected trailing DIRECT_ASSIGN, got %v", assign.Kind)
	}
	if assign.Child(0).Definition != outerVar {
		t.Errorf("final assignment should resolve to the outer `x`, got %v", assign.Child(0).Definition)
	}
}

func TestNonConstantInitializerIsFatal(t *testing.T) {
	src := "var x = 1\nconst K = x\n"
	_, _, stderr, err := analyze(t, src)
	if err == nil {
		t.Fatal("expected a fatal error")
	}
	if !strings.Contains(stderr.String(), "Constant values must be statically known") {
		t.Errorf("diagnostic = %q", stderr.String())
	}
}

func TestConstantFolding(t *testing.T) {
	src := "const K = 2 + 3 * 4\n"
	prog, _, _, err := analyze(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	k := prog.Child(0).Child(0)
	if k.Val != 14 {
		t.Errorf("K = %d, want 14", k.Val)
	}
}

func TestFrameVarsCountsLocalsNotNested(t *testing.T) {
	src := "func void main() { var a = 1\n var b = 2\n { var c = 3 } }\n"
	prog, _, _, err := analyze(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fn := prog.Child(0).Child(0)
	if fn.FrameVars != 3 {
		t.Errorf("FrameVars = %d, want 3", fn.FrameVars)
	}
}

func TestClobbersReturnSetByCall(t *testing.T) {
	src := "func void callee() { return }\nfunc void main() { callee() }\n"
	prog, _, _, err := analyze(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	main := prog.Child(1).Child(0)
	if !main.ClobbersReturn {
		t.Errorf("main should have ClobbersReturn=true")
	}
	callee := prog.Child(0).Child(0)
	if callee.ClobbersReturn {
		t.Errorf("callee makes no calls, ClobbersReturn should be false")
	}
}

func TestArgCountMismatchIsSoft(t *testing.T) {
	src := "func non-void add(a, b) { return a + b }\nfunc void main() { add(1) }\n"
	_, _, stderr, err := analyze(t, src)
	if err != nil {
		t.Fatalf("arg count mismatch should not be fatal: %v", err)
	}
	if !strings.Contains(stderr.String(), "Too few args") {
		t.Errorf("diagnostic = %q", stderr.String())
	}
}

func TestParamsGetFrameIndexAndIsParam(t *testing.T) {
	src := "func non-void add(a, b) { return a + b }\n"
	prog, _, _, err := analyze(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fn := prog.Child(0).Child(0)
	params := fn.Child(1).Children
	for i, p := range params {
		if !p.IsParam || p.FrameIndex != i {
			t.Errorf("param %d: IsParam=%v FrameIndex=%d, want true/%d", i, p.IsParam, p.FrameIndex, i)
		}
	}
}
