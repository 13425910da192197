package codegen

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/aidanundheim/smlc/internal/ast"
	"github.com/aidanundheim/smlc/internal/buffer"
	"github.com/aidanundheim/smlc/internal/diag"
	"github.com/aidanundheim/smlc/internal/isa"
	"github.com/aidanundheim/smlc/internal/lexer"
	"github.com/aidanundheim/smlc/internal/parser"
	"github.com/aidanundheim/smlc/internal/sema"
)

func compileToAsm(t *testing.T, src string) (string, *bytes.Buffer) {
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
	a := sema.New(buf, sink)
	if err := a.Analyze(prog); err != nil {
		t.Fatalf("sema error: %v (stderr=%q)", err, stderr.String())
	}
	g := New(buf, sink, false)
	asm, err := g.Generate(prog)
	if err != nil {
		t.Fatalf("codegen error: %v (stderr=%q)", err, stderr.String())
	}
	return asm, &stderr
}

func TestBareReturnEmitsPrologueAndEpilogueOnce(t *testing.T) {
	asm, _ := compileToAsm(t, "func void main() { return }\n")

	if !strings.Contains(asm, "main:") {
		t.Fatalf("missing main label:\n%s", asm)
	}
	if strings.Contains(asm, ".pos 0x2000") {
		t.Errorf("no globals declared, should have no data section:\n%s", asm)
	}
	if got := strings.Count(asm, "j (r6)"); got != 1 {
		t.Errorf("expected exactly one epilogue jump, got %d:\n%s", got, asm)
	}
	if got := strings.Count(asm, "deca r5"); got != 6 {
		t.Errorf("expected 6 register saves, got %d:\n%s", got, asm)
	}
}

func TestGlobalAssignmentUsesLabelLoadThenStore(t *testing.T) {
	asm, _ := compileToAsm(t, "var g\nfunc void main() { g = 5 }\n")

	if !strings.Contains(asm, ".pos 0x2000") {
		t.Fatalf("missing data section:\n%s", asm)
	}
	if !strings.Contains(asm, "g:\t.long 0") {
		t.Errorf("missing global storage line:\n%s", asm)
	}
	if !strings.Contains(asm, "ld $5, r0") {
		t.Errorf("missing immediate load:\n%s", asm)
	}
	if !strings.Contains(asm, "ld $g, r1") {
		t.Errorf("missing address load:\n%s", asm)
	}
	if !strings.Contains(asm, "st r0, (r1)") {
		t.Errorf("missing indirect store:\n%s", asm)
	}
}

func TestConstReferenceLoadsFoldedValueWithoutImmediateMarker(t *testing.T) {
	asm, _ := compileToAsm(t, "const K = 2 + 3\nfunc void main() { var x = K }\n")

	if !strings.Contains(asm, "ld 5, r0") {
		t.Errorf("expected bare (non-$) constant load of the folded value 5:\n%s", asm)
	}
}

func TestFunctionCallEmitsGpcAndJump(t *testing.T) {
	asm, _ := compileToAsm(t, "func non-void add(a, b) { return a + b }\nfunc void main() { add(2, 3) }\n")

	if !strings.Contains(asm, "gpc $6, r6") {
		t.Errorf("missing gpc:\n%s", asm)
	}
	if !strings.Contains(asm, "j add") {
		t.Errorf("missing call jump:\n%s", asm)
	}
	if !strings.Contains(asm, "add:") {
		t.Errorf("missing callee label:\n%s", asm)
	}
}

func TestWhileLoopEmitsTwoHopControlFlow(t *testing.T) {
	asm, _ := compileToAsm(t, "func void main() { var i = 0\n while i < 10 { i = i + 1 } }\n")

	if !strings.Contains(asm, "beq r0,") {
		t.Errorf("missing conditional branch:\n%s", asm)
	}
	if got := strings.Count(asm, "SInter"); got == 0 {
		t.Errorf("expected two-hop indirection labels:\n%s", asm)
	}
}

func TestIfElseEmitsBothArms(t *testing.T) {
	asm, _ := compileToAsm(t, "func void main() { if 1 { var x = 1 } else { var y = 2 } }\n")

	if !strings.Contains(asm, "ELSE") {
		t.Errorf("expected ELSE-prefixed labels:\n%s", asm)
	}
}

func TestDivisionLowersToNonRestoringLoop(t *testing.T) {
	asm, _ := compileToAsm(t, "func void main() { var x = 10 / 3 }\n")

	if !strings.Contains(asm, "DIV") {
		t.Errorf("expected a DIV-labeled loop:\n%s", asm)
	}
}

// miniVM executes the straight-line/branchy subset of the eight-register
// ISA that emitDivMod emits, since there's no assembler or CPU in scope
// to run its output against. It understands exactly the instructions
// that routine uses: immediate and register-indirect LD/ST (for the
// deca/inca push-pop pairs), MOV, ADD, INC, DEC, NOT, SHL, SHR, DECA,
// INCA, and the BGT/BE/BR branches.
type miniVM struct {
	regs [8]int32
	mem  map[int32]int32
}

func newMiniVM() *miniVM {
	return &miniVM{mem: make(map[int32]int32)}
}

func miniVMRegIndex(t *testing.T, name string) int {
	t.Helper()
	i, err := strconv.Atoi(strings.TrimPrefix(name, "r"))
	if err != nil {
		t.Fatalf("miniVM: bad register operand %q", name)
	}
	return i
}

func (vm *miniVM) read(t *testing.T, operand string) int32 {
	t.Helper()
	switch {
	case strings.HasPrefix(operand, "$"):
		n, err := strconv.Atoi(operand[1:])
		if err != nil {
			t.Fatalf("miniVM: bad immediate operand %q", operand)
		}
		return int32(n)
	case strings.HasPrefix(operand, "("):
		addr := vm.regs[miniVMRegIndex(t, strings.Trim(operand, "()"))]
		return vm.mem[addr]
	default:
		return vm.regs[miniVMRegIndex(t, operand)]
	}
}

func (vm *miniVM) write(t *testing.T, operand string, v int32) {
	t.Helper()
	vm.regs[miniVMRegIndex(t, operand)] = v
}

func (vm *miniVM) run(t *testing.T, asm string) {
	t.Helper()
	var lines []string
	labels := make(map[string]int)
	for _, raw := range strings.Split(asm, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasSuffix(line, ":") {
			labels[strings.TrimSuffix(line, ":")] = len(lines)
			continue
		}
		lines = append(lines, line)
	}

	pc := 0
	for pc < len(lines) {
		mnemonic, rest, _ := strings.Cut(lines[pc], " ")
		var ops []string
		if rest != "" {
			ops = strings.Split(rest, ", ")
		}
		next := pc + 1

		switch mnemonic {
		case "ld", "mov":
			vm.write(t, ops[1], vm.read(t, ops[0]))
		case "st":
			addr := vm.regs[miniVMRegIndex(t, strings.Trim(ops[1], "()"))]
			vm.mem[addr] = vm.read(t, ops[0])
		case "add":
			vm.write(t, ops[1], vm.read(t, ops[1])+vm.read(t, ops[0]))
		case "inc":
			vm.write(t, ops[0], vm.read(t, ops[0])+1)
		case "dec":
			vm.write(t, ops[0], vm.read(t, ops[0])-1)
		case "not":
			vm.write(t, ops[0], ^vm.read(t, ops[0]))
		case "shl":
			vm.write(t, ops[1], vm.read(t, ops[1])<<uint(vm.read(t, ops[0])))
		case "shr":
			vm.write(t, ops[1], int32(uint32(vm.read(t, ops[1]))>>uint(vm.read(t, ops[0]))))
		case "deca":
			vm.write(t, ops[0], vm.read(t, ops[0])-4)
		case "inca":
			vm.write(t, ops[0], vm.read(t, ops[0])+4)
		case "bgt":
			if vm.read(t, ops[0]) > 0 {
				next = labels[ops[1]]
			}
		case "be":
			if vm.read(t, ops[0]) == 0 {
				next = labels[ops[1]]
			}
		case "br":
			next = labels[ops[0]]
		default:
			t.Fatalf("miniVM: unsupported instruction %q", lines[pc])
		}
		pc = next
	}
}

// runDivMod lowers a single division or modulo through emitDivMod with
// the dividend/divisor pre-loaded into r0/r1, interprets the result on
// miniVM, and returns r0's settled value.
func runDivMod(t *testing.T, dividend, divisor int32, isMod bool) int32 {
	t.Helper()
	g := New(buffer.New(strings.NewReader("")), diag.New(&bytes.Buffer{}), false)
	g.emitDivMod(isa.R0, isa.R1, &funcCtx{}, isMod)

	vm := newMiniVM()
	vm.regs[isa.R0] = dividend
	vm.regs[isa.R1] = divisor
	vm.run(t, g.prog.String())
	return vm.regs[isa.R0]
}

func TestDivModMatchesTruncatingArithmetic(t *testing.T) {
	cases := []struct{ a, b int32 }{
		{7, 2}, {7, -2}, {-7, 2}, {-7, -2},
		{1, 3}, {0, 5}, {5, 1},
		{100, 7}, {-100, 7}, {100, -7}, {-100, -7},
		{13, 4}, {-13, 4}, {13, -4}, {-13, -4},
	}
	for _, c := range cases {
		if gotQ := runDivMod(t, c.a, c.b, false); gotQ != c.a/c.b {
			t.Errorf("%d / %d = %d, want %d", c.a, c.b, gotQ, c.a/c.b)
		}
		if gotR := runDivMod(t, c.a, c.b, true); gotR != c.a%c.b {
			t.Errorf("%d %% %d = %d, want %d", c.a, c.b, gotR, c.a%c.b)
		}
	}
}

func TestShortCircuitAndSkipsRightOperandOnFalseLeft(t *testing.T) {
	asm, _ := compileToAsm(t, "func void main() { var x = 0 and 1 }\n")

	if !strings.Contains(asm, "AND") {
		t.Errorf("expected AND-labeled short circuit:\n%s", asm)
	}
}

func TestUnknownNodeKindReportsSoftDiagnostic(t *testing.T) {
	buf := buffer.New(strings.NewReader(""))
	var stderr bytes.Buffer
	sink := diag.New(&stderr)
	g := New(buf, sink, false)

	weird := ast.New(ast.Kind(999), 0, 0)
	_ = g.codegenExpr(weird, 0, &funcCtx{})

	if !strings.Contains(stderr.String(), "CODEGEN: idk how to fold in") {
		t.Errorf("expected soft diagnostic, got %q", stderr.String())
	}
}

func TestDebugModeAnnotatesStatements(t *testing.T) {
	var stderr bytes.Buffer
	src := "func void main() { return }\n"
	buf := buffer.New(strings.NewReader(src))
	sink := diag.New(&stderr)
	l := lexer.New(buf, sink)
	p := parser.New(l, sink)
	prog, err := p.ParseProgram()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	a := sema.New(buf, sink)
	if err := a.Analyze(prog); err != nil {
		t.Fatalf("sema error: %v", err)
	}
	g := New(buf, sink, true)
	asm, err := g.Generate(prog)
	if err != nil {
		t.Fatalf("codegen error: %v", err)
	}
	if !strings.Contains(asm, "; RETURN_DIRECTIVE") {
		t.Errorf("expected a debug annotation comment:\n%s", asm)
	}
}
