// Package codegen walks a fully decorated AST and emits assembly text
// for the target eight-register machine (spec.md §4.4). It is the
// direct descendant of the teacher's generator.go: that file built up
// one fixed RPN-to-assembly template per builtin; this one walks a real
// tree and open-codes the arithmetic primitives the target ISA has no
// instruction for (multiply, divide, modulo, dynamic shift), using the
// same "emit lines into a growing program" approach and the same
// unique-label-per-call-site discipline the teacher used for its own
// generated loops.
package codegen

import (
	"fmt"

	"github.com/aidanundheim/smlc/internal/ast"
	"github.com/aidanundheim/smlc/internal/buffer"
	"github.com/aidanundheim/smlc/internal/diag"
	"github.com/aidanundheim/smlc/internal/isa"
	"github.com/aidanundheim/smlc/internal/token"
)

// Codegen holds the state shared across the whole program's code
// generation: the buffer backing name lookups, the diagnostic sink, the
// assembled program, the -debug annotation switch, and the monotonic
// counter behind every synthesized label.
type Codegen struct {
	buf    *buffer.Buffer
	diag   *diag.Sink
	prog   *isa.Program
	debug  bool
	labelN int
}

// New creates a Codegen over buf, reporting soft diagnostics through
// sink. When debug is set, every statement gets a one-line comment
// naming its AST kind and source span ahead of the code it produced.
func New(buf *buffer.Buffer, sink *diag.Sink, debug bool) *Codegen {
	return &Codegen{buf: buf, diag: sink, prog: isa.NewProgram(), debug: debug}
}

// funcCtx is the per-function state threaded through statement and
// expression codegen: the static offset from the post-prologue stack
// pointer to the parameter area, and the dynamic adjustment on top of
// it from temporaries pushed mid-expression (spec.md §4.4).
type funcCtx struct {
	frameArgOffset    int
	entireFrameOffset int
}

func (g *Codegen) nextLabel() int {
	g.labelN++
	return g.labelN
}

func (g *Codegen) name(n *ast.Node) string {
	return g.buf.String(n.Start, n.End)
}

func (g *Codegen) pushReg(r isa.Reg) {
	g.prog.Emit(isa.DECA, isa.R5.String())
	g.prog.Emit(isa.ST, r.String(), isa.Indirect(isa.R5))
}

func (g *Codegen) popReg(r isa.Reg) {
	g.prog.Emit(isa.LD, isa.Indirect(isa.R5), r.String())
	g.prog.Emit(isa.INCA, isa.R5.String())
}

// scratchAvoiding returns n registers from the general-purpose pool
// that are none of avoid. Used registers are always saved to the stack
// before use and restored after (see the multiply/division/xor/shift
// lowerings below), so it is always safe to pick any register here
// regardless of what it might be holding for an enclosing expression —
// the invariant that registers below destReg are preserved holds
// because we give back exactly what we found.
func scratchAvoiding(avoid []isa.Reg, n int) []isa.Reg {
	candidates := []isa.Reg{isa.R6, isa.R7, isa.R4, isa.R3, isa.R2, isa.R1, isa.R0}
	out := make([]isa.Reg, 0, n)
	for _, c := range candidates {
		skip := false
		for _, a := range avoid {
			if c == a {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		out = append(out, c)
		if len(out) == n {
			break
		}
	}
	return out
}

// Generate produces the complete assembly text for prog: code section,
// one label per function in source order, then the data and stack
// sections.
func (g *Codegen) Generate(prog *ast.Node) (string, error) {
	g.prog.Raw(".pos 0x1000")
	g.emitProgramPrologue()

	for _, gd := range prog.Children {
		child := gd.Child(0)
		if child.Kind == ast.FN_DECL {
			if err := g.generateFunction(child); err != nil {
				return "", err
			}
		}
	}

	g.emitDataSection(prog)
	g.emitStackSection()

	return g.prog.String(), nil
}

func (g *Codegen) emitProgramPrologue() {
	g.prog.Label("_start")
	g.prog.Emit(isa.LD, isa.ImmediateLabel("_stackBottom"), isa.R5.String())
	g.prog.Emit(isa.DEC, isa.R5.String())
	g.prog.Emit(isa.GPC, isa.Immediate(6), isa.R6.String())
	g.prog.Emit(isa.J, "main")
	g.prog.Emit(isa.HALT)
}

// generateFunction emits one function's label, prologue, body, and (if
// execution can fall off the end without an explicit return) epilogue.
func (g *Codegen) generateFunction(fn *ast.Node) error {
	g.prog.Label(g.name(fn.Child(0)))

	ctx := &funcCtx{frameArgOffset: 24}
	for _, r := range []isa.Reg{isa.R0, isa.R7, isa.R4, isa.R3, isa.R2, isa.R1} {
		g.pushReg(r)
	}
	if fn.ClobbersReturn {
		g.pushReg(isa.R6)
		ctx.frameArgOffset += 4
	}
	if fn.FrameVars > 0 {
		g.prog.Emit(isa.LD, isa.Immediate(int32(-4*fn.FrameVars)), isa.R0.String())
		g.prog.Emit(isa.ADD, isa.R0.String(), isa.R5.String())
		ctx.frameArgOffset += 4 * fn.FrameVars
	}

	returned, err := g.codegenSingleCommand(fn.Child(2), fn, ctx)
	if err != nil {
		return err
	}
	if !returned {
		g.emitEpilogue(ctx, fn, false)
	}
	return nil
}

// emitEpilogue deallocates locals, restores r6 (if the function
// clobbered it), and restores the six-register save block, finishing
// with a jump through r6. When preserveR0 is set (a non-void function's
// explicit return) the final restore of r0 is skipped — r0 at that
// point holds the value being returned to the caller, not the value the
// prologue saved, so popping it here would overwrite the function's own
// result before the caller ever sees it. Deallocation arithmetic always
// runs through r7 rather than r0 so this holds regardless of whether r0
// is live.
func (g *Codegen) emitEpilogue(ctx *funcCtx, fn *ast.Node, preserveR0 bool) {
	if fn.FrameVars > 0 {
		g.prog.Emit(isa.LD, isa.Immediate(int32(4*fn.FrameVars)), isa.R7.String())
		g.prog.Emit(isa.ADD, isa.R7.String(), isa.R5.String())
	}
	if fn.ClobbersReturn {
		g.popReg(isa.R6)
	}
	for _, r := range []isa.Reg{isa.R1, isa.R2, isa.R3, isa.R4, isa.R7} {
		g.popReg(r)
	}
	if preserveR0 {
		g.prog.Emit(isa.INCA, isa.R5.String())
	} else {
		g.popReg(isa.R0)
	}
	g.prog.Emit(isa.J, isa.Indirect(isa.R6))
}

func (g *Codegen) emitDataSection(prog *ast.Node) {
	var globals []*ast.Node
	for _, gd := range prog.Children {
		child := gd.Child(0)
		if child.Kind == ast.VAR_DECL && child.IsStatic {
			globals = append(globals, child)
		}
	}
	if len(globals) == 0 {
		return
	}
	g.prog.Raw(".pos 0x2000")
	for _, v := range globals {
		g.prog.Raw(g.name(v.Child(0)) + ":\t.long 0")
	}
}

func (g *Codegen) emitStackSection() {
	g.prog.Raw(".pos 0x3000")
	g.prog.Label("_stackTop")
	for i := 0; i < 128; i++ {
		g.prog.Raw("\t.long 0")
	}
	g.prog.Raw("_stackBottom:\t.long 0")
}

// --- statement codegen -----------------------------------------------

// codegenSingleCommand and codegenStmt report whether control flow
// cannot fall past this point (a RETURN_DIRECTIVE, or a COMMAND block
// one of whose own statements reported true):
// once a statement at a given nesting level has returned, the rest of
// that same COMMAND's statements are unreachable and are not emitted
// (spec.md §4.4's "no further statements ... once a return has been
// seen"), though sibling branches elsewhere in the tree are unaffected.
func (g *Codegen) codegenSingleCommand(n *ast.Node, fn *ast.Node, ctx *funcCtx) (bool, error) {
	return g.codegenStmt(n.Child(0), fn, ctx)
}

func (g *Codegen) codegenStmt(n *ast.Node, fn *ast.Node, ctx *funcCtx) (bool, error) {
	if g.debug {
		g.prog.Comment(fmt.Sprintf("%s [%d,%d)", n.Kind, n.Start, n.End))
	}
	switch n.Kind {
	case ast.COMMAND:
		return g.codegenCommandBlock(n, fn, ctx)
	case ast.CONST_DECL, ast.VAR_DECL:
		return false, g.codegenDecl(n, ctx)
	case ast.DIRECT_ASSIGN:
		return false, g.codegenDirectAssign(n, ctx)
	case ast.INDIRECT_ASSIGN:
		return false, g.codegenIndirectAssign(n, ctx)
	case ast.FUNC_CALL:
		return false, g.codegenFuncCall(n, isa.R0, ctx)
	case ast.IF_EXPR:
		return false, g.codegenIfExpr(n, fn, ctx)
	case ast.WHILE_LOOP:
		return false, g.codegenWhileLoop(n, fn, ctx)
	case ast.RETURN_DIRECTIVE:
		if err := g.codegenReturn(n, fn, ctx); err != nil {
			return true, err
		}
		return true, nil
	default:
		g.diag.Softf("CODEGEN: idk how to fold in %s", n.Kind.String())
		return false, nil
	}
}

func (g *Codegen) codegenCommandBlock(n *ast.Node, fn *ast.Node, ctx *funcCtx) (bool, error) {
	for _, stmt := range n.Children {
		returned, err := g.codegenSingleCommand(stmt, fn, ctx)
		if err != nil {
			return returned, err
		}
		if returned {
			return true, nil
		}
	}
	return false, nil
}

// codegenDecl handles a CONST_DECL or VAR_DECL reached in statement
// position. Constants never occupy a runtime slot — every reference was
// already folded to its value by contextual analysis — and a global
// VAR_DECL's storage is carved out in the data section, not here; only
// a local variable's optional initializer produces any code.
func (g *Codegen) codegenDecl(n *ast.Node, ctx *funcCtx) error {
	if n.Kind == ast.CONST_DECL || n.IsStatic {
		return nil
	}
	init := n.Child(1)
	if init == nil {
		return nil
	}
	if err := g.codegenExpr(init, isa.R0, ctx); err != nil {
		return err
	}
	offset := 4*n.FrameIndex + ctx.entireFrameOffset
	g.prog.Emit(isa.ST, isa.R0.String(), isa.Indexed(offset, isa.R5))
	return nil
}

func (g *Codegen) codegenDirectAssign(n *ast.Node, ctx *funcCtx) error {
	target := n.Child(0)
	if err := g.codegenExpr(n.Child(1), isa.R0, ctx); err != nil {
		return err
	}
	def := target.Definition
	if def == nil || def.Kind != ast.VAR_DECL {
		g.diag.Softf("CODEGEN: idk how to fold in %s", n.Kind.String())
		return nil
	}
	if def.IsStatic {
		g.prog.Emit(isa.LD, isa.ImmediateLabel(g.name(def.Child(0))), isa.R1.String())
		g.prog.Emit(isa.ST, isa.R0.String(), isa.Indirect(isa.R1))
		return nil
	}
	offset := 4 * def.FrameIndex
	if def.IsParam {
		offset += ctx.frameArgOffset
	}
	offset += ctx.entireFrameOffset
	g.prog.Emit(isa.ST, isa.R0.String(), isa.Indexed(offset, isa.R5))
	return nil
}

func (g *Codegen) codegenIndirectAssign(n *ast.Node, ctx *funcCtx) error {
	if err := g.codegenExpr(n.Child(1), isa.R0, ctx); err != nil {
		return err
	}
	g.pushReg(isa.R0)
	ctx.entireFrameOffset += 4
	if err := g.codegenExpr(n.Child(0), isa.R1, ctx); err != nil {
		return err
	}
	g.popReg(isa.R0)
	ctx.entireFrameOffset -= 4
	g.prog.Emit(isa.ST, isa.R0.String(), isa.Indirect(isa.R1))
	return nil
}

func (g *Codegen) codegenIfExpr(n *ast.Node, fn *ast.Node, ctx *funcCtx) error {
	id := g.nextLabel()
	interLabel := fmt.Sprintf("ELSE%dSInter", id)
	interEndLabel := fmt.Sprintf("ELSE%dSInterEnd", id)
	elseLabel := fmt.Sprintf("ELSE%dS", id)
	endLabel := fmt.Sprintf("ELSE%dE", id)

	hasElse := n.Child(2) != nil
	falseTarget := endLabel
	if hasElse {
		falseTarget = elseLabel
	}

	if err := g.codegenExpr(n.Child(0), isa.R0, ctx); err != nil {
		return err
	}
	g.prog.Emit(isa.BEQ, isa.R0.String(), interLabel)
	g.prog.Emit(isa.BR, interEndLabel)
	g.prog.Label(interLabel)
	g.prog.Emit(isa.J, falseTarget)
	g.prog.Label(interEndLabel)

	if _, err := g.codegenSingleCommand(n.Child(1), fn, ctx); err != nil {
		return err
	}

	if hasElse {
		g.prog.Emit(isa.J, endLabel)
		g.prog.Label(elseLabel)
		if _, err := g.codegenSingleCommand(n.Child(2), fn, ctx); err != nil {
			return err
		}
	}
	g.prog.Label(endLabel)
	return nil
}

func (g *Codegen) codegenWhileLoop(n *ast.Node, fn *ast.Node, ctx *funcCtx) error {
	id := g.nextLabel()
	startLabel := fmt.Sprintf("L%dS", id)
	interLabel := fmt.Sprintf("L%dSInter", id)
	interEndLabel := fmt.Sprintf("L%dSInterEnd", id)
	endLabel := fmt.Sprintf("L%dE", id)

	g.prog.Label(startLabel)
	if err := g.codegenExpr(n.Child(0), isa.R0, ctx); err != nil {
		return err
	}
	g.prog.Emit(isa.BEQ, isa.R0.String(), interLabel)
	g.prog.Emit(isa.BR, interEndLabel)
	g.prog.Label(interLabel)
	g.prog.Emit(isa.J, endLabel)
	g.prog.Label(interEndLabel)

	if _, err := g.codegenSingleCommand(n.Child(1), fn, ctx); err != nil {
		return err
	}
	g.prog.Emit(isa.J, startLabel)
	g.prog.Label(endLabel)
	return nil
}

// codegenReturn evaluates the optional return expression into r0, then
// inlines the epilogue right there rather than jumping to one shared
// epilogue — matching spec.md's "fall through to the function epilogue"
// description of a return statement.
func (g *Codegen) codegenReturn(n *ast.Node, fn *ast.Node, ctx *funcCtx) error {
	if expr := n.Child(0); expr != nil {
		if err := g.codegenExpr(expr, isa.R0, ctx); err != nil {
			return err
		}
	}
	g.emitEpilogue(ctx, fn, !fn.IsVoid)
	return nil
}

// --- expression codegen ------------------------------------------------

func (g *Codegen) codegenExpr(n *ast.Node, dest isa.Reg, ctx *funcCtx) error {
	switch n.Kind {
	case ast.NUMBER_LITERAL:
		g.prog.Emit(isa.LD, isa.Immediate(n.Val), dest.String())
		return nil
	case ast.IDENT_REF:
		return g.codegenIdentRef(n, dest, ctx)
	case ast.FUNC_CALL:
		return g.codegenFuncCall(n, dest, ctx)
	case ast.EXPR:
		if len(n.Children) == 1 {
			return g.codegenPrefix(n, dest, ctx)
		}
		return g.codegenInfix(n, dest, ctx)
	default:
		g.diag.Softf("CODEGEN: idk how to fold in %s", n.Kind.String())
		return nil
	}
}

func (g *Codegen) codegenIdentRef(n *ast.Node, dest isa.Reg, ctx *funcCtx) error {
	def := n.Definition
	if def == nil {
		g.diag.Softf("CODEGEN: idk how to fold in %s", n.Kind.String())
		return nil
	}
	switch {
	case def.Kind == ast.CONST_DECL:
		// Documented quirk (spec.md §9 open question a): a constant
		// reference loads its value without the `$` immediate marker
		// that every other immediate load in this backend uses.
		g.prog.Emit(isa.LD, fmt.Sprintf("%d", def.Val), dest.String())
	case def.Kind == ast.VAR_DECL && def.IsStatic:
		g.prog.Emit(isa.LD, isa.ImmediateLabel(g.name(def.Child(0))), dest.String())
		g.prog.Emit(isa.LD, isa.Indirect(dest), dest.String())
	default:
		offset := 4 * def.FrameIndex
		if def.IsParam {
			offset += ctx.frameArgOffset
		}
		offset += ctx.entireFrameOffset
		g.prog.Emit(isa.LD, isa.Indexed(offset, isa.R5), dest.String())
	}
	return nil
}

// codegenFuncCall implements spec.md's call sequence. Argument-slot
// arithmetic runs through r7, never r0, so that r0 is free to carry
// both each argument's value on the way in and the callee's result on
// the way out without the two ever needing to be juggled around a
// scratch computation.
func (g *Codegen) codegenFuncCall(n *ast.Node, dest isa.Reg, ctx *funcCtx) error {
	name := g.name(n.Child(0))
	args := n.Child(1).Children

	savedR0 := dest != isa.R0
	if savedR0 {
		g.pushReg(isa.R0)
		ctx.entireFrameOffset += 4
	}

	if len(args) > 0 {
		g.prog.Emit(isa.LD, isa.Immediate(int32(-4*len(args))), isa.R7.String())
		g.prog.Emit(isa.ADD, isa.R7.String(), isa.R5.String())
		ctx.entireFrameOffset += 4 * len(args)
	}
	for i, arg := range args {
		if err := g.codegenExpr(arg, isa.R0, ctx); err != nil {
			return err
		}
		g.prog.Emit(isa.ST, isa.R0.String(), isa.Indexed(i*4, isa.R5))
	}

	g.prog.Emit(isa.GPC, isa.Immediate(6), isa.R6.String())
	g.prog.Emit(isa.J, name)

	if dest != isa.R0 {
		g.prog.Emit(isa.MOV, isa.R0.String(), dest.String())
	}

	if len(args) > 0 {
		g.prog.Emit(isa.LD, isa.Immediate(int32(4*len(args))), isa.R7.String())
		g.prog.Emit(isa.ADD, isa.R7.String(), isa.R5.String())
		ctx.entireFrameOffset -= 4 * len(args)
	}
	if savedR0 {
		g.popReg(isa.R0)
		ctx.entireFrameOffset -= 4
	}
	return nil
}

func (g *Codegen) codegenPrefix(n *ast.Node, dest isa.Reg, ctx *funcCtx) error {
	if err := g.codegenExpr(n.Child(0), dest, ctx); err != nil {
		return err
	}
	switch n.OperationType {
	case token.NEGATE:
		g.prog.Emit(isa.NOT, dest.String())
		g.prog.Emit(isa.INC, dest.String())
	case token.BITWISE_NOT:
		g.prog.Emit(isa.NOT, dest.String())
	case token.NOT:
		g.codegenLogicalNot(dest)
	case token.DEREF:
		g.prog.Emit(isa.LD, isa.Indirect(dest), dest.String())
	default:
		g.diag.Softf("CODEGEN: idk how to fold in %s", n.OperationType.String())
	}
	return nil
}

func (g *Codegen) codegenLogicalNot(dest isa.Reg) {
	id := g.nextLabel()
	trueLabel := fmt.Sprintf("NOT%dT", id)
	endLabel := fmt.Sprintf("NOT%dE", id)
	g.prog.Emit(isa.BE, dest.String(), trueLabel)
	g.prog.Emit(isa.LD, isa.Immediate(0), dest.String())
	g.prog.Emit(isa.BR, endLabel)
	g.prog.Label(trueLabel)
	g.prog.Emit(isa.LD, isa.Immediate(1), dest.String())
	g.prog.Label(endLabel)
}

func (g *Codegen) codegenInfix(n *ast.Node, dest isa.Reg, ctx *funcCtx) error {
	left, right, op := n.Child(0), n.Child(1), n.OperationType

	switch op {
	case token.AND:
		return g.codegenShortCircuitAnd(left, right, dest, ctx)
	case token.OR:
		return g.codegenShortCircuitOr(left, right, dest, ctx)
	}

	// Constant-shift peephole (spec.md §8): a literal shift amount skips
	// evaluating a right operand register entirely.
	if (op == token.LEFT_SHIFT || op == token.RIGHT_SHIFT) && right.Kind == ast.NUMBER_LITERAL {
		if err := g.codegenExpr(left, dest, ctx); err != nil {
			return err
		}
		m := isa.SHL
		if op == token.RIGHT_SHIFT {
			m = isa.SHR
		}
		g.prog.Emit(m, isa.Immediate(right.Val), dest.String())
		return nil
	}

	if err := g.codegenExpr(left, dest, ctx); err != nil {
		return err
	}

	var rightReg isa.Reg
	if dest >= isa.R4 {
		g.pushReg(dest)
		ctx.entireFrameOffset += 4
		if err := g.codegenExpr(right, dest, ctx); err != nil {
			return err
		}
		g.prog.Emit(isa.MOV, dest.String(), isa.R7.String())
		g.popReg(dest)
		ctx.entireFrameOffset -= 4
		rightReg = isa.R7
	} else {
		rightReg = dest + 1
		if err := g.codegenExpr(right, rightReg, ctx); err != nil {
			return err
		}
	}

	return g.emitOperator(op, dest, rightReg, ctx)
}

func (g *Codegen) emitOperator(op token.Kind, left, right isa.Reg, ctx *funcCtx) error {
	switch op {
	case token.PLUS:
		g.prog.Emit(isa.ADD, right.String(), left.String())
	case token.MINUS:
		g.prog.Emit(isa.NOT, right.String())
		g.prog.Emit(isa.INC, right.String())
		g.prog.Emit(isa.ADD, right.String(), left.String())
	case token.TIMES:
		g.emitMultiply(left, right, ctx)
	case token.DIVIDE:
		g.emitDivMod(left, right, ctx, false)
	case token.MODULO:
		g.emitDivMod(left, right, ctx, true)
	case token.LEFT_SHIFT:
		g.emitDynamicShift(left, right, ctx, true)
	case token.RIGHT_SHIFT:
		g.emitDynamicShift(left, right, ctx, false)
	case token.LESS_THAN, token.LESS_THAN_EQUALS, token.GREATER_THAN,
		token.GREATER_THAN_EQUALS, token.EQUALS, token.NOT_EQUALS:
		g.emitComparison(op, left, right)
	case token.BITWISE_AND:
		g.prog.Emit(isa.AND, right.String(), left.String())
	case token.BITWISE_OR:
		g.prog.Emit(isa.NOT, left.String())
		g.prog.Emit(isa.NOT, right.String())
		g.prog.Emit(isa.AND, right.String(), left.String())
		g.prog.Emit(isa.NOT, left.String())
	case token.BITWISE_XOR:
		g.emitXor(left, right, ctx)
	default:
		g.diag.Softf("CODEGEN: idk how to fold in %s", op.String())
	}
	return nil
}

// emitComparison computes left-right into left, then reduces it to 0/1
// using only the two zero-comparing branches the target provides (`be`
// for ==0, `bgt` for >0); the other four comparisons are each built by
// combining or inverting those two tests.
func (g *Codegen) emitComparison(op token.Kind, left, right isa.Reg) {
	g.prog.Emit(isa.NOT, right.String())
	g.prog.Emit(isa.INC, right.String())
	g.prog.Emit(isa.ADD, right.String(), left.String())

	id := g.nextLabel()
	trueLabel := fmt.Sprintf("CMP%dT", id)
	falseLabel := fmt.Sprintf("CMP%dF", id)
	endLabel := fmt.Sprintf("CMP%dE", id)
	setTrue := func() {
		g.prog.Label(trueLabel)
		g.prog.Emit(isa.LD, isa.Immediate(1), left.String())
	}
	setFalse := func() {
		g.prog.Label(falseLabel)
		g.prog.Emit(isa.LD, isa.Immediate(0), left.String())
	}

	switch op {
	case token.LESS_THAN:
		g.prog.Emit(isa.BGT, left.String(), falseLabel)
		g.prog.Emit(isa.BE, left.String(), falseLabel)
		g.prog.Emit(isa.LD, isa.Immediate(1), left.String())
		g.prog.Emit(isa.BR, endLabel)
		setFalse()
	case token.LESS_THAN_EQUALS:
		g.prog.Emit(isa.BGT, left.String(), falseLabel)
		g.prog.Emit(isa.LD, isa.Immediate(1), left.String())
		g.prog.Emit(isa.BR, endLabel)
		setFalse()
	case token.GREATER_THAN:
		g.prog.Emit(isa.BGT, left.String(), trueLabel)
		g.prog.Emit(isa.LD, isa.Immediate(0), left.String())
		g.prog.Emit(isa.BR, endLabel)
		setTrue()
	case token.GREATER_THAN_EQUALS:
		g.prog.Emit(isa.BGT, left.String(), trueLabel)
		g.prog.Emit(isa.BE, left.String(), trueLabel)
		g.prog.Emit(isa.LD, isa.Immediate(0), left.String())
		g.prog.Emit(isa.BR, endLabel)
		setTrue()
	case token.EQUALS:
		g.prog.Emit(isa.BE, left.String(), trueLabel)
		g.prog.Emit(isa.LD, isa.Immediate(0), left.String())
		g.prog.Emit(isa.BR, endLabel)
		setTrue()
	case token.NOT_EQUALS:
		g.prog.Emit(isa.BE, left.String(), falseLabel)
		g.prog.Emit(isa.LD, isa.Immediate(1), left.String())
		g.prog.Emit(isa.BR, endLabel)
		setFalse()
	}
	g.prog.Label(endLabel)
}

// emitMultiply is the shift-and-add loop of spec.md §4.4: `left` itself
// is shifted up each iteration to serve as its own running copy, the
// multiplier `right` is consumed a bit at a time as it's shifted down,
// and one extra scratch register (beyond the accumulator) tests the low
// bit of a disposable copy without disturbing `right`.
func (g *Codegen) emitMultiply(left, right isa.Reg, ctx *funcCtx) {
	s := scratchAvoiding([]isa.Reg{left, right}, 2)
	acc, bit := s[0], s[1]

	g.pushReg(acc)
	ctx.entireFrameOffset += 4
	g.pushReg(bit)
	ctx.entireFrameOffset += 4

	g.prog.Emit(isa.LD, isa.Immediate(0), acc.String())
	id := g.nextLabel()
	loopLabel := fmt.Sprintf("MUL%d", id)
	skipLabel := fmt.Sprintf("MUL%dS", id)
	endLabel := fmt.Sprintf("MUL%dE", id)

	g.prog.Label(loopLabel)
	g.prog.Emit(isa.BE, right.String(), endLabel)
	g.prog.Emit(isa.MOV, right.String(), bit.String())
	g.prog.Emit(isa.AND, isa.Immediate(1), bit.String())
	g.prog.Emit(isa.BE, bit.String(), skipLabel)
	g.prog.Emit(isa.ADD, left.String(), acc.String())
	g.prog.Label(skipLabel)
	g.prog.Emit(isa.SHL, isa.Immediate(1), left.String())
	g.prog.Emit(isa.SHR, isa.Immediate(1), right.String())
	g.prog.Emit(isa.BR, loopLabel)
	g.prog.Label(endLabel)
	g.prog.Emit(isa.MOV, acc.String(), left.String())

	g.popReg(bit)
	ctx.entireFrameOffset -= 4
	g.popReg(acc)
	ctx.entireFrameOffset -= 4
}

// emitDivMod is non-restoring division extended to 32 bits, run over the
// operands' absolute values and then sign-corrected to match C-style
// truncation: the quotient is negative iff the operands' original signs
// differed, and the remainder takes the dividend's sign. left doubles as
// the (remainder:quotient) pair's quotient half across the whole loop,
// shifting a fresh bit in from the top of the running remainder each
// iteration; right (the divisor) is never mutated after normalization, so
// a precomputed negation is kept alongside it instead of renegating on
// every subtract. Each iteration decides subtract-vs-add from the
// remainder's sign as the previous iteration left it, before this
// iteration's bit is folded in: testing the freshly shifted-in value
// instead silently produces garbage quotients for almost every operand
// pair.
func (g *Codegen) emitDivMod(left, right isa.Reg, ctx *funcCtx, isMod bool) {
	s := scratchAvoiding([]isa.Reg{left, right}, 4)
	negDivisor, rem, bit, counter := s[0], s[1], s[2], s[3]

	for _, r := range []isa.Reg{negDivisor, rem, bit, counter} {
		g.pushReg(r)
		ctx.entireFrameOffset += 4
	}

	id := g.nextLabel()
	leftNonNeg := fmt.Sprintf("DIV%dLNN", id)
	leftDone := fmt.Sprintf("DIV%dLD", id)
	rightNonNeg := fmt.Sprintf("DIV%dRNN", id)
	rightDone := fmt.Sprintf("DIV%dRD", id)

	// bit = 1 iff the dividend was negative, and left is negated to its
	// magnitude in place.
	g.prog.Emit(isa.BGT, left.String(), leftNonNeg)
	g.prog.Emit(isa.BE, left.String(), leftNonNeg)
	g.prog.Emit(isa.NOT, left.String())
	g.prog.Emit(isa.INC, left.String())
	g.prog.Emit(isa.LD, isa.Immediate(1), bit.String())
	g.prog.Emit(isa.BR, leftDone)
	g.prog.Label(leftNonNeg)
	g.prog.Emit(isa.LD, isa.Immediate(0), bit.String())
	g.prog.Label(leftDone)

	// counter = 1 iff the divisor was negative, and right is negated to
	// its magnitude in place.
	g.prog.Emit(isa.BGT, right.String(), rightNonNeg)
	g.prog.Emit(isa.BE, right.String(), rightNonNeg)
	g.prog.Emit(isa.NOT, right.String())
	g.prog.Emit(isa.INC, right.String())
	g.prog.Emit(isa.LD, isa.Immediate(1), counter.String())
	g.prog.Emit(isa.BR, rightDone)
	g.prog.Label(rightNonNeg)
	g.prog.Emit(isa.LD, isa.Immediate(0), counter.String())
	g.prog.Label(rightDone)

	// counter becomes dividendSign - divisorSign: zero iff the operands
	// agreed in sign, nonzero (+-1) iff the quotient needs negating.
	// bit is left untouched, still holding the dividend's sign.
	g.prog.Emit(isa.NOT, counter.String())
	g.prog.Emit(isa.INC, counter.String())
	g.prog.Emit(isa.ADD, bit.String(), counter.String())

	g.pushReg(bit)
	g.pushReg(counter)
	ctx.entireFrameOffset += 8

	g.prog.Emit(isa.MOV, right.String(), negDivisor.String())
	g.prog.Emit(isa.NOT, negDivisor.String())
	g.prog.Emit(isa.INC, negDivisor.String())
	g.prog.Emit(isa.LD, isa.Immediate(0), rem.String())
	g.prog.Emit(isa.LD, isa.Immediate(32), counter.String())

	loopLabel := fmt.Sprintf("DIV%d", id)
	subLabel := fmt.Sprintf("DIV%dSub", id)
	setQLabel := fmt.Sprintf("DIV%dSetQ", id)
	setBitLabel := fmt.Sprintf("DIV%dBit", id)
	nextLabel := fmt.Sprintf("DIV%dNext", id)
	postLabel := fmt.Sprintf("DIV%dPost", id)
	doneLabel := fmt.Sprintf("DIV%dDone", id)

	g.prog.Label(loopLabel)
	g.prog.Emit(isa.BE, counter.String(), postLabel)

	// Decide subtract-vs-add from rem as the previous iteration left it,
	// then fold in this iteration's dividend bit and apply the choice.
	g.prog.Emit(isa.BGT, rem.String(), subLabel)
	g.prog.Emit(isa.BE, rem.String(), subLabel)

	g.prog.Emit(isa.MOV, left.String(), bit.String())
	g.prog.Emit(isa.SHR, isa.Immediate(31), bit.String())
	g.prog.Emit(isa.SHL, isa.Immediate(1), rem.String())
	g.prog.Emit(isa.ADD, bit.String(), rem.String())
	g.prog.Emit(isa.SHL, isa.Immediate(1), left.String())
	g.prog.Emit(isa.ADD, right.String(), rem.String())
	g.prog.Emit(isa.BR, setQLabel)

	g.prog.Label(subLabel)
	g.prog.Emit(isa.MOV, left.String(), bit.String())
	g.prog.Emit(isa.SHR, isa.Immediate(31), bit.String())
	g.prog.Emit(isa.SHL, isa.Immediate(1), rem.String())
	g.prog.Emit(isa.ADD, bit.String(), rem.String())
	g.prog.Emit(isa.SHL, isa.Immediate(1), left.String())
	g.prog.Emit(isa.ADD, negDivisor.String(), rem.String())

	g.prog.Label(setQLabel)
	g.prog.Emit(isa.BGT, rem.String(), setBitLabel)
	g.prog.Emit(isa.BE, rem.String(), setBitLabel)
	g.prog.Emit(isa.BR, nextLabel)
	g.prog.Label(setBitLabel)
	g.prog.Emit(isa.INC, left.String())
	g.prog.Label(nextLabel)
	g.prog.Emit(isa.DEC, counter.String())
	g.prog.Emit(isa.BR, loopLabel)

	g.prog.Label(postLabel)
	g.prog.Emit(isa.BGT, rem.String(), doneLabel)
	g.prog.Emit(isa.BE, rem.String(), doneLabel)
	g.prog.Emit(isa.ADD, right.String(), rem.String())
	g.prog.Label(doneLabel)

	g.popReg(counter)
	ctx.entireFrameOffset -= 4
	g.popReg(bit)
	ctx.entireFrameOffset -= 4

	if isMod {
		remSettled := fmt.Sprintf("DIV%dRSettled", id)
		g.prog.Emit(isa.BE, bit.String(), remSettled)
		g.prog.Emit(isa.NOT, rem.String())
		g.prog.Emit(isa.INC, rem.String())
		g.prog.Label(remSettled)
		g.prog.Emit(isa.MOV, rem.String(), left.String())
	} else {
		quotSettled := fmt.Sprintf("DIV%dQSettled", id)
		g.prog.Emit(isa.BE, counter.String(), quotSettled)
		g.prog.Emit(isa.NOT, left.String())
		g.prog.Emit(isa.INC, left.String())
		g.prog.Label(quotSettled)
	}

	for _, r := range []isa.Reg{counter, bit, rem, negDivisor} {
		g.popReg(r)
		ctx.entireFrameOffset -= 4
	}
}

// emitDynamicShift synthesizes a variable-amount shift bit by bit over
// the low 5 bits of right, since the target has no register-indexed
// shift. A shift amount of 32 or more clears the result outright rather
// than being decomposed.
func (g *Codegen) emitDynamicShift(left, right isa.Reg, ctx *funcCtx, isLeft bool) {
	s := scratchAvoiding([]isa.Reg{left, right}, 1)
	t := s[0]
	g.pushReg(t)
	ctx.entireFrameOffset += 4

	id := g.nextLabel()
	smallLabel := fmt.Sprintf("SHF%dSmall", id)
	endLabel := fmt.Sprintf("SHF%dE", id)

	g.prog.Emit(isa.MOV, right.String(), t.String())
	g.prog.Emit(isa.AND, isa.Immediate(-32), t.String())
	g.prog.Emit(isa.BE, t.String(), smallLabel)
	g.prog.Emit(isa.LD, isa.Immediate(0), left.String())
	g.prog.Emit(isa.BR, endLabel)

	g.prog.Label(smallLabel)
	m := isa.SHL
	if !isLeft {
		m = isa.SHR
	}
	for _, bit := range []int32{16, 8, 4, 2, 1} {
		skip := fmt.Sprintf("SHF%dB%d", id, bit)
		g.prog.Emit(isa.MOV, right.String(), t.String())
		g.prog.Emit(isa.AND, isa.Immediate(bit), t.String())
		g.prog.Emit(isa.BE, t.String(), skip)
		g.prog.Emit(m, isa.Immediate(bit), left.String())
		g.prog.Label(skip)
	}
	g.prog.Label(endLabel)

	g.popReg(t)
	ctx.entireFrameOffset -= 4
}

// emitXor uses the identity a^b = a+b-2*(a&b), matching the one
// scratch register spec.md calls for.
func (g *Codegen) emitXor(left, right isa.Reg, ctx *funcCtx) {
	s := scratchAvoiding([]isa.Reg{left, right}, 1)
	t := s[0]
	g.pushReg(t)
	ctx.entireFrameOffset += 4

	g.prog.Emit(isa.MOV, left.String(), t.String())
	g.prog.Emit(isa.AND, right.String(), t.String())
	g.prog.Emit(isa.SHL, isa.Immediate(1), t.String())
	g.prog.Emit(isa.ADD, right.String(), left.String())
	g.prog.Emit(isa.NOT, t.String())
	g.prog.Emit(isa.INC, t.String())
	g.prog.Emit(isa.ADD, t.String(), left.String())

	g.popReg(t)
	ctx.entireFrameOffset -= 4
}

func (g *Codegen) codegenShortCircuitAnd(left, right *ast.Node, dest isa.Reg, ctx *funcCtx) error {
	if err := g.codegenExpr(left, dest, ctx); err != nil {
		return err
	}
	id := g.nextLabel()
	falseLabel := fmt.Sprintf("AND%dF", id)
	endLabel := fmt.Sprintf("AND%dE", id)

	g.prog.Emit(isa.BE, dest.String(), falseLabel)
	if err := g.codegenExpr(right, dest, ctx); err != nil {
		return err
	}
	g.prog.Emit(isa.BE, dest.String(), falseLabel)
	g.prog.Emit(isa.LD, isa.Immediate(1), dest.String())
	g.prog.Emit(isa.BR, endLabel)
	g.prog.Label(falseLabel)
	g.prog.Emit(isa.LD, isa.Immediate(0), dest.String())
	g.prog.Label(endLabel)
	return nil
}

func (g *Codegen) codegenShortCircuitOr(left, right *ast.Node, dest isa.Reg, ctx *funcCtx) error {
	if err := g.codegenExpr(left, dest, ctx); err != nil {
		return err
	}
	id := g.nextLabel()
	evalRightLabel := fmt.Sprintf("OR%dR", id)
	falseLabel := fmt.Sprintf("OR%dF", id)
	endLabel := fmt.Sprintf("OR%dE", id)

	g.prog.Emit(isa.BE, dest.String(), evalRightLabel)
	g.prog.Emit(isa.LD, isa.Immediate(1), dest.String())
	g.prog.Emit(isa.BR, endLabel)
	g.prog.Label(evalRightLabel)
	if err := g.codegenExpr(right, dest, ctx); err != nil {
		return err
	}
	g.prog.Emit(isa.BE, dest.String(), falseLabel)
	g.prog.Emit(isa.LD, isa.Immediate(1), dest.String())
	g.prog.Emit(isa.BR, endLabel)
	g.prog.Label(falseLabel)
	g.prog.Emit(isa.LD, isa.Immediate(0), dest.String())
	g.prog.Label(endLabel)
	return nil
}
