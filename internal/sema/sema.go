// Package sema implements the contextual analyzer: the two-pass walk
// over the parser's undecorated AST that resolves every identifier
// reference, assigns stack-frame layout to locals and parameters, marks
// constant sub-expressions, and validates call argument counts
// (spec.md §4.3).
//
// Frame-index counters and the clobbers-return flag are per-function
// walker state threaded explicitly through the walk (spec.md §9's own
// recommendation), rather than fields mutated on the Analyzer itself —
// functions never nest in this grammar, but keeping the state local
// means a future nested-function extension would not need to thread a
// save/restore stack through Analyzer by hand.
package sema

import (
	"github.com/aidanundheim/smlc/internal/ast"
	"github.com/aidanundheim/smlc/internal/buffer"
	"github.com/aidanundheim/smlc/internal/diag"
	"github.com/aidanundheim/smlc/internal/scope"
	"github.com/aidanundheim/smlc/internal/token"
)

// Analyzer performs contextual analysis over one PROGRAM tree.
type Analyzer struct {
	buf   *buffer.Buffer
	scope *scope.Stack
	diag  *diag.Sink
}

// New creates an Analyzer resolving identifiers against buf's text,
// reporting diagnostics through sink.
func New(buf *buffer.Buffer, sink *diag.Sink) *Analyzer {
	return &Analyzer{buf: buf, scope: scope.New(buf), diag: sink}
}

// walkerState is the per-function-body context threaded through the
// pass 2 walk: the running local-variable frame-index counter and
// whether the enclosing function body has been seen to make a call. A
// nil state marks global-scope declarations, which never acquire a
// frame index and are never inside a call.
type walkerState struct {
	frameIndex     int
	clobbersReturn bool
}

func (a *Analyzer) spelling(n *ast.Node) string {
	return a.buf.String(n.Start, n.End)
}

// Analyze runs both passes over prog, decorating it in place. It
// returns the first fatal diagnostic encountered, if any.
func (a *Analyzer) Analyze(prog *ast.Node) error {
	for _, gd := range prog.Children {
		child := gd.Child(0)
		if child != nil && child.Kind == ast.FN_DECL {
			name := child.Child(0)
			a.scope.Push(name.Start, name.End, child)
		}
	}

	for _, gd := range prog.Children {
		child := gd.Child(0)
		var err error
		switch child.Kind {
		case ast.FN_DECL:
			err = a.analyzeFnDecl(child)
		case ast.VAR_DECL:
			err = a.analyzeVarDecl(child, nil)
		case ast.CONST_DECL:
			err = a.analyzeConstDecl(child, nil)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) resolveIdent(ref *ast.Node) error {
	def, ok := a.scope.Lookup(ref.Start, ref.End)
	if !ok {
		return a.diag.Fatalf("Could not find definition of `%s`", a.spelling(ref))
	}
	ref.Definition = def
	ref.IsConstant = def.IsConstant
	return nil
}

// analyzeNode dispatches to the per-kind handler. It is the single entry
// point used to walk any child reached from a statement or expression
// position, regardless of what kind of node it turns out to be.
func (a *Analyzer) analyzeNode(n *ast.Node, state *walkerState) error {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case ast.NUMBER_LITERAL:
		return nil
	case ast.IDENT_REF:
		return a.resolveIdent(n)
	case ast.FUNC_CALL:
		return a.analyzeFuncCall(n, state)
	case ast.EXPR:
		return a.analyzeExpr(n, state)
	case ast.SINGLE_COMMAND:
		return a.analyzeNode(n.Child(0), state)
	case ast.COMMAND:
		return a.analyzeCommand(n, state)
	case ast.CONST_DECL:
		return a.analyzeConstDecl(n, state)
	case ast.VAR_DECL:
		return a.analyzeVarDecl(n, state)
	case ast.DIRECT_ASSIGN:
		return a.analyzeDirectAssign(n, state)
	case ast.INDIRECT_ASSIGN:
		return a.analyzeIndirectAssign(n, state)
	case ast.IF_EXPR:
		return a.analyzeIfExpr(n, state)
	case ast.WHILE_LOOP:
		return a.analyzeWhileLoop(n, state)
	case ast.RETURN_DIRECTIVE:
		return a.analyzeReturnDirective(n, state)
	case ast.ARG_LIST, ast.PARAM_LIST:
		for _, c := range n.Children {
			if err := a.analyzeNode(c, state); err != nil {
				return err
			}
		}
		return nil
	default:
		return nil
	}
}

func (a *Analyzer) analyzeExpr(n *ast.Node, state *walkerState) error {
	allConstant := n.OperationType != token.DEREF
	for _, c := range n.Children {
		if err := a.analyzeNode(c, state); err != nil {
			return err
		}
		if !c.IsConstant {
			allConstant = false
		}
	}
	n.IsConstant = allConstant
	return nil
}

func (a *Analyzer) analyzeCommand(n *ast.Node, state *walkerState) error {
	depth := a.scope.Depth()
	for _, c := range n.Children {
		if err := a.analyzeNode(c, state); err != nil {
			return err
		}
	}
	a.scope.PopTo(depth)
	return nil
}

func (a *Analyzer) analyzeConstDecl(n *ast.Node, state *walkerState) error {
	name := n.Child(0)
	init := n.Child(1)
	if err := a.analyzeNode(init, state); err != nil {
		return err
	}
	if !init.IsConstant {
		return a.diag.Fatalf(
			"Constant values must be statically known, but `%s` is defined to non-statically known expression",
			a.spelling(name))
	}
	n.Val = evalConstExpr(init)
	a.scope.Push(name.Start, name.End, n)
	return nil
}

func (a *Analyzer) analyzeVarDecl(n *ast.Node, state *walkerState) error {
	name := n.Child(0)
	if state == nil {
		n.IsStatic = true
	} else {
		n.FrameIndex = state.frameIndex
		state.frameIndex++
	}
	a.scope.Push(name.Start, name.End, n)

	if init := n.Child(1); init != nil {
		if err := a.analyzeNode(init, state); err != nil {
			return err
		}
	}
	return nil
}

func (a *Analyzer) analyzeDirectAssign(n *ast.Node, state *walkerState) error {
	if err := a.resolveIdent(n.Child(0)); err != nil {
		return err
	}
	return a.analyzeNode(n.Child(1), state)
}

func (a *Analyzer) analyzeIndirectAssign(n *ast.Node, state *walkerState) error {
	if err := a.analyzeNode(n.Child(0), state); err != nil {
		return err
	}
	return a.analyzeNode(n.Child(1), state)
}

func (a *Analyzer) analyzeIfExpr(n *ast.Node, state *walkerState) error {
	if err := a.analyzeNode(n.Child(0), state); err != nil {
		return err
	}
	if err := a.analyzeNode(n.Child(1), state); err != nil {
		return err
	}
	return a.analyzeNode(n.Child(2), state)
}

func (a *Analyzer) analyzeWhileLoop(n *ast.Node, state *walkerState) error {
	if err := a.analyzeNode(n.Child(0), state); err != nil {
		return err
	}
	return a.analyzeNode(n.Child(1), state)
}

func (a *Analyzer) analyzeReturnDirective(n *ast.Node, state *walkerState) error {
	return a.analyzeNode(n.Child(0), state)
}

// analyzeFuncCall resolves the callee, soft-validates the argument
// count, marks the enclosing function as clobbering r6, then walks each
// argument expression.
func (a *Analyzer) analyzeFuncCall(n *ast.Node, state *walkerState) error {
	callee := n.Child(0)
	if err := a.resolveIdent(callee); err != nil {
		return err
	}
	args := n.Child(1)

	if def := callee.Definition; def != nil && def.Kind == ast.FN_DECL {
		switch {
		case len(args.Children) > def.ParamCount:
			a.diag.Soft("Too many args")
		case len(args.Children) < def.ParamCount:
			a.diag.Soft("Too few args")
		}
	}

	if state != nil {
		state.clobbersReturn = true
	}

	for _, arg := range args.Children {
		if err := a.analyzeNode(arg, state); err != nil {
			return err
		}
	}
	return nil
}

// analyzeFnDecl resets the frame-index counter, pushes parameters, walks
// the body, then records the decorations the code generator needs.
func (a *Analyzer) analyzeFnDecl(fn *ast.Node) error {
	params := fn.Child(1)
	body := fn.Child(2)

	state := &walkerState{}
	depth := a.scope.Depth()
	for i, param := range params.Children {
		param.IsParam = true
		param.FrameIndex = i
		a.scope.Push(param.Start, param.End, param)
	}

	if err := a.analyzeNode(body, state); err != nil {
		return err
	}
	a.scope.PopTo(depth)

	fn.FrameVars = state.frameIndex
	fn.ClobbersReturn = state.clobbersReturn
	return nil
}

// evalConstExpr folds a subtree already proven isConstant into its
// 32-bit value. It is only ever called on a CONST_DECL initializer after
// that check has passed, so every node it recurses into is itself
// constant: literals, resolved references to other constants, and
// operators over constant operands.
func evalConstExpr(n *ast.Node) int32 {
	switch n.Kind {
	case ast.NUMBER_LITERAL:
		return n.Val
	case ast.IDENT_REF:
		if n.Definition != nil {
			return n.Definition.Val
		}
		return 0
	case ast.EXPR:
		if len(n.Children) == 1 {
			return evalUnary(n.OperationType, evalConstExpr(n.Child(0)))
		}
		return evalBinary(n.OperationType, evalConstExpr(n.Child(0)), evalConstExpr(n.Child(1)))
	default:
		return 0
	}
}

func evalUnary(op token.Kind, v int32) int32 {
	switch op {
	case token.NEGATE:
		return -v
	case token.BITWISE_NOT:
		return ^v
	case token.NOT:
		if v == 0 {
			return 1
		}
		return 0
	default:
		return v
	}
}

func evalBinary(op token.Kind, l, r int32) int32 {
	b2i := func(b bool) int32 {
		if b {
			return 1
		}
		return 0
	}
	switch op {
	case token.PLUS:
		return l + r
	case token.MINUS:
		return l - r
	case token.TIMES:
		return l * r
	case token.DIVIDE:
		if r == 0 {
			return 0
		}
		return l / r
	case token.MODULO:
		if r == 0 {
			return 0
		}
		return l % r
	case token.LEFT_SHIFT:
		return l << uint32(r&31)
	case token.RIGHT_SHIFT:
		return l >> uint32(r&31)
	case token.LESS_THAN:
		return b2i(l < r)
	case token.LESS_THAN_EQUALS:
		return b2i(l <= r)
	case token.GREATER_THAN:
		return b2i(l > r)
	case token.GREATER_THAN_EQUALS:
		return b2i(l >= r)
	case token.EQUALS:
		return b2i(l == r)
	case token.NOT_EQUALS:
		return b2i(l != r)
	case token.BITWISE_AND:
		return l & r
	case token.BITWISE_XOR:
		return l ^ r
	case token.BITWISE_OR:
		return l | r
	case token.AND:
		return b2i(l != 0 && r != 0)
	case token.OR:
		return b2i(l != 0 || r != 0)
	default:
		return 0
	}
}
