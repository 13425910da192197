// Package ast defines the abstract syntax tree produced by the parser and
// decorated in place by the contextual analyzer (spec.md §3).
//
// The source implementation's AST is a tagged union addressed through a
// single field-access idiom (`curr->val.xxx`) regardless of node kind.
// Rather than modelling that as a Go sum type — which would force every
// pass to open a type switch just to reach a field two other passes also
// need — Node keeps that flat shape: one struct, one Kind discriminant,
// and every variant's decorations sitting side by side. Fields that don't
// apply to a given Kind are simply left at their zero value; each pass
// only reads the fields its own node kinds define, exactly as the
// original's switch-per-NodeType walkers do.
package ast

import "github.com/aidanundheim/smlc/internal/token"

// Kind discriminates the variant a Node represents.
type Kind int

const (
	PROGRAM Kind = iota
	GLOBAL_DECL
	FN_DECL
	PARAM_LIST
	ARG_LIST
	CONST_DECL
	VAR_DECL
	DIRECT_ASSIGN
	INDIRECT_ASSIGN
	IDENT_REF
	FUNC_CALL
	EXPR
	COMMAND
	SINGLE_COMMAND
	IF_EXPR
	WHILE_LOOP
	RETURN_DIRECTIVE
	NUMBER_LITERAL
)

var kindNames = [...]string{
	PROGRAM:          "PROGRAM",
	GLOBAL_DECL:      "GLOBAL_DECL",
	FN_DECL:          "FN_DECL",
	PARAM_LIST:       "PARAM_LIST",
	ARG_LIST:         "ARG_LIST",
	CONST_DECL:       "CONST_DECL",
	VAR_DECL:         "VAR_DECL",
	DIRECT_ASSIGN:    "DIRECT_ASSIGN",
	INDIRECT_ASSIGN:  "INDIRECT_ASSIGN",
	IDENT_REF:        "IDENT_REF",
	FUNC_CALL:        "FUNC_CALL",
	EXPR:             "EXPR",
	COMMAND:          "COMMAND",
	SINGLE_COMMAND:   "SINGLE_COMMAND",
	IF_EXPR:          "IF_EXPR",
	WHILE_LOOP:       "WHILE_LOOP",
	RETURN_DIRECTIVE: "RETURN_DIRECTIVE",
	NUMBER_LITERAL:   "NUMBER_LITERAL",
}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return "UNKNOWN"
	}
	return kindNames[k]
}

// Node is every variant in the AST. The PROGRAM root exclusively owns all
// descendants; Children order is semantic (argument order, statement
// order, the then/else arms of an IF_EXPR, ...). Definition is the only
// non-owning edge in the tree — a back-reference to the node that
// introduced a name, set by the contextual analyzer — and it is never
// walked for destruction.
type Node struct {
	Kind     Kind
	Children []*Node
	Start    int
	End      int

	// FN_DECL
	IsVoid         bool
	ParamCount     int
	FrameVars      int
	ClobbersReturn bool

	// CONST_DECL / NUMBER_LITERAL / EXPR
	IsConstant bool
	Val        int32

	// VAR_DECL
	IsStatic   bool
	FrameIndex int
	IsParam    bool

	// IDENT_REF / FUNC_CALL
	Definition *Node

	// EXPR
	OperationType token.Kind
}

// New creates a Node of the given kind spanning [start,end) with the
// given children, in order.
func New(kind Kind, start, end int, children ...*Node) *Node {
	return &Node{Kind: kind, Start: start, End: end, Children: children}
}

// Child returns the i'th child, or nil if there is none — convenient for
// the fixed-shape accesses every pass performs (e.g. an FN_DECL's name is
// always Child(0)).
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// AddChild appends c to n's child list.
func (n *Node) AddChild(c *Node) {
	n.Children = append(n.Children, c)
}
