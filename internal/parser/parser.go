// Package parser builds an undecorated AST from a token stream by
// recursive descent, using precedence climbing for expressions
// (spec.md §4.2). It owns no state beyond the lexer it reads from and
// the diagnostic sink it reports through; every production is a method
// that consumes exactly the tokens its grammar rule names and returns
// the node it built.
package parser

import (
	"github.com/aidanundheim/smlc/internal/ast"
	"github.com/aidanundheim/smlc/internal/diag"
	"github.com/aidanundheim/smlc/internal/lexer"
	"github.com/aidanundheim/smlc/internal/token"
)

// Parser turns a token stream into a PROGRAM node.
type Parser struct {
	lex  *lexer.Lexer
	diag *diag.Sink
}

// New creates a Parser reading tokens from lex, reporting diagnostics
// through sink.
func New(lex *lexer.Lexer, sink *diag.Sink) *Parser {
	return &Parser{lex: lex, diag: sink}
}

// unexpected reports the "Unexpected: `X`" fatal diagnostic for a token
// that cannot begin any alternative of the current production.
func (p *Parser) unexpected(tok token.Token) error {
	lexeme := p.lex.Spelling(tok)
	if tok.Start == tok.End {
		lexeme = tok.Kind.String()
	}
	return p.diag.Fatalf("Unexpected: `%s`", lexeme)
}

// ParseProgram parses the whole token stream as a PROGRAM node:
//
//	program ::= {LINE_END} globalDecl {LINE_END | globalDecl}
func (p *Parser) ParseProgram() (*ast.Node, error) {
	if err := p.skipLineEnds(); err != nil {
		return nil, err
	}

	first, err := p.parseGlobalDecl()
	if err != nil {
		return nil, err
	}
	decls := []*ast.Node{first}
	end := first.End

	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if tok.Kind == token.LINE_END {
			if _, err := p.lex.AcceptIt(); err != nil {
				return nil, err
			}
			continue
		}
		if !isGlobalDeclStart(tok.Kind) {
			break
		}
		d, err := p.parseGlobalDecl()
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
		end = d.End
	}

	return ast.New(ast.PROGRAM, 0, end, decls...), nil
}

func isGlobalDeclStart(k token.Kind) bool {
	return k == token.FUNC || k == token.CONST || k == token.VAR
}

// skipLineEnds consumes a run of zero or more LINE_END tokens.
func (p *Parser) skipLineEnds() error {
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return err
		}
		if tok.Kind != token.LINE_END {
			return nil
		}
		if _, err := p.lex.AcceptIt(); err != nil {
			return err
		}
	}
}

// globalDecl ::= funcDecl | constDecl | varDecl
func (p *Parser) parseGlobalDecl() (*ast.Node, error) {
	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}

	var child *ast.Node
	switch tok.Kind {
	case token.FUNC:
		child, err = p.parseFuncDecl()
	case token.CONST:
		child, err = p.parseConstDecl()
	case token.VAR:
		child, err = p.parseVarDecl()
	default:
		return nil, p.unexpected(tok)
	}
	if err != nil {
		return nil, err
	}
	return ast.New(ast.GLOBAL_DECL, child.Start, child.End, child), nil
}

// funcDecl ::= "func" ("void" | "non-void") IDENT paramList singleCmd
func (p *Parser) parseFuncDecl() (*ast.Node, error) {
	start, err := p.lex.Accept(token.FUNC)
	if err != nil {
		return nil, err
	}

	voidTok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	var isVoid bool
	switch voidTok.Kind {
	case token.VOID:
		isVoid = true
		if _, err := p.lex.AcceptIt(); err != nil {
			return nil, err
		}
	case token.NON_VOID:
		isVoid = false
		if _, err := p.lex.AcceptIt(); err != nil {
			return nil, err
		}
	default:
		return nil, p.unexpected(voidTok)
	}

	nameTok, err := p.lex.Accept(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	name := ast.New(ast.IDENT_REF, nameTok.Start, nameTok.End)

	params, err := p.parseParamList()
	if err != nil {
		return nil, err
	}
	body, err := p.parseSingleCmd()
	if err != nil {
		return nil, err
	}

	fn := ast.New(ast.FN_DECL, start.Start, body.End, name, params, body)
	fn.IsVoid = isVoid
	fn.ParamCount = len(params.Children)
	return fn, nil
}

// paramList ::= "(" [ IDENT { "," IDENT } ] ")"
func (p *Parser) parseParamList() (*ast.Node, error) {
	lpar, err := p.lex.Accept(token.LPAR)
	if err != nil {
		return nil, err
	}

	var params []*ast.Node
	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == token.IDENTIFIER {
		t, err := p.lex.AcceptIt()
		if err != nil {
			return nil, err
		}
		params = append(params, ast.New(ast.IDENT_REF, t.Start, t.End))

		for {
			tok, err = p.lex.Peek()
			if err != nil {
				return nil, err
			}
			if tok.Kind != token.COMMA {
				break
			}
			if _, err := p.lex.AcceptIt(); err != nil {
				return nil, err
			}
			t, err := p.lex.Accept(token.IDENTIFIER)
			if err != nil {
				return nil, err
			}
			params = append(params, ast.New(ast.IDENT_REF, t.Start, t.End))
		}
	}

	rpar, err := p.lex.Accept(token.RPAR)
	if err != nil {
		return nil, err
	}
	return ast.New(ast.PARAM_LIST, lpar.Start, rpar.End, params...), nil
}

// argList ::= "(" [ expr { "," expr } ] ")"
func (p *Parser) parseArgList() (*ast.Node, error) {
	lpar, err := p.lex.Accept(token.LPAR)
	if err != nil {
		return nil, err
	}

	var args []*ast.Node
	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind != token.RPAR {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, e)

		for {
			tok, err = p.lex.Peek()
			if err != nil {
				return nil, err
			}
			if tok.Kind != token.COMMA {
				break
			}
			if _, err := p.lex.AcceptIt(); err != nil {
				return nil, err
			}
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, e)
		}
	}

	rpar, err := p.lex.Accept(token.RPAR)
	if err != nil {
		return nil, err
	}
	return ast.New(ast.ARG_LIST, lpar.Start, rpar.End, args...), nil
}

// constDecl ::= "const" IDENT "=" expr LINE_END
func (p *Parser) parseConstDecl() (*ast.Node, error) {
	start, err := p.lex.Accept(token.CONST)
	if err != nil {
		return nil, err
	}
	nameTok, err := p.lex.Accept(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	name := ast.New(ast.IDENT_REF, nameTok.Start, nameTok.End)

	if _, err := p.lex.Accept(token.ASSIGN); err != nil {
		return nil, err
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	end, err := p.lex.Accept(token.LINE_END)
	if err != nil {
		return nil, err
	}

	n := ast.New(ast.CONST_DECL, start.Start, end.End, name, val)
	n.IsConstant = true
	return n, nil
}

// varDecl ::= "var" IDENT [ "=" expr ] LINE_END
func (p *Parser) parseVarDecl() (*ast.Node, error) {
	start, err := p.lex.Accept(token.VAR)
	if err != nil {
		return nil, err
	}
	nameTok, err := p.lex.Accept(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	name := ast.New(ast.IDENT_REF, nameTok.Start, nameTok.End)
	children := []*ast.Node{name}

	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == token.ASSIGN {
		if _, err := p.lex.AcceptIt(); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		children = append(children, val)
	}

	end, err := p.lex.Accept(token.LINE_END)
	if err != nil {
		return nil, err
	}
	return ast.New(ast.VAR_DECL, start.Start, end.End, children...), nil
}

// command ::= {LINE_END} { singleCmd {LINE_END} }
func (p *Parser) parseCommand() (*ast.Node, error) {
	start, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if err := p.skipLineEnds(); err != nil {
		return nil, err
	}

	var cmds []*ast.Node
	end := start.Start
	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if !isSingleCmdStart(tok.Kind) {
			break
		}
		c, err := p.parseSingleCmd()
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, c)
		end = c.End
		if err := p.skipLineEnds(); err != nil {
			return nil, err
		}
	}
	return ast.New(ast.COMMAND, start.Start, end, cmds...), nil
}

func isSingleCmdStart(k token.Kind) bool {
	switch k {
	case token.CONST, token.VAR, token.IF, token.WHILE, token.LCPAR,
		token.IDENTIFIER, token.TIMES, token.RETURN:
		return true
	default:
		return false
	}
}

// singleCmd ::= constDecl | varDecl | ifExpr | whileLoop
//
//	| "{" command "}"
//	| identifierCmd | indirectAssign | returnDirective
func (p *Parser) parseSingleCmd() (*ast.Node, error) {
	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}

	var inner *ast.Node
	switch tok.Kind {
	case token.CONST:
		inner, err = p.parseConstDecl()
	case token.VAR:
		inner, err = p.parseVarDecl()
	case token.IF:
		inner, err = p.parseIfExpr()
	case token.WHILE:
		inner, err = p.parseWhileLoop()
	case token.RETURN:
		inner, err = p.parseReturnDirective()
	case token.LCPAR:
		if _, err := p.lex.AcceptIt(); err != nil {
			return nil, err
		}
		inner, err = p.parseCommand()
		if err != nil {
			return nil, err
		}
		if _, err := p.lex.Accept(token.RCPAR); err != nil {
			return nil, err
		}
	case token.IDENTIFIER:
		inner, err = p.parseIdentifierCmd()
	case token.TIMES:
		inner, err = p.parseIndirectAssign()
	default:
		return nil, p.unexpected(tok)
	}
	if err != nil {
		return nil, err
	}
	return ast.New(ast.SINGLE_COMMAND, inner.Start, inner.End, inner), nil
}

// identifierCmd ::= IDENT ( argList | "=" expr ) LINE_END
func (p *Parser) parseIdentifierCmd() (*ast.Node, error) {
	nameTok, err := p.lex.Accept(token.IDENTIFIER)
	if err != nil {
		return nil, err
	}
	name := ast.New(ast.IDENT_REF, nameTok.Start, nameTok.End)

	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}

	var result *ast.Node
	switch tok.Kind {
	case token.LPAR:
		args, err := p.parseArgList()
		if err != nil {
			return nil, err
		}
		result = ast.New(ast.FUNC_CALL, name.Start, args.End, name, args)
	case token.ASSIGN:
		if _, err := p.lex.AcceptIt(); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		result = ast.New(ast.DIRECT_ASSIGN, name.Start, val.End, name, val)
	default:
		return nil, p.unexpected(tok)
	}

	end, err := p.lex.Accept(token.LINE_END)
	if err != nil {
		return nil, err
	}
	result.End = end.End
	return result, nil
}

// indirectAssign ::= "*" primaryExpr "=" expr LINE_END
func (p *Parser) parseIndirectAssign() (*ast.Node, error) {
	start, err := p.lex.Accept(token.TIMES)
	if err != nil {
		return nil, err
	}
	addr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	if _, err := p.lex.Accept(token.ASSIGN); err != nil {
		return nil, err
	}
	val, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	end, err := p.lex.Accept(token.LINE_END)
	if err != nil {
		return nil, err
	}
	return ast.New(ast.INDIRECT_ASSIGN, start.Start, end.End, addr, val), nil
}

// ifExpr ::= "if" expr singleCmd [ "else" singleCmd ]
func (p *Parser) parseIfExpr() (*ast.Node, error) {
	start, err := p.lex.Accept(token.IF)
	if err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	then, err := p.parseSingleCmd()
	if err != nil {
		return nil, err
	}

	children := []*ast.Node{cond, then}
	end := then.End

	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind == token.ELSE {
		if _, err := p.lex.AcceptIt(); err != nil {
			return nil, err
		}
		els, err := p.parseSingleCmd()
		if err != nil {
			return nil, err
		}
		children = append(children, els)
		end = els.End
	}

	return ast.New(ast.IF_EXPR, start.Start, end, children...), nil
}

// whileLoop ::= "while" expr singleCmd
func (p *Parser) parseWhileLoop() (*ast.Node, error) {
	start, err := p.lex.Accept(token.WHILE)
	if err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, err := p.parseSingleCmd()
	if err != nil {
		return nil, err
	}
	return ast.New(ast.WHILE_LOOP, start.Start, body.End, cond, body), nil
}

// returnDirective ::= "return" [ expr ] LINE_END
func (p *Parser) parseReturnDirective() (*ast.Node, error) {
	start, err := p.lex.Accept(token.RETURN)
	if err != nil {
		return nil, err
	}

	var children []*ast.Node
	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}
	if tok.Kind != token.LINE_END && tok.Kind != token.RCPAR {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		children = append(children, e)
	}

	end, err := p.lex.Accept(token.LINE_END)
	if err != nil {
		return nil, err
	}
	return ast.New(ast.RETURN_DIRECTIVE, start.Start, end.End, children...), nil
}

// expr ::= prio(10)
func (p *Parser) parseExpr() (*ast.Node, error) {
	return p.parsePriority(token.MaxPrecedence)
}

// prio(0) ::= primary
// prio(p) ::= prio(p-1) { op(p) prio(p-1) }
//
// Left-associative: each iteration folds the accumulated left-hand side
// and the newly parsed right-hand side into a fresh EXPR node, so the
// tree leans left exactly as spec.md §8 requires.
func (p *Parser) parsePriority(level int) (*ast.Node, error) {
	if level == 0 {
		return p.parsePrimary()
	}

	left, err := p.parsePriority(level - 1)
	if err != nil {
		return nil, err
	}

	for {
		tok, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		prec, ok := token.Precedence(tok.Kind)
		if !ok || prec != level {
			return left, nil
		}
		opTok, err := p.lex.AcceptIt()
		if err != nil {
			return nil, err
		}
		right, err := p.parsePriority(level - 1)
		if err != nil {
			return nil, err
		}

		e := ast.New(ast.EXPR, left.Start, right.End, left, right)
		e.OperationType = opTok.Kind
		e.IsConstant = left.IsConstant && right.IsConstant
		left = e
	}
}

// primary ::= NUMBER | IDENT [argList]
//
//	| "(" expr ")"
//	| ("-"|"~"|"!"|"*") primary
func (p *Parser) parsePrimary() (*ast.Node, error) {
	tok, err := p.lex.Peek()
	if err != nil {
		return nil, err
	}

	switch tok.Kind {
	case token.NUMBER:
		t, err := p.lex.AcceptIt()
		if err != nil {
			return nil, err
		}
		n := ast.New(ast.NUMBER_LITERAL, t.Start, t.End)
		n.IsConstant = true
		n.Val = parseNumberLiteral(p.spellingOf(t))
		return n, nil

	case token.IDENTIFIER:
		t, err := p.lex.AcceptIt()
		if err != nil {
			return nil, err
		}
		ref := ast.New(ast.IDENT_REF, t.Start, t.End)

		next, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if next.Kind == token.LPAR {
			args, err := p.parseArgList()
			if err != nil {
				return nil, err
			}
			call := ast.New(ast.FUNC_CALL, ref.Start, args.End, ref, args)
			return call, nil
		}
		return ref, nil

	case token.LPAR:
		if _, err := p.lex.AcceptIt(); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		end, err := p.lex.Accept(token.RPAR)
		if err != nil {
			return nil, err
		}
		e.End = end.End
		return e, nil

	case token.MINUS, token.BITWISE_NOT, token.NOT, token.TIMES:
		start, err := p.lex.AcceptIt()
		if err != nil {
			return nil, err
		}
		operand, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}
		e := ast.New(ast.EXPR, start.Start, operand.End, operand)
		switch start.Kind {
		case token.MINUS:
			e.OperationType = token.NEGATE
			e.IsConstant = operand.IsConstant
		case token.TIMES:
			e.OperationType = token.DEREF
			e.IsConstant = false
		default:
			e.OperationType = start.Kind
			e.IsConstant = operand.IsConstant
		}
		return e, nil

	default:
		return nil, p.unexpected(tok)
	}
}

// spellingOf needs access to source text for number-base detection; it is
// provided by the lexer's own byte buffer indirectly through Accept/Peek,
// so the parser asks the lexer to resolve it rather than holding its own
// buffer reference.
func (p *Parser) spellingOf(tok token.Token) string {
	return p.lex.Spelling(tok)
}

// parseNumberLiteral classifies a NUMBER token's spelling by the rule in
// spec.md §4.1: a leading "0x"/"0X" is hexadecimal, a leading "0" followed
// by further digits is octal, anything else is decimal. A trailing
// "."-prefixed fractional run is accepted by the lexer but ignored here —
// only the integer part before it contributes to the value.
func parseNumberLiteral(spelling string) int32 {
	digits := spelling
	if dot := indexByte(spelling, '.'); dot >= 0 {
		digits = spelling[:dot]
	}

	base := 10
	if len(digits) >= 2 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		base = 16
		digits = digits[2:]
	} else if len(digits) >= 2 && digits[0] == '0' {
		base = 8
	}

	var val int64
	for i := 0; i < len(digits); i++ {
		val = val*int64(base) + int64(digitValue(digits[i]))
	}
	return int32(val)
}

func digitValue(ch byte) int {
	switch {
	case ch >= '0' && ch <= '9':
		return int(ch - '0')
	case ch >= 'a' && ch <= 'f':
		return int(ch-'a') + 10
	case ch >= 'A' && ch <= 'F':
		return int(ch-'A') + 10
	default:
		return 0
	}
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
