// Package lexer turns the raw bytes of an SML program into a stream of
// tokens (spec.md §4.1). It keeps at most one token of lookahead buffered
// at a time, operating over an index into a shared buffer.Buffer rather
// than allocating its own copy of the input — spans on the tokens it
// produces are indices into that same buffer.
package lexer

import (
	"io"
	"strings"

	"github.com/aidanundheim/smlc/internal/buffer"
	"github.com/aidanundheim/smlc/internal/diag"
	"github.com/aidanundheim/smlc/internal/token"
)

// Lexer holds our object-state: the shared input buffer, our current
// read cursor into it, and at most one cached lookahead token.
type Lexer struct {
	buf    *buffer.Buffer
	pos    int
	cached *token.Token
	diag   *diag.Sink
}

// New creates a Lexer reading from buf, reporting diagnostics through sink.
func New(buf *buffer.Buffer, sink *diag.Sink) *Lexer {
	return &Lexer{buf: buf, diag: sink}
}

// Peek produces (or returns the already-cached) next token without
// consuming it. Calling Peek twice without an intervening AcceptIt
// returns the identical token.
func (l *Lexer) Peek() (token.Token, error) {
	if l.cached == nil {
		tok, err := l.scan()
		if err != nil {
			return token.Token{}, err
		}
		l.cached = &tok
	}
	return *l.cached, nil
}

// AcceptIt discards the cached lookahead token (producing one first if
// necessary) and returns it, advancing the stream by one token.
func (l *Lexer) AcceptIt() (token.Token, error) {
	tok, err := l.Peek()
	if err != nil {
		return token.Token{}, err
	}
	l.cached = nil
	return tok, nil
}

// Accept is AcceptIt after asserting the lookahead token matches kind. A
// mismatch is a soft error (spec.md §7): a diagnostic is reported but the
// wrong token is consumed anyway and parsing proceeds. The one exception
// is a `}` where a LINE_END is expected: it ends the statement without a
// diagnostic and is left unconsumed for the enclosing block to close on,
// and an empty LINE_END token at the `}`'s position is returned.
func (l *Lexer) Accept(kind token.Kind) (token.Token, error) {
	tok, err := l.Peek()
	if err != nil {
		return token.Token{}, err
	}
	if kind == token.LINE_END && tok.Kind == token.RCPAR {
		return token.Token{Kind: token.LINE_END, Start: tok.Start, End: tok.Start}, nil
	}
	if tok.Kind != kind {
		l.diag.Softf("Expected `%s` but got `%s`", kind, l.spelling(tok))
	}
	return l.AcceptIt()
}

// spelling returns the literal source text a token covers.
func (l *Lexer) spelling(tok token.Token) string {
	return l.buf.String(tok.Start, tok.End)
}

// Spelling exposes spelling to callers outside the package (the parser
// needs it for number-base detection and diagnostic text).
func (l *Lexer) Spelling(tok token.Token) string {
	return l.spelling(tok)
}

// byteAt returns the byte at absolute buffer index i, or 0 if i is at or
// past EOF. 0 is never a valid SML source byte so it is safe to use as a
// sentinel, mirroring the original implementation's use of the NUL rune.
func (l *Lexer) byteAt(i int) byte {
	b, err := l.buf.ReadByteAt(i)
	if err != nil {
		return 0
	}
	return b
}

// atEOF reports whether index i is at or past the end of input.
func (l *Lexer) atEOF(i int) bool {
	_, err := l.buf.ReadByteAt(i)
	return err == io.EOF
}

// scan finds and returns the next token, skipping intervening
// space/tab (spec.md §4.1: "space and horizontal tab are skipped between
// tokens").
func (l *Lexer) scan() (token.Token, error) {
	l.skipWhitespace()

	start := l.pos
	if l.atEOF(l.pos) {
		return token.Token{Kind: token.EOF, Start: start, End: start}, nil
	}

	ch := l.byteAt(l.pos)

	switch {
	case ch == '\n':
		l.pos++
		return token.Token{Kind: token.LINE_END, Start: start, End: l.pos}, nil
	case isDigit(ch):
		return l.scanNumber(), nil
	case isLetter(ch):
		return l.scanIdentifierOrKeyword(), nil
	}

	switch ch {
	case '(':
		l.pos++
		return token.Token{Kind: token.LPAR, Start: start, End: l.pos}, nil
	case ')':
		l.pos++
		return token.Token{Kind: token.RPAR, Start: start, End: l.pos}, nil
	case '{':
		l.pos++
		return token.Token{Kind: token.LCPAR, Start: start, End: l.pos}, nil
	case '}':
		l.pos++
		return token.Token{Kind: token.RCPAR, Start: start, End: l.pos}, nil
	case ',':
		l.pos++
		return token.Token{Kind: token.COMMA, Start: start, End: l.pos}, nil
	case '+':
		l.pos++
		return token.Token{Kind: token.PLUS, Start: start, End: l.pos}, nil
	case '-':
		l.pos++
		return token.Token{Kind: token.MINUS, Start: start, End: l.pos}, nil
	case '*':
		l.pos++
		return token.Token{Kind: token.TIMES, Start: start, End: l.pos}, nil
	case '/':
		l.pos++
		return token.Token{Kind: token.DIVIDE, Start: start, End: l.pos}, nil
	case '%':
		l.pos++
		return token.Token{Kind: token.MODULO, Start: start, End: l.pos}, nil
	case '~':
		l.pos++
		return token.Token{Kind: token.BITWISE_NOT, Start: start, End: l.pos}, nil
	case '&':
		l.pos++
		return token.Token{Kind: token.BITWISE_AND, Start: start, End: l.pos}, nil
	case '^':
		l.pos++
		return token.Token{Kind: token.BITWISE_XOR, Start: start, End: l.pos}, nil
	case '|':
		l.pos++
		return token.Token{Kind: token.BITWISE_OR, Start: start, End: l.pos}, nil
	case '<':
		l.pos++
		if l.byteAt(l.pos) == '<' {
			l.pos++
			return token.Token{Kind: token.LEFT_SHIFT, Start: start, End: l.pos}, nil
		}
		if l.byteAt(l.pos) == '=' {
			l.pos++
			return token.Token{Kind: token.LESS_THAN_EQUALS, Start: start, End: l.pos}, nil
		}
		return token.Token{Kind: token.LESS_THAN, Start: start, End: l.pos}, nil
	case '>':
		l.pos++
		if l.byteAt(l.pos) == '>' {
			l.pos++
			return token.Token{Kind: token.RIGHT_SHIFT, Start: start, End: l.pos}, nil
		}
		if l.byteAt(l.pos) == '=' {
			l.pos++
			return token.Token{Kind: token.GREATER_THAN_EQUALS, Start: start, End: l.pos}, nil
		}
		return token.Token{Kind: token.GREATER_THAN, Start: start, End: l.pos}, nil
	case '=':
		l.pos++
		if l.byteAt(l.pos) == '=' {
			l.pos++
			return token.Token{Kind: token.EQUALS, Start: start, End: l.pos}, nil
		}
		return token.Token{Kind: token.ASSIGN, Start: start, End: l.pos}, nil
	case '!':
		l.pos++
		if l.byteAt(l.pos) == '=' {
			l.pos++
			return token.Token{Kind: token.NOT_EQUALS, Start: start, End: l.pos}, nil
		}
		return token.Token{Kind: token.NOT, Start: start, End: l.pos}, nil
	}

	return token.Token{}, l.diag.Fatalf("Unrecognized token: %c", ch)
}

// skipWhitespace advances past runs of space and horizontal tab. Newlines
// are significant (they become LINE_END tokens) and are left for scan.
func (l *Lexer) skipWhitespace() {
	for {
		ch := l.byteAt(l.pos)
		if ch != ' ' && ch != '\t' {
			return
		}
		l.pos++
	}
}

// scanNumber recognises decimal, octal (leading 0) and hexadecimal
// (leading 0x/0X) numerals, and the forward-compatible fractional suffix
// described in spec.md §4.1. The base itself is determined later, from
// the token's spelling, by the parser.
func (l *Lexer) scanNumber() token.Token {
	start := l.pos

	if l.byteAt(l.pos) == '0' && (l.byteAt(l.pos+1) == 'x' || l.byteAt(l.pos+1) == 'X') {
		l.pos += 2
		for isHexDigit(l.byteAt(l.pos)) {
			l.pos++
		}
	} else {
		for isDigit(l.byteAt(l.pos)) {
			l.pos++
		}
	}

	if l.byteAt(l.pos) == '.' && isDigit(l.byteAt(l.pos+1)) {
		l.pos++
		for isDigit(l.byteAt(l.pos)) {
			l.pos++
		}
	}

	return token.Token{Kind: token.NUMBER, Start: start, End: l.pos}
}

// scanIdentifierOrKeyword reads [A-Za-z][A-Za-z0-9]* and classifies it
// against the (case-insensitive) closed keyword set. "non-void" is the
// one keyword containing a hyphen, so it gets its own look-ahead: after
// reading a plain identifier that spells "non", a following "-void" is
// folded into the same token.
func (l *Lexer) scanIdentifierOrKeyword() token.Token {
	start := l.pos
	for isLetter(l.byteAt(l.pos)) || isDigit(l.byteAt(l.pos)) {
		l.pos++
	}

	if strings.EqualFold(l.spelling(token.Token{Start: start, End: l.pos}), "non") && l.byteAt(l.pos) == '-' {
		save := l.pos
		l.pos++ // consume '-'
		voidStart := l.pos
		for isLetter(l.byteAt(l.pos)) {
			l.pos++
		}
		if strings.EqualFold(l.spelling(token.Token{Start: voidStart, End: l.pos}), "void") {
			return token.Token{Kind: token.NON_VOID, Start: start, End: l.pos}
		}
		l.pos = save
	}

	tok := token.Token{Kind: token.IDENTIFIER, Start: start, End: l.pos}
	if kw, ok := token.LookupKeyword(l.spelling(tok)); ok {
		tok.Kind = kw
	}
	return tok
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func isLetter(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}
