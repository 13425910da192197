package lexer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aidanundheim/smlc/internal/buffer"
	"github.com/aidanundheim/smlc/internal/diag"
	"github.com/aidanundheim/smlc/internal/token"
)

func newLexer(src string) (*Lexer, *bytes.Buffer) {
	var stderr bytes.Buffer
	buf := buffer.New(strings.NewReader(src))
	return New(buf, diag.New(&stderr)), &stderr
}

func collectKinds(t *testing.T, src string) []token.Kind {
	t.Helper()
	l, _ := newLexer(src)
	var kinds []token.Kind
	for {
		tok, err := l.AcceptIt()
		if err != nil {
			t.Fatalf("unexpected lexer error: %v", err)
		}
		kinds = append(kinds, tok.Kind)
		if tok.Kind == token.EOF {
			break
		}
	}
	return kinds
}

func TestPeekIsIdempotent(t *testing.T) {
	l, _ := newLexer("+ -")
	first, err := l.Peek()
	if err != nil {
		t.Fatal(err)
	}
	second, err := l.Peek()
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Errorf("Peek() changed between calls: %v != %v", first, second)
	}
}

func TestKeywordsCaseInsensitive(t *testing.T) {
	for _, src := range []string{"if", "If", "IF", "iF"} {
		l, _ := newLexer(src)
		tok, err := l.Peek()
		if err != nil {
			t.Fatal(err)
		}
		if tok.Kind != token.IF {
			t.Errorf("%q: got %v, want IF", src, tok.Kind)
		}
	}
}

func TestNonVoidIsOneToken(t *testing.T) {
	kinds := collectKinds(t, "non-void")
	want := []token.Kind{token.NON_VOID, token.EOF}
	if len(kinds) != len(want) || kinds[0] != want[0] {
		t.Fatalf("got %v, want %v", kinds, want)
	}
}

func TestMultiCharOperators(t *testing.T) {
	kinds := collectKinds(t, "< <= << > >= >> = == ! !=")
	want := []token.Kind{
		token.LESS_THAN, token.LESS_THAN_EQUALS, token.LEFT_SHIFT,
		token.GREATER_THAN, token.GREATER_THAN_EQUALS, token.RIGHT_SHIFT,
		token.ASSIGN, token.EQUALS,
		token.NOT, token.NOT_EQUALS,
		token.EOF,
	}
	if len(kinds) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(kinds), len(want), kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("token %d: got %v, want %v", i, kinds[i], want[i])
		}
	}
}

func TestNumberBases(t *testing.T) {
	l, _ := newLexer("0x1F 017 42")
	for range []string{"0x1F", "017", "42"} {
		tok, err := l.AcceptIt()
		if err != nil {
			t.Fatal(err)
		}
		if tok.Kind != token.NUMBER {
			t.Fatalf("expected NUMBER, got %v", tok.Kind)
		}
	}
}

func TestLineEndAndBlankLines(t *testing.T) {
	kinds := collectKinds(t, "var x\n\n\nvar y\n")
	count := 0
	for _, k := range kinds {
		if k == token.LINE_END {
			count++
		}
	}
	if count != 4 {
		t.Errorf("expected 4 LINE_END tokens, got %d (%v)", count, kinds)
	}
}

func TestUnrecognizedTokenIsFatal(t *testing.T) {
	l, _ := newLexer("$")
	_, err := l.Peek()
	if err == nil {
		t.Fatal("expected an error for an unrecognised character")
	}
	if !strings.Contains(err.Error(), "Unrecognized token: $") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestAcceptMismatchIsSoftError(t *testing.T) {
	l, stderr := newLexer(")")
	tok, err := l.Accept(token.LPAR)
	if err != nil {
		t.Fatalf("Accept should not return a fatal error on mismatch: %v", err)
	}
	if tok.Kind != token.RPAR {
		t.Errorf("Accept should still consume the wrong token, got %v", tok.Kind)
	}
	if !strings.Contains(stderr.String(), "Expected `(` but got `)`") {
		t.Errorf("diagnostic = %q", stderr.String())
	}
}

func TestTerminatesWithinNPlusOneBytes(t *testing.T) {
	src := "var x = 1\nfunc void main() { x = 2 }\n"
	l, _ := newLexer(src)
	read := 0
	for {
		tok, err := l.AcceptIt()
		if err != nil {
			t.Fatal(err)
		}
		if tok.End > read {
			read = tok.End
		}
		if tok.Kind == token.EOF {
			break
		}
	}
	if read > len(src)+1 {
		t.Errorf("lexer consumed %d bytes for a %d byte input", read, len(src))
	}
}
