package compiler

import (
	"bytes"
	"strings"
	"testing"

	"github.com/aidanundheim/smlc/internal/diag"
)

func TestCompileProducesAssembly(t *testing.T) {
	var stderr bytes.Buffer
	c := NewFromString("func void main() { return }\n", diag.New(&stderr))

	asm, err := c.Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v (stderr=%q)", err, stderr.String())
	}
	if !strings.Contains(asm, "main:") {
		t.Errorf("expected main label in output:\n%s", asm)
	}
	if !strings.Contains(asm, ".pos 0x1000") {
		t.Errorf("expected program prologue:\n%s", asm)
	}
}

func TestCompileReturnsFatalErrorOnParseFailure(t *testing.T) {
	var stderr bytes.Buffer
	c := NewFromString("func void main() { ", diag.New(&stderr))

	if _, err := c.Compile(); err == nil {
		t.Fatal("expected an error for unterminated program")
	}
}

func TestSetDebugAnnotatesOutput(t *testing.T) {
	var stderr bytes.Buffer
	c := NewFromString("func void main() { return }\n", diag.New(&stderr))
	c.SetDebug(true)

	asm, err := c.Compile()
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if !strings.Contains(asm, "; RETURN_DIRECTIVE") {
		t.Errorf("expected debug annotation with SetDebug(true):\n%s", asm)
	}
}
