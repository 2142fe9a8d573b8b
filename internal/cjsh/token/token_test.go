package token

import (
	"testing"

	"github.com/CadenFinley/cjsh-interp/internal/cjsh/core"
)

func values(toks []core.Token) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Value
	}
	return out
}

func TestTokenizeWords(t *testing.T) {
	toks, err := Tokenize("echo hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := values(toks)
	want := []string{"echo", "hello", "world"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestTokenizeOperators(t *testing.T) {
	toks, err := Tokenize("a && b || c")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var ops []string
	for _, tok := range toks {
		if tok.IsOperator {
			ops = append(ops, tok.Value)
		}
	}
	if len(ops) != 2 || ops[0] != "&&" || ops[1] != "||" {
		t.Fatalf("got operators %v, want [&& ||]", ops)
	}
}

func TestTokenizeMergedRedirection(t *testing.T) {
	toks, err := Tokenize("cmd 2>&1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := toks[len(toks)-1]
	if !last.IsOperator || last.Value != "2>&1" {
		t.Fatalf("expected merged redirection token \"2>&1\", got %+v", last)
	}
}

func TestTokenizeQuoting(t *testing.T) {
	toks, err := Tokenize(`echo "hello world"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(toks) != 2 {
		t.Fatalf("expected 2 tokens, got %d (%v)", len(toks), values(toks))
	}
	if toks[1].Value != "hello world" || toks[1].Quote != core.DoubleQuoted {
		t.Fatalf("unexpected second token: %+v", toks[1])
	}
}

func TestTokenizeUnclosedQuote(t *testing.T) {
	_, err := Tokenize(`echo "hello`)
	if err == nil {
		t.Fatal("expected error for unclosed quote")
	}
	uq, ok := err.(*ErrUnclosedQuote)
	if !ok {
		t.Fatalf("expected *ErrUnclosedQuote, got %T", err)
	}
	if uq.Column != 6 {
		t.Errorf("expected column 6, got %d", uq.Column)
	}
}
