package function

import (
	"context"
	"testing"

	"github.com/CadenFinley/cjsh-interp/internal/cjsh/core"
)

type fakeRunner struct {
	result core.Result
	ran    []string
}

func (f *fakeRunner) RunLines(ctx context.Context, lines []string) (core.Result, error) {
	f.ran = lines
	return f.result, nil
}

type fakeScopes struct {
	pushed []string
	popped bool
}

func (s *fakeScopes) PushScope(args []string) { s.pushed = args }
func (s *fakeScopes) PopScope()               { s.popped = true }

func TestDetectDefinitionParenForm(t *testing.T) {
	name, ok := DetectDefinition("greet() {")
	if !ok || name != "greet" {
		t.Fatalf("got name=%q ok=%v", name, ok)
	}
}

func TestDetectDefinitionFunctionKeyword(t *testing.T) {
	name, ok := DetectDefinition("function greet {")
	if !ok || name != "greet" {
		t.Fatalf("got name=%q ok=%v", name, ok)
	}
}

func TestDetectDefinitionRejectsPlainCommand(t *testing.T) {
	if _, ok := DetectDefinition("echo hello"); ok {
		t.Fatal("plain command should not be detected as a function definition")
	}
}

func TestDefineAndCallInline(t *testing.T) {
	reg := NewRegistry()
	lines := []string{`f(){ local a=1; echo $a; }`}
	end, ok := FindBlockEnd(lines, 0)
	if !ok || end != 0 {
		t.Fatalf("expected inline block end 0, got %d ok=%v", end, ok)
	}
	name, err := reg.Define(lines, 0, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "f" {
		t.Fatalf("expected name f, got %q", name)
	}
	if !reg.IsFunction("f") {
		t.Fatal("expected f to be registered")
	}

	runner := &fakeRunner{result: core.Return(3)}
	scopes := &fakeScopes{}
	code, err := reg.Call(context.Background(), runner, scopes, "f", []string{"x", "y"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 3 {
		t.Errorf("expected exit code 3, got %d", code)
	}
	if !scopes.popped {
		t.Error("expected scope to be popped after call")
	}
	if len(scopes.pushed) != 2 || scopes.pushed[0] != "x" {
		t.Errorf("expected positional args to be pushed, got %v", scopes.pushed)
	}
}

func TestCallUnknownFunction(t *testing.T) {
	reg := NewRegistry()
	runner := &fakeRunner{result: core.OK(0)}
	scopes := &fakeScopes{}
	if _, err := reg.Call(context.Background(), runner, scopes, "missing", nil); err == nil {
		t.Fatal("expected error calling undefined function")
	}
}
