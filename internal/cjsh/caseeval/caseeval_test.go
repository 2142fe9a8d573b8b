package caseeval

import (
	"context"
	"testing"

	"github.com/CadenFinley/cjsh-interp/internal/cjsh/core"
)

type fakeRunner struct{ ran []string }

func (f *fakeRunner) RunLines(ctx context.Context, lines []string) (core.Result, error) {
	f.ran = append(f.ran, lines...)
	return core.OK(0), nil
}

func (f *fakeRunner) ExpandWord(ctx context.Context, word string) (string, error) {
	return word, nil
}

func TestFindBlockEndInline(t *testing.T) {
	end, ok := FindBlockEnd([]string{"case apple in a*) echo fruit;; *) echo other;; esac"}, 0)
	if !ok || end != 0 {
		t.Fatalf("expected end 0, got %d ok=%v", end, ok)
	}
}

func TestEvalMatchesFirstSection(t *testing.T) {
	runner := &fakeRunner{}
	lines := []string{"case apple in a*) echo fruit;; *) echo other;; esac"}
	if _, err := Eval(context.Background(), runner, lines, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runner.ran) != 1 || runner.ran[0] != "echo fruit" {
		t.Fatalf("expected 'echo fruit' to run, got %v", runner.ran)
	}
}

func TestEvalAlternationMatch(t *testing.T) {
	runner := &fakeRunner{}
	lines := []string{"case abc in x|a*) echo matched;; esac"}
	if _, err := Eval(context.Background(), runner, lines, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runner.ran) != 1 || runner.ran[0] != "echo matched" {
		t.Fatalf("expected alternation match, got %v", runner.ran)
	}
}

func TestEvalPreservesQuotingInSectionBody(t *testing.T) {
	runner := &fakeRunner{}
	lines := []string{`case apple in a*) echo "$y";; esac`}
	if _, err := Eval(context.Background(), runner, lines, 0, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runner.ran) != 1 || runner.ran[0] != `echo "$y"` {
		t.Fatalf("expected body to retain double quotes around $y, got %v", runner.ran)
	}
}

func TestEvalNoMatchIsNoop(t *testing.T) {
	runner := &fakeRunner{}
	lines := []string{"case zzz in a*) echo a;; b*) echo b;; esac"}
	r, err := Eval(context.Background(), runner, lines, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runner.ran) != 0 {
		t.Fatalf("expected no section to run, got %v", runner.ran)
	}
	if r.ExitCode != 0 {
		t.Errorf("expected exit 0 on no match, got %d", r.ExitCode)
	}
}
