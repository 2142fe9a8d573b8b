package validator

import (
	"testing"

	"github.com/CadenFinley/cjsh-interp/internal/cjsh/core"
)

func findCode(errs []core.SyntaxError, code string) bool {
	for _, e := range errs {
		if e.Code == code {
			return true
		}
	}
	return false
}

func TestUnclosedQuoteIsCritical(t *testing.T) {
	v := New()
	errs := v.Validate([]string{`echo "hello`})
	if !HasCritical(errs) {
		t.Fatal("expected a critical finding for an unclosed quote")
	}
	if !findCode(errs, "SYN001") {
		t.Errorf("expected SYN001 among findings, got %+v", errs)
	}
}

func TestUnterminatedIfIsCritical(t *testing.T) {
	v := New()
	errs := v.Validate([]string{"if true", "echo hi"})
	if !HasCritical(errs) {
		t.Fatal("expected a critical finding for an unterminated if block")
	}
}

func TestStrayFiIsError(t *testing.T) {
	v := New()
	errs := v.Validate([]string{"echo hi", "fi"})
	if !findCode(errs, "CF001") {
		t.Errorf("expected CF001, got %+v", errs)
	}
}

func TestRedirectionMissingTarget(t *testing.T) {
	v := New()
	errs := v.Validate([]string{"echo hi >"})
	if !findCode(errs, "RED001") {
		t.Errorf("expected RED001, got %+v", errs)
	}
}

func TestDoubledRedirectionOperator(t *testing.T) {
	v := New()
	errs := v.Validate([]string{"echo hi >> > out.txt"})
	if !findCode(errs, "RED005") {
		t.Errorf("expected RED005, got %+v", errs)
	}
}

func TestArithmeticUnclosed(t *testing.T) {
	v := New()
	errs := v.Validate([]string{"echo $((1 + 2"})
	if !findCode(errs, "ARITH001") {
		t.Errorf("expected ARITH001, got %+v", errs)
	}
}

func TestArithmeticTrailingOperator(t *testing.T) {
	v := New()
	errs := v.Validate([]string{"echo $((1 + ))"})
	if !findCode(errs, "ARITH003") {
		t.Errorf("expected ARITH003, got %+v", errs)
	}
}

func TestCommandNotFoundSuggestsCandidate(t *testing.T) {
	v := New()
	v.KnownCommands = []string{"echo", "export", "exit"}
	errs := v.Validate([]string{"ehco hi"})
	if !findCode(errs, "CMD001") {
		t.Errorf("expected CMD001 suggestion, got %+v", errs)
	}
}

func TestComplexConditionSuggestsFormattedRewrite(t *testing.T) {
	v := New()
	errs := v.Validate([]string{
		`if true && true && true && true && true; then echo yes; fi`,
	})
	found := false
	for _, e := range errs {
		if e.Code == "STYLE001" {
			found = true
			if e.Suggestion == "" {
				t.Errorf("expected a non-empty formatted suggestion, got %+v", e)
			}
		}
	}
	if !found {
		t.Errorf("expected STYLE001 among findings, got %+v", errs)
	}
}

func TestValidScriptHasNoCriticalFindings(t *testing.T) {
	v := New()
	errs := v.Validate([]string{
		"if true; then",
		"  echo hi",
		"fi",
	})
	if HasCritical(errs) {
		t.Errorf("expected no critical findings, got %+v", errs)
	}
}
