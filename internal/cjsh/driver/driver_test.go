package driver

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/CadenFinley/cjsh-interp/internal/cerr"
	"github.com/CadenFinley/cjsh-interp/internal/cjsh/core"
)

// fakePipeline records every pipeline it was asked to run and resolves
// exit status by a simple convention: argv[0] == "false" -> 1, anything
// else -> 0, so tests can drive both branches of &&/||/if without a real
// process executor.
type fakePipeline struct {
	runs     [][]*core.Command
	statuses []int
}

func (f *fakePipeline) Execute(ctx context.Context, cmds []*core.Command) (int, error) {
	f.runs = append(f.runs, cmds)
	code := 0
	for _, c := range cmds {
		if len(c.Argv) > 0 && c.Argv[0] == "false" {
			code = 1
		}
	}
	f.statuses = make([]int, len(cmds))
	for i := range cmds {
		f.statuses[i] = code
	}
	return code, nil
}

func (f *fakePipeline) LastPipelineStatuses() []int { return f.statuses }

func newTestDriver(p *fakePipeline) *Driver {
	return New(Options{Pipeline: p, IFS: " \t\n"})
}

func TestRunLinesDispatchesSimpleCommand(t *testing.T) {
	p := &fakePipeline{}
	d := newTestDriver(p)
	result, err := d.RunLines(context.Background(), []string{"echo hello world"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %d", result.ExitCode)
	}
	if len(p.runs) != 1 || len(p.runs[0]) != 1 {
		t.Fatalf("expected one single-stage pipeline run, got %+v", p.runs)
	}
	got := p.runs[0][0].Argv
	want := []string{"echo", "hello", "world"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("argv = %v, want %v", got, want)
	}
}

func TestRunLinesIfStatement(t *testing.T) {
	p := &fakePipeline{}
	d := newTestDriver(p)
	lines := []string{
		"if true; then",
		"  echo yes",
		"else",
		"  echo no",
		"fi",
	}
	result, err := d.RunLines(context.Background(), lines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("expected exit 0, got %d", result.ExitCode)
	}
	var ran []string
	for _, run := range p.runs {
		ran = append(ran, run[0].Argv[0])
	}
	if len(ran) != 2 || ran[0] != "true" || ran[1] != "echo" {
		t.Fatalf("expected [true echo], got %v", ran)
	}
}

func TestRunLinesIfFalseBranch(t *testing.T) {
	p := &fakePipeline{}
	d := newTestDriver(p)
	lines := []string{
		"if false; then",
		"  echo yes",
		"else",
		"  echo no",
		"fi",
	}
	if _, err := d.RunLines(context.Background(), lines); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	last := p.runs[len(p.runs)-1][0].Argv
	if last[0] != "echo" || last[1] != "no" {
		t.Fatalf("expected else branch to run, got %v", last)
	}
}

func TestAndOrShortCircuit(t *testing.T) {
	p := &fakePipeline{}
	d := newTestDriver(p)
	if _, err := d.RunLines(context.Background(), []string{"false && echo skipped || echo fallback"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var ran []string
	for _, run := range p.runs {
		ran = append(ran, strings.Join(run[0].Argv, " "))
	}
	if len(ran) != 2 || ran[0] != "false" || ran[1] != "echo fallback" {
		t.Fatalf("expected [false, echo fallback], got %v", ran)
	}
}

func TestErrexitStopsSequence(t *testing.T) {
	p := &fakePipeline{}
	d := newTestDriver(p)
	d.errexit = true
	result, err := d.RunLines(context.Background(), []string{"false", "echo unreachable"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ExitCode != 1 {
		t.Fatalf("expected exit 1, got %d", result.ExitCode)
	}
	if len(p.runs) != 1 {
		t.Fatalf("expected errexit to stop after the first failing command, ran %d", len(p.runs))
	}
}

func TestFunctionDefinitionAndCall(t *testing.T) {
	p := &fakePipeline{}
	d := newTestDriver(p)
	lines := []string{
		"greet() {",
		"  echo hi",
		"}",
		"greet",
	}
	if _, err := d.RunLines(context.Background(), lines); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.HasFunction("greet") {
		t.Fatal("expected greet to be registered")
	}
	if len(p.runs) != 1 || p.runs[0][0].Argv[0] != "echo" {
		t.Fatalf("expected the function body's echo to run through the pipeline, got %+v", p.runs)
	}
}

func TestExpandWordsFieldSplitsUnquoted(t *testing.T) {
	p := &fakePipeline{}
	d := newTestDriver(p)
	d.vars.Set("list", "a b c")
	out, err := d.ExpandWords(context.Background(), []string{"$list"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(out, ",") != "a,b,c" {
		t.Errorf("got %v, want [a b c]", out)
	}
}

func TestExpandWordsKeepsQuotedWhole(t *testing.T) {
	p := &fakePipeline{}
	d := newTestDriver(p)
	d.vars.Set("list", "a b c")
	out, err := d.ExpandWords(context.Background(), []string{`"$list"`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0] != "a b c" {
		t.Errorf("got %v, want one field [a b c]", out)
	}
}

func TestExpandWordsSplitsQuotedPositionalAllPerWord(t *testing.T) {
	p := &fakePipeline{}
	d := newTestDriver(p)
	d.vars.SetTopLevelArgs("script", []string{"one two", "three"})
	out, err := d.ExpandWords(context.Background(), []string{`"$@"`})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 || out[0] != "one two" || out[1] != "three" {
		t.Errorf(`got %v, want ["one two" "three"] as two distinct words`, out)
	}
}

func TestEvaluateArithmeticExpression(t *testing.T) {
	p := &fakePipeline{}
	d := newTestDriver(p)
	v, err := d.EvaluateArithmeticExpression(context.Background(), "2 + 3 * 4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 14 {
		t.Errorf("got %d, want 14", v)
	}
}

func TestExecuteBlockLogsExecID(t *testing.T) {
	p := &fakePipeline{}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	d := New(Options{Pipeline: p, IFS: " \t\n", Logger: logger})

	code, err := d.ExecuteBlock(context.Background(), []string{"echo hi"}, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 0 {
		t.Fatalf("expected exit 0, got %d", code)
	}
	if !strings.Contains(buf.String(), "execute_block starting") {
		t.Errorf("expected a logged execute_block start line, got: %s", buf.String())
	}
}

func TestVerboseLogsEachStatement(t *testing.T) {
	p := &fakePipeline{}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	d := New(Options{Pipeline: p, IFS: " \t\n", Logger: logger, VerboseDefault: true})

	if _, err := d.RunLines(context.Background(), []string{"echo hi"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "+ echo hi") {
		t.Errorf("expected a verbose trace line, got: %s", buf.String())
	}
}

func TestValidateCatchesUnterminatedIf(t *testing.T) {
	p := &fakePipeline{}
	d := newTestDriver(p)
	code, err := d.ExecuteBlock(context.Background(), []string{"if true", "echo hi"}, false)
	if err == nil {
		t.Fatal("expected an error for an unterminated if block")
	}
	if code != core.ExitSyntaxError {
		t.Errorf("got exit %d, want %d", code, core.ExitSyntaxError)
	}
	if !cerr.IsCode(err, cerr.Syntax) {
		t.Errorf("expected a cerr.Syntax error, got %v", err)
	}
}

func TestUnterminatedIfSkippingValidationIsControlFlowTaxonomyError(t *testing.T) {
	p := &fakePipeline{}
	d := newTestDriver(p)
	_, err := d.RunLines(context.Background(), []string{"if true", "echo hi"})
	if !cerr.IsCode(err, cerr.ControlFlow) {
		t.Errorf("expected a cerr.ControlFlow error, got %v", err)
	}
}
