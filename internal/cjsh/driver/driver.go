// Package driver implements the interpreter driver (§4.13): the
// top-level per-line loop that ties every other internal/cjsh/* package
// together. It is grounded on the original interpreter.cpp's main
// execution loop and on taskguild's execute_script.go for how a single
// "run this and report the outcome" entry point is shaped, adapted from
// a one-shot RPC handler into the repeatedly re-entered recursive
// dispatcher the compound-statement evaluators need.
package driver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/CadenFinley/cjsh-interp/internal/cerr"
	"github.com/CadenFinley/cjsh-interp/internal/clog"
	"github.com/CadenFinley/cjsh-interp/internal/cjsh/arith"
	"github.com/CadenFinley/cjsh-interp/internal/cjsh/caseeval"
	"github.com/CadenFinley/cjsh-interp/internal/cjsh/cond"
	"github.com/CadenFinley/cjsh-interp/internal/cjsh/core"
	"github.com/CadenFinley/cjsh-interp/internal/cjsh/function"
	"github.com/CadenFinley/cjsh-interp/internal/cjsh/loop"
	"github.com/CadenFinley/cjsh-interp/internal/cjsh/paramexpand"
	"github.com/CadenFinley/cjsh-interp/internal/cjsh/quotescan"
	"github.com/CadenFinley/cjsh-interp/internal/cjsh/token"
	"github.com/CadenFinley/cjsh-interp/internal/cjsh/validator"
	"github.com/CadenFinley/cjsh-interp/internal/cjsh/variable"
)

// Options configures a Driver at construction time.
type Options struct {
	Pipeline          core.PipelineExecutor
	Commands          core.CommandExecutor
	Builtins          core.BuiltinRegistry
	Signals           core.SignalHandler
	Logger            *slog.Logger
	IFS               string
	ErrexitDefault    bool
	VerboseDefault    bool
	MaxFunctionDepth  int
	MaxLoopIterations int
}

// Driver is the interpreter's mutable runtime state: variable manager,
// function table, the external collaborators from §6, and the errexit/
// verbose toggles a running script can flip with `set`.
type Driver struct {
	vars     *variable.Manager
	funcs    *function.Registry
	pipeline core.PipelineExecutor
	cmds     core.CommandExecutor
	builtins core.BuiltinRegistry
	signals  core.SignalHandler
	log      *slog.Logger

	arithEval *arith.Evaluator
	paramEval *paramexpand.Evaluator

	errexit    bool
	verbose    bool
	funcDepth  int
	maxFnDepth int
	maxLoopIter int
}

func New(opts Options) *Driver {
	d := &Driver{
		vars:        variable.New(opts.IFS),
		funcs:       function.NewRegistry(),
		pipeline:    opts.Pipeline,
		cmds:        opts.Commands,
		builtins:    opts.Builtins,
		signals:     opts.Signals,
		log:         opts.Logger,
		errexit:     opts.ErrexitDefault,
		verbose:     opts.VerboseDefault,
		maxFnDepth:  opts.MaxFunctionDepth,
		maxLoopIter: opts.MaxLoopIterations,
	}
	if d.maxFnDepth == 0 {
		d.maxFnDepth = 1000
	}
	if d.maxLoopIter == 0 {
		d.maxLoopIter = 10000000
	}
	d.arithEval = arith.New(d.readArithVar, d.writeArithVar)
	d.paramEval = paramexpand.New(d.vars)
	return d
}

// Variables exposes the variable manager for a host that wants to seed
// $0/argv or inspect $? after a run.
func (d *Driver) Variables() *variable.Manager { return d.vars }

func (d *Driver) readArithVar(name string) (int64, error) {
	v, _ := d.vars.Get(name)
	return parseArithOperand(v), nil
}

func (d *Driver) writeArithVar(name string, value int64) error {
	return d.vars.Set(name, fmt.Sprintf("%d", value))
}

func parseArithOperand(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	var neg bool
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0
		}
		n = n*10 + int64(c-'0')
	}
	if neg {
		n = -n
	}
	return n
}

// --- §6 core entry points ---

// ParseIntoLines splits a raw script into lines on "\n", trimming a
// trailing "\r" from each. Here-document bodies are not extracted here;
// RunLines collects them when it reaches the line that opens one.
func ParseIntoLines(script string) []string {
	raw := strings.Split(script, "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		out = append(out, strings.TrimRight(l, "\r"))
	}
	return out
}

// Validate runs the syntax validator (§4.12) over lines.
func (d *Driver) Validate(lines []string) []core.SyntaxError {
	v := validator.New()
	if d.builtins != nil {
		v.KnownCommands = knownCommandNames(d.builtins, d.funcs)
	}
	return v.Validate(lines)
}

func knownCommandNames(b core.BuiltinRegistry, f *function.Registry) []string {
	names := f.Names()
	// BuiltinRegistry only exposes IsBuiltin (a membership test), not an
	// enumeration, so command-not-found suggestions only draw from the
	// function table unless the host also seeds them in separately.
	return names
}

// ExecuteBlock runs lines[0:] as a script body (§6's execute_block),
// honoring skipValidation for hosts that already validated separately.
// One ULID is minted per call and attached to ctx as clog's exec_id
// attribute, so every log line the validator or driver emits while
// running this block can be correlated back to it.
func (d *Driver) ExecuteBlock(ctx context.Context, lines []string, skipValidation bool) (int, error) {
	ctx = clog.ContextWithSlog(ctx)
	clog.AddExecID(ctx, ulid.Make().String())
	d.logCtx(ctx, slog.LevelDebug, "execute_block starting", "lines", len(lines))

	if !skipValidation {
		diags := d.Validate(lines)
		if validator.HasCritical(diags) {
			err := cerr.NewError(cerr.Syntax, fmt.Sprintf("script has %d syntax error(s), first: %s", len(diags), firstCritical(diags)), nil)
			clog.AddError(ctx, err)
			d.logCtx(ctx, slog.LevelError, "execute_block rejected by validator", "error", err)
			return core.ExitSyntaxError, err
		}
	}
	result, err := d.RunLines(ctx, lines)
	if err != nil {
		clog.AddError(ctx, err)
		d.logCtx(ctx, slog.LevelError, "execute_block failed", "error", err, "exit_code", result.ExitCode)
		return result.ExitCode, err
	}
	d.logCtx(ctx, slog.LevelDebug, "execute_block finished", "exit_code", result.ExitCode)
	return result.ExitCode, nil
}

// logCtx is a no-op when no Logger was configured, so Options.Logger can
// stay nil for tests and embedders that don't want interpreter logging.
func (d *Driver) logCtx(ctx context.Context, level slog.Level, msg string, args ...any) {
	if d.log == nil {
		return
	}
	d.log.Log(ctx, level, msg, args...)
}

func firstCritical(diags []core.SyntaxError) string {
	for _, d := range diags {
		if d.Severity == core.SeverityCritical {
			return fmt.Sprintf("line %d: %s", d.Line, d.Message)
		}
	}
	return ""
}

func (d *Driver) HasFunction(name string) bool { return d.funcs.IsFunction(name) }
func (d *Driver) FunctionNames() []string      { return d.funcs.Names() }

func (d *Driver) InvokeFunction(ctx context.Context, argv []string) (int, error) {
	if len(argv) == 0 {
		return core.ExitGeneralFailure, fmt.Errorf("invoke_function: empty argv")
	}
	return d.callFunction(ctx, argv[0], argv[1:])
}

func (d *Driver) ExpandParameterExpression(text string) (string, error) {
	return d.paramEval.Expand(text)
}

func (d *Driver) EvaluateArithmeticExpression(ctx context.Context, text string) (int64, error) {
	return d.arithEval.Eval(text)
}

// --- RunLines: the recursive block runner every evaluator calls back
// into (cond.BlockRunner, loop.BlockRunner, caseeval.BlockRunner,
// function.BlockRunner all resolve to this one method set) ---

// RunLines executes a sequence of lines exactly like the top-level
// script loop (§4.13 steps 1-6), recursing into compound statements as
// it finds them. It stops and returns immediately on any control-flow
// Result (break/continue/return) or Fatal, per §7's propagation rule.
func (d *Driver) RunLines(ctx context.Context, lines []string) (core.Result, error) {
	var last core.Result
	i := 0
	for i < len(lines) {
		if d.signals != nil && d.signals.HasPending() {
			p := d.signals.Drain()
			return core.OK(core.ExitSignalBase + p.SignalNumber()), nil
		}

		line := stripComment(lines[i])
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			i++
			continue
		}

		if kind, ok := loop.IsStart(trimmed); ok {
			end, found := loop.FindBlockEnd(lines, i)
			if !found {
				err := cerr.NewError(cerr.ControlFlow, fmt.Sprintf("unterminated loop starting at %q", trimmed), nil)
				return core.Fatal(err), err
			}
			_ = kind
			result, err := loop.Eval(ctx, d, lines, i, end)
			if err != nil || result.IsControlFlow() || result.Kind == core.ResultFatal {
				return result, err
			}
			last = result
			i = end + 1
			continue
		}

		if cond.IsStart(trimmed) {
			end, found := cond.FindBlockEnd(lines, i)
			if !found {
				err := cerr.NewError(cerr.ControlFlow, fmt.Sprintf("unterminated if starting at %q", trimmed), nil)
				return core.Fatal(err), err
			}
			result, err := cond.Eval(ctx, d, lines, i, end)
			if err != nil || result.IsControlFlow() || result.Kind == core.ResultFatal {
				return result, err
			}
			last = result
			i = end + 1
			continue
		}

		if caseeval.IsStart(trimmed) {
			end, found := caseeval.FindBlockEnd(lines, i)
			if !found {
				err := cerr.NewError(cerr.ControlFlow, fmt.Sprintf("unterminated case starting at %q", trimmed), nil)
				return core.Fatal(err), err
			}
			result, err := caseeval.Eval(ctx, d, lines, i, end)
			if err != nil || result.IsControlFlow() || result.Kind == core.ResultFatal {
				return result, err
			}
			last = result
			i = end + 1
			continue
		}

		if _, ok := function.DetectDefinition(trimmed); ok {
			end, found := function.FindBlockEnd(lines, i)
			if !found {
				err := cerr.NewError(cerr.ControlFlow, fmt.Sprintf("unterminated function definition at %q", trimmed), nil)
				return core.Fatal(err), err
			}
			if _, err := d.funcs.Define(lines, i, end); err != nil {
				return core.Fatal(err), err
			}
			last = core.OK(0)
			d.vars.SetLastStatus(0)
			i = end + 1
			continue
		}

		heredocBody, consumed := extractHeredocBody(lines, i, trimmed)

		clog.AddLine(ctx, i+1)
		result, err := d.runStatementLine(ctx, trimmed, heredocBody)
		if err != nil {
			return result, err
		}
		last = result
		if result.IsControlFlow() || result.Kind == core.ResultFatal {
			return result, nil
		}
		if d.errexit && result.ExitCode != 0 {
			return result, nil
		}
		i += 1 + consumed
	}
	return last, nil
}

// RunCondition runs line (§4.7/§4.8's condition text, itself possibly a
// &&/||-chained sequence) and returns its exit status, satisfying
// cond.BlockRunner and loop.BlockRunner.
func (d *Driver) RunCondition(ctx context.Context, line string) (int, error) {
	result, err := d.runStatementLine(ctx, strings.TrimSpace(line), "")
	if err != nil {
		return result.ExitCode, err
	}
	return result.ExitCode, nil
}

// ExpandWord expands a single word through the full pipeline (§4.13 step
// 5a) without field-splitting, satisfying caseeval.BlockRunner.
func (d *Driver) ExpandWord(ctx context.Context, word string) (string, error) {
	return d.expandText(ctx, word)
}

// ExpandWords expands and field-splits a sequence of words (unquoted
// results split on IFS, quoted results kept whole), satisfying
// loop.BlockRunner's `for x in w1 w2 ...` support.
func (d *Driver) ExpandWords(ctx context.Context, words []string) ([]string, error) {
	var out []string
	for _, w := range words {
		// Word strings reaching here have already passed through a
		// BlockRunner's renderWords, which only re-adds quote characters
		// when the original token carried them — so their mere presence
		// here is the signal that this word should not be field-split.
		//
		// "$@" standing alone in double quotes is the one case where a
		// single rendered word must still expand to several output words,
		// one per positional, so it's special-cased ahead of the general
		// expand-then-maybe-split path below.
		if isDoubleQuotedPositionalAll(w) {
			out = append(out, d.vars.Positionals()...)
			continue
		}
		quoted := strings.ContainsAny(w, `"'`)
		expanded, err := d.expandText(ctx, w)
		if err != nil {
			return nil, err
		}
		if quoted {
			out = append(out, quotescan.StripQuotes(expanded))
			continue
		}
		out = append(out, splitFields(expanded, d.vars.IFS())...)
	}
	return out, nil
}

// SetVariable satisfies loop.BlockRunner: assigns the for-loop variable
// for each iteration.
func (d *Driver) SetVariable(name, value string) error {
	return d.vars.Set(name, value)
}

// EvalArithmetic satisfies loop.BlockRunner for the C-style for-loop's
// init/cond/post clauses.
func (d *Driver) EvalArithmetic(ctx context.Context, expr string) (int64, error) {
	return d.arithEval.Eval(expr)
}

// PushScope/PopScope satisfy function.ScopeStack.
func (d *Driver) PushScope(args []string) { d.vars.PushScope(args) }
func (d *Driver) PopScope()               { d.vars.PopScope() }

// isDoubleQuotedPositionalAll reports whether w is exactly a double-quoted
// "$@" with no surrounding or interior text, the one case (§9 Open
// Question 2) where each positional parameter must reach the command as
// its own word regardless of IFS — something a single joined string from
// substituteBareVariables can never represent.
func isDoubleQuotedPositionalAll(w string) bool {
	return w == `"$@"`
}

func splitFields(s string, ifs string) []string {
	if ifs == "" {
		if s == "" {
			return nil
		}
		return []string{s}
	}
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return strings.ContainsRune(ifs, r)
	})
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// stripComment removes a trailing `# ...` comment, honoring quoting via
// quotescan so a '#' inside a string literal is never mistaken for one.
func stripComment(line string) string {
	sc := quotescan.NewScanner(line)
	for i := 0; i < len(line); i++ {
		st := sc.Advance(line[i])
		if line[i] == '#' && st.Effective() && (i == 0 || line[i-1] == ' ' || line[i-1] == '\t') {
			return line[:i]
		}
	}
	return line
}

// callFunction is the shared entry point for both a directly-typed
// `name args...` line and InvokeFunction, guarding against runaway
// recursion per §5's resource model.
func (d *Driver) callFunction(ctx context.Context, name string, args []string) (int, error) {
	if d.funcDepth >= d.maxFnDepth {
		return core.ExitGeneralFailure, cerr.NewError(cerr.Internal, fmt.Sprintf("%s: maximum function nesting depth (%d) exceeded", name, d.maxFnDepth), nil)
	}
	d.funcDepth++
	defer func() { d.funcDepth-- }()
	return d.funcs.Call(ctx, d, d, name, args)
}
