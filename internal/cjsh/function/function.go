// Package function implements the function evaluator (§4.10): defining
// `name() { ... }` / `function name [()] { ... }`, and calling with a
// pushed local-variable scope, positional-parameter frame, and
// `return`-via-exit-code translation back to the caller.
package function

import (
	"context"
	"fmt"
	"strings"

	"github.com/CadenFinley/cjsh-interp/internal/cjsh/core"
	"github.com/CadenFinley/cjsh-interp/internal/cjsh/token"
)

// BlockRunner runs a function body: a sequence of already-split lines,
// recursively dispatching compound statements, exactly like a top-level
// script block.
type BlockRunner interface {
	RunLines(ctx context.Context, lines []string) (core.Result, error)
}

// ScopeStack is the subset of variable.Manager a function call needs.
type ScopeStack interface {
	PushScope(args []string)
	PopScope()
}

// Registry holds the process-wide function table (§3: "lives in a
// process-wide function table until unset or shell exit").
type Registry struct {
	funcs map[string]*core.Function
}

func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]*core.Function)}
}

// validIdentifier matches §3's Function.name invariant: [A-Za-z_][A-Za-z0-9_]*
func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	if !(s[0] == '_' || (s[0] >= 'a' && s[0] <= 'z') || (s[0] >= 'A' && s[0] <= 'Z')) {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if !(c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')) {
			return false
		}
	}
	return true
}

// DetectDefinition reports whether line opens a function definition and,
// if so, its name. Recognizes both `name() {` and `function name {` /
// `function name() {` forms.
func DetectDefinition(line string) (name string, ok bool) {
	toks, err := token.Tokenize(line)
	if err != nil || len(toks) == 0 {
		return "", false
	}
	if toks[0].Value == "function" && len(toks) > 1 {
		candidate := toks[1].Value
		if validIdentifier(candidate) {
			return candidate, true
		}
		return "", false
	}
	if len(toks) >= 3 && toks[1].IsOperator && toks[1].Value == "(" &&
		toks[2].IsOperator && toks[2].Value == ")" && validIdentifier(toks[0].Value) {
		return toks[0].Value, true
	}
	return "", false
}

// FindBlockEnd scans lines starting at start for the closing '}' of the
// definition's brace group, tracking brace depth across nested groups.
func FindBlockEnd(lines []string, start int) (int, bool) {
	depth := 0
	seenOpen := false
	for i := start; i < len(lines); i++ {
		for _, r := range lines[i] {
			switch r {
			case '{':
				depth++
				seenOpen = true
			case '}':
				depth--
				if seenOpen && depth == 0 {
					return i, true
				}
			}
		}
	}
	return 0, false
}

// Define registers a function from the block lines[start:end+1],
// stripping the header and the enclosing braces from the stored body.
// A duplicate definition overwrites the previous one, per §4.10.
func (r *Registry) Define(lines []string, start, end int) (string, error) {
	name, ok := DetectDefinition(lines[start])
	if !ok {
		return "", fmt.Errorf("not a function definition: %q", lines[start])
	}
	body := extractBody(lines[start : end+1])
	r.funcs[name] = &core.Function{Name: name, Body: body}
	return name, nil
}

// extractBody strips everything up to and including the definition's
// opening '{' from the first line, and the final '}' from the last,
// returning the lines in between as the body.
func extractBody(blockLines []string) []string {
	var out []string

	if len(blockLines) == 1 {
		line := blockLines[0]
		open := strings.IndexByte(line, '{')
		closeIdx := strings.LastIndexByte(line, '}')
		if open < 0 || closeIdx < 0 || closeIdx <= open {
			return out
		}
		inner := strings.TrimSpace(line[open+1 : closeIdx])
		for _, stmt := range strings.Split(inner, ";") {
			if s := strings.TrimSpace(stmt); s != "" {
				out = append(out, s)
			}
		}
		return out
	}

	first := blockLines[0]
	if idx := strings.IndexByte(first, '{'); idx >= 0 {
		first = strings.TrimSpace(first[idx+1:])
	}
	last := blockLines[len(blockLines)-1]
	if idx := strings.LastIndexByte(last, '}'); idx >= 0 {
		last = strings.TrimSpace(last[:idx])
	}

	if first != "" {
		out = append(out, first)
	}
	out = append(out, blockLines[1:len(blockLines)-1]...)
	if last != "" {
		out = append(out, last)
	}
	return out
}

func (r *Registry) IsFunction(name string) bool {
	_, ok := r.funcs[name]
	return ok
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	return names
}

func (r *Registry) Unset(name string) { delete(r.funcs, name) }

// Call pushes a local scope, sets positional parameters to args, runs
// the function body, and translates the body's terminal Result back
// into a caller-visible exit code: a `return N` sets it to N; falling
// off the end uses the last command's exit code; break/continue
// reaching the function boundary is an internal-invariant violation
// (§7) — logged by the caller via the returned error, never panics.
func (r *Registry) Call(ctx context.Context, runner BlockRunner, scopes ScopeStack, name string, args []string) (int, error) {
	fn, ok := r.funcs[name]
	if !ok {
		return core.ExitCommandNotFound, fmt.Errorf("%s: function not found", name)
	}

	scopes.PushScope(args)
	defer scopes.PopScope()

	result, err := runner.RunLines(ctx, fn.Body)
	if err != nil {
		return core.ExitGeneralFailure, err
	}

	switch result.Kind {
	case core.ResultReturn, core.ResultOK:
		return result.ExitCode, nil
	case core.ResultBreak, core.ResultContinue:
		return core.ExitGeneralFailure, fmt.Errorf("%s: break/continue outside loop", name)
	case core.ResultFatal:
		return core.ExitGeneralFailure, result.Err
	default:
		return result.ExitCode, nil
	}
}
