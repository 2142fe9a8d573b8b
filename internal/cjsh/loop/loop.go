// Package loop implements the loop evaluator (§4.8): `for name in
// word...; do body; done`, C-style `for ((init; cond; post))`, `while
// cond; do body; done`, and `until cond; do body; done`, including their
// inline forms, with break/continue/return propagation per §4.8 and
// §9's Result sum type.
package loop

import (
	"context"
	"strings"

	"github.com/CadenFinley/cjsh-interp/internal/cjsh/core"
	"github.com/CadenFinley/cjsh-interp/internal/cjsh/token"
)

// BlockRunner is everything a loop body needs from its host driver: run
// a sequence of body lines, evaluate a condition pipeline's truth, and
// (for the `for name in word...` and C-style forms) expand word lists
// and arithmetic expressions and assign the loop variable.
type BlockRunner interface {
	RunLines(ctx context.Context, lines []string) (core.Result, error)
	RunCondition(ctx context.Context, line string) (int, error)
	ExpandWords(ctx context.Context, words []string) ([]string, error)
	SetVariable(name, value string) error
	EvalArithmetic(ctx context.Context, expr string) (int64, error)
}

// Kind distinguishes the four loop forms.
type Kind int

const (
	KindForIn Kind = iota
	KindForC
	KindWhile
	KindUntil
)

// IsStart reports whether line opens a loop statement and, if so, which
// kind.
func IsStart(line string) (Kind, bool) {
	switch firstKeyword(line) {
	case "for":
		return detectForKind(line), true
	case "while":
		return KindWhile, true
	case "until":
		return KindUntil, true
	}
	return 0, false
}

func detectForKind(line string) Kind {
	if strings.Contains(line, "((") {
		return KindForC
	}
	return KindForIn
}

// FindBlockEnd scans lines starting at start for the matching `done`,
// tracking depth across nested for/while/until loops.
func FindBlockEnd(lines []string, start int) (int, bool) {
	depth := 0
	for i := start; i < len(lines); i++ {
		toks, err := token.Tokenize(lines[i])
		if err != nil {
			continue
		}
		for _, t := range toks {
			if t.IsOperator || t.Quote != core.Unquoted {
				continue
			}
			switch t.Value {
			case "for", "while", "until":
				depth++
			case "done":
				depth--
				if depth == 0 {
					return i, true
				}
			}
		}
	}
	return 0, false
}

// parsed is the normalized shape of any of the four loop forms.
type parsed struct {
	kind      Kind
	varName   string
	words     []string // KindForIn
	init      string   // KindForC
	condExpr  string   // KindForC (arithmetic) or KindWhile/KindUntil (pipeline text)
	post      string   // KindForC
	body      []string
}

// Eval runs the loop occupying lines[start:end+1] to completion,
// returning the Result of its last executed body statement, or OK(0) if
// the body never ran.
func Eval(ctx context.Context, runner BlockRunner, lines []string, start, end int) (core.Result, error) {
	p, err := parseLoop(runner, lines[start:end+1])
	if err != nil {
		return core.Fatal(err), err
	}

	last := core.OK(0)
	iterations := 0
	const maxIterations = 10000000 // guards a runaway loop; mirrors §9's ceiling intent

	switch p.kind {
	case KindForIn:
		words, err := runner.ExpandWords(ctx, p.words)
		if err != nil {
			return core.Fatal(err), err
		}
		for _, w := range words {
			if err := runner.SetVariable(p.varName, w); err != nil {
				return core.Fatal(err), err
			}
			r, stop, err := runBody(ctx, runner, p.body, &last)
			if err != nil || stop {
				return r, err
			}
		}
	case KindForC:
		if p.init != "" {
			if _, err := runner.EvalArithmetic(ctx, p.init); err != nil {
				return core.Fatal(err), err
			}
		}
		for {
			iterations++
			if iterations > maxIterations {
				break
			}
			if p.condExpr != "" {
				v, err := runner.EvalArithmetic(ctx, p.condExpr)
				if err != nil {
					return core.Fatal(err), err
				}
				if v == 0 {
					break
				}
			}
			r, stop, err := runBody(ctx, runner, p.body, &last)
			if err != nil || stop {
				return r, err
			}
			if p.post != "" {
				if _, err := runner.EvalArithmetic(ctx, p.post); err != nil {
					return core.Fatal(err), err
				}
			}
		}
	case KindWhile, KindUntil:
		for {
			iterations++
			if iterations > maxIterations {
				break
			}
			status, err := runner.RunCondition(ctx, p.condExpr)
			if err != nil {
				return core.Fatal(err), err
			}
			truthy := status == 0
			if p.kind == KindUntil {
				truthy = status != 0
			}
			if !truthy {
				break
			}
			r, stop, err := runBody(ctx, runner, p.body, &last)
			if err != nil || stop {
				return r, err
			}
		}
	}
	return last, nil
}

// runBody executes one iteration's body and interprets its Result per
// §4.8: break N pops N loop frames (returned to the caller as stop=true
// with levels decremented so an enclosing loop can keep unwinding),
// continue N restarts this loop if N==1 or propagates outward otherwise,
// and return/fatal always unwind immediately.
func runBody(ctx context.Context, runner BlockRunner, body []string, last *core.Result) (core.Result, bool, error) {
	if len(body) == 0 {
		return core.OK(0), false, nil
	}
	r, err := runner.RunLines(ctx, body)
	if err != nil {
		return core.Fatal(err), true, err
	}
	*last = r
	switch r.Kind {
	case core.ResultBreak:
		if r.Levels > 1 {
			return core.Break(r.Levels - 1), true, nil
		}
		return core.OK(0), true, nil
	case core.ResultContinue:
		if r.Levels > 1 {
			return core.Continue(r.Levels - 1), true, nil
		}
		return core.OK(0), false, nil
	case core.ResultReturn, core.ResultFatal:
		return r, true, nil
	}
	return r, false, nil
}

func parseLoop(runner BlockRunner, blockLines []string) (*parsed, error) {
	joined := strings.Join(blockLines, "\n")
	toks, err := token.Tokenize(joined)
	if err != nil {
		return nil, err
	}

	switch toks[0].Value {
	case "while", "until":
		kind := KindWhile
		if toks[0].Value == "until" {
			kind = KindUntil
		}
		doIdx := findKeyword(toks, 1, "do")
		cond := renderWords(toks[1:doIdx])
		bodyEnd := findMatchingDone(toks, doIdx+1)
		return &parsed{
			kind:     kind,
			condExpr: cond,
			body:     splitBody(toks[doIdx+1 : bodyEnd]),
		}, nil
	case "for":
		if strings.Contains(joined, "((") {
			return parseForC(joined)
		}
		return parseForIn(toks)
	}
	return nil, errUnrecognized(joined)
}

func parseForIn(toks []core.Token) (*parsed, error) {
	// for NAME in W1 W2 ...; do BODY; done
	name := toks[1].Value
	inIdx := findKeyword(toks, 2, "in")
	doIdx := findKeyword(toks, inIdx+1, "do")
	var words []string
	for _, t := range toks[inIdx+1 : doIdx] {
		if t.IsOperator {
			continue
		}
		words = append(words, t.Value)
	}
	bodyEnd := findMatchingDone(toks, doIdx+1)
	return &parsed{
		kind:    KindForIn,
		varName: name,
		words:   words,
		body:    splitBody(toks[doIdx+1 : bodyEnd]),
	}, nil
}

// parseForC works directly on the raw joined source text rather than
// tokens: the shell tokenizer's ordinary operator splitting (treating
// '<' '>' '(' ')' as their own tokens) would otherwise mangle an
// arithmetic header like "((i=0; i<5; i++))", which needs C-style
// operator lexing, not shell lexing.
func parseForC(joined string) (*parsed, error) {
	open := strings.Index(joined, "((")
	if open < 0 {
		return nil, errUnrecognized(joined)
	}
	close := matchDoubleParen(joined, open)
	if close < 0 {
		return nil, errUnrecognized(joined)
	}
	header := joined[open+2 : close]
	parts := strings.SplitN(header, ";", 3)
	for len(parts) < 3 {
		parts = append(parts, "")
	}

	rest := joined[close+2:]
	doKeyword := indexWord(rest, "do")
	if doKeyword < 0 {
		return nil, errUnrecognized(joined)
	}
	afterDo := rest[doKeyword+2:]
	doneKeyword := lastIndexWord(afterDo, "done")
	bodyText := afterDo
	if doneKeyword >= 0 {
		bodyText = afterDo[:doneKeyword]
	}
	bodyToks, _ := token.Tokenize(bodyText)

	return &parsed{
		kind:     KindForC,
		init:     strings.TrimSpace(parts[0]),
		condExpr: strings.TrimSpace(parts[1]),
		post:     strings.TrimSpace(parts[2]),
		body:     splitBody(bodyToks),
	}, nil
}

// matchDoubleParen returns the index of the first byte of the "))" that
// closes the "((" starting at s[openIdx], honoring nested parens in the
// arithmetic body (e.g. function-call-like groupings are not part of
// shell arithmetic, but balanced parens from precedence grouping are).
func matchDoubleParen(s string, openIdx int) int {
	depth := 0
	for i := openIdx; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 && i+1 < len(s) && s[i+1] == ')' {
				return i
			}
		}
	}
	return -1
}

func indexWord(s, word string) int {
	for i := 0; i+len(word) <= len(s); i++ {
		if s[i:i+len(word)] == word && isWordBoundary(s, i, i+len(word)) {
			return i
		}
	}
	return -1
}

func lastIndexWord(s, word string) int {
	last := -1
	for i := 0; i+len(word) <= len(s); i++ {
		if s[i:i+len(word)] == word && isWordBoundary(s, i, i+len(word)) {
			last = i
		}
	}
	return last
}

func isWordBoundary(s string, start, end int) bool {
	if start > 0 && isIdentByte(s[start-1]) {
		return false
	}
	if end < len(s) && isIdentByte(s[end]) {
		return false
	}
	return true
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func findKeyword(toks []core.Token, from int, kw string) int {
	depth := 0
	for i := from; i < len(toks); i++ {
		if toks[i].IsOperator || toks[i].Quote != core.Unquoted {
			continue
		}
		switch toks[i].Value {
		case "for", "while", "until":
			depth++
		case "done":
			depth--
		case kw:
			if depth == 0 {
				return i
			}
		}
	}
	return len(toks)
}

func findMatchingDone(toks []core.Token, from int) int {
	depth := 0
	for i := from; i < len(toks); i++ {
		if toks[i].IsOperator || toks[i].Quote != core.Unquoted {
			continue
		}
		switch toks[i].Value {
		case "for", "while", "until":
			depth++
		case "done":
			if depth == 0 {
				return i
			}
			depth--
		}
	}
	return len(toks)
}

func splitBody(toks []core.Token) []string {
	var lines []string
	var cur []core.Token
	for _, t := range toks {
		if t.IsOperator && t.Value == ";" {
			if s := renderWords(cur); s != "" {
				lines = append(lines, s)
			}
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	if s := renderWords(cur); s != "" {
		lines = append(lines, s)
	}
	return lines
}

// renderWords reassembles a token slice back into a single command-line
// string, good enough for the runner to re-tokenize: quoting is not
// reconstructed byte-for-byte, but word boundaries, operator adjacency,
// and the quoted-ness that suppresses field-splitting are preserved.
func renderWords(toks []core.Token) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 {
			b.WriteByte(' ')
		}
		if t.IsOperator {
			b.WriteString(t.Value)
		} else {
			b.WriteString(quoteIfNeeded(t))
		}
	}
	return strings.TrimSpace(b.String())
}

// quoteIfNeeded re-adds quote characters around a token's value so that
// re-tokenizing the rebuilt line reproduces the same Quote classification
// the original token carried — the quoting must survive regardless of
// whether Value itself happens to contain whitespace, since a quoted
// variable reference like "$name" has no literal space in its token text
// but still must suppress field-splitting of whatever $name expands to.
// '$' is left unescaped: substituteBareVariables has no notion of a
// protective escape, so escaping it would only leave a stray backslash
// in the expanded value instead of suppressing expansion. Mirrors
// driver/parse.go's renderWord.
func quoteIfNeeded(t core.Token) string {
	if t.Quote == core.Unquoted {
		return t.Value
	}
	if t.Quote == core.SingleQuoted && !strings.ContainsRune(t.Value, '\'') {
		return "'" + t.Value + "'"
	}
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(t.Value) + `"`
}

func firstKeyword(line string) string {
	toks, err := token.Tokenize(line)
	if err != nil || len(toks) == 0 {
		return ""
	}
	return toks[0].Value
}

type unrecognizedLoopError string

func (e unrecognizedLoopError) Error() string { return "unrecognized loop form: " + string(e) }

func errUnrecognized(text string) error { return unrecognizedLoopError(text) }
