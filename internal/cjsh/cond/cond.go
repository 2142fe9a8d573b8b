// Package cond implements the conditional evaluator (§4.7): `if <cond>;
// then <body> [elif <cond>; then <body>]... [else <body>] fi`, both in
// its multi-line and fully-inline forms. Each condition's text is handed
// whole to the runner's RunCondition, which handles any `&&`/`||` in it;
// parenthesized subconditions are not evaluated separately here.
package cond

import (
	"context"
	"strings"

	"github.com/CadenFinley/cjsh-interp/internal/cjsh/core"
	"github.com/CadenFinley/cjsh-interp/internal/cjsh/token"
)

// BlockRunner executes an arbitrary sequence of already-split source
// lines, recursively dispatching compound statements and logical
// commands — i.e. the driver's own top-level loop (§4.13), handed back
// down so this evaluator never needs to know how a body line runs.
type BlockRunner interface {
	RunLines(ctx context.Context, lines []string) (core.Result, error)
	// RunCondition runs a single pipeline/line as a boolean condition and
	// returns its exit status (0 = true), honoring &&/|| short-circuit
	// inside the condition text itself.
	RunCondition(ctx context.Context, line string) (int, error)
}

// IsStart reports whether line opens an if-statement.
func IsStart(line string) bool {
	return firstKeyword(line) == "if"
}

// FindBlockEnd scans lines starting at start (which must satisfy
// IsStart) and returns the index of the line containing the matching
// `fi`, tracking an if-depth counter so a `fi` belonging to a nested if
// is not mistaken for the outer one's close (§4.7 nesting rule). If the
// whole if/then/fi appears on lines[start] alone (fully inline form),
// the returned index equals start.
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
			case "if":
				depth++
			case "fi":
				depth--
				if depth == 0 {
					return i, true
				}
			}
		}
	}
	return 0, false
}

// branch is one if/elif/else arm: its condition text (empty for else) and
// the body lines belonging to it.
type branch struct {
	condition string
	hasCond   bool
	body      []string
}

// Eval runs the if-statement occupying lines[start:end+1] (end as
// returned by FindBlockEnd) and returns its result: the last executed
// body's Result, or OK(0) if no branch matched.
func Eval(ctx context.Context, runner BlockRunner, lines []string, start, end int) (core.Result, error) {
	branches, err := parseBranches(lines[start : end+1])
	if err != nil {
		return core.Fatal(err), err
	}

	for _, b := range branches {
		if b.hasCond {
			status, err := runner.RunCondition(ctx, b.condition)
			if err != nil {
				return core.Fatal(err), err
			}
			if status != 0 {
				continue
			}
		}
		if len(b.body) == 0 {
			return core.OK(0), nil
		}
		return runner.RunLines(ctx, b.body)
	}
	return core.OK(0), nil
}

// parseBranches splits the if-statement's tokens into if/elif/else arms.
// It works uniformly on the multi-line and inline forms by tokenizing
// the whole joined block and re-segmenting on the if/then/elif/else/fi
// keyword tokens and top-level ';' — the source-line boundaries
// themselves carry no grammatical meaning once joined this way.
func parseBranches(blockLines []string) ([]branch, error) {
	joined := strings.Join(blockLines, "\n")
	toks, err := token.Tokenize(joined)
	if err != nil {
		return nil, err
	}

	var branches []branch
	i := 0
	n := len(toks)

	// skip the leading "if"
	for i < n && !isKeyword(toks[i], "if") {
		i++
	}
	i++ // past "if"

	for i < n {
		// Collect condition tokens up to "then", tracking a local
		// if-depth so a nested if's own "then" is skipped.
		condStart := i
		i = scanToThen(toks, i)
		condEnd := i
		for condEnd > condStart && toks[condEnd-1].IsOperator && toks[condEnd-1].Value == ";" {
			condEnd--
		}
		cond := renderWords(toks[condStart:condEnd])
		if i < n {
			i++ // past "then"
		}

		bodyStart := i
		depth := 0
		stop := ""
		for i < n {
			if isKeywordAny(toks[i]) {
				switch toks[i].Value {
				case "if":
					depth++
				case "fi":
					if depth == 0 {
						stop = "fi"
					} else {
						depth--
					}
				case "elif", "else":
					if depth == 0 {
						stop = toks[i].Value
					}
				}
			}
			if stop != "" {
				break
			}
			i++
		}
		branches = append(branches, branch{condition: cond, hasCond: true, body: splitBodyTokens(toks[bodyStart:i])})

		switch stop {
		case "elif":
			i++ // past "elif"
			continue
		case "else":
			i++ // past "else"
			elseStart := i
			depth = 0
			for i < n {
				if isKeyword(toks[i], "if") {
					depth++
				} else if isKeyword(toks[i], "fi") {
					if depth == 0 {
						break
					}
					depth--
				}
				i++
			}
			branches = append(branches, branch{body: splitBodyTokens(toks[elseStart:i])})
		}
		break
	}

	return branches, nil
}

// scanToThen returns the index of the "then" keyword belonging to the if
// whose condition starts at i, skipping over any nested if's own then.
func scanToThen(toks []core.Token, i int) int {
	depth := 0
	for ; i < len(toks); i++ {
		if !isKeywordAny(toks[i]) {
			continue
		}
		switch toks[i].Value {
		case "if":
			depth++
		case "fi":
			depth--
		case "then":
			if depth == 0 {
				return i
			}
		}
	}
	return i
}

func isKeyword(t core.Token, kw string) bool {
	return !t.IsOperator && t.Quote == core.Unquoted && t.Value == kw
}

func isKeywordAny(t core.Token) bool {
	if t.IsOperator || t.Quote != core.Unquoted {
		return false
	}
	switch t.Value {
	case "if", "then", "elif", "else", "fi":
		return true
	}
	return false
}

// splitBodyTokens re-renders a body token slice, splitting at top-level
// ';' into separate lines for RunLines to dispatch individually.
func splitBodyTokens(toks []core.Token) []string {
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
// reconstructed byte-for-byte, but word boundaries and operator
// adjacency are preserved, which is all RunLines/RunCondition need.
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
