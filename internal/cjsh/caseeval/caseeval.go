// Package caseeval implements the case evaluator (§4.9): `case WORD in
// PAT [| PAT]* ) CMDS ;; ... esac`, matching sections in order with no
// fall-through.
package caseeval

import (
	"context"
	"fmt"
	"strings"

	"github.com/CadenFinley/cjsh-interp/internal/cjsh/core"
	"github.com/CadenFinley/cjsh-interp/internal/cjsh/pattern"
	"github.com/CadenFinley/cjsh-interp/internal/cjsh/quotescan"
	"github.com/CadenFinley/cjsh-interp/internal/cjsh/token"
)

// BlockRunner is what a case body needs from its host driver: run a
// section's commands, and expand the scrutinee word through the full
// expansion pipeline before matching.
type BlockRunner interface {
	RunLines(ctx context.Context, lines []string) (core.Result, error)
	ExpandWord(ctx context.Context, word string) (string, error)
}

// IsStart reports whether line opens a case statement.
func IsStart(line string) bool {
	toks, err := token.Tokenize(line)
	return err == nil && len(toks) > 0 && toks[0].Value == "case"
}

// FindBlockEnd scans lines starting at start for the matching `esac`,
// tracking depth across nested case statements.
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
			case "case":
				depth++
			case "esac":
				depth--
				if depth == 0 {
					return i, true
				}
			}
		}
	}
	return 0, false
}

type section struct {
	patterns []string
	body     []string
}

// Eval evaluates the case statement occupying lines[start:end+1] against
// its scrutinee, running the first matching section's commands. No
// match yields OK(0) per §4.9 step 6.
func Eval(ctx context.Context, runner BlockRunner, lines []string, start, end int) (core.Result, error) {
	word, sections, err := parseCase(lines[start : end+1])
	if err != nil {
		return core.Fatal(err), err
	}
	value, err := runner.ExpandWord(ctx, word)
	if err != nil {
		return core.Fatal(err), err
	}
	value = quotescan.StripQuotes(value)

	for _, sec := range sections {
		for _, pat := range sec.patterns {
			expanded, err := runner.ExpandWord(ctx, pat)
			if err != nil {
				return core.Fatal(err), err
			}
			expanded = quotescan.StripQuotes(expanded)
			if pattern.Match(value, expanded) {
				if len(sec.body) == 0 {
					return core.OK(0), nil
				}
				return runner.RunLines(ctx, sec.body)
			}
		}
	}
	return core.OK(0), nil
}

// parseCase extracts the scrutinee word and the ordered list of pattern
// sections from the block, splitting the body at top-level ';;' and each
// section header at '|' alternation, honoring quoting throughout via
// quotescan.
func parseCase(blockLines []string) (string, []section, error) {
	joined := strings.Join(blockLines, "\n")
	toks, err := token.Tokenize(joined)
	if err != nil {
		return "", nil, err
	}
	if len(toks) < 4 {
		return "", nil, fmt.Errorf("malformed case statement")
	}
	word := toks[1].Value
	inIdx := -1
	for i := 2; i < len(toks); i++ {
		if !toks[i].IsOperator && toks[i].Value == "in" {
			inIdx = i
			break
		}
	}
	if inIdx < 0 {
		return "", nil, fmt.Errorf("case statement missing 'in'")
	}

	var sections []section
	i := inIdx + 1
	depth := 0
	for i < len(toks) {
		if !toks[i].IsOperator && toks[i].Value == "esac" && depth == 0 {
			break
		}
		if !toks[i].IsOperator && toks[i].Value == "case" {
			depth++
		}
		if toks[i].IsOperator && toks[i].Value == "(" {
			i++
			continue
		}
		// Collect pattern alternatives up to the section's ')'.
		var pats []string
		patStart := i
		for i < len(toks) && !(toks[i].IsOperator && toks[i].Value == ")") {
			i++
		}
		pats = splitAlternatives(toks[patStart:i])
		if i < len(toks) {
			i++ // past ')'
		}

		bodyStart := i
		for i < len(toks) {
			if toks[i].IsOperator && toks[i].Value == ";;" {
				break
			}
			if !toks[i].IsOperator && toks[i].Value == "case" {
				depth++
			}
			if !toks[i].IsOperator && toks[i].Value == "esac" {
				if depth == 0 {
					break
				}
				depth--
			}
			i++
		}
		sections = append(sections, section{patterns: pats, body: splitBody(toks[bodyStart:i])})
		if i < len(toks) && toks[i].IsOperator && toks[i].Value == ";;" {
			i++
		}
	}

	return word, sections, nil
}

func splitAlternatives(toks []core.Token) []string {
	var pats []string
	var cur []core.Token
	for _, t := range toks {
		if t.IsOperator && t.Value == "|" {
			pats = append(pats, renderWords(cur))
			cur = nil
			continue
		}
		cur = append(cur, t)
	}
	if len(cur) > 0 || len(pats) == 0 {
		pats = append(pats, renderWords(cur))
	}
	return pats
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

// renderWords reassembles a section's token slice back into a single
// command-line string, good enough for the runner to re-tokenize:
// quoting is not reconstructed byte-for-byte, but word boundaries,
// operator adjacency, and the quoted-ness that suppresses field-splitting
// are preserved.
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
// the original token carried, regardless of whether Value itself
// contains whitespace. '$' is left unescaped: substituteBareVariables has
// no notion of a protective escape, so escaping it would only leave a
// stray backslash in the expanded value instead of suppressing expansion.
// Mirrors driver/parse.go's renderWord.
func quoteIfNeeded(t core.Token) string {
	if t.Quote == core.Unquoted {
		return t.Value
	}
	if t.Quote == core.SingleQuoted && !strings.ContainsRune(t.Value, '\'') {
		return "'" + t.Value + "'"
	}
	return `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(t.Value) + `"`
}
