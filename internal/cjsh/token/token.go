// Package token implements the tokenizer (§4.2): it splits a raw,
// post-alias command-line string into word tokens, operator tokens, and
// merged redirection tokens, carrying quote metadata per token so later
// field-splitting and pathname expansion know which segments to touch.
package token

import (
	"fmt"
	"strings"

	"github.com/CadenFinley/cjsh-interp/internal/cjsh/core"
)

// operators, longest first so greedy matching picks "&&" over "&".
var operatorsByLength = [][]string{
	{";;"},
	{"<<-", "<<<"},
	{"&>>"},
	{"||", "&&", ">>", "<<", "<&", ">&", "<>", ">|", "&>"},
	{"|", "&", ";", "(", ")", "<", ">"},
}

// ErrUnclosedQuote is returned (wrapped with position) when the input ends
// while still inside a quote.
type ErrUnclosedQuote struct {
	Column int
}

func (e *ErrUnclosedQuote) Error() string {
	return fmt.Sprintf("unclosed quote starting at column %d", e.Column)
}

// Tokenize splits line into tokens per §4.2. Returns *ErrUnclosedQuote on
// an unterminated quote (a critical syntax error per §4.12 — callers that
// want to continue past it for diagnostic purposes should call the
// quotescan package directly instead).
func Tokenize(line string) ([]core.Token, error) {
	var tokens []core.Token

	i := 0
	n := len(line)
	for i < n {
		c := line[i]
		if c == ' ' || c == '\t' {
			i++
			continue
		}
		if c == '\n' {
			i++
			continue
		}

		if isOperatorStart(line, i) {
			opLen, op := matchOperator(line, i)
			// Merge a leading digit sequence into a redirection operator,
			// e.g. "2>&" or "2>>"; the dup target or file name after the
			// operator stays a separate word token.
			if len(tokens) > 0 {
				last := tokens[len(tokens)-1]
				if !last.IsOperator && isAllDigits(last.Value) && isRedirOperator(op) {
					tokens = tokens[:len(tokens)-1]
					op = last.Value + op
				}
			}
			tokens = append(tokens, core.Token{Value: op, IsOperator: true})
			i += opLen
			continue
		}

		start := i
		var buf strings.Builder
		quote := core.Unquoted
		sawQuote := false

		for i < n {
			c = line[i]
			if c == ' ' || c == '\t' || c == '\n' {
				break
			}
			if isOperatorStart(line, i) {
				break
			}
			switch c {
			case '\'':
				end := strings.IndexByte(line[i+1:], '\'')
				if end < 0 {
					return nil, &ErrUnclosedQuote{Column: start + 1}
				}
				buf.WriteString(line[i+1 : i+1+end])
				i = i + 1 + end + 1
				markQuote(&quote, core.SingleQuoted, sawQuote)
				sawQuote = true
				continue
			case '"':
				seg, newI, err := scanDoubleQuoted(line, i, start)
				if err != nil {
					return nil, err
				}
				buf.WriteString(seg)
				i = newI
				markQuote(&quote, core.DoubleQuoted, sawQuote)
				sawQuote = true
				continue
			case '`':
				seg, newI, err := scanBacktick(line, i, start)
				if err != nil {
					return nil, err
				}
				buf.WriteString(seg)
				i = newI
				continue
			case '\\':
				if i+1 < n {
					buf.WriteByte(line[i+1])
					i += 2
					continue
				}
				buf.WriteByte(c)
				i++
				continue
			default:
				buf.WriteByte(c)
				i++
			}
		}

		tokens = append(tokens, core.Token{Value: buf.String(), Quote: quote, IsOperator: false})
	}

	return tokens, nil
}

func markQuote(cur *core.QuoteKind, this core.QuoteKind, sawBefore bool) {
	if !sawBefore {
		*cur = this
		return
	}
	if *cur != this {
		*cur = core.MixedQuoted
	}
}

// scanDoubleQuoted returns the unescaped contents of a double-quoted run
// starting at line[pos] == '"', and the index just past the closing quote.
func scanDoubleQuoted(line string, pos, tokenStart int) (string, int, error) {
	var buf strings.Builder
	i := pos + 1
	n := len(line)
	for i < n {
		c := line[i]
		if c == '"' {
			return buf.String(), i + 1, nil
		}
		if c == '\\' && i+1 < n {
			next := line[i+1]
			switch next {
			case '$', '`', '"', '\\', '\n':
				if next != '\n' {
					buf.WriteByte(next)
				}
				i += 2
				continue
			}
			buf.WriteByte(c)
			i++
			continue
		}
		buf.WriteByte(c)
		i++
	}
	return "", 0, &ErrUnclosedQuote{Column: tokenStart + 1}
}

// scanBacktick returns the raw contents of a backtick-quoted run (escapes
// are left intact for the command-substitution expander to resolve) and
// the index just past the closing backtick.
func scanBacktick(line string, pos, tokenStart int) (string, int, error) {
	var buf strings.Builder
	buf.WriteByte('`')
	i := pos + 1
	n := len(line)
	for i < n {
		c := line[i]
		if c == '\\' && i+1 < n {
			buf.WriteByte(c)
			buf.WriteByte(line[i+1])
			i += 2
			continue
		}
		if c == '`' {
			buf.WriteByte('`')
			return buf.String(), i + 1, nil
		}
		buf.WriteByte(c)
		i++
	}
	return "", 0, &ErrUnclosedQuote{Column: tokenStart + 1}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isRedirOperator(op string) bool {
	switch op {
	case "<", ">", ">>", "<<", "<<-", "<<<", "<&", ">&", "<>", ">|", "&>", "&>>":
		return true
	default:
		return false
	}
}

func isOperatorStart(line string, i int) bool {
	_, matched := matchOperator(line, i)
	return matched != ""
}

// matchOperator greedily matches the longest operator at line[i:], in a
// quote/escape-neutral way (callers only invoke this outside quotes —
// inside-word scanning above breaks out of the word loop before reaching
// quote-opening characters, so by the time matchOperator is consulted we
// are always at an effective position).
func matchOperator(line string, i int) (int, string) {
	for _, group := range operatorsByLength {
		for _, op := range group {
			if strings.HasPrefix(line[i:], op) {
				return len(op), op
			}
		}
	}
	return 0, ""
}
