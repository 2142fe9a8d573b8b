// Package cmdsubst implements the command substitution expander (§4.6):
// it scans a string for `$(...)`, backticks, `$((...))`, and `${...}`,
// running `$(cmd)`/`` `cmd` `` through an injected executor and splicing
// the captured stdout back in. Arithmetic and parameter expansion markers
// are left untouched for the arith/paramexpand evaluators, which need the
// variable manager in scope to resolve them.
//
// §9's design note calls out the source's use of invisible sentinel
// bytes to mark "don't re-expand this region" as a bug-prone pattern.
// This package avoids it: Expand returns a slice of Fragments, each
// tagged Expandable or not, instead of splicing markers into the string
// itself.
package cmdsubst

import "fmt"

// Executor runs a command line in a subshell context and captures its
// stdout, mirroring core.CommandExecutor (kept as a narrower function
// type here so this package doesn't need to import core just for one
// method).
type Executor func(cmdline string) (stdout string, exitCode int, err error)

// Fragment is one piece of the scanned string: either literal/already-
// substituted text (Expandable == false, safe to pass straight through
// later stages) or text that still contains `$((...))`/`${...}` forms
// the caller must run through arith/paramexpand (Expandable == true).
type Fragment struct {
	Text       string
	Expandable bool
}

// Result carries the expanded fragments plus the exit status of the last
// command substitution run, which becomes "last substitution status" per
// §3/§4.6.
type Result struct {
	Fragments      []Fragment
	LastExitStatus int
	HasSubstituted bool
}

// Expand scans text left to right. exec is called once per `$(...)` or
// backtick run encountered, and its output is folded into the adjacent
// literal fragment rather than carried with an in-band marker.
func Expand(text string, exec Executor) (Result, error) {
	var res Result
	var buf []byte
	flushLiteral := func() {
		if len(buf) > 0 {
			res.Fragments = append(res.Fragments, Fragment{Text: string(buf), Expandable: false})
			buf = buf[:0]
		}
	}
	flushExpandable := func(s string) {
		res.Fragments = append(res.Fragments, Fragment{Text: s, Expandable: true})
	}

	i := 0
	n := len(text)
	for i < n {
		c := text[i]
		switch {
		case c == '\\' && i+1 < n:
			buf = append(buf, c, text[i+1])
			i += 2
		case c == '\'':
			// Single-quoted runs: nothing inside is ever substituted.
			end := indexUnescaped(text, i+1, '\'')
			if end < 0 {
				buf = append(buf, text[i:]...)
				i = n
				continue
			}
			buf = append(buf, text[i:end+1]...)
			i = end + 1
		case c == '$' && i+1 < n && text[i+1] == '(':
			if i+2 < n && text[i+2] == '(' {
				// $(( expr )): matchBalanced starting at the first '('
				// counts both opening parens (depth reaches 2 after the
				// first two bytes), so the close it finds is naturally
				// the second, outer ')'.
				end, ok := matchBalanced(text, i+1, '(', ')')
				if !ok {
					buf = append(buf, text[i:]...)
					i = n
					continue
				}
				flushLiteral()
				flushExpandable(text[i : end+1])
				i = end + 1
				continue
			}
			end, ok := matchBalanced(text, i+1, '(', ')')
			if !ok {
				buf = append(buf, text[i:]...)
				i = n
				continue
			}
			cmdline := text[i+2 : end]
			out, code, err := runExec(exec, cmdline)
			if err != nil {
				return res, err
			}
			res.LastExitStatus = code
			res.HasSubstituted = true
			buf = append(buf, trimTrailingNewlines(out)...)
			i = end + 1
		case c == '`':
			end := indexUnescaped(text, i+1, '`')
			if end < 0 {
				buf = append(buf, text[i:]...)
				i = n
				continue
			}
			cmdline := unescapeBacktickBody(text[i+1 : end])
			out, code, err := runExec(exec, cmdline)
			if err != nil {
				return res, err
			}
			res.LastExitStatus = code
			res.HasSubstituted = true
			buf = append(buf, trimTrailingNewlines(out)...)
			i = end + 1
		case c == '$' && i+1 < n && text[i+1] == '{':
			end, ok := matchBalanced(text, i+1, '{', '}')
			if !ok {
				buf = append(buf, text[i:]...)
				i = n
				continue
			}
			flushLiteral()
			flushExpandable(text[i : end+1])
			i = end + 1
		default:
			buf = append(buf, c)
			i++
		}
	}
	flushLiteral()
	return res, nil
}

func runExec(exec Executor, cmdline string) (string, int, error) {
	if exec == nil {
		return "", 0, fmt.Errorf("command substitution requested but no executor is configured")
	}
	return exec(cmdline)
}

func trimTrailingNewlines(s string) string {
	end := len(s)
	for end > 0 && s[end-1] == '\n' {
		end--
	}
	return s[:end]
}

func unescapeBacktickBody(s string) string {
	var out []byte
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '$', '`', '\\':
				out = append(out, s[i+1])
				i++
				continue
			}
		}
		out = append(out, s[i])
	}
	return string(out)
}

func indexUnescaped(s string, start int, target byte) int {
	for i := start; i < len(s); i++ {
		if s[i] == '\\' {
			i++
			continue
		}
		if s[i] == target {
			return i
		}
	}
	return -1
}

// matchBalanced finds the index of the close byte matching the open byte
// at s[openIdx], honoring nesting and quotes. Returns the index of the
// matching close byte and true, or (0, false) if unterminated.
func matchBalanced(s string, openIdx int, open, close byte) (int, bool) {
	depth := 0
	var inSingle, inDouble bool
	for i := openIdx; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s) && !inSingle:
			i++
			continue
		case inSingle:
			if c == '\'' {
				inSingle = false
			}
		case inDouble:
			if c == '"' {
				inDouble = false
			}
		case c == '\'':
			inSingle = true
		case c == '"':
			inDouble = true
		case c == open:
			depth++
		case c == close:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}
