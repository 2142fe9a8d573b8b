// Package pattern implements the shell glob matcher (§4.5) used by
// case/esac, parameter-expansion trim/substitution forms, and (when wired
// by an external completion layer) filename matching. It is a
// backtracking matcher, not a regex compile, because `*` needs a
// savepoint-and-retry strategy rather than NFA simulation to keep the
// extra memory per level constant.
package pattern

import "strings"

// Match reports whether s matches pattern. Top-level '|' in pattern
// separates alternatives — Match returns true if s matches any one of
// them. Supported within each alternative: '*' (zero or more), '?'
// (exactly one), '[...]' classes with optional leading '^'/'!' negation
// and 'a-z' ranges, and '\x' to escape the metacharacter x.
func Match(s, pattern string) bool {
	for _, alt := range splitTopLevelAlternatives(pattern) {
		if matchOne(s, alt) {
			return true
		}
	}
	return false
}

// splitTopLevelAlternatives splits pattern on '|' that are not inside a
// bracket expression and not escaped.
func splitTopLevelAlternatives(pattern string) []string {
	var parts []string
	var buf strings.Builder
	inClass := false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\' && i+1 < len(pattern):
			buf.WriteByte(c)
			buf.WriteByte(pattern[i+1])
			i++
		case c == '[' && !inClass:
			inClass = true
			buf.WriteByte(c)
		case c == ']' && inClass:
			inClass = false
			buf.WriteByte(c)
		case c == '|' && !inClass:
			parts = append(parts, buf.String())
			buf.Reset()
		default:
			buf.WriteByte(c)
		}
	}
	parts = append(parts, buf.String())
	return parts
}

// matchOne matches s against a single (no top-level '|') glob pattern.
func matchOne(s, pattern string) bool {
	return backtrack(s, 0, pattern, 0)
}

func backtrack(s string, si int, pattern string, pi int) bool {
	// starIdx/starSi record the most recent '*' savepoint for retry.
	starIdx, starSi := -1, -1

	for si <= len(s) {
		if pi < len(pattern) {
			switch pattern[pi] {
			case '*':
				starIdx = pi
				starSi = si
				pi++
				continue
			case '?':
				if si < len(s) {
					si++
					pi++
					continue
				}
			case '[':
				end, neg, matched := matchClass(pattern, pi, atByte(s, si))
				if end > 0 && si < len(s) && matched != neg {
					si++
					pi = end
					continue
				}
			case '\\':
				if pi+1 < len(pattern) && si < len(s) && s[si] == pattern[pi+1] {
					si++
					pi += 2
					continue
				}
			default:
				if si < len(s) && s[si] == pattern[pi] {
					si++
					pi++
					continue
				}
			}
		} else if si == len(s) {
			return true
		}

		if starIdx >= 0 {
			starSi++
			si = starSi
			pi = starIdx + 1
			continue
		}
		return false
	}

	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}

func atByte(s string, i int) byte {
	if i < len(s) {
		return s[i]
	}
	return 0
}

// matchClass parses a bracket expression starting at pattern[start] == '['
// and reports the index just past the closing ']', whether the class is
// negated, and whether b is a member.
func matchClass(pattern string, start int, b byte) (end int, negated bool, matched bool) {
	i := start + 1
	if i >= len(pattern) {
		return 0, false, false
	}
	if pattern[i] == '^' || pattern[i] == '!' {
		negated = true
		i++
	}
	first := true
	for i < len(pattern) {
		if pattern[i] == ']' && !first {
			return i + 1, negated, matched
		}
		first = false
		c := pattern[i]
		if c == '\\' && i+1 < len(pattern) {
			if pattern[i+1] == b {
				matched = true
			}
			i += 2
			continue
		}
		if i+2 < len(pattern) && pattern[i+1] == '-' && pattern[i+2] != ']' {
			lo, hi := c, pattern[i+2]
			if lo > hi {
				lo, hi = hi, lo
			}
			if b >= lo && b <= hi {
				matched = true
			}
			i += 3
			continue
		}
		if c == b {
			matched = true
		}
		i++
	}
	return 0, negated, false // unterminated class: caller treats '[' as literal
}
