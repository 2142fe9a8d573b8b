package driver

import (
	"strings"

	"github.com/CadenFinley/cjsh-interp/internal/cjsh/token"
)

// extractHeredocBody scans forward from lines[i] for a here-document body
// when trimmed (lines[i], already comment-stripped and trimmed) opens
// one with '<<' or '<<-'. It returns the captured body text and the
// number of subsequent physical lines it consumed, so RunLines' cursor
// can skip over them instead of parsing them as further statements.
//
// Only the first heredoc operator on a line is honored — a line with two
// heredoc redirections (rare, and rarer still inside a single statement)
// only gets a body captured for the first; this mirrors the one physical
// "line" granularity RunLines already dispatches at.
func extractHeredocBody(lines []string, i int, trimmed string) (string, int) {
	toks, err := token.Tokenize(trimmed)
	if err != nil {
		return "", 0
	}

	strip := false
	delimIdx := -1
	for idx, t := range toks {
		if !t.IsOperator {
			continue
		}
		if t.Value == "<<" || t.Value == "<<-" {
			strip = t.Value == "<<-"
			delimIdx = idx + 1
			break
		}
	}
	if delimIdx < 0 || delimIdx >= len(toks) {
		return "", 0
	}
	delim := toks[delimIdx].Value

	var body strings.Builder
	consumed := 0
	for j := i + 1; j < len(lines); j++ {
		raw := lines[j]
		check := raw
		if strip {
			check = strings.TrimLeft(check, "\t")
		}
		consumed++
		if check == delim {
			return body.String(), consumed
		}
		line := raw
		if strip {
			line = strings.TrimLeft(line, "\t")
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	// Delimiter never found: return what was collected (the validator's
	// HD001 check is what should have caught this before execution).
	return body.String(), consumed
}
