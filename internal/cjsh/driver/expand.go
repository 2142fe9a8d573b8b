package driver

import (
	"context"
	"strconv"
	"strings"

	"github.com/CadenFinley/cjsh-interp/internal/cjsh/cmdsubst"
	"github.com/CadenFinley/cjsh-interp/internal/cjsh/core"
)

// expandText runs the full expansion pipeline (§4.13 step 5a): command
// substitution, then arithmetic/parameter expansion of whatever cmdsubst
// left untouched, then bare `$name`/`$1`/`$?` variable substitution on
// what remains literal. cmdsubst already resolves `$(...)`/backticks
// itself via the executor closure below.
func (d *Driver) expandText(ctx context.Context, text string) (string, error) {
	result, err := cmdsubst.Expand(text, d.makeExecutor(ctx))
	if err != nil {
		return "", err
	}
	if result.HasSubstituted {
		d.vars.SetLastSubstitutionStatus(result.LastExitStatus)
	}

	var out strings.Builder
	for _, frag := range result.Fragments {
		if !frag.Expandable {
			out.WriteString(d.substituteBareVariables(frag.Text))
			continue
		}
		switch {
		case strings.HasPrefix(frag.Text, "$((") && strings.HasSuffix(frag.Text, "))"):
			inner := frag.Text[3 : len(frag.Text)-2]
			v, err := d.arithEval.Eval(inner)
			if err != nil {
				return "", err
			}
			out.WriteString(strconv.FormatInt(v, 10))
		case strings.HasPrefix(frag.Text, "${") && strings.HasSuffix(frag.Text, "}"):
			inner := frag.Text[2 : len(frag.Text)-1]
			v, err := d.paramEval.Expand(inner)
			if err != nil {
				return "", err
			}
			out.WriteString(v)
		default:
			// Shouldn't happen given cmdsubst's own Fragment contract, but
			// fall back to passing it through rather than dropping text.
			out.WriteString(frag.Text)
		}
	}
	return out.String(), nil
}

// makeExecutor adapts the driver's core.CommandExecutor into the
// cmdsubst.Executor function type.
func (d *Driver) makeExecutor(ctx context.Context) cmdsubst.Executor {
	return func(cmdline string) (string, int, error) {
		if d.cmds == nil {
			return "", core.ExitGeneralFailure, errNoCommandExecutor
		}
		return d.cmds.Execute(ctx, cmdline)
	}
}

// substituteBareVariables expands `$name`, `$1`-`$9`, and the single-char
// special parameters ($?, $$, $!, $#, $*, $@, $0) appearing outside any
// `${...}`/`$((...))` form (those are handled separately, since cmdsubst
// already carved them into their own fragments).
func (d *Driver) substituteBareVariables(text string) string {
	var out strings.Builder
	i := 0
	n := len(text)
	for i < n {
		c := text[i]
		if c != '$' || i+1 >= n {
			out.WriteByte(c)
			i++
			continue
		}
		next := text[i+1]
		switch {
		case next == '?' || next == '$' || next == '!' || next == '#' || next == '*' || next == '@' || next == '0':
			v, _ := d.vars.Get(string(next))
			out.WriteString(v)
			i += 2
		case next >= '1' && next <= '9':
			v, _ := d.vars.Get(string(next))
			out.WriteString(v)
			i += 2
		case isIdentStart(next):
			j := i + 2
			for j < n && isIdentByte(text[j]) {
				j++
			}
			name := text[i+1 : j]
			v, _ := d.vars.Get(name)
			out.WriteString(v)
			i = j
		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

var errNoCommandExecutor = &expansionError{"command substitution requested but no CommandExecutor is configured"}

type expansionError struct{ msg string }

func (e *expansionError) Error() string { return e.msg }
