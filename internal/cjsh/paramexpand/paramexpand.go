// Package paramexpand implements the parameter expansion evaluator
// (§4.4): given the text between a `${` and its matching `}` (braces
// already stripped by the caller), it dispatches to the default/assign/
// alt/error, prefix/suffix trim, substitution, case-conversion, length,
// and indirect forms.
package paramexpand

import (
	"fmt"
	"strings"

	"github.com/CadenFinley/cjsh-interp/internal/cjsh/pattern"
)

// VariableStore is the minimal read/write/exists contract this package
// needs; internal/cjsh/variable.Manager satisfies it.
type VariableStore interface {
	Get(name string) (string, bool)
	Set(name, value string) error
	IsReadonly(name string) bool
}

// ErrParameterError is returned by the `${name:?msg}` / `${name?msg}`
// forms; §4.4 says these are control-flow-visible — the caller (driver)
// translates this into diagnostic output and a nonzero exit status.
type ErrParameterError struct {
	Name    string
	Message string
}

func (e *ErrParameterError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Name, e.Message)
	}
	return fmt.Sprintf("%s: parameter null or not set", e.Name)
}

type Evaluator struct {
	Store VariableStore
}

func New(store VariableStore) *Evaluator { return &Evaluator{Store: store} }

// Expand evaluates the body of a `${...}` expansion (without the braces)
// and returns its resulting string.
func (e *Evaluator) Expand(body string) (string, error) {
	name, op, arg, err := splitOperator(body)
	if err != nil {
		return "", err
	}
	if op == "" {
		return e.lookup(name)
	}

	switch op {
	case "len":
		v, _ := e.lookup(name)
		return fmt.Sprintf("%d", len(v)), nil
	case "indirect":
		target, _ := e.lookup(name)
		return e.lookup(target)
	case ":-":
		v, ok := e.Store.Get(name)
		if !ok || v == "" {
			return arg, nil
		}
		return v, nil
	case "-":
		v, ok := e.Store.Get(name)
		if !ok {
			return arg, nil
		}
		return v, nil
	case ":=":
		v, ok := e.Store.Get(name)
		if !ok || v == "" {
			if err := e.assign(name, arg); err != nil {
				return "", err
			}
			return arg, nil
		}
		return v, nil
	case "=":
		v, ok := e.Store.Get(name)
		if !ok {
			if err := e.assign(name, arg); err != nil {
				return "", err
			}
			return arg, nil
		}
		return v, nil
	case ":?":
		v, ok := e.Store.Get(name)
		if !ok || v == "" {
			return "", &ErrParameterError{Name: name, Message: arg}
		}
		return v, nil
	case "?":
		v, ok := e.Store.Get(name)
		if !ok {
			return "", &ErrParameterError{Name: name, Message: arg}
		}
		return v, nil
	case ":+":
		v, ok := e.Store.Get(name)
		if ok && v != "" {
			return arg, nil
		}
		return "", nil
	case "+":
		if _, ok := e.Store.Get(name); ok {
			return arg, nil
		}
		return "", nil
	case "#prefix-short":
		v, _ := e.lookup(name)
		return trimPrefix(v, arg, false), nil
	case "##prefix-long":
		v, _ := e.lookup(name)
		return trimPrefix(v, arg, true), nil
	case "%suffix-short":
		v, _ := e.lookup(name)
		return trimSuffix(v, arg, false), nil
	case "%%suffix-long":
		v, _ := e.lookup(name)
		return trimSuffix(v, arg, true), nil
	case "/first":
		v, _ := e.lookup(name)
		return replace(v, arg, false), nil
	case "//all":
		v, _ := e.lookup(name)
		return replace(v, arg, true), nil
	case "^first":
		v, _ := e.lookup(name)
		return changeCase(v, arg, true, true), nil
	case "^^all":
		v, _ := e.lookup(name)
		return changeCase(v, arg, true, false), nil
	case ",first":
		v, _ := e.lookup(name)
		return changeCase(v, arg, false, true), nil
	case ",,all":
		v, _ := e.lookup(name)
		return changeCase(v, arg, false, false), nil
	default:
		return "", fmt.Errorf("unsupported parameter expansion operator %q", op)
	}
}

func (e *Evaluator) lookup(name string) (string, error) {
	v, _ := e.Store.Get(name)
	return v, nil
}

func (e *Evaluator) assign(name, value string) error {
	if e.Store.IsReadonly(name) {
		return fmt.Errorf("%s: readonly variable", name)
	}
	return e.Store.Set(name, value)
}

// splitOperator identifies the leading name and the expansion operator in
// body, per §4.4's dispatch table. Returns op=="" for a bare "name".
func splitOperator(body string) (name, op, arg string, err error) {
	if body == "" {
		return "", "", "", fmt.Errorf("empty parameter expansion")
	}
	if body[0] == '#' && len(body) > 1 {
		// "#name": length. Unambiguous with "name#pat" trimming because a
		// leading '#' can only appear here, at the very start of body.
		return body[1:], "len", "", nil
	}
	if body[0] == '!' {
		return body[1:], "indirect", "", nil
	}

	// Find the end of the identifier (name), allowing an optional
	// "[index]" array suffix per §9 Open Question 1 — array indices are
	// carried through as part of name for the caller's variable store to
	// resolve (it may itself call back into arith for the index).
	i := 0
	if i < len(body) && (isIdentStart(body[i])) {
		i++
		for i < len(body) && isIdentCont(body[i]) {
			i++
		}
		if i < len(body) && body[i] == '[' {
			depth := 1
			j := i + 1
			for j < len(body) && depth > 0 {
				if body[j] == '[' {
					depth++
				} else if body[j] == ']' {
					depth--
				}
				j++
			}
			i = j
		}
	} else if i < len(body) && isDigit(body[i]) {
		for i < len(body) && isDigit(body[i]) {
			i++
		}
	} else if i < len(body) {
		// special parameter: single non-identifier char (?, $, *, @, #, !).
		i++
	}
	name = body[:i]
	rest := body[i:]

	if rest == "" {
		return name, "", "", nil
	}

	type spec struct {
		prefix string
		op     string
	}
	specs := []spec{
		{":-", ":-"}, {":=", ":="}, {":?", ":?"}, {":+", ":+"},
		{"##", "##prefix-long"}, {"#", "#prefix-short"},
		{"%%", "%%suffix-long"}, {"%", "%suffix-short"},
		{"//", "//all"}, {"/", "/first"},
		{"^^", "^^all"}, {"^", "^first"},
		{",,", ",,all"}, {",", ",first"},
		{"-", "-"}, {"=", "="}, {"?", "?"}, {"+", "+"},
	}
	for _, sp := range specs {
		if strings.HasPrefix(rest, sp.prefix) {
			return name, sp.op, rest[len(sp.prefix):], nil
		}
	}
	return "", "", "", fmt.Errorf("unrecognized parameter expansion %q", body)
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
func isIdentCont(b byte) bool { return isIdentStart(b) || isDigit(b) }
func isDigit(b byte) bool     { return b >= '0' && b <= '9' }

// trimPrefix removes the shortest (longest=false) or longest (longest=true)
// prefix of v matching pat, per §4.4: the shortest variant returns on the
// first match scanning split points left to right; the longest variant
// keeps scanning and returns the last successful match.
func trimPrefix(v, pat string, longest bool) string {
	best := -1
	for i := 0; i <= len(v); i++ {
		if pattern.Match(v[:i], pat) {
			best = i
			if !longest {
				break
			}
		}
	}
	if best < 0 {
		return v
	}
	return v[best:]
}

func trimSuffix(v, pat string, longest bool) string {
	best := -1
	for i := len(v); i >= 0; i-- {
		if pattern.Match(v[i:], pat) {
			best = i
			if !longest {
				break
			}
		}
	}
	if best < 0 {
		return v
	}
	return v[:best]
}

// replace implements "name/pat/rep" (first occurrence) and "name//pat/rep"
// (all occurrences). pat and rep are separated by the first unescaped '/'
// in arg. If rep is absent, occurrences are deleted.
func replace(v, arg string, all bool) string {
	pat, rep := splitPatRep(arg)
	if pat == "" {
		return v
	}
	if !hasGlobMeta(pat) {
		if all {
			return strings.ReplaceAll(v, pat, rep)
		}
		return strings.Replace(v, pat, rep, 1)
	}

	var out strings.Builder
	i := 0
	replaced := false
	for i < len(v) {
		matchedLen := -1
		for end := len(v); end >= i; end-- {
			if pattern.Match(v[i:end], pat) {
				matchedLen = end - i
				break
			}
		}
		if matchedLen >= 0 && (all || !replaced) {
			out.WriteString(rep)
			i += matchedLen
			if matchedLen == 0 {
				if i < len(v) {
					out.WriteByte(v[i])
				}
				i++
			}
			replaced = true
			if !all {
				out.WriteString(v[i:])
				return out.String()
			}
			continue
		}
		out.WriteByte(v[i])
		i++
	}
	return out.String()
}

func splitPatRep(arg string) (pat, rep string) {
	for i := 0; i < len(arg); i++ {
		if arg[i] == '\\' {
			i++
			continue
		}
		if arg[i] == '/' {
			return arg[:i], arg[i+1:]
		}
	}
	return arg, ""
}

func hasGlobMeta(pat string) bool {
	return strings.ContainsAny(pat, "*?[")
}

// changeCase implements "^"/"^^"/","/",," : upper/lowercases the first or
// all characters of v that match pat (empty pat means "any character").
func changeCase(v, pat string, upper bool, firstOnly bool) string {
	var out strings.Builder
	done := false
	for _, r := range v {
		if !done && (pat == "" || pattern.Match(string(r), pat)) {
			if upper {
				out.WriteString(strings.ToUpper(string(r)))
			} else {
				out.WriteString(strings.ToLower(string(r)))
			}
			if firstOnly {
				done = true
			}
			continue
		}
		out.WriteRune(r)
	}
	return out.String()
}
