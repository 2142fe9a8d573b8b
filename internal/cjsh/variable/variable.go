// Package variable implements the variable manager (§4.11): a global
// environment map plus a stack of local scopes, special-parameter
// resolution, and readonly/exported tracking. The scope-stack shape
// mirrors the merge-on-read pattern internal/clog uses for context
// attribute bags — innermost scope wins, falling through to each
// enclosing one and finally the global/exported environment.
package variable

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/CadenFinley/cjsh-interp/internal/cjsh/core"
)

// Frame is one scope-stack entry: a function call's local bindings plus
// its positional-parameter snapshot.
type Frame struct {
	vars       map[string]*core.VariableEntry
	positional []string
}

func newFrame() *Frame {
	return &Frame{vars: make(map[string]*core.VariableEntry)}
}

// Manager is the process-wide (single-threaded) variable store.
type Manager struct {
	global        *Frame
	stack         []*Frame
	lastStatus    int
	lastSubStatus int
	lastBgPID     int
	pipestatus    []int
	// IFS is kept here (not in vars) so Open Question 2's field-splitting
	// decision (§9) has one unambiguous source of truth even when IFS
	// itself has never been explicitly assigned by the script.
	ifs string
}

// New creates a Manager with an empty global scope and the default IFS
// (space, tab, newline). Positional parameters start empty ($0 excluded —
// callers set it explicitly via SetTopLevelArgs).
func New(defaultIFS string) *Manager {
	m := &Manager{global: newFrame(), ifs: defaultIFS}
	m.global.positional = nil
	return m
}

// PushScope enters a new local scope (function call discipline, §4.11).
func (m *Manager) PushScope(args []string) {
	f := newFrame()
	f.positional = args
	m.stack = append(m.stack, f)
}

// PopScope leaves the current local scope, discarding its bindings and
// restoring the caller's positional parameters.
func (m *Manager) PopScope() {
	if len(m.stack) == 0 {
		return
	}
	m.stack = m.stack[:len(m.stack)-1]
}

func (m *Manager) frames() []*Frame {
	all := make([]*Frame, 0, len(m.stack)+1)
	for i := len(m.stack) - 1; i >= 0; i-- {
		all = append(all, m.stack[i])
	}
	all = append(all, m.global)
	return all
}

func (m *Manager) currentFrame() *Frame {
	if len(m.stack) > 0 {
		return m.stack[len(m.stack)-1]
	}
	return m.global
}

// Get resolves name as a special parameter first, then with scope
// precedence, then from the process environment for an exported fallback. ok is false only when
// name is entirely unknown (unset, not special, not exported).
func (m *Manager) Get(name string) (string, bool) {
	if special, ok := m.getSpecial(name); ok {
		return special, true
	}
	for _, f := range m.frames() {
		if e, ok := f.vars[name]; ok {
			return e.Value, true
		}
	}
	if v, ok := os.LookupEnv(name); ok {
		return v, true
	}
	return "", false
}

func (m *Manager) getSpecial(name string) (string, bool) {
	switch name {
	case "?":
		return strconv.Itoa(m.lastStatus), true
	case "$":
		return strconv.Itoa(os.Getpid()), true
	case "!":
		if m.lastBgPID == 0 {
			return "", true
		}
		return strconv.Itoa(m.lastBgPID), true
	case "#":
		return strconv.Itoa(len(m.currentPositionalSource())), true
	case "*":
		sep := " "
		if m.ifs != "" {
			sep = m.ifs[:1]
		}
		return strings.Join(m.currentPositionalSource(), sep), true
	case "@":
		// §9 Open Question 2: a bare/unquoted $@ or one reached through
		// Get still joins on a space and field-splits like $* — the one
		// word per positional regardless of IFS distinction only applies
		// to "$@" standing alone in double quotes, which driver.ExpandWords
		// detects and handles via the Positionals accessor below instead
		// of going through Get.
		return strings.Join(m.currentPositionalSource(), " "), true
	case "0":
		if v, ok := m.global.vars["0"]; ok {
			return v.Value, true
		}
		return "cjsh", true
	}
	if len(name) == 1 && name[0] >= '1' && name[0] <= '9' {
		idx := int(name[0]-'0') - 1
		src := m.currentPositionalSource()
		if idx < len(src) {
			return src[idx], true
		}
		return "", true
	}
	return "", false
}

func (m *Manager) currentPositionalSource() []string {
	if len(m.stack) > 0 {
		return m.stack[len(m.stack)-1].positional
	}
	return m.global.positional
}

// Positionals returns the positional parameters as distinct words, for
// callers implementing "$@" expansion inside double quotes where each
// positional must remain its own field.
func (m *Manager) Positionals() []string {
	return append([]string(nil), m.currentPositionalSource()...)
}

// SetTopLevelArgs sets $0 and the script-level positional parameters.
func (m *Manager) SetTopLevelArgs(arg0 string, args []string) {
	m.global.vars["0"] = &core.VariableEntry{Value: arg0}
	m.global.positional = args
}

// Set writes in the scope where name already exists (innermost first);
// otherwise writes into the global scope, per §4.11.
func (m *Manager) Set(name, value string) error {
	for _, f := range m.frames() {
		if e, ok := f.vars[name]; ok {
			if e.Readonly {
				return fmt.Errorf("%s: readonly variable", name)
			}
			e.Value = value
			return nil
		}
	}
	m.global.vars[name] = &core.VariableEntry{Value: value}
	return nil
}

// SetLocal forces a write into the top-of-stack scope, for `local x=1`.
func (m *Manager) SetLocal(name, value string) error {
	f := m.currentFrame()
	if e, ok := f.vars[name]; ok {
		if e.Readonly {
			return fmt.Errorf("%s: readonly variable", name)
		}
		e.Value = value
		return nil
	}
	f.vars[name] = &core.VariableEntry{Value: value}
	return nil
}

// Unset removes name from the current scope; a no-op if absent there (it
// does not fall through to enclosing scopes, per §4.11).
func (m *Manager) Unset(name string) error {
	f := m.currentFrame()
	if e, ok := f.vars[name]; ok && e.Readonly {
		return fmt.Errorf("%s: readonly variable", name)
	}
	delete(f.vars, name)
	return nil
}

func (m *Manager) MarkExported(name string) error {
	e := m.findOrCreate(name)
	e.Exported = true
	return os.Setenv(name, e.Value)
}

func (m *Manager) MarkReadonly(name string) {
	e := m.findOrCreate(name)
	e.Readonly = true
}

func (m *Manager) IsReadonly(name string) bool {
	for _, f := range m.frames() {
		if e, ok := f.vars[name]; ok {
			return e.Readonly
		}
	}
	return false
}

func (m *Manager) findOrCreate(name string) *core.VariableEntry {
	for _, f := range m.frames() {
		if e, ok := f.vars[name]; ok {
			return e
		}
	}
	e := &core.VariableEntry{}
	m.global.vars[name] = e
	return e
}

// ExportedList returns "name=value" for every exported variable, snapshot
// at call time — used when spawning a child process (§5: "exported to
// children are snapshotted at the point of fork").
func (m *Manager) ExportedList() []string {
	var out []string
	seen := make(map[string]bool)
	for _, f := range m.frames() {
		for name, e := range f.vars {
			if e.Exported && !seen[name] {
				out = append(out, name+"="+e.Value)
				seen[name] = true
			}
		}
	}
	return out
}

// --- interpreter-state bookkeeping: $?, PIPESTATUS, last background pid ---

func (m *Manager) LastStatus() int     { return m.lastStatus }
func (m *Manager) SetLastStatus(n int) { m.lastStatus = n }

func (m *Manager) LastSubstitutionStatus() int     { return m.lastSubStatus }
func (m *Manager) SetLastSubstitutionStatus(n int) { m.lastSubStatus = n }

func (m *Manager) SetLastBackgroundPID(pid int) { m.lastBgPID = pid }

// SetPipestatus records the exit codes of the most recently run pipeline
// and mirrors them into the PIPESTATUS variable, per §5: "must never be
// observed in a torn state" — callers install the whole slice at once.
func (m *Manager) SetPipestatus(codes []int) {
	m.pipestatus = append([]int(nil), codes...)
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = strconv.Itoa(c)
	}
	m.global.vars["PIPESTATUS"] = &core.VariableEntry{Value: strings.Join(parts, " ")}
}

func (m *Manager) Pipestatus() []int {
	return append([]int(nil), m.pipestatus...)
}

func (m *Manager) IFS() string {
	if v, ok := m.Get("IFS"); ok {
		return v
	}
	return m.ifs
}
