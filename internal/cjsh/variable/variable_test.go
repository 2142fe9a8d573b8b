package variable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSetGlobal(t *testing.T) {
	m := New(" \t\n")
	require.NoError(t, m.Set("x", "1"))
	v, ok := m.Get("x")
	require.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestScopePrecedence(t *testing.T) {
	m := New(" \t\n")
	require.NoError(t, m.Set("x", "global"))

	m.PushScope(nil)
	require.NoError(t, m.SetLocal("x", "local"))
	v, _ := m.Get("x")
	assert.Equal(t, "local", v)

	m.PopScope()
	v, _ = m.Get("x")
	assert.Equal(t, "global", v, "local binding must not leak after PopScope")
}

func TestPositionalParameters(t *testing.T) {
	m := New(" \t\n")
	m.PushScope([]string{"a", "b", "c"})

	count, _ := m.Get("#")
	assert.Equal(t, "3", count)

	first, _ := m.Get("1")
	assert.Equal(t, "a", first)

	joined, _ := m.Get("*")
	assert.Equal(t, "a b c", joined)

	assert.Equal(t, []string{"a", "b", "c"}, m.Positionals())
}

func TestFunctionCallRestoresCallerPositionals(t *testing.T) {
	// §8 property 7: positional parameters of the caller are restored.
	m := New(" \t\n")
	m.PushScope([]string{"outer1"})

	m.PushScope([]string{"inner1", "inner2"})
	inner, _ := m.Get("1")
	assert.Equal(t, "inner1", inner)
	m.PopScope()

	outer, _ := m.Get("1")
	assert.Equal(t, "outer1", outer)
}

func TestReadonly(t *testing.T) {
	m := New(" \t\n")
	require.NoError(t, m.Set("x", "1"))
	m.MarkReadonly("x")

	err := m.Set("x", "2")
	require.Error(t, err)

	v, _ := m.Get("x")
	assert.Equal(t, "1", v, "readonly write must not change the value")
}

func TestUnsetDoesNotFallThrough(t *testing.T) {
	m := New(" \t\n")
	require.NoError(t, m.Set("x", "global"))

	m.PushScope(nil)
	require.NoError(t, m.Unset("x"))
	_, ok := m.Get("x")
	assert.True(t, ok, "unset in local scope must not remove the global binding")
	v, _ := m.Get("x")
	assert.Equal(t, "global", v)
}

func TestPipestatus(t *testing.T) {
	m := New(" \t\n")
	m.SetPipestatus([]int{1, 0})
	assert.Equal(t, []int{1, 0}, m.Pipestatus())

	v, ok := m.Get("PIPESTATUS")
	require.True(t, ok)
	assert.Equal(t, "1 0", v)
}

func TestExportedList(t *testing.T) {
	m := New(" \t\n")
	require.NoError(t, m.Set("PUBLIC", "v"))
	require.NoError(t, m.MarkExported("PUBLIC"))
	require.NoError(t, m.Set("PRIVATE", "v"))

	list := m.ExportedList()
	assert.Contains(t, list, "PUBLIC=v")
	assert.NotContains(t, list, "PRIVATE=v")
}
