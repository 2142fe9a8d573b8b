package arith

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestEvaluator() (*Evaluator, map[string]int64) {
	vars := map[string]int64{}
	reader := func(name string) (int64, error) { return vars[name], nil }
	writer := func(name string, v int64) error { vars[name] = v; return nil }
	return New(reader, writer), vars
}

func TestEvalBasicArithmetic(t *testing.T) {
	e, _ := newTestEvaluator()
	tests := []struct {
		expr string
		want int64
	}{
		{"", 0},
		{"1+2*3", 7},
		{"(1+2)*3", 9},
		{"2**10", 1024},
		{"7/2", 3},
		{"7%2", 1},
		{"1 == 1", 1},
		{"1 != 1", 0},
		{"1 && 0", 0},
		{"1 || 0", 1},
		{"1 ? 5 : 6", 5},
		{"0 ? 5 : 6", 6},
		{"~0", -1},
		{"!0", 1},
		{"-5", -5},
		{"1 << 4", 16},
		{"256 >> 4", 16},
	}
	for _, tt := range tests {
		got, err := e.Eval(tt.expr)
		require.NoError(t, err, tt.expr)
		require.Equal(t, tt.want, got, tt.expr)
	}
}

func TestEvalWrapping(t *testing.T) {
	e, _ := newTestEvaluator()
	got, err := e.Eval("9223372036854775807 + 1")
	require.NoError(t, err)
	require.Equal(t, int64(math.MinInt64), got)
}

func TestEvalDivModMinInt(t *testing.T) {
	e, _ := newTestEvaluator()
	got, err := e.Eval("-9223372036854775808 / -1")
	require.NoError(t, err)
	require.Equal(t, int64(math.MinInt64), got)

	got, err = e.Eval("-9223372036854775808 % -1")
	require.NoError(t, err)
	require.Equal(t, int64(0), got)
}

func TestEvalDivisionByZero(t *testing.T) {
	e, _ := newTestEvaluator()
	_, err := e.Eval("1/0")
	require.Error(t, err)
}

func TestEvalVariableAssignment(t *testing.T) {
	e, vars := newTestEvaluator()
	got, err := e.Eval("x = 5")
	require.NoError(t, err)
	require.Equal(t, int64(5), got)
	require.Equal(t, int64(5), vars["x"])

	got, err = e.Eval("x += 3")
	require.NoError(t, err)
	require.Equal(t, int64(8), got)
}

func TestEvalIncrementDecrement(t *testing.T) {
	e, vars := newTestEvaluator()
	vars["x"] = 5
	got, err := e.Eval("x++")
	require.NoError(t, err)
	require.Equal(t, int64(5), got)
	require.Equal(t, int64(6), vars["x"])

	got, err = e.Eval("++x")
	require.NoError(t, err)
	require.Equal(t, int64(7), got)
}

func TestEvalReadonlyWriteFails(t *testing.T) {
	reader := func(name string) (int64, error) { return 1, nil }
	writer := func(name string, v int64) error { return errReadonly(name) }
	e := New(reader, writer)
	_, err := e.Eval("x = 2")
	require.Error(t, err)
}

func errReadonly(name string) error {
	return &readonlyError{name}
}

type readonlyError struct{ name string }

func (e *readonlyError) Error() string { return e.name + ": readonly variable" }
