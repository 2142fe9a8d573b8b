package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// runScript writes script to a temp file, runs it through the same run()
// entry point main() uses, and captures whatever the child processes wrote
// to os.Stdout. Swapping the package-level os.Stdout is safe here because
// pipelineexec.OSPipelineExecutor reads it at Execute-time, not at process
// start, and these tests don't run in parallel with each other.
func runScript(t *testing.T, script string) (string, int) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "script.sh")
	require.NoError(t, os.WriteFile(path, []byte(script), 0o644))

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	code := run([]string{path})

	require.NoError(t, w.Close())
	os.Stdout = origStdout

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(out), code
}

// These exercise the S1-S7 scenarios from spec.md's worked examples,
// end to end through the tokenizer, validator, driver and a real
// pipelineexec.OSPipelineExecutor.

func TestScenarioArithmeticAssignment(t *testing.T) {
	out, code := runScript(t, "x=3; y=$((x*x+1)); echo $y\n")
	require.Equal(t, "10\n", out)
	require.Equal(t, 0, code)
}

func TestScenarioForLoop(t *testing.T) {
	out, code := runScript(t, "for i in one two three; do echo $i; done\n")
	require.Equal(t, "one\ntwo\nthree\n", out)
	require.Equal(t, 0, code)
}

func TestScenarioFunctionLocalScope(t *testing.T) {
	out, code := runScript(t, "f(){ local a=1; echo $a; }; a=2; f; echo $a\n")
	require.Equal(t, "1\n2\n", out)
	require.Equal(t, 0, code)
}

func TestScenarioCaseMatch(t *testing.T) {
	out, code := runScript(t, "case apple in a*) echo fruit;; *) echo other;; esac\n")
	require.Equal(t, "fruit\n", out)
	require.Equal(t, 0, code)
}

func TestScenarioParameterDefault(t *testing.T) {
	out, code := runScript(t, "echo ${name:-anon}\n")
	require.Equal(t, "anon\n", out)
	require.Equal(t, 0, code)
}

func TestScenarioAndOrShortCircuit(t *testing.T) {
	out, code := runScript(t, "false && echo X || echo Y\n")
	require.Equal(t, "Y\n", out)
	require.Equal(t, 0, code)
}

func TestScenarioTestBuiltinViaExternalPipeline(t *testing.T) {
	out, code := runScript(t, "if [ -z \"\" ]; then echo empty; fi\n")
	require.Equal(t, "empty\n", out)
	require.Equal(t, 0, code)
}
