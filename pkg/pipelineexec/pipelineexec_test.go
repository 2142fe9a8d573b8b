package pipelineexec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/CadenFinley/cjsh-interp/internal/cjsh/core"
)

func cmd(argv ...string) *core.Command {
	return &core.Command{Argv: argv}
}

func TestExecuteSingleCommand(t *testing.T) {
	e := NewOSPipelineExecutor()
	code, err := e.Execute(context.Background(), []*core.Command{cmd("true")})
	require.NoError(t, err)
	require.Equal(t, 0, code)
}

func TestExecuteNonZeroExit(t *testing.T) {
	e := NewOSPipelineExecutor()
	code, err := e.Execute(context.Background(), []*core.Command{cmd("false")})
	require.NoError(t, err)
	require.Equal(t, 1, code)
}

func TestExecutePipelineWiresStages(t *testing.T) {
	e := NewOSPipelineExecutor()
	cmds := []*core.Command{
		cmd("echo", "hello"),
		cmd("cat"),
	}
	code, err := e.Execute(context.Background(), cmds)
	require.NoError(t, err)
	require.Equal(t, 0, code)
}

func TestExecuteRecordsPerStageStatuses(t *testing.T) {
	e := NewOSPipelineExecutor()
	_, err := e.Execute(context.Background(), []*core.Command{cmd("true"), cmd("false")})
	require.NoError(t, err)
	statuses := e.LastPipelineStatuses()
	require.Equal(t, []int{0, 1}, statuses)
}

func TestExecuteNegatedPipeline(t *testing.T) {
	e := NewOSPipelineExecutor()
	cmds := []*core.Command{cmd("false")}
	cmds[0].NegatePipeline = true
	code, err := e.Execute(context.Background(), cmds)
	require.NoError(t, err)
	require.Equal(t, 0, code, "! false should report success")
}

func TestExecuteBackgroundReturnsImmediately(t *testing.T) {
	e := NewOSPipelineExecutor()
	cmds := []*core.Command{cmd("true")}
	cmds[0].Background = true
	code, err := e.Execute(context.Background(), cmds)
	require.NoError(t, err)
	require.Equal(t, 0, code)
	e.Wait()
}

func TestExecuteUnknownCommandIsNotExecutable(t *testing.T) {
	e := NewOSPipelineExecutor()
	code, err := e.Execute(context.Background(), []*core.Command{cmd("definitely-not-a-real-command-xyz")})
	require.Error(t, err)
	require.Equal(t, core.ExitNotExecutable, code)
}

func TestExecuteHeredocFeedsStdin(t *testing.T) {
	e := NewOSPipelineExecutor()
	c := cmd("cat")
	c.Redirections = []core.RedirectionOp{{Kind: core.RedirHeredoc}}
	c.HeredocBody = "one\ntwo\n"
	code, err := e.Execute(context.Background(), []*core.Command{c})
	require.NoError(t, err)
	require.Equal(t, 0, code)
}

func TestOSCommandExecutorCapturesStdout(t *testing.T) {
	e := &OSCommandExecutor{}
	out, code, err := e.Execute(context.Background(), "echo hi")
	require.NoError(t, err)
	require.Equal(t, 0, code)
	require.Equal(t, "hi\n", out)
}

func TestOSCommandExecutorNonZeroExit(t *testing.T) {
	e := &OSCommandExecutor{}
	_, code, err := e.Execute(context.Background(), "exit 3")
	require.NoError(t, err)
	require.Equal(t, 3, code)
}
