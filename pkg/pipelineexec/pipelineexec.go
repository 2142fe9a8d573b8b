// Package pipelineexec is a concrete, runnable implementation of §6's
// PipelineExecutor/CommandExecutor interfaces, grounded directly in
// taskguild's cmd/taskguild-agent/execute_script.go: spawn via os/exec,
// wire pipe stages together, and map *exec.ExitError to an exit code.
// internal/cjsh itself never imports this package — it is wired in only
// by cmd/cjsh-run and the driver's integration tests.
package pipelineexec

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/sourcegraph/conc"

	"github.com/CadenFinley/cjsh-interp/internal/cjsh/core"
)

// OSPipelineExecutor runs a core.Command pipeline as real child
// processes. Stages are wired stdout-to-stdin for '|'-connected
// commands; RedirectionOps are applied per stage before Start.
type OSPipelineExecutor struct {
	// Dir, if set, becomes every spawned command's working directory.
	Dir string
	// ExtraEnv is appended to os.Environ() for every spawned command,
	// mirroring execute_script.go's TASKGUILD_* env injection pattern
	// (here available for the interpreter's own mirrored globals, §4.13's
	// "mirror $?/PIPESTATUS into env only when a child is about to be
	// spawned" note). Neither the driver nor cmd/cjsh-run sets it, so
	// $? and PIPESTATUS are not placed in a child's environment.
	ExtraEnv []string

	mu       sync.RWMutex
	statuses []int
	bg       conc.WaitGroup
}

func NewOSPipelineExecutor() *OSPipelineExecutor {
	return &OSPipelineExecutor{}
}

// Execute runs cmds as one pipeline and returns the last stage's exit
// code. A Background pipeline is launched on a conc.WaitGroup goroutine
// and returns 0 immediately (the shell convention for `cmd &`); a panic
// inside that detached goroutine is caught by conc rather than crashing
// the interpreter process, the one place this package's process model
// improves on execute_script.go's un-recovered goroutines.
func (e *OSPipelineExecutor) Execute(ctx context.Context, cmds []*core.Command) (int, error) {
	if len(cmds) == 0 {
		return 0, nil
	}
	if cmds[0].Background {
		e.bg.Go(func() {
			_, _ = e.run(ctx, cmds)
		})
		e.mu.Lock()
		e.statuses = []int{0}
		e.mu.Unlock()
		return 0, nil
	}
	return e.run(ctx, cmds)
}

// Wait blocks until every background pipeline launched through Execute
// has finished. Not part of core.PipelineExecutor; a host (cmd/cjsh-run)
// calls it before exiting so backgrounded jobs aren't abandoned mid-run.
func (e *OSPipelineExecutor) Wait() { e.bg.Wait() }

func (e *OSPipelineExecutor) run(ctx context.Context, cmds []*core.Command) (int, error) {
	procs := make([]*exec.Cmd, len(cmds))

	var prevStdout io.ReadCloser
	for i, cmd := range cmds {
		if len(cmd.Argv) == 0 {
			return core.ExitGeneralFailure, fmt.Errorf("empty command in pipeline stage %d", i)
		}
		ec := exec.CommandContext(ctx, cmd.Argv[0], cmd.Argv[1:]...)
		ec.Dir = e.Dir
		ec.Env = append(os.Environ(), e.ExtraEnv...)

		if prevStdout != nil {
			ec.Stdin = prevStdout
		} else {
			ec.Stdin = os.Stdin
		}
		ec.Stdout = os.Stdout
		ec.Stderr = os.Stderr

		if err := applyRedirections(ec, cmd); err != nil {
			return core.ExitGeneralFailure, err
		}

		if i < len(cmds)-1 {
			pr, pw := io.Pipe()
			ec.Stdout = pw
			prevStdout = pr
		} else {
			prevStdout = nil
		}

		procs[i] = ec
	}

	for i, ec := range procs {
		if err := ec.Start(); err != nil {
			return core.ExitNotExecutable, fmt.Errorf("%s: %w", cmds[i].Argv[0], err)
		}
	}

	statuses := make([]int, len(procs))
	for i, ec := range procs {
		waitErr := ec.Wait()
		if closer, ok := ec.Stdout.(*io.PipeWriter); ok {
			_ = closer.Close()
		}
		statuses[i] = exitCodeOf(waitErr)
	}

	e.mu.Lock()
	e.statuses = statuses
	e.mu.Unlock()

	last := statuses[len(statuses)-1]
	if cmds[len(cmds)-1].NegatePipeline {
		last = boolToStatus(last != 0)
	}
	return last, nil
}

func boolToStatus(ok bool) int {
	if ok {
		return 0
	}
	return 1
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return core.ExitGeneralFailure
}

// LastPipelineStatuses satisfies core.PipelineExecutor: every stage's
// exit code from the most recently completed (non-background) Execute
// call, for $PIPESTATUS.
func (e *OSPipelineExecutor) LastPipelineStatuses() []int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]int, len(e.statuses))
	copy(out, e.statuses)
	return out
}

// applyRedirections opens files/builds readers for cmd.Redirections and
// wires them onto ec's Stdin/Stdout/Stderr. An output redirection from any
// source fd other than 2 goes to Stdout; fds above 2 get no descriptor of
// their own.
func applyRedirections(ec *exec.Cmd, cmd *core.Command) error {
	for _, r := range cmd.Redirections {
		switch r.Kind {
		case core.RedirIn:
			f, err := os.Open(r.Target)
			if err != nil {
				return fmt.Errorf("%s: %w", r.Target, err)
			}
			ec.Stdin = f
		case core.RedirOut:
			f, err := os.Create(r.Target)
			if err != nil {
				return fmt.Errorf("%s: %w", r.Target, err)
			}
			assignOut(ec, r.SourceFD, f)
		case core.RedirAppend:
			f, err := os.OpenFile(r.Target, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("%s: %w", r.Target, err)
			}
			assignOut(ec, r.SourceFD, f)
		case core.RedirReadWrite:
			f, err := os.OpenFile(r.Target, os.O_CREATE|os.O_RDWR, 0644)
			if err != nil {
				return fmt.Errorf("%s: %w", r.Target, err)
			}
			ec.Stdin = f
		case core.RedirBoth:
			f, err := os.Create(r.Target)
			if err != nil {
				return fmt.Errorf("%s: %w", r.Target, err)
			}
			ec.Stdout = f
			ec.Stderr = f
		case core.RedirErr:
			f, err := os.Create(r.Target)
			if err != nil {
				return fmt.Errorf("%s: %w", r.Target, err)
			}
			ec.Stderr = f
		case core.RedirErrToOut:
			ec.Stderr = ec.Stdout
		case core.RedirOutToErr:
			ec.Stdout = ec.Stderr
		case core.RedirFDDup:
			applyFDDup(ec, r)
		case core.RedirHeredoc, core.RedirHeredocStrip:
			ec.Stdin = strings.NewReader(cmd.HeredocBody)
		case core.RedirHereString:
			ec.Stdin = strings.NewReader(cmd.HereString + "\n")
		}
	}
	return nil
}

func assignOut(ec *exec.Cmd, sourceFD int, f *os.File) {
	if sourceFD == 2 {
		ec.Stderr = f
		return
	}
	ec.Stdout = f
}

// applyFDDup handles "2>&1"-style duplication: the target fd's current
// writer is reused for the source fd. "1>&2" and "2>&1" are the only
// forms exercised in practice; anything else (dup onto a fd beyond 0-2)
// is a no-op here since exec.Cmd has no generic dup2, only ExtraFiles
// for fds the child inherits positionally.
func applyFDDup(ec *exec.Cmd, r core.RedirectionOp) {
	switch {
	case r.SourceFD == 2 && r.Target == "1":
		ec.Stderr = ec.Stdout
	case r.SourceFD == 1 && r.Target == "2":
		ec.Stdout = ec.Stderr
	case r.SourceFD == 0 && r.Target == "-":
		ec.Stdin = nil
	}
}

// OSCommandExecutor runs a full command line through `/bin/sh -c` for
// command substitution (§4.6), mirroring execute_script.go's
// capture-and-report shape but piping output straight back instead of
// writing a temp file, since substitution output is never replayed to
// disk.
type OSCommandExecutor struct {
	Dir      string
	ExtraEnv []string
}

func (e *OSCommandExecutor) Execute(ctx context.Context, cmdline string) (string, int, error) {
	ec := exec.CommandContext(ctx, "/bin/sh", "-c", cmdline)
	ec.Dir = e.Dir
	ec.Env = append(os.Environ(), e.ExtraEnv...)

	var out bytes.Buffer
	ec.Stdout = &out
	ec.Stderr = os.Stderr
	ec.Stdin = os.Stdin

	err := ec.Run()
	code := exitCodeOf(err)
	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return out.String(), core.ExitNotExecutable, err
		}
	}
	return out.String(), code, nil
}
