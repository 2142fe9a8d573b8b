// Command cjsh-run is a demo CLI: not a specified module, it exists so
// the whole pipeline (tokenizer -> validator -> driver -> pipelineexec)
// has one concrete, runnable entry point. It takes exactly one
// positional argument, a script path; no other flag parsing, since the
// outer CLI's flag surface is explicitly out of scope for the
// interpreter core this binary demonstrates.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/CadenFinley/cjsh-interp/internal/clog"
	"github.com/CadenFinley/cjsh-interp/internal/cjsh/driver"
	"github.com/CadenFinley/cjsh-interp/pkg/cjshconfig"
	"github.com/CadenFinley/cjsh-interp/pkg/pipelineexec"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: cjsh-run <script>")
		return 2
	}
	scriptPath := args[0]

	cfg, err := cjshconfig.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	handler := clog.NewAttributesHandler(clog.NewTextHandler(os.Stderr, clog.WithLevel(cfg.SlogLevel())))
	logger := slog.New(handler)
	slog.SetDefault(logger)

	content, err := os.ReadFile(scriptPath)
	if err != nil {
		logger.Error("failed to read script", "error", err, "path", scriptPath)
		return 1
	}

	pipeline := pipelineexec.NewOSPipelineExecutor()
	commands := &pipelineexec.OSCommandExecutor{}

	d := driver.New(driver.Options{
		Pipeline:          pipeline,
		Commands:          commands,
		Logger:            logger,
		IFS:               cfg.IFS,
		ErrexitDefault:    cfg.ErrexitDefault,
		VerboseDefault:    cfg.VerboseDefault,
		MaxFunctionDepth:  cfg.MaxFunctionDepth,
		MaxLoopIterations: cfg.MaxLoopIterations,
	})
	d.Variables().SetTopLevelArgs(scriptPath, nil)

	lines := driver.ParseIntoLines(string(content))
	ctx := context.Background()
	code, runErr := d.ExecuteBlock(ctx, lines, false)
	pipeline.Wait()
	if runErr != nil {
		logger.Error("script execution failed", "error", runErr, "path", scriptPath)
	}
	return code
}
