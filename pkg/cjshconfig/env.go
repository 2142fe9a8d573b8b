// Package cjshconfig loads the interpreter's runtime tunables from the
// environment, the way taskguild's internal/config/env.go loaded its
// server config — but for cjsh there is no config *file* (configuration
// file handling is explicitly out of scope for the interpreter core), so
// this is environment-variable-only, no .cjshrc parsing.
package cjshconfig

import (
	"fmt"
	"log/slog"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the handful of knobs the interpreter driver (§4.13) and
// variable manager (§4.11) read at startup: whether errexit/verbose are on
// by default, the default IFS, and recursion/iteration ceilings that guard
// against runaway recursive functions or infinite loops in a hosted
// environment. Loops stop at a fixed ceiling of 10,000,000 iterations;
// MaxLoopIterations does not change that ceiling.
type Config struct {
	LogLevel          string `envconfig:"LOG_LEVEL" default:"info"`
	ErrexitDefault    bool   `envconfig:"ERREXIT_DEFAULT" default:"false"`
	VerboseDefault    bool   `envconfig:"VERBOSE_DEFAULT" default:"false"`
	IFS               string `envconfig:"IFS" default:" \t\n"`
	MaxFunctionDepth  int    `envconfig:"MAX_FUNCTION_DEPTH" default:"1000"`
	MaxLoopIterations int    `envconfig:"MAX_LOOP_ITERATIONS" default:"10000000"`
}

const namespace = "CJSH"

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(namespace, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load cjsh config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	if c == nil {
		return slog.LevelInfo
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Default returns a Config populated with the documented defaults, for
// callers (tests, library embedders) that don't want to touch the
// environment at all.
func Default() *Config {
	return &Config{
		LogLevel:          "info",
		ErrexitDefault:    false,
		VerboseDefault:    false,
		IFS:               " \t\n",
		MaxFunctionDepth:  1000,
		MaxLoopIterations: 10000000,
	}
}
