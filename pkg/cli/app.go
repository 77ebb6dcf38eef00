// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/esnode-io/esnode-core/pkg/logging"
)

const (
	appName        = "esnoded"
	versionDefault = "dev"
)

var (
	// overridden at build time with ldflags
	version = versionDefault
	commit  = "unknown"
	date    = "unknown"
)

// ExitError pairs an error with the exit code the process terminates
// with: 1 for a generic failure, 2 for a usage or configuration error.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }
func (e *ExitError) Unwrap() error { return e.Err }

// usageError wraps err as an ExitError with code 2.
func usageError(err error) error {
	return &ExitError{Code: 2, Err: err}
}

// NewApp builds the root esnoded command tree.
func NewApp() *cli.Command {
	return &cli.Command{
		Name:                  appName,
		Version:               version,
		Usage:                 "power-aware node telemetry agent for GPU infrastructure",
		EnableShellCompletion: true,
		Flags:                 append([]cli.Flag{logLevelFlag}, daemonFlags()...),
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			logging.SetDefaultStructuredLoggerWithLevel(appName, version, cmd.String("log-level"))
			return ctx, nil
		},
		// Invoked when esnoded runs with no subcommand name: daemon is
		// the default command.
		Action: runDaemon,
		Commands: []*cli.Command{
			daemonCmd(),
			statusCmd(),
			metricsCmd(),
			profilesCmd(),
			diagnosticsCmd(),
			configCmd(),
			planCmd(),
			applyCmd(),
			enableMetricSetCmd(),
			disableMetricSetCmd(),
		},
	}
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM
// and translates the returned error into the process exit code (0
// success, 1 generic error, 2 usage/configuration error).
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := NewApp().Run(ctx, os.Args)
	if err == nil {
		return
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		os.Stderr.WriteString(exitErr.Error() + "\n")
		os.Exit(exitErr.Code)
	}

	os.Stderr.WriteString(err.Error() + "\n")
	os.Exit(1)
}
