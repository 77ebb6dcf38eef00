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

import "github.com/urfave/cli/v3"

var logLevelFlag = &cli.StringFlag{
	Name:    "log-level",
	Usage:   "log level (debug, info, warn, error)",
	Value:   "info",
	Sources: cli.EnvVars("ESNODE_LOG_LEVEL"),
}

// addressFlag names the base URL of a running daemon's HTTP export
// surface; commands that query or act on a live agent share it.
var addressFlag = &cli.StringFlag{
	Name:    "address",
	Aliases: []string{"a"},
	Usage:   "base URL of a running esnoded instance",
	Value:   "http://127.0.0.1:9100",
	Sources: cli.EnvVars("ESNODE_ADDRESS"),
}

var yesFlag = &cli.BoolFlag{
	Name:    "yes",
	Aliases: []string{"y"},
	Usage:   "apply without an interactive confirmation prompt",
	Sources: cli.EnvVars("ESNODE_YES"),
}
