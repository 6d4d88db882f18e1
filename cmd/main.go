// Copyright 2025 StreamNative, Inc.
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

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/streamnative/rangerepair/cmd/repair"
	"github.com/streamnative/rangerepair/common/logging"
)

var (
	logLevelStr string
	verbose     bool

	rootCmd = &cobra.Command{
		Use:   "rangerepair",
		Short: "Incremental sub-range repair for Cassandra nodes",
		Long: `Splits each primary range owned by a node into smaller sub-ranges and
repairs them one bounded batch at a time, avoiding the resource spike of
repairing a whole primary range in one pass.`,
		PersistentPreRunE: configureLogLevel,
	}
)

func configureLogLevel(*cobra.Command, []string) error {
	logLevel, err := logging.ParseLogLevel(logLevelStr)
	if err != nil {
		return err
	}
	if verbose {
		logLevel = slog.LevelDebug
	}
	logging.LogLevel = logLevel
	logging.ConfigureLogger()
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&logLevelStr, "log-level", "l", logging.DefaultLogLevel.String(),
		"Set logging level [debug|info|warn|error]")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Shorthand for --log-level debug")
	rootCmd.PersistentFlags().BoolVarP(&logging.LogJSON, "log-json", "j", false, "Print logs in JSON format")

	rootCmd.AddCommand(repair.Cmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
