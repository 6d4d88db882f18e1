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

package repair

import (
	"log/slog"
	"os"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/streamnative/rangerepair/cmd/flag"
	"github.com/streamnative/rangerepair/nodetool"
	"github.com/streamnative/rangerepair/repair"
)

var (
	conf       = repair.NewConfig()
	configFile string

	Cmd = &cobra.Command{
		Use:   "repair",
		Short: "Repair a node's primary ranges in sub-range steps",
		Long: `Lists the ring and the target node's tokens, splits each owned range
into sub-ranges and runs one nodetool repair per sub-range, retrying
failed sub-ranges until they succeed.

Exit code 0 means every owned range was fully repaired, 2 means ring or
token discovery failed (or the retry cap was exhausted) and the run was
aborted.`,
		PreRunE: validate,
		RunE:    exec,
	}
)

func init() {
	Cmd.Flags().SortFlags = false

	flag.Keyspace(Cmd, &conf.Keyspace)
	flag.ColumnFamily(Cmd, &conf.ColumnFamily)
	flag.Host(Cmd, &conf.Host)
	flag.Steps(Cmd, &conf.Steps)
	flag.Concurrency(Cmd, &conf.Concurrency)
	Cmd.Flags().BoolVar(&conf.AllDCs, "all-dcs", false, "Do not limit repair to the local datacenter")
	Cmd.Flags().StringVar(&conf.Nodetool, "nodetool", nodetool.DefaultBinary, "Path of the nodetool binary")
	Cmd.Flags().IntVar(&conf.MaxRetries, "max-retries", 0, "Retries per sub-range before the run fails (0 = retry forever)")
	Cmd.Flags().DurationVar(&conf.RetryBackoff, "retry-backoff", 0, "Initial backoff between retry cycles (0 = retry immediately)")
	Cmd.Flags().StringVarP(&configFile, "conf", "f", "", "Repair defaults config file")
}

func validate(cmd *cobra.Command, _ []string) error {
	if configFile != "" {
		if err := applyConfigFile(cmd); err != nil {
			return err
		}
	}
	return conf.Validate()
}

// applyConfigFile fills in defaults from the config file for every setting
// the user did not pass explicitly. Flags always win over the file.
func applyConfigFile(cmd *cobra.Command) error {
	v := viper.New()
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrap(err, "reading config file")
	}

	fileConf := repair.Config{}
	if err := v.Unmarshal(&fileConf, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return errors.Wrap(err, "unmarshalling config file")
	}

	flags := cmd.Flags()
	if !flags.Changed("keyspace") && fileConf.Keyspace != "" {
		conf.Keyspace = fileConf.Keyspace
	}
	if !flags.Changed("columnfamily") && fileConf.ColumnFamily != "" {
		conf.ColumnFamily = fileConf.ColumnFamily
	}
	if !flags.Changed("host") && fileConf.Host != "" {
		conf.Host = fileConf.Host
	}
	if !flags.Changed("nodetool") && fileConf.Nodetool != "" {
		conf.Nodetool = fileConf.Nodetool
	}
	if !flags.Changed("steps") && fileConf.Steps != 0 {
		conf.Steps = fileConf.Steps
	}
	if !flags.Changed("concurrency") && fileConf.Concurrency != 0 {
		conf.Concurrency = fileConf.Concurrency
	}
	if !flags.Changed("all-dcs") && fileConf.AllDCs {
		conf.AllDCs = true
	}
	if !flags.Changed("max-retries") && fileConf.MaxRetries != 0 {
		conf.MaxRetries = fileConf.MaxRetries
	}
	if !flags.Changed("retry-backoff") && fileConf.RetryBackoff != 0 {
		conf.RetryBackoff = fileConf.RetryBackoff
	}
	return nil
}

func exec(cmd *cobra.Command, _ []string) error {
	tool := nodetool.New(conf.Nodetool, nodetool.WithHost(conf.Host))

	coordinator, err := repair.NewCoordinator(conf, tool, tool)
	if err != nil {
		return err
	}

	if err := coordinator.Run(cmd.Context()); err != nil {
		slog.Error("repair run aborted",
			slog.Any("error", err),
		)
		os.Exit(2)
	}
	return nil
}
