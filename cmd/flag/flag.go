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

package flag

import (
	"github.com/spf13/cobra"

	"github.com/streamnative/rangerepair/repair"
)

func Keyspace(cmd *cobra.Command, conf *string) {
	cmd.Flags().StringVarP(conf, "keyspace", "k", "", "Keyspace to repair (required)")
}

func ColumnFamily(cmd *cobra.Command, conf *string) {
	cmd.Flags().StringVarP(conf, "columnfamily", "c", "", "Column family to repair")
}

func Host(cmd *cobra.Command, conf *string) {
	cmd.Flags().StringVarP(conf, "host", "H", "", "Hostname to repair")
}

func Steps(cmd *cobra.Command, conf *int) {
	cmd.Flags().IntVarP(conf, "steps", "s", repair.DefaultSteps, "Number of sub-ranges per owned range")
}

func Concurrency(cmd *cobra.Command, conf *int) {
	cmd.Flags().IntVar(conf, "concurrency", repair.DefaultConcurrency, "How many repairs can run in parallel")
}
