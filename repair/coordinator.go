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

// Package repair supervises incremental repair of one node's primary ranges.
// Each owned range is split into sub-ranges and repaired through bounded
// batches of external invocations; discovery failures abort the run, while
// invocation failures are absorbed by retrying.
package repair

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/streamnative/rangerepair/nodetool"
	"github.com/streamnative/rangerepair/ring"
)

const (
	DefaultSteps       = 100
	DefaultConcurrency = 10
)

type Config struct {
	Keyspace     string        `mapstructure:"keyspace"`
	ColumnFamily string        `mapstructure:"columnfamily"`
	Host         string        `mapstructure:"host"`
	Nodetool     string        `mapstructure:"nodetool"`
	Steps        int           `mapstructure:"steps"`
	Concurrency  int           `mapstructure:"concurrency"`
	AllDCs       bool          `mapstructure:"all-dcs"`
	MaxRetries   int           `mapstructure:"max-retries"`
	RetryBackoff time.Duration `mapstructure:"retry-backoff"`
}

func NewConfig() Config {
	return Config{
		Steps:       DefaultSteps,
		Concurrency: DefaultConcurrency,
	}
}

func (c Config) Validate() error {
	if c.Keyspace == "" {
		return errors.New("keyspace must be set")
	}
	if c.Steps <= 0 {
		return ring.ErrInvalidStepCount
	}
	if c.Concurrency <= 0 {
		return errors.New("concurrency must be positive")
	}
	return nil
}

// Discovery lists the ring-wide and per-node tokens. Satisfied by
// *nodetool.Tool.
type Discovery interface {
	RingTokens(ctx context.Context) ([]ring.Token, error)
	NodeTokens(ctx context.Context) ([]ring.Token, error)
}

// discoveryError marks failures of the topology-listing phase. They abort
// the whole run before any sub-range is dispatched.
type discoveryError struct {
	error
}

func (e discoveryError) Unwrap() error {
	return e.error
}

// IsDiscovery reports whether the run was aborted by a ring or token
// discovery failure, the only terminal failure class besides an exhausted
// retry cap.
func IsDiscovery(err error) bool {
	var de discoveryError
	return errors.As(err, &de)
}

// Coordinator drives a full repair run: discovery, per-range partitioning
// and batch dispatch. Owned ranges are processed strictly one at a time.
type Coordinator struct {
	conf      Config
	discovery Discovery
	executor  *Executor
	log       *slog.Logger
}

func NewCoordinator(conf Config, discovery Discovery, invoker Invoker) (*Coordinator, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return &Coordinator{
		conf:      conf,
		discovery: discovery,
		executor:  NewExecutor(invoker, conf.Concurrency, conf.MaxRetries, conf.RetryBackoff),
		log:       slog.Default(),
	}, nil
}

// Run repairs every range owned by the target node. It returns nil only if
// discovery succeeded and every sub-range of every owned range eventually
// succeeded.
func (c *Coordinator) Run(ctx context.Context) error {
	c.log.Info("listing ring tokens, this will take a little bit of time")
	ringTokens, err := c.discovery.RingTokens(ctx)
	if err != nil {
		return discoveryError{errors.Wrap(err, "fetching ring tokens")}
	}

	snapshot, err := ring.NewSnapshot(ringTokens)
	if err != nil {
		return discoveryError{err}
	}

	owned, err := c.discovery.NodeTokens(ctx)
	if err != nil {
		return discoveryError{errors.Wrap(err, "fetching node tokens")}
	}

	partitioner := snapshot.Partitioner()
	for i, token := range owned {
		termination := snapshot.Termination(token)

		c.log.Info(fmt.Sprintf("[%d/%d] repairing range", i+1, len(owned)),
			slog.String("start", partitioner.Format(token)),
			slog.String("end", partitioner.Format(termination)),
			slog.Int("steps", c.conf.Steps),
			slog.Int("concurrency", c.conf.Concurrency),
			slog.String("keyspace", c.conf.Keyspace),
			slog.String("partitioner", partitioner.String()),
		)

		seq, err := ring.Partition(token, termination, c.conf.Steps)
		if err != nil {
			return err
		}

		source := &rangeTasks{
			seq:         seq,
			partitioner: partitioner,
			conf:        c.conf,
		}
		if err := c.executor.Run(ctx, source); err != nil {
			return err
		}
	}

	c.log.Info("repair run complete",
		slog.Int("ranges", len(owned)),
		slog.String("keyspace", c.conf.Keyspace),
	)
	return nil
}

// rangeTasks lazily turns one owned range's sub-range sequence into tasks.
type rangeTasks struct {
	seq         *ring.Sequence
	partitioner ring.Partitioner
	conf        Config
}

func (r *rangeTasks) Next() (*Task, bool) {
	sub, ok := r.seq.Next()
	if !ok {
		return nil, false
	}
	return NewTask(nodetool.RepairRequest{
		Keyspace:     r.conf.Keyspace,
		ColumnFamily: r.conf.ColumnFamily,
		Start:        r.partitioner.Format(sub.Start),
		End:          r.partitioner.Format(sub.End),
		LocalOnly:    !r.conf.AllDCs,
	}), true
}
