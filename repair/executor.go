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
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/streamnative/rangerepair/common"
	"github.com/streamnative/rangerepair/nodetool"
)

// ErrRetriesExhausted is returned when a sub-range keeps failing past the
// configured retry cap. With an unlimited cap (the default) it is never
// produced: a permanently failing sub-range retries forever.
var ErrRetriesExhausted = errors.New("sub-range repair retries exhausted")

// Invoker runs one external maintenance operation over one sub-range. It is
// an interface so the executor can be exercised without spawning processes.
type Invoker interface {
	Repair(ctx context.Context, req nodetool.RepairRequest) nodetool.Result
}

// TaskSource produces the tasks of one owned range, in sub-range order.
type TaskSource interface {
	Next() (*Task, bool)
}

// Executor dispatches the tasks of one owned range with at most concurrency
// invocations in flight, using a batch barrier: a batch is launched in full,
// drained in full, and its failures form the entire next batch. Nothing new
// launches while any invocation of the current batch is still running.
type Executor struct {
	invoker      Invoker
	concurrency  int
	maxRetries   int
	retryBackoff time.Duration
	log          *slog.Logger
}

func NewExecutor(invoker Invoker, concurrency, maxRetries int, retryBackoff time.Duration) *Executor {
	return &Executor{
		invoker:      invoker,
		concurrency:  concurrency,
		maxRetries:   maxRetries,
		retryBackoff: retryBackoff,
		log:          slog.Default(),
	}
}

// Run drains the task source. It returns nil only once every task has
// succeeded, however many launches that took.
func (e *Executor) Run(ctx context.Context, source TaskSource) error {
	var bo backoff.BackOff
	if e.retryBackoff > 0 {
		bo = common.NewBackOffWithInitialInterval(ctx, e.retryBackoff)
	}

	step := 0
	for {
		batch := e.nextBatch(source, &step)
		if len(batch) == 0 {
			return nil
		}
		if bo != nil {
			bo.Reset()
		}

		for {
			e.launchAndDrain(ctx, batch)

			var failed []*Task
			for _, task := range batch {
				if task.State() != TaskFailed {
					continue
				}
				if e.maxRetries > 0 && task.Attempts > e.maxRetries {
					return errors.Wrapf(ErrRetriesExhausted,
						"range (%s, %s) failed %d times",
						task.Request.Start, task.Request.End, task.Attempts)
				}
				task.requeue()
				failed = append(failed, task)
			}
			if len(failed) == 0 {
				break
			}
			batch = failed

			if err := e.waitRetry(ctx, bo, len(failed)); err != nil {
				return err
			}
		}
	}
}

func (e *Executor) nextBatch(source TaskSource, step *int) []*Task {
	var batch []*Task
	for len(batch) < e.concurrency {
		task, ok := source.Next()
		if !ok {
			break
		}
		e.log.Debug("queueing sub-range repair",
			slog.String("task", task.ID.String()),
			slog.String("step", fmt.Sprintf("%04d", *step)),
			slog.String("start", task.Request.Start),
			slog.String("end", task.Request.End),
			slog.String("keyspace", task.Request.Keyspace),
		)
		*step++
		batch = append(batch, task)
	}
	return batch
}

// launchAndDrain runs every task of the batch concurrently and blocks until
// all of them are terminal. Completion order within the batch is irrelevant;
// the slowest invocation gates the whole batch.
func (e *Executor) launchAndDrain(ctx context.Context, batch []*Task) {
	done := make(chan struct{}, len(batch))

	for _, task := range batch {
		task := task
		task.launch()
		go common.DoWithLabels(map[string]string{
			"repair": "sub-range",
			"task":   task.ID.String(),
		}, func() {
			res := e.invoker.Repair(ctx, task.Request)
			task.complete(res.Success)
			if !res.Success {
				e.log.Error("sub-range repair failed",
					slog.String("task", task.ID.String()),
					slog.String("command", res.Command),
					slog.Int("exit-code", res.ExitCode),
					slog.Int("attempts", task.Attempts),
					slog.String("stderr", res.Stderr),
				)
			}
			done <- struct{}{}
		})
	}

	for range batch {
		<-done
	}
}

func (e *Executor) waitRetry(ctx context.Context, bo backoff.BackOff, failures int) error {
	if bo == nil {
		return nil
	}

	wait := bo.NextBackOff()
	if wait == backoff.Stop {
		return ctx.Err()
	}
	e.log.Info("backing off before retry cycle",
		slog.Int("failures", failures),
		slog.Duration("wait", wait),
	)

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
