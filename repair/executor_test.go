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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamnative/rangerepair/nodetool"
)

// fakeInvoker is a deterministic stand-in for the external process: it
// tracks in-flight invocations and fails each range a scripted number of
// times before succeeding.
type fakeInvoker struct {
	sync.Mutex
	failuresLeft map[string]int
	calls        map[string]int
	inFlight     int
	maxInFlight  int
	completed    int
	// completedAtLaunch records how many invocations had already finished
	// when each one started, keyed by range start.
	completedAtLaunch map[string]int
	delay             time.Duration
}

func newFakeInvoker() *fakeInvoker {
	return &fakeInvoker{
		failuresLeft:      map[string]int{},
		calls:             map[string]int{},
		completedAtLaunch: map[string]int{},
	}
}

func (f *fakeInvoker) Repair(_ context.Context, req nodetool.RepairRequest) nodetool.Result {
	f.Lock()
	f.calls[req.Start]++
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	if _, seen := f.completedAtLaunch[req.Start]; !seen {
		f.completedAtLaunch[req.Start] = f.completed
	}
	fail := f.failuresLeft[req.Start] > 0
	if fail {
		f.failuresLeft[req.Start]--
	}
	delay := f.delay
	f.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	f.Lock()
	f.inFlight--
	f.completed++
	f.Unlock()

	if fail {
		return nodetool.Result{Success: false, ExitCode: 1, Stderr: "repair session failed"}
	}
	return nodetool.Result{Success: true}
}

type sliceSource struct {
	tasks []*Task
}

func (s *sliceSource) Next() (*Task, bool) {
	if len(s.tasks) == 0 {
		return nil, false
	}
	t := s.tasks[0]
	s.tasks = s.tasks[1:]
	return t, true
}

func makeTasks(starts ...string) *sliceSource {
	src := &sliceSource{}
	for _, start := range starts {
		src.tasks = append(src.tasks, NewTask(nodetool.RepairRequest{
			Keyspace: "ks",
			Start:    start,
			End:      start + "-end",
		}))
	}
	return src
}

func TestExecutorBoundedConcurrency(t *testing.T) {
	invoker := newFakeInvoker()
	invoker.delay = 10 * time.Millisecond

	exec := NewExecutor(invoker, 2, 0, 0)
	err := exec.Run(context.Background(), makeTasks("a", "b", "c"))
	require.NoError(t, err)

	assert.LessOrEqual(t, invoker.maxInFlight, 2)
	// The batch barrier: the third range may only launch after both ranges
	// of the first batch have fully drained.
	assert.Equal(t, 2, invoker.completedAtLaunch["c"])
}

func TestExecutorRetriesUntilSuccess(t *testing.T) {
	invoker := newFakeInvoker()
	invoker.failuresLeft["b"] = 2

	exec := NewExecutor(invoker, 2, 0, 0)
	err := exec.Run(context.Background(), makeTasks("a", "b", "c"))
	require.NoError(t, err)

	assert.Equal(t, 1, invoker.calls["a"])
	assert.Equal(t, 3, invoker.calls["b"], "fails twice, succeeds on the third attempt")
	assert.Equal(t, 1, invoker.calls["c"])
}

func TestExecutorRetryCycleContainsOnlyFailures(t *testing.T) {
	invoker := newFakeInvoker()
	invoker.failuresLeft["a"] = 1

	exec := NewExecutor(invoker, 2, 0, 0)
	err := exec.Run(context.Background(), makeTasks("a", "b"))
	require.NoError(t, err)

	// b succeeded in the first cycle and must not be relaunched alongside
	// a's retry.
	assert.Equal(t, 2, invoker.calls["a"])
	assert.Equal(t, 1, invoker.calls["b"])
}

func TestExecutorRetriesExhausted(t *testing.T) {
	invoker := newFakeInvoker()
	invoker.failuresLeft["a"] = 10

	exec := NewExecutor(invoker, 1, 2, 0)
	err := exec.Run(context.Background(), makeTasks("a"))
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 3, invoker.calls["a"], "initial attempt plus two retries")
}

func TestExecutorRetryBackoff(t *testing.T) {
	invoker := newFakeInvoker()
	invoker.failuresLeft["a"] = 1

	exec := NewExecutor(invoker, 1, 0, time.Millisecond)
	err := exec.Run(context.Background(), makeTasks("a"))
	require.NoError(t, err)
	assert.Equal(t, 2, invoker.calls["a"])
}

func TestExecutorEmptySource(t *testing.T) {
	invoker := newFakeInvoker()
	exec := NewExecutor(invoker, 4, 0, 0)
	require.NoError(t, exec.Run(context.Background(), &sliceSource{}))
	assert.Empty(t, invoker.calls)
}

func TestTaskStateMachine(t *testing.T) {
	task := NewTask(nodetool.RepairRequest{Keyspace: "ks"})
	assert.Equal(t, TaskPending, task.State())

	task.launch()
	assert.Equal(t, TaskLaunched, task.State())
	assert.Equal(t, 1, task.Attempts)

	task.complete(false)
	assert.Equal(t, TaskFailed, task.State())

	task.requeue()
	assert.Equal(t, TaskPending, task.State())

	task.launch()
	task.complete(true)
	assert.Equal(t, TaskSucceeded, task.State())
	assert.Equal(t, 2, task.Attempts)

	assert.Panics(t, func() { task.launch() })
}
