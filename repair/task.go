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
	"fmt"

	"github.com/google/uuid"

	"github.com/streamnative/rangerepair/nodetool"
)

type TaskState int

const (
	TaskPending TaskState = iota
	TaskLaunched
	TaskSucceeded
	TaskFailed
)

func (s TaskState) String() string {
	switch s {
	case TaskPending:
		return "pending"
	case TaskLaunched:
		return "launched"
	case TaskSucceeded:
		return "succeeded"
	case TaskFailed:
		return "failed"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// Task is one sub-range repair invocation. A failed task goes back to
// pending and is relaunched with identical arguments; Attempts counts the
// launches so far.
type Task struct {
	ID       uuid.UUID
	Request  nodetool.RepairRequest
	Attempts int

	state TaskState
}

func NewTask(req nodetool.RepairRequest) *Task {
	return &Task{
		ID:      uuid.New(),
		Request: req,
		state:   TaskPending,
	}
}

func (t *Task) State() TaskState {
	return t.state
}

func (t *Task) launch() {
	if t.state != TaskPending {
		panic(fmt.Sprintf("launching task %s in state %s", t.ID, t.state))
	}
	t.state = TaskLaunched
	t.Attempts++
}

func (t *Task) complete(success bool) {
	if t.state != TaskLaunched {
		panic(fmt.Sprintf("completing task %s in state %s", t.ID, t.state))
	}
	if success {
		t.state = TaskSucceeded
	} else {
		t.state = TaskFailed
	}
}

func (t *Task) requeue() {
	if t.state != TaskFailed {
		panic(fmt.Sprintf("requeueing task %s in state %s", t.ID, t.state))
	}
	t.state = TaskPending
}
