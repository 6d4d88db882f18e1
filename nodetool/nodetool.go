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

// Package nodetool drives the external nodetool binary. Only the process
// contract is relied upon: exit status zero means success, and stdout/stderr
// are captured in full on every exit path. No structured information crosses
// the process boundary.
package nodetool

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	"github.com/streamnative/rangerepair/ring"
)

const DefaultBinary = "nodetool"

// ErrRingUnavailable indicates the ring-wide listing command itself failed,
// so no topology information is available at all.
var ErrRingUnavailable = errors.New("ring listing command failed")

// Result is the complete observable outcome of one nodetool invocation.
type Result struct {
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
	// Command is the rendered command line, kept for logging.
	Command string
}

// Runner executes one nodetool invocation to completion. Implementations
// must consume stdout and stderr fully before returning, on success and on
// failure alike.
type Runner interface {
	Run(ctx context.Context, args ...string) Result
}

// Tool builds and runs nodetool commands against an optional target host.
// The binary path is explicit configuration: there is no process-wide
// default beyond the constant.
type Tool struct {
	binary string
	host   string
	runner Runner
}

type Option func(*Tool)

func WithHost(host string) Option {
	return func(t *Tool) {
		t.host = host
	}
}

func WithRunner(runner Runner) Option {
	return func(t *Tool) {
		t.runner = runner
	}
}

func New(binary string, options ...Option) *Tool {
	if binary == "" {
		binary = DefaultBinary
	}
	t := &Tool{binary: binary}
	for _, o := range options {
		o(t)
	}
	if t.runner == nil {
		t.runner = &execRunner{binary: t.binary}
	}
	return t
}

func (t *Tool) args(sub ...string) []string {
	var args []string
	if t.host != "" {
		args = append(args, "-h", t.host)
	}
	return append(args, sub...)
}

// RingTokens runs the ring-wide listing and returns every primary token in
// listing order. A non-zero exit is a discovery failure.
func (t *Tool) RingTokens(ctx context.Context) ([]ring.Token, error) {
	res := t.runner.Run(ctx, t.args("ring")...)
	if !res.Success {
		return nil, errors.Wrap(ErrRingUnavailable, strings.TrimSpace(res.Stderr))
	}
	return ring.ParseRingStatus(res.Stdout)
}

// NodeTokens returns the tokens owned by the target node.
func (t *Tool) NodeTokens(ctx context.Context) ([]ring.Token, error) {
	res := t.runner.Run(ctx, t.args("info", "-T")...)
	if !res.Success || !strings.Contains(res.Stdout, "Token") {
		return nil, errors.Wrap(ring.ErrTokenUnavailable, strings.TrimSpace(res.Stderr))
	}
	return ring.ParseNodeTokens(res.Stdout)
}

// RepairRequest describes one sub-range maintenance invocation. Start and
// End are already formatted for the ring's partitioner.
type RepairRequest struct {
	Keyspace     string
	ColumnFamily string
	Start        string
	End          string
	// LocalOnly restricts the repair to the local datacenter.
	LocalOnly bool
}

// Repair runs one primary-range repair over [Start, End]. The result is
// returned as captured, never turned into an error: retry policy belongs to
// the caller.
func (t *Tool) Repair(ctx context.Context, req RepairRequest) Result {
	sub := []string{"repair", req.Keyspace}
	if req.ColumnFamily != "" {
		sub = append(sub, req.ColumnFamily)
	}
	if req.LocalOnly {
		sub = append(sub, "-local")
	}
	sub = append(sub, "-pr", "-st", req.Start, "-et", req.End)
	return t.runner.Run(ctx, t.args(sub...)...)
}

type execRunner struct {
	binary string
}

func (r *execRunner) Run(ctx context.Context, args ...string) Result {
	var stdout, stderr bytes.Buffer

	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := Result{
		Success: err == nil,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
		Command: r.binary + " " + strings.Join(args, " "),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.ExitCode = 0
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		// The binary could not be started at all. Surface the launch
		// error where the captured stderr would otherwise be.
		res.ExitCode = -1
		res.Stderr = err.Error()
	}
	return res
}
