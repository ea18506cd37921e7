// Copyright 2025 Tom Barlow
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

package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/tombee/dispatchd/internal/jq"
)

// Client invokes an external tracker binary as the system of record for
// issues. Every argument is passed as a distinct argv element; command
// text is never built by interpolating user data into a shell string.
type Client struct {
	binary  string
	timeout time.Duration
	jq      *jq.Executor
}

// NewClient returns a Client that invokes binary, bounding every call to
// timeout (0 uses a 30s default).
func NewClient(binary string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		binary:  binary,
		timeout: timeout,
		jq:      jq.NewExecutor(0, 0),
	}
}

// run executes the tracker binary with args in dir, optionally piping
// stdin (used for large free-text payloads like comment bodies), and
// returns stdout.
func (c *Client) run(ctx context.Context, op, dir string, args []string, stdin string) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.binary, args...)
	cmd.Dir = dir

	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w: %s %v", ErrTimeout, op, args)
	}
	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return nil, &CommandError{
			Op:       op,
			Args:     args,
			ExitCode: exitCode,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
	}

	return stdout.Bytes(), nil
}

func filterArgs(f ListFilter) []string {
	var args []string
	if f.Type != "" {
		args = append(args, "--type", f.Type)
	}
	if f.PriorityMin != 0 {
		args = append(args, "--priority-min", strconv.Itoa(f.PriorityMin))
	}
	if f.PriorityMax != 0 {
		args = append(args, "--priority-max", strconv.Itoa(f.PriorityMax))
	}
	for _, l := range f.LabelAny {
		args = append(args, "--label-any", l)
	}
	for _, l := range f.LabelAll {
		args = append(args, "--label-all", l)
	}
	for _, l := range f.LabelNone {
		args = append(args, "--label-none", l)
	}
	if f.Parent != "" {
		args = append(args, "--parent", f.Parent)
	}
	if f.Status != "" {
		args = append(args, "--status", f.Status)
	}
	for _, s := range f.Sort {
		args = append(args, "--sort", s)
	}
	return args
}

func (c *Client) listWith(ctx context.Context, op, projectPath string, args []string) ([]Issue, error) {
	out, err := c.run(ctx, op, projectPath, args, "")
	if err != nil {
		return nil, err
	}
	var issues []Issue
	if err := json.Unmarshal(out, &issues); err != nil {
		return nil, fmt.Errorf("tracker: %s: parse output: %w", op, err)
	}
	return issues, nil
}

// ListReady returns issues matching filter that are, per the tracker's own
// readiness notion (open, no open dependencies), ready to work.
func (c *Client) ListReady(ctx context.Context, projectPath string, filter ListFilter) ([]Issue, error) {
	args := append([]string{"list-ready", "--json"}, filterArgs(filter)...)
	return c.listWith(ctx, "list-ready", projectPath, args)
}

// List returns issues matching filter without the readiness constraint.
func (c *Client) List(ctx context.Context, projectPath string, filter ListFilter) ([]Issue, error) {
	args := append([]string{"list", "--json"}, filterArgs(filter)...)
	return c.listWith(ctx, "list", projectPath, args)
}

// Show fetches a single issue by ID.
func (c *Client) Show(ctx context.Context, projectPath, id string) (*Issue, error) {
	out, err := c.run(ctx, "show", projectPath, []string{"show", id, "--json"}, "")
	if err != nil {
		var cerr *CommandError
		if errors.As(err, &cerr) && cerr.ExitCode == 1 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	var issue Issue
	if err := json.Unmarshal(out, &issue); err != nil {
		return nil, fmt.Errorf("tracker: show: parse output: %w", err)
	}
	return &issue, nil
}

// Create creates a new issue and returns its assigned ID.
func (c *Client) Create(ctx context.Context, projectPath string, in CreateInput) (string, error) {
	args := []string{"create", in.Title, "--json"}
	if in.Priority != 0 {
		args = append(args, "--priority", strconv.Itoa(in.Priority))
	}
	if in.Type != "" {
		args = append(args, "--type", in.Type)
	}
	if in.Parent != "" {
		args = append(args, "--parent", in.Parent)
	}
	for _, l := range in.Labels {
		args = append(args, "--label", l)
	}

	out, err := c.run(ctx, "create", projectPath, args, in.Description)
	if err != nil {
		return "", err
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(out, &resp); err != nil {
		return "", fmt.Errorf("tracker: create: parse output: %w", err)
	}
	return resp.ID, nil
}

// Update applies the non-nil fields of in to issue id.
func (c *Client) Update(ctx context.Context, projectPath, id string, in UpdateInput) error {
	args := []string{"update", id}
	if in.Title != nil {
		args = append(args, "--title", *in.Title)
	}
	if in.Priority != nil {
		args = append(args, "--priority", strconv.Itoa(*in.Priority))
	}
	if in.Status != nil {
		args = append(args, "--status", *in.Status)
	}
	if in.Labels != nil {
		for _, l := range *in.Labels {
			args = append(args, "--label", l)
		}
	}

	stdin := ""
	if in.Description != nil {
		stdin = *in.Description
		args = append(args, "--description-stdin")
	}

	_, err := c.run(ctx, "update", projectPath, args, stdin)
	return err
}

// Close closes issue id, recording reason as its close comment.
func (c *Client) Close(ctx context.Context, projectPath, id, reason string) error {
	_, err := c.run(ctx, "close", projectPath, []string{"close", id, "--reason-stdin"}, reason)
	return err
}

// Comment appends a comment to issue id. Body is piped over stdin so it
// never needs shell quoting.
func (c *Client) Comment(ctx context.Context, projectPath, id, body string) error {
	_, err := c.run(ctx, "comment", projectPath, []string{"comment", id, "--stdin"}, body)
	return err
}

// AddDep records that issue id depends on dependsOn.
func (c *Client) AddDep(ctx context.Context, projectPath, id, dependsOn string) error {
	_, err := c.run(ctx, "add-dep", projectPath, []string{"dep", "add", id, dependsOn}, "")
	return err
}

// RemoveDep removes a previously recorded dependency edge.
func (c *Client) RemoveDep(ctx context.Context, projectPath, id, dependsOn string) error {
	_, err := c.run(ctx, "remove-dep", projectPath, []string{"dep", "remove", id, dependsOn}, "")
	return err
}

// Init creates the tracker's on-disk store for a project.
func (c *Client) Init(ctx context.Context, projectPath string, opts InitOptions) error {
	args := []string{"init"}
	if opts.Stealth {
		args = append(args, "--stealth")
	}
	if opts.Prefix != "" {
		args = append(args, "--prefix", opts.Prefix)
	}
	_, err := c.run(ctx, "init", projectPath, args, "")
	return err
}

// IsInitialized reports whether the tracker has a store for this project.
func (c *Client) IsInitialized(ctx context.Context, projectPath string) (bool, error) {
	_, err := c.run(ctx, "is-initialized", projectPath, []string{"is-initialized"}, "")
	if err != nil {
		var cerr *CommandError
		if errors.As(err, &cerr) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ConfigGet reads a single tracker configuration key.
func (c *Client) ConfigGet(ctx context.Context, projectPath, key string) (string, error) {
	out, err := c.run(ctx, "config-get", projectPath, []string{"config", "get", key}, "")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// ConfigSet writes a single tracker configuration key.
func (c *Client) ConfigSet(ctx context.Context, projectPath, key, value string) error {
	_, err := c.run(ctx, "config-set", projectPath, []string{"config", "set", key, value}, "")
	return err
}

// DaemonStart starts the tracker's own background daemon, if it has one.
func (c *Client) DaemonStart(ctx context.Context, projectPath string) error {
	_, err := c.run(ctx, "daemon-start", projectPath, []string{"daemon", "start"}, "")
	return err
}

// DaemonStop stops the tracker's background daemon.
func (c *Client) DaemonStop(ctx context.Context, projectPath string) error {
	_, err := c.run(ctx, "daemon-stop", projectPath, []string{"daemon", "stop"}, "")
	return err
}

// DaemonStatus reports the tracker daemon's status string.
func (c *Client) DaemonStatus(ctx context.Context, projectPath string) (string, error) {
	out, err := c.run(ctx, "daemon-status", projectPath, []string{"daemon", "status"}, "")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// Project projects an arbitrary jq expression over an issue's raw JSON
// form, used when a caller needs a field the typed Issue struct doesn't
// expose without pulling the whole object.
func (c *Client) Project(ctx context.Context, issue Issue, expression string) (interface{}, error) {
	data, err := json.Marshal(issue)
	if err != nil {
		return nil, err
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, err
	}
	return c.jq.Execute(ctx, expression, generic)
}
