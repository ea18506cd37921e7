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

package dconfig

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidConfig is returned when configuration validation fails.
var ErrInvalidConfig = errors.New("dconfig: invalid configuration")

// Config is the complete dispatchd configuration: the project registry,
// admission caps, tracker binary location, CI polling policy, notifier
// sinks, and the control socket path.
type Config struct {
	// Version is the config schema version. Bumped on breaking changes.
	Version int `yaml:"version,omitempty"`

	Log       LogConfig        `yaml:"log"`
	Tracker   TrackerConfig    `yaml:"tracker"`
	Agent     AgentConfig      `yaml:"agent"`
	Admission AdmissionConfig  `yaml:"admission"`
	CI        CIConfig         `yaml:"ci"`
	Control   ControlConfig    `yaml:"control"`
	Notify    NotifyConfig     `yaml:"notify"`
	Projects  []ProjectConfig  `yaml:"projects,omitempty"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level is the minimum log level (debug, info, warn, error, trace).
	// Environment: DISPATCHD_LOG_LEVEL
	Level string `yaml:"level"`

	// Format is the output format (json, text).
	Format string `yaml:"format"`
}

// TrackerConfig locates the external issue-tracker binary.
type TrackerConfig struct {
	// Binary is the path (or PATH-resolvable name) of the tracker executable.
	Binary string `yaml:"binary"`

	// Timeout bounds every invocation of the tracker binary.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// AgentConfig locates the coding-assistant binary the Agent Runner spawns
// and names the credential keys internal/secrets resolves for it.
type AgentConfig struct {
	// Binary is the path (or PATH-resolvable name) of the agent CLI, e.g. "claude".
	Binary string `yaml:"binary"`

	// SecretKeys lists environment variable names (e.g. ANTHROPIC_API_KEY)
	// the secrets Resolver looks up and injects into every spawned agent
	// process, falling back to the keychain when unset in the environment.
	SecretKeys []string `yaml:"secret_keys,omitempty"`
}

// AdmissionConfig bounds how much concurrent agent work the dispatcher runs.
type AdmissionConfig struct {
	// MaxTotal is the global cap on concurrently active work items.
	MaxTotal int `yaml:"max_total"`

	// MaxPerProject is the per-project cap on concurrently active work items.
	MaxPerProject int `yaml:"max_per_project"`

	// MaxDispatchAttempts is the circuit breaker threshold: a step that
	// fails to launch this many times is blocked rather than retried.
	MaxDispatchAttempts int `yaml:"max_dispatch_attempts"`
}

// CIConfig controls how the dispatcher watches pull request CI status.
type CIConfig struct {
	// PollInterval enables the CI watcher when positive. The watcher polls
	// each pending step once per tick; this value does not change how often.
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`

	// MaxRetries is copied into the dispatcher's Config as CIMaxRetries.
	// The CI watcher does not read it: every failed CI result hands the step
	// back to the implementation role as a new step, with no retry limit.
	MaxRetries int `yaml:"max_retries"`
}

// ControlConfig configures the live-control Unix socket listener.
type ControlConfig struct {
	// SocketPath is the Unix socket path dispatchd listens on for
	// pause/resume/stop/status/list/answer requests (there is no retry
	// request).
	// Environment: DISPATCHD_SOCKET
	SocketPath string `yaml:"socket_path,omitempty"`
}

// NotifyConfig configures the sinks the Notifier delivers messages to.
type NotifyConfig struct {
	// Sinks is the ordered list of configured delivery destinations.
	Sinks []NotifySinkConfig `yaml:"sinks,omitempty"`
}

// NotifySinkConfig configures a single notification sink.
type NotifySinkConfig struct {
	// Type selects the sink implementation: "stdout", "webhook", or "file".
	Type string `yaml:"type"`

	// URL is the webhook endpoint (type=webhook).
	URL string `yaml:"url,omitempty"`

	// Path is the destination file (type=file).
	Path string `yaml:"path,omitempty"`
}

// ProjectConfig registers a repository the dispatcher may dispatch work into.
type ProjectConfig struct {
	// Name is the unique project identifier, referenced by workflow labels
	// as project:<name>.
	Name string `yaml:"name"`

	// Path is the absolute path to the repository's main checkout.
	Path string `yaml:"path"`

	// DefaultBranch is the branch worktrees are created from.
	DefaultBranch string `yaml:"default_branch,omitempty"`

	// IsolationMode is "committed" (each step's work is a normal commit on
	// its branch) or "stealth" (work is kept uncommitted in the worktree
	// until a hand-off promotes it).
	IsolationMode string `yaml:"isolation_mode,omitempty"`

	// RoleDescDir is the directory of per-role system-prompt files used
	// when spawning the agent for a workflow step.
	RoleDescDir string `yaml:"role_desc_dir,omitempty"`
}

const (
	// IsolationCommitted is the default isolation mode.
	IsolationCommitted = "committed"
	// IsolationStealth keeps step work uncommitted until hand-off.
	IsolationStealth = "stealth"
)

// Default returns a Config with sensible defaults applied.
func Default() *Config {
	return &Config{
		Version: 2,
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Tracker: TrackerConfig{
			Binary:  "tracker",
			Timeout: 30 * time.Second,
		},
		Agent: AgentConfig{
			Binary:     "claude",
			SecretKeys: []string{"ANTHROPIC_API_KEY"},
		},
		Admission: AdmissionConfig{
			MaxTotal:            4,
			MaxPerProject:       2,
			MaxDispatchAttempts: 3,
		},
		CI: CIConfig{
			PollInterval: 2 * time.Minute,
			MaxRetries:   3,
		},
		Control: ControlConfig{
			SocketPath: defaultSocketPath(),
		},
	}
}

// applyDefaults fills zero-valued fields with Default()'s values, allowing
// partial config.yaml files to omit anything they don't want to override.
func (c *Config) applyDefaults() {
	d := Default()

	if c.Version == 0 {
		c.Version = d.Version
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
	if c.Tracker.Binary == "" {
		c.Tracker.Binary = d.Tracker.Binary
	}
	if c.Tracker.Timeout == 0 {
		c.Tracker.Timeout = d.Tracker.Timeout
	}
	if c.Agent.Binary == "" {
		c.Agent.Binary = d.Agent.Binary
	}
	if c.Admission.MaxTotal == 0 {
		c.Admission.MaxTotal = d.Admission.MaxTotal
	}
	if c.Admission.MaxPerProject == 0 {
		c.Admission.MaxPerProject = d.Admission.MaxPerProject
	}
	if c.Admission.MaxDispatchAttempts == 0 {
		c.Admission.MaxDispatchAttempts = d.Admission.MaxDispatchAttempts
	}
	if c.CI.PollInterval == 0 {
		c.CI.PollInterval = d.CI.PollInterval
	}
	if c.CI.MaxRetries == 0 {
		c.CI.MaxRetries = d.CI.MaxRetries
	}
	if c.Control.SocketPath == "" {
		c.Control.SocketPath = d.Control.SocketPath
	}

	for i := range c.Projects {
		if c.Projects[i].DefaultBranch == "" {
			c.Projects[i].DefaultBranch = "main"
		}
		if c.Projects[i].IsolationMode == "" {
			c.Projects[i].IsolationMode = IsolationCommitted
		}
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	var errs []string

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	if c.Admission.MaxTotal <= 0 {
		errs = append(errs, fmt.Sprintf("admission.max_total must be positive, got %d", c.Admission.MaxTotal))
	}
	if c.Admission.MaxPerProject <= 0 {
		errs = append(errs, fmt.Sprintf("admission.max_per_project must be positive, got %d", c.Admission.MaxPerProject))
	}
	if c.Admission.MaxPerProject > c.Admission.MaxTotal {
		errs = append(errs, "admission.max_per_project must not exceed admission.max_total")
	}

	seen := make(map[string]bool, len(c.Projects))
	for i, p := range c.Projects {
		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("projects[%d]: name is required", i))
			continue
		}
		if seen[p.Name] {
			errs = append(errs, fmt.Sprintf("projects[%d]: duplicate project name %q", i, p.Name))
		}
		seen[p.Name] = true
		if p.Path == "" {
			errs = append(errs, fmt.Sprintf("projects[%d] (%s): path is required", i, p.Name))
		}
		if p.IsolationMode != "" && p.IsolationMode != IsolationCommitted && p.IsolationMode != IsolationStealth {
			errs = append(errs, fmt.Sprintf("projects[%d] (%s): isolation_mode must be %q or %q, got %q", i, p.Name, IsolationCommitted, IsolationStealth, p.IsolationMode))
		}
	}

	for i, sink := range c.Notify.Sinks {
		switch sink.Type {
		case "stdout":
		case "webhook":
			if sink.URL == "" {
				errs = append(errs, fmt.Sprintf("notify.sinks[%d]: url is required for type=webhook", i))
			}
		case "file":
			if sink.Path == "" {
				errs = append(errs, fmt.Sprintf("notify.sinks[%d]: path is required for type=file", i))
			}
		default:
			errs = append(errs, fmt.Sprintf("notify.sinks[%d]: unknown type %q", i, sink.Type))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}
	return nil
}

// ProjectByName returns the registered project with the given name.
func (c *Config) ProjectByName(name string) (ProjectConfig, bool) {
	for _, p := range c.Projects {
		if p.Name == name {
			return p, true
		}
	}
	return ProjectConfig{}, false
}
