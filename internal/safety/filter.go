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

// Package safety implements the Agent Runner's pre-tool-use checks: a
// fixed table of dangerous shell command patterns and worktree-containment
// checks for cd targets and file-tool paths. Every check is a closed rule
// over the input, never a heuristic judgment about intent.
package safety

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Verdict is the outcome of a safety check.
type Verdict struct {
	Allowed bool
	Reason  string
}

func allow() Verdict { return Verdict{Allowed: true} }

func deny(reason string) Verdict { return Verdict{Allowed: false, Reason: reason} }

// Filter enforces the Safety Filter's checks against a single worktree.
type Filter struct {
	worktreeRoot string
	writeAllow   []string
}

// NewFilter returns a Filter scoped to worktreeRoot. writeAllowGlobs, when
// non-empty, restricts file-tool writes to paths matching at least one
// doublestar glob (relative to worktreeRoot); an empty list allows any path
// inside the worktree.
func NewFilter(worktreeRoot string, writeAllowGlobs []string) *Filter {
	return &Filter{worktreeRoot: worktreeRoot, writeAllow: writeAllowGlobs}
}

// CheckCommand matches a shell command against the dangerous pattern table
// and, if it contains a `cd`, against worktree containment.
func (f *Filter) CheckCommand(command string) Verdict {
	lower := strings.ToLower(command)
	for _, p := range dangerousPatterns {
		if p.re.MatchString(lower) {
			return deny(fmt.Sprintf("command matches dangerous pattern %q", p.name))
		}
	}

	if m := cdPattern.FindStringSubmatch(command); m != nil {
		target := strings.Trim(m[1], `"'`)
		if v := f.CheckPath(target); !v.Allowed {
			return v
		}
	}

	return allow()
}

// CheckPath verifies that path (absolute or relative to the worktree root)
// resolves to somewhere inside the worktree.
func (f *Filter) CheckPath(path string) Verdict {
	resolved := path
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(f.worktreeRoot, resolved)
	}
	resolved = filepath.Clean(resolved)

	root := filepath.Clean(f.worktreeRoot)
	if resolved != root && !strings.HasPrefix(resolved, root+string(filepath.Separator)) {
		return deny(fmt.Sprintf("path %q escapes worktree %q", path, f.worktreeRoot))
	}
	return allow()
}

// CheckFileWrite verifies both worktree containment and, when an allow-list
// is configured, that the path matches one of the configured globs.
func (f *Filter) CheckFileWrite(path string) Verdict {
	if v := f.CheckPath(path); !v.Allowed {
		return v
	}
	if len(f.writeAllow) == 0 {
		return allow()
	}

	rel := path
	if filepath.IsAbs(rel) {
		r, err := filepath.Rel(f.worktreeRoot, rel)
		if err != nil {
			return deny(fmt.Sprintf("could not relativize path %q: %v", path, err))
		}
		rel = r
	}
	rel = filepath.ToSlash(rel)

	for _, glob := range f.writeAllow {
		if ok, _ := doublestar.Match(glob, rel); ok {
			return allow()
		}
	}
	return deny(fmt.Sprintf("path %q does not match any allowed write pattern", path))
}

// CheckToolUse dispatches a tool-use event to the appropriate check based
// on the tool name. Unknown tools are allowed: the filter only constrains
// the tools it understands (Bash, and file-mutating tools with a path
// argument), per the closed-rule-table design.
func (f *Filter) CheckToolUse(toolName string, input map[string]any) Verdict {
	switch toolName {
	case "Bash":
		cmd, _ := input["command"].(string)
		return f.CheckCommand(cmd)
	case "Write", "Edit", "NotebookEdit":
		path, _ := input["file_path"].(string)
		if path == "" {
			path, _ = input["path"].(string)
		}
		if path == "" {
			return allow()
		}
		return f.CheckFileWrite(path)
	default:
		return allow()
	}
}
