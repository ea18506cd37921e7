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

package safety

import "regexp"

// dangerousPattern pairs a compiled regex with the human-readable reason
// shown to whoever asks why a command was rejected.
type dangerousPattern struct {
	name string
	re   *regexp.Regexp
}

// dangerousPatterns is the fixed table of shell command patterns the Safety
// Filter rejects before a tool call reaches the child process. This is a
// closed rule table, not a heuristic: a command either matches one of these
// or it does not.
var dangerousPatterns = []dangerousPattern{
	{"destructive rm on root", regexp.MustCompile(`\brm\s+(-[a-zA-Z]*r[a-zA-Z]*f[a-zA-Z]*|-[a-zA-Z]*f[a-zA-Z]*r[a-zA-Z]*)\s+/\s*($|[;&|])`)},
	{"destructive rm on home", regexp.MustCompile(`\brm\s+-[a-zA-Z]*r[a-zA-Z]*f[a-zA-Z]*\s+~/?\s*($|[;&|])`)},
	{"rm -rf wildcard", regexp.MustCompile(`\brm\s+-[a-zA-Z]*r[a-zA-Z]*f[a-zA-Z]*\s+\*`)},
	{"forced push", regexp.MustCompile(`\bgit\s+push\b.*(--force\b|--force-with-lease\b|\s-f\b)`)},
	{"hard reset", regexp.MustCompile(`\bgit\s+reset\s+--hard\b`)},
	{"clean working tree", regexp.MustCompile(`\bgit\s+clean\s+.*-[a-zA-Z]*f[a-zA-Z]*d?`)},
	{"recursive chmod 777", regexp.MustCompile(`\bchmod\s+(-[rR]\s+)?777\b.*-[rR]\b|\bchmod\s+-[rR]\s+777\b`)},
	{"recursive chown", regexp.MustCompile(`\bchown\s+-[rR]\b`)},
	{"filesystem format", regexp.MustCompile(`\bmkfs(\.\w+)?\b`)},
	{"raw disk write", regexp.MustCompile(`\bdd\s+.*\bof=/dev/`)},
	{"pipe to shell (curl)", regexp.MustCompile(`\bcurl\b[^|]*\|\s*(sudo\s+)?(sh|bash|zsh)\b`)},
	{"pipe to shell (wget)", regexp.MustCompile(`\bwget\b[^|]*\|\s*(sudo\s+)?(sh|bash|zsh)\b`)},
	{"kill init", regexp.MustCompile(`\bkill\s+(-9\s+)?1\b`)},
	{"killall", regexp.MustCompile(`\bkillall\b`)},
	{"shutdown", regexp.MustCompile(`\bshutdown\b`)},
	{"reboot", regexp.MustCompile(`\breboot\b`)},
}

// cdPattern extracts the target of a `cd` invocation so it can be checked
// for worktree escape separately from the dangerous-pattern table above.
var cdPattern = regexp.MustCompile(`\bcd\s+([^\s;&|]+)`)
