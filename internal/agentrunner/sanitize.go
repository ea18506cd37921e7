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

package agentrunner

import (
	"regexp"
	"strings"
)

var (
	runnerPathPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/Users/[^/\s]+`),
		regexp.MustCompile(`/home/[^/\s]+`),
		regexp.MustCompile(`/etc/[^:\s]+`),
		regexp.MustCompile(`C:\\Users\\[^\\]+`),
	}
	runnerIPPattern = regexp.MustCompile(`\b(?:[0-9]{1,3}\.){3}[0-9]{1,3}\b`)
)

// sanitizeTranscriptTail strips paths and IP addresses from the final
// stretch of a run's transcript before it's recorded on an epic's error
// comment, so a failure report never leaks the operator's home directory
// or local network layout.
func sanitizeTranscriptTail(text string) string {
	result := text
	for _, pattern := range runnerPathPatterns {
		result = pattern.ReplaceAllString(result, "[PATH]")
	}
	result = runnerIPPattern.ReplaceAllString(result, "[IP]")

	lines := strings.Split(result, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.Contains(line, ".go:") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// tailLines returns the last n lines of text, used to bound how much of a
// transcript gets attached to an ErrorWorkflow call.
func tailLines(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= n {
		return text
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
