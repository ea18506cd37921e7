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

package handoff

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrBadHandoff is returned when a transcript carries no well-formed
// hand-off block.
var ErrBadHandoff = errors.New("handoff: malformed block")

var fenceRe = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*\n(.*?)\n```")

// Parse scans transcript for every fenced block and returns the last one
// that parses as a well-formed hand-off. Blocks that don't mention
// next_agent at all are ignored rather than treated as malformed, since a
// transcript may contain unrelated fenced code.
func Parse(transcript string) (Handoff, error) {
	matches := fenceRe.FindAllStringSubmatch(transcript, -1)

	var (
		found bool
		last  Handoff
	)
	for _, m := range matches {
		body := m[1]
		if !strings.Contains(body, "next_agent:") {
			continue
		}
		h, err := parseBlock(body)
		if err != nil {
			return Handoff{}, err
		}
		last = h
		found = true
	}
	if !found {
		return Handoff{}, fmt.Errorf("%w: no next_agent block found", ErrBadHandoff)
	}
	return last, nil
}

func parseBlock(body string) (Handoff, error) {
	lines := strings.Split(body, "\n")
	var h Handoff
	haveNextAgent := false

	for i := 0; i < len(lines); i++ {
		trimmed := strings.TrimSpace(lines[i])
		switch {
		case strings.HasPrefix(trimmed, "next_agent:"):
			v := strings.TrimSpace(strings.TrimPrefix(trimmed, "next_agent:"))
			if !isKnownNextAgent(v) {
				return Handoff{}, fmt.Errorf("%w: unknown next_agent %q", ErrBadHandoff, v)
			}
			h.NextAgent = v
			haveNextAgent = true

		case strings.HasPrefix(trimmed, "pr_number:"):
			v := strings.TrimSpace(strings.TrimPrefix(trimmed, "pr_number:"))
			if v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					return Handoff{}, fmt.Errorf("%w: pr_number %q is not an integer", ErrBadHandoff, v)
				}
				h.PRNumber = &n
			}

		case strings.HasPrefix(trimmed, "ci_status:"):
			v := strings.TrimSpace(strings.TrimPrefix(trimmed, "ci_status:"))
			if v != "" {
				if !isKnownCIStatus(v) {
					return Handoff{}, fmt.Errorf("%w: unknown ci_status %q", ErrBadHandoff, v)
				}
				h.CIStatus = v
			}

		case strings.HasPrefix(trimmed, "context:"):
			rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "context:"))
			if rest != "|" {
				h.Context = rest
				continue
			}
			ctx, next := scanBlockScalar(lines, i+1)
			h.Context = ctx
			i = next - 1
		}
	}

	if !haveNextAgent {
		return Handoff{}, fmt.Errorf("%w: missing next_agent", ErrBadHandoff)
	}
	return h, nil
}

// scanBlockScalar reads a YAML-style "context: |" block starting at start:
// every line indented at least as much as the first non-blank line,
// dedented by that amount. It returns the joined text and the index of the
// first line not belonging to the block.
func scanBlockScalar(lines []string, start int) (string, int) {
	indent := -1
	var out []string
	i := start
	for ; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			out = append(out, "")
			continue
		}
		curIndent := len(line) - len(strings.TrimLeft(line, " "))
		if indent == -1 {
			indent = curIndent
		}
		if curIndent < indent {
			break
		}
		out = append(out, line[indent:])
	}
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return strings.Join(out, "\n"), i
}
