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

// Package workflow implements the Workflow Service: workflow state (epic,
// step, question) encoded entirely as labels on tracker issues. The label
// vocabulary below is this package's de-facto database schema and must be
// preserved bit-for-bit — every reader of the tracker's issues, including
// ones outside this binary, depends on these exact strings.
package workflow

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	// LabelWhsStep marks an issue as a Workflow Step.
	LabelWhsStep = "whs:step"
	// LabelWhsWorkflow marks an issue as a Workflow Epic.
	LabelWhsWorkflow = "whs:workflow"
	// LabelWhsQuestion marks an issue as a Question Record.
	LabelWhsQuestion = "whs:question"
	// LabelBlockedHuman marks an epic as waiting on a human decision.
	LabelBlockedHuman = "blocked:human"

	agentPrefix            = "agent:"
	projectPrefix          = "project:"
	sourcePrefix           = "source:"
	prPrefix               = "pr:"
	ciPrefix               = "ci:"
	ciRetriesPrefix        = "ci-retries:"
	dispatchAttemptsPrefix = "dispatch-attempts:"
	erroredPrefix          = "errored:"
	resumePrefix           = "whs:resume:"
)

// CI status values used with the ci: label.
const (
	CIPending = "pending"
	CIPassed  = "passed"
	CIFailed  = "failed"
)

func agentLabel(role string) string             { return agentPrefix + role }
func projectLabel(name string) string           { return projectPrefix + name }
func sourceLabel(id string) string               { return sourcePrefix + id }
func prLabel(n int) string                       { return fmt.Sprintf("%s%d", prPrefix, n) }
func ciLabel(status string) string               { return ciPrefix + status }
func ciRetriesLabel(n int) string                 { return fmt.Sprintf("%s%d", ciRetriesPrefix, n) }
func dispatchAttemptsLabel(n int) string          { return fmt.Sprintf("%s%d", dispatchAttemptsPrefix, n) }
func erroredLabel(kind string) string             { return erroredPrefix + kind }
func resumeLabel(b64 string) string               { return resumePrefix + b64 }

// findValue returns the suffix of the first label with the given prefix.
func findValue(labels []string, prefix string) (string, bool) {
	for _, l := range labels {
		if strings.HasPrefix(l, prefix) {
			return strings.TrimPrefix(l, prefix), true
		}
	}
	return "", false
}

func findInt(labels []string, prefix string) (int, bool) {
	v, ok := findValue(labels, prefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// withoutPrefix returns labels with every entry matching prefix removed.
func withoutPrefix(labels []string, prefix string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if !strings.HasPrefix(l, prefix) {
			out = append(out, l)
		}
	}
	return out
}

// withoutLabel returns labels with the exact label removed.
func withoutLabel(labels []string, target string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l != target {
			out = append(out, l)
		}
	}
	return out
}

// replacePrefixed removes every label with prefix and, if value is
// non-empty, appends prefix+value.
func replacePrefixed(labels []string, prefix, value string) []string {
	out := withoutPrefix(labels, prefix)
	if value != "" {
		out = append(out, prefix+value)
	}
	return out
}

// agentRole returns the role carried by an agent: label, if any.
func agentRole(labels []string) (string, bool) {
	return findValue(labels, agentPrefix)
}

// projectName returns the project carried by a project: label, if any.
func projectName(labels []string) (string, bool) {
	return findValue(labels, projectPrefix)
}

// sourceID returns the source issue ID carried by a source: label, if any.
func sourceID(labels []string) (string, bool) {
	return findValue(labels, sourcePrefix)
}

// prNumber returns the PR number carried by a pr: label, if any.
func prNumber(labels []string) (int, bool) {
	return findInt(labels, prPrefix)
}

// ciStatus returns the status carried by a ci: label, if any.
func ciStatus(labels []string) (string, bool) {
	return findValue(labels, ciPrefix)
}

// ciRetries returns the retry count carried by a ci-retries: label,
// defaulting to 0.
func ciRetries(labels []string) int {
	n, _ := findInt(labels, ciRetriesPrefix)
	return n
}

// dispatchAttempts returns the attempt count carried by a
// dispatch-attempts: label, defaulting to 0.
func dispatchAttempts(labels []string) int {
	n, _ := findInt(labels, dispatchAttemptsPrefix)
	return n
}

// erroredReason returns the reason carried by an errored: label, if any.
func erroredReason(labels []string) (string, bool) {
	return findValue(labels, erroredPrefix)
}

// resumePayload returns the base64 payload carried by a whs:resume: label,
// if any.
func resumePayload(labels []string) (string, bool) {
	return findValue(labels, resumePrefix)
}
