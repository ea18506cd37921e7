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

import "strings"

// authErrorPatterns is the fixed substring table recognizing a transient
// authentication failure in a run's stderr or final transcript. Matching
// is intentionally a closed list, not a heuristic: spec.md enumerates the
// patterns the dispatcher must treat as distinct from an ordinary run
// failure, since an auth error blocks the epic with errored:auth rather
// than resetting the step for retry.
var authErrorPatterns = []string{
	"not authenticated",
	"not logged in",
	"authentication",
	"api key",
	"unauthorized",
	"invalid api key",
	"token expired",
}

// isAuthError reports whether text (stderr output, or the combined
// transcript and error string) names one of the known auth failure
// patterns, case-insensitively.
func isAuthError(text string) bool {
	lower := strings.ToLower(text)
	for _, pattern := range authErrorPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
