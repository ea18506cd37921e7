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

package dispatcher

import "github.com/tombee/dispatchd/pkg/errors"

// Sentinel error kinds a caller can distinguish with errors.Is. These are
// the outcomes a tick stage or a CLI command needs to tell apart; they are
// never compared by type, only by identity.
var (
	// ErrAlreadyRunning means another live process holds the dispatcher
	// lock. Precondition failure; callers exit 2.
	ErrAlreadyRunning = errors.New("dispatcher: already running")

	// ErrNotInitialized means the orchestrator directory has no config or
	// the tracker has not been initialized in it. Precondition failure.
	ErrNotInitialized = errors.New("dispatcher: not initialized")

	// ErrNoLock means a stop/status/retry command found no lock file to
	// act against. Precondition failure.
	ErrNoLock = errors.New("dispatcher: no lock held")

	// ErrStaleState means state.json named a schema version this build
	// does not recognize; the caller should expect it was discarded.
	ErrStaleState = errors.New("dispatcher: state file was stale and reset")

	// ErrTransientTransport wraps a tracker/worktree/child-spawn failure
	// that should abort the current tick stage and retry next tick.
	ErrTransientTransport = errors.New("dispatcher: transient transport failure")

	// ErrAuthentication wraps a recognized authentication failure from an
	// agent run.
	ErrAuthentication = errors.New("dispatcher: agent authentication failure")

	// ErrAgentFailure wraps a non-auth agent run failure or a hand-off
	// parse failure, retried via the circuit breaker.
	ErrAgentFailure = errors.New("dispatcher: agent run failure")

	// ErrFatal wraps a failure the dispatcher cannot recover from — the
	// lock cannot be released, or the state file cannot be written — and
	// that must terminate the process rather than continue silently.
	ErrFatal = errors.New("dispatcher: fatal")
)
