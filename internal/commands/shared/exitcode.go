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

package shared

import (
	goerrors "errors"
	"fmt"
	"os"

	"github.com/tombee/dispatchd/internal/dispatcher"
	pkgerrors "github.com/tombee/dispatchd/pkg/errors"
)

// Exit codes every dispatchd subcommand returns through HandleExitError.
const (
	ExitSuccess         = 0
	ExitFailed          = 1
	ExitPrecondition    = 2 // already running, not initialized, no lock held
	ExitUsage           = 64 // EX_USAGE from sysexits.h: bad arguments
	ExitUnavailable     = 69 // EX_UNAVAILABLE: control socket unreachable
)

// ExitError carries the process exit code a CLI command should return.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewUsageError wraps an argument-parsing failure.
func NewUsageError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitUsage, Message: msg, Cause: cause}
}

// NewUnavailableError wraps a failure to reach the running dispatcher's
// control socket.
func NewUnavailableError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitUnavailable, Message: msg, Cause: cause}
}

// classifyDispatcherErr maps the dispatcher package's sentinel
// precondition errors onto ExitPrecondition, the same way the teacher's
// CLI classified workflow-validation failures onto a distinct exit code.
func classifyDispatcherErr(err error) (int, bool) {
	for _, sentinel := range []error{
		dispatcher.ErrAlreadyRunning,
		dispatcher.ErrNotInitialized,
		dispatcher.ErrNoLock,
	} {
		if goerrors.Is(err, sentinel) {
			return ExitPrecondition, true
		}
	}
	return 0, false
}

// HandleExitError prints err to stderr (plus any UserVisibleError
// suggestion in its chain) and exits with the matching code. A nil err is
// a no-op.
func HandleExitError(err error) {
	if err == nil {
		return
	}

	var exitErr *ExitError
	if goerrors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, "Error:", exitErr.Error())
		printSuggestion(err)
		os.Exit(exitErr.Code)
	}

	if code, ok := classifyDispatcherErr(err); ok {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(code)
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	printSuggestion(err)
	os.Exit(ExitFailed)
}

// printSuggestion walks err's chain for a pkg/errors.UserVisibleError and
// prints its suggestion, if any.
func printSuggestion(err error) {
	for err != nil {
		if userErr, ok := err.(pkgerrors.UserVisibleError); ok {
			if userErr.IsUserVisible() {
				if s := userErr.Suggestion(); s != "" {
					fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", s)
				}
			}
			return
		}
		err = goerrors.Unwrap(err)
	}
}
