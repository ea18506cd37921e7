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
	"context"
	"fmt"
	"time"

	"github.com/tombee/dispatchd/internal/safety"
)

// APIEventType enumerates the same normalized vocabulary the subscription
// runner parses out of stream-json, but as typed values an SDK client
// returns directly rather than lines of JSON.
type APIEventType string

const (
	APIEventInit    APIEventType = "init"
	APIEventText    APIEventType = "text"
	APIEventToolUse APIEventType = "toolUse"
	APIEventResult  APIEventType = "result"
)

// APIEvent is one event an APIClient emits while streaming a run.
type APIEvent struct {
	Type      APIEventType
	SessionID string
	Chunk     string
	ToolName  string
	ToolInput map[string]any
	Cost      float64
	Turns     int
	Success   bool
	Errors    []string
}

// APIClient is the narrow SDK surface the API runner depends on: start a
// streaming turn and receive the normalized event vocabulary on a channel,
// mirroring pkg/agent's LLMProvider.Stream but already speaking dispatchd's
// init/text/toolUse/result terms instead of provider-specific deltas.
type APIClient interface {
	Stream(ctx context.Context, opts RunOptions) (<-chan APIEvent, error)
}

// APIRunner drives an APIClient so the dispatcher can run agents through a
// hosted SDK instead of forking a local CLI, behind the same Runner
// interface and the same safety enforcement as SubscriptionRunner.
type APIRunner struct {
	client APIClient
}

// NewAPIRunner returns a Runner backed by client.
func NewAPIRunner(client APIClient) *APIRunner {
	return &APIRunner{client: client}
}

// Run drives one streaming turn through client and aggregates it into a
// Result, applying the safety filter to every toolUse event exactly as
// SubscriptionRunner does.
func (r *APIRunner) Run(ctx context.Context, opts RunOptions) (Result, error) {
	start := time.Now()

	stream, err := r.client.Stream(ctx, opts)
	if err != nil {
		return Result{}, fmt.Errorf("agentrunner: start API stream: %w", err)
	}

	filter := safety.NewFilter(opts.WorkingDir, nil)
	acc := newAccumulator(opts, filter)

	for {
		select {
		case <-ctx.Done():
			result := acc.result(start)
			result.Success = false
			result.Error = "aborted"
			return result, nil
		case ev, ok := <-stream:
			if !ok {
				result := acc.result(start)
				result.IsAuthError = isAuthError(result.Transcript + " " + result.Error)
				return result, nil
			}
			acc.apply(convertAPIEvent(ev))
		}
	}
}

func convertAPIEvent(ev APIEvent) event {
	switch ev.Type {
	case APIEventInit:
		return event{kind: eventInit, sessionID: ev.SessionID}
	case APIEventText:
		return event{kind: eventText, chunk: ev.Chunk}
	case APIEventToolUse:
		return event{kind: eventToolUse, toolName: ev.ToolName, toolInput: ev.ToolInput}
	case APIEventResult:
		return event{kind: eventResult, cost: ev.Cost, turns: ev.Turns, success: ev.Success, errors: ev.Errors}
	default:
		return event{}
	}
}
