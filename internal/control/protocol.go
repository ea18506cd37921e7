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

package control

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrMethodNotFound is returned when the requested method has no handler.
var ErrMethodNotFound = errors.New("control: method not found")

// Request is one line-delimited JSON request sent to the control socket.
type Request struct {
	// ID correlates the request with its Response.
	ID string `json:"id"`

	// Method selects the operation: pause, resume, stop, status, list, or
	// answer. There is no retry method.
	Method string `json:"method"`

	// Params carries method-specific arguments.
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the Server's reply to a Request, always carrying the same ID.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// RPCError is a structured error returned in place of Result.
type RPCError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewRequest builds a Request with a generated correlation ID, matching
// internal/rpc's NewRequest convention of an opaque uuid.New().String().
func NewRequest(method string, params interface{}) (*Request, error) {
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("control: marshal params: %w", err)
		}
		raw = data
	}
	return &Request{
		ID:     uuid.New().String(),
		Method: method,
		Params: raw,
	}, nil
}

// successResponse builds a Response carrying result, marshaled to JSON.
func successResponse(id string, result interface{}) (*Response, error) {
	var raw json.RawMessage
	if result != nil {
		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("control: marshal result: %w", err)
		}
		raw = data
	}
	return &Response{ID: id, Result: raw}, nil
}

// errorResponse builds a Response carrying a structured error.
func errorResponse(id, code, message string) *Response {
	return &Response{ID: id, Error: &RPCError{Code: code, Message: message}}
}
