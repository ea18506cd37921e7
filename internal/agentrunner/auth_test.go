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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAuthError(t *testing.T) {
	cases := []struct {
		text string
		want bool
	}{
		{"Error: not authenticated", true},
		{"you are not logged in", true},
		{"Authentication required", true},
		{"missing API key", true},
		{"401 unauthorized", true},
		{"invalid api key provided", true},
		{"your token expired", true},
		{"connection refused", false},
		{"rate limit exceeded", false},
		{"", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, isAuthError(tc.text), tc.text)
	}
}
