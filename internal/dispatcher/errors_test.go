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

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrors_AreDistinctAndWrappable(t *testing.T) {
	sentinels := []error{
		ErrAlreadyRunning,
		ErrNotInitialized,
		ErrNoLock,
		ErrStaleState,
		ErrTransientTransport,
		ErrAuthentication,
		ErrAgentFailure,
		ErrFatal,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, errors.Is(a, b), "%v should not satisfy errors.Is against %v", a, b)
		}
	}

	wrapped := fmt.Errorf("start failed: %w", ErrAlreadyRunning)
	assert.True(t, errors.Is(wrapped, ErrAlreadyRunning))
}
