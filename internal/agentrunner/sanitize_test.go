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

func TestSanitizeTranscriptTail_RedactsPaths(t *testing.T) {
	got := sanitizeTranscriptTail("failed to read /home/alice/project/secret.env")
	assert.Contains(t, got, "[PATH]")
	assert.NotContains(t, got, "alice")
}

func TestSanitizeTranscriptTail_RedactsIPs(t *testing.T) {
	got := sanitizeTranscriptTail("could not reach 10.0.4.12 on port 443")
	assert.Contains(t, got, "[IP]")
	assert.NotContains(t, got, "10.0.4.12")
}

func TestSanitizeTranscriptTail_DropsGoFrameLines(t *testing.T) {
	got := sanitizeTranscriptTail("panic: boom\ngoroutine 1\n\tmain.go:42 +0x12\ndone")
	assert.NotContains(t, got, "main.go:42")
	assert.Contains(t, got, "panic: boom")
	assert.Contains(t, got, "done")
}

func TestTailLines_ReturnsLastNLines(t *testing.T) {
	text := "one\ntwo\nthree\nfour\nfive"
	assert.Equal(t, "three\nfour\nfive", tailLines(text, 3))
	assert.Equal(t, text, tailLines(text, 10))
}
