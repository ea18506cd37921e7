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

package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLock_AcquireThenRelease(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dispatcher.lock")

	l := NewLock(path)
	require.NoError(t, l.Acquire())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var body lockBody
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, os.Getpid(), body.PID)
	assert.False(t, body.StartedAt.IsZero())

	require.NoError(t, l.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLock_SecondAcquireFailsWhileFirstHolds(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dispatcher.lock")

	first := NewLock(path)
	require.NoError(t, first.Acquire())
	defer first.Release()

	second := NewLock(path)
	err := second.Acquire()
	assert.ErrorIs(t, err, ErrAlreadyRunning)
}

func TestLock_StaleLockIsReclaimed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dispatcher.lock")

	body := lockBody{PID: 999999, StartedAt: time.Now().UTC()}
	data, err := json.Marshal(body)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	l := NewLock(path)
	require.NoError(t, l.Acquire(), "a lock naming a dead PID must be reclaimed, not treated as held")
	defer l.Release()

	pid, _, err := Holder(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestLock_MalformedFileIsReclaimed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dispatcher.lock")
	require.NoError(t, os.WriteFile(path, []byte("garbage"), 0600))

	l := NewLock(path)
	require.NoError(t, l.Acquire())
	defer l.Release()
}

func TestLock_ReleaseWithoutAcquireIsNoOp(t *testing.T) {
	l := NewLock(filepath.Join(t.TempDir(), "dispatcher.lock"))
	assert.NoError(t, l.Release())
}

func TestHolder_ReadsPIDAndStartTime(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dispatcher.lock")

	l := NewLock(path)
	require.NoError(t, l.Acquire())
	defer l.Release()

	pid, startedAt, err := Holder(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
	assert.False(t, startedAt.IsZero())
}
