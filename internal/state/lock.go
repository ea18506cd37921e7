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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/tombee/dispatchd/internal/lifecycle"
)

// ErrAlreadyRunning is returned by Lock.Acquire when another live process
// already holds the dispatcher lock.
var ErrAlreadyRunning = errors.New("state: another dispatcher process is already running")

// lockBody is the JSON content of dispatcher.lock.
type lockBody struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"startedAt"`
}

// Lock guards dispatcher.lock the same way lifecycle.PIDFileManager guards
// its PID files (O_EXCL create plus an exclusive flock; a crashed process's
// stale file is told apart from a live one by whether its recorded PID is
// still running), but carries a
// small JSON body instead of a bare PID so a caller can also report when
// the running instance started.
type Lock struct {
	path string
	file *os.File
}

// NewLock returns a Lock for path.
func NewLock(path string) *Lock {
	return &Lock{path: path}
}

// Acquire claims the lock for the current process. If the file exists but
// names a PID that is no longer alive, the stale file is removed and the
// acquire is retried once. Returns ErrAlreadyRunning if a live process
// already holds it.
func (l *Lock) Acquire() error {
	if err := l.tryCreate(); err == nil {
		return nil
	} else if !os.IsExist(err) {
		return err
	}

	stale, err := l.isStale()
	if err != nil {
		return err
	}
	if !stale {
		return ErrAlreadyRunning
	}

	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("state: remove stale lock: %w", err)
	}
	if err := l.tryCreate(); err != nil {
		if os.IsExist(err) {
			return ErrAlreadyRunning
		}
		return err
	}
	return nil
}

func (l *Lock) tryCreate() error {
	dir := filepath.Dir(l.path)
	if info, err := os.Stat(dir); err == nil {
		if info.Mode()&0002 != 0 {
			return fmt.Errorf("state: lock directory %s is world-writable", dir)
		}
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("state: create lock directory: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()
		os.Remove(l.path)
		return fmt.Errorf("state: lock dispatcher.lock: %w", err)
	}

	body := lockBody{PID: os.Getpid(), StartedAt: time.Now().UTC()}
	data, err := json.Marshal(body)
	if err != nil {
		f.Close()
		os.Remove(l.path)
		return fmt.Errorf("state: encode lock body: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(l.path)
		return fmt.Errorf("state: write lock body: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(l.path)
		return fmt.Errorf("state: sync lock file: %w", err)
	}

	l.file = f
	return nil
}

// isStale reports whether the existing lock file names a PID that is no
// longer running. A malformed file is treated as stale so a corrupted lock
// can never wedge the dispatcher permanently.
func (l *Lock) isStale() (bool, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("state: read lock file: %w", err)
	}

	var body lockBody
	if err := json.Unmarshal(data, &body); err != nil {
		return true, nil
	}
	if body.PID <= 0 {
		return true, nil
	}
	return !lifecycle.IsProcessRunning(body.PID), nil
}

// Release removes the lock file and drops the flock. Safe to call even if
// Acquire failed or was never called.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
	l.file = nil
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("state: remove lock file: %w", err)
	}
	return nil
}

// Holder reads the PID and start time recorded in an existing lock file,
// without attempting to acquire it. No CLI command calls it.
func Holder(path string) (pid int, startedAt time.Time, err error) {
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return 0, time.Time{}, readErr
	}
	var body lockBody
	if err := json.Unmarshal(data, &body); err != nil {
		return 0, time.Time{}, fmt.Errorf("state: parse lock file: %w", err)
	}
	return body.PID, body.StartedAt, nil
}
