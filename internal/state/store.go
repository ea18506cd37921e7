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
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store owns state.json: an in-memory copy of the Active Work map guarded
// by a mutex, written through to disk after every mutation so a reader
// never observes a half-written file.
type Store struct {
	path string

	mu    sync.Mutex
	state *State
}

// NewStore returns a Store backed by path. Call Load before using it.
func NewStore(path string) *Store {
	return &Store{path: path, state: empty()}
}

// Load reads state.json. A missing file or one whose version does not
// match CurrentVersion yields a fresh empty state rather than an error —
// the file is discarded, never migrated.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.state = empty()
			return nil
		}
		return fmt.Errorf("state: read %s: %w", s.path, err)
	}

	var loaded State
	if err := json.Unmarshal(data, &loaded); err != nil {
		s.state = empty()
		return nil
	}
	if loaded.Version != CurrentVersion {
		s.state = empty()
		return nil
	}
	if loaded.ActiveWork == nil {
		loaded.ActiveWork = make(map[string]ActiveEntry)
	}
	s.state = &loaded
	return nil
}

// save writes the current in-memory state to disk. The caller must hold mu.
func (s *Store) save() error {
	s.state.Version = CurrentVersion
	s.state.LastSaved = time.Now().UTC()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("state: create directory: %w", err)
	}

	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return fmt.Errorf("state: marshal: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("state: write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("state: rename temp file: %w", err)
	}
	return nil
}

// Snapshot returns a copy of the current Active Work map.
func (s *Store) Snapshot() map[string]ActiveEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]ActiveEntry, len(s.state.ActiveWork))
	for k, v := range s.state.ActiveWork {
		out[k] = v
	}
	return out
}

// Get returns the Active-Work entry for sourceID, if any.
func (s *Store) Get(sourceID string) (ActiveEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.state.ActiveWork[sourceID]
	return e, ok
}

// Put records or replaces the Active-Work entry for sourceID and persists
// the change before returning.
func (s *Store) Put(sourceID string, entry ActiveEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.ActiveWork[sourceID] = entry
	return s.save()
}

// Remove drops the Active-Work entry for sourceID, if present, and
// persists the change.
func (s *Store) Remove(sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.state.ActiveWork[sourceID]; !ok {
		return nil
	}
	delete(s.state.ActiveWork, sourceID)
	return s.save()
}

// Paused reports the dispatcher's current paused flag.
func (s *Store) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Paused
}

// SetPaused updates and persists the paused flag.
func (s *Store) SetPaused(paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Paused = paused
	return s.save()
}

// Len reports how many entries are in the Active Work map.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.ActiveWork)
}

// StepStatus is the minimal tracker lookup Reconcile needs: given a
// workflow step ID, report whether it still exists and, if so, its status.
type StepStatus func(stepID string) (status string, exists bool, err error)

// Reconcile implements crash recovery: for each persisted Active-Work
// entry, drop it if its step is no longer open or in_progress in the
// tracker (a human closed it while the dispatcher was down); otherwise
// keep it so the dispatcher's retry path can notice, on the next tick,
// that the step is in_progress but the worker that owned it is gone.
func (s *Store) Reconcile(lookup StepStatus) error {
	s.mu.Lock()
	entries := make(map[string]ActiveEntry, len(s.state.ActiveWork))
	for k, v := range s.state.ActiveWork {
		entries[k] = v
	}
	s.mu.Unlock()

	var toDrop []string
	for sourceID, entry := range entries {
		status, exists, err := lookup(entry.WorkflowStepID)
		if err != nil {
			return fmt.Errorf("state: reconcile %s: %w", sourceID, err)
		}
		if !exists || (status != "open" && status != "in_progress") {
			toDrop = append(toDrop, sourceID)
		}
	}

	if len(toDrop) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sourceID := range toDrop {
		delete(s.state.ActiveWork, sourceID)
	}
	return s.save()
}
