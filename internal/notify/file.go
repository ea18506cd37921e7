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

package notify

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileSink appends one timestamped line per message to a log file, opening
// it lazily on the first Send so a dispatcher that never notifies never
// creates the file.
type FileSink struct {
	path string

	mu   sync.Mutex
	file *os.File
}

// NewFileSink returns a Sink that appends to path.
func NewFileSink(path string) *FileSink {
	return &FileSink{path: path}
}

// Send appends message to the sink's file, creating its parent directory
// and opening the file on first use.
func (s *FileSink) Send(ctx context.Context, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
			return fmt.Errorf("notify: create directory for %s: %w", s.path, err)
		}
		f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return fmt.Errorf("notify: open %s: %w", s.path, err)
		}
		s.file = f
	}

	_, err := fmt.Fprintf(s.file, "%s %s\n", time.Now().UTC().Format(time.RFC3339), message)
	return err
}

// Close releases the underlying file handle, if one was opened.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
