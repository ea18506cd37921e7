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

package dconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrLockTimeout is returned when the config file lock cannot be acquired.
var ErrLockTimeout = errors.New("dconfig: configuration locked by another process")

const lockTimeout = 5 * time.Second

// File manages config.yaml with flock-based protection against concurrent
// readers and writers (the dispatcher process and a CLI command editing
// the project registry at the same time).
type File struct {
	path     string
	lockFile *os.File
}

// NewFile returns a File for path, or the default config path if empty.
func NewFile(path string) (*File, error) {
	if path == "" {
		var err error
		path, err = Path()
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
	}
	return &File{path: path}, nil
}

// Lock acquires an exclusive lock on the config file, waiting up to
// lockTimeout before giving up.
func (f *File) Lock() error {
	lockPath := f.path + ".lock"

	dir := filepath.Dir(lockPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	deadline := time.Now().Add(lockTimeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := syscall.Flock(int(lockFile.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err == nil {
			f.lockFile = lockFile
			return nil
		}
		if time.Now().After(deadline) {
			lockFile.Close()
			return ErrLockTimeout
		}
		<-ticker.C
	}
}

// Unlock releases the file lock acquired by Lock.
func (f *File) Unlock() error {
	if f.lockFile == nil {
		return nil
	}
	if err := syscall.Flock(int(f.lockFile.Fd()), syscall.LOCK_UN); err != nil {
		f.lockFile.Close()
		f.lockFile = nil
		return fmt.Errorf("unlock: %w", err)
	}
	if err := f.lockFile.Close(); err != nil {
		f.lockFile = nil
		return fmt.Errorf("close lock file: %w", err)
	}
	f.lockFile = nil
	return nil
}

// WithLock runs fn while holding the file lock.
func (f *File) WithLock(fn func() error) error {
	if err := f.Lock(); err != nil {
		return err
	}
	defer f.Unlock()
	return fn()
}

// Load reads and parses the config file. A missing file yields Default().
// The caller must hold the lock.
func (f *File) Load() (*Config, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// Save writes cfg atomically (write-temp, rename). The caller must hold
// the lock.
func (f *File) Save(cfg *Config) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config to YAML: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("write temporary file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temporary file: %w", err)
	}
	return nil
}

// Load loads configuration from the given path (or the default path when
// empty), applies environment variable overrides, and validates the
// result.
func Load(path string) (*Config, error) {
	f, err := NewFile(path)
	if err != nil {
		return nil, err
	}

	var cfg *Config
	err = f.WithLock(func() error {
		var loadErr error
		cfg, loadErr = f.Load()
		return loadErr
	})
	if err != nil {
		return nil, err
	}

	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save persists cfg to the given path (or the default path when empty),
// under the file lock.
func Save(path string, cfg *Config) error {
	f, err := NewFile(path)
	if err != nil {
		return err
	}
	return f.WithLock(func() error {
		return f.Save(cfg)
	})
}

// loadFromEnv overrides cfg fields from environment variables. Environment
// always wins over the file, matching the CLI's general precedence rules.
func (c *Config) loadFromEnv() {
	if v := os.Getenv("DISPATCHD_LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv("DISPATCHD_LOG_FORMAT"); v != "" {
		c.Log.Format = strings.ToLower(v)
	}
	if v := os.Getenv("DISPATCHD_TRACKER_BIN"); v != "" {
		c.Tracker.Binary = v
	}
	if v := os.Getenv("DISPATCHD_AGENT_BIN"); v != "" {
		c.Agent.Binary = v
	}
	if v := os.Getenv("DISPATCHD_SOCKET"); v != "" {
		c.Control.SocketPath = v
	}
	if v := os.Getenv("DISPATCHD_MAX_TOTAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Admission.MaxTotal = n
		}
	}
	if v := os.Getenv("DISPATCHD_MAX_PER_PROJECT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Admission.MaxPerProject = n
		}
	}
}

// defaultSocketPath returns the default control socket path, preferring
// XDG_RUNTIME_DIR when set so the socket lives on tmpfs.
func defaultSocketPath() string {
	if runtimeDir := os.Getenv("XDG_RUNTIME_DIR"); runtimeDir != "" {
		return filepath.Join(runtimeDir, "dispatchd", "dispatchd.sock")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "/tmp/dispatchd.sock"
	}
	return filepath.Join(home, ".dispatchd", "dispatchd.sock")
}
