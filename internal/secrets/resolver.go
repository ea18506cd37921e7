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

// Package secrets resolves the credentials the tracker and agent child
// processes need (API keys, tracker tokens) without the dispatcher itself
// ever inspecting or logging them. It arranges the filtered environment a
// spawned child inherits; it is not a general-purpose secrets manager.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"
)

// ErrNotFound means neither the environment nor the keychain had a value
// for the requested key.
var ErrNotFound = errors.New("secrets: not found")

// Resolver looks up credentials by name, preferring the process
// environment and falling back to the system keychain.
type Resolver struct {
	// service is the keychain service name every keychain lookup is
	// scoped under, matching the teacher's per-application keychain
	// namespacing convention.
	service string
}

// NewResolver returns a Resolver scoped to service (typically "dispatchd").
func NewResolver(service string) *Resolver {
	return &Resolver{service: service}
}

// Resolve returns the value for key, checking the environment first (so a
// deployment can always override the keychain) and the keychain second.
func (r *Resolver) Resolve(key string) (string, error) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v, nil
	}

	v, err := keyring.Get(r.service, key)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", fmt.Errorf("secrets: keychain lookup for %s: %w", key, err)
	}
	return v, nil
}

// FilteredEnv builds the environment slice a spawned agent or tracker
// child process should inherit: every variable in allow, resolved via
// Resolve, formatted as "KEY=value" the way os/exec.Cmd.Env expects. A key
// this Resolver cannot find is silently omitted rather than failing the
// whole build, since most allow-listed keys are optional per-provider API
// keys.
func (r *Resolver) FilteredEnv(allow []string) []string {
	env := make([]string, 0, len(allow))
	for _, key := range allow {
		v, err := r.Resolve(key)
		if err != nil {
			continue
		}
		env = append(env, key+"="+v)
	}
	return env
}

// Store writes key into the system keychain, overwriting any existing
// entry. No CLI command calls it.
func (r *Resolver) Store(key, value string) error {
	return keyring.Set(r.service, key, value)
}

// IsSecretKey reports whether a key name looks like a credential,
// matching common suffixes so logs can redact it even if the caller
// forgot to mask it explicitly.
func IsSecretKey(key string) bool {
	upper := strings.ToUpper(key)
	for _, suffix := range []string{"_TOKEN", "_KEY", "_SECRET", "_PASSWORD"} {
		if strings.HasSuffix(upper, suffix) {
			return true
		}
	}
	return false
}
