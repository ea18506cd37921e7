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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4, cfg.Admission.MaxTotal)
	assert.Equal(t, 2, cfg.Admission.MaxPerProject)
	assert.Equal(t, 3, cfg.Admission.MaxDispatchAttempts)
}

func TestApplyDefaults_FillsZeroValues(t *testing.T) {
	cfg := &Config{
		Projects: []ProjectConfig{{Name: "widget", Path: "/repos/widget"}},
	}
	cfg.applyDefaults()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "main", cfg.Projects[0].DefaultBranch)
	assert.Equal(t, IsolationCommitted, cfg.Projects[0].IsolationMode)
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Log:       LogConfig{Level: "debug", Format: "text"},
		Admission: AdmissionConfig{MaxTotal: 10},
	}
	cfg.applyDefaults()

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, 10, cfg.Admission.MaxTotal)
	// untouched fields still get defaulted
	assert.Equal(t, 2, cfg.Admission.MaxPerProject)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "default config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Log.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "per-project cap exceeds total",
			mutate:  func(c *Config) { c.Admission.MaxPerProject = c.Admission.MaxTotal + 1 },
			wantErr: true,
		},
		{
			name: "duplicate project name",
			mutate: func(c *Config) {
				c.Projects = []ProjectConfig{
					{Name: "widget", Path: "/a"},
					{Name: "widget", Path: "/b"},
				}
			},
			wantErr: true,
		},
		{
			name: "project missing path",
			mutate: func(c *Config) {
				c.Projects = []ProjectConfig{{Name: "widget"}}
			},
			wantErr: true,
		},
		{
			name: "webhook sink missing url",
			mutate: func(c *Config) {
				c.Notify.Sinks = []NotifySinkConfig{{Type: "webhook"}}
			},
			wantErr: true,
		},
		{
			name: "unknown sink type",
			mutate: func(c *Config) {
				c.Notify.Sinks = []NotifySinkConfig{{Type: "carrier-pigeon"}}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestProjectByName(t *testing.T) {
	cfg := Default()
	cfg.Projects = []ProjectConfig{
		{Name: "widget", Path: "/repos/widget"},
		{Name: "gadget", Path: "/repos/gadget"},
	}

	p, ok := cfg.ProjectByName("gadget")
	require.True(t, ok)
	assert.Equal(t, "/repos/gadget", p.Path)

	_, ok = cfg.ProjectByName("missing")
	assert.False(t, ok)
}
