// Copyright (c) 2026 John Earle
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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_PATH", "JIRA_BASE_URL", "JIRA_EMAIL", "JIRA_API_TOKEN", "JIRA_BEARER_TOKEN",
		"JIRA_PROJECT_KEY", "JIRA_ISSUE_TYPE", "EXPORT_DIR", "MAPPING_FILE", "TRACKER_DRIVER",
		"TRACKER_DSN", "REDIS_URL", "ISSUES_QUEUE", "WORKERS", "PORT", "LOG_LEVEL", "RECORD_DELIMITER", "CLAIM_TTL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("JIRA_BASE_URL", "https://acme.atlassian.net/")
	t.Setenv("WORKERS", "8")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://acme.atlassian.net", cfg.Jira.BaseURL)
	assert.Equal(t, "FTJM", cfg.Jira.ProjectKey)
	assert.Equal(t, "Task", cfg.Jira.IssueType)
	assert.Equal(t, 30*time.Second, cfg.Jira.Timeout)
	assert.Equal(t, "sqlite", cfg.TrackerDriver)
	assert.Equal(t, "tracker/migration.db", cfg.TrackerDSN)
	assert.Equal(t, "config/field_mapping.yaml", cfg.MappingFile)
	assert.Equal(t, "issues", cfg.IssuesQueue)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, '|', cfg.Delimiter)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 30*time.Minute, cfg.ClaimTTL)
}

func TestLoad_FileWithExpansion(t *testing.T) {
	clearEnv(t)
	t.Setenv("JIRA_API_TOKEN", "secret")
	t.Setenv("PORT", "9999")

	path := filepath.Join(t.TempDir(), "migrator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source:
  export_dir: /data/export
  delimiter: ":"
jira:
  base_url: https://acme.atlassian.net
  email: ops@acme.test
  api_token: ${JIRA_API_TOKEN}
  project_key: SUP
  timeout: 5s
tracker:
  driver: postgres
  dsn: postgres://localhost/migrator
redis:
  claim_ttl: 2h
workers: 2
server:
  port: 7000
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Jira.APIToken)
	assert.Equal(t, "SUP", cfg.Jira.ProjectKey)
	assert.Equal(t, 5*time.Second, cfg.Jira.Timeout)
	assert.Equal(t, "/data/export", cfg.ExportDir)
	assert.Equal(t, ':', cfg.Delimiter)
	assert.Equal(t, "postgres", cfg.TrackerDriver)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 2*time.Hour, cfg.ClaimTTL)
	assert.Equal(t, 7000, cfg.Port, "file value wins over env")
	require.NoError(t, cfg.RequireJira())
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "also-missing.yaml"))
	_, err = Load("")
	assert.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("jira: [nope"), 0o600))
	_, err := Load(bad)
	assert.Error(t, err)

	delim := filepath.Join(dir, "delim.yaml")
	require.NoError(t, os.WriteFile(delim, []byte("source:\n  delimiter: '||'\n"), 0o600))
	_, err = Load(delim)
	assert.Error(t, err)

	timeout := filepath.Join(dir, "timeout.yaml")
	require.NoError(t, os.WriteFile(timeout, []byte("jira:\n  timeout: soon\n"), 0o600))
	_, err = Load(timeout)
	assert.Error(t, err)
}

func TestRequireJira(t *testing.T) {
	tests := []struct {
		name    string
		jira    JiraConfig
		wantErr bool
	}{
		{"missing url", JiraConfig{Email: "a", APIToken: "b"}, true},
		{"missing token", JiraConfig{BaseURL: "https://x", Email: "a"}, true},
		{"basic", JiraConfig{BaseURL: "https://x", Email: "a", APIToken: "b"}, false},
		{"bearer", JiraConfig{BaseURL: "https://x", BearerToken: "t"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Config{Jira: tt.jira}).RequireJira()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
