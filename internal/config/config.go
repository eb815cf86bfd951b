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

// Package config loads migrator configuration from a YAML file and
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when neither --config nor CONFIG_PATH is given. It may
// be absent.
const DefaultPath = "config/migrator.yaml"

// JiraConfig holds issue-tracker connection settings.
type JiraConfig struct {
	BaseURL     string
	Email       string
	APIToken    string
	BearerToken string // takes precedence over Email/APIToken
	ProjectKey  string
	IssueType   string
	RateLimit   float64 // requests per second
	Burst       int
	Timeout     time.Duration
}

// Config holds all configuration for the migrator.
type Config struct {
	Jira JiraConfig

	// Source export
	SourceName string
	ExportDir  string
	Delimiter  rune

	MappingFile string

	// Status ledger
	TrackerDriver string
	TrackerDSN    string

	// Redis (optional: claims and handoff queue)
	RedisURL    string
	IssuesQueue string
	ClaimTTL    time.Duration

	Workers  int
	Port     int
	LogLevel string
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Source struct {
		Name      string `yaml:"name"`
		ExportDir string `yaml:"export_dir"`
		Delimiter string `yaml:"delimiter"`
	} `yaml:"source"`
	Jira struct {
		BaseURL     string  `yaml:"base_url"`
		Email       string  `yaml:"email"`
		APIToken    string  `yaml:"api_token"`
		BearerToken string  `yaml:"bearer_token"`
		ProjectKey  string  `yaml:"project_key"`
		IssueType   string  `yaml:"issue_type"`
		RateLimit   float64 `yaml:"rate_limit"`
		Burst       int     `yaml:"burst"`
		Timeout     string  `yaml:"timeout"`
	} `yaml:"jira"`
	Mapping struct {
		File string `yaml:"file"`
	} `yaml:"mapping"`
	Tracker struct {
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
	} `yaml:"tracker"`
	Redis struct {
		URL      string `yaml:"url"`
		ClaimTTL string `yaml:"claim_ttl"`
		Queues   struct {
			Issues string `yaml:"issues"`
		} `yaml:"queues"`
	} `yaml:"redis"`
	Workers int `yaml:"workers"`
	Server  struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
	LogLevel string `yaml:"log_level"`
}

// Load reads configuration from path (with ${VAR} expansion) and fills gaps
// from the environment. An empty path means CONFIG_PATH or DefaultPath; only
// an explicitly named file must exist.
func Load(path string) (*Config, error) {
	explicit := path != "" || os.Getenv("CONFIG_PATH") != ""
	if path == "" {
		path = envOrDefault("CONFIG_PATH", DefaultPath)
	}

	var raw rawConfig
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		// Expand ${VAR} references in the YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// Environment-only operation.
	default:
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	timeout := envOrDefaultDuration("JIRA_TIMEOUT", 30*time.Second)
	if raw.Jira.Timeout != "" {
		d, err := time.ParseDuration(raw.Jira.Timeout)
		if err != nil {
			return nil, fmt.Errorf("parse jira.timeout: %w", err)
		}
		timeout = d
	}

	claimTTL := envOrDefaultDuration("CLAIM_TTL", 30*time.Minute)
	if raw.Redis.ClaimTTL != "" {
		d, err := time.ParseDuration(raw.Redis.ClaimTTL)
		if err != nil {
			return nil, fmt.Errorf("parse redis.claim_ttl: %w", err)
		}
		claimTTL = d
	}

	cfg := &Config{
		Jira: JiraConfig{
			BaseURL:     strings.TrimRight(firstNonEmpty(raw.Jira.BaseURL, os.Getenv("JIRA_BASE_URL")), "/"),
			Email:       firstNonEmpty(raw.Jira.Email, os.Getenv("JIRA_EMAIL")),
			APIToken:    firstNonEmpty(raw.Jira.APIToken, os.Getenv("JIRA_API_TOKEN")),
			BearerToken: firstNonEmpty(raw.Jira.BearerToken, os.Getenv("JIRA_BEARER_TOKEN")),
			ProjectKey:  firstNonEmpty(raw.Jira.ProjectKey, envOrDefault("JIRA_PROJECT_KEY", "FTJM")),
			IssueType:   firstNonEmpty(raw.Jira.IssueType, envOrDefault("JIRA_ISSUE_TYPE", "Task")),
			RateLimit:   firstPositiveFloat(raw.Jira.RateLimit, envOrDefaultFloat("JIRA_RATE_LIMIT", 5)),
			Burst:       firstPositive(raw.Jira.Burst, envOrDefaultInt("JIRA_BURST", 5)),
			Timeout:     timeout,
		},
		SourceName:    firstNonEmpty(raw.Source.Name, envOrDefault("SOURCE_NAME", "Freshdesk")),
		ExportDir:     firstNonEmpty(raw.Source.ExportDir, envOrDefault("EXPORT_DIR", "freshdesk_export")),
		MappingFile:   firstNonEmpty(raw.Mapping.File, envOrDefault("MAPPING_FILE", "config/field_mapping.yaml")),
		TrackerDriver: firstNonEmpty(raw.Tracker.Driver, envOrDefault("TRACKER_DRIVER", "sqlite")),
		TrackerDSN:    firstNonEmpty(raw.Tracker.DSN, envOrDefault("TRACKER_DSN", "tracker/migration.db")),
		RedisURL:      firstNonEmpty(raw.Redis.URL, os.Getenv("REDIS_URL")),
		IssuesQueue:   firstNonEmpty(raw.Redis.Queues.Issues, envOrDefault("ISSUES_QUEUE", "issues")),
		ClaimTTL:      claimTTL,
		Workers:       firstPositive(raw.Workers, envOrDefaultInt("WORKERS", 4)),
		Port:          firstPositive(raw.Server.Port, envOrDefaultInt("PORT", 8080)),
		LogLevel:      firstNonEmpty(raw.LogLevel, envOrDefault("LOG_LEVEL", "info")),
	}

	delim := firstNonEmpty(raw.Source.Delimiter, envOrDefault("RECORD_DELIMITER", "|"))
	if utf8.RuneCountInString(delim) != 1 {
		return nil, fmt.Errorf("record delimiter must be a single character, got %q", delim)
	}
	cfg.Delimiter, _ = utf8.DecodeRuneInString(delim)

	return cfg, nil
}

// RequireJira reports an error when the Jira connection is not configured.
func (c *Config) RequireJira() error {
	if c.Jira.BaseURL == "" {
		return errors.New("jira base URL not configured (jira.base_url or JIRA_BASE_URL)")
	}
	if c.Jira.BearerToken == "" && (c.Jira.Email == "" || c.Jira.APIToken == "") {
		return errors.New("jira credentials not configured (JIRA_BEARER_TOKEN, or JIRA_EMAIL and JIRA_API_TOKEN)")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstPositiveFloat(values ...float64) float64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
