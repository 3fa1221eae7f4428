// Copyright 2025 Kadir Pekel
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

// Package config loads and validates the configuration recognized by
// the orchestrator (spec.md §6).
package config

import (
	"fmt"
	"os"
	"time"
)

// Mode selects the Auth Context Extractor's behavior (spec.md §4.1).
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// CacheScope controls whether role-set changes invalidate cached
// query results (spec.md §9 open question; see DESIGN.md).
type CacheScope string

const (
	CacheScopeCaller       CacheScope = "caller"
	CacheScopeCallerRoles  CacheScope = "caller+roles"
)

// CapabilityConfig is one entry of the `capabilities` map.
type CapabilityConfig struct {
	Name           string `koanf:"name"`
	URL            string `koanf:"url"`
	CredentialEnv  string `koanf:"credential_source"`
	Driver         string `koanf:"driver"`
	DSN            string `koanf:"dsn"`
}

// Config is the fully resolved, typed configuration.
type Config struct {
	Mode Mode `koanf:"mode"`

	Capabilities         map[string]CapabilityConfig `koanf:"capabilities"`
	RolesToCapabilities  map[string][]string         `koanf:"roles_to_capabilities"`
	AdminBypassRole      string                      `koanf:"admin_bypass_role"`

	MaxRounds            int     `koanf:"max_rounds"`
	MaxParallelToolCalls int     `koanf:"max_parallel_tool_calls"`
	LLMTimeoutSeconds    float64 `koanf:"llm_timeout_s"`
	ToolTimeoutSeconds   float64 `koanf:"tool_timeout_s"`
	RequestDeadlineSec   float64 `koanf:"request_deadline_s"`
	TokenBudgetChars     int     `koanf:"token_budget_chars"`
	DangerousPatterns    []string `koanf:"dangerous_patterns"`
	HistoryTurnsInContext int    `koanf:"history_turns_in_context"`
	MaxTurnsRetained     int     `koanf:"max_turns_retained"`
	CacheScope           CacheScope `koanf:"cache_scope"`

	LLMProvider string `koanf:"llm_provider"`
	LLMAPIKey   string `koanf:"llm_api_key"`
	LLMModel    string `koanf:"llm_model"`
	LLMHost     string `koanf:"llm_host"`

	ConvStoreDriver string `koanf:"convstore_driver"`
	ConvStoreDSN    string `koanf:"convstore_dsn"`

	ServiceJWTSecret string `koanf:"service_jwt_secret"`

	LogLevel  string `koanf:"log_level"`
	LogFormat string `koanf:"log_format"`
	// LogFile, when set, is opened in append mode and logging is
	// written there instead of stderr.
	LogFile string `koanf:"log_file"`

	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporterType string  `koanf:"tracing_exporter_type"`
	TracingEndpointURL  string  `koanf:"tracing_endpoint_url"`
	TracingSamplingRate float64 `koanf:"tracing_sampling_rate"`
	ServiceName         string  `koanf:"service_name"`

	ListenAddr string `koanf:"listen_addr"`
	MetricsEnabled bool `koanf:"metrics_enabled"`

	ResolverCorpusPath  string  `koanf:"resolver_corpus_path"`
	ResolverMinSimilarity      float64 `koanf:"resolver_min_similarity"`
	ResolverMaxCandidates      int     `koanf:"resolver_max_candidates"`
	ResolverConfidentThreshold float64 `koanf:"resolver_confident_threshold"`
}

// Defaults returns the built-in defaults from spec.md §6 before any
// file or environment overlay is applied.
func Defaults() Config {
	return Config{
		Mode:                  ModeDevelopment,
		Capabilities:          map[string]CapabilityConfig{},
		RolesToCapabilities:   map[string][]string{},
		AdminBypassRole:       "admin",
		MaxRounds:             8,
		MaxParallelToolCalls:  4,
		LLMTimeoutSeconds:     60,
		ToolTimeoutSeconds:    30,
		RequestDeadlineSec:    180,
		TokenBudgetChars:      16000,
		DangerousPatterns:     []string{"drop table", "delete from", "truncate", "alter table", "update ", "insert into", "grant ", "exec ", "xp_cmdshell"},
		HistoryTurnsInContext: 5,
		MaxTurnsRetained:      200,
		CacheScope:            CacheScopeCallerRoles,
		LogLevel:              "info",
		LogFormat:             "simple",
		TracingExporterType:   "otlpgrpc",
		TracingSamplingRate:   1.0,
		ServiceName:           "agentcore",
		ListenAddr:            ":8080",
		MetricsEnabled:        true,
	}
}

// LLMTimeout returns the configured LLM timeout as a time.Duration.
func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSeconds * float64(time.Second))
}

// ToolTimeout returns the configured capability tool-call timeout.
func (c Config) ToolTimeout() time.Duration {
	return time.Duration(c.ToolTimeoutSeconds * float64(time.Second))
}

// RequestDeadline returns the configured whole-request deadline.
func (c Config) RequestDeadline() time.Duration {
	return time.Duration(c.RequestDeadlineSec * float64(time.Second))
}

// Validate checks internal consistency of the loaded configuration.
func (c Config) Validate() error {
	if c.Mode != ModeDevelopment && c.Mode != ModeProduction {
		return fmt.Errorf("config: unknown mode %q", c.Mode)
	}
	if c.MaxRounds < 1 {
		return fmt.Errorf("config: max_rounds must be >= 1")
	}
	if c.MaxParallelToolCalls < 1 {
		return fmt.Errorf("config: max_parallel_tool_calls must be >= 1")
	}
	for name, cap := range c.Capabilities {
		if cap.URL == "" && cap.DSN == "" {
			return fmt.Errorf("config: capability %q requires a url or dsn", name)
		}
	}
	return nil
}

// expandEnv replaces ${VAR} references with the value of the
// corresponding environment variable, mirroring the teacher's
// config_expansion.go behavior. Unknown variables expand to "".
func expandEnv(s string) string {
	return os.Expand(s, os.Getenv)
}

// ExpandAll expands ${VAR} references in place in the LLM API key,
// the conversation store DSN, the service JWT secret, and each
// capability's URL and DSN. Other fields are left as loaded.
func (c *Config) ExpandAll() {
	c.LLMAPIKey = expandEnv(c.LLMAPIKey)
	c.ConvStoreDSN = expandEnv(c.ConvStoreDSN)
	c.ServiceJWTSecret = expandEnv(c.ServiceJWTSecret)
	for name, cap := range c.Capabilities {
		cap.URL = expandEnv(cap.URL)
		cap.DSN = expandEnv(cap.DSN)
		c.Capabilities[name] = cap
	}
}

