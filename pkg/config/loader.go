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

package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/consul"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// SourceType selects where configuration is loaded from, mirroring
// the teacher's pkg/config/koanf_loader.go ConfigType enum.
type SourceType string

const (
	SourceFile   SourceType = "file"
	SourceConsul SourceType = "consul"
)

// LoadOptions controls Load.
type LoadOptions struct {
	Type SourceType
	Path string

	// ConsulAddress and ConsulKey are used when Type == SourceConsul.
	ConsulAddress string
	ConsulKey     string

	// DotEnvPath, if non-empty, is loaded into the process environment
	// before ${VAR} expansion runs (github.com/joho/godotenv).
	DotEnvPath string
}

// Load reads configuration from the given source, overlays it on
// Defaults(), expands ${VAR} references, and validates the result.
func Load(opts LoadOptions) (Config, error) {
	if opts.DotEnvPath != "" {
		_ = godotenv.Load(opts.DotEnvPath)
	}

	k := koanf.New(".")

	defaults := Defaults()
	defaultsMap, err := toMap(defaults)
	if err != nil {
		return Config{}, fmt.Errorf("config: marshal defaults: %w", err)
	}
	if err := k.Load(confmap.Provider(defaultsMap, "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	switch opts.Type {
	case "", SourceFile:
		if opts.Path == "" {
			return Config{}, fmt.Errorf("config: path is required for file source")
		}
		if err := k.Load(file.Provider(opts.Path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", opts.Path, err)
		}
	case SourceConsul:
		if opts.ConsulKey == "" {
			return Config{}, fmt.Errorf("config: consul key is required")
		}
		address := opts.ConsulAddress
		if address == "" {
			address = "localhost:8500"
		}
		provider := consul.Provider(consul.Config{
			Key:       opts.ConsulKey,
			Addresses: []string{address},
		})
		if err := k.Load(provider, yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load consul key %s: %w", opts.ConsulKey, err)
		}
	default:
		return Config{}, fmt.Errorf("config: unknown source type %q", opts.Type)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.ExpandAll()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// toMap round-trips a Config through koanf's confmap provider shape so
// struct defaults can seed the same key-space the YAML file overlays.
func toMap(cfg Config) (map[string]interface{}, error) {
	return map[string]interface{}{
		"mode":                     string(cfg.Mode),
		"admin_bypass_role":        cfg.AdminBypassRole,
		"max_rounds":               cfg.MaxRounds,
		"max_parallel_tool_calls":  cfg.MaxParallelToolCalls,
		"llm_timeout_s":            cfg.LLMTimeoutSeconds,
		"tool_timeout_s":           cfg.ToolTimeoutSeconds,
		"request_deadline_s":       cfg.RequestDeadlineSec,
		"token_budget_chars":       cfg.TokenBudgetChars,
		"dangerous_patterns":       cfg.DangerousPatterns,
		"history_turns_in_context": cfg.HistoryTurnsInContext,
		"max_turns_retained":       cfg.MaxTurnsRetained,
		"cache_scope":              string(cfg.CacheScope),
		"log_level":                cfg.LogLevel,
		"log_format":               cfg.LogFormat,
		"log_file":                 cfg.LogFile,
		"tracing_enabled":          cfg.TracingEnabled,
		"tracing_exporter_type":    cfg.TracingExporterType,
		"tracing_endpoint_url":     cfg.TracingEndpointURL,
		"tracing_sampling_rate":    cfg.TracingSamplingRate,
		"service_name":             cfg.ServiceName,
		"listen_addr":              cfg.ListenAddr,
		"metrics_enabled":          cfg.MetricsEnabled,
		"resolver_corpus_path":         cfg.ResolverCorpusPath,
		"resolver_min_similarity":      cfg.ResolverMinSimilarity,
		"resolver_max_candidates":      cfg.ResolverMaxCandidates,
		"resolver_confident_threshold": cfg.ResolverConfidentThreshold,
	}, nil
}
