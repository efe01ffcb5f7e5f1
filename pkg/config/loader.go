// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/internal/metrics"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/internal/telemetry"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/plugins/compute"
	"github.com/wso2/api-platform/gateway/gateway-runtime/connector-engine/pkg/plugins/translate"
)

// DefaultPath is used when CONFIG_PATH is unset.
const DefaultPath = "config.yaml"

type Config struct {
	LogLevel  string              `yaml:"log_level"`
	Metrics   metrics.Config      `yaml:"metrics"`
	Tracing   telemetry.Config    `yaml:"tracing"`
	Translate TranslateConfig     `yaml:"translate"`
	Compute   compute.LocalConfig `yaml:"compute"`
	GCS       GCSConfig           `yaml:"gcs"`
	Routes    []core.Route        `yaml:"routes"`
}

type TranslateConfig struct {
	// OpenAI backs the translate component. Translation is disabled when
	// no model is set.
	OpenAI   translate.OpenAIConfig   `yaml:"openai"`
	Detector translate.DetectorConfig `yaml:"detector"`
}

func (c TranslateConfig) Enabled() bool { return c.OpenAI.Model != "" }

// DetectionEnabled reports whether automatic source language detection is
// configured.
func (c TranslateConfig) DetectionEnabled() bool { return len(c.Detector.Languages) > 0 }

type GCSConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Path returns the configuration file named by CONFIG_PATH, or DefaultPath.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Config{LogLevel: "info"}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Routes))
	for i, r := range c.Routes {
		if r.Name == "" {
			return core.ConfigErrorf("routes[%d]: name is required", i)
		}
		if seen[r.Name] {
			return core.ConfigErrorf("routes[%d]: duplicate route name %s", i, r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}

func ParseLogLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, core.ConfigErrorf("log_level: %v", err)
	}
	return level, nil
}
