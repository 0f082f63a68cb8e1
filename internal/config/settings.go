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

// Package config loads process settings from the environment and the data
// source registry from disk. Both are built once in main and passed down.
package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/tombee/squash/pkg/errors"
)

// Defaults for settings not present in the environment.
const (
	DefaultAppName       = "Squash"
	DefaultModel         = "claude-3-5-sonnet-20241022"
	DefaultWebHost       = "0.0.0.0"
	DefaultWebPort       = 8000
	DefaultUploadDir     = "./data/uploads"
	DefaultCacheDir      = "./data/cache"
	DefaultDBPath        = "./data/squash.db"
	DefaultServersConfig = "config/servers.yaml"
)

// SecretKeys are the settings FromEnv resolves through a SecretSource when
// the environment does not set them.
var SecretKeys = []string{
	"ANTHROPIC_API_KEY",
	"GEMINI_API_KEY",
	"API_SECRET",
	"MIXPANEL_API_SECRET",
	"POSTHOG_API_KEY",
	"JIRA_API_TOKEN",
	"CONFLUENCE_API_TOKEN",
	"SALESFORCE_ACCESS_TOKEN",
	"SALESFORCE_CLIENT_SECRET",
}

// SecretSource resolves credentials by environment variable name.
// *secrets.Resolver satisfies it.
type SecretSource interface {
	Lookup(ctx context.Context, key string) string
}

// Settings is the process-wide configuration.
type Settings struct {
	AppName     string
	Environment string
	LogLevel    string

	// LLMProvider selects the completion backend: anthropic, gemini or offline.
	LLMProvider     string
	LLMModel        string
	AnthropicAPIKey string
	GeminiAPIKey    string

	WebHost string
	WebPort int

	UploadDir string
	CacheDir  string
	DBPath    string

	// UseMockMCP forces every connector onto the mock backend.
	UseMockMCP    bool
	ServersConfig string

	// ScoringMethod is rice, ice or custom. ScoringFormula is the expr
	// program used by custom.
	ScoringMethod  string
	ScoringFormula string

	// APISecret signs and verifies API bearer tokens. Empty disables auth.
	APISecret string

	// TraceExporter is none, stdout, otlp-http or otlp-grpc.
	TraceExporter string
	OTLPEndpoint  string
	OTLPInsecure  bool
	// TraceSampleRate is the fraction of runs traced, 0 to 1.
	TraceSampleRate float64

	Sources SourceCredentials
}

// SourceCredentials holds the credentials of the direct HTTP backends.
type SourceCredentials struct {
	Mixpanel   MixpanelCredentials
	PostHog    PostHogCredentials
	Jira       AtlassianCredentials
	Confluence AtlassianCredentials
	Salesforce SalesforceCredentials
}

// MixpanelCredentials configures the Mixpanel query API.
type MixpanelCredentials struct {
	ProjectID string
	APISecret string
	EU        bool
}

// PostHogCredentials configures the PostHog project API.
type PostHogCredentials struct {
	APIKey    string
	ProjectID string
	Host      string
}

// AtlassianCredentials configures Jira or Confluence cloud.
type AtlassianCredentials struct {
	Domain   string
	Email    string
	APIToken string
	// Key is the Jira project key or the Confluence space key.
	Key string
}

// SalesforceCredentials configures the Salesforce REST API. A static
// AccessToken wins over the client-credentials flow.
type SalesforceCredentials struct {
	InstanceURL  string
	AccessToken  string
	ClientID     string
	ClientSecret string
}

// Load reads .env (when present) then builds Settings from the environment.
// Credentials missing from the environment are looked up in secrets, which
// may be nil.
func Load(ctx context.Context, secrets SecretSource) (*Settings, error) {
	_ = godotenv.Load()
	return FromEnv(ctx, os.Getenv, secrets)
}

// FromEnv builds Settings from getenv.
func FromEnv(ctx context.Context, getenv func(string) string, secrets SecretSource) (*Settings, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}
	secret := func(key string) string {
		if v := getenv(key); v != "" {
			return v
		}
		if secrets != nil {
			return secrets.Lookup(ctx, key)
		}
		return ""
	}

	s := &Settings{
		AppName:         get("APP_NAME", DefaultAppName),
		Environment:     get("ENVIRONMENT", "development"),
		LogLevel:        strings.ToLower(get("LOG_LEVEL", "info")),
		LLMProvider:     strings.ToLower(get("LLM_PROVIDER", "")),
		LLMModel:        get("LLM_MODEL", DefaultModel),
		AnthropicAPIKey: secret("ANTHROPIC_API_KEY"),
		GeminiAPIKey:    secret("GEMINI_API_KEY"),
		WebHost:         get("WEB_HOST", DefaultWebHost),
		UploadDir:       get("UPLOAD_DIR", DefaultUploadDir),
		CacheDir:        get("CACHE_DIR", DefaultCacheDir),
		DBPath:          get("DB_PATH", DefaultDBPath),
		ServersConfig:   get("SERVERS_CONFIG", DefaultServersConfig),
		ScoringMethod:   strings.ToLower(get("SCORING_METHOD", "rice")),
		ScoringFormula:  get("SCORING_FORMULA", ""),
		APISecret:       secret("API_SECRET"),
		TraceExporter:   strings.ToLower(get("TRACE_EXPORTER", "none")),
		OTLPEndpoint:    get("OTLP_ENDPOINT", ""),
	}

	port, err := strconv.Atoi(get("WEB_PORT", strconv.Itoa(DefaultWebPort)))
	if err != nil {
		return nil, &errors.ConfigError{Key: "WEB_PORT", Reason: "must be an integer", Cause: err}
	}
	s.WebPort = port

	s.UseMockMCP, err = parseBool(get("USE_MOCK_MCP", "true"))
	if err != nil {
		return nil, &errors.ConfigError{Key: "USE_MOCK_MCP", Reason: "must be true or false", Cause: err}
	}

	s.OTLPInsecure, err = parseBool(get("OTLP_INSECURE", "false"))
	if err != nil {
		return nil, &errors.ConfigError{Key: "OTLP_INSECURE", Reason: "must be true or false", Cause: err}
	}

	s.TraceSampleRate, err = strconv.ParseFloat(get("TRACE_SAMPLE_RATE", "1"), 64)
	if err != nil {
		return nil, &errors.ConfigError{Key: "TRACE_SAMPLE_RATE", Reason: "must be a number", Cause: err}
	}

	if s.LLMProvider == "" {
		s.LLMProvider = inferProvider(s)
	}

	s.Sources = SourceCredentials{
		Mixpanel: MixpanelCredentials{
			ProjectID: get("MIXPANEL_PROJECT_ID", ""),
			APISecret: secret("MIXPANEL_API_SECRET"),
			EU:        strings.EqualFold(get("MIXPANEL_DATA_RESIDENCY", ""), "EU"),
		},
		PostHog: PostHogCredentials{
			APIKey:    secret("POSTHOG_API_KEY"),
			ProjectID: get("POSTHOG_PROJECT_ID", ""),
			Host:      strings.TrimRight(get("POSTHOG_HOST", "https://app.posthog.com"), "/"),
		},
		Jira: AtlassianCredentials{
			Domain:   get("JIRA_DOMAIN", ""),
			Email:    get("JIRA_EMAIL", ""),
			APIToken: secret("JIRA_API_TOKEN"),
			Key:      get("JIRA_PROJECT_KEY", ""),
		},
		Confluence: AtlassianCredentials{
			Domain:   get("CONFLUENCE_DOMAIN", get("JIRA_DOMAIN", "")),
			Email:    get("CONFLUENCE_EMAIL", get("JIRA_EMAIL", "")),
			APIToken: secret("CONFLUENCE_API_TOKEN"),
			Key:      get("CONFLUENCE_SPACE_KEY", ""),
		},
		Salesforce: SalesforceCredentials{
			InstanceURL:  strings.TrimRight(get("SALESFORCE_INSTANCE_URL", ""), "/"),
			AccessToken:  secret("SALESFORCE_ACCESS_TOKEN"),
			ClientID:     get("SALESFORCE_CLIENT_ID", ""),
			ClientSecret: secret("SALESFORCE_CLIENT_SECRET"),
		},
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks value ranges and enumerations.
func (s *Settings) Validate() error {
	if s.WebPort < 1 || s.WebPort > 65535 {
		return &errors.ConfigError{Key: "WEB_PORT", Reason: fmt.Sprintf("must be between 1 and 65535, got %d", s.WebPort)}
	}
	switch s.LLMProvider {
	case "anthropic", "gemini", "offline":
	default:
		return &errors.ConfigError{Key: "LLM_PROVIDER", Reason: fmt.Sprintf("unknown provider %q (want anthropic, gemini or offline)", s.LLMProvider)}
	}
	switch s.ScoringMethod {
	case "rice", "ice":
	case "custom":
		if s.ScoringFormula == "" {
			return &errors.ConfigError{Key: "SCORING_FORMULA", Reason: "required when SCORING_METHOD=custom"}
		}
	default:
		return &errors.ConfigError{Key: "SCORING_METHOD", Reason: fmt.Sprintf("unknown method %q", s.ScoringMethod)}
	}
	switch s.TraceExporter {
	case "none", "stdout", "otlp-http", "otlp-grpc":
	default:
		return &errors.ConfigError{Key: "TRACE_EXPORTER", Reason: fmt.Sprintf("unknown exporter %q", s.TraceExporter)}
	}
	if s.TraceSampleRate < 0 || s.TraceSampleRate > 1 {
		return &errors.ConfigError{Key: "TRACE_SAMPLE_RATE", Reason: fmt.Sprintf("must be between 0 and 1, got %g", s.TraceSampleRate)}
	}
	return nil
}

// EnsureDirs creates the upload and cache directories.
func (s *Settings) EnsureDirs() error {
	for _, dir := range []string{s.UploadDir, s.CacheDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "creating %s", dir)
		}
	}
	return nil
}

// Addr returns the HTTP listen address.
func (s *Settings) Addr() string {
	return fmt.Sprintf("%s:%d", s.WebHost, s.WebPort)
}

// inferProvider picks the provider matching whichever API key is present.
func inferProvider(s *Settings) string {
	switch {
	case s.AnthropicAPIKey != "":
		return "anthropic"
	case s.GeminiAPIKey != "":
		return "gemini"
	default:
		return "offline"
	}
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", v)
}
