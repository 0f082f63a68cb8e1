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

package config

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tombee/squash/pkg/errors"
)

// Source categories used by the collect stage and the aggregate queries.
const (
	TypeAnalytics = "analytics"
	TypeSupport   = "support"
	TypeSales     = "sales"
	TypePM        = "pm"
)

// ServerNameRegex validates server names.
// Names must start with a letter and contain only letters, numbers, hyphens, and underscores.
var ServerNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,63}$`)

// shellInjectionPatterns are rejected in commands and arguments. "${" is
// allowed because it marks an environment reference.
var shellInjectionPatterns = []string{";", "&&", "||", "|", "`", "$(", "\n", "\r"}

var envKeyRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ServerDescriptor describes how to reach one data source and what it
// exposes. It is immutable after the registry is loaded.
type ServerDescriptor struct {
	// Name is the registry key.
	Name string `yaml:"-" json:"name"`

	// Type is the source category: analytics, support, sales or pm.
	Type string `yaml:"type" json:"type"`

	Description string `yaml:"description" json:"description"`

	// Capabilities lists the logical operations this source exposes.
	Capabilities []string `yaml:"capabilities" json:"capabilities"`

	// Mock forces the canned-data backend for this source.
	Mock bool `yaml:"mock" json:"mock"`

	// Command and Args launch an MCP server subprocess.
	Command string   `yaml:"command,omitempty" json:"command,omitempty"`
	Args    []string `yaml:"args,omitempty" json:"args,omitempty"`

	// Env is overlaid on the inherited environment of the subprocess.
	// Values may reference other variables as ${VAR}.
	Env map[string]string `yaml:"env,omitempty" json:"env,omitempty"`

	// CapabilityMap translates logical capability names to remote tool names.
	CapabilityMap map[string]string `yaml:"capability_map,omitempty" json:"capability_map,omitempty"`

	// Timeout overrides the per-call timeout, in seconds.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// HasCapability reports whether the descriptor declares capability.
func (d *ServerDescriptor) HasCapability(capability string) bool {
	return slices.Contains(d.Capabilities, capability)
}

// IsSubprocess reports whether the descriptor declares launch parameters.
func (d *ServerDescriptor) IsSubprocess() bool {
	return d.Command != ""
}

// CallTimeout returns the per-call timeout, defaulting to 30s.
func (d *ServerDescriptor) CallTimeout() time.Duration {
	if d.Timeout > 0 {
		return time.Duration(d.Timeout) * time.Second
	}
	return 30 * time.Second
}

// ToolName translates a logical capability through the capability map.
func (d *ServerDescriptor) ToolName(capability string) string {
	if tool, ok := d.CapabilityMap[capability]; ok && tool != "" {
		return tool
	}
	return capability
}

// Validate checks the descriptor. An invalid descriptor is skipped by the
// connector manager without affecting the others.
func (d *ServerDescriptor) Validate() error {
	if d.Name == "" {
		return &errors.ValidationError{Field: "name", Message: "server name is required"}
	}
	if !ServerNameRegex.MatchString(d.Name) {
		return &errors.ValidationError{
			Field:      "servers." + d.Name,
			Message:    "invalid server name",
			Suggestion: "start with a letter and use only letters, numbers, hyphens and underscores",
		}
	}
	if d.Command != "" {
		if err := checkUnsafe(d.Command); err != nil {
			return &errors.ValidationError{Field: "servers." + d.Name + ".command", Message: err.Error()}
		}
		for i, arg := range d.Args {
			if err := checkUnsafe(arg); err != nil {
				return &errors.ValidationError{Field: fmt.Sprintf("servers.%s.args[%d]", d.Name, i), Message: err.Error()}
			}
		}
	}
	for key, value := range d.Env {
		if !envKeyRegex.MatchString(key) {
			return &errors.ValidationError{Field: "servers." + d.Name + ".env", Message: fmt.Sprintf("invalid environment variable key: %s", key)}
		}
		if err := checkUnsafe(value); err != nil {
			return &errors.ValidationError{Field: "servers." + d.Name + ".env." + key, Message: err.Error()}
		}
	}
	return nil
}

func checkUnsafe(s string) error {
	for _, pattern := range shellInjectionPatterns {
		if strings.Contains(s, pattern) {
			return fmt.Errorf("contains potentially unsafe pattern %q", pattern)
		}
	}
	return nil
}

// Registry is the set of server descriptors loaded from disk.
type Registry struct {
	Servers map[string]*ServerDescriptor `yaml:"servers" json:"servers"`
}

// NewRegistry builds a registry from descriptors, keyed by name.
func NewRegistry(descriptors ...*ServerDescriptor) *Registry {
	r := &Registry{Servers: make(map[string]*ServerDescriptor, len(descriptors))}
	for _, d := range descriptors {
		r.Servers[d.Name] = d
	}
	return r
}

// LoadRegistry reads a YAML or JSON server file. A missing file yields an
// empty registry and no error.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewRegistry(), nil
		}
		return NewRegistry(), &errors.ConfigError{Key: "SERVERS_CONFIG", Reason: "cannot read " + path, Cause: err}
	}
	return ParseRegistry(data)
}

// ParseRegistry decodes a server file. JSON input parses as YAML.
func ParseRegistry(data []byte) (*Registry, error) {
	var r Registry
	if err := yaml.Unmarshal(data, &r); err != nil {
		return NewRegistry(), &errors.ConfigError{Key: "SERVERS_CONFIG", Reason: "malformed server configuration", Cause: err}
	}
	if r.Servers == nil {
		r.Servers = map[string]*ServerDescriptor{}
	}
	for name, d := range r.Servers {
		if d == nil {
			d = &ServerDescriptor{}
			r.Servers[name] = d
		}
		d.Name = name
	}
	return &r, nil
}

// Names returns the server names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Servers))
	for name := range r.Servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the descriptor for name.
func (r *Registry) Get(name string) (*ServerDescriptor, bool) {
	d, ok := r.Servers[name]
	return d, ok
}
