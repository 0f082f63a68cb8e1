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

package secrets

import (
	"context"
	"fmt"
	"os"
)

// EnvBackendPriority puts the environment ahead of the keychain so a
// shell export always overrides a stored value.
const EnvBackendPriority = 100

// EnvBackend reads secrets straight from environment variables.
type EnvBackend struct {
	lookup func(string) (string, bool)
}

// NewEnvBackend creates a new environment variable backend.
func NewEnvBackend() *EnvBackend {
	return &EnvBackend{lookup: os.LookupEnv}
}

// Name returns the backend identifier.
func (e *EnvBackend) Name() string { return "env" }

// Get returns the value of the environment variable named key.
// Empty values count as unset.
func (e *EnvBackend) Get(ctx context.Context, key string) (string, error) {
	if v, ok := e.lookup(key); ok && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s not set", ErrSecretNotFound, key)
}

// Set returns ErrReadOnlyBackend.
func (e *EnvBackend) Set(ctx context.Context, key, value string) error {
	return ErrReadOnlyBackend
}

// Delete returns ErrReadOnlyBackend.
func (e *EnvBackend) Delete(ctx context.Context, key string) error {
	return ErrReadOnlyBackend
}

// ReadOnly always returns true.
func (e *EnvBackend) ReadOnly() bool { return true }

// Available always returns true.
func (e *EnvBackend) Available() bool { return true }

// Priority returns EnvBackendPriority.
func (e *EnvBackend) Priority() int { return EnvBackendPriority }
