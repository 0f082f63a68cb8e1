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
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	// KeychainBackendPriority ranks the keychain below the environment.
	KeychainBackendPriority = 50

	// KeychainService is the keyring service squash credentials live under.
	KeychainService = "squash"

	probeKey = "__squash_probe__"
)

// KeychainBackend keeps source credentials in the OS keyring (macOS
// Keychain, Secret Service on Linux, Windows Credential Manager).
type KeychainBackend struct {
	service string

	once      sync.Once
	available bool
}

// NewKeychainBackend returns a backend for KeychainService.
func NewKeychainBackend() *KeychainBackend {
	return NewKeychainBackendFor(KeychainService)
}

// NewKeychainBackendFor returns a backend storing entries under service.
func NewKeychainBackendFor(service string) *KeychainBackend {
	return &KeychainBackend{service: service}
}

func (k *KeychainBackend) Name() string { return "keychain" }

// Available probes the keyring once. A headless Linux box without a
// Secret Service answers with a dbus error rather than ErrNotFound.
func (k *KeychainBackend) Available() bool {
	k.once.Do(func() {
		_, err := keyring.Get(k.service, probeKey)
		k.available = err == nil || errors.Is(err, keyring.ErrNotFound)
	})
	return k.available
}

func (k *KeychainBackend) Priority() int { return KeychainBackendPriority }

func (k *KeychainBackend) Get(_ context.Context, key string) (string, error) {
	if err := k.check(); err != nil {
		return "", err
	}
	value, err := keyring.Get(k.service, key)
	if err != nil {
		return "", k.wrap(key, err)
	}
	return value, nil
}

func (k *KeychainBackend) Set(_ context.Context, key, value string) error {
	if err := k.check(); err != nil {
		return err
	}
	if err := keyring.Set(k.service, key, value); err != nil {
		return k.wrap(key, err)
	}
	return nil
}

func (k *KeychainBackend) Delete(_ context.Context, key string) error {
	if err := k.check(); err != nil {
		return err
	}
	if err := keyring.Delete(k.service, key); err != nil {
		return k.wrap(key, err)
	}
	return nil
}

func (k *KeychainBackend) check() error {
	if !k.Available() {
		return fmt.Errorf("%w: no keyring service for %q", ErrBackendUnavailable, k.service)
	}
	return nil
}

func (k *KeychainBackend) wrap(key string, err error) error {
	if errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"locked", "dbus", "secret service", "not available", "no such interface"} {
		if strings.Contains(msg, s) {
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}
	return fmt.Errorf("keychain %s: %w", key, err)
}
