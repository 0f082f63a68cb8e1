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

// Package secrets manages source credentials in the OS keychain.
package secrets

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tombee/squash/internal/commands/completion"
	"github.com/tombee/squash/internal/commands/shared"
	"github.com/tombee/squash/internal/config"
	"github.com/tombee/squash/internal/secrets"
)

// newResolver is replaced in tests.
var newResolver = secrets.Default

// NewCommand creates the secrets command for secret management.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage API keys and source credentials",
		Annotations: map[string]string{
			"group": "configuration",
		},
		Long: `Manage secrets in the OS keychain.

Secrets resolve in priority order:
  1. Environment variables (highest priority, read-only)
  2. System keychain (macOS Keychain, Linux Secret Service, Windows Credential Manager)

Keys are the environment variable names squash reads, so a key set here
is used whenever the variable itself is unset.

Examples:
  squash secrets set ANTHROPIC_API_KEY
  squash secrets get JIRA_API_TOKEN
  squash secrets list
  squash secrets delete MIXPANEL_API_SECRET`,
	}

	cmd.AddCommand(newSecretsSetCommand())
	cmd.AddCommand(newSecretsGetCommand())
	cmd.AddCommand(newSecretsListCommand())
	cmd.AddCommand(newSecretsDeleteCommand())

	return cmd
}

func newSecretsSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key>",
		Short: "Store a secret in the keychain",
		Long: `Store a secret in the first writable backend (the keychain).

The secret value can be provided via:
  - Interactive prompt (hidden input, default)
  - Standard input: echo "value" | squash secrets set <key>

Examples:
  squash secrets set ANTHROPIC_API_KEY
  echo "sk-..." | squash secrets set ANTHROPIC_API_KEY`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSecretsSet(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0])
		},
	}
}

func newSecretsGetCommand() *cobra.Command {
	var unmask bool
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Retrieve a secret value",
		Long: `Retrieve a secret value from any available backend.

By default, the value is masked for security. Use --unmask to show the full value.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSecretsGet(cmd.Context(), cmd.OutOrStdout(), args[0], unmask)
		},
	}
	cmd.Flags().BoolVar(&unmask, "unmask", false, "Show full value (not masked)")
	return cmd
}

func newSecretsListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known credential keys",
		Long: `List every credential key squash reads and the backend that provides
it, if any.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSecretsList(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func newSecretsDeleteCommand() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:               "delete <key>",
		Short:             "Remove a secret from the keychain",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completeKeys,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSecretsDelete(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), args[0], force)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip the confirmation prompt")
	return cmd
}

func runSecretsSet(c context.Context, in io.Reader, out, errOut io.Writer, key string) error {
	if err := validateSecretKey(key); err != nil {
		return shared.NewInputError("invalid secret key", err)
	}
	if !slices.Contains(config.SecretKeys, key) {
		fmt.Fprintln(errOut, shared.RenderWarn(fmt.Sprintf("%s is not a key squash reads", key)))
	}

	value, err := readSecretValue(in, errOut)
	if err != nil {
		return shared.NewInputError("failed to read secret value", err)
	}
	if value == "" {
		return shared.NewInputError("secret value cannot be empty", nil)
	}

	resolver := newResolver()
	if err := resolver.Set(ctx(c), key, value); err != nil {
		if errors.Is(err, secrets.ErrBackendUnavailable) {
			return shared.NewConfigError("no writable secret backend",
				fmt.Errorf("%w; set the environment variable instead: export %s=<value>", err, key))
		}
		return shared.NewRunError("failed to set secret", err)
	}

	backend := "keychain"
	if b, ok := resolver.Writable(); ok {
		backend = b.Name()
	}
	fmt.Fprintln(out, shared.RenderOK(fmt.Sprintf("%s stored in %s", key, backend)))
	if v, ok := os.LookupEnv(key); ok && v != "" {
		fmt.Fprintln(errOut, shared.RenderWarn(fmt.Sprintf("%s is also set in the environment, which takes precedence", key)))
	}
	return nil
}

func runSecretsGet(c context.Context, out io.Writer, key string, unmask bool) error {
	value, err := newResolver().Get(ctx(c), key)
	if err != nil {
		if errors.Is(err, secrets.ErrSecretNotFound) {
			return shared.NewInputError(fmt.Sprintf("secret %s not found", key),
				fmt.Errorf("set it with: squash secrets set %s", key))
		}
		return shared.NewRunError("failed to get secret", err)
	}

	if unmask {
		fmt.Fprintln(out, value)
	} else {
		fmt.Fprintf(out, "%s %s\n", maskSecret(value), shared.RenderLabel("(use --unmask to show full value)"))
	}
	return nil
}

// KeyStatus is one row of the secrets listing.
type KeyStatus struct {
	Key     string `json:"key"`
	Backend string `json:"backend,omitempty"`
	Set     bool   `json:"set"`
}

type listResponse struct {
	shared.JSONResponse
	Keys []KeyStatus `json:"keys"`
}

func runSecretsList(c context.Context, out io.Writer) error {
	resolver := newResolver()
	keys := make([]KeyStatus, 0, len(config.SecretKeys))
	for _, key := range config.SecretKeys {
		status := KeyStatus{Key: key}
		for _, b := range resolver.Backends() {
			if _, err := b.Get(ctx(c), key); err == nil {
				status.Backend = b.Name()
				status.Set = true
				break
			}
		}
		keys = append(keys, status)
	}

	if shared.GetJSON() {
		return shared.EmitJSONTo(out, listResponse{JSONResponse: shared.NewJSONResponse("secrets list", true), Keys: keys})
	}

	fmt.Fprintf(out, "%-28s %s\n", "KEY", "BACKEND")
	fmt.Fprintln(out, strings.Repeat("-", 40))
	set := 0
	for _, k := range keys {
		backend := shared.RenderLabel("not set")
		if k.Set {
			backend = shared.RenderOK(k.Backend)
			set++
		}
		fmt.Fprintf(out, "%-28s %s\n", k.Key, backend)
	}
	fmt.Fprintf(out, "\n%d of %d set\n", set, len(keys))
	return nil
}

func runSecretsDelete(c context.Context, in io.Reader, out io.Writer, key string, force bool) error {
	if !force {
		if shared.IsNonInteractive() && in == os.Stdin {
			return shared.NewInputError("refusing to delete without confirmation", fmt.Errorf("pass --force"))
		}
		fmt.Fprintf(out, "Delete secret %s? [y/N]: ", key)
		response, _ := bufio.NewReader(in).ReadString('\n')
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			fmt.Fprintln(out, "Deletion canceled")
			return nil
		}
	}

	if err := newResolver().Delete(ctx(c), key); err != nil {
		if errors.Is(err, secrets.ErrSecretNotFound) {
			return shared.NewInputError(fmt.Sprintf("secret %s not found in a writable backend", key), nil)
		}
		return shared.NewRunError("failed to delete secret", err)
	}
	fmt.Fprintln(out, shared.RenderOK(fmt.Sprintf("%s deleted", key)))
	return nil
}

// readSecretValue reads a hidden value from a terminal, or the whole input
// otherwise.
func readSecretValue(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Enter secret value (hidden): ")
		value, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(value)), nil
	}
	data, err := io.ReadAll(io.LimitReader(in, 64<<10))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// maskSecret masks a secret value for display.
func maskSecret(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:4] + "..." + value[len(value)-4:]
}

var keyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// validateSecretKey requires an environment variable style name.
func validateSecretKey(key string) error {
	if key == "" {
		return errors.New("secret key cannot be empty")
	}
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%q is not an environment variable name (want e.g. JIRA_API_TOKEN)", key)
	}
	return nil
}

func completeKeys(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return completion.CompleteSecretKeys(cmd, args, toComplete)
}

func ctx(c context.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	return c
}
