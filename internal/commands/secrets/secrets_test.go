package secrets

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/squash/internal/commands/shared"
	"github.com/tombee/squash/internal/config"
	"github.com/tombee/squash/internal/secrets"
)

type fakeKeychain struct {
	values map[string]string
}

func (f *fakeKeychain) Name() string { return "keychain" }
func (f *fakeKeychain) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.values[key]; ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", secrets.ErrSecretNotFound, key)
}
func (f *fakeKeychain) Set(_ context.Context, key, value string) error {
	f.values[key] = value
	return nil
}
func (f *fakeKeychain) Delete(_ context.Context, key string) error {
	if _, ok := f.values[key]; !ok {
		return secrets.ErrSecretNotFound
	}
	delete(f.values, key)
	return nil
}
func (f *fakeKeychain) Available() bool { return true }
func (f *fakeKeychain) Priority() int   { return secrets.KeychainBackendPriority }

func useKeychain(t *testing.T) *fakeKeychain {
	t.Helper()
	for _, key := range config.SecretKeys {
		t.Setenv(key, "")
	}
	kc := &fakeKeychain{values: map[string]string{}}
	prev := newResolver
	newResolver = func() *secrets.Resolver { return secrets.NewResolver(secrets.NewEnvBackend(), kc) }
	t.Cleanup(func() { newResolver = prev })
	return kc
}

func TestSet(t *testing.T) {
	kc := useKeychain(t)
	var out, errOut bytes.Buffer

	err := runSecretsSet(context.Background(), strings.NewReader("sk-ant-1234567890\n"), &out, &errOut, "ANTHROPIC_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-1234567890", kc.values["ANTHROPIC_API_KEY"])
	assert.Contains(t, out.String(), "stored in keychain")
	assert.Empty(t, errOut.String())

	err = runSecretsSet(context.Background(), strings.NewReader("v"), &out, &errOut, "CUSTOM_TOKEN")
	require.NoError(t, err)
	assert.Contains(t, errOut.String(), "not a key squash reads")
}

func TestSet_Invalid(t *testing.T) {
	useKeychain(t)
	tests := []struct {
		key   string
		input string
	}{
		{"providers/anthropic/api_key", "v"},
		{"lower_case", "v"},
		{"", "v"},
		{"JIRA_API_TOKEN", "   \n"},
	}
	for _, tt := range tests {
		err := runSecretsSet(context.Background(), strings.NewReader(tt.input), &bytes.Buffer{}, &bytes.Buffer{}, tt.key)
		assert.Equal(t, shared.ExitInvalidInput, shared.ExitCode(err), tt.key)
	}
}

func TestGet(t *testing.T) {
	kc := useKeychain(t)
	kc.values["JIRA_API_TOKEN"] = "atlassian-token-value"
	var out bytes.Buffer

	require.NoError(t, runSecretsGet(context.Background(), &out, "JIRA_API_TOKEN", false))
	assert.Contains(t, out.String(), "atla...alue")
	assert.NotContains(t, out.String(), "atlassian-token-value")

	out.Reset()
	require.NoError(t, runSecretsGet(context.Background(), &out, "JIRA_API_TOKEN", true))
	assert.Equal(t, "atlassian-token-value\n", out.String())

	err := runSecretsGet(context.Background(), &out, "POSTHOG_API_KEY", false)
	assert.Equal(t, shared.ExitInvalidInput, shared.ExitCode(err))
}

func TestGet_EnvironmentWins(t *testing.T) {
	kc := useKeychain(t)
	kc.values["GEMINI_API_KEY"] = "from-keychain"
	t.Setenv("GEMINI_API_KEY", "from-env")

	var out bytes.Buffer
	require.NoError(t, runSecretsGet(context.Background(), &out, "GEMINI_API_KEY", true))
	assert.Equal(t, "from-env\n", out.String())
}

func TestList(t *testing.T) {
	kc := useKeychain(t)
	kc.values["MIXPANEL_API_SECRET"] = "x"
	t.Setenv("API_SECRET", "y")
	t.Setenv("ANTHROPIC_API_KEY", "")

	var out bytes.Buffer
	require.NoError(t, runSecretsList(context.Background(), &out))

	lines := map[string]string{}
	for _, line := range strings.Split(out.String(), "\n") {
		if fields := strings.Fields(line); len(fields) >= 2 {
			lines[fields[0]] = line
		}
	}
	assert.Contains(t, lines["MIXPANEL_API_SECRET"], "keychain")
	assert.Contains(t, lines["API_SECRET"], "env")
	assert.Contains(t, lines["ANTHROPIC_API_KEY"], "not set")
}

func TestDelete(t *testing.T) {
	kc := useKeychain(t)
	kc.values["JIRA_API_TOKEN"] = "x"
	var out bytes.Buffer

	require.NoError(t, runSecretsDelete(context.Background(), strings.NewReader("n\n"), &out, "JIRA_API_TOKEN", false))
	assert.Contains(t, out.String(), "Deletion canceled")
	assert.Contains(t, kc.values, "JIRA_API_TOKEN")

	require.NoError(t, runSecretsDelete(context.Background(), strings.NewReader("yes\n"), &out, "JIRA_API_TOKEN", false))
	assert.NotContains(t, kc.values, "JIRA_API_TOKEN")

	err := runSecretsDelete(context.Background(), nil, &out, "JIRA_API_TOKEN", true)
	assert.Equal(t, shared.ExitInvalidInput, shared.ExitCode(err))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "****", maskSecret("short"))
	assert.Equal(t, "sk-a...wxyz", maskSecret("sk-abcdefghijklmnopqrstuvwxyz"))
}
