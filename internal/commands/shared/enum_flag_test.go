package shared

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumFlag(t *testing.T) {
	output := "md"
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Var(NewEnumFlag(&output, "md", "json"), "output", "")

	require.NoError(t, fs.Parse([]string{"--output", "JSON"}))
	assert.Equal(t, "json", output)

	err := fs.Parse([]string{"--output", "yaml"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be one of md, json")
	assert.Equal(t, "json", output)
}
