package completion

import (
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/tombee/squash/internal/config"
	"github.com/tombee/squash/internal/connector"
)

// RegistryPath resolves the server registry for completion: the --servers
// flag, then SERVERS_CONFIG, then the default.
func RegistryPath(cmd *cobra.Command) string {
	if f := cmd.Flags().Lookup("servers"); f != nil && f.Value.String() != "" {
		return f.Value.String()
	}
	if p := os.Getenv("SERVERS_CONFIG"); p != "" {
		return p
	}
	return config.DefaultServersConfig
}

// CompleteServerNames completes the first argument with registry names.
func CompleteServerNames(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		reg, err := config.LoadRegistry(RegistryPath(cmd))
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		var out []string
		for _, name := range reg.Names() {
			desc, _ := reg.Get(name)
			out = append(out, name+"\t"+desc.Type)
		}
		return out, cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteServerCapabilities completes a server name, then one of its
// capabilities.
func CompleteServerCapabilities(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return CompleteServerNames(cmd, args, toComplete)
	}
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		if len(args) > 1 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		reg, err := config.LoadRegistry(RegistryPath(cmd))
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		desc, ok := reg.Get(args[0])
		if !ok {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return slices.Clone(desc.Capabilities), cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteMockSources completes the sources that have canned data.
func CompleteMockSources(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return connector.MockSources(), cobra.ShellCompDirectiveNoFileComp
	})
}
