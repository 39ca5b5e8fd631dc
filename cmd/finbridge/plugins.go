package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/finbridge/finbridge/config"
	"github.com/finbridge/finbridge/plugin"

	_ "github.com/finbridge/finbridge/plugins"
)

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "Inspect plugins without starting the host",
}

var pluginsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List plugins linked into this binary",
	RunE: func(cmd *cobra.Command, args []string) error {
		names := plugin.RegisteredFactories()
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

var pluginsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show discovered plugin manifests and their configuration state",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := config.Load(configPath)
		if err != nil {
			return err
		}
		core := settings.Core()
		manager := plugin.NewManager(core.Plugins.Directory, settings, "", nil)

		names := manager.Discover()
		if len(names) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "no plugins found in %s\n", core.Plugins.Directory)
			return nil
		}
		for _, name := range names {
			manifest, err := plugin.ReadManifest(core.Plugins.Directory, name)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s  error: %v\n", name, err)
				continue
			}
			cfg := settings.GetPluginConfig(name)
			enabled := manifest.IsEnabled() && settings.IsPluginEnabled(name)
			fmt.Fprintf(cmd.OutOrStdout(), "%-20s  v%-10s  enabled=%-5t  configured=%t\n",
				manifest.Name, manifest.Version, enabled, cfg.Configured)
		}
		return nil
	},
}

func init() {
	pluginsCmd.AddCommand(pluginsListCmd, pluginsStatusCmd)
	rootCmd.AddCommand(pluginsCmd)
}
