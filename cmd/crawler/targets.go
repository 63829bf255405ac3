package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"link-crawler/pkg/orchestrate"
)

// NewListTargetsCmd creates the list-targets command.
func NewListTargetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-targets",
		Short: "List the targets in a configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			return exitWith(doListTargets(configPath, cmd.OutOrStdout(), cmd.ErrOrStderr()))
		},
	}
}

// doListTargets is the testable implementation of the list-targets command
func doListTargets(configPath string, stdout, stderr io.Writer) int {
	if configPath == "" {
		fmt.Fprintln(stderr, "Error: --config is required")
		return 1
	}
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if appCfg.DefaultDepth <= 0 {
		appCfg.DefaultDepth = 2
	}

	fmt.Fprintf(stdout, "Targets in %s:\n\n", configPath)
	for _, key := range orchestrate.GetAllTargetKeys(appCfg) {
		target := appCfg.Targets[key]
		fmt.Fprintf(stdout, "  %s\n", key)
		if target == nil {
			fmt.Fprintln(stdout, "    (empty)")
			fmt.Fprintln(stdout)
			continue
		}
		fmt.Fprintf(stdout, "    Seed URL: %s\n", target.SeedURL)
		fmt.Fprintf(stdout, "    Depth: %d\n", target.EffectiveDepth(appCfg))
		fmt.Fprintln(stdout)
	}
	return 0
}
