package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"link-crawler/pkg/orchestrate"
)

// NewValidateCmd creates the validate command.
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		Long: `Validate loads the configuration file, applies defaults and reports warnings.

With --target, it also checks that the named target exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			target, _ := cmd.Flags().GetString("target")
			return exitWith(doValidate(configPath, target, cmd.OutOrStdout(), cmd.ErrOrStderr()))
		},
	}
	cmd.Flags().StringP("target", "t", "", "Target key to check")
	return cmd
}

// doValidate is the testable implementation of the validate command
func doValidate(configPath, targetKey string, stdout, stderr io.Writer) int {
	if configPath == "" {
		fmt.Fprintln(stderr, "Error: --config is required")
		return 1
	}
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	if targetKey != "" {
		if err := orchestrate.ValidateTargetKeys(appCfg, []string{targetKey}); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "OK: Target '%s' configuration is valid\n", targetKey)
	} else {
		for _, key := range orchestrate.GetAllTargetKeys(appCfg) {
			fmt.Fprintf(stdout, "OK: [%s]\n", key)
		}
	}

	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}
