package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/seqchart/internal/config"
	"github.com/papapumpkin/seqchart/internal/filter"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Manage saved filter parameters",
}

var filterSaveFlags filterFlags

var filterSaveCmd = &cobra.Command{
	Use:   "save <out.toml>",
	Short: "Save the filter given by flags to a TOML file for use with --filter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		p, _, err := filterSaveFlags.parameters(cmd, cfg)
		if err != nil {
			return err
		}
		if err := filter.SaveParameters(args[0], p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ saved %s\n", args[0])
		return nil
	},
}

var filterCheckCmd = &cobra.Command{
	Use:   "check <params.toml>",
	Short: "Validate a saved filter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := filter.LoadParameters(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is valid\n", args[0])
		return nil
	},
}

func init() {
	filterSaveFlags.register(filterSaveCmd)
	filterCmd.AddCommand(filterSaveCmd)
	filterCmd.AddCommand(filterCheckCmd)
	rootCmd.AddCommand(filterCmd)
}
