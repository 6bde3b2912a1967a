package cmd

import "github.com/spf13/cobra"

var modulesCmd = &cobra.Command{
	Use:   "modules <file>",
	Short: "Print the module tree of an event log",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, args[0])
		if err != nil {
			return err
		}
		defer s.Close()
		s.printer.Modules(s.log.ModuleTree())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modulesCmd)
}
