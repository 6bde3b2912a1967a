package cmd

import (
	"github.com/spf13/cobra"

	"github.com/papapumpkin/seqchart/internal/ui"
)

var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Summarize an event log",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	first, err := s.log.FirstEvent(ctx)
	if err != nil {
		return err
	}
	last, err := s.log.LastEvent(ctx)
	if err != nil {
		return err
	}
	parseErrors, count := s.log.ParseErrors()
	s.printer.Info(ui.Summary{
		Path:            s.log.Path(),
		Size:            s.log.Size(),
		Events:          s.log.Len(),
		First:           first,
		Last:            last,
		Modules:         s.log.ModuleTree().Len(),
		ParseErrors:     parseErrors,
		ParseErrorCount: count,
	})
	return nil
}
