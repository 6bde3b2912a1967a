package cmd

import (
	"github.com/spf13/cobra"
)

var depsFilter filterFlags

var depsCmd = &cobra.Command{
	Use:   "deps <file>",
	Short: "List message dependencies crossing an event range",
	Long: "Deps prints every message dependency with at least one end in the event range\n" +
		"given by --first and --last. With a filter, dependencies through hidden events are\n" +
		"aggregated into one dependency between the visible events.",
	Args: cobra.ExactArgs(1),
	RunE: runDeps,
}

func init() {
	depsFilter.register(depsCmd)
	depsCmd.Flags().Int64("first", -1, "first event of the range (default: first event)")
	depsCmd.Flags().Int64("last", -1, "last event of the range (default: last event)")
	rootCmd.AddCommand(depsCmd)
}

func runDeps(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.Close()

	p, active, err := depsFilter.parameters(cmd, s.cfg)
	if err != nil {
		return err
	}
	log, _, err := s.visible(p, active)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	start, err := log.FirstEvent(ctx)
	if err != nil {
		return err
	}
	end, err := log.LastEvent(ctx)
	if err != nil {
		return err
	}
	if n, _ := cmd.Flags().GetInt64("first"); n >= 0 {
		if start, err = eventArg(cmd, log, n); err != nil {
			return err
		}
	}
	if n, _ := cmd.Flags().GetInt64("last"); n >= 0 {
		if end, err = eventArg(cmd, log, n); err != nil {
			return err
		}
	}
	if start == nil || end == nil {
		s.printer.Warn("no events")
		return nil
	}

	set, err := log.IntersectingMessageDependencies(ctx, start, end)
	if err != nil {
		return err
	}
	s.printer.Dependencies(set)
	return nil
}
