package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/seqchart/internal/config"
	"github.com/papapumpkin/seqchart/internal/depgraph"
	"github.com/papapumpkin/seqchart/internal/eventlog"
)

var traceCmd = &cobra.Command{
	Use:   "trace <file>",
	Short: "Collect the causes and consequences of an event",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrace,
}

func init() {
	traceCmd.Flags().Int64("event", -1, "event to trace (required)")
	traceCmd.Flags().Bool("causes", true, "collect causes")
	traceCmd.Flags().Bool("consequences", true, "collect consequences")
	_ = traceCmd.MarkFlagRequired("event")
	rootCmd.AddCommand(traceCmd)
}

func collectorLimits(l config.LimitsConfig, dir depgraph.Direction) depgraph.Limits {
	if dir == depgraph.Causes {
		return depgraph.Limits{
			MaxDepth:      l.MaxCauseDepth,
			MaxCount:      l.MaxNumberOfCauses,
			MaxDuration:   l.MaxCollectionTime,
			IncludeReuses: l.CollectMessageReuses,
		}
	}
	return depgraph.Limits{
		MaxDepth:      l.MaxConsequenceDepth,
		MaxCount:      l.MaxNumberOfConsequences,
		MaxDuration:   l.MaxCollectionTime,
		IncludeReuses: l.CollectMessageReuses,
	}
}

func runTrace(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	n, _ := cmd.Flags().GetInt64("event")
	origin, err := eventArg(cmd, s.log, n)
	if err != nil {
		return err
	}

	var dirs []depgraph.Direction
	if ok, _ := cmd.Flags().GetBool("causes"); ok {
		dirs = append(dirs, depgraph.Causes)
	}
	if ok, _ := cmd.Flags().GetBool("consequences"); ok {
		dirs = append(dirs, depgraph.Consequences)
	}

	all := eventlog.NewDependencyCollector()
	for _, dir := range dirs {
		col, err := depgraph.NewCollector(s.log, collectorLimits(s.cfg.Limits, dir)).Collect(ctx, origin, dir)
		if err != nil {
			return fmt.Errorf("collecting %s of #%d: %w", dir, n, err)
		}
		events := make([]*eventlog.Event, 0, len(col.Nodes))
		for _, node := range col.Nodes {
			e, err := s.log.EventForEventNumber(ctx, node.EventNumber)
			if err != nil {
				return err
			}
			if e != nil {
				events = append(events, e)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s of #%d:\n", dir, n)
		s.printer.Events(events, s.log.ModuleTree())
		s.printer.Dependencies(eventlog.DependencySet{Dependencies: col.Dependencies})
		if col.Partial {
			s.printer.Warn(fmt.Sprintf("%s limit reached while collecting %s", col.Limit, dir))
		}
		for _, d := range col.Dependencies {
			all.Add(d)
		}
	}
	s.printer.Chains(depgraph.Chains(all.Sorted()))
	return nil
}
