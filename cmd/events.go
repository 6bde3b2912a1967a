package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/seqchart/internal/eventlog"
	"github.com/papapumpkin/seqchart/internal/filter"
)

var eventsFilter filterFlags

var eventsCmd = &cobra.Command{
	Use:   "events <file>",
	Short: "List the events of a log, optionally filtered",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvents,
}

func init() {
	eventsFilter.register(eventsCmd)
	eventsCmd.Flags().Int("limit", 100, "maximum number of events printed (0 for all)")
	eventsCmd.Flags().Int64("explain", -1, "explain why this event is shown or hidden")
	rootCmd.AddCommand(eventsCmd)
}

func runEvents(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.Close()

	p, active, err := eventsFilter.parameters(cmd, s.cfg)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if cmd.Flags().Changed("explain") {
		n, _ := cmd.Flags().GetInt64("explain")
		e, err := eventArg(cmd, s.log, n)
		if err != nil {
			return err
		}
		f, err := filter.New(s.log, p, filter.Options{Logger: s.logger})
		if err != nil {
			return err
		}
		r, err := f.Explain(ctx, e)
		if err != nil {
			return err
		}
		s.printer.Explanation(e, r)
		return nil
	}

	log, filtered, err := s.visible(p, active)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")
	var events []*eventlog.Event
	e, err := log.FirstEvent(ctx)
	for ; e != nil && err == nil; e, err = log.NeighbourEvent(ctx, e, 1) {
		if limit > 0 && len(events) == limit {
			s.printer.Events(events, s.log.ModuleTree())
			total := s.log.Len()
			if filtered != nil {
				total = filtered.ApproximateNumberOfEvents()
			}
			s.printer.Warn(fmt.Sprintf("output limited to %d of about %d events, use --limit to change", limit, total))
			return nil
		}
		events = append(events, e)
	}
	if err != nil {
		return err
	}
	s.printer.Events(events, s.log.ModuleTree())
	return nil
}
