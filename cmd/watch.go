package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/seqchart/internal/filter"
	"github.com/papapumpkin/seqchart/internal/input"
)

var watchFilter filterFlags

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Follow an event log while the simulation writes it",
	Long: "Watch keeps the log indexed as it grows and prints a line for every append\n" +
		"or rewrite, until interrupted. Changes are picked up from file system\n" +
		"notifications and from a periodic poll (poll_interval).",
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchFilter.register(watchCmd)
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.Close()

	p, active, err := watchFilter.parameters(cmd, s.cfg)
	if err != nil {
		return err
	}

	in := input.New(s.log, input.Options{
		PollInterval: s.cfg.PollInterval,
		Watch:        true,
		Filter:       filter.Options{Logger: s.logger},
		Logger:       s.logger,
	})
	// Subscribers run on the input loop, so reading the base log here is safe.
	cancelSub := in.Subscribe(func(c input.Change) {
		s.printer.Change(c, s.log.Len())
	})
	defer cancelSub()

	fmt.Fprintf(cmd.OutOrStdout(), "watching %s (%d events), press Ctrl-C to stop\n", s.log.Path(), s.log.Len())

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- in.Run(ctx) }()

	if active {
		if err := in.Filter(ctx, p); err != nil {
			cancel()
			<-done
			return err
		}
	}
	return <-done
}
