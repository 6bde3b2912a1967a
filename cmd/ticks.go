package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/seqchart/internal/timeline"
)

var ticksFilter filterFlags

var ticksCmd = &cobra.Command{
	Use:   "ticks <file>",
	Short: "Compute the time axis ticks of a sequence chart viewport",
	Args:  cobra.ExactArgs(1),
	RunE:  runTicks,
}

func init() {
	ticksFilter.register(ticksCmd)
	ticksCmd.Flags().String("mode", "", "timeline mode: simulation_time, event_number, step or nonlinear (default from config)")
	ticksCmd.Flags().Int("width", 1000, "viewport width in pixels")
	ticksCmd.Flags().Float64("ppu", 0, "pixels per timeline unit (0 fits the first events)")
	ticksCmd.Flags().Int64("origin", -1, "event drawn at pixel 0 (default: first event)")
	ticksCmd.Flags().Int("spacing", 0, "minimum pixels between ticks (default from config)")
	rootCmd.AddCommand(ticksCmd)
}

func runTicks(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd, args[0])
	if err != nil {
		return err
	}
	defer s.Close()

	p, active, err := ticksFilter.parameters(cmd, s.cfg)
	if err != nil {
		return err
	}
	log, _, err := s.visible(p, active)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	modeName, _ := cmd.Flags().GetString("mode")
	if modeName == "" {
		modeName = s.cfg.Timeline.Mode
	}
	mode, err := timeline.ParseMode(modeName)
	if err != nil {
		return err
	}
	m, err := timeline.NewMapper(ctx, log, timeline.Options{
		Mode:                  mode,
		NonlinearMinimumDelta: s.cfg.Timeline.NonlinearMinimumDelta,
		Logger:                s.logger,
	})
	if err != nil {
		return err
	}
	if n, _ := cmd.Flags().GetInt64("origin"); n >= 0 {
		e, err := eventArg(cmd, log, n)
		if err != nil {
			return err
		}
		if err := m.RelocateOrigin(e); err != nil {
			return err
		}
	}

	width, _ := cmd.Flags().GetInt("width")
	if width <= 0 {
		return fmt.Errorf("--width must be positive, got %d", width)
	}
	ppu, _ := cmd.Flags().GetFloat64("ppu")
	if ppu <= 0 {
		if ppu, err = timeline.DefaultPixelsPerTimelineUnit(ctx, m, width); err != nil {
			return err
		}
	}
	spacing, _ := cmd.Flags().GetInt("spacing")
	if spacing <= 0 {
		spacing = s.cfg.Timeline.TickSpacing
	}

	axis := &timeline.Axis{
		Mapper:   m,
		Viewport: timeline.Viewport{PixelsPerTimelineUnit: ppu, Width: width},
	}
	set, err := axis.Ticks(ctx, spacing)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s, %.4g pixels per unit\n", m.Mode(), ppu)
	s.printer.Ticks(set)
	return nil
}
