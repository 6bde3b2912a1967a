package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/papapumpkin/seqchart/internal/config"
	"github.com/papapumpkin/seqchart/internal/eventlog"
	"github.com/papapumpkin/seqchart/internal/filter"
	"github.com/papapumpkin/seqchart/internal/ui"
)

// session bundles what every command that reads a log needs.
type session struct {
	cfg     config.Config
	logger  *zap.Logger
	log     *eventlog.EventLog
	printer *ui.Printer
}

func openSession(cmd *cobra.Command, path string) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	start := time.Now()
	l, err := eventlog.Open(cmd.Context(), path, eventlog.Options{
		MaxCachedEvents:  cfg.MaxCachedEvents,
		FingerprintBytes: cfg.HeadFingerprintBytes,
		Logger:           logger,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	logger.Debug("event log indexed",
		zap.String("path", path),
		zap.Int("events", l.Len()),
		zap.Duration("elapsed", time.Since(start)))
	return &session{
		cfg:     cfg,
		logger:  logger,
		log:     l,
		printer: ui.New(cmd.OutOrStdout(), cmd.ErrOrStderr()),
	}, nil
}

func (s *session) Close() {
	if err := s.log.Close(); err != nil {
		s.logger.Warn("closing event log", zap.Error(err))
	}
	_ = s.logger.Sync()
}

// visible returns the filtered view when p is active, the base log
// otherwise.
func (s *session) visible(p filter.Parameters, active bool) (eventlog.Log, *filter.FilteredEventLog, error) {
	if !active {
		return s.log, nil, nil
	}
	f, err := filter.New(s.log, p, filter.Options{Logger: s.logger})
	if err != nil {
		return nil, nil, err
	}
	return f, f, nil
}

// newLogger logs warnings and errors as JSON to stderr, or everything in
// development format when verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// filterFlags are the command line form of filter.Parameters.
type filterFlags struct {
	file         string
	from, to     int64
	exclude      []int64
	moduleIDs    []int64
	moduleNames  []string
	moduleTypes  []string
	moduleExpr   string
	messageIDs   []int64
	messageNames []string
	classes      []string
	messageExpr  string
	trace        int64
	causes       bool
	consequences bool
}

func (f *filterFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.file, "filter", "", "filter parameters file (TOML)")
	fs.Int64Var(&f.from, "from", -1, "first event number shown")
	fs.Int64Var(&f.to, "to", -1, "last event number shown")
	fs.Int64SliceVar(&f.exclude, "exclude", nil, "event numbers to hide")
	fs.Int64SliceVar(&f.moduleIDs, "module-id", nil, "show events of these module ids")
	fs.StringSliceVar(&f.moduleNames, "module-name", nil, "show events of modules whose full path matches a pattern")
	fs.StringSliceVar(&f.moduleTypes, "module-type", nil, "show events of modules whose NED type matches a pattern")
	fs.StringVar(&f.moduleExpr, "module-expr", "", "show events of modules matching a match expression")
	fs.Int64SliceVar(&f.messageIDs, "message-id", nil, "show events processing these message ids")
	fs.StringSliceVar(&f.messageNames, "message-name", nil, "show events processing messages whose name matches a pattern")
	fs.StringSliceVar(&f.classes, "message-class", nil, "show events processing messages whose class matches a pattern")
	fs.StringVar(&f.messageExpr, "message-expr", "", "show events processing messages matching a match expression")
	fs.Int64Var(&f.trace, "trace", -1, "show only the causes and consequences of this event")
	fs.BoolVar(&f.causes, "trace-causes", true, "include causes of the traced event")
	fs.BoolVar(&f.consequences, "trace-consequences", true, "include consequences of the traced event")
}

// parameters builds filter parameters from the defaults, the configured
// limits, the --filter file and finally the flags set on the command line.
// active reports whether anything asked for filtering.
func (f *filterFlags) parameters(cmd *cobra.Command, cfg config.Config) (p filter.Parameters, active bool, err error) {
	p = filter.DefaultParameters()
	applyLimits(&p, cfg.Limits)
	if f.file != "" {
		if err := filter.LoadParametersInto(f.file, &p); err != nil {
			return p, false, err
		}
		active = true
	}

	changed := cmd.Flags().Changed
	if changed("from") {
		p.FirstEventNumber = f.from
	}
	if changed("to") {
		p.LastEventNumber = f.to
	}
	if changed("exclude") {
		p.ExcludedEventNumbers = f.exclude
	}
	if changed("module-id") || changed("module-name") || changed("module-type") || changed("module-expr") {
		p.EnableModuleFilter = true
		p.ModuleIDs = f.moduleIDs
		p.ModuleNames = f.moduleNames
		p.ModuleNEDTypeNames = f.moduleTypes
		p.ModuleExpression = f.moduleExpr
	}
	if changed("message-id") || changed("message-name") || changed("message-class") || changed("message-expr") {
		p.EnableMessageFilter = true
		p.MessageIDs = f.messageIDs
		p.MessageNames = f.messageNames
		p.MessageClassNames = f.classes
		p.MessageExpression = f.messageExpr
	}
	if changed("trace") {
		p.TracedEventNumber = f.trace
	}
	if changed("trace-causes") {
		p.TraceCauses = f.causes
	}
	if changed("trace-consequences") {
		p.TraceConsequences = f.consequences
	}

	for _, name := range []string{"from", "to", "exclude", "module-id", "module-name", "module-type",
		"module-expr", "message-id", "message-name", "message-class", "message-expr", "trace"} {
		if changed(name) {
			active = true
		}
	}
	if err := p.Validate(); err != nil {
		return p, false, err
	}
	return p, active, nil
}

func applyLimits(p *filter.Parameters, l config.LimitsConfig) {
	p.MaxCauseDepth = l.MaxCauseDepth
	p.MaxConsequenceDepth = l.MaxConsequenceDepth
	p.MaxNumberOfCauses = l.MaxNumberOfCauses
	p.MaxNumberOfConsequences = l.MaxNumberOfConsequences
	p.MaxCauseCollectionTime = filter.Duration(l.MaxCollectionTime)
	p.MaxConsequenceCollectionTime = filter.Duration(l.MaxCollectionTime)
	p.CollectMessageReuses = l.CollectMessageReuses
}

// eventArg looks up event n in log.
func eventArg(cmd *cobra.Command, log eventlog.Log, n int64) (*eventlog.Event, error) {
	e, err := log.EventForEventNumber(cmd.Context(), n)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("event #%d: %w", n, eventlog.ErrEventNotInLog)
	}
	return e, nil
}
