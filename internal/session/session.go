// Package session drives one orchestration session: it selects a strategy,
// runs rounds of units through the batch runner, classifies each outcome,
// consults the decision engine, and degrades through the fallback
// coordinator until the session stops or completes.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/gotestctl/internal/classify"
	"github.com/fyrsmithlabs/gotestctl/internal/decision"
	"github.com/fyrsmithlabs/gotestctl/internal/fallback"
	"github.com/fyrsmithlabs/gotestctl/internal/process"
	"github.com/fyrsmithlabs/gotestctl/internal/runner"
	"github.com/fyrsmithlabs/gotestctl/internal/strategy"
	"github.com/fyrsmithlabs/gotestctl/internal/target"
)

const (
	reasonCompleted       = "all targets passed"
	reasonTolerated       = "failures tolerated"
	reasonExecutionFailed = "execution failure"
	reasonCancelled       = "cancelled"
)

// Config controls how units are executed.
type Config struct {
	Fallback fallback.Config

	// UnitTimeout bounds each `go test` invocation. Zero means no limit.
	UnitTimeout time.Duration

	// BatchConcurrency is the group size for parallel batches.
	BatchConcurrency int

	GoBinary  string
	ExtraArgs []string
	Dir       string
	Env       []string
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Fallback:         fallback.DefaultConfig(),
		UnitTimeout:      10 * time.Minute,
		BatchConcurrency: 4,
		GoBinary:         "go",
	}
}

// Metadata is the structural information about the targets, supplied by
// project discovery.
type Metadata struct {
	TotalPackages          int
	HasComplexDependencies bool
	TimeConstraint         time.Duration
	Resources              *strategy.ResourceConstraints
}

// Criteria maps the metadata onto selector input. A zero TimeConstraint means
// the run has no time budget.
func (m Metadata) Criteria() strategy.Criteria {
	seconds := math.MaxInt32
	if m.TimeConstraint > 0 {
		seconds = int(m.TimeConstraint / time.Second)
	}
	return strategy.Criteria{
		TotalPackages:          m.TotalPackages,
		HasComplexDependencies: m.HasComplexDependencies,
		TimeConstraintSeconds:  seconds,
		Resources:              m.Resources,
	}
}

// Session runs targets under a degrading strategy. A Session may run many
// times; each Run owns a fresh fallback coordinator.
type Session struct {
	exec   process.Executor
	cfg    Config
	logger *zap.Logger

	observer        fallback.Observer
	metrics         *Metrics
	fallbackMetrics *fallback.Metrics
	runnerMetrics   *runner.Metrics
	initial         strategy.Strategy
	now             func() time.Time
	newID           func() string
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithObserver sets the sink notified of granted fallbacks.
func WithObserver(o fallback.Observer) Option {
	return func(s *Session) {
		s.observer = o
	}
}

// WithMetrics sets the session metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) {
		s.metrics = m
	}
}

// WithFallbackMetrics sets the metrics handed to each coordinator.
func WithFallbackMetrics(m *fallback.Metrics) Option {
	return func(s *Session) {
		s.fallbackMetrics = m
	}
}

// WithRunnerMetrics sets the metrics handed to the batch runner.
func WithRunnerMetrics(m *runner.Metrics) Option {
	return func(s *Session) {
		s.runnerMetrics = m
	}
}

// WithInitialStrategy bypasses the selector.
func WithInitialStrategy(st strategy.Strategy) Option {
	return func(s *Session) {
		s.initial = st
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides session ID generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Session) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// New creates a Session that runs units through exec.
func New(exec process.Executor, cfg Config, opts ...Option) *Session {
	s := &Session{
		exec:   exec,
		cfg:    cfg,
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("session")
	return s
}

// unitFailure carries the outcome of a unit that ran but did not succeed,
// so the runner counts it as a failure without losing the outcome.
type unitFailure struct {
	outcome process.Outcome
	class   classify.Classification
}

func (e *unitFailure) Error() string {
	return e.class.String()
}

// unitRun is the merged runner result for one unit.
type unitRun struct {
	unit    Unit
	outcome process.Outcome
	err     error
}

// run holds the mutable state of one Run call.
type run struct {
	*Session

	id      string
	coord   *fallback.Coordinator
	targets []target.Target
	report  *Report
}

// Run executes targets until the session stops or completes.
//
// An executor failure stops the session and returns an error wrapping
// ErrExecution together with the partial report. Test failures are never
// errors; they are reflected in the report's state and exit code.
func (s *Session) Run(ctx context.Context, targets []target.Target, meta Metadata) (*Report, error) {
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}
	if err := s.cfg.Fallback.Validate(); err != nil {
		return nil, err
	}

	id := s.newID()
	ctx, span := otel.Tracer(InstrumentationName).Start(ctx, "session.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", id),
		attribute.Int("session.targets", len(targets)),
	)

	initial := s.initial
	if initial == nil {
		initial = strategy.SelectInitial(meta.Criteria())
	}

	coord := fallback.NewCoordinator(s.cfg.Fallback,
		fallback.WithSessionID(id),
		fallback.WithObserver(s.observer),
		fallback.WithLogger(s.logger),
		fallback.WithMetrics(s.fallbackMetrics),
		fallback.WithClock(s.now))
	coord.Initialize(initial)
	defer coord.Reset()

	r := &run{
		Session: s,
		id:      id,
		coord:   coord,
		targets: targets,
		report: &Report{
			SessionID: id,
			Fallbacks: []fallback.Trigger{},
			Errors:    []decision.ErrorRecord{},
			StartedAt: s.now(),
		},
	}

	s.logger.Info("session started",
		zap.String("session_id", id),
		zap.Int("targets", len(targets)),
		zap.Stringer("strategy", initial))

	err := r.loop(ctx, initial)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(
		attribute.String("session.status", string(r.report.Status)),
		attribute.Int("session.exit_code", r.report.ExitCode),
	)
	return r.report, err
}

func (r *run) transition(st State) {
	r.report.Trail = append(r.report.Trail, st.String())
	r.logger.Debug("session state changed",
		zap.String("session_id", r.id),
		zap.String("state", st.String()))
}

func (r *run) finish(ctx context.Context, st State) {
	r.transition(st)
	r.report.State = st
	r.report.Status = st.Status()
	switch v := st.(type) {
	case Stopped:
		r.report.ExitCode = v.ExitCode
		r.report.Reason = v.Reason
	case Completed:
		r.report.ExitCode = classify.ExitSuccess
		r.report.Reason = reasonCompleted
	}
	r.report.Fallbacks = r.coord.History()
	r.report.Duration = r.now().Sub(r.report.StartedAt)
	r.metrics.recordSession(ctx, r.report.Status, r.report.Duration)

	r.logger.Info("session finished",
		zap.String("session_id", r.id),
		zap.String("status", string(r.report.Status)),
		zap.Int("exit_code", r.report.ExitCode),
		zap.String("reason", r.report.Reason),
		zap.Int("rounds", len(r.report.Rounds)),
		zap.Int("fallbacks", len(r.report.Fallbacks)),
		zap.Duration("duration", r.report.Duration))
}

func (r *run) loop(ctx context.Context, current strategy.Strategy) error {
	for {
		r.transition(Running{Strategy: current})

		runs, roundDuration, err := r.executeRound(ctx, current)
		if err != nil {
			if ctx.Err() != nil {
				r.finish(ctx, Stopped{ExitCode: classify.ExitTestFailure, Reason: reasonCancelled})
				return fmt.Errorf("session %s: %w", r.id, err)
			}
			r.finish(ctx, Stopped{ExitCode: classify.ExitTestFailure, Reason: reasonExecutionFailed})
			return fmt.Errorf("%w: %w", ErrExecution, err)
		}

		next, done := r.evaluate(ctx, current, runs, roundDuration)
		if done {
			return nil
		}
		current = next
	}
}

// executeRound plans the units for st and runs them with the runner mode the
// strategy calls for. The returned slice is in unit order and only contains
// units that ran.
func (r *run) executeRound(ctx context.Context, st strategy.Strategy) ([]unitRun, time.Duration, error) {
	units := Plan(st, r.targets)
	r.metrics.recordRound(ctx, string(st.Kind()))

	ctx, span := otel.Tracer(InstrumentationName).Start(ctx, "session.round")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", r.id),
		attribute.String("strategy", st.String()),
		attribute.Int("units", len(units)),
	)

	r.logger.Info("round started",
		zap.String("session_id", r.id),
		zap.Int("round", len(r.report.Rounds)+1),
		zap.Stringer("strategy", st),
		zap.Int("units", len(units)))

	ropts := []runner.Option{runner.WithLogger(r.logger), runner.WithMetrics(r.runnerMetrics)}
	fn := r.unitFunc()

	start := r.now()
	var (
		out runner.Outcome[Unit, process.Outcome]
		err error
	)
	switch v := st.(type) {
	case strategy.Batch:
		if v.Parallel {
			out, err = runner.ExecuteParallel(ctx, units, fn, r.cfg.BatchConcurrency, false, ropts...)
		} else {
			out, err = runner.ExecuteSequence(ctx, units, fn, false, ropts...)
		}
	case strategy.DirectoryByDirectory:
		out, err = runner.ExecuteParallel(ctx, units, fn, v.MaxConcurrency, false, ropts...)
	case strategy.FileByFile:
		out, err = runner.ExecuteSequence(ctx, units, fn, v.StopOnFirstError, ropts...)
	default:
		out, err = runner.ExecuteSequence(ctx, units, fn, false, ropts...)
	}
	elapsed := r.now().Sub(start)
	if err != nil {
		return nil, elapsed, err
	}

	runs := mergeOutcome(out)
	for _, ur := range runs {
		if ur.err != nil {
			return nil, elapsed, fmt.Errorf("unit %d (%v): %w", ur.unit.Index, ur.unit.Names(), ur.err)
		}
	}
	return runs, elapsed, nil
}

// errorHistory returns the failure log with its capacity clipped to its length.
func (r *run) errorHistory() []decision.ErrorRecord {
	return slices.Clip(r.report.Errors)
}

func (r *run) unitFunc() runner.Func[Unit, process.Outcome] {
	return func(ctx context.Context, u Unit) (process.Outcome, error) {
		args := u.Args(r.cfg.GoBinary, r.cfg.ExtraArgs)
		out, err := r.exec.Run(ctx, args, process.Opts{
			Dir:     r.cfg.Dir,
			Env:     r.cfg.Env,
			Timeout: r.cfg.UnitTimeout,
		})
		if err != nil {
			return out, err
		}
		if c := classify.FromOutcome(out); classify.IsFailure(c) {
			return out, &unitFailure{outcome: out, class: c}
		}
		return out, nil
	}
}

func mergeOutcome(out runner.Outcome[Unit, process.Outcome]) []unitRun {
	runs := make([]unitRun, 0, out.Executed())
	si, fi := 0, 0
	for si < len(out.Successes) || fi < len(out.Failures) {
		if fi >= len(out.Failures) || (si < len(out.Successes) && out.Successes[si].Index < out.Failures[fi].Index) {
			s := out.Successes[si]
			runs = append(runs, unitRun{unit: s.Item, outcome: s.Value})
			si++
			continue
		}
		f := out.Failures[fi]
		var uf *unitFailure
		if errors.As(f.Err, &uf) {
			runs = append(runs, unitRun{unit: f.Item, outcome: uf.outcome})
		} else {
			runs = append(runs, unitRun{unit: f.Item, err: f.Err})
		}
		fi++
	}
	return runs
}

// evaluate visits the round's outcomes in unit order and applies the decision
// engine to each. It returns the strategy for the next round, or done when the
// session reached a terminal state.
func (r *run) evaluate(ctx context.Context, current strategy.Strategy, runs []unitRun, roundDuration time.Duration) (strategy.Strategy, bool) {
	round := RoundReport{
		Number:   len(r.report.Rounds) + 1,
		Strategy: current,
		Name:     current.String(),
		Duration: roundDuration,
	}
	closeRound := func() {
		r.report.Rounds = append(r.report.Rounds, round)
	}

	ec := decision.ErrorContext{
		Strategy:     current,
		TotalTargets: len(r.targets),
		Duration:     roundDuration,
		Timeout:      r.cfg.UnitTimeout,
	}
	failed := false

	for _, ur := range runs {
		c := classify.FromOutcome(ur.outcome)
		covered := len(ur.unit.Targets)
		ec.TargetsExecuted += covered
		r.metrics.recordUnit(ctx, string(c.Kind()), ur.outcome.Duration)

		if classify.IsFailure(c) {
			failed = true
			ec.TargetsFailed += covered
			r.report.Errors = append(r.report.Errors,
				decision.NewErrorRecord(r.now(), ur.unit.Targets, c, c.String()))
			ec.ErrorHistory = r.errorHistory()
		}

		d := decision.Decide(c, ec, r.cfg.Fallback)
		r.metrics.recordDecision(ctx, d.Kind())
		round.Units = append(round.Units, UnitReport{
			Index:          ur.unit.Index,
			Targets:        ur.unit.Names(),
			Args:           ur.unit.Args(r.cfg.GoBinary, r.cfg.ExtraArgs),
			ExitCode:       ur.outcome.ExitCode,
			Classification: c.Kind(),
			Decision:       d.Kind(),
			Duration:       ur.outcome.Duration,
		})

		if classify.IsFailure(c) {
			r.logger.Debug("unit failed",
				zap.String("session_id", r.id),
				zap.Int("unit", ur.unit.Index),
				zap.String("classification", c.String()),
				zap.String("decision", d.String()))
		}

		switch v := d.(type) {
		case decision.Continue:
			continue

		case decision.Stop:
			closeRound()
			r.finish(ctx, Stopped{ExitCode: v.ExitCode, Reason: v.Reason})
			return nil, true

		case decision.Fallback:
			if !r.cfg.Fallback.Enabled {
				r.logger.Debug("fallback skipped",
					zap.String("session_id", r.id),
					zap.String("reason", fallback.ReasonDisabled),
					zap.Stringer("trigger", v.Trigger))
				continue
			}
			closeRound()
			r.transition(Degrading{Trigger: v.Trigger})
			res := r.coord.ExecuteFallback(ctx, v.Trigger, v.NewStrategy)
			if !res.Executed {
				r.finish(ctx, Stopped{
					ExitCode: ur.outcome.ExitCode,
					Reason:   fmt.Sprintf("%s; fallback refused: %s", v.Trigger, res.Reason),
				})
				return nil, true
			}
			return res.NewStrategy, false
		}
	}

	closeRound()
	if failed {
		r.finish(ctx, Stopped{ExitCode: classify.ExitTestFailure, Reason: reasonTolerated})
	} else {
		r.finish(ctx, Completed{})
	}
	return nil, true
}
