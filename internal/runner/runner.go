// Package runner executes items either in barrier-synchronised groups or one
// at a time, collecting every success and failure.
//
// Groups are not a refilling worker pool: group i+1 starts only after every
// member of group i has returned, so a slow item delays the next group.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// InstrumentationName is the name used for OTEL instrumentation.
const InstrumentationName = "github.com/fyrsmithlabs/gotestctl/internal/runner"

const (
	modeParallel = "parallel"
	modeSequence = "sequence"
)

// Func executes one item. Returning an error marks the item as failed.
type Func[T, R any] func(ctx context.Context, item T) (R, error)

// Success is an item that completed without error.
type Success[T, R any] struct {
	Index int
	Item  T
	Value R
}

// Failure is an item whose function returned an error.
type Failure[T any] struct {
	Index int
	Item  T
	Err   error
}

// Outcome aggregates the results of a run, each slice in item order.
type Outcome[T, R any] struct {
	Successes []Success[T, R]
	Failures  []Failure[T]
	// Groups holds the size of every group that ran, in order.
	Groups []int
}

// Executed returns the number of items that ran.
func (o Outcome[T, R]) Executed() int {
	return len(o.Successes) + len(o.Failures)
}

type options struct {
	logger  *zap.Logger
	metrics *Metrics
}

// Option configures a run.
type Option func(*options)

// WithLogger sets the logger for a run.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.Named("runner")
		}
	}
}

// WithMetrics records the run in m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type result[R any] struct {
	value R
	err   error
}

// ExecuteParallel runs items in consecutive groups of maxConcurrency. All
// members of a group start together and the group is joined before the next
// one starts. A failing item never cancels its siblings.
//
// Without failFast every group runs and all failures are collected. With
// failFast no group is started after one containing a failure, and the
// lowest-index failure of that group is returned as an *AbortError along with
// the partial outcome. When ctx is cancelled no further group is started and
// ctx.Err() is returned.
func ExecuteParallel[T, R any](ctx context.Context, items []T, fn Func[T, R], maxConcurrency int, failFast bool, opts ...Option) (Outcome[T, R], error) {
	o := buildOptions(opts)
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	var out Outcome[T, R]
	for start := 0; start < len(items); start += maxConcurrency {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		end := min(start+maxConcurrency, len(items))
		group := items[start:end]
		results := make([]result[R], len(group))

		var wg sync.WaitGroup
		for i, item := range group {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = runItem(ctx, start+i, item, fn, o, modeParallel)
			}()
		}
		wg.Wait()

		out.Groups = append(out.Groups, len(group))
		o.metrics.recordGroup(modeParallel)

		var abort *AbortError
		for i, r := range results {
			idx := start + i
			if r.err != nil {
				out.Failures = append(out.Failures, Failure[T]{Index: idx, Item: group[i], Err: r.err})
				if abort == nil {
					abort = &AbortError{Index: idx, Err: r.err}
				}
				continue
			}
			out.Successes = append(out.Successes, Success[T, R]{Index: idx, Item: group[i], Value: r.value})
		}

		o.logger.Debug("group completed",
			zap.Int("group", len(out.Groups)),
			zap.Int("size", len(group)),
			zap.Int("failures", len(out.Failures)))

		if failFast && abort != nil {
			o.logger.Debug("aborting remaining groups",
				zap.Int("index", abort.Index),
				zap.Int("skipped", len(items)-end),
				zap.Error(abort.Err))
			return out, abort
		}
	}
	return out, nil
}

// ExecuteSequence runs items one at a time. With stopOnFailure it returns
// the partial outcome after the first failure; the failure is in the outcome
// and the error is nil. When ctx is cancelled no further item is started and
// ctx.Err() is returned.
func ExecuteSequence[T, R any](ctx context.Context, items []T, fn Func[T, R], stopOnFailure bool, opts ...Option) (Outcome[T, R], error) {
	o := buildOptions(opts)

	var out Outcome[T, R]
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		r := runItem(ctx, i, item, fn, o, modeSequence)
		out.Groups = append(out.Groups, 1)
		o.metrics.recordGroup(modeSequence)

		if r.err != nil {
			out.Failures = append(out.Failures, Failure[T]{Index: i, Item: item, Err: r.err})
			if stopOnFailure {
				o.logger.Debug("stopping sequence at first failure",
					zap.Int("index", i),
					zap.Int("skipped", len(items)-i-1),
					zap.Error(r.err))
				return out, nil
			}
			continue
		}
		out.Successes = append(out.Successes, Success[T, R]{Index: i, Item: item, Value: r.value})
	}
	return out, nil
}

func runItem[T, R any](ctx context.Context, index int, item T, fn Func[T, R], o options, mode string) (r result[R]) {
	ctx, span := otel.Tracer(InstrumentationName).Start(ctx, "runner.execute_item")
	span.SetAttributes(
		attribute.Int("item.index", index),
		attribute.String("runner.mode", mode),
	)
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			r = result[R]{err: fmt.Errorf("%w: %v", ErrPanic, p)}
		}
		if r.err != nil {
			span.RecordError(r.err)
			span.SetStatus(codes.Error, r.err.Error())
		}
		o.metrics.recordItem(mode, r.err != nil, time.Since(start).Seconds())
		span.End()
	}()

	value, err := fn(ctx, item)
	return result[R]{value: value, err: err}
}
