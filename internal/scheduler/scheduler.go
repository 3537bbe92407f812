// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scheduler runs dependency-linked units of work in bounded
// concurrent batches.
//
// Tasks are topologically sorted by their declared dependencies (cyclic
// edges are dropped with a warning), stable-sorted by ascending priority,
// and dispatched in batches of at most MaxConcurrency. A task starts only
// after every dependency has succeeded; it is deferred while dependencies
// are pending and skipped for good once any of them fails or is skipped.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/design-engine/internal/logging"
)

const defaultMaxConcurrency = 4

// Status is the outcome of one task.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Task is one unit of work.
type Task[T any] struct {
	ID           string
	Dependencies []string
	// Priority orders tasks after dependency sorting; lower runs first.
	Priority int
	Run      func(ctx context.Context) (T, error)
}

// TaskResult records how one task ended. Skipped tasks never started, so
// their timestamps are zero.
type TaskResult[T any] struct {
	ID         string
	Status     Status
	Value      T
	Err        error
	SkipReason string
	StartedAt  time.Time
	EndedAt    time.Time
}

// Duration is the wall time the task ran.
func (r TaskResult[T]) Duration() time.Duration {
	if r.StartedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}

// Stats aggregates a run. Durations cover started tasks only.
type Stats struct {
	Total       int
	Succeeded   int
	Failed      int
	Skipped     int
	MinDuration time.Duration
	AvgDuration time.Duration
	MaxDuration time.Duration
	Elapsed     time.Duration
}

// Result holds per-task results in input order plus aggregate stats.
type Result[T any] struct {
	Results []TaskResult[T]
	Stats   Stats
}

// Get returns the result for id.
func (r Result[T]) Get(id string) (TaskResult[T], bool) {
	for _, tr := range r.Results {
		if tr.ID == id {
			return tr, true
		}
	}
	return TaskResult[T]{}, false
}

// HasFailures reports whether any task failed.
func (r Result[T]) HasFailures() bool {
	return r.Stats.Failed > 0
}

// Options configure Execute.
type Options[T any] struct {
	// MaxConcurrency caps tasks per batch. Values <= 0 use the default (4).
	MaxConcurrency int

	// BatchDelay waits between consecutive batches.
	BatchDelay time.Duration

	// StopOnFirstError halts scheduling of further batches once a task
	// fails. Unscheduled tasks are reported skipped.
	StopOnFirstError bool

	// Callbacks run one at a time, so they need no locking of their own.
	OnTaskStart    func(id string)
	OnTaskComplete func(TaskResult[T])
	OnProgress     func(done, total int)

	Logger *slog.Logger
}

func (o Options[T]) maxConcurrency() int {
	if o.MaxConcurrency <= 0 {
		return defaultMaxConcurrency
	}
	return o.MaxConcurrency
}

// Ordering describes the order Execute would dispatch tasks in.
type Ordering struct {
	Order       []string
	BrokenEdges []Edge
	Missing     map[string][]string
}

// Plan sorts tasks without running them.
func Plan[T any](tasks []Task[T], logger *slog.Logger) (Ordering, error) {
	g, order, err := plan(tasks, logging.OrDiscard(logger))
	if err != nil {
		return Ordering{}, err
	}
	p := Ordering{BrokenEdges: g.brokenEdges(), Missing: map[string][]string{}}
	for _, i := range order {
		p.Order = append(p.Order, g.ids[i])
		if len(g.missing[i]) > 0 {
			p.Missing[g.ids[i]] = g.missing[i]
		}
	}
	return p, nil
}

func plan[T any](tasks []Task[T], logger *slog.Logger) (*graph, []int, error) {
	ids := make([]string, len(tasks))
	priorities := make([]int, len(tasks))
	deps := make([][]string, len(tasks))
	for i, t := range tasks {
		ids[i] = t.ID
		priorities[i] = t.Priority
		deps[i] = t.Dependencies
	}
	g, err := newGraph(ids, priorities, deps)
	if err != nil {
		return nil, nil, err
	}
	for _, e := range g.brokenEdges() {
		logger.Warn("ignoring self dependency", "task", e.From)
	}
	order := g.topoOrder(func(e Edge, path []string) {
		logger.Warn("dependency cycle detected; ignoring edge", "edge", e.String(), "cycle", path)
	})
	return g, g.prioritize(order), nil
}

// runner holds the mutable state of one Execute call.
type runner[T any] struct {
	opts    Options[T]
	logger  *slog.Logger
	tasks   []Task[T]
	g       *graph
	results []TaskResult[T]
	settled []bool

	cbMu sync.Mutex
	done int
}

// Execute runs tasks and returns their results. Task failures are captured
// in the results; the error return is reserved for malformed input (empty
// or duplicate ids).
func Execute[T any](ctx context.Context, tasks []Task[T], opts Options[T]) (Result[T], error) {
	logger := logging.OrDiscard(opts.Logger)
	g, order, err := plan(tasks, logger)
	if err != nil {
		return Result[T]{}, fmt.Errorf("planning tasks: %w", err)
	}

	r := &runner[T]{
		opts:    opts,
		logger:  logger,
		tasks:   tasks,
		g:       g,
		results: make([]TaskResult[T], len(tasks)),
		settled: make([]bool, len(tasks)),
	}
	for i, t := range tasks {
		r.results[i].ID = t.ID
	}

	start := time.Now()
	r.run(ctx, order)
	return Result[T]{Results: r.results, Stats: computeStats(r.results, time.Since(start))}, nil
}

func (r *runner[T]) run(ctx context.Context, pending []int) {
	maxBatch := r.opts.maxConcurrency()
	halted := ""

	for batchNo := 1; len(pending) > 0; batchNo++ {
		if halted == "" && ctx.Err() != nil {
			halted = fmt.Sprintf("not started: %v", ctx.Err())
		}
		if halted != "" {
			for _, i := range pending {
				r.skip(i, halted)
			}
			return
		}

		var batch, deferred []int
		for _, i := range pending {
			if reason, blocked := r.blocked(i); blocked {
				r.skip(i, reason)
				continue
			}
			if r.waiting(i) || len(batch) >= maxBatch {
				deferred = append(deferred, i)
				continue
			}
			batch = append(batch, i)
		}

		if len(batch) == 0 {
			// Every remaining task waits on another remaining task; the
			// graph is acyclic after planning, so this only guards bugs.
			for _, i := range deferred {
				r.skip(i, "dependencies never became runnable")
			}
			return
		}

		r.logger.Debug("dispatching batch", "batch", batchNo, "size", len(batch), "deferred", len(deferred))
		if r.runBatch(ctx, batch) && r.opts.StopOnFirstError {
			halted = "halted after a task failed"
		}
		pending = deferred

		if len(pending) > 0 && r.opts.BatchDelay > 0 && halted == "" {
			t := time.NewTimer(r.opts.BatchDelay)
			select {
			case <-ctx.Done():
			case <-t.C:
			}
			t.Stop()
		}
	}
}

// blocked reports whether a dependency of i can never succeed.
func (r *runner[T]) blocked(i int) (string, bool) {
	if len(r.g.missing[i]) > 0 {
		return fmt.Sprintf("unknown dependency %q", r.g.missing[i][0]), true
	}
	for _, d := range r.g.liveDeps(i) {
		if r.settled[d] && r.results[d].Status != StatusSuccess {
			return fmt.Sprintf("dependency %q %s", r.g.ids[d], r.results[d].Status), true
		}
	}
	return "", false
}

// waiting reports whether a dependency of i has not settled yet.
func (r *runner[T]) waiting(i int) bool {
	for _, d := range r.g.liveDeps(i) {
		if !r.settled[d] {
			return true
		}
	}
	return false
}

// runBatch runs the batch concurrently and reports whether any task failed.
func (r *runner[T]) runBatch(ctx context.Context, batch []int) bool {
	var eg errgroup.Group
	eg.SetLimit(len(batch))
	for _, i := range batch {
		eg.Go(func() error {
			r.runTask(ctx, i)
			return nil
		})
	}
	_ = eg.Wait()

	failed := false
	for _, i := range batch {
		r.settled[i] = true
		if r.results[i].Status == StatusFailed {
			failed = true
		}
	}
	return failed
}

func (r *runner[T]) runTask(ctx context.Context, i int) {
	task := r.tasks[i]
	r.callback(func() {
		if r.opts.OnTaskStart != nil {
			r.opts.OnTaskStart(task.ID)
		}
	})

	res := TaskResult[T]{ID: task.ID, StartedAt: time.Now()}
	val, err := safeRun(ctx, task)
	res.EndedAt = time.Now()
	res.Value = val
	if err != nil {
		res.Status = StatusFailed
		res.Err = err
		r.logger.Debug("task failed", "task", task.ID, "error", err)
	} else {
		res.Status = StatusSuccess
	}
	// Each goroutine writes only its own slot.
	r.results[i] = res
	r.complete(res)
}

func safeRun[T any](ctx context.Context, task Task[T]) (val T, err error) {
	if task.Run == nil {
		return val, fmt.Errorf("task %q has no work", task.ID)
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task %q panicked: %v", task.ID, p)
		}
	}()
	return task.Run(ctx)
}

func (r *runner[T]) skip(i int, reason string) {
	res := TaskResult[T]{ID: r.g.ids[i], Status: StatusSkipped, SkipReason: reason}
	r.results[i] = res
	r.settled[i] = true
	r.logger.Debug("task skipped", "task", res.ID, "reason", reason)
	r.complete(res)
}

func (r *runner[T]) complete(res TaskResult[T]) {
	r.callback(func() {
		r.done++
		if r.opts.OnTaskComplete != nil {
			r.opts.OnTaskComplete(res)
		}
		if r.opts.OnProgress != nil {
			r.opts.OnProgress(r.done, len(r.tasks))
		}
	})
}

func (r *runner[T]) callback(fn func()) {
	r.cbMu.Lock()
	defer r.cbMu.Unlock()
	fn()
}

func computeStats[T any](results []TaskResult[T], elapsed time.Duration) Stats {
	s := Stats{Total: len(results), Elapsed: elapsed}
	var sum time.Duration
	started := 0
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			s.Succeeded++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
		if r.StartedAt.IsZero() {
			continue
		}
		d := r.Duration()
		if started == 0 || d < s.MinDuration {
			s.MinDuration = d
		}
		if d > s.MaxDuration {
			s.MaxDuration = d
		}
		sum += d
		started++
	}
	if started > 0 {
		s.AvgDuration = sum / time.Duration(started)
	}
	return s
}
