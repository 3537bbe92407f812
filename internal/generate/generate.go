// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package generate renders module prompts, calls the content-generation
// provider through the retry executor, and verifies that the module
// document landed on disk. It never touches workflow state.
package generate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/pdiddy/design-engine/internal/apperr"
	"github.com/pdiddy/design-engine/internal/logging"
	"github.com/pdiddy/design-engine/internal/prompt"
	"github.com/pdiddy/design-engine/internal/provider"
	"github.com/pdiddy/design-engine/internal/registry"
	"github.com/pdiddy/design-engine/internal/retry"
	"github.com/pdiddy/design-engine/internal/scheduler"
	"github.com/pdiddy/design-engine/internal/workspace"
	"github.com/pdiddy/design-engine/pkg/types"
)

// Context is the input for one generation call. It is built fresh per
// call and never persisted.
type Context struct {
	SpecName     string
	Requirements string
	// Related holds other modules' current text, exposed to templates as
	// modules.<kind>.
	Related map[types.ModuleKind]string
}

// Config wires a Generator.
type Config struct {
	Registry *registry.Registry
	Provider provider.Provider
	Layout   workspace.Layout
	Retry    retry.Options
	Logger   *slog.Logger

	// Progress receives one line per module event. Nil discards.
	Progress io.Writer
}

// Generator produces module documents.
type Generator struct {
	registry *registry.Registry
	provider provider.Provider
	layout   workspace.Layout
	retry    retry.Options
	logger   *slog.Logger
	progress io.Writer
}

// New returns a Generator wired to cfg's registry, provider, and layout.
func New(cfg Config) *Generator {
	progress := cfg.Progress
	if progress == nil {
		progress = io.Discard
	}
	return &Generator{
		registry: cfg.Registry,
		provider: cfg.Provider,
		layout:   cfg.Layout,
		retry:    cfg.Retry,
		logger:   logging.OrDiscard(cfg.Logger),
		progress: progress,
	}
}

// ModuleResult describes one generated module.
type ModuleResult struct {
	Kind     types.ModuleKind
	Path     string
	Attempts int
	Duration time.Duration
}

// Prompt renders the prompt for kind without calling the provider.
func (g *Generator) Prompt(kind types.ModuleKind, gc Context) (string, string, error) {
	desc, err := g.registry.Get(kind)
	if err != nil {
		return "", "", apperr.Invalid("rendering prompt", err)
	}
	fileName, err := g.registry.FileName(kind)
	if err != nil {
		return "", "", err
	}
	path, err := g.layout.ModulePath(gc.SpecName, fileName)
	if err != nil {
		return "", "", err
	}

	values := prompt.Values{
		"specName":     gc.SpecName,
		"requirements": gc.Requirements,
		"moduleType":   string(kind),
		"moduleName":   desc.Name,
		"outputPath":   path,
	}
	for k, text := range gc.Related {
		values["modules."+string(k)] = text
	}
	rendered, err := prompt.Render(desc.PromptTemplate, values)
	if err != nil {
		return "", "", apperr.Validation("rendering prompt", "promptTemplate", fmt.Sprintf("%s: %v", kind, err))
	}
	return rendered, path, nil
}

// GenerateModule produces one module document. A provider response without
// success is retried; a successful call whose output file is missing or
// untouched fails immediately, since retrying would repeat a paid call.
func (g *Generator) GenerateModule(ctx context.Context, kind types.ModuleKind, gc Context) (ModuleResult, error) {
	start := time.Now()
	res := ModuleResult{Kind: kind}
	rendered, path, err := g.Prompt(kind, gc)
	if err != nil {
		return res, err
	}
	res.Path = path

	op := fmt.Sprintf("generating %s for %s", kind, gc.SpecName)
	opts := g.retry
	userOnRetry := opts.OnRetry
	opts.OnRetry = func(attempt int, delay time.Duration, err error) {
		g.logger.Warn("retrying module generation", "spec", gc.SpecName, "module", kind, "attempt", attempt, "delay", delay, "error", err)
		if userOnRetry != nil {
			userOnRetry(attempt, delay, err)
		}
	}

	before, err := statOutput(path)
	if err != nil {
		return res, apperr.Wrap(fmt.Errorf("inspecting existing output: %w", err), op)
	}

	req := provider.Request{Spec: gc.SpecName, Kind: kind, Prompt: rendered, OutputPath: path}
	_, err = retry.Do(ctx, op, opts, func(ctx context.Context) (provider.Response, error) {
		res.Attempts++
		resp, err := g.provider.Generate(ctx, req)
		if err != nil {
			return resp, err
		}
		if !resp.Success {
			msg := resp.Message
			if msg == "" {
				msg = "provider reported failure"
			}
			return resp, apperr.Generation(g.provider.Name(), msg, true, nil)
		}
		return resp, nil
	})
	res.Duration = time.Since(start)
	if err != nil {
		return res, err
	}

	after, err := statOutput(path)
	if err != nil {
		return res, apperr.Wrap(fmt.Errorf("verifying output: %w", err), op)
	}
	if after == nil || unchanged(before, after) {
		return res, apperr.OutputMissing(op, path)
	}
	return res, nil
}

// statOutput returns the file info of path, or nil when it does not exist.
func statOutput(path string) (os.FileInfo, error) {
	fi, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return fi, err
}

// unchanged reports whether after is the same file version as before. A
// module left over from an earlier generation does not count as output.
func unchanged(before, after os.FileInfo) bool {
	return before != nil &&
		os.SameFile(before, after) &&
		before.ModTime().Equal(after.ModTime()) &&
		before.Size() == after.Size()
}

// BatchOptions configure GenerateModules.
type BatchOptions struct {
	MaxConcurrency   int
	BatchDelay       time.Duration
	StopOnFirstError bool

	// TestingAfterOthers makes the testing module wait for every other
	// requested module and render with their fresh contents.
	TestingAfterOthers bool

	// OnModuleDone runs after each module settles, one at a time.
	OnModuleDone func(kind types.ModuleKind, status scheduler.Status, err error)
}

// BatchResult reports the outcome of GenerateModules.
type BatchResult struct {
	Succeeded []types.ModuleKind
	Failed    []types.ModuleKind
	Skipped   []types.ModuleKind
	Errors    map[types.ModuleKind]error
	Stats     scheduler.Stats
}

// HasFailures reports whether any module did not generate.
func (r BatchResult) HasFailures() bool {
	return len(r.Failed) > 0 || len(r.Skipped) > 0
}

// Plan returns the order GenerateModules would run kinds in, without
// calling the provider.
func (g *Generator) Plan(kinds []types.ModuleKind, opts BatchOptions) (scheduler.Ordering, error) {
	tasks, err := g.tasks(kinds, Context{}, opts)
	if err != nil {
		return scheduler.Ordering{}, err
	}
	return scheduler.Plan(tasks, g.logger)
}

func (g *Generator) tasks(kinds []types.ModuleKind, gc Context, opts BatchOptions) ([]scheduler.Task[ModuleResult], error) {
	kinds = g.registry.SortKinds(dedupe(kinds))
	for _, k := range kinds {
		if !g.registry.Has(k) {
			return nil, apperr.Invalid("generating modules", fmt.Errorf("%w: %q", registry.ErrUnknownModuleKind, k))
		}
	}

	tasks := make([]scheduler.Task[ModuleResult], 0, len(kinds))
	for _, k := range kinds {
		desc, _ := g.registry.Get(k)
		task := scheduler.Task[ModuleResult]{ID: string(k), Priority: desc.Priority}

		kind := k
		if opts.TestingAfterOthers && kind == types.KindTesting && len(kinds) > 1 {
			var others []types.ModuleKind
			for _, other := range kinds {
				if other != kind {
					others = append(others, other)
					task.Dependencies = append(task.Dependencies, string(other))
				}
			}
			task.Run = func(ctx context.Context) (ModuleResult, error) {
				related, err := g.ReadModules(gc.SpecName, others)
				if err != nil {
					return ModuleResult{Kind: kind}, err
				}
				withRelated := gc
				withRelated.Related = mergeRelated(gc.Related, related)
				return g.GenerateModule(ctx, kind, withRelated)
			}
		} else {
			task.Run = func(ctx context.Context) (ModuleResult, error) {
				return g.GenerateModule(ctx, kind, gc)
			}
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// GenerateModules runs one scheduler task per kind. Kinds are independent
// unless TestingAfterOthers is set.
func (g *Generator) GenerateModules(ctx context.Context, kinds []types.ModuleKind, gc Context, opts BatchOptions) (BatchResult, error) {
	tasks, err := g.tasks(kinds, gc, opts)
	if err != nil {
		return BatchResult{}, err
	}

	run, err := scheduler.Execute(ctx, tasks, scheduler.Options[ModuleResult]{
		MaxConcurrency:   opts.MaxConcurrency,
		BatchDelay:       opts.BatchDelay,
		StopOnFirstError: opts.StopOnFirstError,
		Logger:           g.logger,
		OnTaskStart: func(id string) {
			fmt.Fprintf(g.progress, "generating %s\n", id)
		},
		OnTaskComplete: func(tr scheduler.TaskResult[ModuleResult]) {
			kind := types.ModuleKind(tr.ID)
			switch tr.Status {
			case scheduler.StatusFailed:
				fmt.Fprintf(g.progress, "failed  %s: %s\n", kind, apperr.UserMessage(tr.Err))
			case scheduler.StatusSkipped:
				fmt.Fprintf(g.progress, "skipped %s (%s)\n", kind, tr.SkipReason)
			default:
				fmt.Fprintf(g.progress, "generated %s (%d attempt(s), %s)\n", kind, tr.Value.Attempts, tr.Duration().Round(time.Millisecond))
			}
			if opts.OnModuleDone != nil {
				opts.OnModuleDone(kind, tr.Status, tr.Err)
			}
		},
	})
	if err != nil {
		return BatchResult{}, err
	}

	out := BatchResult{Errors: map[types.ModuleKind]error{}, Stats: run.Stats}
	for _, tr := range run.Results {
		kind := types.ModuleKind(tr.ID)
		switch tr.Status {
		case scheduler.StatusSuccess:
			out.Succeeded = append(out.Succeeded, kind)
		case scheduler.StatusFailed:
			out.Failed = append(out.Failed, kind)
			out.Errors[kind] = tr.Err
		case scheduler.StatusSkipped:
			out.Skipped = append(out.Skipped, kind)
			out.Errors[kind] = errors.New(tr.SkipReason)
		}
	}
	fmt.Fprintf(g.progress, "\nBatch summary: %d generated, %d failed, %d skipped (total: %d)\n",
		len(out.Succeeded), len(out.Failed), len(out.Skipped), run.Stats.Total)
	return out, nil
}

// ReadModules returns the current text of every listed module that exists
// on disk.
func (g *Generator) ReadModules(spec string, kinds []types.ModuleKind) (map[types.ModuleKind]string, error) {
	out := map[types.ModuleKind]string{}
	for _, k := range kinds {
		fileName, err := g.registry.FileName(k)
		if err != nil {
			return nil, err
		}
		path, err := g.layout.ModulePath(spec, fileName)
		if err != nil {
			return nil, err
		}
		b, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, apperr.Wrap(fmt.Errorf("reading module %s: %w", k, err), "reading modules")
		}
		out[k] = string(b)
	}
	return out, nil
}

func mergeRelated(base, fresh map[types.ModuleKind]string) map[types.ModuleKind]string {
	out := make(map[types.ModuleKind]string, len(base)+len(fresh))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range fresh {
		out[k] = v
	}
	return out
}

func dedupe(kinds []types.ModuleKind) []types.ModuleKind {
	seen := map[types.ModuleKind]bool{}
	out := make([]types.ModuleKind, 0, len(kinds))
	for _, k := range kinds {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
