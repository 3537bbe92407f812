// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package engine is the single context object that wires the registry,
// metadata store, generator, analyzer, migrator, and ledger together and
// exposes the end-to-end operations the CLI calls.
package engine

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
	"github.com/pdiddy/design-engine/internal/generate"
	"github.com/pdiddy/design-engine/internal/ledger"
	"github.com/pdiddy/design-engine/internal/logging"
	"github.com/pdiddy/design-engine/internal/metadata"
	"github.com/pdiddy/design-engine/internal/migrate"
	"github.com/pdiddy/design-engine/internal/provider"
	"github.com/pdiddy/design-engine/internal/registry"
	"github.com/pdiddy/design-engine/internal/retry"
	"github.com/pdiddy/design-engine/internal/scheduler"
	"github.com/pdiddy/design-engine/internal/workspace"
	"github.com/pdiddy/design-engine/internal/xref"
	"github.com/pdiddy/design-engine/pkg/types"
)

// Deps supplies collaborators that callers may replace. Zero values are
// built from the configuration.
type Deps struct {
	Provider provider.Provider
	Logger   *slog.Logger

	// Progress receives generation progress lines. Nil discards.
	Progress io.Writer

	// Now stamps workflow transitions. Nil uses time.Now.
	Now func() time.Time
}

// Engine owns every component for one process. It holds no package-level
// state; build one with New and Close it when done.
type Engine struct {
	cfg       types.EngineConfig
	layout    workspace.Layout
	registry  *registry.Registry
	store     *metadata.Store
	generator *generate.Generator
	migrator  *migrate.Migrator
	ledger    *ledger.Ledger
	logger    *slog.Logger
}

// New validates cfg and builds the engine. Custom module definitions from
// settings and from the definitions file are merged into the registry.
func New(cfg types.EngineConfig, deps Deps) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, apperr.Configuration("loading configuration", err)
	}
	logger := logging.OrDiscard(deps.Logger)

	reg, err := registry.New(cfg.Modular.FileNamingPattern, logger)
	if err != nil {
		return nil, err
	}
	defs := append([]types.CustomModuleDefinition(nil), cfg.Modular.CustomModules...)
	if cfg.Modular.CustomModulesFile != "" {
		fileDefs, err := registry.LoadDefinitionsFile(cfg.Modular.CustomModulesFile)
		if err != nil {
			return nil, apperr.Configuration("loading custom modules", err)
		}
		defs = append(defs, fileDefs...)
	}
	if len(defs) > 0 {
		if err := reg.Merge(defs); err != nil {
			return nil, err
		}
	}

	e := &Engine{
		cfg:      cfg,
		layout:   workspace.Layout{Root: cfg.SpecsDir},
		registry: reg,
		logger:   logger,
	}

	var recorder metadata.TransitionRecorder
	if cfg.Ledger.Enabled {
		l, err := ledger.Open(cfg.LedgerPath())
		if err != nil {
			return nil, apperr.Wrap(err, "opening ledger")
		}
		e.ledger = l
		recorder = l
	}

	e.store = metadata.New(metadata.Options{
		Layout:       e.layout,
		CacheEnabled: cfg.Modular.CacheEnabled,
		CacheTTL:     cfg.Modular.CacheTTL,
		Recorder:     recorder,
		Logger:       logger,
		Now:          deps.Now,
	})

	p := deps.Provider
	if p == nil {
		p = provider.Lazy(cfg.Provider)
	}
	e.generator = generate.New(generate.Config{
		Registry: reg,
		Provider: p,
		Layout:   e.layout,
		Retry:    retryOptions(cfg),
		Logger:   logger,
		Progress: deps.Progress,
	})
	e.migrator = migrate.New(reg, e.layout, e.store, logger)
	return e, nil
}

func retryOptions(cfg types.EngineConfig) retry.Options {
	opts := retry.Options{
		MaxRetries:   cfg.Retry.MaxRetries,
		InitialDelay: cfg.Retry.InitialDelay,
		Timeout:      cfg.Provider.Timeout,
	}
	if !cfg.Retry.Exponential {
		opts.Backoff = retry.BackoffConstant
	}
	return opts
}

// Close stops the metadata watcher and closes the ledger.
func (e *Engine) Close() error {
	var errs []error
	if err := e.store.Close(); err != nil {
		errs = append(errs, err)
	}
	if e.ledger != nil {
		if err := e.ledger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Config returns the settings the engine was built with.
func (e *Engine) Config() types.EngineConfig { return e.cfg }

// Modules lists every registered module kind in priority order.
func (e *Engine) Modules() []types.ModuleDescriptor {
	return e.registry.Descriptors()
}

// FileName returns the document name of kind.
func (e *Engine) FileName(kind types.ModuleKind) (string, error) {
	return e.registry.FileName(kind)
}

// Specs lists the spec directories.
func (e *Engine) Specs() ([]string, error) {
	return e.layout.Specs()
}

// watch registers spec for external-change cache eviction. Failures only
// cost cache freshness and are logged.
func (e *Engine) watch(spec string) {
	if !e.cfg.Modular.CacheEnabled {
		return
	}
	dir, err := e.layout.SpecDir(spec)
	if err != nil {
		return
	}
	if ok, _ := workspace.Exists(dir); !ok {
		return
	}
	if err := e.store.Watch(spec); err != nil {
		e.logger.Debug("metadata watch unavailable", "spec", spec, "err", err)
	}
}

// DetectKinds returns the kinds to generate for spec: the detection result
// when auto-detection is on, the configured defaults otherwise.
func (e *Engine) DetectKinds(spec string) ([]types.ModuleKind, error) {
	if !e.cfg.Modular.AutoDetectModules {
		return e.registry.SortKinds(types.ParseKinds(e.cfg.Modular.DefaultModules)), nil
	}
	req, err := e.layout.ReadRequirements(spec)
	if err != nil {
		return nil, err
	}
	return e.registry.Detect(req), nil
}

// GenerateOptions tune Generate.
type GenerateOptions struct {
	// Kinds overrides detection when non-empty.
	Kinds []types.ModuleKind

	TestingAfterOthers bool

	// IgnoreLegacy generates even when an unmigrated legacy document exists.
	IgnoreLegacy bool
}

// GenerateReport describes one Generate call.
type GenerateReport struct {
	Spec     string
	RunID    string
	Kinds    []types.ModuleKind
	Migrated *migrate.Report
	Batch    generate.BatchResult

	// Analysis is set when cross-reference validation is enabled.
	Analysis *xref.Report
}

func (e *Engine) batchOptions(opts GenerateOptions) generate.BatchOptions {
	return generate.BatchOptions{
		MaxConcurrency:     e.cfg.Modular.Concurrency(),
		BatchDelay:         e.cfg.Scheduler.BatchDelay,
		StopOnFirstError:   e.cfg.Scheduler.StopOnFirstError,
		TestingAfterOthers: opts.TestingAfterOthers,
	}
}

// Plan returns the generation order for spec without calling the provider.
func (e *Engine) Plan(spec string, opts GenerateOptions) (scheduler.Ordering, error) {
	kinds, err := e.kinds(spec, opts.Kinds)
	if err != nil {
		return scheduler.Ordering{}, err
	}
	return e.generator.Plan(kinds, e.batchOptions(opts))
}

func (e *Engine) kinds(spec string, requested []types.ModuleKind) ([]types.ModuleKind, error) {
	kinds := requested
	if len(kinds) == 0 {
		detected, err := e.DetectKinds(spec)
		if err != nil {
			return nil, err
		}
		kinds = detected
	}
	if len(kinds) == 0 {
		return nil, apperr.Invalid("selecting modules", ErrNoModules)
	}
	return kinds, nil
}

// Generate produces the module documents of spec and moves each one that
// lands on disk to PendingReview. Failed modules keep their state.
func (e *Engine) Generate(ctx context.Context, spec string, opts GenerateOptions) (GenerateReport, error) {
	report := GenerateReport{Spec: spec}
	if !e.cfg.Modular.Enabled {
		return report, apperr.Invalid("generating "+spec, ErrModularDisabled)
	}

	needs, err := e.migrator.NeedsMigration(spec)
	if err != nil {
		return report, err
	}
	if needs && !opts.IgnoreLegacy {
		if !e.cfg.Modular.AutoMigrateLegacy {
			return report, apperr.Invalid("generating "+spec, ErrLegacyPending)
		}
		mr, err := e.Migrate(ctx, spec, migrate.Options{})
		if err != nil {
			return report, err
		}
		report.Migrated = &mr
	}

	requirements, err := e.layout.ReadRequirements(spec)
	if err != nil {
		return report, err
	}
	kinds, err := e.kinds(spec, opts.Kinds)
	if err != nil {
		return report, err
	}
	report.Kinds = e.registry.SortKinds(kinds)
	e.watch(spec)

	ctx, finish := e.startRun(ctx, spec, "generate", report.Kinds)
	report.RunID = ledger.RunID(ctx)

	var stateErrs []error
	batchOpts := e.batchOptions(opts)
	batchOpts.OnModuleDone = func(kind types.ModuleKind, status scheduler.Status, _ error) {
		if status != scheduler.StatusSuccess {
			return
		}
		if _, err := e.store.SetState(ctx, spec, kind, types.StatePendingReview, ""); err != nil {
			stateErrs = append(stateErrs, fmt.Errorf("recording %s: %w", kind, err))
		}
	}

	batch, err := e.generator.GenerateModules(ctx, report.Kinds, generate.Context{
		SpecName:     spec,
		Requirements: requirements,
	}, batchOpts)
	if err != nil {
		finish(0, 0, 0)
		return report, err
	}
	report.Batch = batch
	finish(len(batch.Succeeded), len(batch.Failed), len(batch.Skipped))

	if e.cfg.Modular.ValidateCrossReferences && len(batch.Succeeded) > 0 {
		analysis, err := e.Analyze(spec)
		if err != nil {
			e.logger.Warn("cross-reference analysis failed", "spec", spec, "err", err)
		} else {
			report.Analysis = &analysis
		}
	}
	return report, errors.Join(stateErrs...)
}

// Regenerate produces one module again with every other existing module
// as related content and moves it to PendingReview.
func (e *Engine) Regenerate(ctx context.Context, spec string, kind types.ModuleKind) (generate.ModuleResult, error) {
	if !e.registry.Has(kind) {
		return generate.ModuleResult{}, apperr.Invalid("regenerating", fmt.Errorf("%w: %q", registry.ErrUnknownModuleKind, kind))
	}
	requirements, err := e.layout.ReadRequirements(spec)
	if err != nil {
		return generate.ModuleResult{}, err
	}
	var others []types.ModuleKind
	for _, k := range e.registry.Kinds() {
		if k != kind {
			others = append(others, k)
		}
	}
	related, err := e.generator.ReadModules(spec, others)
	if err != nil {
		return generate.ModuleResult{}, err
	}
	e.watch(spec)

	ctx, finish := e.startRun(ctx, spec, "regenerate", []types.ModuleKind{kind})
	res, err := e.generator.GenerateModule(ctx, kind, generate.Context{
		SpecName:     spec,
		Requirements: requirements,
		Related:      related,
	})
	if err != nil {
		finish(0, 1, 0)
		return res, err
	}
	finish(1, 0, 0)
	if _, err := e.store.SetState(ctx, spec, kind, types.StatePendingReview, ""); err != nil {
		return res, err
	}
	return res, nil
}

// Approve moves a PendingReview module to Approved.
func (e *Engine) Approve(ctx context.Context, spec string, kind types.ModuleKind, actor string) (types.ModuleMetadataEntry, error) {
	e.watch(spec)
	return e.store.SetState(ctx, spec, kind, types.StateApproved, actor)
}

// Reject moves a PendingReview or Approved module to Rejected.
func (e *Engine) Reject(ctx context.Context, spec string, kind types.ModuleKind, actor string) (types.ModuleMetadataEntry, error) {
	e.watch(spec)
	return e.store.SetState(ctx, spec, kind, types.StateRejected, actor)
}

// Delete removes a module document and its metadata entry.
func (e *Engine) Delete(ctx context.Context, spec string, kind types.ModuleKind) error {
	path, err := e.modulePath(spec, kind)
	if err != nil {
		return err
	}
	md, err := e.store.Load(spec)
	if err != nil {
		return err
	}
	if _, ok := md.Modules[kind]; !ok {
		return apperr.Invalid("deleting module", fmt.Errorf("%w: %s/%s", metadata.ErrModuleNotTracked, spec, kind))
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return apperr.Wrap(fmt.Errorf("removing %s: %w", path, err), "deleting module")
	}
	return e.store.DeleteModule(ctx, spec, kind)
}

func (e *Engine) modulePath(spec string, kind types.ModuleKind) (string, error) {
	name, err := e.registry.FileName(kind)
	if err != nil {
		return "", apperr.Invalid("resolving module", err)
	}
	return e.layout.ModulePath(spec, name)
}

// ModuleStatus is one row of a status report.
type ModuleStatus struct {
	Kind        types.ModuleKind    `json:"kind" yaml:"kind"`
	Name        string              `json:"name" yaml:"name"`
	Icon        string              `json:"icon,omitempty" yaml:"icon,omitempty"`
	File        string              `json:"file" yaml:"file"`
	FileExists  bool                `json:"fileExists" yaml:"fileExists"`
	State       types.WorkflowState `json:"workflowState" yaml:"workflowState"`
	GeneratedAt *time.Time          `json:"generatedAt,omitempty" yaml:"generatedAt,omitempty"`
	ApprovedAt  *time.Time          `json:"approvedAt,omitempty" yaml:"approvedAt,omitempty"`
	ApprovedBy  string              `json:"approvedBy,omitempty" yaml:"approvedBy,omitempty"`
}

// StatusReport summarizes the workflow state of one spec.
type StatusReport struct {
	Spec                   string         `json:"spec" yaml:"spec"`
	Modules                []ModuleStatus `json:"modules" yaml:"modules"`
	CanProgressToNextPhase bool           `json:"canProgressToNextPhase" yaml:"canProgressToNextPhase"`
	LegacyPending          bool           `json:"legacyPending,omitempty" yaml:"legacyPending,omitempty"`
}

// Status reports every tracked module of spec in priority order.
func (e *Engine) Status(spec string) (StatusReport, error) {
	e.watch(spec)
	md, err := e.store.Load(spec)
	if err != nil {
		return StatusReport{}, err
	}
	report := StatusReport{Spec: spec, CanProgressToNextPhase: md.CanProgressToNextPhase}
	if report.LegacyPending, err = e.migrator.NeedsMigration(spec); err != nil {
		return StatusReport{}, err
	}
	for _, kind := range e.registry.SortKinds(md.Kinds()) {
		entry := md.Modules[kind]
		row := ModuleStatus{
			Kind:        kind,
			Name:        string(kind),
			State:       md.State(kind),
			GeneratedAt: entry.GeneratedAt,
			ApprovedAt:  entry.ApprovedAt,
			ApprovedBy:  entry.ApprovedBy,
		}
		if desc, err := e.registry.Get(kind); err == nil {
			row.Name, row.Icon = desc.Name, desc.Icon
			if path, err := e.modulePath(spec, kind); err == nil {
				row.File = path
				row.FileExists, _ = workspace.Exists(path)
			}
		}
		report.Modules = append(report.Modules, row)
	}
	return report, nil
}

// CanProgress reports whether every tracked module of spec is Approved.
func (e *Engine) CanProgress(spec string) (bool, error) {
	return e.store.CanProgress(spec)
}

// Contents reads every registered module document of spec that exists.
func (e *Engine) Contents(spec string) (xref.Contents, error) {
	texts, err := e.generator.ReadModules(spec, e.registry.Kinds())
	if err != nil {
		return nil, err
	}
	return xref.Contents(texts), nil
}

// Analyze checks cross-module references of spec.
func (e *Engine) Analyze(spec string) (xref.Report, error) {
	contents, err := e.Contents(spec)
	if err != nil {
		return xref.Report{}, err
	}
	return xref.Analyze(contents), nil
}

// CrossLinks returns the related-module links for kind and their markdown
// rendering.
func (e *Engine) CrossLinks(spec string, kind types.ModuleKind) ([]types.CrossLink, string, error) {
	if !e.registry.Has(kind) {
		return nil, "", apperr.Invalid("linking modules", fmt.Errorf("%w: %q", registry.ErrUnknownModuleKind, kind))
	}
	contents, err := e.Contents(spec)
	if err != nil {
		return nil, "", err
	}
	links := xref.GenerateCrossLinks(kind, contents)
	md := xref.FormatCrossLinks(links, func(k types.ModuleKind) string {
		name, _ := e.registry.FileName(k)
		return name
	})
	return links, md, nil
}

// CheckLegacy reports whether spec still needs migration.
func (e *Engine) CheckLegacy(spec string) (bool, error) {
	return e.migrator.NeedsMigration(spec)
}

// AnalyzeLegacy returns the suggested section mapping of spec's legacy
// document.
func (e *Engine) AnalyzeLegacy(spec string) (migrate.Analysis, error) {
	return e.migrator.Analyze(spec)
}

// Migrate splits spec's legacy document into module documents.
func (e *Engine) Migrate(ctx context.Context, spec string, opts migrate.Options) (migrate.Report, error) {
	ctx, finish := e.startRun(ctx, spec, "migrate", nil)
	report, err := e.migrator.Migrate(ctx, spec, opts)
	if err != nil {
		finish(0, 1, 0)
		return report, err
	}
	finish(len(report.Migrated), 0, len(report.Conflicts))
	return report, nil
}

// History returns the newest recorded transitions of spec.
func (e *Engine) History(ctx context.Context, spec string, limit int) ([]ledger.Entry, error) {
	if e.ledger == nil {
		return nil, apperr.Invalid("reading history", ErrLedgerDisabled)
	}
	return e.ledger.History(ctx, spec, limit)
}

// Runs returns the newest generation and migration runs of spec.
func (e *Engine) Runs(ctx context.Context, spec string, limit int) ([]ledger.Run, error) {
	if e.ledger == nil {
		return nil, apperr.Invalid("reading runs", ErrLedgerDisabled)
	}
	return e.ledger.Runs(ctx, spec, limit)
}

// startRun opens a ledger run and tags ctx with it. The returned finish
// stores the outcome counts. Without a ledger both are no-ops.
func (e *Engine) startRun(ctx context.Context, spec, op string, kinds []types.ModuleKind) (context.Context, func(succeeded, failed, skipped int)) {
	noop := func(int, int, int) {}
	if e.ledger == nil {
		return ctx, noop
	}
	id, err := e.ledger.StartRun(ctx, spec, op, kinds)
	if err != nil {
		e.logger.Warn("recording run start", "spec", spec, "op", op, "err", err)
		return ctx, noop
	}
	ctx = ledger.WithRunID(ctx, id)
	return ctx, func(succeeded, failed, skipped int) {
		if err := e.ledger.FinishRun(context.WithoutCancel(ctx), id, succeeded, failed, skipped); err != nil {
			e.logger.Warn("recording run end", "spec", spec, "run", id, "err", err)
		}
	}
}
