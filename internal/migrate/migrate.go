// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package migrate splits a monolithic legacy design document into the
// modular layout: one document per module kind plus workflow metadata,
// with the original kept as a backup.
package migrate

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/pdiddy/design-engine/internal/apperr"
	"github.com/pdiddy/design-engine/internal/logging"
	"github.com/pdiddy/design-engine/internal/metadata"
	"github.com/pdiddy/design-engine/internal/registry"
	"github.com/pdiddy/design-engine/internal/workspace"
	"github.com/pdiddy/design-engine/pkg/types"
)

// Tests replace writeFile to inject failures.
var writeFile = workspace.WriteFileAtomic

// Mapping pairs a section with the kinds its heading matched, best first.
type Mapping struct {
	Section    Section              `json:"section" yaml:"section"`
	Candidates []registry.Candidate `json:"candidates" yaml:"candidates"`
}

// Primary returns the best candidate kind, or "" when none matched.
func (m Mapping) Primary() types.ModuleKind {
	if len(m.Candidates) == 0 {
		return ""
	}
	return m.Candidates[0].Kind
}

// Analysis is the parsed legacy document with its suggested mapping.
type Analysis struct {
	Preamble string    `json:"-" yaml:"-"`
	Mappings []Mapping `json:"mappings" yaml:"mappings"`
}

// Unmapped returns the headings of sections no kind matched.
func (a Analysis) Unmapped() []string {
	var out []string
	for _, m := range a.Mappings {
		if len(m.Candidates) == 0 {
			out = append(out, m.Section.Heading)
		}
	}
	return out
}

// Assign groups section text per kind. With secondary set, a section is
// copied into every candidate kind instead of only the primary one.
func (a Analysis) Assign(secondary bool) map[types.ModuleKind][]Section {
	out := map[types.ModuleKind][]Section{}
	for _, m := range a.Mappings {
		for i, c := range m.Candidates {
			if i > 0 && !secondary {
				break
			}
			out[c.Kind] = append(out[c.Kind], m.Section)
		}
	}
	return out
}

// AnalyzeLegacyContent splits text into sections and ranks every section
// heading against the registry's detection rules.
func AnalyzeLegacyContent(text string, reg *registry.Registry) Analysis {
	preamble, sections := splitSections(text)
	a := Analysis{Preamble: preamble}
	for _, s := range sections {
		a.Mappings = append(a.Mappings, Mapping{Section: s, Candidates: reg.Rank(s.Heading)})
	}
	return a
}

// Options tunes one migration.
type Options struct {
	IncludeSecondary bool
}

// Conflict is a kind skipped because its module document already exists.
type Conflict struct {
	Kind types.ModuleKind `json:"kind" yaml:"kind"`
	Path string           `json:"path" yaml:"path"`
}

// Report describes the outcome of a migration.
type Report struct {
	Spec       string             `json:"spec" yaml:"spec"`
	Migrated   []types.ModuleKind `json:"migrated" yaml:"migrated"`
	Files      []string           `json:"files" yaml:"files"`
	Conflicts  []Conflict         `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
	Unmapped   []string           `json:"unmapped,omitempty" yaml:"unmapped,omitempty"`
	BackupPath string             `json:"backupPath,omitempty" yaml:"backupPath,omitempty"`
}

// Migrator moves specs from the legacy layout into the modular one.
type Migrator struct {
	reg    *registry.Registry
	layout workspace.Layout
	store  *metadata.Store
	logger *slog.Logger
}

// New returns a Migrator writing module documents under layout and
// recording their workflow state in store.
func New(reg *registry.Registry, layout workspace.Layout, store *metadata.Store, logger *slog.Logger) *Migrator {
	return &Migrator{reg: reg, layout: layout, store: store, logger: logging.OrDiscard(logger)}
}

// NeedsMigration reports whether spec has a legacy document and no module
// documents yet.
func (m *Migrator) NeedsMigration(spec string) (bool, error) {
	legacy, err := m.layout.LegacyPath(spec)
	if err != nil {
		return false, err
	}
	ok, err := workspace.Exists(legacy)
	if err != nil || !ok {
		return false, err
	}
	for _, k := range m.reg.Kinds() {
		path, err := m.modulePath(spec, k)
		if err != nil {
			return false, err
		}
		if exists, err := workspace.Exists(path); err != nil || exists {
			return false, err
		}
	}
	return true, nil
}

// Analyze reads the legacy document of spec and returns its mapping.
func (m *Migrator) Analyze(spec string) (Analysis, error) {
	_, text, err := m.readLegacy(spec)
	if err != nil {
		return Analysis{}, err
	}
	return AnalyzeLegacyContent(text, m.reg), nil
}

// Migrate writes one module document per mapped kind, marks each
// PendingReview, and finally renames the legacy document to its backup
// name. When a write fails, documents written so far are removed and the
// legacy document is left in place.
func (m *Migrator) Migrate(ctx context.Context, spec string, opts Options) (Report, error) {
	report := Report{Spec: spec}
	legacy, text, err := m.readLegacy(spec)
	if err != nil {
		return report, err
	}
	backup, err := m.layout.BackupPath(spec)
	if err != nil {
		return report, err
	}
	if exists, err := workspace.Exists(backup); err != nil {
		return report, apperr.Wrap(err, "checking backup")
	} else if exists {
		return report, apperr.New(apperr.CategoryFileSystem, apperr.CodeAlreadyExists, "migrating "+spec,
			fmt.Sprintf("backup %s already exists", backup))
	}

	analysis := AnalyzeLegacyContent(text, m.reg)
	report.Unmapped = analysis.Unmapped()
	assigned := analysis.Assign(opts.IncludeSecondary)

	kinds := make([]types.ModuleKind, 0, len(assigned))
	for k := range assigned {
		kinds = append(kinds, k)
	}

	var written []string
	rollback := func() {
		for _, p := range written {
			if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
				m.logger.Warn("removing migrated module", "path", p, "err", err)
			}
		}
	}

	for _, kind := range m.reg.SortKinds(kinds) {
		path, err := m.modulePath(spec, kind)
		if err != nil {
			rollback()
			return Report{Spec: spec}, err
		}
		exists, err := workspace.Exists(path)
		if err != nil {
			rollback()
			return Report{Spec: spec}, apperr.Wrap(err, "checking module "+string(kind))
		}
		if exists {
			report.Conflicts = append(report.Conflicts, Conflict{Kind: kind, Path: path})
			continue
		}
		if err := writeFile(path, []byte(joinSections(assigned[kind]))); err != nil {
			rollback()
			return Report{Spec: spec}, apperr.Wrap(fmt.Errorf("writing %s: %w", path, err), "migrating "+spec)
		}
		written = append(written, path)
		report.Migrated = append(report.Migrated, kind)
		report.Files = append(report.Files, path)
	}

	if len(report.Migrated) == 0 {
		m.logger.Info("nothing to migrate", "spec", spec, "sections", len(analysis.Mappings))
		return report, nil
	}

	if err := m.store.InitModules(ctx, spec, report.Migrated); err != nil {
		rollback()
		return Report{Spec: spec}, fmt.Errorf("recording migrated modules: %w", err)
	}
	if err := os.Rename(legacy, backup); err != nil {
		return report, apperr.Wrap(fmt.Errorf("backing up %s: %w", legacy, err), "migrating "+spec)
	}
	report.BackupPath = backup
	m.logger.Info("migrated legacy design", "spec", spec, "modules", len(report.Migrated), "conflicts", len(report.Conflicts))
	return report, nil
}

func (m *Migrator) readLegacy(spec string) (string, string, error) {
	path, err := m.layout.LegacyPath(spec)
	if err != nil {
		return "", "", err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", "", apperr.Wrap(fmt.Errorf("reading legacy design: %w", err), "migrating "+spec)
	}
	return path, string(b), nil
}

func (m *Migrator) modulePath(spec string, kind types.ModuleKind) (string, error) {
	name, err := m.reg.FileName(kind)
	if err != nil {
		return "", err
	}
	return m.layout.ModulePath(spec, name)
}

func joinSections(sections []Section) string {
	var b strings.Builder
	for _, s := range sections {
		b.WriteString(s.Raw)
	}
	return b.String()
}
