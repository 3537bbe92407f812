// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package registry maps module kinds to their descriptors: display name,
// file name, prompt template, and detection rule. Standard kinds are built
// in; custom kinds come from configuration and replace the previous custom
// set wholesale on reload.
package registry

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/pdiddy/design-engine/internal/apperr"
	"github.com/pdiddy/design-engine/internal/logging"
	"github.com/pdiddy/design-engine/pkg/types"
)

// Registry is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	pattern     string
	descriptors map[types.ModuleKind]types.ModuleDescriptor
	logger      *slog.Logger
}

// New returns a registry holding the standard kinds. pattern is the file
// naming pattern, e.g. "design-{moduleType}.md".
func New(pattern string, logger *slog.Logger) (*Registry, error) {
	if err := types.ValidateFileNamingPattern(pattern); err != nil {
		return nil, apperr.Configuration("creating module registry", err)
	}
	std, err := standardDescriptors()
	if err != nil {
		return nil, err
	}
	return &Registry{pattern: pattern, descriptors: std, logger: logging.OrDiscard(logger)}, nil
}

// Get returns the descriptor for kind.
func (r *Registry) Get(kind types.ModuleKind) (types.ModuleDescriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[kind]
	if !ok {
		return types.ModuleDescriptor{}, fmt.Errorf("%w: %q", ErrUnknownModuleKind, kind)
	}
	return d, nil
}

// Has reports whether kind is registered.
func (r *Registry) Has(kind types.ModuleKind) bool {
	_, err := r.Get(kind)
	return err == nil
}

// Descriptors returns every descriptor ordered by priority, then kind.
func (r *Registry) Descriptors() []types.ModuleDescriptor {
	r.mu.RLock()
	out := make([]types.ModuleDescriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// Kinds returns every registered kind in priority order.
func (r *Registry) Kinds() []types.ModuleKind {
	ds := r.Descriptors()
	kinds := make([]types.ModuleKind, len(ds))
	for i, d := range ds {
		kinds[i] = d.Kind
	}
	return kinds
}

// SortKinds orders kinds by registry priority. Unknown kinds go last in
// lexical order.
func (r *Registry) SortKinds(kinds []types.ModuleKind) []types.ModuleKind {
	out := append([]types.ModuleKind(nil), kinds...)
	prio := func(k types.ModuleKind) int {
		if d, err := r.Get(k); err == nil {
			return d.Priority
		}
		return int(^uint(0) >> 1)
	}
	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := prio(out[i]), prio(out[j])
		if pi != pj {
			return pi < pj
		}
		return out[i] < out[j]
	})
	return out
}

// Merge validates defs and adds them to the registry. Nothing is merged if
// any definition is invalid, or if a custom type is already registered as
// a custom kind. Reusing a standard type overrides it with a warning.
func (r *Registry) Merge(defs []types.CustomModuleDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mergeLocked(defs, len(r.customLocked()))
}

// Reload replaces the custom kinds with defs. On validation failure the
// previous set stays in place.
func (r *Registry) Reload(defs []types.CustomModuleDefinition) error {
	std, err := standardDescriptors()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.descriptors
	r.descriptors = std
	if err := r.mergeLocked(defs, 0); err != nil {
		r.descriptors = prev
		return err
	}
	return nil
}

func (r *Registry) mergeLocked(defs []types.CustomModuleDefinition, offset int) error {
	errs := ValidateDefinitions(defs)
	for i, d := range defs {
		if existing, ok := r.descriptors[types.ModuleKind(d.Type)]; ok && existing.Custom {
			errs = append(errs, FieldError{Index: i, Type: d.Type, Field: "type", Message: "already registered"})
		}
	}
	if len(errs) > 0 {
		return &apperr.Error{
			Category: apperr.CategoryValidation,
			Code:     apperr.CodeInvalid,
			Op:       "merging custom modules",
			Message:  "invalid custom module definitions",
			Err:      errs,
		}
	}

	for i, d := range defs {
		desc := descriptorFromDefinition(d, customPriorityBase+offset+i)
		kind := desc.Kind
		if std, ok := r.descriptors[kind]; ok {
			r.logger.Warn("custom module overrides a standard kind", "type", kind)
			desc.Priority = std.Priority
			if desc.PromptTemplate == "" {
				desc.PromptTemplate = std.PromptTemplate
			}
			if desc.Detection == nil {
				desc.Detection = std.Detection
			}
			if desc.Icon == "" {
				desc.Icon = std.Icon
			}
		}
		if desc.PromptTemplate == "" {
			desc.PromptTemplate = customPromptTemplate()
		}
		r.descriptors[kind] = desc
	}
	return nil
}

func (r *Registry) customLocked() []types.ModuleKind {
	var out []types.ModuleKind
	for k, d := range r.descriptors {
		if d.Custom {
			out = append(out, k)
		}
	}
	return out
}

// descriptorFromDefinition converts a validated definition. Patterns have
// already been compiled once during validation.
func descriptorFromDefinition(d types.CustomModuleDefinition, priority int) types.ModuleDescriptor {
	desc := types.ModuleDescriptor{
		Kind:           types.ModuleKind(d.Type),
		Name:           d.Name,
		FileName:       d.FileName,
		PromptTemplate: d.PromptTemplate,
		Icon:           d.Icon,
		Priority:       priority,
		Custom:         true,
	}
	if d.DetectionRules != nil {
		rule := &types.DetectionRule{
			Keywords:          append([]string(nil), d.DetectionRules.Keywords...),
			DefaultApplicable: d.DetectionRules.DefaultApplicable,
		}
		for _, p := range d.DetectionRules.Patterns {
			rule.Patterns = append(rule.Patterns, regexp.MustCompile(p))
		}
		desc.Detection = rule
	}
	return desc
}

// FileName returns the module document name for kind.
func (r *Registry) FileName(kind types.ModuleKind) (string, error) {
	d, err := r.Get(kind)
	if err != nil {
		return "", err
	}
	tmpl := r.pattern
	if d.FileName != "" {
		tmpl = d.FileName
	}
	return strings.ReplaceAll(tmpl, types.KindPlaceholder, string(kind)), nil
}

// KindForFile maps a module document name back to its kind.
func (r *Registry) KindForFile(name string) (types.ModuleKind, bool) {
	for _, k := range r.Kinds() {
		if fn, err := r.FileName(k); err == nil && fn == name {
			return k, true
		}
	}
	return "", false
}

// Detect returns the kinds whose detection rules apply to requirements, in
// priority order. Kinds marked defaultApplicable always apply.
func (r *Registry) Detect(requirements string) []types.ModuleKind {
	var kinds []types.ModuleKind
	for _, d := range r.Descriptors() {
		if d.Detection == nil {
			continue
		}
		if d.Detection.DefaultApplicable || Score(d.Detection, requirements) > 0 {
			kinds = append(kinds, d.Kind)
		}
	}
	return kinds
}

// Candidate is a kind matched against a piece of text.
type Candidate struct {
	Kind  types.ModuleKind `json:"kind" yaml:"kind"`
	Score int              `json:"score" yaml:"score"`
}

// Rank scores text against every detection rule and returns the matching
// kinds ordered by score, then priority. defaultApplicable is ignored.
func (r *Registry) Rank(text string) []Candidate {
	var out []Candidate
	for _, d := range r.Descriptors() {
		if s := Score(d.Detection, text); s > 0 {
			out = append(out, Candidate{Kind: d.Kind, Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
