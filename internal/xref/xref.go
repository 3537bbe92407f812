// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package xref statically checks references between the modules of one
// spec: UI calls against API endpoints, API models against the database
// module, and API services against the logic module. Every function is a
// pure function of the module text it receives.
package xref

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/pdiddy/design-engine/pkg/types"
)

// Contents maps each present module kind to its document text.
type Contents map[types.ModuleKind]string

func (c Contents) present(kind types.ModuleKind) bool {
	return strings.TrimSpace(c[kind]) != ""
}

// Report bundles the references and inconsistencies found in one spec.
type Report struct {
	References      types.ReferenceMap    `json:"references" yaml:"references"`
	Inconsistencies []types.Inconsistency `json:"inconsistencies" yaml:"inconsistencies"`
}

// Errors returns the number of error-severity inconsistencies.
func (r Report) Errors() int { return r.count(types.SeverityError) }

// Warnings returns the number of warning-severity inconsistencies.
func (r Report) Warnings() int { return r.count(types.SeverityWarning) }

func (r Report) count(sev types.Severity) int {
	n := 0
	for _, inc := range r.Inconsistencies {
		if inc.Severity == sev {
			n++
		}
	}
	return n
}

// Analyze runs reference extraction and inconsistency detection together.
func Analyze(contents Contents) Report {
	refs := AnalyzeReferences(contents)
	return Report{References: refs, Inconsistencies: inconsistencies(contents, refs)}
}

// AnalyzeReferences extracts typed references from every present source
// module, nested by source then target kind. Duplicate mentions of the
// same identifier collapse into one reference.
func AnalyzeReferences(contents Contents) types.ReferenceMap {
	out := types.ReferenceMap{}
	for _, rule := range extractionRules {
		for _, src := range rule.sources {
			if !contents.present(src) {
				continue
			}
			refs := extract(contents[src], src, rule)
			if len(refs) == 0 {
				continue
			}
			if out[src] == nil {
				out[src] = map[types.ModuleKind][]types.Reference{}
			}
			out[src][rule.target] = append(out[src][rule.target], refs...)
		}
	}
	return out
}

func extract(text string, src types.ModuleKind, rule extractionRule) []types.Reference {
	seen := map[string]bool{}
	var refs []types.Reference
	for _, re := range rule.patterns {
		for _, raw := range captures(re, text) {
			ref := cleanRef(raw, rule.kind)
			if ref == "" {
				continue
			}
			key := normalize(ref, rule.kind)
			if seen[key] {
				continue
			}
			seen[key] = true
			refs = append(refs, types.Reference{
				SourceModule:  src,
				TargetModule:  rule.target,
				Text:          ref,
				ReferenceKind: rule.kind,
			})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Text < refs[j].Text })
	return refs
}

// DetectInconsistencies reports every reference whose identifier is not
// defined in its target module. References into absent modules are not
// reported.
func DetectInconsistencies(contents Contents) []types.Inconsistency {
	return inconsistencies(contents, AnalyzeReferences(contents))
}

func inconsistencies(contents Contents, refs types.ReferenceMap) []types.Inconsistency {
	defs := map[types.ModuleKind]map[string]bool{}
	definitions := func(kind types.ModuleKind, rk types.ReferenceKind) map[string]bool {
		if d, ok := defs[kind]; ok {
			return d
		}
		var d map[string]bool
		if rk == types.RefAPIEndpoint {
			d = endpointDefinitions(contents[kind])
		} else {
			d = identifierDefinitions(contents[kind])
		}
		defs[kind] = d
		return d
	}

	var out []types.Inconsistency
	for src, targets := range refs {
		for target, list := range targets {
			if !contents.present(target) {
				continue
			}
			for _, ref := range list {
				if definitions(target, ref.ReferenceKind)[normalize(ref.Text, ref.ReferenceKind)] {
					continue
				}
				out = append(out, describe(src, target, ref))
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Severity != b.Severity {
			return a.Severity == types.SeverityError
		}
		if a.Module1 != b.Module1 {
			return a.Module1 < b.Module1
		}
		if a.Module2 != b.Module2 {
			return a.Module2 < b.Module2
		}
		return a.Description < b.Description
	})
	return out
}

func describe(src, target types.ModuleKind, ref types.Reference) types.Inconsistency {
	inc := types.Inconsistency{Module1: src, Module2: target, Severity: types.SeverityWarning}
	switch ref.ReferenceKind {
	case types.RefAPIEndpoint:
		inc.Severity = types.SeverityError
		inc.Description = fmt.Sprintf("%s calls endpoint %s, which %s does not define", src, ref.Text, target)
		inc.Suggestion = fmt.Sprintf("Define %s in the %s module or correct the call in %s", ref.Text, target, src)
	case types.RefDataModel:
		inc.Description = fmt.Sprintf("%s uses data model %s, which %s does not define", src, ref.Text, target)
		inc.Suggestion = fmt.Sprintf("Add a %s table or entity to the %s module", ref.Text, target)
	default:
		inc.Description = fmt.Sprintf("%s uses service %s, which %s does not define", src, ref.Text, target)
		inc.Suggestion = fmt.Sprintf("Describe %s in the %s module", ref.Text, target)
	}
	return inc
}

func endpointDefinitions(text string) map[string]bool {
	out := map[string]bool{}
	for _, re := range endpointDefPatterns {
		for _, raw := range captures(re, text) {
			if p := cleanRef(raw, types.RefAPIEndpoint); p != "" {
				out[normalizePath(p)] = true
			}
		}
	}
	return out
}

func identifierDefinitions(text string) map[string]bool {
	out := map[string]bool{}
	for _, re := range identifierDefPatterns {
		for _, raw := range captures(re, text) {
			out[normalizeIdent(raw)] = true
		}
	}
	// Headings define every word they contain, and their words joined,
	// so "## User Service" defines User, Service and UserService.
	for _, heading := range captures(headingPattern, text) {
		words := wordPattern.FindAllString(heading, -1)
		for _, w := range words {
			out[normalizeIdent(w)] = true
		}
		if len(words) > 1 {
			out[normalizeIdent(strings.Join(words, ""))] = true
		}
	}
	delete(out, "")
	return out
}

func captures(re *regexp.Regexp, text string) []string {
	idx := re.SubexpIndex("ref")
	var out []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if idx >= 0 && idx < len(m) && m[idx] != "" {
			out = append(out, m[idx])
		}
	}
	return out
}

func cleanRef(raw string, kind types.ReferenceKind) string {
	if kind != types.RefAPIEndpoint {
		return raw
	}
	p := raw
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	p = strings.TrimRight(p, ".,;:")
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	if p == "" || p == "/" {
		return ""
	}
	return p
}

func normalize(ref string, kind types.ReferenceKind) string {
	if kind == types.RefAPIEndpoint {
		return normalizePath(ref)
	}
	return normalizeIdent(ref)
}

// normalizePath lowercases p and collapses every parameter segment to {}.
func normalizePath(p string) string {
	segs := strings.Split(strings.ToLower(p), "/")
	for i, s := range segs {
		switch {
		case strings.HasPrefix(s, ":"),
			strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"),
			strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">"),
			strings.Contains(s, "${"):
			segs[i] = "{}"
		}
	}
	return strings.Join(segs, "/")
}

// normalizeIdent folds case and underscores and strips a simple plural so
// that users, Users and User compare equal.
func normalizeIdent(s string) string {
	s = strings.ToLower(strings.ReplaceAll(s, "_", ""))
	switch {
	case len(s) > 4 && strings.HasSuffix(s, "ies"):
		return s[:len(s)-3] + "y"
	case len(s) > 3 && strings.HasSuffix(s, "ss"):
		return s
	case len(s) > 3 && strings.HasSuffix(s, "s"):
		return s[:len(s)-1]
	}
	return s
}
