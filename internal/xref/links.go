// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package xref

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pdiddy/design-engine/pkg/types"
)

// GenerateCrossLinks returns navigation links from kind to the related
// modules present in contents. Testing links to every other present kind;
// custom kinds link to testing.
func GenerateCrossLinks(kind types.ModuleKind, contents Contents) []types.CrossLink {
	var targets []types.ModuleKind
	switch {
	case kind == types.KindTesting:
		for k := range contents {
			if k != kind {
				targets = append(targets, k)
			}
		}
		sortKinds(targets)
	case kind.IsStandard():
		targets = crossLinkTargets[kind]
	default:
		targets = []types.ModuleKind{types.KindTesting}
	}

	var links []types.CrossLink
	for _, t := range targets {
		if !contents.present(t) {
			continue
		}
		links = append(links, types.CrossLink{
			TargetModule: t,
			LinkText:     fmt.Sprintf("%s module", t),
			Reason:       linkReason(kind, t),
		})
	}
	return links
}

func linkReason(from, to types.ModuleKind) string {
	if r, ok := linkReasons[[2]types.ModuleKind{from, to}]; ok {
		return r
	}
	switch {
	case to == types.KindTesting:
		return "test cases covering this module"
	case from == types.KindTesting:
		return "module under test"
	}
	return "related module"
}

// sortKinds orders standard kinds by their declared order, then custom
// kinds lexically.
func sortKinds(kinds []types.ModuleKind) {
	rank := func(k types.ModuleKind) int {
		for i, s := range types.StandardKinds {
			if s == k {
				return i
			}
		}
		return len(types.StandardKinds)
	}
	sort.Slice(kinds, func(i, j int) bool {
		ri, rj := rank(kinds[i]), rank(kinds[j])
		if ri != rj {
			return ri < rj
		}
		return kinds[i] < kinds[j]
	})
}

// FormatCrossLinks renders links as a markdown "Related modules" section.
// fileName resolves a kind to its document name; nil renders plain text.
func FormatCrossLinks(links []types.CrossLink, fileName func(types.ModuleKind) string) string {
	if len(links) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Related modules\n\n")
	for _, l := range links {
		name := ""
		if fileName != nil {
			name = fileName(l.TargetModule)
		}
		if name != "" {
			fmt.Fprintf(&b, "- [%s](%s): %s\n", l.LinkText, name, l.Reason)
		} else {
			fmt.Fprintf(&b, "- %s: %s\n", l.LinkText, l.Reason)
		}
	}
	return b.String()
}
