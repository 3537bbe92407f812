// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package xref

import (
	"regexp"

	"github.com/pdiddy/design-engine/pkg/types"
)

// pathChars covers literal path segments plus the parameter forms
// normalizePath understands ({id}, :id, <id>, ${id}).
const pathChars = `[\w\-./{}:<>$~%]*`

// extractionRule scans a source module's text for references into target.
type extractionRule struct {
	sources  []types.ModuleKind
	target   types.ModuleKind
	kind     types.ReferenceKind
	patterns []*regexp.Regexp
}

// Every pattern captures the referenced identifier in the "ref" group.
var httpCallPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:GET|POST|PUT|PATCH|DELETE)\s+[` + "`" + `'"]?(?P<ref>/` + pathChars + `)`),
	regexp.MustCompile(`\bfetch\(\s*[` + "`" + `'"](?P<ref>/` + pathChars + `)`),
	regexp.MustCompile(`(?i)\b(?:axios|http|api|client|request)\.(?:get|post|put|patch|delete)\(\s*[` + "`" + `'"](?P<ref>/` + pathChars + `)`),
}

var modelDeclPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:Model|Schema|Entity|Table)\s*:\s*[` + "`" + `*]*(?P<ref>[A-Za-z_][A-Za-z0-9_]*)`),
}

var serviceDeclPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:Service|BusinessLogic)\s*:\s*[` + "`" + `*]*(?P<ref>[A-Za-z_][A-Za-z0-9_]*)`),
}

var extractionRules = []extractionRule{
	{
		sources:  []types.ModuleKind{types.KindFrontend, types.KindMobile},
		target:   types.KindServerAPI,
		kind:     types.RefAPIEndpoint,
		patterns: httpCallPatterns,
	},
	{
		sources:  []types.ModuleKind{types.KindServerAPI},
		target:   types.KindServerDatabase,
		kind:     types.RefDataModel,
		patterns: modelDeclPatterns,
	},
	{
		sources:  []types.ModuleKind{types.KindServerAPI},
		target:   types.KindServerLogic,
		kind:     types.RefService,
		patterns: serviceDeclPatterns,
	},
}

// Endpoint definitions in the API module.
var endpointDefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^#{1,6}[^\n]*?(?P<ref>/` + pathChars + `)`),
	regexp.MustCompile(`(?m)^[\s>*\-+\d.]*[` + "`" + `*]*(?:GET|POST|PUT|PATCH|DELETE|HEAD|OPTIONS)\s+[` + "`" + `'"]?(?P<ref>/` + pathChars + `)`),
	regexp.MustCompile(`(?m)^\|\s*[` + "`" + `*]*(?:GET|POST|PUT|PATCH|DELETE|HEAD|OPTIONS)[` + "`" + `*]*\s*\|\s*[` + "`" + `*]*(?P<ref>/` + pathChars + `)`),
	regexp.MustCompile(`(?i)\b(?:Endpoint|Path|Route)\s*:\s*[` + "`" + `*]*(?:(?:GET|POST|PUT|PATCH|DELETE)\s+)?(?P<ref>/` + pathChars + `)`),
}

// Identifier definitions in the database and logic modules.
var identifierDefPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bCREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?[` + "`" + `"]?(?P<ref>[A-Za-z_][A-Za-z0-9_]*)`),
	regexp.MustCompile(`(?i)\b(?:Table|Entity|Model|Schema|Service|BusinessLogic)\s*:\s*[` + "`" + `*]*(?P<ref>[A-Za-z_][A-Za-z0-9_]*)`),
	regexp.MustCompile(`\btype\s+(?P<ref>[A-Za-z_][A-Za-z0-9_]*)\s+(?:struct|interface)\b`),
	regexp.MustCompile(`\b(?:interface|class)\s+(?P<ref>[A-Za-z_][A-Za-z0-9_]*)`),
}

var headingPattern = regexp.MustCompile(`(?m)^#{1,6}\s+(?P<ref>.+)$`)

var wordPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// crossLinkTargets is the fixed fan-out per source kind. Testing links to
// every other present kind and is handled separately.
var crossLinkTargets = map[types.ModuleKind][]types.ModuleKind{
	types.KindFrontend:       {types.KindServerAPI, types.KindTesting},
	types.KindMobile:         {types.KindServerAPI, types.KindTesting},
	types.KindServerAPI:      {types.KindServerLogic, types.KindServerDatabase, types.KindTesting},
	types.KindServerLogic:    {types.KindServerAPI, types.KindServerDatabase, types.KindTesting},
	types.KindServerDatabase: {types.KindServerLogic, types.KindTesting},
}

var linkReasons = map[[2]types.ModuleKind]string{
	{types.KindFrontend, types.KindServerAPI}:         "UI calls these API endpoints",
	{types.KindMobile, types.KindServerAPI}:           "mobile client calls these API endpoints",
	{types.KindServerAPI, types.KindServerLogic}:      "endpoints delegate to these services",
	{types.KindServerAPI, types.KindServerDatabase}:   "endpoints read and write these models",
	{types.KindServerLogic, types.KindServerAPI}:      "services are exposed through these endpoints",
	{types.KindServerLogic, types.KindServerDatabase}: "services persist through these models",
	{types.KindServerDatabase, types.KindServerLogic}: "models are used by these services",
}
