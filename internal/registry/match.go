// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package registry

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdiddy/design-engine/pkg/types"
)

// Score counts how many keywords and patterns of rule match text. Keywords
// match case-insensitively, on word boundaries for Latin keywords and by
// plain containment for keywords in CJK scripts.
func Score(rule *types.DetectionRule, text string) int {
	if rule == nil || text == "" {
		return 0
	}
	lower := strings.ToLower(text)
	score := 0
	for _, kw := range rule.Keywords {
		if containsKeyword(lower, strings.ToLower(kw)) {
			score++
		}
	}
	for _, re := range rule.Patterns {
		if re.MatchString(text) {
			score++
		}
	}
	return score
}

func containsKeyword(text, kw string) bool {
	if kw == "" {
		return false
	}
	if hasCJK(kw) {
		return strings.Contains(text, kw)
	}
	for start := 0; ; {
		i := strings.Index(text[start:], kw)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(kw)
		if wordBoundaryBefore(text, i) && wordBoundaryAfter(text, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		start = i + size
	}
}

func wordBoundaryBefore(text string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return !isWordRune(r)
}

func wordBoundaryAfter(text string, i int) bool {
	if i >= len(text) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func hasCJK(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			return true
		}
	}
	return false
}
