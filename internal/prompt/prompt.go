// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prompt renders module prompt templates.
//
// Templates use {{name}} placeholders and {{#if path}}...{{else}}...{{/if}}
// blocks, which nest. A block is true when its value is non-blank. Values
// are inserted verbatim and never re-parsed, so requirement text containing
// braces is safe.
package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

// Values maps dotted paths (e.g. "modules.server-api") to text.
type Values map[string]string

var tagPattern = regexp.MustCompile(`\{\{\s*(#if\s+[A-Za-z0-9_.\-]+|else|/if|[A-Za-z0-9_.\-]+)\s*\}\}`)

type nodeKind int

const (
	nodeText nodeKind = iota
	nodeVar
	nodeIf
)

type node struct {
	kind      nodeKind
	text      string // literal text or variable path
	then      []node
	otherwise []node
}

// Template is a parsed prompt template.
type Template struct {
	nodes []node
}

// Parse compiles src. Unbalanced or stray block tags are errors.
func Parse(src string) (*Template, error) {
	type frame struct {
		n      *node
		inElse bool
	}
	root := &node{}
	stack := []frame{{n: root}}

	appendNode := func(n node) {
		top := &stack[len(stack)-1]
		if top.inElse {
			top.n.otherwise = append(top.n.otherwise, n)
		} else {
			top.n.then = append(top.n.then, n)
		}
	}

	pos := 0
	for _, m := range tagPattern.FindAllStringSubmatchIndex(src, -1) {
		if m[0] > pos {
			appendNode(node{kind: nodeText, text: src[pos:m[0]]})
		}
		pos = m[1]
		tag := src[m[2]:m[3]]

		switch {
		case strings.HasPrefix(tag, "#if"):
			path := strings.TrimSpace(strings.TrimPrefix(tag, "#if"))
			appendNode(node{kind: nodeIf, text: path})
			top := &stack[len(stack)-1]
			var children *[]node
			if top.inElse {
				children = &top.n.otherwise
			} else {
				children = &top.n.then
			}
			stack = append(stack, frame{n: &(*children)[len(*children)-1]})
		case tag == "else":
			if len(stack) == 1 || stack[len(stack)-1].inElse {
				return nil, fmt.Errorf("unexpected {{else}} at offset %d", m[0])
			}
			stack[len(stack)-1].inElse = true
		case tag == "/if":
			if len(stack) == 1 {
				return nil, fmt.Errorf("unexpected {{/if}} at offset %d", m[0])
			}
			stack = stack[:len(stack)-1]
		default:
			appendNode(node{kind: nodeVar, text: tag})
		}
	}
	if len(stack) != 1 {
		return nil, fmt.Errorf("unclosed {{#if %s}}", stack[len(stack)-1].n.text)
	}
	if pos < len(src) {
		root.then = append(root.then, node{kind: nodeText, text: src[pos:]})
	}
	return &Template{nodes: root.then}, nil
}

// Render executes the template. Unknown placeholders render empty.
func (t *Template) Render(v Values) string {
	var b strings.Builder
	render(&b, t.nodes, v)
	return b.String()
}

func render(b *strings.Builder, nodes []node, v Values) {
	for _, n := range nodes {
		switch n.kind {
		case nodeText:
			b.WriteString(n.text)
		case nodeVar:
			b.WriteString(v[n.text])
		case nodeIf:
			if strings.TrimSpace(v[n.text]) != "" {
				render(b, n.then, v)
			} else {
				render(b, n.otherwise, v)
			}
		}
	}
}

// Render parses and executes src in one step.
func Render(src string, v Values) (string, error) {
	t, err := Parse(src)
	if err != nil {
		return "", err
	}
	return t.Render(v), nil
}
