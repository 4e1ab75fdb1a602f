// Package markdown derives metadata from memo content.
package markdown

import (
	"regexp"
	"sort"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// A tag is '#' at the start of a word followed by letters, digits, '_', '-'
// or '/'.
var tagPattern = regexp.MustCompile(`(?:^|\s)#([\p{L}\p{N}_\-/]+)`)

var md = goldmark.New()

// ExtractTags returns the distinct hashtags of content in sorted order.
// Code spans, code blocks, raw HTML, autolinks and link destinations never
// contribute tags.
func ExtractTags(content string) []string {
	set := map[string]struct{}{}
	collectTags(content, set)
	return sorted(set)
}

// ExtractAllTags merges the tags of several documents.
func ExtractAllTags(contents []string) []string {
	set := map[string]struct{}{}
	for _, c := range contents {
		collectTags(c, set)
	}
	return sorted(set)
}

func collectTags(content string, set map[string]struct{}) {
	if !strings.Contains(content, "#") {
		return
	}

	for _, m := range tagPattern.FindAllStringSubmatch(visibleText(content), -1) {
		tag := strings.Trim(m[1], "/")
		if tag != "" {
			set[tag] = struct{}{}
		}
	}
}

// visibleText flattens the prose of a document: block and line boundaries
// become newlines, excluded inline nodes become a single space.
func visibleText(content string) string {
	source := []byte(content)
	doc := md.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				b.WriteByte('\n')
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.CodeSpan, *ast.AutoLink, *ast.RawHTML:
			b.WriteByte(' ')
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.HTMLBlock:
			b.WriteByte('\n')
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			b.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte('\n')
			}
		case *ast.String:
			b.Write(node.Value)
		default:
			if n.Type() == ast.TypeBlock {
				b.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})

	return b.String()
}

func sorted(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
