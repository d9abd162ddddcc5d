// ABOUTME: Markdown down-conversion for SMS delivery
// ABOUTME: SMS channels render plain text only, so formatting is stripped before send

package connector

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// PlainText converts markdown bot output to plain text suitable for SMS.
// Emphasis and headings lose their markers, list items keep a leading dash,
// and links become "label (url)".
func PlainText(markdown string) string {
	src := []byte(markdown)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var b strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				b.Write(node.Segment.Value(src))
				if node.SoftLineBreak() || node.HardLineBreak() {
					b.WriteByte('\n')
				}
			}
		case *ast.Paragraph, *ast.Heading:
			if !entering {
				b.WriteString("\n\n")
			}
		case *ast.ListItem:
			if entering {
				b.WriteString("- ")
			} else {
				b.WriteByte('\n')
			}
		case *ast.Link:
			if !entering {
				dest := string(node.Destination)
				if dest != "" {
					b.WriteString(" (" + dest + ")")
				}
			}
		case *ast.AutoLink:
			if entering {
				b.Write(node.URL(src))
			}
		case *ast.CodeSpan:
			// children are text nodes, emitted as-is
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					b.Write(seg.Value(src))
				}
				b.WriteByte('\n')
				return ast.WalkSkipChildren, nil
			}
		}
		return ast.WalkContinue, nil
	})

	out := b.String()
	// Collapse the trailing blank lines the paragraph walk accumulates
	for strings.Contains(out, "\n\n\n") {
		out = strings.ReplaceAll(out, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(out)
}
