// Package parser pulls code out of model answers written in markdown.
package parser

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// CodeBlock is a fenced block of an answer.
type CodeBlock struct {
	// Lang is the first word of the info string, "" when there is none.
	Lang string
	Code string
}

// CodeBlocks returns the fenced code blocks of markdown in document order,
// including those nested in lists and quotes. Indented blocks are ignored:
// answers that carry code always fence it.
func CodeBlocks(markdown string) []CodeBlock {
	source := []byte(markdown)
	root := goldmark.DefaultParser().Parse(text.NewReader(source))

	var blocks []CodeBlock
	_ = ast.Walk(root, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		fenced, ok := node.(*ast.FencedCodeBlock)
		if !entering || !ok {
			return ast.WalkContinue, nil
		}

		var code strings.Builder
		segments := fenced.Lines()
		for i := 0; i < segments.Len(); i++ {
			seg := segments.At(i)
			code.Write(seg.Value(source))
		}
		blocks = append(blocks, CodeBlock{
			Lang: string(fenced.Language(source)),
			Code: code.String(),
		})
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

// FirstCode returns the code of the first fenced block of an answer.
func FirstCode(markdown string) (string, bool) {
	blocks := CodeBlocks(markdown)
	if len(blocks) == 0 {
		return "", false
	}
	return blocks[0].Code, true
}
