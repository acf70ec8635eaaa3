package patcher

import (
	"github.com/sokinpui/devx.go/internal/annotated"
	"github.com/sokinpui/devx.go/internal/diff"
)

// Locate finds where an annotated block previously written into a buffer
// lives now. The buffer may have shifted since the block was inserted, so the
// search is resilient to whitespace and blank-line changes:
//  1. Blank lines are filtered out of both the buffer and the block.
//  2. A map keeps filtered positions pointing at original buffer lines.
//  3. Lines are compared in whitespace-normalized form.
//
// hint is the 0-based line where the block is expected; when the block occurs
// more than once, the occurrence closest to hint wins. start and end are
// 0-based, inclusive buffer lines covering the first through the last
// non-blank line of the block.
func Locate(buffer []string, block annotated.Block, hint int) (start, end int, ok bool) {
	var target []string
	for _, l := range block {
		text := l.Kind.Prefix() + l.Text
		if n := diff.NormalizeLine(text); n != "" {
			target = append(target, n)
		}
	}
	if len(target) == 0 {
		return 0, 0, false
	}

	var filtered []string
	var lineNumbers []int
	for i, line := range buffer {
		if n := diff.NormalizeLine(line); n != "" {
			filtered = append(filtered, n)
			lineNumbers = append(lineNumbers, i)
		}
	}

	matchAt := func(i int) bool {
		for j := range target {
			if filtered[i+j] != target[j] {
				return false
			}
		}
		return true
	}

	found, best := -1, 0
	for i := 0; i <= len(filtered)-len(target); i++ {
		if !matchAt(i) {
			continue
		}
		dist := lineNumbers[i] - hint
		if dist < 0 {
			dist = -dist
		}
		if found == -1 || dist < best {
			found, best = i, dist
		}
	}
	if found == -1 {
		return 0, 0, false
	}
	return lineNumbers[found], lineNumbers[found+len(target)-1], true
}
