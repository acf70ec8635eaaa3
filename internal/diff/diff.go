// Package diff computes whitespace-insensitive line diffs between two code
// blocks and renders them as annotated blocks.
//
// Lines are compared after collapsing every whitespace run, so re-indented or
// re-spaced lines are not reported as changes. Output always carries the
// original text: an unchanged line is written exactly as it appears in the old
// block, with its own line terminator.
package diff

import (
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/sokinpui/devx.go/internal/annotated"
)

// NormalizeLine collapses whitespace runs to a single space and trims the
// ends. Two lines are equal for diffing when their normalized forms are.
func NormalizeLine(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

type line struct {
	text string
	eol  bool
}

// splitLines splits text into lines, remembering which ones had a newline.
// The empty string has no lines.
func splitLines(text string) []line {
	if text == "" {
		return nil
	}
	parts := strings.Split(text, "\n")
	lines := make([]line, 0, len(parts))
	for i, p := range parts {
		if i == len(parts)-1 {
			if p != "" {
				lines = append(lines, line{text: p})
			}
			break
		}
		lines = append(lines, line{text: p, eol: true})
	}
	return lines
}

// normalizedText builds the comparison key text for lines: one normalized
// line per input line, each terminated by a newline.
func normalizedText(lines []line) string {
	var sb strings.Builder
	for _, l := range lines {
		sb.WriteString(NormalizeLine(l.text))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Lines diffs oldText against newText.
func Lines(oldText, newText string) annotated.Block {
	oldLines := splitLines(oldText)
	newLines := splitLines(newText)

	dmp := diffmatchpatch.New()
	// No deadline: the line diff must be minimal, not merely good enough.
	dmp.DiffTimeout = 0

	rOld, rNew, _ := dmp.DiffLinesToRunes(normalizedText(oldLines), normalizedText(newLines))
	diffs := dmp.DiffMainRunes(rOld, rNew, false)
	diffs = dmp.DiffCleanupMerge(diffs)

	var (
		block         annotated.Block
		oi, ni        int
		dels, inserts []line
	)

	push := func(kind annotated.Kind, l line) {
		if n := len(block); n > 0 && !block[n-1].EOL {
			block[n-1].EOL = true
		}
		if kind != annotated.Unchanged {
			l.eol = true
		}
		block = append(block, annotated.Line{Kind: kind, Text: l.text, EOL: l.eol})
	}

	// Removed lines go before added lines at every alignment point.
	flush := func() {
		for _, l := range dels {
			push(annotated.Removed, l)
		}
		for _, l := range inserts {
			push(annotated.Added, l)
		}
		dels, inserts = nil, nil
	}

	for _, d := range diffs {
		n := utf8.RuneCountInString(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			for k := 0; k < n; k++ {
				push(annotated.Unchanged, oldLines[oi])
				oi++
				ni++
			}
		case diffmatchpatch.DiffDelete:
			dels = append(dels, oldLines[oi:oi+n]...)
			oi += n
		case diffmatchpatch.DiffInsert:
			inserts = append(inserts, newLines[ni:ni+n]...)
			ni += n
		}
	}
	flush()

	return block
}

// Text diffs oldText against newText and returns the annotated text.
func Text(oldText, newText string) string {
	return Lines(oldText, newText).String()
}
