// Package patcher collapses annotated blocks back into plain text according to
// the user's decision.
package patcher

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sokinpui/devx.go/internal/annotated"
)

// Intent is the user's resolution of an annotated block.
type Intent int

const (
	// Accept keeps unchanged and added lines.
	Accept Intent = iota
	// Reject keeps unchanged and removed lines.
	Reject
	// Merge keeps every line, so both versions can be resolved by hand.
	Merge
)

// ErrUnknownIntent is returned by ParseIntent for unrecognized names.
var ErrUnknownIntent = errors.New("unknown intent")

func (i Intent) String() string {
	switch i {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	case Merge:
		return "merge"
	default:
		return fmt.Sprintf("intent(%d)", int(i))
	}
}

// ParseIntent maps "accept", "reject" and "merge" (any case) to an Intent.
func ParseIntent(s string) (Intent, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "accept":
		return Accept, nil
	case "reject":
		return Reject, nil
	case "merge":
		return Merge, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownIntent, s)
}

// keeps reports whether a line of the given kind survives the intent.
func (i Intent) keeps(k annotated.Kind) bool {
	switch k {
	case annotated.Added:
		return i == Accept || i == Merge
	case annotated.Removed:
		return i == Reject || i == Merge
	default:
		return true
	}
}

func (i Intent) filter(block annotated.Block) []string {
	kept := make([]string, 0, len(block))
	for _, l := range block {
		if i.keeps(l.Kind) {
			kept = append(kept, l.Text)
		}
	}
	return kept
}

// Reconcile filters block by intent and joins the surviving lines with "\n".
// A block that ended in a newline still does.
func Reconcile(block annotated.Block, intent Intent) string {
	kept := intent.filter(block)
	if block.TrailingNewline() {
		kept = append(kept, "")
	}
	return strings.Join(kept, "\n")
}

// ReconcileText is Reconcile over annotated text. Lines without a recognized
// prefix pass through verbatim, since the text may have been edited by hand.
func ReconcileText(text string, intent Intent) string {
	return Reconcile(annotated.Parse(text), intent)
}

// ResolveLines applies intent to buffer lines.
func ResolveLines(lines []string, intent Intent) []string {
	block := make(annotated.Block, len(lines))
	for i, l := range lines {
		block[i] = annotated.ParseLine(l)
	}
	return intent.filter(block)
}

// ResolveHunks applies intent to every hunk of buffer, bottom-up so earlier
// hunk positions stay valid. It returns the new buffer and the number of hunks
// resolved.
func ResolveHunks(buffer []string, intent Intent) ([]string, int) {
	hunks := annotated.Hunks(buffer)
	out := append([]string(nil), buffer...)
	for i := len(hunks) - 1; i >= 0; i-- {
		h := hunks[i]
		out = Splice(out, h.Start, h.End, ResolveLines(out[h.Start:h.End+1], intent))
	}
	return out, len(hunks)
}

// Splice replaces lines[start:end+1] with repl.
func Splice(lines []string, start, end int, repl []string) []string {
	out := make([]string, 0, len(lines)-(end-start+1)+len(repl))
	out = append(out, lines[:start]...)
	out = append(out, repl...)
	out = append(out, lines[end+1:]...)
	return out
}
