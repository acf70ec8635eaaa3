// Package annotated holds the typed form of an inline diff and its plain-text
// encoding.
//
// A Block is a sequence of lines tagged as unchanged, added or removed. Its text
// form prefixes added lines with '+' and removed lines with '-'; unchanged lines
// are written as they are. The text form is what lands in the editor buffer, so
// Parse is deliberately lenient: anything that does not start with a known
// prefix is an unchanged line.
package annotated

import (
	"strings"
)

// Kind tags a line of an annotated block.
type Kind int

const (
	Unchanged Kind = iota
	Added
	Removed
)

const (
	AddedPrefix   = '+'
	RemovedPrefix = '-'
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "unchanged"
	}
}

// Prefix returns the marker written in front of a line of this kind, or "" for
// unchanged lines.
func (k Kind) Prefix() string {
	switch k {
	case Added:
		return string(AddedPrefix)
	case Removed:
		return string(RemovedPrefix)
	default:
		return ""
	}
}

// Line is one logical line of an annotated block.
type Line struct {
	Kind Kind
	// Text is the line content without its prefix or line terminator.
	Text string
	// EOL reports whether the line is terminated by a newline.
	EOL bool
}

// Block is an ordered sequence of annotated lines.
type Block []Line

// String encodes the block as annotated text.
func (b Block) String() string {
	var sb strings.Builder
	for _, l := range b {
		sb.WriteString(l.Kind.Prefix())
		sb.WriteString(l.Text)
		if l.EOL {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Stats returns the number of added and removed lines.
func (b Block) Stats() (added, removed int) {
	for _, l := range b {
		switch l.Kind {
		case Added:
			added++
		case Removed:
			removed++
		}
	}
	return added, removed
}

// HasChanges reports whether the block contains any added or removed line.
func (b Block) HasChanges() bool {
	added, removed := b.Stats()
	return added+removed > 0
}

// TrailingNewline reports whether the encoded block ends with a newline.
func (b Block) TrailingNewline() bool {
	return len(b) > 0 && b[len(b)-1].EOL
}

// Parse decodes annotated text. It never fails: lines without a recognized
// prefix are unchanged lines, kept verbatim.
func Parse(text string) Block {
	if text == "" {
		return nil
	}
	parts := strings.Split(text, "\n")
	last := len(parts) - 1
	if parts[last] == "" {
		// text ended with a newline; the empty tail is not a line of its own.
		parts = parts[:last]
		last--
	}

	block := make(Block, 0, len(parts))
	for i, p := range parts {
		l := ParseLine(p)
		l.EOL = i < last || strings.HasSuffix(text, "\n")
		block = append(block, l)
	}
	return block
}

// ParseLine decodes a single line (without its terminator).
func ParseLine(s string) Line {
	if s == "" {
		return Line{Kind: Unchanged}
	}
	switch s[0] {
	case AddedPrefix:
		return Line{Kind: Added, Text: s[1:]}
	case RemovedPrefix:
		return Line{Kind: Removed, Text: s[1:]}
	default:
		return Line{Kind: Unchanged, Text: s}
	}
}
