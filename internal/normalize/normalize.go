// Package normalize turns a captured code selection, and the code a model sends
// back for it, into comparable form.
//
// A selection is split into its blank-line framing and a core; the core loses
// its common indentation before it is shown to the model. The model's answer
// loses its markdown fence and language tag and gets the indentation back.
// Every function here is total: malformed input is passed through, never
// rejected.
package normalize

import (
	"strings"
	"unicode"
)

// Framing is a code block split into its leading blank lines, its core and its
// trailing blank lines. Leading + Core + Trailing is the original block.
type Framing struct {
	// Leading holds whole blank lines, each with its newline.
	Leading string
	Core    string
	// Trailing holds everything after the last non-blank line, starting with
	// that line's newline.
	Trailing string
}

// Wrap puts text back between the blank runs of f. If text already ends in a
// newline, the newline that separated the core from Trailing is not repeated.
func (f Framing) Wrap(text string) string {
	trailing := f.Trailing
	if strings.HasSuffix(text, "\n") {
		trailing = strings.TrimPrefix(trailing, "\n")
	}
	return f.Leading + text + trailing
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

// StripFraming splits block into leading blank lines, core and trailing blank
// lines. A block made only of blank lines is all framing and has an empty core.
func StripFraming(block string) Framing {
	lines := strings.Split(block, "\n")

	first := 0
	for first < len(lines) && isBlank(lines[first]) {
		first++
	}
	if first == len(lines) {
		return Framing{Leading: block}
	}

	last := len(lines) - 1
	for last > first && isBlank(lines[last]) {
		last--
	}

	// Byte offsets of the core inside block.
	start := 0
	for _, l := range lines[:first] {
		start += len(l) + 1
	}
	end := start
	for i, l := range lines[first : last+1] {
		if i > 0 {
			end++
		}
		end += len(l)
	}

	return Framing{
		Leading:  block[:start],
		Core:     block[start:end],
		Trailing: block[end:],
	}
}

// leadingWhitespace returns the whitespace prefix of line.
func leadingWhitespace(line string) string {
	trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
	return line[:len(line)-len(trimmed)]
}

// CommonIndent returns the shortest leading whitespace run among the non-blank
// lines of core. On ties the first one wins. It returns "" when core has no
// non-blank line.
func CommonIndent(core string) string {
	var (
		indent string
		found  bool
	)
	for _, line := range strings.Split(core, "\n") {
		if isBlank(line) {
			continue
		}
		ws := leadingWhitespace(line)
		if !found || len(ws) < len(indent) {
			indent = ws
			found = true
		}
	}
	return indent
}

// StripIndent removes one occurrence of indent from the start of every line
// that begins with it. Other lines are left alone.
func StripIndent(core, indent string) string {
	if indent == "" {
		return core
	}
	lines := strings.Split(core, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(line, indent)
	}
	return strings.Join(lines, "\n")
}

// RestoreIndent prepends indent to every line of dedented.
func RestoreIndent(dedented, indent string) string {
	if indent == "" {
		return dedented
	}
	lines := strings.Split(dedented, "\n")
	for i, line := range lines {
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}
