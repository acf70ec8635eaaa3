package model

// Selection is a line range of a file. Start and End are 1-based and
// inclusive, the way Neovim numbers lines.
type Selection struct {
	Path  string
	Start int
	End   int
}

// Len returns the number of lines in the selection.
func (s Selection) Len() int {
	return s.End - s.Start + 1
}

// Summary holds the results of an operation for display.
type Summary struct {
	Modified []string
	Failed   []string
	Message  string
	// Output is printed to stdout as is (annotated text, unified diffs).
	Output string
	// Answer is a markdown answer from the model.
	Answer string
	Hunks  []HunkInfo
}

// HunkInfo describes a run of changed lines in a buffer, 1-based.
type HunkInfo struct {
	Path    string
	Start   int
	End     int
	Added   int
	Removed int
}
