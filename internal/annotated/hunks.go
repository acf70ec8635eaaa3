package annotated

// Hunk is a run of consecutive changed lines in a buffer. Start and End are
// 0-based, inclusive line indexes.
type Hunk struct {
	Start   int
	End     int
	Added   int
	Removed int
}

// Len returns the number of lines in the hunk.
func (h Hunk) Len() int {
	return h.End - h.Start + 1
}

// Hunks groups buffer lines that start with '+' or '-' into maximal runs.
// The marker must be in the first column, as ParseLine reads it: an indented
// "- item" is ordinary text.
func Hunks(lines []string) []Hunk {
	var hunks []Hunk
	cur := Hunk{Start: -1}

	for i, line := range lines {
		kind := ParseLine(line).Kind
		isAdded := kind == Added
		isRemoved := kind == Removed

		if !isAdded && !isRemoved {
			if cur.Start != -1 {
				cur.End = i - 1
				hunks = append(hunks, cur)
				cur = Hunk{Start: -1}
			}
			continue
		}

		if cur.Start == -1 {
			cur.Start = i
		}
		if isAdded {
			cur.Added++
		} else {
			cur.Removed++
		}
	}

	if cur.Start != -1 {
		cur.End = len(lines) - 1
		hunks = append(hunks, cur)
	}
	return hunks
}
