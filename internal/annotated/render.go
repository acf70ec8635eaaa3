package annotated

import "strings"

const (
	conflictStart = "<<<<<<< original"
	conflictSep   = "======="
	conflictEnd   = ">>>>>>> suggested"
)

// Conflict renders the block with git-style conflict markers instead of line
// prefixes. Each run of changed lines becomes one conflict section holding the
// removed lines first and the added lines second.
func (b Block) Conflict() string {
	var sb strings.Builder
	var removed, added []string

	flush := func() {
		if len(removed) == 0 && len(added) == 0 {
			return
		}
		sb.WriteString(conflictStart + "\n")
		for _, l := range removed {
			sb.WriteString(l + "\n")
		}
		sb.WriteString(conflictSep + "\n")
		for _, l := range added {
			sb.WriteString(l + "\n")
		}
		sb.WriteString(conflictEnd + "\n")
		removed, added = nil, nil
	}

	for _, l := range b {
		switch l.Kind {
		case Removed:
			removed = append(removed, l.Text)
		case Added:
			added = append(added, l.Text)
		default:
			flush()
			sb.WriteString(l.Text)
			if l.EOL {
				sb.WriteByte('\n')
			}
		}
	}
	flush()
	return sb.String()
}
