package diff

import (
	"fmt"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"
)

const defaultContext = 3

// Unified renders a classic unified diff of oldText against newText for
// previews. Unlike Lines it is whitespace sensitive.
func Unified(name, oldText, newText string, context int) (string, error) {
	if context <= 0 {
		context = defaultContext
	}
	u := difflib.UnifiedDiff{
		A:        splitKeepNL(oldText),
		B:        splitKeepNL(newText),
		FromFile: "a/" + name,
		ToFile:   "b/" + name,
		Context:  context,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return "", fmt.Errorf("failed to render unified diff for %s: %w", name, err)
	}
	return s, nil
}

// splitKeepNL splits s into newline-terminated lines. A missing final newline
// is added so the last line compares equal to its terminated twin.
func splitKeepNL(s string) []string {
	if s == "" {
		return nil
	}
	return difflib.SplitLines(strings.TrimSuffix(s, "\n"))
}
