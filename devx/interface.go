package devx

import (
	"github.com/sokinpui/devx.go/internal/normalize"
	"github.com/sokinpui/devx.go/internal/patcher"
)

// Config for using devx as a library.
type Config struct {
	// Languages is the allow-list of fence language tags stripped from
	// candidates. Empty means the built-in list.
	Languages []string
}

// Propose returns the annotated text that replaces selection when it is
// rewritten into candidate. candidate may be a raw model answer: a code fence
// and its language tag are stripped and the selection's indentation is
// restored before diffing.
func Propose(selection, candidate string, config Config) string {
	n := normalize.New(config.Languages)
	snap := normalize.Capture(selection)
	block, _ := Synthesize(n, snap, candidate)
	return snap.Wrap(block.String())
}

// Resolve collapses annotated text according to intent: "accept", "reject"
// or "merge".
func Resolve(annotatedText, intent string) (string, error) {
	i, err := patcher.ParseIntent(intent)
	if err != nil {
		return "", err
	}
	return patcher.ReconcileText(annotatedText, i), nil
}
