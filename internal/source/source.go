package source

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"

	"github.com/sokinpui/devx.go/internal/ui"
)

const (
	Stdin     = "stdin"
	Clipboard = "clipboard"
)

// SourceProvider reads replacement code that did not come from the model.
type SourceProvider struct {
	stdin         io.Reader
	readClipboard func() (string, error)
}

// New creates a SourceProvider over the process stdin and the system
// clipboard.
func New() *SourceProvider {
	return &SourceProvider{stdin: os.Stdin, readClipboard: clipboard.ReadAll}
}

// NewWith creates a SourceProvider over the given readers.
func NewWith(stdin io.Reader, readClipboard func() (string, error)) *SourceProvider {
	return &SourceProvider{stdin: stdin, readClipboard: readClipboard}
}

// GetContent retrieves content from stdin or the clipboard. Empty content is
// returned as "" without error.
func (sp *SourceProvider) GetContent(kind string) (string, error) {
	switch kind {
	case Stdin:
		ui.Header("--- Reading from stdin ---")
		content, err := io.ReadAll(sp.stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return string(content), nil

	case Clipboard:
		ui.Header("--- Reading from clipboard ---")
		content, err := sp.readClipboard()
		if err != nil {
			return "", fmt.Errorf("failed to read from clipboard: %w", err)
		}
		if strings.TrimSpace(content) == "" {
			ui.Warning("Clipboard is empty. Nothing to process.")
			return "", nil
		}
		return content, nil
	}
	return "", fmt.Errorf("unknown source %q", kind)
}
