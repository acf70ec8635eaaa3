package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"

	"github.com/sokinpui/devx.go/model"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	PathColor    = color.New(color.FgYellow)
	PromptColor  = color.New(color.FgMagenta)
	AddedColor   = color.New(color.FgGreen)
	RemovedColor = color.New(color.FgRed)
)

func Header(format string, a ...interface{}) {
	HeaderColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Info(format string, a ...interface{}) {
	InfoColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Success(format string, a ...interface{}) {
	SuccessColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Warning(format string, a ...interface{}) {
	WarningColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Error(format string, a ...interface{}) {
	ErrorColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Path(format string, a ...interface{}) {
	PathColor.Fprintf(os.Stderr, "  "+format+"\n", a...)
}

func Prompt(format string, a ...interface{}) string {
	return PromptColor.Sprintf(format, a...)
}

// --- Summaries ---

// PrintSummary reports the outcome of a command on stderr.
func PrintSummary(s model.Summary) {
	if s.Message != "" {
		Header("%s", s.Message)
	}

	if len(s.Modified) > 0 {
		Success("Updated %d file(s):", len(s.Modified))
		for _, f := range s.Modified {
			fmt.Fprintf(os.Stderr, "  - %s\n", f)
		}
	}
	if len(s.Hunks) > 0 {
		Info("%d hunk(s):", len(s.Hunks))
		for _, h := range s.Hunks {
			fmt.Fprintf(os.Stderr, "  %s:%d-%d %s %s\n", h.Path, h.Start, h.End,
				AddedColor.Sprintf("+%d", h.Added), RemovedColor.Sprintf("-%d", h.Removed))
		}
	}
	if len(s.Failed) > 0 {
		Error("Failed to process %d file(s):", len(s.Failed))
		for _, f := range s.Failed {
			fmt.Fprintf(os.Stderr, "  - %s\n", f)
		}
	}
}
