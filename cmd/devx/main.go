package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/mattn/go-isatty"

	"github.com/sokinpui/devx.go/cli"
	"github.com/sokinpui/devx.go/devx"
	"github.com/sokinpui/devx.go/internal/tui"
	"github.com/sokinpui/devx.go/internal/ui"
	"github.com/sokinpui/devx.go/model"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := cli.NewRootCommand(func(cfg *cli.Config) error {
		return run(ctx, cfg)
	})
	if err := root.ExecuteContext(ctx); err != nil {
		ui.Error("Error: %v", err)
		stop()
		os.Exit(1)
	}
}

// useSpinner reports whether the TUI may take over stderr. Commands whose
// output goes to stdout as it is produced run without it.
func useSpinner(cfg *cli.Config) bool {
	if cfg.NoAnimation || cfg.Print || cfg.Unified || cfg.Stream {
		return false
	}
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func spinnerLabel(cfg *cli.Config) string {
	switch cfg.Command {
	case cli.CmdEdit:
		if cfg.Source == "" || cfg.Source == "ai" {
			return "Generating AI response..."
		}
	case cli.CmdAsk:
		return "Generating AI response..."
	}
	return "Processing..."
}

func run(ctx context.Context, cfg *cli.Config) error {
	app, err := devx.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Close()

	var summary model.Summary
	if useSpinner(cfg) {
		// The TUI renders the summary itself.
		summary, err = tui.Run(ctx, app, spinnerLabel(cfg))
	} else {
		summary, err = app.Execute(ctx)
		if err == nil {
			ui.PrintSummary(summary)
		}
	}
	var detailed *devx.DetailedError
	if errors.As(err, &detailed) {
		fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", detailed.Stack)
	}
	if err != nil {
		return err
	}

	if summary.Output != "" {
		fmt.Fprint(os.Stdout, summary.Output)
	}
	if summary.Answer != "" {
		fmt.Fprintln(os.Stdout, ui.Answer(summary.Answer))
	}
	return nil
}
