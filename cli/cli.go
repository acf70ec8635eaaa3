package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sokinpui/devx.go/model"
)

// Commands understood by the app.
const (
	CmdEdit   = "edit"
	CmdAsk    = "ask"
	CmdAccept = "accept"
	CmdReject = "reject"
	CmdMerge  = "merge"
	CmdHunks  = "hunks"
	CmdThread = "thread"
	CmdUndo   = "undo"
	CmdRedo   = "redo"
)

// ErrNoRange is returned when a command needs a line range and none was given.
var ErrNoRange = errors.New("a line range is required (-L start,end)")

// Config holds all the command-line flag values.
type Config struct {
	Command string
	File    string
	Range   string
	// Selection is Range parsed; zero when no range was given.
	Selection model.Selection
	// Prompt is the instruction of edit or the question of ask.
	Prompt string

	Buffer      bool
	Print       bool
	Unified     bool
	Style       string
	Source      string
	Stream      bool
	NoAnimation bool

	ConfigPath string
	Provider   string
	Model      string
	LookupDirs []string
	LogFile    string

	Clear  bool
	Delete int
}

// ParseRange parses "start,end" (or a single line) into 1-based inclusive
// line numbers.
func ParseRange(s string) (start, end int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, ErrNoRange
	}
	parts := strings.SplitN(s, ",", 2)
	start, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range start %q", parts[0])
	}
	end = start
	if len(parts) == 2 {
		end, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return 0, 0, fmt.Errorf("invalid range end %q", parts[1])
		}
	}
	if start < 1 || end < start {
		return 0, 0, fmt.Errorf("invalid range %q: need 1 <= start <= end", s)
	}
	return start, end, nil
}

func (c *Config) resolveSelection() error {
	if c.Range == "" {
		return nil
	}
	start, end, err := ParseRange(c.Range)
	if err != nil {
		return err
	}
	c.Selection = model.Selection{Path: c.File, Start: start, End: end}
	return nil
}

// Validate checks flag combinations for c.Command.
func (c *Config) Validate() error {
	switch c.Command {
	case CmdUndo, CmdRedo:
		return nil
	}
	if c.File == "" {
		return errors.New("a file is required (-f path)")
	}
	if err := c.resolveSelection(); err != nil {
		return err
	}

	switch c.Command {
	case CmdEdit, CmdAsk:
		if c.Range == "" {
			return ErrNoRange
		}
	case CmdThread:
		if c.Range == "" && (c.Clear || c.Delete > 0) {
			return ErrNoRange
		}
	}

	switch c.Command {
	case CmdEdit:
		if c.Print && c.Unified {
			return errors.New("--print and --unified are mutually exclusive")
		}
		switch c.Style {
		case "", "inline", "conflict":
		default:
			return fmt.Errorf("unknown style %q (inline, conflict)", c.Style)
		}
		switch c.Source {
		case "", "ai":
			if strings.TrimSpace(c.Prompt) == "" {
				return errors.New("an instruction is required")
			}
		case "stdin", "clipboard", "answer":
		default:
			return fmt.Errorf("unknown source %q (ai, stdin, clipboard, answer)", c.Source)
		}
	case CmdAsk:
		if strings.TrimSpace(c.Prompt) == "" {
			return errors.New("a question is required")
		}
	case CmdThread:
		if c.Clear && c.Delete > 0 {
			return errors.New("--clear and --delete are mutually exclusive")
		}
	}
	return nil
}

func addTargetFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.File, "file", "f", "", "File whose buffer is read and updated.")
	fs.StringVarP(&cfg.Range, "lines", "L", "", "1-based inclusive line range 'start,end'.")
	fs.StringSliceVar(&cfg.LookupDirs, "lookup-dir", []string{}, "Directories searched for relative file paths (default: working directory).")
}

func addWriteFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.BoolVarP(&cfg.Buffer, "buffer", "b", false, "Update buffers in Neovim without saving them to disk (changes are saved by default).")
}

func addModelFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Provider, "provider", "", "Model provider: openai or gemini (overrides the config file).")
	fs.StringVar(&cfg.Model, "model", "", "Model name (overrides the config file).")
}

// NewRootCommand builds the command tree. run is called with the parsed and
// validated Config of whichever subcommand was invoked.
func NewRootCommand(run func(*Config) error) *cobra.Command {
	cfg := &Config{}

	root := &cobra.Command{
		Use:           "devx",
		Short:         "Ask a model to explain or rewrite code in your Neovim buffers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&cfg.ConfigPath, "config", "", "Config file (default: ~/.config/devx/config.yaml).")
	pf.StringVar(&cfg.LogFile, "log-file", "", "Write structured logs to this file.")
	pf.BoolVar(&cfg.NoAnimation, "no-animation", false, "Disable loading spinner.")

	runAs := func(name string) func(*cobra.Command, []string) error {
		return func(_ *cobra.Command, args []string) error {
			cfg.Command = name
			cfg.Prompt = strings.Join(args, " ")
			if err := cfg.Validate(); err != nil {
				return err
			}
			return run(cfg)
		}
	}

	edit := &cobra.Command{
		Use:   "edit -f FILE -L START,END [INSTRUCTION...]",
		Short: "Rewrite a range and insert the change as an inline +/- diff",
		Example: `  devx edit -f main.go -L 10,24 use a switch instead of if/else
  pbpaste | devx edit -f main.go -L 10,24 --source stdin --print`,
		RunE: runAs(CmdEdit),
	}
	addTargetFlags(edit.Flags(), cfg)
	addWriteFlags(edit.Flags(), cfg)
	addModelFlags(edit.Flags(), cfg)
	edit.Flags().StringVar(&cfg.Source, "source", "ai", "Where the rewrite comes from: ai, stdin, clipboard or answer (the last answer in the range's thread).")
	edit.Flags().BoolVar(&cfg.Print, "print", false, "Print the annotated diff instead of writing it to the buffer.")
	edit.Flags().BoolVar(&cfg.Unified, "unified", false, "Print a unified diff instead of writing to the buffer.")
	edit.Flags().StringVar(&cfg.Style, "style", "inline", "Printed diff style with --print: inline or conflict.")

	ask := &cobra.Command{
		Use:   "ask -f FILE -L START,END QUESTION...",
		Short: "Ask a question about a range; the answer joins the range's thread",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAs(CmdAsk),
	}
	addTargetFlags(ask.Flags(), cfg)
	addModelFlags(ask.Flags(), cfg)
	ask.Flags().BoolVar(&cfg.Stream, "stream", false, "Stream the answer as it is generated.")

	resolve := func(name, short string) *cobra.Command {
		c := &cobra.Command{
			Use:   name + " -f FILE [-L START,END]",
			Short: short,
			Long: short + `.

With -L, the range is resolved. Otherwise the last pending edit of the file is
located and resolved; if there is none, every hunk in the buffer is.`,
			Args: cobra.NoArgs,
			RunE: runAs(name),
		}
		addTargetFlags(c.Flags(), cfg)
		addWriteFlags(c.Flags(), cfg)
		return c
	}

	hunks := &cobra.Command{
		Use:   "hunks -f FILE",
		Short: "List the +/- hunks of a buffer",
		Args:  cobra.NoArgs,
		RunE:  runAs(CmdHunks),
	}
	addTargetFlags(hunks.Flags(), cfg)

	thread := &cobra.Command{
		Use:   "thread -f FILE [-L START,END]",
		Short: "Show, prune or clear the comment thread of a range",
		Long: `Show, prune or clear the comment thread of a range.

Without -L, every thread of the file is listed.`,
		Args:  cobra.NoArgs,
		RunE:  runAs(CmdThread),
	}
	addTargetFlags(thread.Flags(), cfg)
	thread.Flags().BoolVar(&cfg.Clear, "clear", false, "Delete the whole thread.")
	thread.Flags().IntVar(&cfg.Delete, "delete", 0, "Delete the comment with this ID.")

	undo := &cobra.Command{
		Use:   "undo",
		Short: "Undo the last operation",
		Args:  cobra.NoArgs,
		RunE:  runAs(CmdUndo),
	}
	redo := &cobra.Command{
		Use:   "redo",
		Short: "Redo the last undone operation",
		Args:  cobra.NoArgs,
		RunE:  runAs(CmdRedo),
	}

	root.AddCommand(
		edit,
		ask,
		resolve(CmdAccept, "Keep the suggested lines and drop the original ones"),
		resolve(CmdReject, "Keep the original lines and drop the suggested ones"),
		resolve(CmdMerge, "Keep both versions without their +/- markers"),
		hunks,
		thread,
		undo,
		redo,
	)
	return root
}
