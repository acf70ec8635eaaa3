package devx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sokinpui/devx.go/cli"
	"github.com/sokinpui/devx.go/internal/annotated"
	"github.com/sokinpui/devx.go/internal/config"
	"github.com/sokinpui/devx.go/internal/diff"
	"github.com/sokinpui/devx.go/internal/fs"
	"github.com/sokinpui/devx.go/internal/llm"
	"github.com/sokinpui/devx.go/internal/logger"
	"github.com/sokinpui/devx.go/internal/normalize"
	"github.com/sokinpui/devx.go/internal/nvim"
	"github.com/sokinpui/devx.go/internal/parser"
	"github.com/sokinpui/devx.go/internal/patcher"
	"github.com/sokinpui/devx.go/internal/source"
	"github.com/sokinpui/devx.go/internal/state"
	"github.com/sokinpui/devx.go/internal/thread"
	"github.com/sokinpui/devx.go/model"
)

// Editor is the buffer host. Line ranges are 0-based and end-exclusive.
type Editor interface {
	Lines(path string) ([]string, error)
	ReplaceLines(path string, start, end int, lines []string) error
	Save(path string) error
	Undo(path string) error
	Redo(path string) error
	Close()
}

// EditorFactory connects to an Editor.
type EditorFactory func() (Editor, error)

// App orchestrates the entire application logic.
type App struct {
	cfg            *cli.Config
	settings       *config.Config
	stateManager   *state.Manager
	pathResolver   *fs.PathResolver
	sourceProvider *source.SourceProvider
	normalizer     *normalize.Normalizer
	log            *logger.Logger
	newEditor      EditorFactory
	provider       llm.Provider
	out            io.Writer
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

func (e *DetailedError) Unwrap() error {
	return e.Err
}

func connectNvim() (Editor, error) {
	m, err := nvim.New()
	if err != nil {
		return nil, err
	}
	return m, nil
}

// New creates a new App instance. Flags override the config file.
func New(cfg *cli.Config) (*App, error) {
	settings, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	settings.Override(cfg.Provider, cfg.Model)
	if cfg.LogFile != "" {
		settings.Log.Path = cfg.LogFile
	}

	stateManager, err := state.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state manager: %w", err)
	}
	log, err := logger.New(settings.Log.Path, settings.Log.Development)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	normalizer := normalize.New(settings.Languages)
	log.Debug("settings loaded",
		zap.String("provider", settings.LLM.Provider),
		zap.String("model", settings.LLM.Model),
		zap.Strings("languages", normalizer.Languages()),
		zap.String("state", stateManager.StateDir),
	)

	return &App{
		cfg:            cfg,
		settings:       settings,
		stateManager:   stateManager,
		pathResolver:   fs.NewPathResolver(cfg.LookupDirs),
		sourceProvider: source.New(),
		normalizer:     normalizer,
		log:            log,
		newEditor:      connectNvim,
		out:            os.Stdout,
	}, nil
}

// SetEditorFactory replaces the Neovim connection, mainly for tests.
func (a *App) SetEditorFactory(f EditorFactory) {
	a.newEditor = f
}

// SetProvider sets the model provider instead of building one from the config.
func (a *App) SetProvider(p llm.Provider) {
	a.provider = p
}

// SetSourceProvider replaces the stdin/clipboard reader.
func (a *App) SetSourceProvider(sp *source.SourceProvider) {
	a.sourceProvider = sp
}

// SetOutput sets where streamed answers are written.
func (a *App) SetOutput(w io.Writer) {
	a.out = w
}

// Close flushes the log.
func (a *App) Close() error {
	return a.log.Close()
}

// Execute executes the command selected on the command line.
func (a *App) Execute(ctx context.Context) (summary model.Summary, err error) {
	// Centralized panic recovery.
	defer func() {
		if r := recover(); r != nil {
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	defer func() {
		if err != nil {
			a.log.Error(a.cfg.Command, err)
		}
	}()

	switch a.cfg.Command {
	case cli.CmdUndo:
		return a.undoLastOperation()
	case cli.CmdRedo:
		return a.redoLastOperation()
	case cli.CmdEdit:
		return a.edit(ctx)
	case cli.CmdAsk:
		return a.ask(ctx)
	case cli.CmdAccept, cli.CmdReject, cli.CmdMerge:
		return a.resolve()
	case cli.CmdHunks:
		return a.listHunks()
	case cli.CmdThread:
		return a.thread()
	}
	return model.Summary{}, fmt.Errorf("unknown command %q", a.cfg.Command)
}

func (a *App) target() (string, error) {
	return a.pathResolver.Resolve(a.cfg.File)
}

func (a *App) getProvider() (llm.Provider, error) {
	if a.provider != nil {
		return a.provider, nil
	}
	p, err := llm.New(a.settings)
	if err != nil {
		return nil, err
	}
	a.provider = p
	return p, nil
}

// selectionText returns the selected lines, each ending in a newline.
func selectionText(lines []string, sel model.Selection) (string, error) {
	if sel.Start < 1 || sel.End < sel.Start {
		return "", cli.ErrNoRange
	}
	if sel.End > len(lines) {
		return "", fmt.Errorf("lines %d-%d are outside the buffer (%d lines)", sel.Start, sel.End, len(lines))
	}
	return strings.Join(lines[sel.Start-1:sel.End], "\n") + "\n", nil
}

// textLines splits text into buffer lines. A final newline ends the last line
// rather than starting a new one.
func textLines(text string) []string {
	if text == "" {
		return []string{}
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

// history returns the thread comments to send along with a prompt.
func (a *App) history(th *thread.Thread) []llm.Message {
	msgs := llm.History(th.Recent(a.settings.History.MaxComments))
	return llm.TrimHistory(msgs, a.settings.LLM.ContextTokens)
}

func (a *App) request(msgs []llm.Message) llm.Request {
	return llm.Request{Messages: msgs, MaxTokens: a.settings.LLM.MaxTokens}
}

func promptTokens(msgs []llm.Message) int {
	n := 0
	for _, m := range msgs {
		n += llm.CountTokens(m.Content)
	}
	return n
}

func (a *App) complete(ctx context.Context, p llm.Provider, msgs []llm.Message) (string, error) {
	start := time.Now()
	answer, err := p.Complete(ctx, a.request(msgs))
	a.log.LLMCall(p.Name(), p.Model(), promptTokens(msgs), time.Since(start), err)
	return answer, err
}

// candidate produces the replacement code for an edit.
func (a *App) candidate(ctx context.Context, snap normalize.Snapshot, th *thread.Thread) (string, error) {
	switch a.cfg.Source {
	case source.Stdin, source.Clipboard:
		return a.sourceProvider.GetContent(a.cfg.Source)

	case "answer":
		c, ok := th.LastAnswer()
		if !ok {
			return "", errors.New("the thread of this range has no answer to apply")
		}
		if code, ok := parser.FirstCode(c.Body); ok {
			return strings.TrimSuffix(code, "\n"), nil
		}
		return c.Body, nil
	}

	p, err := a.getProvider()
	if err != nil {
		return "", err
	}
	msgs := llm.EditPrompt(snap.Fenced(), a.history(th), a.cfg.Prompt)
	answer, err := a.complete(ctx, p, msgs)
	if err != nil {
		return "", err
	}

	th.Add(thread.RoleUser, a.cfg.Prompt, "")
	if err := a.stateManager.SaveThread(th); err != nil {
		return "", err
	}
	return answer, nil
}

// Synthesize fits candidate into the selection captured in snap and returns
// the annotated block together with the restored core it was diffed against.
func Synthesize(n *normalize.Normalizer, snap normalize.Snapshot, candidate string) (annotated.Block, string) {
	restored := n.Reframe(snap, candidate)
	return diff.Lines(snap.Core, restored), restored
}

func hunkInfos(path string, lines []string, offset int) []model.HunkInfo {
	var infos []model.HunkInfo
	for _, h := range annotated.Hunks(lines) {
		infos = append(infos, model.HunkInfo{
			Path:    path,
			Start:   offset + h.Start + 1,
			End:     offset + h.End + 1,
			Added:   h.Added,
			Removed: h.Removed,
		})
	}
	return infos
}

func (a *App) edit(ctx context.Context) (model.Summary, error) {
	path, err := a.target()
	if err != nil {
		return model.Summary{}, err
	}
	editor, err := a.newEditor()
	if err != nil {
		return model.Summary{}, err
	}
	defer editor.Close()

	lines, err := editor.Lines(path)
	if err != nil {
		return model.Summary{}, err
	}
	sel := a.cfg.Selection
	original, err := selectionText(lines, sel)
	if err != nil {
		return model.Summary{}, err
	}

	snap := normalize.Capture(original)
	th := a.stateManager.Thread(path, sel.Start, sel.End)
	candidate, err := a.candidate(ctx, snap, th)
	if err != nil {
		return model.Summary{}, err
	}
	if strings.TrimSpace(candidate) == "" {
		return model.Summary{Message: "Source is empty. Nothing to process."}, nil
	}

	block, restored := Synthesize(a.normalizer, snap, candidate)
	added, removed := block.Stats()
	if !block.HasChanges() {
		return model.Summary{Message: "No changes suggested."}, nil
	}
	rel := fs.Relativize(path)

	switch {
	case a.cfg.Unified:
		out, err := diff.Unified(rel, snap.Core, restored, 3)
		if err != nil {
			return model.Summary{}, err
		}
		return model.Summary{Output: out}, nil
	case a.cfg.Print:
		rendered := block.String()
		if a.cfg.Style == "conflict" {
			rendered = block.Conflict()
		}
		return model.Summary{Output: snap.Wrap(rendered)}, nil
	}

	text := snap.Wrap(block.String())
	newLines := textLines(text)

	beforeHash, _ := fs.GetFileSHA256(path)
	if err := editor.ReplaceLines(path, sel.Start-1, sel.End, newLines); err != nil {
		return model.Summary{Failed: []string{rel}}, err
	}
	end := sel.Start + len(newLines) - 1

	if !a.cfg.Buffer {
		if err := editor.Save(path); err != nil {
			return model.Summary{Failed: []string{rel}}, err
		}
		hash, _ := fs.GetFileSHA256(path)
		op := state.Operation{
			Action:      cli.CmdEdit,
			Path:        path,
			Start:       sel.Start,
			End:         end,
			Block:       text,
			BeforeHash:  beforeHash,
			ContentHash: hash,
		}
		if err := a.stateManager.Write([]state.Operation{op}); err != nil {
			return model.Summary{}, err
		}
	}
	a.log.Edit(path, sel.Start, end, added, removed)

	return model.Summary{
		Modified: []string{rel},
		Hunks:    hunkInfos(rel, newLines, sel.Start-1),
		Message:  fmt.Sprintf("Suggested %d addition(s) and %d removal(s) in lines %d-%d.", added, removed, sel.Start, end),
	}, nil
}

func (a *App) ask(ctx context.Context) (model.Summary, error) {
	path, err := a.target()
	if err != nil {
		return model.Summary{}, err
	}
	editor, err := a.newEditor()
	if err != nil {
		return model.Summary{}, err
	}
	defer editor.Close()

	lines, err := editor.Lines(path)
	if err != nil {
		return model.Summary{}, err
	}
	sel := a.cfg.Selection
	original, err := selectionText(lines, sel)
	if err != nil {
		return model.Summary{}, err
	}
	snap := normalize.Capture(original)
	th := a.stateManager.Thread(path, sel.Start, sel.End)

	p, err := a.getProvider()
	if err != nil {
		return model.Summary{}, err
	}
	msgs := llm.AskPrompt(snap.Fenced(), a.history(th), a.cfg.Prompt)

	var answer string
	streamed := false
	if s, ok := p.(llm.Streamer); ok && a.cfg.Stream {
		start := time.Now()
		answer, err = s.Stream(ctx, a.request(msgs), func(delta string) {
			fmt.Fprint(a.out, delta)
		})
		fmt.Fprintln(a.out)
		a.log.LLMCall(p.Name(), p.Model(), promptTokens(msgs), time.Since(start), err)
		streamed = true
	} else {
		answer, err = a.complete(ctx, p, msgs)
	}
	if err != nil {
		return model.Summary{}, err
	}

	th.Add(thread.RoleUser, a.cfg.Prompt, "")
	th.Add(thread.RoleAssistant, answer, "")
	if err := a.stateManager.SaveThread(th); err != nil {
		return model.Summary{}, err
	}

	summary := model.Summary{
		Message: fmt.Sprintf("Answer added to the thread of %s:%d-%d (%d comments).", fs.Relativize(path), sel.Start, sel.End, len(th.Comments)),
	}
	if !streamed {
		summary.Answer = answer
	}
	return summary, nil
}

// pendingRegion finds the last edit recorded for path in lines. end is
// exclusive.
func (a *App) pendingRegion(path string, lines []string) (start, end int, block string, ok bool) {
	op, found := a.stateManager.PendingEdit(path)
	if !found {
		return 0, 0, "", false
	}
	s, e, found := patcher.Locate(lines, annotated.Parse(op.Block), op.Start-1)
	if !found {
		a.log.Info("pending edit not found in buffer, resolving all hunks")
		return 0, 0, "", false
	}
	return s, e + 1, op.Block, true
}

func (a *App) resolve() (model.Summary, error) {
	intent, err := patcher.ParseIntent(a.cfg.Command)
	if err != nil {
		return model.Summary{}, err
	}
	path, err := a.target()
	if err != nil {
		return model.Summary{}, err
	}
	editor, err := a.newEditor()
	if err != nil {
		return model.Summary{}, err
	}
	defer editor.Close()

	lines, err := editor.Lines(path)
	if err != nil {
		return model.Summary{}, err
	}

	var (
		start, end  int
		replacement []string
		consumed    string
		resolved    int
	)
	sel := a.cfg.Selection
	if sel.Start > 0 {
		if sel.End > len(lines) {
			return model.Summary{}, fmt.Errorf("lines %d-%d are outside the buffer (%d lines)", sel.Start, sel.End, len(lines))
		}
		start, end = sel.Start-1, sel.End
		replacement = patcher.ResolveLines(lines[start:end], intent)
		resolved = len(annotated.Hunks(lines[start:end]))
	} else if s, e, block, ok := a.pendingRegion(path, lines); ok {
		start, end, consumed = s, e, block
		replacement = patcher.ResolveLines(lines[start:end], intent)
		resolved = len(annotated.Hunks(lines[start:end]))
	} else {
		var out []string
		out, resolved = patcher.ResolveHunks(lines, intent)
		if resolved == 0 {
			return model.Summary{Message: fmt.Sprintf("No hunks to %s.", intent)}, nil
		}
		start, end, replacement = 0, len(lines), out
	}

	rel := fs.Relativize(path)
	beforeHash, _ := fs.GetFileSHA256(path)
	if err := editor.ReplaceLines(path, start, end, replacement); err != nil {
		return model.Summary{Failed: []string{rel}}, err
	}

	if !a.cfg.Buffer {
		if err := editor.Save(path); err != nil {
			return model.Summary{Failed: []string{rel}}, err
		}
		hash, _ := fs.GetFileSHA256(path)
		op := state.Operation{
			Action:      intent.String(),
			Path:        path,
			Start:       start + 1,
			End:         start + len(replacement),
			Block:       consumed,
			BeforeHash:  beforeHash,
			ContentHash: hash,
		}
		if err := a.stateManager.Write([]state.Operation{op}); err != nil {
			return model.Summary{}, err
		}
	}
	a.log.Resolve(path, intent.String(), start+1, start+len(replacement))

	return model.Summary{
		Modified: []string{rel},
		Message:  fmt.Sprintf("Resolved %d hunk(s) with %s.", resolved, intent),
	}, nil
}

func (a *App) listHunks() (model.Summary, error) {
	path, err := a.target()
	if err != nil {
		return model.Summary{}, err
	}
	editor, err := a.newEditor()
	if err != nil {
		return model.Summary{}, err
	}
	defer editor.Close()

	lines, err := editor.Lines(path)
	if err != nil {
		return model.Summary{}, err
	}
	rel := fs.Relativize(path)
	infos := hunkInfos(rel, lines, 0)
	if len(infos) == 0 {
		return model.Summary{Message: fmt.Sprintf("No hunks in %s.", rel)}, nil
	}
	return model.Summary{Hunks: infos}, nil
}

// writeComments renders the comments of th, oldest first.
func writeComments(sb *strings.Builder, th *thread.Thread) {
	for _, c := range th.Comments {
		label := ""
		if c.Label != "" {
			label = " [" + c.Label + "]"
		}
		fmt.Fprintf(sb, "#%d %s%s %s\n%s\n\n", c.ID, c.Author, label, c.Created.Local().Format(time.DateTime), strings.TrimRight(c.Body, "\n"))
	}
}

// fileThreads lists every thread opened on path, by start line.
func (a *App) fileThreads(path string) (model.Summary, error) {
	rel := fs.Relativize(path)
	var sb strings.Builder
	for _, th := range a.stateManager.Threads(path) {
		if len(th.Comments) == 0 {
			continue
		}
		fmt.Fprintf(&sb, "== %s:%d-%d (%d comments)\n\n", rel, th.Start, th.End, len(th.Comments))
		writeComments(&sb, th)
	}
	if sb.Len() == 0 {
		return model.Summary{Message: fmt.Sprintf("No threads in %s.", rel)}, nil
	}
	return model.Summary{Output: sb.String()}, nil
}

func (a *App) thread() (model.Summary, error) {
	path, err := a.target()
	if err != nil {
		return model.Summary{}, err
	}
	sel := a.cfg.Selection
	if sel.Start == 0 {
		return a.fileThreads(path)
	}
	th := a.stateManager.Thread(path, sel.Start, sel.End)

	switch {
	case a.cfg.Clear:
		if err := a.stateManager.DeleteThread(th.Key()); err != nil {
			return model.Summary{}, err
		}
		return model.Summary{Message: "Thread cleared."}, nil

	case a.cfg.Delete > 0:
		if !th.Delete(a.cfg.Delete) {
			return model.Summary{}, fmt.Errorf("no comment %d in this thread", a.cfg.Delete)
		}
		if err := a.stateManager.SaveThread(th); err != nil {
			return model.Summary{}, err
		}
		return model.Summary{Message: fmt.Sprintf("Deleted comment %d.", a.cfg.Delete)}, nil
	}

	if len(th.Comments) == 0 {
		return model.Summary{Message: "No comments in this thread."}, nil
	}
	var sb strings.Builder
	writeComments(&sb, th)
	return model.Summary{Output: sb.String()}, nil
}

// undoLastOperation handles the undo logic.
func (a *App) undoLastOperation() (model.Summary, error) {
	ops, err := a.stateManager.GetOperationsToUndo()
	if err != nil {
		return model.Summary{}, err
	}
	if len(ops) == 0 {
		return model.Summary{Message: "No operation to undo."}, nil
	}

	editor, err := a.newEditor()
	if err != nil {
		return model.Summary{}, err
	}
	defer editor.Close()

	var undone, failed []string
	for i := len(ops) - 1; i >= 0; i-- {
		op := ops[i]
		// Core safety check: if the file has been changed, abort the undo for this file.
		currentHash, err := fs.GetFileSHA256(op.Path)
		if err != nil || currentHash != op.ContentHash || editor.Undo(op.Path) != nil {
			failed = append(failed, fs.Relativize(op.Path))
			continue
		}
		undone = append(undone, fs.Relativize(op.Path))
	}

	return model.Summary{
		Modified: undone,
		Failed:   failed,
		Message:  "Undid last operation.",
	}, nil
}

// redoLastOperation handles the redo logic.
func (a *App) redoLastOperation() (model.Summary, error) {
	ops, err := a.stateManager.GetOperationsToRedo()
	if err != nil {
		return model.Summary{}, err
	}
	if len(ops) == 0 {
		return model.Summary{Message: "No operation to redo."}, nil
	}

	editor, err := a.newEditor()
	if err != nil {
		return model.Summary{}, err
	}
	defer editor.Close()

	var redone, failed []string
	for _, op := range ops {
		currentHash, err := fs.GetFileSHA256(op.Path)
		if err != nil || currentHash != op.BeforeHash || editor.Redo(op.Path) != nil {
			failed = append(failed, fs.Relativize(op.Path))
			continue
		}
		redone = append(redone, fs.Relativize(op.Path))
	}

	return model.Summary{
		Modified: redone,
		Failed:   failed,
		Message:  "Redid last undone operation.",
	}, nil
}
