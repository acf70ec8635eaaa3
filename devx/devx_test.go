package devx_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/devx.go/cli"
	"github.com/sokinpui/devx.go/devx"
	"github.com/sokinpui/devx.go/internal/llm"
	"github.com/sokinpui/devx.go/internal/source"
	"github.com/sokinpui/devx.go/model"
)

// fakeEditor keeps buffers in memory, writes them to disk on Save and keeps
// a per-buffer undo tree of one branch.
type fakeEditor struct {
	buffers map[string][]string
	undo    map[string][][]string
	redo    map[string][][]string
}

func newFakeEditor() *fakeEditor {
	return &fakeEditor{
		buffers: map[string][]string{},
		undo:    map[string][][]string{},
		redo:    map[string][][]string{},
	}
}

func (e *fakeEditor) Lines(path string) ([]string, error) {
	if lines, ok := e.buffers[path]; ok {
		return append([]string(nil), lines...), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
	e.buffers[path] = lines
	return append([]string(nil), lines...), nil
}

func (e *fakeEditor) ReplaceLines(path string, start, end int, lines []string) error {
	cur, err := e.Lines(path)
	if err != nil {
		return err
	}
	e.undo[path] = append(e.undo[path], cur)
	e.redo[path] = nil

	next := append([]string(nil), cur[:start]...)
	next = append(next, lines...)
	next = append(next, cur[end:]...)
	e.buffers[path] = next
	return nil
}

func (e *fakeEditor) Save(path string) error {
	return os.WriteFile(path, []byte(strings.Join(e.buffers[path], "\n")+"\n"), 0644)
}

func (e *fakeEditor) Undo(path string) error {
	stack := e.undo[path]
	if len(stack) == 0 {
		return nil
	}
	e.redo[path] = append(e.redo[path], e.buffers[path])
	e.buffers[path] = stack[len(stack)-1]
	e.undo[path] = stack[:len(stack)-1]
	return e.Save(path)
}

func (e *fakeEditor) Redo(path string) error {
	stack := e.redo[path]
	if len(stack) == 0 {
		return nil
	}
	e.undo[path] = append(e.undo[path], e.buffers[path])
	e.buffers[path] = stack[len(stack)-1]
	e.redo[path] = stack[:len(stack)-1]
	return e.Save(path)
}

func (e *fakeEditor) Close() {}

type harness struct {
	t      *testing.T
	dir    string
	editor *fakeEditor
	mock   *llm.Mock
}

func newHarness(t *testing.T, responses ...string) *harness {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	return &harness{t: t, dir: dir, editor: newFakeEditor(), mock: llm.NewMock(responses...)}
}

func (h *harness) write(name, content string) string {
	h.t.Helper()
	path := filepath.Join(h.dir, name)
	require.NoError(h.t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func (h *harness) read(name string) string {
	h.t.Helper()
	data, err := os.ReadFile(filepath.Join(h.dir, name))
	require.NoError(h.t, err)
	return string(data)
}

func (h *harness) run(cfg *cli.Config) (model.Summary, error) {
	h.t.Helper()
	if cfg.Range != "" {
		start, end, err := cli.ParseRange(cfg.Range)
		require.NoError(h.t, err)
		cfg.Selection = model.Selection{Path: cfg.File, Start: start, End: end}
	}
	app, err := devx.New(cfg)
	require.NoError(h.t, err)
	defer app.Close()
	app.SetEditorFactory(func() (devx.Editor, error) { return h.editor, nil })
	app.SetProvider(h.mock)
	return app.Execute(context.Background())
}

const mainGo = "package main\n\nfunc f() int {\n\treturn 1\n}\n"

func TestEditAcceptUndoRedo(t *testing.T) {
	h := newHarness(t, "```go\nfunc f() int {\n\treturn 2\n}\n```")
	h.write("main.go", mainGo)

	summary, err := h.run(&cli.Config{Command: cli.CmdEdit, File: "main.go", Range: "3,5", Prompt: "return 2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, summary.Modified)
	assert.Equal(t, []model.HunkInfo{{Path: "main.go", Start: 4, End: 5, Added: 1, Removed: 1}}, summary.Hunks)
	annotatedFile := "package main\n\nfunc f() int {\n-\treturn 1\n+\treturn 2\n}\n"
	assert.Equal(t, annotatedFile, h.read("main.go"))

	reqs := h.mock.Requests()
	require.Len(t, reqs, 1)
	msgs := reqs[0].Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, llm.EditInstruction, msgs[0].Content)
	assert.Equal(t, "```\nfunc f() int {\n\treturn 1\n}\n```", msgs[1].Content)
	assert.Equal(t, "return 2", msgs[2].Content)
	assert.Equal(t, 1000, reqs[0].MaxTokens)

	summary, err = h.run(&cli.Config{Command: cli.CmdAccept, File: "main.go"})
	require.NoError(t, err)
	assert.Equal(t, "Resolved 1 hunk(s) with accept.", summary.Message)
	accepted := "package main\n\nfunc f() int {\n\treturn 2\n}\n"
	assert.Equal(t, accepted, h.read("main.go"))

	summary, err = h.run(&cli.Config{Command: cli.CmdAccept, File: "main.go"})
	require.NoError(t, err)
	assert.Equal(t, "No hunks to accept.", summary.Message)

	summary, err = h.run(&cli.Config{Command: cli.CmdUndo})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, summary.Modified)
	assert.Equal(t, annotatedFile, h.read("main.go"))

	summary, err = h.run(&cli.Config{Command: cli.CmdRedo})
	require.NoError(t, err)
	assert.Empty(t, summary.Failed)
	assert.Equal(t, accepted, h.read("main.go"))
}

func TestEditPendingEditMovedDown(t *testing.T) {
	h := newHarness(t, "```go\nfunc f() int {\n\treturn 2\n}\n```")
	h.write("main.go", mainGo)

	_, err := h.run(&cli.Config{Command: cli.CmdEdit, File: "main.go", Range: "3,5", Prompt: "return 2"})
	require.NoError(t, err)

	// Lines inserted above the edit after it was made.
	path := filepath.Join(h.dir, "main.go")
	require.NoError(t, h.editor.ReplaceLines(path, 1, 1, []string{"// added later", ""}))

	_, err = h.run(&cli.Config{Command: cli.CmdReject, File: "main.go", Buffer: true})
	require.NoError(t, err)
	lines, _ := h.editor.Lines(path)
	assert.Equal(t, []string{"package main", "// added later", "", "", "func f() int {", "\treturn 1", "}"}, lines)
}

func TestEditUndoRefusesChangedFile(t *testing.T) {
	h := newHarness(t, "```go\nfunc f() int {\n\treturn 2\n}\n```")
	h.write("main.go", mainGo)

	_, err := h.run(&cli.Config{Command: cli.CmdEdit, File: "main.go", Range: "3,5", Prompt: "return 2"})
	require.NoError(t, err)
	h.write("main.go", "changed behind our back\n")

	summary, err := h.run(&cli.Config{Command: cli.CmdUndo})
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go"}, summary.Failed)
	assert.Equal(t, "changed behind our back\n", h.read("main.go"))
}

func TestEditPrintStyles(t *testing.T) {
	h := newHarness(t, "```go\nx := 2\n```")
	h.write("f.go", "func g() {\n    x := 1\n}\n")

	summary, err := h.run(&cli.Config{Command: cli.CmdEdit, File: "f.go", Range: "2,2", Prompt: "two", Print: true})
	require.NoError(t, err)
	assert.Equal(t, "-    x := 1\n+    x := 2\n", summary.Output)
	assert.Equal(t, "func g() {\n    x := 1\n}\n", h.read("f.go"), "print leaves the buffer alone")

	summary, err = h.run(&cli.Config{Command: cli.CmdEdit, File: "f.go", Range: "2,2", Prompt: "two", Print: true, Style: "conflict"})
	require.NoError(t, err)
	assert.Equal(t, "<<<<<<< original\n    x := 1\n=======\n    x := 2\n>>>>>>> suggested\n", summary.Output)

	summary, err = h.run(&cli.Config{Command: cli.CmdEdit, File: "f.go", Range: "1,3", Prompt: "two", Unified: true})
	require.NoError(t, err)
	assert.Contains(t, summary.Output, "--- a/f.go")
	assert.Contains(t, summary.Output, "+++ b/f.go")
}

func TestEditFromStdin(t *testing.T) {
	h := newHarness(t)
	h.write("a.py", "def f():\n    return 1\n")

	cfg := &cli.Config{Command: cli.CmdEdit, File: "a.py", Range: "1,2", Source: source.Stdin, Print: true}
	cfg.Selection = model.Selection{Path: "a.py", Start: 1, End: 2}
	app, err := devx.New(cfg)
	require.NoError(t, err)
	defer app.Close()
	app.SetEditorFactory(func() (devx.Editor, error) { return h.editor, nil })
	app.SetSourceProvider(source.NewWith(strings.NewReader("```python\ndef f():\n    return 3\n```\n"), nil))

	summary, err := app.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "def f():\n-    return 1\n+    return 3\n", summary.Output)
	assert.Empty(t, h.mock.Requests())
}

func TestEditNoChanges(t *testing.T) {
	h := newHarness(t, "```\nfunc   f() int {\n  return 1\n}\n```")
	h.write("main.go", mainGo)

	summary, err := h.run(&cli.Config{Command: cli.CmdEdit, File: "main.go", Range: "3,5", Prompt: "noop"})
	require.NoError(t, err)
	assert.Equal(t, "No changes suggested.", summary.Message)
	assert.Equal(t, mainGo, h.read("main.go"))
}

func TestEditRangeOutsideBuffer(t *testing.T) {
	h := newHarness(t, "x")
	h.write("main.go", mainGo)

	_, err := h.run(&cli.Config{Command: cli.CmdEdit, File: "main.go", Range: "4,40", Prompt: "x"})
	assert.ErrorContains(t, err, "outside the buffer")
}

func TestAskThenApplyAnswer(t *testing.T) {
	h := newHarness(t,
		"It returns one.",
		"Like this:\n\n```go\nfunc f() int {\n\treturn 42\n}\n```\n",
	)
	h.write("main.go", mainGo)

	summary, err := h.run(&cli.Config{Command: cli.CmdAsk, File: "main.go", Range: "3,5", Prompt: "what does it return?"})
	require.NoError(t, err)
	assert.Equal(t, "It returns one.", summary.Answer)

	_, err = h.run(&cli.Config{Command: cli.CmdAsk, File: "main.go", Range: "3,5", Prompt: "make it 42"})
	require.NoError(t, err)

	reqs := h.mock.Requests()
	require.Len(t, reqs, 2)
	second := reqs[1].Messages
	require.Len(t, second, 4, "fenced code, two thread comments, question")
	assert.Equal(t, llm.Message{Role: llm.RoleAssistant, Content: "It returns one."}, second[2])

	summary, err = h.run(&cli.Config{Command: cli.CmdEdit, File: "main.go", Range: "3,5", Source: "answer", Buffer: true})
	require.NoError(t, err)
	lines, _ := h.editor.Lines(filepath.Join(h.dir, "main.go"))
	assert.Equal(t, []string{"package main", "", "func f() int {", "-\treturn 1", "+\treturn 42", "}"}, lines)
	assert.Len(t, h.mock.Requests(), 2, "applying an answer does not call the model")

	summary, err = h.run(&cli.Config{Command: cli.CmdThread, File: "main.go", Range: "3,5"})
	require.NoError(t, err)
	assert.Contains(t, summary.Output, "#1 user")
	assert.Contains(t, summary.Output, "#4 assistant")

	_, err = h.run(&cli.Config{Command: cli.CmdThread, File: "main.go", Range: "3,5", Delete: 1})
	require.NoError(t, err)
	summary, _ = h.run(&cli.Config{Command: cli.CmdThread, File: "main.go", Range: "3,5"})
	assert.NotContains(t, summary.Output, "#1 user")

	_, err = h.run(&cli.Config{Command: cli.CmdThread, File: "main.go", Range: "3,5", Delete: 1})
	assert.Error(t, err)

	_, err = h.run(&cli.Config{Command: cli.CmdThread, File: "main.go", Range: "3,5", Clear: true})
	require.NoError(t, err)
	summary, _ = h.run(&cli.Config{Command: cli.CmdThread, File: "main.go", Range: "3,5"})
	assert.Equal(t, "No comments in this thread.", summary.Message)
}

func TestAskStream(t *testing.T) {
	h := newHarness(t, "line one\nline two\n")
	h.write("main.go", mainGo)

	cfg := &cli.Config{Command: cli.CmdAsk, File: "main.go", Range: "1,1", Prompt: "?", Stream: true}
	cfg.Selection = model.Selection{Path: "main.go", Start: 1, End: 1}
	app, err := devx.New(cfg)
	require.NoError(t, err)
	defer app.Close()
	var out bytes.Buffer
	app.SetEditorFactory(func() (devx.Editor, error) { return h.editor, nil })
	app.SetProvider(h.mock)
	app.SetOutput(&out)

	summary, err := app.Execute(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Answer, "streamed answers are not repeated")
	assert.Equal(t, "line one\nline two\n\n", out.String())
}

func TestResolveRangeAndHunks(t *testing.T) {
	h := newHarness(t)
	h.write("list.txt", "keep\n-old a\n+new a\nmiddle\n-old b\n+new b\n")

	summary, err := h.run(&cli.Config{Command: cli.CmdHunks, File: "list.txt"})
	require.NoError(t, err)
	require.Len(t, summary.Hunks, 2)
	assert.Equal(t, model.HunkInfo{Path: "list.txt", Start: 5, End: 6, Added: 1, Removed: 1}, summary.Hunks[1])

	_, err = h.run(&cli.Config{Command: cli.CmdReject, File: "list.txt", Range: "2,3"})
	require.NoError(t, err)
	assert.Equal(t, "keep\nold a\nmiddle\n-old b\n+new b\n", h.read("list.txt"))

	summary, err = h.run(&cli.Config{Command: cli.CmdMerge, File: "list.txt"})
	require.NoError(t, err)
	assert.Equal(t, "Resolved 1 hunk(s) with merge.", summary.Message)
	assert.Equal(t, "keep\nold a\nmiddle\nold b\nnew b\n", h.read("list.txt"))

	summary, err = h.run(&cli.Config{Command: cli.CmdHunks, File: "list.txt"})
	require.NoError(t, err)
	assert.Equal(t, "No hunks in list.txt.", summary.Message)
}

func TestMissingAPIKey(t *testing.T) {
	h := newHarness(t)
	h.write("main.go", mainGo)
	t.Setenv("OPENAI_API_KEY", "")

	cfg := &cli.Config{Command: cli.CmdAsk, File: "main.go", Range: "1,1", Prompt: "?"}
	cfg.Selection = model.Selection{Path: "main.go", Start: 1, End: 1}
	app, err := devx.New(cfg)
	require.NoError(t, err)
	defer app.Close()
	app.SetEditorFactory(func() (devx.Editor, error) { return h.editor, nil })

	_, err = app.Execute(context.Background())
	assert.ErrorContains(t, err, "no API key")
}

func TestPanicBecomesDetailedError(t *testing.T) {
	h := newHarness(t)
	h.write("main.go", mainGo)

	cfg := &cli.Config{Command: cli.CmdHunks, File: "main.go"}
	app, err := devx.New(cfg)
	require.NoError(t, err)
	defer app.Close()
	app.SetEditorFactory(func() (devx.Editor, error) { panic("editor exploded") })

	_, err = app.Execute(context.Background())
	var detailed *devx.DetailedError
	require.ErrorAs(t, err, &detailed)
	assert.Contains(t, detailed.Error(), "editor exploded")
	assert.NotEmpty(t, detailed.Stack)
}

func TestIndentedMarkersAreNotHunks(t *testing.T) {
	h := newHarness(t)
	notes := "# list\n  - one\n  + two\n    -1,\n"
	h.write("notes.md", notes)

	summary, err := h.run(&cli.Config{Command: cli.CmdHunks, File: "notes.md"})
	require.NoError(t, err)
	assert.Equal(t, "No hunks in notes.md.", summary.Message)

	summary, err = h.run(&cli.Config{Command: cli.CmdAccept, File: "notes.md"})
	require.NoError(t, err)
	assert.Equal(t, "No hunks to accept.", summary.Message)
	assert.Equal(t, notes, h.read("notes.md"))

	summary, err = h.run(&cli.Config{Command: cli.CmdUndo})
	require.NoError(t, err)
	assert.Equal(t, "No operation to undo.", summary.Message)
}

func TestThreadListsWholeFile(t *testing.T) {
	h := newHarness(t, "First answer.", "Second answer.")
	h.write("main.go", mainGo)

	summary, err := h.run(&cli.Config{Command: cli.CmdThread, File: "main.go"})
	require.NoError(t, err)
	assert.Equal(t, "No threads in main.go.", summary.Message)

	_, err = h.run(&cli.Config{Command: cli.CmdAsk, File: "main.go", Range: "3,5", Prompt: "what is f?"})
	require.NoError(t, err)
	_, err = h.run(&cli.Config{Command: cli.CmdAsk, File: "main.go", Range: "1,1", Prompt: "which package?"})
	require.NoError(t, err)

	summary, err = h.run(&cli.Config{Command: cli.CmdThread, File: "main.go"})
	require.NoError(t, err)
	first := strings.Index(summary.Output, "== main.go:1-1 (2 comments)")
	second := strings.Index(summary.Output, "== main.go:3-5 (2 comments)")
	require.NotEqual(t, -1, first)
	require.NotEqual(t, -1, second)
	assert.Less(t, first, second, "threads are ordered by start line")
	assert.Contains(t, summary.Output, "Second answer.")
}

func TestDebugLogRecordsSettings(t *testing.T) {
	h := newHarness(t)
	configPath := h.write("config.yaml", "log:\n  development: true\nlanguages:\n  - go\n  - zig\n")
	logPath := filepath.Join(h.dir, "devx.log")

	app, err := devx.New(&cli.Config{Command: cli.CmdUndo, ConfigPath: configPath, LogFile: logPath, Provider: "gemini"})
	require.NoError(t, err)
	require.NoError(t, app.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "settings loaded")
	assert.Contains(t, string(data), `"languages":["go","zig"]`)
	assert.Contains(t, string(data), `"model":"gemini-1.5-flash"`)
}
