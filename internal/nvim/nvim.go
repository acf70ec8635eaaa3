package nvim

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/neovim/go-client/nvim"
)

const (
	undoDir = "~/.local/state/nvim/undo/"
)

// bufCallLua runs an Ex command with the given buffer as the current one,
// without touching the user's windows.
const bufCallLua = `local buf, cmd = ...
vim.api.nvim_buf_call(buf, function() vim.cmd(cmd) end)`

// Manager handles the connection and interaction with a Neovim instance.
type Manager struct {
	nvim          *nvim.Nvim
	isSelfStarted bool
	cmd           *exec.Cmd
	socketPath    string
}

// New creates a new Neovim manager, connecting to the instance devx runs in
// (or the one named by NVIM_LISTEN_ADDRESS) or starting a headless one.
func New() (*Manager, error) {
	for _, env := range []string{"NVIM", "NVIM_LISTEN_ADDRESS"} {
		addr := os.Getenv(env)
		if addr == "" {
			continue
		}
		if v, err := nvim.Dial(addr); err == nil {
			return &Manager{nvim: v}, nil
		}
	}

	tmpDir, err := os.MkdirTemp("", "devx-nvim-")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir for nvim: %w", err)
	}
	socketPath := filepath.Join(tmpDir, "nvim.sock")

	cmd := exec.Command("nvim", "--headless", "--clean", "--listen", socketPath)
	if err := cmd.Start(); err != nil {
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("failed to start headless nvim: %w. Is 'nvim' in your PATH?", err)
	}

	// Wait for the socket file to appear.
	for i := 0; i < 20; i++ {
		if _, err := os.Stat(socketPath); err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	v, err := nvim.Dial(socketPath)
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		os.RemoveAll(tmpDir)
		return nil, fmt.Errorf("failed to connect to headless nvim: %w", err)
	}

	m := &Manager{
		nvim:          v,
		isSelfStarted: true,
		cmd:           cmd,
		socketPath:    socketPath,
	}
	m.configureTempInstance()
	return m, nil
}

// configureTempInstance sets up undofile so undo survives between runs.
func (m *Manager) configureTempInstance() {
	home, _ := os.UserHomeDir()
	expandedUndoDir := strings.Replace(undoDir, "~", home, 1)
	os.MkdirAll(expandedUndoDir, 0755)

	b := m.nvim.NewBatch()
	b.Command("set undofile")
	b.Command(fmt.Sprintf("set undodir=%s", expandedUndoDir))
	b.Command("set noswapfile")
	// Non-fatal: without undofile only this run can be undone.
	_ = b.Execute()
}

// Close disconnects from Neovim and cleans up if it was self-started.
func (m *Manager) Close() {
	if m.nvim != nil {
		m.nvim.Close()
	}
	if m.isSelfStarted && m.cmd != nil && m.cmd.Process != nil {
		if err := m.cmd.Process.Kill(); err == nil {
			m.cmd.Wait()
			os.RemoveAll(filepath.Dir(m.socketPath))
		}
	}
}

// buffer returns the loaded buffer of path, adding it if necessary.
func (m *Manager) buffer(path string) (nvim.Buffer, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}
	var bufnr int
	if err := m.nvim.Call("bufadd", &bufnr, absPath); err != nil {
		return 0, fmt.Errorf("failed to open buffer for %s: %w", path, err)
	}
	if err := m.nvim.Call("bufload", nil, bufnr); err != nil {
		return 0, fmt.Errorf("failed to load buffer for %s: %w", path, err)
	}
	return nvim.Buffer(bufnr), nil
}

// Lines returns every line of path's buffer.
func (m *Manager) Lines(path string) ([]string, error) {
	buf, err := m.buffer(path)
	if err != nil {
		return nil, err
	}
	raw, err := m.nvim.BufferLines(buf, 0, -1, true)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	lines := make([]string, len(raw))
	for i, l := range raw {
		lines[i] = string(l)
	}
	return lines, nil
}

// ReplaceLines replaces the 0-based, end-exclusive line range [start, end) of
// path's buffer.
func (m *Manager) ReplaceLines(path string, start, end int, lines []string) error {
	buf, err := m.buffer(path)
	if err != nil {
		return err
	}
	byteContent := make([][]byte, len(lines))
	for i, s := range lines {
		byteContent[i] = []byte(s)
	}
	if err := m.nvim.SetBufferLines(buf, start, end, true, byteContent); err != nil {
		return fmt.Errorf("failed to update %s: %w", path, err)
	}
	return nil
}

func (m *Manager) bufferCommand(path, command string) error {
	buf, err := m.buffer(path)
	if err != nil {
		return err
	}
	if err := m.nvim.ExecLua(bufCallLua, nil, int(buf), command); err != nil {
		return fmt.Errorf("%s %s: %w", command, path, err)
	}
	return nil
}

// Save writes path's buffer to disk.
func (m *Manager) Save(path string) error {
	return m.bufferCommand(path, "silent write!")
}

// Undo reverts the last change of path's buffer and writes it.
func (m *Manager) Undo(path string) error {
	if err := m.bufferCommand(path, "silent undo"); err != nil {
		return err
	}
	return m.Save(path)
}

// Redo reapplies the last undone change of path's buffer and writes it.
func (m *Manager) Redo(path string) error {
	if err := m.bufferCommand(path, "silent redo"); err != nil {
		return err
	}
	return m.Save(path)
}
