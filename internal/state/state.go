package state

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sokinpui/devx.go/internal/thread"
)

const (
	stateDirName  = ".devx"
	stateFileName = "state.yaml"
)

// Operation represents a single buffer operation.
type Operation struct {
	Action string `yaml:"action"` // "edit", "accept", "reject" or "merge"
	Path   string `yaml:"path"`
	// Start and End are the 1-based, inclusive lines the operation wrote.
	Start int `yaml:"start"`
	End   int `yaml:"end"`
	// Block is the annotated text an edit inserted. A resolution that
	// consumed a pending edit carries that edit's block too.
	Block string `yaml:"block,omitempty"`
	// BeforeHash and ContentHash are SHA256 hashes of the file before and
	// after the operation.
	BeforeHash  string `yaml:"before_hash"`
	ContentHash string `yaml:"content_hash"`
}

// HistoryEntry represents one complete run of the tool.
type HistoryEntry struct {
	Timestamp  int64       `yaml:"timestamp"`
	Operations []Operation `yaml:"operations"`
}

// State represents the entire state file.
type State struct {
	History      []HistoryEntry            `yaml:"history"`
	CurrentIndex int                       `yaml:"current_index"`
	Threads      map[string]*thread.Thread `yaml:"threads,omitempty"`
}

// Manager handles the lifecycle of the state file.
type Manager struct {
	statePath string
	state     *State
	StateDir  string
}

// findGitRoot finds the root of the git repository.
func findGitRoot() (string, error) {
	cmd := exec.Command("git", "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(output)), nil
}

// New creates and loads a state manager rooted at the git repository, or at
// the working directory outside of one.
func New() (*Manager, error) {
	rootDir, err := findGitRoot()
	if err != nil {
		rootDir, err = os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("could not get current working directory: %w", err)
		}
	}
	return NewAt(rootDir)
}

// NewAt creates and loads a state manager rooted at rootDir.
func NewAt(rootDir string) (*Manager, error) {
	stateDir := filepath.Join(rootDir, stateDirName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create state directory: %w", err)
	}
	m := &Manager{
		statePath: filepath.Join(stateDir, stateFileName),
		StateDir:  stateDir,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func emptyState() *State {
	return &State{CurrentIndex: -1, History: []HistoryEntry{}, Threads: map[string]*thread.Thread{}}
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			m.state = emptyState()
			return nil
		}
		return err
	}

	st := emptyState()
	if len(strings.TrimSpace(string(data))) > 0 {
		if err := yaml.Unmarshal(data, st); err != nil {
			return fmt.Errorf("invalid state file %s: %w", m.statePath, err)
		}
	}
	if st.Threads == nil {
		st.Threads = map[string]*thread.Thread{}
	}
	if st.CurrentIndex >= len(st.History) {
		st.CurrentIndex = len(st.History) - 1
	}
	m.state = st
	return nil
}

func (m *Manager) save() error {
	data, err := yaml.Marshal(m.state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := os.WriteFile(m.statePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

// Write adds a new set of operations to the history, dropping anything that
// was undone.
func (m *Manager) Write(operations []Operation) error {
	if m.state.CurrentIndex < len(m.state.History)-1 {
		m.state.History = m.state.History[:m.state.CurrentIndex+1]
	}

	newEntry := HistoryEntry{
		Timestamp:  time.Now().UTC().Unix(),
		Operations: operations,
	}
	m.state.History = append(m.state.History, newEntry)
	m.state.CurrentIndex++
	return m.save()
}

// GetOperationsToUndo gets the last operations and moves the history pointer.
func (m *Manager) GetOperationsToUndo() ([]Operation, error) {
	if m.state.CurrentIndex < 0 {
		return nil, nil
	}
	ops := m.state.History[m.state.CurrentIndex].Operations
	m.state.CurrentIndex--
	return ops, m.save()
}

// GetOperationsToRedo gets the next operations and moves the history pointer.
func (m *Manager) GetOperationsToRedo() ([]Operation, error) {
	nextIndex := m.state.CurrentIndex + 1
	if nextIndex >= len(m.state.History) {
		return nil, nil
	}
	m.state.CurrentIndex = nextIndex
	ops := m.state.History[m.state.CurrentIndex].Operations
	return ops, m.save()
}

// PendingEdit returns the most recent applied edit of path that no later
// applied operation has resolved. Undone operations are not considered.
func (m *Manager) PendingEdit(path string) (Operation, bool) {
	for i := m.state.CurrentIndex; i >= 0; i-- {
		ops := m.state.History[i].Operations
		for j := len(ops) - 1; j >= 0; j-- {
			op := ops[j]
			if op.Path != path || op.Block == "" {
				continue
			}
			if op.Action != "edit" {
				return Operation{}, false
			}
			return op, true
		}
	}
	return Operation{}, false
}

// Thread returns the thread of a selection, creating an unsaved one if none
// exists.
func (m *Manager) Thread(path string, start, end int) *thread.Thread {
	if th, ok := m.state.Threads[thread.Key(path, start, end)]; ok {
		return th
	}
	return thread.New(path, start, end)
}

// SaveThread stores th.
func (m *Manager) SaveThread(th *thread.Thread) error {
	m.state.Threads[th.Key()] = th
	return m.save()
}

// DeleteThread removes the thread stored under key.
func (m *Manager) DeleteThread(key string) error {
	if _, ok := m.state.Threads[key]; !ok {
		return nil
	}
	delete(m.state.Threads, key)
	return m.save()
}

// Threads returns all stored threads of path, ordered by start line.
func (m *Manager) Threads(path string) []*thread.Thread {
	var out []*thread.Thread
	for _, th := range m.state.Threads {
		if path == "" || th.Path == path {
			out = append(out, th)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Start < out[j].Start
	})
	return out
}
