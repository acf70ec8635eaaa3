// Package thread keeps the conversation attached to a selection: the user's
// questions and the model's answers, in order.
package thread

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Role identifies the author of a comment.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// NoteLabel marks comments that are kept in the thread but never sent to the
// model.
const NoteLabel = "NOTE"

// Comment is one entry of a thread.
type Comment struct {
	ID      int       `yaml:"id"`
	Author  Role      `yaml:"author"`
	Body    string    `yaml:"body"`
	Label   string    `yaml:"label,omitempty"`
	Created time.Time `yaml:"created"`
}

// Thread is the comment history of one selection. Comment IDs come from the
// thread's own counter and are never reused within a thread.
type Thread struct {
	ID       string    `yaml:"id"`
	Path     string    `yaml:"path"`
	Start    int       `yaml:"start"`
	End      int       `yaml:"end"`
	Comments []Comment `yaml:"comments"`
	NextID   int       `yaml:"next_id"`
}

// New creates an empty thread for a selection.
func New(path string, start, end int) *Thread {
	return &Thread{
		ID:     uuid.NewString(),
		Path:   path,
		Start:  start,
		End:    end,
		NextID: 1,
	}
}

// Key identifies the selection a thread belongs to.
func Key(path string, start, end int) string {
	return fmt.Sprintf("%s:%d-%d", path, start, end)
}

// Key returns the selection key of t.
func (t *Thread) Key() string {
	return Key(t.Path, t.Start, t.End)
}

// Add appends a comment and returns it.
func (t *Thread) Add(author Role, body, label string) Comment {
	if t.NextID < 1 {
		t.NextID = 1
	}
	c := Comment{
		ID:      t.NextID,
		Author:  author,
		Body:    body,
		Label:   label,
		Created: time.Now().UTC(),
	}
	t.NextID++
	t.Comments = append(t.Comments, c)
	return c
}

// Delete removes the comment with the given ID. It reports whether one was
// found.
func (t *Thread) Delete(id int) bool {
	for i, c := range t.Comments {
		if c.ID == id {
			t.Comments = append(t.Comments[:i], t.Comments[i+1:]...)
			return true
		}
	}
	return false
}

// Recent returns up to n of the latest comments that are not notes, oldest
// first. n <= 0 means all of them.
func (t *Thread) Recent(n int) []Comment {
	var filtered []Comment
	for _, c := range t.Comments {
		if c.Label != NoteLabel {
			filtered = append(filtered, c)
		}
	}
	if n > 0 && len(filtered) > n {
		filtered = filtered[len(filtered)-n:]
	}
	return filtered
}

// LastAnswer returns the latest comment written by the model.
func (t *Thread) LastAnswer() (Comment, bool) {
	for i := len(t.Comments) - 1; i >= 0; i-- {
		if t.Comments[i].Author == RoleAssistant {
			return t.Comments[i], true
		}
	}
	return Comment{}, false
}
