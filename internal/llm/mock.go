package llm

import (
	"context"
	"strings"
	"sync"
)

// Mock is a Provider that replays canned responses in order; the last one
// repeats. It records every request it receives.
type Mock struct {
	Responses []string
	Err       error

	mu       sync.Mutex
	requests []Request
}

var _ Streamer = (*Mock)(nil)

func NewMock(responses ...string) *Mock {
	return &Mock{Responses: responses}
}

func (m *Mock) Name() string  { return "mock" }
func (m *Mock) Model() string { return "mock" }

func (m *Mock) Complete(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Responses) == 0 {
		return "", ErrEmptyResponse
	}
	i := len(m.requests) - 1
	if i >= len(m.Responses) {
		i = len(m.Responses) - 1
	}
	return m.Responses[i], nil
}

// Stream delivers the response one line at a time.
func (m *Mock) Stream(ctx context.Context, req Request, onDelta func(string)) (string, error) {
	text, err := m.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if onDelta != nil {
		for _, part := range strings.SplitAfter(text, "\n") {
			if part != "" {
				onDelta(part)
			}
		}
	}
	return text, nil
}

// Requests returns the requests received so far.
func (m *Mock) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}
