package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/devx.go/internal/config"
	"github.com/sokinpui/devx.go/internal/thread"
)

func TestEditPrompt(t *testing.T) {
	th := thread.New("a.go", 1, 2)
	th.Add(thread.RoleUser, "rename x", "")
	th.Add(thread.RoleAssistant, "done", "")
	th.Add(thread.RoleUser, "private", thread.NoteLabel)

	msgs := EditPrompt("```\nx := 1\n```", History(th.Comments), "use y")
	require.Len(t, msgs, 5)
	assert.Equal(t, Message{Role: RoleSystem, Content: EditInstruction}, msgs[0])
	assert.Equal(t, "```\nx := 1\n```", msgs[1].Content)
	assert.Equal(t, RoleAssistant, msgs[3].Role)
	assert.Equal(t, Message{Role: RoleUser, Content: "use y"}, msgs[4])
}

func TestAskPrompt(t *testing.T) {
	msgs := AskPrompt("```\ncode\n```", nil, "why?")
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "why?", msgs[1].Content)
}

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 2, CountTokens("hello world"))
	assert.Equal(t, 0, CountTokens(""))
}

func TestTrimHistory(t *testing.T) {
	history := []Message{
		{Role: RoleUser, Content: strings.Repeat("word ", 50)},
		{Role: RoleAssistant, Content: "hello world"},
		{Role: RoleUser, Content: "hello world"},
	}

	assert.Len(t, TrimHistory(history, 0), 3)
	assert.Len(t, TrimHistory(history, 1000), 3)

	trimmed := TrimHistory(history, 4)
	require.Len(t, trimmed, 2)
	assert.Equal(t, RoleAssistant, trimmed[0].Role)

	assert.Empty(t, TrimHistory(history, 1))
}

func TestMock(t *testing.T) {
	m := NewMock("one", "two\nlines\n")
	ctx := context.Background()

	got, err := m.Complete(ctx, Request{})
	require.NoError(t, err)
	assert.Equal(t, "one", got)

	var deltas []string
	got, err = m.Stream(ctx, Request{}, func(s string) { deltas = append(deltas, s) })
	require.NoError(t, err)
	assert.Equal(t, "two\nlines\n", got)
	assert.Equal(t, []string{"two\n", "lines\n"}, deltas)

	got, _ = m.Complete(ctx, Request{})
	assert.Equal(t, "two\nlines\n", got, "last response repeats")
	assert.Len(t, m.Requests(), 3)

	m.Err = errors.New("boom")
	_, err = m.Complete(ctx, Request{})
	assert.EqualError(t, err, "boom")
}

func TestNew(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg := config.Default()
	_, err := New(cfg)
	assert.ErrorIs(t, err, config.ErrNoAPIKey)

	cfg.LLM.APIKey = "k"
	p, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, "gpt-3.5-turbo", p.Model())

	cfg.LLM.Provider = "gemini"
	p, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.Name())

	cfg.LLM.Provider = "parrot"
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestNewProviderFlagPicksItsModel(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("GEMINI_API_KEY", "gemini-key")

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Override("gemini", "")

	p, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "gemini", p.Name())
	assert.Equal(t, "gemini-1.5-flash", p.Model())
}

func TestOpenAIComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/chat/completions"))
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		data, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(data, &body))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"test-model",`+
			`"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"`+"```go\\nx := 2\\n```"+`"}}],`+
			`"usage":{"prompt_tokens":3,"completion_tokens":4,"total_tokens":7}}`)
	}))
	defer srv.Close()

	p := NewOpenAI("test-key", srv.URL+"/", "test-model")
	got, err := p.Complete(context.Background(), Request{
		Messages:  EditPrompt("```\nx := 1\n```", nil, "bump"),
		MaxTokens: 100,
	})
	require.NoError(t, err)
	assert.Equal(t, "```go\nx := 2\n```", got)

	assert.Equal(t, "test-model", body["model"])
	assert.EqualValues(t, 100, body["max_tokens"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 3)
}

func TestOpenAIStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range []string{"Hello", ", ", "world"} {
			fmt.Fprintf(w, "data: {\"id\":\"c\",\"object\":\"chat.completion.chunk\",\"created\":1,\"model\":\"m\","+
				"\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", delta)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	p := NewOpenAI("k", srv.URL+"/", "m")
	var deltas []string
	got, err := p.Stream(context.Background(), Request{Messages: AskPrompt("x", nil, "hi")}, func(s string) {
		deltas = append(deltas, s)
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", got)
	assert.Equal(t, []string{"Hello", ", ", "world"}, deltas)
}

func TestOpenAIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"bad key","type":"invalid_request_error"}}`)
	}))
	defer srv.Close()

	_, err := NewOpenAI("k", srv.URL+"/", "m").Complete(context.Background(), Request{Messages: AskPrompt("x", nil, "hi")})
	assert.Error(t, err)
}

func TestGeminiChat(t *testing.T) {
	system, history, prompt, err := geminiChat(EditPrompt("code", []Message{
		{Role: RoleUser, Content: "q"},
		{Role: RoleAssistant, Content: "a"},
	}, "do it"))
	require.NoError(t, err)
	assert.Equal(t, EditInstruction, system)
	assert.Equal(t, "do it", prompt)
	require.Len(t, history, 3)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "model", history[2].Role)
	assert.Equal(t, genai.Text("a"), history[2].Parts[0])

	_, _, _, err = geminiChat([]Message{{Role: RoleAssistant, Content: "a"}})
	assert.Error(t, err)
}

func TestGeminiLive(t *testing.T) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		t.Skip("No Gemini key in env")
	}
	got, err := NewGemini(key, "", "gemini-1.5-flash").Complete(context.Background(), Request{
		Messages:  AskPrompt("```\nfmt.Println(\"apple\")\n```", nil, "Which fruit does this print? One word."),
		MaxTokens: 50,
	})
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(got), "apple")
}
