package llm

import (
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

var (
	encOnce sync.Once
	enc     tokenizer.Codec
	encErr  error
)

// CountTokens returns the token count of text. If the encoder is unavailable
// it falls back to four bytes per token.
func CountTokens(text string) int {
	encOnce.Do(func() {
		enc, encErr = tokenizer.Get(tokenizer.O200kBase)
	})
	if encErr != nil {
		return len(text) / 4
	}
	count, err := enc.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}

// TrimHistory drops the oldest messages until the total token count fits the
// budget. A budget <= 0 disables trimming.
func TrimHistory(history []Message, budget int) []Message {
	if budget <= 0 {
		return history
	}
	total := 0
	start := len(history)
	for i := len(history) - 1; i >= 0; i-- {
		n := CountTokens(history[i].Content)
		if total+n > budget {
			break
		}
		total += n
		start = i
	}
	return history[start:]
}
