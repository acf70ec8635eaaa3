package llm

import (
	"github.com/sokinpui/devx.go/internal/thread"
)

// EditInstruction is the system message of every edit request.
const EditInstruction = "Return fully edited code as per user request delimited by triple quotes and nothing else."

// History converts thread comments into chat messages. Notes are skipped.
func History(comments []thread.Comment) []Message {
	var msgs []Message
	for _, c := range comments {
		if c.Label == thread.NoteLabel {
			continue
		}
		role := RoleUser
		if c.Author == thread.RoleAssistant {
			role = RoleAssistant
		}
		msgs = append(msgs, Message{Role: role, Content: c.Body})
	}
	return msgs
}

// EditPrompt asks for a rewrite of the fenced code.
func EditPrompt(fenced string, history []Message, instruction string) []Message {
	msgs := []Message{
		{Role: RoleSystem, Content: EditInstruction},
		{Role: RoleUser, Content: fenced},
	}
	msgs = append(msgs, history...)
	return append(msgs, Message{Role: RoleUser, Content: instruction})
}

// AskPrompt asks a question about the fenced code.
func AskPrompt(fenced string, history []Message, question string) []Message {
	msgs := []Message{{Role: RoleUser, Content: fenced}}
	msgs = append(msgs, history...)
	return append(msgs, Message{Role: RoleUser, Content: question})
}
