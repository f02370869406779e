package chat

import (
	"fmt"
	"strings"

	"github.com/MrWong99/creativemate/pkg/types"
)

// personaPrompt is the assistant's fixed system persona. The knowledge-base
// context block is appended to it when retrieval produced anything.
const personaPrompt = `You are a friendly, helpful master in creative arts and literature and a universal traanslator. You will receive a prompt text and conversation history if there is history. Detect the language used by the user. Then, using the user language, respond based on the provided prompt context.

Do not explain or reveal technical software details or your implementation. Answer in a clear, concise language. Always output in markdown format. Never reveal internal code implementation or assumptions. Stay in your scope which is about writing stories, poems, musical pieces and art ideas.

If relevant context from uploaded documents is provided, use that information to enhance your creative responses, but integrate it naturally without explicitly mentioning that you're referencing uploaded documents. Do not invent or fabricate information. If you don't know the answer, say "I don't know" or "I cannot answer that.". Do not make up answers.`

// buildMessages assembles the full conversation sent to the model:
// system persona (plus retrieval context), prior history in order, one user
// turn per attached image, and the current prompt as the final user turn.
func buildMessages(req Request, ragContext string) []types.Message {
	system := personaPrompt
	if ragContext != "" {
		system += "\n\nRelevant context from your knowledge base:\n" + ragContext
	}

	messages := make([]types.Message, 0, len(req.Messages)+len(req.Images)+2)
	messages = append(messages, types.Message{Role: "system", Content: system})

	for _, turn := range req.Messages {
		messages = append(messages, types.Message{Role: turn.Role, Content: turn.Content})
	}

	for i, img := range req.Images {
		messages = append(messages, types.Message{
			Role:    "user",
			Content: fmt.Sprintf("[Image %d: %s]", i+1, img.Base64),
		})
	}

	messages = append(messages, types.Message{Role: "user", Content: req.Prompt})
	return messages
}

// preview shortens content for log output: at most 100 characters with
// newlines flattened.
func preview(content string) string {
	if len(content) > 100 {
		return strings.ReplaceAll(content[:100], "\n", " ") + "..."
	}
	return content
}
