package chat

import (
	"context"
)

// Message roles accepted in a chat request.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of the conversation.
type Message struct {
	Role    string `json:"role" validate:"oneof=system user assistant"`
	Content string `json:"content"`
}

// Request is the chat completion request body.
type Request struct {
	// Model is the agent identifier; agents are knowledge spaces.
	Model          string    `json:"model" validate:"required"`
	Messages       []Message `json:"messages" validate:"min=1,dive"`
	ConversationID string    `json:"conversation_id,omitempty"`
}

// HasSystemPrompt reports whether any message has the system role.
func (r *Request) HasSystemPrompt() bool {
	for _, m := range r.Messages {
		if m.Role == RoleSystem {
			return true
		}
	}
	return false
}

// Input is what the use case receives for one request.
type Input struct {
	RequestID      string
	TenantID       string
	UserID         string
	AgentID        string
	ConversationID string
	Messages       []Message
}

// ResultMessage is the assistant reply of one choice.
type ResultMessage struct {
	Role      string   `json:"role"`
	Content   string   `json:"content"`
	CitedURLs []string `json:"cited_urls,omitempty"`
}

// Choice is one generated alternative.
type Choice struct {
	Index        int           `json:"index"`
	Message      ResultMessage `json:"message"`
	FinishReason string        `json:"finish_reason,omitempty"`
}

// Result is the use case response. ID is the conversation id.
type Result struct {
	ID      string   `json:"id"`
	Object  string   `json:"object,omitempty"`
	Created int64    `json:"created,omitempty"`
	Model   string   `json:"model,omitempty"`
	Choices []Choice `json:"choices"`
}

// CitedURLCount returns the number of cited URLs on the first choice.
func (r *Result) CitedURLCount() int {
	if r == nil || len(r.Choices) == 0 {
		return 0
	}
	return len(r.Choices[0].Message.CitedURLs)
}

// UseCase answers an authenticated, validated chat request.
type UseCase interface {
	Execute(ctx context.Context, in Input) (*Result, error)
}
