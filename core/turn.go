package core

// Role identifies the author of a conversational turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one role-tagged message in the active conversation window.
// Turns are immutable once created; the conversation buffer owns them.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
