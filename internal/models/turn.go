package models

// Role of a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// RoleForIndex returns the role of the turn stored at position i.
// Turns alternate starting with the user.
func RoleForIndex(i int) Role {
	if i%2 == 0 {
		return RoleUser
	}
	return RoleAssistant
}

// Turn is one entry of the session chat history
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
