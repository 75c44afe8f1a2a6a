// internal/models/chat.go
package models

type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

type ChatMessage struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Text  string `json:"text"`
	Image string `json:"image,omitempty"` // data URI
}
