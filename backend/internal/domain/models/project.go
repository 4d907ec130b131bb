package models

import "time"

type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleMember Role = "MEMBER"
)

const DefaultProjectTitle = "New project"

type Project struct {
	ID             int64     `json:"id"`
	ProjectKey     string    `json:"project_key"`
	Title          string    `json:"title"`
	TgChatID       *int64    `json:"tg_chat_id"`
	TgChatInstance *string   `json:"tg_chat_instance"`
	TgChatType     *string   `json:"tg_chat_type"`
	CreatedAt      time.Time `json:"created_at"`
}

type Membership struct {
	ProjectID int64 `json:"project_id"`
	UserID    int64 `json:"user_id"`
	Role      Role  `json:"role"`
	IsActive  bool  `json:"is_active"`
}

// ProjectView is a project as seen by one caller.
type ProjectView struct {
	Project
	Role Role `json:"role,omitempty"`
}

type ProjectSummary struct {
	Project
	Role Role `json:"role"`
}

// ChatContext describes the chat a launch came from. Either ChatID or
// ChatInstance must be set for the launch to be chat scoped. ProjectKey is
// the start_param of a deep link, if any.
type ChatContext struct {
	ChatID       *int64
	ChatInstance *string
	ChatType     *string
	Title        string
	ProjectKey   *string
}

func (c ChatContext) IsChatScoped() bool {
	return c.ChatID != nil || (c.ChatInstance != nil && *c.ChatInstance != "")
}

// ProjectChatUpdate is applied to an existing project on every chat launch:
// chat id and instance only fill NULL columns, title and type are overwritten.
type ProjectChatUpdate struct {
	ChatID       *int64
	ChatInstance *string
	ChatType     *string
	Title        string
}

type NewProject struct {
	ProjectKey   string
	Title        string
	ChatID       *int64
	ChatInstance *string
	ChatType     *string
	CreatedAt    time.Time
}
