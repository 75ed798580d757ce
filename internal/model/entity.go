package model

import "time"

type TicketStatus string

const (
	TicketStatusPending  TicketStatus = "pending"
	TicketStatusNew      TicketStatus = "new"
	TicketStatusActive   TicketStatus = "active"
	TicketStatusCanceled TicketStatus = "canceled"
	TicketStatusClosed   TicketStatus = "closed"
)

// OpenStatuses: статусы, в которых тикет принимает свободный текст пользователя.
var OpenStatuses = []TicketStatus{TicketStatusNew, TicketStatusActive}

// IsOpen reports whether follow-up messages may be appended to a ticket in this status.
func (s TicketStatus) IsOpen() bool {
	return s == TicketStatusNew || s == TicketStatusActive
}

type SenderKind string

const (
	SenderUser    SenderKind = "user"
	SenderSupport SenderKind = "support"
)

// TitleMaxLen: ограничение длины названия тикета в символах.
const TitleMaxLen = 100

type User struct {
	ID             uint64    `gorm:"primaryKey" json:"id"`
	ExternalChatID int64     `gorm:"uniqueIndex;not null" json:"external_chat_id"`
	Username       string    `gorm:"type:varchar(64)" json:"username,omitempty"`
	DisplayName    string    `gorm:"type:varchar(255);not null" json:"display_name"`
	Company        string    `gorm:"type:varchar(255);not null;default:''" json:"company"`
	Shop           string    `gorm:"type:varchar(255);not null;default:''" json:"shop"`
	RegisteredAt   time.Time `gorm:"autoCreateTime" json:"registered_at"`
	Active         bool      `gorm:"not null;default:true" json:"active"`
}

type Ticket struct {
	ID             uint64       `gorm:"primaryKey" json:"id"`
	UserID         uint64       `gorm:"index;not null" json:"user_id"`
	Title          string       `gorm:"type:varchar(100);not null" json:"title"`
	Description    string       `gorm:"type:text;not null;default:''" json:"description"`
	RemoteThreadID *string      `gorm:"type:varchar(64);index" json:"remote_thread_id,omitempty"`
	RemoteIssueID  *string      `gorm:"type:varchar(64)" json:"remote_issue_id,omitempty"`
	Status         TicketStatus `gorm:"type:varchar(32);index;not null" json:"status"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`

	Messages []Message `gorm:"foreignKey:TicketID" json:"messages,omitempty"`
}

// ThreadID returns the Mattermost root post id or "" before activation.
func (t *Ticket) ThreadID() string {
	if t.RemoteThreadID == nil {
		return ""
	}
	return *t.RemoteThreadID
}

// IssueID returns the Plane issue id or "" before activation.
func (t *Ticket) IssueID() string {
	if t.RemoteIssueID == nil {
		return ""
	}
	return *t.RemoteIssueID
}

type Message struct {
	ID         uint64     `gorm:"primaryKey" json:"id"`
	TicketID   uint64     `gorm:"index;not null" json:"ticket_id"`
	SenderKind SenderKind `gorm:"type:varchar(16);not null" json:"sender_kind"`
	Content    string     `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
}
