package entity

import (
	"fmt"
	"strings"

	"github.com/mbeoliero/supportdesk/pkg/constant"
)

// Conversation is the per-user relay record, keyed by the platform user id
type Conversation struct {
	UserId               int64  `json:"user_id" gorm:"column:user_id;primaryKey;autoIncrement:false"`
	Username             string `json:"username" gorm:"column:username;size:64"`
	FirstName            string `json:"first_name" gorm:"column:first_name;size:128"`
	LastName             string `json:"last_name" gorm:"column:last_name;size:128"`
	TopicId              *int64 `json:"topic_id" gorm:"column:topic_id;index"`
	Status               string `json:"status" gorm:"column:status;size:16;default:unread"`
	Priority             string `json:"priority" gorm:"column:priority;size:16;default:normal"`
	UnreadCount          int    `json:"unread_count" gorm:"column:unread_count;default:0"`
	LastMessagePreview   string `json:"last_message_preview" gorm:"column:last_message_preview;size:512"`
	LastMessageType      string `json:"last_message_type" gorm:"column:last_message_type;size:16"`
	LastMessageAt        int64  `json:"last_message_at" gorm:"column:last_message_at;index"`
	LastReplyAt          int64  `json:"last_reply_at" gorm:"column:last_reply_at"`
	IsArchived           bool   `json:"is_archived" gorm:"column:is_archived;index;default:false"`
	FollowUpEnabled      bool   `json:"followup_enabled" gorm:"column:followup_enabled;default:true"`
	FollowUpStage        int    `json:"followup_stage" gorm:"column:followup_stage;default:0"`
	FollowUpSkippedUntil *int64 `json:"followup_skipped_until" gorm:"column:followup_skipped_until"`
	FollowUpDone         bool   `json:"followup_done" gorm:"column:followup_done;default:false"`
	CreatedAt            int64  `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
	UpdatedAt            int64  `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:milli"`
}

// TableName returns the table name for Conversation
func (Conversation) TableName() string {
	return "conversations"
}

// Identity carries the platform profile of a user
type Identity struct {
	UserId    int64  `json:"user_id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// DisplayName returns "First Last", then "@username", then "User <id>"
func (i Identity) DisplayName() string {
	parts := make([]string, 0, 2)
	if i.FirstName != "" {
		parts = append(parts, i.FirstName)
	}
	if i.LastName != "" {
		parts = append(parts, i.LastName)
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	if i.Username != "" {
		return "@" + i.Username
	}
	return fmt.Sprintf("User %d", i.UserId)
}

// Identity returns the profile fields of the conversation
func (c *Conversation) Identity() Identity {
	return Identity{
		UserId:    c.UserId,
		Username:  c.Username,
		FirstName: c.FirstName,
		LastName:  c.LastName,
	}
}

// DisplayName returns the human readable name of the conversation's user
func (c *Conversation) DisplayName() string {
	return c.Identity().DisplayName()
}

// HasTopic reports whether a topic is bound
func (c *Conversation) HasTopic() bool {
	return c.TopicId != nil && *c.TopicId != 0
}

// Topic returns the bound topic id, or 0
func (c *Conversation) Topic() int64 {
	if c.TopicId == nil {
		return 0
	}
	return *c.TopicId
}

// IsActive reports whether the conversation is not archived
func (c *Conversation) IsActive() bool {
	return !c.IsArchived
}

// Summary is the part of a conversation that is displayed in its topic name
type Summary struct {
	Name        string
	Status      string
	Priority    string
	UnreadCount int
}

// Summary returns the displayed summary of the conversation
func (c *Conversation) Summary() Summary {
	return Summary{
		Name:        c.DisplayName(),
		Status:      c.Status,
		Priority:    c.Priority,
		UnreadCount: c.UnreadCount,
	}
}

// ConversationInfo represents conversation info for API responses
type ConversationInfo struct {
	UserId               int64  `json:"user_id"`
	Name                 string `json:"name"`
	Username             string `json:"username,omitempty"`
	TopicId              int64  `json:"topic_id"`
	Status               string `json:"status"`
	Priority             string `json:"priority"`
	UnreadCount          int    `json:"unread_count"`
	LastMessagePreview   string `json:"last_message_preview,omitempty"`
	LastMessageType      string `json:"last_message_type,omitempty"`
	LastMessageAt        int64  `json:"last_message_at"`
	LastReplyAt          int64  `json:"last_reply_at"`
	IsArchived           bool   `json:"is_archived"`
	FollowUpStage        int    `json:"followup_stage"`
	FollowUpDone         bool   `json:"followup_done"`
	FollowUpSkippedUntil *int64 `json:"followup_skipped_until,omitempty"`
}

// ToInfo converts Conversation to ConversationInfo
func (c *Conversation) ToInfo() *ConversationInfo {
	return &ConversationInfo{
		UserId:               c.UserId,
		Name:                 c.DisplayName(),
		Username:             c.Username,
		TopicId:              c.Topic(),
		Status:               c.Status,
		Priority:             c.Priority,
		UnreadCount:          c.UnreadCount,
		LastMessagePreview:   c.LastMessagePreview,
		LastMessageType:      c.LastMessageType,
		LastMessageAt:        c.LastMessageAt,
		LastReplyAt:          c.LastReplyAt,
		IsArchived:           c.IsArchived,
		FollowUpStage:        c.FollowUpStage,
		FollowUpDone:         c.FollowUpDone,
		FollowUpSkippedUntil: c.FollowUpSkippedUntil,
	}
}

// PriorityGlyph returns the priority glyph of the conversation
func (c *Conversation) PriorityGlyph() string {
	return constant.PriorityGlyph(c.Priority)
}
