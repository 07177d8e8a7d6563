// Package transport defines the outbound messaging platform contract used by the relay core.
package transport

import (
	"context"

	"github.com/mbeoliero/supportdesk/internal/entity"
)

// Target addresses a chat, optionally a topic thread inside it
type Target struct {
	ChatId   int64
	ThreadId int64
}

// Transport is the messaging platform. All calls are best-effort: failures are returned as
// errcode.ErrTransportFailure, or errcode.ErrTopicInvalid when the addressed topic is gone.
type Transport interface {
	// SendContent copies one item to the target
	SendContent(ctx context.Context, target Target, item *entity.Content) error
	// SendText sends a text message and returns its message id
	SendText(ctx context.Context, target Target, text string, html bool) (int64, error)
	// EditText replaces the text of a previously sent message
	EditText(ctx context.Context, chatId, messageId int64, text string, html bool) error
	// DeleteMessage deletes a message
	DeleteMessage(ctx context.Context, chatId, messageId int64) error
	// SendTyping shows a typing indicator to the chat
	SendTyping(ctx context.Context, chatId int64) error

	// CreateTopic creates a topic in the support workspace and returns its id
	CreateTopic(ctx context.Context, name string) (int64, error)
	// RenameTopic renames a topic in the support workspace
	RenameTopic(ctx context.Context, topicId int64, name string) error
	// CloseTopic closes a topic in the support workspace
	CloseTopic(ctx context.Context, topicId int64) error
	// WorkspaceChatId returns the chat id of the support workspace
	WorkspaceChatId() int64
}
