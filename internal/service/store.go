package service

import (
	"context"
	"time"

	"github.com/mbeoliero/supportdesk/internal/entity"
)

// ConversationStore is the conversation persistence contract. Mutators return nil when the
// user has no active conversation.
type ConversationStore interface {
	Get(ctx context.Context, userId int64) (*entity.Conversation, error)
	GetActiveByTopic(ctx context.Context, topicId int64) (*entity.Conversation, error)
	UpsertFresh(ctx context.Context, ident entity.Identity, topicId int64, content *entity.Content, now int64) (*entity.Conversation, error)
	RebindTopic(ctx context.Context, userId, topicId int64, now int64) (*entity.Conversation, error)

	ApplyInbound(ctx context.Context, userId int64, preview, msgType string, now int64) (*entity.Conversation, error)
	MarkRead(ctx context.Context, userId int64, now int64) (*entity.Conversation, error)
	MarkUnread(ctx context.Context, userId int64, now int64) (*entity.Conversation, error)
	MarkAnswered(ctx context.Context, userId int64, now int64) (*entity.Conversation, error)
	SetPriority(ctx context.Context, userId int64, priority string, now int64) (*entity.Conversation, error)
	Archive(ctx context.Context, userId int64, now int64) (*entity.Conversation, error)

	AdvanceFollowUpStage(ctx context.Context, userId int64, now int64) (*entity.Conversation, error)
	MarkFollowUpDone(ctx context.Context, userId int64, now int64) (*entity.Conversation, error)
	SkipFollowUp(ctx context.Context, userId int64, until int64, now int64) (*entity.Conversation, error)
	ResetFollowUp(ctx context.Context, userId int64, now int64) (*entity.Conversation, error)

	ListActive(ctx context.Context) ([]*entity.Conversation, error)
	ListByPriority(ctx context.Context, priority string) ([]*entity.Conversation, error)
	ListUnread(ctx context.Context) ([]*entity.Conversation, error)
	ListStaleUnread(ctx context.Context, before int64) ([]*entity.Conversation, error)
	ListInactiveBefore(ctx context.Context, before int64) ([]*entity.Conversation, error)
	ListFollowUpsDue(ctx context.Context, now, cutoff int64) ([]*entity.Conversation, error)
}

// MessageLogStore is the append-only message audit trail
type MessageLogStore interface {
	Append(ctx context.Context, entry *entity.MessageLog) error
	Stats(ctx context.Context, userId int64) (*entity.MessageStats, error)
	Search(ctx context.Context, q string, limit int) ([]*entity.MessageSearchResult, error)
	ListByUser(ctx context.Context, userId int64, limit int) ([]*entity.MessageLog, error)
}

// NoteStore persists admin notes
type NoteStore interface {
	Add(ctx context.Context, note *entity.Note) error
	Latest(ctx context.Context, userId int64, limit int) ([]*entity.Note, error)
}

// VoiceTemplateStore persists saved voice messages
type VoiceTemplateStore interface {
	Save(ctx context.Context, tmpl *entity.VoiceTemplate) error
	Get(ctx context.Context, name string) (*entity.VoiceTemplate, error)
	List(ctx context.Context) ([]*entity.VoiceTemplate, error)
	Delete(ctx context.Context, name string) (bool, error)
}

// Clock returns the current time
type Clock func() time.Time

// EventSink receives live notifications for the admin feed
type EventSink interface {
	ConversationChanged(ctx context.Context, conv *entity.Conversation)
	BroadcastProgress(ctx context.Context, adminId int64, progress *BroadcastProgress)
}

type nopSink struct{}

func (nopSink) ConversationChanged(context.Context, *entity.Conversation)    {}
func (nopSink) BroadcastProgress(context.Context, int64, *BroadcastProgress) {}

// NopSink discards all events
var NopSink EventSink = nopSink{}
