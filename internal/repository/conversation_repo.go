package repository

import (
	"context"
	"errors"

	"github.com/mbeoliero/supportdesk/internal/entity"
	"github.com/mbeoliero/supportdesk/pkg/constant"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	orderByPriorityRank = "CASE priority WHEN 'urgent' THEN 1 WHEN 'vip' THEN 2 ELSE 3 END"
	orderByStatusRank   = "CASE status WHEN 'unread' THEN 1 WHEN 'read' THEN 2 ELSE 3 END"
)

// ConversationRepo is the repository for conversation operations.
// Every mutation is a single UPDATE/UPSERT statement so concurrent events never lose counter updates.
type ConversationRepo struct {
	db *gorm.DB
}

// NewConversationRepo creates a new ConversationRepo
func NewConversationRepo(db *gorm.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// Get gets a conversation by user id, archived or not. Returns nil when absent.
func (r *ConversationRepo) Get(ctx context.Context, userId int64) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := r.db.WithContext(ctx).Where("user_id = ?", userId).First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// GetActiveByTopic gets the non-archived conversation bound to a topic. Returns nil when absent.
func (r *ConversationRepo) GetActiveByTopic(ctx context.Context, topicId int64) (*entity.Conversation, error) {
	var conv entity.Conversation
	err := r.db.WithContext(ctx).
		Where("topic_id = ? AND is_archived = ?", topicId, false).
		First(&conv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &conv, nil
}

// UpsertFresh creates the conversation or resurrects an archived one onto a new topic.
// The row ends up active, unread with one unread message and a clean follow-up track.
func (r *ConversationRepo) UpsertFresh(ctx context.Context, ident entity.Identity, topicId int64, content *entity.Content, now int64) (*entity.Conversation, error) {
	preview := content.Preview()
	conv := &entity.Conversation{
		UserId:             ident.UserId,
		Username:           ident.Username,
		FirstName:          ident.FirstName,
		LastName:           ident.LastName,
		TopicId:            &topicId,
		Status:             constant.StatusUnread,
		Priority:           constant.PriorityNormal,
		UnreadCount:        1,
		LastMessagePreview: preview,
		LastMessageType:    content.Type,
		LastMessageAt:      now,
		FollowUpEnabled:    true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"username":               ident.Username,
			"first_name":             ident.FirstName,
			"last_name":              ident.LastName,
			"topic_id":               topicId,
			"is_archived":            false,
			"status":                 constant.StatusUnread,
			"unread_count":           1,
			"last_message_preview":   preview,
			"last_message_type":      content.Type,
			"last_message_at":        now,
			"last_reply_at":          0,
			"followup_stage":         0,
			"followup_done":          false,
			"followup_skipped_until": nil,
			"updated_at":             now,
		}),
	}).Create(conv).Error
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, ident.UserId)
}

// RebindTopic points an active conversation at a replacement topic
func (r *ConversationRepo) RebindTopic(ctx context.Context, userId, topicId int64, now int64) (*entity.Conversation, error) {
	return r.update(ctx, userId, map[string]interface{}{
		"topic_id":   topicId,
		"updated_at": now,
	})
}

// ApplyInbound records a new user message: unread, counter+1, preview, follow-up reset.
// Returns nil when the user has no active conversation.
func (r *ConversationRepo) ApplyInbound(ctx context.Context, userId int64, preview, msgType string, now int64) (*entity.Conversation, error) {
	return r.update(ctx, userId, map[string]interface{}{
		"status":                 constant.StatusUnread,
		"unread_count":           gorm.Expr("unread_count + 1"),
		"last_message_preview":   entity.TruncateRunes(preview, constant.PreviewMaxLen),
		"last_message_type":      msgType,
		"last_message_at":        now,
		"followup_stage":         0,
		"followup_done":          false,
		"followup_skipped_until": nil,
		"updated_at":             now,
	})
}

// MarkRead turns unread into read and always clears the unread counter
func (r *ConversationRepo) MarkRead(ctx context.Context, userId int64, now int64) (*entity.Conversation, error) {
	return r.update(ctx, userId, map[string]interface{}{
		"status":       gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END", constant.StatusUnread, constant.StatusRead),
		"unread_count": 0,
		"updated_at":   now,
	})
}

// MarkUnread forces unread status with a non-zero badge
func (r *ConversationRepo) MarkUnread(ctx context.Context, userId int64, now int64) (*entity.Conversation, error) {
	return r.update(ctx, userId, map[string]interface{}{
		"status":       constant.StatusUnread,
		"unread_count": gorm.Expr("CASE WHEN unread_count = 0 THEN 1 ELSE unread_count END"),
		"updated_at":   now,
	})
}

// MarkAnswered records an admin reply and stamps last_reply_at
func (r *ConversationRepo) MarkAnswered(ctx context.Context, userId int64, now int64) (*entity.Conversation, error) {
	return r.update(ctx, userId, map[string]interface{}{
		"status":        constant.StatusAnswered,
		"unread_count":  0,
		"last_reply_at": now,
		"updated_at":    now,
	})
}

// SetPriority sets the priority level
func (r *ConversationRepo) SetPriority(ctx context.Context, userId int64, priority string, now int64) (*entity.Conversation, error) {
	return r.update(ctx, userId, map[string]interface{}{
		"priority":   priority,
		"updated_at": now,
	})
}

// Archive closes the conversation and removes it from every active set
func (r *ConversationRepo) Archive(ctx context.Context, userId int64, now int64) (*entity.Conversation, error) {
	return r.update(ctx, userId, map[string]interface{}{
		"is_archived":  true,
		"status":       constant.StatusClosed,
		"unread_count": 0,
		"updated_at":   now,
	})
}

// AdvanceFollowUpStage increments the reminder stage
func (r *ConversationRepo) AdvanceFollowUpStage(ctx context.Context, userId int64, now int64) (*entity.Conversation, error) {
	return r.update(ctx, userId, map[string]interface{}{
		"followup_stage": gorm.Expr("followup_stage + 1"),
		"updated_at":     now,
	})
}

// MarkFollowUpDone suppresses reminders until the next inbound message
func (r *ConversationRepo) MarkFollowUpDone(ctx context.Context, userId int64, now int64) (*entity.Conversation, error) {
	return r.update(ctx, userId, map[string]interface{}{
		"followup_done": true,
		"updated_at":    now,
	})
}

// SkipFollowUp suppresses reminders until the given time
func (r *ConversationRepo) SkipFollowUp(ctx context.Context, userId int64, until int64, now int64) (*entity.Conversation, error) {
	return r.update(ctx, userId, map[string]interface{}{
		"followup_skipped_until": until,
		"updated_at":             now,
	})
}

// ResetFollowUp clears the reminder track
func (r *ConversationRepo) ResetFollowUp(ctx context.Context, userId int64, now int64) (*entity.Conversation, error) {
	return r.update(ctx, userId, map[string]interface{}{
		"followup_stage":         0,
		"followup_done":          false,
		"followup_skipped_until": nil,
		"updated_at":             now,
	})
}

// ListActive lists non-archived conversations: unread first, then read, then the rest; newest first
func (r *ConversationRepo) ListActive(ctx context.Context) ([]*entity.Conversation, error) {
	var convs []*entity.Conversation
	err := r.db.WithContext(ctx).
		Where("is_archived = ?", false).
		Order(orderByStatusRank).
		Order("last_message_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// ListByPriority lists non-archived conversations with the given priority, in ListActive order
func (r *ConversationRepo) ListByPriority(ctx context.Context, priority string) ([]*entity.Conversation, error) {
	var convs []*entity.Conversation
	err := r.db.WithContext(ctx).
		Where("is_archived = ? AND priority = ?", false, priority).
		Order(orderByStatusRank).
		Order("last_message_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// ListUnread lists unread conversations by priority, newest first
func (r *ConversationRepo) ListUnread(ctx context.Context) ([]*entity.Conversation, error) {
	return r.listUnread(ctx, 0)
}

// ListStaleUnread lists unread conversations whose last inbound message is older than before
func (r *ConversationRepo) ListStaleUnread(ctx context.Context, before int64) ([]*entity.Conversation, error) {
	return r.listUnread(ctx, before)
}

func (r *ConversationRepo) listUnread(ctx context.Context, before int64) ([]*entity.Conversation, error) {
	q := r.db.WithContext(ctx).
		Where("is_archived = ? AND status = ?", false, constant.StatusUnread)
	if before > 0 {
		q = q.Where("last_message_at > 0 AND last_message_at < ?", before)
	}

	var convs []*entity.Conversation
	err := q.Order(orderByPriorityRank).
		Order("last_message_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// ListInactiveBefore lists non-archived conversations with no inbound message since before
func (r *ConversationRepo) ListInactiveBefore(ctx context.Context, before int64) ([]*entity.Conversation, error) {
	var convs []*entity.Conversation
	err := r.db.WithContext(ctx).
		Where("is_archived = ? AND last_message_at < ?", false, before).
		Order("last_message_at ASC").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// ListFollowUpsDue lists answered conversations waiting since cutoff or longer, not done and not skipped.
// Ordered by priority rank, then the oldest reply first.
func (r *ConversationRepo) ListFollowUpsDue(ctx context.Context, now, cutoff int64) ([]*entity.Conversation, error) {
	var convs []*entity.Conversation
	err := r.db.WithContext(ctx).
		Where("is_archived = ? AND status = ? AND followup_done = ?", false, constant.StatusAnswered, false).
		Where("last_reply_at > 0 AND last_reply_at <= ?", cutoff).
		Where("followup_skipped_until IS NULL OR followup_skipped_until < ?", now).
		Order(orderByPriorityRank).
		Order("last_reply_at ASC").
		Find(&convs).Error
	if err != nil {
		return nil, err
	}
	return convs, nil
}

// update applies updates to one active conversation and re-reads it.
// Returns nil when no active conversation exists for the user.
func (r *ConversationRepo) update(ctx context.Context, userId int64, updates map[string]interface{}) (*entity.Conversation, error) {
	res := r.db.WithContext(ctx).
		Model(&entity.Conversation{}).
		Where("user_id = ? AND is_archived = ?", userId, false).
		Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	conv, err := r.Get(ctx, userId)
	if err != nil {
		return nil, err
	}
	// MySQL reports zero affected rows when nothing changed, so re-check activity on the row itself
	if res.RowsAffected == 0 && (conv == nil || conv.IsArchived) {
		return nil, nil
	}
	return conv, nil
}
