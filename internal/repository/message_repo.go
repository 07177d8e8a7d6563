package repository

import (
	"context"

	"github.com/mbeoliero/supportdesk/internal/entity"
	"github.com/mbeoliero/supportdesk/pkg/constant"
	"gorm.io/gorm"
)

// MessageRepo is the repository for the append-only message log
type MessageRepo struct {
	db *gorm.DB
}

// NewMessageRepo creates a new MessageRepo
func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Append appends a log entry
func (r *MessageRepo) Append(ctx context.Context, entry *entity.MessageLog) error {
	if entry.CreatedAt == 0 {
		entry.CreatedAt = entity.NowUnixMilli()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// Stats counts a user's logged messages by direction
func (r *MessageRepo) Stats(ctx context.Context, userId int64) (*entity.MessageStats, error) {
	var stats entity.MessageStats
	err := r.db.WithContext(ctx).
		Model(&entity.MessageLog{}).
		Select(
			"COUNT(*) AS total, "+
				"COALESCE(SUM(CASE WHEN direction = ? THEN 1 ELSE 0 END), 0) AS inbound, "+
				"COALESCE(SUM(CASE WHEN direction = ? THEN 1 ELSE 0 END), 0) AS outbound",
			constant.DirectionIn, constant.DirectionOut,
		).
		Where("user_id = ?", userId).
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Search finds the newest log entries whose content contains q
// limit is capped at 50
func (r *MessageRepo) Search(ctx context.Context, q string, limit int) ([]*entity.MessageSearchResult, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	var results []*entity.MessageSearchResult
	err := r.db.WithContext(ctx).
		Table("message_logs m").
		Select("m.user_id, m.direction, m.content, c.first_name, m.created_at").
		Joins("JOIN conversations c ON c.user_id = m.user_id").
		Where("m.content LIKE ?", "%"+q+"%").
		Order("m.created_at DESC").
		Order("m.id DESC").
		Limit(limit).
		Scan(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ListByUser gets the latest N log entries of a user, oldest first
func (r *MessageRepo) ListByUser(ctx context.Context, userId int64, limit int) ([]*entity.MessageLog, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var entries []*entity.MessageLog
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userId).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	// Reverse to ascending order
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	return entries, nil
}
