package service

import (
	"context"
	"time"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/supportdesk/internal/entity"
	"github.com/mbeoliero/supportdesk/pkg/constant"
	"github.com/mbeoliero/supportdesk/pkg/errcode"
)

const (
	// DefaultSkipDays is used when skip is called without a positive day count
	DefaultSkipDays = 3
	// MaxSkipDays caps a skip
	MaxSkipDays = 365
)

// IsDue reports whether a conversation is overdue for a follow-up nudge at now.
// It mirrors the ListFollowUpsDue query and is never persisted.
func IsDue(conv *entity.Conversation, now time.Time, threshold time.Duration) bool {
	if conv.IsArchived || conv.Status != constant.StatusAnswered || conv.FollowUpDone {
		return false
	}
	if conv.LastReplyAt <= 0 || now.UnixMilli()-conv.LastReplyAt < threshold.Milliseconds() {
		return false
	}
	return conv.FollowUpSkippedUntil == nil || *conv.FollowUpSkippedUntil < now.UnixMilli()
}

// FollowUpService computes overdue conversations and manages their reminder track
type FollowUpService struct {
	store     ConversationStore
	now       Clock
	threshold time.Duration
}

// NewFollowUpService creates a new FollowUpService
func NewFollowUpService(store ConversationStore, now Clock, threshold time.Duration) *FollowUpService {
	return &FollowUpService{store: store, now: now, threshold: threshold}
}

// Threshold returns the configured waiting time after an admin reply
func (s *FollowUpService) Threshold() time.Duration {
	return s.threshold
}

// ListDue lists overdue conversations, urgent before vip before normal, oldest reply first.
// The follow-up command, the daily report and broadcasts all use this ordering.
func (s *FollowUpService) ListDue(ctx context.Context) ([]*entity.Conversation, error) {
	now := s.now()
	convs, err := s.store.ListFollowUpsDue(ctx, now.UnixMilli(), now.Add(-s.threshold).UnixMilli())
	if err != nil {
		log.CtxError(ctx, "list follow-ups due failed: error=%v", err)
		return nil, errcode.ErrStoreFailure.Wrap(err)
	}
	return convs, nil
}

// AdvanceStage increments the reminder stage. No reminder text branches on it yet.
func (s *FollowUpService) AdvanceStage(ctx context.Context, userId int64) (*entity.Conversation, error) {
	return s.write(ctx, userId, "advance follow-up stage", func(now int64) (*entity.Conversation, error) {
		return s.store.AdvanceFollowUpStage(ctx, userId, now)
	})
}

// MarkDone stops reminders until the user writes again
func (s *FollowUpService) MarkDone(ctx context.Context, userId int64) (*entity.Conversation, error) {
	return s.write(ctx, userId, "mark follow-up done", func(now int64) (*entity.Conversation, error) {
		return s.store.MarkFollowUpDone(ctx, userId, now)
	})
}

// Skip suppresses reminders for days; non-positive days fall back to DefaultSkipDays and
// longer skips are capped at MaxSkipDays
func (s *FollowUpService) Skip(ctx context.Context, userId int64, days int) (*entity.Conversation, error) {
	days = ClampSkipDays(days)
	return s.write(ctx, userId, "skip follow-up", func(now int64) (*entity.Conversation, error) {
		until := s.now().Add(time.Duration(days) * 24 * time.Hour).UnixMilli()
		return s.store.SkipFollowUp(ctx, userId, until, now)
	})
}

// Reset clears stage, done and skip
func (s *FollowUpService) Reset(ctx context.Context, userId int64) (*entity.Conversation, error) {
	return s.write(ctx, userId, "reset follow-up", func(now int64) (*entity.Conversation, error) {
		return s.store.ResetFollowUp(ctx, userId, now)
	})
}

// ClampSkipDays maps a requested skip length into [1, MaxSkipDays]
func ClampSkipDays(days int) int {
	switch {
	case days <= 0:
		return DefaultSkipDays
	case days > MaxSkipDays:
		return MaxSkipDays
	default:
		return days
	}
}

func (s *FollowUpService) write(ctx context.Context, userId int64, op string, apply func(now int64) (*entity.Conversation, error)) (*entity.Conversation, error) {
	conv, err := apply(s.now().UnixMilli())
	if err != nil {
		log.CtxError(ctx, "%s failed: user_id=%d, error=%v", op, userId, err)
		return nil, errcode.ErrStoreFailure.Wrap(err)
	}
	if conv == nil {
		return nil, errcode.ErrConvNotFound
	}
	return conv, nil
}
