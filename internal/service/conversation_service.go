package service

import (
	"context"
	"strings"
	"time"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/supportdesk/internal/entity"
	"github.com/mbeoliero/supportdesk/pkg/constant"
	"github.com/mbeoliero/supportdesk/pkg/errcode"
)

// StateChange is the outcome of a state-machine transition.
// DisplayChanged is set when the rendered topic summary differs from before, which is
// the only case that requires a topic rename.
type StateChange struct {
	Conversation   *entity.Conversation
	DisplayChanged bool
	// NeedsTopic is set by RecordInbound when the user has no active conversation
	NeedsTopic bool
}

// ConversationService is the conversation state machine
type ConversationService struct {
	store ConversationStore
	now   Clock
	sink  EventSink
}

// NewConversationService creates a new ConversationService
func NewConversationService(store ConversationStore, now Clock) *ConversationService {
	return &ConversationService{store: store, now: now, sink: NopSink}
}

// SetSink sets the live feed sink
func (s *ConversationService) SetSink(sink EventSink) {
	s.sink = sink
}

// Announce pushes conv to the live feed. Used for rows written outside a transition.
func (s *ConversationService) Announce(ctx context.Context, conv *entity.Conversation) {
	s.sink.ConversationChanged(ctx, conv)
}

// Get gets a conversation by user id, archived or not
func (s *ConversationService) Get(ctx context.Context, userId int64) (*entity.Conversation, error) {
	conv, err := s.store.Get(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "get conversation failed: user_id=%d, error=%v", userId, err)
		return nil, errcode.ErrStoreFailure.Wrap(err)
	}
	return conv, nil
}

// GetActive gets the active conversation of a user
func (s *ConversationService) GetActive(ctx context.Context, userId int64) (*entity.Conversation, error) {
	conv, err := s.Get(ctx, userId)
	if err != nil {
		return nil, err
	}
	if conv == nil || conv.IsArchived {
		return nil, errcode.ErrConvNotFound
	}
	return conv, nil
}

// GetByTopic gets the active conversation bound to a topic; nil when the topic is unbound
func (s *ConversationService) GetByTopic(ctx context.Context, topicId int64) (*entity.Conversation, error) {
	conv, err := s.store.GetActiveByTopic(ctx, topicId)
	if err != nil {
		log.CtxError(ctx, "get conversation by topic failed: topic_id=%d, error=%v", topicId, err)
		return nil, errcode.ErrStoreFailure.Wrap(err)
	}
	return conv, nil
}

// RecordInbound records a new user message. When the user has no active conversation the
// returned change has NeedsTopic set and nothing is written.
func (s *ConversationService) RecordInbound(ctx context.Context, userId int64, item *entity.Content) (*StateChange, error) {
	change, err := s.transition(ctx, userId, "record inbound", func(now int64) (*entity.Conversation, error) {
		return s.store.ApplyInbound(ctx, userId, item.Preview(), item.Type, now)
	})
	if errcode.Is(err, errcode.ErrConvNotFound) {
		return &StateChange{NeedsTopic: true}, nil
	}
	return change, err
}

// MarkRead turns unread into read and clears the unread counter
func (s *ConversationService) MarkRead(ctx context.Context, userId int64) (*StateChange, error) {
	return s.transition(ctx, userId, "mark read", func(now int64) (*entity.Conversation, error) {
		return s.store.MarkRead(ctx, userId, now)
	})
}

// MarkUnread forces unread with a badge of at least one
func (s *ConversationService) MarkUnread(ctx context.Context, userId int64) (*StateChange, error) {
	return s.transition(ctx, userId, "mark unread", func(now int64) (*entity.Conversation, error) {
		return s.store.MarkUnread(ctx, userId, now)
	})
}

// RecordOutbound records an admin reply. It is the only transition into answered and
// therefore the only way a conversation becomes eligible for follow-up.
func (s *ConversationService) RecordOutbound(ctx context.Context, userId int64) (*StateChange, error) {
	return s.transition(ctx, userId, "record outbound", func(now int64) (*entity.Conversation, error) {
		return s.store.MarkAnswered(ctx, userId, now)
	})
}

// SetPriority sets the priority level
func (s *ConversationService) SetPriority(ctx context.Context, userId int64, priority string) (*StateChange, error) {
	if !constant.IsValidPriority(priority) {
		return nil, errcode.ErrInvalidPriority
	}
	return s.transition(ctx, userId, "set priority", func(now int64) (*entity.Conversation, error) {
		return s.store.SetPriority(ctx, userId, priority, now)
	})
}

// TogglePriority switches between level and normal
func (s *ConversationService) TogglePriority(ctx context.Context, conv *entity.Conversation, level string) (*StateChange, error) {
	next := level
	if conv.Priority == level {
		next = constant.PriorityNormal
	}
	return s.SetPriority(ctx, conv.UserId, next)
}

// Archive closes the conversation
func (s *ConversationService) Archive(ctx context.Context, userId int64) (*StateChange, error) {
	return s.transition(ctx, userId, "archive", func(now int64) (*entity.Conversation, error) {
		return s.store.Archive(ctx, userId, now)
	})
}

// transition runs one atomic store mutation and reports whether the displayed summary changed
func (s *ConversationService) transition(ctx context.Context, userId int64, op string, apply func(now int64) (*entity.Conversation, error)) (*StateChange, error) {
	before, err := s.store.Get(ctx, userId)
	if err != nil {
		log.CtxError(ctx, "%s: load conversation failed: user_id=%d, error=%v", op, userId, err)
		return nil, errcode.ErrStoreFailure.Wrap(err)
	}
	if before == nil || before.IsArchived {
		return nil, errcode.ErrConvNotFound
	}

	after, err := apply(s.now().UnixMilli())
	if err != nil {
		log.CtxError(ctx, "%s failed: user_id=%d, error=%v", op, userId, err)
		return nil, errcode.ErrStoreFailure.Wrap(err)
	}
	if after == nil {
		// archived concurrently
		return nil, errcode.ErrConvNotFound
	}

	change := &StateChange{
		Conversation:   after,
		DisplayChanged: before.Summary() != after.Summary(),
	}
	if change.DisplayChanged {
		s.sink.ConversationChanged(ctx, after)
	}
	log.CtxDebug(ctx, "%s: user_id=%d, status=%s, unread=%d, display_changed=%v", op, userId, after.Status, after.UnreadCount, change.DisplayChanged)
	return change, nil
}

// Resolve finds the command target: the conversation bound to topicId, otherwise the first
// active conversation whose display name contains query.
func (s *ConversationService) Resolve(ctx context.Context, topicId int64, query string) (*entity.Conversation, error) {
	if topicId != 0 {
		conv, err := s.GetByTopic(ctx, topicId)
		if err != nil {
			return nil, err
		}
		if conv != nil {
			return conv, nil
		}
	}
	if strings.TrimSpace(query) == "" {
		return nil, errcode.ErrMissingName
	}
	return s.FindByName(ctx, query)
}

// FindByName returns the first active conversation, in listing order, whose display name
// contains query case-insensitively
func (s *ConversationService) FindByName(ctx context.Context, query string) (*entity.Conversation, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	convs, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	for _, conv := range convs {
		if strings.Contains(strings.ToLower(conv.DisplayName()), needle) {
			return conv, nil
		}
	}
	return nil, errcode.ErrNoMatch
}

// ListActive lists all non-archived conversations: unread, read, then the rest; newest first
func (s *ConversationService) ListActive(ctx context.Context) ([]*entity.Conversation, error) {
	convs, err := s.store.ListActive(ctx)
	if err != nil {
		log.CtxError(ctx, "list active conversations failed: error=%v", err)
		return nil, errcode.ErrStoreFailure.Wrap(err)
	}
	return convs, nil
}

// ListByPriority lists non-archived conversations of one priority
func (s *ConversationService) ListByPriority(ctx context.Context, priority string) ([]*entity.Conversation, error) {
	convs, err := s.store.ListByPriority(ctx, priority)
	if err != nil {
		log.CtxError(ctx, "list conversations by priority failed: priority=%s, error=%v", priority, err)
		return nil, errcode.ErrStoreFailure.Wrap(err)
	}
	return convs, nil
}

// ListStaleUnread lists unread conversations whose last message is older than age
func (s *ConversationService) ListStaleUnread(ctx context.Context, age time.Duration) ([]*entity.Conversation, error) {
	convs, err := s.store.ListStaleUnread(ctx, s.now().Add(-age).UnixMilli())
	if err != nil {
		log.CtxError(ctx, "list stale unread conversations failed: error=%v", err)
		return nil, errcode.ErrStoreFailure.Wrap(err)
	}
	return convs, nil
}

// ListInactive lists non-archived conversations without any message for longer than age
func (s *ConversationService) ListInactive(ctx context.Context, age time.Duration) ([]*entity.Conversation, error) {
	convs, err := s.store.ListInactiveBefore(ctx, s.now().Add(-age).UnixMilli())
	if err != nil {
		log.CtxError(ctx, "list inactive conversations failed: error=%v", err)
		return nil, errcode.ErrStoreFailure.Wrap(err)
	}
	return convs, nil
}

// ListUnread lists unread conversations, urgent first
func (s *ConversationService) ListUnread(ctx context.Context) ([]*entity.Conversation, error) {
	convs, err := s.store.ListUnread(ctx)
	if err != nil {
		log.CtxError(ctx, "list unread conversations failed: error=%v", err)
		return nil, errcode.ErrStoreFailure.Wrap(err)
	}
	return convs, nil
}
