package service

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/supportdesk/internal/entity"
	"github.com/mbeoliero/supportdesk/internal/metrics"
	"github.com/mbeoliero/supportdesk/internal/transport"
	"github.com/mbeoliero/supportdesk/pkg/constant"
	"github.com/mbeoliero/supportdesk/pkg/errcode"
)

// RenderName composes the topic name: priority glyph, status glyph, display name and the
// unread badge, truncated to the platform limit.
func RenderName(s entity.Summary) string {
	parts := make([]string, 0, 4)
	if g := constant.PriorityGlyph(s.Priority); g != "" {
		parts = append(parts, g)
	}
	if g := constant.StatusGlyph(s.Status); g != "" {
		parts = append(parts, g)
	}
	if s.Name != "" {
		parts = append(parts, s.Name)
	}
	if s.UnreadCount > 0 {
		parts = append(parts, "("+strconv.Itoa(s.UnreadCount)+")")
	}
	return entity.TruncateRunes(strings.Join(parts, " "), constant.TopicNameMaxLen)
}

// InitialTopicName is the name a topic is created with
func InitialTopicName(ident entity.Identity) string {
	return entity.TruncateRunes(constant.GlyphUnread+" "+ident.DisplayName(), constant.TopicNameMaxLen)
}

// TopicBinder keeps each conversation bound to one live workspace topic and its name in sync
type TopicBinder struct {
	transport transport.Transport
	store     ConversationStore
	now       Clock

	mu    sync.Mutex
	names map[int64]string // topic id -> last name the platform accepted
}

// NewTopicBinder creates a new TopicBinder with an empty name cache
func NewTopicBinder(tr transport.Transport, store ConversationStore, now Clock) *TopicBinder {
	return &TopicBinder{
		transport: tr,
		store:     store,
		now:       now,
		names:     make(map[int64]string),
	}
}

// Apply renames the topic when the change altered the displayed summary
func (b *TopicBinder) Apply(ctx context.Context, change *StateChange) {
	if change == nil || !change.DisplayChanged || change.Conversation == nil {
		return
	}
	b.SyncTopicName(ctx, change.Conversation)
}

// SyncTopicName renames the bound topic if the rendered name differs from the cached one.
// A failed rename is logged and leaves the cache untouched so the next sync retries.
// Reports whether a rename call succeeded.
func (b *TopicBinder) SyncTopicName(ctx context.Context, conv *entity.Conversation) bool {
	if !conv.HasTopic() {
		return false
	}
	topicId := conv.Topic()
	name := RenderName(conv.Summary())

	if cached, ok := b.cached(topicId); ok && cached == name {
		metrics.ObserveRename(metrics.RenameSuppressed)
		return false
	}

	if err := b.transport.RenameTopic(ctx, topicId, name); err != nil {
		metrics.ObserveRename(metrics.RenameFailed)
		log.CtxWarn(ctx, "rename topic failed: topic_id=%d, name=%s, error=%v", topicId, name, err)
		return false
	}

	metrics.ObserveRename(metrics.RenameIssued)
	b.remember(topicId, name)
	return true
}

// BindNewTopic creates a topic for a new or archived user and writes a fresh conversation
// onto it: active, unread, unread_count 1, preview of the triggering item.
func (b *TopicBinder) BindNewTopic(ctx context.Context, ident entity.Identity, item *entity.Content) (*entity.Conversation, error) {
	name := InitialTopicName(ident)
	topicId, err := b.transport.CreateTopic(ctx, name)
	if err != nil {
		log.CtxError(ctx, "create topic failed: user_id=%d, error=%v", ident.UserId, err)
		return nil, err
	}

	conv, err := b.store.UpsertFresh(ctx, ident, topicId, item, b.now().UnixMilli())
	if err != nil {
		log.CtxError(ctx, "bind new topic failed: user_id=%d, topic_id=%d, error=%v", ident.UserId, topicId, err)
		return nil, errcode.ErrStoreFailure.Wrap(err)
	}

	b.remember(topicId, name)
	log.CtxInfo(ctx, "topic bound: user_id=%d, topic_id=%d", ident.UserId, topicId)
	return conv, nil
}

// Reconcile replaces an invalid topic: it creates a new one, rebinds the conversation to it
// and retries relay exactly once against the new topic.
func (b *TopicBinder) Reconcile(ctx context.Context, conv *entity.Conversation, relay func(ctx context.Context, topicId int64) error) (*entity.Conversation, error) {
	oldTopic := conv.Topic()
	name := InitialTopicName(conv.Identity())

	topicId, err := b.transport.CreateTopic(ctx, name)
	if err != nil {
		metrics.ObserveReconcile(false)
		log.CtxError(ctx, "reconcile: create topic failed: user_id=%d, error=%v", conv.UserId, err)
		return nil, err
	}

	rebound, err := b.store.RebindTopic(ctx, conv.UserId, topicId, b.now().UnixMilli())
	if err != nil {
		metrics.ObserveReconcile(false)
		log.CtxError(ctx, "reconcile: rebind failed: user_id=%d, topic_id=%d, error=%v", conv.UserId, topicId, err)
		return nil, errcode.ErrStoreFailure.Wrap(err)
	}
	if rebound == nil {
		metrics.ObserveReconcile(false)
		return nil, errcode.ErrConvNotFound
	}

	b.Forget(oldTopic)
	b.remember(topicId, name)

	if err := relay(ctx, topicId); err != nil {
		metrics.ObserveReconcile(false)
		log.CtxError(ctx, "reconcile: retry relay failed: user_id=%d, topic_id=%d, error=%v", conv.UserId, topicId, err)
		return rebound, err
	}

	metrics.ObserveReconcile(true)
	log.CtxInfo(ctx, "topic reconciled: user_id=%d, old_topic_id=%d, new_topic_id=%d", conv.UserId, oldTopic, topicId)
	return rebound, nil
}

// CloseTopic closes the topic on the platform, best-effort, and drops its cache entry
func (b *TopicBinder) CloseTopic(ctx context.Context, topicId int64) {
	if topicId == 0 {
		return
	}
	if err := b.transport.CloseTopic(ctx, topicId); err != nil {
		log.CtxWarn(ctx, "close topic failed: topic_id=%d, error=%v", topicId, err)
	}
	b.Forget(topicId)
}

// Forget drops the cached name of a topic
func (b *TopicBinder) Forget(topicId int64) {
	b.mu.Lock()
	delete(b.names, topicId)
	b.mu.Unlock()
}

func (b *TopicBinder) cached(topicId int64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	name, ok := b.names[topicId]
	return name, ok
}

func (b *TopicBinder) remember(topicId int64, name string) {
	b.mu.Lock()
	b.names[topicId] = name
	b.mu.Unlock()
}
