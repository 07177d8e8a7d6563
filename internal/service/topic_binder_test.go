package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mbeoliero/supportdesk/internal/entity"
	"github.com/mbeoliero/supportdesk/pkg/constant"
	"github.com/stretchr/testify/require"
)

func TestRenderName(t *testing.T) {
	tests := []struct {
		name    string
		summary entity.Summary
		want    string
	}{
		{"unread with badge", entity.Summary{Name: "Anna", Status: constant.StatusUnread, Priority: constant.PriorityNormal, UnreadCount: 3}, "🔴 Anna (3)"},
		{"vip read", entity.Summary{Name: "Anna", Status: constant.StatusRead, Priority: constant.PriorityVIP}, "⭐ ⚪ Anna"},
		{"urgent answered", entity.Summary{Name: "Anna", Status: constant.StatusAnswered, Priority: constant.PriorityUrgent}, "🚨 🟢 Anna"},
		{"closed", entity.Summary{Name: "Anna", Status: constant.StatusClosed}, "⚫ Anna"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, RenderName(tt.summary))
		})
	}
}

func TestRenderName_Truncates(t *testing.T) {
	name := RenderName(entity.Summary{Name: strings.Repeat("ä", 300), Status: constant.StatusUnread, UnreadCount: 1})
	require.Equal(t, constant.TopicNameMaxLen, utf8.RuneCountInString(name))
}

func TestTopicBinder_NewTopicNaming(t *testing.T) {
	h := newHarness(t)

	conv := h.write(t, 1, "Anna", "hallo")
	require.Equal(t, []string{"🔴 Anna"}, h.tr.Created)
	// the badge differs from the creation name, so exactly one rename follows
	require.Equal(t, 1, h.tr.RenameCount())
	require.Equal(t, "🔴 Anna (1)", h.tr.Renames[0].Name)
	require.Equal(t, conv.Topic(), h.tr.Renames[0].TopicId)
}

func TestTopicBinder_RenameSuppression(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv := h.write(t, 1, "Anna", "hallo")
	renames := h.tr.RenameCount()

	require.False(t, h.binder.SyncTopicName(ctx, conv))
	require.Equal(t, renames, h.tr.RenameCount())

	change, err := h.conv.MarkRead(ctx, 1)
	require.NoError(t, err)
	h.binder.Apply(ctx, change)
	require.Equal(t, renames+1, h.tr.RenameCount())

	// no display change, no call
	change, err = h.conv.MarkRead(ctx, 1)
	require.NoError(t, err)
	h.binder.Apply(ctx, change)
	require.Equal(t, renames+1, h.tr.RenameCount())
}

func TestTopicBinder_FailedRenameRetries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.write(t, 1, "Anna", "hallo")
	renames := h.tr.RenameCount()

	h.tr.RenameErr = errors.New("flood wait")
	change, err := h.conv.MarkRead(ctx, 1)
	require.NoError(t, err)
	require.False(t, h.binder.SyncTopicName(ctx, change.Conversation))
	require.Equal(t, renames, h.tr.RenameCount())

	// the cache still holds the old name, so the same summary is retried
	h.tr.RenameErr = nil
	require.True(t, h.binder.SyncTopicName(ctx, change.Conversation))
	require.Equal(t, "⚪ Anna", h.tr.Renames[len(h.tr.Renames)-1].Name)
}

func TestTopicBinder_ForgetForcesRename(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv := h.write(t, 1, "Anna", "hallo")
	renames := h.tr.RenameCount()

	h.binder.Forget(conv.Topic())
	require.True(t, h.binder.SyncTopicName(ctx, conv))
	require.Equal(t, renames+1, h.tr.RenameCount())
}

func TestTopicBinder_Reconcile(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv := h.write(t, 1, "Anna", "hallo")
	oldTopic := conv.Topic()

	var attempts []int64
	rebound, err := h.binder.Reconcile(ctx, conv, func(_ context.Context, topicId int64) error {
		attempts = append(attempts, topicId)
		return nil
	})
	require.NoError(t, err)
	require.NotEqual(t, oldTopic, rebound.Topic())
	require.Equal(t, []int64{rebound.Topic()}, attempts)
	require.Equal(t, rebound.Topic(), h.load(t, 1).Topic())

	byOld, err := h.conv.GetByTopic(ctx, oldTopic)
	require.NoError(t, err)
	require.Nil(t, byOld)
}

func TestTopicBinder_ReconcileRetriesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv := h.write(t, 1, "Anna", "hallo")
	created := len(h.tr.Created)

	attempts := 0
	_, err := h.binder.Reconcile(ctx, conv, func(context.Context, int64) error {
		attempts++
		return errors.New("still broken")
	})
	require.Error(t, err)
	require.Equal(t, 1, attempts)
	require.Len(t, h.tr.Created, created+1)
}

func TestTopicBinder_CloseTopic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	conv := h.write(t, 1, "Anna", "hallo")

	h.tr.CloseErr = errors.New("already closed")
	h.binder.CloseTopic(ctx, conv.Topic())
	require.Empty(t, h.tr.Closed)

	h.tr.CloseErr = nil
	h.binder.CloseTopic(ctx, 0)
	h.binder.CloseTopic(ctx, conv.Topic())
	require.Equal(t, []int64{conv.Topic()}, h.tr.Closed)
}
