package service

import (
	"context"
	"testing"
	"time"

	"github.com/mbeoliero/supportdesk/internal/entity"
	"github.com/mbeoliero/supportdesk/pkg/constant"
	"github.com/mbeoliero/supportdesk/pkg/errcode"
	"github.com/stretchr/testify/require"
)

func TestConversation_RecordInboundWithoutConversation(t *testing.T) {
	h := newHarness(t)
	item := entity.TextContent("hallo")

	change, err := h.conv.RecordInbound(context.Background(), 1, &item)
	require.NoError(t, err)
	require.True(t, change.NeedsTopic)
	require.Nil(t, change.Conversation)
}

func TestConversation_UnreadInvariant(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.write(t, 1, "Anna", "hallo")

	steps := []func() (*StateChange, error){
		func() (*StateChange, error) { return h.conv.MarkRead(ctx, 1) },
		func() (*StateChange, error) { return h.conv.MarkUnread(ctx, 1) },
		func() (*StateChange, error) {
			item := entity.TextContent("noch da?")
			return h.conv.RecordInbound(ctx, 1, &item)
		},
		func() (*StateChange, error) { return h.conv.RecordOutbound(ctx, 1) },
		func() (*StateChange, error) { return h.conv.MarkUnread(ctx, 1) },
		func() (*StateChange, error) { return h.conv.SetPriority(ctx, 1, constant.PriorityVIP) },
		func() (*StateChange, error) { return h.conv.MarkRead(ctx, 1) },
		func() (*StateChange, error) { return h.conv.Archive(ctx, 1) },
	}
	for i, step := range steps {
		change, err := step()
		require.NoError(t, err, "step %d", i)
		requireUnreadInvariant(t, change.Conversation)
	}
}

func TestConversation_Counters(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.write(t, 1, "Anna", "eins")
	conv := h.write(t, 1, "Anna", "zwei")
	require.Equal(t, 2, conv.UnreadCount)
	require.Equal(t, "zwei", conv.LastMessagePreview)

	change, err := h.conv.MarkRead(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, constant.StatusRead, change.Conversation.Status)
	require.Zero(t, change.Conversation.UnreadCount)
	require.True(t, change.DisplayChanged)

	change, err = h.conv.MarkUnread(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, constant.StatusUnread, change.Conversation.Status)
	require.Equal(t, 1, change.Conversation.UnreadCount)

	// answered conversations keep their status on read
	h.answer(t, 1)
	change, err = h.conv.MarkRead(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, constant.StatusAnswered, change.Conversation.Status)
	require.False(t, change.DisplayChanged)
}

func TestConversation_RecordOutbound(t *testing.T) {
	h := newHarness(t)
	h.write(t, 1, "Anna", "hallo")
	h.clock.Advance(5 * time.Minute)

	conv := h.answer(t, 1)
	require.Equal(t, constant.StatusAnswered, conv.Status)
	require.Zero(t, conv.UnreadCount)
	require.Equal(t, h.clock.Now().UnixMilli(), conv.LastReplyAt)
}

func TestConversation_RecordInboundResetsFollowUp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.write(t, 1, "Anna", "hallo")
	h.answer(t, 1)

	_, err := h.followUps.AdvanceStage(ctx, 1)
	require.NoError(t, err)
	_, err = h.followUps.Skip(ctx, 1, 2)
	require.NoError(t, err)
	conv, err := h.followUps.MarkDone(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 1, conv.FollowUpStage)
	require.True(t, conv.FollowUpDone)
	require.NotNil(t, conv.FollowUpSkippedUntil)

	conv = h.write(t, 1, "Anna", "danke")
	require.Equal(t, constant.StatusUnread, conv.Status)
	require.Zero(t, conv.FollowUpStage)
	require.False(t, conv.FollowUpDone)
	require.Nil(t, conv.FollowUpSkippedUntil)
}

func TestConversation_SetPriority(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.write(t, 1, "Anna", "hallo")

	_, err := h.conv.SetPriority(ctx, 1, "gold")
	require.True(t, errcode.Is(err, errcode.ErrInvalidPriority))

	conv := h.load(t, 1)
	change, err := h.conv.TogglePriority(ctx, conv, constant.PriorityVIP)
	require.NoError(t, err)
	require.Equal(t, constant.PriorityVIP, change.Conversation.Priority)

	change, err = h.conv.TogglePriority(ctx, change.Conversation, constant.PriorityVIP)
	require.NoError(t, err)
	require.Equal(t, constant.PriorityNormal, change.Conversation.Priority)
}

func TestConversation_ArchivedRejectsTransitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.write(t, 1, "Anna", "hallo")

	change, err := h.conv.Archive(ctx, 1)
	require.NoError(t, err)
	require.True(t, change.Conversation.IsArchived)
	require.Equal(t, constant.StatusClosed, change.Conversation.Status)

	_, err = h.conv.MarkRead(ctx, 1)
	require.True(t, errcode.Is(err, errcode.ErrConvNotFound))
	_, err = h.conv.GetActive(ctx, 1)
	require.True(t, errcode.Is(err, errcode.ErrConvNotFound))

	active, err := h.conv.ListActive(ctx)
	require.NoError(t, err)
	require.Empty(t, active)

	byTopic, err := h.conv.GetByTopic(ctx, change.Conversation.Topic())
	require.NoError(t, err)
	require.Nil(t, byTopic)
}

func TestConversation_ListActiveOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.write(t, 1, "Anna", "a")
	h.clock.Advance(time.Minute)
	h.write(t, 2, "Ben", "b")
	h.clock.Advance(time.Minute)
	h.write(t, 3, "Carla", "c")
	h.clock.Advance(time.Minute)
	h.write(t, 4, "Dora", "d")

	_, err := h.conv.MarkRead(ctx, 2)
	require.NoError(t, err)
	h.answer(t, 4)

	convs, err := h.conv.ListActive(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{3, 1, 2, 4}, userIds(convs))
}

func TestConversation_Resolve(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	anna := h.write(t, 1, "Anna", "a")
	h.clock.Advance(time.Minute)
	h.write(t, 2, "Johanna", "b")

	conv, err := h.conv.Resolve(ctx, anna.Topic(), "")
	require.NoError(t, err)
	require.Equal(t, int64(1), conv.UserId)

	// newest unread first, so Johanna wins the substring match
	conv, err = h.conv.Resolve(ctx, 0, "ANNA")
	require.NoError(t, err)
	require.Equal(t, int64(2), conv.UserId)

	_, err = h.conv.Resolve(ctx, 0, "  ")
	require.True(t, errcode.Is(err, errcode.ErrMissingName))

	_, err = h.conv.Resolve(ctx, 999, "zoe")
	require.True(t, errcode.Is(err, errcode.ErrNoMatch))
}

type recordingSink struct {
	changed []int64
}

func (s *recordingSink) ConversationChanged(_ context.Context, conv *entity.Conversation) {
	s.changed = append(s.changed, conv.UserId)
}

func (s *recordingSink) BroadcastProgress(context.Context, int64, *BroadcastProgress) {}

func TestConversation_SinkOnlyOnDisplayChange(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sink := &recordingSink{}
	h.conv.SetSink(sink)
	h.write(t, 1, "Anna", "hallo")

	_, err := h.conv.MarkRead(ctx, 1)
	require.NoError(t, err)
	_, err = h.conv.MarkRead(ctx, 1)
	require.NoError(t, err)
	// one event for the new conversation, one for the first read
	require.Equal(t, []int64{1, 1}, sink.changed)
}
