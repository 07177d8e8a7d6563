package repository_test

import (
	"context"
	"sync"
	"testing"

	"github.com/mbeoliero/supportdesk/internal/entity"
	"github.com/mbeoliero/supportdesk/internal/testkit"
	"github.com/mbeoliero/supportdesk/pkg/constant"
	"github.com/stretchr/testify/require"
)

const t0 int64 = 1_700_000_000_000

func TestConversationRepo_UpsertFresh(t *testing.T) {
	repo := testkit.NewRepositories(t).Conversation
	ctx := context.Background()
	ident := entity.Identity{UserId: 1, FirstName: "Anna"}
	item := entity.TextContent("hallo")

	conv, err := repo.UpsertFresh(ctx, ident, 11, &item, t0)
	require.NoError(t, err)
	require.Equal(t, int64(11), conv.Topic())
	require.Equal(t, 1, conv.UnreadCount)
	require.Equal(t, constant.PriorityNormal, conv.Priority)
	require.Equal(t, t0, conv.CreatedAt)

	_, err = repo.SetPriority(ctx, 1, constant.PriorityVIP, t0+1)
	require.NoError(t, err)
	_, err = repo.MarkAnswered(ctx, 1, t0+2)
	require.NoError(t, err)
	_, err = repo.MarkFollowUpDone(ctx, 1, t0+3)
	require.NoError(t, err)
	_, err = repo.Archive(ctx, 1, t0+4)
	require.NoError(t, err)

	ident.FirstName = "Anne"
	again := entity.TextContent("wieder da")
	conv, err = repo.UpsertFresh(ctx, ident, 12, &again, t0+5)
	require.NoError(t, err)
	require.False(t, conv.IsArchived)
	require.Equal(t, int64(12), conv.Topic())
	require.Equal(t, "Anne", conv.FirstName)
	require.Equal(t, constant.StatusUnread, conv.Status)
	require.Equal(t, 1, conv.UnreadCount)
	require.Zero(t, conv.LastReplyAt)
	require.False(t, conv.FollowUpDone)
	// priority and creation time survive a resurrection
	require.Equal(t, constant.PriorityVIP, conv.Priority)
	require.Equal(t, t0, conv.CreatedAt)
}

func TestConversationRepo_MutationsSkipArchived(t *testing.T) {
	repo := testkit.NewRepositories(t).Conversation
	ctx := context.Background()
	item := entity.TextContent("hallo")

	conv, err := repo.ApplyInbound(ctx, 1, "x", constant.MsgTypeText, t0)
	require.NoError(t, err)
	require.Nil(t, conv)

	_, err = repo.UpsertFresh(ctx, entity.Identity{UserId: 1}, 11, &item, t0)
	require.NoError(t, err)
	_, err = repo.Archive(ctx, 1, t0+1)
	require.NoError(t, err)

	conv, err = repo.MarkRead(ctx, 1, t0+2)
	require.NoError(t, err)
	require.Nil(t, conv)

	byTopic, err := repo.GetActiveByTopic(ctx, 11)
	require.NoError(t, err)
	require.Nil(t, byTopic)
}

func TestConversationRepo_ConcurrentInbound(t *testing.T) {
	repo := testkit.NewRepositories(t).Conversation
	ctx := context.Background()
	item := entity.TextContent("hallo")
	_, err := repo.UpsertFresh(ctx, entity.Identity{UserId: 1}, 11, &item, t0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.ApplyInbound(ctx, 1, "msg", constant.MsgTypeText, t0+int64(i))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	conv, err := repo.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 21, conv.UnreadCount)
}

func TestConversationRepo_MarkUnreadKeepsBadge(t *testing.T) {
	repo := testkit.NewRepositories(t).Conversation
	ctx := context.Background()
	item := entity.TextContent("hallo")
	_, err := repo.UpsertFresh(ctx, entity.Identity{UserId: 1}, 11, &item, t0)
	require.NoError(t, err)
	_, err = repo.ApplyInbound(ctx, 1, "zwei", constant.MsgTypeText, t0+1)
	require.NoError(t, err)

	conv, err := repo.MarkUnread(ctx, 1, t0+2)
	require.NoError(t, err)
	require.Equal(t, 2, conv.UnreadCount)

	_, err = repo.MarkRead(ctx, 1, t0+3)
	require.NoError(t, err)
	conv, err = repo.MarkUnread(ctx, 1, t0+4)
	require.NoError(t, err)
	require.Equal(t, 1, conv.UnreadCount)
}

func TestConversationRepo_Listings(t *testing.T) {
	repo := testkit.NewRepositories(t).Conversation
	ctx := context.Background()
	item := entity.TextContent("hallo")
	for i := int64(1); i <= 4; i++ {
		_, err := repo.UpsertFresh(ctx, entity.Identity{UserId: i}, 10+i, &item, t0+i*1000)
		require.NoError(t, err)
	}
	_, err := repo.SetPriority(ctx, 1, constant.PriorityUrgent, t0)
	require.NoError(t, err)
	_, err = repo.MarkRead(ctx, 2, t0)
	require.NoError(t, err)
	_, err = repo.Archive(ctx, 4, t0)
	require.NoError(t, err)

	unread, err := repo.ListUnread(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 3}, ids(unread))

	stale, err := repo.ListStaleUnread(ctx, t0+2500)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, ids(stale))

	inactive, err := repo.ListInactiveBefore(ctx, t0+2500)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, ids(inactive))

	urgent, err := repo.ListByPriority(ctx, constant.PriorityUrgent)
	require.NoError(t, err)
	require.Equal(t, []int64{1}, ids(urgent))
}

func ids(convs []*entity.Conversation) []int64 {
	out := make([]int64, 0, len(convs))
	for _, c := range convs {
		out = append(out, c.UserId)
	}
	return out
}
