package service

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mbeoliero/supportdesk/internal/config"
	"github.com/mbeoliero/supportdesk/internal/entity"
	"github.com/mbeoliero/supportdesk/internal/repository"
	"github.com/mbeoliero/supportdesk/internal/testkit"
	"github.com/mbeoliero/supportdesk/pkg/constant"
	"github.com/stretchr/testify/require"
)

const testAdminId int64 = 7

var testStart = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type seqIDs struct{ n atomic.Int64 }

func (g *seqIDs) NextID() (string, error) {
	return "bc" + strconv.FormatInt(g.n.Add(1), 10), nil
}

type harness struct {
	repos      *repository.Repositories
	tr         *testkit.Transport
	clock      *testkit.Clock
	support    *config.SupportConfig
	conv       *ConversationService
	binder     *TopicBinder
	followUps  *FollowUpService
	relay      *RelayService
	broadcasts *BroadcastService
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		repos: testkit.NewRepositories(t),
		tr:    testkit.NewTransport(),
		clock: testkit.NewClock(testStart),
		support: &config.SupportConfig{
			AdminIds:           []int64{testAdminId},
			FollowUpAfterHours: 24,
			WelcomeMessage:     "Willkommen",
			Templates:          map[string]string{"hi": "Hey! Wie kann ich helfen?"},
		},
	}
	store := h.repos.Conversation
	h.conv = NewConversationService(store, h.clock.Now)
	h.binder = NewTopicBinder(h.tr, store, h.clock.Now)
	h.followUps = NewFollowUpService(store, h.clock.Now, h.support.FollowUpAfter())
	h.relay = NewRelayService(RelayDeps{
		Transport:     h.tr,
		Conversations: h.conv,
		Binder:        h.binder,
		Messages:      h.repos.Message,
		Notes:         h.repos.Note,
		Voices:        h.repos.VoiceTemplate,
		Support:       h.support,
		Now:           h.clock.Now,
	})
	h.broadcasts = NewBroadcastService(BroadcastDeps{
		Transport:     h.tr,
		Conversations: h.conv,
		FollowUps:     h.followUps,
		Binder:        h.binder,
		Messages:      h.repos.Message,
		IDs:           &seqIDs{},
		Now:           h.clock.Now,
		ProgressEvery: 2,
	})
	return h
}

// write relays a text message from a user and returns the resulting conversation
func (h *harness) write(t *testing.T, userId int64, name, text string) *entity.Conversation {
	t.Helper()
	item := entity.TextContent(text)
	res, err := h.relay.HandleUserMessage(context.Background(), entity.Identity{UserId: userId, FirstName: name}, &item)
	require.NoError(t, err)
	require.NotNil(t, res.Conversation)
	return res.Conversation
}

// answer records an admin reply at the current clock time
func (h *harness) answer(t *testing.T, userId int64) *entity.Conversation {
	t.Helper()
	change, err := h.conv.RecordOutbound(context.Background(), userId)
	require.NoError(t, err)
	return change.Conversation
}

func (h *harness) load(t *testing.T, userId int64) *entity.Conversation {
	t.Helper()
	conv, err := h.conv.Get(context.Background(), userId)
	require.NoError(t, err)
	require.NotNil(t, conv)
	return conv
}

func requireUnreadInvariant(t *testing.T, conv *entity.Conversation) {
	t.Helper()
	if conv.Status != constant.StatusUnread {
		require.Zero(t, conv.UnreadCount, "status %s with unread count", conv.Status)
	}
}

func userIds(convs []*entity.Conversation) []int64 {
	ids := make([]int64, 0, len(convs))
	for _, c := range convs {
		ids = append(ids, c.UserId)
	}
	return ids
}
