package bot

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mbeoliero/supportdesk/internal/config"
	"github.com/mbeoliero/supportdesk/internal/entity"
	"github.com/mbeoliero/supportdesk/internal/service"
	"github.com/mbeoliero/supportdesk/internal/testkit"
	"github.com/mbeoliero/supportdesk/internal/transport/telegram"
	"github.com/mbeoliero/supportdesk/pkg/constant"
	"github.com/stretchr/testify/require"
)

const adminId int64 = 7

type seqIDs struct{ n int }

func (g *seqIDs) NextID() (string, error) {
	g.n++
	return "bc" + strconv.Itoa(g.n), nil
}

type fixture struct {
	d     *Dispatcher
	tr    *testkit.Transport
	clock *testkit.Clock
	conv  *service.ConversationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		Telegram: config.TelegramConfig{SupportGroupId: testkit.WorkspaceChatId},
		Support: config.SupportConfig{
			AdminIds:           []int64{adminId},
			FollowUpAfterHours: 24,
			Templates:          map[string]string{"hi": "Hey!"},
		},
	}
	repos := testkit.NewRepositories(t)
	tr := testkit.NewTransport()
	clock := testkit.NewClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))

	conv := service.NewConversationService(repos.Conversation, clock.Now)
	binder := service.NewTopicBinder(tr, repos.Conversation, clock.Now)
	followUps := service.NewFollowUpService(repos.Conversation, clock.Now, cfg.Support.FollowUpAfter())
	relay := service.NewRelayService(service.RelayDeps{
		Transport:     tr,
		Conversations: conv,
		Binder:        binder,
		Messages:      repos.Message,
		Notes:         repos.Note,
		Voices:        repos.VoiceTemplate,
		Support:       &cfg.Support,
		Now:           clock.Now,
	})
	broadcasts := service.NewBroadcastService(service.BroadcastDeps{
		Transport:     tr,
		Conversations: conv,
		FollowUps:     followUps,
		Binder:        binder,
		Messages:      repos.Message,
		IDs:           &seqIDs{},
		Now:           clock.Now,
	})

	d := NewDispatcher(Deps{
		Config:        cfg,
		Transport:     tr,
		Conversations: conv,
		FollowUps:     followUps,
		Broadcasts:    broadcasts,
		Relay:         relay,
		Binder:        binder,
		Now:           clock.Now,
	})
	return &fixture{d: d, tr: tr, clock: clock, conv: conv}
}

func private(userId int64, name, text string) *telegram.Update {
	return &telegram.Update{Message: &telegram.Message{
		From: &telegram.User{Id: userId, FirstName: name},
		Chat: telegram.Chat{Id: userId, Type: telegram.ChatTypePrivate},
		Text: text,
	}}
}

func inTopic(topicId, senderId int64, text string) *telegram.Update {
	return &telegram.Update{Message: &telegram.Message{
		MessageId:       99,
		MessageThreadId: topicId,
		IsTopicMessage:  topicId != 0,
		From:            &telegram.User{Id: senderId, FirstName: "Admin"},
		Chat:            telegram.Chat{Id: testkit.WorkspaceChatId, Type: telegram.ChatTypeSupergroup, IsForum: true},
		Text:            text,
	}}
}

// open makes userId write once and returns the bound conversation
func (f *fixture) open(t *testing.T, userId int64, name string) *entity.Conversation {
	t.Helper()
	f.d.HandleUpdate(context.Background(), private(userId, name, "hallo"))
	conv, err := f.conv.GetActive(context.Background(), userId)
	require.NoError(t, err)
	return conv
}

func (f *fixture) lastReply(t *testing.T) string {
	t.Helper()
	return f.tr.LastText().Text
}

func TestDispatcher_PrivateMessageRelayed(t *testing.T) {
	f := newFixture(t)
	conv := f.open(t, 1, "Anna")

	require.True(t, conv.HasTopic())
	sent := f.tr.ContentsTo(testkit.WorkspaceChatId)
	require.Len(t, sent, 1)
	require.Equal(t, "hallo", sent[0].Item.Text)
	require.Equal(t, conv.Topic(), sent[0].Target.ThreadId)
}

func TestDispatcher_IgnoresBotsAndForeignChats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bot := private(1, "Bot", "hallo")
	bot.Message.From.IsBot = true
	f.d.HandleUpdate(ctx, bot)

	foreign := inTopic(5, 2, "hallo")
	foreign.Message.Chat.Id = -555
	f.d.HandleUpdate(ctx, foreign)

	f.d.HandleUpdate(ctx, &telegram.Update{UpdateId: 1})
	require.Empty(t, f.tr.Created)
	require.Empty(t, f.tr.Contents)
}

func TestDispatcher_TopicMessageRelayedToUser(t *testing.T) {
	f := newFixture(t)
	conv := f.open(t, 1, "Anna")

	f.d.HandleUpdate(context.Background(), inTopic(conv.Topic(), adminId, "Wie kann ich helfen?"))
	toUser := f.tr.ContentsTo(1)
	require.Len(t, toUser, 1)
	require.Equal(t, "Wie kann ich helfen?", toUser[0].Item.Text)

	updated, err := f.conv.GetActive(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, constant.StatusAnswered, updated.Status)
}

func TestDispatcher_UnknownCommandRelayed(t *testing.T) {
	f := newFixture(t)
	conv := f.open(t, 1, "Anna")

	f.d.HandleUpdate(context.Background(), inTopic(conv.Topic(), adminId, "/etwas anderes"))
	toUser := f.tr.ContentsTo(1)
	require.Len(t, toUser, 1)
	require.Equal(t, "/etwas anderes", toUser[0].Item.Text)
}

func TestDispatcher_UserCommandsIgnored(t *testing.T) {
	f := newFixture(t)
	f.d.HandleUpdate(context.Background(), private(1, "Anna", "/start"))
	require.Empty(t, f.tr.Created)
	require.Empty(t, f.tr.Texts)
}

func TestDispatcher_ServiceMessageDeleted(t *testing.T) {
	f := newFixture(t)
	u := inTopic(5, adminId, "")
	u.Message.ForumTopicEdited = &telegram.ForumTopic{Name: "⚪ Anna"}

	f.d.HandleUpdate(context.Background(), u)
	require.Equal(t, []int64{99}, f.tr.Deleted)
	require.Empty(t, f.tr.Contents)
}

func TestDispatcher_ReadAndUnread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.open(t, 1, "Anna")

	f.d.HandleUpdate(ctx, inTopic(conv.Topic(), adminId, "/read"))
	require.Equal(t, "⚪ Gelesen", f.lastReply(t))
	require.Equal(t, "⚪ Anna", f.tr.Renames[len(f.tr.Renames)-1].Name)

	f.d.HandleUpdate(ctx, inTopic(0, adminId, "/unread anna"))
	require.Equal(t, "🔴 Anna → ungelesen", f.lastReply(t))

	f.d.HandleUpdate(ctx, inTopic(0, adminId, "/unread"))
	require.Equal(t, "Im Topic oder: /unread <name>", f.lastReply(t))

	f.d.HandleUpdate(ctx, inTopic(0, adminId, "/read zoe"))
	require.Equal(t, "Nicht gefunden", f.lastReply(t))
}

func TestDispatcher_PriorityToggle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.open(t, 1, "Anna")

	f.d.HandleUpdate(ctx, inTopic(conv.Topic(), adminId, "/vip"))
	require.Equal(t, "⭐ VIP", f.lastReply(t))
	f.d.HandleUpdate(ctx, inTopic(conv.Topic(), adminId, "/vip"))
	require.Equal(t, "VIP aus", f.lastReply(t))
}

func TestDispatcher_Close(t *testing.T) {
	f := newFixture(t)
	conv := f.open(t, 1, "Anna")

	f.d.HandleUpdate(context.Background(), inTopic(conv.Topic(), adminId, "/close"))
	require.Equal(t, "⚫ Archiviert", f.lastReply(t))
	require.Equal(t, []int64{conv.Topic()}, f.tr.Closed)

	_, err := f.conv.GetActive(context.Background(), 1)
	require.Error(t, err)
}

func TestDispatcher_SkipAndDone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.open(t, 1, "Anna Berg")

	f.d.HandleUpdate(ctx, inTopic(0, adminId, "/skip anna berg 5"))
	require.Equal(t, "⏭️ Anna Berg – Follow-up übersprungen für 5 Tage", f.lastReply(t))

	f.d.HandleUpdate(ctx, inTopic(conv.Topic(), adminId, "/done"))
	require.Equal(t, "✅ Follow-up erledigt – keine weiteren Reminder", f.lastReply(t))

	updated, err := f.conv.GetActive(ctx, 1)
	require.NoError(t, err)
	require.True(t, updated.FollowUpDone)
	require.Equal(t, f.clock.Now().Add(5*24*time.Hour).UnixMilli(), *updated.FollowUpSkippedUntil)
}

func TestDispatcher_Broadcast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, 1, "Anna")
	f.open(t, 2, "Ben")

	// non-admins are ignored silently
	texts := len(f.tr.Texts)
	f.d.HandleUpdate(ctx, inTopic(0, 99, "/bc all Hallo"))
	require.Len(t, f.tr.Texts, texts)

	f.d.HandleUpdate(ctx, inTopic(0, adminId, "/bc all"))
	require.Contains(t, f.lastReply(t), "Keine Nachricht angegeben")

	f.d.HandleUpdate(ctx, inTopic(0, adminId, "/bc vip Hallo"))
	require.Equal(t, "❌ Keine Empfänger in 'VIPs'", f.lastReply(t))

	f.d.HandleUpdate(ctx, inTopic(0, adminId, "/bc all Wartung um 20 Uhr"))
	preview := f.tr.LastText()
	require.True(t, preview.HTML)
	require.Contains(t, preview.Text, "<b>Empfänger:</b> 2")

	f.d.HandleUpdate(ctx, inTopic(0, adminId, "/confirm"))
	require.Eventually(t, func() bool {
		edit, ok := f.tr.LastEdit()
		return ok && strings.Contains(edit.Text, "Broadcast gesendet")
	}, 5*time.Second, 10*time.Millisecond)

	for _, userId := range []int64{1, 2} {
		texts := f.tr.TextsTo(userId)
		require.Equal(t, "Wartung um 20 Uhr", texts[len(texts)-1].Text)
	}

	f.d.HandleUpdate(ctx, inTopic(0, adminId, "/confirm"))
	require.Equal(t, "❌ Kein Broadcast ausstehend", f.lastReply(t))
}

func TestDispatcher_SecondConfirmFindsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, 1, "Anna")

	f.d.HandleUpdate(ctx, inTopic(0, adminId, "/bc all Hallo"))
	f.d.HandleUpdate(ctx, inTopic(0, adminId, "/confirm"))
	f.d.HandleUpdate(ctx, inTopic(0, adminId, "/confirm"))

	status := 0
	replies := f.tr.TextsTo(testkit.WorkspaceChatId)
	for _, r := range replies {
		if strings.HasPrefix(r.Text, "📤 Sende...") {
			status++
		}
	}
	require.Equal(t, 1, status)
	require.Equal(t, "❌ Kein Broadcast ausstehend", replies[len(replies)-1].Text)

	require.Eventually(t, func() bool {
		edit, ok := f.tr.LastEdit()
		return ok && strings.Contains(edit.Text, "Broadcast gesendet")
	}, 5*time.Second, 10*time.Millisecond)
}

func TestDispatcher_Cancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, 1, "Anna")

	f.d.HandleUpdate(ctx, inTopic(0, adminId, "/cancel"))
	require.Equal(t, "Nichts zum Abbrechen", f.lastReply(t))

	f.d.HandleUpdate(ctx, inTopic(0, adminId, "/bc all Hallo"))
	f.d.HandleUpdate(ctx, private(adminId, "Admin", "/cancel"))
	require.Equal(t, "❌ Broadcast abgebrochen", f.lastReply(t))
}

func TestDispatcher_VoiceSaveFromPrivateChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.d.HandleUpdate(ctx, private(1, "Anna", "/save gruss"))
	require.Empty(t, f.tr.Texts)

	f.d.HandleUpdate(ctx, private(adminId, "Admin", "/save Gruss"))
	require.Contains(t, f.lastReply(t), "<b>gruss</b>")

	var voice telegram.Update
	require.NoError(t, json.Unmarshal([]byte(`{"message":{"message_id":3,
		"from":{"id":7,"first_name":"Admin"},"chat":{"id":7,"type":"private"},
		"voice":{"file_id":"file-9","duration":7}}}`), &voice))
	f.d.HandleUpdate(ctx, &voice)
	require.Contains(t, f.lastReply(t), "gespeichert")
	require.Empty(t, f.tr.Created, "a captured recording is not relayed")
}

func TestDispatcher_TemplateCommand(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	conv := f.open(t, 1, "Anna")

	f.d.HandleUpdate(ctx, inTopic(conv.Topic(), adminId, "/t"))
	require.Contains(t, f.lastReply(t), "/t hi")

	f.d.HandleUpdate(ctx, inTopic(conv.Topic(), adminId, "/t nope"))
	require.Equal(t, "Nicht gefunden", f.lastReply(t))

	f.d.HandleUpdate(ctx, inTopic(conv.Topic(), adminId, "/t hi"))
	toUser := f.tr.ContentsTo(1)
	require.Equal(t, "Hey!", toUser[len(toUser)-1].Item.Text)
}

func TestParseSkipArgs(t *testing.T) {
	tests := []struct {
		args  string
		days  int
		query string
	}{
		{"", service.DefaultSkipDays, ""},
		{"7", 7, ""},
		{"anna", service.DefaultSkipDays, "anna"},
		{"anna berg 10", 10, "anna berg"},
		{"anna 0", service.DefaultSkipDays, "anna 0"},
		{"anna 200000", service.MaxSkipDays, "anna"},
	}
	for _, tt := range tests {
		t.Run(tt.args, func(t *testing.T) {
			days, query := parseSkipArgs(strings.Fields(tt.args))
			require.Equal(t, tt.days, days)
			require.Equal(t, tt.query, query)
		})
	}
}
