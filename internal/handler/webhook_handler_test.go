package handler

import (
	"net/http"
	"strings"
	"testing"
	"time"

	hconfig "github.com/cloudwego/hertz/pkg/common/config"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/cloudwego/hertz/pkg/route"
	"github.com/stretchr/testify/require"

	"github.com/mbeoliero/supportdesk/internal/bot"
	"github.com/mbeoliero/supportdesk/internal/config"
	"github.com/mbeoliero/supportdesk/internal/service"
	"github.com/mbeoliero/supportdesk/internal/testkit"
)

func newWebhookEngine(t *testing.T, secret string) (*route.Engine, *testkit.Transport) {
	t.Helper()
	cfg := &config.Config{
		Telegram: config.TelegramConfig{SupportGroupId: testkit.WorkspaceChatId},
		Support:  config.SupportConfig{AdminIds: []int64{7}, FollowUpAfterHours: 24},
	}
	repos := testkit.NewRepositories(t)
	tr := testkit.NewTransport()
	clock := testkit.NewClock(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))

	conv := service.NewConversationService(repos.Conversation, clock.Now)
	binder := service.NewTopicBinder(tr, repos.Conversation, clock.Now)
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
	d := bot.NewDispatcher(bot.Deps{
		Config:        cfg,
		Transport:     tr,
		Conversations: conv,
		Relay:         relay,
		Binder:        binder,
		Now:           clock.Now,
	})

	engine := route.NewEngine(hconfig.NewOptions(nil))
	engine.POST("/webhook", NewWebhookHandler(d, secret).Receive)
	return engine, tr
}

const privateUpdate = `{"update_id":1,"message":{"message_id":5,"date":1772445600,
"from":{"id":42,"first_name":"Anna"},"chat":{"id":42,"type":"private"},"text":"Hallo"}}`

func post(engine *route.Engine, body string, headers ...ut.Header) *ut.ResponseRecorder {
	return ut.PerformRequest(engine, http.MethodPost, "/webhook", &ut.Body{Body: strings.NewReader(body), Len: len(body)}, headers...)
}

func TestWebhook_Dispatches(t *testing.T) {
	engine, tr := newWebhookEngine(t, "s3cret")

	w := post(engine, privateUpdate, ut.Header{Key: SecretTokenHeader, Value: "s3cret"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, tr.Created, 1)
	require.Len(t, tr.ContentsTo(testkit.WorkspaceChatId), 1)
}

func TestWebhook_BadSecret(t *testing.T) {
	engine, tr := newWebhookEngine(t, "s3cret")

	w := post(engine, privateUpdate, ut.Header{Key: SecretTokenHeader, Value: "nope"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = post(engine, privateUpdate)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Empty(t, tr.Created)
}

func TestWebhook_MalformedAcknowledged(t *testing.T) {
	engine, tr := newWebhookEngine(t, "")

	w := post(engine, `{"update_id":`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, tr.Created)
}

func TestWebhook_NoSecretConfigured(t *testing.T) {
	engine, tr := newWebhookEngine(t, "")

	w := post(engine, privateUpdate)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, tr.Created, 1)
}
