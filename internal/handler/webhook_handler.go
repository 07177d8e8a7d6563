package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/supportdesk/internal/bot"
	"github.com/mbeoliero/supportdesk/internal/transport/telegram"
)

// SecretTokenHeader carries the secret registered with setWebhook
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// WebhookHandler receives platform updates
type WebhookHandler struct {
	dispatcher *bot.Dispatcher
	secret     string
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(dispatcher *bot.Dispatcher, secret string) *WebhookHandler {
	return &WebhookHandler{dispatcher: dispatcher, secret: secret}
}

// Receive handles one update. Malformed updates are acknowledged so the platform does not
// redeliver them.
func (h *WebhookHandler) Receive(ctx context.Context, c *app.RequestContext) {
	if h.secret != "" && subtle.ConstantTimeCompare(c.GetHeader(SecretTokenHeader), []byte(h.secret)) != 1 {
		log.CtxWarn(ctx, "webhook rejected: bad secret token, remote=%s", c.ClientIP())
		c.AbortWithStatus(consts.StatusUnauthorized)
		return
	}

	var update telegram.Update
	if err := json.Unmarshal(c.Request.Body(), &update); err != nil {
		log.CtxWarn(ctx, "webhook update malformed: %v", err)
		c.Status(consts.StatusOK)
		return
	}

	h.dispatcher.HandleUpdate(ctx, &update)
	c.Status(consts.StatusOK)
}
