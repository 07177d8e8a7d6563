package router

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/adaptor"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/hertz-contrib/websocket"
	"github.com/mbeoliero/supportdesk/internal/config"
	"github.com/mbeoliero/supportdesk/internal/gateway"
	"github.com/mbeoliero/supportdesk/internal/handler"
	"github.com/mbeoliero/supportdesk/internal/metrics"
	"github.com/mbeoliero/supportdesk/internal/middleware"
)

// SetupRouter sets up all routes
func SetupRouter(h *server.Hertz, cfg *config.Config, handlers *Handlers, wsServer *gateway.WsServer) {
	h.Use(middleware.CORS(cfg.Server.AllowedOrigins))
	// preflight; CORS answers before this handler runs
	h.OPTIONS("/*path", func(ctx context.Context, c *app.RequestContext) {})

	// Health check
	h.GET("/health", func(ctx context.Context, c *app.RequestContext) {
		c.JSON(consts.StatusOK, map[string]string{"status": "ok"})
	})

	h.GET("/metrics", adaptor.HertzHandler(metrics.Handler()))

	// Platform updates, authenticated by the webhook secret
	h.POST("/webhook", handlers.Webhook.Receive)

	// Auth routes (no auth required)
	authGroup := h.Group("/auth")
	{
		authGroup.POST("/code", handlers.Auth.RequestCode)
		authGroup.POST("/login", handlers.Auth.Login)
	}

	convGroup := h.Group("/conversation", middleware.JWTAuth(cfg))
	{
		convGroup.GET("/list", handlers.Conversation.GetConversationList)
		convGroup.GET("/info", handlers.Conversation.GetConversation)
		convGroup.GET("/messages", handlers.Conversation.GetMessages)
		convGroup.POST("/read", handlers.Conversation.MarkRead)
		convGroup.POST("/unread", handlers.Conversation.MarkUnread)
		convGroup.POST("/priority", handlers.Conversation.SetPriority)
		convGroup.POST("/archive", handlers.Conversation.Archive)
	}

	followUpGroup := h.Group("/followup", middleware.JWTAuth(cfg))
	{
		followUpGroup.GET("/list", handlers.FollowUp.GetDueList)
		followUpGroup.POST("/done", handlers.FollowUp.Done)
		followUpGroup.POST("/skip", handlers.FollowUp.Skip)
		followUpGroup.POST("/reset", handlers.FollowUp.Reset)
	}

	broadcastGroup := h.Group("/broadcast", middleware.JWTAuth(cfg))
	{
		broadcastGroup.GET("/pending", handlers.Broadcast.GetPending)
		broadcastGroup.POST("/stage", handlers.Broadcast.Stage)
		broadcastGroup.POST("/confirm", handlers.Broadcast.Confirm)
		broadcastGroup.POST("/cancel", handlers.Broadcast.Cancel)
	}

	// Admin live feed; the token travels in the query since browsers cannot set headers on upgrade
	allowedOrigins := cfg.Server.AllowedOrigins
	upgrader := &websocket.HertzUpgrader{
		CheckOrigin: func(ctx *app.RequestContext) bool {
			return checkOrigin(ctx, allowedOrigins)
		},
	}

	h.GET("/ws", func(ctx context.Context, c *app.RequestContext) {
		wsServer.HandleHertzConnection(ctx, c, upgrader)
	})
}

// checkOrigin validates the Origin header against allowed origins
func checkOrigin(ctx *app.RequestContext, allowedOrigins []string) bool {
	origin := string(ctx.Request.Header.Peek("Origin"))

	// same-origin request or non-browser client
	if origin == "" {
		return true
	}
	return middleware.OriginAllowed(origin, allowedOrigins)
}

// Handlers holds all HTTP handlers
type Handlers struct {
	Auth         *handler.AuthHandler
	Conversation *handler.ConversationHandler
	FollowUp     *handler.FollowUpHandler
	Broadcast    *handler.BroadcastHandler
	Webhook      *handler.WebhookHandler
}
