package gateway

import (
	"context"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/hertz-contrib/websocket"
	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/supportdesk/pkg/errcode"
	"github.com/mbeoliero/supportdesk/pkg/jwt"
	"github.com/mbeoliero/supportdesk/pkg/response"
)

// HandleHertzConnection authenticates an admin and upgrades the request to a live feed connection
func (s *WsServer) HandleHertzConnection(ctx context.Context, c *app.RequestContext, upgrader *websocket.HertzUpgrader) {
	if s.onlineConnNum.Load() >= s.maxConnNum {
		response.ErrorWithCode(ctx, c, errcode.ErrConnOverLimit)
		return
	}

	token := c.Query(QueryToken)
	if token == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrTokenMissing)
		return
	}

	claims, err := jwt.ParseToken(token, s.cfg.JWT.Secret)
	if err != nil {
		log.CtxDebug(ctx, "token validation failed: error=%v", err)
		response.ErrorWithCode(ctx, c, errcode.ErrTokenInvalid)
		return
	}
	if !s.cfg.Support.IsAdmin(claims.AdminId) {
		log.CtxWarn(ctx, "live feed rejected, not an admin: admin_id=%d", claims.AdminId)
		response.ErrorWithCode(ctx, c, errcode.ErrNotAdmin)
		return
	}

	connId, err := s.connIds.NextID()
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	err = upgrader.Upgrade(c, func(conn *websocket.Conn) {
		maxSize := s.cfg.WebSocket.MaxMessageSize
		if maxSize <= 0 {
			maxSize = MaxMessageSize
		}
		wsConn := NewHertzClientConn(conn, maxSize, s.pongWait(), s.pingPeriod())
		client := NewClient(wsConn, claims.AdminId, connId, s)

		s.registerChan <- client

		// blocks until the connection ends
		client.readLoop()
	})

	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
	}
}

func (s *WsServer) pongWait() time.Duration {
	if s.cfg.WebSocket.PongWait > 0 {
		return s.cfg.WebSocket.PongWait
	}
	return PongWait
}

func (s *WsServer) pingPeriod() time.Duration {
	if s.cfg.WebSocket.PingPeriod > 0 {
		return s.cfg.WebSocket.PingPeriod
	}
	return PingPeriod
}
