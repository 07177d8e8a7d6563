package middleware

import (
	"context"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/supportdesk/internal/config"
	"github.com/mbeoliero/supportdesk/pkg/errcode"
	"github.com/mbeoliero/supportdesk/pkg/jwt"
	"github.com/mbeoliero/supportdesk/pkg/response"
)

const (
	// AuthorizationHeader is the header key for authorization
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer token
	BearerPrefix = "Bearer "
	// AdminIdKey is the context key for the admin Id
	AdminIdKey = "admin_id"
)

// JWTAuth authenticates admin API requests. The token's admin id must still be in the allow-list,
// so removing an admin from the config revokes their tokens.
func JWTAuth(cfg *config.Config) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		authHeader := string(c.GetHeader(AuthorizationHeader))
		if authHeader == "" {
			response.ErrorWithCode(ctx, c, errcode.ErrTokenMissing)
			c.Abort()
			return
		}

		if !strings.HasPrefix(authHeader, BearerPrefix) {
			response.ErrorWithCode(ctx, c, errcode.ErrTokenInvalid)
			c.Abort()
			return
		}

		claims, err := jwt.ParseToken(strings.TrimPrefix(authHeader, BearerPrefix), cfg.JWT.Secret)
		if err != nil {
			response.ErrorWithCode(ctx, c, errcode.ErrTokenInvalid)
			c.Abort()
			return
		}

		if !cfg.Support.IsAdmin(claims.AdminId) {
			log.CtxWarn(ctx, "token of removed admin rejected: admin_id=%d", claims.AdminId)
			response.ErrorWithCode(ctx, c, errcode.ErrNotAdmin)
			c.Abort()
			return
		}

		c.Set(AdminIdKey, claims.AdminId)
		c.Next(ctx)
	}
}

// GetAdminId gets the admin Id from context
func GetAdminId(c *app.RequestContext) int64 {
	if v, ok := c.Get(AdminIdKey); ok {
		return v.(int64)
	}
	return 0
}
