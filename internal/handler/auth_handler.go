package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/supportdesk/internal/service"
	"github.com/mbeoliero/supportdesk/pkg/errcode"
	"github.com/mbeoliero/supportdesk/pkg/response"
)

// AuthHandler handles authentication requests
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RequestCodeRequest represents a login code request
type RequestCodeRequest struct {
	AdminId int64 `json:"admin_id"`
}

// RequestCode sends a one-time login code to the admin's private chat
func (h *AuthHandler) RequestCode(ctx context.Context, c *app.RequestContext) {
	var req RequestCodeRequest
	if err := c.BindAndValidate(&req); err != nil || req.AdminId == 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	if err := h.authService.RequestCode(ctx, req.AdminId); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}

// Login exchanges a login code for a token
func (h *AuthHandler) Login(ctx context.Context, c *app.RequestContext) {
	var req service.LoginRequest
	if err := c.BindAndValidate(&req); err != nil || req.AdminId == 0 || req.Code == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	resp, err := h.authService.Login(ctx, &req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, resp)
}
