package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/supportdesk/internal/middleware"
	"github.com/mbeoliero/supportdesk/internal/service"
	"github.com/mbeoliero/supportdesk/pkg/errcode"
	"github.com/mbeoliero/supportdesk/pkg/response"
)

// BroadcastHandler serves the broadcast part of the admin API. Staged broadcasts are shared
// with the chat commands of the same admin.
type BroadcastHandler struct {
	broadcastService *service.BroadcastService
}

// NewBroadcastHandler creates a new BroadcastHandler
func NewBroadcastHandler(broadcastService *service.BroadcastService) *BroadcastHandler {
	return &BroadcastHandler{broadcastService: broadcastService}
}

// StageRequest represents a broadcast stage request
type StageRequest struct {
	Target  string `json:"target"`
	Message string `json:"message"`
}

// Stage freezes the recipients of a broadcast and returns the preview
func (h *BroadcastHandler) Stage(ctx context.Context, c *app.RequestContext) {
	var req StageRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	pb, err := h.broadcastService.Stage(ctx, middleware.GetAdminId(c), req.Target, req.Message)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, pb)
}

// GetPending returns the staged broadcast of the admin
func (h *BroadcastHandler) GetPending(ctx context.Context, c *app.RequestContext) {
	pb := h.broadcastService.Pending(middleware.GetAdminId(c))
	if pb == nil {
		response.ErrorWithCode(ctx, c, errcode.ErrNothingPending)
		return
	}
	response.Success(ctx, c, pb)
}

// Confirm starts sending the staged broadcast. Progress is pushed over the live feed.
func (h *BroadcastHandler) Confirm(ctx context.Context, c *app.RequestContext) {
	pb, err := h.broadcastService.Take(middleware.GetAdminId(c))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	go h.broadcastService.Run(context.WithoutCancel(ctx), pb, nil)

	response.Accepted(ctx, c, map[string]interface{}{"id": pb.Id, "total": len(pb.Recipients)})
}

// Cancel discards the staged broadcast of the admin
func (h *BroadcastHandler) Cancel(ctx context.Context, c *app.RequestContext) {
	if !h.broadcastService.Cancel(middleware.GetAdminId(c)) {
		response.ErrorWithCode(ctx, c, errcode.ErrNothingPending)
		return
	}
	response.Success(ctx, c, nil)
}
