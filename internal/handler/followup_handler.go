package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/supportdesk/internal/entity"
	"github.com/mbeoliero/supportdesk/internal/service"
	"github.com/mbeoliero/supportdesk/pkg/errcode"
	"github.com/mbeoliero/supportdesk/pkg/response"
)

// FollowUpHandler serves the follow-up part of the admin API
type FollowUpHandler struct {
	followUpService *service.FollowUpService
}

// NewFollowUpHandler creates a new FollowUpHandler
func NewFollowUpHandler(followUpService *service.FollowUpService) *FollowUpHandler {
	return &FollowUpHandler{followUpService: followUpService}
}

// SkipRequest suppresses reminders of a conversation; days defaults to 3
type SkipRequest struct {
	UserId int64 `json:"user_id"`
	Days   int   `json:"days"`
}

// GetDueList lists overdue conversations in reminder order
func (h *FollowUpHandler) GetDueList(ctx context.Context, c *app.RequestContext) {
	due, err := h.followUpService.ListDue(ctx)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	infos := make([]*entity.ConversationInfo, 0, len(due))
	for _, conv := range due {
		infos = append(infos, conv.ToInfo())
	}
	response.Success(ctx, c, infos)
}

// Done stops reminders for a conversation
func (h *FollowUpHandler) Done(ctx context.Context, c *app.RequestContext) {
	h.write(ctx, c, func(req *SkipRequest) (*entity.Conversation, error) {
		return h.followUpService.MarkDone(ctx, req.UserId)
	})
}

// Skip suppresses reminders for a number of days
func (h *FollowUpHandler) Skip(ctx context.Context, c *app.RequestContext) {
	h.write(ctx, c, func(req *SkipRequest) (*entity.Conversation, error) {
		return h.followUpService.Skip(ctx, req.UserId, req.Days)
	})
}

// Reset clears the reminder track of a conversation
func (h *FollowUpHandler) Reset(ctx context.Context, c *app.RequestContext) {
	h.write(ctx, c, func(req *SkipRequest) (*entity.Conversation, error) {
		return h.followUpService.Reset(ctx, req.UserId)
	})
}

func (h *FollowUpHandler) write(ctx context.Context, c *app.RequestContext, apply func(req *SkipRequest) (*entity.Conversation, error)) {
	var req SkipRequest
	if err := c.BindAndValidate(&req); err != nil || req.UserId == 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	conv, err := apply(&req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, conv.ToInfo())
}
