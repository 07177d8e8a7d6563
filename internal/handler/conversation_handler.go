package handler

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/supportdesk/internal/entity"
	"github.com/mbeoliero/supportdesk/internal/service"
	"github.com/mbeoliero/supportdesk/pkg/constant"
	"github.com/mbeoliero/supportdesk/pkg/errcode"
	"github.com/mbeoliero/supportdesk/pkg/response"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// ConversationHandler serves the conversation part of the admin API
type ConversationHandler struct {
	convService  *service.ConversationService
	relayService *service.RelayService
	binder       *service.TopicBinder
}

// NewConversationHandler creates a new ConversationHandler
func NewConversationHandler(convService *service.ConversationService, relayService *service.RelayService, binder *service.TopicBinder) *ConversationHandler {
	return &ConversationHandler{convService: convService, relayService: relayService, binder: binder}
}

// UserRequest addresses one conversation
type UserRequest struct {
	UserId int64 `json:"user_id"`
}

// PriorityRequest sets the priority of a conversation
type PriorityRequest struct {
	UserId   int64  `json:"user_id"`
	Priority string `json:"priority"`
}

// GetConversationList lists active conversations. filter=unread|vip|urgent narrows the list.
func (h *ConversationHandler) GetConversationList(ctx context.Context, c *app.RequestContext) {
	var (
		convs []*entity.Conversation
		err   error
	)
	switch filter := c.Query("filter"); filter {
	case "":
		convs, err = h.convService.ListActive(ctx)
	case "unread":
		convs, err = h.convService.ListUnread(ctx)
	case constant.PriorityVIP, constant.PriorityUrgent:
		convs, err = h.convService.ListByPriority(ctx, filter)
	default:
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	infos := make([]*entity.ConversationInfo, 0, len(convs))
	for _, conv := range convs {
		infos = append(infos, conv.ToInfo())
	}
	response.Success(ctx, c, infos)
}

// GetConversation returns one conversation with message counts and latest notes
func (h *ConversationHandler) GetConversation(ctx context.Context, c *app.RequestContext) {
	userId, ok := queryUserId(ctx, c)
	if !ok {
		return
	}

	conv, err := h.convService.Get(ctx, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	if conv == nil {
		response.ErrorWithCode(ctx, c, errcode.ErrConvNotFound)
		return
	}

	detail, err := h.relayService.Info(ctx, conv)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, detail)
}

// GetMessages returns the latest message log entries of a user, newest first
func (h *ConversationHandler) GetMessages(ctx context.Context, c *app.RequestContext) {
	userId, ok := queryUserId(ctx, c)
	if !ok {
		return
	}

	limit := defaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	entries, err := h.relayService.History(ctx, userId, limit)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, entries)
}

// MarkRead marks a conversation as read
func (h *ConversationHandler) MarkRead(ctx context.Context, c *app.RequestContext) {
	h.transition(ctx, c, h.convService.MarkRead)
}

// MarkUnread marks a conversation as unread
func (h *ConversationHandler) MarkUnread(ctx context.Context, c *app.RequestContext) {
	h.transition(ctx, c, h.convService.MarkUnread)
}

// SetPriority sets the priority of a conversation
func (h *ConversationHandler) SetPriority(ctx context.Context, c *app.RequestContext) {
	var req PriorityRequest
	if err := c.BindAndValidate(&req); err != nil || req.UserId == 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	change, err := h.convService.SetPriority(ctx, req.UserId, req.Priority)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	h.binder.Apply(ctx, change)
	response.Success(ctx, c, change.Conversation.ToInfo())
}

// Archive closes a conversation and its topic
func (h *ConversationHandler) Archive(ctx context.Context, c *app.RequestContext) {
	var req UserRequest
	if err := c.BindAndValidate(&req); err != nil || req.UserId == 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	conv, err := h.relayService.Close(ctx, req.UserId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, conv.ToInfo())
}

func (h *ConversationHandler) transition(ctx context.Context, c *app.RequestContext,
	apply func(ctx context.Context, userId int64) (*service.StateChange, error)) {
	var req UserRequest
	if err := c.BindAndValidate(&req); err != nil || req.UserId == 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	change, err := apply(ctx, req.UserId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	h.binder.Apply(ctx, change)
	response.Success(ctx, c, change.Conversation.ToInfo())
}

func queryUserId(ctx context.Context, c *app.RequestContext) (int64, bool) {
	userId, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userId == 0 {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return 0, false
	}
	return userId, true
}
