package service

import (
	"context"
	"strings"
	"sync"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/supportdesk/internal/entity"
	"github.com/mbeoliero/supportdesk/internal/metrics"
	"github.com/mbeoliero/supportdesk/internal/transport"
	"github.com/mbeoliero/supportdesk/pkg/constant"
	"github.com/mbeoliero/supportdesk/pkg/errcode"
	"github.com/mbeoliero/supportdesk/pkg/idgen"
)

const broadcastLogPreviewLen = 50

// Recipient is one frozen broadcast target
type Recipient struct {
	UserId int64  `json:"user_id"`
	Name   string `json:"name"`
}

// PendingBroadcast is a staged, unconfirmed broadcast of one admin
type PendingBroadcast struct {
	Id          string      `json:"id"`
	AdminId     int64       `json:"admin_id"`
	Target      string      `json:"target"`
	TargetLabel string      `json:"target_label"`
	Message     string      `json:"message"`
	Recipients  []Recipient `json:"recipients"`
	StagedAt    int64       `json:"staged_at"`
}

// BroadcastProgress reports a running or finished confirm loop
type BroadcastProgress struct {
	Id     string `json:"id"`
	Done   int    `json:"done"`
	Total  int    `json:"total"`
	Sent   int    `json:"sent"`
	Failed int    `json:"failed"`
	Final  bool   `json:"final"`
}

// ProgressFunc is called every few sends and once at the end
type ProgressFunc func(p BroadcastProgress)

var targetLabels = map[string]string{
	constant.BroadcastTargetFollowUp: "Follow-ups",
	constant.BroadcastTargetAll:      "Alle aktiven",
	constant.BroadcastTargetVIP:      "VIPs",
}

// TargetLabel returns the display label of a broadcast target
func TargetLabel(target string) string {
	if label, ok := targetLabels[target]; ok {
		return label
	}
	return target
}

// BroadcastService stages bulk messages and sends them after explicit confirmation
type BroadcastService struct {
	transport     transport.Transport
	conversations *ConversationService
	followUps     *FollowUpService
	binder        *TopicBinder
	messages      MessageLogStore
	ids           idgen.IDGenerator
	sink          EventSink
	now           Clock
	progressEvery int

	mu      sync.Mutex
	pending map[int64]*PendingBroadcast // admin id -> staged broadcast
}

// BroadcastDeps groups the collaborators of BroadcastService
type BroadcastDeps struct {
	Transport     transport.Transport
	Conversations *ConversationService
	FollowUps     *FollowUpService
	Binder        *TopicBinder
	Messages      MessageLogStore
	IDs           idgen.IDGenerator
	Now           Clock
	ProgressEvery int
}

// NewBroadcastService creates a new BroadcastService
func NewBroadcastService(deps BroadcastDeps) *BroadcastService {
	if deps.ProgressEvery <= 0 {
		deps.ProgressEvery = 5
	}
	return &BroadcastService{
		transport:     deps.Transport,
		conversations: deps.Conversations,
		followUps:     deps.FollowUps,
		binder:        deps.Binder,
		messages:      deps.Messages,
		ids:           deps.IDs,
		sink:          NopSink,
		now:           deps.Now,
		progressEvery: deps.ProgressEvery,
		pending:       make(map[int64]*PendingBroadcast),
	}
}

// SetSink sets the live feed sink
func (s *BroadcastService) SetSink(sink EventSink) {
	s.sink = sink
}

// Stage resolves target to a frozen recipient snapshot and stores it for adminId,
// replacing any earlier unconfirmed broadcast of that admin.
func (s *BroadcastService) Stage(ctx context.Context, adminId int64, target, message string) (*PendingBroadcast, error) {
	target = strings.ToLower(strings.TrimSpace(target))
	label, ok := targetLabels[target]
	if !ok {
		return nil, errcode.ErrUnknownTarget
	}

	convs, err := s.resolveTarget(ctx, target)
	if err != nil {
		return nil, err
	}
	if len(convs) == 0 {
		return nil, errcode.ErrEmptyRecipients
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return nil, errcode.ErrBlankMessage
	}

	id, err := s.ids.NextID()
	if err != nil {
		log.CtxError(ctx, "generate broadcast id failed: error=%v", err)
		return nil, errcode.ErrInternalServer.Wrap(err)
	}

	recipients := make([]Recipient, 0, len(convs))
	for _, conv := range convs {
		recipients = append(recipients, Recipient{UserId: conv.UserId, Name: conv.DisplayName()})
	}

	pb := &PendingBroadcast{
		Id:          id,
		AdminId:     adminId,
		Target:      target,
		TargetLabel: label,
		Message:     message,
		Recipients:  recipients,
		StagedAt:    s.now().UnixMilli(),
	}

	s.mu.Lock()
	s.pending[adminId] = pb
	metrics.SetStagedBroadcasts(len(s.pending))
	s.mu.Unlock()

	log.CtxInfo(ctx, "broadcast staged: id=%s, admin_id=%d, target=%s, recipients=%d", id, adminId, target, len(recipients))
	return pb, nil
}

func (s *BroadcastService) resolveTarget(ctx context.Context, target string) ([]*entity.Conversation, error) {
	switch target {
	case constant.BroadcastTargetFollowUp:
		return s.followUps.ListDue(ctx)
	case constant.BroadcastTargetAll:
		return s.conversations.ListActive(ctx)
	case constant.BroadcastTargetVIP:
		return s.conversations.ListByPriority(ctx, constant.PriorityVIP)
	default:
		return nil, errcode.ErrUnknownTarget
	}
}

// Pending returns the staged broadcast of adminId, if any
func (s *BroadcastService) Pending(adminId int64) *PendingBroadcast {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending[adminId]
}

// Cancel discards the staged broadcast of adminId. Reports whether one existed.
func (s *BroadcastService) Cancel(adminId int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pending[adminId]
	delete(s.pending, adminId)
	metrics.SetStagedBroadcasts(len(s.pending))
	return ok
}

// Take consumes the staged broadcast of adminId. Of two concurrent confirms only one gets
// the broadcast; the other gets ErrNothingPending.
func (s *BroadcastService) Take(adminId int64) (*PendingBroadcast, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pb, ok := s.pending[adminId]
	if !ok {
		return nil, errcode.ErrNothingPending
	}
	delete(s.pending, adminId)
	metrics.SetStagedBroadcasts(len(s.pending))
	return pb, nil
}

// Confirm takes the staged broadcast of adminId and runs it
func (s *BroadcastService) Confirm(ctx context.Context, adminId int64, progress ProgressFunc) (*BroadcastProgress, error) {
	pb, err := s.Take(adminId)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx, pb, progress), nil
}

// Run sends a taken broadcast to every recipient in order. A failed recipient is counted
// and skipped. Once started the loop runs to completion.
func (s *BroadcastService) Run(ctx context.Context, pb *PendingBroadcast, progress ProgressFunc) *BroadcastProgress {
	adminId := pb.AdminId
	// the loop must finish even if the triggering request goes away
	ctx = context.WithoutCancel(ctx)
	result := &BroadcastProgress{Id: pb.Id, Total: len(pb.Recipients)}
	log.CtxInfo(ctx, "broadcast confirmed: id=%s, admin_id=%d, recipients=%d", pb.Id, adminId, result.Total)

	for i, r := range pb.Recipients {
		if s.sendOne(ctx, pb, r) {
			result.Sent++
		} else {
			result.Failed++
		}
		result.Done = i + 1

		if result.Done%s.progressEvery == 0 && result.Done < result.Total {
			s.report(ctx, adminId, *result, progress)
		}
	}

	result.Final = true
	s.report(ctx, adminId, *result, progress)
	log.CtxInfo(ctx, "broadcast finished: id=%s, sent=%d, failed=%d", pb.Id, result.Sent, result.Failed)
	return result
}

func (s *BroadcastService) sendOne(ctx context.Context, pb *PendingBroadcast, r Recipient) bool {
	if _, err := s.transport.SendText(ctx, transport.Target{ChatId: r.UserId}, pb.Message, false); err != nil {
		metrics.ObserveBroadcastSend(false)
		log.CtxWarn(ctx, "broadcast send failed: id=%s, user_id=%d, error=%v", pb.Id, r.UserId, err)
		return false
	}
	metrics.ObserveBroadcastSend(true)

	entry := entity.TextContent("[Broadcast] " + entity.TruncateRunes(pb.Message, broadcastLogPreviewLen))
	logEntry := entry.NewLogEntry(r.UserId, constant.DirectionOut, s.now().UnixMilli())
	logEntry.BroadcastId = pb.Id
	if err := s.messages.Append(ctx, logEntry); err != nil {
		log.CtxError(ctx, "broadcast log append failed: id=%s, user_id=%d, error=%v", pb.Id, r.UserId, err)
	}

	change, err := s.conversations.RecordOutbound(ctx, r.UserId)
	if err != nil {
		// delivered anyway, e.g. the conversation was archived after staging
		log.CtxWarn(ctx, "broadcast record outbound failed: id=%s, user_id=%d, error=%v", pb.Id, r.UserId, err)
		return true
	}
	s.binder.Apply(ctx, change)
	return true
}

func (s *BroadcastService) report(ctx context.Context, adminId int64, p BroadcastProgress, progress ProgressFunc) {
	s.sink.BroadcastProgress(ctx, adminId, &p)
	if progress != nil {
		progress(p)
	}
}
