package gateway

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/supportdesk/internal/config"
	"github.com/mbeoliero/supportdesk/internal/entity"
	"github.com/mbeoliero/supportdesk/internal/metrics"
	"github.com/mbeoliero/supportdesk/internal/service"
	"github.com/mbeoliero/supportdesk/pkg/idgen"
)

// WsServer is the admin live feed hub
type WsServer struct {
	cfg            *config.Config
	admins         *AdminMap
	registerChan   chan *Client
	unregisterChan chan *Client
	pushChan       chan *PushTask
	convService    *service.ConversationService
	connIds        idgen.IDGenerator
	onlineConnNum  atomic.Int64
	maxConnNum     int64
}

// PushTask represents an event push; no targets means every connected admin
type PushTask struct {
	Event     *Event
	TargetIds []int64
}

var _ service.EventSink = (*WsServer)(nil)

// NewWsServer creates a new live feed hub
func NewWsServer(cfg *config.Config, convService *service.ConversationService) *WsServer {
	return &WsServer{
		cfg:            cfg,
		admins:         NewAdminMap(cfg.WebSocket.MaxConnsPerAdmin),
		registerChan:   make(chan *Client, 64),
		unregisterChan: make(chan *Client, 64),
		pushChan:       make(chan *PushTask, cfg.WebSocket.PushChannelSize),
		convService:    convService,
		connIds:        idgen.UUIDs{},
		maxConnNum:     cfg.WebSocket.MaxConnNum,
	}
}

// Run starts the event loop and push workers
func (s *WsServer) Run(ctx context.Context) {
	go s.eventLoop(ctx)

	workerNum := s.cfg.WebSocket.PushWorkerNum
	if workerNum <= 0 {
		workerNum = 2
	}
	for i := 0; i < workerNum; i++ {
		go s.pushLoop(ctx)
	}
	log.Info("started %d push workers", workerNum)
}

// eventLoop handles client registration and unregistration
func (s *WsServer) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-s.registerChan:
			s.registerClient(ctx, client)
		case client := <-s.unregisterChan:
			s.unregisterClient(ctx, client)
		}
	}
}

// pushLoop handles async event pushing
func (s *WsServer) pushLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-s.pushChan:
			s.processPushTask(ctx, task)
		}
	}
}

// processPushTask delivers one event to its targets
func (s *WsServer) processPushTask(ctx context.Context, task *PushTask) {
	var clients []*Client
	if len(task.TargetIds) == 0 {
		clients = s.admins.All()
	} else {
		for _, adminId := range task.TargetIds {
			clients = append(clients, s.admins.Get(adminId)...)
		}
	}

	for _, client := range clients {
		if err := client.PushEvent(task.Event); err != nil {
			log.CtxDebug(ctx, "push to client failed: admin_id=%d, conn_id=%s, error=%v", client.AdminId, client.ConnId, err)
		}
	}
}

// registerClient registers a client
func (s *WsServer) registerClient(ctx context.Context, client *Client) {
	evicted := s.admins.Register(client)
	s.onlineConnNum.Add(1)
	metrics.IncLiveFeedConnections()

	for _, old := range evicted {
		log.CtxInfo(ctx, "live feed connection replaced: admin_id=%d, conn_id=%s", old.AdminId, old.ConnId)
		old.Evict(EvictReplaced)
	}

	log.CtxInfo(ctx, "client registered: admin_id=%d, conn_id=%s, online_admins=%d, online_conns=%d",
		client.AdminId, client.ConnId, s.admins.OnlineAdminCount(), s.onlineConnNum.Load())
}

// unregisterClient unregisters a client
func (s *WsServer) unregisterClient(ctx context.Context, client *Client) {
	offline := s.admins.Unregister(client)
	s.onlineConnNum.Add(-1)
	metrics.DecLiveFeedConnections()

	log.CtxInfo(ctx, "client unregistered: admin_id=%d, conn_id=%s, admin_offline=%v, online_conns=%d",
		client.AdminId, client.ConnId, offline, s.onlineConnNum.Load())
}

// UnregisterClient queues client for unregistration
func (s *WsServer) UnregisterClient(client *Client) {
	select {
	case s.unregisterChan <- client:
	default:
		log.Warn("unregister channel full: admin_id=%d", client.AdminId)
	}
}

// GetOnlineConnCount returns online connection count
func (s *WsServer) GetOnlineConnCount() int64 {
	return s.onlineConnNum.Load()
}

// ConversationChanged pushes the new summary of a conversation to every admin
func (s *WsServer) ConversationChanged(ctx context.Context, conv *entity.Conversation) {
	s.push(ctx, &PushTask{Event: newEvent(EventConversationChanged, conv.ToInfo())})
}

// BroadcastProgress pushes broadcast progress to the admin who confirmed it
func (s *WsServer) BroadcastProgress(ctx context.Context, adminId int64, progress *service.BroadcastProgress) {
	eventType := EventBroadcastProgress
	if progress.Final {
		eventType = EventBroadcastDone
	}
	s.push(ctx, &PushTask{Event: newEvent(eventType, progress), TargetIds: []int64{adminId}})
}

func (s *WsServer) push(ctx context.Context, task *PushTask) {
	select {
	case s.pushChan <- task:
	default:
		log.CtxWarn(ctx, "push channel full, event dropped: type=%s", task.Event.Type)
	}
}

// Shutdown evicts every connected admin
func (s *WsServer) Shutdown(ctx context.Context) {
	clients := s.admins.All()
	for _, client := range clients {
		client.Evict(EvictShutdown)
	}
	log.CtxInfo(ctx, "live feed shut down: evicted=%d", len(clients))
}

// HandleSnapshot returns the current active conversations
func (s *WsServer) HandleSnapshot(ctx context.Context) ([]byte, error) {
	convs, err := s.convService.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	resp := SnapshotResp{Conversations: make([]*entity.ConversationInfo, 0, len(convs))}
	for _, conv := range convs {
		resp.Conversations = append(resp.Conversations, conv.ToInfo())
	}
	return json.Marshal(resp)
}

func newEvent(eventType string, data interface{}) *Event {
	return &Event{Type: eventType, Data: data, Timestamp: time.Now().UnixMilli()}
}
