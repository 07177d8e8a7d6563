package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/supportdesk/pkg/errcode"
)

// Client is one admin live feed connection
type Client struct {
	AdminId int64
	ConnId  string

	conn   ClientConn
	server *WsServer
	mu     sync.Mutex
	closed atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
}

// NewClient creates a new client
func NewClient(conn ClientConn, adminId int64, connId string, server *WsServer) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		AdminId: adminId,
		ConnId:  connId,
		conn:    conn,
		server:  server,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// readLoop serves requests until the connection fails or is closed
func (c *Client) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			log.CtxError(c.ctx, "live feed read loop panic: admin_id=%d, conn_id=%s, error=%v", c.AdminId, c.ConnId, r)
		}
		c.close()
	}()

	for !c.closed.Load() {
		message, err := c.conn.ReadMessage()
		if err != nil {
			log.CtxDebug(c.ctx, "live feed read ended: admin_id=%d, conn_id=%s, error=%v", c.AdminId, c.ConnId, err)
			return
		}
		if err := c.handleMessage(message); err != nil {
			log.CtxWarn(c.ctx, "live feed reply failed: admin_id=%d, conn_id=%s, error=%v", c.AdminId, c.ConnId, err)
			return
		}
	}
}

// handleMessage answers one request. Bad requests get an error response; only a failed write
// is returned.
func (c *Client) handleMessage(message []byte) error {
	var req WSRequest
	if err := json.Unmarshal(message, &req); err != nil {
		return c.reply(&req, errMalformedRequest, nil)
	}

	switch req.ReqIdentifier {
	case WSPing:
		return c.reply(&req, nil, nil)
	case WSSnapshot:
		data, err := c.server.HandleSnapshot(c.ctx)
		return c.reply(&req, err, data)
	default:
		return c.reply(&req, errUnknownRequest, nil)
	}
}

func (c *Client) reply(req *WSRequest, err error, data []byte) error {
	resp := WSResponse{
		ReqIdentifier: req.ReqIdentifier,
		MsgIncr:       req.MsgIncr,
		Data:          data,
	}
	if err != nil {
		e := errcode.From(err)
		resp.ErrCode, resp.ErrMsg = e.Code, e.Msg
	}
	return c.send(resp)
}

func (c *Client) send(resp WSResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed.Load() {
		return ErrConnClosed
	}
	return c.conn.WriteMessage(data)
}

// PushEvent pushes a live event to the client
func (c *Client) PushEvent(event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return c.send(WSResponse{ReqIdentifier: WSPushEvent, Data: data})
}

// Evict tells the client why it is disconnected, then closes it
func (c *Client) Evict(reason string) {
	data, _ := json.Marshal(EvictNotice{Reason: reason})
	if err := c.send(WSResponse{ReqIdentifier: WSEvicted, Data: data}); err != nil {
		log.CtxDebug(c.ctx, "evict notice not sent: admin_id=%d, conn_id=%s, error=%v", c.AdminId, c.ConnId, err)
	}
	_ = c.Close()
}

// Close closes the connection; later sends fail with ErrConnClosed
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Swap(true) {
		return nil
	}
	c.cancel()
	return c.conn.Close()
}

func (c *Client) close() {
	_ = c.Close()
	c.server.UnregisterClient(c)
}

// IsClosed reports whether the client is closed
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}
