package gateway

import (
	"sync"
	"time"

	"github.com/hertz-contrib/websocket"
	"github.com/mbeoliero/kit/log"
)

// ClientConn is the transport of one live feed connection
type ClientConn interface {
	ReadMessage() ([]byte, error)
	// WriteMessage queues data without blocking
	WriteMessage(data []byte) error
	// Close flushes queued frames, sends a close frame and releases the connection
	Close() error
}

type hertzClientConn struct {
	conn     *websocket.Conn
	pongWait time.Duration

	mu     sync.Mutex
	queue  chan []byte
	closed bool
}

// NewHertzClientConn wraps an upgraded connection and starts its writer
func NewHertzClientConn(conn *websocket.Conn, maxMsgSize int64, pongWait, pingPeriod time.Duration) ClientConn {
	c := &hertzClientConn{
		conn:     conn,
		pongWait: pongWait,
		queue:    make(chan []byte, writeQueueSize),
	}

	conn.SetReadLimit(maxMsgSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.writeLoop(pingPeriod)
	return c
}

// writeLoop is the only writer of conn. It drains the queue until Close and pings in between.
func (c *hertzClientConn) writeLoop(pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.queue:
			if !ok {
				_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.write(websocket.TextMessage, data); err != nil {
				log.Debug("live feed write failed: %v", err)
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				log.Debug("live feed ping failed: %v", err)
				return
			}
		}
	}
}

func (c *hertzClientConn) write(messageType int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(WriteWait))
	return c.conn.WriteMessage(messageType, data)
}

// ReadMessage returns the next text frame; other data frames are skipped
func (c *hertzClientConn) ReadMessage() ([]byte, error) {
	for {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType == websocket.TextMessage {
			return data, nil
		}
	}
}

func (c *hertzClientConn) WriteMessage(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.queue <- data:
		return nil
	default:
		return ErrWriteQueueFull
	}
}

func (c *hertzClientConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.queue)
	}
	return nil
}
