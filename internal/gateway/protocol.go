package gateway

import (
	"encoding/json"

	"github.com/mbeoliero/supportdesk/internal/entity"
)

// WSRequest represents a request sent by a feed client
type WSRequest struct {
	ReqIdentifier int32           `json:"req_identifier"` // Request type
	MsgIncr       string          `json:"msg_incr"`       // Client message counter/trace Id
	Data          json.RawMessage `json:"data,omitempty"` // Request data
}

// WSResponse represents a response or a server push
type WSResponse struct {
	ReqIdentifier int32           `json:"req_identifier"` // Request type (echo back) or push type
	MsgIncr       string          `json:"msg_incr"`       // Message counter (echo back)
	ErrCode       int             `json:"err_code"`       // Error code, 0 = success
	ErrMsg        string          `json:"err_msg"`        // Error message
	Data          json.RawMessage `json:"data,omitempty"` // Response data
}

// Event is a live feed notification
type Event struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"`
}

// EvictNotice is the data of a WSEvicted frame
type EvictNotice struct {
	Reason string `json:"reason"`
}

// SnapshotResp is the response to WSSnapshot
type SnapshotResp struct {
	Conversations []*entity.ConversationInfo `json:"conversations"`
}
