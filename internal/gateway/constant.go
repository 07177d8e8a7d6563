package gateway

import "time"

// Request identifiers sent by feed clients
const (
	WSPing     = 1001 // answered with an empty response
	WSSnapshot = 1002 // current active conversations
)

// Identifiers of server-initiated frames
const (
	WSPushEvent = 2001 // live event
	WSEvicted   = 2002 // the server is closing this connection; data carries the reason
)

// Eviction reasons
const (
	EvictShutdown = "shutdown"
	EvictReplaced = "replaced" // the admin opened more connections than allowed
)

// Live event types
const (
	EventConversationChanged = "conversation.changed"
	EventBroadcastProgress   = "broadcast.progress"
	EventBroadcastDone       = "broadcast.done"
)

// Fallbacks for unset websocket config
const (
	WriteWait      = 10 * time.Second
	PongWait       = 60 * time.Second
	PingPeriod     = PongWait * 9 / 10
	MaxMessageSize = 4096
	writeQueueSize = 256
)

// QueryToken is the query parameter carrying the admin token
const QueryToken = "token"
