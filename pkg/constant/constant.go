package constant

// Conversation status
const (
	StatusUnread   = "unread"
	StatusRead     = "read"
	StatusAnswered = "answered"
	StatusClosed   = "closed"
)

// Conversation priority
const (
	PriorityNormal = "normal"
	PriorityVIP    = "vip"
	PriorityUrgent = "urgent"
)

// Message log directions
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Relayed content types
const (
	MsgTypeText      = "text"
	MsgTypeVoice     = "voice"
	MsgTypeVideoNote = "video_note"
	MsgTypePhoto     = "photo"
	MsgTypeVideo     = "video"
	MsgTypeDocument  = "document"
	MsgTypeAudio     = "audio"
	MsgTypeSticker   = "sticker"
	MsgTypeAnimation = "animation"
	MsgTypeLocation  = "location"
	MsgTypeContact   = "contact"
	MsgTypeUnknown   = "unknown"
)

// Broadcast targets
const (
	BroadcastTargetFollowUp = "followup"
	BroadcastTargetAll      = "all"
	BroadcastTargetVIP      = "vip"
)

// Topic name glyphs
const (
	GlyphUnread   = "🔴"
	GlyphRead     = "⚪"
	GlyphAnswered = "🟢"
	GlyphClosed   = "⚫"
	GlyphFollowUp = "💛"
	GlyphVIP      = "⭐"
	GlyphUrgent   = "🚨"
)

// TopicNameMaxLen is the platform limit for a topic name, in characters
const TopicNameMaxLen = 128

// PreviewMaxLen bounds the stored last_message_preview
const PreviewMaxLen = 100

// StatusGlyph returns the topic glyph for a status
func StatusGlyph(status string) string {
	switch status {
	case StatusUnread:
		return GlyphUnread
	case StatusRead:
		return GlyphRead
	case StatusAnswered:
		return GlyphAnswered
	case StatusClosed:
		return GlyphClosed
	default:
		return ""
	}
}

// PriorityGlyph returns the topic glyph for a priority
func PriorityGlyph(priority string) string {
	switch priority {
	case PriorityVIP:
		return GlyphVIP
	case PriorityUrgent:
		return GlyphUrgent
	default:
		return ""
	}
}

// PriorityRank orders priorities for follow-up listings: urgent=1, vip=2, normal=3
func PriorityRank(priority string) int {
	switch priority {
	case PriorityUrgent:
		return 1
	case PriorityVIP:
		return 2
	default:
		return 3
	}
}

// IsValidPriority reports whether p is a known priority level
func IsValidPriority(p string) bool {
	return p == PriorityNormal || p == PriorityVIP || p == PriorityUrgent
}

// MsgTypeIcon returns the inbox icon for a message type
func MsgTypeIcon(msgType string) string {
	switch msgType {
	case MsgTypeVoice:
		return "🎤"
	case MsgTypeVideoNote:
		return "⏺"
	case MsgTypePhoto:
		return "📷"
	case MsgTypeVideo:
		return "🎬"
	case MsgTypeDocument:
		return "📎"
	case MsgTypeSticker:
		return "😀"
	default:
		return ""
	}
}

// Redis key patterns (without prefix, use RedisKey() to get full key)
const (
	redisKeyJobLock   = "job:lock:%s:%s" // job:lock:{job}:{period}
	redisKeyLoginCode = "auth:code:%d"   // auth:code:{admin_id}
)

// redisKeyPrefix is the global prefix for all Redis keys
var redisKeyPrefix = "supportdesk:"

// InitRedisKeyPrefix initializes the Redis key prefix from config
func InitRedisKeyPrefix(prefix string) {
	if prefix != "" {
		redisKeyPrefix = prefix
	}
}

// GetRedisKeyPrefix returns the current Redis key prefix
func GetRedisKeyPrefix() string {
	return redisKeyPrefix
}

func RedisKeyJobLock() string   { return redisKeyPrefix + redisKeyJobLock }
func RedisKeyLoginCode() string { return redisKeyPrefix + redisKeyLoginCode }
