package entity

// Content is one relayable item: text or a platform file reference with metadata
type Content struct {
	Type      string   `json:"type"`
	Text      string   `json:"text,omitempty"`
	Caption   string   `json:"caption,omitempty"`
	FileId    string   `json:"file_id,omitempty"`
	FileName  string   `json:"file_name,omitempty"`
	Title     string   `json:"title,omitempty"`
	Emoji     string   `json:"emoji,omitempty"`
	Duration  int      `json:"duration,omitempty"`
	Latitude  float64  `json:"latitude,omitempty"`
	Longitude float64  `json:"longitude,omitempty"`
	Contact   *Contact `json:"contact,omitempty"`
}

// Contact is a shared phone contact
type Contact struct {
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name,omitempty"`
}

// MessageLog is an append-only audit record of a relayed item
type MessageLog struct {
	Id          int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	UserId      int64  `json:"user_id" gorm:"column:user_id;index"`
	Direction   string `json:"direction" gorm:"column:direction;size:8"`
	MsgType     string `json:"msg_type" gorm:"column:msg_type;size:16"`
	Content     string `json:"content" gorm:"column:content;type:text"`
	FileId      string `json:"file_id" gorm:"column:file_id;size:255"`
	Duration    int    `json:"duration" gorm:"column:duration"`
	BroadcastId string `json:"broadcast_id,omitempty" gorm:"column:broadcast_id;size:32;index"`
	CreatedAt   int64  `json:"created_at" gorm:"column:created_at;index"`
}

// TableName returns the table name for MessageLog
func (MessageLog) TableName() string {
	return "message_logs"
}

// MessageStats counts logged messages of one user by direction
type MessageStats struct {
	Total    int64 `json:"total"`
	Inbound  int64 `json:"inbound"`
	Outbound int64 `json:"outbound"`
}

// MessageSearchResult is a message log hit joined with its conversation name
type MessageSearchResult struct {
	UserId    int64  `json:"user_id"`
	Direction string `json:"direction"`
	Content   string `json:"content"`
	FirstName string `json:"first_name"`
	CreatedAt int64  `json:"created_at"`
}

// Note is an admin annotation on a conversation
type Note struct {
	Id        int64  `json:"id" gorm:"column:id;primaryKey;autoIncrement"`
	UserId    int64  `json:"user_id" gorm:"column:user_id;index"`
	AdminId   int64  `json:"admin_id" gorm:"column:admin_id"`
	Note      string `json:"note" gorm:"column:note;type:text"`
	CreatedAt int64  `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
}

// TableName returns the table name for Note
func (Note) TableName() string {
	return "notes"
}

// VoiceTemplate is a saved voice message that can be replayed to users
type VoiceTemplate struct {
	Name      string `json:"name" gorm:"column:name;primaryKey;size:64"`
	FileId    string `json:"file_id" gorm:"column:file_id;size:255"`
	Duration  int    `json:"duration" gorm:"column:duration"`
	CreatedAt int64  `json:"created_at" gorm:"column:created_at;autoCreateTime:milli"`
}

// TableName returns the table name for VoiceTemplate
func (VoiceTemplate) TableName() string {
	return "voice_templates"
}
