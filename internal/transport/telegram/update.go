package telegram

import (
	"strings"

	"github.com/mbeoliero/supportdesk/internal/entity"
	"github.com/mbeoliero/supportdesk/pkg/constant"
)

// Update is an incoming webhook update. Only messages are handled.
type Update struct {
	UpdateId int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// User is a platform account
type User struct {
	Id        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Chat is the chat a message belongs to
type Chat struct {
	Id      int64  `json:"id"`
	Type    string `json:"type"`
	IsForum bool   `json:"is_forum,omitempty"`
}

// Chat types
const (
	ChatTypePrivate    = "private"
	ChatTypeSupergroup = "supergroup"
)

type fileRef struct {
	FileId   string `json:"file_id"`
	Duration int    `json:"duration,omitempty"`
	FileName string `json:"file_name,omitempty"`
	Title    string `json:"title,omitempty"`
	Emoji    string `json:"emoji,omitempty"`
}

type location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ForumTopic is the createForumTopic result
type ForumTopic struct {
	MessageThreadId int64  `json:"message_thread_id"`
	Name            string `json:"name"`
}

// Message is an incoming or sent message
type Message struct {
	MessageId       int64  `json:"message_id"`
	MessageThreadId int64  `json:"message_thread_id,omitempty"`
	IsTopicMessage  bool   `json:"is_topic_message,omitempty"`
	From            *User  `json:"from,omitempty"`
	Chat            Chat   `json:"chat"`
	Date            int64  `json:"date"`
	Text            string `json:"text,omitempty"`
	Caption         string `json:"caption,omitempty"`

	Voice     *fileRef        `json:"voice,omitempty"`
	VideoNote *fileRef        `json:"video_note,omitempty"`
	Photo     []fileRef       `json:"photo,omitempty"`
	Video     *fileRef        `json:"video,omitempty"`
	Document  *fileRef        `json:"document,omitempty"`
	Audio     *fileRef        `json:"audio,omitempty"`
	Sticker   *fileRef        `json:"sticker,omitempty"`
	Animation *fileRef        `json:"animation,omitempty"`
	Location  *location       `json:"location,omitempty"`
	Contact   *entity.Contact `json:"contact,omitempty"`

	ForumTopicCreated *ForumTopic `json:"forum_topic_created,omitempty"`
	ForumTopicEdited  *ForumTopic `json:"forum_topic_edited,omitempty"`
}

// Identity returns the sender identity used for conversations
func (m *Message) Identity() entity.Identity {
	if m.From == nil {
		return entity.Identity{UserId: m.Chat.Id}
	}
	return entity.Identity{
		UserId:    m.From.Id,
		Username:  m.From.Username,
		FirstName: m.From.FirstName,
		LastName:  m.From.LastName,
	}
}

// SenderId returns the sender user id, or 0 for anonymous senders
func (m *Message) SenderId() int64 {
	if m.From == nil {
		return 0
	}
	return m.From.Id
}

// IsPrivate reports whether the message comes from a direct chat
func (m *Message) IsPrivate() bool {
	return m.Chat.Type == ChatTypePrivate
}

// IsServiceMessage reports whether the message is a topic service notice
func (m *Message) IsServiceMessage() bool {
	return m.ForumTopicCreated != nil || m.ForumTopicEdited != nil
}

// Command splits a leading /command from its argument text. The bot mention suffix is removed.
func (m *Message) Command() (string, string, bool) {
	text := strings.TrimSpace(m.Text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	name, args, _ := strings.Cut(text[1:], " ")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), strings.TrimSpace(args), true
}

// Content extracts the relayable item of the message
func (m *Message) Content() entity.Content {
	switch {
	case m.Text != "":
		return entity.TextContent(m.Text)
	case m.Voice != nil:
		return entity.Content{Type: constant.MsgTypeVoice, FileId: m.Voice.FileId, Duration: m.Voice.Duration}
	case m.VideoNote != nil:
		return entity.Content{Type: constant.MsgTypeVideoNote, FileId: m.VideoNote.FileId, Duration: m.VideoNote.Duration}
	case len(m.Photo) > 0:
		// sizes are ascending, the last one is the original
		return entity.Content{Type: constant.MsgTypePhoto, FileId: m.Photo[len(m.Photo)-1].FileId, Caption: m.Caption}
	case m.Video != nil:
		return entity.Content{Type: constant.MsgTypeVideo, FileId: m.Video.FileId, Caption: m.Caption, Duration: m.Video.Duration}
	case m.Document != nil:
		return entity.Content{Type: constant.MsgTypeDocument, FileId: m.Document.FileId, FileName: m.Document.FileName, Caption: m.Caption}
	case m.Audio != nil:
		return entity.Content{Type: constant.MsgTypeAudio, FileId: m.Audio.FileId, Title: m.Audio.Title, Duration: m.Audio.Duration, Caption: m.Caption}
	case m.Sticker != nil:
		return entity.Content{Type: constant.MsgTypeSticker, FileId: m.Sticker.FileId, Emoji: m.Sticker.Emoji}
	case m.Animation != nil:
		return entity.Content{Type: constant.MsgTypeAnimation, FileId: m.Animation.FileId, Caption: m.Caption}
	case m.Location != nil:
		return entity.Content{Type: constant.MsgTypeLocation, Latitude: m.Location.Latitude, Longitude: m.Location.Longitude}
	case m.Contact != nil:
		contact := *m.Contact
		return entity.Content{Type: constant.MsgTypeContact, Contact: &contact}
	default:
		return entity.Content{Type: constant.MsgTypeUnknown}
	}
}
