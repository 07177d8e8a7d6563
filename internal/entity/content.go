package entity

import (
	"fmt"

	"github.com/mbeoliero/supportdesk/pkg/constant"
)

// Preview returns the short description stored as last_message_preview and in the log
func (c *Content) Preview() string {
	var p string
	switch c.Type {
	case constant.MsgTypeText:
		p = c.Text
	case constant.MsgTypeVoice:
		p = fmt.Sprintf("Sprachnachricht (%ds)", c.Duration)
	case constant.MsgTypeVideoNote:
		p = "Videonachricht"
	case constant.MsgTypePhoto:
		p = orDefault(c.Caption, "Foto")
	case constant.MsgTypeVideo:
		p = orDefault(c.Caption, "Video")
	case constant.MsgTypeDocument:
		p = orDefault(c.FileName, "Dokument")
	case constant.MsgTypeAudio:
		p = orDefault(c.Title, "Audio")
	case constant.MsgTypeSticker:
		p = orDefault(c.Emoji, "Sticker")
	case constant.MsgTypeAnimation:
		p = "GIF"
	case constant.MsgTypeLocation:
		p = "Standort"
	case constant.MsgTypeContact:
		if c.Contact != nil {
			p = c.Contact.FirstName
		}
	}
	return TruncateRunes(p, constant.PreviewMaxLen)
}

// IsRelayable reports whether the item has a type the transport can copy
func (c *Content) IsRelayable() bool {
	return c.Type != "" && c.Type != constant.MsgTypeUnknown
}

// IsVoiceLike reports whether the item can be saved as a voice template
func (c *Content) IsVoiceLike() bool {
	return (c.Type == constant.MsgTypeVoice || c.Type == constant.MsgTypeAudio) && c.FileId != ""
}

// NewLogEntry builds the message log record for a relayed item
func (c *Content) NewLogEntry(userId int64, direction string, at int64) *MessageLog {
	return &MessageLog{
		UserId:    userId,
		Direction: direction,
		MsgType:   c.Type,
		Content:   c.Preview(),
		FileId:    c.FileId,
		Duration:  c.Duration,
		CreatedAt: at,
	}
}

// TextContent builds a plain text item
func TextContent(text string) Content {
	return Content{Type: constant.MsgTypeText, Text: text}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
