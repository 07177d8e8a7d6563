package telegram

import (
	"context"
	"fmt"

	"github.com/mbeoliero/supportdesk/internal/entity"
	"github.com/mbeoliero/supportdesk/internal/transport"
	"github.com/mbeoliero/supportdesk/pkg/constant"
	"github.com/mbeoliero/supportdesk/pkg/errcode"
)

const parseModeHTML = "HTML"

// compile-time check
var _ transport.Transport = (*Client)(nil)

func baseParams(target transport.Target) map[string]interface{} {
	params := map[string]interface{}{"chat_id": target.ChatId}
	if target.ThreadId != 0 {
		params["message_thread_id"] = target.ThreadId
	}
	return params
}

// SendContent copies one relayed item to the target using the matching send method
func (c *Client) SendContent(ctx context.Context, target transport.Target, item *entity.Content) error {
	params := baseParams(target)
	var method string

	switch item.Type {
	case constant.MsgTypeText:
		method = "sendMessage"
		params["text"] = item.Text
	case constant.MsgTypeVoice:
		method = "sendVoice"
		params["voice"] = item.FileId
		setIfPositive(params, "duration", item.Duration)
	case constant.MsgTypeVideoNote:
		method = "sendVideoNote"
		params["video_note"] = item.FileId
		setIfPositive(params, "duration", item.Duration)
	case constant.MsgTypePhoto:
		method = "sendPhoto"
		params["photo"] = item.FileId
		setIfNotEmpty(params, "caption", item.Caption)
	case constant.MsgTypeVideo:
		method = "sendVideo"
		params["video"] = item.FileId
		setIfNotEmpty(params, "caption", item.Caption)
	case constant.MsgTypeDocument:
		method = "sendDocument"
		params["document"] = item.FileId
		setIfNotEmpty(params, "caption", item.Caption)
	case constant.MsgTypeAudio:
		method = "sendAudio"
		params["audio"] = item.FileId
		setIfNotEmpty(params, "caption", item.Caption)
	case constant.MsgTypeSticker:
		method = "sendSticker"
		params["sticker"] = item.FileId
	case constant.MsgTypeAnimation:
		method = "sendAnimation"
		params["animation"] = item.FileId
		setIfNotEmpty(params, "caption", item.Caption)
	case constant.MsgTypeLocation:
		method = "sendLocation"
		params["latitude"] = item.Latitude
		params["longitude"] = item.Longitude
	case constant.MsgTypeContact:
		if item.Contact == nil {
			return errcode.ErrInvalidParam.Wrap(fmt.Errorf("contact item without contact"))
		}
		method = "sendContact"
		params["phone_number"] = item.Contact.PhoneNumber
		params["first_name"] = item.Contact.FirstName
		setIfNotEmpty(params, "last_name", item.Contact.LastName)
	default:
		return errcode.ErrInvalidParam.Wrap(fmt.Errorf("unsupported content type %q", item.Type))
	}

	return c.call(ctx, method, params, nil)
}

// SendText sends a text message and returns its id
func (c *Client) SendText(ctx context.Context, target transport.Target, text string, html bool) (int64, error) {
	params := baseParams(target)
	params["text"] = text
	if html {
		params["parse_mode"] = parseModeHTML
	}

	var msg Message
	if err := c.call(ctx, "sendMessage", params, &msg); err != nil {
		return 0, err
	}
	return msg.MessageId, nil
}

// EditText edits a previously sent text message
func (c *Client) EditText(ctx context.Context, chatId, messageId int64, text string, html bool) error {
	params := map[string]interface{}{
		"chat_id":    chatId,
		"message_id": messageId,
		"text":       text,
	}
	if html {
		params["parse_mode"] = parseModeHTML
	}
	return c.call(ctx, "editMessageText", params, nil)
}

// DeleteMessage deletes a message
func (c *Client) DeleteMessage(ctx context.Context, chatId, messageId int64) error {
	return c.call(ctx, "deleteMessage", map[string]interface{}{
		"chat_id":    chatId,
		"message_id": messageId,
	}, nil)
}

// SendTyping shows the typing chat action
func (c *Client) SendTyping(ctx context.Context, chatId int64) error {
	return c.call(ctx, "sendChatAction", map[string]interface{}{
		"chat_id": chatId,
		"action":  "typing",
	}, nil)
}

// CreateTopic creates a forum topic in the support group
func (c *Client) CreateTopic(ctx context.Context, name string) (int64, error) {
	var topic ForumTopic
	err := c.call(ctx, "createForumTopic", map[string]interface{}{
		"chat_id": c.groupId,
		"name":    name,
	}, &topic)
	if err != nil {
		return 0, err
	}
	return topic.MessageThreadId, nil
}

// RenameTopic renames a forum topic in the support group
func (c *Client) RenameTopic(ctx context.Context, topicId int64, name string) error {
	return c.call(ctx, "editForumTopic", map[string]interface{}{
		"chat_id":           c.groupId,
		"message_thread_id": topicId,
		"name":              name,
	}, nil)
}

// CloseTopic closes a forum topic in the support group
func (c *Client) CloseTopic(ctx context.Context, topicId int64) error {
	return c.call(ctx, "closeForumTopic", map[string]interface{}{
		"chat_id":           c.groupId,
		"message_thread_id": topicId,
	}, nil)
}

// SetWebhook registers the webhook url with the Bot API
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	params := map[string]interface{}{
		"url":             url,
		"allowed_updates": []string{"message"},
	}
	if secret != "" {
		params["secret_token"] = secret
	}
	return c.call(ctx, "setWebhook", params, nil)
}

func setIfNotEmpty(params map[string]interface{}, key, value string) {
	if value != "" {
		params[key] = value
	}
}

func setIfPositive(params map[string]interface{}, key string, value int) {
	if value > 0 {
		params[key] = value
	}
}
