package service

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/supportdesk/internal/config"
	"github.com/mbeoliero/supportdesk/internal/entity"
	"github.com/mbeoliero/supportdesk/internal/metrics"
	"github.com/mbeoliero/supportdesk/internal/transport"
	"github.com/mbeoliero/supportdesk/pkg/constant"
	"github.com/mbeoliero/supportdesk/pkg/errcode"
	"golang.org/x/sync/singleflight"
)

const (
	notesLimit  = 5
	searchLimit = 10
	typingPause = 300 * time.Millisecond
)

// RelayDeps groups the collaborators of RelayService
type RelayDeps struct {
	Transport     transport.Transport
	Conversations *ConversationService
	Binder        *TopicBinder
	Messages      MessageLogStore
	Notes         NoteStore
	Voices        VoiceTemplateStore
	Support       *config.SupportConfig
	Now           Clock
}

// RelayService moves items between users and their topics and serves the quick-reply,
// note, search and info features around them
type RelayService struct {
	transport     transport.Transport
	conversations *ConversationService
	binder        *TopicBinder
	messages      MessageLogStore
	notes         NoteStore
	voices        VoiceTemplateStore
	support       *config.SupportConfig
	now           Clock

	binds singleflight.Group // keyed by user id

	mu          sync.Mutex
	pendingSave map[int64]string // admin id -> voice template name awaiting its recording
}

// NewRelayService creates a new RelayService
func NewRelayService(deps RelayDeps) *RelayService {
	return &RelayService{
		transport:     deps.Transport,
		conversations: deps.Conversations,
		binder:        deps.Binder,
		messages:      deps.Messages,
		notes:         deps.Notes,
		voices:        deps.Voices,
		support:       deps.Support,
		now:           deps.Now,
		pendingSave:   make(map[int64]string),
	}
}

// UserMessageResult describes what happened to an inbound user message
type UserMessageResult struct {
	Conversation *entity.Conversation
	NewTopic     bool
	// SavedTemplate is set when the message was captured as a voice template instead of relayed
	SavedTemplate string
}

// HandleUserMessage relays a direct message from a user into their topic, creating or
// resurrecting the topic when needed and reconciling once when the topic is gone.
func (s *RelayService) HandleUserMessage(ctx context.Context, ident entity.Identity, item *entity.Content) (*UserMessageResult, error) {
	if name, ok := s.captureVoiceSave(ctx, ident.UserId, item); ok {
		return &UserMessageResult{SavedTemplate: name}, nil
	}
	if !item.IsRelayable() {
		log.CtxDebug(ctx, "ignore unsupported user message: user_id=%d", ident.UserId)
		return &UserMessageResult{}, nil
	}

	conv, err := s.conversations.Get(ctx, ident.UserId)
	if err != nil {
		return nil, err
	}

	result := &UserMessageResult{}
	if conv == nil || conv.IsArchived {
		conv, result.NewTopic, err = s.bindOnce(ctx, ident, item)
		if err != nil {
			return nil, err
		}
		if result.NewTopic {
			s.sendWelcome(ctx, ident.UserId)
		}
	}

	relay := func(ctx context.Context, topicId int64) error {
		return s.transport.SendContent(ctx, s.topicTarget(topicId), item)
	}
	if err := relay(ctx, conv.Topic()); err != nil {
		log.CtxWarn(ctx, "relay to topic failed, reconciling: user_id=%d, topic_id=%d, error=%v", ident.UserId, conv.Topic(), err)
		conv, err = s.binder.Reconcile(ctx, conv, relay)
		if err != nil {
			metrics.ObserveRelay(constant.DirectionIn, false)
			return nil, err
		}
	}
	metrics.ObserveRelay(constant.DirectionIn, true)
	s.appendLog(ctx, item.NewLogEntry(ident.UserId, constant.DirectionIn, s.now().UnixMilli()))

	if result.NewTopic {
		// the fresh row already carries this message as its single unread item
		result.Conversation = conv
		s.conversations.Announce(ctx, conv)
		s.binder.SyncTopicName(ctx, conv)
		return result, nil
	}

	change, err := s.conversations.RecordInbound(ctx, ident.UserId, item)
	if err != nil {
		return nil, err
	}
	if change.NeedsTopic {
		// archived between load and write; the message is in the old topic already
		log.CtxWarn(ctx, "conversation archived during relay: user_id=%d", ident.UserId)
		result.Conversation = conv
		return result, nil
	}
	s.binder.Apply(ctx, change)
	result.Conversation = change.Conversation
	return result, nil
}

type boundTopic struct {
	conv    *entity.Conversation
	created bool
}

// bindOnce creates the topic of a new or archived user. Concurrent first messages of one user
// share a single creation; only the caller whose message created it reports created.
func (s *RelayService) bindOnce(ctx context.Context, ident entity.Identity, item *entity.Content) (*entity.Conversation, bool, error) {
	ran := false
	v, err, _ := s.binds.Do(strconv.FormatInt(ident.UserId, 10), func() (interface{}, error) {
		ran = true
		// an earlier flight may have bound the topic after our first read
		conv, err := s.conversations.Get(ctx, ident.UserId)
		if err != nil {
			return nil, err
		}
		if conv != nil && !conv.IsArchived {
			return &boundTopic{conv: conv}, nil
		}
		conv, err = s.binder.BindNewTopic(ctx, ident, item)
		if err != nil {
			return nil, err
		}
		return &boundTopic{conv: conv, created: true}, nil
	})
	if err != nil {
		return nil, false, err
	}
	bound := v.(*boundTopic)
	return bound.conv, ran && bound.created, nil
}

// HandleAdminMessage relays an admin message posted in a topic to its user.
// Returns nil conversation when the topic is not bound to an active conversation.
func (s *RelayService) HandleAdminMessage(ctx context.Context, topicId int64, item *entity.Content) (*entity.Conversation, error) {
	conv, err := s.conversations.GetByTopic(ctx, topicId)
	if err != nil || conv == nil {
		return nil, err
	}
	if !item.IsRelayable() {
		return conv, nil
	}

	if s.support.TypingIndicator {
		if err := s.transport.SendTyping(ctx, conv.UserId); err != nil {
			log.CtxDebug(ctx, "send typing failed: user_id=%d, error=%v", conv.UserId, err)
		} else {
			time.Sleep(typingPause)
		}
	}

	if err := s.transport.SendContent(ctx, transport.Target{ChatId: conv.UserId}, item); err != nil {
		metrics.ObserveRelay(constant.DirectionOut, false)
		log.CtxWarn(ctx, "relay to user failed: user_id=%d, error=%v", conv.UserId, err)
		s.reportFailure(ctx, topicId, err)
		return nil, err
	}
	metrics.ObserveRelay(constant.DirectionOut, true)

	return s.recordOutbound(ctx, conv, item.NewLogEntry(conv.UserId, constant.DirectionOut, s.now().UnixMilli()))
}

// SendTemplate sends a configured text template to the user of the topic
func (s *RelayService) SendTemplate(ctx context.Context, topicId int64, name string) (*entity.Conversation, error) {
	text, ok := s.support.Templates[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, errcode.ErrTemplateNotFound
	}
	conv, err := s.topicConversation(ctx, topicId)
	if err != nil {
		return nil, err
	}

	item := entity.TextContent(text)
	if err := s.transport.SendContent(ctx, transport.Target{ChatId: conv.UserId}, &item); err != nil {
		metrics.ObserveRelay(constant.DirectionOut, false)
		log.CtxWarn(ctx, "send template failed: user_id=%d, template=%s, error=%v", conv.UserId, name, err)
		return nil, err
	}
	metrics.ObserveRelay(constant.DirectionOut, true)

	return s.recordOutbound(ctx, conv, item.NewLogEntry(conv.UserId, constant.DirectionOut, s.now().UnixMilli()))
}

// Templates returns the configured text templates
func (s *RelayService) Templates() map[string]string {
	return s.support.Templates
}

// SendVoiceTemplate sends a saved voice message to the user of the topic
func (s *RelayService) SendVoiceTemplate(ctx context.Context, topicId int64, name string) (*entity.Conversation, error) {
	name = normalizeTemplateName(name)
	if name == "" {
		return nil, errcode.ErrMissingName
	}
	tmpl, err := s.voices.Get(ctx, name)
	if err != nil {
		log.CtxError(ctx, "get voice template failed: name=%s, error=%v", name, err)
		return nil, errcode.ErrStoreFailure.Wrap(err)
	}
	if tmpl == nil {
		return nil, errcode.ErrTemplateNotFound
	}
	conv, err := s.topicConversation(ctx, topicId)
	if err != nil {
		return nil, err
	}

	item := &entity.Content{Type: constant.MsgTypeVoice, FileId: tmpl.FileId, Duration: tmpl.Duration}
	if err := s.transport.SendContent(ctx, transport.Target{ChatId: conv.UserId}, item); err != nil {
		metrics.ObserveRelay(constant.DirectionOut, false)
		log.CtxWarn(ctx, "send voice template failed: user_id=%d, template=%s, error=%v", conv.UserId, name, err)
		return nil, err
	}
	metrics.ObserveRelay(constant.DirectionOut, true)

	entry := item.NewLogEntry(conv.UserId, constant.DirectionOut, s.now().UnixMilli())
	entry.Content = "[Voice: " + name + "]"
	return s.recordOutbound(ctx, conv, entry)
}

// BeginVoiceSave arms the next voice message of adminId to be stored under name
func (s *RelayService) BeginVoiceSave(adminId int64, name string) (string, error) {
	name = normalizeTemplateName(name)
	if name == "" {
		return "", errcode.ErrMissingName
	}
	s.mu.Lock()
	s.pendingSave[adminId] = name
	s.mu.Unlock()
	return name, nil
}

// captureVoiceSave stores item as the armed voice template of senderId. Non-voice items leave
// the pending save in place.
func (s *RelayService) captureVoiceSave(ctx context.Context, senderId int64, item *entity.Content) (string, bool) {
	if !item.IsVoiceLike() {
		return "", false
	}

	s.mu.Lock()
	name, ok := s.pendingSave[senderId]
	if ok {
		delete(s.pendingSave, senderId)
	}
	s.mu.Unlock()
	if !ok {
		return "", false
	}

	err := s.voices.Save(ctx, &entity.VoiceTemplate{
		Name:      name,
		FileId:    item.FileId,
		Duration:  item.Duration,
		CreatedAt: s.now().UnixMilli(),
	})
	if err != nil {
		log.CtxError(ctx, "save voice template failed: name=%s, error=%v", name, err)
		s.reply(ctx, transport.Target{ChatId: senderId}, "⚠️ Speichern fehlgeschlagen", false)
		return name, true
	}

	log.CtxInfo(ctx, "voice template saved: name=%s, admin_id=%d", name, senderId)
	s.reply(ctx, transport.Target{ChatId: senderId}, RenderVoiceSaved(name), true)
	return name, true
}

// ListVoiceTemplates lists saved voice templates by name
func (s *RelayService) ListVoiceTemplates(ctx context.Context) ([]*entity.VoiceTemplate, error) {
	list, err := s.voices.List(ctx)
	if err != nil {
		log.CtxError(ctx, "list voice templates failed: error=%v", err)
		return nil, errcode.ErrStoreFailure.Wrap(err)
	}
	return list, nil
}

// DeleteVoiceTemplate deletes a voice template by name
func (s *RelayService) DeleteVoiceTemplate(ctx context.Context, name string) (string, error) {
	name = normalizeTemplateName(name)
	if name == "" {
		return "", errcode.ErrMissingName
	}
	deleted, err := s.voices.Delete(ctx, name)
	if err != nil {
		log.CtxError(ctx, "delete voice template failed: name=%s, error=%v", name, err)
		return name, errcode.ErrStoreFailure.Wrap(err)
	}
	if !deleted {
		return name, errcode.ErrTemplateNotFound
	}
	return name, nil
}

// AddNote stores an admin note on the conversation of the topic
func (s *RelayService) AddNote(ctx context.Context, topicId, adminId int64, text string) (*entity.Note, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errcode.ErrBlankMessage
	}
	conv, err := s.topicConversation(ctx, topicId)
	if err != nil {
		return nil, err
	}

	note := &entity.Note{UserId: conv.UserId, AdminId: adminId, Note: text, CreatedAt: s.now().UnixMilli()}
	if err := s.notes.Add(ctx, note); err != nil {
		log.CtxError(ctx, "add note failed: user_id=%d, error=%v", conv.UserId, err)
		return nil, errcode.ErrStoreFailure.Wrap(err)
	}
	return note, nil
}

// ListNotes returns the latest notes of the conversation of the topic
func (s *RelayService) ListNotes(ctx context.Context, topicId int64) ([]*entity.Note, error) {
	conv, err := s.topicConversation(ctx, topicId)
	if err != nil {
		return nil, err
	}
	return s.LatestNotes(ctx, conv.UserId)
}

// LatestNotes returns the latest notes of a user
func (s *RelayService) LatestNotes(ctx context.Context, userId int64) ([]*entity.Note, error) {
	notes, err := s.notes.Latest(ctx, userId, notesLimit)
	if err != nil {
		log.CtxError(ctx, "list notes failed: user_id=%d, error=%v", userId, err)
		return nil, errcode.ErrStoreFailure.Wrap(err)
	}
	return notes, nil
}

// ConversationDetail is a conversation with its message counts
type ConversationDetail struct {
	*entity.ConversationInfo
	CreatedAt int64                `json:"created_at"`
	Stats     *entity.MessageStats `json:"stats"`
	Notes     []*entity.Note       `json:"notes,omitempty"`
}

// Info returns the detail of a user conversation
func (s *RelayService) Info(ctx context.Context, conv *entity.Conversation) (*ConversationDetail, error) {
	stats, err := s.messages.Stats(ctx, conv.UserId)
	if err != nil {
		log.CtxError(ctx, "message stats failed: user_id=%d, error=%v", conv.UserId, err)
		return nil, errcode.ErrStoreFailure.Wrap(err)
	}
	notes, err := s.LatestNotes(ctx, conv.UserId)
	if err != nil {
		return nil, err
	}
	return &ConversationDetail{
		ConversationInfo: conv.ToInfo(),
		CreatedAt:        conv.CreatedAt,
		Stats:            stats,
		Notes:            notes,
	}, nil
}

// History returns the latest message log entries of a user
func (s *RelayService) History(ctx context.Context, userId int64, limit int) ([]*entity.MessageLog, error) {
	entries, err := s.messages.ListByUser(ctx, userId, limit)
	if err != nil {
		log.CtxError(ctx, "list messages failed: user_id=%d, error=%v", userId, err)
		return nil, errcode.ErrStoreFailure.Wrap(err)
	}
	return entries, nil
}

// Search finds the latest logged messages containing q
func (s *RelayService) Search(ctx context.Context, q string) ([]*entity.MessageSearchResult, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, errcode.ErrMissingName
	}
	results, err := s.messages.Search(ctx, q, searchLimit)
	if err != nil {
		log.CtxError(ctx, "search messages failed: q=%s, error=%v", q, err)
		return nil, errcode.ErrStoreFailure.Wrap(err)
	}
	return results, nil
}

// Close archives the conversation and closes its topic, best-effort
func (s *RelayService) Close(ctx context.Context, userId int64) (*entity.Conversation, error) {
	change, err := s.conversations.Archive(ctx, userId)
	if err != nil {
		return nil, err
	}
	s.binder.CloseTopic(ctx, change.Conversation.Topic())
	log.CtxInfo(ctx, "conversation closed: user_id=%d", userId)
	return change.Conversation, nil
}

func (s *RelayService) recordOutbound(ctx context.Context, conv *entity.Conversation, entry *entity.MessageLog) (*entity.Conversation, error) {
	s.appendLog(ctx, entry)
	change, err := s.conversations.RecordOutbound(ctx, conv.UserId)
	if err != nil {
		return nil, err
	}
	s.binder.Apply(ctx, change)
	return change.Conversation, nil
}

func (s *RelayService) topicConversation(ctx context.Context, topicId int64) (*entity.Conversation, error) {
	if topicId == 0 {
		return nil, errcode.ErrConvNotFound
	}
	conv, err := s.conversations.GetByTopic(ctx, topicId)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, errcode.ErrConvNotFound
	}
	return conv, nil
}

func (s *RelayService) appendLog(ctx context.Context, entry *entity.MessageLog) {
	if err := s.messages.Append(ctx, entry); err != nil {
		log.CtxError(ctx, "append message log failed: user_id=%d, direction=%s, error=%v", entry.UserId, entry.Direction, err)
	}
}

func (s *RelayService) sendWelcome(ctx context.Context, userId int64) {
	if s.support.WelcomeMessage == "" {
		return
	}
	s.reply(ctx, transport.Target{ChatId: userId}, s.support.WelcomeMessage, false)
}

func (s *RelayService) reportFailure(ctx context.Context, topicId int64, cause error) {
	s.reply(ctx, s.topicTarget(topicId), "⚠️ "+errcode.From(cause).Msg, false)
}

func (s *RelayService) reply(ctx context.Context, target transport.Target, text string, html bool) {
	if _, err := s.transport.SendText(ctx, target, text, html); err != nil {
		log.CtxWarn(ctx, "reply failed: chat_id=%d, thread_id=%d, error=%v", target.ChatId, target.ThreadId, err)
	}
}

func (s *RelayService) topicTarget(topicId int64) transport.Target {
	return transport.Target{ChatId: s.transport.WorkspaceChatId(), ThreadId: topicId}
}

func normalizeTemplateName(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
