package testkit

import (
	"context"
	"sync"

	"github.com/mbeoliero/supportdesk/internal/entity"
	"github.com/mbeoliero/supportdesk/internal/transport"
	"github.com/mbeoliero/supportdesk/pkg/errcode"
)

// WorkspaceChatId is the support group id of the Transport fake
const WorkspaceChatId int64 = -100

// SentContent is one recorded SendContent call
type SentContent struct {
	Target transport.Target
	Item   entity.Content
}

// SentText is one recorded SendText call
type SentText struct {
	Target transport.Target
	Text   string
	HTML   bool
	Id     int64
}

// Rename is one recorded RenameTopic call
type Rename struct {
	TopicId int64
	Name    string
}

// Edit is one recorded EditText call
type Edit struct {
	MessageId int64
	Text      string
}

// Transport records every call and fails on demand
type Transport struct {
	mu        sync.Mutex
	nextTopic int64
	nextMsg   int64

	Contents []SentContent
	Texts    []SentText
	Renames  []Rename
	Created  []string
	Closed   []int64
	Deleted  []int64
	Edits    []Edit
	Typing   []int64

	// FailContent fails SendContent for matching targets
	FailContent func(target transport.Target) bool
	// FailText fails SendText for matching targets
	FailText  func(target transport.Target) bool
	RenameErr error
	CreateErr error
	CloseErr  error
	// BeforeCreate runs at the start of CreateTopic, outside the recorder lock
	BeforeCreate func()
}

var _ transport.Transport = (*Transport)(nil)

// NewTransport creates a recorder whose topics are numbered from 1000
func NewTransport() *Transport {
	return &Transport{nextTopic: 1000, nextMsg: 1}
}

func (t *Transport) SendContent(_ context.Context, target transport.Target, item *entity.Content) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.FailContent != nil && t.FailContent(target) {
		return errcode.ErrTopicInvalid
	}
	t.Contents = append(t.Contents, SentContent{Target: target, Item: *item})
	return nil
}

func (t *Transport) SendText(_ context.Context, target transport.Target, text string, html bool) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.FailText != nil && t.FailText(target) {
		return 0, errcode.ErrTransportFailure
	}
	t.nextMsg++
	t.Texts = append(t.Texts, SentText{Target: target, Text: text, HTML: html, Id: t.nextMsg})
	return t.nextMsg, nil
}

func (t *Transport) EditText(_ context.Context, _ int64, messageId int64, text string, _ bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Edits = append(t.Edits, Edit{MessageId: messageId, Text: text})
	return nil
}

func (t *Transport) DeleteMessage(_ context.Context, _ int64, messageId int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Deleted = append(t.Deleted, messageId)
	return nil
}

func (t *Transport) SendTyping(_ context.Context, chatId int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Typing = append(t.Typing, chatId)
	return nil
}

func (t *Transport) CreateTopic(_ context.Context, name string) (int64, error) {
	if t.BeforeCreate != nil {
		t.BeforeCreate()
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.CreateErr != nil {
		return 0, t.CreateErr
	}
	t.nextTopic++
	t.Created = append(t.Created, name)
	return t.nextTopic, nil
}

func (t *Transport) RenameTopic(_ context.Context, topicId int64, name string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.RenameErr != nil {
		return t.RenameErr
	}
	t.Renames = append(t.Renames, Rename{TopicId: topicId, Name: name})
	return nil
}

func (t *Transport) CloseTopic(_ context.Context, topicId int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.CloseErr != nil {
		return t.CloseErr
	}
	t.Closed = append(t.Closed, topicId)
	return nil
}

func (t *Transport) WorkspaceChatId() int64 {
	return WorkspaceChatId
}

// TextsTo returns the texts sent to chatId, in order
func (t *Transport) TextsTo(chatId int64) []SentText {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []SentText
	for _, s := range t.Texts {
		if s.Target.ChatId == chatId {
			out = append(out, s)
		}
	}
	return out
}

// LastText returns the most recent text, or the zero value
func (t *Transport) LastText() SentText {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.Texts) == 0 {
		return SentText{}
	}
	return t.Texts[len(t.Texts)-1]
}

// RenameCount returns the number of successful renames
func (t *Transport) RenameCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Renames)
}

// ContentsTo returns the items sent to chatId, in order
func (t *Transport) ContentsTo(chatId int64) []SentContent {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []SentContent
	for _, c := range t.Contents {
		if c.Target.ChatId == chatId {
			out = append(out, c)
		}
	}
	return out
}

// LastEdit returns the most recent edit, if any
func (t *Transport) LastEdit() (Edit, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.Edits) == 0 {
		return Edit{}, false
	}
	return t.Edits[len(t.Edits)-1], true
}
