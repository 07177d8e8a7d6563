// Package bot turns platform updates into relay operations and chat commands.
package bot

import (
	"context"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/supportdesk/internal/config"
	"github.com/mbeoliero/supportdesk/internal/service"
	"github.com/mbeoliero/supportdesk/internal/transport"
	"github.com/mbeoliero/supportdesk/internal/transport/telegram"
)

// Dispatcher routes webhook updates
type Dispatcher struct {
	cfg           *config.Config
	transport     transport.Transport
	conversations *service.ConversationService
	followUps     *service.FollowUpService
	broadcasts    *service.BroadcastService
	relay         *service.RelayService
	binder        *service.TopicBinder
	now           service.Clock
	commands      map[string]commandFunc
}

// Deps groups the collaborators of Dispatcher
type Deps struct {
	Config        *config.Config
	Transport     transport.Transport
	Conversations *service.ConversationService
	FollowUps     *service.FollowUpService
	Broadcasts    *service.BroadcastService
	Relay         *service.RelayService
	Binder        *service.TopicBinder
	Now           service.Clock
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(deps Deps) *Dispatcher {
	d := &Dispatcher{
		cfg:           deps.Config,
		transport:     deps.Transport,
		conversations: deps.Conversations,
		followUps:     deps.FollowUps,
		broadcasts:    deps.Broadcasts,
		relay:         deps.Relay,
		binder:        deps.Binder,
		now:           deps.Now,
	}
	d.commands = d.commandTable()
	return d
}

// HandleUpdate processes one update. Failures are reported in chat and logged, never returned.
func (d *Dispatcher) HandleUpdate(ctx context.Context, update *telegram.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return
	}

	switch {
	case msg.IsPrivate():
		d.handlePrivate(ctx, msg)
	case msg.Chat.Id == d.cfg.Telegram.SupportGroupId:
		d.handleWorkspace(ctx, msg)
	default:
		log.CtxDebug(ctx, "ignore update from foreign chat: chat_id=%d", msg.Chat.Id)
	}
}

func (d *Dispatcher) handlePrivate(ctx context.Context, msg *telegram.Message) {
	if name, args, ok := msg.Command(); ok {
		// admins stage voice templates from their private chat
		if fn, private := d.privateCommand(name); private && d.cfg.Support.IsAdmin(msg.SenderId()) {
			fn(ctx, d.newCommand(msg, name, args))
		}
		return
	}

	item := msg.Content()
	result, err := d.relay.HandleUserMessage(ctx, msg.Identity(), &item)
	if err != nil {
		log.CtxWarn(ctx, "handle user message failed: user_id=%d, error=%v", msg.SenderId(), err)
		return
	}
	if result.NewTopic {
		log.CtxInfo(ctx, "new topic bound: user_id=%d, topic_id=%d", msg.SenderId(), result.Conversation.Topic())
	}
}

func (d *Dispatcher) handleWorkspace(ctx context.Context, msg *telegram.Message) {
	if msg.IsServiceMessage() {
		if msg.ForumTopicEdited != nil {
			if err := d.transport.DeleteMessage(ctx, msg.Chat.Id, msg.MessageId); err != nil {
				log.CtxDebug(ctx, "delete service message failed: message_id=%d, error=%v", msg.MessageId, err)
			}
		}
		return
	}

	if name, args, ok := msg.Command(); ok {
		if fn, known := d.commands[name]; known {
			fn(ctx, d.newCommand(msg, name, args))
			return
		}
	}

	// unknown commands in a topic are relayed like any other message
	if msg.MessageThreadId == 0 {
		return
	}
	item := msg.Content()
	if _, err := d.relay.HandleAdminMessage(ctx, msg.MessageThreadId, &item); err != nil {
		log.CtxWarn(ctx, "handle admin message failed: topic_id=%d, error=%v", msg.MessageThreadId, err)
	}
}

func (d *Dispatcher) privateCommand(name string) (commandFunc, bool) {
	switch name {
	case "save", "del", "cancel":
		return d.commands[name], true
	}
	return nil, false
}

func (d *Dispatcher) newCommand(msg *telegram.Message, name, args string) *command {
	return &command{
		name:     name,
		args:     args,
		topicId:  msg.MessageThreadId,
		senderId: msg.SenderId(),
		chat:     transport.Target{ChatId: msg.Chat.Id, ThreadId: msg.MessageThreadId},
	}
}

func (d *Dispatcher) reply(ctx context.Context, cmd *command, text string) int64 {
	return d.send(ctx, cmd, text, false)
}

func (d *Dispatcher) replyHTML(ctx context.Context, cmd *command, text string) int64 {
	return d.send(ctx, cmd, text, true)
}

func (d *Dispatcher) send(ctx context.Context, cmd *command, text string, html bool) int64 {
	id, err := d.transport.SendText(ctx, cmd.chat, text, html)
	if err != nil {
		log.CtxWarn(ctx, "command reply failed: command=%s, error=%v", cmd.name, err)
	}
	return id
}
