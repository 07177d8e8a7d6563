package bot

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/supportdesk/internal/entity"
	"github.com/mbeoliero/supportdesk/internal/service"
	"github.com/mbeoliero/supportdesk/internal/transport"
	"github.com/mbeoliero/supportdesk/pkg/constant"
	"github.com/mbeoliero/supportdesk/pkg/errcode"
)

type command struct {
	name     string
	args     string
	topicId  int64
	senderId int64
	chat     transport.Target
}

func (c *command) fields() []string {
	return strings.Fields(c.args)
}

type commandFunc func(ctx context.Context, cmd *command)

func (d *Dispatcher) commandTable() map[string]commandFunc {
	return map[string]commandFunc{
		"start":     func(context.Context, *command) {},
		"inbox":     d.cmdInbox,
		"all":       d.cmdAll,
		"unread":    d.cmdUnread,
		"read":      d.cmdRead,
		"info":      d.cmdInfo,
		"vip":       d.priorityCommand(constant.PriorityVIP, "⭐ VIP", "VIP aus"),
		"urgent":    d.priorityCommand(constant.PriorityUrgent, "🚨 Urgent", "Urgent aus"),
		"close":     d.cmdClose,
		"note":      d.cmdNote,
		"t":         d.cmdTemplate,
		"v":         d.cmdVoice,
		"save":      d.adminOnly(d.cmdSave),
		"del":       d.adminOnly(d.cmdDelete),
		"search":    d.cmdSearch,
		"help":      d.cmdHelp,
		"hilfe":     d.cmdHelp,
		"followup":  d.cmdFollowUp,
		"done":      d.cmdDone,
		"skip":      d.cmdSkip,
		"bc":        d.adminOnly(d.cmdBroadcast),
		"broadcast": d.adminOnly(d.cmdBroadcast),
		"confirm":   d.adminOnly(d.cmdConfirm),
		"cancel":    d.cmdCancel,
	}
}

func (d *Dispatcher) adminOnly(fn commandFunc) commandFunc {
	return func(ctx context.Context, cmd *command) {
		if !d.cfg.Support.IsAdmin(cmd.senderId) {
			log.CtxDebug(ctx, "admin command rejected: command=%s, sender_id=%d", cmd.name, cmd.senderId)
			return
		}
		fn(ctx, cmd)
	}
}

// topicConversation returns the conversation bound to the command's topic, nil when there is none
func (d *Dispatcher) topicConversation(ctx context.Context, cmd *command) *entity.Conversation {
	if cmd.topicId == 0 {
		return nil
	}
	conv, err := d.conversations.GetByTopic(ctx, cmd.topicId)
	if err != nil {
		d.replyError(ctx, cmd, err)
		return nil
	}
	return conv
}

// resolve finds the command target by topic, then by name. It replies on failure.
func (d *Dispatcher) resolve(ctx context.Context, cmd *command, query, usage string) (*entity.Conversation, bool) {
	conv, err := d.conversations.Resolve(ctx, cmd.topicId, query)
	switch {
	case err == nil:
		return conv, true
	case errcode.Is(err, errcode.ErrMissingName):
		d.reply(ctx, cmd, usage)
	case errcode.Is(err, errcode.ErrNoMatch):
		d.reply(ctx, cmd, "Nicht gefunden")
	default:
		d.replyError(ctx, cmd, err)
	}
	return nil, false
}

func (d *Dispatcher) replyError(ctx context.Context, cmd *command, err error) {
	d.reply(ctx, cmd, "⚠️ "+errcode.From(err).Msg)
}

func (d *Dispatcher) cmdInbox(ctx context.Context, cmd *command) {
	unread, err := d.conversations.ListUnread(ctx)
	if err != nil {
		d.replyError(ctx, cmd, err)
		return
	}
	d.replyHTML(ctx, cmd, service.RenderInbox(unread, d.now()))
}

func (d *Dispatcher) cmdAll(ctx context.Context, cmd *command) {
	convs, err := d.conversations.ListActive(ctx)
	if err != nil {
		d.replyError(ctx, cmd, err)
		return
	}
	d.replyHTML(ctx, cmd, service.RenderAll(convs, d.now()))
}

func (d *Dispatcher) cmdUnread(ctx context.Context, cmd *command) {
	d.markCommand(ctx, cmd, d.conversations.MarkUnread, "/unread", constant.GlyphUnread, "Ungelesen", "ungelesen")
}

func (d *Dispatcher) cmdRead(ctx context.Context, cmd *command) {
	d.markCommand(ctx, cmd, d.conversations.MarkRead, "/read", constant.GlyphRead, "Gelesen", "gelesen")
}

func (d *Dispatcher) markCommand(ctx context.Context, cmd *command,
	mark func(ctx context.Context, userId int64) (*service.StateChange, error), usage, glyph, inTopic, byName string) {
	conv, ok := d.resolve(ctx, cmd, cmd.args, "Im Topic oder: "+usage+" <name>")
	if !ok {
		return
	}
	change, err := mark(ctx, conv.UserId)
	if err != nil {
		d.replyError(ctx, cmd, err)
		return
	}
	d.binder.Apply(ctx, change)

	if conv.Topic() == cmd.topicId {
		d.reply(ctx, cmd, glyph+" "+inTopic)
		return
	}
	d.reply(ctx, cmd, fmt.Sprintf("%s %s → %s", glyph, conv.DisplayName(), byName))
}

func (d *Dispatcher) cmdInfo(ctx context.Context, cmd *command) {
	if cmd.topicId == 0 {
		d.reply(ctx, cmd, "Im Topic nutzen")
		return
	}
	conv := d.topicConversation(ctx, cmd)
	if conv == nil {
		return
	}
	detail, err := d.relay.Info(ctx, conv)
	if err != nil {
		d.replyError(ctx, cmd, err)
		return
	}
	d.replyHTML(ctx, cmd, service.RenderInfo(detail))
}

func (d *Dispatcher) priorityCommand(level, on, off string) commandFunc {
	return func(ctx context.Context, cmd *command) {
		conv := d.topicConversation(ctx, cmd)
		if conv == nil {
			return
		}
		change, err := d.conversations.TogglePriority(ctx, conv, level)
		if err != nil {
			d.replyError(ctx, cmd, err)
			return
		}
		d.binder.Apply(ctx, change)
		if change.Conversation.Priority == level {
			d.reply(ctx, cmd, on)
		} else {
			d.reply(ctx, cmd, off)
		}
	}
}

func (d *Dispatcher) cmdClose(ctx context.Context, cmd *command) {
	conv := d.topicConversation(ctx, cmd)
	if conv == nil {
		return
	}
	// reply first: the topic is closed afterwards
	d.reply(ctx, cmd, "⚫ Archiviert")
	if _, err := d.relay.Close(ctx, conv.UserId); err != nil {
		d.replyError(ctx, cmd, err)
	}
}

func (d *Dispatcher) cmdNote(ctx context.Context, cmd *command) {
	if d.topicConversation(ctx, cmd) == nil {
		return
	}
	if strings.TrimSpace(cmd.args) == "" {
		notes, err := d.relay.ListNotes(ctx, cmd.topicId)
		if err != nil {
			d.replyError(ctx, cmd, err)
			return
		}
		d.replyHTML(ctx, cmd, service.RenderNotes(notes))
		return
	}

	note, err := d.relay.AddNote(ctx, cmd.topicId, cmd.senderId, cmd.args)
	if err != nil {
		d.replyError(ctx, cmd, err)
		return
	}
	d.reply(ctx, cmd, "📝 "+note.Note)
}

func (d *Dispatcher) cmdTemplate(ctx context.Context, cmd *command) {
	args := cmd.fields()
	if len(args) == 0 {
		d.replyHTML(ctx, cmd, service.RenderTemplates(d.relay.Templates()))
		return
	}
	if cmd.topicId == 0 {
		d.reply(ctx, cmd, "Im Topic")
		return
	}
	if d.topicConversation(ctx, cmd) == nil {
		return
	}

	_, err := d.relay.SendTemplate(ctx, cmd.topicId, args[0])
	switch {
	case err == nil:
	case errcode.Is(err, errcode.ErrTemplateNotFound):
		d.reply(ctx, cmd, "Nicht gefunden")
	default:
		d.replyError(ctx, cmd, err)
	}
}

func (d *Dispatcher) cmdVoice(ctx context.Context, cmd *command) {
	args := cmd.fields()
	if len(args) == 0 {
		list, err := d.relay.ListVoiceTemplates(ctx)
		if err != nil {
			d.replyError(ctx, cmd, err)
			return
		}
		d.replyHTML(ctx, cmd, service.RenderVoiceTemplates(list, false))
		return
	}
	if cmd.topicId == 0 {
		d.reply(ctx, cmd, "Im Topic nutzen")
		return
	}
	if d.topicConversation(ctx, cmd) == nil {
		return
	}

	_, err := d.relay.SendVoiceTemplate(ctx, cmd.topicId, args[0])
	switch {
	case err == nil:
		d.reply(ctx, cmd, "🎤 ✓")
	case errcode.Is(err, errcode.ErrTemplateNotFound):
		d.reply(ctx, cmd, fmt.Sprintf("❌ '%s' nicht gefunden\n/v für Liste", strings.ToLower(args[0])))
	default:
		d.replyError(ctx, cmd, err)
	}
}

func (d *Dispatcher) cmdSave(ctx context.Context, cmd *command) {
	if len(cmd.fields()) == 0 {
		list, err := d.relay.ListVoiceTemplates(ctx)
		if err != nil {
			d.replyError(ctx, cmd, err)
			return
		}
		d.replyHTML(ctx, cmd, service.RenderVoiceTemplates(list, true))
		return
	}

	name, err := d.relay.BeginVoiceSave(cmd.senderId, cmd.args)
	if err != nil {
		d.replyError(ctx, cmd, err)
		return
	}
	d.replyHTML(ctx, cmd, fmt.Sprintf("🎤 Sende jetzt die Sprachnachricht für <b>%s</b>", html.EscapeString(name)))
}

func (d *Dispatcher) cmdDelete(ctx context.Context, cmd *command) {
	if len(cmd.fields()) == 0 {
		d.reply(ctx, cmd, "/del name → löscht Sprachnachricht")
		return
	}

	name, err := d.relay.DeleteVoiceTemplate(ctx, cmd.args)
	switch {
	case err == nil:
		d.replyHTML(ctx, cmd, fmt.Sprintf("🗑 <b>%s</b> gelöscht", html.EscapeString(name)))
	case errcode.Is(err, errcode.ErrTemplateNotFound):
		d.reply(ctx, cmd, fmt.Sprintf("❌ '%s' nicht gefunden", name))
	default:
		d.replyError(ctx, cmd, err)
	}
}

func (d *Dispatcher) cmdSearch(ctx context.Context, cmd *command) {
	q := strings.TrimSpace(cmd.args)
	if q == "" {
		d.reply(ctx, cmd, "/search <text>")
		return
	}
	results, err := d.relay.Search(ctx, q)
	if err != nil {
		d.replyError(ctx, cmd, err)
		return
	}
	d.replyHTML(ctx, cmd, service.RenderSearch(q, results))
}

func (d *Dispatcher) cmdHelp(ctx context.Context, cmd *command) {
	d.replyHTML(ctx, cmd, service.HelpText)
}

func (d *Dispatcher) cmdFollowUp(ctx context.Context, cmd *command) {
	due, err := d.followUps.ListDue(ctx)
	if err != nil {
		d.replyError(ctx, cmd, err)
		return
	}
	d.replyHTML(ctx, cmd, service.RenderFollowUps(due, d.now()))
}

func (d *Dispatcher) cmdDone(ctx context.Context, cmd *command) {
	conv, ok := d.resolve(ctx, cmd, cmd.args, "Im Topic oder: /done <name>")
	if !ok {
		return
	}
	if _, err := d.followUps.MarkDone(ctx, conv.UserId); err != nil {
		d.replyError(ctx, cmd, err)
		return
	}
	if conv.Topic() == cmd.topicId {
		d.reply(ctx, cmd, "✅ Follow-up erledigt – keine weiteren Reminder")
		return
	}
	d.reply(ctx, cmd, fmt.Sprintf("✅ %s – Follow-up erledigt", conv.DisplayName()))
}

func (d *Dispatcher) cmdSkip(ctx context.Context, cmd *command) {
	days, query := parseSkipArgs(cmd.fields())
	conv, ok := d.resolve(ctx, cmd, query, "Im Topic oder: /skip <name> [tage]")
	if !ok {
		return
	}
	if _, err := d.followUps.Skip(ctx, conv.UserId, days); err != nil {
		d.replyError(ctx, cmd, err)
		return
	}
	if conv.Topic() == cmd.topicId {
		d.reply(ctx, cmd, fmt.Sprintf("⏭️ Follow-up übersprungen für %d Tage", days))
		return
	}
	d.reply(ctx, cmd, fmt.Sprintf("⏭️ %s – Follow-up übersprungen für %d Tage", conv.DisplayName(), days))
}

// parseSkipArgs splits "/skip [name...] [days]"; a trailing number is the day count
func parseSkipArgs(args []string) (int, string) {
	days := service.DefaultSkipDays
	if n := len(args); n > 0 {
		if v, err := strconv.Atoi(args[n-1]); err == nil && v > 0 {
			days = service.ClampSkipDays(v)
			args = args[:n-1]
		}
	}
	return days, strings.Join(args, " ")
}

func (d *Dispatcher) cmdBroadcast(ctx context.Context, cmd *command) {
	args := cmd.fields()
	if len(args) == 0 {
		d.replyHTML(ctx, cmd, service.BroadcastUsage)
		return
	}
	target := strings.ToLower(args[0])
	message := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(cmd.args), args[0]))

	pb, err := d.broadcasts.Stage(ctx, cmd.senderId, target, message)
	switch {
	case err == nil:
		d.replyHTML(ctx, cmd, service.RenderBroadcastPreview(pb))
	case errcode.Is(err, errcode.ErrUnknownTarget):
		d.reply(ctx, cmd, "❌ Unbekanntes Ziel. Nutze: followup, all, vip")
	case errcode.Is(err, errcode.ErrEmptyRecipients):
		d.reply(ctx, cmd, "❌ Keine Empfänger in '"+service.TargetLabel(target)+"'")
	case errcode.Is(err, errcode.ErrBlankMessage):
		d.reply(ctx, cmd, fmt.Sprintf("❌ Keine Nachricht angegeben\n\n/bc %s [deine nachricht]", target))
	default:
		d.replyError(ctx, cmd, err)
	}
}

func (d *Dispatcher) cmdConfirm(ctx context.Context, cmd *command) {
	pb, err := d.broadcasts.Take(cmd.senderId)
	if err != nil {
		if errcode.Is(err, errcode.ErrNothingPending) {
			d.reply(ctx, cmd, "❌ Kein Broadcast ausstehend")
			return
		}
		d.replyError(ctx, cmd, err)
		return
	}

	statusId := d.reply(ctx, cmd, service.RenderBroadcastProgress(service.BroadcastProgress{Id: pb.Id, Total: len(pb.Recipients)}))
	progress := func(p service.BroadcastProgress) {
		if statusId == 0 {
			return
		}
		if err := d.transport.EditText(ctx, cmd.chat.ChatId, statusId, service.RenderBroadcastProgress(p), p.Final); err != nil {
			log.CtxWarn(ctx, "edit broadcast status failed: id=%s, error=%v", p.Id, err)
		}
	}

	// the webhook must be acknowledged while the loop runs
	ctx = context.WithoutCancel(ctx)
	go d.broadcasts.Run(ctx, pb, progress)
}

func (d *Dispatcher) cmdCancel(ctx context.Context, cmd *command) {
	if d.broadcasts.Cancel(cmd.senderId) {
		d.reply(ctx, cmd, "❌ Broadcast abgebrochen")
		return
	}
	d.reply(ctx, cmd, "Nichts zum Abbrechen")
}
