package service

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/mbeoliero/supportdesk/internal/entity"
	"github.com/mbeoliero/supportdesk/pkg/constant"
)

// Listing limits of the chat reports
const (
	AllListLimit         = 25
	FollowUpListLimit    = 15
	DigestListLimit      = 5
	MorningReportLimit   = 10
	BroadcastPreviewSize = 10
)

const rule = "━━━━━━━━━━━━━━━━━━━━"

// TimeAgo renders the age of a unix millisecond timestamp relative to now
func TimeAgo(ms int64, now time.Time) string {
	if ms <= 0 {
		return ""
	}
	d := now.Sub(time.UnixMilli(ms))
	switch {
	case d >= 24*time.Hour:
		return fmt.Sprintf("vor %dd", int(d/(24*time.Hour)))
	case d >= time.Hour:
		return fmt.Sprintf("vor %dh", int(d/time.Hour))
	case d >= time.Minute:
		return fmt.Sprintf("vor %dmin", int(d/time.Minute))
	default:
		return "gerade"
	}
}

// RenderInbox renders the unread inbox
func RenderInbox(unread []*entity.Conversation, now time.Time) string {
	lines := []string{rule, "📥 <b>INBOX</b>", rule + "\n"}

	if len(unread) == 0 {
		lines = append(lines, "✅ Keine ungelesenen\n")
	} else {
		lines = append(lines, fmt.Sprintf("🔴 <b>UNGELESEN (%d)</b>\n", len(unread)))
		for i, c := range unread {
			preview := entity.TruncateRunes(c.LastMessagePreview, 40)
			if icon := constant.MsgTypeIcon(c.LastMessageType); icon != "" {
				preview = icon + " " + preview
			}
			count := ""
			if c.UnreadCount > 1 {
				count = fmt.Sprintf(" (%d)", c.UnreadCount)
			}
			lines = append(lines,
				fmt.Sprintf("<b>%d. %s%s</b>%s", i+1, c.PriorityGlyph(), html.EscapeString(c.DisplayName()), count),
				"   "+html.EscapeString(preview),
				fmt.Sprintf("   <i>%s</i>\n", TimeAgo(c.LastMessageAt, now)),
			)
		}
	}

	lines = append(lines, rule, "/unread • /read • /all")
	return strings.Join(lines, "\n")
}

// RenderAll renders the active conversation list
func RenderAll(convs []*entity.Conversation, now time.Time) string {
	if len(convs) == 0 {
		return "Keine aktiven Chats"
	}
	lines := []string{"📋 <b>ALLE CHATS</b>\n"}
	for _, c := range head(convs, AllListLimit) {
		lines = append(lines, fmt.Sprintf("%s%s %s – <i>%s</i>",
			c.PriorityGlyph(), constant.StatusGlyph(c.Status), html.EscapeString(c.DisplayName()), TimeAgo(c.LastMessageAt, now)))
	}
	return strings.Join(lines, "\n")
}

// RenderFollowUps renders the on-demand follow-up list
func RenderFollowUps(due []*entity.Conversation, now time.Time) string {
	if len(due) == 0 {
		return "✅ Keine Follow-ups fällig!"
	}
	lines := []string{rule, fmt.Sprintf("📋 <b>FOLLOW-UPS (%d)</b>", len(due)), rule + "\n"}
	for _, c := range head(due, FollowUpListLimit) {
		lines = append(lines,
			fmt.Sprintf("%s%s <b>%s</b>", c.PriorityGlyph(), constant.GlyphFollowUp, html.EscapeString(c.DisplayName())),
			fmt.Sprintf("   Letzte Antwort: %s\n", TimeAgo(c.LastReplyAt, now)),
		)
	}
	if len(due) > FollowUpListLimit {
		lines = append(lines, fmt.Sprintf("<i>... +%d weitere</i>\n", len(due)-FollowUpListLimit))
	}
	lines = append(lines, rule,
		"<i>/done – Erledigt (nie wieder Reminder)</i>",
		fmt.Sprintf("<i>/skip – Überspring für %d Tage</i>", DefaultSkipDays))
	return strings.Join(lines, "\n")
}

// RenderDigest renders the periodic reminder about waiting unread conversations
func RenderDigest(stale []*entity.Conversation, now time.Time) string {
	lines := []string{fmt.Sprintf("📬 <b>%d warten!</b>\n", len(stale))}
	for _, c := range head(stale, DigestListLimit) {
		lines = append(lines, fmt.Sprintf("• %s – %s", html.EscapeString(c.DisplayName()), TimeAgo(c.LastMessageAt, now)))
	}
	lines = append(lines, "\n/inbox")
	return strings.Join(lines, "\n")
}

// RenderMorningReport renders the daily follow-up report
func RenderMorningReport(due []*entity.Conversation, now time.Time) string {
	lines := []string{rule, "☀️ <b>GUTEN MORGEN!</b>", rule + "\n",
		fmt.Sprintf("📋 <b>%d Follow-ups fällig</b>\n", len(due))}
	for _, c := range head(due, MorningReportLimit) {
		lines = append(lines, fmt.Sprintf("%s%s %s – %s",
			c.PriorityGlyph(), constant.GlyphFollowUp, html.EscapeString(c.DisplayName()), TimeAgo(c.LastReplyAt, now)))
	}
	if len(due) > MorningReportLimit {
		lines = append(lines, fmt.Sprintf("\n... +%d weitere", len(due)-MorningReportLimit))
	}
	lines = append(lines, "\n"+rule, "/followup für Details")
	return strings.Join(lines, "\n")
}

// RenderBroadcastPreview renders the confirmation prompt of a staged broadcast
func RenderBroadcastPreview(pb *PendingBroadcast) string {
	var b strings.Builder
	b.WriteString("<b>📢 Broadcast Vorschau</b>\n\n")
	fmt.Fprintf(&b, "<b>Ziel:</b> %s\n", pb.TargetLabel)
	fmt.Fprintf(&b, "<b>Empfänger:</b> %d\n\n", len(pb.Recipients))
	for _, r := range pb.Recipients[:min(len(pb.Recipients), BroadcastPreviewSize)] {
		fmt.Fprintf(&b, "• %s\n", html.EscapeString(r.Name))
	}
	if rest := len(pb.Recipients) - BroadcastPreviewSize; rest > 0 {
		fmt.Fprintf(&b, "... und %d weitere\n", rest)
	}
	fmt.Fprintf(&b, "\n<b>Nachricht:</b>\n%s\n\n", html.EscapeString(pb.Message))
	b.WriteString(rule + "\n/confirm – Jetzt senden\n/cancel – Abbrechen")
	return b.String()
}

// RenderBroadcastProgress renders the running or final status of a broadcast
func RenderBroadcastProgress(p BroadcastProgress) string {
	if !p.Final {
		return fmt.Sprintf("📤 Sende... %d/%d", p.Done, p.Total)
	}
	return fmt.Sprintf("✅ <b>Broadcast gesendet!</b>\n\n📤 Gesendet: %d\n❌ Fehlgeschlagen: %d", p.Sent, p.Failed)
}

// RenderInfo renders the user info card
func RenderInfo(d *ConversationDetail) string {
	username := "—"
	if d.Username != "" {
		username = d.Username
	}
	created := "—"
	if d.CreatedAt > 0 {
		created = time.UnixMilli(d.CreatedAt).Format("02.01.2006")
	}
	return fmt.Sprintf("<b>%s</b>\n\n🆔 <code>%d</code>\n📧 @%s\n💬 %d (%d ↙️ %d ↗️)\n📅 %s",
		html.EscapeString(d.Name), d.UserId, html.EscapeString(username),
		d.Stats.Total, d.Stats.Inbound, d.Stats.Outbound, created)
}

// RenderNotes renders the latest notes
func RenderNotes(notes []*entity.Note) string {
	if len(notes) == 0 {
		return "/note &lt;text&gt;"
	}
	lines := []string{"📝 <b>Notizen</b>\n"}
	for _, n := range notes {
		lines = append(lines, fmt.Sprintf("• %s <i>(%s)</i>", html.EscapeString(n.Note), time.UnixMilli(n.CreatedAt).Format("02.01.")))
	}
	return strings.Join(lines, "\n")
}

// RenderSearch renders message search hits
func RenderSearch(q string, results []*entity.MessageSearchResult) string {
	if len(results) == 0 {
		return "Nichts gefunden"
	}
	lines := []string{fmt.Sprintf("🔍 <b>'%s'</b>\n", html.EscapeString(q))}
	for _, r := range results {
		arrow := "↙️"
		if r.Direction == constant.DirectionOut {
			arrow = "↗️"
		}
		name := r.FirstName
		if name == "" {
			name = "?"
		}
		lines = append(lines, fmt.Sprintf("%s <b>%s</b>: %s", arrow, html.EscapeString(name), html.EscapeString(entity.TruncateRunes(r.Content, 40))))
	}
	return strings.Join(lines, "\n")
}

// RenderTemplates renders the configured text templates, sorted by name
func RenderTemplates(templates map[string]string) string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := []string{"📋 <b>Templates</b>\n"}
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("/t %s → %s...", name, html.EscapeString(entity.TruncateRunes(templates[name], 30))))
	}
	return strings.Join(lines, "\n")
}

// RenderVoiceTemplates renders saved voice templates; withHints adds the admin usage lines
func RenderVoiceTemplates(list []*entity.VoiceTemplate, withHints bool) string {
	if len(list) == 0 {
		if withHints {
			return "Noch keine Sprachnachrichten gespeichert.\n\n/save name → dann Sprachnachricht senden"
		}
		return "Keine Sprachnachrichten.\n/save name → speichern"
	}

	title := "🎤 <b>Sprachnachrichten</b>\n"
	if withHints {
		title = "🎤 <b>Gespeicherte Sprachnachrichten</b>\n"
	}
	lines := []string{title}
	for _, t := range list {
		lines = append(lines, fmt.Sprintf("• /v %s (%ds)", html.EscapeString(t.Name), t.Duration))
	}
	if withHints {
		lines = append(lines,
			"\n<i>/save name → speichert nächste Sprachnachricht</i>",
			"<i>/del name → löscht Sprachnachricht</i>")
	}
	return strings.Join(lines, "\n")
}

// RenderVoiceSaved confirms a captured voice template
func RenderVoiceSaved(name string) string {
	n := html.EscapeString(name)
	return fmt.Sprintf("✅ Sprachnachricht <b>%s</b> gespeichert!\n\nNutze /v %s im Topic", n, n)
}

// HelpText lists the chat commands
const HelpText = `<b>📖 Befehle</b>

<b>Inbox</b>
/inbox – Ungelesene
/all – Alle Chats
/search – Suchen

<b>Follow-Up</b>
/followup – Alle anstehenden
/done – Erledigt (kein Reminder mehr)
/skip – Überspring für 3 Tage

<b>Broadcast</b>
/bc followup [text] – An alle Follow-ups
/bc all [text] – An alle aktiven
/bc vip [text] – An alle VIPs

<b>Im Topic</b>
/unread – Als ungelesen
/read – Als gelesen
/info – User-Info
/note – Notizen
/vip /urgent – Priorität
/close – Archivieren
/t – Templates
/v – Sprachnachrichten`

// BroadcastUsage explains the broadcast command
const BroadcastUsage = `<b>📢 Broadcast</b>

/bc followup [nachricht] – An alle mit fälligem Follow-up
/bc all [nachricht] – An alle aktiven Chats
/bc vip [nachricht] – An alle VIPs

<i>Beispiel:</i>
<code>/bc followup Hey, alles klar bei dir? 😊</code>`

func head(convs []*entity.Conversation, n int) []*entity.Conversation {
	if len(convs) > n {
		return convs[:n]
	}
	return convs
}
