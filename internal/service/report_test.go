package service

import (
	"strings"
	"testing"
	"time"

	"github.com/mbeoliero/supportdesk/internal/entity"
	"github.com/mbeoliero/supportdesk/pkg/constant"
	"github.com/stretchr/testify/require"
)

func TestTimeAgo(t *testing.T) {
	now := testStart
	require.Equal(t, "", TimeAgo(0, now))
	require.Equal(t, "gerade", TimeAgo(now.Add(-30*time.Second).UnixMilli(), now))
	require.Equal(t, "vor 5min", TimeAgo(now.Add(-5*time.Minute).UnixMilli(), now))
	require.Equal(t, "vor 3h", TimeAgo(now.Add(-3*time.Hour-10*time.Minute).UnixMilli(), now))
	require.Equal(t, "vor 2d", TimeAgo(now.Add(-50*time.Hour).UnixMilli(), now))
}

func TestRenderInbox(t *testing.T) {
	now := testStart
	require.Contains(t, RenderInbox(nil, now), "Keine ungelesenen")

	out := RenderInbox([]*entity.Conversation{{
		UserId:             1,
		FirstName:          "<Anna>",
		Priority:           constant.PriorityUrgent,
		UnreadCount:        3,
		LastMessagePreview: "Sprachnachricht (4s)",
		LastMessageType:    constant.MsgTypeVoice,
		LastMessageAt:      now.Add(-2 * time.Hour).UnixMilli(),
	}}, now)
	require.Contains(t, out, "UNGELESEN (1)")
	require.Contains(t, out, "<b>1. 🚨&lt;Anna&gt;</b> (3)")
	require.Contains(t, out, "🎤 Sprachnachricht (4s)")
	require.Contains(t, out, "vor 2h")
}

func TestRenderFollowUps_Overflow(t *testing.T) {
	due := make([]*entity.Conversation, FollowUpListLimit+3)
	for i := range due {
		due[i] = &entity.Conversation{UserId: int64(i + 1), LastReplyAt: testStart.Add(-30 * time.Hour).UnixMilli()}
	}
	out := RenderFollowUps(due, testStart)
	require.Contains(t, out, "FOLLOW-UPS (18)")
	require.Contains(t, out, "+3 weitere")
	require.Equal(t, FollowUpListLimit, strings.Count(out, "Letzte Antwort"))
}

func TestRenderBroadcastPreview(t *testing.T) {
	pb := &PendingBroadcast{TargetLabel: "VIPs", Message: "Hallo & tschüss"}
	for i := 0; i < BroadcastPreviewSize+2; i++ {
		pb.Recipients = append(pb.Recipients, Recipient{UserId: int64(i), Name: "User"})
	}
	out := RenderBroadcastPreview(pb)
	require.Contains(t, out, "<b>Empfänger:</b> 12")
	require.Contains(t, out, "... und 2 weitere")
	require.Contains(t, out, "Hallo &amp; tschüss")
	require.Equal(t, BroadcastPreviewSize, strings.Count(out, "• User"))
}

func TestRenderBroadcastProgress(t *testing.T) {
	require.Equal(t, "📤 Sende... 5/12", RenderBroadcastProgress(BroadcastProgress{Done: 5, Total: 12}))
	final := RenderBroadcastProgress(BroadcastProgress{Done: 12, Total: 12, Sent: 11, Failed: 1, Final: true})
	require.Contains(t, final, "Gesendet: 11")
	require.Contains(t, final, "Fehlgeschlagen: 1")
}

func TestRenderTemplates_Sorted(t *testing.T) {
	out := RenderTemplates(map[string]string{"moment": "Einen Moment", "danke": "Gerne"})
	require.Less(t, strings.Index(out, "/t danke"), strings.Index(out, "/t moment"))
}
