package telegram

import (
	"encoding/json"
	"testing"

	"github.com/mbeoliero/supportdesk/pkg/constant"
	"github.com/stretchr/testify/require"
)

func TestMessage_Command(t *testing.T) {
	tests := []struct {
		text     string
		name     string
		args     string
		expectOk bool
	}{
		{"/inbox", "inbox", "", true},
		{"  /Skip@support_bot 5  ", "skip", "5", true},
		{"/bc followup Hallo du", "bc", "followup Hallo du", true},
		{"hallo /inbox", "", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			name, args, ok := (&Message{Text: tt.text}).Command()
			require.Equal(t, tt.expectOk, ok)
			require.Equal(t, tt.name, name)
			require.Equal(t, tt.args, args)
		})
	}
}

func TestUpdate_Decode(t *testing.T) {
	raw := `{
		"update_id": 10,
		"message": {
			"message_id": 5,
			"message_thread_id": 77,
			"is_topic_message": true,
			"from": {"id": 42, "is_bot": false, "first_name": "Anna", "username": "anna"},
			"chat": {"id": -100, "type": "supergroup", "is_forum": true},
			"date": 1700000000,
			"photo": [{"file_id": "small"}, {"file_id": "large"}],
			"caption": "Screenshot"
		}
	}`
	var u Update
	require.NoError(t, json.Unmarshal([]byte(raw), &u))
	require.NotNil(t, u.Message)

	m := u.Message
	require.False(t, m.IsPrivate())
	require.Equal(t, int64(42), m.SenderId())
	require.Equal(t, "anna", m.Identity().Username)

	item := m.Content()
	require.Equal(t, constant.MsgTypePhoto, item.Type)
	require.Equal(t, "large", item.FileId)
	require.Equal(t, "Screenshot", item.Caption)
}

func TestMessage_Content(t *testing.T) {
	voice := (&Message{Voice: &fileRef{FileId: "v", Duration: 9}}).Content()
	require.Equal(t, constant.MsgTypeVoice, voice.Type)
	require.Equal(t, 9, voice.Duration)

	doc := (&Message{Document: &fileRef{FileId: "d", FileName: "rechnung.pdf"}}).Content()
	require.Equal(t, "rechnung.pdf", doc.Preview())

	unknown := (&Message{}).Content()
	require.False(t, unknown.IsRelayable())
}

func TestMessage_ServiceAndAnonymous(t *testing.T) {
	m := &Message{Chat: Chat{Id: 5, Type: ChatTypePrivate}, ForumTopicEdited: &ForumTopic{Name: "x"}}
	require.True(t, m.IsServiceMessage())
	require.True(t, m.IsPrivate())
	require.Zero(t, m.SenderId())
	require.Equal(t, int64(5), m.Identity().UserId)
}
