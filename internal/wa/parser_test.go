package wa

import (
	"testing"
	"time"

	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waHistorySync"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func TestExtractTextBody(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want string
	}{
		{"nil message", nil, ""},
		{"conversation", &waE2E.Message{Conversation: proto.String("hello")}, "hello"},
		{"extended text", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("extended")}}, "extended"},
		{"image caption", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{Caption: proto.String("look at this")}}, "look at this"},
		{"image without caption", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}, ""},
		{"video caption", &waE2E.Message{VideoMessage: &waE2E.VideoMessage{Caption: proto.String("clip")}}, "clip"},
		{
			"document with caption",
			&waE2E.Message{DocumentWithCaptionMessage: &waE2E.FutureProofMessage{
				Message: &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{Caption: proto.String("report.pdf attached")}},
			}},
			"report.pdf attached",
		},
		{
			"hydrated template",
			&waE2E.Message{TemplateMessage: &waE2E.TemplateMessage{
				HydratedTemplate: &waE2E.TemplateMessage_HydratedFourRowTemplate{HydratedContentText: proto.String("template body")},
			}},
			"template body",
		},
		{
			// Conversation outranks every other variant.
			"conversation wins over caption",
			&waE2E.Message{
				Conversation: proto.String("primary"),
				ImageMessage: &waE2E.ImageMessage{Caption: proto.String("secondary")},
			},
			"primary",
		},
		{"empty conversation", &waE2E.Message{Conversation: proto.String("")}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractTextBody(tt.msg)
			if got != tt.want {
				t.Errorf("extractTextBody() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetectMessageType(t *testing.T) {
	tests := []struct {
		name string
		msg  *waE2E.Message
		want string
	}{
		{"nil", nil, "unknown"},
		{"conversation", &waE2E.Message{Conversation: proto.String("hi")}, "conversation"},
		{"extended text", &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("hi")}}, "extendedTextMessage"},
		{"image", &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}, "imageMessage"},
		{"video", &waE2E.Message{VideoMessage: &waE2E.VideoMessage{}}, "videoMessage"},
		{"audio", &waE2E.Message{AudioMessage: &waE2E.AudioMessage{}}, "audioMessage"},
		{"document", &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{}}, "documentMessage"},
		{"document with caption", &waE2E.Message{DocumentWithCaptionMessage: &waE2E.FutureProofMessage{}}, "documentWithCaptionMessage"},
		{"sticker", &waE2E.Message{StickerMessage: &waE2E.StickerMessage{}}, "stickerMessage"},
		{"contact", &waE2E.Message{ContactMessage: &waE2E.ContactMessage{}}, "contactMessage"},
		{"location", &waE2E.Message{LocationMessage: &waE2E.LocationMessage{}}, "locationMessage"},
		{"reaction", &waE2E.Message{ReactionMessage: &waE2E.ReactionMessage{}}, "reactionMessage"},
		{"empty message", &waE2E.Message{}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectMessageType(tt.msg)
			if got != tt.want {
				t.Errorf("detectMessageType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPhoneFromJIDString(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"5511999887766@s.whatsapp.net", "5511999887766"},
		{"5511999887766:3@s.whatsapp.net", "5511999887766"},
		{"5511999887766", "5511999887766"},
		{"", ""},
		{"@s.whatsapp.net", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := phoneFromJIDString(tt.input)
			if got != tt.want {
				t.Errorf("phoneFromJIDString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseLiveMessage(t *testing.T) {
	ts := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	evt := &events.Message{
		Info: types.MessageInfo{
			Timestamp: ts,
			MessageSource: types.MessageSource{
				Chat:     types.JID{User: "5511888", Server: "s.whatsapp.net"},
				Sender:   types.JID{User: "5511888", Server: "s.whatsapp.net", Device: 3},
				IsFromMe: false,
			},
			ID: "MSG123",
		},
		Message: &waE2E.Message{Conversation: proto.String("hello world")},
	}

	parsed := parseLiveMessage(evt)

	if parsed.ID != "MSG123" {
		t.Errorf("ID = %q, want MSG123", parsed.ID)
	}
	if parsed.RemotePhone != "5511888" {
		t.Errorf("RemotePhone = %q, want 5511888", parsed.RemotePhone)
	}
	if parsed.SenderPhone != "5511888" {
		t.Errorf("SenderPhone = %q, want 5511888 (device suffix dropped)", parsed.SenderPhone)
	}
	if parsed.Body != "hello world" {
		t.Errorf("Body = %q", parsed.Body)
	}
	if parsed.MessageType != "conversation" {
		t.Errorf("MessageType = %q, want conversation", parsed.MessageType)
	}
	if parsed.FromMe {
		t.Error("FromMe = true, want false")
	}
	if !parsed.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", parsed.Timestamp, ts)
	}
	if parsed.RawPayload == "" {
		t.Error("RawPayload empty, want serialized payload")
	}
}

func TestParseHistorySync(t *testing.T) {
	evt := &events.HistorySync{
		Data: &waHistorySync.HistorySync{
			Conversations: []*waHistorySync.Conversation{
				{
					ID: proto.String("5511888@s.whatsapp.net"),
					Messages: []*waHistorySync.HistorySyncMsg{
						{
							Message: &waWeb.WebMessageInfo{
								Key: &waCommon.MessageKey{
									ID:     proto.String("H1"),
									FromMe: proto.Bool(false),
								},
								Message:          &waE2E.Message{Conversation: proto.String("old message")},
								MessageTimestamp: proto.Uint64(1735689600),
							},
						},
						{
							// No inner payload: must be skipped, not emitted empty.
							Message: &waWeb.WebMessageInfo{
								Key: &waCommon.MessageKey{ID: proto.String("H2")},
							},
						},
						{
							Message: &waWeb.WebMessageInfo{
								Key: &waCommon.MessageKey{
									ID:     proto.String("H3"),
									FromMe: proto.Bool(true),
								},
								Message:          &waE2E.Message{Conversation: proto.String("my reply")},
								MessageTimestamp: proto.Uint64(1735689660),
							},
						},
					},
				},
			},
		},
	}

	msgs := parseHistorySync(evt)
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}

	first := msgs[0]
	if first.ID != "H1" || first.FromMe {
		t.Errorf("first = (%q, fromMe=%v)", first.ID, first.FromMe)
	}
	if first.RemotePhone != "5511888" || first.SenderPhone != "5511888" {
		t.Errorf("first phones = (%q, %q)", first.RemotePhone, first.SenderPhone)
	}
	if first.Body != "old message" {
		t.Errorf("first body = %q", first.Body)
	}
	if first.Timestamp.Unix() != 1735689600 {
		t.Errorf("first timestamp = %d", first.Timestamp.Unix())
	}

	second := msgs[1]
	if second.ID != "H3" || !second.FromMe {
		t.Errorf("second = (%q, fromMe=%v)", second.ID, second.FromMe)
	}
}

func TestParseHistorySyncNilData(t *testing.T) {
	if msgs := parseHistorySync(&events.HistorySync{}); msgs != nil {
		t.Errorf("messages = %v, want nil", msgs)
	}
}
