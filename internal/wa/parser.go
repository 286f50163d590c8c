package wa

import (
	"strings"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/herosoft/wagate/internal/gateway"
)

// textExtractors pull a displayable body out of the message payload variants
// that carry one. Order matters: the first non-empty result wins.
var textExtractors = []func(*waE2E.Message) string{
	func(m *waE2E.Message) string { return m.GetConversation() },
	func(m *waE2E.Message) string { return m.GetExtendedTextMessage().GetText() },
	func(m *waE2E.Message) string { return m.GetImageMessage().GetCaption() },
	func(m *waE2E.Message) string { return m.GetVideoMessage().GetCaption() },
	func(m *waE2E.Message) string {
		return m.GetDocumentWithCaptionMessage().GetMessage().GetDocumentMessage().GetCaption()
	},
	func(m *waE2E.Message) string {
		return m.GetTemplateMessage().GetHydratedTemplate().GetHydratedContentText()
	},
}

func extractTextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	for _, extract := range textExtractors {
		if text := extract(msg); text != "" {
			return text
		}
	}
	return ""
}

// detectMessageType names the payload variant the message carries, matching
// the wire-level field names.
func detectMessageType(msg *waE2E.Message) string {
	if msg == nil {
		return "unknown"
	}
	switch {
	case msg.GetConversation() != "":
		return "conversation"
	case msg.GetExtendedTextMessage() != nil:
		return "extendedTextMessage"
	case msg.GetImageMessage() != nil:
		return "imageMessage"
	case msg.GetVideoMessage() != nil:
		return "videoMessage"
	case msg.GetAudioMessage() != nil:
		return "audioMessage"
	case msg.GetDocumentMessage() != nil:
		return "documentMessage"
	case msg.GetDocumentWithCaptionMessage() != nil:
		return "documentWithCaptionMessage"
	case msg.GetStickerMessage() != nil:
		return "stickerMessage"
	case msg.GetContactMessage() != nil:
		return "contactMessage"
	case msg.GetLocationMessage() != nil:
		return "locationMessage"
	case msg.GetTemplateMessage() != nil:
		return "templateMessage"
	case msg.GetReactionMessage() != nil:
		return "reactionMessage"
	case msg.GetProtocolMessage() != nil:
		return "protocolMessage"
	default:
		return "unknown"
	}
}

// phoneFromJIDString extracts the digits of a JID's user part, dropping the
// server and any device or agent suffix.
func phoneFromJIDString(jid string) string {
	if i := strings.IndexByte(jid, '@'); i >= 0 {
		jid = jid[:i]
	}
	if i := strings.IndexByte(jid, ':'); i >= 0 {
		jid = jid[:i]
	}
	return gateway.SanitizePhone(jid)
}

func rawPayload(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	raw, err := protojson.Marshal(msg)
	if err != nil {
		return ""
	}
	return string(raw)
}

// parseLiveMessage normalizes a live message event.
func parseLiveMessage(evt *events.Message) gateway.InboundMessage {
	return gateway.InboundMessage{
		ID:          evt.Info.ID,
		FromMe:      evt.Info.IsFromMe,
		RemotePhone: gateway.SanitizePhone(evt.Info.Chat.User),
		SenderPhone: gateway.SanitizePhone(evt.Info.Sender.User),
		Body:        extractTextBody(evt.Message),
		MessageType: detectMessageType(evt.Message),
		RawPayload:  rawPayload(evt.Message),
		Timestamp:   evt.Info.Timestamp,
	}
}

// parseHistorySync flattens a history sync payload into inbound messages.
// Entries without an inner message payload are skipped.
func parseHistorySync(evt *events.HistorySync) []gateway.InboundMessage {
	data := evt.Data
	if data == nil {
		return nil
	}

	var msgs []gateway.InboundMessage
	for _, conv := range data.GetConversations() {
		chatPhone := phoneFromJIDString(conv.GetID())
		for _, hm := range conv.GetMessages() {
			wmsg := hm.GetMessage()
			if wmsg == nil || wmsg.GetMessage() == nil {
				continue
			}
			key := wmsg.GetKey()
			sender := phoneFromJIDString(key.GetParticipant())
			if sender == "" {
				sender = chatPhone
			}
			inner := wmsg.GetMessage()
			msgs = append(msgs, gateway.InboundMessage{
				ID:          key.GetID(),
				FromMe:      key.GetFromMe(),
				RemotePhone: chatPhone,
				SenderPhone: sender,
				Body:        extractTextBody(inner),
				MessageType: detectMessageType(inner),
				RawPayload:  rawPayload(inner),
				Timestamp:   time.Unix(int64(wmsg.GetMessageTimestamp()), 0),
			})
		}
	}
	return msgs
}
