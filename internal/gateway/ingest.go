package gateway

import (
	"time"

	"go.uber.org/zap"

	"github.com/herosoft/wagate/internal/bus"
	"github.com/herosoft/wagate/internal/store"
)

// ingest records a batch of inbound protocol messages. Each message is
// upserted idempotently on (session id, protocol message id); a persistence
// failure for one message is logged and does not abort the rest of the batch.
func (m *Manager) ingest(h *Handle, msgs []InboundMessage) {
	_, selfPhone := h.conn.Identity()

	for _, im := range msgs {
		rec := buildInboundRecord(h.id, selfPhone, im)
		if err := m.messages.UpsertMessage(rec); err != nil {
			m.logger.Error("failed to store message",
				zap.String("session", h.id), zap.String("wa_msg_id", im.ID), zap.Error(err))
			continue
		}
		m.bus.Publish(bus.Event{
			Kind:      "message.recorded",
			Timestamp: time.Now(),
			Payload:   MessageRecorded{SessionID: h.id, WAMsgID: im.ID},
		})
	}
}

// buildInboundRecord normalizes one protocol message into a store record.
// Self-originated messages read from the authenticated identity toward the
// remote party; everything else reads the other way around.
func buildInboundRecord(sessionID, selfPhone string, im InboundMessage) *store.Message {
	direction := store.DirectionIncoming
	msgStatus := store.MessageReceived
	from := im.SenderPhone
	if from == "" {
		from = im.RemotePhone
	}
	to := selfPhone

	if im.FromMe {
		direction = store.DirectionOutgoing
		msgStatus = store.MessageSent
		from = selfPhone
		to = im.RemotePhone
	}

	ts := im.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return &store.Message{
		SessionID:        sessionID,
		WAMsgID:          im.ID,
		Direction:        direction,
		Status:           msgStatus,
		From:             from,
		To:               to,
		Body:             im.Body,
		MessageType:      im.MessageType,
		RawPayload:       im.RawPayload,
		MessageTimestamp: ts.UnixMilli(),
	}
}
