package gateway

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/herosoft/wagate/internal/bus"
	"github.com/herosoft/wagate/internal/session"
	"github.com/herosoft/wagate/internal/store"
)

// SendResult reports a successful send.
type SendResult struct {
	MessageID string
	To        string
}

// SendTextMessage validates a send request, resolves the destination, invokes
// the engine and records the outcome. Exactly one message record is written
// per attempt: status "sent" on success, "failed" on any failure at any step,
// including failures before the engine is ever called. The error, if any, is
// returned only after the audit record is written.
func (m *Manager) SendTextMessage(ctx context.Context, id, to, text string) (*SendResult, error) {
	id = session.NormalizeID(id)

	payload, _ := json.Marshal(map[string]string{"text": text})
	attempt := &store.Message{
		SessionID:   id,
		WAMsgID:     uuid.NewString(),
		Direction:   store.DirectionOutgoing,
		To:          SanitizePhone(to),
		Body:        text,
		MessageType: "conversation",
		RawPayload:  string(payload),
	}

	record := func(msgStatus, errMsg string) {
		attempt.Status = msgStatus
		attempt.ErrorMessage = errMsg
		attempt.MessageTimestamp = time.Now().UnixMilli()
		if err := m.messages.InsertMessage(attempt); err != nil {
			m.logger.Error("failed to record send attempt",
				zap.String("session", id), zap.String("wa_msg_id", attempt.WAMsgID), zap.Error(err))
		}
	}
	fail := func(err error) (*SendResult, error) {
		record(store.MessageFailed, err.Error())
		m.bus.Publish(bus.Event{
			Kind:      "message.send_failed",
			Timestamp: time.Now(),
			Payload:   SendFailed{SessionID: id, Reason: err.Error()},
		})
		return nil, err
	}

	if strings.TrimSpace(to) == "" {
		return fail(&ValidationError{Message: "destination is required"})
	}
	if attempt.To == "" {
		return fail(&ValidationError{Message: "destination is invalid"})
	}
	if strings.TrimSpace(text) == "" {
		return fail(&ValidationError{Message: "message text is required"})
	}

	h, err := m.EnsureConnection(ctx, id, false)
	if err != nil {
		return fail(err)
	}
	if !h.conn.IsLoggedIn() {
		return fail(&ValidationError{Message: "session is not connected; pair it before sending"})
	}
	_, selfPhone := h.conn.Identity()
	attempt.From = selfPhone

	dest, err := h.conn.ResolveDestination(ctx, attempt.To)
	if err != nil {
		return fail(&TransportError{Op: "resolve destination", Err: err})
	}
	if !dest.Exists {
		return fail(&ValidationError{Message: "destination has no active account"})
	}
	if dest.Phone != "" {
		attempt.To = dest.Phone
	}

	msgID, err := h.conn.SendText(ctx, dest.Address, text)
	if err != nil {
		return fail(&TransportError{Op: "send message", Err: err})
	}
	if msgID != "" {
		attempt.WAMsgID = msgID
	}

	record(store.MessageSent, "")
	m.bus.Publish(bus.Event{
		Kind:      "message.recorded",
		Timestamp: time.Now(),
		Payload:   MessageRecorded{SessionID: id, WAMsgID: attempt.WAMsgID},
	})
	return &SendResult{MessageID: attempt.WAMsgID, To: attempt.To}, nil
}
