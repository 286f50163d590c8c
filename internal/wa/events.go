package wa

import (
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/herosoft/wagate/internal/gateway"
)

// translate maps a raw whatsmeow event onto a gateway event. The second
// return is false for events the lifecycle manager does not care about.
func (c *Conn) translate(raw any) (gateway.Event, bool) {
	switch evt := raw.(type) {
	case *events.QR:
		if len(evt.Codes) == 0 {
			return nil, false
		}
		// The engine hands over the whole refresh schedule at once; only the
		// currently scannable code matters.
		return gateway.QREvent{Code: evt.Codes[0]}, true

	case *events.Connected:
		addr, phone := c.Identity()
		c.logger.Info("WhatsApp connected", zap.String("phone", phone))
		return gateway.ConnectedEvent{Address: addr, Phone: phone}, true

	case *events.Disconnected:
		c.logger.Warn("WhatsApp disconnected")
		return gateway.ClosedEvent{Reason: "connection closed"}, true

	case *events.StreamReplaced:
		c.logger.Warn("WhatsApp stream replaced by another client")
		return gateway.ClosedEvent{Reason: "stream replaced"}, true

	case *events.LoggedOut:
		c.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		return gateway.ClosedEvent{Reason: evt.Reason.String(), LoggedOut: true}, true

	case *events.ConnectFailure:
		reason := evt.Reason.String()
		if evt.Message != "" {
			reason = reason + ": " + evt.Message
		}
		c.logger.Error("WhatsApp connect failure", zap.String("reason", reason))
		return gateway.ConnectFailedEvent{Reason: reason}, true

	case *events.Message:
		return gateway.MessagesEvent{Messages: []gateway.InboundMessage{parseLiveMessage(evt)}}, true

	case *events.HistorySync:
		msgs := parseHistorySync(evt)
		if len(msgs) == 0 {
			return nil, false
		}
		c.logger.Info("history sync batch", zap.Int("messages", len(msgs)))
		return gateway.MessagesEvent{Messages: msgs}, true
	}
	return nil, false
}
