package api

import (
	"context"

	"github.com/herosoft/wagate/internal/gateway"
	"github.com/herosoft/wagate/internal/session"
	"github.com/herosoft/wagate/internal/store"
)

// MessageService exposes the message history and the send pipeline.
type MessageService struct {
	db      *store.DB
	manager *gateway.Manager
}

// NewMessageService creates a message service backed by the store.
func NewMessageService(db *store.DB, manager *gateway.Manager) *MessageService {
	return &MessageService{db: db, manager: manager}
}

// List returns the session's message history, newest first.
func (s *MessageService) List(sessionID string, opts store.ListMessagesOptions) ([]store.Message, error) {
	return s.db.ListMessages(session.NormalizeID(sessionID), opts)
}

// Count returns the number of stored messages for the session.
func (s *MessageService) Count(sessionID string) (int64, error) {
	return s.db.CountMessages(session.NormalizeID(sessionID))
}

// Send sends a text message through the session's connection. Every attempt
// leaves an audit record regardless of outcome.
func (s *MessageService) Send(ctx context.Context, sessionID, to, text string) (*gateway.SendResult, error) {
	return s.manager.SendTextMessage(ctx, sessionID, to, text)
}
