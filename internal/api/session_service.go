package api

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/herosoft/wagate/internal/gateway"
	"github.com/herosoft/wagate/internal/session"
	"github.com/herosoft/wagate/internal/store"
)

// SessionService exposes session lifecycle operations to callers of the
// daemon. It validates input, keeps the session table authoritative and
// delegates connection work to the lifecycle manager.
type SessionService struct {
	db      *store.DB
	manager *gateway.Manager
	logger  *zap.Logger
}

// NewSessionService creates a session service backed by the store.
func NewSessionService(db *store.DB, manager *gateway.Manager, logger *zap.Logger) *SessionService {
	return &SessionService{db: db, manager: manager, logger: logger}
}

// Create registers a new session and starts its connection. A blank id gets a
// generated one. The connection attempt may fail without failing the create;
// the returned record then carries the error status.
func (s *SessionService) Create(ctx context.Context, id, label string) (*store.Session, error) {
	if id == "" {
		id = session.GenerateID()
	}
	id = session.NormalizeID(id)
	if err := session.ValidateID(id); err != nil {
		return nil, &gateway.ValidationError{Message: err.Error()}
	}

	if _, err := s.db.CreateSession(id, label); err != nil {
		if errors.Is(err, store.ErrDuplicateSession) {
			return nil, &gateway.ConflictError{Message: fmt.Sprintf("session %q already exists", id)}
		}
		return nil, fmt.Errorf("create session: %w", err)
	}

	if _, err := s.manager.EnsureConnection(ctx, id, false); err != nil {
		s.logger.Warn("initial connection failed",
			zap.String("session", id), zap.Error(err))
	}

	return s.Get(id)
}

// List returns all sessions, most recently updated first.
func (s *SessionService) List() ([]*store.Session, error) {
	recs, err := s.db.ListSessions()
	if err != nil {
		return nil, err
	}
	out := make([]*store.Session, len(recs))
	for i := range recs {
		out[i] = &recs[i]
	}
	return out, nil
}

// Get returns one session record.
func (s *SessionService) Get(id string) (*store.Session, error) {
	rec, err := s.db.GetSession(session.NormalizeID(id))
	if errors.Is(err, store.ErrNoSession) {
		return nil, &gateway.NotFoundError{Message: fmt.Sprintf("session %q not found", id)}
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return rec, nil
}

// Connect starts or restarts the session's connection. With forceNew the
// existing connection is torn down first.
func (s *SessionService) Connect(ctx context.Context, id string, forceNew bool) (*store.Session, error) {
	rec, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.manager.EnsureConnection(ctx, rec.ID, forceNew); err != nil {
		return nil, err
	}
	return s.Get(rec.ID)
}

// QRCode returns the current QR challenge for the session, or a conflict if
// none is pending.
func (s *SessionService) QRCode(id string) (string, error) {
	rec, err := s.Get(id)
	if err != nil {
		return "", err
	}
	if rec.QRCode == "" {
		return "", &gateway.ConflictError{Message: fmt.Sprintf("session %q has no pending QR challenge", id)}
	}
	return rec.QRCode, nil
}

// RequestPairingCode issues a phone-entry pairing code for the session.
func (s *SessionService) RequestPairingCode(ctx context.Context, id, phoneNumber string) (string, error) {
	rec, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return s.manager.RequestPairingCode(ctx, rec.ID, phoneNumber)
}

// Delete removes the session, its credentials and its connection. Message
// history is kept; use PurgeMessages to drop it.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	rec, err := s.Get(id)
	if err != nil {
		return err
	}
	return s.manager.DeleteSession(ctx, rec.ID)
}

// PurgeMessages deletes all stored messages for the session and returns the
// number of rows removed.
func (s *SessionService) PurgeMessages(id string) (int64, error) {
	rec, err := s.Get(id)
	if err != nil {
		return 0, err
	}
	return s.db.DeleteMessages(rec.ID)
}
