package gateway

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/herosoft/wagate/internal/bus"
	"github.com/herosoft/wagate/internal/session"
	"github.com/herosoft/wagate/internal/status"
	"github.com/herosoft/wagate/internal/store"
)

var nonDigits = regexp.MustCompile(`[^0-9]`)

// SanitizePhone strips a phone number down to its digits.
func SanitizePhone(v string) string {
	return nonDigits.ReplaceAllString(v, "")
}

// StatusChanged is the bus payload for "session.status_changed" events.
type StatusChanged struct {
	SessionID string
	Status    status.Status
}

// QRIssued is the bus payload for "session.qr" events.
type QRIssued struct {
	SessionID string
	Code      string
}

// PairingCodeIssued is the bus payload for "session.pairing_code" events.
type PairingCodeIssued struct {
	SessionID string
	Code      string
}

// MessageRecorded is the bus payload for "message.recorded" events.
type MessageRecorded struct {
	SessionID string
	WAMsgID   string
}

// SendFailed is the bus payload for "message.send_failed" events.
type SendFailed struct {
	SessionID string
	Reason    string
}

// Options tunes the manager's lifecycle policy.
type Options struct {
	// PairingCodeTTL is how long an issued pairing code is presented as
	// valid. Zero means 120 seconds.
	PairingCodeTTL time.Duration
	// ReconnectDelay is the flat delay before the single scheduled
	// reconnect after a non-logout closure. Zero means 2 seconds.
	ReconnectDelay time.Duration
}

// Manager is the session lifecycle controller: it creates, authenticates,
// monitors, reconnects and tears down per-session protocol connections, and
// feeds the ingestion and send pipelines from each connection's event stream.
type Manager struct {
	registry *Registry
	dialer   Dialer
	sessions SessionStore
	messages MessageStore
	bus      *bus.Bus
	logger   *zap.Logger

	pairingCodeTTL time.Duration
	reconnectDelay time.Duration
}

// NewManager creates a manager. The registry it owns starts empty;
// connections are opened on demand or via Bootstrap.
func NewManager(dialer Dialer, sessions SessionStore, messages MessageStore, b *bus.Bus, logger *zap.Logger, opts Options) *Manager {
	if opts.PairingCodeTTL == 0 {
		opts.PairingCodeTTL = 120 * time.Second
	}
	if opts.ReconnectDelay == 0 {
		opts.ReconnectDelay = 2 * time.Second
	}
	return &Manager{
		registry:       NewRegistry(),
		dialer:         dialer,
		sessions:       sessions,
		messages:       messages,
		bus:            b,
		logger:         logger,
		pairingCodeTTL: opts.PairingCodeTTL,
		reconnectDelay: opts.ReconnectDelay,
	}
}

// Registry exposes the live-connection table, read-only by convention.
func (m *Manager) Registry() *Registry { return m.registry }

// EnsureConnection returns the live handle for a session, opening a new
// connection when none exists. With forceNew, any existing connection is torn
// down first. Concurrent callers for the same id are serialized and observe
// the same handle; distinct ids never block each other.
func (m *Manager) EnsureConnection(ctx context.Context, id string, forceNew bool) (*Handle, error) {
	id = session.NormalizeID(id)
	lock := m.registry.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if h := m.registry.Get(id); h != nil {
		if !forceNew {
			return h, nil
		}
		m.teardown(h)
	}

	conn, err := m.dialer.Dial(ctx, id)
	if err != nil {
		return nil, &TransportError{Op: "open connection", Err: err}
	}

	h := newHandle(id, conn)
	conn.SetEventHandler(func(evt Event) {
		select {
		case h.events <- evt:
		case <-h.done:
		}
	})
	go m.consume(h)
	m.registry.Put(h)

	m.persist(id, store.SessionPatch{
		Status:       store.Ptr(string(status.Connecting)),
		ErrorMessage: store.Ptr(""),
	})
	m.publishStatus(id, status.Connecting)

	if err := conn.Connect(); err != nil {
		m.teardown(h)
		m.persist(id, store.SessionPatch{
			Status:       store.Ptr(string(status.Error)),
			ErrorMessage: store.Ptr(err.Error()),
		})
		return nil, &TransportError{Op: "connect", Err: err}
	}

	return h, nil
}

// TeardownConnection detaches event handlers, ends the connection and removes
// the registry entry. Safe no-op when the session has no live handle, so it
// tolerates races with scheduled reconnects and deletions.
func (m *Manager) TeardownConnection(id string) {
	id = session.NormalizeID(id)
	lock := m.registry.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if h := m.registry.Get(id); h != nil {
		m.teardown(h)
	}
}

// teardown assumes the per-id lock is held.
func (m *Manager) teardown(h *Handle) {
	h.cancel()
	h.conn.ClearEventHandlers()
	h.conn.Disconnect()
	m.registry.Remove(h.id, h)
}

// RequestPairingCode issues a phone-pairing code for an unauthenticated
// session and records it with its expiry on the session record.
func (m *Manager) RequestPairingCode(ctx context.Context, id, phoneNumber string) (string, error) {
	id = session.NormalizeID(id)
	phone := SanitizePhone(phoneNumber)
	if phone == "" {
		return "", &ValidationError{Message: "a valid phone number is required"}
	}

	h, err := m.EnsureConnection(ctx, id, false)
	if err != nil {
		return "", err
	}
	if h.conn.IsLoggedIn() {
		return "", &ConflictError{Message: "session is already connected; delete or restart it before requesting a new code"}
	}

	if err := h.machine.Transition(status.WaitingCode); err != nil {
		m.logger.Warn("pairing status transition rejected", zap.String("session", id), zap.Error(err))
	}
	err = m.sessions.UpdateSession(id, store.SessionPatch{
		Status:               store.Ptr(string(status.WaitingCode)),
		PairingCode:          store.Ptr(""),
		PairingCodeExpiresAt: store.Ptr(int64(0)),
		QRCode:               store.Ptr(""),
		QRCodeUpdatedAt:      store.Ptr(int64(0)),
	})
	if err != nil {
		return "", fmt.Errorf("persist pairing state: %w", err)
	}
	m.publishStatus(id, status.WaitingCode)

	code, err := h.conn.RequestPairingCode(ctx, phone)
	if err != nil {
		return "", &TransportError{Op: "request pairing code", Err: err}
	}

	expiresAt := time.Now().Add(m.pairingCodeTTL).UnixMilli()
	err = m.sessions.UpdateSession(id, store.SessionPatch{
		PairingCode:          store.Ptr(code),
		PairingCodeExpiresAt: store.Ptr(expiresAt),
	})
	if err != nil {
		return "", fmt.Errorf("persist pairing code: %w", err)
	}

	m.bus.Publish(bus.Event{
		Kind:      "session.pairing_code",
		Timestamp: time.Now(),
		Payload:   PairingCodeIssued{SessionID: id, Code: code},
	})
	return code, nil
}

// DeleteSession logs the session out (best effort), tears down its
// connection, purges its credential material and removes the session record.
func (m *Manager) DeleteSession(ctx context.Context, id string) error {
	id = session.NormalizeID(id)

	if h := m.registry.Get(id); h != nil {
		if err := h.conn.Logout(ctx); err != nil {
			m.logger.Warn("logout failed during session delete", zap.String("session", id), zap.Error(err))
		}
	}
	m.TeardownConnection(id)

	if err := m.dialer.PurgeCredentials(id); err != nil {
		return fmt.Errorf("purge credentials for %s: %w", id, err)
	}
	if err := m.sessions.DeleteSession(id); err != nil {
		return fmt.Errorf("delete session record %s: %w", id, err)
	}
	m.logger.Info("session deleted", zap.String("session", id))
	return nil
}

// Bootstrap opens a connection for every persisted session. Per-session
// failures are logged and do not stop the rest.
func (m *Manager) Bootstrap(ctx context.Context) {
	sessions, err := m.sessions.ListSessions()
	if err != nil {
		m.logger.Error("failed to list sessions for bootstrap", zap.Error(err))
		return
	}
	for _, s := range sessions {
		if _, err := m.EnsureConnection(ctx, s.ID, false); err != nil {
			m.logger.Error("failed to start session", zap.String("session", s.ID), zap.Error(err))
		}
	}
}

// Shutdown tears down every live connection.
func (m *Manager) Shutdown() {
	for _, id := range m.registry.IDs() {
		m.TeardownConnection(id)
	}
}

// consume is the single goroutine draining one connection's event queue,
// preserving per-session ordering while sessions run in parallel.
func (m *Manager) consume(h *Handle) {
	for {
		select {
		case evt := <-h.events:
			m.handleEvent(h, evt)
		case <-h.done:
			return
		}
	}
}

func (m *Manager) handleEvent(h *Handle, evt Event) {
	if h.cancelled.Load() {
		return
	}
	switch e := evt.(type) {
	case QREvent:
		m.handleQR(h, e)
	case ConnectingEvent:
		m.transition(h, status.Connecting, store.SessionPatch{
			Status: store.Ptr(string(status.Connecting)),
		})
	case ConnectedEvent:
		m.handleConnected(h, e)
	case ClosedEvent:
		if e.LoggedOut {
			m.handleLoggedOut(h, e)
		} else {
			m.handleClosed(h, e)
		}
	case ConnectFailedEvent:
		m.transition(h, status.Error, store.SessionPatch{
			Status:       store.Ptr(string(status.Error)),
			ErrorMessage: store.Ptr(e.Reason),
		})
		m.logger.Error("session connection failed", zap.String("session", h.id), zap.String("reason", e.Reason))
	case MessagesEvent:
		m.ingest(h, e.Messages)
	}
}

func (m *Manager) handleQR(h *Handle, e QREvent) {
	now := time.Now().UnixMilli()
	m.transition(h, status.WaitingQR, store.SessionPatch{
		Status:               store.Ptr(string(status.WaitingQR)),
		QRCode:               store.Ptr(e.Code),
		QRCodeUpdatedAt:      store.Ptr(now),
		PairingCode:          store.Ptr(""),
		PairingCodeExpiresAt: store.Ptr(int64(0)),
	})
	m.bus.Publish(bus.Event{
		Kind:      "session.qr",
		Timestamp: time.Now(),
		Payload:   QRIssued{SessionID: h.id, Code: e.Code},
	})
}

func (m *Manager) handleConnected(h *Handle, e ConnectedEvent) {
	now := time.Now().UnixMilli()
	m.transition(h, status.Connected, store.SessionPatch{
		Status:               store.Ptr(string(status.Connected)),
		RemoteIdentity:       store.Ptr(e.Address),
		PhoneNumber:          store.Ptr(e.Phone),
		LastConnectedAt:      store.Ptr(now),
		PairingCode:          store.Ptr(""),
		PairingCodeExpiresAt: store.Ptr(int64(0)),
		QRCode:               store.Ptr(""),
		QRCodeUpdatedAt:      store.Ptr(int64(0)),
		ErrorMessage:         store.Ptr(""),
	})
	m.logger.Info("session connected", zap.String("session", h.id), zap.String("phone", e.Phone))
}

// handleClosed schedules the single reconnect for a reconnect-eligible
// closure. A failure during the retry is logged, never propagated; the next
// closure event schedules its own retry.
func (m *Manager) handleClosed(h *Handle, e ClosedEvent) {
	m.transition(h, status.Reconnecting, store.SessionPatch{
		Status: store.Ptr(string(status.Reconnecting)),
	})
	m.logger.Warn("session disconnected, scheduling reconnect",
		zap.String("session", h.id), zap.String("reason", e.Reason), zap.Duration("delay", m.reconnectDelay))

	h.scheduleRetry(m.reconnectDelay, func() {
		if h.cancelled.Load() {
			return
		}
		if _, err := m.EnsureConnection(context.Background(), h.id, true); err != nil {
			m.logger.Error("reconnect failed", zap.String("session", h.id), zap.Error(err))
		}
	})
}

// handleLoggedOut handles an explicit remote logout: terminal, no retry.
func (m *Manager) handleLoggedOut(h *Handle, e ClosedEvent) {
	m.logger.Warn("session logged out", zap.String("session", h.id), zap.String("reason", e.Reason))
	if err := h.machine.Transition(status.LoggedOut); err != nil {
		m.logger.Warn("logout status transition rejected", zap.String("session", h.id), zap.Error(err))
	}
	m.TeardownConnection(h.id)
	m.persist(h.id, store.SessionPatch{
		Status:               store.Ptr(string(status.LoggedOut)),
		RemoteIdentity:       store.Ptr(""),
		PhoneNumber:          store.Ptr(""),
		PairingCode:          store.Ptr(""),
		PairingCodeExpiresAt: store.Ptr(int64(0)),
		QRCode:               store.Ptr(""),
		QRCodeUpdatedAt:      store.Ptr(int64(0)),
	})
	m.publishStatus(h.id, status.LoggedOut)
	m.bus.Publish(bus.Event{
		Kind:      "session.logged_out",
		Timestamp: time.Now(),
		Payload:   StatusChanged{SessionID: h.id, Status: status.LoggedOut},
	})
}

// transition moves the handle's status machine and persists the patch. An
// invalid transition is logged and skipped; a persistence failure is logged
// and absorbed so the ambient lifecycle keeps running.
func (m *Manager) transition(h *Handle, to status.Status, patch store.SessionPatch) {
	if err := h.machine.Transition(to); err != nil {
		m.logger.Warn("ignoring status transition", zap.String("session", h.id), zap.Error(err))
		return
	}
	m.persist(h.id, patch)
	m.publishStatus(h.id, to)
}

func (m *Manager) persist(id string, patch store.SessionPatch) {
	if err := m.sessions.UpdateSession(id, patch); err != nil {
		m.logger.Error("failed to persist session state", zap.String("session", id), zap.Error(err))
	}
}

func (m *Manager) publishStatus(id string, s status.Status) {
	m.bus.Publish(bus.Event{
		Kind:      "session.status_changed",
		Timestamp: time.Now(),
		Payload:   StatusChanged{SessionID: id, Status: s},
	})
}
