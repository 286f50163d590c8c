package gateway

import (
	"context"
	"time"

	"github.com/herosoft/wagate/internal/store"
)

// Conn is one live protocol connection for a session. Implementations wrap
// the underlying messaging engine; the manager never sees engine types.
type Conn interface {
	// Connect opens the connection. Lifecycle progress after a successful
	// return arrives through the event handler.
	Connect() error
	// Disconnect ends the connection and releases its resources.
	Disconnect()
	// Logout invalidates the session's credentials remotely.
	Logout(ctx context.Context) error
	// IsLoggedIn reports whether the connection has authenticated
	// credentials.
	IsLoggedIn() bool
	// Identity returns the authenticated account's canonical address and
	// phone number, or empty strings before authentication.
	Identity() (address, phone string)
	// RequestPairingCode asks the engine for a phone-pairing code.
	RequestPairingCode(ctx context.Context, phone string) (string, error)
	// ResolveDestination checks whether a phone number has an active
	// account and returns its canonical address.
	ResolveDestination(ctx context.Context, phone string) (Destination, error)
	// SendText sends a text message to a canonical address and returns the
	// engine-assigned message id.
	SendText(ctx context.Context, address, text string) (string, error)
	// SetEventHandler registers the single handler receiving this
	// connection's events.
	SetEventHandler(fn func(Event))
	// ClearEventHandlers detaches all event handlers.
	ClearEventHandlers()
}

// Destination is the result of an existence lookup.
type Destination struct {
	Address string
	Phone   string
	Exists  bool
}

// Dialer opens connections backed by per-session persisted credentials,
// creating fresh credential material when none exists.
type Dialer interface {
	Dial(ctx context.Context, sessionID string) (Conn, error)
	// PurgeCredentials removes a session's credential material from
	// durable storage.
	PurgeCredentials(sessionID string) error
}

// Event is a connection lifecycle or message event delivered by a Conn.
type Event interface {
	isEvent()
}

// QREvent carries a fresh QR pairing challenge.
type QREvent struct {
	Code string
}

// ConnectingEvent signals the engine is (re-)establishing the connection.
type ConnectingEvent struct{}

// ConnectedEvent signals the connection is open and authenticated.
type ConnectedEvent struct {
	Address string
	Phone   string
}

// ClosedEvent signals the connection ended. LoggedOut distinguishes an
// explicit remote logout (terminal) from a reconnect-eligible closure.
type ClosedEvent struct {
	Reason    string
	LoggedOut bool
}

// ConnectFailedEvent signals the engine could not establish the connection.
type ConnectFailedEvent struct {
	Reason string
}

// MessagesEvent carries a batch of inbound protocol messages.
type MessagesEvent struct {
	Messages []InboundMessage
}

func (QREvent) isEvent()            {}
func (ConnectingEvent) isEvent()    {}
func (ConnectedEvent) isEvent()     {}
func (ClosedEvent) isEvent()        {}
func (ConnectFailedEvent) isEvent() {}
func (MessagesEvent) isEvent()      {}

// InboundMessage is a protocol message normalized by the engine adapter.
type InboundMessage struct {
	ID          string
	FromMe      bool
	RemotePhone string
	SenderPhone string
	Body        string
	MessageType string
	RawPayload  string
	Timestamp   time.Time
}

// SessionStore is the durable session record store the manager writes
// lifecycle state to.
type SessionStore interface {
	ListSessions() ([]store.Session, error)
	UpdateSession(id string, patch store.SessionPatch) error
	DeleteSession(id string) error
}

// MessageStore is the durable message log.
type MessageStore interface {
	UpsertMessage(m *store.Message) error
	InsertMessage(m *store.Message) error
}
