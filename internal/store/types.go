package store

// Message direction values.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// Message status values.
const (
	MessageReceived = "received"
	MessageSent     = "sent"
	MessageFailed   = "failed"
)

// Session is one tenant's durable session record.
type Session struct {
	ID             string
	Label          string
	Status         string
	RemoteIdentity string
	PhoneNumber    string
	PairingCode    string
	QRCode         string
	ErrorMessage   string

	// Unix milliseconds; zero means unset.
	PairingCodeExpiresAt int64
	QRCodeUpdatedAt      int64
	LastConnectedAt      int64
	CreatedAt            int64
	UpdatedAt            int64
}

// SessionPatch is a partial session update. Nil fields are left untouched.
type SessionPatch struct {
	Status               *string
	RemoteIdentity       *string
	PhoneNumber          *string
	PairingCode          *string
	PairingCodeExpiresAt *int64
	QRCode               *string
	QRCodeUpdatedAt      *int64
	LastConnectedAt      *int64
	ErrorMessage         *string
}

// Message is one protocol message observed or attempted on a session.
type Message struct {
	ID               int64
	SessionID        string
	WAMsgID          string
	Direction        string
	Status           string
	From             string
	To               string
	Body             string
	MessageType      string
	RawPayload       string
	ErrorMessage     string
	MessageTimestamp int64
	CreatedAt        int64
}

// Ptr returns a pointer to v, for building patches inline.
func Ptr[T any](v T) *T {
	return &v
}
