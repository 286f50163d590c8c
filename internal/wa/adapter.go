package wa

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/herosoft/wagate/internal/gateway"
	"github.com/herosoft/wagate/internal/session"

	_ "github.com/mattn/go-sqlite3"
)

// Dialer opens WhatsApp connections backed by per-session credential stores
// under the storage root.
type Dialer struct {
	storageDir string
	logger     *zap.Logger
}

// NewDialer creates a dialer rooted at storageDir.
func NewDialer(storageDir string, logger *zap.Logger) *Dialer {
	// Device name shown on the phone's linked devices list.
	wastore.SetOSInfo("WAGate", [3]uint32{0, 1, 0})
	return &Dialer{storageDir: storageDir, logger: logger}
}

// Dial opens the session's credential store and builds an unconnected client.
// The lifecycle manager owns reconnection, so the client's own auto-reconnect
// stays off.
func (d *Dialer) Dial(ctx context.Context, sessionID string) (gateway.Conn, error) {
	if err := session.EnsureDir(d.storageDir, sessionID); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	dbPath := session.CredentialDBPath(d.storageDir, sessionID)
	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create credential store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("get device store: %w", err)
	}

	client := whatsmeow.NewClient(device, nil)
	client.EnableAutoReconnect = false

	return &Conn{
		client:    client,
		container: container,
		logger:    d.logger.With(zap.String("session", sessionID)),
	}, nil
}

// PurgeCredentials removes the session's credential directory.
func (d *Dialer) PurgeCredentials(sessionID string) error {
	return session.PurgeDir(d.storageDir, sessionID)
}

// Conn wraps one whatsmeow client as a gateway connection.
type Conn struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	logger    *zap.Logger
}

// Connect opens the websocket. For an unauthenticated device the engine then
// emits QR challenges through the event handler.
func (c *Conn) Connect() error {
	c.logger.Info("connecting to WhatsApp")
	return c.client.Connect()
}

// Disconnect closes the websocket and the credential store. The Conn must not
// be reused afterwards.
func (c *Conn) Disconnect() {
	c.logger.Info("disconnecting from WhatsApp")
	c.client.Disconnect()
	if err := c.container.Close(); err != nil {
		c.logger.Warn("failed to close credential store", zap.Error(err))
	}
}

// Logout invalidates the device registration server-side.
func (c *Conn) Logout(ctx context.Context) error {
	return c.client.Logout(ctx)
}

// IsLoggedIn reports whether the device has stored credentials.
func (c *Conn) IsLoggedIn() bool {
	return c.client.Store.ID != nil
}

// Identity returns the authenticated address and phone number, or empty
// strings before pairing.
func (c *Conn) Identity() (string, string) {
	id := c.client.Store.ID
	if id == nil {
		return "", ""
	}
	return id.ToNonAD().String(), id.User
}

// RequestPairingCode asks the server for a phone-entry pairing code. The
// connection must be open and unauthenticated.
func (c *Conn) RequestPairingCode(ctx context.Context, phone string) (string, error) {
	return c.client.PairPhone(ctx, phone, true, whatsmeow.PairClientChrome, "Chrome (Linux)")
}

// ResolveDestination checks whether a phone number has an account and returns
// its canonical address.
func (c *Conn) ResolveDestination(ctx context.Context, phone string) (gateway.Destination, error) {
	resps, err := c.client.IsOnWhatsApp(ctx, []string{"+" + phone})
	if err != nil {
		return gateway.Destination{}, err
	}
	if len(resps) == 0 {
		return gateway.Destination{}, nil
	}
	r := resps[0]
	return gateway.Destination{
		Address: r.JID.ToNonAD().String(),
		Phone:   r.JID.User,
		Exists:  r.IsIn,
	}, nil
}

// SendText sends a plain text message and returns the server message id.
func (c *Conn) SendText(ctx context.Context, address, text string) (string, error) {
	to, err := types.ParseJID(address)
	if err != nil {
		return "", fmt.Errorf("parse JID: %w", err)
	}
	resp, err := c.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// SetEventHandler installs fn for all engine events, translated to gateway
// events. Untranslatable events are dropped.
func (c *Conn) SetEventHandler(fn func(gateway.Event)) {
	c.client.AddEventHandler(func(raw any) {
		if evt, ok := c.translate(raw); ok {
			fn(evt)
		}
	})
}

// ClearEventHandlers detaches all installed handlers.
func (c *Conn) ClearEventHandlers() {
	c.client.RemoveEventHandlers()
}
