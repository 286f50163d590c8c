package api

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/herosoft/wagate/internal/bus"
	"github.com/herosoft/wagate/internal/gateway"
	"github.com/herosoft/wagate/internal/store"
)

// stubConn is a do-nothing connection for service-level tests.
type stubConn struct {
	loggedIn bool
	sendID   string
}

func (c *stubConn) Connect() error                  { return nil }
func (c *stubConn) Disconnect()                     {}
func (c *stubConn) Logout(context.Context) error    { return nil }
func (c *stubConn) IsLoggedIn() bool                { return c.loggedIn }
func (c *stubConn) Identity() (string, string)      { return "", "" }
func (c *stubConn) SetEventHandler(func(gateway.Event)) {}
func (c *stubConn) ClearEventHandlers()             {}

func (c *stubConn) RequestPairingCode(context.Context, string) (string, error) {
	return "ABCD-1234", nil
}

func (c *stubConn) ResolveDestination(_ context.Context, phone string) (gateway.Destination, error) {
	return gateway.Destination{Address: phone + "@s.whatsapp.net", Phone: phone, Exists: true}, nil
}

func (c *stubConn) SendText(context.Context, string, string) (string, error) {
	return c.sendID, nil
}

type stubDialer struct {
	conn    *stubConn
	dialErr error
	purged  []string
}

func (d *stubDialer) Dial(context.Context, string) (gateway.Conn, error) {
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	if d.conn == nil {
		d.conn = &stubConn{}
	}
	return d.conn, nil
}

func (d *stubDialer) PurgeCredentials(id string) error {
	d.purged = append(d.purged, id)
	return nil
}

func testServices(t *testing.T, d *stubDialer) (*SessionService, *MessageService, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })

	logger, _ := zap.NewDevelopment()
	manager := gateway.NewManager(d, db, db, bus.New(), logger, gateway.Options{})
	t.Cleanup(manager.Shutdown)

	return NewSessionService(db, manager, logger), NewMessageService(db, manager), db
}

func TestCreateGeneratesID(t *testing.T) {
	svc, _, _ := testServices(t, &stubDialer{})

	rec, err := svc.Create(context.Background(), "", "my session")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec.ID == "" {
		t.Error("generated id is empty")
	}
	if rec.Label != "my session" {
		t.Errorf("label = %q", rec.Label)
	}
}

func TestCreateNormalizesID(t *testing.T) {
	svc, _, _ := testServices(t, &stubDialer{})

	rec, err := svc.Create(context.Background(), "  MySession ", "")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if rec.ID != "mysession" {
		t.Errorf("id = %q, want mysession", rec.ID)
	}
}

func TestCreateRejectsInvalidID(t *testing.T) {
	svc, _, _ := testServices(t, &stubDialer{})

	for _, id := range []string{"has space", "slash/bad", "dot.bad"} {
		_, err := svc.Create(context.Background(), id, "")
		var verr *gateway.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("Create(%q) error = %v, want ValidationError", id, err)
		}
	}
}

func TestCreateDuplicate(t *testing.T) {
	svc, _, _ := testServices(t, &stubDialer{})

	if _, err := svc.Create(context.Background(), "abc", ""); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Create(context.Background(), "abc", "")
	var cerr *gateway.ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want ConflictError", err)
	}
}

func TestCreateSurvivesConnectFailure(t *testing.T) {
	svc, _, _ := testServices(t, &stubDialer{dialErr: errors.New("network down")})

	rec, err := svc.Create(context.Background(), "abc", "")
	if err != nil {
		t.Fatalf("Create() error = %v, connect failure must not fail create", err)
	}
	if rec.ID != "abc" {
		t.Errorf("id = %q", rec.ID)
	}
}

func TestGetNotFound(t *testing.T) {
	svc, _, _ := testServices(t, &stubDialer{})

	_, err := svc.Get("ghost")
	var nerr *gateway.NotFoundError
	if !errors.As(err, &nerr) {
		t.Fatalf("error = %v, want NotFoundError", err)
	}
}

func TestQRCodeWithoutChallenge(t *testing.T) {
	svc, _, db := testServices(t, &stubDialer{})
	if _, err := db.CreateSession("abc", ""); err != nil {
		t.Fatal(err)
	}

	_, err := svc.QRCode("abc")
	var cerr *gateway.ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want ConflictError", err)
	}

	if err := db.UpdateSession("abc", store.SessionPatch{QRCode: store.Ptr("2@challenge")}); err != nil {
		t.Fatal(err)
	}
	code, err := svc.QRCode("abc")
	if err != nil {
		t.Fatal(err)
	}
	if code != "2@challenge" {
		t.Errorf("code = %q", code)
	}
}

func TestDeleteSessionKeepsMessages(t *testing.T) {
	d := &stubDialer{}
	svc, _, db := testServices(t, d)

	if _, err := svc.Create(context.Background(), "abc", ""); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(&store.Message{
		SessionID: "abc", WAMsgID: "m1", Direction: store.DirectionIncoming,
		Status: store.MessageReceived, MessageTimestamp: 1,
	}); err != nil {
		t.Fatal(err)
	}

	if err := svc.Delete(context.Background(), "abc"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := svc.Get("abc"); err == nil {
		t.Error("session still readable after delete")
	}
	if len(d.purged) != 1 {
		t.Errorf("purged = %v", d.purged)
	}

	msgs, err := db.ListMessages("abc", store.ListMessagesOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Error("history did not survive session deletion")
	}
}

func TestPurgeMessages(t *testing.T) {
	svc, _, db := testServices(t, &stubDialer{})
	if _, err := db.CreateSession("abc", ""); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"m1", "m2"} {
		if err := db.UpsertMessage(&store.Message{
			SessionID: "abc", WAMsgID: id, Direction: store.DirectionIncoming,
			Status: store.MessageReceived, MessageTimestamp: 1,
		}); err != nil {
			t.Fatal(err)
		}
	}

	n, err := svc.PurgeMessages("abc")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("purged = %d, want 2", n)
	}
}

func TestCountMessages(t *testing.T) {
	_, msgs, db := testServices(t, &stubDialer{})
	if _, err := db.CreateSession("abc", ""); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertMessage(&store.Message{
		SessionID: "abc", WAMsgID: "m1", Direction: store.DirectionIncoming,
		Status: store.MessageReceived, MessageTimestamp: 1,
	}); err != nil {
		t.Fatal(err)
	}

	n, err := msgs.Count("ABC")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestSendThroughService(t *testing.T) {
	d := &stubDialer{conn: &stubConn{loggedIn: true, sendID: "SRV1"}}
	svc, msgs, _ := testServices(t, d)

	if _, err := svc.Create(context.Background(), "abc", ""); err != nil {
		t.Fatal(err)
	}
	res, err := msgs.Send(context.Background(), "abc", "5511888", "hello")
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if res.MessageID != "SRV1" {
		t.Errorf("MessageID = %q", res.MessageID)
	}

	stored, err := msgs.List("abc", store.ListMessagesOptions{Direction: store.DirectionOutgoing})
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 1 || stored[0].Status != store.MessageSent {
		t.Errorf("stored = %+v", stored)
	}
}
