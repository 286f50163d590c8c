// Package qrterm renders pairing challenges to a terminal. It subscribes to
// session events on the bus and prints scannable QR blocks and pairing codes
// as they are issued, so a gateway operator can pair sessions straight from
// the daemon's console.
package qrterm

import (
	"context"
	"fmt"
	"io"

	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	"github.com/herosoft/wagate/internal/bus"
	"github.com/herosoft/wagate/internal/gateway"
)

// Renderer prints QR challenges and pairing codes from "session." bus events.
type Renderer struct {
	bus    *bus.Bus
	out    io.Writer
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewRenderer creates a renderer writing to out.
func NewRenderer(b *bus.Bus, out io.Writer, logger *zap.Logger) *Renderer {
	return &Renderer{
		bus:    b,
		out:    out,
		logger: logger,
	}
}

// Start subscribes to session events on the bus.
func (r *Renderer) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	ch, unsub := r.bus.Subscribe("session.", 64)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				r.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the renderer.
func (r *Renderer) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
}

func (r *Renderer) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case "session.qr":
		p, ok := evt.Payload.(gateway.QRIssued)
		if !ok {
			return
		}
		r.renderQR(p.SessionID, p.Code)
	case "session.pairing_code":
		p, ok := evt.Payload.(gateway.PairingCodeIssued)
		if !ok {
			return
		}
		fmt.Fprintf(r.out, "\nsession %s: enter pairing code %s on your phone\n", p.SessionID, p.Code)
	}
}

func (r *Renderer) renderQR(sessionID, code string) {
	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		r.logger.Error("failed to render QR code",
			zap.String("session", sessionID), zap.Error(err))
		return
	}
	fmt.Fprintf(r.out, "\nsession %s: scan to pair\n%s\n", sessionID, qr.ToSmallString(false))
}
