package bus

import "time"

// Event represents a domain event published on the bus. Kind uses dotted
// namespaces, e.g. "session.qr" or "message.recorded".
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
