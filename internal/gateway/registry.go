package gateway

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/herosoft/wagate/internal/status"
)

// Handle is one live connection and its bookkeeping: the status machine, the
// event queue consumed by the session's goroutine, and the scheduled
// reconnect timer.
type Handle struct {
	id      string
	conn    Conn
	machine *status.Machine

	events    chan Event
	done      chan struct{}
	closeOnce sync.Once
	cancelled atomic.Bool

	mu    sync.Mutex
	retry *time.Timer
}

func newHandle(id string, conn Conn) *Handle {
	return &Handle{
		id:      id,
		conn:    conn,
		machine: status.NewMachine(status.Connecting),
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
	}
}

// ID returns the session id this handle belongs to.
func (h *Handle) ID() string { return h.id }

// Status returns the handle's current lifecycle status.
func (h *Handle) Status() status.Status { return h.machine.Current() }

// LoggedIn reports whether the underlying connection is authenticated.
func (h *Handle) LoggedIn() bool { return h.conn.IsLoggedIn() }

// cancel marks the handle dead: the event consumer exits, pending and future
// scheduled reconnects observe the cancellation and no-op.
func (h *Handle) cancel() {
	h.closeOnce.Do(func() {
		h.cancelled.Store(true)
		h.mu.Lock()
		if h.retry != nil {
			h.retry.Stop()
		}
		h.mu.Unlock()
		close(h.done)
	})
}

// scheduleRetry arms the single reconnect timer for this handle, replacing
// any previously armed one. No-op on a cancelled handle.
func (h *Handle) scheduleRetry(d time.Duration, fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancelled.Load() {
		return
	}
	if h.retry != nil {
		h.retry.Stop()
	}
	h.retry = time.AfterFunc(d, fn)
}

// Registry is the table of live connection handles, one per session id. It is
// the single source of truth for "is this session currently connected".
type Registry struct {
	mu      sync.Mutex
	handles map[string]*Handle
	locks   map[string]*sync.Mutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handles: make(map[string]*Handle),
		locks:   make(map[string]*sync.Mutex),
	}
}

// Get returns the live handle for id, or nil.
func (r *Registry) Get(id string) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[id]
}

// Put registers the handle for its session id, replacing any previous entry.
func (r *Registry) Put(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[h.id] = h
}

// Remove drops the registry entry for id, but only if it still points at h.
// A reconnect may already have installed a newer handle.
func (r *Registry) Remove(id string, h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handles[id] == h {
		delete(r.handles, id)
	}
}

// IDs returns the session ids with live handles.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// lockFor returns the mutex serializing connection setup and teardown for one
// session id. Distinct sessions connect concurrently; concurrent calls for
// the same id are serialized so at most one connection per id ever exists.
func (r *Registry) lockFor(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[id]
	if !ok {
		l = &sync.Mutex{}
		r.locks[id] = l
	}
	return l
}
