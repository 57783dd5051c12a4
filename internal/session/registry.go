package session

import (
	"errors"
	"sync"
)

var (
	// ErrAlreadyActive is returned when a session id already has a worker
	ErrAlreadyActive = errors.New("session already active")

	// ErrNoSession is returned for operations on an unknown session id
	ErrNoSession = errors.New("no active session")

	// ErrSessionEnded is returned for submits after the end signal
	ErrSessionEnded = errors.New("session already ended")

	// ErrBackpressure is returned when the audio channel stays full past
	// the bounded blocking window
	ErrBackpressure = errors.New("audio channel full")
)

// State is a session's lifecycle phase
type State int

const (
	StateStarting State = iota
	StateStreaming
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateStreaming:
		return "streaming"
	case StateDraining:
		return "draining"
	default:
		return "closed"
	}
}

// Handle is the registry's view of one active session. The audio channel is
// bounded and single-consumer; a nil payload is the end-of-session sentinel.
type Handle struct {
	ID      string
	OwnerID string

	audio chan []byte

	// closed is closed by the worker on teardown so blocked producers
	// never wedge on a dead session
	closed    chan struct{}
	closeOnce sync.Once

	// sendMu serializes enqueues so the end sentinel is strictly last
	sendMu sync.Mutex
	ended  bool

	// stateMu guards lifecycle state and the speaker name map, which an
	// external rename can mutate while the worker resolves lines
	stateMu sync.Mutex
	state   State
	names   map[string]string
}

func newHandle(id, ownerID string, chanSize int) *Handle {
	return &Handle{
		ID:      id,
		OwnerID: ownerID,
		audio:   make(chan []byte, chanSize),
		closed:  make(chan struct{}),
		state:   StateStarting,
		names:   make(map[string]string),
	}
}

func (h *Handle) markClosed() {
	h.closeOnce.Do(func() { close(h.closed) })
}

// State returns the session's current lifecycle phase
func (h *Handle) State() State {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	return h.state
}

func (h *Handle) setState(s State) {
	h.stateMu.Lock()
	h.state = s
	h.stateMu.Unlock()
}

// SetName maps a raw speaker label to a display name for this session
func (h *Handle) SetName(label, name string) {
	h.stateMu.Lock()
	h.names[label] = name
	h.stateMu.Unlock()
}

// Names returns a snapshot of the session's speaker name map
func (h *Handle) Names() map[string]string {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()

	snapshot := make(map[string]string, len(h.names))
	for k, v := range h.names {
		snapshot[k] = v
	}
	return snapshot
}

// Registry is the single source of truth for which sessions are active.
// At most one worker exists per session id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Handle
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Handle)}
}

// Register creates a handle for a new session. It fails with ErrAlreadyActive
// if a worker is already registered for the id.
func (r *Registry) Register(id, ownerID string, chanSize int) (*Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[id]; exists {
		return nil, ErrAlreadyActive
	}

	h := newHandle(id, ownerID, chanSize)
	r.sessions[id] = h
	return h, nil
}

// Lookup returns the handle for an active session
func (r *Registry) Lookup(id string) (*Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.sessions[id]
	return h, ok
}

// Unregister removes a session. It is idempotent: the worker's own teardown
// and a transport disconnect may race to remove the same entry.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Active returns the number of registered sessions
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
