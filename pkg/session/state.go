package session

// Phase is the connectivity phase derived from the session flags.
type Phase string

const (
	Unregistered       Phase = "unregistered"
	RegisteredOnline   Phase = "registered_online"
	RegisteredOffline  Phase = "registered_offline"
	OfflinePendingSync Phase = "offline_pending_sync"
)

// State is the set of session flags kept next to the cached player.
// Methods return a new value and never mutate the receiver.
type State struct {
	Registered bool `json:"playerRegistered"`
	Offline    bool `json:"offlineMode"`
	NeedsSync  bool `json:"needsSync"`
	// Connected is set once the remote store has accepted this player.
	Connected bool `json:"sheetsConnected"`
}

// Phase maps the flags onto the state machine.
func (s State) Phase() Phase {
	switch {
	case !s.Registered:
		return Unregistered
	case s.NeedsSync:
		return OfflinePendingSync
	case s.Offline || !s.Connected:
		return RegisteredOffline
	default:
		return RegisteredOnline
	}
}

// CanWriteRemote reports whether score updates should reach the remote store now.
func (s State) CanWriteRemote() bool {
	return s.Registered && s.Connected && !s.Offline
}

// SyncPending reports whether the remote store is behind the cached player.
func (s State) SyncPending() bool {
	return s.Registered && (s.NeedsSync || !s.Connected)
}

// RegisteredRemotely is the outcome of a registration that reached the store.
func (s State) RegisteredRemotely() State {
	return State{Registered: true, Connected: true}
}

// RegisteredLocally is the outcome of a registration that fell back to the cache.
func (s State) RegisteredLocally() State {
	return State{Registered: true, Offline: true}
}

// UpdateDeferred marks a score change the remote store has not seen yet.
func (s State) UpdateDeferred() State {
	if s.Connected {
		s.NeedsSync = true
	}
	return s
}

// Disconnected forces the offline flag.
func (s State) Disconnected() State {
	s.Offline = true
	return s
}

// Reconnected clears the offline flag; pending work is left for Sync.
func (s State) Reconnected() State {
	s.Offline = false
	return s
}

// Synced is the outcome of a successful sync.
func (s State) Synced() State {
	s.NeedsSync = false
	s.Offline = false
	s.Connected = true
	return s
}
