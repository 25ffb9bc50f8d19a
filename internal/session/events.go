package session

import "time"

// Event is a session transition or notice. The set of implementations is closed.
type Event interface {
	// Name is a stable identifier used in logs, history rows and the websocket stream.
	Name() string
	Time() time.Time
	isEvent()
}

// ConnectedEvent is emitted when a connection attempt succeeds.
type ConnectedEvent struct {
	At        time.Time
	SessionID string
}

// DisconnectedEvent is emitted for every exit to Disconnected: local, unexpected and failed attempts.
type DisconnectedEvent struct {
	At        time.Time
	SessionID string
	Reason    DisconnectReason
	Err       error
}

// AutoDisconnectedEvent is emitted when the idle policy drops the connection.
type AutoDisconnectedEvent struct {
	At        time.Time
	SessionID string
	IdleFor   time.Duration
}

// ConfigChangedEvent is emitted when a credential change forces the connection down.
type ConfigChangedEvent struct {
	At        time.Time
	SessionID string
}

// WarningEvent announces an imminent idle disconnect.
type WarningEvent struct {
	At               time.Time
	SessionID        string
	MinutesRemaining int
}

// ProtectionEvent is emitted when an active transfer kept the session alive at timeout.
type ProtectionEvent struct {
	At             time.Time
	SessionID      string
	TimeoutMinutes int
}

// ActivityEvent is emitted for every recorded activity.
type ActivityEvent struct {
	At time.Time
}

func (e ConnectedEvent) Name() string        { return "connected" }
func (e DisconnectedEvent) Name() string     { return "disconnected" }
func (e AutoDisconnectedEvent) Name() string { return "auto_disconnected" }
func (e ConfigChangedEvent) Name() string    { return "config_changed" }
func (e WarningEvent) Name() string          { return "warning" }
func (e ProtectionEvent) Name() string       { return "protection" }
func (e ActivityEvent) Name() string         { return "activity" }

func (e ConnectedEvent) Time() time.Time        { return e.At }
func (e DisconnectedEvent) Time() time.Time     { return e.At }
func (e AutoDisconnectedEvent) Time() time.Time { return e.At }
func (e ConfigChangedEvent) Time() time.Time    { return e.At }
func (e WarningEvent) Time() time.Time          { return e.At }
func (e ProtectionEvent) Time() time.Time       { return e.At }
func (e ActivityEvent) Time() time.Time         { return e.At }

func (ConnectedEvent) isEvent()        {}
func (DisconnectedEvent) isEvent()     {}
func (AutoDisconnectedEvent) isEvent() {}
func (ConfigChangedEvent) isEvent()    {}
func (WarningEvent) isEvent()          {}
func (ProtectionEvent) isEvent()       {}
func (ActivityEvent) isEvent()         {}
