package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ConnectionState is the lifecycle state of the push connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	// AutoDisconnected: the push channel was dropped by the idle policy.
	AutoDisconnected
	// ConfigChanged: credentials changed while connected; an explicit reconnect is required.
	ConfigChanged
)

var stateNames = map[ConnectionState]string{
	Disconnected:     "disconnected",
	Connecting:       "connecting",
	Connected:        "connected",
	AutoDisconnected: "auto_disconnected",
	ConfigChanged:    "config_changed",
}

func (s ConnectionState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *ConnectionState) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown connection state %q", text)
}

// DisconnectReason tags why the connection left Connected or Connecting.
type DisconnectReason int

const (
	ReasonNone DisconnectReason = iota
	// ReasonUnexpected: the channel closed without a local decision (network failure, server hangup).
	ReasonUnexpected
	// ReasonPolicy: idle timeout with no active transfer.
	ReasonPolicy
	// ReasonLocal: explicit Disconnect or Close.
	ReasonLocal
	ReasonConfigChanged
	ReasonConnectFailed
)

var reasonNames = map[DisconnectReason]string{
	ReasonNone:          "",
	ReasonUnexpected:    "unexpected",
	ReasonPolicy:        "policy",
	ReasonLocal:         "local",
	ReasonConfigChanged: "config_changed",
	ReasonConnectFailed: "connect_failed",
}

func (r DisconnectReason) String() string {
	if name, ok := reasonNames[r]; ok {
		return name
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

func (r DisconnectReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *DisconnectReason) UnmarshalText(text []byte) error {
	for reason, name := range reasonNames {
		if name == string(text) {
			*r = reason
			return nil
		}
	}
	return fmt.Errorf("unknown disconnect reason %q", text)
}

// Status is the published snapshot of a session.
//
// MinutesRemaining and Warning are only meaningful while State is Connected.
type Status struct {
	State            ConnectionState
	MinutesRemaining int
	Extendable       bool
	TimeoutMinutes   int
	SessionID        string
	Reason           DisconnectReason
	Unexpected       bool
	Err              error
	Warning          bool
	Protected        bool
	HasEverConnected bool
	UpdatedAt        time.Time
}

// Failed reports whether the last connection attempt errored.
func (s Status) Failed() bool {
	return s.Reason == ReasonConnectFailed && s.Err != nil
}

type statusJSON struct {
	State            ConnectionState  `json:"state"`
	MinutesRemaining int              `json:"minutes_remaining"`
	Extendable       bool             `json:"extendable"`
	TimeoutMinutes   int              `json:"timeout_minutes"`
	SessionID        string           `json:"session_id,omitempty"`
	Reason           DisconnectReason `json:"reason,omitempty"`
	Unexpected       bool             `json:"unexpected"`
	Error            string           `json:"error,omitempty"`
	Warning          bool             `json:"warning"`
	Protected        bool             `json:"protected"`
	HasEverConnected bool             `json:"has_ever_connected"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

func (s Status) MarshalJSON() ([]byte, error) {
	var errText string
	if s.Err != nil {
		errText = s.Err.Error()
	}

	return json.Marshal(statusJSON{
		State:            s.State,
		MinutesRemaining: s.MinutesRemaining,
		Extendable:       s.Extendable,
		TimeoutMinutes:   s.TimeoutMinutes,
		SessionID:        s.SessionID,
		Reason:           s.Reason,
		Unexpected:       s.Unexpected,
		Error:            errText,
		Warning:          s.Warning,
		Protected:        s.Protected,
		HasEverConnected: s.HasEverConnected,
		UpdatedAt:        s.UpdatedAt,
	})
}

// UnmarshalJSON decodes a snapshot served by another process. The error text is kept, not its type.
func (s *Status) UnmarshalJSON(data []byte) error {
	var raw statusJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Status{
		State:            raw.State,
		MinutesRemaining: raw.MinutesRemaining,
		Extendable:       raw.Extendable,
		TimeoutMinutes:   raw.TimeoutMinutes,
		SessionID:        raw.SessionID,
		Reason:           raw.Reason,
		Unexpected:       raw.Unexpected,
		Warning:          raw.Warning,
		Protected:        raw.Protected,
		HasEverConnected: raw.HasEverConnected,
		UpdatedAt:        raw.UpdatedAt,
	}
	if raw.Error != "" {
		s.Err = errors.New(raw.Error)
	}
	return nil
}
