package session

import (
	"context"
	"time"
)

// connection is the push connection state machine. It runs on the manager loop.
//
// Each attempt is numbered; results of an attempt that is no longer current are reported as stale and the caller
// closes any channel they carry.
type connection struct {
	state       ConnectionState
	dialer      Dialer
	dialTimeout time.Duration

	attempt    uint64
	cancelDial context.CancelFunc
	channel    Channel

	reason              DisconnectReason
	lastErr             error
	hasEverConnected    bool
	wasAutoDisconnected bool
}

// begin starts an attempt. It refuses while another attempt is outstanding or a channel is up.
func (c *connection) begin() (uint64, bool) {
	if c.state == Connecting || c.state == Connected {
		return 0, false
	}
	c.attempt++
	c.state = Connecting
	c.reason = ReasonNone
	c.lastErr = nil
	return c.attempt, true
}

func (c *connection) established(attempt uint64, ch Channel) bool {
	if attempt != c.attempt || c.state != Connecting {
		return false
	}
	c.clearDial()
	c.state = Connected
	c.channel = ch
	c.reason = ReasonNone
	c.lastErr = nil
	c.wasAutoDisconnected = false
	c.hasEverConnected = true
	return true
}

func (c *connection) failed(attempt uint64, err error) bool {
	if attempt != c.attempt || c.state != Connecting {
		return false
	}
	c.clearDial()
	c.state = Disconnected
	c.reason = ReasonConnectFailed
	c.lastErr = err
	return true
}

// lost handles the close of ch. Closes of channels that are no longer current are ignored.
func (c *connection) lost(ch Channel, err error) bool {
	if c.state != Connected || ch != c.channel {
		return false
	}
	c.state = Disconnected
	c.channel = nil
	c.reason = ReasonUnexpected
	c.lastErr = err
	return true
}

// drop performs an intentional transition and returns the channel to close, if any.
//
// Policy drops apply only to Connected; local and config drops also abort an outstanding attempt.
func (c *connection) drop(reason DisconnectReason) (Channel, bool) {
	switch c.state {
	case Connected:
	case Connecting:
		if reason == ReasonPolicy {
			return nil, false
		}
		c.attempt++
		c.clearDial()
	default:
		return nil, false
	}

	ch := c.channel
	c.channel = nil
	c.reason = reason

	switch reason {
	case ReasonPolicy:
		c.state = AutoDisconnected
		c.wasAutoDisconnected = true
	case ReasonConfigChanged:
		c.state = ConfigChanged
	default:
		c.state = Disconnected
	}

	return ch, true
}

func (c *connection) clearDial() {
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
}
